// Package dhcpengine implements the network-service worker (C9): subnet
// discovery against local interfaces, rendering the ISC dhcpd config from
// the object store, and daemon lifecycle/liveness via internal/dhcp and
// internal/omapi.
//
// Grounded on internal/dhcp/service.go (daemon supervision, GetLocalIP) and
// internal/dhcp/template.go (the rendering structures), both kept from the
// teacher; the object-store-backed rendering and subnet-ownership routing
// are new, grounded on spec §4.9.
package dhcpengine

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"

	"fleetd/internal/dhcp"
	"fleetd/internal/objects"
	"fleetd/internal/omapi"
)

// localSubnet pairs a configured Network with the local interface address
// that covers it; a Network with no matching local interface is not
// served by this worker and is silently skipped (another network-service
// instance, or none, covers it).
type localSubnet struct {
	network *objects.Network
	localIP string
	cidr    string
}

// Engine owns one network-service worker's view of the DHCP configuration:
// the subnets it locally covers, and the daemon(s) it supervises.
type Engine struct {
	repo  *objects.Repo
	dhcp4 dhcp.DhcpService
	dhcp6 dhcp.DhcpService

	omapiAddr string
	omapiAuth omapi.Authenticator

	mu      sync.RWMutex
	subnets []localSubnet
}

func New(repo *objects.Repo, dhcp4, dhcp6 dhcp.DhcpService, omapiPort int, omapiSecret, omapiKeyName string) (*Engine, error) {
	e := &Engine{
		repo:      repo,
		dhcp4:     dhcp4,
		dhcp6:     dhcp6,
		omapiAddr: fmt.Sprintf("127.0.0.1:%d", omapiPort),
	}
	if omapiSecret != "" {
		auth, err := omapi.NewHMACMD5Authenticator(omapiKeyName, omapiSecret)
		if err != nil {
			return nil, err
		}
		e.omapiAuth = auth
	} else {
		e.omapiAuth = &omapi.NullAuthenticator{}
	}
	return e, nil
}

// matchLocalSubnets implements §4.9's startup step: read all Networks,
// determine which ones this worker has a local interface in.
func (e *Engine) matchLocalSubnets(ctx context.Context) ([]localSubnet, error) {
	networks, err := e.repo.ListNetworks(ctx)
	if err != nil {
		return nil, err
	}

	var matched []localSubnet
	for _, n := range networks {
		ip := net.ParseIP(n.Subnet)
		mask := net.ParseIP(n.Netmask)
		if ip == nil || mask == nil {
			continue
		}
		ipNet := &net.IPNet{IP: ip.To4(), Mask: net.IPMask(mask.To4())}
		cidr := ipNet.String()

		localIP, err := dhcp.GetLocalIP(cidr)
		if err == dhcp.ErrNoLocalIPInSubnet {
			continue
		}
		if err != nil {
			return nil, err
		}
		matched = append(matched, localSubnet{network: n, localIP: localIP, cidr: cidr})
	}
	return matched, nil
}

// buildTemplateData renders §4.9's per-subnet options structure and every
// per-node host block from the DHCP table.
func (e *Engine) buildTemplateData(ctx context.Context, matched []localSubnet) (dhcp.TemplateData, error) {
	opts, err := e.repo.ListDHCPOptions(ctx)
	if err != nil {
		return dhcp.TemplateData{}, err
	}

	hosts := make([]dhcp.Host, 0, len(opts))
	for _, o := range opts {
		hosts = append(hosts, dhcp.Host{
			Host: o.Name,
			MAC:  o.MAC,
			IP:   o.IP,
			DHCPSnippets: []dhcp.DhcpSnippet{
				{Name: o.Name, Description: "fleetd per-node options", Value: o.Statements},
			},
		})
	}

	bootloader, err := dhcp.ComposeConditionalBootloader(dhcp.ConditionalBootloaderData{})
	if err != nil {
		return dhcp.TemplateData{}, err
	}

	subnets := make([]dhcp.Subnet, 0, len(matched))
	for _, m := range matched {
		var low, high string
		if parts := strings.SplitN(m.network.DynamicRange, "-", 2); len(parts) == 2 {
			low, high = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		}
		s := dhcp.Subnet{
			Subnet:       m.network.Subnet,
			SubnetMask:   m.network.Netmask,
			CIDR:         m.cidr,
			NextServer:   m.localIP,
			RouterIP:     m.network.Gateway,
			DNSServers:   m.network.Nameservers,
			DomainName:   m.network.Domain,
			Bootloader:   bootloader,
		}
		if low != "" && high != "" {
			s.Pools = []dhcp.Pool{{IPRangeLow: low, IPRangeHigh: high}}
		}
		subnets = append(subnets, s)
	}

	return dhcp.TemplateData{
		Hosts: hosts,
		SharedNetworks: []dhcp.SharedNetwork{
			{Name: "fleetd", Subnets: subnets},
		},
	}, nil
}

// Rebuild re-renders the config from current store state for every subnet
// this worker covers and restarts the daemon(s); it is the operation both
// Start and EnableDHCPOption reduce to, matching §4.9's "the daemon's
// lease file is truncated on each full rebuild" (handled inside the
// service's Restart, which dhcpd itself performs on reload of a fresh
// config).
func (e *Engine) Rebuild(ctx context.Context) error {
	matched, err := e.matchLocalSubnets(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.subnets = matched
	e.mu.Unlock()

	if len(matched) == 0 {
		return nil
	}

	data, err := e.buildTemplateData(ctx, matched)
	if err != nil {
		return err
	}

	if e.dhcp4 != nil {
		ifaces := make([]string, 0, len(matched))
		for _, m := range matched {
			ifaces = append(ifaces, m.localIP)
		}
		if err := e.dhcp4.Configure(ctx, dhcp.ConfigData{TemplateData: data, Interfaces: ifaces}, ""); err != nil {
			return err
		}
	}
	return nil
}

// Start performs §4.9's startup sequence: match subnets, render, and bring
// the daemon up.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.Rebuild(ctx); err != nil {
		return err
	}
	if e.dhcp4 != nil {
		return e.dhcp4.Start(ctx)
	}
	return nil
}

// CheckSupport implements §4.9's `check_support(subnet)`: true iff one of
// this worker's rendered subnets matches subnet_id (here, the subnet's
// CIDR string).
func (e *Engine) CheckSupport(subnet string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, m := range e.subnets {
		if m.cidr == subnet || m.network.Subnet == subnet {
			return true
		}
	}
	return false
}

// Subnets returns the subnet identifiers this worker currently covers, in
// the same string form CheckSupport/Owner match against — used to
// populate the svcregistry registration so the bulk dispatcher's affinity
// routing (§4.9 "whichever network-service worker owns the subnet") can
// pick this worker without an RPC round trip.
func (e *Engine) Subnets() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.subnets))
	for _, m := range e.subnets {
		out = append(out, m.network.Subnet)
	}
	return out
}

// Status probes the daemon's OMAPI management channel, §4.9's `status`.
func (e *Engine) Status(ctx context.Context) error {
	return omapi.Probe(e.omapiAddr, e.omapiAuth)
}

// EnableDHCPOption is the concrete handler a conductor's provision.Notifier
// calls via RPC (§4.7 step 7): pick up newly written per-node DHCP blobs
// and make them live. subnet is advisory (routing to this worker already
// happened via svcregistry.Registry.Owner); an empty subnet rebuilds
// everything this worker covers.
func (e *Engine) EnableDHCPOption(ctx context.Context, subnet string) error {
	return e.Rebuild(ctx)
}
