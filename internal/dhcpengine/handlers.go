package dhcpengine

import (
	"context"

	"fleetd/internal/rpc"
)

const successSentinel = "SUCCESS"

// EntryPoints is the set of RPC methods a network-service process serves.
type EntryPoints struct {
	EnableDHCPOption rpc.Handler
	RestartDHCP      rpc.Handler
	CheckSupport     rpc.Handler
	GetStatus        rpc.Handler
}

func (e *Engine) EntryPoints() EntryPoints {
	return EntryPoints{
		EnableDHCPOption: e.handleEnableDHCPOption,
		RestartDHCP:      e.handleRestartDHCP,
		CheckSupport:     e.handleCheckSupport,
		GetStatus:        e.handleGetStatus,
	}
}

// Register wires every RPC entry point onto an rpc.Server.
func (e *Engine) Register(s *rpc.Server) {
	ep := e.EntryPoints()
	s.AddHandler("enable_dhcp_option", ep.EnableDHCPOption)
	s.AddHandler("restart_dhcp", ep.RestartDHCP)
	s.AddHandler("check_support", ep.CheckSupport)
	s.AddHandler("get_status", ep.GetStatus)
}

type subnetKwargs struct {
	Subnet string
}

func (e *Engine) handleEnableDHCPOption(ctx context.Context, req rpc.Request) (map[string]string, error) {
	var kw subnetKwargs
	if err := req.DecodeKwargs(&kw); err != nil {
		return nil, err
	}
	if err := e.EnableDHCPOption(ctx, kw.Subnet); err != nil {
		return nil, err
	}
	return map[string]string{"": successSentinel}, nil
}

// handleRestartDHCP serves the restart_dhcp RPC: it re-renders the config
// and restarts the IPv4 daemon. No fleetd component sends restart_dhcp;
// the HTTP Network create/delete handlers only write the store and do not
// notify network services.
func (e *Engine) handleRestartDHCP(ctx context.Context, req rpc.Request) (map[string]string, error) {
	if err := e.Rebuild(ctx); err != nil {
		return nil, err
	}
	if e.dhcp4 != nil {
		if err := e.dhcp4.Restart(ctx); err != nil {
			return nil, err
		}
	}
	return map[string]string{"": successSentinel}, nil
}

func (e *Engine) handleCheckSupport(ctx context.Context, req rpc.Request) (map[string]string, error) {
	var kw subnetKwargs
	if err := req.DecodeKwargs(&kw); err != nil {
		return nil, err
	}
	val := "false"
	if e.CheckSupport(kw.Subnet) {
		val = "true"
	}
	return map[string]string{"": val}, nil
}

func (e *Engine) handleGetStatus(ctx context.Context, req rpc.Request) (map[string]string, error) {
	if err := e.Status(ctx); err != nil {
		return map[string]string{"": err.Error()}, nil
	}
	return map[string]string{"": successSentinel}, nil
}
