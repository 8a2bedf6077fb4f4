// Package registry implements the plugin registry (C3): explicit,
// process-wide-at-startup tables mapping mgt -> control plugin, netboot ->
// boot plugin, and distro -> OS plugin, each with a small fixed capability
// set (§4.3).
//
// Grounded on rackd_spike/internal/drivers/power/driver.go's PowerDriver
// interface and PowerConfig typed field-config system (extended here with
// GetBootDevice/SetBootDevice, which the teacher's power driver lacks) and
// rackd_spike/internal/boot/boot.go's BootMethodRegistry (kept as the
// per-arch PXE/UEFI method table backing the boot plugin). Design note §9
// calls for an explicit context object instead of a package-level
// singleton, hence Registry is a plain struct constructed once in main.
package registry

import (
	"context"
	"errors"

	"fleetd/internal/objects"
)

var ErrPluginNotFound = errors.New("plugin not found")

// ControlPlugin is the out-of-band management contract, one implementation
// per node.Mgt value (ipmi, kvmssh, openbmc, ...).
type ControlPlugin interface {
	Name() string
	Validate(node *objects.Node) error
	GetPowerState(ctx context.Context, node *objects.Node) (string, error)
	SetPowerState(ctx context.Context, node *objects.Node, target string) error
	GetBootDevice(ctx context.Context, node *objects.Node) (string, error)
	SetBootDevice(ctx context.Context, node *objects.Node, device string) error
}

// BootPlugin is the netboot contract, one implementation per node.Netboot
// value (pxe, petitboot, ...).
type BootPlugin interface {
	Name() string
	Validate(node *objects.Node) error
	GenDHCPOpts(node *objects.Node, localIP string) (map[string]string, error)
	BuildBootConf(node *objects.Node, osBootCmdline string, osimage *objects.OSImage) error
	ContinueDeploy(ctx context.Context, node *objects.Node, reg *Registry) error
	Clean(node *objects.Node) error
}

// OSPlugin is the distro-family contract, one implementation per
// OSImage.Distro value (redhat, ubuntu, ...).
type OSPlugin interface {
	Name() string
	Validate(node *objects.Node, osimage *objects.OSImage) error
	BuildOSBootStr(node *objects.Node, osimage *objects.OSImage) (string, error)
	BuildTemplate(node *objects.Node, osimage *objects.OSImage, passwdHash string) error
	Clean(node *objects.Node) error
}

// Registry is the explicit context object threaded through conductor and
// network-service handlers; constructed once in main (design note §9).
type Registry struct {
	control map[string]ControlPlugin
	boot    map[string]BootPlugin
	os      map[string]OSPlugin
}

func New() *Registry {
	return &Registry{
		control: make(map[string]ControlPlugin),
		boot:    make(map[string]BootPlugin),
		os:      make(map[string]OSPlugin),
	}
}

func (r *Registry) RegisterControl(p ControlPlugin) { r.control[p.Name()] = p }
func (r *Registry) RegisterBoot(p BootPlugin)        { r.boot[p.Name()] = p }
func (r *Registry) RegisterOS(p OSPlugin)            { r.os[p.Name()] = p }

func (r *Registry) Control(mgt string) (ControlPlugin, error) {
	p, ok := r.control[mgt]
	if !ok {
		return nil, ErrPluginNotFound
	}
	return p, nil
}

func (r *Registry) Boot(netboot string) (BootPlugin, error) {
	p, ok := r.boot[netboot]
	if !ok {
		return nil, ErrPluginNotFound
	}
	return p, nil
}

func (r *Registry) OS(distro string) (OSPlugin, error) {
	p, ok := r.os[distro]
	if !ok {
		return nil, ErrPluginNotFound
	}
	return p, nil
}
