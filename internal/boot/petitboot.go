package boot

import (
	"context"
	"fmt"
	"strings"

	"fleetd/internal/artifacts"
	"fleetd/internal/objects"
	"fleetd/internal/registry"
)

// PetitbootBootPlugin is the boot plugin for node.Netboot == "petitboot"
// (ppc64el OpenPOWER nodes): instead of a TFTP pxelinux stanza, the
// firmware fetches a config URL carried in DHCP option 209 and served over
// HTTP from /install/boot/<name> (§4.10).
type PetitbootBootPlugin struct {
	artifacts artifacts.Config
	apiHostIP string
}

func NewPetitbootBootPlugin(cfg artifacts.Config, apiHostIP string) *PetitbootBootPlugin {
	return &PetitbootBootPlugin{artifacts: cfg, apiHostIP: apiHostIP}
}

func (p *PetitbootBootPlugin) Name() string { return "petitboot" }

func (p *PetitbootBootPlugin) Validate(node *objects.Node) error {
	if _, ok := node.PrimaryNic(); !ok {
		return fmt.Errorf("boot: node %s has no usable nic", node.Name)
	}
	return nil
}

// GenDHCPOpts renders option 209, the per-node petitboot config URL; unlike
// PXE there is no conditional bootfile-name logic, since petitboot's
// firmware always fetches the same option.
func (p *PetitbootBootPlugin) GenDHCPOpts(node *objects.Node, localIP string) (map[string]string, error) {
	nic, ok := node.PrimaryNic()
	if !ok {
		return nil, fmt.Errorf("boot: node %s has no usable nic", node.Name)
	}

	configURL := fmt.Sprintf("http://%s/install/boot/%s", p.apiHostIP, node.Name)
	var b strings.Builder
	b.WriteString("# option 209 (petitboot config url)\n")
	fmt.Fprintf(&b, "option petitboot.config-url \"%s\";\n", configURL)

	opts := map[string]string{
		"ip":         nic.IP,
		"mac":        strings.ToLower(nic.MAC),
		"hostname":   node.Name,
		"statements": b.String(),
	}
	opts["content"] = fmt.Sprintf("host %s {\n  hardware ethernet %s;\n  fixed-address %s;\n%s}\n",
		node.Name, opts["mac"], nic.IP, indent(opts["statements"], "  "))
	return opts, nil
}

func (p *PetitbootBootPlugin) BuildBootConf(node *objects.Node, osBootCmdline string, osimage *objects.OSImage) error {
	if err := p.artifacts.WriteNodeBoot(node.Name, osimage.Distro, osimage.Ver, osimage.Arch); err != nil {
		return err
	}
	cfg := fmt.Sprintf("default Install\n\nlabel Install\n  kernel http://%s/install/images/%s%s/%s/vmlinuz\n  initrd http://%s/install/images/%s%s/%s/initrd.img\n  append %s\n",
		p.apiHostIP, osimage.Distro, osimage.Ver, osimage.Arch,
		p.apiHostIP, osimage.Distro, osimage.Ver, osimage.Arch,
		osBootCmdline)
	return p.artifacts.WritePetitbootConfig(node.Name, cfg)
}

func (p *PetitbootBootPlugin) ContinueDeploy(ctx context.Context, node *objects.Node, reg *registry.Registry) error {
	const localBoot = "default Local\n\nlabel Local\n  boot\n"
	if err := p.artifacts.WritePetitbootConfig(node.Name, localBoot); err != nil {
		return err
	}
	ctrl, err := reg.Control(node.Mgt)
	if err != nil {
		return err
	}
	return ctrl.SetBootDevice(ctx, node, objects.BootDeviceDisk)
}

func (p *PetitbootBootPlugin) Clean(node *objects.Node) error {
	return p.artifacts.CleanPetitboot(node.Name)
}

var _ registry.BootPlugin = (*PetitbootBootPlugin)(nil)
