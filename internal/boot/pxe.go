package boot

import (
	"context"
	"fmt"
	"strings"

	"github.com/insomniacslk/dhcp/dhcpv4"

	"fleetd/internal/artifacts"
	"fleetd/internal/objects"
	"fleetd/internal/registry"
)

// PXEBootPlugin is the boot plugin for node.Netboot == "pxe" (§4.10): it
// renders the option-67/66/12/15 DHCP statements and owns the pxelinux
// artifact layout under the TFTP root.
//
// Grounded on BootMethodRegistry (boot.go, kept verbatim from the teacher)
// for the per-arch bootloader filename table, and on
// internal/dhcp/template.go's ComposeConditionalBootloader for the idiom of
// emitting a conditional ISC dhcpd statement block rather than evaluating
// the condition in Go (the vendor-class-identifier check only makes sense
// against a live DHCP request, which this process never sees — it only
// renders the server-side config fragment, per §3 DHCPOption.opts.statements).
type PXEBootPlugin struct {
	artifacts artifacts.Config
}

func NewPXEBootPlugin(cfg artifacts.Config) *PXEBootPlugin {
	return &PXEBootPlugin{artifacts: cfg}
}

func (p *PXEBootPlugin) Name() string { return "pxe" }

func (p *PXEBootPlugin) Validate(node *objects.Node) error {
	if _, ok := node.PrimaryNic(); !ok {
		return fmt.Errorf("boot: node %s has no usable nic", node.Name)
	}
	return nil
}

// optionHeader documents the ISC dhcpd option number a statement line
// implements, cross-checked against the real dhcpv4 option-code table
// rather than hand-copied numbers.
func optionHeader(code dhcpv4.OptionCode) string {
	return fmt.Sprintf("# option %d (%s)", code.Code(), code.String())
}

// GenDHCPOpts renders the per-node option set described in §4.10: a
// conditional option 67 (pxelinux.0, or vsmp/pxelinux.0 behind a
// vendor-class-identifier == "ScaleMP" guard), option 66 pointing at this
// conductor's HTTP/TFTP host, and options 12/15 both carrying the node
// name.
func (p *PXEBootPlugin) GenDHCPOpts(node *objects.Node, localIP string) (map[string]string, error) {
	nic, ok := node.PrimaryNic()
	if !ok {
		return nil, fmt.Errorf("boot: node %s has no usable nic", node.Name)
	}

	var b strings.Builder
	fmt.Fprintln(&b, optionHeader(dhcpv4.OptionClassIdentifier))
	fmt.Fprintf(&b, "if option vendor-class-identifier = \"ScaleMP\" {\n")
	fmt.Fprintf(&b, "    filename \"vsmp/pxelinux.0\";\n")
	fmt.Fprintf(&b, "} else {\n")
	fmt.Fprintf(&b, "    filename \"pxelinux.0\";\n")
	fmt.Fprintf(&b, "}\n")
	fmt.Fprintln(&b, optionHeader(dhcpv4.OptionTFTPServerName))
	fmt.Fprintf(&b, "next-server %s;\n", localIP)
	fmt.Fprintln(&b, optionHeader(dhcpv4.OptionHostName))
	fmt.Fprintf(&b, "option host-name \"%s\";\n", node.Name)
	fmt.Fprintln(&b, optionHeader(dhcpv4.OptionDomainName))
	fmt.Fprintf(&b, "option domain-name \"%s\";\n", node.Name)

	opts := map[string]string{
		"ip":         nic.IP,
		"mac":        strings.ToLower(nic.MAC),
		"hostname":   node.Name,
		"statements": b.String(),
	}
	opts["content"] = fmt.Sprintf("host %s {\n  hardware ethernet %s;\n  fixed-address %s;\n  server-name \"%s\";\n%s}\n",
		node.Name, opts["mac"], nic.IP, localIP, indent(opts["statements"], "  "))
	return opts, nil
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n") + "\n"
}

// BuildBootConf writes the pxelinux config for node and the artifacts it
// references: vmlinuz/initrd symlinks into the OS tree, the
// pxelinux.cfg/<name>/config file, and the 01-<mac> symlink the PXE ROM
// actually requests.
func (p *PXEBootPlugin) BuildBootConf(node *objects.Node, osBootCmdline string, osimage *objects.OSImage) error {
	if err := p.artifacts.WriteNodeBoot(node.Name, osimage.Distro, osimage.Ver, osimage.Arch); err != nil {
		return err
	}
	cfg := fmt.Sprintf("DEFAULT install\nLABEL install\n  KERNEL ../../nodes/%s/vmlinuz\n  INITRD ../../nodes/%s/initrd.img\n  APPEND %s\n",
		node.Name, node.Name, osBootCmdline)
	nic, ok := node.PrimaryNic()
	if !ok {
		return fmt.Errorf("boot: node %s has no usable nic", node.Name)
	}
	return p.artifacts.WritePXEConfig(node.Name, strings.ToLower(nic.MAC), cfg)
}

// ContinueDeploy rewrites the node's pxelinux config to "try local disk"
// and flips the control plugin's next-boot device to disk (§4.7
// provision_callback, §8 scenario S6).
func (p *PXEBootPlugin) ContinueDeploy(ctx context.Context, node *objects.Node, reg *registry.Registry) error {
	nic, ok := node.PrimaryNic()
	if !ok {
		return fmt.Errorf("boot: node %s has no usable nic", node.Name)
	}
	const localBoot = "DEFAULT xCAT\nLABEL xCAT\nLOCALBOOT 0\n"
	if err := p.artifacts.WritePXEConfig(node.Name, strings.ToLower(nic.MAC), localBoot); err != nil {
		return err
	}
	ctrl, err := reg.Control(node.Mgt)
	if err != nil {
		return err
	}
	return ctrl.SetBootDevice(ctx, node, objects.BootDeviceDisk)
}

// Clean removes the node's pxelinux config, symlinks and the 01-<mac>
// symlink, then the now-empty parent directories (§4.10).
func (p *PXEBootPlugin) Clean(node *objects.Node) error {
	mac := ""
	if nic, ok := node.PrimaryNic(); ok {
		mac = strings.ToLower(nic.MAC)
	}
	return p.artifacts.CleanPXE(node.Name, mac)
}

var _ registry.BootPlugin = (*PXEBootPlugin)(nil)
