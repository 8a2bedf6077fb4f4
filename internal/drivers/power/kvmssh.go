package power

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"fleetd/internal/objects"
)

// KVMSSHControlPlugin drives libvirt's virsh CLI over an SSH session rather
// than a BMC protocol, for nodes fronted by a KVM/QEMU hypervisor instead of
// real hardware (§4.3's "more than one control plugin" requirement). New:
// the rest of the pack never shows BMC-less virtualized control, but
// golang.org/x/crypto/ssh is a real, widely used client library and the
// natural fit for the concern; it has the same registry.ControlPlugin
// shape as IPMIControlPlugin but reads the node's ControlInfo SSH fields
// directly, with no PowerConfig field schema.
type KVMSSHControlPlugin struct {
	dialTimeout time.Duration
}

func NewKVMSSHControlPlugin() *KVMSSHControlPlugin {
	return &KVMSSHControlPlugin{dialTimeout: 10 * time.Second}
}

func (p *KVMSSHControlPlugin) Name() string { return "kvmssh" }

func (p *KVMSSHControlPlugin) Validate(node *objects.Node) error {
	ci := node.ControlInfo
	if ci.SSHAddress == "" || ci.SSHUsername == "" {
		return ErrFieldNotFound
	}
	return nil
}

func (p *KVMSSHControlPlugin) dial(node *objects.Node) (*ssh.Client, error) {
	ci := node.ControlInfo
	auth, err := p.authMethod(ci.SSHKeyFilename)
	if err != nil {
		return nil, err
	}
	cfg := &ssh.ClientConfig{
		User:            ci.SSHUsername,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         p.dialTimeout,
	}
	addr := ci.SSHAddress
	if !strings.Contains(addr, ":") {
		addr = addr + ":22"
	}
	return ssh.Dial("tcp", addr, cfg)
}

func (p *KVMSSHControlPlugin) authMethod(keyPath string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("kvmssh: reading private key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("kvmssh: parsing private key: %w", err)
	}
	return ssh.PublicKeys(signer), nil
}

func (p *KVMSSHControlPlugin) run(ctx context.Context, node *objects.Node, cmd string) (string, error) {
	client, err := p.dial(node)
	if err != nil {
		return "", err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", err
	}
	defer session.Close()

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := session.CombinedOutput(cmd)
		done <- result{out: strings.TrimSpace(string(out)), err: err}
	}()

	select {
	case r := <-done:
		return r.out, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *KVMSSHControlPlugin) domain(node *objects.Node) string {
	return node.Name
}

func (p *KVMSSHControlPlugin) virshURI(node *objects.Node) string {
	virtType := node.ControlInfo.SSHVirtType
	if virtType == "" {
		virtType = "qemu"
	}
	return fmt.Sprintf("%s:///system", virtType)
}

func (p *KVMSSHControlPlugin) GetPowerState(ctx context.Context, node *objects.Node) (string, error) {
	out, err := p.run(ctx, node, fmt.Sprintf("virsh -c %s domstate %s", p.virshURI(node), p.domain(node)))
	if err != nil {
		return objects.PowerStateError, err
	}
	switch strings.TrimSpace(out) {
	case "running", "idle", "paused":
		return objects.PowerStateOn, nil
	case "shut off", "crashed":
		return objects.PowerStateOff, nil
	default:
		return objects.PowerStateError, nil
	}
}

func (p *KVMSSHControlPlugin) SetPowerState(ctx context.Context, node *objects.Node, target string) error {
	var cmd string
	switch target {
	case objects.PowerOn, objects.PowerSoftBoot:
		cmd = fmt.Sprintf("virsh -c %s start %s", p.virshURI(node), p.domain(node))
	case objects.PowerOff:
		cmd = fmt.Sprintf("virsh -c %s destroy %s", p.virshURI(node), p.domain(node))
	case objects.PowerSoftOff:
		cmd = fmt.Sprintf("virsh -c %s shutdown %s", p.virshURI(node), p.domain(node))
	case objects.PowerReboot:
		cmd = fmt.Sprintf("virsh -c %s reset %s", p.virshURI(node), p.domain(node))
	default:
		return ErrInvalidType
	}
	_, err := p.run(ctx, node, cmd)
	return err
}

func (p *KVMSSHControlPlugin) GetBootDevice(ctx context.Context, node *objects.Node) (string, error) {
	out, err := p.run(ctx, node, fmt.Sprintf("virsh -c %s dumpxml %s | grep -m1 '<boot dev='", p.virshURI(node), p.domain(node)))
	if err != nil {
		return objects.BootDeviceUnknown, err
	}
	switch {
	case strings.Contains(out, "dev='network'") || strings.Contains(out, `dev="network"`):
		return objects.BootDeviceNet, nil
	case strings.Contains(out, "dev='hd'") || strings.Contains(out, `dev="hd"`):
		return objects.BootDeviceDisk, nil
	case strings.Contains(out, "dev='cdrom'") || strings.Contains(out, `dev="cdrom"`):
		return objects.BootDeviceCDROM, nil
	default:
		return objects.BootDeviceUnknown, nil
	}
}

func (p *KVMSSHControlPlugin) SetBootDevice(ctx context.Context, node *objects.Node, device string) error {
	var dev string
	switch device {
	case objects.BootDeviceNet:
		dev = "network"
	case objects.BootDeviceDisk:
		dev = "hd"
	case objects.BootDeviceCDROM:
		dev = "cdrom"
	default:
		return ErrInvalidChoice
	}
	// virt-xml rewrites the persistent domain definition's <boot dev=.../>
	// entry; the change takes effect on the next start, same semantics as
	// an IPMI boot-device set ahead of a power cycle.
	cmd := fmt.Sprintf("virt-xml %s --edit --boot %s", p.domain(node), dev)
	_, err := p.run(ctx, node, cmd)
	return err
}
