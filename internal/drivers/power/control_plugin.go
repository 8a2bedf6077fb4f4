package power

import (
	"context"

	"fleetd/internal/drivers/power/ipmi"
	"fleetd/internal/objects"
	"fleetd/internal/registry"

	"github.com/mitchellh/mapstructure"
)

// IPMIControlPlugin adapts IPMIDriver to the registry.ControlPlugin
// contract, decoding the node's ControlInfo (bmc_address/username/password)
// into the driver's PowerConfig field schema.
type IPMIControlPlugin struct {
	driver *IPMIDriver
}

func NewIPMIControlPlugin() *IPMIControlPlugin {
	return &IPMIControlPlugin{driver: NewIPMIDriver()}
}

func (p *IPMIControlPlugin) Name() string { return "ipmi" }

func (p *IPMIControlPlugin) configFor(node *objects.Node) (*PowerConfig, error) {
	cfg := NewIPMIDriver().Settings()
	if node.ControlInfo.BMCAddress != "" {
		if err := cfg.Set("power_address", node.ControlInfo.BMCAddress); err != nil {
			return nil, err
		}
	}
	if mac, ok := node.PrimaryNic(); ok && mac.MAC != "" {
		if err := cfg.Set("mac_address", mac.MAC); err != nil {
			return nil, err
		}
	}
	if err := cfg.Set("power_user", node.ControlInfo.BMCUsername); err != nil {
		return nil, err
	}
	if err := cfg.Set("power_pass", node.ControlInfo.BMCPassword); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (p *IPMIControlPlugin) Validate(node *objects.Node) error {
	if node.ControlInfo.BMCUsername == "" {
		return ErrFieldNotFound
	}
	_, err := p.configFor(node)
	return err
}

func (p *IPMIControlPlugin) GetPowerState(ctx context.Context, node *objects.Node) (string, error) {
	// IPMIDriver.Queryable() is false: the session-level LAN driver has no
	// chassis-status read wired up (it only drives PowerCtrl), matching the
	// teacher's own driver, which never implemented PowerQuery beyond a
	// stub. Report the error state rather than guess.
	return objects.PowerStateError, nil
}

func (p *IPMIControlPlugin) SetPowerState(ctx context.Context, node *objects.Node, target string) error {
	cfg, err := p.configFor(node)
	if err != nil {
		return err
	}
	switch target {
	case objects.PowerOn, objects.PowerSoftBoot:
		return p.driver.PowerOn(ctx, node.Name, cfg)
	case objects.PowerOff, objects.PowerSoftOff:
		return p.driver.PowerOff(ctx, node.Name, cfg)
	case objects.PowerReboot:
		if err := p.driver.PowerOff(ctx, node.Name, cfg); err != nil {
			return err
		}
		return p.driver.PowerOn(ctx, node.Name, cfg)
	}
	return ErrInvalidType
}

func (p *IPMIControlPlugin) GetBootDevice(ctx context.Context, node *objects.Node) (string, error) {
	return objects.BootDeviceUnknown, nil
}

func (p *IPMIControlPlugin) SetBootDevice(ctx context.Context, node *objects.Node, device string) error {
	cfg, err := p.configFor(node)
	if err != nil {
		return err
	}
	conn, err := p.driver.connFromCfg(ctx, cfg)
	if err != nil {
		return err
	}
	if err := conn.Open(); err != nil {
		return err
	}
	defer conn.Close()
	if err := conn.StartSession(); err != nil {
		return err
	}
	defer conn.EndSession()

	var bootDev uint8
	switch device {
	case objects.BootDeviceNet:
		bootDev = ipmi.IPMIBootDevicePxe
	case objects.BootDeviceDisk:
		bootDev = ipmi.IPMIBootDeviceDisk
	case objects.BootDeviceCDROM:
		bootDev = ipmi.IPMIBootDeviceCDROM
	default:
		return ErrInvalidChoice
	}
	return conn.SetBootDevice(bootDev)
}

// decodeControlInfo is a thin helper (called only from tests) to turn a
// generic kwargs map (as carried over RPC) into a typed ControlInfo.
func decodeControlInfo(kwargs map[string]interface{}) (objects.ControlInfo, error) {
	var ci objects.ControlInfo
	err := mapstructure.Decode(kwargs, &ci)
	return ci, err
}

var _ registry.ControlPlugin = (*IPMIControlPlugin)(nil)
