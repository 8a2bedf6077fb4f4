package power

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetd/internal/objects"
)

func ipmiNode() *objects.Node {
	n := &objects.Node{
		Name: "node0", Mgt: "ipmi",
		ControlInfo: objects.ControlInfo{
			Kind: "ipmi", BMCAddress: "10.0.0.20", BMCUsername: "admin", BMCPassword: "secret",
		},
	}
	n.Nics = []objects.Nic{{UUID: "node0-uuid", MAC: "42:87:0a:05:00:00", Primary: true, IP: "10.0.0.5"}}
	return n
}

func TestIPMIControlPlugin_ValidateRequiresUsername(t *testing.T) {
	p := NewIPMIControlPlugin()

	node := ipmiNode()
	node.ControlInfo.BMCUsername = ""
	assert.ErrorIs(t, p.Validate(node), ErrFieldNotFound)

	assert.NoError(t, p.Validate(ipmiNode()))
}

func TestIPMIControlPlugin_ConfigForPopulatesBMCAndMACFields(t *testing.T) {
	p := NewIPMIControlPlugin()
	node := ipmiNode()

	cfg, err := p.configFor(node)
	require.NoError(t, err)

	addr, err := cfg.Get("power_address")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.20", addr)

	mac, err := cfg.GetMAC("mac_address")
	require.NoError(t, err)
	assert.Equal(t, "42:87:0a:05:00:00", mac.String())

	user, err := cfg.Get("power_user")
	require.NoError(t, err)
	assert.Equal(t, "admin", user)
}

func TestIPMIControlPlugin_SetPowerStateRejectsUnknownTarget(t *testing.T) {
	p := NewIPMIControlPlugin()
	node := ipmiNode()

	err := p.SetPowerState(context.Background(), node, "frobnicate")
	assert.ErrorIs(t, err, ErrInvalidType)
}

func TestIPMIControlPlugin_GetBootDeviceReportsUnknown(t *testing.T) {
	p := NewIPMIControlPlugin()
	state, err := p.GetBootDevice(context.Background(), ipmiNode())
	require.NoError(t, err)
	assert.Equal(t, objects.BootDeviceUnknown, state)
}

func TestIPMIControlPlugin_GetPowerStateReportsError(t *testing.T) {
	p := NewIPMIControlPlugin()
	state, err := p.GetPowerState(context.Background(), ipmiNode())
	require.NoError(t, err)
	assert.Equal(t, objects.PowerStateError, state)
}

func TestDecodeControlInfo_DecodesBMCFields(t *testing.T) {
	ci, err := decodeControlInfo(map[string]interface{}{
		"kind":         "ipmi",
		"bmc_address":  "10.0.0.20",
		"bmc_username": "admin",
		"bmc_password": "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "ipmi", ci.Kind)
	assert.Equal(t, "10.0.0.20", ci.BMCAddress)
	assert.Equal(t, "admin", ci.BMCUsername)
}
