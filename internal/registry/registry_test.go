package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetd/internal/objects"
)

type fakeControl struct{ name string }

func (f *fakeControl) Name() string                  { return f.name }
func (f *fakeControl) Validate(*objects.Node) error   { return nil }
func (f *fakeControl) GetPowerState(context.Context, *objects.Node) (string, error) {
	return objects.PowerStateOn, nil
}
func (f *fakeControl) SetPowerState(context.Context, *objects.Node, string) error { return nil }
func (f *fakeControl) GetBootDevice(context.Context, *objects.Node) (string, error) {
	return objects.BootDeviceNet, nil
}
func (f *fakeControl) SetBootDevice(context.Context, *objects.Node, string) error { return nil }

func TestRegistry_ControlLookupHitAndMiss(t *testing.T) {
	r := New()
	r.RegisterControl(&fakeControl{name: "ipmi"})

	p, err := r.Control("ipmi")
	require.NoError(t, err)
	assert.Equal(t, "ipmi", p.Name())

	_, err = r.Control("openbmc")
	assert.ErrorIs(t, err, ErrPluginNotFound)
}

func TestRegistry_BootAndOSLookupMiss(t *testing.T) {
	r := New()

	_, err := r.Boot("pxe")
	assert.ErrorIs(t, err, ErrPluginNotFound)

	_, err = r.OS("redhat")
	assert.ErrorIs(t, err, ErrPluginNotFound)
}
