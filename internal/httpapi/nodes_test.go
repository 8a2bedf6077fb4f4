package httpapi

import (
	"testing"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetd/internal/objects"
)

func decodePatch(t *testing.T, doc string) jsonpatch.Patch {
	t.Helper()
	p, err := jsonpatch.DecodePatch([]byte(doc))
	require.NoError(t, err)
	return p
}

func TestApplyPatch_ReplaceArchTouchesOnlyThatField(t *testing.T) {
	n := &objects.Node{Name: "node1", Mgt: "ipmi", Netboot: "pxe", Arch: "x86_64"}
	n.ClearChanges()

	patch := decodePatch(t, `[{"op":"replace","path":"/arch","value":"aarch64"}]`)
	out, err := applyPatch(n, patch)
	require.NoError(t, err)

	assert.Equal(t, "aarch64", out.Arch)
	assert.Equal(t, []string{"arch"}, out.ChangedFields())
}

func TestApplyPatch_NoopPatchTouchesNothing(t *testing.T) {
	n := &objects.Node{Name: "node1", Mgt: "ipmi", Netboot: "pxe", Arch: "x86_64"}
	n.ClearChanges()

	patch := decodePatch(t, `[{"op":"replace","path":"/mgt","value":"ipmi"}]`)
	out, err := applyPatch(n, patch)
	require.NoError(t, err)

	assert.Empty(t, out.ChangedFields())
}

func TestApplyPatch_ReplaceControlInfoTouchesNestedField(t *testing.T) {
	n := &objects.Node{
		Name: "node1", Mgt: "ipmi", Netboot: "pxe",
		ControlInfo: objects.ControlInfo{Kind: "ipmi", BMCAddress: "10.0.0.1"},
	}
	n.ClearChanges()

	patch := decodePatch(t, `[{"op":"replace","path":"/control_info/bmc_address","value":"10.0.0.2"}]`)
	out, err := applyPatch(n, patch)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.2", out.ControlInfo.BMCAddress)
	assert.Contains(t, out.ChangedFields(), "control_info")
}

func TestApplyPatch_InvalidPathErrors(t *testing.T) {
	n := &objects.Node{Name: "node1", Mgt: "ipmi", Netboot: "pxe"}
	patch := decodePatch(t, `[{"op":"replace","path":"/nonexistent/field","value":"x"}]`)
	_, err := applyPatch(n, patch)
	assert.Error(t, err)
}

func TestNamesRequest_Names(t *testing.T) {
	req := namesRequest{Nodes: []nameWire{{Name: "a"}, {Name: "b"}}}
	assert.Equal(t, []string{"a", "b"}, req.names())
}

func TestNodeCreateWire_ToNode(t *testing.T) {
	w := nodeCreateWire{
		Name: "node1", Mgt: "ipmi", Netboot: "pxe",
		NicsInfo: nicsInfoWire{Nics: []nicWire{{MAC: "aa:bb:cc:dd:ee:ff", Primary: true}}},
	}
	n := w.toNode()

	assert.Equal(t, "node1", n.Name)
	require.Len(t, n.Nics, 1)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", n.Nics[0].MAC)
	assert.NotEmpty(t, n.Nics[0].UUID)
	assert.ElementsMatch(t, []string{"mgt", "netboot", "arch", "type", "control_info", "console_info"}, n.ChangedFields())
}
