package osplugin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetd/internal/objects"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{InstallDir: t.TempDir(), APIHostIP: "10.0.0.1", APIPort: 8080, Timezone: "UTC"}
}

func TestRedhatOSPlugin_BuildOSBootStr(t *testing.T) {
	p := NewRedhatOSPlugin(testConfig(t), "@core\nvim")
	node := &objects.Node{Name: "node0"}
	img := &objects.OSImage{Distro: "centos", Ver: "7.3", Arch: "x86_64"}

	cmdline, err := p.BuildOSBootStr(node, img)
	require.NoError(t, err)
	assert.Equal(t, "inst.ks=http://10.0.0.1/install/autoinst/node0 inst.repo=http://10.0.0.1/install/centos7.3/x86_64", cmdline)
}

func TestRedhatOSPlugin_BuildTemplateWritesKickstartThenClean(t *testing.T) {
	cfg := testConfig(t)
	p := NewRedhatOSPlugin(cfg, "@core\nvim")
	node := &objects.Node{Name: "node0"}
	img := &objects.OSImage{Distro: "centos", Ver: "7.3", Arch: "x86_64"}

	require.NoError(t, p.BuildTemplate(node, img, "$5$salt$hash"))

	path := filepath.Join(cfg.InstallDir, "autoinst", "node0")
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "rootpw --iscrypted $5$salt$hash")
	assert.Contains(t, string(content), "timezone UTC")

	require.NoError(t, p.Clean(node))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Clean is idempotent (§8 round-trip property).
	assert.NoError(t, p.Clean(node))
}

func TestRedhatOSPlugin_ValidateRequiresDistroVerArch(t *testing.T) {
	p := NewRedhatOSPlugin(testConfig(t), "")
	node := &objects.Node{Name: "node0"}

	assert.Error(t, p.Validate(node, &objects.OSImage{Distro: "centos"}))
	assert.NoError(t, p.Validate(node, &objects.OSImage{Distro: "centos", Ver: "7.3", Arch: "x86_64"}))
}

func TestUbuntuOSPlugin_BuildOSBootStr(t *testing.T) {
	p := NewUbuntuOSPlugin(testConfig(t), "vim")
	node := &objects.Node{Name: "node1"}
	img := &objects.OSImage{Distro: "ubuntu", Ver: "20.04", Arch: "x86_64"}

	cmdline, err := p.BuildOSBootStr(node, img)
	require.NoError(t, err)
	assert.Equal(t, "auto=true priority=critical url=http://10.0.0.1/install/autoinst/node1", cmdline)
}

func TestUbuntuOSPlugin_BuildTemplateWritesPreseed(t *testing.T) {
	cfg := testConfig(t)
	p := NewUbuntuOSPlugin(cfg, "vim")
	node := &objects.Node{Name: "node1"}
	img := &objects.OSImage{Distro: "ubuntu", Ver: "20.04", Arch: "x86_64"}

	require.NoError(t, p.BuildTemplate(node, img, "$6$salt$hash"))

	path := filepath.Join(cfg.InstallDir, "autoinst", "node1")
	assert.FileExists(t, path)
}
