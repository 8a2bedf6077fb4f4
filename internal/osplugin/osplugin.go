package osplugin

import (
	"fmt"
	"os"
	"path/filepath"

	"fleetd/internal/objects"
	"fleetd/internal/registry"
)

var (
	_ registry.OSPlugin = (*RedhatOSPlugin)(nil)
	_ registry.OSPlugin = (*UbuntuOSPlugin)(nil)
)

// Config carries the install-tree layout and API address every OS plugin
// needs to compose kernel command lines and render autoinst files — the
// Go equivalent of original_source's CONF.deploy.install_dir/CONF.api.*
// oslo_config lookups, threaded explicitly instead of read from a global.
type Config struct {
	InstallDir string
	APIHostIP  string
	APIPort    int
	Timezone   string
}

func (c Config) autoinstDir() string {
	return filepath.Join(c.InstallDir, "autoinst")
}

func (c Config) scriptsDir() string {
	return filepath.Join(c.InstallDir, "scripts")
}

func (c Config) autoinstPath(node *objects.Node) string {
	return filepath.Join(c.autoinstDir(), node.Name)
}

func (c Config) mirror(osimage *objects.OSImage) string {
	return fmt.Sprintf("%s%s/%s", osimage.Distro, osimage.Ver, osimage.Arch)
}

// ensureDirs creates the autoinst/scripts directories on first use, mirroring
// OSImageInterface._ensure's fileutils.ensure_tree calls.
func (c Config) ensureDirs() error {
	if err := os.MkdirAll(c.autoinstDir(), 0o755); err != nil {
		return err
	}
	return os.MkdirAll(c.scriptsDir(), 0o755)
}

func writeAutoinst(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

// cleanAutoinst removes a node's rendered autoinst file; absent is not an
// error since clean() may run twice idempotently (§8 round-trip property).
func cleanAutoinst(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
