package artifacts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{TftpDir: filepath.Join(dir, "tftp"), InstallDir: filepath.Join(dir, "install")}
}

func TestWriteNodeBoot_SymlinksIntoImageTree(t *testing.T) {
	c := newTestConfig(t)

	require.NoError(t, c.WriteNodeBoot("node0", "centos", "7.3", "x86_64"))

	vmlinuz := filepath.Join(c.TftpDir, "nodes", "node0", "vmlinuz")
	target, err := os.Readlink(vmlinuz)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(c.TftpDir, "images", "centos7.3", "x86_64", "vmlinuz"), target)

	initrd := filepath.Join(c.TftpDir, "nodes", "node0", "initrd.img")
	_, err = os.Readlink(initrd)
	require.NoError(t, err)
}

func TestWriteNodeBoot_ReplacesExistingSymlink(t *testing.T) {
	c := newTestConfig(t)

	require.NoError(t, c.WriteNodeBoot("node0", "centos", "7.3", "x86_64"))
	require.NoError(t, c.WriteNodeBoot("node0", "ubuntu", "20.04", "x86_64"))

	vmlinuz := filepath.Join(c.TftpDir, "nodes", "node0", "vmlinuz")
	target, err := os.Readlink(vmlinuz)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(c.TftpDir, "images", "ubuntu20.04", "x86_64", "vmlinuz"), target)
}

func TestWritePXEConfig_WritesConfigAndMACSymlink(t *testing.T) {
	c := newTestConfig(t)

	require.NoError(t, c.WritePXEConfig("node0", "42:87:0a:05:00:00", "DEFAULT install\n"))

	cfgPath := filepath.Join(c.TftpDir, "pxelinux.cfg", "node0", "config")
	content, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "DEFAULT install\n", string(content))

	linkPath := filepath.Join(c.TftpDir, "pxelinux.cfg", "01-42:87:0a:05:00:00")
	target, err := os.Readlink(linkPath)
	require.NoError(t, err)
	assert.Equal(t, cfgPath, target)
}

func TestCleanPXE_RemovesArtifactsAndEmptyParents(t *testing.T) {
	c := newTestConfig(t)

	require.NoError(t, c.WriteNodeBoot("node0", "centos", "7.3", "x86_64"))
	require.NoError(t, c.WritePXEConfig("node0", "42:87:0a:05:00:00", "DEFAULT install\n"))

	require.NoError(t, c.CleanPXE("node0", "42:87:0a:05:00:00"))

	_, err := os.Lstat(filepath.Join(c.TftpDir, "nodes", "node0"))
	assert.True(t, os.IsNotExist(err), "node dir should be removed once empty")

	_, err = os.Lstat(filepath.Join(c.TftpDir, "pxelinux.cfg", "node0"))
	assert.True(t, os.IsNotExist(err), "pxelinux.cfg/<node> dir should be removed once empty")

	_, err = os.Lstat(filepath.Join(c.TftpDir, "pxelinux.cfg", "01-42:87:0a:05:00:00"))
	assert.True(t, os.IsNotExist(err), "mac symlink should be removed")
}

func TestCleanPXE_IdempotentOnAlreadyMissingArtifacts(t *testing.T) {
	c := newTestConfig(t)
	assert.NoError(t, c.CleanPXE("ghost", "42:87:0a:05:00:00"))
}

func TestTreeExists(t *testing.T) {
	c := newTestConfig(t)
	assert.False(t, c.TreeExists("centos", "7.3", "x86_64"))

	require.NoError(t, os.MkdirAll(c.imagesDir("centos", "7.3", "x86_64"), 0o755))
	assert.True(t, c.TreeExists("centos", "7.3", "x86_64"))
}

func TestWritePetitbootConfig_ThenClean(t *testing.T) {
	c := newTestConfig(t)

	require.NoError(t, c.WritePetitbootConfig("node0", "install config"))
	path := c.petitbootPath("node0")
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "install config", string(content))

	require.NoError(t, c.CleanPetitboot("node0"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
