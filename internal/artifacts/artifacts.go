// Package artifacts owns the TFTP/HTTP boot-artifact layout the
// provisioning pipeline (C8) writes per node (§4.10, §6 "On-disk layout").
// It is new: the teacher has no on-disk artifact writer of this shape, but
// its path-join convention (internal/config.GetTftpPath) and the symlink
// lifecycle tftp-relay code manages elsewhere in rackd_spike inform the
// create/clean-up-empty-parents idiom used here.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config carries the on-disk roots every artifact path is resolved against.
type Config struct {
	TftpDir    string
	InstallDir string
}

func (c Config) imagesDir(distro, ver, arch string) string {
	return filepath.Join(c.TftpDir, "images", fmt.Sprintf("%s%s", distro, ver), arch)
}

func (c Config) nodeDir(name string) string {
	return filepath.Join(c.TftpDir, "nodes", name)
}

func (c Config) pxeCfgNodeDir(name string) string {
	return filepath.Join(c.TftpDir, "pxelinux.cfg", name)
}

func (c Config) pxeCfgConfigPath(name string) string {
	return filepath.Join(c.pxeCfgNodeDir(name), "config")
}

func (c Config) pxeCfgMACLink(mac string) string {
	return filepath.Join(c.TftpDir, "pxelinux.cfg", "01-"+mac)
}

func (c Config) autoinstPath(name string) string {
	return filepath.Join(c.InstallDir, "autoinst", name)
}

func (c Config) petitbootPath(name string) string {
	return filepath.Join(c.InstallDir, "boot", name)
}

// relSymlink creates (or replaces) a symlink at linkPath pointing at target,
// making parent directories as needed. Existing links/files at linkPath are
// removed first so re-provisioning is idempotent (§8 round-trip property).
func relSymlink(target, linkPath string) error {
	if err := os.MkdirAll(filepath.Dir(linkPath), 0o755); err != nil {
		return err
	}
	if err := os.Remove(linkPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Symlink(target, linkPath)
}

// WriteNodeBoot symlinks <tftp>/nodes/<name>/{vmlinuz,initrd.img} into the
// shared OS tree under <tftp>/images/<distro><ver>/<arch>/.
func (c Config) WriteNodeBoot(name, distro, ver, arch string) error {
	images := c.imagesDir(distro, ver, arch)
	nodeDir := c.nodeDir(name)
	if err := relSymlink(filepath.Join(images, "vmlinuz"), filepath.Join(nodeDir, "vmlinuz")); err != nil {
		return err
	}
	return relSymlink(filepath.Join(images, "initrd.img"), filepath.Join(nodeDir, "initrd.img"))
}

// WritePXEConfig writes the per-node pxelinux config and the 01-<mac>
// symlink that the loader actually requests (§4.10 "Artifact layout per
// node").
func (c Config) WritePXEConfig(name, mac, content string) error {
	cfgPath := c.pxeCfgConfigPath(name)
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		return err
	}
	return relSymlink(cfgPath, c.pxeCfgMACLink(mac))
}

// WritePetitbootConfig writes the per-node petitboot config served over
// HTTP from /install/boot/<name> (§4.10, option 209).
func (c Config) WritePetitbootConfig(name, content string) error {
	path := c.petitbootPath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// rmEmptyParents removes dir and walks upward removing now-empty parents,
// stopping at stop (exclusive) or the first non-empty directory.
func rmEmptyParents(dir, stop string) {
	for dir != stop && dir != "." && dir != "/" {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// CleanPXE removes a node's TFTP config, symlinks, and then the now-empty
// parent directories (§4.10 "Cleanup removes all three, then removes the
// now-empty parent directories if possible").
func (c Config) CleanPXE(name, mac string) error {
	nodeDir := c.nodeDir(name)
	for _, f := range []string{"vmlinuz", "initrd.img"} {
		if err := os.Remove(filepath.Join(nodeDir, f)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	rmEmptyParents(nodeDir, filepath.Join(c.TftpDir, "nodes"))

	cfgPath := c.pxeCfgConfigPath(name)
	if err := os.Remove(cfgPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	rmEmptyParents(filepath.Dir(cfgPath), filepath.Join(c.TftpDir, "pxelinux.cfg"))

	if err := os.Remove(c.pxeCfgMACLink(mac)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// CleanPetitboot removes a node's petitboot config.
func (c Config) CleanPetitboot(name string) error {
	err := os.Remove(c.petitbootPath(name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// CleanAutoinst removes a node's rendered kickstart/preseed file.
func (c Config) CleanAutoinst(name string) error {
	err := os.Remove(c.autoinstPath(name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// TreeExists reports whether the extracted OS tree for (distro, ver, arch)
// is present on disk (§8 invariant 3).
func (c Config) TreeExists(distro, ver, arch string) bool {
	info, err := os.Stat(c.imagesDir(distro, ver, arch))
	return err == nil && info.IsDir()
}
