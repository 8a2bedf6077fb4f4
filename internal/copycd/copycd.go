// Package copycd is the external-collaborator shim for the ISO mount/
// extract tool (§1 "Deliberately OUT OF SCOPE... the ISO mount/extract
// copycd tool"): fleetd only needs EnsureOSImage's contract — given an
// OSImage, guarantee its on-disk tree exists, fetching and extracting the
// backing ISO if not, serialized cluster-wide by an inter-process file lock
// keyed on the image name (§4.7 step 3, §5 "serialized cluster-wide by an
// inter-process file lock").
//
// Grounded on github.com/gofrs/flock, the same inter-process advisory lock
// used by other_examples' buildkit daemon.go to serialize a single-writer
// resource across processes — the exact shape copycd.EnsureOSImage needs
// for concurrent conductors racing to import the same image.
package copycd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// Config carries the paths and external command this shim drives.
type Config struct {
	InstallDir string
	APIHostIP  string
	// Command is the copycd binary invoked to extract an ISO into
	// InstallDir/<distro><ver>/<arch>; left empty in tests, where callers
	// stub extraction by pre-populating the tree.
	Command string
	Timeout time.Duration
}

func (c Config) lockPath(name string) string {
	return filepath.Join(c.InstallDir, ".locks", name+".lock")
}

func (c Config) isoPath(origName string) string {
	return filepath.Join(c.InstallDir, "iso", origName)
}

func (c Config) treePath(distro, ver, arch string) string {
	return filepath.Join(c.InstallDir, fmt.Sprintf("%s%s", distro, ver), arch)
}

// EnsureOSImage guarantees the on-disk tree for (distro, ver, arch) exists,
// fetching the backed-up ISO and re-running copycd if it does not. The
// whole operation is serialized cluster-wide via flock so two conductors
// racing to provision the same never-before-seen image don't double-import.
func (c Config) EnsureOSImage(ctx context.Context, name, origName, distro, ver, arch string) (string, error) {
	tree := c.treePath(distro, ver, arch)
	if info, err := os.Stat(tree); err == nil && info.IsDir() {
		return tree, nil
	}

	if err := os.MkdirAll(filepath.Dir(c.lockPath(name)), 0o755); err != nil {
		return "", err
	}
	fl := flock.New(c.lockPath(name))
	lockCtx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()
	locked, err := fl.TryLockContext(lockCtx, 200*time.Millisecond)
	if err != nil {
		return "", err
	}
	if !locked {
		return "", fmt.Errorf("copycd: could not acquire import lock for %s", name)
	}
	defer fl.Unlock()

	// Re-check after acquiring the lock: another process may have finished
	// the import while this one was waiting.
	if info, err := os.Stat(tree); err == nil && info.IsDir() {
		return tree, nil
	}

	if err := c.fetchISO(ctx, origName); err != nil {
		return "", err
	}
	if err := c.runCopycd(ctx, origName, tree); err != nil {
		return "", err
	}
	return tree, nil
}

func (c Config) fetchISO(ctx context.Context, origName string) error {
	dest := c.isoPath(origName)
	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	url := fmt.Sprintf("http://%s/install/iso/%s", c.APIHostIP, origName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("copycd: fetch %s: %s", url, resp.Status)
	}

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, resp.Body)
	return err
}

func (c Config) runCopycd(ctx context.Context, origName, tree string) error {
	if c.Command == "" {
		return fmt.Errorf("copycd: no extraction command configured")
	}
	if err := os.MkdirAll(tree, 0o755); err != nil {
		return err
	}
	cctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()
	cmd := exec.CommandContext(cctx, c.Command, c.isoPath(origName), tree)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("copycd: %w: %s", err, out)
	}
	return nil
}
