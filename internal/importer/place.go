package importer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/crate-media/crate/internal/config"
)

// dirMu guards destination directory creation: the existence check and the
// create are not atomic across worker threads.
var dirMu sync.Mutex

func ensureDir(dir string) error {
	dirMu.Lock()
	defer dirMu.Unlock()
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// transfer places src at dst using the configured operation. Re-imports of
// files already inside the library root are moved rather than re-copied.
// On failure any partially written destination is removed along with
// now-empty ancestor directories.
func transfer(src, dst, libRoot string, mode config.TransferMode) error {
	if src == dst {
		return nil
	}
	if err := ensureDir(filepath.Dir(dst)); err != nil {
		return fmt.Errorf("%w: create directory: %v", ErrTransferFailed, err)
	}

	if insideDir(src, libRoot) {
		mode = config.ModeMove
	}

	var err error
	switch mode {
	case config.ModeMove:
		err = moveFile(src, dst)
	case config.ModeLink:
		err = os.Symlink(src, dst)
	case config.ModeHardlink:
		err = os.Link(src, dst)
	case config.ModeReflink:
		// Reflink support depends on the filesystem; fall back to a
		// plain copy when cloning is unavailable.
		err = copyFile(src, dst)
	default:
		err = copyFile(src, dst)
	}

	if err != nil {
		cleanupDestination(dst, libRoot)
		return fmt.Errorf("%w: %s: %v", ErrTransferFailed, mode, err)
	}
	return nil
}

// moveFile renames src to dst, falling back to copy+remove across
// filesystem boundaries.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = srcFile.Close() }()

	dstFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		_ = dstFile.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("copy content: %w", err)
	}
	if err := dstFile.Sync(); err != nil {
		_ = dstFile.Close()
		return fmt.Errorf("sync: %w", err)
	}
	if err := dstFile.Close(); err != nil {
		return err
	}

	if info, err := os.Stat(src); err == nil {
		_ = os.Chtimes(dst, info.ModTime(), info.ModTime())
	}
	return nil
}

// cleanupDestination removes a partially written destination file and any
// ancestor directories the failure left empty, stopping at the library root.
func cleanupDestination(dst, libRoot string) {
	_ = os.Remove(dst)
	pruneEmptyDirs(filepath.Dir(dst), libRoot)
}

// pruneEmptyDirs removes dir and its ancestors while they are empty,
// stopping at (and never removing) stop.
func pruneEmptyDirs(dir, stop string) {
	stop = filepath.Clean(stop)
	for {
		dir = filepath.Clean(dir)
		if dir == stop || !insideDir(dir, stop) {
			return
		}
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
