package dao

import (
	"os"
	"path/filepath"

	"github.com/Skryldev/people/internal/errors"
)

// writeFileAtomic replaces path with data so readers see either the old or
// the new content, never a partial write.
func writeFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "mkdir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return errors.Wrap(err, "create temp")
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return errors.Wrap(err, "write temp")
	}
	if err = tmp.Sync(); err != nil {
		return errors.Wrap(err, "fsync temp")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp")
	}
	if err = os.Chmod(tmpPath, perm); err != nil {
		return errors.Wrap(err, "chmod temp")
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return errors.Wrapf(err, "rename to %s", path)
	}
	return nil
}

// ensureFile creates path and its folder when missing, leaving existing
// content alone.
func ensureFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "mkdir %s", filepath.Dir(path))
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	return f.Close()
}
