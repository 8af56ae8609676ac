package dao

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Skryldev/people/internal/errors"
)

// PhotoStore keeps one PNG file per person, named after the NIF. Stores that
// cannot hold bytes inline persist only the file reference.
type PhotoStore struct {
	dir string
}

// NewPhotoStore creates dir when missing.
func NewPhotoStore(dir string) (*PhotoStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create photo folder %s", dir)
	}
	return &PhotoStore{dir: dir}, nil
}

// Dir returns the folder holding the photos.
func (s *PhotoStore) Dir() string { return s.dir }

// Ref is the reference stored for nif's photo.
func (s *PhotoStore) Ref(nif string) string { return nif + ".png" }

// Save writes data as nif's photo and returns its reference. Empty data
// removes any previous photo and returns the empty reference.
func (s *PhotoStore) Save(nif string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", s.Remove(nif)
	}
	ref := s.Ref(nif)
	if err := writeFileAtomic(filepath.Join(s.dir, ref), data, 0o644); err != nil {
		return "", errors.Wrapf(err, "save photo %s", ref)
	}
	return ref, nil
}

// Load returns the bytes behind ref. An empty reference or a missing file
// yields no photo.
func (s *PhotoStore) Load(ref string) ([]byte, error) {
	if ref == "" {
		return nil, nil
	}
	if filepath.Base(ref) != ref {
		return nil, errors.Errorf("invalid photo reference %q", ref)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, ref))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load photo %s", ref)
	}
	return data, nil
}

// Remove deletes nif's photo if there is one.
func (s *PhotoStore) Remove(nif string) error {
	err := os.Remove(filepath.Join(s.dir, s.Ref(nif)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrapf(err, "remove photo of %s", nif)
	}
	return nil
}

// Clear deletes every photo in the folder.
func (s *PhotoStore) Clear() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return errors.Wrapf(err, "list photo folder %s", s.dir)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".png") {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errors.Wrapf(err, "remove photo %s", e.Name())
		}
	}
	return nil
}
