package dao

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/people/internal/errors"
	"github.com/Skryldev/people/models"
)

func TestFileStore_DataWriteFailureLeavesPhotos(t *testing.T) {
	dir := t.TempDir()
	photoDir := filepath.Join(dir, "photos")
	s, err := NewFileStore(filepath.Join(dir, "people.tsv"), photoDir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, &models.Person{NIF: "87654321X", Photo: []byte("old")}))

	errDisk := errors.New("disk full")
	s.writeFile = func(string, []byte, os.FileMode) error { return errDisk }

	err = s.Insert(ctx, &models.Person{NIF: "12345678Z", Photo: []byte("new")})
	assert.ErrorIs(t, err, errDisk)
	assert.NoFileExists(t, filepath.Join(photoDir, "12345678Z.png"))

	err = s.Update(ctx, &models.Person{NIF: "87654321X", Photo: []byte("new")})
	assert.ErrorIs(t, err, errDisk)
	photo, err := os.ReadFile(filepath.Join(photoDir, "87654321X.png"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(photo))

	err = s.Update(ctx, &models.Person{NIF: "87654321X"})
	assert.ErrorIs(t, err, errDisk)
	assert.FileExists(t, filepath.Join(photoDir, "87654321X.png"))
}
