package dao

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/Skryldev/people/config"
	"github.com/Skryldev/people/db"
	"github.com/Skryldev/people/internal/errors"
)

// Options carries what the backends need to open. Only the fields of the
// selected kind are read.
type Options struct {
	// DataDir roots the file, serial and sql photo layouts.
	DataDir string
	SQL     config.Database
	ORM     config.Database
	Redis   config.Redis
	Logger  *slog.Logger
	// Hooks are attached to the SQL backend's pool.
	Hooks []db.Hook
}

// FilePaths returns the data file and photo folder of the file backend.
func (o Options) FilePaths() (data, photos string) {
	dir := filepath.Join(o.DataDir, "file")
	return filepath.Join(dir, "people.tsv"), filepath.Join(dir, "photos")
}

// SerialPath returns the stream file of the serial backend.
func (o Options) SerialPath() string {
	return filepath.Join(o.DataDir, "serial", "people.yaml")
}

// SQLPhotoDir returns the photo folder of the sql backend.
func (o Options) SQLPhotoDir() string {
	return filepath.Join(o.DataDir, "sql", "photos")
}

// Open returns the backend for kind. The caller owns the store and must
// Close it.
func Open(ctx context.Context, kind Kind, opts Options) (Store, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	switch kind {
	case KindList:
		return NewListStore(), nil
	case KindMap:
		return NewMapStore(), nil
	case KindFile:
		data, photos := opts.FilePaths()
		return NewFileStore(data, photos)
	case KindSerial:
		return NewSerialStore(opts.SerialPath())
	case KindSQL:
		photos, err := NewPhotoStore(opts.SQLPhotoDir())
		if err != nil {
			return nil, err
		}
		d, err := db.Connect(ctx, opts.SQL, opts.Hooks...)
		if err != nil {
			return nil, errors.Wrap(err, "sql store")
		}
		return NewSQLStore(d, photos), nil
	case KindORM:
		return OpenORMStore(ctx, opts.ORM, opts.Logger)
	case KindRedis:
		return OpenRedisStore(ctx, opts.Redis)
	default:
		return nil, errors.Wrapf(ErrUnknownKind, "%q", kind)
	}
}
