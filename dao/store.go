// Package dao holds the person stores. Every backend implements Store with
// the same observable behaviour, so callers pick one by Kind and never branch
// on it again.
package dao

import (
	"context"
	"strings"

	"github.com/Skryldev/people/internal/errors"
	"github.com/Skryldev/people/models"
)

var (
	// ErrDuplicate is returned by Insert when the NIF is already stored.
	ErrDuplicate = errors.New("dao: person already stored")

	// ErrNotFound is returned by Update when the NIF is not stored.
	ErrNotFound = errors.New("dao: person not stored")

	// ErrUnknownKind is returned by ParseKind and Open for unsupported kinds.
	ErrUnknownKind = errors.New("dao: unknown storage kind")
)

// Store is the storage contract shared by every backend.
type Store interface {
	// Read returns (nil, nil) when the NIF is not stored.
	Read(ctx context.Context, nif string) (*models.Person, error)
	ReadAll(ctx context.Context) ([]*models.Person, error)
	// Insert returns ErrDuplicate when the NIF is already stored.
	Insert(ctx context.Context, p *models.Person) error
	// Update replaces every field of the stored record but the NIF and
	// returns ErrNotFound when the NIF is not stored.
	Update(ctx context.Context, p *models.Person) error
	// Delete is a no-op when the NIF is not stored.
	Delete(ctx context.Context, nif string) error
	DeleteAll(ctx context.Context) error
	Close() error
}

// Counter is implemented by stores that count without loading every record.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Kind names a backend.
type Kind string

const (
	KindList   Kind = "list"
	KindMap    Kind = "map"
	KindFile   Kind = "file"
	KindSerial Kind = "serial"
	KindSQL    Kind = "sql"
	KindORM    Kind = "orm"
	KindRedis  Kind = "redis"
)

// Kinds lists every supported backend in menu order.
func Kinds() []Kind {
	return []Kind{KindList, KindMap, KindFile, KindSerial, KindSQL, KindORM, KindRedis}
}

// ParseKind accepts a kind name in any case.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownKind, "%q", s)
}

func (k Kind) String() string { return string(k) }
