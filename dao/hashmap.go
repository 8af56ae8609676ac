package dao

import (
	"context"
	"sort"

	"github.com/patrickmn/go-cache"

	"github.com/Skryldev/people/models"
)

// MapStore indexes people by NIF in a go-cache instance with expiration
// disabled. go-cache is internally synchronized, and Add and Replace check
// presence atomically.
type MapStore struct {
	c *cache.Cache
}

func NewMapStore() *MapStore {
	return &MapStore{c: cache.New(cache.NoExpiration, 0)}
}

func (s *MapStore) Read(_ context.Context, nif string) (*models.Person, error) {
	v, ok := s.c.Get(nif)
	if !ok {
		return nil, nil
	}
	return v.(*models.Person).Clone(), nil
}

// ReadAll returns people sorted by NIF.
func (s *MapStore) ReadAll(context.Context) ([]*models.Person, error) {
	items := s.c.Items()
	out := make([]*models.Person, 0, len(items))
	for _, it := range items {
		out = append(out, it.Object.(*models.Person).Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NIF < out[j].NIF })
	return out, nil
}

func (s *MapStore) Insert(_ context.Context, p *models.Person) error {
	if err := s.c.Add(p.NIF, p.Clone(), cache.NoExpiration); err != nil {
		return ErrDuplicate
	}
	return nil
}

func (s *MapStore) Update(_ context.Context, p *models.Person) error {
	if err := s.c.Replace(p.NIF, p.Clone(), cache.NoExpiration); err != nil {
		return ErrNotFound
	}
	return nil
}

func (s *MapStore) Delete(_ context.Context, nif string) error {
	s.c.Delete(nif)
	return nil
}

func (s *MapStore) DeleteAll(context.Context) error {
	s.c.Flush()
	return nil
}

func (s *MapStore) Count(context.Context) (int, error) {
	return s.c.ItemCount(), nil
}

func (s *MapStore) Close() error { return nil }

var (
	_ Store   = (*MapStore)(nil)
	_ Counter = (*MapStore)(nil)
)
