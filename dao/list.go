package dao

import (
	"context"
	"sync"

	"github.com/Skryldev/people/models"
)

// ListStore keeps people in insertion order in a slice. Lookups are linear.
type ListStore struct {
	mu     sync.Mutex
	people []*models.Person
}

func NewListStore() *ListStore { return &ListStore{} }

func (s *ListStore) Read(_ context.Context, nif string) (*models.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(nif); i >= 0 {
		return s.people[i].Clone(), nil
	}
	return nil, nil
}

func (s *ListStore) ReadAll(context.Context) ([]*models.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Person, len(s.people))
	for i, p := range s.people {
		out[i] = p.Clone()
	}
	return out, nil
}

func (s *ListStore) Insert(_ context.Context, p *models.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index(p.NIF) >= 0 {
		return ErrDuplicate
	}
	s.people = append(s.people, p.Clone())
	return nil
}

func (s *ListStore) Update(_ context.Context, p *models.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(p.NIF)
	if i < 0 {
		return ErrNotFound
	}
	s.people[i] = p.Clone()
	return nil
}

func (s *ListStore) Delete(_ context.Context, nif string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(nif); i >= 0 {
		s.people = append(s.people[:i], s.people[i+1:]...)
	}
	return nil
}

func (s *ListStore) DeleteAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.people = nil
	return nil
}

func (s *ListStore) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.people), nil
}

func (s *ListStore) Close() error { return nil }

func (s *ListStore) index(nif string) int {
	for i, p := range s.people {
		if p.NIF == nif {
			return i
		}
	}
	return -1
}

var (
	_ Store   = (*ListStore)(nil)
	_ Counter = (*ListStore)(nil)
)
