package dao

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Skryldev/people/internal/errors"
	"github.com/Skryldev/people/models"
)

// SerialStore keeps every person as one YAML document in a single stream
// file, photo included. Reading stops at io.EOF, which is the normal end of
// the stream; an empty file is an empty set.
type SerialStore struct {
	mu   sync.Mutex
	path string
}

// serialRecord is the on-disk form of a person.
type serialRecord struct {
	NIF         string `yaml:"nif"`
	Name        string `yaml:"name,omitempty"`
	DateOfBirth string `yaml:"dateOfBirth,omitempty"`
	Photo       string `yaml:"photo,omitempty"`
	Email       string `yaml:"email,omitempty"`
	PhoneNumber string `yaml:"phoneNumber,omitempty"`
	PostalCode  string `yaml:"postalCode,omitempty"`
}

// NewSerialStore creates the stream file when missing.
func NewSerialStore(path string) (*SerialStore, error) {
	if err := ensureFile(path); err != nil {
		return nil, err
	}
	return &SerialStore{path: path}, nil
}

func (s *SerialStore) Read(_ context.Context, nif string) (*models.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	people, err := s.load()
	if err != nil {
		return nil, err
	}
	if i := indexOf(people, nif); i >= 0 {
		return people[i], nil
	}
	return nil, nil
}

func (s *SerialStore) ReadAll(context.Context) ([]*models.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *SerialStore) Insert(_ context.Context, p *models.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	people, err := s.load()
	if err != nil {
		return err
	}
	if indexOf(people, p.NIF) >= 0 {
		return ErrDuplicate
	}
	return s.save(append(people, p))
}

// Update removes the stored record and appends the new one, so an updated
// person moves to the end of the stream.
func (s *SerialStore) Update(_ context.Context, p *models.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	people, err := s.load()
	if err != nil {
		return err
	}
	i := indexOf(people, p.NIF)
	if i < 0 {
		return ErrNotFound
	}
	people = append(people[:i], people[i+1:]...)
	return s.save(append(people, p))
}

func (s *SerialStore) Delete(_ context.Context, nif string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	people, err := s.load()
	if err != nil {
		return err
	}
	i := indexOf(people, nif)
	if i < 0 {
		return nil
	}
	return s.save(append(people[:i], people[i+1:]...))
}

// DeleteAll truncates the stream.
func (s *SerialStore) DeleteAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Wrapf(os.Truncate(s.path, 0), "truncate %s", s.path)
}

func (s *SerialStore) Close() error { return nil }

func (s *SerialStore) load() ([]*models.Person, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", s.path)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	var people []*models.Person
	for {
		var rec serialRecord
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return people, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "decode %s record %d", s.path, len(people)+1)
		}
		p, err := rec.person()
		if err != nil {
			return nil, errors.Wrapf(err, "%s record %d", s.path, len(people)+1)
		}
		people = append(people, p)
	}
}

func (s *SerialStore) save(people []*models.Person) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	for _, p := range people {
		if err := enc.Encode(newSerialRecord(p)); err != nil {
			return errors.Wrapf(err, "encode %s", p.NIF)
		}
	}
	if err := enc.Close(); err != nil {
		return errors.Wrap(err, "encode people")
	}
	return errors.Wrapf(writeFileAtomic(s.path, buf.Bytes(), 0o644), "write %s", s.path)
}

func newSerialRecord(p *models.Person) serialRecord {
	rec := serialRecord{
		NIF:         p.NIF,
		Name:        p.Name,
		Email:       p.Email,
		PhoneNumber: p.PhoneNumber,
		PostalCode:  p.PostalCode,
	}
	if p.DateOfBirth != nil {
		rec.DateOfBirth = p.DateOfBirth.Format(models.DateLayout)
	}
	if len(p.Photo) > 0 {
		rec.Photo = base64.StdEncoding.EncodeToString(p.Photo)
	}
	return rec
}

func (r serialRecord) person() (*models.Person, error) {
	dob, err := models.ParseDate(r.DateOfBirth)
	if err != nil {
		return nil, errors.Wrapf(err, "date of birth of %s", r.NIF)
	}
	p := &models.Person{
		NIF:         r.NIF,
		Name:        r.Name,
		DateOfBirth: dob,
		Email:       r.Email,
		PhoneNumber: r.PhoneNumber,
		PostalCode:  r.PostalCode,
	}
	if r.Photo != "" {
		if p.Photo, err = base64.StdEncoding.DecodeString(r.Photo); err != nil {
			return nil, errors.Wrapf(err, "photo of %s", r.NIF)
		}
	}
	return p, nil
}

func indexOf(people []*models.Person, nif string) int {
	for i, p := range people {
		if p.NIF == nif {
			return i
		}
	}
	return -1
}

var _ Store = (*SerialStore)(nil)
