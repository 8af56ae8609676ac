package dao

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"
	"sync"

	"github.com/Skryldev/people/internal/errors"
	"github.com/Skryldev/people/models"
)

const fileFields = 7

// FileStore keeps one tab-separated line per person:
//
//	nif  name  dateOfBirth  photoRef  email  phoneNumber  postalCode
//
// Photos live next to it in a PhotoStore. Each mutation reads the whole file
// and rewrites it atomically; the mutex serializes callers in this process
// only, so two processes writing the same file can lose updates.
//
// The data file is written before the photo. A failed photo write restores
// the previous data file, so neither side references what the other lacks.
type FileStore struct {
	mu        sync.Mutex
	path      string
	photos    *PhotoStore
	writeFile func(path string, data []byte, perm os.FileMode) error
}

// NewFileStore creates the data file and photo folder when missing.
func NewFileStore(path, photoDir string) (*FileStore, error) {
	photos, err := NewPhotoStore(photoDir)
	if err != nil {
		return nil, err
	}
	if err := ensureFile(path); err != nil {
		return nil, err
	}
	return &FileStore{path: path, photos: photos, writeFile: writeFileAtomic}, nil
}

func (s *FileStore) Read(_ context.Context, nif string) (*models.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.load()
	if err != nil {
		return nil, err
	}
	i := rowIndex(rows, nif)
	if i < 0 {
		return nil, nil
	}
	return s.withPhoto(rows[i])
}

func (s *FileStore) ReadAll(context.Context) ([]*models.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.load()
	if err != nil {
		return nil, err
	}
	people := make([]*models.Person, 0, len(rows))
	for _, row := range rows {
		p, err := s.withPhoto(row)
		if err != nil {
			return nil, err
		}
		people = append(people, p)
	}
	return people, nil
}

func (s *FileStore) Insert(_ context.Context, p *models.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.load()
	if err != nil {
		return err
	}
	if rowIndex(rows, p.NIF) >= 0 {
		return ErrDuplicate
	}
	if err := s.save(append(rows, fileRow{person: p, photoRef: s.photoRef(p)})); err != nil {
		return err
	}
	if _, err := s.photos.Save(p.NIF, p.Photo); err != nil {
		return errors.Join(err, s.save(rows))
	}
	return nil
}

func (s *FileStore) Update(_ context.Context, p *models.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.load()
	if err != nil {
		return err
	}
	i := rowIndex(rows, p.NIF)
	if i < 0 {
		return ErrNotFound
	}
	prev := rows[i]
	rows[i] = fileRow{person: p, photoRef: s.photoRef(p)}
	if err := s.save(rows); err != nil {
		return err
	}
	if _, err := s.photos.Save(p.NIF, p.Photo); err != nil {
		rows[i] = prev
		return errors.Join(err, s.save(rows))
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, nif string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.load()
	if err != nil {
		return err
	}
	i := rowIndex(rows, nif)
	if i < 0 {
		return nil
	}
	if err := s.save(append(rows[:i], rows[i+1:]...)); err != nil {
		return err
	}
	return s.photos.Remove(nif)
}

func (s *FileStore) DeleteAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.save(nil); err != nil {
		return err
	}
	return s.photos.Clear()
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) photoRef(p *models.Person) string {
	if len(p.Photo) == 0 {
		return ""
	}
	return s.photos.Ref(p.NIF)
}

// fileRow is one parsed line: the text fields plus the photo reference.
type fileRow struct {
	person   *models.Person
	photoRef string
}

func (s *FileStore) withPhoto(row fileRow) (*models.Person, error) {
	photo, err := s.photos.Load(row.photoRef)
	if err != nil {
		return nil, err
	}
	row.person.Photo = photo
	return row.person, nil
}

func (s *FileStore) load() ([]fileRow, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", s.path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.FieldsPerRecord = fileFields

	var rows []fileRow
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", s.path)
		}
		row, err := decodeFileRecord(rec)
		if err != nil {
			line, _ := r.FieldPos(0)
			return nil, errors.Wrapf(err, "%s:%d", s.path, line)
		}
		rows = append(rows, row)
	}
}

func (s *FileStore) save(rows []fileRow) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = '\t'
	for _, row := range rows {
		if err := w.Write(encodeFileRecord(row)); err != nil {
			return errors.Wrapf(err, "encode %s", row.person.NIF)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "encode people")
	}
	return errors.Wrapf(s.writeFile(s.path, buf.Bytes(), 0o644), "write %s", s.path)
}

func encodeFileRecord(row fileRow) []string {
	p := row.person
	dob := ""
	if p.DateOfBirth != nil {
		dob = p.DateOfBirth.Format(models.DateLayout)
	}
	return []string{p.NIF, p.Name, dob, row.photoRef, p.Email, p.PhoneNumber, p.PostalCode}
}

func decodeFileRecord(rec []string) (fileRow, error) {
	dob, err := models.ParseDate(rec[2])
	if err != nil {
		return fileRow{}, errors.Wrapf(err, "date of birth of %s", rec[0])
	}
	p := &models.Person{
		NIF:         rec[0],
		Name:        rec[1],
		DateOfBirth: dob,
		Email:       rec[4],
		PhoneNumber: rec[5],
		PostalCode:  rec[6],
	}
	return fileRow{person: p, photoRef: rec[3]}, nil
}

func rowIndex(rows []fileRow, nif string) int {
	for i, row := range rows {
		if row.person.NIF == nif {
			return i
		}
	}
	return -1
}

var _ Store = (*FileStore)(nil)
