package dao

import (
	"context"

	"github.com/Skryldev/people/db"
	"github.com/Skryldev/people/internal/errors"
	"github.com/Skryldev/people/models"
	"github.com/Skryldev/people/repo"
)

// SQLStore keeps people in the person table. The photo column holds a file
// reference and the bytes live in a PhotoStore; row and file changes share a
// transaction so a failed photo write rolls the row back.
type SQLStore struct {
	db     *db.DB
	people repo.PersonRepository
	photos *PhotoStore
}

// NewSQLStore takes ownership of d; Close closes it.
func NewSQLStore(d *db.DB, photos *PhotoStore) *SQLStore {
	return &SQLStore{db: d, people: repo.NewPersonRepo(d), photos: photos}
}

func (s *SQLStore) Read(ctx context.Context, nif string) (*models.Person, error) {
	row, err := s.people.Get(ctx, nif)
	if db.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.withPhoto(*row)
}

func (s *SQLStore) ReadAll(ctx context.Context) ([]*models.Person, error) {
	rows, err := s.people.List(ctx)
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

func (s *SQLStore) Insert(ctx context.Context, p *models.Person) error {
	err := s.db.ExecTx(ctx, func(tx *db.Tx) error {
		if err := repo.NewPersonRepo(tx).Insert(ctx, s.row(p)); err != nil {
			return err
		}
		_, err := s.photos.Save(p.NIF, p.Photo)
		return err
	})
	if db.IsDuplicateKey(err) {
		return ErrDuplicate
	}
	return err
}

func (s *SQLStore) Update(ctx context.Context, p *models.Person) error {
	err := s.db.ExecTx(ctx, func(tx *db.Tx) error {
		if err := repo.NewPersonRepo(tx).Update(ctx, s.row(p)); err != nil {
			return err
		}
		_, err := s.photos.Save(p.NIF, p.Photo)
		return err
	})
	if db.IsNotFound(err) {
		return ErrNotFound
	}
	return err
}

func (s *SQLStore) Delete(ctx context.Context, nif string) error {
	err := s.people.Delete(ctx, nif)
	if db.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.photos.Remove(nif)
}

func (s *SQLStore) DeleteAll(ctx context.Context) error {
	err := s.db.ExecTx(ctx, func(tx *db.Tx) error {
		_, err := repo.NewPersonRepo(tx).DeleteAll(ctx)
		return err
	})
	if err != nil {
		return err
	}
	return s.photos.Clear()
}

func (s *SQLStore) Count(ctx context.Context) (int, error) {
	n, err := s.people.Count(ctx)
	return int(n), err
}

func (s *SQLStore) Close() error {
	return errors.Wrap(s.db.Close(), "close sql store")
}

func (s *SQLStore) row(p *models.Person) repo.PersonRow {
	ref := ""
	if len(p.Photo) > 0 {
		ref = s.photos.Ref(p.NIF)
	}
	return repo.PersonRow{Person: p, PhotoRef: ref}
}

func (s *SQLStore) withPhoto(row repo.PersonRow) (*models.Person, error) {
	photo, err := s.photos.Load(row.PhotoRef)
	if err != nil {
		return nil, err
	}
	row.Person.Photo = photo
	return row.Person, nil
}

var (
	_ Store   = (*SQLStore)(nil)
	_ Counter = (*SQLStore)(nil)
)
