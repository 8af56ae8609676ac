package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/Skryldev/people/db"
	"github.com/Skryldev/people/internal/errors"
	"github.com/Skryldev/people/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// PersonRepository
// ─────────────────────────────────────────────────────────────────────────────

// PersonRow is a person table row. The photo column stores a reference to
// the photo file, never the bytes, so Person.Photo is always nil here.
type PersonRow struct {
	Person   *models.Person
	PhotoRef string
}

// PersonRepository is the persistence contract for the person table.
type PersonRepository interface {
	// Insert returns db.ErrDuplicateKey when the NIF is already stored.
	Insert(ctx context.Context, row PersonRow) error
	// Get returns db.ErrNotFound when no row matches.
	Get(ctx context.Context, nif string) (*PersonRow, error)
	// List returns every row ordered by NIF.
	List(ctx context.Context) ([]PersonRow, error)
	// Update replaces every column but the NIF. Returns db.ErrNotFound when
	// no row matches.
	Update(ctx context.Context, row PersonRow) error
	// Delete returns db.ErrNotFound when no row matches.
	Delete(ctx context.Context, nif string) error
	// DeleteAll returns the number of removed rows.
	DeleteAll(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int64, error)
}

type personRepo struct {
	q db.Querier
}

// NewPersonRepo returns a PersonRepository backed by q, either a *db.DB or a
// *db.Tx.
func NewPersonRepo(q db.Querier) PersonRepository {
	return &personRepo{q: q}
}

// ─────────────────────────────────────────────────────────────────────────────
// SQL
// ─────────────────────────────────────────────────────────────────────────────

const (
	personColumns = `nif, name, dateOfBirth, photo, email, phoneNumber, postalCode`

	sqlInsertPerson = `
		INSERT INTO person (` + personColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	sqlGetPerson = `
		SELECT ` + personColumns + `
		FROM   person
		WHERE  nif = ?`

	sqlListPeople = `
		SELECT ` + personColumns + `
		FROM   person
		ORDER  BY nif`

	sqlUpdatePerson = `
		UPDATE person
		SET    name = ?, dateOfBirth = ?, photo = ?, email = ?, phoneNumber = ?, postalCode = ?
		WHERE  nif = ?`

	sqlDeletePerson = `DELETE FROM person WHERE nif = ?`

	sqlDeleteAllPeople = `DELETE FROM person`

	sqlCountPeople = `SELECT COUNT(*) FROM person`
)

// ─────────────────────────────────────────────────────────────────────────────
// Operations
// ─────────────────────────────────────────────────────────────────────────────

func (r *personRepo) Insert(ctx context.Context, row PersonRow) error {
	p := row.Person
	_, err := r.q.Exec(ctx, sqlInsertPerson,
		p.NIF, NullString(p.Name), NullDate(p.DateOfBirth), NullString(row.PhotoRef),
		NullString(p.Email), NullString(p.PhoneNumber), NullString(p.PostalCode))
	if err != nil {
		return errors.Wrapf(err, "repo/person: insert %s", p.NIF)
	}
	return nil
}

func (r *personRepo) Get(ctx context.Context, nif string) (*PersonRow, error) {
	row, err := scanPerson(r.q.QueryRow(ctx, sqlGetPerson, nif))
	if err != nil {
		return nil, errors.Wrapf(err, "repo/person: get %s", nif)
	}
	return row, nil
}

func (r *personRepo) List(ctx context.Context) ([]PersonRow, error) {
	rows, err := r.q.Query(ctx, sqlListPeople)
	if err != nil {
		return nil, errors.Wrap(err, "repo/person: list")
	}
	defer rows.Close()

	var out []PersonRow
	for rows.Next() {
		pr, err := scanPerson(rows)
		if err != nil {
			return nil, errors.Wrap(err, "repo/person: list scan")
		}
		out = append(out, *pr)
	}
	return out, errors.Wrap(rows.Err(), "repo/person: list")
}

func (r *personRepo) Update(ctx context.Context, row PersonRow) error {
	p := row.Person
	res, err := r.q.Exec(ctx, sqlUpdatePerson,
		NullString(p.Name), NullDate(p.DateOfBirth), NullString(row.PhotoRef),
		NullString(p.Email), NullString(p.PhoneNumber), NullString(p.PostalCode), p.NIF)
	if err != nil {
		return errors.Wrapf(err, "repo/person: update %s", p.NIF)
	}
	return expectOneRow(res, "update", p.NIF)
}

func (r *personRepo) Delete(ctx context.Context, nif string) error {
	res, err := r.q.Exec(ctx, sqlDeletePerson, nif)
	if err != nil {
		return errors.Wrapf(err, "repo/person: delete %s", nif)
	}
	return expectOneRow(res, "delete", nif)
}

func (r *personRepo) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.q.Exec(ctx, sqlDeleteAllPeople)
	if err != nil {
		return 0, errors.Wrap(err, "repo/person: delete all")
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "repo/person: delete all")
}

func (r *personRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.q.QueryRow(ctx, sqlCountPeople).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "repo/person: count")
	}
	return n, nil
}

func expectOneRow(res sql.Result, op, nif string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "repo/person: %s %s", op, nif)
	}
	if n == 0 {
		return errors.Wrapf(db.ErrNotFound, "repo/person: %s %s", op, nif)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

// scanner is satisfied by *db.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPerson(s scanner) (*PersonRow, error) {
	var (
		nif                               string
		name, photo, email, phone, postal sql.NullString
		dob                               sql.NullTime
	)
	if err := s.Scan(&nif, &name, &dob, &photo, &email, &phone, &postal); err != nil {
		return nil, err
	}
	p := &models.Person{
		NIF:         nif,
		Name:        name.String,
		Email:       email.String,
		PhoneNumber: phone.String,
		PostalCode:  postal.String,
	}
	if dob.Valid {
		d := models.DateOnly(dob.Time)
		p.DateOfBirth = &d
	}
	return &PersonRow{Person: p, PhotoRef: photo.String}, nil
}

var _ PersonRepository = (*personRepo)(nil)

// ─────────────────────────────────────────────────────────────────────────────
// Null helpers
// ─────────────────────────────────────────────────────────────────────────────

// NullString stores the empty string as NULL.
func NullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// NullDate stores a nil date as NULL and drops the clock part otherwise.
func NullDate(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: models.DateOnly(*t), Valid: true}
}
