package dao

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Skryldev/people/config"
	"github.com/Skryldev/people/db"
	"github.com/Skryldev/people/internal/errors"
	"github.com/Skryldev/people/models"
)

// ormPerson is the orm_person table. Unlike the person table it stores the
// photo bytes in the row.
type ormPerson struct {
	NIF         string     `gorm:"column:nif;primaryKey;size:9"`
	Name        string     `gorm:"column:name;size:50"`
	DateOfBirth *time.Time `gorm:"column:date_of_birth;type:date"`
	Photo       []byte     `gorm:"column:photo"`
	Email       string     `gorm:"column:email;size:100"`
	PhoneNumber string     `gorm:"column:phone_number;size:20"`
	PostalCode  string     `gorm:"column:postal_code;size:10"`
}

func (ormPerson) TableName() string { return "orm_person" }

// ORMStore keeps people in the orm_person table through gorm.
type ORMStore struct {
	db *gorm.DB
}

// OpenORMStore connects with the dialector matching c.Driver and migrates
// the table.
func OpenORMStore(ctx context.Context, c config.Database, logger *slog.Logger) (*ORMStore, error) {
	name, dsn, err := db.Resolve(c)
	if err != nil {
		return nil, err
	}

	var dialector gorm.Dialector
	switch name {
	case "sqlite3":
		dialector = sqlite.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres", "pgx":
		dialector = postgres.Open(dsn)
	default:
		return nil, errors.Errorf("orm store: unsupported driver %q", name)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(logger, c.SlowQueryThreshold),
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "orm store: open")
	}
	if c.MaxOpenConns > 0 {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.SetMaxOpenConns(c.MaxOpenConns)
		}
	}
	if err := gdb.WithContext(ctx).AutoMigrate(&ormPerson{}); err != nil {
		return nil, errors.Wrap(err, "orm store: migrate orm_person")
	}
	return &ORMStore{db: gdb}, nil
}

func (s *ORMStore) Read(ctx context.Context, nif string) (*models.Person, error) {
	var row ormPerson
	err := s.db.WithContext(ctx).Where("nif = ?", nif).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "orm store: read %s", nif)
	}
	return row.person(), nil
}

func (s *ORMStore) ReadAll(ctx context.Context) ([]*models.Person, error) {
	var rows []ormPerson
	if err := s.db.WithContext(ctx).Order("nif").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "orm store: read all")
	}
	people := make([]*models.Person, len(rows))
	for i := range rows {
		people[i] = rows[i].person()
	}
	return people, nil
}

func (s *ORMStore) Insert(ctx context.Context, p *models.Person) error {
	row := newORMPerson(p)
	err := s.db.WithContext(ctx).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) || db.IsDuplicateKey(db.DefaultErrorMapper().Map(err)) {
		return ErrDuplicate
	}
	return errors.Wrapf(err, "orm store: insert %s", p.NIF)
}

func (s *ORMStore) Update(ctx context.Context, p *models.Person) error {
	row := newORMPerson(p)
	res := s.db.WithContext(ctx).Model(&ormPerson{}).Where("nif = ?", p.NIF).Updates(map[string]any{
		"name":          row.Name,
		"date_of_birth": row.DateOfBirth,
		"photo":         row.Photo,
		"email":         row.Email,
		"phone_number":  row.PhoneNumber,
		"postal_code":   row.PostalCode,
	})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "orm store: update %s", p.NIF)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ORMStore) Delete(ctx context.Context, nif string) error {
	err := s.db.WithContext(ctx).Where("nif = ?", nif).Delete(&ormPerson{}).Error
	return errors.Wrapf(err, "orm store: delete %s", nif)
}

func (s *ORMStore) DeleteAll(ctx context.Context) error {
	err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&ormPerson{}).Error
	return errors.Wrap(err, "orm store: delete all")
}

func (s *ORMStore) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&ormPerson{}).Count(&n).Error; err != nil {
		return 0, errors.Wrap(err, "orm store: count")
	}
	return int(n), nil
}

func (s *ORMStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "orm store: close")
	}
	return errors.Wrap(sqlDB.Close(), "orm store: close")
}

func newORMPerson(p *models.Person) ormPerson {
	row := ormPerson{
		NIF:         p.NIF,
		Name:        p.Name,
		Email:       p.Email,
		PhoneNumber: p.PhoneNumber,
		PostalCode:  p.PostalCode,
	}
	if p.DateOfBirth != nil {
		d := models.DateOnly(*p.DateOfBirth)
		row.DateOfBirth = &d
	}
	if len(p.Photo) > 0 {
		row.Photo = append([]byte(nil), p.Photo...)
	}
	return row
}

func (r ormPerson) person() *models.Person {
	p := &models.Person{
		NIF:         r.NIF,
		Name:        r.Name,
		Email:       r.Email,
		PhoneNumber: r.PhoneNumber,
		PostalCode:  r.PostalCode,
	}
	if r.DateOfBirth != nil {
		d := models.DateOnly(*r.DateOfBirth)
		p.DateOfBirth = &d
	}
	if len(r.Photo) > 0 {
		p.Photo = r.Photo
	}
	return p
}

var (
	_ Store   = (*ORMStore)(nil)
	_ Counter = (*ORMStore)(nil)
)
