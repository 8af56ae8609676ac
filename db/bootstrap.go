package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/Skryldev/people/config"
	"github.com/Skryldev/people/internal/errors"
	"github.com/Skryldev/people/migrations"
)

// Migrator applies the embedded schema on a connection it owns. Closing the
// migrator closes that connection, so it is never shared with a DB pool.
type Migrator struct {
	m      *migrate.Migrate
	logger *slog.Logger
}

// NewMigrator opens a dedicated connection for c and prepares the embedded
// migrations against it.
func NewMigrator(ctx context.Context, c config.Database, logger *slog.Logger) (*Migrator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	name, dsn, err := Resolve(c)
	if err != nil {
		return nil, err
	}

	sqldb, err := sql.Open(name, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "people/db: open migration connection")
	}
	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, errors.Wrap(defaultMap(err), "people/db: ping migration connection")
	}

	dbDriver, err := migrationDriver(name, sqldb)
	if err != nil {
		_ = sqldb.Close()
		return nil, err
	}

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		_ = dbDriver.Close()
		return nil, errors.Wrap(err, "people/db: load embedded migrations")
	}

	m, err := migrate.NewWithInstance("iofs", src, name, dbDriver)
	if err != nil {
		_ = src.Close()
		_ = dbDriver.Close()
		return nil, errors.Wrap(err, "people/db: create migrator")
	}
	m.Log = migrateLogger{logger: logger}

	return &Migrator{m: m, logger: logger}, nil
}

func migrationDriver(name string, sqldb *sql.DB) (database.Driver, error) {
	var (
		drv database.Driver
		err error
	)
	switch name {
	case "sqlite3":
		drv, err = migratesqlite.WithInstance(sqldb, &migratesqlite.Config{})
	case "mysql":
		drv, err = migratemysql.WithInstance(sqldb, &migratemysql.Config{})
	case "postgres":
		drv, err = migratepostgres.WithInstance(sqldb, &migratepostgres.Config{})
	case "pgx":
		drv, err = migratepgx.WithInstance(sqldb, &migratepgx.Config{})
	default:
		return nil, errors.Errorf("people/db: no migration driver for %q", name)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "people/db: %s migration driver", name)
	}
	return drv, nil
}

// Up applies every pending migration. An up to date schema is not an error.
func (mg *Migrator) Up(ctx context.Context) error {
	return mg.run(ctx, "up", mg.m.Up)
}

// Down rolls back steps migrations, or all of them when steps is zero.
func (mg *Migrator) Down(ctx context.Context, steps int) error {
	if steps <= 0 {
		return mg.run(ctx, "down", mg.m.Down)
	}
	return mg.run(ctx, "down", func() error { return mg.m.Steps(-steps) })
}

// Version returns the current schema version and whether it is dirty.
// A database without migrations reports version 0.
func (mg *Migrator) Version() (uint, bool, error) {
	v, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, "people/db: read schema version")
	}
	return v, dirty, nil
}

// Force sets the version without running migrations, clearing the dirty flag.
func (mg *Migrator) Force(version int) error {
	return errors.Wrapf(mg.m.Force(version), "people/db: force version %d", version)
}

// Drop removes every table in the database.
func (mg *Migrator) Drop() error {
	return errors.Wrap(mg.m.Drop(), "people/db: drop")
}

// Close releases the source and the dedicated connection.
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}

func (mg *Migrator) run(ctx context.Context, direction string, fn func() error) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			mg.m.GracefulStop <- true
		case <-done:
		}
	}()

	err := fn()
	if errors.Is(err, migrate.ErrNoChange) {
		mg.logger.DebugContext(ctx, "people/db: schema already up to date", slog.String("direction", direction))
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "people/db: migrate %s", direction)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Wrapf(ctxErr, "people/db: migrate %s interrupted", direction)
	}
	return nil
}

// Bootstrap brings the schema for c up to date on a connection that is opened
// and closed around the call.
func Bootstrap(ctx context.Context, c config.Database, logger *slog.Logger) (err error) {
	mg, err := NewMigrator(ctx, c, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, mg.Close())
	}()
	return mg.Up(ctx)
}

type migrateLogger struct {
	logger *slog.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.logger.Info("people/db: " + strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrateLogger) Verbose() bool { return false }
