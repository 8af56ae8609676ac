// Package db wraps database/sql for the people stores. All SQL stays explicit;
// the wrapper adds context timeouts, hook dispatch, placeholder rebinding and
// unified error mapping across sqlite3, mysql, postgres and pgx.
package db

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/Skryldev/people/internal/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

// Config holds the options for opening and managing the connection pool.
type Config struct {
	// DSN is the driver-specific data-source name.
	DSN string

	// DriverName is "sqlite3", "mysql", "postgres" or "pgx".
	DriverName string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// DefaultTimeout is applied when the context carries no deadline.
	// Zero means no default timeout.
	DefaultTimeout time.Duration

	// Hooks run around every statement. Nil entries are skipped.
	Hooks []Hook
}

// ─────────────────────────────────────────────────────────────────────────────
// DB
// ─────────────────────────────────────────────────────────────────────────────

// DB is a concurrency-safe wrapper around *sql.DB.
//
// Statements are written with ? placeholders. For postgres-family drivers
// they are rewritten to $1, $2, ... before reaching the driver.
type DB struct {
	sqldb  *sql.DB
	cfg    Config
	hooks  hookChain
	errMap ErrorMapper
	bind   BindStyle
}

// Open opens the database described by cfg and verifies connectivity with Ping.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("people/db: DSN must not be empty")
	}
	if cfg.DriverName == "" {
		return nil, errors.New("people/db: DriverName must not be empty")
	}

	sqldb, err := sql.Open(cfg.DriverName, cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "people/db: open")
	}

	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	d := &DB{
		sqldb:  sqldb,
		cfg:    cfg,
		hooks:  newHookChain(cfg.Hooks),
		errMap: DefaultErrorMapper(),
		bind:   BindStyleFor(cfg.DriverName),
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqldb.PingContext(pingCtx); err != nil {
		_ = sqldb.Close()
		return nil, errors.Wrap(d.mapErr(err), "people/db: ping")
	}

	return d, nil
}

// DriverName reports the database/sql driver the pool was opened with.
func (d *DB) DriverName() string { return d.cfg.DriverName }

// Close closes all pooled connections. Safe to call multiple times.
func (d *DB) Close() error { return d.sqldb.Close() }

// Ping verifies that the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	ctx, cancel := d.withDefaultTimeout(ctx)
	defer cancel()
	return d.mapErr(d.sqldb.PingContext(ctx))
}

// ─────────────────────────────────────────────────────────────────────────────
// Query execution
// ─────────────────────────────────────────────────────────────────────────────

// Exec executes a statement that returns no rows.
func (d *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, cancel := d.withDefaultTimeout(ctx)
	defer cancel()
	query = d.bind.Rebind(query)
	start := time.Now()
	d.hooks.Before(ctx, query, args)
	res, err := d.sqldb.ExecContext(ctx, query, args...)
	err = d.mapErr(err)
	d.hooks.After(ctx, query, args, time.Since(start), err)
	return res, err
}

// Query executes a query that returns rows. The caller must close the rows.
//
// The default timeout is not applied here: cancelling it on return would
// invalidate the rows before the caller reads them.
func (d *DB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	query = d.bind.Rebind(query)
	start := time.Now()
	d.hooks.Before(ctx, query, args)
	rows, err := d.sqldb.QueryContext(ctx, query, args...)
	err = d.mapErr(err)
	d.hooks.After(ctx, query, args, time.Since(start), err)
	return rows, err
}

// QueryRow executes a query expected to return at most one row.
// Scan on the returned Row yields ErrNotFound when nothing matched.
func (d *DB) QueryRow(ctx context.Context, query string, args ...any) *Row {
	query = d.bind.Rebind(query)
	start := time.Now()
	d.hooks.Before(ctx, query, args)
	raw := d.sqldb.QueryRowContext(ctx, query, args...)
	row := &Row{raw: raw, errMap: d.errMap}
	d.hooks.After(ctx, query, args, time.Since(start), row.Err())
	return row
}

func (d *DB) withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.cfg.DefaultTimeout == 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.cfg.DefaultTimeout)
}

func (d *DB) mapErr(err error) error {
	if err == nil {
		return nil
	}
	return d.errMap.Map(err)
}

// ─────────────────────────────────────────────────────────────────────────────
// Row
// ─────────────────────────────────────────────────────────────────────────────

// Row wraps *sql.Row and maps errors through the error mapper.
type Row struct {
	raw    *sql.Row
	errMap ErrorMapper
}

// Scan copies the matched row into dest. ErrNotFound is returned when no row
// was found.
func (r *Row) Scan(dest ...any) error {
	return r.errMap.Map(r.raw.Scan(dest...))
}

// Err reports a deferred query error without scanning.
func (r *Row) Err() error {
	return r.errMap.Map(r.raw.Err())
}

// ─────────────────────────────────────────────────────────────────────────────
// Placeholder rebinding
// ─────────────────────────────────────────────────────────────────────────────

// BindStyle is the placeholder syntax a driver understands.
type BindStyle int

const (
	// BindQuestion leaves ? placeholders untouched (sqlite3, mysql).
	BindQuestion BindStyle = iota
	// BindDollar rewrites ? to $1, $2, ... (postgres, pgx).
	BindDollar
)

// BindStyleFor returns the placeholder style of a database/sql driver name.
func BindStyleFor(driverName string) BindStyle {
	switch driverName {
	case "postgres", "pgx":
		return BindDollar
	default:
		return BindQuestion
	}
}

// Rebind rewrites ? placeholders for the style. Question marks inside single
// quoted literals are left alone.
func (s BindStyle) Rebind(query string) string {
	if s != BindDollar || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
