package db

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"

	"github.com/Skryldev/people/config"
	"github.com/Skryldev/people/internal/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Driver
// ─────────────────────────────────────────────────────────────────────────────

// Driver holds the database specific parts of opening a pool: the
// database/sql driver name and how to turn structured options into a DSN.
type Driver interface {
	// Name is the name the driver registered with database/sql.
	Name() string

	// DSN converts structured options into the driver's native DSN.
	DSN(opts DriverOptions) (string, error)
}

// preparer is implemented by drivers that need local setup before opening,
// such as creating the parent folder of a database file.
type preparer interface {
	Prepare(opts DriverOptions) error
}

// DriverOptions carries connection parameters in a driver-agnostic form.
type DriverOptions struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	// Extra holds driver-specific key/value parameters.
	Extra map[string]string
}

// OptionsFrom converts the config section into DriverOptions.
func OptionsFrom(c config.Database) DriverOptions {
	return DriverOptions{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		Database: c.Name,
		SSLMode:  c.SSLMode,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Registry
// ─────────────────────────────────────────────────────────────────────────────

// drivers is fixed at build time; the set matches the database/sql drivers
// imported by this package.
var drivers = map[string]Driver{
	"sqlite3":  SQLiteDriver{},
	"mysql":    MySQLDriver{},
	"postgres": PostgresDriver{},
	"pgx":      PGXDriver{},
}

// LookupDriver returns the registered Driver by name.
func LookupDriver(name string) (Driver, error) {
	d, ok := drivers[name]
	if !ok {
		return nil, errors.Errorf("people/db: driver %q not registered", name)
	}
	return d, nil
}

// Resolve returns the driver name and DSN for a config section. An explicit
// DSN wins over the structured fields.
func Resolve(c config.Database) (string, string, error) {
	drv, err := LookupDriver(c.Driver)
	if err != nil {
		return "", "", err
	}
	opts := OptionsFrom(c)
	if p, ok := drv.(preparer); ok {
		if err := p.Prepare(opts); err != nil {
			return "", "", err
		}
	}
	if c.DSN != "" {
		return drv.Name(), c.DSN, nil
	}
	dsn, err := drv.DSN(opts)
	if err != nil {
		return "", "", errors.Wrap(err, "people/db: build DSN")
	}
	return drv.Name(), dsn, nil
}

// Connect opens a pool for a config section with the given hooks.
func Connect(ctx context.Context, c config.Database, hooks ...Hook) (*DB, error) {
	name, dsn, err := Resolve(c)
	if err != nil {
		return nil, err
	}
	return Open(ctx, Config{
		DSN:            dsn,
		DriverName:     name,
		MaxOpenConns:   c.MaxOpenConns,
		DefaultTimeout: c.DefaultTimeout,
		Hooks:          hooks,
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// PostgreSQL (lib/pq)
// ─────────────────────────────────────────────────────────────────────────────

// PostgresDriver builds key/value DSNs for lib/pq.
type PostgresDriver struct{}

func (PostgresDriver) Name() string { return "postgres" }

func (PostgresDriver) DSN(o DriverOptions) (string, error) {
	if o.Host == "" || o.Database == "" {
		return "", errors.New("postgres driver: Host and Database are required")
	}
	parts := []string{
		"host=" + o.Host,
		"port=" + strconv.Itoa(portOr(o.Port, 5432)),
		"dbname=" + o.Database,
		"sslmode=" + sslModeOr(o.SSLMode),
	}
	if o.User != "" {
		parts = append(parts, "user="+o.User)
	}
	if o.Password != "" {
		parts = append(parts, "password="+quotePQ(o.Password))
	}
	for _, k := range sortedKeys(o.Extra) {
		parts = append(parts, k+"="+quotePQ(o.Extra[k]))
	}
	return strings.Join(parts, " "), nil
}

func quotePQ(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	return "'" + strings.ReplaceAll(v, `'`, `\'`) + "'"
}

// ─────────────────────────────────────────────────────────────────────────────
// PostgreSQL (pgx stdlib)
// ─────────────────────────────────────────────────────────────────────────────

// PGXDriver builds URL DSNs for the pgx database/sql adapter.
type PGXDriver struct{}

func (PGXDriver) Name() string { return "pgx" }

func (PGXDriver) DSN(o DriverOptions) (string, error) {
	if o.Host == "" || o.Database == "" {
		return "", errors.New("pgx driver: Host and Database are required")
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(o.Host, strconv.Itoa(portOr(o.Port, 5432))),
		Path:   "/" + o.Database,
	}
	if o.User != "" {
		u.User = url.UserPassword(o.User, o.Password)
	}
	q := url.Values{}
	q.Set("sslmode", sslModeOr(o.SSLMode))
	for k, v := range o.Extra {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// MySQL
// ─────────────────────────────────────────────────────────────────────────────

// MySQLDriver builds DSNs for go-sql-driver/mysql. parseTime is always on so
// DATE columns scan into time.Time, and clientFoundRows makes RowsAffected
// count matched rows, so an update that changes nothing still reports 1.
type MySQLDriver struct{}

func (MySQLDriver) Name() string { return "mysql" }

func (MySQLDriver) DSN(o DriverOptions) (string, error) {
	if o.Host == "" || o.Database == "" {
		return "", errors.New("mysql driver: Host and Database are required")
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&clientFoundRows=true",
		o.User, o.Password, net.JoinHostPort(o.Host, strconv.Itoa(portOr(o.Port, 3306))), o.Database)
	for _, k := range sortedKeys(o.Extra) {
		dsn += "&" + k + "=" + url.QueryEscape(o.Extra[k])
	}
	return dsn, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// SQLite
// ─────────────────────────────────────────────────────────────────────────────

// SQLiteDriver builds file DSNs for mattn/go-sqlite3.
type SQLiteDriver struct{}

func (SQLiteDriver) Name() string { return "sqlite3" }

func (SQLiteDriver) DSN(o DriverOptions) (string, error) {
	if o.Database == "" {
		return "", errors.New("sqlite3 driver: Database (file path) is required")
	}
	keys := sortedKeys(o.Extra)
	if len(keys) == 0 {
		return o.Database, nil
	}
	q := make([]string, 0, len(keys))
	for _, k := range keys {
		q = append(q, k+"="+url.QueryEscape(o.Extra[k]))
	}
	return o.Database + "?" + strings.Join(q, "&"), nil
}

// Prepare creates the folder holding the database file.
func (SQLiteDriver) Prepare(o DriverOptions) error {
	if o.Database == "" || o.Database == ":memory:" || strings.HasPrefix(o.Database, "file:") {
		return nil
	}
	if dir := filepath.Dir(o.Database); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "sqlite3 driver: create %s", dir)
		}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────────────────

func portOr(port, def int) int {
	if port == 0 {
		return def
	}
	return port
}

func sslModeOr(mode string) string {
	if mode == "" {
		return "disable"
	}
	return mode
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
