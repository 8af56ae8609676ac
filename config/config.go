// Package config loads the application settings: compiled-in defaults,
// optionally overlaid by a YAML file and PEOPLE_* environment variables.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/Skryldev/people/internal/errors"
)

const (
	envPrefix       = "PEOPLE_"
	defaultFileName = "people.yaml"
)

type Config struct {
	Log Log `koanf:"log"`

	// Storage is the backend selected when the caller does not pick one.
	Storage string `koanf:"storage"`

	Data struct {
		// Dir is the root folder for the file, serial and sql photo layouts.
		Dir string `koanf:"dir"`
	} `koanf:"data"`

	// SQL hosts the person table and the two credential tables.
	SQL Database `koanf:"sql"`

	// ORM is the database used by the gorm-backed store.
	ORM Database `koanf:"orm"`

	Redis Redis `koanf:"redis"`

	Metrics Metrics `koanf:"metrics"`
}

type Log struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Database describes a connection either by DSN or by its parts.
// When DSN is empty the parts are turned into a DSN by the driver adapter.
type Database struct {
	Driver   string `koanf:"driver"`
	DSN      string `koanf:"dsn"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`
	SSLMode  string `koanf:"sslMode"`

	MaxOpenConns       int           `koanf:"maxOpenConns"`
	DefaultTimeout     time.Duration `koanf:"defaultTimeout"`
	SlowQueryThreshold time.Duration `koanf:"slowQueryThreshold"`
	LogArgs            bool          `koanf:"logArgs"`
}

type Redis struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Key      string `koanf:"key"`
}

type Metrics struct {
	// PushURL is a Prometheus Pushgateway; empty disables pushing.
	PushURL string `koanf:"pushURL"`
	Job     string `koanf:"job"`
}

// Default returns the compiled-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.Log = Log{Level: "info", Format: "text"}
	cfg.Storage = "file"
	cfg.Data.Dir = "data"
	cfg.SQL = Database{
		Driver:             "sqlite3",
		Name:               filepath.Join("data", "people.db"),
		MaxOpenConns:       1,
		DefaultTimeout:     10 * time.Second,
		SlowQueryThreshold: 200 * time.Millisecond,
	}
	cfg.ORM = Database{
		Driver: "sqlite3",
		Name:   filepath.Join("data", "people_orm.db"),
	}
	cfg.Redis = Redis{Addr: "localhost:6379", Key: "people"}
	cfg.Metrics = Metrics{Job: "people"}
	return cfg
}

// Load reads the configuration. An explicit path must exist; without one the
// default search paths are tried and a missing file is not an error.
func Load(path string) (*Config, error) {
	var candidates []string
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Wrapf(err, "config file %s", path)
		}
		candidates = []string{path}
	} else {
		candidates = searchPaths()
	}
	return load(candidates, os.Environ())
}

func searchPaths() []string {
	paths := []string{
		defaultFileName,
		filepath.Join("config", defaultFileName),
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".people", defaultFileName))
	}
	return paths
}

func load(candidates []string, environ []string) (*Config, error) {
	cfg := Default()
	k := koanf.New(".")

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if err := k.Load(file.Provider(candidate), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "read config %s", candidate)
		}
		break
	}

	existing := k.Raw()
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return canonicalizeEnvKey(strings.TrimPrefix(key, envPrefix), existing), value
		},
		EnvironFunc: func() []string { return environ },
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables")
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	return cfg, nil
}

// canonicalizeEnvKey turns SQL_MAXOPENCONNS into sql.maxOpenConns, reusing the
// spelling of keys already present in the YAML layer so both layers merge.
func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}
		if matched, next, ok := findSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
			continue
		}
		canonical = append(canonical, segment)
		current = nil
	}

	return strings.Join(canonical, ".")
}

func findSegment(current map[string]any, segment string) (string, map[string]any, bool) {
	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}
		child, _ := value.(map[string]any)
		return key, child, true
	}
	return "", nil, false
}

func normalizeToken(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
