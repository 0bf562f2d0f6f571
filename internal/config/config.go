// Package config loads listorder configuration from a YAML or CUE file,
// fills defaults and applies LISTORDER_* environment overrides.
//
// CUE files are unified with the embedded #Config schema before decoding,
// so type and enum errors are reported with file positions. Both formats
// go through the same Validate pass afterwards.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/listorder/internal/ordering"
)

//go:embed schema.cue
var schemaSource string

// ErrInvalid marks configuration that decodes but cannot be used.
var ErrInvalid = errors.New("invalid configuration")

// Error reports a configuration file that could not be read or decoded.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Config is the top-level configuration.
type Config struct {
	Store   StoreConfig           `yaml:"store" json:"store"`
	Logging LoggingConfig         `yaml:"logging" json:"logging"`
	Lock    LockConfig            `yaml:"lock" json:"lock"`
	Metrics MetricsConfig         `yaml:"metrics" json:"metrics"`
	Lists   map[string]ListConfig `yaml:"lists" json:"lists"`
}

// StoreConfig selects and addresses the document store.
type StoreConfig struct {
	Driver          string   `yaml:"driver" json:"driver"`
	Path            string   `yaml:"path" json:"path"`
	DSN             string   `yaml:"dsn" json:"dsn"`
	URI             string   `yaml:"uri" json:"uri"`
	Database        string   `yaml:"database" json:"database"`
	MaxOpenConns    int      `yaml:"maxOpenConns" json:"maxOpenConns"`
	ConnMaxLifetime Duration `yaml:"connMaxLifetime" json:"connMaxLifetime"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// LockConfig selects the scope locker.
type LockConfig struct {
	Driver        string      `yaml:"driver" json:"driver"`
	TTL           Duration    `yaml:"ttl" json:"ttl"`
	RetryInterval Duration    `yaml:"retryInterval" json:"retryInterval"`
	Prefix        string      `yaml:"prefix" json:"prefix"`
	Redis         RedisConfig `yaml:"redis" json:"redis"`
}

// RedisConfig addresses the Redis server used by the redis lock driver.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
}

// MetricsConfig toggles store call instrumentation.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// ListConfig describes one ordered list.
type ListConfig struct {
	Collection string `yaml:"collection" json:"collection"`
	Column     string `yaml:"column" json:"column"`
	Scope      Scope  `yaml:"scope" json:"scope"`
	Placement  string `yaml:"placement" json:"placement"`
}

// Ordering converts the list configuration for the ordering engine.
func (l ListConfig) Ordering() (ordering.Config, error) {
	placement, err := ordering.ParsePlacement(l.Placement)
	if err != nil {
		return ordering.Config{}, err
	}
	return ordering.Config{
		Column:    l.Column,
		Scope:     []string(l.Scope),
		Placement: placement,
	}, nil
}

// Scope is a list of field names. In files it may be written as a single
// name or a list of names.
type Scope []string

// UnmarshalYAML accepts a scalar or a sequence.
func (s *Scope) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" || node.Value == "" {
			*s = nil
			return nil
		}
		*s = Scope{node.Value}
		return nil
	case yaml.SequenceNode:
		var names []string
		if err := node.Decode(&names); err != nil {
			return err
		}
		*s = names
		return nil
	default:
		return fmt.Errorf("line %d: scope must be a field name or a list of field names", node.Line)
	}
}

// UnmarshalJSON accepts a string or an array of strings.
func (s *Scope) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*s = Scope{name}
		return nil
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return fmt.Errorf("scope must be a field name or a list of field names: %w", err)
	}
	*s = names
	return nil
}

// Duration is a time.Duration written as a Go duration string ("10s").
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// UnmarshalJSON parses a duration string.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalJSON writes the duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// DefaultList is the list used when a configuration defines none.
const DefaultList = "default"

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:          "sqlite",
			Path:            "listorder.db",
			Database:        "listorder",
			MaxOpenConns:    10,
			ConnMaxLifetime: Duration(5 * time.Minute),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Lock: LockConfig{
			Driver:        "none",
			TTL:           Duration(10 * time.Second),
			RetryInterval: Duration(20 * time.Millisecond),
			Prefix:        "listorder:lock:",
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Lists: map[string]ListConfig{
			DefaultList: {Collection: "items", Column: ordering.DefaultColumn},
		},
	}
}

// Load reads the file at path (when non-empty) over the defaults, applies
// environment overrides and validates the result. The format follows the
// extension: .cue for CUE, anything else is YAML.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &Error{Path: path, Err: err}
		}
		// Decoders merge into existing maps; a file that names lists
		// replaces the default list instead of adding to it.
		defaults := cfg.Lists
		cfg.Lists = nil
		if strings.EqualFold(filepath.Ext(path), ".cue") {
			err = decodeCUE(path, data, cfg)
		} else {
			err = decodeYAML(data, cfg)
		}
		if err != nil {
			return nil, &Error{Path: path, Err: err}
		}
		if len(cfg.Lists) == 0 {
			cfg.Lists = defaults
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func decodeCUE(path string, data []byte, cfg *Config) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return err
	}
	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return err
	}
	encoded, err := unified.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(encoded, cfg)
}

// applyEnvOverrides reads LISTORDER_* variables over the loaded values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LISTORDER_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("LISTORDER_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("LISTORDER_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("LISTORDER_STORE_URI"); v != "" {
		cfg.Store.URI = v
	}
	if v := os.Getenv("LISTORDER_STORE_DATABASE"); v != "" {
		cfg.Store.Database = v
	}
	if v := os.Getenv("LISTORDER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LISTORDER_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("LISTORDER_LOCK_DRIVER"); v != "" {
		cfg.Lock.Driver = v
	}
	if v := os.Getenv("LISTORDER_REDIS_ADDR"); v != "" {
		cfg.Lock.Redis.Addr = v
	}
	if v := os.Getenv("LISTORDER_REDIS_PASSWORD"); v != "" {
		cfg.Lock.Redis.Password = v
	}
	if v := os.Getenv("LISTORDER_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Lock.Redis.DB = db
		}
	}
	if v := os.Getenv("LISTORDER_METRICS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = enabled
		}
	}
}

// Validate checks the values both file formats can express but the
// program cannot use.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("%w: store.path is required for sqlite", ErrInvalid)
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("%w: store.dsn is required for postgres", ErrInvalid)
		}
	case "mongo":
		if c.Store.URI == "" || c.Store.Database == "" {
			return fmt.Errorf("%w: store.uri and store.database are required for mongo", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown store driver %q", ErrInvalid, c.Store.Driver)
	}

	switch c.Lock.Driver {
	case "", "none", "mutex":
	case "redis":
		if c.Lock.Redis.Addr == "" {
			return fmt.Errorf("%w: lock.redis.addr is required for the redis lock", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown lock driver %q", ErrInvalid, c.Lock.Driver)
	}

	if len(c.Lists) == 0 {
		return fmt.Errorf("%w: no lists configured", ErrInvalid)
	}
	for name, l := range c.Lists {
		if l.Collection == "" {
			return fmt.Errorf("%w: list %q has no collection", ErrInvalid, name)
		}
		if _, err := l.Ordering(); err != nil {
			return fmt.Errorf("list %q: %w", name, err)
		}
	}
	return nil
}

// List returns the named list. An empty name selects the only list when
// exactly one is configured, otherwise DefaultList.
func (c *Config) List(name string) (ListConfig, error) {
	if name == "" {
		if len(c.Lists) == 1 {
			for _, l := range c.Lists {
				return l, nil
			}
		}
		name = DefaultList
	}
	l, ok := c.Lists[name]
	if !ok {
		return ListConfig{}, fmt.Errorf("%w: list %q is not configured", ErrInvalid, name)
	}
	return l, nil
}
