package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Bus drivers.
const (
	BusDriverMemory = "memory"
	BusDriverRedis  = "redis"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Index  IndexConfig       `yaml:"index"`
	Tags   TagsConfig        `yaml:"tags"`
	Bus    BusConfig         `yaml:"bus"`
	Auth   AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Index.Validate(); err != nil {
		return err
	}
	if c.Index.Path == c.SQLite.Path {
		return fmt.Errorf("index: path must differ from sqlite.path")
	}
	if err := c.Tags.Validate(); err != nil {
		return err
	}
	if err := c.Bus.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds the authoritative question store configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// IndexConfig holds the search index configuration. The index lives in its
// own database file; it never shares a transaction with the question store.
type IndexConfig struct {
	Path string `yaml:"path"`
	// UpsertOnUpdate makes QuestionUpdated insert documents the index has
	// never seen instead of waiting for the QuestionCreated redelivery.
	UpsertOnUpdate bool `yaml:"upsert_on_update"`
	// ReconcileOnStart repairs index drift before consuming events.
	ReconcileOnStart bool `yaml:"reconcile_on_start"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// TagsConfig holds tag catalog configuration.
type TagsConfig struct {
	TTL time.Duration `yaml:"ttl"`
	// CatalogPath is an optional YAML catalog seeded into the store and
	// watched for changes.
	CatalogPath string `yaml:"catalog_path"`
}

// Validate validates the tags configuration.
func (c *TagsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Second)),
	)
}

// BusConfig holds event bus configuration.
type BusConfig struct {
	Driver          string        `yaml:"driver"`
	RedeliveryDelay time.Duration `yaml:"redelivery_delay"`
	MaxDeliveries   int           `yaml:"max_deliveries"`
	Redis           RedisConfig   `yaml:"redis"`
}

// Validate validates the bus configuration.
func (c *BusConfig) Validate() error {
	if c.Driver == "" {
		c.Driver = BusDriverMemory
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(BusDriverMemory, BusDriverRedis)),
		validation.Field(&c.RedeliveryDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxDeliveries, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("bus: %w", err)
	}
	if c.Driver == BusDriverRedis {
		return c.Redis.Validate()
	}
	return nil
}

// RedisConfig holds Redis Streams configuration.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Stream   string `yaml:"stream"`
	Group    string `yaml:"group"`
	Consumer string `yaml:"consumer"`
	// MaxLen caps the stream length (approximate trimming); 0 keeps everything.
	MaxLen      int64         `yaml:"max_len"`
	Block       time.Duration `yaml:"block"`
	ReclaimIdle time.Duration `yaml:"reclaim_idle"`
}

// Validate validates the Redis configuration.
func (c *RedisConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.Stream, validation.Required),
		validation.Field(&c.Group, validation.Required),
		validation.Field(&c.Consumer, validation.Required),
		validation.Field(&c.MaxLen, validation.Min(int64(0))),
	); err != nil {
		return fmt.Errorf("bus.redis: %w", err)
	}
	return nil
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
//
// Caller identity is read from the X-User-Id and X-User-Name headers in
// both modes.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./reoverflow.db",
		},
		Index: IndexConfig{
			Path:             "./reoverflow-search.db",
			ReconcileOnStart: true,
		},
		Tags: TagsConfig{
			TTL: 2 * time.Hour,
		},
		Bus: BusConfig{
			Driver:          BusDriverMemory,
			RedeliveryDelay: time.Second,
			MaxDeliveries:   10,
			Redis: RedisConfig{
				Addr:        "localhost:6379",
				Stream:      "reoverflow:events",
				Group:       "index-syncer",
				Consumer:    "syncer-1",
				MaxLen:      100000,
				Block:       5 * time.Second,
				ReclaimIdle: 30 * time.Second,
			},
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
