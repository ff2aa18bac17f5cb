// Package config loads samctl settings: built-in defaults, then an optional
// YAML file, then SAM_* environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/LynxShu/ST-var-manager/internal/rules"
	"github.com/LynxShu/ST-var-manager/internal/sandbox"
	"github.com/LynxShu/ST-var-manager/pkg/domain"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// Config is the full application configuration.
type Config struct {
	LogLevel string `yaml:"log_level" env:"SAM_LOG_LEVEL"`
	LogJSON  string `yaml:"log_json" env:"SAM_LOG_JSON"`

	Markers Markers `yaml:"markers"`
	Sandbox Sandbox `yaml:"sandbox"`
	Rules   Rules   `yaml:"rules"`
	Store   Store   `yaml:"store"`

	// Library is a directory of function documents installed into every state.
	Library string `yaml:"library" env:"SAM_LIBRARY"`
}

// Markers delimit the persisted state block.
type Markers struct {
	Start  string `yaml:"start" env:"SAM_START_MARKER"`
	End    string `yaml:"end" env:"SAM_END_MARKER"`
	Legacy bool   `yaml:"legacy" env:"SAM_LEGACY_MARKERS"`
}

// Resolve returns the effective markers.
func (m Markers) Resolve() (start, end string) {
	if m.Legacy {
		return domain.LegacyStartMarker, domain.LegacyEndMarker
	}
	return m.Start, m.End
}

// Sandbox tunes function execution.
type Sandbox struct {
	Timeout  time.Duration `yaml:"timeout" env:"SAM_FUNCTION_TIMEOUT"`
	MaxSteps uint64        `yaml:"max_steps" env:"SAM_MAX_STEPS"`
	Rollback bool          `yaml:"rollback" env:"SAM_ROLLBACK"`
}

// Rules locates the world clock and the statuses.
type Rules struct {
	TimePath     string `yaml:"time_path" env:"SAM_TIME_PATH"`
	EntityPath   string `yaml:"entity_path" env:"SAM_ENTITY_PATH"`
	StatusField  string `yaml:"status_field" env:"SAM_STATUS_FIELD"`
	FunctionName string `yaml:"function_name" env:"SAM_ADVANCE_FUNCTION"`
}

// Store selects the variable store backend.
type Store struct {
	Kind string `yaml:"kind" env:"SAM_STORE"`

	// Path is the JSON file (file) or the database file (sqlite).
	Path string `yaml:"path" env:"SAM_STORE_PATH"`

	// Chat scopes the stored state when a backend holds several chats.
	Chat string `yaml:"chat" env:"SAM_CHAT"`

	RedisAddr   string        `yaml:"redis_addr" env:"SAM_REDIS_ADDR"`
	RedisPrefix string        `yaml:"redis_prefix" env:"SAM_REDIS_PREFIX"`
	RedisTTL    time.Duration `yaml:"redis_ttl" env:"SAM_REDIS_TTL"`

	// EncryptionKey is a hex-encoded AES key (16, 24 or 32 bytes) used to encrypt the state at rest.
	EncryptionKey string `yaml:"encryption_key" env:"SAM_ENCRYPTION_KEY"`
}

// Key decodes EncryptionKey. It returns nil when no key is configured.
func (s Store) Key() ([]byte, error) {
	if s.EncryptionKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(s.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key is not hex: %w", err)
	}
	switch len(key) {
	case 16, 24, 32:
		return key, nil
	}
	return nil, fmt.Errorf("encryption key must be 16, 24 or 32 bytes, got %d", len(key))
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Markers: Markers{
			Start: domain.DefaultStartMarker,
			End:   domain.DefaultEndMarker,
		},
		Sandbox: Sandbox{
			Timeout:  domain.DefaultFunctionTimeout,
			MaxSteps: sandbox.DefaultMaxSteps,
		},
		Rules: Rules{
			TimePath:     rules.DefaultTimePath,
			EntityPath:   rules.DefaultEntityPath,
			StatusField:  rules.DefaultStatusField,
			FunctionName: rules.DefaultFunctionName,
		},
		Store: Store{
			Kind:        StoreMemory,
			Chat:        "default",
			RedisAddr:   "localhost:6379",
			RedisPrefix: "sam:state:",
		},
	}
}

// Load reads path (optional) over the defaults and then applies the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be fixed by defaults.
func (c *Config) Validate() error {
	switch c.Store.Kind {
	case StoreMemory, StoreRedis:
	case StoreFile, StoreSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store %q needs a path", c.Store.Kind)
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store.Kind)
	}
	if start, end := c.Markers.Resolve(); start == "" || end == "" {
		return fmt.Errorf("state markers must not be empty")
	}
	if c.Sandbox.Timeout < 0 {
		return fmt.Errorf("function timeout must not be negative")
	}
	if _, err := c.Store.Key(); err != nil {
		return err
	}
	return nil
}
