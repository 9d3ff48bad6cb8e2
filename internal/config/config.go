// Package config loads the pageflow server configuration.
//
// Values come from defaults, then an optional YAML file, then command line
// flags (applied by the CLI).
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config is the server configuration.
type Config struct {
	Addr     string        `mapstructure:"addr"`
	Flows    string        `mapstructure:"flows"`
	LogLevel string        `mapstructure:"log_level"`
	LogJSON  bool          `mapstructure:"log_json"`
	Metrics  bool          `mapstructure:"metrics"`
	Store    StoreConfig   `mapstructure:"store"`
	Session  SessionConfig `mapstructure:"session"`
	Tracing  TracingConfig `mapstructure:"tracing"`
}

// TracingConfig enables OpenTelemetry spans for dispatched requests.
// Output is a file path; empty means stderr.
type TracingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Output  string `mapstructure:"output"`
}

// StoreConfig selects the conversation store.
type StoreConfig struct {
	// Driver is "memory", "file", "sqlite" or "redis".
	Driver     string           `mapstructure:"driver"`
	File       FileConfig       `mapstructure:"file"`
	SQLite     SQLiteConfig     `mapstructure:"sqlite"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Encryption EncryptionConfig `mapstructure:"encryption"`
}

// EncryptionConfig enables sealing conversation attributes at rest.
// Keys are hex encoded 32 byte AES keys.
type EncryptionConfig struct {
	Key          string   `mapstructure:"key"`
	FallbackKeys []string `mapstructure:"fallback_keys"`
}

// Enabled reports whether a key is configured.
func (e EncryptionConfig) Enabled() bool { return e.Key != "" }

// Keys decodes the active and fallback keys.
func (e EncryptionConfig) Keys() (active []byte, fallback [][]byte, err error) {
	if active, err = decodeKey(e.Key); err != nil {
		return nil, nil, fmt.Errorf("store.encryption.key: %w", err)
	}
	for i, k := range e.FallbackKeys {
		b, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("store.encryption.fallback_keys[%d]: %w", i, err)
		}
		fallback = append(fallback, b)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("want 32 bytes, got %d", len(b))
	}
	return b, nil
}

// FileConfig configures the file store.
type FileConfig struct {
	Dir string `mapstructure:"dir"`
}

// SQLiteConfig configures the sqlite store. Conversations idle for longer
// than TTL are purged; zero keeps them forever.
type SQLiteConfig struct {
	Path string        `mapstructure:"path"`
	TTL  time.Duration `mapstructure:"ttl"`
}

// RedisConfig configures the redis store and distributed lock.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
	Lock     bool          `mapstructure:"lock"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

// SessionConfig configures how requests are tied to conversations.
type SessionConfig struct {
	Cookie    string `mapstructure:"cookie"`
	Secure    bool   `mapstructure:"secure"`
	Parameter string `mapstructure:"parameter"`
	Strict    bool   `mapstructure:"strict"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:     ":8080",
		LogLevel: "info",
		Metrics:  true,
		Store: StoreConfig{
			Driver: "memory",
			File: FileConfig{
				Dir: ".pageflow/sessions",
			},
			SQLite: SQLiteConfig{
				Path: "pageflow.db",
				TTL:  30 * time.Minute,
			},
			Redis: RedisConfig{
				Addr:    "localhost:6379",
				Prefix:  "pageflow:session:",
				TTL:     30 * time.Minute,
				LockTTL: 30 * time.Second,
			},
		},
		Session: SessionConfig{
			Cookie:    "pageflow_session",
			Parameter: "conversation",
		},
	}
}

// Load reads path over the defaults. A missing file is an error.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if raw == nil {
		return cfg, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks values the decoder cannot.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "file", "sqlite", "redis":
	default:
		return fmt.Errorf("invalid config: unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Encryption.Enabled() {
		if _, _, err := c.Store.Encryption.Keys(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}
	if c.Session.Parameter == "" {
		return fmt.Errorf("invalid config: session.parameter must not be empty")
	}
	if c.Session.Cookie == "" {
		return fmt.Errorf("invalid config: session.cookie must not be empty")
	}
	return nil
}
