// Package config loads vitrine settings from a YAML (or JSON) file and
// VITRINE_* environment variables.
package config

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/aretw0/vitrine/internal/logging"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultFile is looked up in the working directory when no file is given.
const DefaultFile = "vitrine.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "VITRINE_"

// Archive backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendLoam   = "loam"
)

// Config is the complete runtime configuration.
type Config struct {
	ServerURL      string          `mapstructure:"server_url" yaml:"server_url"`
	ThrottleWindow time.Duration   `mapstructure:"throttle_window" yaml:"throttle_window"`
	Reconnect      ReconnectConfig `mapstructure:"reconnect" yaml:"reconnect"`
	Archive        ArchiveConfig   `mapstructure:"archive" yaml:"archive"`
	Redis          RedisConfig     `mapstructure:"redis" yaml:"redis"`
	Record         bool            `mapstructure:"record" yaml:"record"`
	HTTPAddr       string          `mapstructure:"http_addr" yaml:"http_addr"`
	MCPPort        int             `mapstructure:"mcp_port" yaml:"mcp_port"`
	LogLevel       string          `mapstructure:"log_level" yaml:"log_level"`
	LogFormat      string          `mapstructure:"log_format" yaml:"log_format"`
}

// ReconnectConfig drives the live gateway's backoff.
type ReconnectConfig struct {
	Initial     time.Duration `mapstructure:"initial" yaml:"initial"`
	Max         time.Duration `mapstructure:"max" yaml:"max"`
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// ArchiveConfig selects where recorded reports live.
type ArchiveConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	Path    string `mapstructure:"path" yaml:"path"`

	// EncryptionKey is a base64 AES-256 key. When set, recordings are sealed at rest.
	EncryptionKey string `mapstructure:"encryption_key" yaml:"encryption_key"`

	// Redact lists regular expressions masked out of recordings before they are stored.
	Redact []string `mapstructure:"redact" yaml:"redact"`
}

// RedisConfig is used by the redis archive and the distributed locker.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr" yaml:"addr"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db" yaml:"db"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Prefix   string        `mapstructure:"prefix" yaml:"prefix"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ThrottleWindow: 400 * time.Millisecond,
		Reconnect: ReconnectConfig{
			Initial: 500 * time.Millisecond,
			Max:     10 * time.Second,
		},
		Archive: ArchiveConfig{
			Backend: BackendFile,
			Path:    filepath.Join(".vitrine", "reports"),
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "vitrine:report:",
		},
		Record:    true,
		HTTPAddr:  ":8080",
		MCPPort:   8081,
		LogLevel:  "info",
		LogFormat: logging.FormatText,
	}
}

// keys lists every setting that can be overridden from the environment.
// redis.addr is read from VITRINE_REDIS_ADDR.
var keys = []string{
	"server_url",
	"throttle_window",
	"reconnect.initial",
	"reconnect.max",
	"reconnect.max_attempts",
	"archive.backend",
	"archive.path",
	"archive.encryption_key",
	"archive.redact",
	"redis.addr",
	"redis.password",
	"redis.db",
	"redis.ttl",
	"redis.prefix",
	"record",
	"http_addr",
	"mcp_port",
	"log_level",
	"log_format",
}

// EnvName returns the variable overriding key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Load reads path (a missing file is not an error), applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	raw, err := readFile(path)
	if err != nil {
		return Config{}, err
	}
	for _, key := range keys {
		if v, ok := os.LookupEnv(EnvName(key)); ok {
			setPath(raw, key, v)
		}
	}

	cfg := Default()
	if err := decode(raw, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readFile(path string) (map[string]any, error) {
	raw := map[string]any{}
	if path == "" {
		return raw, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return raw, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		err = json.Unmarshal(data, &raw)
	} else {
		err = yaml.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

func setPath(m map[string]any, key, value string) {
	parts := strings.Split(key, ".")
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
}

func decode(raw map[string]any, cfg *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if c.ServerURL != "" {
		u, err := url.Parse(c.ServerURL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			errs = append(errs, fmt.Errorf("server_url %q must be a ws:// or wss:// URL", c.ServerURL))
		}
	}
	if c.ThrottleWindow <= 0 {
		errs = append(errs, errors.New("throttle_window must be positive"))
	}
	if c.Reconnect.Initial <= 0 || c.Reconnect.Max < c.Reconnect.Initial {
		errs = append(errs, errors.New("reconnect.initial must be positive and not above reconnect.max"))
	}
	if c.Reconnect.MaxAttempts < 0 {
		errs = append(errs, errors.New("reconnect.max_attempts cannot be negative"))
	}

	backends := []string{BackendMemory, BackendFile, BackendRedis, BackendLoam}
	if !slices.Contains(backends, c.Archive.Backend) {
		errs = append(errs, fmt.Errorf("archive.backend %q is not one of %s", c.Archive.Backend, strings.Join(backends, ", ")))
	}
	if (c.Archive.Backend == BackendFile || c.Archive.Backend == BackendLoam) && c.Archive.Path == "" {
		errs = append(errs, fmt.Errorf("archive.path is required for the %s backend", c.Archive.Backend))
	}
	if c.Archive.EncryptionKey != "" {
		if _, err := c.Archive.Key(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Archive.Backend == BackendRedis && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required for the redis backend"))
	}
	if c.MCPPort < 0 || c.MCPPort > 65535 {
		errs = append(errs, fmt.Errorf("mcp_port %d is out of range", c.MCPPort))
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("log_level %q: %w", c.LogLevel, err))
	}
	if c.LogFormat != logging.FormatText && c.LogFormat != logging.FormatJSON {
		errs = append(errs, fmt.Errorf("log_format %q must be %s or %s", c.LogFormat, logging.FormatText, logging.FormatJSON))
	}

	return errors.Join(errs...)
}

// Key decodes EncryptionKey. It returns nil when no key is configured.
func (a ArchiveConfig) Key() ([]byte, error) {
	if a.EncryptionKey == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(a.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("archive.encryption_key is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("archive.encryption_key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// Level returns the parsed log level, info when unparsable.
func (c Config) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
