package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "STRONGBOX_"

// Loader loads configuration from multiple sources.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
}

// Option configures the Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets the configuration file path.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// NewLoader creates a configuration loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load resolves the configuration. Sources in increasing priority:
//  1. Default values
//  2. YAML configuration file
//  3. Environment variables (STRONGBOX_SNAPSHOT_DIR -> snapshot.dir)
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.filePath != "" {
		if err := l.k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", l.filePath, err)
		}
	}

	envTransformer := func(s string) string {
		s = strings.TrimPrefix(s, l.envPrefix)
		s = strings.ToLower(s)
		s = strings.ReplaceAll(s, "_", ".")
		return s
	}
	if err := l.k.Load(env.Provider(l.envPrefix, ".", envTransformer), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	if err := l.k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Verify(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Verify validates a resolved configuration.
func Verify(cfg *Config) error {
	if cfg.Snapshot.Dir == "" {
		return errors.New("snapshot.dir is required")
	}
	if cfg.Snapshot.ReadIntervalMS < 0 {
		return errors.New("snapshot.read_interval_ms must not be negative")
	}
	if cfg.Snapshot.ReadBurst < 1 {
		return errors.New("snapshot.read_burst must be at least 1")
	}

	switch cfg.Engine.Backend {
	case "memory":
	case "badger":
		if cfg.Engine.DataDir == "" {
			return errors.New("engine.data_dir is required for the badger backend")
		}
	default:
		return fmt.Errorf("engine.backend must be memory or badger, got %q", cfg.Engine.Backend)
	}

	if cfg.Cache.Shards < 1 || cfg.Cache.Shards&(cfg.Cache.Shards-1) != 0 {
		return errors.New("cache.shards must be a power of two")
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn, or error, got %q", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", cfg.Log.Format)
	}
	return nil
}
