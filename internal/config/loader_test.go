package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoader_Defaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Snapshot.Dir != DefaultSnapshotDir {
		t.Errorf("snapshot.dir = %q, want %q", cfg.Snapshot.Dir, DefaultSnapshotDir)
	}
	if cfg.Engine.Backend != DefaultEngineBackend {
		t.Errorf("engine.backend = %q, want %q", cfg.Engine.Backend, DefaultEngineBackend)
	}
	if cfg.Cache.Shards != DefaultCacheShards {
		t.Errorf("cache.shards = %d, want %d", cfg.Cache.Shards, DefaultCacheShards)
	}
	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("log.level = %q, want %q", cfg.Log.Level, DefaultLogLevel)
	}
}

func TestLoader_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
snapshot:
  dir: /tmp/snaps
engine:
  backend: memory
  gc_interval: 1m
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewLoader(WithConfigFile(path)).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Snapshot.Dir != "/tmp/snaps" {
		t.Errorf("snapshot.dir = %q, want /tmp/snaps", cfg.Snapshot.Dir)
	}
	if cfg.Engine.Backend != "memory" {
		t.Errorf("engine.backend = %q, want memory", cfg.Engine.Backend)
	}
	if cfg.Engine.GCInterval != time.Minute {
		t.Errorf("engine.gc_interval = %v, want 1m", cfg.Engine.GCInterval)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %q, want debug", cfg.Log.Level)
	}
	// Untouched sections keep their defaults.
	if cfg.Snapshot.ReadBurst != DefaultReadBurst {
		t.Errorf("snapshot.read_burst = %d, want default %d", cfg.Snapshot.ReadBurst, DefaultReadBurst)
	}
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "log:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("STRONGBOX_LOG_LEVEL", "error")

	cfg, err := NewLoader(WithConfigFile(path)).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("log.level = %q, want error (env wins over file)", cfg.Log.Level)
	}
}

func TestLoader_MissingFile(t *testing.T) {
	_, err := NewLoader(WithConfigFile("/nonexistent/config.yaml")).Load()
	if err == nil {
		t.Error("Load() with missing file succeeded, want error")
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"memory backend without data dir", func(c *Config) {
			c.Engine.Backend = "memory"
			c.Engine.DataDir = ""
		}, false},
		{"empty snapshot dir", func(c *Config) { c.Snapshot.Dir = "" }, true},
		{"zero read burst", func(c *Config) { c.Snapshot.ReadBurst = 0 }, true},
		{"unknown backend", func(c *Config) { c.Engine.Backend = "redis" }, true},
		{"badger without data dir", func(c *Config) { c.Engine.DataDir = "" }, true},
		{"non power of two shards", func(c *Config) { c.Cache.Shards = 30 }, true},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, true},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Verify(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Verify() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
