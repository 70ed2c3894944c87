package config

import "time"

// Config is the root Strongbox configuration.
type Config struct {
	Snapshot SnapshotSection `koanf:"snapshot"`
	Engine   EngineSection   `koanf:"engine"`
	Cache    CacheSection    `koanf:"cache"`
	Log      LogSection      `koanf:"log"`
}

// SnapshotSection configures snapshot persistence.
type SnapshotSection struct {
	// Dir is the directory snapshot files are written to.
	Dir string `koanf:"dir"`

	// ReadIntervalMS throttles disk reads. One read is allowed every
	// interval, with ReadBurst attempts available up front.
	ReadIntervalMS int `koanf:"read_interval_ms"`
	ReadBurst      int `koanf:"read_burst"`
}

// EngineSection configures the record storage backend.
type EngineSection struct {
	// Backend selects the store: "memory" or "badger".
	Backend string `koanf:"backend"`

	// DataDir is the Badger database directory. Ignored by the memory
	// backend.
	DataDir string `koanf:"data_dir"`

	// GCInterval is how often the Badger value log is garbage collected.
	GCInterval time.Duration `koanf:"gc_interval"`
}

// CacheSection configures the ephemeral store.
type CacheSection struct {
	// Shards is the shard count; must be a power of two.
	Shards int `koanf:"shards"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
