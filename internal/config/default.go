package config

import "time"

// Default configuration values.
const (
	DefaultSnapshotDir    = "/var/lib/strongbox/snapshots"
	DefaultReadIntervalMS = 200
	DefaultReadBurst      = 5

	DefaultEngineBackend = "badger"
	DefaultEngineDataDir = "/var/lib/strongbox/data"
	DefaultGCInterval    = 5 * time.Minute

	DefaultCacheShards = 32

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default Strongbox configuration.
func Default() *Config {
	return &Config{
		Snapshot: SnapshotSection{
			Dir:            DefaultSnapshotDir,
			ReadIntervalMS: DefaultReadIntervalMS,
			ReadBurst:      DefaultReadBurst,
		},
		Engine: EngineSection{
			Backend:    DefaultEngineBackend,
			DataDir:    DefaultEngineDataDir,
			GCInterval: DefaultGCInterval,
		},
		Cache: CacheSection{
			Shards: DefaultCacheShards,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
