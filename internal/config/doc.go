// Package config defines the Strongbox configuration structure and its
// loading mechanism.
//
// It uses Koanf for flexible configuration loading from multiple
// sources with priority: Env > File > Default. A fsnotify-based watcher
// picks up edits to the configuration file at runtime.
package config
