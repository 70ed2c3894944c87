// Package main provides the entry point for strongbox-cli.
//
// The CLI tool provides offline access to Strongbox snapshot files for:
//
//   - Header inspection and integrity verification (inspect)
//   - Listing stored client addresses (clients)
//   - Merging one client between snapshot files (sync)
//   - Snapshot key generation (keygen)
//
// Usage:
//
//	strongbox-cli [command] [flags]
//	strongbox-cli inspect backup.snapshot
//	strongbox-cli sync --client HEX --source a.snapshot --target b.snapshot
//
// All commands operate on files directly; no server is involved.
package main
