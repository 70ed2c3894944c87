// Package cmap provides a concurrent map implementation for Strongbox.
//
// The map is sharded with a per-shard RWMutex so the keystore and the
// coordinator's routing table can be read under concurrent access without
// a single global lock. Keys must be encoding.TextMarshaler or plain
// strings; their text form feeds the shard hash.
//
// All operations are thread-safe. Iteration locks shard by shard, so the
// observed view may interleave with concurrent writes.
package cmap
