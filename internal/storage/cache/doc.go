// Package cache provides the ephemeral, unencrypted key-value store that
// accompanies each client's vault data.
//
// Entries may carry an absolute expiry; expired entries behave as absent
// and are reaped lazily on access. The store shards its keyspace with
// murmur3 to keep lock contention low, and exports only live entries when
// it is staged into a snapshot.
package cache
