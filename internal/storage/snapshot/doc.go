// Package snapshot provides encrypted state persistence for Strongbox.
//
// A snapshot file carries the complete exported state of one or more
// clients: their vault keys, record store views, and live ephemeral
// entries. The body is sealed under a single snapshot key (supplied raw
// or derived from a passphrase with Argon2id; the salt travels in the
// plaintext header), framed with magic bytes and length prefixes, and
// closed with a SHA-256 trailer. Writes go through a temp file and
// rename, so a crash never leaves a half-written snapshot in place.
//
// The Coordinator serializes every fill/write/read/synchronize through a
// single goroutine, which is what makes "state observed by a write is
// the state persisted" hold without locks elsewhere.
package snapshot
