// Package domain defines the core domain models for Strongbox.
//
// Domain models are pure value objects without any IO dependencies or
// framework coupling. This package contains:
//
//   - ClientID, VaultID, RecordID: 24-byte opaque addresses
//   - Deterministic address derivation (BLAKE2b, purpose-separated)
//   - Location: symbolic record coordinates (generic and counter forms)
//   - Errors: domain-specific error definitions
//
// The same logical path always derives the same address, so callers
// never need to persist a name-to-address mapping.
package domain
