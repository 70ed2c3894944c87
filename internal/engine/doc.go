// Package engine provides the encrypted record storage capability for
// Strongbox.
//
// A Store holds vaults of encrypted records. Record payloads are sealed
// with the owning vault's key before they touch the store, so neither
// implementation ever sees plaintext at rest:
//
//   - Memory: the default backing; everything lives in process memory
//     and exports wholesale into snapshot state.
//   - Badger: a disk-backed variant for deployments where record
//     ciphertext should not stay resident between uses.
//
// Both implementations serialize to the same View shape, which is what
// the snapshot layer persists.
package engine
