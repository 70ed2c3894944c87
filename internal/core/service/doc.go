// Package service provides domain services for Strongbox.
//
// This package contains:
//
//   - KeyStore: vault-id to encryption-key registry, keys sealed in
//     memguard enclaves while at rest
//   - Client: the per-client working state tying keystore, record store,
//     vault membership, and the ephemeral store together
//
// Services orchestrate the engine capability without ever persisting
// plaintext; snapshot staging goes through explicit Export/Reload calls.
package service
