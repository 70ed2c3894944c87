// Package adaptive provides authenticated encryption with automatic
// algorithm selection.
//
// Strongbox encrypts record payloads and snapshot bodies under 32-byte
// keys. On architectures with hardware AES support the package picks
// AES-256-GCM; elsewhere it falls back to ChaCha20-Poly1305, which stays
// constant-time in software. Both produce the same wire shape:
// nonce || ciphertext || tag, so sealed blobs carry no algorithm marker
// of their own.
package adaptive
