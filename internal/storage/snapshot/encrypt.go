package snapshot

import (
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"

	"github.com/Jonathanzhao02/strongbox/internal/core/domain"
	"github.com/Jonathanzhao02/strongbox/pkg/crypto/adaptive"
)

const (
	// SaltLength is the salt length for passphrase derivation. The salt
	// is stored in the snapshot header so the key can be re-derived at
	// read time.
	SaltLength = 16

	// MinPassphraseLength rejects trivially weak passphrases.
	MinPassphraseLength = 8

	// Argon2id parameters for passphrase derivation.
	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
)

// Access carries the key material for one snapshot file. Exactly one of
// Key or Passphrase should be set; Passphrase wins when both are.
type Access struct {
	// Key is a raw 32-byte snapshot key.
	Key []byte

	// Passphrase derives the key with Argon2id. On write a fresh salt is
	// generated and persisted in the header; on read the header's salt
	// is used.
	Passphrase []byte

	// Algorithm optionally pins the AEAD construction. Empty picks the
	// hardware-preferred one.
	Algorithm adaptive.Algorithm
}

func (a Access) validate() error {
	if len(a.Passphrase) > 0 {
		if len(a.Passphrase) < MinPassphraseLength {
			return domain.ErrInvalidArgument.WithDetails("passphrase too short")
		}
		return nil
	}
	if len(a.Key) != adaptive.KeySize {
		return domain.ErrKeySize.WithDetails("snapshot key must be 32 bytes")
	}
	return nil
}

// resolveKey produces the snapshot key and the salt to persist. A nil
// salt argument means the write path (generate one when needed).
func (a Access) resolveKey(salt []byte) (key, saltOut []byte, err error) {
	if err := a.validate(); err != nil {
		return nil, nil, err
	}
	if len(a.Passphrase) == 0 {
		key = make([]byte, len(a.Key))
		copy(key, a.Key)
		return key, nil, nil
	}

	if salt == nil {
		salt = make([]byte, SaltLength)
		if _, err := rand.Read(salt); err != nil {
			return nil, nil, domain.ErrIoFailure.WithDetails("entropy source").WithCause(err)
		}
	}
	key = argon2.IDKey(a.Passphrase, salt, argon2Time, argon2Memory, argon2Threads, adaptive.KeySize)
	return key, salt, nil
}

// GenerateKey returns a fresh random 32-byte snapshot key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, adaptive.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, domain.ErrIoFailure.WithDetails("entropy source").WithCause(err)
	}
	return key, nil
}

// DeriveSubkey derives a purpose-bound subkey from a master key with
// HKDF-SHA256, so one exported key can serve several snapshot files
// without reuse.
func DeriveSubkey(masterKey []byte, info string) ([]byte, error) {
	if len(masterKey) != adaptive.KeySize {
		return nil, domain.ErrKeySize.WithDetails("master key must be 32 bytes")
	}
	reader := hkdf.New(sha256.New, masterKey, nil, []byte(info))
	key := make([]byte, adaptive.KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, domain.ErrIoFailure.WithDetails("hkdf expand").WithCause(err)
	}
	return key, nil
}

// ZeroKey wipes key material in place.
func ZeroKey(key []byte) {
	for i := range key {
		key[i] = 0
	}
}
