package service

import (
	"crypto/rand"

	"github.com/awnumar/memguard"

	"github.com/Jonathanzhao02/strongbox/internal/core/domain"
	"github.com/Jonathanzhao02/strongbox/pkg/cmap"
	"github.com/Jonathanzhao02/strongbox/pkg/crypto/adaptive"
)

// KeyStore maps vault ids to their encryption keys. Keys at rest live in
// memguard enclaves, so plaintext key material only exists transiently
// while an operation holds it. The store is not enumerable: callers can
// ask about a vault they already know, or stage everything for a snapshot
// with Export.
type KeyStore struct {
	keys *cmap.Map[domain.VaultID, *memguard.Enclave]
}

// NewKeyStore creates an empty key store.
func NewKeyStore() *KeyStore {
	return &KeyStore{keys: cmap.New[domain.VaultID, *memguard.Enclave]()}
}

// CreateKey generates a fresh key for the vault and returns a copy of it.
// An existing key for the vault is replaced.
func (ks *KeyStore) CreateKey(vaultID domain.VaultID) ([]byte, error) {
	key := make([]byte, adaptive.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, domain.ErrIoFailure.WithDetails("entropy source").WithCause(err)
	}
	out := make([]byte, len(key))
	copy(out, key)

	// NewEnclave wipes its input.
	ks.keys.Set(vaultID, memguard.NewEnclave(key))
	return out, nil
}

// GetKey returns a copy of the vault's key, or ErrNotExisting.
func (ks *KeyStore) GetKey(vaultID domain.VaultID) ([]byte, error) {
	enclave, ok := ks.keys.Get(vaultID)
	if !ok {
		return nil, domain.ErrNotExisting.WithDetails("no key for vault " + vaultID.String())
	}
	buf, err := enclave.Open()
	if err != nil {
		return nil, domain.ErrInternalInvariant.WithDetails("sealed key unreadable").WithCause(err)
	}
	defer buf.Destroy()

	out := make([]byte, len(buf.Bytes()))
	copy(out, buf.Bytes())
	return out, nil
}

// InsertKey stores an externally supplied key for the vault, replacing
// any existing one. The input slice is wiped.
func (ks *KeyStore) InsertKey(vaultID domain.VaultID, key []byte) error {
	if len(key) != adaptive.KeySize {
		return domain.ErrKeySize.WithDetails("vault key must be 32 bytes")
	}
	ks.keys.Set(vaultID, memguard.NewEnclave(key))
	return nil
}

// VaultExists reports whether a key is held for the vault.
func (ks *KeyStore) VaultExists(vaultID domain.VaultID) bool {
	return ks.keys.Has(vaultID)
}

// VaultIDs returns the ids of all vaults with a key.
func (ks *KeyStore) VaultIDs() []domain.VaultID {
	return ks.keys.Keys()
}

// Export copies every key out for snapshot staging.
func (ks *KeyStore) Export() (map[domain.VaultID][]byte, error) {
	out := make(map[domain.VaultID][]byte, ks.keys.Count())
	var exportErr error
	ks.keys.Range(func(vid domain.VaultID, enclave *memguard.Enclave) bool {
		buf, err := enclave.Open()
		if err != nil {
			exportErr = domain.ErrInternalInvariant.WithDetails("sealed key unreadable").WithCause(err)
			return false
		}
		key := make([]byte, len(buf.Bytes()))
		copy(key, buf.Bytes())
		buf.Destroy()
		out[vid] = key
		return true
	})
	if exportErr != nil {
		return nil, exportErr
	}
	return out, nil
}

// Import replaces the store contents wholesale. The caller keeps
// ownership of the input slices; each key is sealed from a copy.
func (ks *KeyStore) Import(keys map[domain.VaultID][]byte) error {
	for _, key := range keys {
		if len(key) != adaptive.KeySize {
			return domain.ErrKeySize.WithDetails("vault key must be 32 bytes")
		}
	}
	ks.keys.Clear()
	for vid, key := range keys {
		sealed := make([]byte, len(key))
		copy(sealed, key)
		ks.keys.Set(vid, memguard.NewEnclave(sealed))
	}
	return nil
}

// Clear drops every key.
func (ks *KeyStore) Clear() {
	ks.keys.Clear()
}
