package engine

import (
	"sync"

	"github.com/Jonathanzhao02/strongbox/internal/core/domain"
	"github.com/Jonathanzhao02/strongbox/pkg/crypto/adaptive"
)

// Memory is the in-process Store implementation. It is the default
// backing: the whole view serializes into snapshot state and is replaced
// wholesale when a snapshot is read back.
type Memory struct {
	mu     sync.RWMutex
	vaults View
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{vaults: make(View)}
}

// InitVault creates an empty vault if it does not exist yet.
func (m *Memory) InitVault(_ []byte, vaultID domain.VaultID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vaults[vaultID]; !ok {
		m.vaults[vaultID] = Vault{Records: make(map[domain.RecordID]Record)}
	}
	return nil
}

// ContainsVault reports whether the vault exists.
func (m *Memory) ContainsVault(vaultID domain.VaultID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.vaults[vaultID]
	return ok
}

// ListVaults returns the ids of all vaults.
func (m *Memory) ListVaults() []domain.VaultID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]domain.VaultID, 0, len(m.vaults))
	for vid := range m.vaults {
		ids = append(ids, vid)
	}
	return ids
}

// WriteRecord seals data under key and stores it.
func (m *Memory) WriteRecord(key []byte, vaultID domain.VaultID, recordID domain.RecordID, data []byte, hint string) error {
	cipher, err := adaptive.New(key)
	if err != nil {
		return domain.ErrKeySize.WithCause(err)
	}
	blob, err := cipher.Seal(data, recordAAD(vaultID, recordID))
	if err != nil {
		return domain.ErrIoFailure.WithDetails("sealing record").WithCause(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	vault, ok := m.vaults[vaultID]
	if !ok {
		return domain.ErrNotExisting.WithDetails("vault " + vaultID.String())
	}
	vault.Records[recordID] = Record{Blob: blob, Hint: truncateHint(hint)}
	return nil
}

// ReadRecord opens and returns the record plaintext.
func (m *Memory) ReadRecord(key []byte, vaultID domain.VaultID, recordID domain.RecordID) ([]byte, error) {
	m.mu.RLock()
	vault, ok := m.vaults[vaultID]
	if !ok {
		m.mu.RUnlock()
		return nil, domain.ErrNotExisting.WithDetails("vault " + vaultID.String())
	}
	rec, ok := vault.Records[recordID]
	m.mu.RUnlock()
	if !ok || rec.Revoked {
		return nil, domain.ErrNotExisting.WithDetails("record " + recordID.String())
	}

	cipher, err := adaptive.New(key)
	if err != nil {
		return nil, domain.ErrKeySize.WithCause(err)
	}
	data, err := cipher.Open(rec.Blob, recordAAD(vaultID, recordID))
	if err != nil {
		return nil, domain.ErrBadPasswordOrCorrupt.WithCause(err)
	}
	return data, nil
}

// RevokeRecord marks a record for destruction.
func (m *Memory) RevokeRecord(vaultID domain.VaultID, recordID domain.RecordID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	vault, ok := m.vaults[vaultID]
	if !ok {
		return domain.ErrNotExisting.WithDetails("vault " + vaultID.String())
	}
	rec, ok := vault.Records[recordID]
	if !ok {
		return domain.ErrNotExisting.WithDetails("record " + recordID.String())
	}
	rec.Revoked = true
	vault.Records[recordID] = rec
	return nil
}

// GarbageCollect removes every revoked record in the vault.
func (m *Memory) GarbageCollect(vaultID domain.VaultID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	vault, ok := m.vaults[vaultID]
	if !ok {
		return domain.ErrNotExisting.WithDetails("vault " + vaultID.String())
	}
	for rid, rec := range vault.Records {
		if rec.Revoked {
			delete(vault.Records, rid)
		}
	}
	return nil
}

// ListHints returns the id and hint of every live record in the vault.
func (m *Memory) ListHints(vaultID domain.VaultID) ([]RecordHint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vault, ok := m.vaults[vaultID]
	if !ok {
		return nil, domain.ErrNotExisting.WithDetails("vault " + vaultID.String())
	}
	hints := make([]RecordHint, 0, len(vault.Records))
	for rid, rec := range vault.Records {
		if rec.Revoked {
			continue
		}
		hints = append(hints, RecordHint{ID: rid, Hint: rec.Hint})
	}
	return hints, nil
}

// Export returns a deep copy of the store contents.
func (m *Memory) Export() (View, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vaults.Clone(), nil
}

// Import replaces the store contents wholesale.
func (m *Memory) Import(view View) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vaults = view.Clone()
	return nil
}

// Close is a no-op for the memory store.
func (m *Memory) Close() error {
	return nil
}
