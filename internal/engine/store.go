package engine

import (
	"github.com/Jonathanzhao02/strongbox/internal/core/domain"
)

// HintLength caps the plaintext hint stored alongside a record.
const HintLength = 24

// Store is the record storage capability. Payloads handed to WriteRecord
// are sealed under the vault key before storage; ReadRecord reverses it.
type Store interface {
	// InitVault creates an empty vault. Existing vaults are left intact.
	InitVault(key []byte, vaultID domain.VaultID) error

	// ContainsVault reports whether the vault exists.
	ContainsVault(vaultID domain.VaultID) bool

	// ListVaults returns the ids of all vaults in the store.
	ListVaults() []domain.VaultID

	// WriteRecord seals data under key and stores it at the given address.
	// An existing record at the same address is replaced.
	WriteRecord(key []byte, vaultID domain.VaultID, recordID domain.RecordID, data []byte, hint string) error

	// ReadRecord opens and returns the record plaintext. A missing vault
	// or record yields ErrNotExisting; a key that fails to open the
	// ciphertext yields ErrBadPasswordOrCorrupt.
	ReadRecord(key []byte, vaultID domain.VaultID, recordID domain.RecordID) ([]byte, error)

	// RevokeRecord marks a record for destruction. Revoked records are
	// unreadable but survive until GarbageCollect.
	RevokeRecord(vaultID domain.VaultID, recordID domain.RecordID) error

	// GarbageCollect removes every revoked record in the vault.
	GarbageCollect(vaultID domain.VaultID) error

	// ListHints returns the id and hint of every live record in the vault.
	ListHints(vaultID domain.VaultID) ([]RecordHint, error)

	// Export serializes the full store contents for snapshotting.
	Export() (View, error)

	// Import replaces the store contents wholesale.
	Import(view View) error

	// Close releases backend resources.
	Close() error
}

// RecordHint pairs a record id with its plaintext hint.
type RecordHint struct {
	ID   domain.RecordID `json:"id"`
	Hint string          `json:"hint"`
}

// Record is the stored form of a single secret: sealed payload plus
// plaintext metadata.
type Record struct {
	Blob    []byte `json:"blob"`
	Hint    string `json:"hint,omitempty"`
	Revoked bool   `json:"revoked,omitempty"`
}

// Vault is the serializable contents of one vault.
type Vault struct {
	Records map[domain.RecordID]Record `json:"records"`
}

// View is the serializable contents of a whole store. It is what snapshot
// files persist per client.
type View map[domain.VaultID]Vault

// Clone returns a deep copy of the view.
func (v View) Clone() View {
	out := make(View, len(v))
	for vid, vault := range v {
		records := make(map[domain.RecordID]Record, len(vault.Records))
		for rid, rec := range vault.Records {
			blob := make([]byte, len(rec.Blob))
			copy(blob, rec.Blob)
			records[rid] = Record{Blob: blob, Hint: rec.Hint, Revoked: rec.Revoked}
		}
		out[vid] = Vault{Records: records}
	}
	return out
}

func truncateHint(hint string) string {
	if len(hint) > HintLength {
		return hint[:HintLength]
	}
	return hint
}

// recordAAD binds a sealed blob to its address so ciphertext cannot be
// replayed at a different location.
func recordAAD(vaultID domain.VaultID, recordID domain.RecordID) []byte {
	aad := make([]byte, 0, domain.IDLength*2)
	aad = append(aad, vaultID[:]...)
	aad = append(aad, recordID[:]...)
	return aad
}
