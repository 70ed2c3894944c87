package snapshot

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Jonathanzhao02/strongbox/internal/core/domain"
	"github.com/Jonathanzhao02/strongbox/internal/engine"
	"github.com/Jonathanzhao02/strongbox/internal/storage/cache"
)

func testEntry(t *testing.T) (domain.ClientID, ClientEntry) {
	t.Helper()

	clientID := domain.DeriveClientID([]byte("alice"))
	vaultID := domain.DeriveVaultID([]byte("personal"))
	recordID := domain.DeriveRecordID([]byte("personal"), 0)

	key := bytes.Repeat([]byte{0x42}, 32)
	return clientID, ClientEntry{
		Keys: map[domain.VaultID][]byte{vaultID: key},
		Db: engine.View{
			vaultID: engine.Vault{
				Records: map[domain.RecordID]engine.Record{
					recordID: {Blob: []byte("sealed-bytes"), Hint: "login"},
				},
			},
		},
		Store: []cache.Entry{{Key: []byte("otp"), Value: []byte("123456"), ExpiresAt: 9_999_999_999_999}},
	}
}

func testKey() []byte {
	return bytes.Repeat([]byte{0x07}, 32)
}

func TestContainer_WriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main"+FileExtension)

	clientID, entry := testEntry(t)
	c := NewContainer(nil)
	c.AddData(clientID, entry)

	access := Access{Key: testKey()}
	size, err := c.WriteFile(path, access)
	if err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if size <= 0 {
		t.Errorf("WriteFile() size = %d, want > 0", size)
	}

	state, hdr, err := ReadFile(path, access)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if hdr.ClientCount != 1 {
		t.Errorf("header client_count = %d, want 1", hdr.ClientCount)
	}
	if hdr.Generation == "" {
		t.Error("header generation is empty")
	}

	got, ok := state[clientID]
	if !ok {
		t.Fatal("round trip lost the client entry")
	}
	vaultID := domain.DeriveVaultID([]byte("personal"))
	if !bytes.Equal(got.Keys[vaultID], entry.Keys[vaultID]) {
		t.Error("vault key did not survive the round trip")
	}
	recordID := domain.DeriveRecordID([]byte("personal"), 0)
	if !bytes.Equal(got.Db[vaultID].Records[recordID].Blob, []byte("sealed-bytes")) {
		t.Error("record blob did not survive the round trip")
	}
	if len(got.Store) != 1 || !bytes.Equal(got.Store[0].Key, []byte("otp")) {
		t.Errorf("ephemeral entries = %+v, want one entry with key otp", got.Store)
	}
}

func TestContainer_ReadWrongKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main"+FileExtension)

	clientID, entry := testEntry(t)
	c := NewContainer(nil)
	c.AddData(clientID, entry)
	if _, err := c.WriteFile(path, Access{Key: testKey()}); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	wrong := bytes.Repeat([]byte{0xFF}, 32)
	_, _, err := ReadFile(path, Access{Key: wrong})
	if !errors.Is(err, domain.ErrBadPasswordOrCorrupt) {
		t.Errorf("ReadFile() with wrong key error = %v, want ErrBadPasswordOrCorrupt", err)
	}
}

func TestContainer_PassphraseRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main"+FileExtension)

	clientID, entry := testEntry(t)
	c := NewContainer(nil)
	c.AddData(clientID, entry)

	if _, err := c.WriteFile(path, Access{Passphrase: []byte("correct horse battery")}); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	// The salt in the header must be enough to re-derive the key.
	state, hdr, err := ReadFile(path, Access{Passphrase: []byte("correct horse battery")})
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(hdr.Salt) != SaltLength {
		t.Errorf("header salt length = %d, want %d", len(hdr.Salt), SaltLength)
	}
	if _, ok := state[clientID]; !ok {
		t.Fatal("round trip lost the client entry")
	}

	_, _, err = ReadFile(path, Access{Passphrase: []byte("wrong passphrase")})
	if !errors.Is(err, domain.ErrBadPasswordOrCorrupt) {
		t.Errorf("ReadFile() with wrong passphrase error = %v, want ErrBadPasswordOrCorrupt", err)
	}
}

func TestContainer_TamperedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main"+FileExtension)

	clientID, entry := testEntry(t)
	c := NewContainer(nil)
	c.AddData(clientID, entry)
	access := Access{Key: testKey()}
	if _, err := c.WriteFile(path, access); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		mutate  func([]byte) []byte
		wantErr *domain.DomainError
	}{
		{
			name: "flipped body byte",
			mutate: func(b []byte) []byte {
				out := bytes.Clone(b)
				out[len(out)/2] ^= 0x01
				return out
			},
			wantErr: domain.ErrBadPasswordOrCorrupt,
		},
		{
			name: "truncated",
			mutate: func(b []byte) []byte {
				return bytes.Clone(b[:len(b)-10])
			},
			wantErr: domain.ErrBadPasswordOrCorrupt,
		},
		{
			name: "bad magic",
			mutate: func(b []byte) []byte {
				out := bytes.Clone(b)
				copy(out, "NOTASNAP")
				return out
			},
			wantErr: domain.ErrSnapshotFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := filepath.Join(t.TempDir(), "bad"+FileExtension)
			if err := os.WriteFile(bad, tt.mutate(raw), 0o600); err != nil {
				t.Fatal(err)
			}
			_, _, err := ReadFile(bad, access)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ReadFile() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main"+FileExtension)

	clientID, entry := testEntry(t)
	c := NewContainer(nil)
	c.AddData(clientID, entry)
	if _, err := c.WriteFile(path, Access{Key: testKey()}); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	hdr, err := Inspect(path)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if hdr.Version != headerVersion {
		t.Errorf("Inspect() version = %d, want %d", hdr.Version, headerVersion)
	}
	if hdr.ClientCount != 1 {
		t.Errorf("Inspect() client_count = %d, want 1", hdr.ClientCount)
	}
	if hdr.Algorithm == "" {
		t.Error("Inspect() algorithm is empty")
	}
}

func TestContainer_WritePreservesPreviousOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main"+FileExtension)

	clientID, entry := testEntry(t)
	c := NewContainer(nil)
	c.AddData(clientID, entry)
	access := Access{Key: testKey()}
	if _, err := c.WriteFile(path, access); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	// A short key fails before any byte reaches disk.
	if _, err := c.WriteFile(path, Access{Key: []byte("short")}); err == nil {
		t.Fatal("WriteFile() with short key succeeded, want error")
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Error("failed write modified the existing snapshot file")
	}
}

func TestContainer_Synchronize(t *testing.T) {
	dir := t.TempDir()
	sourcePath := filepath.Join(dir, "source"+FileExtension)
	targetPath := filepath.Join(dir, "target"+FileExtension)

	sourceAccess := Access{Key: testKey()}
	targetAccess := Access{Key: bytes.Repeat([]byte{0x99}, 32)}

	aliceID, aliceEntry := testEntry(t)
	source := NewContainer(nil)
	source.AddData(aliceID, aliceEntry)
	if _, err := source.WriteFile(sourcePath, sourceAccess); err != nil {
		t.Fatalf("WriteFile(source) error = %v", err)
	}

	// Target starts with a different client under a different key.
	bobID := domain.DeriveClientID([]byte("bob"))
	target := NewContainer(nil)
	target.AddData(bobID, ClientEntry{Keys: map[domain.VaultID][]byte{}, Db: engine.View{}})
	if _, err := target.WriteFile(targetPath, targetAccess); err != nil {
		t.Fatalf("WriteFile(target) error = %v", err)
	}

	err := NewContainer(nil).Synchronize(SyncRequest{
		ClientID:     aliceID,
		SourcePath:   sourcePath,
		SourceAccess: sourceAccess,
		TargetPath:   targetPath,
		TargetAccess: targetAccess,
	})
	if err != nil {
		t.Fatalf("Synchronize() error = %v", err)
	}

	state, _, err := ReadFile(targetPath, targetAccess)
	if err != nil {
		t.Fatalf("ReadFile(target) error = %v", err)
	}
	if _, ok := state[aliceID]; !ok {
		t.Error("synchronize did not copy the client into the target")
	}
	if _, ok := state[bobID]; !ok {
		t.Error("synchronize dropped the target's existing client")
	}
}

func TestContainer_SynchronizeMissingTarget(t *testing.T) {
	dir := t.TempDir()
	sourcePath := filepath.Join(dir, "source"+FileExtension)
	targetPath := filepath.Join(dir, "fresh"+FileExtension)

	access := Access{Key: testKey()}
	clientID, entry := testEntry(t)
	source := NewContainer(nil)
	source.AddData(clientID, entry)
	if _, err := source.WriteFile(sourcePath, access); err != nil {
		t.Fatalf("WriteFile(source) error = %v", err)
	}

	err := NewContainer(nil).Synchronize(SyncRequest{
		ClientID:     clientID,
		SourcePath:   sourcePath,
		SourceAccess: access,
		TargetPath:   targetPath,
		TargetAccess: access,
	})
	if err != nil {
		t.Fatalf("Synchronize() into missing target error = %v", err)
	}

	state, _, err := ReadFile(targetPath, access)
	if err != nil {
		t.Fatalf("ReadFile(target) error = %v", err)
	}
	if len(state) != 1 {
		t.Errorf("target state has %d clients, want 1", len(state))
	}
}

func TestContainer_SynchronizeFromStagedState(t *testing.T) {
	targetPath := filepath.Join(t.TempDir(), "target"+FileExtension)
	access := Access{Key: testKey()}

	clientID, entry := testEntry(t)
	c := NewContainer(nil)
	c.AddData(clientID, entry)

	err := c.Synchronize(SyncRequest{
		ClientID:     clientID,
		TargetPath:   targetPath,
		TargetAccess: access,
	})
	if err != nil {
		t.Fatalf("Synchronize() from staged state error = %v", err)
	}

	state, _, err := ReadFile(targetPath, access)
	if err != nil {
		t.Fatalf("ReadFile(target) error = %v", err)
	}
	if _, ok := state[clientID]; !ok {
		t.Error("staged entry missing from target")
	}
}

func TestContainer_StagingOperations(t *testing.T) {
	clientID, entry := testEntry(t)
	c := NewContainer(nil)

	if c.HasData(clientID) {
		t.Error("empty container reports staged data")
	}
	c.AddData(clientID, entry)
	if !c.HasData(clientID) {
		t.Error("HasData() = false after AddData")
	}
	if got := len(c.Clients()); got != 1 {
		t.Errorf("Clients() length = %d, want 1", got)
	}
	c.Clear()
	if c.HasData(clientID) {
		t.Error("Clear() left staged data behind")
	}
}
