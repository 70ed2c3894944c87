package engine

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/Jonathanzhao02/strongbox/internal/core/domain"
)

func testVaultKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("rand.Read() error = %v", err)
	}
	return key
}

func TestMemory_WriteRead(t *testing.T) {
	store := NewMemory()
	key := testVaultKey(t)
	vid := domain.DeriveVaultID([]byte("vault-a"))
	rid := domain.DeriveRecordID([]byte("vault-a"), 0)

	if err := store.InitVault(key, vid); err != nil {
		t.Fatalf("InitVault() error = %v", err)
	}
	if err := store.WriteRecord(key, vid, rid, []byte("secret"), "seed"); err != nil {
		t.Fatalf("WriteRecord() error = %v", err)
	}

	got, err := store.ReadRecord(key, vid, rid)
	if err != nil {
		t.Fatalf("ReadRecord() error = %v", err)
	}
	if !bytes.Equal(got, []byte("secret")) {
		t.Errorf("ReadRecord() = %q, want %q", got, "secret")
	}
}

func TestMemory_ReadWrongKey(t *testing.T) {
	store := NewMemory()
	key := testVaultKey(t)
	vid := domain.DeriveVaultID([]byte("vault-a"))
	rid := domain.DeriveRecordID([]byte("vault-a"), 0)

	store.InitVault(key, vid)
	store.WriteRecord(key, vid, rid, []byte("secret"), "")

	if _, err := store.ReadRecord(testVaultKey(t), vid, rid); !errors.Is(err, domain.ErrBadPasswordOrCorrupt) {
		t.Errorf("ReadRecord() with wrong key error = %v, want ErrBadPasswordOrCorrupt", err)
	}
}

func TestMemory_MissingVaultAndRecord(t *testing.T) {
	store := NewMemory()
	key := testVaultKey(t)
	vid := domain.DeriveVaultID([]byte("vault-a"))
	rid := domain.DeriveRecordID([]byte("vault-a"), 0)

	if _, err := store.ReadRecord(key, vid, rid); !errors.Is(err, domain.ErrNotExisting) {
		t.Errorf("ReadRecord() on missing vault error = %v, want ErrNotExisting", err)
	}
	if err := store.WriteRecord(key, vid, rid, []byte("x"), ""); !errors.Is(err, domain.ErrNotExisting) {
		t.Errorf("WriteRecord() on missing vault error = %v, want ErrNotExisting", err)
	}

	store.InitVault(key, vid)
	if _, err := store.ReadRecord(key, vid, rid); !errors.Is(err, domain.ErrNotExisting) {
		t.Errorf("ReadRecord() on missing record error = %v, want ErrNotExisting", err)
	}
}

func TestMemory_InitVaultIdempotent(t *testing.T) {
	store := NewMemory()
	key := testVaultKey(t)
	vid := domain.DeriveVaultID([]byte("vault-a"))
	rid := domain.DeriveRecordID([]byte("vault-a"), 0)

	store.InitVault(key, vid)
	store.WriteRecord(key, vid, rid, []byte("secret"), "")

	// A second init must not wipe the vault.
	if err := store.InitVault(key, vid); err != nil {
		t.Fatalf("InitVault() error = %v", err)
	}
	if _, err := store.ReadRecord(key, vid, rid); err != nil {
		t.Errorf("record lost after repeated InitVault: %v", err)
	}
}

func TestMemory_RevokeAndGC(t *testing.T) {
	store := NewMemory()
	key := testVaultKey(t)
	vid := domain.DeriveVaultID([]byte("vault-a"))
	keep := domain.DeriveRecordID([]byte("vault-a"), 0)
	drop := domain.DeriveRecordID([]byte("vault-a"), 1)

	store.InitVault(key, vid)
	store.WriteRecord(key, vid, keep, []byte("keep"), "")
	store.WriteRecord(key, vid, drop, []byte("drop"), "")

	if err := store.RevokeRecord(vid, drop); err != nil {
		t.Fatalf("RevokeRecord() error = %v", err)
	}
	if _, err := store.ReadRecord(key, vid, drop); !errors.Is(err, domain.ErrNotExisting) {
		t.Errorf("revoked record should read as not existing, got %v", err)
	}

	if err := store.GarbageCollect(vid); err != nil {
		t.Fatalf("GarbageCollect() error = %v", err)
	}
	view, _ := store.Export()
	if _, ok := view[vid].Records[drop]; ok {
		t.Error("revoked record should be gone after GarbageCollect")
	}
	if _, ok := view[vid].Records[keep]; !ok {
		t.Error("live record should survive GarbageCollect")
	}
}

func TestMemory_ListHints(t *testing.T) {
	store := NewMemory()
	key := testVaultKey(t)
	vid := domain.DeriveVaultID([]byte("vault-a"))
	rid := domain.DeriveRecordID([]byte("vault-a"), 0)
	revoked := domain.DeriveRecordID([]byte("vault-a"), 1)

	store.InitVault(key, vid)
	store.WriteRecord(key, vid, rid, []byte("x"), "seed phrase")
	store.WriteRecord(key, vid, revoked, []byte("y"), "gone")
	store.RevokeRecord(vid, revoked)

	hints, err := store.ListHints(vid)
	if err != nil {
		t.Fatalf("ListHints() error = %v", err)
	}
	if len(hints) != 1 {
		t.Fatalf("ListHints() length = %d, want 1", len(hints))
	}
	if hints[0].ID != rid || hints[0].Hint != "seed phrase" {
		t.Errorf("ListHints()[0] = %+v", hints[0])
	}
}

func TestMemory_HintTruncated(t *testing.T) {
	store := NewMemory()
	key := testVaultKey(t)
	vid := domain.DeriveVaultID([]byte("vault-a"))
	rid := domain.DeriveRecordID([]byte("vault-a"), 0)

	store.InitVault(key, vid)
	long := "this hint is much longer than the cap allows"
	store.WriteRecord(key, vid, rid, []byte("x"), long)

	hints, _ := store.ListHints(vid)
	if len(hints[0].Hint) != HintLength {
		t.Errorf("hint length = %d, want %d", len(hints[0].Hint), HintLength)
	}
}

func TestMemory_ExportImportRoundTrip(t *testing.T) {
	store := NewMemory()
	key := testVaultKey(t)
	vid := domain.DeriveVaultID([]byte("vault-a"))
	rid := domain.DeriveRecordID([]byte("vault-a"), 0)

	store.InitVault(key, vid)
	store.WriteRecord(key, vid, rid, []byte("secret"), "")

	view, err := store.Export()
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	fresh := NewMemory()
	if err := fresh.Import(view); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	got, err := fresh.ReadRecord(key, vid, rid)
	if err != nil {
		t.Fatalf("ReadRecord() after import error = %v", err)
	}
	if !bytes.Equal(got, []byte("secret")) {
		t.Errorf("ReadRecord() = %q, want %q", got, "secret")
	}
}

func TestMemory_ExportIsDeepCopy(t *testing.T) {
	store := NewMemory()
	key := testVaultKey(t)
	vid := domain.DeriveVaultID([]byte("vault-a"))
	rid := domain.DeriveRecordID([]byte("vault-a"), 0)

	store.InitVault(key, vid)
	store.WriteRecord(key, vid, rid, []byte("secret"), "")

	view, _ := store.Export()
	for i := range view[vid].Records[rid].Blob {
		view[vid].Records[rid].Blob[i] = 0
	}

	if _, err := store.ReadRecord(key, vid, rid); err != nil {
		t.Errorf("mutating an export corrupted the store: %v", err)
	}
}

func TestMemory_ListVaults(t *testing.T) {
	store := NewMemory()
	key := testVaultKey(t)
	a := domain.DeriveVaultID([]byte("vault-a"))
	b := domain.DeriveVaultID([]byte("vault-b"))

	store.InitVault(key, a)
	store.InitVault(key, b)

	ids := store.ListVaults()
	if len(ids) != 2 {
		t.Fatalf("ListVaults() length = %d, want 2", len(ids))
	}
	if !store.ContainsVault(a) || !store.ContainsVault(b) {
		t.Error("ContainsVault should report both vaults")
	}
}
