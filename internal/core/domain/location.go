package domain

// LocationKind distinguishes the two ways a record address is produced.
type LocationKind int

const (
	// LocationGeneric addresses a record by an explicit record path.
	LocationGeneric LocationKind = iota

	// LocationCounter addresses a record by its position in the vault's
	// counter sequence.
	LocationCounter
)

// Location is a symbolic coordinate for a record: a vault path plus either
// a record path or a counter. It resolves deterministically to concrete
// addresses without any lookup table.
type Location struct {
	kind       LocationKind
	vaultPath  []byte
	recordPath []byte
	counter    uint
}

// GenericLocation addresses a record by vault path and record path.
func GenericLocation(vaultPath, recordPath []byte) Location {
	return Location{
		kind:       LocationGeneric,
		vaultPath:  cloneBytes(vaultPath),
		recordPath: cloneBytes(recordPath),
	}
}

// CounterLocation addresses a record by vault path and counter position.
func CounterLocation(vaultPath []byte, ctr uint) Location {
	return Location{
		kind:      LocationCounter,
		vaultPath: cloneBytes(vaultPath),
		counter:   ctr,
	}
}

// Kind reports which addressing form the location uses.
func (l Location) Kind() LocationKind { return l.kind }

// VaultPath returns the vault path component.
func (l Location) VaultPath() []byte { return cloneBytes(l.vaultPath) }

// Counter returns the counter for counter locations; zero otherwise.
func (l Location) Counter() uint { return l.counter }

// Resolve derives the concrete vault and record addresses.
func (l Location) Resolve() (VaultID, RecordID) {
	vid := DeriveVaultID(l.vaultPath)
	switch l.kind {
	case LocationCounter:
		return vid, DeriveRecordID(l.vaultPath, l.counter)
	default:
		return vid, DeriveGenericRecordID(vid, l.recordPath)
	}
}

// ResolveVault derives only the vault address.
func (l Location) ResolveVault() VaultID {
	return DeriveVaultID(l.vaultPath)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
