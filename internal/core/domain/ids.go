package domain

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"

	"golang.org/x/crypto/blake2b"
)

// IDLength is the byte length of every derived address.
const IDLength = 24

// Derivation purposes. Mixing the purpose into the hash input keeps the
// client, vault, and record address spaces disjoint even for equal paths.
const (
	purposeClient = "strongbox:client:"
	purposeVault  = "strongbox:vault:"
	purposeRecord = "strongbox:record:"
)

// firstRecordMarker is the suffix for counter value zero. It replaces the
// literal "0" so that the zeroth counter address differs from a generic
// record path that happens to end in "0".
const firstRecordMarker = "first_record"

// ClientID identifies a client's isolated state partition.
type ClientID [IDLength]byte

// VaultID identifies a vault within a client.
type VaultID [IDLength]byte

// RecordID identifies a record within a vault.
type RecordID [IDLength]byte

func deriveID(purpose string, data []byte) [IDLength]byte {
	h, err := blake2b.New(IDLength, nil)
	if err != nil {
		// blake2b.New only fails for invalid sizes; 24 is valid.
		panic(err)
	}
	h.Write([]byte(purpose))
	h.Write(data)
	var id [IDLength]byte
	copy(id[:], h.Sum(nil))
	return id
}

func randomID() ([IDLength]byte, error) {
	var id [IDLength]byte
	if _, err := rand.Read(id[:]); err != nil {
		return id, ErrIoFailure.WithDetails("entropy source").WithCause(err)
	}
	return id, nil
}

// DeriveClientID derives a client address from an arbitrary path.
func DeriveClientID(path []byte) ClientID {
	return ClientID(deriveID(purposeClient, path))
}

// NewClientID returns a fresh random client address.
func NewClientID() (ClientID, error) {
	id, err := randomID()
	return ClientID(id), err
}

// DeriveVaultID derives a vault address from an arbitrary path.
// Equal paths always derive equal addresses.
func DeriveVaultID(path []byte) VaultID {
	return VaultID(deriveID(purposeVault, path))
}

// NewVaultID returns a fresh random vault address.
func NewVaultID() (VaultID, error) {
	id, err := randomID()
	return VaultID(id), err
}

// DeriveRecordID derives the address of the record at the given counter
// position inside a vault. Counter zero uses a distinguished marker; every
// later counter appends its decimal form.
func DeriveRecordID(vaultPath []byte, ctr uint) RecordID {
	return RecordID(deriveID(purposeRecord, counterInput(vaultPath, ctr)))
}

// DeriveGenericRecordID derives a record address from an explicit record
// path, scoped to its vault.
func DeriveGenericRecordID(vaultID VaultID, recordPath []byte) RecordID {
	data := make([]byte, 0, IDLength+len(recordPath))
	data = append(data, vaultID[:]...)
	data = append(data, recordPath...)
	return RecordID(deriveID(purposeRecord, data))
}

func counterInput(vaultPath []byte, ctr uint) []byte {
	var suffix string
	if ctr == 0 {
		suffix = firstRecordMarker
	} else {
		suffix = strconv.FormatUint(uint64(ctr), 10)
	}
	data := make([]byte, 0, len(vaultPath)+len(suffix))
	data = append(data, vaultPath...)
	data = append(data, suffix...)
	return data
}

// DefaultIndexCap bounds the counter scan in IndexOfRecord. Derivation is
// one-way, so recovering an index means walking the counter space forward.
const DefaultIndexCap = 32_000_000

// IndexOfRecord scans counter values 0..limit looking for the one that
// derives target within vaultPath. It returns limit when no counter
// matches; a miss is an answer, not an error. Pass limit <= 0 for
// DefaultIndexCap.
func IndexOfRecord(vaultPath []byte, target RecordID, limit int) uint {
	if limit <= 0 {
		limit = DefaultIndexCap
	}
	for ctr := uint(0); ctr <= uint(limit); ctr++ {
		if DeriveRecordID(vaultPath, ctr) == target {
			return ctr
		}
	}
	return uint(limit)
}

func idString(id [IDLength]byte) string {
	return hex.EncodeToString(id[:])
}

func idFromText(text []byte) ([IDLength]byte, error) {
	var id [IDLength]byte
	if hex.DecodedLen(len(text)) != IDLength {
		return id, ErrInvalidArgument.WithDetails("id must be 24 hex-encoded bytes")
	}
	if _, err := hex.Decode(id[:], text); err != nil {
		return id, ErrInvalidArgument.WithCause(err)
	}
	return id, nil
}

// String returns the hex form of the address.
func (c ClientID) String() string { return idString(c) }

// MarshalText encodes the address as hex, making ClientID usable as a JSON
// map key.
func (c ClientID) MarshalText() ([]byte, error) {
	return []byte(idString(c)), nil
}

// UnmarshalText decodes a hex-encoded address.
func (c *ClientID) UnmarshalText(text []byte) error {
	id, err := idFromText(text)
	if err != nil {
		return err
	}
	*c = ClientID(id)
	return nil
}

// String returns the hex form of the address.
func (v VaultID) String() string { return idString(v) }

// MarshalText encodes the address as hex.
func (v VaultID) MarshalText() ([]byte, error) {
	return []byte(idString(v)), nil
}

// UnmarshalText decodes a hex-encoded address.
func (v *VaultID) UnmarshalText(text []byte) error {
	id, err := idFromText(text)
	if err != nil {
		return err
	}
	*v = VaultID(id)
	return nil
}

// String returns the hex form of the address.
func (r RecordID) String() string { return idString(r) }

// MarshalText encodes the address as hex.
func (r RecordID) MarshalText() ([]byte, error) {
	return []byte(idString(r)), nil
}

// UnmarshalText decodes a hex-encoded address.
func (r *RecordID) UnmarshalText(text []byte) error {
	id, err := idFromText(text)
	if err != nil {
		return err
	}
	*r = RecordID(id)
	return nil
}
