package snapshot

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Jonathanzhao02/strongbox/internal/core/domain"
	"github.com/Jonathanzhao02/strongbox/internal/engine"
	"github.com/Jonathanzhao02/strongbox/internal/storage/cache"
	"github.com/Jonathanzhao02/strongbox/pkg/crypto/adaptive"
)

// Magic bytes identify snapshot files.
var magicBytes = []byte("SBOXSNAP")

const (
	headerVersion = 1
	checksumSize  = 32

	// FileExtension is the canonical snapshot file suffix.
	FileExtension = ".snapshot"
)

// ClientEntry is one client's complete exported state.
type ClientEntry struct {
	Keys  map[domain.VaultID][]byte `json:"keys"`
	Db    engine.View               `json:"db"`
	Store []cache.Entry             `json:"store,omitempty"`
}

// State maps client ids to their exported state. It is the unit a
// snapshot file persists.
type State map[domain.ClientID]ClientEntry

// Header is the plaintext preamble of a snapshot file. Everything needed
// to re-derive the key lives here; everything secret lives in the sealed
// body.
type Header struct {
	Version     int    `json:"version"`
	CreatedAt   int64  `json:"created_at"`
	Generation  string `json:"generation"`
	ClientCount int    `json:"client_count"`
	Algorithm   string `json:"algorithm"`
	Salt        []byte `json:"salt,omitempty"`
}

// Container stages client state between fills and file operations. It is
// not safe for concurrent use; the Coordinator owns one and serializes
// access.
type Container struct {
	state  State
	logger *slog.Logger
}

// NewContainer creates an empty container.
func NewContainer(logger *slog.Logger) *Container {
	if logger == nil {
		logger = slog.Default()
	}
	return &Container{
		state:  make(State),
		logger: logger,
	}
}

// AddData stages one client's state, replacing any previous entry for
// the same id.
func (c *Container) AddData(clientID domain.ClientID, entry ClientEntry) {
	c.state[clientID] = entry
}

// GetState returns the staged entry for a client.
func (c *Container) GetState(clientID domain.ClientID) (ClientEntry, bool) {
	entry, ok := c.state[clientID]
	return entry, ok
}

// HasData reports whether any state is staged for the client.
func (c *Container) HasData(clientID domain.ClientID) bool {
	_, ok := c.state[clientID]
	return ok
}

// Clients returns the staged client ids.
func (c *Container) Clients() []domain.ClientID {
	ids := make([]domain.ClientID, 0, len(c.state))
	for cid := range c.state {
		ids = append(ids, cid)
	}
	return ids
}

// Clear drops all staged state.
func (c *Container) Clear() {
	c.state = make(State)
}

// SetState replaces the staged state wholesale.
func (c *Container) SetState(state State) {
	c.state = state
}

// WriteFile persists the staged state to path, sealed under the access
// key. The write goes to a temp file in the same directory and lands via
// rename; the previous file at path survives any failure. On success the
// staged state remains; clearing it is the caller's policy.
func (c *Container) WriteFile(path string, access Access) (int64, error) {
	key, salt, err := access.resolveKey(nil)
	if err != nil {
		return 0, err
	}
	defer ZeroKey(key)

	cipher, err := adaptive.NewWithAlgorithm(key, access.Algorithm)
	if err != nil {
		return 0, domain.ErrKeySize.WithCause(err)
	}

	hdr := Header{
		Version:     headerVersion,
		CreatedAt:   time.Now().UnixMilli(),
		Generation:  ulid.MustNew(ulid.Timestamp(time.Now()), ulid.DefaultEntropy()).String(),
		ClientCount: len(c.state),
		Algorithm:   string(cipher.Algorithm()),
		Salt:        salt,
	}
	hdrJSON, err := json.Marshal(hdr)
	if err != nil {
		return 0, domain.ErrIoFailure.WithDetails("marshal header").WithCause(err)
	}

	body, err := json.Marshal(c.state)
	if err != nil {
		return 0, domain.ErrIoFailure.WithDetails("marshal state").WithCause(err)
	}
	// The header is bound into the AEAD tag; swapping headers between
	// files breaks decryption.
	sealed, err := cipher.Seal(body, hdrJSON)
	ZeroKey(body)
	if err != nil {
		return 0, domain.ErrIoFailure.WithDetails("seal snapshot body").WithCause(err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return 0, domain.ErrIoFailure.WithDetails("create snapshot dir").WithCause(err)
	}

	tempPath := path + ".tmp." + randomSuffix()
	file, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return 0, domain.ErrIoFailure.WithDetails("create temp snapshot").WithCause(err)
	}
	defer os.Remove(tempPath)

	hash := sha256.New()
	w := io.MultiWriter(file, hash)

	var lenBuf [4]byte
	write := func(p []byte) error {
		_, werr := w.Write(p)
		return werr
	}
	err = write(magicBytes)
	if err == nil {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(hdrJSON)))
		err = write(lenBuf[:])
	}
	if err == nil {
		err = write(hdrJSON)
	}
	if err == nil {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(sealed)))
		err = write(lenBuf[:])
	}
	if err == nil {
		err = write(sealed)
	}
	if err == nil {
		// Trailer covers everything before it and is excluded from the hash.
		_, err = file.Write(hash.Sum(nil))
	}
	if err == nil {
		err = file.Sync()
	}
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, domain.ErrIoFailure.WithDetails("write snapshot").WithCause(err)
	}

	stat, err := os.Stat(tempPath)
	if err != nil {
		return 0, domain.ErrIoFailure.WithCause(err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return 0, domain.ErrIoFailure.WithDetails("rename snapshot").WithCause(err)
	}

	c.logger.Info("snapshot written",
		"path", path,
		"generation", hdr.Generation,
		"client_count", hdr.ClientCount,
		"size_bytes", stat.Size())
	return stat.Size(), nil
}

// ReadFile loads and opens a snapshot file. Checksum, decryption, and
// decoding failures all collapse into ErrBadPasswordOrCorrupt: a caller
// probing with the wrong key learns nothing about which layer rejected
// the file.
func ReadFile(path string, access Access) (State, Header, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, Header{}, domain.ErrIoFailure.WithDetails("read snapshot").WithCause(err)
	}

	hdr, hdrJSON, sealed, err := parseFile(raw)
	if err != nil {
		return nil, Header{}, err
	}

	key, _, err := access.resolveKey(hdr.Salt)
	if err != nil {
		return nil, Header{}, err
	}
	defer ZeroKey(key)

	cipher, err := adaptive.NewWithAlgorithm(key, adaptive.Algorithm(hdr.Algorithm))
	if err != nil {
		return nil, Header{}, domain.ErrBadPasswordOrCorrupt.WithCause(err)
	}
	body, err := cipher.Open(sealed, hdrJSON)
	if err != nil {
		return nil, Header{}, domain.ErrBadPasswordOrCorrupt.WithCause(err)
	}

	var state State
	if err := json.Unmarshal(body, &state); err != nil {
		return nil, Header{}, domain.ErrBadPasswordOrCorrupt.WithCause(err)
	}
	ZeroKey(body)
	return state, hdr, nil
}

// Inspect validates framing and integrity and returns the header without
// any key material. Used by offline tooling.
func Inspect(path string) (Header, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Header{}, domain.ErrIoFailure.WithDetails("read snapshot").WithCause(err)
	}
	hdr, _, _, err := parseFile(raw)
	return hdr, err
}

// parseFile validates the trailer and framing and splits the file into
// header and sealed body.
func parseFile(raw []byte) (Header, []byte, []byte, error) {
	if len(raw) < len(magicBytes)+checksumSize {
		return Header{}, nil, nil, domain.ErrBadPasswordOrCorrupt.WithDetails("truncated file")
	}
	if !bytes.Equal(raw[:len(magicBytes)], magicBytes) {
		return Header{}, nil, nil, domain.ErrSnapshotFormat
	}

	content, trailer := raw[:len(raw)-checksumSize], raw[len(raw)-checksumSize:]
	sum := sha256.Sum256(content)
	if !bytes.Equal(sum[:], trailer) {
		return Header{}, nil, nil, domain.ErrBadPasswordOrCorrupt.WithDetails("checksum mismatch")
	}

	rest := content[len(magicBytes):]
	if len(rest) < 4 {
		return Header{}, nil, nil, domain.ErrBadPasswordOrCorrupt.WithDetails("truncated header")
	}
	hdrLen := binary.BigEndian.Uint32(rest[:4])
	rest = rest[4:]
	if uint32(len(rest)) < hdrLen {
		return Header{}, nil, nil, domain.ErrBadPasswordOrCorrupt.WithDetails("truncated header")
	}
	hdrJSON := rest[:hdrLen]
	rest = rest[hdrLen:]

	var hdr Header
	if err := json.Unmarshal(hdrJSON, &hdr); err != nil {
		return Header{}, nil, nil, domain.ErrBadPasswordOrCorrupt.WithDetails("bad header").WithCause(err)
	}
	if hdr.Version != headerVersion {
		return Header{}, nil, nil, domain.ErrSnapshotFormat.WithDetails("unsupported version")
	}

	if len(rest) < 4 {
		return Header{}, nil, nil, domain.ErrBadPasswordOrCorrupt.WithDetails("truncated body")
	}
	bodyLen := binary.BigEndian.Uint32(rest[:4])
	rest = rest[4:]
	if uint32(len(rest)) != bodyLen {
		return Header{}, nil, nil, domain.ErrBadPasswordOrCorrupt.WithDetails("body length mismatch")
	}
	return hdr, hdrJSON, rest, nil
}

// SyncRequest names the source and target of a single-client merge.
// An empty SourcePath means the currently staged state.
type SyncRequest struct {
	ClientID     domain.ClientID
	SourcePath   string
	SourceAccess Access
	TargetPath   string
	TargetAccess Access
}

// Synchronize copies one client's entry from a source (file or staged
// state) into a target file, which may be sealed under a different key.
// A missing target file starts from an empty state; a source without the
// client proceeds and leaves the target's entry untouched.
func (c *Container) Synchronize(req SyncRequest) error {
	var source State
	if req.SourcePath == "" {
		source = c.state
	} else {
		var err error
		source, _, err = ReadFile(req.SourcePath, req.SourceAccess)
		if err != nil {
			return err
		}
	}

	target := make(State)
	if _, err := os.Stat(req.TargetPath); err == nil {
		target, _, err = ReadFile(req.TargetPath, req.TargetAccess)
		if err != nil {
			return err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return domain.ErrIoFailure.WithDetails("stat target snapshot").WithCause(err)
	}

	entry, ok := source[req.ClientID]
	if ok {
		target[req.ClientID] = entry
	} else {
		c.logger.Warn("synchronize source has no data for client",
			"client_id", req.ClientID)
	}

	out := NewContainer(c.logger)
	out.SetState(target)
	if _, err := out.WriteFile(req.TargetPath, req.TargetAccess); err != nil {
		return err
	}
	return nil
}

func randomSuffix() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "00000000"
	}
	return hex.EncodeToString(b[:])
}
