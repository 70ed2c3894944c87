package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/Jonathanzhao02/strongbox/internal/core/domain"
	"github.com/Jonathanzhao02/strongbox/pkg/crypto/adaptive"
)

// Badger key prefixes. Vault markers let ContainsVault answer without
// scanning the record space.
const (
	prefixVault  = 'v'
	prefixRecord = 'r'
)

// BadgerConfig configures the disk-backed store.
type BadgerConfig struct {
	// Dir is the badger database directory.
	Dir string

	// GCInterval is the value-log garbage collection cadence.
	GCInterval time.Duration

	// GCThreshold is badger's rewrite ratio threshold.
	GCThreshold float64

	// SyncWrites forces fsync on every commit.
	SyncWrites bool

	// Logger is the structured logger.
	Logger *slog.Logger
}

// DefaultBadgerConfig returns sane defaults for the given directory.
func DefaultBadgerConfig(dir string) BadgerConfig {
	return BadgerConfig{
		Dir:         dir,
		GCInterval:  10 * time.Minute,
		GCThreshold: 0.5,
		SyncWrites:  true,
	}
}

// Badger is the disk-backed Store implementation. Record ciphertext lives
// in a badger keyspace instead of process memory.
type Badger struct {
	db     *badger.DB
	cfg    BadgerConfig
	logger *slog.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewBadger opens the database and starts the GC loop.
func NewBadger(cfg BadgerConfig) (*Badger, error) {
	if cfg.Dir == "" {
		return nil, domain.ErrInvalidArgument.WithDetails("badger dir is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = 10 * time.Minute
	}
	if cfg.GCThreshold <= 0 {
		cfg.GCThreshold = 0.5
	}

	opts := badger.DefaultOptions(cfg.Dir)
	opts.Logger = &badgerLogger{logger: cfg.Logger}
	opts.SyncWrites = cfg.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, domain.ErrIoFailure.WithDetails("open badger db").WithCause(err)
	}

	b := &Badger{
		db:     db,
		cfg:    cfg,
		logger: cfg.Logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go b.gcLoop()

	cfg.Logger.Info("badger store opened",
		"dir", cfg.Dir,
		"gc_interval", cfg.GCInterval)

	return b, nil
}

func vaultKey(vaultID domain.VaultID) []byte {
	key := make([]byte, 0, 1+domain.IDLength)
	key = append(key, prefixVault)
	key = append(key, vaultID[:]...)
	return key
}

func recordKey(vaultID domain.VaultID, recordID domain.RecordID) []byte {
	key := make([]byte, 0, 1+domain.IDLength*2)
	key = append(key, prefixRecord)
	key = append(key, vaultID[:]...)
	key = append(key, recordID[:]...)
	return key
}

func recordPrefix(vaultID domain.VaultID) []byte {
	return recordKey(vaultID, domain.RecordID{})[:1+domain.IDLength]
}

// InitVault creates the vault marker if it does not exist yet.
func (b *Badger) InitVault(_ []byte, vaultID domain.VaultID) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(vaultKey(vaultID)); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(vaultKey(vaultID), nil)
	})
	if err != nil {
		return domain.ErrIoFailure.WithDetails("init vault").WithCause(err)
	}
	return nil
}

// ContainsVault reports whether the vault marker exists.
func (b *Badger) ContainsVault(vaultID domain.VaultID) bool {
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(vaultKey(vaultID))
		return err
	})
	return err == nil
}

// ListVaults scans the vault marker space.
func (b *Badger) ListVaults() []domain.VaultID {
	var ids []domain.VaultID
	_ = b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte{prefixVault}
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			if len(key) != 1+domain.IDLength {
				continue
			}
			var vid domain.VaultID
			copy(vid[:], key[1:])
			ids = append(ids, vid)
		}
		return nil
	})
	return ids
}

func (b *Badger) getRecord(txn *badger.Txn, vaultID domain.VaultID, recordID domain.RecordID) (Record, error) {
	var rec Record
	item, err := txn.Get(recordKey(vaultID, recordID))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return rec, domain.ErrNotExisting.WithDetails("record " + recordID.String())
		}
		return rec, domain.ErrIoFailure.WithCause(err)
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return rec, domain.ErrIoFailure.WithDetails("decode record").WithCause(err)
	}
	return rec, nil
}

func (b *Badger) requireVault(txn *badger.Txn, vaultID domain.VaultID) error {
	if _, err := txn.Get(vaultKey(vaultID)); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domain.ErrNotExisting.WithDetails("vault " + vaultID.String())
		}
		return domain.ErrIoFailure.WithCause(err)
	}
	return nil
}

// WriteRecord seals data under key and stores it.
func (b *Badger) WriteRecord(key []byte, vaultID domain.VaultID, recordID domain.RecordID, data []byte, hint string) error {
	cipher, err := adaptive.New(key)
	if err != nil {
		return domain.ErrKeySize.WithCause(err)
	}
	blob, err := cipher.Seal(data, recordAAD(vaultID, recordID))
	if err != nil {
		return domain.ErrIoFailure.WithDetails("sealing record").WithCause(err)
	}
	encoded, err := json.Marshal(Record{Blob: blob, Hint: truncateHint(hint)})
	if err != nil {
		return domain.ErrIoFailure.WithDetails("encode record").WithCause(err)
	}

	return b.db.Update(func(txn *badger.Txn) error {
		if err := b.requireVault(txn, vaultID); err != nil {
			return err
		}
		if err := txn.Set(recordKey(vaultID, recordID), encoded); err != nil {
			return domain.ErrIoFailure.WithCause(err)
		}
		return nil
	})
}

// ReadRecord opens and returns the record plaintext.
func (b *Badger) ReadRecord(key []byte, vaultID domain.VaultID, recordID domain.RecordID) ([]byte, error) {
	var rec Record
	err := b.db.View(func(txn *badger.Txn) error {
		if err := b.requireVault(txn, vaultID); err != nil {
			return err
		}
		var err error
		rec, err = b.getRecord(txn, vaultID, recordID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if rec.Revoked {
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
func (b *Badger) RevokeRecord(vaultID domain.VaultID, recordID domain.RecordID) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if err := b.requireVault(txn, vaultID); err != nil {
			return err
		}
		rec, err := b.getRecord(txn, vaultID, recordID)
		if err != nil {
			return err
		}
		rec.Revoked = true
		encoded, err := json.Marshal(rec)
		if err != nil {
			return domain.ErrIoFailure.WithDetails("encode record").WithCause(err)
		}
		if err := txn.Set(recordKey(vaultID, recordID), encoded); err != nil {
			return domain.ErrIoFailure.WithCause(err)
		}
		return nil
	})
}

// GarbageCollect removes every revoked record in the vault.
func (b *Badger) GarbageCollect(vaultID domain.VaultID) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if err := b.requireVault(txn, vaultID); err != nil {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = recordPrefix(vaultID)
		it := txn.NewIterator(opts)
		defer it.Close()

		var doomed [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var rec Record
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return domain.ErrIoFailure.WithDetails("decode record").WithCause(err)
			}
			if rec.Revoked {
				doomed = append(doomed, item.KeyCopy(nil))
			}
		}
		for _, key := range doomed {
			if err := txn.Delete(key); err != nil {
				return domain.ErrIoFailure.WithCause(err)
			}
		}
		return nil
	})
}

// ListHints returns the id and hint of every live record in the vault.
func (b *Badger) ListHints(vaultID domain.VaultID) ([]RecordHint, error) {
	var hints []RecordHint
	err := b.db.View(func(txn *badger.Txn) error {
		if err := b.requireVault(txn, vaultID); err != nil {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = recordPrefix(vaultID)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.Key()
			if len(key) != 1+domain.IDLength*2 {
				continue
			}
			var rec Record
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return domain.ErrIoFailure.WithDetails("decode record").WithCause(err)
			}
			if rec.Revoked {
				continue
			}
			var rid domain.RecordID
			copy(rid[:], key[1+domain.IDLength:])
			hints = append(hints, RecordHint{ID: rid, Hint: rec.Hint})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hints, nil
}

// Export scans the whole keyspace into a View.
func (b *Badger) Export() (View, error) {
	view := make(View)
	err := b.db.View(func(txn *badger.Txn) error {
		markerOpts := badger.DefaultIteratorOptions
		markerOpts.Prefix = []byte{prefixVault}
		markerOpts.PrefetchValues = false
		markers := txn.NewIterator(markerOpts)
		for markers.Rewind(); markers.Valid(); markers.Next() {
			key := markers.Item().Key()
			if len(key) != 1+domain.IDLength {
				continue
			}
			var vid domain.VaultID
			copy(vid[:], key[1:])
			view[vid] = Vault{Records: make(map[domain.RecordID]Record)}
		}
		markers.Close()

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte{prefixRecord}
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.Key()
			if len(key) != 1+domain.IDLength*2 {
				continue
			}
			var vid domain.VaultID
			var rid domain.RecordID
			copy(vid[:], key[1:1+domain.IDLength])
			copy(rid[:], key[1+domain.IDLength:])

			var rec Record
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return domain.ErrIoFailure.WithDetails("decode record").WithCause(err)
			}
			vault, ok := view[vid]
			if !ok {
				vault = Vault{Records: make(map[domain.RecordID]Record)}
				view[vid] = vault
			}
			vault.Records[rid] = rec
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Import replaces the store contents wholesale.
func (b *Badger) Import(view View) error {
	err := b.db.DropAll()
	if err != nil {
		return domain.ErrIoFailure.WithDetails("clear store").WithCause(err)
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	for vid, vault := range view {
		if err := wb.Set(vaultKey(vid), nil); err != nil {
			return domain.ErrIoFailure.WithCause(err)
		}
		for rid, rec := range vault.Records {
			encoded, err := json.Marshal(rec)
			if err != nil {
				return domain.ErrIoFailure.WithDetails("encode record").WithCause(err)
			}
			if err := wb.Set(recordKey(vid, rid), encoded); err != nil {
				return domain.ErrIoFailure.WithCause(err)
			}
		}
	}
	if err := wb.Flush(); err != nil {
		return domain.ErrIoFailure.WithDetails("flush import").WithCause(err)
	}
	return nil
}

// Close stops the GC loop and closes the database.
func (b *Badger) Close() error {
	close(b.stopCh)
	<-b.doneCh

	if err := b.db.Close(); err != nil {
		return domain.ErrIoFailure.WithDetails("close badger db").WithCause(err)
	}
	b.logger.Info("badger store closed")
	return nil
}

// gcLoop runs periodic value-log garbage collection.
func (b *Badger) gcLoop() {
	defer close(b.doneCh)

	ticker := time.NewTicker(b.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for {
				err := b.db.RunValueLogGC(b.cfg.GCThreshold)
				if err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						b.logger.Error("value log gc failed", "error", err)
					}
					break
				}
			}
		case <-b.stopCh:
			return
		}
	}
}

// badgerLogger adapts slog.Logger to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
