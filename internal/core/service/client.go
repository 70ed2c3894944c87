package service

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Jonathanzhao02/strongbox/internal/core/domain"
	"github.com/Jonathanzhao02/strongbox/internal/engine"
	"github.com/Jonathanzhao02/strongbox/internal/storage/cache"
)

// Client is the in-memory working state for one client id: its vault
// keys, its record store view, the set of vaults it knows about, and the
// ephemeral unencrypted store.
//
// Vault membership is a cache over the keystore. ClearCache drops only
// that membership; keys and records survive until a snapshot read
// replaces everything wholesale.
type Client struct {
	id       domain.ClientID
	keystore *KeyStore
	store    engine.Store
	cache    *cache.Store

	mu     sync.RWMutex
	vaults map[domain.VaultID]struct{}

	indexCap int
	logger   *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithIndexCap overrides the counter scan bound for IndexFromRecordID.
func WithIndexCap(cap int) ClientOption {
	return func(c *Client) {
		if cap > 0 {
			c.indexCap = cap
		}
	}
}

// WithCache sets a pre-built ephemeral store.
func WithCache(store *cache.Store) ClientOption {
	return func(c *Client) {
		if store != nil {
			c.cache = store
		}
	}
}

// NewClient creates a client with empty state over the given record store.
func NewClient(id domain.ClientID, store engine.Store, opts ...ClientOption) *Client {
	c := &Client{
		id:       id,
		keystore: NewKeyStore(),
		store:    store,
		cache:    cache.New(),
		vaults:   make(map[domain.VaultID]struct{}),
		indexCap: domain.DefaultIndexCap,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the client id.
func (c *Client) ID() domain.ClientID {
	return c.id
}

// AddVault records vault membership. Adding a vault twice is a no-op.
func (c *Client) AddVault(vaultID domain.VaultID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vaults[vaultID] = struct{}{}
}

// VaultExists reports cached vault membership.
func (c *Client) VaultExists(vaultID domain.VaultID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.vaults[vaultID]
	return ok
}

// GetOrCreateKey returns the vault's key, generating the key and
// initializing the vault in the record store on first use.
func (c *Client) GetOrCreateKey(vaultID domain.VaultID) ([]byte, error) {
	if !c.keystore.VaultExists(vaultID) {
		key, err := c.keystore.CreateKey(vaultID)
		if err != nil {
			return nil, err
		}
		if err := c.store.InitVault(key, vaultID); err != nil {
			return nil, err
		}
		c.AddVault(vaultID)
		c.logger.Debug("vault created", "vault_id", vaultID)
		return key, nil
	}

	key, err := c.keystore.GetKey(vaultID)
	if err != nil {
		// The keystore just claimed this vault exists.
		return nil, domain.ErrInternalInvariant.WithDetails("keystore lost key for vault " + vaultID.String()).WithCause(err)
	}
	c.AddVault(vaultID)
	return key, nil
}

// GetKey returns the vault's key, or ErrNotExisting. A successful lookup
// also refreshes vault membership.
func (c *Client) GetKey(vaultID domain.VaultID) ([]byte, error) {
	key, err := c.keystore.GetKey(vaultID)
	if err != nil {
		return nil, err
	}
	c.AddVault(vaultID)
	return key, nil
}

// ClearCache drops vault membership only. Keys and records are untouched.
func (c *Client) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vaults = make(map[domain.VaultID]struct{})
}

// WriteRecord seals data at the resolved location. The vault must already
// have a key.
func (c *Client) WriteRecord(loc domain.Location, data []byte, hint string) error {
	vid, rid := loc.Resolve()
	key, err := c.GetKey(vid)
	if err != nil {
		return err
	}
	return c.store.WriteRecord(key, vid, rid, data, hint)
}

// ReadRecord opens the record at the resolved location.
func (c *Client) ReadRecord(loc domain.Location) ([]byte, error) {
	vid, rid := loc.Resolve()
	key, err := c.GetKey(vid)
	if err != nil {
		return nil, err
	}
	return c.store.ReadRecord(key, vid, rid)
}

// RevokeRecord marks the record at the resolved location for destruction.
func (c *Client) RevokeRecord(loc domain.Location) error {
	vid, rid := loc.Resolve()
	if _, err := c.GetKey(vid); err != nil {
		return err
	}
	return c.store.RevokeRecord(vid, rid)
}

// GarbageCollect removes revoked records from the vault at the given path.
func (c *Client) GarbageCollect(vaultPath []byte) error {
	vid := domain.DeriveVaultID(vaultPath)
	if _, err := c.GetKey(vid); err != nil {
		return err
	}
	return c.store.GarbageCollect(vid)
}

// ListHints returns the live records of the vault at the given path.
func (c *Client) ListHints(vaultPath []byte) ([]engine.RecordHint, error) {
	return c.store.ListHints(domain.DeriveVaultID(vaultPath))
}

// IndexFromRecordID recovers the counter that derives the record id
// within the vault path, or the scan cap on a miss.
func (c *Client) IndexFromRecordID(vaultPath []byte, recordID domain.RecordID) uint {
	return domain.IndexOfRecord(vaultPath, recordID, c.indexCap)
}

// WriteToStore writes an ephemeral value and returns the previous one.
func (c *Client) WriteToStore(key, value []byte, lifetime time.Duration) ([]byte, bool) {
	return c.cache.Insert(key, value, lifetime)
}

// ReadFromStore reads an ephemeral value.
func (c *Client) ReadFromStore(key []byte) ([]byte, bool) {
	return c.cache.Get(key)
}

// DeleteFromStore removes an ephemeral value and returns it.
func (c *Client) DeleteFromStore(key []byte) ([]byte, bool) {
	return c.cache.Delete(key)
}

// StoreContains reports whether a live ephemeral value exists for key.
func (c *Client) StoreContains(key []byte) bool {
	return c.cache.Contains(key)
}

// Export stages the full client state for a snapshot: vault keys, record
// store view, and live ephemeral entries.
func (c *Client) Export() (map[domain.VaultID][]byte, engine.View, []cache.Entry, error) {
	keys, err := c.keystore.Export()
	if err != nil {
		return nil, nil, nil, err
	}
	view, err := c.store.Export()
	if err != nil {
		return nil, nil, nil, err
	}
	return keys, view, c.cache.Export(), nil
}

// Reload replaces the whole client state with data read from a snapshot.
// Vault membership is rebuilt from the keys and the store view.
func (c *Client) Reload(keys map[domain.VaultID][]byte, view engine.View, entries []cache.Entry) error {
	vaults := make(map[domain.VaultID]struct{}, len(keys))
	for vid := range keys {
		vaults[vid] = struct{}{}
	}
	for vid := range view {
		vaults[vid] = struct{}{}
	}

	if err := c.keystore.Import(keys); err != nil {
		return err
	}
	if err := c.store.Import(view); err != nil {
		return err
	}
	c.cache.Import(entries)

	c.mu.Lock()
	c.vaults = vaults
	c.mu.Unlock()

	c.logger.Debug("client state reloaded",
		"client_id", c.id,
		"vault_count", len(vaults))
	return nil
}
