package cache

import (
	"sync"
	"time"

	"github.com/spaolacci/murmur3"
)

// DefaultShards is the default shard count.
const DefaultShards = 16

type entry struct {
	value []byte
	// expiresAt is zero for entries that never expire.
	expiresAt time.Time
}

type shard struct {
	mu    sync.RWMutex
	items map[string]entry
}

// Store is a sharded byte-keyed cache with optional per-entry expiry.
type Store struct {
	shards []*shard
	mask   uint32
	seed   uint32

	// now is swappable for expiry tests.
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithShards sets the shard count, which must be a power of two.
func WithShards(n int) Option {
	return func(s *Store) {
		if n > 0 && n&(n-1) == 0 {
			s.shards = make([]*shard, n)
			s.mask = uint32(n - 1)
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		shards: make([]*shard, DefaultShards),
		mask:   DefaultShards - 1,
		seed:   uint32(time.Now().UnixNano()),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	for i := range s.shards {
		s.shards[i] = &shard{items: make(map[string]entry)}
	}
	return s
}

func (s *Store) shardFor(key []byte) *shard {
	return s.shards[murmur3.Sum32WithSeed(key, s.seed)&s.mask]
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Insert stores a value with an optional lifetime (zero means no expiry)
// and returns the previous live value for the key, if any.
func (s *Store) Insert(key, value []byte, lifetime time.Duration) ([]byte, bool) {
	sh := s.shardFor(key)
	now := s.now()

	var expiresAt time.Time
	if lifetime > 0 {
		expiresAt = now.Add(lifetime)
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()

	prev, had := sh.items[string(key)]
	sh.items[string(key)] = entry{value: cloneValue(value), expiresAt: expiresAt}
	if !had || prev.expired(now) {
		return nil, false
	}
	return cloneValue(prev.value), true
}

// Get returns the live value for the key.
func (s *Store) Get(key []byte) ([]byte, bool) {
	sh := s.shardFor(key)
	now := s.now()

	sh.mu.RLock()
	e, ok := sh.items[string(key)]
	sh.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if e.expired(now) {
		// Lazy reap: drop it now that we know it's dead.
		sh.mu.Lock()
		if cur, ok := sh.items[string(key)]; ok && cur.expired(s.now()) {
			delete(sh.items, string(key))
		}
		sh.mu.Unlock()
		return nil, false
	}
	return cloneValue(e.value), true
}

// Delete removes a key and returns the live value it held, if any.
func (s *Store) Delete(key []byte) ([]byte, bool) {
	sh := s.shardFor(key)
	now := s.now()

	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.items[string(key)]
	if !ok {
		return nil, false
	}
	delete(sh.items, string(key))
	if e.expired(now) {
		return nil, false
	}
	return cloneValue(e.value), true
}

// Contains reports whether a live entry exists for the key.
func (s *Store) Contains(key []byte) bool {
	_, ok := s.Get(key)
	return ok
}

// Len counts live entries.
func (s *Store) Len() int {
	now := s.now()
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, e := range sh.items {
			if !e.expired(now) {
				n++
			}
		}
		sh.mu.RUnlock()
	}
	return n
}

// Clear removes all entries.
func (s *Store) Clear() {
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.items = make(map[string]entry)
		sh.mu.Unlock()
	}
}

// Entry is the serializable form of one live cache entry.
type Entry struct {
	Key   []byte `json:"key"`
	Value []byte `json:"value"`
	// ExpiresAt is the absolute expiry in Unix milliseconds; zero means
	// the entry never expires.
	ExpiresAt int64 `json:"expires_at,omitempty"`
}

// Export returns all live entries for snapshot staging. Expired entries
// are dropped rather than persisted.
func (s *Store) Export() []Entry {
	now := s.now()
	var out []Entry
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k, e := range sh.items {
			if e.expired(now) {
				continue
			}
			ent := Entry{Key: []byte(k), Value: cloneValue(e.value)}
			if !e.expiresAt.IsZero() {
				ent.ExpiresAt = e.expiresAt.UnixMilli()
			}
			out = append(out, ent)
		}
		sh.mu.RUnlock()
	}
	return out
}

// Import replaces the store contents with the given entries. Entries that
// are already expired are skipped.
func (s *Store) Import(entries []Entry) {
	s.Clear()
	now := s.now()
	for _, ent := range entries {
		var expiresAt time.Time
		if ent.ExpiresAt != 0 {
			expiresAt = time.UnixMilli(ent.ExpiresAt)
			if !now.Before(expiresAt) {
				continue
			}
		}
		sh := s.shardFor(ent.Key)
		sh.mu.Lock()
		sh.items[string(ent.Key)] = entry{value: cloneValue(ent.Value), expiresAt: expiresAt}
		sh.mu.Unlock()
	}
}

func cloneValue(v []byte) []byte {
	if v == nil {
		return nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out
}
