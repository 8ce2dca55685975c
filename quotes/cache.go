package quotes

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Store is the byte-level backing for the quote cache. Production uses redis;
// tests use the in-memory store.
type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
}

// RedisStore keeps cache entries in redis. Entries carry their own timestamp
// and are judged fresh or stale in code, so a stale entry stays available as
// the upstream-failure fallback instead of being expired away by redis.
type RedisStore struct {
	rdb    *redis.Client
	ctx    context.Context
	prefix string
}

func NewRedisStore(rdb *redis.Client, ctx context.Context) *RedisStore {
	return &RedisStore{rdb: rdb, ctx: ctx, prefix: "quotes:"}
}

func (s *RedisStore) Get(key string) ([]byte, bool) {
	val, err := s.rdb.Get(s.ctx, s.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	return val, true
}

func (s *RedisStore) Set(key string, value []byte) {
	// Bounded retention so stale fallbacks don't outlive the trading week.
	s.rdb.Set(s.ctx, s.prefix+key, value, 7*24*time.Hour)
}

// MemoryStore is a mutex-guarded map store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]byte)}
}

func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	val, ok := s.entries[key]
	return val, ok
}

func (s *MemoryStore) Set(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
}

type cacheEntry struct {
	Quotes    []Quote   `json:"quotes"`
	Timestamp time.Time `json:"timestamp"`
}

// Cache is a TTL cache over quote result sets, keyed by the sorted
// comma-joined symbol list so permutations of the same set share one entry.
// The clock is injected for tests.
type Cache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

func NewCache(store Store, ttl time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{store: store, ttl: ttl, now: now}
}

func cacheKey(symbols []string) string {
	sorted := make([]string, len(symbols))
	copy(sorted, symbols)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// Get returns the cached quotes for the symbol set along with whether the
// entry is still within its TTL. Stale entries are returned too: the caller
// decides whether stale is acceptable.
func (c *Cache) Get(symbols []string) (quotes []Quote, fresh bool, ok bool) {
	raw, ok := c.store.Get(cacheKey(symbols))
	if !ok {
		return nil, false, false
	}
	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, false
	}
	return entry.Quotes, c.now().Sub(entry.Timestamp) < c.ttl, true
}

func (c *Cache) Put(symbols []string, quotes []Quote) {
	raw, err := json.Marshal(cacheEntry{Quotes: quotes, Timestamp: c.now()})
	if err != nil {
		return
	}
	c.store.Set(cacheKey(symbols), raw)
}
