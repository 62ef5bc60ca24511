// Package cache is a small Redis-backed client-side cache.
//
// It keeps the unread badge and the conversation snapshot across CLI
// invocations so `supportchat unread` can answer without a network round
// trip. Keys are scoped per server URL and user ID. Default TTL is
// 5 minutes. Disable with SUPPORTCHAT_NO_CACHE=1.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 5 * time.Minute

// Store reads and writes a single cache key (resource+server+user).
type Store struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// NewStore creates a Store with the default 5-minute TTL.
// addr is the Redis address (host:port).
// key is the resource name (e.g. "unread").
// baseURL is the portal server URL.
// userID is the local user ID.
func NewStore(addr, key, baseURL string, userID int) *Store {
	return NewStoreWithTTL(addr, key, baseURL, userID, DefaultTTL)
}

// NewStoreWithTTL creates a Store with a custom TTL.
func NewStoreWithTTL(addr, key, baseURL string, userID int, ttl time.Duration) *Store {
	hash := sha1.Sum([]byte(baseURL))
	suffix := hex.EncodeToString(hash[:6])
	return &Store{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
		key: fmt.Sprintf("supportchat:%s:%d:%s", suffix, userID, key),
		ttl: ttl,
	}
}

// Get loads the cached value into dst. Returns false on miss (no key,
// expired, Redis unreachable, disabled).
func (s *Store) Get(ctx context.Context, dst any) bool {
	if disabled() {
		return false
	}
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

// Put writes a value to the cache. Silently no-ops on error or when
// disabled; the cache is never load-bearing.
func (s *Store) Put(ctx context.Context, value any) {
	if disabled() {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.rdb.Set(ctx, s.key, data, s.ttl).Err()
}

// Clear removes this cache key.
func (s *Store) Clear(ctx context.Context) {
	_ = s.rdb.Del(ctx, s.key).Err()
}

// Close releases the underlying Redis connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}

func disabled() bool {
	return os.Getenv("SUPPORTCHAT_NO_CACHE") == "1"
}
