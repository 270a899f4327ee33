// Package cache implements the two process-local read-through caches
// of key-server pipeline stage 5/7 — a short-TTL policy-evaluation
// cache and a bounded, TTL-expiring usk cache — plus the singleflight
// coalescing groups that absorb retry storms for identical concurrent
// requests.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/sync/singleflight"
)

// PolicyCache caches dry-run outcomes keyed by hash(ptb, address) with
// a short TTL (<=10s per spec §4.5) to absorb retry storms; it never
// substitutes for running policy evaluation on a cache miss.
type PolicyCache struct {
	store *ristretto.Cache
	ttl   time.Duration
	group singleflight.Group
}

// NewPolicyCache builds a policy-evaluation cache with the given TTL
// and an entry budget sized for a single process's expected load.
func NewPolicyCache(ttl time.Duration) (*PolicyCache, error) {
	store, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000,
		MaxCost:     10_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: building policy cache: %w", err)
	}
	return &PolicyCache{store: store, ttl: ttl}, nil
}

// PolicyKey hashes (ptb, address) with Keccak256, matching the
// teacher's own digesting convention for request material.
func PolicyKey(ptb []byte, address [32]byte) string {
	buf := make([]byte, 0, len(ptb)+32)
	buf = append(buf, ptb...)
	buf = append(buf, address[:]...)
	h := ethcrypto.Keccak256(buf)
	return fmt.Sprintf("%x", h)
}

// GetOrEvaluate returns a cached outcome for key, or calls evaluate
// exactly once across all concurrent callers sharing key (singleflight)
// and caches the result for ttl.
func (c *PolicyCache) GetOrEvaluate(ctx context.Context, key string, evaluate func(context.Context) (bool, error)) (bool, error) {
	if v, ok := c.store.Get(key); ok {
		return v.(bool), nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		allowed, err := evaluate(ctx)
		if err != nil {
			return nil, err
		}
		c.store.SetWithTTL(key, allowed, 1, c.ttl)
		return allowed, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// UskCache is the bounded, TTL-expiring cache for extracted user secret
// keys, keyed by (client_id, full_id). It is backed by ristretto, whose
// admission and eviction are frequency-based (TinyLFU admission,
// sampled-LFU eviction); entries are not evicted in LRU order.
// Hits are always safe regardless of
// request interleaving because extraction is deterministic given
// (sk, full_id); the cache only ever sits after policy evaluation,
// never in front of it.
type UskCache struct {
	store *ristretto.Cache
	ttl   time.Duration
	group singleflight.Group
}

// NewUskCache builds a usk cache with the given TTL and an entry
// budget bounding memory for the extraction hot path.
func NewUskCache(ttl time.Duration) (*UskCache, error) {
	store, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1_000_000,
		MaxCost:     100_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: building usk cache: %w", err)
	}
	return &UskCache{store: store, ttl: ttl}, nil
}

// UskKey hashes (clientName, fullID) into a cache key.
func UskKey(clientName string, fullID []byte) string {
	buf := make([]byte, 0, len(clientName)+len(fullID)+1)
	buf = append(buf, clientName...)
	buf = append(buf, 0)
	buf = append(buf, fullID...)
	h := ethcrypto.Keccak256(buf)
	return fmt.Sprintf("%x", h)
}

// GetOrExtract returns a cached usk for key, or calls extract exactly
// once across all concurrent callers sharing key.
func (c *UskCache) GetOrExtract(key string, extract func() ([]byte, error)) ([]byte, error) {
	if v, ok := c.store.Get(key); ok {
		return v.([]byte), nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		usk, err := extract()
		if err != nil {
			return nil, err
		}
		c.store.SetWithTTL(key, usk, int64(len(usk)), c.ttl)
		return usk, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}
