package catalog

import (
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// responseCache is an in-process LRU of normalized result sets keyed by
// the hash of the serialized request body. Cached result sets are treated
// as read-only by all consumers.
type responseCache struct {
	lru *lru.Cache[uint64, *ResultSet]
}

// newResponseCache requires a positive size; Client.WithCache guards the
// disabled case.
func newResponseCache(size int) *responseCache {
	c, _ := lru.New[uint64, *ResultSet](size)
	return &responseCache{lru: c}
}

// requestKey hashes a serialized request body into a cache key. The body
// is produced by deterministic JSON marshaling of the request struct, so
// identical searches hash identically.
func requestKey(body []byte) uint64 {
	return xxhash.Sum64(body)
}

func (c *responseCache) get(key uint64) (*ResultSet, bool) {
	return c.lru.Get(key)
}

func (c *responseCache) add(key uint64, rs *ResultSet) {
	c.lru.Add(key, rs)
}
