/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package kernel

import (
	"crypto/rand"
	"sync"

	"github.com/aead/siphash"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

const defaultCacheShards = 16

// CachePolicy configures a CoinCache.
type CachePolicy struct {
	// MaxEntries bounds the number of cached candidates. Zero keeps every
	// entry until Purge is called.
	MaxEntries int `yaml:"max_entries" validate:"gte=0"`
}

type cacheEntry struct {
	candidate CoinCandidate
	seq       uint64
}

type queuedKey struct {
	hash chainhash.Hash
	seq  uint64
}

type cacheShard struct {
	mtx     sync.RWMutex
	entries map[chainhash.Hash]cacheEntry
	order   []queuedKey
	limit   int
	seq     uint64
}

// CoinCache maps the id of a coinstake to the resolved candidate of the
// output it spends. Entries are immutable: the first insertion of a key
// wins. When bounded, the oldest entries of a shard are evicted first.
//
// CoinCache is safe for concurrent use.
type CoinCache struct {
	key    [siphash.KeySize]byte
	shards []*cacheShard
}

// NewCoinCache returns an empty cache configured by policy.
func NewCoinCache(policy CachePolicy) *CoinCache {
	numShards := defaultCacheShards
	if policy.MaxEntries > 0 && policy.MaxEntries < numShards {
		numShards = 1
	}

	cache := &CoinCache{shards: make([]*cacheShard, numShards)}
	_, _ = rand.Read(cache.key[:])

	// The remainder of the division goes to the first shards, the limits
	// sum to MaxEntries.
	limit, extra := 0, 0
	if policy.MaxEntries > 0 {
		limit, extra = policy.MaxEntries/numShards, policy.MaxEntries%numShards
	}
	for i := range cache.shards {
		shardLimit := limit
		if i < extra {
			shardLimit++
		}
		cache.shards[i] = &cacheShard{
			entries: make(map[chainhash.Hash]cacheEntry),
			limit:   shardLimit,
		}
	}
	return cache
}

// Capacity returns the number of entries the cache holds at most, zero when
// unbounded. Keys are spread over the shards by hash, so eviction may start
// before Len reaches it.
func (c *CoinCache) Capacity() int {
	total := 0
	for _, s := range c.shards {
		total += s.limit
	}
	return total
}

func (c *CoinCache) shard(hash *chainhash.Hash) *cacheShard {
	if len(c.shards) == 1 {
		return c.shards[0]
	}
	return c.shards[siphash.Sum64(hash[:], &c.key)%uint64(len(c.shards))]
}

// Lookup returns the candidate cached for the coinstake hash.
func (c *CoinCache) Lookup(hash *chainhash.Hash) (CoinCandidate, bool) {
	s := c.shard(hash)
	s.mtx.RLock()
	entry, ok := s.entries[*hash]
	s.mtx.RUnlock()
	return entry.candidate, ok
}

// Add caches candidate for the coinstake hash unless the key is already
// present. It returns the candidate stored for the key and whether this call
// inserted it.
func (c *CoinCache) Add(hash *chainhash.Hash, candidate CoinCandidate) (CoinCandidate, bool) {
	s := c.shard(hash)
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if entry, ok := s.entries[*hash]; ok {
		return entry.candidate, false
	}

	if s.limit > 0 {
		for len(s.entries) >= s.limit && len(s.order) > 0 {
			oldest := s.order[0]
			s.order = s.order[1:]
			if entry, ok := s.entries[oldest.hash]; ok && entry.seq == oldest.seq {
				delete(s.entries, oldest.hash)
			}
		}
	}

	s.seq++
	s.entries[*hash] = cacheEntry{candidate: candidate, seq: s.seq}
	if s.limit > 0 {
		s.order = append(s.order, queuedKey{hash: *hash, seq: s.seq})
	}
	return candidate, true
}

// Remove drops the entry of the coinstake hash.
func (c *CoinCache) Remove(hash *chainhash.Hash) {
	s := c.shard(hash)
	s.mtx.Lock()
	delete(s.entries, *hash)
	s.mtx.Unlock()
}

// Purge drops every entry. It is called when the chain reorganizes.
func (c *CoinCache) Purge() {
	for _, s := range c.shards {
		s.mtx.Lock()
		s.entries = make(map[chainhash.Hash]cacheEntry)
		s.order = nil
		s.mtx.Unlock()
	}
}

// Len returns the number of cached entries.
func (c *CoinCache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mtx.RLock()
		n += len(s.entries)
		s.mtx.RUnlock()
	}
	return n
}
