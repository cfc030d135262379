// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "github.com/puzpuzpuz/xsync/v3"

// SessionCache holds the last known record per uid. It is advisory: a miss
// means "fetch from the store", never "the user has no token".
//
// Writes are ordered by Account.Version so a record read before a later
// commit cannot replace the commit's entry or undo its eviction.
type SessionCache interface {
	Get(uid string) (*Account, bool)
	Set(uid string, account *Account)
	Remove(uid string)
	Evict(uid string, version int64)
}

type cacheEntry struct {
	account *Account // nil marks an eviction
	version int64
}

// AccountCache is the process-local SessionCache. Records are copied on the
// way in and out. An evicted uid keeps a tombstone with the revision it was
// evicted at.
type AccountCache struct {
	entries *xsync.MapOf[string, cacheEntry]
}

// NewAccountCache creates an empty cache.
func NewAccountCache() *AccountCache {
	return &AccountCache{entries: xsync.NewMapOf[string, cacheEntry]()}
}

// Get returns a copy of the cached record.
func (c *AccountCache) Get(uid string) (*Account, bool) {
	e, ok := c.entries.Load(uid)
	if !ok || e.account == nil {
		return nil, false
	}
	return e.account.Clone(), true
}

// Set caches account unless the entry for uid already holds a newer
// revision, or an eviction at the same or a newer one. A nil account evicts.
func (c *AccountCache) Set(uid string, account *Account) {
	if account == nil {
		c.Remove(uid)
		return
	}
	next := cacheEntry{account: account.Clone(), version: account.Version}
	c.entries.Compute(uid, func(old cacheEntry, loaded bool) (cacheEntry, bool) {
		if loaded && (old.version > next.version || (old.account == nil && old.version == next.version && next.version > 0)) {
			return old, false
		}
		return next, false
	})
}

// Remove evicts uid, keeping the revision of whatever was cached.
func (c *AccountCache) Remove(uid string) {
	c.Evict(uid, 0)
}

// Evict drops uid and rejects later Sets of records at or below version.
func (c *AccountCache) Evict(uid string, version int64) {
	c.entries.Compute(uid, func(old cacheEntry, loaded bool) (cacheEntry, bool) {
		v := version
		if loaded && old.version > v {
			v = old.version
		}
		if v == 0 {
			return cacheEntry{}, true
		}
		return cacheEntry{version: v}, false
	})
}

// Len returns the number of cached records.
func (c *AccountCache) Len() int {
	n := 0
	c.entries.Range(func(_ string, e cacheEntry) bool {
		if e.account != nil {
			n++
		}
		return true
	})
	return n
}

var _ SessionCache = (*AccountCache)(nil)
