// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/holomush/authcore/internal/auth"
)

type versioned struct {
	account *auth.Account
	version int64
}

// memorySlot holds the current version of one uid. Swaps on different uids
// never contend.
type memorySlot struct {
	current atomic.Pointer[versioned]
}

// MemoryBackend is an in-process Backend for single-node deployments and
// tests.
type MemoryBackend struct {
	slots *xsync.MapOf[string, *memorySlot]
}

// NewMemoryBackend creates an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{slots: xsync.NewMapOf[string, *memorySlot]()}
}

// Load returns a copy of the record for uid.
func (b *MemoryBackend) Load(_ context.Context, uid string) (*auth.Account, int64, error) {
	slot, ok := b.slots.Load(uid)
	if !ok {
		return nil, 0, nil
	}
	v := slot.current.Load()
	if v == nil {
		return nil, 0, nil
	}
	return v.account.Clone(), v.version, nil
}

// CompareAndSwap stores next if uid is still at expected.
func (b *MemoryBackend) CompareAndSwap(_ context.Context, uid string, expected int64, next *auth.Account) (bool, error) {
	slot, _ := b.slots.LoadOrStore(uid, &memorySlot{})
	old := slot.current.Load()

	var oldVersion int64
	if old != nil {
		oldVersion = old.version
	}
	if oldVersion != expected {
		return false, nil
	}
	return slot.current.CompareAndSwap(old, &versioned{account: next.Clone(), version: expected + 1}), nil
}

// Put seeds a record outside of any transaction, replacing what is stored.
func (b *MemoryBackend) Put(account *auth.Account) {
	slot, _ := b.slots.LoadOrStore(account.UID, &memorySlot{})
	for {
		old := slot.current.Load()
		var version int64
		if old != nil {
			version = old.version
		}
		if slot.current.CompareAndSwap(old, &versioned{account: account.Clone(), version: version + 1}) {
			return
		}
	}
}

var _ Backend = (*MemoryBackend)(nil)
