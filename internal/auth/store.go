// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "context"

// MutateFunc computes the next record from current, which is nil when the
// uid has no record. It receives a private copy and may modify and return
// it. Returning a nil account leaves the record unchanged; returning an
// error aborts without writing. The function may run several times for one
// transaction and must not have side effects.
type MutateFunc func(current *Account) (*Account, error)

// AccountStore is the transactional access path to credential records.
type AccountStore interface {
	// Get reads a record without a transaction. Absent records yield
	// ErrNotFound.
	Get(ctx context.Context, uid string) (*Account, error)

	// Transaction applies mutate atomically, retrying on concurrent
	// modification up to a bounded number of attempts. It returns the
	// committed record, or nil when mutate made no change. Errors returned
	// by mutate are propagated unchanged.
	Transaction(ctx context.Context, uid string, mutate MutateFunc) (*Account, error)
}
