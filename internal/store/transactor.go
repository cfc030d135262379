// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/holomush/authcore/internal/auth"
)

// Retry defaults for Transactor.
const (
	DefaultMaxAttempts = 8
	DefaultRetryBase   = 5 * time.Millisecond
	DefaultRetryCap    = 250 * time.Millisecond
)

// Backend is the compare-and-swap primitive a Transactor runs on. Versions
// start at 1 for a stored record; 0 means "no record".
type Backend interface {
	// Load returns the record and its version, or (nil, 0, nil) if absent.
	Load(ctx context.Context, uid string) (*auth.Account, int64, error)

	// CompareAndSwap writes next only if the stored version still equals
	// expected. It reports false, without error, when another writer won.
	CompareAndSwap(ctx context.Context, uid string, expected int64, next *auth.Account) (bool, error)
}

// errConflict marks a lost compare-and-swap; it never leaves this package.
var errConflict = errors.New("concurrent modification")

// Metrics counts transaction attempts and conflicts.
type Metrics struct {
	Attempts  prometheus.Counter
	Conflicts prometheus.Counter
}

// NewMetrics creates and registers transaction metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authcore_store_txn_attempts_total",
			Help: "Credential transaction attempts, including retries",
		}),
		Conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authcore_store_txn_conflicts_total",
			Help: "Credential transaction attempts lost to a concurrent writer",
		}),
	}
	reg.MustRegister(m.Attempts, m.Conflicts)
	return m
}

// Transactor implements auth.AccountStore with optimistic retries over a
// Backend.
type Transactor struct {
	backend     Backend
	maxAttempts int
	base        time.Duration
	maxDelay    time.Duration
	metrics     *Metrics
}

// TransactorOption configures a Transactor.
type TransactorOption func(*Transactor)

// WithMaxAttempts bounds how often a transaction is tried.
func WithMaxAttempts(n int) TransactorOption {
	return func(t *Transactor) { t.maxAttempts = n }
}

// WithBackoff sets the base and maximum delay between attempts. A zero base
// retries immediately.
func WithBackoff(base, maxDelay time.Duration) TransactorOption {
	return func(t *Transactor) {
		t.base = base
		t.maxDelay = maxDelay
	}
}

// WithMetrics records attempts and conflicts in m.
func WithMetrics(m *Metrics) TransactorOption {
	return func(t *Transactor) { t.metrics = m }
}

// NewTransactor creates a Transactor over backend.
func NewTransactor(backend Backend, opts ...TransactorOption) (*Transactor, error) {
	if backend == nil {
		return nil, oops.Code("STORE_INVALID_CONFIG").Errorf("backend is required")
	}
	t := &Transactor{
		backend:     backend,
		maxAttempts: DefaultMaxAttempts,
		base:        DefaultRetryBase,
		maxDelay:    DefaultRetryCap,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.maxAttempts < 1 {
		return nil, oops.Code("STORE_INVALID_CONFIG").With("max_attempts", t.maxAttempts).Errorf("max attempts must be at least 1")
	}
	return t, nil
}

func (t *Transactor) backoff() retry.Backoff {
	var b retry.Backoff
	if t.base <= 0 {
		b = retry.NewConstant(time.Nanosecond)
	} else {
		b = retry.NewExponential(t.base)
		b = retry.WithJitterPercent(50, b)
		if t.maxDelay > 0 {
			b = retry.WithCappedDuration(t.maxDelay, b)
		}
	}
	return retry.WithMaxRetries(uint64(t.maxAttempts-1), b) //nolint:gosec // validated >= 1
}

// Get reads uid without a transaction.
func (t *Transactor) Get(ctx context.Context, uid string) (*auth.Account, error) {
	account, version, err := t.backend.Load(ctx, uid)
	if err != nil {
		return nil, oops.Code("STORE_LOAD_FAILED").With("uid", uid).Wrap(err)
	}
	if account == nil {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("uid", uid).Wrap(auth.ErrNotFound)
	}
	account.Version = version
	return account, nil
}

// Transaction loads uid, applies mutate and commits with compare-and-swap,
// starting over from a fresh load whenever another writer got in first.
func (t *Transactor) Transaction(ctx context.Context, uid string, mutate auth.MutateFunc) (*auth.Account, error) {
	var committed *auth.Account
	attempts := 0

	err := retry.Do(ctx, t.backoff(), func(ctx context.Context) error {
		attempts++
		if t.metrics != nil {
			t.metrics.Attempts.Inc()
		}

		current, version, err := t.backend.Load(ctx, uid)
		if err != nil {
			return oops.Code("STORE_LOAD_FAILED").With("uid", uid).Wrap(err)
		}
		if current != nil {
			current.Version = version
		}

		next, err := mutate(current.Clone())
		if err != nil {
			return err
		}
		if next == nil {
			committed = nil
			return nil
		}
		next.UID = uid

		ok, err := t.backend.CompareAndSwap(ctx, uid, version, next)
		if err != nil {
			return oops.Code("STORE_COMMIT_FAILED").With("uid", uid).Wrap(err)
		}
		if !ok {
			if t.metrics != nil {
				t.metrics.Conflicts.Inc()
			}
			return retry.RetryableError(errConflict)
		}
		committed = next.Clone()
		committed.Version = version + 1
		return nil
	})

	switch {
	case errors.Is(err, errConflict):
		return nil, oops.Code("STORE_TXN_CONFLICT").
			With("uid", uid).
			With("attempts", attempts).
			Errorf("transaction gave up after %d attempts", attempts)
	case err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return nil, oops.Code("STORE_TXN_CANCELED").With("uid", uid).Wrap(err)
	case err != nil:
		return nil, err //nolint:wrapcheck // mutate errors pass through unchanged
	}
	return committed, nil
}

var _ auth.AccountStore = (*Transactor)(nil)
