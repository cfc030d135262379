// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/samber/oops"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authcore/internal/auth"
	"github.com/holomush/authcore/internal/notify"
	"github.com/holomush/authcore/internal/session"
	"github.com/holomush/authcore/internal/store"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Dispatch(e notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) Events() []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Event(nil), n.events...)
}

// brokenStore fails every operation with an infrastructure error.
type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (*auth.Account, error) {
	return nil, oops.Code("STORE_LOAD_FAILED").With("dsn_host", "db.internal").Errorf("connection refused")
}

func (brokenStore) Transaction(context.Context, string, auth.MutateFunc) (*auth.Account, error) {
	return nil, oops.Code("STORE_COMMIT_FAILED").With("dsn_host", "db.internal").Errorf("connection refused")
}

type fixture struct {
	svc      *auth.Service
	backend  *store.MemoryBackend
	store    *store.Transactor
	cache    *auth.AccountCache
	clients  *session.Registry
	notifier *recordingNotifier
	hasher   *auth.Argon2idHasher
	logs     *lockedBuffer
	now      time.Time
}

type fixtureOption func(*auth.Deps)

func withStore(s auth.AccountStore) fixtureOption {
	return func(d *auth.Deps) { d.Store = s }
}

// wrapStore decorates the fixture's own transactional store.
func wrapStore(wrap func(auth.AccountStore) auth.AccountStore) fixtureOption {
	return func(d *auth.Deps) { d.Store = wrap(d.Store) }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	backend := store.NewMemoryBackend()
	tx, err := store.NewTransactor(backend, store.WithBackoff(0, 0), store.WithMaxAttempts(32))
	require.NoError(t, err)

	f := &fixture{
		backend:  backend,
		store:    tx,
		cache:    auth.NewAccountCache(),
		clients:  session.NewRegistry(),
		notifier: &recordingNotifier{},
		hasher:   newTestHasher(),
		logs:     &lockedBuffer{},
		now:      time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC),
	}
	deps := auth.Deps{
		Store:    tx,
		Hasher:   f.hasher,
		Cache:    f.cache,
		Clients:  f.clients,
		Notifier: f.notifier,
		Secret:   testSecret,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	logger := slog.New(slog.NewJSONHandler(f.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f.svc, err = auth.NewService(deps,
		auth.WithLogger(logger),
		auth.WithClock(func() time.Time { return f.now }),
	)
	require.NoError(t, err)
	return f
}

// seed stores a salted account with the given password and access token.
func (f *fixture) seed(t *testing.T, uid, password, accessToken string) *auth.Account {
	t.Helper()
	ph, err := f.hasher.HashSalted(password, "")
	require.NoError(t, err)
	email := uid + "@example.com"
	a := &auth.Account{
		UID:         uid,
		AccessToken: accessToken,
		Email:       &email,
		Username:    uid,
		DisplayName: "User " + uid,
	}
	a.SetPassword(ph)
	f.backend.Put(a)
	return a
}

func (f *fixture) seedLegacy(t *testing.T, uid, password string) *auth.Account {
	t.Helper()
	a := &auth.Account{UID: uid, PasswordHash: f.hasher.HashLegacy(password)}
	f.backend.Put(a)
	return a
}

func (f *fixture) get(t *testing.T, uid string) *auth.Account {
	t.Helper()
	a, err := f.store.Get(context.Background(), uid)
	require.NoError(t, err)
	return a
}

func (f *fixture) connect(t *testing.T, clientID, uid string) {
	t.Helper()
	_, err := f.clients.Connect(clientID)
	require.NoError(t, err)
	if uid != "" {
		require.NoError(t, f.clients.Bind(clientID, uid))
	}
}

func requireCode(t *testing.T, err error, code auth.Code) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, auth.CodeOf(err), "error: %v", err)
}
