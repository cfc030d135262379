// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package session_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/holomush/authcore/internal/session"
	"github.com/holomush/authcore/pkg/errutil"
)

func TestRegistry_Connect(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := session.NewRegistry(session.WithClock(func() time.Time { return fixed }))

	t.Run("generates an id when none is given", func(t *testing.T) {
		c, err := r.Connect("")
		require.NoError(t, err)
		_, err = ulid.Parse(c.ID())
		require.NoError(t, err)
		assert.Equal(t, fixed, c.ConnectedAt())
		_, bound := c.BoundUID()
		assert.False(t, bound)
	})

	t.Run("rejects a duplicate id", func(t *testing.T) {
		_, err := r.Connect("c1")
		require.NoError(t, err)
		_, err = r.Connect("c1")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "CLIENT_ALREADY_CONNECTED")
	})

	t.Run("disconnect removes the client", func(t *testing.T) {
		_, err := r.Connect("c2")
		require.NoError(t, err)
		assert.True(t, r.Disconnect("c2"))
		assert.False(t, r.Disconnect("c2"))
		_, ok := r.Lookup("c2")
		assert.False(t, ok)
	})
}

func TestRegistry_Bind(t *testing.T) {
	r := session.NewRegistry()

	t.Run("unknown client", func(t *testing.T) {
		err := r.Bind("missing", "u1")
		errutil.AssertErrorCode(t, err, "CLIENT_NOT_FOUND")
	})

	t.Run("empty uid", func(t *testing.T) {
		_, err := r.Connect("c-empty")
		require.NoError(t, err)
		errutil.AssertErrorCode(t, r.Bind("c-empty", ""), "CLIENT_BIND_INVALID")
	})

	t.Run("bind and unbind one client", func(t *testing.T) {
		c, err := r.Connect("c1")
		require.NoError(t, err)
		require.NoError(t, r.Bind("c1", "u1"))

		uid, ok := c.BoundUID()
		require.True(t, ok)
		assert.Equal(t, "u1", uid)

		assert.True(t, r.Unbind("c1"))
		assert.False(t, r.Unbind("c1"), "second unbind is a no-op")
		_, ok = c.BoundUID()
		assert.False(t, ok)
	})

	t.Run("unbind of unknown client", func(t *testing.T) {
		assert.False(t, r.Unbind("nobody"))
	})
}

func TestRegistry_UnbindAll(t *testing.T) {
	r := session.NewRegistry()
	for i := range 6 {
		id := fmt.Sprintf("c%d", i)
		_, err := r.Connect(id)
		require.NoError(t, err)
		uid := "u1"
		if i%2 == 1 {
			uid = "u2"
		}
		require.NoError(t, r.Bind(id, uid))
	}
	_, err := r.Connect("anon")
	require.NoError(t, err)

	assert.Equal(t, 3, r.UnbindAll("u1"))
	assert.Empty(t, r.BoundTo("u1"))
	assert.ElementsMatch(t, []string{"c1", "c3", "c5"}, r.BoundTo("u2"))
	assert.Equal(t, 0, r.UnbindAll("u1"))
	assert.Equal(t, 7, r.Len())
}

func TestRegistry_UnbindAllConcurrentWithLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := session.NewRegistry()
	for i := range 200 {
		id := fmt.Sprintf("stable-%d", i)
		_, err := r.Connect(id)
		require.NoError(t, err)
		require.NoError(t, r.Bind(id, "u1"))
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Churn: clients connect, bind to u1 or u2, and disconnect while sweeps run.
	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-stop:
					return
				default:
				}
				id := fmt.Sprintf("churn-%d-%d", w, i)
				if _, err := r.Connect(id); err != nil {
					continue
				}
				uid := "u2"
				if i%2 == 0 {
					uid = "u1"
				}
				_ = r.Bind(id, uid)
				if i%3 == 0 {
					r.Disconnect(id)
				}
			}
		}()
	}

	for range 20 {
		r.UnbindAll("u1")
	}
	close(stop)
	wg.Wait()

	// Every client bound before the sweeps started was unbound.
	for i := range 200 {
		c, ok := r.Lookup(fmt.Sprintf("stable-%d", i))
		require.True(t, ok)
		_, bound := c.BoundUID()
		assert.False(t, bound)
	}
	// u2 bindings are never touched by a u1 sweep.
	for _, id := range r.BoundTo("u2") {
		c, ok := r.Lookup(id)
		require.True(t, ok)
		uid, _ := c.BoundUID()
		assert.Equal(t, "u2", uid)
	}
}

func TestRegistry_Collector(t *testing.T) {
	r := session.NewRegistry()
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(r.Collector()))

	_, err := r.Connect("a")
	require.NoError(t, err)
	_, err = r.Connect("b")
	require.NoError(t, err)

	assert.InDelta(t, 2, testutil.ToFloat64(r.Collector()), 0)
}
