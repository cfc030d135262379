// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package session tracks connected clients and the user each one is signed in as.
package session

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/samber/oops"
)

// Client is one connected client. Its bound uid is a single atomic pointer,
// so readers never see a half-applied bind or unbind.
type Client struct {
	id          string
	connectedAt time.Time
	boundUID    atomic.Pointer[string]
}

// ID returns the client id.
func (c *Client) ID() string { return c.id }

// ConnectedAt returns when the client connected.
func (c *Client) ConnectedAt() time.Time { return c.connectedAt }

// BoundUID returns the signed-in uid, if any.
func (c *Client) BoundUID() (string, bool) {
	p := c.boundUID.Load()
	if p == nil {
		return "", false
	}
	return *p, true
}

func (c *Client) bind(uid string) {
	c.boundUID.Store(&uid)
}

func (c *Client) unbind() bool {
	return c.boundUID.Swap(nil) != nil
}

// unbindIf clears the binding only while it still points at uid, so a client
// that re-binds to another user mid-sweep keeps its new binding.
func (c *Client) unbindIf(uid string) bool {
	for {
		p := c.boundUID.Load()
		if p == nil || *p != uid {
			return false
		}
		if c.boundUID.CompareAndSwap(p, nil) {
			return true
		}
	}
}

// Registry holds the connected clients. Entries live in a striped concurrent
// map and each binding is updated independently, so UnbindAll sweeps never
// hold a lock across the whole registry.
type Registry struct {
	clients *xsync.MapOf[string, *Client]
	now     func() time.Time
	logger  *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithClock overrides the time source for connect timestamps.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// WithLogger sets the logger for lifecycle events.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		clients: xsync.NewMapOf[string, *Client](),
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect registers a client. An empty clientID gets a generated ULID.
func (r *Registry) Connect(clientID string) (*Client, error) {
	if clientID == "" {
		clientID = ulid.Make().String()
	}
	c := &Client{id: clientID, connectedAt: r.now()}
	if _, loaded := r.clients.LoadOrStore(clientID, c); loaded {
		return nil, oops.Code("CLIENT_ALREADY_CONNECTED").With("client_id", clientID).Errorf("client already connected")
	}
	r.logger.Debug("client connected", "client_id", clientID)
	return c, nil
}

// Disconnect removes a client. It reports whether the client was registered.
func (r *Registry) Disconnect(clientID string) bool {
	_, ok := r.clients.LoadAndDelete(clientID)
	if ok {
		r.logger.Debug("client disconnected", "client_id", clientID)
	}
	return ok
}

// Lookup returns a registered client.
func (r *Registry) Lookup(clientID string) (*Client, bool) {
	return r.clients.Load(clientID)
}

// Bind marks a client as signed in as uid.
func (r *Registry) Bind(clientID, uid string) error {
	c, ok := r.clients.Load(clientID)
	if !ok {
		return oops.Code("CLIENT_NOT_FOUND").With("client_id", clientID).Errorf("client not connected")
	}
	if uid == "" {
		return oops.Code("CLIENT_BIND_INVALID").With("client_id", clientID).Errorf("uid is required")
	}
	c.bind(uid)
	return nil
}

// Unbind clears the binding of one client. It reports whether a binding was
// cleared.
func (r *Registry) Unbind(clientID string) bool {
	c, ok := r.clients.Load(clientID)
	if !ok {
		return false
	}
	return c.unbind()
}

// UnbindAll clears the binding of every client bound to uid and returns how
// many were cleared. Clients connecting during the sweep may or may not be
// visited.
func (r *Registry) UnbindAll(uid string) int {
	n := 0
	r.clients.Range(func(_ string, c *Client) bool {
		if c.unbindIf(uid) {
			n++
		}
		return true
	})
	if n > 0 {
		r.logger.Debug("clients unbound", "uid", uid, "count", n)
	}
	return n
}

// BoundTo returns the ids of clients currently bound to uid.
func (r *Registry) BoundTo(uid string) []string {
	var ids []string
	r.clients.Range(func(id string, c *Client) bool {
		if bound, ok := c.BoundUID(); ok && bound == uid {
			ids = append(ids, id)
		}
		return true
	})
	return ids
}

// Len returns the number of connected clients.
func (r *Registry) Len() int {
	return r.clients.Size()
}

// Collector exposes the connected-client count as a gauge.
func (r *Registry) Collector() prometheus.Collector {
	return prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "authcore_clients_connected",
			Help: "Number of currently connected clients",
		},
		func() float64 { return float64(r.Len()) },
	)
}
