// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/holomush/authcore/internal/auth/postgres"
	"github.com/holomush/authcore/internal/config"
	"github.com/holomush/authcore/internal/notify"
	"github.com/holomush/authcore/internal/observability"
	"github.com/holomush/authcore/internal/store"
)

// Deps contains injectable dependencies for the CLI.
// All fields with nil values will use their default implementations.
type Deps struct {
	// Environment replaces the process environment for secrets.
	// Default: the process environment
	Environment map[string]string

	// BackendOpener opens the account backend for the configured driver.
	// Default: openBackend
	BackendOpener func(ctx context.Context, cfg *config.Config) (*Backend, error)

	// MigratorFactory creates a schema migrator from a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer

	// SenderFactory creates the notification sender.
	// Default: notify.NewLogSender
	SenderFactory func(logger *slog.Logger) notify.Sender
}

// Backend is an opened account backend.
type Backend struct {
	store.Backend
	// Ready reports whether the backend can serve requests.
	Ready observability.ReadinessChecker
	// Close releases the backend. May be nil.
	Close func()
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Registry() *prometheus.Registry
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.BackendOpener == nil {
		out.BackendOpener = openBackend
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(url string) (Migrator, error) {
			return store.NewMigrator(url)
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, ready, observability.WithLogger(logger))
		}
	}
	if out.SenderFactory == nil {
		out.SenderFactory = func(logger *slog.Logger) notify.Sender {
			return notify.NewLogSender(logger)
		}
	}
	return &out
}

// openBackend opens the backend named by cfg.Store.Driver.
func openBackend(ctx context.Context, cfg *config.Config) (*Backend, error) {
	if cfg.Store.Driver != config.DriverPostgres {
		return &Backend{Backend: store.NewMemoryBackend()}, nil
	}
	pool, err := store.Connect(ctx, cfg.Secrets.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return &Backend{
		Backend: postgres.NewAccountBackend(pool),
		Ready:   pool.Ping,
		Close:   pool.Close,
	}, nil
}
