// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/authcore/internal/auth"
	"github.com/holomush/authcore/internal/config"
	"github.com/holomush/authcore/internal/logging"
	"github.com/holomush/authcore/internal/notify"
	"github.com/holomush/authcore/internal/session"
	"github.com/holomush/authcore/internal/store"
)

// app is the wired service and everything it owns.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	service    *auth.Service
	clients    *session.Registry
	dispatcher *notify.Dispatcher
	backend    *Backend
}

// loadConfig reads the configuration and builds the process logger, which
// writes to the command's stderr.
func loadConfig(cmd *cobra.Command, deps *Deps) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(config.LoadOptions{
		Flags:       cmd.Flags(),
		Environment: deps.Environment,
	})
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.Setup(logging.Options{
		Service: "authcore",
		Version: cmd.Root().Version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
		Writer:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// newApp wires the service. Collectors are registered with reg.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer, deps *Deps) (*app, error) {
	backend, err := deps.BackendOpener(ctx, cfg)
	if err != nil {
		return nil, oops.With("driver", cfg.Store.Driver).Wrap(err)
	}
	a := &app{cfg: cfg, logger: logger, backend: backend}

	tx, err := store.NewTransactor(backend,
		store.WithMaxAttempts(cfg.Store.MaxAttempts),
		store.WithBackoff(cfg.Store.RetryBase, cfg.Store.RetryMax),
		store.WithMetrics(store.NewMetrics(reg)),
	)
	if err != nil {
		a.closeBackend()
		return nil, err
	}

	a.dispatcher, err = notify.NewDispatcher(deps.SenderFactory(logger),
		notify.WithLogger(logger),
		notify.WithSendTimeout(cfg.Notify.SendTimeout),
		notify.WithMetrics(notify.NewMetrics(reg)),
	)
	if err != nil {
		a.closeBackend()
		return nil, err
	}

	a.clients = session.NewRegistry(session.WithLogger(logger))
	reg.MustRegister(a.clients.Collector())

	a.service, err = auth.NewService(auth.Deps{
		Store:    tx,
		Hasher:   auth.NewArgon2idHasher(),
		Cache:    auth.NewAccountCache(),
		Clients:  a.clients,
		Notifier: a.dispatcher,
		Secret:   []byte(cfg.Secrets.TokenSecret),
	},
		auth.WithLogger(logger),
		auth.WithMetrics(auth.NewMetrics(reg)),
	)
	if err != nil {
		_ = a.dispatcher.Close(ctx) //nolint:errcheck // construction error takes precedence
		a.closeBackend()
		return nil, err
	}
	return a, nil
}

// Ready reports whether the backend can serve requests.
func (a *app) Ready(ctx context.Context) error {
	if a.backend.Ready == nil {
		return nil
	}
	return a.backend.Ready(ctx)
}

// Close drains pending notifications and releases the backend.
func (a *app) Close(ctx context.Context) error {
	err := a.dispatcher.Close(ctx)
	a.closeBackend()
	return err
}

func (a *app) closeBackend() {
	if a.backend.Close != nil {
		a.backend.Close()
	}
}
