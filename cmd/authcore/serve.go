// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// shutdownTimeout bounds graceful shutdown of serve.
const shutdownTimeout = 30 * time.Second

func newServeCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the credential service",
		Long: `Build the credential service from configuration, start the observability
server and run until SIGINT or SIGTERM. Pending notifications are drained
on shutdown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, deps)
		},
	}
}

func runServe(ctx context.Context, cmd *cobra.Command, deps *Deps) error {
	cfg, logger, err := loadConfig(cmd, deps)
	if err != nil {
		return err
	}

	var (
		a      *app
		server ObservabilityServer
		reg    = prometheus.NewRegistry()
	)
	if cfg.Metrics.Addr != "" {
		server = deps.ObservabilityServerFactory(cfg.Metrics.Addr, func(ctx context.Context) error {
			return a.Ready(ctx)
		}, logger)
		reg = server.Registry()
	}

	a, err = newApp(ctx, cfg, logger, reg, deps)
	if err != nil {
		return err
	}

	var serverErrs <-chan error
	if server != nil {
		serverErrs, err = server.Start()
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx)) //nolint:errcheck // start error takes precedence
			return oops.Code("SERVE_FAILED").With("component", "observability").Wrap(err)
		}
	}

	logger.InfoContext(ctx, "authcore serving",
		"store", cfg.Store.Driver,
		"metrics_addr", cfg.Metrics.Addr)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr, ok := <-serverErrs:
		if ok && serveErr != nil {
			runErr = oops.Code("SERVE_FAILED").With("component", "observability").Wrap(serveErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if server != nil {
		if err := server.Stop(shutdownCtx); err != nil {
			logger.Warn("observability server stop failed", "error", err)
		}
	}
	if err := a.Close(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
