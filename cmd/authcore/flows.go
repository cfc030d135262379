// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/authcore/internal/auth"
	"github.com/holomush/authcore/internal/config"
)

// drainTimeout bounds how long a command waits for pending notifications.
const drainTimeout = 30 * time.Second

// withApp builds an app for a one-shot command, runs fn and drains the
// dispatcher afterwards.
func withApp(cmd *cobra.Command, deps *Deps, fn func(ctx context.Context, a *app) error) (err error) {
	cfg, logger, err := loadConfig(cmd, deps)
	if err != nil {
		return err
	}
	if cfg.Store.Driver == config.DriverMemory {
		logger.Warn("memory store starts empty and is discarded on exit; use --store-driver postgres to act on stored accounts",
			"command", cmd.Name())
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, cfg, logger, prometheus.NewRegistry(), deps)
	if err != nil {
		return err
	}
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
		defer cancel()
		if closeErr := a.Close(drainCtx); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return fn(ctx, a)
}

// flowFailure turns a flow error into the message shown to the operator:
// the client-facing text and its wire code.
func flowFailure(err error) error {
	code := auth.CodeOf(err)
	return oops.Code(string(code)).Errorf("%s (%s)", code.Message(), code)
}

func newRequestResetCmd(deps *Deps) *cobra.Command {
	var uid, ip string

	cmd := &cobra.Command{
		Use:   "request-reset",
		Short: "Issue a password reset code for a user",
		Long: `Store a fresh reset code for the user and print it signed. The code is
also handed to the notification sender.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, deps, func(ctx context.Context, a *app) error {
				code, err := a.service.RequestPasswordReset(ctx, uid, ip)
				if err != nil {
					return flowFailure(err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), code)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&uid, "uid", "", "user id")
	cmd.Flags().StringVar(&ip, "ip", "", "client ip recorded with the request")
	_ = cmd.MarkFlagRequired("uid") //nolint:errcheck // flag defined above

	return cmd
}

func newResetPasswordCmd(deps *Deps) *cobra.Command {
	var code, password, ip string

	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password with a signed reset code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, deps, func(ctx context.Context, a *app) error {
				account, err := a.service.ResetPassword(ctx, auth.ResetPasswordRequest{
					Code:        code,
					NewPassword: password,
					ClientIP:    ip,
				})
				if err != nil {
					return flowFailure(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "password reset for %s\n", account.UID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "signed reset code")
	cmd.Flags().StringVar(&password, "password", "", "new password")
	cmd.Flags().StringVar(&ip, "ip", "", "client ip recorded with the reset")
	_ = cmd.MarkFlagRequired("code")     //nolint:errcheck // flag defined above
	_ = cmd.MarkFlagRequired("password") //nolint:errcheck // flag defined above

	return cmd
}

func newSignOutCmd(deps *Deps) *cobra.Command {
	var (
		uid, ip    string
		everywhere bool
	)

	cmd := &cobra.Command{
		Use:   "signout",
		Short: "Record a sign-out for a user",
		Long: `Record a sign-out for the user. With --everywhere the access token is
cleared so every issued session token stops working.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, deps, func(ctx context.Context, a *app) error {
				if err := a.service.SignOut(ctx, auth.SignOutRequest{
					UID:        uid,
					Everywhere: everywhere,
					ClientIP:   ip,
				}); err != nil {
					return flowFailure(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "signed out %s\n", uid)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&uid, "uid", "", "user id")
	cmd.Flags().BoolVar(&everywhere, "everywhere", false, "sign out every session and clear the access token")
	cmd.Flags().StringVar(&ip, "ip", "", "client ip recorded with the sign-out")
	_ = cmd.MarkFlagRequired("uid") //nolint:errcheck // flag defined above

	return cmd
}
