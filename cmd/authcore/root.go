package main

import (
	"github.com/spf13/cobra"

	"github.com/holomush/authcore/internal/config"
)

// NewRootCmd creates the root command for the authcore CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmdWithDeps(nil)
}

func newRootCmdWithDeps(deps *Deps) *cobra.Command {
	deps = deps.withDefaults()

	cmd := &cobra.Command{
		Use:   "authcore",
		Short: "authcore - credential core of the realtime database",
		Long: `authcore runs the password change, password reset and sign-out flows
of the realtime database over a memory or PostgreSQL account store.`,
		SilenceUsage: true,
	}

	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newServeCmd(deps))
	cmd.AddCommand(newMigrateCmd(deps))
	cmd.AddCommand(newRequestResetCmd(deps))
	cmd.AddCommand(newResetPasswordCmd(deps))
	cmd.AddCommand(newSignOutCmd(deps))

	return cmd
}
