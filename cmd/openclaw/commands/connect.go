package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sergical/openclaw-ec2-setup/internal/config"
	"github.com/sergical/openclaw-ec2-setup/internal/lifecycle"
	"github.com/sergical/openclaw-ec2-setup/internal/remote"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Ensure the dev box is running, then open an SSH session to it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		ctrl, store, err := newController(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		if err := ctrl.Reconcile(cmd.Context(), lifecycle.ActionEnsureRunning); err != nil {
			return err
		}

		// Reconcile just persisted a fresh record with a current address.
		rec, ok, err := store.Load()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no instance record after reconciliation")
		}
		return remote.Host{}.Shell(cmd.Context(), rec)
	},
}

func init() {
	rootCmd.AddCommand(connectCmd)
}
