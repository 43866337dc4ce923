package commands

import (
	"github.com/spf13/cobra"

	"github.com/sergical/openclaw-ec2-setup/internal/config"
	"github.com/sergical/openclaw-ec2-setup/internal/lifecycle"
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create the dev box (or start it if it already exists)",
	Long: `Ensures a running instance exists: creates and bootstraps a new one when
there is no usable instance on record, starts a stopped one, and is a no-op
when the instance is already running. The local record is written as soon as
the instance is created.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		ctrl, _, err := newController(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		return ctrl.Reconcile(cmd.Context(), lifecycle.ActionEnsureRunning)
	},
}

func init() {
	rootCmd.AddCommand(provisionCmd)
}
