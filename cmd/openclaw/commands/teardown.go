package commands

import (
	"github.com/spf13/cobra"

	"github.com/sergical/openclaw-ec2-setup/internal/config"
	"github.com/sergical/openclaw-ec2-setup/internal/lifecycle"
)

var teardownTerminate bool

var teardownCmd = &cobra.Command{
	Use:   "teardown",
	Short: "Stop the dev box, or destroy it with --terminate",
	Long: `Stops the instance, preserving its disk and local record so a later
provision/connect resumes it. With --terminate the instance and its supporting
resources are permanently destroyed after a typed confirmation, and the local
record is removed.`,
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
		action := lifecycle.ActionStop
		if teardownTerminate {
			action = lifecycle.ActionTerminate
		}
		return ctrl.Reconcile(cmd.Context(), action)
	},
}

func init() {
	teardownCmd.Flags().BoolVar(&teardownTerminate, "terminate", false,
		"Permanently destroy the instance instead of stopping it")
	rootCmd.AddCommand(teardownCmd)
}
