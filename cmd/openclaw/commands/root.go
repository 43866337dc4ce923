package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "openclaw",
	Short: "Remote OpenClaw dev box on EC2",
	Long: `Provisions, connects to, and tears down a single EC2 instance set up as a
remote development environment (zsh, Tailscale, Node, AI CLI tools via
cloud-init). Local state lives in a flat .instance-info file; the EC2 control
plane is always the source of truth.`,
	SilenceUsage: true,
}

func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("region", "us-west-2", "AWS region")
	flags.String("aws-profile", "", "AWS shared-credentials profile override")
	flags.String("instance-type", "t3.medium", "EC2 instance type")
	flags.Int32("disk-size", 50, "Root volume size in GB")
	flags.String("image-family", "ubuntu-24.04", "Machine image family")
	flags.String("name", "openclaw", "Resource naming stem")
	flags.String("ssh-user", "ubuntu", "Remote login account")
	flags.String("tailscale-auth-key", "", "Tailscale auth key for automatic mesh join")
	flags.Bool("private", false, "No public SSH ingress; reach the box over the mesh only")
	flags.Bool("attach-role", false, "Attach the IAM instance profile <name>-profile")
	flags.String("state-file", ".instance-info", "Path to the local instance record")
	flags.String("key-dir", ".", "Directory for the generated private key")
	flags.Duration("provision-timeout", 10*time.Minute, "Bound on waits for instance transitions")

	for _, key := range []string{
		"region", "aws-profile", "instance-type", "disk-size", "image-family",
		"name", "ssh-user", "tailscale-auth-key", "private", "attach-role",
		"state-file", "key-dir", "provision-timeout",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(key)); err != nil {
			panic(err)
		}
	}
}
