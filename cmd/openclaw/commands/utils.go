package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/chainguard-dev/clog"

	"github.com/sergical/openclaw-ec2-setup/internal/cloud"
	"github.com/sergical/openclaw-ec2-setup/internal/config"
	"github.com/sergical/openclaw-ec2-setup/internal/lifecycle"
	"github.com/sergical/openclaw-ec2-setup/internal/remote"
	"github.com/sergical/openclaw-ec2-setup/internal/state"
	"github.com/sergical/openclaw-ec2-setup/internal/userdata"
)

// newController wires one invocation's controller from configuration. The
// bootstrap descriptor is built up front so a template failure aborts before
// any AWS client exists, let alone any remote resource.
func newController(ctx context.Context, cfg *config.Config) (*lifecycle.Controller, *state.Store, error) {
	payload, err := userdata.Build(userdata.Params{
		User:             cfg.SSHUser,
		TailscaleAuthKey: cfg.TailscaleAuthKey,
	})
	if err != nil {
		return nil, nil, err
	}

	client, err := cloud.New(ctx, cfg.Region, cfg.AWSProfile)
	if err != nil {
		return nil, nil, err
	}

	mode := cloud.ReachabilityPublic
	if cfg.Private {
		mode = cloud.ReachabilityPrivate
	}

	store := &state.Store{Path: cfg.StateFile}
	ctrl := &lifecycle.Controller{
		Cloud:   client,
		Store:   store,
		Mesh:    remote.Host{},
		Confirm: confirmTerminate,
		Spec: cloud.ProvisionSpec{
			Name:         cfg.Name,
			Mode:         mode,
			InstanceType: cfg.InstanceType,
			DiskSizeGB:   cfg.DiskSizeGB,
			ImageFamily:  cfg.ImageFamily,
			User:         cfg.SSHUser,
			KeyDir:       cfg.KeyDir,
			ProfileName:  cfg.ProfileName(),
			UserData:     payload,
		},
		Timeout: cfg.ProvisionTimeout,
	}
	return ctrl, store, nil
}

// confirmTerminate requires the operator to type the word "terminate" in
// full. Anything else — including EOF — is a clean cancellation.
func confirmTerminate(ctx context.Context, prompt string) (bool, error) {
	log := clog.FromContext(ctx)
	fmt.Fprintf(os.Stderr, "%s\nType 'terminate' to proceed: ", prompt)

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		log.Debug("no confirmation input received")
		return false, nil
	}
	return strings.TrimSpace(line) == "terminate", nil
}
