package cloud

import (
	"context"

	"github.com/chainguard-dev/clog"

	"github.com/sergical/openclaw-ec2-setup/internal/state"
)

// ProvisionSpec carries the one-time inputs for creating the instance and its
// supporting resources. UserData must already be built; a missing descriptor
// is caught before any of this runs.
type ProvisionSpec struct {
	Name         string
	Mode         ReachabilityMode
	InstanceType string
	DiskSizeGB   int32
	ImageFamily  string
	User         string
	KeyDir       string
	ProfileName  string
	UserData     string
}

// Provision creates everything a fresh instance needs: resolves the AMI,
// finds or creates the security group, imports a new keypair, and launches.
// It returns the local record for the new instance without waiting for it to
// reach the running state; the caller persists the record first and then
// waits, so a slow launch can be resumed by a later invocation.
func (c *Client) Provision(ctx context.Context, spec ProvisionSpec) (state.Record, error) {
	log := clog.FromContext(ctx).With("name", spec.Name)

	imageID, err := c.ResolveImage(ctx, spec.ImageFamily)
	if err != nil {
		return state.Record{}, err
	}

	sgID, err := c.EnsureSecurityGroup(ctx, spec.Name, spec.Mode)
	if err != nil {
		return state.Record{}, err
	}

	keyName, keyPath, err := c.ImportKeyPair(ctx, spec.Name, spec.KeyDir)
	if err != nil {
		return state.Record{}, err
	}

	instanceID, err := c.Launch(ctx, LaunchSpec{
		Name:            spec.Name,
		ImageID:         imageID,
		InstanceType:    spec.InstanceType,
		DiskSizeGB:      spec.DiskSizeGB,
		KeyName:         keyName,
		SecurityGroupID: sgID,
		ProfileName:     spec.ProfileName,
		UserData:        spec.UserData,
		PublicAddress:   spec.Mode == ReachabilityPublic,
	})
	if err != nil {
		return state.Record{}, err
	}
	log.Info("provisioned instance", "instance_id", instanceID)

	return state.Record{
		InstanceID: instanceID,
		KeyPath:    keyPath,
		Region:     c.region,
		User:       spec.User,
	}, nil
}
