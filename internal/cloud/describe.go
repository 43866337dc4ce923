package cloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/chainguard-dev/clog"
)

// Status is a point-in-time observation of the instance. Address carries the
// instance's reachable IP when one is assigned; it is empty for stopped or
// terminated instances and must never be assumed stable across a restart.
type Status struct {
	State   State
	Address string
}

var (
	ErrDescribe            = fmt.Errorf("failed to fetch instance state")
	ErrDescribeNoInstances = fmt.Errorf("describe instances call produced no " +
		"errors, but returned no instances")
	ErrDescribeStateNil = fmt.Errorf("describe instances call produced no " +
		"errors, but the returned instance state was nil")
)

// Describe returns the authoritative state of 'instanceID'.
//
// A not-found response maps to StateTerminated since reaped instances become
// unqueryable. Any other failure maps to StateUnknown with the underlying
// error attached; callers must treat StateUnknown as non-authoritative.
func (c *Client) Describe(ctx context.Context, instanceID string) (Status, error) {
	log := clog.FromContext(ctx)

	result, err := c.ec2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		if isNotFound(err) {
			log.Debug("instance not found, treating as terminated", "instance_id", instanceID)
			return Status{State: StateTerminated}, nil
		}
		return Status{State: StateUnknown}, fmt.Errorf("%w: %w", ErrDescribe, err)
	}
	if len(result.Reservations) == 0 {
		// Some API versions report unknown IDs as an empty result rather than
		// an InvalidInstanceID error.
		return Status{State: StateTerminated}, nil
	}
	reservation := result.Reservations[0]
	if len(reservation.Instances) == 0 {
		return Status{State: StateUnknown}, ErrDescribeNoInstances
	}
	instance := reservation.Instances[0]
	if instance.State == nil {
		return Status{State: StateUnknown}, ErrDescribeStateNil
	}

	status := Status{State: stateFromEC2(instance.State.Name)}
	if instance.PublicIpAddress != nil {
		status.Address = *instance.PublicIpAddress
	} else if instance.PrivateIpAddress != nil {
		status.Address = *instance.PrivateIpAddress
	}
	return status, nil
}
