package cloud

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"
)

// LaunchSpec carries everything needed to create the instance. UserData is
// opaque here: it is assembled by the userdata package and passed through
// unexamined, attached at creation time only.
type LaunchSpec struct {
	Name            string
	ImageID         string
	InstanceType    string
	DiskSizeGB      int32
	KeyName         string
	SecurityGroupID string
	ProfileName     string
	UserData        string
	PublicAddress   bool
}

var (
	ErrLaunch            = fmt.Errorf("failed to launch EC2 instance")
	ErrLaunchNoInstances = fmt.Errorf("encountered no error during instance " +
		"launch, but no instance was actually created")
	ErrLaunchIDNil = fmt.Errorf("encountered no error during instance launch, " +
		"but the returned instance ID was nil")
)

// Launch creates the instance and returns its ID. It does not wait for the
// instance to reach the running state.
func (c *Client) Launch(ctx context.Context, spec LaunchSpec) (string, error) {
	log := clog.FromContext(ctx)

	input := &ec2.RunInstancesInput{
		ImageId:      aws.String(spec.ImageID),
		InstanceType: types.InstanceType(spec.InstanceType),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		KeyName:      aws.String(spec.KeyName),
		// The EC2 API wants user data base64-encoded; the SDK does not do
		// this for you.
		UserData: aws.String(base64.StdEncoding.EncodeToString([]byte(spec.UserData))),
		NetworkInterfaces: []types.InstanceNetworkInterfaceSpecification{{
			DeviceIndex:              aws.Int32(0),
			AssociatePublicIpAddress: aws.Bool(spec.PublicAddress),
			Groups:                   []string{spec.SecurityGroupID},
		}},
		BlockDeviceMappings: []types.BlockDeviceMapping{{
			DeviceName: aws.String("/dev/sda1"),
			Ebs: &types.EbsBlockDevice{
				VolumeSize:          aws.Int32(spec.DiskSizeGB),
				VolumeType:          types.VolumeTypeGp3,
				DeleteOnTermination: aws.Bool(true),
			},
		}},
		TagSpecifications: tagSpecification(types.ResourceTypeInstance, spec.Name),
	}
	if spec.ProfileName != "" {
		input.IamInstanceProfile = &types.IamInstanceProfileSpecification{
			Name: aws.String(spec.ProfileName),
		}
	}

	result, err := c.ec2.RunInstances(ctx, input)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	if len(result.Instances) < 1 {
		return "", ErrLaunchNoInstances
	}
	instance := &result.Instances[0]
	if instance.InstanceId == nil {
		return "", ErrLaunchIDNil
	}
	log.Info("launched instance", "instance_id", *instance.InstanceId)
	return *instance.InstanceId, nil
}

var ErrStart = fmt.Errorf("failed to start EC2 instance")

func (c *Client) Start(ctx context.Context, instanceID string) error {
	_, err := c.ec2.StartInstances(ctx, &ec2.StartInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStart, err)
	}
	return nil
}

var ErrStop = fmt.Errorf("failed to stop EC2 instance")

func (c *Client) Stop(ctx context.Context, instanceID string) error {
	_, err := c.ec2.StopInstances(ctx, &ec2.StopInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStop, err)
	}
	return nil
}

var ErrTerminate = fmt.Errorf("failed to terminate EC2 instance")

func (c *Client) Terminate(ctx context.Context, instanceID string) error {
	_, err := c.ec2.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		if isNotFound(err) {
			// Already reaped. Terminate is idempotent from the operator's view.
			return nil
		}
		return fmt.Errorf("%w: %w", ErrTerminate, err)
	}
	return nil
}

var ErrWaitUnsupported = fmt.Errorf("no waiter exists for the requested state")

// WaitFor blocks until the instance reaches 'target' or 'timeout' elapses,
// then returns a fresh Status observation. Only the terminal states (running,
// stopped, terminated) can be waited on.
func (c *Client) WaitFor(ctx context.Context, instanceID string, target State, timeout time.Duration) (Status, error) {
	log := clog.FromContext(ctx)
	log.Info("waiting for instance state", "instance_id", instanceID, "target", target)

	input := &ec2.DescribeInstancesInput{InstanceIds: []string{instanceID}}
	var err error
	switch target {
	case StateRunning:
		err = ec2.NewInstanceRunningWaiter(c.ec2).Wait(ctx, input, timeout)
	case StateStopped:
		err = ec2.NewInstanceStoppedWaiter(c.ec2).Wait(ctx, input, timeout)
	case StateTerminated:
		err = ec2.NewInstanceTerminatedWaiter(c.ec2).Wait(ctx, input, timeout)
	default:
		return Status{State: StateUnknown}, fmt.Errorf("%w: %s", ErrWaitUnsupported, target)
	}
	if err != nil {
		if target == StateTerminated && isNotFound(err) {
			return Status{State: StateTerminated}, nil
		}
		return Status{State: StateUnknown}, fmt.Errorf("deadlined waiting for instance state %s: %w", target, err)
	}

	// Addresses are volatile across stop/start cycles, so always observe
	// fresh rather than returning what the waiter happened to see.
	return c.Describe(ctx, instanceID)
}
