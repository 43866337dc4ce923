package cloud

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
)

// Client wraps a configured EC2 client with the handful of lifecycle
// operations this tool needs. All methods are synchronous; the asynchronous
// EC2 transitions (launch, start, stop, terminate) are awaited separately via
// 'WaitFor'.
type Client struct {
	ec2    *ec2.Client
	region string
}

var ErrAWSConfig = fmt.Errorf("failed to load AWS configuration")

// New loads the default AWS configuration chain and constructs a Client.
//
// 'profile' optionally overrides the shared-credentials profile, for operators
// who keep an admin profile separate from their default.
func New(ctx context.Context, region, profile string) (*Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAWSConfig, err)
	}
	return &Client{
		ec2:    ec2.NewFromConfig(cfg),
		region: region,
	}, nil
}

func (c *Client) Region() string {
	return c.region
}
