package cloud

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"
)

// canonicalOwnerID is Canonical's AWS account, publisher of the official
// Ubuntu AMIs.
const canonicalOwnerID = "099720109477"

// imageFamilies maps the config-level image family selector to the AMI name
// pattern published for that family. AMI IDs are region-specific so we always
// resolve by name pattern rather than pinning IDs.
var imageFamilies = map[string]string{
	"ubuntu-24.04": "ubuntu/images/hvm-ssd-gp3/ubuntu-noble-24.04-amd64-server-*",
	"ubuntu-22.04": "ubuntu/images/hvm-ssd/ubuntu-jammy-22.04-amd64-server-*",
}

var (
	ErrImageFamilyUnknown = fmt.Errorf("unknown machine image family")
	ErrImageSearch        = fmt.Errorf("failed to search for machine images")
	ErrImageNoneFound     = fmt.Errorf("found no machine images for family")
)

// ResolveImage returns the newest AMI ID for the given image family in the
// client's region.
func (c *Client) ResolveImage(ctx context.Context, family string) (string, error) {
	log := clog.FromContext(ctx)

	pattern, ok := imageFamilies[family]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrImageFamilyUnknown, family)
	}

	result, err := c.ec2.DescribeImages(ctx, &ec2.DescribeImagesInput{
		Owners: []string{canonicalOwnerID},
		Filters: []types.Filter{
			{Name: aws.String("name"), Values: []string{pattern}},
			{Name: aws.String("state"), Values: []string{"available"}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrImageSearch, err)
	}
	if len(result.Images) == 0 {
		return "", fmt.Errorf("%w: %q", ErrImageNoneFound, family)
	}

	// CreationDate is RFC3339, so lexicographic order is chronological order.
	newest := slices.MaxFunc(result.Images, func(a, b types.Image) int {
		return strings.Compare(aws.ToString(a.CreationDate), aws.ToString(b.CreationDate))
	})
	imageID := aws.ToString(newest.ImageId)
	log.Info("resolved machine image", "family", family, "image_id", imageID)
	return imageID, nil
}
