package cloud

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

const (
	tagKeyName      = "Name"
	tagKeyManagedBy = "ManagedBy"

	tagValueManagedBy = "openclaw-ec2-setup"
)

// tagSpecification produces the standard tag set applied to every resource we
// create: the operator-visible Name plus a ManagedBy marker so stray resources
// are attributable.
func tagSpecification(rt types.ResourceType, name string) []types.TagSpecification {
	return []types.TagSpecification{{
		ResourceType: rt,
		Tags: []types.Tag{
			{Key: aws.String(tagKeyName), Value: aws.String(name)},
			{Key: aws.String(tagKeyManagedBy), Value: aws.String(tagValueManagedBy)},
		},
	}}
}
