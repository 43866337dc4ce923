package cloud

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"
)

// ReachabilityMode selects how the instance is reached after provisioning.
type ReachabilityMode string

const (
	// ReachabilityPublic opens SSH ingress from the caller's public address.
	ReachabilityPublic ReachabilityMode = "public"
	// ReachabilityPrivate opens no ingress at all; the instance is reached
	// over the Tailscale mesh only.
	ReachabilityPrivate ReachabilityMode = "private"
)

const sshPort = 22

// securityGroupName derives the group name from the naming stem and a stable
// hash of the reachability mode. Keying identity off the hash (rather than a
// mode suffix) keeps the name stable across invocations of the same mode and
// distinct across modes, so mode switches never orphan ambiguous duplicates.
func securityGroupName(stem string, mode ReachabilityMode) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(mode))
	return fmt.Sprintf("%s-%08x", stem, h.Sum32())
}

var (
	ErrSecurityGroupLookup = fmt.Errorf("failed to look up security group")
	ErrSecurityGroupCreate = fmt.Errorf("failed to create security group")
	ErrIngressAuthorize    = fmt.Errorf("failed to authorize SSH ingress")
)

// EnsureSecurityGroup finds or creates the security group for the given
// naming stem and reachability mode, returning its ID. In public mode the
// group allows SSH from the caller's current public address only; in private
// mode it has no ingress rules and the instance is reached over the mesh.
func (c *Client) EnsureSecurityGroup(ctx context.Context, stem string, mode ReachabilityMode) (string, error) {
	log := clog.FromContext(ctx)
	name := securityGroupName(stem, mode)

	existing, err := c.ec2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []types.Filter{
			{Name: aws.String("group-name"), Values: []string{name}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSecurityGroupLookup, err)
	}
	if len(existing.SecurityGroups) > 0 {
		id := aws.ToString(existing.SecurityGroups[0].GroupId)
		log.Debug("reusing security group", "name", name, "id", id)
		return id, nil
	}

	created, err := c.ec2.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:         aws.String(name),
		Description:       aws.String("openclaw remote dev box"),
		TagSpecifications: tagSpecification(types.ResourceTypeSecurityGroup, name),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSecurityGroupCreate, err)
	}
	id := aws.ToString(created.GroupId)
	log.Info("created security group", "name", name, "id", id)

	if mode == ReachabilityPublic {
		callerIP, err := publicAddr(ctx)
		if err != nil {
			return "", fmt.Errorf("getting local public IP: %w", err)
		}
		_, err = c.ec2.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
			GroupId:    aws.String(id),
			IpProtocol: aws.String("tcp"),
			FromPort:   aws.Int32(sshPort),
			ToPort:     aws.Int32(sshPort),
			CidrIp:     aws.String(callerIP + "/32"),
		})
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrIngressAuthorize, err)
		}
		log.Info("authorized SSH ingress", "from", callerIP)
	}

	return id, nil
}

// DeleteSecurityGroup removes the group for the given stem and mode. The
// group may legitimately still be referenced by another resource; callers
// treat failure here as tolerated.
func (c *Client) DeleteSecurityGroup(ctx context.Context, stem string, mode ReachabilityMode) error {
	log := clog.FromContext(ctx)
	name := securityGroupName(stem, mode)
	log.Info("deleting security group", "name", name)

	_, err := c.ec2.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{
		GroupName: aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("deleting security group %q: %w", name, err)
	}
	return nil
}

func publicAddr(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.ipify.org", nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("looking up public IP: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("looking up public IP: HTTP %d", res.StatusCode)
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("reading public IP response: %w", err)
	}
	return string(data), nil
}
