package ec2

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"muster/services/dispatch"
)

// API is the EC2 surface the inventory consumes.
type API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

// Inventory implements dispatch.Inventory over EC2 DescribeInstances:
// private-ip and tag filters map addresses and tag selectors to instance
// ids.
type Inventory struct {
	api API
}

// NewInventory wraps an existing EC2 API client.
func NewInventory(api API) (*Inventory, error) {
	if api == nil {
		return nil, errors.New("ec2 api is required")
	}
	return &Inventory{api: api}, nil
}

// NewInventoryFromEnv initialises an Inventory from the default AWS
// credential chain. MUSTER_AWS_REGION overrides the chain's region when
// set.
func NewInventoryFromEnv(ctx context.Context) (*Inventory, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region := strings.TrimSpace(os.Getenv("MUSTER_AWS_REGION")); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &Inventory{api: ec2.NewFromConfig(cfg)}, nil
}

// LookupByAddress maps a private IP address to the id of the running
// instance carrying it. ok=false when no running instance matches.
func (i *Inventory) LookupByAddress(ctx context.Context, address string) (string, bool, error) {
	if i == nil {
		return "", false, errors.New("nil inventory")
	}

	input := &ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("private-ip-address"), Values: []string{address}},
			{Name: aws.String("instance-state-name"), Values: []string{"running"}},
		},
	}

	for {
		out, err := i.api.DescribeInstances(ctx, input)
		if err != nil {
			return "", false, err
		}
		for _, res := range out.Reservations {
			for _, inst := range res.Instances {
				if aws.ToString(inst.PrivateIpAddress) == address {
					return aws.ToString(inst.InstanceId), true, nil
				}
			}
		}
		if out.NextToken == nil || *out.NextToken == "" {
			return "", false, nil
		}
		input.NextToken = out.NextToken
	}
}

// LookupByTag returns every instance carrying the tag pair, with its
// lifecycle state. The caller filters on lifecycle; instances in any state
// are reported.
func (i *Inventory) LookupByTag(ctx context.Context, key, value string) ([]dispatch.TagMatch, error) {
	if i == nil {
		return nil, errors.New("nil inventory")
	}

	input := &ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String(fmt.Sprintf("tag:%s", key)), Values: []string{value}},
		},
	}

	var matches []dispatch.TagMatch
	for {
		out, err := i.api.DescribeInstances(ctx, input)
		if err != nil {
			return nil, err
		}
		for _, res := range out.Reservations {
			for _, inst := range res.Instances {
				matches = append(matches, dispatch.TagMatch{
					CanonicalID:    aws.ToString(inst.InstanceId),
					Label:          instanceLabel(inst),
					LifecycleState: lifecycleState(inst),
				})
			}
		}
		if out.NextToken == nil || *out.NextToken == "" {
			return matches, nil
		}
		input.NextToken = out.NextToken
	}
}

func lifecycleState(inst ec2types.Instance) string {
	if inst.State == nil {
		return ""
	}
	return string(inst.State.Name)
}

func instanceLabel(inst ec2types.Instance) string {
	name := ""
	for _, tag := range inst.Tags {
		if aws.ToString(tag.Key) == "Name" {
			name = aws.ToString(tag.Value)
			break
		}
	}
	ip := aws.ToString(inst.PrivateIpAddress)
	switch {
	case name != "" && ip != "":
		return fmt.Sprintf("%s (%s)", name, ip)
	case name != "":
		return name
	case ip != "":
		return ip
	default:
		return aws.ToString(inst.InstanceId)
	}
}
