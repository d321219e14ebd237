package ssm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"muster/services/dispatch"
)

// DefaultDocument is the execution document used when a command names none.
const DefaultDocument = "AWS-RunShellScript"

const listPageSize = 50

// API is the SSM surface the channel consumes.
type API interface {
	DescribeInstanceInformation(ctx context.Context, params *ssm.DescribeInstanceInformationInput, optFns ...func(*ssm.Options)) (*ssm.DescribeInstanceInformationOutput, error)
	SendCommand(ctx context.Context, params *ssm.SendCommandInput, optFns ...func(*ssm.Options)) (*ssm.SendCommandOutput, error)
	GetCommandInvocation(ctx context.Context, params *ssm.GetCommandInvocationInput, optFns ...func(*ssm.Options)) (*ssm.GetCommandInvocationOutput, error)
}

// Channel implements dispatch.Channel over SSM: registration via
// DescribeInstanceInformation, batch submission via SendCommand, and
// per-target status via GetCommandInvocation. Safe for concurrent use.
type Channel struct {
	api      API
	document string
}

// NewChannel wraps an existing SSM API client. document is the default
// execution document for commands that name none.
func NewChannel(api API, document string) (*Channel, error) {
	if api == nil {
		return nil, errors.New("ssm api is required")
	}
	if document == "" {
		document = DefaultDocument
	}
	return &Channel{api: api, document: document}, nil
}

// NewChannelFromEnv initialises a Channel from the default AWS credential
// chain. MUSTER_AWS_REGION overrides the region; MUSTER_SSM_DOCUMENT
// overrides the default execution document.
func NewChannelFromEnv(ctx context.Context) (*Channel, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region := strings.TrimSpace(os.Getenv("MUSTER_AWS_REGION")); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return NewChannel(ssm.NewFromConfig(cfg), strings.TrimSpace(os.Getenv("MUSTER_SSM_DOCUMENT")))
}

// ListRegisteredTargets returns one page of instance ids currently
// registered with the SSM agent fleet.
func (c *Channel) ListRegisteredTargets(ctx context.Context, pageToken string) ([]string, string, error) {
	if c == nil {
		return nil, "", errors.New("nil channel")
	}

	input := &ssm.DescribeInstanceInformationInput{
		MaxResults: aws.Int32(listPageSize),
	}
	if pageToken != "" {
		input.NextToken = aws.String(pageToken)
	}

	out, err := c.api.DescribeInstanceInformation(ctx, input)
	if err != nil {
		return nil, "", err
	}

	ids := make([]string, 0, len(out.InstanceInformationList))
	for _, info := range out.InstanceInformationList {
		if id := aws.ToString(info.InstanceId); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, aws.ToString(out.NextToken), nil
}

// SubmitBatch sends cmd to the full target set in one SendCommand call and
// returns the command id correlating all invocations. Command parameters
// (including any secret payload) ride the document's parameter map; they
// are never folded into the command text here.
func (c *Channel) SubmitBatch(ctx context.Context, targetIDs []string, cmd dispatch.Command) (string, error) {
	if c == nil {
		return "", errors.New("nil channel")
	}

	document := cmd.Document
	if document == "" {
		document = c.document
	}

	params := make(map[string][]string, len(cmd.Params)+1)
	if cmd.Text != "" {
		params["commands"] = []string{cmd.Text}
	}
	for k, v := range cmd.Params {
		params[k] = []string{v}
	}

	input := &ssm.SendCommandInput{
		InstanceIds:  targetIDs,
		DocumentName: aws.String(document),
	}
	if len(params) > 0 {
		input.Parameters = params
	}
	if cmd.Comment != "" {
		input.Comment = aws.String(cmd.Comment)
	}

	out, err := c.api.SendCommand(ctx, input)
	if err != nil {
		return "", err
	}
	if out.Command == nil || aws.ToString(out.Command.CommandId) == "" {
		return "", errors.New("send command returned no command id")
	}
	return aws.ToString(out.Command.CommandId), nil
}

// InvocationStatus returns the raw SSM status of one target within a batch.
// Missing registrations surface as dispatch.ErrTargetNotRegistered.
func (c *Channel) InvocationStatus(ctx context.Context, batchID, targetID string) (dispatch.InvocationStatus, error) {
	if c == nil {
		return dispatch.InvocationStatus{}, errors.New("nil channel")
	}

	out, err := c.api.GetCommandInvocation(ctx, &ssm.GetCommandInvocationInput{
		CommandId:  aws.String(batchID),
		InstanceId: aws.String(targetID),
	})
	if err != nil {
		var notFound *ssmtypes.InvocationDoesNotExist
		var badInstance *ssmtypes.InvalidInstanceId
		if errors.As(err, &notFound) || errors.As(err, &badInstance) {
			return dispatch.InvocationStatus{}, fmt.Errorf("%w: %s", dispatch.ErrTargetNotRegistered, targetID)
		}
		return dispatch.InvocationStatus{}, err
	}

	detail := aws.ToString(out.StandardErrorContent)
	if detail == "" {
		detail = aws.ToString(out.StatusDetails)
	}
	return dispatch.InvocationStatus{
		Code:   string(out.Status),
		Detail: detail,
	}, nil
}
