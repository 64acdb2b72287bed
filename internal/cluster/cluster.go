// Package cluster wraps the ElastiCache management API calls used for auth
// token rotation: describing a replication group's topology and applying a
// new auth token with the ROTATE update strategy.
package cluster

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/elasticache"
	"github.com/aws/aws-sdk-go-v2/service/elasticache/types"
	"github.com/rs/zerolog"
)

// DefaultPollInterval is how often the auth token status is re-checked while
// a modification is pending.
const DefaultPollInterval = 5 * time.Second

// API is the subset of the ElastiCache client used by this package, extracted
// so tests can substitute a fake.
type API interface {
	DescribeReplicationGroups(ctx context.Context, params *elasticache.DescribeReplicationGroupsInput, optFns ...func(*elasticache.Options)) (*elasticache.DescribeReplicationGroupsOutput, error)
	ModifyReplicationGroup(ctx context.Context, params *elasticache.ModifyReplicationGroupInput, optFns ...func(*elasticache.Options)) (*elasticache.ModifyReplicationGroupOutput, error)
}

// NotFoundError indicates the replication group does not exist or reported no
// node groups.
type NotFoundError struct {
	GroupID string
	Reason  string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("replication group %s: %s", e.GroupID, e.Reason)
}

// Info is the rotation-relevant slice of a replication group description.
type Info struct {
	// Endpoints lists each node group's primary endpoint as host:port.
	Endpoints []string
	// TransitEncryption reports whether the group requires TLS.
	TransitEncryption bool
}

// PollPolicy controls the wait loop after a token modification. The deadline
// is the caller's, via ctx.
type PollPolicy struct {
	Interval time.Duration
}

// Client issues management API calls against a replication group.
type Client struct {
	api    API
	poll   PollPolicy
	logger zerolog.Logger
}

// New builds a Client with a real ElastiCache client.
func New(ctx context.Context, region string, poll PollPolicy, logger zerolog.Logger) (*Client, error) {
	var configOpts []func(*config.LoadOptions) error
	if region != "" {
		configOpts = append(configOpts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewFromClient(elasticache.NewFromConfig(cfg), poll, logger), nil
}

// NewFromClient wraps an existing client, real or fake.
func NewFromClient(api API, poll PollPolicy, logger zerolog.Logger) *Client {
	if poll.Interval <= 0 {
		poll.Interval = DefaultPollInterval
	}
	return &Client{api: api, poll: poll, logger: logger}
}

// Describe returns the group's primary endpoints and transit encryption flag.
// A group with no node groups is reported as not found.
func (c *Client) Describe(ctx context.Context, groupID string) (Info, error) {
	group, err := c.describe(ctx, groupID)
	if err != nil {
		return Info{}, err
	}

	info := Info{
		TransitEncryption: aws.ToBool(group.TransitEncryptionEnabled),
	}
	for _, nodeGroup := range group.NodeGroups {
		endpoint := nodeGroup.PrimaryEndpoint
		if endpoint == nil || endpoint.Address == nil {
			continue
		}
		info.Endpoints = append(info.Endpoints, fmt.Sprintf("%s:%d", *endpoint.Address, aws.ToInt32(endpoint.Port)))
	}
	if len(info.Endpoints) == 0 {
		return Info{}, NotFoundError{GroupID: groupID, Reason: "no node groups with a primary endpoint"}
	}
	return info, nil
}

// RotateAuthToken applies the auth token to the group using the ROTATE update
// strategy, which keeps the previous token valid alongside the new one for a
// grace period, then blocks until the modification is no longer pending.
// Cancellation comes from ctx; re-invocation after a deadline must re-probe
// before calling this again.
func (c *Client) RotateAuthToken(ctx context.Context, groupID, authToken string) error {
	out, err := c.api.ModifyReplicationGroup(ctx, &elasticache.ModifyReplicationGroupInput{
		ReplicationGroupId:      aws.String(groupID),
		AuthToken:               aws.String(authToken),
		AuthTokenUpdateStrategy: types.AuthTokenUpdateStrategyTypeRotate,
		ApplyImmediately:        aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("modifying auth token of replication group %s: %w", groupID, err)
	}

	// Despite ApplyImmediately, the new token takes a moment to apply.
	group := out.ReplicationGroup
	for authTokenPending(group) {
		c.logger.Debug().Str("replication_group", groupID).Msg("auth token modification still pending")
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for auth token on replication group %s: %w", groupID, ctx.Err())
		case <-time.After(c.poll.Interval):
		}
		group, err = c.describe(ctx, groupID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) describe(ctx context.Context, groupID string) (*types.ReplicationGroup, error) {
	out, err := c.api.DescribeReplicationGroups(ctx, &elasticache.DescribeReplicationGroupsInput{
		ReplicationGroupId: aws.String(groupID),
	})
	if err != nil {
		return nil, fmt.Errorf("describing replication group %s: %w", groupID, err)
	}
	if len(out.ReplicationGroups) == 0 {
		return nil, NotFoundError{GroupID: groupID, Reason: "not found"}
	}
	return &out.ReplicationGroups[0], nil
}

func authTokenPending(group *types.ReplicationGroup) bool {
	if group == nil || group.PendingModifiedValues == nil {
		return false
	}
	return group.PendingModifiedValues.AuthTokenStatus != ""
}
