package fakes

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/elasticache"
	"github.com/aws/aws-sdk-go-v2/service/elasticache/types"
)

// FakeReplicationGroup is the in-memory state of one replication group.
type FakeReplicationGroup struct {
	Endpoints         []string
	TransitEncryption bool

	// AuthToken is the token last applied through ModifyReplicationGroup.
	AuthToken string

	// PendingDescribes is how many DescribeReplicationGroups calls report
	// the auth token modification as still pending after a modify.
	PendingDescribes int

	pending int
}

// ModifyCall records one ModifyReplicationGroup invocation.
type ModifyCall struct {
	GroupID          string
	Token            string
	Strategy         types.AuthTokenUpdateStrategyType
	ApplyImmediately bool
}

// FakeElastiCache implements the cluster.API interface in memory.
type FakeElastiCache struct {
	mu     sync.Mutex
	Groups map[string]*FakeReplicationGroup

	// Errors maps an operation name to an error returned unconditionally.
	Errors map[string]error

	// ModifyCalls records every ModifyReplicationGroup invocation.
	ModifyCalls []ModifyCall

	// OnModify, when set, runs after a successful modify, e.g. to mark the
	// new token live in a FakePinger.
	OnModify func(groupID, authToken string)
}

// NewFakeElastiCache creates an empty fake.
func NewFakeElastiCache() *FakeElastiCache {
	return &FakeElastiCache{
		Groups: make(map[string]*FakeReplicationGroup),
		Errors: make(map[string]error),
	}
}

// AddGroup registers a replication group.
func (f *FakeElastiCache) AddGroup(id string, group *FakeReplicationGroup) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Groups[id] = group
}

// DescribeReplicationGroups implements cluster.API.
func (f *FakeElastiCache) DescribeReplicationGroups(_ context.Context, params *elasticache.DescribeReplicationGroupsInput, _ ...func(*elasticache.Options)) (*elasticache.DescribeReplicationGroupsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors["DescribeReplicationGroups"]; err != nil {
		return nil, err
	}

	id := aws.ToString(params.ReplicationGroupId)
	group := f.Groups[id]
	if group == nil {
		return &elasticache.DescribeReplicationGroupsOutput{}, nil
	}

	out := f.render(id, group)
	if group.pending > 0 {
		group.pending--
	}
	return &elasticache.DescribeReplicationGroupsOutput{
		ReplicationGroups: []types.ReplicationGroup{*out},
	}, nil
}

// ModifyReplicationGroup implements cluster.API.
func (f *FakeElastiCache) ModifyReplicationGroup(_ context.Context, params *elasticache.ModifyReplicationGroupInput, _ ...func(*elasticache.Options)) (*elasticache.ModifyReplicationGroupOutput, error) {
	f.mu.Lock()
	if err := f.Errors["ModifyReplicationGroup"]; err != nil {
		f.mu.Unlock()
		return nil, err
	}

	id := aws.ToString(params.ReplicationGroupId)
	group := f.Groups[id]
	if group == nil {
		f.mu.Unlock()
		return nil, fmt.Errorf("replication group %s not found", id)
	}

	group.AuthToken = aws.ToString(params.AuthToken)
	group.pending = group.PendingDescribes
	f.ModifyCalls = append(f.ModifyCalls, ModifyCall{
		GroupID:          id,
		Token:            group.AuthToken,
		Strategy:         params.AuthTokenUpdateStrategy,
		ApplyImmediately: aws.ToBool(params.ApplyImmediately),
	})
	out := f.render(id, group)
	onModify := f.OnModify
	token := group.AuthToken
	f.mu.Unlock()

	if onModify != nil {
		onModify(id, token)
	}
	return &elasticache.ModifyReplicationGroupOutput{ReplicationGroup: out}, nil
}

// render builds the SDK shape for a group, reporting the auth token as
// pending while the countdown runs.
func (f *FakeElastiCache) render(id string, group *FakeReplicationGroup) *types.ReplicationGroup {
	out := &types.ReplicationGroup{
		ReplicationGroupId:       aws.String(id),
		TransitEncryptionEnabled: aws.Bool(group.TransitEncryption),
	}
	for _, endpoint := range group.Endpoints {
		host, portStr, err := net.SplitHostPort(endpoint)
		if err != nil {
			continue
		}
		port, _ := strconv.Atoi(portStr)
		out.NodeGroups = append(out.NodeGroups, types.NodeGroup{
			PrimaryEndpoint: &types.Endpoint{
				Address: aws.String(host),
				Port:    aws.Int32(int32(port)),
			},
		})
	}
	if group.pending > 0 {
		out.PendingModifiedValues = &types.ReplicationGroupPendingModifiedValues{
			AuthTokenStatus: types.AuthTokenUpdateStatusRotating,
		}
	}
	return out
}
