package attacher_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/cacherotate/internal/attacher"
	"github.com/systmms/cacherotate/internal/cluster"
	"github.com/systmms/cacherotate/internal/fakes"
	"github.com/systmms/cacherotate/internal/secretstore"
)

func newAttacher(sm *fakes.FakeSecretsManager, ec *fakes.FakeElastiCache) *attacher.Attacher {
	return attacher.New(
		secretstore.NewFromClient(sm),
		cluster.NewFromClient(ec, cluster.PollPolicy{Interval: time.Millisecond}, zerolog.Nop()),
		zerolog.Nop(),
	)
}

func TestAttachRejectsWrongTargetType(t *testing.T) {
	t.Parallel()

	sm := fakes.NewFakeSecretsManager()
	sm.Errors["GetSecretValue"] = assert.AnError
	ec := fakes.NewFakeElastiCache()
	ec.Errors["DescribeReplicationGroups"] = assert.AnError

	err := newAttacher(sm, ec).Attach(context.Background(), "my-secret", "group-1", "AWS::RDS::DBInstance")

	// Rejected before either client is touched: the poisoned fakes never
	// got the chance to fail.
	var typeErr attacher.TypeError
	require.ErrorAs(t, err, &typeErr)
	assert.ErrorContains(t, err, attacher.ResourceType)
}

func TestAttachMergesClusterMetadata(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sm := fakes.NewFakeSecretsManager()
	sm.AddSecret("my-secret", "v1", `{"password":"seed","note":"pre-existing"}`)

	ec := fakes.NewFakeElastiCache()
	ec.AddGroup("group-1", &fakes.FakeReplicationGroup{
		Endpoints:         []string{"cache-1.example.com:6379", "cache-2.example.com:6379"},
		TransitEncryption: true,
	})

	require.NoError(t, newAttacher(sm, ec).Attach(ctx, "my-secret", "group-1", attacher.ResourceType))

	current := sm.Version("my-secret", sm.Holder("my-secret", "AWSCURRENT"))
	require.NotNil(t, current)

	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(current.SecretString), &out))
	assert.JSONEq(t, `{"id":"group-1"}`, string(out["_metadata"]))
	assert.JSONEq(t, `["cache-1.example.com:6379","cache-2.example.com:6379"]`, string(out["endpoints"]))
	assert.JSONEq(t, `true`, string(out["ssl"]))
	assert.JSONEq(t, `"seed"`, string(out["password"]))
	assert.JSONEq(t, `"pre-existing"`, string(out["note"]))
}

func TestAttachMissingSecret(t *testing.T) {
	t.Parallel()

	sm := fakes.NewFakeSecretsManager()
	ec := fakes.NewFakeElastiCache()

	err := newAttacher(sm, ec).Attach(context.Background(), "missing", "group-1", attacher.ResourceType)
	assert.True(t, secretstore.IsNotFound(err))
}

func TestAttachMissingGroup(t *testing.T) {
	t.Parallel()

	sm := fakes.NewFakeSecretsManager()
	sm.AddSecret("my-secret", "v1", `{"password":"seed"}`)
	ec := fakes.NewFakeElastiCache()

	err := newAttacher(sm, ec).Attach(context.Background(), "my-secret", "group-1", attacher.ResourceType)

	var notFoundErr cluster.NotFoundError
	assert.ErrorAs(t, err, &notFoundErr)
	// The secret is left untouched.
	assert.Equal(t, "v1", sm.Holder("my-secret", "AWSCURRENT"))
}

func TestAttachIsRepeatable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sm := fakes.NewFakeSecretsManager()
	sm.AddSecret("my-secret", "v1", `{"password":"seed"}`)
	ec := fakes.NewFakeElastiCache()
	ec.AddGroup("group-1", &fakes.FakeReplicationGroup{
		Endpoints: []string{"cache-1.example.com:6379"},
	})

	att := newAttacher(sm, ec)
	require.NoError(t, att.Attach(ctx, "my-secret", "group-1", attacher.ResourceType))
	require.NoError(t, att.Attach(ctx, "my-secret", "group-1", attacher.ResourceType))

	current := sm.Version("my-secret", sm.Holder("my-secret", "AWSCURRENT"))
	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(current.SecretString), &out))
	assert.JSONEq(t, `{"id":"group-1"}`, string(out["_metadata"]))
	assert.JSONEq(t, `"seed"`, string(out["password"]))
}