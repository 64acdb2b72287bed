package secretstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/cacherotate/internal/fakes"
	"github.com/systmms/cacherotate/internal/record"
	"github.com/systmms/cacherotate/internal/secretstore"
)

const currentValue = `{"_metadata":{"id":"group-1"},"endpoints":["h:6379"],"ssl":true,"password":"old"}`

func newStore(t *testing.T) (*secretstore.Store, *fakes.FakeSecretsManager) {
	t.Helper()
	sm := fakes.NewFakeSecretsManager()
	return secretstore.NewFromClient(sm), sm
}

func TestDescribe(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, sm := newStore(t)
	sm.AddSecret("my-secret", "v1", currentValue)
	sm.AddVersion("my-secret", "v2", currentValue, "AWSPENDING")

	desc, err := store.Describe(ctx, "my-secret")
	require.NoError(t, err)

	assert.True(t, desc.RotationEnabled)
	assert.True(t, desc.Stages.Has("v1", secretstore.StageCurrent))
	assert.True(t, desc.Stages.Has("v2", secretstore.StagePending))
	assert.Equal(t, "v1", desc.Stages.Holder(secretstore.StageCurrent))
}

func TestDescribeRotationDisabled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, sm := newStore(t)
	sm.AddSecret("my-secret", "v1", currentValue)
	sm.DisableRotation("my-secret")

	desc, err := store.Describe(ctx, "my-secret")
	require.NoError(t, err)
	assert.False(t, desc.RotationEnabled)
}

func TestDescribeNotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, _ := newStore(t)
	_, err := store.Describe(ctx, "missing")

	var notFoundErr secretstore.NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
	assert.Equal(t, "missing", notFoundErr.SecretID)
}

func TestGetRecordByStageAndToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, sm := newStore(t)
	sm.AddSecret("my-secret", "v1", currentValue)
	sm.AddVersion("my-secret", "v2", `{"password":"candidate"}`, "AWSPENDING")

	current, err := store.GetRecord(ctx, "my-secret", secretstore.StageCurrent, "")
	require.NoError(t, err)
	assert.Equal(t, "old", current.Password)

	pending, err := store.GetRecord(ctx, "my-secret", secretstore.StagePending, "v2")
	require.NoError(t, err)
	assert.Equal(t, "candidate", pending.Password)

	// A token pinned to the wrong stage is not found.
	_, err = store.GetRecord(ctx, "my-secret", secretstore.StagePending, "v1")
	assert.True(t, secretstore.IsNotFound(err))
}

func TestPutPendingRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, sm := newStore(t)
	sm.AddSecret("my-secret", "v1", currentValue)

	rec, err := record.Parse([]byte(currentValue))
	require.NoError(t, err)
	rec.SetPassword("candidate")

	require.NoError(t, store.PutPendingRecord(ctx, "my-secret", "v2", rec))

	version := sm.Version("my-secret", "v2")
	require.NotNil(t, version)
	assert.Equal(t, []string{"AWSPENDING"}, version.Stages)
	assert.Contains(t, version.SecretString, `"candidate"`)
	// AWSCURRENT is untouched.
	assert.Equal(t, "v1", sm.Holder("my-secret", "AWSCURRENT"))
}

func TestPromoteCurrent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, sm := newStore(t)
	sm.AddSecret("my-secret", "v1", currentValue)
	sm.AddVersion("my-secret", "v2", `{"password":"candidate"}`, "AWSPENDING")

	require.NoError(t, store.PromoteCurrent(ctx, "my-secret", "v2", "v1"))

	assert.Equal(t, "v2", sm.Holder("my-secret", "AWSCURRENT"))
	assert.Equal(t, "v1", sm.Holder("my-secret", "AWSPREVIOUS"))
}

func TestGenerateAuthToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, _ := newStore(t)

	token, err := store.GenerateAuthToken(ctx)
	require.NoError(t, err)
	assert.Len(t, token, 64)

	for _, forbidden := range "\"%'()*+,./:;=?@[\\]_`{|}~" {
		assert.NotContains(t, token, string(forbidden))
	}
}
