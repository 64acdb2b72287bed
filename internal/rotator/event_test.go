package rotator_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/cacherotate/internal/rotator"
)

func TestEventDecoding(t *testing.T) {
	t.Parallel()

	payload := `{
		"SecretId": "arn:aws:secretsmanager:us-east-1:111122223333:secret:redis-abc",
		"ClientRequestToken": "3c0285c8-cb91-4c9b-9bf2-8a869ac64a96",
		"Step": "setSecret"
	}`

	var event rotator.Event
	require.NoError(t, json.Unmarshal([]byte(payload), &event))

	assert.Equal(t, "arn:aws:secretsmanager:us-east-1:111122223333:secret:redis-abc", event.SecretID)
	assert.Equal(t, "3c0285c8-cb91-4c9b-9bf2-8a869ac64a96", event.ClientRequestToken)
	assert.Equal(t, rotator.StepSet, event.Step)
}

func TestStepRejectsUnknownValues(t *testing.T) {
	t.Parallel()

	var event rotator.Event
	err := json.Unmarshal([]byte(`{"SecretId":"s","ClientRequestToken":"t","Step":"deleteSecret"}`), &event)
	assert.ErrorContains(t, err, "unknown rotation step")
}

func TestStepRoundTrip(t *testing.T) {
	t.Parallel()

	for _, step := range []rotator.Step{rotator.StepCreate, rotator.StepSet, rotator.StepTest, rotator.StepFinish} {
		text, err := step.MarshalText()
		require.NoError(t, err)

		var decoded rotator.Step
		require.NoError(t, decoded.UnmarshalText(text))
		assert.Equal(t, step, decoded)
	}
}
