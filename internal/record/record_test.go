package record_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/cacherotate/internal/record"
)

const fullRecord = `{
	"_metadata": {"id": "group-1"},
	"endpoints": ["cache-1.example.com:6379", "cache-2.example.com:6379"],
	"ssl": true,
	"password": "old-token",
	"engine": "redis",
	"owner": {"team": "platform"}
}`

func TestParseFullRecord(t *testing.T) {
	t.Parallel()

	rec, err := record.Parse([]byte(fullRecord))
	require.NoError(t, err)

	assert.Equal(t, "group-1", rec.Metadata.ID)
	assert.Equal(t, []string{"cache-1.example.com:6379", "cache-2.example.com:6379"}, rec.Endpoints)
	assert.True(t, rec.SSL)
	assert.Equal(t, "old-token", rec.Password)
	assert.NoError(t, rec.Validate())
}

func TestParseRejectsInvalidJSON(t *testing.T) {
	t.Parallel()

	_, err := record.Parse([]byte("not json"))
	var parseErr record.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestValidateMissingFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value string
		field string
	}{
		{
			name:  "missing_metadata",
			value: `{"endpoints":["h:6379"],"ssl":false,"password":"x"}`,
			field: "_metadata",
		},
		{
			name:  "missing_endpoints",
			value: `{"_metadata":{"id":"g"},"ssl":false,"password":"x"}`,
			field: "endpoints",
		},
		{
			name:  "missing_ssl",
			value: `{"_metadata":{"id":"g"},"endpoints":["h:6379"],"password":"x"}`,
			field: "ssl",
		},
		{
			name:  "missing_password",
			value: `{"_metadata":{"id":"g"},"endpoints":["h:6379"],"ssl":true}`,
			field: "password",
		},
		{
			name:  "empty_group_id",
			value: `{"_metadata":{},"endpoints":["h:6379"],"ssl":true,"password":"x"}`,
			field: "_metadata.id",
		},
		{
			name:  "empty_endpoint_list",
			value: `{"_metadata":{"id":"g"},"endpoints":[],"ssl":true,"password":"x"}`,
			field: "endpoints",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec, err := record.Parse([]byte(tt.value))
			require.NoError(t, err)

			var fieldErr record.FieldError
			require.ErrorAs(t, rec.Validate(), &fieldErr)
			assert.Equal(t, tt.field, fieldErr.Field)
		})
	}
}

func TestRoundTripPreservesUnknownKeys(t *testing.T) {
	t.Parallel()

	rec, err := record.Parse([]byte(fullRecord))
	require.NoError(t, err)
	rec.SetPassword("new-token")

	data, err := rec.Marshal()
	require.NoError(t, err)

	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &out))
	assert.JSONEq(t, `"redis"`, string(out["engine"]))
	assert.JSONEq(t, `{"team": "platform"}`, string(out["owner"]))
	assert.JSONEq(t, `"new-token"`, string(out["password"]))
	assert.JSONEq(t, `{"id": "group-1"}`, string(out["_metadata"]))
}

func TestMarshalDoesNotInventKeys(t *testing.T) {
	t.Parallel()

	// A pre-attachment secret may hold nothing but a generated password.
	rec, err := record.Parse([]byte(`{"password":"seed"}`))
	require.NoError(t, err)

	data, err := rec.Marshal()
	require.NoError(t, err)

	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Len(t, out, 1)
	assert.Contains(t, out, "password")
}

func TestSetTarget(t *testing.T) {
	t.Parallel()

	rec, err := record.Parse([]byte(`{"password":"seed","note":"keep me"}`))
	require.NoError(t, err)

	rec.SetTarget("group-9", []string{"h1:6379"}, true)
	require.NoError(t, rec.Validate())

	data, err := rec.Marshal()
	require.NoError(t, err)

	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &out))
	assert.JSONEq(t, `{"id":"group-9"}`, string(out["_metadata"]))
	assert.JSONEq(t, `["h1:6379"]`, string(out["endpoints"]))
	assert.JSONEq(t, `true`, string(out["ssl"]))
	assert.JSONEq(t, `"seed"`, string(out["password"]))
	assert.JSONEq(t, `"keep me"`, string(out["note"]))
}

func TestCloneIsIndependent(t *testing.T) {
	t.Parallel()

	rec, err := record.Parse([]byte(fullRecord))
	require.NoError(t, err)

	dup := rec.Clone()
	dup.SetPassword("fresh")
	dup.Endpoints[0] = "other:1"

	assert.Equal(t, "old-token", rec.Password)
	assert.Equal(t, "cache-1.example.com:6379", rec.Endpoints[0])
	assert.Equal(t, "fresh", dup.Password)
	assert.NoError(t, dup.Validate())
}
