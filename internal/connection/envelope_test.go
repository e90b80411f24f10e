package connection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope_TypeIsAuthoritative(t *testing.T) {
	env, err := NewEnvelope("subscribe", map[string]any{"type": "other", "topic": "agents"})
	require.NoError(t, err)

	data, err := env.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"subscribe","topic":"agents"}`, string(data))
}

func TestNewEnvelope_NoData(t *testing.T) {
	env, err := NewEnvelope("ping", nil)
	require.NoError(t, err)

	data, err := env.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ping"}`, string(data))
}

func TestParseEnvelope(t *testing.T) {
	frame := []byte(`{"type":"agent_status_change","agentId":"a1","status":"idle","meta":{"x":1}}`)

	env, err := ParseEnvelope(frame)
	require.NoError(t, err)
	assert.Equal(t, "agent_status_change", env.Type)
	assert.NotContains(t, env.Fields, "type")
	assert.Equal(t, frame, env.Raw)

	var status string
	ok, err := env.Field("status", &status)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "idle", status)

	ok, err = env.Field("missing", &status)
	assert.NoError(t, err)
	assert.False(t, ok)

	var whole struct {
		Type    string `json:"type"`
		AgentID string `json:"agentId"`
	}
	require.NoError(t, env.Decode(&whole))
	assert.Equal(t, "agent_status_change", whole.Type)
	assert.Equal(t, "a1", whole.AgentID)
}

func TestParseEnvelope_Rejects(t *testing.T) {
	for _, frame := range []string{
		``,
		`not json`,
		`[1,2]`,
		`"type"`,
		`{"type":`,
		`{"agentId":"a1"}`,
		`{"type":7}`,
		`{"type":""}`,
	} {
		_, err := ParseEnvelope([]byte(frame))
		assert.Error(t, err, "frame %q", frame)
	}
}

func TestEnvelope_DecodeLocal(t *testing.T) {
	env, err := NewEnvelope("ack", map[string]any{"id": 3})
	require.NoError(t, err)

	var v struct {
		Type string `json:"type"`
		ID   int    `json:"id"`
	}
	require.NoError(t, env.Decode(&v))
	assert.Equal(t, "ack", v.Type)
	assert.Equal(t, 3, v.ID)
}
