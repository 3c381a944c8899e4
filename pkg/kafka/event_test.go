package kafka

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventEnvelope(t *testing.T) {
	evt, err := NewEvent("user.registered", "alice", "user", "auth-service", map[string]string{"username": "alice"})
	require.NoError(t, err)

	assert.NotEmpty(t, evt.EventID)
	assert.Equal(t, "user.registered", evt.EventType)
	assert.Equal(t, "alice", evt.AggregateID)
	assert.Equal(t, "user", evt.AggregateType)
	assert.Equal(t, 1, evt.Version)
	assert.Equal(t, "auth-service", evt.Source)
	assert.False(t, evt.Timestamp.IsZero())
}

func TestEventMarshalRoundTrip(t *testing.T) {
	evt, err := NewEvent("user.logged_in", "alice", "user", "auth-service", map[string]string{"username": "alice"})
	require.NoError(t, err)
	evt.WithCorrelationID("cid-1")

	data, err := evt.Marshal()
	require.NoError(t, err)

	var decoded Event
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, evt.EventID, decoded.EventID)
	assert.Equal(t, "cid-1", decoded.CorrelationID)

	var payload map[string]string
	require.NoError(t, decoded.UnmarshalData(&payload))
	assert.Equal(t, "alice", payload["username"])
}
