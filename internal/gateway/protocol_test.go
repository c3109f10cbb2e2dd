package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest(t *testing.T) {
	frame, err := NewRequest("req-2", "logs.list", map[string]int{"limit": 5})
	require.NoError(t, err)

	assert.Equal(t, FrameTypeRequest, frame.Type)
	assert.Equal(t, "req-2", frame.ID)
	assert.Equal(t, "logs.list", frame.Method)
	assert.JSONEq(t, `{"limit":5}`, string(frame.Params))
}

func TestNewResponse(t *testing.T) {
	frame, err := NewResponse("req-1", map[string]string{"status": "ok"})
	require.NoError(t, err)

	assert.Equal(t, FrameTypeResponse, frame.Type)
	require.NotNil(t, frame.OK)
	assert.True(t, *frame.OK)
	assert.Nil(t, frame.Error)
	assert.JSONEq(t, `{"status":"ok"}`, string(frame.Payload))
}

func TestNewErrorResponse(t *testing.T) {
	frame := NewErrorResponse("req-1", ErrorShape{Code: "unauthorized", Message: "token_mismatch"})

	data, err := json.Marshal(frame)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"type":"res","id":"req-1","ok":false,"error":{"code":"unauthorized","message":"token_mismatch"}}`,
		string(data))
}

func TestNewEvent(t *testing.T) {
	frame, err := NewEvent(EventOutcomeAppended, OutcomeEvent{Entry: "[2026-01-01 00:00:00] x"}, 7)
	require.NoError(t, err)

	data, err := json.Marshal(frame)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"type":"event","event":"outcome.appended","seq":7,"payload":{"entry":"[2026-01-01 00:00:00] x"}}`,
		string(data))
}

func TestInboundRequest_Decode(t *testing.T) {
	var req InboundRequest
	require.NoError(t, json.Unmarshal([]byte(
		`{"sender":"+1555","fragments":["a","b"],"body":"c","receivedAt":"2026-02-03T04:05:06Z"}`), &req))

	require.NotNil(t, req.ReceivedAt)
	assert.Equal(t, 2026, req.ReceivedAt.Year())

	frags := req.toFragments()
	require.Len(t, frags, 3)
	assert.Equal(t, "c", frags[2].Body)
	for _, f := range frags {
		assert.Equal(t, "+1555", f.Sender)
	}

	assert.Empty(t, InboundRequest{Sender: "x"}.toFragments())
}
