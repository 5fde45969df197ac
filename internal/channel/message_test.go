package channel

import (
	"encoding/json"
	"testing"

	"graphwatch/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	t.Run("agent update", func(t *testing.T) {
		msg, err := Decode([]byte(`{"type":"agent_update","payload":{"agentId":"a","status":"error","metrics":{"errorRate":0.2}}}`))
		require.NoError(t, err)
		m := msg.(AgentUpdate)
		assert.Equal(t, "a", m.AgentID)
		assert.Equal(t, domain.NodeStatusError, *m.Status)
		require.NotNil(t, m.Metrics.ErrorRate)
		assert.InDelta(t, 0.2, *m.Metrics.ErrorRate, 1e-9)
	})

	t.Run("incident wrapped and bare", func(t *testing.T) {
		inc := `{"id":"i1","severity":"high","status":"active","title":"db down","affectedNodes":["db"],"detectedAt":"2026-01-01T00:00:00Z"}`
		for _, frame := range []string{
			`{"type":"incident_created","payload":{"incident":` + inc + `}}`,
			`{"type":"incident_created","payload":` + inc + `}`,
		} {
			msg, err := Decode([]byte(frame))
			require.NoError(t, err, frame)
			m := msg.(IncidentChanged)
			assert.Equal(t, TypeIncidentCreated, m.MessageType())
			assert.Equal(t, "i1", m.Incident.ID)
			assert.Equal(t, domain.SeverityHigh, m.Incident.Severity)
		}
	})

	t.Run("task kinds", func(t *testing.T) {
		msg, err := Decode([]byte(`{"type":"task_completed","payload":{"agentId":"a","taskId":"t1"}}`))
		require.NoError(t, err)
		assert.Equal(t, TypeTaskCompleted, msg.MessageType())
		assert.Equal(t, "t1", msg.(TaskEvent).TaskID)
	})

	t.Run("pong uses envelope timestamp", func(t *testing.T) {
		msg, err := Decode([]byte(`{"type":"pong","timestamp":1700000000000}`))
		require.NoError(t, err)
		assert.Equal(t, int64(1700000000000), msg.(Pong).Timestamp)
	})

	errs := []struct {
		name  string
		frame string
		want  error
	}{
		{"not json", `{{`, ErrMalformedMessage},
		{"no type", `{"payload":{}}`, ErrMalformedMessage},
		{"unknown type", `{"type":"weather","payload":{}}`, ErrUnknownMessageType},
		{"no payload", `{"type":"agent_update"}`, ErrMalformedMessage},
		{"missing agent", `{"type":"metric_update","payload":{"metrics":{}}}`, ErrMalformedMessage},
		{"bad status", `{"type":"agent_update","payload":{"agentId":"a","status":"sleepy"}}`, ErrMalformedMessage},
		{"connection without address", `{"type":"connection_update","payload":{"sourceId":"a"}}`, ErrMalformedMessage},
		{"invalid incident", `{"type":"incident_updated","payload":{"incident":{"id":"i1","severity":"apocalyptic"}}}`, ErrMalformedMessage},
		{"resolved without id", `{"type":"incident_resolved","payload":{}}`, ErrMalformedMessage},
		{"payload wrong shape", `{"type":"task_assigned","payload":[1,2]}`, ErrMalformedMessage},
	}
	for _, tt := range errs {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.frame))
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, msg)
		})
	}
}

func TestOutboundFrames(t *testing.T) {
	data, err := json.Marshal(newAgentFrame(TypeSubscribeAgent, "a"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"subscribe_agent","payload":{"agentId":"a"}}`, string(data))

	data, err = json.Marshal(subscribeFrame{Type: TypeSubscribe, Topics: DefaultTopics})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"subscribe","topics":["agents","connections","incidents","tasks","metrics"]}`, string(data))
}
