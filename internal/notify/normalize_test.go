package notify

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/finpal/internal/model"
)

func TestNormalizeSnakeAndCamelCaseAgree(t *testing.T) {
	snake := []byte(`{
		"id": "n1", "agent_id": "luna", "type": "achievement",
		"title": "Goal!", "message": "Emergency fund complete",
		"timestamp": "2024-01-01T00:00:00Z", "is_read": false,
		"priority": "low", "action_required": true
	}`)
	camel := []byte(`{
		"id": "n1", "agentId": "luna", "type": "achievement",
		"title": "Goal!", "message": "Emergency fund complete",
		"timestamp": "2024-01-01T00:00:00Z", "isRead": false,
		"priority": "low", "actionRequired": true
	}`)

	a, err := Normalize(snake)
	require.NoError(t, err)
	b, err := Normalize(camel)
	require.NoError(t, err)

	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("snake/camel mismatch (-snake +camel):\n%s", diff)
	}

	want := model.Notification{
		ID:             "n1",
		AgentID:        model.AgentLuna,
		Type:           model.TypeAchievement,
		Title:          "Goal!",
		Message:        "Emergency fund complete",
		Timestamp:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Priority:       model.PriorityLow,
		ActionRequired: true,
	}
	if diff := cmp.Diff(want, a); diff != "" {
		t.Fatalf("unexpected notification (-want +got):\n%s", diff)
	}
}

func TestNormalizeBooleansAreOred(t *testing.T) {
	n, err := Normalize([]byte(`{
		"id": "n2", "agentId": "sofia", "timestamp": "2024-01-01T00:00:00Z",
		"is_read": false, "isRead": true,
		"action_required": false, "actionRequired": true
	}`))
	require.NoError(t, err)
	assert.True(t, n.IsRead)
	assert.True(t, n.ActionRequired)
}

func TestNormalizeDefaults(t *testing.T) {
	n, err := Normalize([]byte(`{"id":"n3","agent_id":"marcus","timestamp":"2024-03-05T10:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, model.TypeProactive, n.Type)
	assert.Equal(t, model.PriorityMedium, n.Priority)
	assert.False(t, n.IsRead)
	assert.False(t, n.ActionRequired)
}

func TestNormalizeTimestampFormats(t *testing.T) {
	tests := []struct {
		name string
		ts   string
		want time.Time
	}{
		{"rfc3339", `"2024-05-01T12:30:00Z"`, time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)},
		{"offset", `"2024-05-01T14:30:00+02:00"`, time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)},
		{"zoneless with micros", `"2024-05-01T12:30:00.123456"`, time.Date(2024, 5, 1, 12, 30, 0, 123456000, time.UTC)},
		{"epoch millis", `1714566600000`, time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := Normalize([]byte(`{"id":"x","agent_id":"luna","timestamp":` + tt.ts + `}`))
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(n.Timestamp), "got %s", n.Timestamp)
		})
	}
}

func TestNormalizeRejectsInvalidPayloads(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{"missing id", `{"agent_id":"luna","timestamp":"2024-01-01T00:00:00Z"}`, "id"},
		{"null id", `{"id":null,"agent_id":"luna","timestamp":"2024-01-01T00:00:00Z"}`, "id"},
		{"missing agent", `{"id":"a","timestamp":"2024-01-01T00:00:00Z"}`, "agentId"},
		{"missing timestamp", `{"id":"a","agent_id":"luna"}`, "timestamp"},
		{"null timestamp", `{"id":"a","agent_id":"luna","timestamp":null}`, "timestamp"},
		{"bad timestamp", `{"id":"a","agent_id":"luna","timestamp":"yesterday"}`, "timestamp"},
		{"unknown agent", `{"id":"a","agent_id":"oscar","timestamp":"2024-01-01T00:00:00Z"}`, "agentId"},
		{"unknown type", `{"id":"a","agent_id":"luna","type":"spam","timestamp":"2024-01-01T00:00:00Z"}`, "type"},
		{"unknown priority", `{"id":"a","agent_id":"luna","priority":"urgent","timestamp":"2024-01-01T00:00:00Z"}`, "priority"},
		{"not an object", `["a"]`, ""},
		{"not json", `pong`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize([]byte(tt.raw))
			require.Error(t, err)
			require.True(t, IsInvalidPayload(err), "want InvalidPayloadError, got %v", err)

			var invalid *InvalidPayloadError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.field, invalid.Field)
		})
	}
}
