package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestType_String(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      string
	}{
		{"report created", TypeReportCreated, "report.created"},
		{"report updated", TypeReportUpdated, "report.updated"},
		{"report sent", TypeReportSent, "report.sent"},
		{"status changed", TypeReportStatusChanged, "report.status_changed"},
		{"submission succeeded", TypeSubmissionSucceeded, "submission.succeeded"},
		{"submission failed", TypeSubmissionFailed, "submission.failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.String(); got != tt.want {
				t.Errorf("Type.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestType_IsValid(t *testing.T) {
	assert.True(t, TypeReportSent.IsValid())
	assert.False(t, Type("instance.created").IsValid())
	assert.False(t, Type("").IsValid())
}

func TestNewEvent(t *testing.T) {
	evt := NewEvent(TypeReportSent, 42, "ORD-1", map[string]interface{}{"trigger": "SEND"})

	require.NotNil(t, evt)
	assert.NotEmpty(t, evt.ID)
	assert.NotEmpty(t, evt.CorrelationID)
	assert.Equal(t, TypeReportSent, evt.Type)
	assert.Equal(t, int64(42), evt.ReportID)
	assert.Equal(t, "ORD-1", evt.OrderRef)
	assert.Equal(t, "SEND", evt.GetPayloadString("trigger"))
	assert.False(t, evt.Timestamp.IsZero())
}

func TestNewEvent_NilPayload(t *testing.T) {
	evt := NewEvent(TypeReportCreated, 1, "ORD-1", nil)
	require.NotNil(t, evt.Payload)
	assert.Empty(t, evt.Payload)
}

func TestNewEvent_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		evt := NewEvent(TypeReportCreated, int64(i), "", nil)
		require.False(t, seen[evt.ID], "duplicate event id %s", evt.ID)
		seen[evt.ID] = true
	}
}

func TestNewEventWithCorrelation(t *testing.T) {
	parent := NewEvent(TypeReportSent, 7, "ORD-7", nil)
	child := NewEventWithCorrelation(TypeSubmissionFailed, 7, "ORD-7", nil, parent.CorrelationID)

	assert.Equal(t, parent.CorrelationID, child.CorrelationID)
	assert.NotEqual(t, parent.ID, child.ID)
}

func TestWithPayload_DoesNotMutateOriginal(t *testing.T) {
	original := NewEvent(TypeReportSent, 1, "ORD-1", map[string]interface{}{"a": "1"})
	updated := original.WithPayload("b", "2")

	assert.Equal(t, "", original.GetPayloadString("b"))
	assert.Equal(t, "1", updated.GetPayloadString("a"))
	assert.Equal(t, "2", updated.GetPayloadString("b"))
	assert.Equal(t, original.ID, updated.ID)
}

func TestGetPayloadInt(t *testing.T) {
	evt := NewEvent(TypeReportSent, 1, "", map[string]interface{}{
		"int":     3,
		"int64":   int64(4),
		"float64": float64(5),
		"string":  "6",
	})

	assert.Equal(t, int64(3), evt.GetPayloadInt("int"))
	assert.Equal(t, int64(4), evt.GetPayloadInt("int64"))
	assert.Equal(t, int64(5), evt.GetPayloadInt("float64"))
	assert.Equal(t, int64(0), evt.GetPayloadInt("string"))
	assert.Equal(t, int64(0), evt.GetPayloadInt("missing"))
}
