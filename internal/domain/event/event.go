package event

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a domain event raised by a report
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	ReportID      int64                  `json:"report_id"`
	OrderRef      string                 `json:"order_ref"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates a domain event with a fresh ID and correlation chain
func NewEvent(eventType Type, reportID int64, orderRef string, payload map[string]interface{}) *Event {
	return NewEventWithCorrelation(eventType, reportID, orderRef, payload, uuid.NewString())
}

// NewEventWithCorrelation creates an event linked to an existing correlation chain
func NewEventWithCorrelation(eventType Type, reportID int64, orderRef string, payload map[string]interface{}, correlationID string) *Event {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		ReportID:      reportID,
		OrderRef:      orderRef,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: correlationID,
	}
}

// WithPayload returns a copy of the event with key set in its payload
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	cp := *e
	cp.Payload = newPayload
	return &cp
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}

// GetPayload retrieves a raw payload value
func (e *Event) GetPayload(key string) (interface{}, bool) {
	v, ok := e.Payload[key]
	return v, ok
}
