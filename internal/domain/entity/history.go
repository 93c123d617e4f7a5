package entity

import (
	"encoding/json"
	"time"
)

// HistoryEntry is one append-only record in a report's audit trail
type HistoryEntry struct {
	ID        int64           `json:"id"`
	ReportID  int64           `json:"report_id"`
	Actor     string          `json:"actor"`
	Action    string          `json:"action"`
	State     string          `json:"state"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewHistoryEntry marshals payload into a history entry stamped now
func NewHistoryEntry(reportID int64, actor, action, state string, payload interface{}) (*HistoryEntry, error) {
	raw, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}
	return &HistoryEntry{
		ReportID:  reportID,
		Actor:     actor,
		Action:    action,
		State:     state,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func marshalPayload(payload interface{}) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return json.RawMessage(`{}`), nil
	case json.RawMessage:
		if len(p) == 0 {
			return json.RawMessage(`{}`), nil
		}
		return p, nil
	default:
		return json.Marshal(p)
	}
}
