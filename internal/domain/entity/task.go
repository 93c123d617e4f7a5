package entity

import "time"

// ReportSnapshot is the report content captured when it was sent
type ReportSnapshot struct {
	OrderRef      string       `json:"order_ref"`
	ExecutionDate *Date        `json:"execution_date,omitempty"`
	ElevatedRate  bool         `json:"elevated_rate"`
	Team          Team         `json:"team"`
	PartA         PartA        `json:"part_a"`
	PartB         PartB        `json:"part_b"`
	Calculations  Calculations `json:"calculations"`
	Version       int64        `json:"version"`
}

// SubmissionTask is the queued unit of work that transmits a report
type SubmissionTask struct {
	ID         string         `json:"id"`
	ReportID   int64          `json:"report_id"`
	Snapshot   ReportSnapshot `json:"snapshot"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
}
