package event

// Type identifies the type of domain event
type Type string

const (
	TypeReportCreated       Type = "report.created"
	TypeReportUpdated       Type = "report.updated"
	TypeReportSent          Type = "report.sent"
	TypeReportStatusChanged Type = "report.status_changed"
	TypeSubmissionSucceeded Type = "submission.succeeded"
	TypeSubmissionFailed    Type = "submission.failed"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeReportCreated,
		TypeReportUpdated,
		TypeReportSent,
		TypeReportStatusChanged,
		TypeSubmissionSucceeded,
		TypeSubmissionFailed:
		return true
	default:
		return false
	}
}
