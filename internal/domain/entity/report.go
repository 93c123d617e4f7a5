package entity

import (
	"time"

	"github.com/garyjia/fieldwork-reports/internal/domain/workflow"
)

// Report is the aggregate root for one order's work report
type Report struct {
	ID            int64          `json:"id"`
	OrderRef      string         `json:"order_ref"`
	ExecutionDate *Date          `json:"execution_date,omitempty"`
	ElevatedRate  bool           `json:"elevated_rate"`
	Team          Team           `json:"team"`
	PartA         PartA          `json:"part_a"`
	PartB         PartB          `json:"part_b"`
	Calculations  Calculations   `json:"calculations"`
	State         workflow.State `json:"state"`
	Version       int64          `json:"version"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// NewDraftReport creates an unsaved draft from its order
func NewDraftReport(order *Order) *Report {
	r := &Report{
		OrderRef:     order.OrderRef,
		ElevatedRate: order.ElevatedRate,
		Team:         make(Team, len(order.Team)),
		Calculations: make(Calculations),
		State:        workflow.StateDraft,
		Version:      1,
	}
	if order.ExecutionDate != nil {
		d := *order.ExecutionDate
		r.ExecutionDate = &d
	}
	for id, m := range order.Team {
		r.Team[id] = m
	}
	return r
}

// CalculationDate returns the date used to resolve the tariff: the
// execution date, else the earliest dated segment.
func (r *Report) CalculationDate() (Date, bool) {
	if r.ExecutionDate != nil && !r.ExecutionDate.IsZero() {
		return *r.ExecutionDate, true
	}
	return r.PartA.EarliestSegmentDate()
}

// CheckEditableBy returns nil when member may change report data now
func (r *Report) CheckEditableBy(member MemberID) error {
	leader, ok := r.Team.Leader()
	if !ok || leader.ID != member {
		return ErrForbidden
	}
	if !r.State.IsEditable() {
		return ErrNotEditable
	}
	return nil
}

// Snapshot captures the report content for a submission task
func (r *Report) Snapshot() ReportSnapshot {
	return ReportSnapshot{
		OrderRef:      r.OrderRef,
		ExecutionDate: r.ExecutionDate,
		ElevatedRate:  r.ElevatedRate,
		Team:          r.Team,
		PartA:         r.PartA,
		PartB:         r.PartB,
		Calculations:  r.Calculations,
		Version:       r.Version,
	}
}
