package submission

import (
	"fmt"
	"strings"

	"github.com/garyjia/fieldwork-reports/internal/application/port"
	"github.com/garyjia/fieldwork-reports/internal/domain/compensation"
	"github.com/garyjia/fieldwork-reports/internal/domain/entity"
)

// Form widget ids expected by the approval definition
const (
	FieldOrderRef      = "order_ref"
	FieldEnvironment   = "environment"
	FieldExecutionDate = "execution_date"
	FieldTotal         = "total_amount"
	FieldPayouts       = "payouts"
	FieldTravel        = "travel"
	FieldConditions    = "conditions"
)

// Render turns a report snapshot into the external approval form.
// The leader must carry an external identity to submit under.
func Render(task *entity.SubmissionTask, environment string) (*port.SubmissionRequest, error) {
	snap := task.Snapshot

	leader, ok := snap.Team.Leader()
	if !ok {
		return nil, &port.SubmissionError{Kind: port.FailurePermanent, Message: "invalid document: team has no leader"}
	}
	if leader.ExternalID == "" {
		return nil, &port.SubmissionError{
			Kind:    port.FailurePermanent,
			Message: fmt.Sprintf("invalid document: leader %s has no external id", leader.ID),
		}
	}

	stub := &entity.Report{ID: task.ReportID, OrderRef: snap.OrderRef, Team: snap.Team}
	statement := compensation.BuildStatement(stub, snap.Calculations)

	payouts := make([][]port.FormWidget, 0, len(statement.Lines))
	for _, line := range statement.Lines {
		payouts = append(payouts, []port.FormWidget{
			{ID: "payee", Type: "input", Value: line.PayeeName},
			{ID: "payee_external_id", Type: "input", Value: line.ExternalID},
			{ID: "amount", Type: "amount", Value: line.Amount.InexactFloat64()},
		})
	}

	form := []port.FormWidget{
		{ID: FieldOrderRef, Type: "input", Value: snap.OrderRef},
		{ID: FieldEnvironment, Type: "input", Value: environment},
		{ID: FieldTotal, Type: "amount", Value: statement.Total.InexactFloat64()},
		{ID: FieldPayouts, Type: "fieldList", Value: payouts},
		{ID: FieldTravel, Type: "textarea", Value: travelSummary(snap.PartA)},
		{ID: FieldConditions, Type: "textarea", Value: conditionSummary(snap.PartB)},
	}
	if date, ok := executionDate(snap); ok {
		form = append(form, port.FormWidget{
			ID:    FieldExecutionDate,
			Type:  "date",
			Value: date.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	return &port.SubmissionRequest{
		ReportID:       task.ReportID,
		OrderRef:       snap.OrderRef,
		ExternalID:     leader.ExternalID,
		Environment:    environment,
		Form:           form,
		IdempotencyKey: task.ID,
	}, nil
}

func executionDate(snap entity.ReportSnapshot) (entity.Date, bool) {
	if snap.ExecutionDate != nil && !snap.ExecutionDate.IsZero() {
		return *snap.ExecutionDate, true
	}
	return snap.PartA.EarliestSegmentDate()
}

func travelSummary(a entity.PartA) string {
	var b strings.Builder
	for _, s := range a.Segments {
		fmt.Fprintf(&b, "%s %s-%s %s -> %s (%s", s.Date, clock(s.StartTime), clock(s.EndTime), s.StartPlace, s.EndPlace, s.Mode)
		switch {
		case s.Mode.IsVehicle():
			fmt.Fprintf(&b, ", %.1f km, driver %s", s.DistanceKm, s.DriverID)
		case s.Mode == entity.TransportPublicTransit:
			fmt.Fprintf(&b, ", ticket %s", s.TicketCost.StringFixed(2))
		}
		b.WriteString(")\n")
	}
	for _, acc := range a.Accommodations {
		fmt.Fprintf(&b, "%s lodging %s paid by %s\n", acc.Date, acc.Amount.StringFixed(2), acc.PaidBy)
	}
	for _, e := range a.Expenses {
		fmt.Fprintf(&b, "%s expense %s paid by %s: %s\n", e.Date, e.Amount.StringFixed(2), e.PaidBy, e.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

func conditionSummary(p entity.PartB) string {
	var b strings.Builder
	for _, o := range p.Objects {
		fmt.Fprintf(&b, "%s: %s", o.ObjectRef, o.Condition)
		if o.Notes != "" {
			fmt.Fprintf(&b, " (%s)", o.Notes)
		}
		b.WriteString("\n")
	}
	if p.Notes != "" {
		b.WriteString(p.Notes)
	}
	return strings.TrimRight(b.String(), "\n")
}

func clock(c *entity.ClockTime) string {
	if c == nil {
		return "?"
	}
	return c.String()
}
