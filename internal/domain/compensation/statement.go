package compensation

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/garyjia/fieldwork-reports/internal/domain/entity"
)

// PayoutLine is the amount one payee receives for a report
type PayoutLine struct {
	Payee      entity.MemberID   `json:"payee"`
	PayeeName  string            `json:"payee_name"`
	ExternalID string            `json:"external_id"`
	Amount     decimal.Decimal   `json:"amount"`
	Covers     []entity.MemberID `json:"covers"`
}

// Statement is the per-payee payout summary of a report
type Statement struct {
	ReportID int64           `json:"report_id"`
	OrderRef string          `json:"order_ref"`
	Lines    []PayoutLine    `json:"lines"`
	Total    decimal.Decimal `json:"total"`
}

// BuildStatement folds member totals onto their payees after payment redirects.
// Lines are sorted by payee id.
func BuildStatement(report *entity.Report, calcs entity.Calculations) *Statement {
	byPayee := make(map[entity.MemberID]*PayoutLine)

	for _, id := range report.Team.IDs() {
		calc, ok := calcs[id]
		if !ok || calc == nil {
			continue
		}
		payee := report.Team.PayeeFor(id)
		line, ok := byPayee[payee]
		if !ok {
			m := report.Team[payee]
			line = &PayoutLine{Payee: payee, PayeeName: m.Name, ExternalID: m.ExternalID, Amount: decimal.Zero}
			byPayee[payee] = line
		}
		line.Amount = line.Amount.Add(calc.Total)
		line.Covers = append(line.Covers, id)
	}

	st := &Statement{ReportID: report.ID, OrderRef: report.OrderRef, Total: decimal.Zero}
	for _, line := range byPayee {
		st.Lines = append(st.Lines, *line)
		st.Total = st.Total.Add(line.Amount)
	}
	sort.Slice(st.Lines, func(i, j int) bool { return st.Lines[i].Payee < st.Lines[j].Payee })

	return st
}
