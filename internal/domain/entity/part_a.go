package entity

import "github.com/shopspring/decimal"

// TravelSegment is one leg of travel on one day
type TravelSegment struct {
	Date        Date            `json:"date"`
	StartTime   *ClockTime      `json:"start_time,omitempty"`
	EndTime     *ClockTime      `json:"end_time,omitempty"`
	StartPlace  string          `json:"start_place" validate:"max=200"`
	EndPlace    string          `json:"end_place" validate:"max=200"`
	Mode        TransportMode   `json:"mode" validate:"required,transport_mode"`
	DistanceKm  float64         `json:"distance_km" validate:"gte=0"`
	TicketCost  decimal.Decimal `json:"ticket_cost"`
	DriverID    MemberID        `json:"driver_id,omitempty"`
	Attachments []string        `json:"attachments,omitempty" validate:"dive,required"`
}

// HasTimes reports whether both clock times are present
func (s TravelSegment) HasTimes() bool {
	return s.StartTime != nil && s.EndTime != nil
}

// Accommodation is a paid overnight stay
type Accommodation struct {
	Date        Date            `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	PaidBy      MemberID        `json:"paid_by" validate:"required"`
	Description string          `json:"description" validate:"max=500"`
	Attachments []string        `json:"attachments,omitempty" validate:"dive,required"`
}

// AdditionalExpense is an incidental cost paid by a member
type AdditionalExpense struct {
	Date        Date            `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	PaidBy      MemberID        `json:"paid_by" validate:"required"`
	Description string          `json:"description" validate:"max=500"`
	Attachments []string        `json:"attachments,omitempty" validate:"dive,required"`
}

// PartA is the travel-and-expense section of a report
type PartA struct {
	Segments       []TravelSegment     `json:"segments" validate:"dive"`
	Accommodations []Accommodation     `json:"accommodations" validate:"dive"`
	Expenses       []AdditionalExpense `json:"expenses" validate:"dive"`
	Completed      bool                `json:"completed"`
}

// EarliestSegmentDate returns the first dated segment's date
func (p PartA) EarliestSegmentDate() (Date, bool) {
	var earliest Date
	found := false
	for _, s := range p.Segments {
		if s.Date.IsZero() {
			continue
		}
		if !found || s.Date.Before(earliest) {
			earliest = s.Date
			found = true
		}
	}
	return earliest, found
}
