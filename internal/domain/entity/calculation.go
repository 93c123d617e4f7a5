package entity

import "github.com/shopspring/decimal"

// CompensationCalculation is the derived financial breakdown for one member
type CompensationCalculation struct {
	MemberID      MemberID        `json:"member_id"`
	Transport     decimal.Decimal `json:"transport"`
	MealAllowance decimal.Decimal `json:"meal_allowance"`
	WorkAllowance decimal.Decimal `json:"work_allowance"`
	Accommodation decimal.Decimal `json:"accommodation"`
	Incidentals   decimal.Decimal `json:"incidentals"`
	Total         decimal.Decimal `json:"total"`
	WorkHours     float64         `json:"work_hours"`
	Band          *TariffBand     `json:"band,omitempty"`
	IsDriver      bool            `json:"is_driver"`
}

// Calculations maps each member to their breakdown
type Calculations map[MemberID]*CompensationCalculation
