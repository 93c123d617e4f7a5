package entity

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TariffBand maps worked hours in [From, To) to flat allowances
type TariffBand struct {
	From          float64         `json:"from" mapstructure:"from"`
	To            float64         `json:"to" mapstructure:"to"`
	MealAllowance decimal.Decimal `json:"meal_allowance"`
	WorkAllowance decimal.Decimal `json:"work_allowance"`
}

// Contains reports whether hours falls inside [From, To)
func (b TariffBand) Contains(hours float64) bool {
	return hours >= b.From && hours < b.To
}

// PriceList is the effective-dated set of rates and allowance bands
type PriceList struct {
	ID             int64           `json:"id"`
	EffectiveFrom  Date            `json:"effective_from"`
	KmRate         decimal.Decimal `json:"km_rate"`
	KmRateElevated decimal.Decimal `json:"km_rate_elevated"`
	Bands          []TariffBand    `json:"bands"`
}

// MatchBand returns the first band containing hours, or nil
func (p *PriceList) MatchBand(hours float64) *TariffBand {
	for i := range p.Bands {
		if p.Bands[i].Contains(hours) {
			b := p.Bands[i]
			return &b
		}
	}
	return nil
}

// RateFor returns the per-km rate for the elevated flag
func (p *PriceList) RateFor(elevated bool) decimal.Decimal {
	if elevated {
		return p.KmRateElevated
	}
	return p.KmRate
}

// Validate checks rates are non-negative and bands are ordered and non-overlapping
func (p *PriceList) Validate() error {
	if p.EffectiveFrom.IsZero() {
		return fmt.Errorf("%w: price list needs an effective-from date", ErrValidation)
	}
	if p.KmRate.IsNegative() || p.KmRateElevated.IsNegative() {
		return fmt.Errorf("%w: per-km rates must be non-negative", ErrValidation)
	}
	for i, b := range p.Bands {
		if b.To <= b.From {
			return fmt.Errorf("%w: band %d has empty interval [%v, %v)", ErrValidation, i, b.From, b.To)
		}
		if b.MealAllowance.IsNegative() || b.WorkAllowance.IsNegative() {
			return fmt.Errorf("%w: band %d has a negative allowance", ErrValidation, i)
		}
		if i > 0 && b.From < p.Bands[i-1].To {
			return fmt.Errorf("%w: band %d overlaps band %d", ErrValidation, i, i-1)
		}
	}
	return nil
}
