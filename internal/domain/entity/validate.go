package entity

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("transport_mode", func(fl validator.FieldLevel) bool {
		return TransportMode(fl.Field().String()).IsValid()
	})
	return v
}

// ValidatePartA checks a Part A payload against the report's team.
// Failures wrap ErrValidation.
func ValidatePartA(p *PartA, team Team) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	for i, s := range p.Segments {
		if s.Date.IsZero() {
			return fmt.Errorf("%w: segment %d has no date", ErrValidation, i)
		}
		if s.HasTimes() && s.EndTime.Minutes() < s.StartTime.Minutes() {
			return fmt.Errorf("%w: segment %d ends at %s before it starts at %s", ErrValidation, i, s.EndTime, s.StartTime)
		}
		if s.TicketCost.IsNegative() {
			return fmt.Errorf("%w: segment %d has a negative ticket cost", ErrValidation, i)
		}
		if s.Mode.IsVehicle() && s.DriverID == "" {
			return fmt.Errorf("%w: segment %d uses a vehicle but names no driver", ErrValidation, i)
		}
		if s.DriverID != "" && !team.Has(s.DriverID) {
			return fmt.Errorf("%w: segment %d driver %s is not on the team", ErrValidation, i, s.DriverID)
		}
	}

	for i, a := range p.Accommodations {
		if a.Amount.IsNegative() {
			return fmt.Errorf("%w: accommodation %d has a negative amount", ErrValidation, i)
		}
		if !team.Has(a.PaidBy) {
			return fmt.Errorf("%w: accommodation %d payer %s is not on the team", ErrValidation, i, a.PaidBy)
		}
	}

	for i, e := range p.Expenses {
		if e.Amount.IsNegative() {
			return fmt.Errorf("%w: expense %d has a negative amount", ErrValidation, i)
		}
		if !team.Has(e.PaidBy) {
			return fmt.Errorf("%w: expense %d payer %s is not on the team", ErrValidation, i, e.PaidBy)
		}
	}

	return nil
}

// ValidatePartB checks a Part B payload
func ValidatePartB(p *PartB) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
