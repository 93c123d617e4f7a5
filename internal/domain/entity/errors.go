package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("not found")

	// ErrTariffNotFound is returned when no price list is effective for a date
	ErrTariffNotFound = fmt.Errorf("tariff: %w", ErrNotFound)

	// ErrNoExecutionDate is returned when a report has neither an execution date nor dated segments
	ErrNoExecutionDate = errors.New("report has no execution date")

	// ErrValidation is returned when a payload fails validation
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when a concurrent write won the race
	ErrConflict = errors.New("concurrent modification")

	// ErrForbidden is returned when the caller may not perform the action
	ErrForbidden = errors.New("forbidden")

	// ErrNotEditable is returned when report data is changed outside an editable state
	ErrNotEditable = errors.New("report is not editable in its current state")
)
