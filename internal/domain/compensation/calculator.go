package compensation

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/garyjia/fieldwork-reports/internal/domain/entity"
)

// TariffResolver returns the price list in effect on a date
type TariffResolver interface {
	Resolve(ctx context.Context, date entity.Date) (*entity.PriceList, error)
}

// Calculator produces compensation breakdowns for report members
type Calculator struct {
	resolver TariffResolver
}

// NewCalculator creates a calculator backed by resolver
func NewCalculator(resolver TariffResolver) *Calculator {
	return &Calculator{resolver: resolver}
}

// Calculate returns the breakdown for a single member
func (c *Calculator) Calculate(ctx context.Context, report *entity.Report, member entity.MemberID) (*entity.CompensationCalculation, error) {
	if !report.Team.Has(member) {
		return nil, fmt.Errorf("member %s: %w", member, entity.ErrNotFound)
	}

	priceList, err := c.priceListFor(ctx, report)
	if err != nil {
		return nil, err
	}

	return Compute(report, priceList, member), nil
}

// CalculateAll returns the breakdown for every team member, keyed by member id.
// The tariff is resolved once for the whole report.
func (c *Calculator) CalculateAll(ctx context.Context, report *entity.Report) (entity.Calculations, error) {
	priceList, err := c.priceListFor(ctx, report)
	if err != nil {
		return nil, err
	}

	return ComputeAll(report, priceList), nil
}

func (c *Calculator) priceListFor(ctx context.Context, report *entity.Report) (*entity.PriceList, error) {
	date, ok := report.CalculationDate()
	if !ok {
		return nil, entity.ErrNoExecutionDate
	}

	priceList, err := c.resolver.Resolve(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tariff for %s: %w", date, err)
	}
	return priceList, nil
}

// ComputeAll applies Compute to every member of the report's team
func ComputeAll(report *entity.Report, priceList *entity.PriceList) entity.Calculations {
	hours := WorkHours(report.PartA.Segments)
	band := priceList.MatchBand(hours)

	result := make(entity.Calculations, len(report.Team))
	for id := range report.Team {
		result[id] = compute(report, priceList, id, hours, band)
	}
	return result
}

// Compute derives the breakdown for member from the report and price list.
// It has no side effects; identical inputs give identical outputs.
func Compute(report *entity.Report, priceList *entity.PriceList, member entity.MemberID) *entity.CompensationCalculation {
	hours := WorkHours(report.PartA.Segments)
	return compute(report, priceList, member, hours, priceList.MatchBand(hours))
}

func compute(report *entity.Report, priceList *entity.PriceList, member entity.MemberID, hours float64, band *entity.TariffBand) *entity.CompensationCalculation {
	calc := &entity.CompensationCalculation{
		MemberID:      member,
		MealAllowance: decimal.Zero,
		WorkAllowance: decimal.Zero,
		WorkHours:     hours,
		Band:          band,
	}

	if band != nil {
		calc.MealAllowance = band.MealAllowance
		calc.WorkAllowance = band.WorkAllowance
	}

	calc.Transport, calc.IsDriver = transportFor(report, priceList, member)
	calc.Accommodation = sumAccommodations(report.PartA.Accommodations, member)
	calc.Incidentals = sumExpenses(report.PartA.Expenses, member)

	calc.Transport = calc.Transport.Round(2)
	calc.MealAllowance = calc.MealAllowance.Round(2)
	calc.WorkAllowance = calc.WorkAllowance.Round(2)
	calc.Accommodation = calc.Accommodation.Round(2)
	calc.Incidentals = calc.Incidentals.Round(2)
	calc.Total = calc.Transport.
		Add(calc.MealAllowance).
		Add(calc.WorkAllowance).
		Add(calc.Accommodation).
		Add(calc.Incidentals)

	return calc
}

// transportFor sums transport cost over the segments member drove
func transportFor(report *entity.Report, priceList *entity.PriceList, member entity.MemberID) (decimal.Decimal, bool) {
	total := decimal.Zero
	isDriver := false
	rate := priceList.RateFor(report.ElevatedRate)

	for _, s := range report.PartA.Segments {
		if s.DriverID == "" || s.DriverID != member {
			continue
		}
		isDriver = true
		total = total.Add(SegmentCost(s, rate))
	}

	return total, isDriver
}

// SegmentCost prices a single segment for its designated driver
func SegmentCost(s entity.TravelSegment, kmRate decimal.Decimal) decimal.Decimal {
	switch {
	case s.Mode.IsVehicle():
		return decimal.NewFromFloat(s.DistanceKm).Mul(kmRate)
	case s.Mode == entity.TransportPublicTransit:
		return s.TicketCost
	default:
		return decimal.Zero
	}
}

func sumAccommodations(items []entity.Accommodation, member entity.MemberID) decimal.Decimal {
	total := decimal.Zero
	for _, a := range items {
		if a.PaidBy == member {
			total = total.Add(a.Amount)
		}
	}
	return total
}

func sumExpenses(items []entity.AdditionalExpense, member entity.MemberID) decimal.Decimal {
	total := decimal.Zero
	for _, e := range items {
		if e.PaidBy == member {
			total = total.Add(e.Amount)
		}
	}
	return total
}
