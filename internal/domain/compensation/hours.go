// Package compensation turns a report's travel records into per-member
// payouts. Everything here is pure and safe for concurrent use.
package compensation

import "github.com/garyjia/fieldwork-reports/internal/domain/entity"

type daySpan struct {
	start, end int
}

// WorkHours merges same-day segments into one duty period per date and sums them.
// For each date the span runs from the earliest start to the latest end among
// segments carrying both clock times; segments missing a time are ignored for
// that date without excluding the others.
func WorkHours(segments []entity.TravelSegment) float64 {
	spans := make(map[string]*daySpan)

	for _, s := range segments {
		if !s.HasTimes() {
			continue
		}
		key := s.Date.String()
		start, end := s.StartTime.Minutes(), s.EndTime.Minutes()

		span, ok := spans[key]
		if !ok {
			spans[key] = &daySpan{start: start, end: end}
			continue
		}
		if start < span.start {
			span.start = start
		}
		if end > span.end {
			span.end = end
		}
	}

	total := 0
	for _, span := range spans {
		if elapsed := span.end - span.start; elapsed > 0 {
			total += elapsed
		}
	}

	return float64(total) / 60
}
