package requisition

import (
	"math"
	"time"
)

// =============================================================================
// PROCESSING PERIOD
// =============================================================================

// ProcessingPeriod is the reporting window a requisition covers.
//
// Examples:
//   - Monthly: Jan 1 - Jan 31, DurationInMonths 1
//   - Quarterly: Jan 1 - Mar 31, DurationInMonths 3
type ProcessingPeriod struct {
	ID               string
	Name             string
	StartDate        time.Time
	EndDate          time.Time
	DurationInMonths float64
}

// Days returns the period length used by consumption formulas:
// DurationInMonths x daysPerMonth, rounded to the nearest day.
func (p ProcessingPeriod) Days(daysPerMonth float64) int64 {
	return int64(math.Round(p.DurationInMonths * daysPerMonth))
}

// Contains returns true if t is within [StartDate, EndDate].
func (p ProcessingPeriod) Contains(t time.Time) bool {
	return !t.Before(p.StartDate) && !t.After(p.EndDate)
}

// String returns a string representation of the period.
func (p ProcessingPeriod) String() string {
	if p.Name != "" {
		return p.Name
	}
	return "[" + p.StartDate.Format("2006-01-02") + ", " + p.EndDate.Format("2006-01-02") + "]"
}
