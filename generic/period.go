package generic

import "time"

// =============================================================================
// PERIOD - Closed day window used for every overlap computation
// =============================================================================

// Period is the closed window [Start, End]. Revenue is always computed by
// intersecting an allocation window with a reporting period.
//
// Examples:
//   - Calendar year 2026: Jan 1 - Dec 31
//   - A reporting month: Feb 1 - Feb 28
//   - An allocation: 2026-01-20 - 2026-02-10
type Period struct {
	Start Date
	End   Date
}

// Contains returns true if the day is within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Days returns the inclusive day count, zero for an inverted period.
func (p Period) Days() int {
	if p.End.Before(p.Start) {
		return 0
	}
	return DaysInclusive(p.Start, p.End)
}

// Intersects reports whether the two windows share at least one day.
func (p Period) Intersects(other Period) bool {
	return !p.End.Before(other.Start) && !p.Start.After(other.End)
}

// Overlap returns the shared window, if any.
func (p Period) Overlap(other Period) (Period, bool) {
	if !p.Intersects(other) {
		return Period{}, false
	}
	return Period{Start: MaxDate(p.Start, other.Start), End: MinDate(p.End, other.End)}, true
}

// OverlapDays is the inclusive size of the shared window.
func (p Period) OverlapDays(other Period) int {
	o, ok := p.Overlap(other)
	if !ok {
		return 0
	}
	return o.Days()
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// YearPeriod is Jan 1 - Dec 31 of year.
func YearPeriod(year int) Period {
	return Period{Start: StartOfYear(year), End: EndOfYear(year)}
}

// MonthPeriods returns the twelve calendar months of year, January first.
func MonthPeriods(year int) [12]Period {
	var months [12]Period
	for i := range months {
		m := time.Month(i + 1)
		months[i] = Period{Start: StartOfMonth(year, m), End: EndOfMonth(year, m)}
	}
	return months
}
