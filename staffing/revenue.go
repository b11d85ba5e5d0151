package staffing

import (
	"github.com/shopspring/decimal"
	"github.com/warp/staffing-engine/generic"
)

// =============================================================================
// REVENUE CALCULATOR - Day rate x inclusive days, never rounded here
// =============================================================================

// Revenue splits an allocation's billing at asOf.
//
//	effectiveEnd = end, or asOf when open-ended
//	toDate       = days(start, min(effectiveEnd, asOf)) x rate
//	total        = days(start, effectiveEnd) x rate
//
// An undefined rate or a start after asOf bills nothing.
func Revenue(start generic.Date, end *generic.Date, rate *decimal.Decimal, asOf generic.Date) (toDate, total decimal.Decimal) {
	if rate == nil || start.After(asOf) {
		return decimal.Zero, decimal.Zero
	}
	effectiveEnd := asOf
	if end != nil {
		effectiveEnd = *end
	}
	toDateEnd := generic.MinDate(effectiveEnd, asOf)
	if toDateEnd.Before(start) {
		return decimal.Zero, decimal.Zero
	}
	toDate = days(start, toDateEnd).Mul(*rate)
	total = days(start, effectiveEnd).Mul(*rate)
	return toDate, total
}

// PeriodRevenue bills the part of an allocation inside window. An open end
// runs to the window's end.
func PeriodRevenue(start generic.Date, end *generic.Date, rate *decimal.Decimal, window generic.Period) decimal.Decimal {
	if rate == nil || start.After(window.End) {
		return decimal.Zero
	}
	alloc := generic.Period{Start: start, End: window.End}
	if end != nil {
		alloc.End = *end
	}
	n := alloc.OverlapDays(window)
	if n == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(n)).Mul(*rate)
}

// MonthBuckets bills an allocation per calendar month of year. An open end
// is treated as Dec 31 of year; a window missing the year bills nothing.
func MonthBuckets(start generic.Date, end *generic.Date, rate *decimal.Decimal, year int) [12]decimal.Decimal {
	var buckets [12]decimal.Decimal
	for i := range buckets {
		buckets[i] = decimal.Zero
	}
	if rate == nil {
		return buckets
	}
	yearEnd := generic.EndOfYear(year)
	alloc := generic.Period{Start: start, End: yearEnd}
	if end != nil {
		alloc.End = *end
	}
	if !alloc.Intersects(generic.YearPeriod(year)) {
		return buckets
	}
	for i, month := range generic.MonthPeriods(year) {
		buckets[i] = PeriodRevenue(alloc.Start, &alloc.End, rate, month)
	}
	return buckets
}

// TouchedMonths returns the month indexes of year an allocation window
// overlaps. An inverted window touches nothing.
func TouchedMonths(start generic.Date, end *generic.Date, year int) []int {
	alloc := generic.Period{Start: start, End: generic.EndOfYear(year)}
	if end != nil {
		alloc.End = *end
	}
	if alloc.End.Before(alloc.Start) {
		return nil
	}
	var months []int
	for i, month := range generic.MonthPeriods(year) {
		if alloc.Intersects(month) {
			months = append(months, i)
		}
	}
	return months
}

func days(from, to generic.Date) decimal.Decimal {
	return decimal.NewFromInt(int64(generic.DaysInclusive(from, to)))
}
