package staffing_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/staffing"
)

func d(s string) generic.Date { return generic.MustParseDate(s) }

func dp(s string) *generic.Date { return generic.MustParseDate(s).Ptr() }

func rate(v int64) *decimal.Decimal { return generic.DecimalPtr(v) }

func money(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	assert.Equal(t, expected, generic.FormatMoney(actual))
}

// =============================================================================
// REVENUE
// =============================================================================

func TestRevenue_OpenEnded_RunsToAsOf(t *testing.T) {
	// GIVEN: Open-ended allocation from Feb 10 at 1000/day
	// WHEN: Evaluated as of Feb 15
	toDate, total := staffing.Revenue(d("2026-02-10"), nil, rate(1000), d("2026-02-15"))

	// THEN: 6 inclusive days for both figures
	money(t, "6000.00", toDate)
	money(t, "6000.00", total)
}

func TestRevenue_StartAfterAsOf_IsZero(t *testing.T) {
	toDate, total := staffing.Revenue(d("2026-02-20"), nil, rate(1000), d("2026-02-15"))
	money(t, "0.00", toDate)
	money(t, "0.00", total)
}

func TestRevenue_UndefinedRate_IsZero(t *testing.T) {
	toDate, total := staffing.Revenue(d("2026-01-01"), dp("2026-01-31"), nil, d("2026-02-15"))
	assert.True(t, toDate.IsZero())
	assert.True(t, total.IsZero())
}

func TestRevenue_EndAfterAsOf_SplitsToDateAndTotal(t *testing.T) {
	toDate, total := staffing.Revenue(d("2026-01-01"), dp("2026-01-31"), rate(100), d("2026-01-10"))
	money(t, "1000.00", toDate)
	money(t, "3100.00", total)
}

func TestRevenue_EndedBeforeAsOf_ToDateEqualsTotal(t *testing.T) {
	toDate, total := staffing.Revenue(d("2026-01-01"), dp("2026-01-10"), rate(100), d("2026-02-01"))
	money(t, "1000.00", toDate)
	money(t, "1000.00", total)
}

func TestRevenue_FractionalRate_NotRounded(t *testing.T) {
	r := generic.MustParseDecimal("333.335")
	_, total := staffing.Revenue(d("2026-01-01"), dp("2026-01-01"), &r, d("2026-01-01"))
	assert.Equal(t, "333.335", total.String())
}

// =============================================================================
// MONTH BUCKETS
// =============================================================================

func TestMonthBuckets_SpansTwoMonths(t *testing.T) {
	// GIVEN: Jan 20 - Feb 10 at 1200/day
	buckets := staffing.MonthBuckets(d("2026-01-20"), dp("2026-02-10"), rate(1200), 2026)

	// THEN: 12 January days, 10 February days, nothing else
	money(t, "14400.00", buckets[0])
	money(t, "12000.00", buckets[1])
	sum := decimal.Zero
	for i, b := range buckets {
		if i > 1 {
			money(t, "0.00", b)
		}
		sum = sum.Add(b)
	}
	money(t, "26400.00", sum)
}

func TestMonthBuckets_OpenEnd_RunsToYearEnd(t *testing.T) {
	buckets := staffing.MonthBuckets(d("2026-11-15"), nil, rate(100), 2026)
	money(t, "1600.00", buckets[time.November-1])
	money(t, "3100.00", buckets[time.December-1])
	money(t, "0.00", buckets[time.October-1])

	// The same allocation bills every month of the following year.
	next := staffing.MonthBuckets(d("2026-11-15"), nil, rate(100), 2027)
	money(t, "2800.00", next[time.February-1])
}

func TestMonthBuckets_OutsideYear_IsZero(t *testing.T) {
	for _, b := range staffing.MonthBuckets(d("2025-03-01"), dp("2025-12-31"), rate(100), 2026) {
		money(t, "0.00", b)
	}
	for _, b := range staffing.MonthBuckets(d("2027-01-01"), nil, rate(100), 2026) {
		money(t, "0.00", b)
	}
}

func TestTouchedMonths(t *testing.T) {
	assert.Equal(t, []int{0, 1}, staffing.TouchedMonths(d("2026-01-20"), dp("2026-02-10"), 2026))
	assert.Equal(t, []int{10, 11}, staffing.TouchedMonths(d("2026-11-15"), nil, 2026))
	assert.Empty(t, staffing.TouchedMonths(d("2025-01-01"), dp("2025-02-01"), 2026))
	assert.Empty(t, staffing.TouchedMonths(d("2026-02-01"), dp("2026-01-15"), 2026))
	assert.Empty(t, staffing.TouchedMonths(d("2026-03-20"), dp("2026-03-10"), 2026))
}
