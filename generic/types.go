/*
Package generic provides the domain-agnostic building blocks of the engine.

PURPOSE:
  Calendar arithmetic, money rounding, report columns and the append-only
  change log live here. Nothing in this package knows about engineers,
  clients or projects; the staffing and scenario packages build on it.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: decimal.Decimal amounts, rounded once at the output boundary
  - Columns: the twelve month columns plus "total" of a year report
  - ChangeRecord: an immutable change-log entry with an opaque JSON payload

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal everywhere, never float64
  2. Immutability: change records are appended, never edited
  3. Idempotency: every record carries a unique idempotency key

USAGE:
  amount := generic.Round(decimal.NewFromInt(1200).Mul(decimal.NewFromInt(12)))
  idx, ok := generic.ColumnIndex("Feb") // 1, true

SEE ALSO:
  - time.go: Date type
  - period.go: Period and month windows
  - ledger.go: ChangeLog on top of LogStore
*/
package generic

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// MoneyPlaces is the number of decimal places of every reported amount.
const MoneyPlaces = 2

// Round rounds half away from zero to MoneyPlaces.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// FormatMoney renders an amount with exactly MoneyPlaces decimals.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(MoneyPlaces)
}

// FormatRate renders an optional rate, "-" when undefined.
func FormatRate(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return FormatMoney(*d)
}

// MustParseDecimal panics on malformed input. Tests and fixtures only.
func MustParseDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// DecimalPtr is a convenience for optional rates.
func DecimalPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

// =============================================================================
// REPORT COLUMNS
// =============================================================================

// ColumnTotal names the per-row total column of a year report.
const ColumnTotal = "total"

// MonthColumns are the month column names, January first.
var MonthColumns = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// Columns returns the month columns followed by ColumnTotal.
func Columns() []string {
	cols := make([]string, 0, len(MonthColumns)+1)
	cols = append(cols, MonthColumns[:]...)
	return append(cols, ColumnTotal)
}

// ColumnIndex returns the month index (0..11) for a month column, 12 for
// ColumnTotal. ok is false for anything else.
func ColumnIndex(column string) (idx int, ok bool) {
	if column == ColumnTotal {
		return len(MonthColumns), true
	}
	for i, m := range MonthColumns {
		if m == column {
			return i, true
		}
	}
	return 0, false
}

// =============================================================================
// CHANGE RECORD - Immutable change-log entry
// =============================================================================

// ChangeRecord is one entry of an append-only change log. Seq is assigned by
// the store on append and is the causal application order within LogID.
// Payload is kept opaque here; domain packages decode it by Kind.
type ChangeRecord struct {
	Seq            int64
	LogID          int64
	Kind           string
	Payload        json.RawMessage
	IdempotencyKey string
	CreatedAt      time.Time
}
