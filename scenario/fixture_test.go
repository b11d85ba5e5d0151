package scenario_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/scenario"
	"github.com/warp/staffing-engine/staffing"
)

const year = 2026

func d(s string) generic.Date { return generic.MustParseDate(s) }

func dp(s string) *generic.Date { return d(s).Ptr() }

func rate(v int64) *decimal.Decimal { return generic.DecimalPtr(v) }

// baseDataset bills Acme 31000 in January and Beta 14000 in February.
//
//	Acme  / Platform  (open)           / Ava @1000  Jan 1-31
//	Beta  / Migration (to Jun 30)      / Ben @500   Feb 1-28
func baseDataset() *staffing.Dataset {
	return &staffing.Dataset{
		Clients: []staffing.Client{
			{ID: 1, Name: "Acme"},
			{ID: 2, Name: "Beta"},
		},
		Engineers: []staffing.Engineer{
			{ID: 1, Name: "Ava", Level: 3, DayRate: rate(1000), Active: true},
			{ID: 2, Name: "Ben", Level: 2, DayRate: rate(500), Active: true},
		},
		Projects: []staffing.Project{
			{ID: 10, ClientID: 1, Name: "Platform", Start: d("2026-01-01"), Status: staffing.StatusConfirmed},
			{ID: 20, ClientID: 2, Name: "Migration", Start: d("2026-01-01"), End: dp("2026-06-30"), Status: staffing.StatusConfirmed},
		},
		Allocations: []staffing.Allocation{
			{ID: 100, EngineerID: 1, ProjectID: 10, Start: d("2026-01-01"), End: dp("2026-01-31"), Status: staffing.StatusConfirmed},
			{ID: 200, EngineerID: 2, ProjectID: 20, Start: d("2026-02-01"), End: dp("2026-02-28"), Status: staffing.StatusConfirmed},
		},
	}
}

func yearQuery() staffing.Query {
	return staffing.Query{Mode: staffing.ModeYear, Year: year, IncludeProvisional: true}
}

// changes numbers payloads from Seq 1 in order.
func changes(payloads ...any) []scenario.Change {
	out := make([]scenario.Change, len(payloads))
	for i, p := range payloads {
		out[i] = scenario.Change{Seq: int64(i + 1), Kind: kindOf(p), Payload: p}
	}
	return out
}

func kindOf(p any) scenario.Kind {
	switch p.(type) {
	case scenario.EngineerRate:
		return scenario.KindEngineerRate
	case scenario.ProjectAdd:
		return scenario.KindProjectAdd
	case scenario.ProjectUpdate:
		return scenario.KindProjectUpdate
	case scenario.ProjectDelete:
		return scenario.KindProjectDelete
	case scenario.AllocationAdd:
		return scenario.KindAllocationAdd
	case scenario.AllocationUpdate:
		return scenario.KindAllocationUpdate
	case scenario.AllocationDelete:
		return scenario.KindAllocationDelete
	case scenario.CellAdjust:
		return scenario.KindCellAdjust
	}
	return "unknown"
}

// run materializes, aggregates both sides and diffs.
func run(t *testing.T, base *staffing.Dataset, log []scenario.Change) (scenario.Result, []staffing.Row, scenario.Outcome) {
	t.Helper()
	res := scenario.Materialize(base, log)
	baseline := staffing.Aggregate(base, yearQuery())
	q := yearQuery()
	q.Adjustments = res.Adjustments
	rows := staffing.Aggregate(res.Dataset, q)
	out := scenario.Diff(scenario.DiffInput{
		Baseline: baseline,
		Scenario: rows,
		Changes:  log,
		Base:     base,
		Result:   res,
		Year:     year,
	})
	return res, rows, out
}

func rowByID(t *testing.T, rows []staffing.Row, id string) staffing.Row {
	t.Helper()
	for _, r := range rows {
		if r.ID == id {
			return r
		}
	}
	require.Failf(t, "row not found", "no row %q", id)
	return staffing.Row{}
}

func cell(t *testing.T, rows []staffing.Row, id, column string) string {
	t.Helper()
	v, err := rowByID(t, rows, id).Cell(column)
	require.NoError(t, err)
	return generic.FormatMoney(v)
}

func allocationByID(ds *staffing.Dataset, id int64) (staffing.Allocation, bool) {
	for _, a := range ds.Allocations {
		if a.ID == id {
			return a, true
		}
	}
	return staffing.Allocation{}, false
}

func projectByID(ds *staffing.Dataset, id int64) (staffing.Project, bool) {
	for _, p := range ds.Projects {
		if p.ID == id {
			return p, true
		}
	}
	return staffing.Project{}, false
}

func assertKeys(t *testing.T, want []scenario.CellKey, got []scenario.CellKey) {
	t.Helper()
	assert.ElementsMatch(t, want, got)
}
