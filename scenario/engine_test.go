package scenario_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/staffing-engine/factory"
	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/generic/store"
	"github.com/warp/staffing-engine/scenario"
	"github.com/warp/staffing-engine/staffing"
)

func newEngine(t *testing.T) (*scenario.Engine, *store.Memory, staffing.Scenario) {
	t.Helper()
	mem := store.NewMemory()
	mem.SetDataset(baseDataset())
	engine := scenario.NewEngine(mem, mem, generic.NewChangeLog(mem), factory.NewChangeFactory(), nil)

	sc, err := mem.CreateScenario(context.Background(), "Hire plan")
	require.NoError(t, err)
	return engine, mem, sc
}

func TestEngine_YearReport(t *testing.T) {
	// GIVEN: A scenario extending Ben's allocation through March
	engine, _, sc := newEngine(t)
	ctx := context.Background()

	_, err := engine.AppendChange(ctx, sc.ID, scenario.KindAllocationUpdate,
		json.RawMessage(`{"allocation_id": 200, "end_date": "2026-03-31"}`), "")
	require.NoError(t, err)

	// WHEN: The 2026 report is computed
	report, err := engine.YearReport(ctx, sc.ID, year, true)
	require.NoError(t, err)

	// THEN: Baseline and scenario differ in March only
	assert.Equal(t, "Hire plan", report.Scenario.Name)
	assert.Equal(t, "0.00", cell(t, report.Baseline, staffing.ClientRowID(2), "Mar"))
	assert.Equal(t, "15500.00", cell(t, report.Rows, staffing.ClientRowID(2), "Mar"))
	assert.Equal(t, "14000.00", cell(t, report.Rows, staffing.ClientRowID(2), "Feb"))

	assertKeys(t, []scenario.CellKey{
		scenario.ClientCell(2, "Mar"),
		scenario.ClientCell(2, generic.ColumnTotal),
		scenario.TotalCell("Mar"),
		scenario.TotalCell(generic.ColumnTotal),
	}, report.DirtyCells())

	// Feb is attributed (old window) without being dirty.
	assert.Len(t, report.Provenance[scenario.ClientCell(2, "Feb")], 1)
	assert.False(t, report.Dirty[scenario.ClientCell(2, "Feb")])
	require.Len(t, report.Changes, 1)
	assert.Empty(t, report.Skipped)
}

func TestEngine_YearReportLeavesBaseUntouched(t *testing.T) {
	// GIVEN: A scenario deleting every project
	engine, mem, sc := newEngine(t)
	ctx := context.Background()
	for _, id := range []int{10, 20} {
		payload, err := json.Marshal(scenario.ProjectDelete{ProjectID: int64(id)})
		require.NoError(t, err)
		_, err = engine.AppendChange(ctx, sc.ID, scenario.KindProjectDelete, payload, "")
		require.NoError(t, err)
	}

	// WHEN: The report is computed twice
	first, err := engine.YearReport(ctx, sc.ID, year, true)
	require.NoError(t, err)
	second, err := engine.YearReport(ctx, sc.ID, year, true)
	require.NoError(t, err)

	// THEN: The base data still holds both projects and replay is stable
	base, err := mem.LoadDataset(ctx)
	require.NoError(t, err)
	assert.Len(t, base.Projects, 2)
	assert.Len(t, base.Allocations, 2)
	assert.Equal(t, "0.00", cell(t, first.Rows, staffing.TotalRowID, generic.ColumnTotal))
	assert.Equal(t, first.DirtyCells(), second.DirtyCells())
}

func TestEngine_AppendChangeRejectsUnknownKind(t *testing.T) {
	engine, mem, sc := newEngine(t)
	ctx := context.Background()

	_, err := engine.AppendChange(ctx, sc.ID, "teleport", json.RawMessage(`{}`), "")

	assert.True(t, errors.Is(err, generic.ErrUnknownKind))
	records, err := mem.Load(ctx, sc.ID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestEngine_AppendChangeRejectsInvalidPayload(t *testing.T) {
	engine, _, sc := newEngine(t)
	ctx := context.Background()

	_, err := engine.AppendChange(ctx, sc.ID, scenario.KindCellAdjust,
		json.RawMessage(`{"client_id": 1, "month": "Smarch", "amount": "5"}`), "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrInvalidPayload))
	assert.True(t, generic.IsClientError(err))
}

func TestEngine_AppendChangeIsIdempotent(t *testing.T) {
	engine, _, sc := newEngine(t)
	ctx := context.Background()
	payload := json.RawMessage(`{"allocation_id": 100}`)

	_, err := engine.AppendChange(ctx, sc.ID, scenario.KindAllocationDelete, payload, "key-1")
	require.NoError(t, err)
	_, err = engine.AppendChange(ctx, sc.ID, scenario.KindAllocationDelete, payload, "key-1")

	assert.True(t, errors.Is(err, generic.ErrDuplicateIdempotencyKey))
	records, err := engine.Records(ctx, sc.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestEngine_UnknownScenario(t *testing.T) {
	engine, _, _ := newEngine(t)
	ctx := context.Background()

	_, err := engine.YearReport(ctx, 999, year, true)
	assert.True(t, generic.IsNotFound(err))

	_, err = engine.AppendChange(ctx, 999, scenario.KindAllocationDelete, json.RawMessage(`{"allocation_id": 100}`), "")
	assert.True(t, generic.IsNotFound(err))
}

func TestEngine_StoredUnknownKindIsSkipped(t *testing.T) {
	// GIVEN: A log holding a kind written by a newer version
	engine, mem, sc := newEngine(t)
	ctx := context.Background()
	rec, err := generic.NewChangeLog(mem).Append(ctx, sc.ID, "hire_engineer", json.RawMessage(`{"name":"Zed"}`), "")
	require.NoError(t, err)

	// WHEN: The report is computed
	report, err := engine.YearReport(ctx, sc.ID, year, true)
	require.NoError(t, err)

	// THEN: The change is reported as skipped and has no effect
	assert.Equal(t, []int64{rec.Seq}, report.Skipped)
	assert.Empty(t, report.Dirty)
}

func TestEngine_ExcludingProvisional(t *testing.T) {
	// GIVEN: A provisional project with March work
	engine, _, sc := newEngine(t)
	ctx := context.Background()
	_, err := engine.AppendChange(ctx, sc.ID, scenario.KindProjectAdd, json.RawMessage(
		`{"client_id": 1, "name": "Bid", "start_date": "2026-03-01", "status": "provisional"}`), "")
	require.NoError(t, err)
	_, err = engine.AppendChange(ctx, sc.ID, scenario.KindAllocationAdd, json.RawMessage(
		`{"engineer_id": 2, "project_id": -1, "start_date": "2026-03-01", "end_date": "2026-03-31"}`), "")
	require.NoError(t, err)

	// WHEN: Reported with and without provisional work
	with, err := engine.YearReport(ctx, sc.ID, year, true)
	require.NoError(t, err)
	without, err := engine.YearReport(ctx, sc.ID, year, false)
	require.NoError(t, err)

	// THEN: Only the inclusive report bills it
	assert.Equal(t, "15500.00", cell(t, with.Rows, staffing.ClientRowID(1), "Mar"))
	assert.Equal(t, "0.00", cell(t, without.Rows, staffing.ClientRowID(1), "Mar"))
	assert.Empty(t, without.Dirty)
}
