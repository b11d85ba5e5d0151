package scenario_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/scenario"
	"github.com/warp/staffing-engine/staffing"
)

func descriptions(attrs []scenario.Attribution) []string {
	out := make([]string, len(attrs))
	for i, a := range attrs {
		out[i] = a.Description
	}
	return out
}

func TestDiff_CellAdjustTouchesOnlyNamedCell(t *testing.T) {
	// GIVEN: +500 on Acme's January cell
	log := changes(scenario.CellAdjust{ClientID: 1, Month: "Jan", Amount: generic.MustParseDecimal("500")})

	// WHEN: The scenario is reported
	_, rows, out := run(t, baseDataset(), log)

	// THEN: Exactly that cell and its TOTAL-row mirror changed
	assert.Equal(t, "31500.00", cell(t, rows, staffing.ClientRowID(1), "Jan"))
	assert.Equal(t, "31000.00", cell(t, rows, staffing.ClientRowID(1), generic.ColumnTotal))
	assert.Equal(t, "31500.00", cell(t, rows, staffing.TotalRowID, "Jan"))

	want := []scenario.CellKey{scenario.ClientCell(1, "Jan"), scenario.TotalCell("Jan")}
	assertKeys(t, want, out.DirtyCells())
	assertKeys(t, want, out.ProvenanceCells())
	assert.Equal(t, []string{"Manual cell adjustment: 500"}, descriptions(out.Provenance[scenario.ClientCell(1, "Jan")]))
}

func TestDiff_EngineerRateAttributesMonthsAndTotals(t *testing.T) {
	// GIVEN: Ava's rate goes to 1200
	log := changes(scenario.EngineerRate{EngineerID: 1, NewDayRate: rate(1200)})

	// WHEN: The scenario is reported
	_, rows, out := run(t, baseDataset(), log)

	// THEN: Acme January and both totals moved, with matching provenance
	assert.Equal(t, "37200.00", cell(t, rows, staffing.ClientRowID(1), "Jan"))
	want := []scenario.CellKey{
		scenario.ClientCell(1, "Jan"),
		scenario.ClientCell(1, generic.ColumnTotal),
		scenario.TotalCell("Jan"),
		scenario.TotalCell(generic.ColumnTotal),
	}
	assertKeys(t, want, out.DirtyCells())
	assertKeys(t, want, out.ProvenanceCells())

	attrs := out.Provenance[scenario.TotalCell(generic.ColumnTotal)]
	require.Len(t, attrs, 1)
	assert.Equal(t, int64(1), attrs[0].Seq)
	assert.Equal(t, scenario.KindEngineerRate, attrs[0].Kind)
	assert.Equal(t, "Engineer rate change: Ava -> 1200", attrs[0].Description)
}

func TestDiff_AllocationUpdateAttributesOldAndNewWindows(t *testing.T) {
	// GIVEN: Ben's February allocation moves to March
	log := changes(scenario.AllocationUpdate{
		AllocationID: 200,
		StartDate:    scenario.Set(d("2026-03-01")),
		EndDate:      scenario.Set(d("2026-03-31")),
	})

	// WHEN: The scenario is reported
	_, rows, out := run(t, baseDataset(), log)

	// THEN: February empties, March fills, and both carry the change
	assert.Equal(t, "0.00", cell(t, rows, staffing.ClientRowID(2), "Feb"))
	assert.Equal(t, "15500.00", cell(t, rows, staffing.ClientRowID(2), "Mar"))

	want := []scenario.CellKey{
		scenario.ClientCell(2, "Feb"),
		scenario.ClientCell(2, "Mar"),
		scenario.ClientCell(2, generic.ColumnTotal),
		scenario.TotalCell("Feb"),
		scenario.TotalCell("Mar"),
		scenario.TotalCell(generic.ColumnTotal),
	}
	assertKeys(t, want, out.DirtyCells())
	assertKeys(t, want, out.ProvenanceCells())
	assert.Equal(t, []string{"Allocation updated: 200"}, descriptions(out.Provenance[scenario.ClientCell(2, "Feb")]))
}

func TestDiff_ProvenanceAppendsInLogOrderWithoutDuplicates(t *testing.T) {
	// GIVEN: A second Ava allocation in January, a rate change touching
	// both, then a manual adjustment of the same cell
	log := changes(
		scenario.AllocationAdd{EngineerID: 1, ProjectID: 10, StartDate: d("2026-01-15"), EndDate: dp("2026-01-20")},
		scenario.EngineerRate{EngineerID: 1, NewDayRate: rate(1100)},
		scenario.CellAdjust{ClientID: 1, Month: "Jan", Amount: generic.MustParseDecimal("-100.50")},
	)

	// WHEN: The scenario is reported
	_, _, out := run(t, baseDataset(), log)

	// THEN: Each change annotates the cell once, in log order
	assert.Equal(t, []string{
		"Allocation added: Ava on Platform",
		"Engineer rate change: Ava -> 1100",
		"Manual cell adjustment: -100.5",
	}, descriptions(out.Provenance[scenario.ClientCell(1, "Jan")]))

	assert.Equal(t, []string{
		"Allocation added: Ava on Platform",
		"Engineer rate change: Ava -> 1100",
	}, descriptions(out.Provenance[scenario.ClientCell(1, generic.ColumnTotal)]))
}

func TestDiff_ProjectDeleteUsesBaseWindows(t *testing.T) {
	// GIVEN: Migration is deleted
	_, rows, out := run(t, baseDataset(), changes(scenario.ProjectDelete{ProjectID: 20}))

	// THEN: Beta's February revenue is gone and attributed to the delete
	assert.Equal(t, "0.00", cell(t, rows, staffing.ClientRowID(2), "Feb"))
	assert.Equal(t, []string{"Project deleted: Migration"}, descriptions(out.Provenance[scenario.ClientCell(2, "Feb")]))
	assert.True(t, out.Dirty[scenario.TotalCell("Feb")])

	// Beta still has a row.
	assert.Equal(t, "Beta", rowByID(t, rows, staffing.ClientRowID(2)).Label)
}

func TestDiff_AllocationDeleteAndProjectUpdate(t *testing.T) {
	log := changes(
		scenario.AllocationDelete{AllocationID: 100},
		scenario.ProjectUpdate{ProjectID: 20, AgreedRate: scenario.Set(*rate(700))},
	)

	_, rows, out := run(t, baseDataset(), log)

	assert.Equal(t, "0.00", cell(t, rows, staffing.ClientRowID(1), "Jan"))
	assert.Equal(t, "19600.00", cell(t, rows, staffing.ClientRowID(2), "Feb"))
	assert.Equal(t, []string{"Allocation deleted: 100"}, descriptions(out.Provenance[scenario.TotalCell("Jan")]))
	assert.Equal(t, []string{"Project updated: Migration"}, descriptions(out.Provenance[scenario.TotalCell("Feb")]))
	assert.Equal(t, []string{
		"Allocation deleted: 100",
		"Project updated: Migration",
	}, descriptions(out.Provenance[scenario.TotalCell(generic.ColumnTotal)]))
}

func TestDiff_ProjectAddAloneAttributesNothing(t *testing.T) {
	log := changes(scenario.ProjectAdd{ClientID: 2, Name: "Empty", StartDate: d("2026-01-01")})

	_, rows, out := run(t, baseDataset(), log)

	assert.Empty(t, out.Dirty)
	assert.Empty(t, out.Provenance)
	assert.True(t, rowByID(t, rows, staffing.ProjectRowID(-1)).Tentative)
}

func TestDiff_WindowsOutsideYearAreIgnored(t *testing.T) {
	log := changes(scenario.AllocationAdd{EngineerID: 2, ProjectID: 10, StartDate: d("2027-02-01"), EndDate: dp("2027-02-10")})

	_, _, out := run(t, baseDataset(), log)

	assert.Empty(t, out.Dirty)
	assert.Empty(t, out.Provenance)
}

func TestOutcome_DirtyCellsOrder(t *testing.T) {
	out := scenario.Outcome{Dirty: map[scenario.CellKey]bool{}}
	out.Dirty[scenario.TotalCell(generic.ColumnTotal)] = true
	out.Dirty[scenario.ClientCell(2, "Mar")] = true
	out.Dirty[scenario.ClientCell(1, generic.ColumnTotal)] = true
	out.Dirty[scenario.ClientCell(1, "Feb")] = true

	assert.Equal(t, []scenario.CellKey{
		scenario.ClientCell(1, "Feb"),
		scenario.ClientCell(1, generic.ColumnTotal),
		scenario.ClientCell(2, "Mar"),
		scenario.TotalCell(generic.ColumnTotal),
	}, out.DirtyCells())
	assert.Equal(t, "client:1/Feb", scenario.ClientCell(1, "Feb").String())
	assert.Equal(t, "total/Dec", scenario.TotalCell("Dec").String())
}
