package scenario_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/scenario"
	"github.com/warp/staffing-engine/staffing"
)

func TestMaterialize_EmptyLogMatchesBaseline(t *testing.T) {
	// GIVEN: A scenario with no changes
	base := baseDataset()

	// WHEN: It is materialized and diffed
	res, rows, out := run(t, base, nil)

	// THEN: The dataset and report equal the baseline, nothing is dirty
	assert.Equal(t, base.Projects, res.Dataset.Projects)
	assert.Equal(t, base.Allocations, res.Dataset.Allocations)
	assert.Empty(t, out.Dirty)
	assert.Empty(t, out.Provenance)
	assert.Equal(t, "45000.00", cell(t, rows, staffing.TotalRowID, generic.ColumnTotal))
}

func TestMaterialize_NeverMutatesBase(t *testing.T) {
	// GIVEN: A log touching every entity type
	base := baseDataset()
	log := changes(
		scenario.EngineerRate{EngineerID: 1, NewDayRate: rate(2000)},
		scenario.ProjectUpdate{ProjectID: 20, EndDate: scenario.Clear[generic.Date]()},
		scenario.AllocationUpdate{AllocationID: 100, EndDate: scenario.Set(d("2026-01-10"))},
		scenario.ProjectDelete{ProjectID: 10},
	)

	// WHEN: The log is replayed
	scenario.Materialize(base, log)

	// THEN: The base dataset is untouched
	assert.Equal(t, "1000", base.Engineers[0].DayRate.String())
	require.NotNil(t, base.Projects[1].End)
	assert.Equal(t, "2026-06-30", base.Projects[1].End.String())
	assert.Equal(t, "2026-01-31", base.Allocations[0].End.String())
	assert.Len(t, base.Projects, 2)
	assert.Len(t, base.Allocations, 2)
}

func TestMaterialize_ProjectDeleteCascades(t *testing.T) {
	// GIVEN: An allocation added to a project which is then deleted
	log := changes(
		scenario.AllocationAdd{EngineerID: 2, ProjectID: 10, StartDate: d("2026-03-01"), EndDate: dp("2026-03-31")},
		scenario.ProjectDelete{ProjectID: 10},
	)

	// WHEN: Materialized
	res := scenario.Materialize(baseDataset(), log)

	// THEN: Neither the base nor the added allocation survive
	_, ok := projectByID(res.Dataset, 10)
	assert.False(t, ok)
	for _, a := range res.Dataset.Allocations {
		assert.NotEqual(t, int64(10), a.ProjectID)
	}
	assert.Len(t, res.Dataset.Allocations, 1)
}

func TestMaterialize_AllocationOnDeletedProjectIsDropped(t *testing.T) {
	// GIVEN: An allocation added after its project was deleted
	log := changes(
		scenario.ProjectDelete{ProjectID: 20},
		scenario.AllocationAdd{EngineerID: 2, ProjectID: 20, StartDate: d("2026-03-01")},
	)

	// WHEN: Materialized
	res := scenario.Materialize(baseDataset(), log)

	// THEN: The output holds no dangling project reference
	ids := map[int64]bool{}
	for _, p := range res.Dataset.Projects {
		ids[p.ID] = true
	}
	for _, a := range res.Dataset.Allocations {
		assert.True(t, ids[a.ProjectID], "allocation %d references missing project", a.ID)
	}
}

func TestMaterialize_SyntheticIDsAreNegative(t *testing.T) {
	// GIVEN: A new project and an allocation on it
	log := changes(
		scenario.ProjectAdd{ClientID: 1, Name: "Pilot", StartDate: d("2026-03-01"), EndDate: dp("2026-03-31")},
		scenario.AllocationAdd{EngineerID: 1, ProjectID: -1, StartDate: d("2026-03-01"), EndDate: dp("2026-03-31")},
	)

	// WHEN: Materialized
	res, rows, _ := run(t, baseDataset(), log)

	// THEN: Both ids are negative and distinct, and the work is billed
	projectID, allocationID := res.Assigned[1], res.Assigned[2]
	assert.Equal(t, int64(-1), projectID)
	assert.Less(t, allocationID, int64(0))
	assert.NotEqual(t, projectID, allocationID)

	p, ok := projectByID(res.Dataset, projectID)
	require.True(t, ok)
	assert.True(t, p.Tentative)
	assert.Equal(t, staffing.StatusConfirmed, p.Status)

	assert.Equal(t, "31000.00", cell(t, rows, staffing.ClientRowID(1), "Mar"))
	assert.True(t, rowByID(t, rows, staffing.ProjectRowID(projectID)).Tentative)
}

func TestMaterialize_SyntheticIDsStayBelowExistingIDs(t *testing.T) {
	// GIVEN: A base that already holds a negative id
	base := baseDataset()
	base.Allocations[1].ID = -7

	// WHEN: An allocation is added
	res := scenario.Materialize(base, changes(
		scenario.AllocationAdd{EngineerID: 1, ProjectID: 10, StartDate: d("2026-04-01")},
	))

	// THEN: It does not collide
	assert.Equal(t, int64(-8), res.Assigned[1])
}

func TestMaterialize_AssignedIDsSurviveBaseGrowth(t *testing.T) {
	// GIVEN: A log that adds a Beta project and staffs it in March
	log := changes(
		scenario.ProjectAdd{ClientID: 2, Name: "Bid", StartDate: d("2026-01-01")},
		scenario.AllocationAdd{EngineerID: 1, ProjectID: -1, StartDate: d("2026-03-01"), EndDate: dp("2026-03-31")},
	)
	grown := baseDataset()
	grown.Projects = append(grown.Projects, staffing.Project{
		ID: 30, ClientID: 1, Name: "Portal", Start: d("2026-01-01"), Status: staffing.StatusConfirmed,
	})

	// WHEN: The same log is replayed before and after a project is persisted
	before, beforeRows, _ := run(t, baseDataset(), log)
	after, afterRows, _ := run(t, grown, log)

	// THEN: Ids, bindings and revenue are unchanged
	for _, res := range []scenario.Result{before, after} {
		assert.Equal(t, int64(-1), res.Assigned[1])
		a, ok := allocationByID(res.Dataset, res.Assigned[2])
		require.True(t, ok)
		assert.Equal(t, int64(-1), a.ProjectID)
	}
	for _, rows := range [][]staffing.Row{beforeRows, afterRows} {
		assert.Equal(t, "31000.00", cell(t, rows, staffing.ClientRowID(2), "Mar"))
		assert.Equal(t, "0.00", cell(t, rows, staffing.ClientRowID(1), "Mar"))
	}
}

func TestMaterialize_AllocationStatusDefaultsToProject(t *testing.T) {
	// GIVEN: A provisional project and an allocation without a status
	log := changes(
		scenario.ProjectAdd{ClientID: 1, Name: "Bid", StartDate: d("2026-05-01"), Status: staffing.StatusProvisional},
		scenario.AllocationAdd{EngineerID: 2, ProjectID: -1, StartDate: d("2026-05-01"), EndDate: dp("2026-05-31")},
	)

	// WHEN: Materialized
	res := scenario.Materialize(baseDataset(), log)

	// THEN: The allocation inherits the provisional status
	a, ok := allocationByID(res.Dataset, res.Assigned[2])
	require.True(t, ok)
	assert.Equal(t, staffing.StatusProvisional, a.Status)
}

func TestMaterialize_PatchSemantics(t *testing.T) {
	// GIVEN: An update that clears the end date and leaves the start alone
	log := changes(
		scenario.AllocationUpdate{AllocationID: 200, EndDate: scenario.Clear[generic.Date]()},
		scenario.ProjectUpdate{ProjectID: 10, AgreedRate: scenario.Set(*rate(1500)), Name: scenario.Set("Core")},
	)

	// WHEN: Materialized
	res := scenario.Materialize(baseDataset(), log)

	// THEN: Absent fields are kept, null clears, values set
	a, ok := allocationByID(res.Dataset, 200)
	require.True(t, ok)
	assert.Nil(t, a.End)
	assert.Equal(t, "2026-02-01", a.Start.String())
	assert.Equal(t, int64(20), a.ProjectID)

	p, ok := projectByID(res.Dataset, 10)
	require.True(t, ok)
	assert.Equal(t, "Core", p.Name)
	require.NotNil(t, p.AgreedRate)
	assert.Equal(t, "1500", p.AgreedRate.String())
	assert.Nil(t, p.End)
}

func TestMaterialize_EngineerRateCleared(t *testing.T) {
	// GIVEN: Ava's rate is removed
	_, rows, _ := run(t, baseDataset(), changes(scenario.EngineerRate{EngineerID: 1}))

	// THEN: Her work bills nothing
	assert.Equal(t, "0.00", cell(t, rows, staffing.ClientRowID(1), "Jan"))
}

func TestMaterialize_UnknownKindIsSkipped(t *testing.T) {
	// GIVEN: A log with a kind the engine does not know
	log := []scenario.Change{
		{Seq: 1, Kind: "teleport"},
		{Seq: 2, Kind: scenario.KindAllocationDelete, Payload: scenario.AllocationDelete{AllocationID: 100}},
	}

	// WHEN: Materialized
	res := scenario.Materialize(baseDataset(), log)

	// THEN: The unknown change is reported and the rest still applies
	assert.Equal(t, []int64{1}, res.Skipped)
	_, ok := allocationByID(res.Dataset, 100)
	assert.False(t, ok)
}

func TestMaterialize_ChangesOnMissingEntitiesAreNoOps(t *testing.T) {
	log := changes(
		scenario.EngineerRate{EngineerID: 99, NewDayRate: rate(1)},
		scenario.ProjectUpdate{ProjectID: 99, Name: scenario.Set("x")},
		scenario.AllocationUpdate{AllocationID: 99, EndDate: scenario.Clear[generic.Date]()},
		scenario.AllocationDelete{AllocationID: 99},
		scenario.ProjectDelete{ProjectID: 99},
	)

	res, _, out := run(t, baseDataset(), log)

	assert.Len(t, res.Dataset.Projects, 2)
	assert.Len(t, res.Dataset.Allocations, 2)
	assert.Empty(t, out.Dirty)
}

func TestMaterialize_InvertingUpdatesHaveNoEffect(t *testing.T) {
	// GIVEN: Updates that move an end date before the start date
	log := changes(
		scenario.AllocationUpdate{AllocationID: 200, EndDate: scenario.Set(d("2026-01-15"))},
		scenario.ProjectUpdate{ProjectID: 20, EndDate: scenario.Set(d("2025-12-31")), Name: scenario.Set("Renamed")},
	)

	// WHEN: Materialized
	res, rows, out := run(t, baseDataset(), log)

	// THEN: Both entities keep their ordered windows and nothing moves
	a, ok := allocationByID(res.Dataset, 200)
	require.True(t, ok)
	assert.Equal(t, "2026-02-28", a.End.String())
	p, ok := projectByID(res.Dataset, 20)
	require.True(t, ok)
	assert.Equal(t, "Migration", p.Name)
	assert.Equal(t, "2026-06-30", p.End.String())

	assert.Equal(t, "14000.00", cell(t, rows, staffing.ClientRowID(2), "Feb"))
	assert.Empty(t, out.DirtyCells())
}
