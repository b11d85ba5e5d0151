/*
scenarios_test.go - HTTP tests for scenarios and demo data

Tests for:
- Creating scenarios and appending validated changes
- Idempotency conflicts
- Scenario year report with dirty cells and provenance
- Workbook export
- Demo load and reset
*/
package api

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func (s *testServer) createScenario(t *testing.T, name string) ScenarioDTO {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/scenarios", map[string]any{"name": name})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[ScenarioDTO](t, rec)
}

func TestScenario_AppendChange(t *testing.T) {
	// GIVEN: A scenario over the seeded data
	s := newTestServer(t)
	s.seed(t)
	sc := s.createScenario(t, "Rate review")

	// WHEN: A rate change is appended with a key
	body := map[string]any{
		"kind":            "engineer_rate",
		"payload":         map[string]any{"engineer_id": 1, "new_day_rate": 1200},
		"idempotency_key": "rate-1",
	}
	rec := s.do(t, http.MethodPost, "/api/scenarios/1/changes", body)

	// THEN: It is recorded with the first sequence number
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	change := decodeBody[ChangeDTO](t, rec)
	assert.Equal(t, "engineer_rate", change.Kind)
	assert.Equal(t, "rate-1", change.IdempotencyKey)
	assert.Equal(t, int64(1), sc.ID)

	// Replaying the same key conflicts
	rec = s.do(t, http.MethodPost, "/api/scenarios/1/changes", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	changes := decodeBody[[]ChangeDTO](t, s.do(t, http.MethodGet, "/api/scenarios/1/changes", nil))
	assert.Len(t, changes, 1)
}

func TestScenario_AppendChangeRejected(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)
	s.createScenario(t, "Broken")

	tests := []struct {
		name   string
		path   string
		body   map[string]any
		status int
	}{
		{"unknown kind", "/api/scenarios/1/changes", map[string]any{
			"kind": "engineer_hire", "payload": map[string]any{"name": "Zed"},
		}, http.StatusBadRequest},
		{"bad month", "/api/scenarios/1/changes", map[string]any{
			"kind": "cell_adjust", "payload": map[string]any{"client_id": 1, "month": "Smarch", "amount": 5},
		}, http.StatusBadRequest},
		{"missing payload", "/api/scenarios/1/changes", map[string]any{
			"kind": "project_delete",
		}, http.StatusBadRequest},
		{"unknown scenario", "/api/scenarios/9/changes", map[string]any{
			"kind": "project_delete", "payload": map[string]any{"project_id": 1},
		}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	changes := decodeBody[[]ChangeDTO](t, s.do(t, http.MethodGet, "/api/scenarios/1/changes", nil))
	assert.Empty(t, changes, "rejected changes are not recorded")
}

func TestScenario_Report(t *testing.T) {
	// GIVEN: A scenario raising Ava's rate to 1200
	s := newTestServer(t)
	s.seed(t)
	s.createScenario(t, "Rate review")
	rec := s.do(t, http.MethodPost, "/api/scenarios/1/changes", map[string]any{
		"kind":    "engineer_rate",
		"payload": map[string]any{"engineer_id": 1, "new_day_rate": 1200},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// WHEN: The 2026 report is requested
	rec = s.do(t, http.MethodGet, "/api/scenarios/1/report?year=2026", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rep := decodeBody[YearReportDTO](t, rec)

	// THEN: January moves from 31000 to 37200 for Acme and TOTAL
	assert.Equal(t, "Rate review", rep.Scenario.Name)
	require.Len(t, rep.Rows, 4)
	assert.Equal(t, "31000.00", rep.Baseline[0].Months[0])
	assert.Equal(t, "37200.00", rep.Rows[0].Months[0])
	assert.Equal(t, "37200.00", rep.Rows[3].Total)

	one := int64(1)
	assert.Equal(t, []CellDTO{
		{ClientID: &one, Column: "Jan"},
		{ClientID: &one, Column: "total"},
		{ClientID: nil, Column: "Jan"},
		{ClientID: nil, Column: "total"},
	}, rep.Dirty)

	require.NotEmpty(t, rep.Provenance)
	first := rep.Provenance[0]
	assert.Equal(t, "Jan", first.Column)
	require.Len(t, first.Changes, 1)
	assert.Equal(t, "engineer_rate", first.Changes[0].Kind)
	assert.Equal(t, "Engineer rate change: Ava -> 1200", first.Changes[0].Description)
	assert.Empty(t, rep.Skipped)

	rec = s.do(t, http.MethodGet, "/api/scenarios/5/report", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScenario_Export(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)
	s.createScenario(t, "Rate review")
	s.do(t, http.MethodPost, "/api/scenarios/1/changes", map[string]any{
		"kind":    "cell_adjust",
		"payload": map[string]any{"client_id": 1, "month": "Feb", "amount": "250.50"},
	})

	rec := s.do(t, http.MethodGet, "/api/scenarios/1/report.xlsx?year=2026", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Baseline", "Scenario"}, f.GetSheetList())
	v, err := f.GetCellValue("Scenario", "C2", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "250.5", v)
}

func TestScenario_ListNewestFirst(t *testing.T) {
	s := newTestServer(t)
	s.createScenario(t, "First")
	s.createScenario(t, "Second")

	list := decodeBody[[]ScenarioDTO](t, s.do(t, http.MethodGet, "/api/scenarios", nil))

	require.Len(t, list, 2)
	assert.Equal(t, "Second", list[0].Name)

	rec := s.do(t, http.MethodPost, "/api/scenarios", map[string]any{"name": "First"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/scenarios", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDemo_LoadAndReset(t *testing.T) {
	// GIVEN: Existing data
	s := newTestServer(t)
	s.seed(t)

	// WHEN: The demo is loaded twice
	for i := 0; i < 2; i++ {
		rec := s.do(t, http.MethodPost, "/api/demo/load", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	// THEN: The store holds exactly the demo data
	clients := decodeBody[[]ClientDTO](t, s.do(t, http.MethodGet, "/api/clients", nil))
	assert.Len(t, clients, 3)
	scenarios := decodeBody[[]ScenarioDTO](t, s.do(t, http.MethodGet, "/api/scenarios", nil))
	assert.Len(t, scenarios, 2)

	// WHEN: Reset
	rec := s.do(t, http.MethodPost, "/api/demo/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// THEN: Everything is gone
	clients = decodeBody[[]ClientDTO](t, s.do(t, http.MethodGet, "/api/clients", nil))
	assert.Empty(t, clients)
}
