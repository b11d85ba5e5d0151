/*
scenarios.go - What-if scenario endpoints and demo data loaders

PURPOSE:
  Scenarios are named, append-only change logs replayed over the current
  base data. These handlers create scenarios, append validated changes,
  and return the scenario year report with its dirty cells and per-cell
  provenance.

ENDPOINTS:
  GET    /api/scenarios                       List scenarios (newest first)
  POST   /api/scenarios                       Create scenario
  GET    /api/scenarios/{id}                  Get scenario
  GET    /api/scenarios/{id}/changes          Change log in application order
  POST   /api/scenarios/{id}/changes          Append one change
  GET    /api/scenarios/{id}/report?year=     Year report vs baseline
  GET    /api/scenarios/{id}/report.xlsx      Same, as a workbook

  POST   /api/demo/load                       Reset, then load demo data
  POST   /api/demo/reset                      Clear all data

APPENDING CHANGES:
  POST /api/scenarios/3/changes
  {"kind": "engineer_rate", "payload": {"engineer_id": 2, "new_day_rate": 900},
   "idempotency_key": "rate-review-1"}

  The payload is decoded and validated before it is stored; an unknown
  kind or a malformed payload is a 400 and nothing is recorded. Reusing
  an idempotency key is a 409.

NOTE:
  Demo loading resets the database. Only use in development/demo
  environments.

SEE ALSO:
  - scenario/engine.go: Replay, aggregate, diff
  - seed/demo.yaml: The demo data
*/
package api

import (
	"fmt"
	"net/http"

	"github.com/warp/staffing-engine/export"
	"github.com/warp/staffing-engine/scenario"
	"github.com/warp/staffing-engine/seed"
)

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns all scenarios, newest first.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	scenarios, err := h.Store.ListScenarios(r.Context())
	if err != nil {
		h.writeStoreError(w, "Failed to list scenarios", err)
		return
	}
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = toScenarioDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateScenario creates an empty scenario.
func (h *Handler) CreateScenario(w http.ResponseWriter, r *http.Request) {
	var req CreateScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	s, err := h.Store.CreateScenario(r.Context(), req.Name)
	if err != nil {
		h.writeStoreError(w, "Failed to create scenario", err)
		return
	}
	writeJSON(w, http.StatusCreated, toScenarioDTO(s))
}

// GetScenario returns a single scenario.
func (h *Handler) GetScenario(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s, err := h.Store.GetScenario(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, "Failed to get scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, toScenarioDTO(s))
}

// ListChanges returns a scenario's change log in application order.
func (h *Handler) ListChanges(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	records, err := h.Engine.Records(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, "Failed to list changes", err)
		return
	}
	dtos := make([]ChangeDTO, len(records))
	for i, rec := range records {
		dtos[i] = toChangeDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AppendChange validates and records one change.
func (h *Handler) AppendChange(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req AppendChangeRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.Engine.AppendChange(r.Context(), id, scenario.Kind(req.Kind), req.Payload, req.IdempotencyKey)
	if err != nil {
		h.writeStoreError(w, "Failed to append change", err)
		return
	}
	writeJSON(w, http.StatusCreated, toChangeDTO(rec))
}

func (h *Handler) scenarioReport(w http.ResponseWriter, r *http.Request) (*scenario.YearReport, bool) {
	id, ok := pathID(w, r)
	if !ok {
		return nil, false
	}
	p, err := h.reportParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid report parameters", err)
		return nil, false
	}
	rep, err := h.Engine.YearReport(r.Context(), id, p.Year, p.IncludeProvisional)
	if err != nil {
		h.writeStoreError(w, "Failed to compute scenario report", err)
		return nil, false
	}
	return rep, true
}

// ScenarioReport returns the scenario year report next to its baseline.
func (h *Handler) ScenarioReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.scenarioReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toYearReportDTO(rep))
}

// ExportScenarioReport returns the baseline and scenario as two sheets,
// dirty cells highlighted on the second.
func (h *Handler) ExportScenarioReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.scenarioReport(w, r)
	if !ok {
		return
	}
	h.writeXLSX(w, fmt.Sprintf("scenario-%d-%d.xlsx", rep.Scenario.ID, rep.Year),
		export.YearSheet{Name: "Baseline", Rows: rep.Baseline},
		export.YearSheet{Name: "Scenario", Rows: rep.Rows, Dirty: rep.Dirty},
	)
}

// =============================================================================
// DEMO DATA
// =============================================================================

// LoadDemo resets the database and loads the embedded demo data.
func (h *Handler) LoadDemo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doc, err := seed.Demo()
	if err != nil {
		h.writeStoreError(w, "Failed to read demo data", err)
		return
	}
	if err := h.Store.Reset(ctx); err != nil {
		h.writeStoreError(w, "Failed to reset database", err)
		return
	}
	sum, err := seed.Load(ctx, h.Store, h.Engine, doc)
	if err != nil {
		h.writeStoreError(w, "Failed to load demo data", err)
		return
	}
	h.Log.WithField("summary", sum).Info("demo data loaded")
	writeJSON(w, http.StatusOK, sum)
}

// ResetDatabase clears all data (dev only).
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		h.writeStoreError(w, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
