package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/warp/staffing-engine/export"
	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/staffing"
)

// =============================================================================
// REPORT PARAMETERS
// =============================================================================
// Every report reads the same query parameters; absent ones fall back to
// the configured presentation defaults.
//
//   as_of                YYYY-MM-DD, default today
//   within               days, default reports.ending_within_days
//   include_provisional  bool, default reports.include_provisional
//   year                 default the current year

type reportParams struct {
	AsOf               generic.Date
	Within             int
	Year               int
	IncludeProvisional bool
}

func (h *Handler) reportParams(r *http.Request) (reportParams, error) {
	today := h.Today()
	p := reportParams{
		AsOf:               today,
		Within:             h.Reports.EndingWithinDays,
		Year:               today.Year(),
		IncludeProvisional: h.Reports.IncludeProvisional,
	}
	q := r.URL.Query()
	if v := q.Get("as_of"); v != "" {
		d, err := generic.ParseDate(v)
		if err != nil {
			return p, fmt.Errorf("as_of: %w", generic.ErrInvalidInput)
		}
		p.AsOf = d
	}
	if v := q.Get("within"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return p, fmt.Errorf("within %q: %w", v, generic.ErrInvalidInput)
		}
		p.Within = n
	}
	if v := q.Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 9999 {
			return p, fmt.Errorf("year %q: %w", v, generic.ErrInvalidInput)
		}
		p.Year = n
	}
	if v := q.Get("include_provisional"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, fmt.Errorf("include_provisional %q: %w", v, generic.ErrInvalidInput)
		}
		p.IncludeProvisional = b
	}
	return p, nil
}

// withDataset parses the parameters and loads the base snapshot, writing
// the error response itself when either fails.
func (h *Handler) withDataset(w http.ResponseWriter, r *http.Request, fn func(*staffing.Dataset, reportParams)) {
	p, err := h.reportParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid report parameters", err)
		return
	}
	ds, err := h.Store.LoadDataset(r.Context())
	if err != nil {
		h.writeStoreError(w, "Failed to load data", err)
		return
	}
	fn(ds, p)
}

// =============================================================================
// POINT-IN-TIME LISTINGS
// =============================================================================

// ReportUnallocated lists active engineers with nothing current at as_of.
func (h *Handler) ReportUnallocated(w http.ResponseWriter, r *http.Request) {
	h.withDataset(w, r, func(ds *staffing.Dataset, p reportParams) {
		engineers := staffing.Unallocated(ds, p.AsOf, p.IncludeProvisional)
		dtos := make([]EngineerDTO, len(engineers))
		for i, e := range engineers {
			dtos[i] = toEngineerDTO(e)
		}
		writeJSON(w, http.StatusOK, dtos)
	})
}

// ReportAllocations lists allocations current at as_of.
func (h *Handler) ReportAllocations(w http.ResponseWriter, r *http.Request) {
	h.withDataset(w, r, func(ds *staffing.Dataset, p reportParams) {
		views := staffing.CurrentAllocations(ds, p.AsOf, p.IncludeProvisional)
		dtos := make([]AllocationViewDTO, len(views))
		for i, v := range views {
			dtos[i] = AllocationViewDTO{
				AllocationDTO: toAllocationDTO(v.Allocation),
				EngineerName:  v.EngineerName,
				ProjectName:   v.ProjectName,
				ClientName:    v.ClientName,
				ProjectStatus: string(v.ProjectStatus),
				Rate:          moneyPtr(v.Rate),
			}
		}
		writeJSON(w, http.StatusOK, dtos)
	})
}

// ReportProjectsEnding lists projects ending within the horizon.
func (h *Handler) ReportProjectsEnding(w http.ResponseWriter, r *http.Request) {
	h.withDataset(w, r, func(ds *staffing.Dataset, p reportParams) {
		writeJSON(w, http.StatusOK, toProjectViewDTOs(staffing.ProjectsEndingSoon(ds, p.AsOf, p.Within, p.IncludeProvisional)))
	})
}

// ReportProjectsEndingDetails adds allocations and billing to the ending list.
func (h *Handler) ReportProjectsEndingDetails(w http.ResponseWriter, r *http.Request) {
	h.withDataset(w, r, func(ds *staffing.Dataset, p reportParams) {
		details := staffing.ProjectsEndingWithDetails(ds, p.AsOf, p.Within, p.IncludeProvisional)
		dtos := make([]ProjectEndingDTO, len(details))
		for i, d := range details {
			allocs := d.Allocations
			if allocs == nil {
				allocs = []string{}
			}
			dtos[i] = ProjectEndingDTO{
				ProjectViewDTO: toProjectViewDTO(d.ProjectView),
				Allocations:    allocs,
				ToDate:         money(d.ToDate),
				Total:          money(d.Total),
			}
		}
		writeJSON(w, http.StatusOK, dtos)
	})
}

// ReportProjectsWithoutAllocations lists projects nobody is booked on.
func (h *Handler) ReportProjectsWithoutAllocations(w http.ResponseWriter, r *http.Request) {
	h.withDataset(w, r, func(ds *staffing.Dataset, p reportParams) {
		writeJSON(w, http.StatusOK, toProjectViewDTOs(staffing.ProjectsWithoutAllocations(ds, p.IncludeProvisional)))
	})
}

// =============================================================================
// REVENUE
// =============================================================================

func (h *Handler) revenueReport(by func(*staffing.Dataset, generic.Date, bool) []staffing.RevenueLine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.withDataset(w, r, func(ds *staffing.Dataset, p reportParams) {
			lines := by(ds, p.AsOf, p.IncludeProvisional)
			dtos := make([]RevenueLineDTO, len(lines))
			for i, l := range lines {
				dtos[i] = RevenueLineDTO{ID: l.ID, Name: l.Name, ToDate: money(l.ToDate), Total: money(l.Total)}
			}
			writeJSON(w, http.StatusOK, dtos)
		})
	}
}

// ReportRollup returns the client -> project -> allocation snapshot rollup.
func (h *Handler) ReportRollup(w http.ResponseWriter, r *http.Request) {
	h.withDataset(w, r, func(ds *staffing.Dataset, p reportParams) {
		rows := staffing.Aggregate(ds, staffing.Query{
			Mode:               staffing.ModeSnapshot,
			AsOf:               p.AsOf,
			IncludeProvisional: p.IncludeProvisional,
		})
		writeJSON(w, http.StatusOK, toRowDTOs(rows, staffing.ModeSnapshot))
	})
}

func (h *Handler) yearRows(ds *staffing.Dataset, p reportParams) []staffing.Row {
	return staffing.Aggregate(ds, staffing.Query{
		Mode:               staffing.ModeYear,
		Year:               p.Year,
		IncludeProvisional: p.IncludeProvisional,
	})
}

// ReportClientRevenueYear returns the month-bucketed rollup with TOTAL.
func (h *Handler) ReportClientRevenueYear(w http.ResponseWriter, r *http.Request) {
	h.withDataset(w, r, func(ds *staffing.Dataset, p reportParams) {
		writeJSON(w, http.StatusOK, map[string]any{
			"year":    p.Year,
			"columns": generic.Columns(),
			"rows":    toRowDTOs(h.yearRows(ds, p), staffing.ModeYear),
		})
	})
}

// ExportClientRevenueYear streams the year rollup as a spreadsheet.
func (h *Handler) ExportClientRevenueYear(w http.ResponseWriter, r *http.Request) {
	h.withDataset(w, r, func(ds *staffing.Dataset, p reportParams) {
		sheet := export.YearSheet{Name: fmt.Sprintf("Revenue %d", p.Year), Rows: h.yearRows(ds, p)}
		h.writeXLSX(w, fmt.Sprintf("client-revenue-%d.xlsx", p.Year), sheet)
	})
}

// =============================================================================
// ALERTS
// =============================================================================

// GetEndingAlerts returns the monitor's latest check, running one if none
// has happened yet.
func (h *Handler) GetEndingAlerts(w http.ResponseWriter, r *http.Request) {
	check := h.Monitor.Last()
	if check == nil {
		var err error
		if check, err = h.Monitor.RunNow(r.Context()); err != nil {
			h.writeStoreError(w, "Failed to check projects", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, EndingCheckDTO{
		CheckedAt: check.CheckedAt.Format(time.RFC3339),
		AsOf:      check.AsOf.String(),
		Projects:  toProjectViewDTOs(check.Projects),
		New:       check.New,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func toProjectViewDTOs(views []staffing.ProjectView) []ProjectViewDTO {
	dtos := make([]ProjectViewDTO, len(views))
	for i, v := range views {
		dtos[i] = toProjectViewDTO(v)
	}
	return dtos
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *Handler) writeXLSX(w http.ResponseWriter, filename string, sheets ...export.YearSheet) {
	var buf bytes.Buffer
	if err := export.WriteYear(&buf, sheets...); err != nil {
		h.writeStoreError(w, "Failed to build workbook", err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
