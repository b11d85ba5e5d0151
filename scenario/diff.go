package scenario

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/staffing"
)

// =============================================================================
// CELLS
// =============================================================================

// CellKey addresses one year-report cell: a client row or the TOTAL row,
// and a month column or generic.ColumnTotal.
type CellKey struct {
	ClientID int64 // ignored when Total is set
	Total    bool
	Column   string
}

func ClientCell(clientID int64, column string) CellKey {
	return CellKey{ClientID: clientID, Column: column}
}

func TotalCell(column string) CellKey {
	return CellKey{Total: true, Column: column}
}

func (k CellKey) String() string {
	if k.Total {
		return "total/" + k.Column
	}
	return fmt.Sprintf("client:%d/%s", k.ClientID, k.Column)
}

// Attribution links a cell to the change that may have moved it.
type Attribution struct {
	Seq         int64
	Kind        Kind
	Description string
}

// Outcome is the read-side comparison of a scenario against its baseline.
type Outcome struct {
	Dirty      map[CellKey]bool
	Provenance map[CellKey][]Attribution
}

// DirtyCells returns the dirty keys in report order: clients by id, then
// TOTAL, months before total.
func (o Outcome) DirtyCells() []CellKey {
	keys := make([]CellKey, 0, len(o.Dirty))
	for k := range o.Dirty {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

// ProvenanceCells returns every attributed key in report order.
func (o Outcome) ProvenanceCells() []CellKey {
	keys := make([]CellKey, 0, len(o.Provenance))
	for k := range o.Provenance {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

func sortKeys(keys []CellKey) {
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Total != b.Total {
			return !a.Total
		}
		if a.ClientID != b.ClientID {
			return a.ClientID < b.ClientID
		}
		ai, _ := generic.ColumnIndex(a.Column)
		bi, _ := generic.ColumnIndex(b.Column)
		return ai < bi
	})
}

// =============================================================================
// DIFF
// =============================================================================

type DiffInput struct {
	Baseline []staffing.Row // year-mode rows of the base dataset
	Scenario []staffing.Row // year-mode rows of the materialized dataset
	Changes  []Change
	Base     *staffing.Dataset
	Result   Result
	Year     int
}

// Diff marks every client/TOTAL cell whose value moved and attributes each
// change to the cells it could have touched. It mutates nothing.
func Diff(in DiffInput) Outcome {
	return Outcome{
		Dirty:      dirtyCells(in.Baseline, in.Scenario),
		Provenance: provenance(in),
	}
}

func dirtyCells(baseline, scenario []staffing.Row) map[CellKey]bool {
	before := summaryCells(baseline)
	after := summaryCells(scenario)
	dirty := make(map[CellKey]bool)
	for k, v := range after {
		if !v.Equal(before[k]) {
			dirty[k] = true
		}
	}
	for k, v := range before {
		if _, ok := after[k]; !ok && !v.IsZero() {
			dirty[k] = true
		}
	}
	return dirty
}

// summaryCells flattens client and TOTAL rows into cells.
func summaryCells(rows []staffing.Row) map[CellKey]decimal.Decimal {
	cells := make(map[CellKey]decimal.Decimal)
	for _, r := range rows {
		var key func(string) CellKey
		switch r.Type {
		case staffing.RowClient:
			id := r.ClientID
			key = func(col string) CellKey { return ClientCell(id, col) }
		case staffing.RowTotal:
			key = TotalCell
		default:
			continue
		}
		for i, m := range generic.MonthColumns {
			cells[key(m)] = r.Months[i]
		}
		cells[key(generic.ColumnTotal)] = r.Total
	}
	return cells
}

// =============================================================================
// PROVENANCE
// =============================================================================

type tracker struct {
	year    int
	cells   map[CellKey][]Attribution
	current map[CellKey]bool // cells already annotated by the current change
	attr    Attribution
}

func (t *tracker) begin(ch Change, desc string) {
	t.current = make(map[CellKey]bool)
	t.attr = Attribution{Seq: ch.Seq, Kind: ch.Kind, Description: desc}
}

func (t *tracker) mark(k CellKey) {
	if t.current[k] {
		return
	}
	t.current[k] = true
	t.cells[k] = append(t.cells[k], t.attr)
}

// window attributes an allocation window under clientID: each touched
// month, the client's total, and the TOTAL-row mirrors of both.
func (t *tracker) window(clientID int64, start generic.Date, end *generic.Date) {
	months := staffing.TouchedMonths(start, end, t.year)
	if len(months) == 0 {
		return
	}
	for _, m := range months {
		col := generic.MonthColumns[m]
		t.mark(ClientCell(clientID, col))
		t.mark(TotalCell(col))
	}
	t.mark(ClientCell(clientID, generic.ColumnTotal))
	t.mark(TotalCell(generic.ColumnTotal))
}

func provenance(in DiffInput) map[CellKey][]Attribution {
	t := &tracker{year: in.Year, cells: make(map[CellKey][]Attribution)}
	base := in.Base.Index()
	scen := in.Result.Dataset.Index()

	baseAllocs := make(map[int64]staffing.Allocation, len(in.Base.Allocations))
	for _, a := range in.Base.Allocations {
		baseAllocs[a.ID] = a
	}
	scenAllocs := make(map[int64]staffing.Allocation, len(in.Result.Dataset.Allocations))
	for _, a := range in.Result.Dataset.Allocations {
		scenAllocs[a.ID] = a
	}

	engineerName := func(ix staffing.Index, id int64) string {
		if e, ok := ix.Engineers[id]; ok {
			return e.Name
		}
		return fmt.Sprintf("engineer %d", id)
	}

	for _, ch := range in.Changes {
		switch p := ch.Payload.(type) {
		case EngineerRate:
			t.begin(ch, fmt.Sprintf("Engineer rate change: %s -> %s", engineerName(scen, p.EngineerID), formatRate(p.NewDayRate)))
			for _, a := range in.Result.Dataset.Allocations {
				if a.EngineerID != p.EngineerID {
					continue
				}
				if proj, ok := scen.Projects[a.ProjectID]; ok {
					t.window(proj.ClientID, a.Start, a.End)
				}
			}

		case AllocationAdd:
			start, end, projectID := p.StartDate, p.EndDate, p.ProjectID
			if a, ok := scenAllocs[in.Result.Assigned[ch.Seq]]; ok {
				start, end, projectID = a.Start, a.End, a.ProjectID
			}
			proj, ok := scen.Projects[projectID]
			if !ok {
				continue
			}
			t.begin(ch, fmt.Sprintf("Allocation added: %s on %s", engineerName(scen, p.EngineerID), proj.Name))
			t.window(proj.ClientID, start, end)

		case AllocationUpdate:
			t.begin(ch, fmt.Sprintf("Allocation updated: %d", p.AllocationID))
			if a, ok := baseAllocs[p.AllocationID]; ok {
				if proj, ok := base.Projects[a.ProjectID]; ok {
					t.window(proj.ClientID, a.Start, a.End)
				}
			}
			if a, ok := scenAllocs[p.AllocationID]; ok {
				if proj, ok := scen.Projects[a.ProjectID]; ok {
					t.window(proj.ClientID, a.Start, a.End)
				}
			}

		case AllocationDelete:
			a, ok := baseAllocs[p.AllocationID]
			if !ok {
				continue
			}
			proj, ok := base.Projects[a.ProjectID]
			if !ok {
				continue
			}
			t.begin(ch, fmt.Sprintf("Allocation deleted: %d", p.AllocationID))
			t.window(proj.ClientID, a.Start, a.End)

		case ProjectUpdate:
			proj, ok := scen.Projects[p.ProjectID]
			if !ok {
				continue
			}
			// Attributed under the project's client at the end of the
			// replay; cells of a previous client are not re-attributed.
			t.begin(ch, fmt.Sprintf("Project updated: %s", proj.Name))
			for _, a := range in.Result.Dataset.Allocations {
				if a.ProjectID == p.ProjectID {
					t.window(proj.ClientID, a.Start, a.End)
				}
			}

		case ProjectDelete:
			proj, ok := base.Projects[p.ProjectID]
			if !ok {
				continue
			}
			t.begin(ch, fmt.Sprintf("Project deleted: %s", proj.Name))
			for _, a := range in.Base.Allocations {
				if a.ProjectID == p.ProjectID {
					t.window(proj.ClientID, a.Start, a.End)
				}
			}

		case CellAdjust:
			if _, ok := generic.ColumnIndex(p.Month); !ok {
				continue
			}
			t.begin(ch, fmt.Sprintf("Manual cell adjustment: %s", p.Amount.String()))
			t.mark(ClientCell(p.ClientID, p.Month))
			t.mark(TotalCell(p.Month))

		case ProjectAdd:
			// Only allocations on the new project move cells; those are
			// attributed by their own allocation_add changes.
		}
	}
	return t.cells
}

func formatRate(d *decimal.Decimal) string {
	if d == nil {
		return "none"
	}
	return d.String()
}
