/*
rollup.go - Client -> project -> allocation revenue rollup

PURPOSE:
  Turns a flat Dataset into report rows. The hierarchy is built as an
  explicit tree once per call (nodes addressed by id, each owning its
  children) and flattened pre-order only at the output boundary, so the
  presentation layer sees rows linked by ParentID and nothing else.

MODES:
  ModeSnapshot: each row carries (ToDate, Total) at Query.AsOf
  ModeYear:     each row carries twelve month buckets plus Total, and a
                synthetic trailing TOTAL row sums the client rows

FILTERING:
  With IncludeProvisional=false a provisional project is dropped with all
  its allocations, and a provisional allocation is dropped even under a
  confirmed project. Dropped nodes contribute nothing to their ancestors.

ROUNDING:
  Amounts accumulate unrounded. Each cell is rounded exactly once, when
  its node is finalized. The TOTAL row sums the finalized client cells, so
  it always equals the visible column sum.

SEE ALSO:
  - revenue.go: Per-allocation amounts
  - scenario/diff.go: Compares two rollups cell by cell
*/
package staffing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/staffing-engine/generic"
	"golang.org/x/text/cases"
)

// =============================================================================
// QUERY & ROWS
// =============================================================================

type Mode int

const (
	ModeSnapshot Mode = iota
	ModeYear
)

type RowType string

const (
	RowClient     RowType = "client"
	RowProject    RowType = "project"
	RowAllocation RowType = "allocation"
	RowTotal      RowType = "total"
)

// TotalRowID is the id of the synthetic year-mode TOTAL row.
const TotalRowID = "total"

// CellAdjustment adds Amount to one client cell of a year report.
type CellAdjustment struct {
	ClientID int64
	Column   string // month name or generic.ColumnTotal
	Amount   decimal.Decimal
}

type Query struct {
	Mode               Mode
	AsOf               generic.Date // ModeSnapshot
	Year               int          // ModeYear
	IncludeProvisional bool
	Adjustments        []CellAdjustment // ModeYear only
}

// Row is one flattened report line.
type Row struct {
	ID         string
	ParentID   string
	Type       RowType
	Label      string
	AtRisk     bool
	Expandable bool
	Tentative  bool

	ClientID int64 // owning client, 0 on the TOTAL row
	EntityID int64

	ToDate decimal.Decimal
	Total  decimal.Decimal
	Months [12]decimal.Decimal
}

// Cell returns a year-mode cell by column name.
func (r Row) Cell(column string) (decimal.Decimal, error) {
	idx, ok := generic.ColumnIndex(column)
	if !ok {
		return decimal.Zero, fmt.Errorf("%q: %w", column, generic.ErrUnknownColumn)
	}
	if idx == len(r.Months) {
		return r.Total, nil
	}
	return r.Months[idx], nil
}

func ClientRowID(id int64) string     { return fmt.Sprintf("client:%d", id) }
func ProjectRowID(id int64) string    { return fmt.Sprintf("project:%d", id) }
func AllocationRowID(id int64) string { return fmt.Sprintf("allocation:%d", id) }

// AllocationLabel renders "<engineer> <start>-><end|open>".
func AllocationLabel(engineer string, a Allocation) string {
	return fmt.Sprintf("%s %s->%s", engineer, a.Start, generic.FormatOptional(a.End))
}

// =============================================================================
// TREE
// =============================================================================

type node struct {
	row      Row
	sortKey  string
	start    generic.Date
	children []*node
}

// add accumulates other's unrounded cells into n.
func (n *node) add(other *node) {
	n.row.ToDate = n.row.ToDate.Add(other.row.ToDate)
	n.row.Total = n.row.Total.Add(other.row.Total)
	for i := range n.row.Months {
		n.row.Months[i] = n.row.Months[i].Add(other.row.Months[i])
	}
}

func (n *node) finalize() {
	n.row.ToDate = generic.Round(n.row.ToDate)
	n.row.Total = generic.Round(n.row.Total)
	for i := range n.row.Months {
		n.row.Months[i] = generic.Round(n.row.Months[i])
	}
	n.row.Expandable = len(n.children) > 0
}

func newNode(row Row, sortKey string) *node {
	row.ToDate = decimal.Zero
	row.Total = decimal.Zero
	for i := range row.Months {
		row.Months[i] = decimal.Zero
	}
	return &node{row: row, sortKey: sortKey}
}

// =============================================================================
// AGGREGATE
// =============================================================================

// Aggregate builds the rollup for q. Every client is emitted, including
// clients left with no children after filtering. Projects of unknown
// clients, allocations of unknown projects and allocations of unknown
// engineers are skipped.
func Aggregate(ds *Dataset, q Query) []Row {
	if ds == nil || len(ds.Clients) == 0 {
		return nil
	}
	ix := ds.Index()
	fold := cases.Fold()

	clients := make(map[int64]*node, len(ds.Clients))
	roots := make([]*node, 0, len(ds.Clients))
	for _, c := range ds.Clients {
		n := newNode(Row{
			ID:       ClientRowID(c.ID),
			Type:     RowClient,
			Label:    c.Name,
			ClientID: c.ID,
			EntityID: c.ID,
		}, fold.String(c.Name))
		clients[c.ID] = n
		roots = append(roots, n)
	}

	projects := make(map[int64]*node, len(ds.Projects))
	for _, p := range ds.Projects {
		parent, ok := clients[p.ClientID]
		if !ok {
			continue
		}
		if !q.IncludeProvisional && p.Provisional() {
			continue
		}
		n := newNode(Row{
			ID:        ProjectRowID(p.ID),
			ParentID:  parent.row.ID,
			Type:      RowProject,
			Label:     p.Name,
			AtRisk:    p.Provisional(),
			Tentative: p.Tentative,
			ClientID:  p.ClientID,
			EntityID:  p.ID,
		}, fold.String(p.Name))
		n.start = p.Start
		projects[p.ID] = n
		parent.children = append(parent.children, n)
	}

	for _, a := range ds.Allocations {
		parent, ok := projects[a.ProjectID]
		if !ok {
			continue
		}
		if !q.IncludeProvisional && a.Provisional() {
			continue
		}
		eng, ok := ix.Engineers[a.EngineerID]
		if !ok {
			continue
		}
		proj := ix.Projects[a.ProjectID]
		label := AllocationLabel(eng.Name, a)
		n := newNode(Row{
			ID:        AllocationRowID(a.ID),
			ParentID:  parent.row.ID,
			Type:      RowAllocation,
			Label:     label,
			AtRisk:    a.Provisional() || proj.Provisional(),
			Tentative: proj.Tentative,
			ClientID:  proj.ClientID,
			EntityID:  a.ID,
		}, fold.String(label))
		n.start = a.Start

		rate := ix.EffectiveRate(a)
		switch q.Mode {
		case ModeYear:
			n.row.Months = MonthBuckets(a.Start, a.End, rate, q.Year)
			for _, m := range n.row.Months {
				n.row.Total = n.row.Total.Add(m)
			}
		default:
			n.row.ToDate, n.row.Total = Revenue(a.Start, a.End, rate, q.AsOf)
		}
		parent.children = append(parent.children, n)
	}

	// Roll up bottom-up, unrounded.
	for _, c := range roots {
		for _, p := range c.children {
			for _, a := range p.children {
				p.add(a)
			}
			c.add(p)
		}
	}

	if q.Mode == ModeYear {
		applyAdjustments(clients, q.Adjustments)
	}

	sortNodes(roots)
	rows := make([]Row, 0, len(roots)+len(projects)+len(ds.Allocations)+1)
	for _, c := range roots {
		rows = flatten(rows, c)
	}

	if q.Mode == ModeYear && len(rows) > 0 {
		rows = append(rows, totalRow(rows))
	}
	return rows
}

// applyAdjustments adds each adjustment to exactly the named client cell.
// Adjustments naming an unknown client or column are ignored.
func applyAdjustments(clients map[int64]*node, adjustments []CellAdjustment) {
	for _, adj := range adjustments {
		n, ok := clients[adj.ClientID]
		if !ok {
			continue
		}
		idx, ok := generic.ColumnIndex(adj.Column)
		if !ok {
			continue
		}
		if idx == len(n.row.Months) {
			n.row.Total = n.row.Total.Add(adj.Amount)
			continue
		}
		n.row.Months[idx] = n.row.Months[idx].Add(adj.Amount)
	}
}

func flatten(rows []Row, n *node) []Row {
	sortNodes(n.children)
	n.finalize()
	rows = append(rows, n.row)
	for _, child := range n.children {
		rows = flatten(rows, child)
	}
	return rows
}

// sortNodes orders siblings by case-folded label, then start date, then id.
func sortNodes(nodes []*node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.sortKey != b.sortKey {
			return a.sortKey < b.sortKey
		}
		if !a.start.Equal(b.start) {
			return a.start.Before(b.start)
		}
		return a.row.EntityID < b.row.EntityID
	})
}

func totalRow(rows []Row) Row {
	total := Row{
		ID:     TotalRowID,
		Type:   RowTotal,
		Label:  "TOTAL",
		ToDate: decimal.Zero,
		Total:  decimal.Zero,
	}
	for i := range total.Months {
		total.Months[i] = decimal.Zero
	}
	for _, r := range rows {
		if r.Type != RowClient {
			continue
		}
		total.ToDate = total.ToDate.Add(r.ToDate)
		total.Total = total.Total.Add(r.Total)
		for i := range total.Months {
			total.Months[i] = total.Months[i].Add(r.Months[i])
		}
	}
	return total
}
