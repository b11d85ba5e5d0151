/*
Package staffing models engineers allocated to client projects and computes
the revenue those allocations bill.

PURPOSE:
  Domain types (Engineer, Client, Project, Allocation), the revenue
  calculator, the client -> project -> allocation rollup, and the flat
  point-in-time listings. Everything here is a pure function of a Dataset;
  persistence is a collaborator behind DatasetReader.

KEY CONCEPTS IN THIS FILE (types.go):
  - Status: confirmed or provisional (at risk)
  - Effective rate: project agreed rate, else engineer day rate, else none
  - Dataset: a snapshot of all four entity sets, deep-copyable

SEE ALSO:
  - revenue.go: Prorating day rates over windows
  - rollup.go: Hierarchical report rows
  - reports.go: Point-in-time listings
  - scenario/materialize.go: Builds modified Datasets from change logs
*/
package staffing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/staffing-engine/generic"
)

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusConfirmed   Status = "confirmed"
	StatusProvisional Status = "provisional"
)

func (s Status) Valid() bool {
	return s == StatusConfirmed || s == StatusProvisional
}

// ParseStatus accepts "" as confirmed.
func ParseStatus(s string) (Status, error) {
	if s == "" {
		return StatusConfirmed, nil
	}
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("status %q must be confirmed or provisional: %w", s, generic.ErrInvalidInput)
	}
	return st, nil
}

// =============================================================================
// ENTITIES
// =============================================================================

type Engineer struct {
	ID      int64
	Name    string
	Level   int              // 1..5
	DayRate *decimal.Decimal // nil = no personal rate
	Cohort  int              // 1..8, irrelevant to revenue
	Active  bool
}

type Client struct {
	ID   int64
	Name string
}

// Contact is a person at a client. Persistence only.
type Contact struct {
	ID       int64
	ClientID int64
	Name     string
	Email    string
	Phone    string
}

type Project struct {
	ID         int64
	ClientID   int64
	Name       string
	Start      generic.Date
	End        *generic.Date    // nil = open-ended
	AgreedRate *decimal.Decimal // overrides engineer day rates
	Status     Status
	Tentative  bool // added inside a scenario, never persisted
}

func (p Project) Provisional() bool { return p.Status == StatusProvisional }

// EndOr returns the end date, or fallback for an open-ended project.
func (p Project) EndOr(fallback generic.Date) generic.Date {
	if p.End == nil {
		return fallback
	}
	return *p.End
}

type Allocation struct {
	ID         int64
	EngineerID int64
	ProjectID  int64
	Start      generic.Date
	End        *generic.Date // nil = open-ended
	Status     Status
}

func (a Allocation) Provisional() bool { return a.Status == StatusProvisional }

// CurrentAt reports start <= d and (open or end >= d).
func (a Allocation) CurrentAt(d generic.Date) bool {
	return a.Start.BeforeOrEqual(d) && (a.End == nil || a.End.AfterOrEqual(d))
}

// Scenario names a change log. Its entities live only in memory.
type Scenario struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// =============================================================================
// DATASET
// =============================================================================

// Dataset is an unfiltered snapshot of every entity. Filtering is the
// aggregator's job, not the reader's.
type Dataset struct {
	Clients     []Client
	Projects    []Project
	Engineers   []Engineer
	Allocations []Allocation
}

// DatasetReader loads the base snapshot.
type DatasetReader interface {
	LoadDataset(ctx context.Context) (*Dataset, error)
}

// ScenarioStore holds scenario headers. The change logs live behind
// generic.LogStore, keyed by scenario id.
type ScenarioStore interface {
	CreateScenario(ctx context.Context, name string) (Scenario, error)
	ListScenarios(ctx context.Context) ([]Scenario, error)
	GetScenario(ctx context.Context, id int64) (Scenario, error)
}

// Clone returns a deep copy; no pointer is shared with d.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{
		Clients:     append([]Client(nil), d.Clients...),
		Projects:    make([]Project, len(d.Projects)),
		Engineers:   make([]Engineer, len(d.Engineers)),
		Allocations: make([]Allocation, len(d.Allocations)),
	}
	for i, p := range d.Projects {
		p.End = cloneDate(p.End)
		p.AgreedRate = cloneDecimal(p.AgreedRate)
		out.Projects[i] = p
	}
	for i, e := range d.Engineers {
		e.DayRate = cloneDecimal(e.DayRate)
		out.Engineers[i] = e
	}
	for i, a := range d.Allocations {
		a.End = cloneDate(a.End)
		out.Allocations[i] = a
	}
	return out
}

func cloneDate(d *generic.Date) *generic.Date {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

// Index gives id lookups over a Dataset. Pointers refer into the Dataset.
type Index struct {
	Clients   map[int64]*Client
	Projects  map[int64]*Project
	Engineers map[int64]*Engineer
}

func (d *Dataset) Index() Index {
	ix := Index{
		Clients:   make(map[int64]*Client, len(d.Clients)),
		Projects:  make(map[int64]*Project, len(d.Projects)),
		Engineers: make(map[int64]*Engineer, len(d.Engineers)),
	}
	for i := range d.Clients {
		ix.Clients[d.Clients[i].ID] = &d.Clients[i]
	}
	for i := range d.Projects {
		ix.Projects[d.Projects[i].ID] = &d.Projects[i]
	}
	for i := range d.Engineers {
		ix.Engineers[d.Engineers[i].ID] = &d.Engineers[i]
	}
	return ix
}

// EffectiveRate is the project's agreed rate if set, else the engineer's
// day rate. nil means the allocation bills nothing.
func (ix Index) EffectiveRate(a Allocation) *decimal.Decimal {
	if p, ok := ix.Projects[a.ProjectID]; ok && p.AgreedRate != nil {
		return p.AgreedRate
	}
	if e, ok := ix.Engineers[a.EngineerID]; ok && e.DayRate != nil {
		return e.DayRate
	}
	return nil
}

// visible applies the provisional filter to an allocation and its project.
func (ix Index) visible(a Allocation, includeProvisional bool) (*Project, bool) {
	p, ok := ix.Projects[a.ProjectID]
	if !ok {
		return nil, false
	}
	if !includeProvisional && (p.Provisional() || a.Provisional()) {
		return p, false
	}
	return p, true
}
