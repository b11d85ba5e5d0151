/*
Package scenario replays what-if change logs over a base dataset.

PURPOSE:
  A scenario is a named, append-only log of hypothetical edits. Nothing a
  scenario does is ever persisted as a real row: every read replays the
  whole log over a fresh copy of the base data, re-aggregates, and diffs
  the result against the baseline.

PIPELINE:
  base Dataset ----------------------------> Aggregate -> baseline rows
  base Dataset + log -> Materialize -> Dataset -> Aggregate -> scenario rows
  baseline rows + scenario rows + log -> Diff -> dirty cells + provenance

KEY CONCEPTS IN THIS FILE (change.go):
  - Kind: the change tag stored with each record
  - Typed payloads, one per kind
  - Patch[T]: tri-state field (absent / null / value) for *_update kinds

SEE ALSO:
  - materialize.go: Applies changes to a Dataset copy
  - diff.go: Dirty cells and provenance
  - engine.go: Loads, replays and reports
  - factory/change.go: Decodes stored records into Changes
*/
package scenario

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/staffing"
)

// =============================================================================
// KINDS
// =============================================================================

type Kind string

const (
	KindEngineerRate     Kind = "engineer_rate"
	KindProjectAdd       Kind = "project_add"
	KindProjectUpdate    Kind = "project_update"
	KindProjectDelete    Kind = "project_delete"
	KindAllocationAdd    Kind = "allocation_add"
	KindAllocationUpdate Kind = "allocation_update"
	KindAllocationDelete Kind = "allocation_delete"
	KindCellAdjust       Kind = "cell_adjust"
)

// Kinds lists every kind the engine applies, in documentation order.
var Kinds = []Kind{
	KindEngineerRate,
	KindProjectAdd,
	KindProjectUpdate,
	KindProjectDelete,
	KindAllocationAdd,
	KindAllocationUpdate,
	KindAllocationDelete,
	KindCellAdjust,
}

// Change is one decoded log entry. Payload is one of the payload types
// below, or nil when Kind is not recognised.
type Change struct {
	Seq     int64
	Kind    Kind
	Payload any
}

// =============================================================================
// PATCH - absent / null / value
// =============================================================================

// Patch distinguishes a field missing from an update payload (leave as is)
// from an explicit null (clear) and from a value (set).
type Patch[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func Set[T any](v T) Patch[T] { return Patch[T]{Set: true, Value: v} }

func Clear[T any]() Patch[T] { return Patch[T]{Set: true, Null: true} }

// IsZero lets `omitzero` drop absent fields when marshalling.
func (p Patch[T]) IsZero() bool { return !p.Set }

func (p Patch[T]) MarshalJSON() ([]byte, error) {
	if !p.Set || p.Null {
		return []byte("null"), nil
	}
	return json.Marshal(p.Value)
}

// UnmarshalJSON is only called for keys present in the payload.
func (p *Patch[T]) UnmarshalJSON(b []byte) error {
	p.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		p.Null = true
		return nil
	}
	return json.Unmarshal(b, &p.Value)
}

// applyOptional patches a nullable field.
func applyOptional[T any](dst **T, p Patch[T]) {
	switch {
	case !p.Set:
	case p.Null:
		*dst = nil
	default:
		v := p.Value
		*dst = &v
	}
}

// applyRequired patches a non-nullable field; null is ignored.
func applyRequired[T any](dst *T, p Patch[T]) {
	if p.Set && !p.Null {
		*dst = p.Value
	}
}

// =============================================================================
// PAYLOADS
// =============================================================================

type EngineerRate struct {
	EngineerID int64            `json:"engineer_id"`
	NewDayRate *decimal.Decimal `json:"new_day_rate"`
}

// ProjectAdd creates a tentative project. Its id is always synthetic; later
// changes refer to it by the negative id it was assigned.
type ProjectAdd struct {
	ClientID   int64            `json:"client_id"`
	Name       string           `json:"name"`
	StartDate  generic.Date     `json:"start_date"`
	EndDate    *generic.Date    `json:"end_date,omitempty"`
	AgreedRate *decimal.Decimal `json:"agreed_rate,omitempty"`
	Status     staffing.Status  `json:"status,omitempty"`
}

type ProjectUpdate struct {
	ProjectID  int64                  `json:"project_id"`
	Name       Patch[string]          `json:"name,omitzero"`
	ClientID   Patch[int64]           `json:"client_id,omitzero"`
	StartDate  Patch[generic.Date]    `json:"start_date,omitzero"`
	EndDate    Patch[generic.Date]    `json:"end_date,omitzero"`
	AgreedRate Patch[decimal.Decimal] `json:"agreed_rate,omitzero"`
	Status     Patch[staffing.Status] `json:"status,omitzero"`
}

type ProjectDelete struct {
	ProjectID int64 `json:"project_id"`
}

// AllocationAdd status defaults to the target project's status.
type AllocationAdd struct {
	EngineerID int64           `json:"engineer_id"`
	ProjectID  int64           `json:"project_id"`
	StartDate  generic.Date    `json:"start_date"`
	EndDate    *generic.Date   `json:"end_date,omitempty"`
	Status     staffing.Status `json:"status,omitempty"`
}

type AllocationUpdate struct {
	AllocationID int64                  `json:"allocation_id"`
	EngineerID   Patch[int64]           `json:"engineer_id,omitzero"`
	ProjectID    Patch[int64]           `json:"project_id,omitzero"`
	StartDate    Patch[generic.Date]    `json:"start_date,omitzero"`
	EndDate      Patch[generic.Date]    `json:"end_date,omitzero"`
	Status       Patch[staffing.Status] `json:"status,omitzero"`
}

type AllocationDelete struct {
	AllocationID int64 `json:"allocation_id"`
}

// CellAdjust adds Amount to one (client, column) cell of the year report.
type CellAdjust struct {
	ClientID int64           `json:"client_id"`
	Month    string          `json:"month"`
	Amount   decimal.Decimal `json:"amount"`
}
