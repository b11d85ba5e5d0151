/*
Package factory provides JSON to Go change conversion.

PURPOSE:
  Converts stored or submitted change payloads into typed scenario
  Changes. Validation happens here once, at the boundary, so a record
  that made it into a log always decodes on replay.

JSON SCHEMA (one object per kind, snake_case):
  engineer_rate      {"engineer_id": 1, "new_day_rate": "900"}
  project_add        {"client_id": 1, "name": "Pilot", "start_date": "2026-04-01",
                      "end_date": "2026-06-30", "agreed_rate": "1100",
                      "status": "provisional"}
  project_update     {"project_id": 1, "end_date": null, "agreed_rate": "1200"}
  project_delete     {"project_id": 1}
  allocation_add     {"engineer_id": 1, "project_id": 1, "start_date": "2026-04-01"}
  allocation_update  {"allocation_id": 7, "end_date": "2026-05-31"}
  allocation_delete  {"allocation_id": 7}
  cell_adjust        {"client_id": 1, "month": "Mar", "amount": "-250.50"}

  In *_update payloads an absent key leaves the field alone, null clears
  it, and a value sets it. Ids may be negative: they then refer to
  entities created earlier in the same scenario.

USAGE:
  f := NewChangeFactory()
  ch, err := f.ParseChange("allocation_add", payload)

SEE ALSO:
  - registry.go: Kind to decoder lookup
  - scenario/change.go: Payload types
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/scenario"
	"github.com/warp/staffing-engine/staffing"
)

// =============================================================================
// CHANGE FACTORY
// =============================================================================

// ChangeFactory implements scenario.Decoder.
type ChangeFactory struct{}

func NewChangeFactory() *ChangeFactory {
	return &ChangeFactory{}
}

// Decode turns a stored record into a Change. Unregistered kinds yield a
// nil Payload and no error, so replay can skip them.
func (f *ChangeFactory) Decode(rec generic.ChangeRecord) (scenario.Change, error) {
	ch := scenario.Change{Seq: rec.Seq, Kind: scenario.Kind(rec.Kind)}
	fn, ok := LookupKind(ch.Kind)
	if !ok {
		return ch, nil
	}
	p, err := fn(rec.Payload)
	if err != nil {
		return ch, err
	}
	ch.Payload = p
	return ch, nil
}

// ParseChange decodes a submitted change. Unlike Decode it rejects kinds
// that are not registered.
func (f *ChangeFactory) ParseChange(kind string, payload []byte) (scenario.Change, error) {
	ch, err := f.Decode(generic.ChangeRecord{Kind: kind, Payload: payload})
	if err != nil {
		return ch, err
	}
	if ch.Payload == nil {
		return ch, fmt.Errorf("%q: %w", kind, generic.ErrUnknownKind)
	}
	return ch, nil
}

// Encode marshals a typed payload and reports its kind.
func Encode(payload any) (scenario.Kind, json.RawMessage, error) {
	var kind scenario.Kind
	switch payload.(type) {
	case scenario.EngineerRate:
		kind = scenario.KindEngineerRate
	case scenario.ProjectAdd:
		kind = scenario.KindProjectAdd
	case scenario.ProjectUpdate:
		kind = scenario.KindProjectUpdate
	case scenario.ProjectDelete:
		kind = scenario.KindProjectDelete
	case scenario.AllocationAdd:
		kind = scenario.KindAllocationAdd
	case scenario.AllocationUpdate:
		kind = scenario.KindAllocationUpdate
	case scenario.AllocationDelete:
		kind = scenario.KindAllocationDelete
	case scenario.CellAdjust:
		kind = scenario.KindCellAdjust
	default:
		return "", nil, fmt.Errorf("%T: %w", payload, generic.ErrUnknownKind)
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	return kind, b, nil
}

// decodeAs builds a DecodeFunc for payload type T.
func decodeAs[T any](kind scenario.Kind, validate func(T) error) DecodeFunc {
	return func(payload json.RawMessage) (any, error) {
		if len(bytes.TrimSpace(payload)) == 0 {
			return nil, &generic.PayloadError{Kind: string(kind), Reason: "payload is required"}
		}
		var v T
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, &generic.PayloadError{Kind: string(kind), Reason: err.Error()}
		}
		if err := validate(v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

func invalid(kind scenario.Kind, field, reason string) error {
	return &generic.PayloadError{Kind: string(kind), Field: field, Reason: reason}
}

func requireID(kind scenario.Kind, field string, id int64) error {
	if id == 0 {
		return invalid(kind, field, "is required")
	}
	return nil
}

func checkRate(kind scenario.Kind, field string, rate *decimal.Decimal) error {
	if rate != nil && rate.IsNegative() {
		return invalid(kind, field, "must not be negative")
	}
	return nil
}

func checkWindow(kind scenario.Kind, start generic.Date, end *generic.Date) error {
	if start.IsZero() {
		return invalid(kind, "start_date", "is required")
	}
	if end != nil && end.Before(start) {
		return invalid(kind, "end_date", "must not be before start_date")
	}
	return nil
}

// checkPatchedWindow only sees the fields present in the update, so the
// ordering check applies when both ends are set together.
func checkPatchedWindow(kind scenario.Kind, start, end scenario.Patch[generic.Date]) error {
	if start.Set && start.Null {
		return invalid(kind, "start_date", "cannot be cleared")
	}
	if start.Set && end.Set && !end.Null && end.Value.Before(start.Value) {
		return invalid(kind, "end_date", "must not be before start_date")
	}
	return nil
}

func checkStatus(kind scenario.Kind, s staffing.Status) error {
	if s != "" && !s.Valid() {
		return invalid(kind, "status", fmt.Sprintf("unknown status %q", s))
	}
	return nil
}

func validateEngineerRate(p scenario.EngineerRate) error {
	if err := requireID(scenario.KindEngineerRate, "engineer_id", p.EngineerID); err != nil {
		return err
	}
	return checkRate(scenario.KindEngineerRate, "new_day_rate", p.NewDayRate)
}

func validateProjectAdd(p scenario.ProjectAdd) error {
	const k = scenario.KindProjectAdd
	if err := requireID(k, "client_id", p.ClientID); err != nil {
		return err
	}
	if p.Name == "" {
		return invalid(k, "name", "is required")
	}
	if err := checkWindow(k, p.StartDate, p.EndDate); err != nil {
		return err
	}
	if err := checkRate(k, "agreed_rate", p.AgreedRate); err != nil {
		return err
	}
	return checkStatus(k, p.Status)
}

func validateProjectUpdate(p scenario.ProjectUpdate) error {
	const k = scenario.KindProjectUpdate
	if err := requireID(k, "project_id", p.ProjectID); err != nil {
		return err
	}
	if p.Name.Set && (p.Name.Null || p.Name.Value == "") {
		return invalid(k, "name", "cannot be empty")
	}
	if p.ClientID.Set && (p.ClientID.Null || p.ClientID.Value == 0) {
		return invalid(k, "client_id", "cannot be cleared")
	}
	if err := checkPatchedWindow(k, p.StartDate, p.EndDate); err != nil {
		return err
	}
	if p.AgreedRate.Set && !p.AgreedRate.Null && p.AgreedRate.Value.IsNegative() {
		return invalid(k, "agreed_rate", "must not be negative")
	}
	if p.Status.Set && !p.Status.Null {
		return checkStatus(k, p.Status.Value)
	}
	return nil
}

func validateProjectDelete(p scenario.ProjectDelete) error {
	return requireID(scenario.KindProjectDelete, "project_id", p.ProjectID)
}

func validateAllocationAdd(p scenario.AllocationAdd) error {
	const k = scenario.KindAllocationAdd
	if err := requireID(k, "engineer_id", p.EngineerID); err != nil {
		return err
	}
	if err := requireID(k, "project_id", p.ProjectID); err != nil {
		return err
	}
	if err := checkWindow(k, p.StartDate, p.EndDate); err != nil {
		return err
	}
	return checkStatus(k, p.Status)
}

func validateAllocationUpdate(p scenario.AllocationUpdate) error {
	const k = scenario.KindAllocationUpdate
	if err := requireID(k, "allocation_id", p.AllocationID); err != nil {
		return err
	}
	if p.EngineerID.Set && (p.EngineerID.Null || p.EngineerID.Value == 0) {
		return invalid(k, "engineer_id", "cannot be cleared")
	}
	if p.ProjectID.Set && (p.ProjectID.Null || p.ProjectID.Value == 0) {
		return invalid(k, "project_id", "cannot be cleared")
	}
	if err := checkPatchedWindow(k, p.StartDate, p.EndDate); err != nil {
		return err
	}
	if p.Status.Set && !p.Status.Null {
		return checkStatus(k, p.Status.Value)
	}
	return nil
}

func validateAllocationDelete(p scenario.AllocationDelete) error {
	return requireID(scenario.KindAllocationDelete, "allocation_id", p.AllocationID)
}

func validateCellAdjust(p scenario.CellAdjust) error {
	const k = scenario.KindCellAdjust
	if err := requireID(k, "client_id", p.ClientID); err != nil {
		return err
	}
	if _, ok := generic.ColumnIndex(p.Month); !ok {
		return invalid(k, "month", fmt.Sprintf("unknown column %q", p.Month))
	}
	return nil
}
