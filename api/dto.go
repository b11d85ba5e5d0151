/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model from the external API contract: money is rendered as
  strings with exactly two decimals, dates as YYYY-MM-DD, and optional
  values as null.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Entities:
    ClientDTO, ContactDTO, EngineerDTO, ProjectDTO, AllocationDTO
    and their Create*Request bodies

  Reports:
    RowDTO, AllocationViewDTO, ProjectViewDTO, ProjectEndingDTO,
    RevenueLineDTO

  Scenarios:
    ScenarioDTO, ChangeDTO, YearReportDTO, CellDTO, ProvenanceDTO

VALIDATION:
  Request bodies carry go-playground/validator tags. Handlers run them
  before touching the store; the store still enforces its own invariants.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/change.go: Change payload schema
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/scenario"
	"github.com/warp/staffing-engine/staffing"
)

// =============================================================================
// ENTITIES
// =============================================================================

type ClientDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type CreateClientRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

type ContactDTO struct {
	ID       int64  `json:"id"`
	ClientID int64  `json:"client_id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

type CreateContactRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone" validate:"omitempty,max=40"`
}

type EngineerDTO struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Level   int     `json:"level"`
	DayRate *string `json:"day_rate"`
	Cohort  int     `json:"cohort"`
	Active  bool    `json:"active"`
}

type CreateEngineerRequest struct {
	Name    string           `json:"name" validate:"required"`
	Level   int              `json:"level" validate:"min=1,max=5"`
	DayRate *decimal.Decimal `json:"day_rate"`
	Cohort  int              `json:"cohort" validate:"min=1,max=8"`
	Active  *bool            `json:"active"`
}

type ProjectDTO struct {
	ID         int64   `json:"id"`
	ClientID   int64   `json:"client_id"`
	Name       string  `json:"name"`
	StartDate  string  `json:"start_date"`
	EndDate    *string `json:"end_date"`
	AgreedRate *string `json:"agreed_rate"`
	Status     string  `json:"status"`
	Tentative  bool    `json:"tentative,omitempty"`
}

type CreateProjectRequest struct {
	ClientID   int64            `json:"client_id" validate:"required"`
	Name       string           `json:"name" validate:"required"`
	StartDate  string           `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate    string           `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	AgreedRate *decimal.Decimal `json:"agreed_rate"`
	Status     string           `json:"status" validate:"omitempty,oneof=confirmed provisional"`
}

type AllocationDTO struct {
	ID         int64   `json:"id"`
	EngineerID int64   `json:"engineer_id"`
	ProjectID  int64   `json:"project_id"`
	StartDate  string  `json:"start_date"`
	EndDate    *string `json:"end_date"`
	Status     string  `json:"status"`
}

type CreateAllocationRequest struct {
	EngineerID int64  `json:"engineer_id" validate:"required"`
	ProjectID  int64  `json:"project_id" validate:"required"`
	StartDate  string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate    string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Status     string `json:"status" validate:"omitempty,oneof=confirmed provisional"`
}

// =============================================================================
// REPORTS
// =============================================================================

// RowDTO is one rollup line. Snapshot rows carry to_date; year rows carry
// months.
type RowDTO struct {
	ID         string   `json:"id"`
	ParentID   *string  `json:"parent_id"`
	Type       string   `json:"type"`
	Label      string   `json:"label"`
	AtRisk     bool     `json:"at_risk"`
	Expandable bool     `json:"expandable"`
	Tentative  bool     `json:"tentative"`
	ClientID   *int64   `json:"client_id"`
	EntityID   *int64   `json:"entity_id"`
	ToDate     *string  `json:"to_date,omitempty"`
	Months     []string `json:"months,omitempty"`
	Total      string   `json:"total"`
}

type AllocationViewDTO struct {
	AllocationDTO
	EngineerName  string  `json:"engineer_name"`
	ProjectName   string  `json:"project_name"`
	ClientName    string  `json:"client_name"`
	ProjectStatus string  `json:"project_status"`
	Rate          *string `json:"rate"`
}

type ProjectViewDTO struct {
	ProjectDTO
	ClientName string `json:"client_name"`
}

type ProjectEndingDTO struct {
	ProjectViewDTO
	Allocations []string `json:"allocations"`
	ToDate      string   `json:"to_date"`
	Total       string   `json:"total"`
}

type RevenueLineDTO struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	ToDate string `json:"to_date"`
	Total  string `json:"total"`
}

type EndingCheckDTO struct {
	CheckedAt string           `json:"checked_at"`
	AsOf      string           `json:"as_of"`
	Projects  []ProjectViewDTO `json:"projects"`
	New       int              `json:"new"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

type CreateScenarioRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

type ChangeDTO struct {
	Seq            int64           `json:"seq"`
	Kind           string          `json:"kind"`
	Payload        json.RawMessage `json:"payload"`
	IdempotencyKey string          `json:"idempotency_key"`
	CreatedAt      string          `json:"created_at"`
}

type AppendChangeRequest struct {
	Kind           string          `json:"kind" validate:"required"`
	Payload        json.RawMessage `json:"payload" validate:"required"`
	IdempotencyKey string          `json:"idempotency_key" validate:"omitempty,max=200"`
}

// CellDTO addresses a summary cell. ClientID is null for the TOTAL row.
type CellDTO struct {
	ClientID *int64 `json:"client_id"`
	Column   string `json:"column"`
}

type ProvenanceDTO struct {
	CellDTO
	Changes []AttributionDTO `json:"changes"`
}

type AttributionDTO struct {
	Seq         int64  `json:"seq"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
}

type YearReportDTO struct {
	Scenario   ScenarioDTO     `json:"scenario"`
	Year       int             `json:"year"`
	Columns    []string        `json:"columns"`
	Baseline   []RowDTO        `json:"baseline"`
	Rows       []RowDTO        `json:"rows"`
	Dirty      []CellDTO       `json:"dirty"`
	Provenance []ProvenanceDTO `json:"provenance"`
	Skipped    []int64         `json:"skipped"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(d decimal.Decimal) string { return generic.FormatMoney(d) }

func moneyPtr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := generic.FormatMoney(*d)
	return &s
}

func datePtr(d *generic.Date) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func optionalID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func toClientDTO(c staffing.Client) ClientDTO {
	return ClientDTO{ID: c.ID, Name: c.Name}
}

func toContactDTO(c staffing.Contact) ContactDTO {
	return ContactDTO{ID: c.ID, ClientID: c.ClientID, Name: c.Name, Email: c.Email, Phone: c.Phone}
}

func toEngineerDTO(e staffing.Engineer) EngineerDTO {
	return EngineerDTO{
		ID:      e.ID,
		Name:    e.Name,
		Level:   e.Level,
		DayRate: moneyPtr(e.DayRate),
		Cohort:  e.Cohort,
		Active:  e.Active,
	}
}

func toProjectDTO(p staffing.Project) ProjectDTO {
	return ProjectDTO{
		ID:         p.ID,
		ClientID:   p.ClientID,
		Name:       p.Name,
		StartDate:  p.Start.String(),
		EndDate:    datePtr(p.End),
		AgreedRate: moneyPtr(p.AgreedRate),
		Status:     string(p.Status),
		Tentative:  p.Tentative,
	}
}

func toAllocationDTO(a staffing.Allocation) AllocationDTO {
	return AllocationDTO{
		ID:         a.ID,
		EngineerID: a.EngineerID,
		ProjectID:  a.ProjectID,
		StartDate:  a.Start.String(),
		EndDate:    datePtr(a.End),
		Status:     string(a.Status),
	}
}

func toProjectViewDTO(p staffing.ProjectView) ProjectViewDTO {
	return ProjectViewDTO{ProjectDTO: toProjectDTO(p.Project), ClientName: p.ClientName}
}

func toRowDTOs(rows []staffing.Row, mode staffing.Mode) []RowDTO {
	out := make([]RowDTO, len(rows))
	for i, r := range rows {
		dto := RowDTO{
			ID:         r.ID,
			Type:       string(r.Type),
			Label:      r.Label,
			AtRisk:     r.AtRisk,
			Expandable: r.Expandable,
			Tentative:  r.Tentative,
			ClientID:   optionalID(r.ClientID),
			EntityID:   optionalID(r.EntityID),
			Total:      money(r.Total),
		}
		if r.ParentID != "" {
			parent := r.ParentID
			dto.ParentID = &parent
		}
		if mode == staffing.ModeYear {
			dto.Months = make([]string, len(r.Months))
			for m, v := range r.Months {
				dto.Months[m] = money(v)
			}
		} else {
			toDate := money(r.ToDate)
			dto.ToDate = &toDate
		}
		out[i] = dto
	}
	return out
}

func toScenarioDTO(s staffing.Scenario) ScenarioDTO {
	return ScenarioDTO{ID: s.ID, Name: s.Name, CreatedAt: s.CreatedAt.UTC().Format(time.RFC3339)}
}

func toChangeDTO(rec generic.ChangeRecord) ChangeDTO {
	return ChangeDTO{
		Seq:            rec.Seq,
		Kind:           rec.Kind,
		Payload:        rec.Payload,
		IdempotencyKey: rec.IdempotencyKey,
		CreatedAt:      rec.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toCellDTO(k scenario.CellKey) CellDTO {
	dto := CellDTO{Column: k.Column}
	if !k.Total {
		id := k.ClientID
		dto.ClientID = &id
	}
	return dto
}

func toYearReportDTO(rep *scenario.YearReport) YearReportDTO {
	dto := YearReportDTO{
		Scenario:   toScenarioDTO(rep.Scenario),
		Year:       rep.Year,
		Columns:    generic.Columns(),
		Baseline:   toRowDTOs(rep.Baseline, staffing.ModeYear),
		Rows:       toRowDTOs(rep.Rows, staffing.ModeYear),
		Dirty:      []CellDTO{},
		Provenance: []ProvenanceDTO{},
		Skipped:    rep.Skipped,
	}
	if dto.Skipped == nil {
		dto.Skipped = []int64{}
	}
	for _, k := range rep.DirtyCells() {
		dto.Dirty = append(dto.Dirty, toCellDTO(k))
	}
	for _, k := range rep.ProvenanceCells() {
		p := ProvenanceDTO{CellDTO: toCellDTO(k)}
		for _, a := range rep.Provenance[k] {
			p.Changes = append(p.Changes, AttributionDTO{Seq: a.Seq, Kind: string(a.Kind), Description: a.Description})
		}
		dto.Provenance = append(dto.Provenance, p)
	}
	return dto
}
