/*
handlers.go - HTTP API handlers for the staffing engine

PURPOSE:
  Exposes the staffing store, the reports and the scenario engine via a
  REST API. Handles HTTP request/response, JSON serialization, and
  delegates to domain logic.

ENDPOINTS:
  Clients:
    GET    /api/clients                  List clients
    POST   /api/clients                  Create client
    GET    /api/clients/{id}             Get client
    DELETE /api/clients/{id}             Delete client (cascades)
    GET    /api/clients/{id}/contacts    List contacts
    POST   /api/clients/{id}/contacts    Add contact

  Engineers, Projects, Allocations:
    GET/POST /api/{engineers|projects|allocations}
    GET      /api/{engineers|projects}/{id}
    DELETE   /api/{engineers|projects|allocations}/{id}

  Reports: see reports.go
  Scenarios and demo data: see scenarios.go

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access
  - Engine: Scenario replay and diff
  - Reports: Presentation defaults from config
  - Monitor: Background projects-ending check

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (validator tags on *Request types)
  3. Call the store or the domain logic
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (idempotency, duplicate name)
  - 500: Internal errors (logged)

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - reports.go: Report handlers
  - scenarios.go: Scenario handlers and demo loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/warp/staffing-engine/config"
	"github.com/warp/staffing-engine/factory"
	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/scenario"
	"github.com/warp/staffing-engine/staffing"
	"github.com/warp/staffing-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Engine  *scenario.Engine
	Reports config.ReportsConfig
	Monitor *EndingMonitor
	Log     *logrus.Entry

	// Today is the default as-of date of reports.
	Today func() generic.Date

	validate *validator.Validate
}

// NewHandler wires the handler's collaborators around store. The monitor
// is created but not started.
func NewHandler(store *sqlite.Store, cfg config.Config, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	entry := logger.WithField("component", "api")
	changes := generic.NewChangeLog(store)
	return &Handler{
		Store:    store,
		Engine:   scenario.NewEngine(store, store, changes, factory.NewChangeFactory(), entry),
		Reports:  cfg.Reports,
		Monitor:  NewEndingMonitor(store, cfg.Reports, cfg.Alerts, logger),
		Log:      entry,
		Today:    generic.Today,
		validate: validator.New(),
	}
}

// =============================================================================
// CLIENT HANDLERS
// =============================================================================

// ListClients returns all clients by name.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.Store.ListClients(r.Context())
	if err != nil {
		h.writeStoreError(w, "Failed to list clients", err)
		return
	}
	dtos := make([]ClientDTO, len(clients))
	for i, c := range clients {
		dtos[i] = toClientDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetClient returns a single client.
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := h.Store.GetClient(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, "Failed to get client", err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(c))
}

// CreateClient creates a new client.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.Store.CreateClient(r.Context(), req.Name)
	if err != nil {
		h.writeStoreError(w, "Failed to create client", err)
		return
	}
	writeJSON(w, http.StatusCreated, toClientDTO(c))
}

// DeleteClient removes a client with its projects and their allocations.
func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Store.DeleteClient(r.Context(), id); err != nil {
		h.writeStoreError(w, "Failed to delete client", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ListContacts returns the contacts of a client.
func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := h.Store.GetClient(r.Context(), id); err != nil {
		h.writeStoreError(w, "Failed to get client", err)
		return
	}
	contacts, err := h.Store.ListContacts(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, "Failed to list contacts", err)
		return
	}
	dtos := make([]ContactDTO, len(contacts))
	for i, c := range contacts {
		dtos[i] = toContactDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateContact adds a contact to a client.
func (h *Handler) CreateContact(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req CreateContactRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.Store.CreateContact(r.Context(), staffing.Contact{
		ClientID: id,
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
	})
	if err != nil {
		h.writeStoreError(w, "Failed to create contact", err)
		return
	}
	writeJSON(w, http.StatusCreated, toContactDTO(c))
}

// =============================================================================
// ENGINEER HANDLERS
// =============================================================================

// ListEngineers returns all engineers by name.
func (h *Handler) ListEngineers(w http.ResponseWriter, r *http.Request) {
	engineers, err := h.Store.ListEngineers(r.Context())
	if err != nil {
		h.writeStoreError(w, "Failed to list engineers", err)
		return
	}
	dtos := make([]EngineerDTO, len(engineers))
	for i, e := range engineers {
		dtos[i] = toEngineerDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEngineer returns a single engineer.
func (h *Handler) GetEngineer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	e, err := h.Store.GetEngineer(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, "Failed to get engineer", err)
		return
	}
	writeJSON(w, http.StatusOK, toEngineerDTO(e))
}

// CreateEngineer creates a new engineer. Active defaults to true.
func (h *Handler) CreateEngineer(w http.ResponseWriter, r *http.Request) {
	var req CreateEngineerRequest
	if !h.decode(w, r, &req) {
		return
	}
	e, err := h.Store.CreateEngineer(r.Context(), staffing.Engineer{
		Name:    req.Name,
		Level:   req.Level,
		DayRate: req.DayRate,
		Cohort:  req.Cohort,
		Active:  req.Active == nil || *req.Active,
	})
	if err != nil {
		h.writeStoreError(w, "Failed to create engineer", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEngineerDTO(e))
}

// DeleteEngineer removes an engineer and their allocations.
func (h *Handler) DeleteEngineer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Store.DeleteEngineer(r.Context(), id); err != nil {
		h.writeStoreError(w, "Failed to delete engineer", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// =============================================================================
// PROJECT HANDLERS
// =============================================================================

// ListProjects returns all projects by start date.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Store.ListProjects(r.Context())
	if err != nil {
		h.writeStoreError(w, "Failed to list projects", err)
		return
	}
	dtos := make([]ProjectDTO, len(projects))
	for i, p := range projects {
		dtos[i] = toProjectDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetProject returns a single project.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.Store.GetProject(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, "Failed to get project", err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectDTO(p))
}

// CreateProject creates a project under an existing client.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if !h.decode(w, r, &req) {
		return
	}
	start, end, err := parseWindow(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	p, err := h.Store.CreateProject(r.Context(), staffing.Project{
		ClientID:   req.ClientID,
		Name:       req.Name,
		Start:      start,
		End:        end,
		AgreedRate: req.AgreedRate,
		Status:     staffing.Status(req.Status),
	})
	if err != nil {
		h.writeStoreError(w, "Failed to create project", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectDTO(p))
}

// DeleteProject removes a project and its allocations.
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Store.DeleteProject(r.Context(), id); err != nil {
		h.writeStoreError(w, "Failed to delete project", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// =============================================================================
// ALLOCATION HANDLERS
// =============================================================================

// ListAllocations returns all allocations.
func (h *Handler) ListAllocations(w http.ResponseWriter, r *http.Request) {
	allocs, err := h.Store.ListAllocations(r.Context())
	if err != nil {
		h.writeStoreError(w, "Failed to list allocations", err)
		return
	}
	dtos := make([]AllocationDTO, len(allocs))
	for i, a := range allocs {
		dtos[i] = toAllocationDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAllocation books an engineer onto a project. The store checks the
// window against the project's; an empty status inherits the project's.
func (h *Handler) CreateAllocation(w http.ResponseWriter, r *http.Request) {
	var req CreateAllocationRequest
	if !h.decode(w, r, &req) {
		return
	}
	start, end, err := parseWindow(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	a, err := h.Store.CreateAllocation(r.Context(), staffing.Allocation{
		EngineerID: req.EngineerID,
		ProjectID:  req.ProjectID,
		Start:      start,
		End:        end,
		Status:     staffing.Status(req.Status),
	})
	if err != nil {
		h.writeStoreError(w, "Failed to create allocation", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAllocationDTO(a))
}

// DeleteAllocation removes an allocation.
func (h *Handler) DeleteAllocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Store.DeleteAllocation(r.Context(), id); err != nil {
		h.writeStoreError(w, "Failed to delete allocation", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeStoreError maps domain errors to HTTP status codes. Anything it
// does not recognise is a 500 and gets logged.
func (h *Handler) writeStoreError(w http.ResponseWriter, message string, err error) {
	switch {
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case generic.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		config.LogError(h.Log, "api", message, err)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// decode reads a JSON body into dst and runs its validator tags. It writes
// the 400 response itself and reports whether the caller may continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:  "Validation failed",
				Fields: validationFields(verrs),
			})
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// validationFields maps each failing field to the tag it failed.
func validationFields(verrs validator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return fields
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id", fmt.Errorf("%q: %w", raw, generic.ErrInvalidInput))
		return 0, false
	}
	return id, true
}

func parseWindow(start, end string) (generic.Date, *generic.Date, error) {
	s, err := generic.ParseDate(start)
	if err != nil {
		return generic.Date{}, nil, err
	}
	e, err := generic.ParseOptionalDate(end)
	if err != nil {
		return generic.Date{}, nil, err
	}
	return s, e, nil
}
