package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/staffing"
)

// =============================================================================
// COHORTS
// =============================================================================

// EnsureCohort returns the id of cohort number, creating it if needed.
func (s *Store) EnsureCohort(ctx context.Context, number int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureCohort(ctx, s.db, number)
}

func (s *Store) ensureCohort(ctx context.Context, q querier, number int) (int64, error) {
	if number < 1 || number > 8 {
		return 0, fmt.Errorf("cohort %d must be between 1 and 8: %w", number, generic.ErrInvalidInput)
	}
	var id int64
	err := q.QueryRowContext(ctx, "SELECT id FROM cohorts WHERE number = ?", number).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	res, err := q.ExecContext(ctx, "INSERT INTO cohorts (number) VALUES (?)", number)
	if err != nil {
		return 0, fmt.Errorf("failed to create cohort: %w", err)
	}
	return res.LastInsertId()
}

// =============================================================================
// ENGINEERS
// =============================================================================

// CreateEngineer inserts e and returns it with its id.
func (s *Store) CreateEngineer(ctx context.Context, e staffing.Engineer) (staffing.Engineer, error) {
	if e.Name == "" {
		return e, fmt.Errorf("engineer name is required: %w", generic.ErrInvalidInput)
	}
	if e.Level < 1 || e.Level > 5 {
		return e, fmt.Errorf("level %d must be between 1 and 5: %w", e.Level, generic.ErrInvalidInput)
	}
	if e.DayRate != nil && e.DayRate.IsNegative() {
		return e, fmt.Errorf("day rate must not be negative: %w", generic.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cohortID, err := s.ensureCohort(ctx, s.db, e.Cohort)
	if err != nil {
		return e, err
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO engineers (name, level, day_rate, cohort_id, active) VALUES (?, ?, ?, ?, ?)",
		e.Name, e.Level, decimalArg(e.DayRate), cohortID, e.Active,
	)
	if err != nil {
		return e, fmt.Errorf("failed to create engineer: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return e, fmt.Errorf("failed to get engineer id: %w", err)
	}
	s.log.WithFields(logrus.Fields{"engineer_id": e.ID, "name": e.Name}).Info("engineer created")
	return e, nil
}

const engineerColumns = `
	SELECT e.id, e.name, e.level, e.day_rate, c.number, e.active
	FROM engineers e JOIN cohorts c ON c.id = e.cohort_id`

// ListEngineers returns all engineers ordered by name.
func (s *Store) ListEngineers(ctx context.Context) ([]staffing.Engineer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listEngineers(ctx)
}

func (s *Store) listEngineers(ctx context.Context) ([]staffing.Engineer, error) {
	rows, err := s.db.QueryContext(ctx, engineerColumns+" ORDER BY e.name, e.id")
	if err != nil {
		return nil, fmt.Errorf("failed to query engineers: %w", err)
	}
	defer rows.Close()

	var engineers []staffing.Engineer
	for rows.Next() {
		e, err := scanEngineer(rows)
		if err != nil {
			return nil, err
		}
		engineers = append(engineers, e)
	}
	return engineers, rows.Err()
}

// GetEngineer retrieves an engineer by id.
func (s *Store) GetEngineer(ctx context.Context, id int64) (staffing.Engineer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := scanEngineer(s.db.QueryRowContext(ctx, engineerColumns+" WHERE e.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return e, generic.NotFound("engineer", id)
	}
	return e, err
}

// DeleteEngineer removes an engineer and, by cascade, their allocations.
func (s *Store) DeleteEngineer(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM engineers WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete engineer: %w", err)
	}
	return requireAffected(res, generic.NotFound("engineer", id))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEngineer(row scanner) (staffing.Engineer, error) {
	var (
		e       staffing.Engineer
		dayRate sql.NullString
	)
	if err := row.Scan(&e.ID, &e.Name, &e.Level, &dayRate, &e.Cohort, &e.Active); err != nil {
		return e, err
	}
	rate, err := parseNullDecimal(dayRate)
	if err != nil {
		return e, fmt.Errorf("engineer %d day_rate: %w", e.ID, err)
	}
	e.DayRate = rate
	return e, nil
}

// =============================================================================
// CLIENTS & CONTACTS
// =============================================================================

// CreateClient inserts a client. Names are unique.
func (s *Store) CreateClient(ctx context.Context, name string) (staffing.Client, error) {
	if name == "" {
		return staffing.Client{}, fmt.Errorf("client name is required: %w", generic.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "INSERT INTO clients (name) VALUES (?)", name)
	if err != nil {
		if isUniqueConstraintError(err) {
			return staffing.Client{}, fmt.Errorf("client %q: %w", name, generic.ErrDuplicateName)
		}
		return staffing.Client{}, fmt.Errorf("failed to create client: %w", err)
	}
	id, err := res.LastInsertId()
	return staffing.Client{ID: id, Name: name}, err
}

// ListClients returns all clients ordered by name.
func (s *Store) ListClients(ctx context.Context) ([]staffing.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listClients(ctx)
}

func (s *Store) listClients(ctx context.Context) ([]staffing.Client, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM clients ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	var clients []staffing.Client
	for rows.Next() {
		var c staffing.Client
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// GetClient retrieves a client by id.
func (s *Store) GetClient(ctx context.Context, id int64) (staffing.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c staffing.Client
	err := s.db.QueryRowContext(ctx, "SELECT id, name FROM clients WHERE id = ?", id).Scan(&c.ID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return c, generic.NotFound("client", id)
	}
	return c, err
}

// DeleteClient removes a client with its contacts, projects and their
// allocations.
func (s *Store) DeleteClient(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM clients WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	return requireAffected(res, generic.NotFound("client", id))
}

// CreateContact adds a contact person to an existing client.
func (s *Store) CreateContact(ctx context.Context, c staffing.Contact) (staffing.Contact, error) {
	if c.Name == "" {
		return c, fmt.Errorf("contact name is required: %w", generic.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO contacts (client_id, name, email, phone) VALUES (?, ?, ?, ?)",
		c.ClientID, c.Name, nullString(c.Email), nullString(c.Phone),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return c, generic.NotFound("client", c.ClientID)
		}
		return c, fmt.Errorf("failed to create contact: %w", err)
	}
	c.ID, err = res.LastInsertId()
	return c, err
}

// ListContacts returns the contacts of one client.
func (s *Store) ListContacts(ctx context.Context, clientID int64) ([]staffing.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, client_id, name, email, phone FROM contacts WHERE client_id = ? ORDER BY name, id",
		clientID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	defer rows.Close()

	var contacts []staffing.Contact
	for rows.Next() {
		var (
			c            staffing.Contact
			email, phone sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.ClientID, &c.Name, &email, &phone); err != nil {
			return nil, err
		}
		c.Email, c.Phone = email.String, phone.String
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// =============================================================================
// PROJECTS
// =============================================================================

// CreateProject inserts a project under an existing client. An empty
// status means confirmed.
func (s *Store) CreateProject(ctx context.Context, p staffing.Project) (staffing.Project, error) {
	if p.Name == "" {
		return p, fmt.Errorf("project name is required: %w", generic.ErrInvalidInput)
	}
	if p.End != nil && p.End.Before(p.Start) {
		return p, &generic.WindowError{Start: p.Start, End: p.End, Err: generic.ErrInvalidWindow}
	}
	if p.AgreedRate != nil && p.AgreedRate.IsNegative() {
		return p, fmt.Errorf("agreed rate must not be negative: %w", generic.ErrInvalidInput)
	}
	status, err := staffing.ParseStatus(string(p.Status))
	if err != nil {
		return p, err
	}
	p.Status = status
	p.Tentative = false

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO projects (client_id, name, start_date, end_date, agreed_rate, status) VALUES (?, ?, ?, ?, ?, ?)",
		p.ClientID, p.Name, p.Start.String(), dateArg(p.End), decimalArg(p.AgreedRate), string(p.Status),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return p, generic.NotFound("client", p.ClientID)
		}
		return p, fmt.Errorf("failed to create project: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return p, fmt.Errorf("failed to get project id: %w", err)
	}
	s.log.WithFields(logrus.Fields{"project_id": p.ID, "client_id": p.ClientID}).Info("project created")
	return p, nil
}

const projectColumns = "SELECT id, client_id, name, start_date, end_date, agreed_rate, status FROM projects"

// ListProjects returns all projects ordered by start date.
func (s *Store) ListProjects(ctx context.Context) ([]staffing.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listProjects(ctx)
}

func (s *Store) listProjects(ctx context.Context) ([]staffing.Project, error) {
	rows, err := s.db.QueryContext(ctx, projectColumns+" ORDER BY start_date, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []staffing.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// GetProject retrieves a project by id.
func (s *Store) GetProject(ctx context.Context, id int64) (staffing.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getProject(ctx, s.db, id)
}

func (s *Store) getProject(ctx context.Context, q querier, id int64) (staffing.Project, error) {
	p, err := scanProject(q.QueryRowContext(ctx, projectColumns+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return p, generic.NotFound("project", id)
	}
	return p, err
}

// DeleteProject removes a project and its allocations.
func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return requireAffected(res, generic.NotFound("project", id))
}

func scanProject(row scanner) (staffing.Project, error) {
	var (
		p                 staffing.Project
		start             string
		end, agreed, stat sql.NullString
	)
	if err := row.Scan(&p.ID, &p.ClientID, &p.Name, &start, &end, &agreed, &stat); err != nil {
		return p, err
	}
	var err error
	if p.Start, err = generic.ParseDate(start); err != nil {
		return p, fmt.Errorf("project %d start_date: %w", p.ID, err)
	}
	if p.End, err = parseNullDate(end); err != nil {
		return p, fmt.Errorf("project %d end_date: %w", p.ID, err)
	}
	if p.AgreedRate, err = parseNullDecimal(agreed); err != nil {
		return p, fmt.Errorf("project %d agreed_rate: %w", p.ID, err)
	}
	p.Status = staffing.Status(stat.String)
	return p, nil
}

// =============================================================================
// ALLOCATIONS
// =============================================================================

// CreateAllocation inserts an allocation after checking that:
//   - the engineer and project exist
//   - start <= end
//   - the window lies inside the project's window
//   - an open-ended allocation targets an open-ended project
//
// An empty status inherits the project's status.
func (s *Store) CreateAllocation(ctx context.Context, a staffing.Allocation) (staffing.Allocation, error) {
	if a.Status != "" && !a.Status.Valid() {
		return a, fmt.Errorf("status %q must be confirmed or provisional: %w", a.Status, generic.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return a, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.validateAllocation(ctx, tx, &a); err != nil {
		return a, err
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO allocations (engineer_id, project_id, start_date, end_date, status) VALUES (?, ?, ?, ?, ?)",
		a.EngineerID, a.ProjectID, a.Start.String(), dateArg(a.End), string(a.Status),
	)
	if err != nil {
		return a, fmt.Errorf("failed to create allocation: %w", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return a, err
	}
	if err := tx.Commit(); err != nil {
		return a, err
	}

	s.log.WithFields(logrus.Fields{
		"allocation_id": a.ID,
		"engineer_id":   a.EngineerID,
		"project_id":    a.ProjectID,
	}).Info("allocation created")
	return a, nil
}

func (s *Store) validateAllocation(ctx context.Context, q querier, a *staffing.Allocation) error {
	var exists int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM engineers WHERE id = ?", a.EngineerID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.NotFound("engineer", a.EngineerID)
	}
	if err != nil {
		return err
	}

	p, err := s.getProject(ctx, q, a.ProjectID)
	if err != nil {
		return err
	}
	if a.End != nil && a.End.Before(a.Start) {
		return &generic.WindowError{Start: a.Start, End: a.End, Err: generic.ErrInvalidWindow}
	}
	outside := a.Start.Before(p.Start) ||
		(p.End != nil && a.End != nil && a.End.After(*p.End))
	if outside {
		return &generic.WindowError{
			Start:       a.Start,
			End:         a.End,
			WindowStart: p.Start,
			WindowEnd:   p.End,
			Err:         generic.ErrOutsideProjectWindow,
		}
	}
	if a.End == nil && p.End != nil {
		return fmt.Errorf("project %d ends %s: %w", p.ID, p.End, generic.ErrOpenEndedAllocation)
	}
	if a.Status == "" {
		a.Status = p.Status
	}
	return nil
}

const allocationColumns = "SELECT id, engineer_id, project_id, start_date, end_date, status FROM allocations"

// ListAllocations returns all allocations ordered by start date.
func (s *Store) ListAllocations(ctx context.Context) ([]staffing.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listAllocations(ctx)
}

func (s *Store) listAllocations(ctx context.Context) ([]staffing.Allocation, error) {
	rows, err := s.db.QueryContext(ctx, allocationColumns+" ORDER BY start_date, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer rows.Close()

	var allocations []staffing.Allocation
	for rows.Next() {
		var (
			a         staffing.Allocation
			start     string
			end, stat sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.EngineerID, &a.ProjectID, &start, &end, &stat); err != nil {
			return nil, err
		}
		if a.Start, err = generic.ParseDate(start); err != nil {
			return nil, fmt.Errorf("allocation %d start_date: %w", a.ID, err)
		}
		if a.End, err = parseNullDate(end); err != nil {
			return nil, fmt.Errorf("allocation %d end_date: %w", a.ID, err)
		}
		a.Status = staffing.Status(stat.String)
		allocations = append(allocations, a)
	}
	return allocations, rows.Err()
}

// DeleteAllocation removes one allocation.
func (s *Store) DeleteAllocation(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM allocations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete allocation: %w", err)
	}
	return requireAffected(res, generic.NotFound("allocation", id))
}

// =============================================================================
// COLUMN CODECS
// =============================================================================

func dateArg(d *generic.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func decimalArg(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func parseNullDate(ns sql.NullString) (*generic.Date, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	d, err := generic.ParseDate(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseNullDecimal(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
