package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/staffing"
)

// =============================================================================
// SCENARIO STORE (staffing.ScenarioStore interface)
// =============================================================================

// CreateScenario inserts an empty scenario. Names are unique.
func (s *Store) CreateScenario(ctx context.Context, name string) (staffing.Scenario, error) {
	if name == "" {
		return staffing.Scenario{}, fmt.Errorf("scenario name is required: %w", generic.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sc := staffing.Scenario{Name: name, CreatedAt: time.Now().UTC().Truncate(time.Second)}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO scenarios (name, created_at) VALUES (?, ?)",
		name, sc.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return staffing.Scenario{}, fmt.Errorf("scenario %q: %w", name, generic.ErrDuplicateName)
		}
		return staffing.Scenario{}, fmt.Errorf("failed to create scenario: %w", err)
	}
	sc.ID, err = res.LastInsertId()
	if err != nil {
		return staffing.Scenario{}, fmt.Errorf("failed to get scenario id: %w", err)
	}
	s.log.WithFields(logrus.Fields{"scenario_id": sc.ID, "name": name}).Info("scenario created")
	return sc, nil
}

// ListScenarios returns all scenarios, newest first.
func (s *Store) ListScenarios(ctx context.Context) ([]staffing.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, created_at FROM scenarios ORDER BY created_at DESC, id DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenarios: %w", err)
	}
	defer rows.Close()

	var scenarios []staffing.Scenario
	for rows.Next() {
		sc, err := scanScenario(rows)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, rows.Err()
}

// GetScenario retrieves a scenario header by id.
func (s *Store) GetScenario(ctx context.Context, id int64) (staffing.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, err := scanScenario(s.db.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM scenarios WHERE id = ?", id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return sc, generic.NotFound("scenario", id)
	}
	return sc, err
}

func scanScenario(row scanner) (staffing.Scenario, error) {
	var (
		sc        staffing.Scenario
		createdAt string
	)
	if err := row.Scan(&sc.ID, &sc.Name, &createdAt); err != nil {
		return sc, err
	}
	sc.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return sc, nil
}

// =============================================================================
// CHANGE LOG (generic.LogStore interface)
// =============================================================================

// Append adds one change as a single INSERT. Seq is the row id, so it is
// strictly increasing across all scenarios.
func (s *Store) Append(ctx context.Context, rec generic.ChangeRecord) (generic.ChangeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO scenario_changes (scenario_id, kind, payload, idempotency_key, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.LogID, rec.Kind, string(rec.Payload), rec.IdempotencyKey,
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ChangeRecord{}, generic.ErrDuplicateIdempotencyKey
		}
		if isForeignKeyError(err) {
			return generic.ChangeRecord{}, generic.NotFound("scenario", rec.LogID)
		}
		return generic.ChangeRecord{}, fmt.Errorf("failed to append change: %w", err)
	}
	if rec.Seq, err = res.LastInsertId(); err != nil {
		return generic.ChangeRecord{}, err
	}
	return rec, nil
}

// Load returns a scenario's changes in application order.
func (s *Store) Load(ctx context.Context, logID int64) ([]generic.ChangeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, scenario_id, kind, payload, idempotency_key, created_at
		 FROM scenario_changes WHERE scenario_id = ? ORDER BY seq`,
		logID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query changes: %w", err)
	}
	defer rows.Close()

	var records []generic.ChangeRecord
	for rows.Next() {
		var (
			rec       generic.ChangeRecord
			payload   string
			createdAt string
		)
		if err := rows.Scan(&rec.Seq, &rec.LogID, &rec.Kind, &payload, &rec.IdempotencyKey, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan change: %w", err)
		}
		rec.Payload = json.RawMessage(payload)
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Exists checks if an idempotency key exists.
func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM scenario_changes WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)
	return count > 0, err
}
