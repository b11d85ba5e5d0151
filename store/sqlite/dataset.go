package sqlite

import (
	"context"
	"fmt"

	"github.com/warp/staffing-engine/staffing"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// DATASET READER (staffing.DatasetReader interface)
// =============================================================================

// LoadDataset reads every base table into one unfiltered snapshot. The
// four reads run concurrently under one read lock, so no write can land
// between them.
func (s *Store) LoadDataset(ctx context.Context) (*staffing.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds := &staffing.Dataset{}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		ds.Clients, err = s.listClients(ctx)
		return err
	})
	g.Go(func() (err error) {
		ds.Projects, err = s.listProjects(ctx)
		return err
	})
	g.Go(func() (err error) {
		ds.Engineers, err = s.listEngineers(ctx)
		return err
	})
	g.Go(func() (err error) {
		ds.Allocations, err = s.listAllocations(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	return ds, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo). Ids restart at 1.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	tables := []string{
		"scenario_changes", "scenarios",
		"allocations", "projects", "contacts", "clients",
		"engineers", "cohorts",
		"sqlite_sequence",
	}
	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Info("database reset")
	return nil
}
