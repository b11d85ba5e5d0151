/*
ledger.go - Append-only change log

PURPOSE:
  The ChangeLog is the immutable source of truth for a scenario. Every
  hypothetical edit is recorded here, and any derived view (the scenario
  dataset, its report, its provenance) is computed by replaying the log.
  There is no separate "current state" that can get out of sync.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. ORDERED: Seq is the application order; replay never reorders
  3. IDEMPOTENT: Same idempotency key = same record (no duplicates)

CORRECTIONS:
  A mistaken change is not edited. A later change supersedes it
  (e.g. an allocation_update restoring the old end date), and both stay
  in the log so provenance can still explain the final report.

SEE ALSO:
  - store.go: Low-level persistence interface
  - scenario/engine.go: Replays the log into a report
*/
package generic

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// CHANGE LOG - Append-only log on top of LogStore
// =============================================================================

type ChangeLog struct {
	Store LogStore

	// NewKey generates idempotency keys for callers that did not supply one.
	NewKey func() string
	// Now stamps CreatedAt.
	Now func() time.Time
}

func NewChangeLog(store LogStore) *ChangeLog {
	return &ChangeLog{
		Store:  store,
		NewKey: uuid.NewString,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// Append records one change. An empty key gets a fresh one; a supplied key
// that was already used yields ErrDuplicateIdempotencyKey.
func (l *ChangeLog) Append(ctx context.Context, logID int64, kind string, payload json.RawMessage, key string) (ChangeRecord, error) {
	if key == "" {
		key = l.NewKey()
	} else {
		exists, err := l.Store.Exists(ctx, key)
		if err != nil {
			return ChangeRecord{}, err
		}
		if exists {
			return ChangeRecord{}, ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.Append(ctx, ChangeRecord{
		LogID:          logID,
		Kind:           kind,
		Payload:        payload,
		IdempotencyKey: key,
		CreatedAt:      l.Now(),
	})
}

// Records returns the full log in application order. Read-only.
func (l *ChangeLog) Records(ctx context.Context, logID int64) ([]ChangeRecord, error) {
	return l.Store.Load(ctx, logID)
}
