/*
store.go - Persistence interface for change logs

PURPOSE:
  Defines the interface between the change log and the database.
  The LogStore handles persistence while maintaining append-only semantics.
  Different implementations can use SQLite or in-memory storage.

APPEND-ONLY CONTRACT:
  - Append(): Single record write, atomic, assigns Seq
  - Load(): All records of one log, ordered by Seq
  - NO Update() or Delete() methods exist

IDEMPOTENCY:
  Every write includes an idempotency key. If the key already exists,
  the write is rejected. This prevents duplicate changes from
  network retries or user double-clicks.

VISIBILITY:
  A record becomes visible to Load only once Append has returned. Readers
  never observe a half-written record, so a replay concurrent with an
  append sees either the log before or after it.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: Higher-level interface using LogStore
*/
package generic

import "context"

// =============================================================================
// LOG STORE - Interface for change-log persistence (append-only)
// =============================================================================

// LogStore handles persistence of change records.
// IMPORTANT: LogStore is APPEND-ONLY. No Update, No Delete. Ever.
type LogStore interface {
	// Append persists a record and returns it with Seq and CreatedAt set.
	// Returns ErrDuplicateIdempotencyKey if the key exists.
	Append(ctx context.Context, rec ChangeRecord) (ChangeRecord, error)

	// Load returns all records of a log, ordered by Seq.
	Load(ctx context.Context, logID int64) ([]ChangeRecord, error)

	// Exists checks if idempotency key already exists.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}
