package storage

import (
	"context"

	"fintrack/internal/core"
)

// Ledger is durable CRUD over one record kind inside one user's storage.
// Only the account aggregate should hold a Ledger; mutating one directly
// desynchronizes the account's cached balance.
type Ledger interface {
	// Add persists r (its ID is ignored) and returns the assigned ID.
	Add(ctx context.Context, r core.Record) (int64, error)
	// List returns every record ordered by ID.
	List(ctx context.Context) ([]core.Record, error)
	// Get returns core.ErrNotFound when id is absent.
	Get(ctx context.Context, id int64) (core.Record, error)
	// Update replaces all mutable fields; core.ErrNotFound when id is absent.
	Update(ctx context.Context, id int64, r core.Record) error
	// Delete returns core.ErrNotFound when id is absent.
	Delete(ctx context.Context, id int64) error
}

// Ledgers bundles a user's two ledgers with their lifecycle.
type Ledgers interface {
	Expenses() Ledger
	Income() Ledger
	Close() error
}
