package core

import "time"

// Op is the mutation carried by a LedgerEvent.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	// OpResync asks consumers to rebuild their view of a user from scratch.
	OpResync Op = "resync"
)

// LedgerEvent announces a committed change to one user's ledgers.
// Consumers re-read the ledger; the event carries no record payload.
type LedgerEvent struct {
	User      string    `json:"user"`
	Kind      Kind      `json:"kind,omitempty"`
	Op        Op        `json:"op"`
	ID        int64     `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
