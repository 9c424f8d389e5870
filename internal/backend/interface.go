package backend

import (
	"context"

	"fintrack/internal/storage"
)

// Factory opens the ledger storage of one user.
type Factory interface {
	// Open returns the user's ledgers, creating empty storage on first use.
	// The caller owns the result and must Close it.
	Open(ctx context.Context, email string) (storage.Ledgers, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// Root directory of the per-user database files (sqlite backend)
	DataDirectory string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
