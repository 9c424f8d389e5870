package backend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
)

// NewFactory creates the factory for config.Type.
func NewFactory(config Config, logger *slog.Logger) (Factory, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		logger.Info("Using SQLite ledger backend", "data_dir", config.DataDirectory)
		return &sqliteFactory{dataDir: config.DataDirectory, logger: logger}, nil
	case MemoryBackend:
		logger.Info("Using in-memory ledger backend")
		return &memoryFactory{stores: make(map[string]*memory.Store)}, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

type sqliteFactory struct {
	dataDir string
	logger  *slog.Logger
}

func (f *sqliteFactory) Open(ctx context.Context, email string) (storage.Ledgers, error) {
	path := storage.UserDBPath(f.dataDir, email)
	db, err := storage.OpenUserDB(path)
	if err != nil {
		return nil, fmt.Errorf("open ledger for %s: %w", email, err)
	}
	f.logger.DebugContext(ctx, "Opened user database", "email", email, "path", path)
	return db, nil
}

// memoryFactory keeps one store per email for the life of the process so
// reopening an evicted account sees its earlier records.
type memoryFactory struct {
	mu     sync.Mutex
	stores map[string]*memory.Store
}

func (f *memoryFactory) Open(_ context.Context, email string) (storage.Ledgers, error) {
	key := strings.ToLower(strings.TrimSpace(email))
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stores[key]
	if !ok {
		s = memory.New()
		f.stores[key] = s
	}
	return s, nil
}
