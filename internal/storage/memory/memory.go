package memory

import (
	"context"
	"fmt"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// Ledger is an in-process ledger. IDs come from a counter that never
// rewinds, so deleted IDs are not reused.
type Ledger struct {
	mu     sync.Mutex
	kind   core.Kind
	nextID int64
	items  []core.Record
}

var _ storage.Ledger = (*Ledger)(nil)

func NewLedger(kind core.Kind) *Ledger {
	return &Ledger{kind: kind}
}

// Add stores the record and assigns the next ID.
func (l *Ledger) Add(_ context.Context, r core.Record) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	r.ID = l.nextID
	l.items = append(l.items, r)
	return r.ID, nil
}

func (l *Ledger) List(_ context.Context) ([]core.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]core.Record{}, l.items...), nil
}

func (l *Ledger) Get(_ context.Context, id int64) (core.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.index(id)
	if i < 0 {
		return core.Record{}, l.notFound(id)
	}
	return l.items[i], nil
}

func (l *Ledger) Update(_ context.Context, id int64, r core.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.index(id)
	if i < 0 {
		return l.notFound(id)
	}
	r.ID = id
	l.items[i] = r
	return nil
}

func (l *Ledger) Delete(_ context.Context, id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.index(id)
	if i < 0 {
		return l.notFound(id)
	}
	l.items = append(l.items[:i], l.items[i+1:]...)
	return nil
}

func (l *Ledger) index(id int64) int {
	for i, r := range l.items {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (l *Ledger) notFound(id int64) error {
	return fmt.Errorf("%s %d: %w", l.kind, id, core.ErrNotFound)
}

// Store pairs an expense and an income ledger.
type Store struct {
	expenses *Ledger
	income   *Ledger
}

var _ storage.Ledgers = (*Store)(nil)

func New() *Store {
	return &Store{
		expenses: NewLedger(core.KindExpense),
		income:   NewLedger(core.KindIncome),
	}
}

func (s *Store) Expenses() storage.Ledger { return s.expenses }

func (s *Store) Income() storage.Ledger { return s.income }

func (s *Store) Close() error { return nil }
