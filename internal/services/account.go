package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// EventPublisher receives ledger change notifications. Implementations must
// be safe for concurrent use.
type EventPublisher interface {
	Publish(ctx context.Context, ev core.LedgerEvent) error
}

// Account owns one user's expense and income ledgers and keeps a cached
// balance equal to sum(income) - sum(expenses). All mutations go through it;
// the ledgers are never handed out.
type Account struct {
	mu        sync.Mutex
	owner     string
	store     storage.Ledgers
	expenses  storage.Ledger
	income    storage.Ledger
	balance   decimal.Decimal
	publisher EventPublisher
	now       func() time.Time
}

// OpenAccount wraps store and seeds the cached balance with a full recompute.
// publisher may be nil.
func OpenAccount(ctx context.Context, owner string, store storage.Ledgers, publisher EventPublisher) (*Account, error) {
	a := &Account{
		owner:     owner,
		store:     store,
		expenses:  store.Expenses(),
		income:    store.Income(),
		publisher: publisher,
		now:       time.Now,
	}
	balance, err := a.recompute(ctx)
	if err != nil {
		return nil, fmt.Errorf("open account: %w", err)
	}
	a.balance = balance
	return a, nil
}

// Owner returns the email the account belongs to.
func (a *Account) Owner() string { return a.owner }

func (a *Account) AddExpense(ctx context.Context, e core.Expense) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id, err := a.expenses.Add(ctx, e.Record())
	if err != nil {
		return 0, fmt.Errorf("add expense: %w", err)
	}
	a.balance = a.balance.Sub(e.Amount)
	a.publish(ctx, core.KindExpense, core.OpCreate, id)
	return id, nil
}

func (a *Account) AddIncome(ctx context.Context, in core.Income) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id, err := a.income.Add(ctx, in.Record())
	if err != nil {
		return 0, fmt.Errorf("add income: %w", err)
	}
	a.balance = a.balance.Add(in.Amount)
	a.publish(ctx, core.KindIncome, core.OpCreate, id)
	return id, nil
}

// UpdateExpense replaces the expense with the given id. An unknown id
// returns core.ErrInvalidID and changes nothing.
func (a *Account) UpdateExpense(ctx context.Context, id int64, e core.Expense) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	old, err := a.lookup(ctx, a.expenses, core.KindExpense, id)
	if err != nil {
		return err
	}
	if err := a.expenses.Update(ctx, id, e.Record()); err != nil {
		return fmt.Errorf("update expense %d: %w", id, err)
	}
	a.balance = a.balance.Add(old.Amount).Sub(e.Amount)
	a.publish(ctx, core.KindExpense, core.OpUpdate, id)
	return nil
}

func (a *Account) UpdateIncome(ctx context.Context, id int64, in core.Income) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	old, err := a.lookup(ctx, a.income, core.KindIncome, id)
	if err != nil {
		return err
	}
	if err := a.income.Update(ctx, id, in.Record()); err != nil {
		return fmt.Errorf("update income %d: %w", id, err)
	}
	a.balance = a.balance.Sub(old.Amount).Add(in.Amount)
	a.publish(ctx, core.KindIncome, core.OpUpdate, id)
	return nil
}

func (a *Account) DeleteExpense(ctx context.Context, id int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	old, err := a.lookup(ctx, a.expenses, core.KindExpense, id)
	if err != nil {
		return err
	}
	if err := a.expenses.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	a.balance = a.balance.Add(old.Amount)
	a.publish(ctx, core.KindExpense, core.OpDelete, id)
	return nil
}

func (a *Account) DeleteIncome(ctx context.Context, id int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	old, err := a.lookup(ctx, a.income, core.KindIncome, id)
	if err != nil {
		return err
	}
	if err := a.income.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete income %d: %w", id, err)
	}
	a.balance = a.balance.Sub(old.Amount)
	a.publish(ctx, core.KindIncome, core.OpDelete, id)
	return nil
}

// Balance returns the cached balance.
func (a *Account) Balance() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance
}

// GetBalance recomputes the balance from both ledgers and re-seeds the
// cache. Another process writing the same file makes the cache stale; this
// is the way to observe its writes.
func (a *Account) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	balance, err := a.recompute(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get balance: %w", err)
	}
	if !balance.Equal(a.balance) {
		slog.WarnContext(ctx, "Cached balance drifted from ledgers",
			"user", a.owner,
			"cached", a.balance.String(),
			"actual", balance.String())
	}
	a.balance = balance
	return balance, nil
}

func (a *Account) ExpenseList(ctx context.Context) ([]core.Expense, error) {
	records, err := a.expenses.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	out := make([]core.Expense, len(records))
	for i, r := range records {
		out[i] = r.Expense()
	}
	return out, nil
}

func (a *Account) IncomeList(ctx context.Context) ([]core.Income, error) {
	records, err := a.income.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list income: %w", err)
	}
	out := make([]core.Income, len(records))
	for i, r := range records {
		out[i] = r.Income()
	}
	return out, nil
}

func (a *Account) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	r, err := a.lookup(ctx, a.expenses, core.KindExpense, id)
	if err != nil {
		return core.Expense{}, err
	}
	return r.Expense(), nil
}

func (a *Account) GetIncome(ctx context.Context, id int64) (core.Income, error) {
	r, err := a.lookup(ctx, a.income, core.KindIncome, id)
	if err != nil {
		return core.Income{}, err
	}
	return r.Income(), nil
}

// FormatForSummary returns every record in the narrow form consumed by the
// insight summarizer.
func (a *Account) FormatForSummary(ctx context.Context) (core.Snapshot, error) {
	incomes, err := a.income.List(ctx)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("summary income: %w", err)
	}
	expenses, err := a.expenses.List(ctx)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("summary expenses: %w", err)
	}

	snap := core.Snapshot{
		Incomes:  make([]core.SummaryEntry, 0, len(incomes)),
		Expenses: make([]core.SummaryEntry, 0, len(expenses)),
	}
	for _, r := range incomes {
		snap.Incomes = append(snap.Incomes, core.SummaryEntry{
			Name: r.Name, Date: r.Date.String(), Amount: r.Amount, Source: r.Label, Description: r.Description,
		})
	}
	for _, r := range expenses {
		snap.Expenses = append(snap.Expenses, core.SummaryEntry{
			Name: r.Name, Date: r.Date.String(), Amount: r.Amount, Category: r.Label, Description: r.Description,
		})
	}
	return snap, nil
}

// Close releases the underlying storage.
func (a *Account) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.Close()
}

func (a *Account) lookup(ctx context.Context, l storage.Ledger, kind core.Kind, id int64) (core.Record, error) {
	r, err := l.Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return core.Record{}, fmt.Errorf("%s %d: %w", kind, id, core.ErrInvalidID)
		}
		return core.Record{}, fmt.Errorf("get %s %d: %w", kind, id, err)
	}
	return r, nil
}

func (a *Account) recompute(ctx context.Context) (decimal.Decimal, error) {
	incomes, err := a.income.List(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("list income: %w", err)
	}
	expenses, err := a.expenses.List(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("list expenses: %w", err)
	}
	return core.SumRecords(incomes).Sub(core.SumRecords(expenses)), nil
}

func (a *Account) publish(ctx context.Context, kind core.Kind, op core.Op, id int64) {
	if a.publisher == nil {
		return
	}
	ev := core.LedgerEvent{User: a.owner, Kind: kind, Op: op, ID: id, Timestamp: a.now()}
	if err := a.publisher.Publish(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"user", a.owner, "kind", kind, "op", op, "id", id, "error", err)
	}
}
