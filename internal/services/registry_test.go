package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/backend"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
)

type countingFactory struct {
	mu     sync.Mutex
	opens  int
	closes int
	stores map[string]*memory.Store
}

type trackedStore struct {
	*memory.Store
	f *countingFactory
}

func (s trackedStore) Close() error {
	s.f.mu.Lock()
	s.f.closes++
	s.f.mu.Unlock()
	return nil
}

func (f *countingFactory) Open(_ context.Context, email string) (storage.Ledgers, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	if f.stores == nil {
		f.stores = map[string]*memory.Store{}
	}
	s, ok := f.stores[email]
	if !ok {
		s = memory.New()
		f.stores[email] = s
	}
	// Widen the window for concurrent opens.
	time.Sleep(5 * time.Millisecond)
	return trackedStore{Store: s, f: f}, nil
}

func TestRegistry_SameEmailSameAccount(t *testing.T) {
	ctx := context.Background()
	f := &countingFactory{}
	r := NewRegistry(f)
	defer r.Close()

	a, err := r.Open(ctx, "Alice@Example.com")
	require.NoError(t, err)
	b, err := r.Open(ctx, " alice@example.com")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, "alice@example.com", a.Owner())
	assert.Equal(t, 1, f.opens)
}

func TestRegistry_ConcurrentOpensCollapse(t *testing.T) {
	ctx := context.Background()
	f := &countingFactory{}
	r := NewRegistry(f)
	defer r.Close()

	var wg sync.WaitGroup
	accounts := make([]*Account, 10)
	for i := range accounts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := r.Open(ctx, "bob@example.com")
			assert.NoError(t, err)
			accounts[i] = a
		}(i)
	}
	wg.Wait()

	for _, a := range accounts[1:] {
		assert.Same(t, accounts[0], a)
	}
	assert.Equal(t, 1, f.opens)
}

func TestRegistry_EvictionClosesStorage(t *testing.T) {
	ctx := context.Background()
	f := &countingFactory{}
	r := NewRegistry(f, WithCacheSize(1))

	a, err := r.Open(ctx, "a@example.com")
	require.NoError(t, err)
	_, err = a.AddIncome(ctx, income("Pay", "10"))
	require.NoError(t, err)
	r.Release(a)

	b, err := r.Open(ctx, "b@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, f.closes)
	r.Release(b)

	// Reopening sees the persisted record through a fresh recompute.
	again, err := r.Open(ctx, "a@example.com")
	require.NoError(t, err)
	assert.NotSame(t, a, again)
	assert.True(t, again.Balance().Equal(dec("10")))

	require.NoError(t, r.Close())
	assert.Equal(t, 3, f.closes)
}

func TestRegistry_EmptyEmail(t *testing.T) {
	r := NewRegistry(&countingFactory{})
	_, err := r.Open(context.Background(), "  ")
	assert.Error(t, err)
}

func TestRegistry_MemoryBackend(t *testing.T) {
	ctx := context.Background()
	f, err := backend.NewFactory(backend.Config{Type: backend.MemoryBackend}, nil)
	require.NoError(t, err)
	r := NewRegistry(f)
	defer r.Close()

	a, err := r.Open(ctx, "c@example.com")
	require.NoError(t, err)
	_, err = a.AddExpense(ctx, expense("Tea", "2"))
	require.NoError(t, err)
	assert.True(t, a.Balance().Equal(dec("-2")))
}

func TestRegistry_EvictedAccountStaysOpenWhileHeld(t *testing.T) {
	ctx := context.Background()
	f := &countingFactory{}
	r := NewRegistry(f, WithCacheSize(1))
	defer r.Close()

	a, err := r.Open(ctx, "a@example.com")
	require.NoError(t, err)
	b, err := r.Open(ctx, "b@example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, f.closes, "a is evicted from the cache but still held")

	_, err = a.AddExpense(ctx, expense("Tea", "10"))
	require.NoError(t, err)

	// A second holder gets the same account, not a fresh one on the same store.
	again, err := r.Open(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Same(t, a, again)
	assert.Equal(t, 2, f.opens)

	_, err = again.AddExpense(ctx, expense("Cake", "5"))
	require.NoError(t, err)
	balance, err := a.GetBalance(ctx)
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("-15")))
	assert.True(t, a.Balance().Equal(dec("-15")))

	r.Release(again)
	r.Release(a)
	assert.Equal(t, 0, f.closes, "a went back into the cache on its second Open")

	r.Release(b)
	assert.Equal(t, 1, f.closes, "b was evicted by a and closes on its last release")
}

func TestRegistry_EvictionWhileHeld_SQLite(t *testing.T) {
	ctx := context.Background()
	f, err := backend.NewFactory(backend.Config{Type: backend.SQLiteBackend, DataDirectory: t.TempDir()}, nil)
	require.NoError(t, err)
	r := NewRegistry(f, WithCacheSize(1))
	defer r.Close()

	a, err := r.Open(ctx, "a@example.com")
	require.NoError(t, err)
	b, err := r.Open(ctx, "b@example.com")
	require.NoError(t, err)
	defer r.Release(b)

	_, err = a.AddExpense(ctx, expense("Tea", "10"))
	require.NoError(t, err, "the database stays open until a is released")
	r.Release(a)

	reopened, err := r.Open(ctx, "a@example.com")
	require.NoError(t, err)
	defer r.Release(reopened)
	assert.NotSame(t, a, reopened)
	assert.True(t, reopened.Balance().Equal(dec("-10")))
}

func TestRegistry_ReleaseIsIdempotentPerHolder(t *testing.T) {
	ctx := context.Background()
	f := &countingFactory{}
	r := NewRegistry(f, WithCacheSize(1))
	defer r.Close()

	a, err := r.Open(ctx, "a@example.com")
	require.NoError(t, err)
	r.Release(a)
	r.Release(a)
	r.Release(nil)

	_, err = r.Open(ctx, "b@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, f.closes)
}
