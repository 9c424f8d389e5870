package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"fintrack/internal/backend"
	"fintrack/internal/cache"
	"fintrack/internal/core"
)

const (
	defaultRegistrySize = 128
	defaultRegistryTTL  = 30 * time.Minute
)

// Registry hands out one Account per user email. Every Open must be paired
// with a Release. An account leaving the cache is closed once its last holder
// releases it; until then Open keeps returning the same Account.
type Registry struct {
	factory   backend.Factory
	publisher EventPublisher
	accounts  *cache.LRUCache[*Account]
	group     singleflight.Group

	mu   sync.Mutex
	live map[string]*lease
}

// lease tracks an open account. cached reports whether the LRU currently
// holds it; holders counts unreleased Opens.
type lease struct {
	account *Account
	holders int
	cached  bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	size      int
	ttl       time.Duration
	publisher EventPublisher
}

// WithCacheSize bounds the number of idle accounts kept open.
func WithCacheSize(n int) RegistryOption {
	return func(o *registryOptions) { o.size = n }
}

// WithIdleTTL closes accounts unused for d.
func WithIdleTTL(d time.Duration) RegistryOption {
	return func(o *registryOptions) { o.ttl = d }
}

// WithPublisher attaches an event publisher to every opened account.
func WithPublisher(p EventPublisher) RegistryOption {
	return func(o *registryOptions) { o.publisher = p }
}

func NewRegistry(factory backend.Factory, opts ...RegistryOption) *Registry {
	o := registryOptions{size: defaultRegistrySize, ttl: defaultRegistryTTL}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Registry{factory: factory, publisher: o.publisher, live: make(map[string]*lease)}
	r.accounts = cache.NewLRUCache(o.size, o.ttl, cache.WithEvictHook(r.evicted))
	return r
}

// Open returns the account for email, opening its storage on first use. The
// caller must Release the account when done with it.
func (r *Registry) Open(ctx context.Context, email string) (*Account, error) {
	key := strings.ToLower(strings.TrimSpace(email))
	if key == "" {
		return nil, fmt.Errorf("open account: empty email")
	}

	for {
		if a, ok := r.acquire(key); ok {
			return a, nil
		}
		_, err, _ := r.group.Do(key, func() (any, error) {
			r.mu.Lock()
			_, ok := r.live[key]
			r.mu.Unlock()
			if ok {
				return nil, nil
			}

			store, err := r.factory.Open(ctx, key)
			if err != nil {
				return nil, err
			}
			a, err := OpenAccount(ctx, key, store, r.publisher)
			if err != nil {
				store.Close()
				return nil, err
			}
			r.mu.Lock()
			r.live[key] = &lease{account: a}
			r.mu.Unlock()
			slog.InfoContext(ctx, "Account opened", "email", key, "balance", a.Balance().String())
			return nil, nil
		})
		if err != nil {
			return nil, err
		}
	}
}

// Release marks one holder of a as done. An account already evicted from the
// cache is closed when its last holder releases it.
func (r *Registry) Release(a *Account) {
	if a == nil {
		return
	}
	key := a.Owner()

	r.mu.Lock()
	l, ok := r.live[key]
	if !ok || l.account != a || l.holders == 0 {
		r.mu.Unlock()
		return
	}
	l.holders--
	retire := l.holders == 0 && !l.cached
	if retire {
		delete(r.live, key)
	}
	r.mu.Unlock()

	if retire {
		r.closeAccount(key, a)
	}
}

// Cache exposes the account cache for periodic expiry by a cache.Manager.
func (r *Registry) Cache() cache.Cleaner { return r.accounts }

// Close closes every open account, including ones still held.
func (r *Registry) Close() error {
	r.accounts.Purge()

	r.mu.Lock()
	remaining := r.live
	r.live = make(map[string]*lease)
	r.mu.Unlock()

	var errs []error
	for key, l := range remaining {
		if err := l.account.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close account %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) acquire(key string) (*Account, bool) {
	r.mu.Lock()
	l, ok := r.live[key]
	if !ok {
		r.mu.Unlock()
		return nil, false
	}
	l.holders++
	a := l.account
	r.mu.Unlock()

	if _, ok := r.accounts.Get(key); ok {
		return a, true
	}
	// Not cached: first use, or evicted while held.
	r.mu.Lock()
	recache := false
	if cur, ok := r.live[key]; ok && cur.account == a && !cur.cached {
		cur.cached = true
		recache = true
	}
	r.mu.Unlock()
	if recache {
		r.accounts.Set(key, a)
	}
	return a, true
}

// evicted runs when the cache drops an account. A held account stays open
// until Release.
func (r *Registry) evicted(key string, a *Account) {
	r.mu.Lock()
	l, ok := r.live[key]
	if !ok || l.account != a {
		r.mu.Unlock()
		return
	}
	l.cached = false
	holders := l.holders
	retire := holders == 0
	if retire {
		delete(r.live, key)
	}
	r.mu.Unlock()

	if retire {
		r.closeAccount(key, a)
		return
	}
	slog.Debug("Evicted account still held; closing on release", "email", key, "holders", holders)
}

func (r *Registry) closeAccount(key string, a *Account) {
	if err := a.Close(); err != nil {
		slog.Error("Failed to close evicted account", "email", key, "error", err)
		return
	}
	slog.Debug("Closed evicted account", "email", key)
}

func isNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}
