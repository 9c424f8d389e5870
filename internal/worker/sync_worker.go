package worker

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/sheets"
)

// AccountOpener resolves a user's account. *services.Registry satisfies it.
type AccountOpener interface {
	Open(ctx context.Context, email string) (*services.Account, error)
	Release(a *services.Account)
}

// UserLister enumerates every registered user. *storage.UserStore satisfies it.
type UserLister interface {
	Emails(ctx context.Context) ([]string, error)
}

// SyncWorker mirrors users' ledgers to an external spreadsheet.
type SyncWorker struct {
	accounts AccountOpener
	exporter sheets.Exporter
	users    UserLister
}

func NewSyncWorker(accounts AccountOpener, exporter sheets.Exporter, users UserLister) *SyncWorker {
	return &SyncWorker{
		accounts: accounts,
		exporter: exporter,
		users:    users,
	}
}

// HandleEvent processes a single ledger event from AMQP. Every event, whatever
// its op, rewrites the user's whole tab so redelivered or reordered events
// converge on the same result.
func (w *SyncWorker) HandleEvent(ctx context.Context, ev core.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"user", ev.User,
		"kind", ev.Kind,
		"op", ev.Op,
		"id", ev.ID)

	if err := w.syncUser(ctx, ev.User); err != nil {
		return fmt.Errorf("sync %s: %w", ev.User, err)
	}
	return nil
}

// ResyncAll exports every registered user. Individual failures are logged and
// counted; the first one is returned after all users were attempted.
// This is the backup path for events lost while the worker was down.
func (w *SyncWorker) ResyncAll(ctx context.Context) error {
	if w.users == nil {
		return fmt.Errorf("resync: no user lister configured")
	}
	emails, err := w.users.Emails(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	var firstErr error
	synced, failed := 0, 0
	for _, email := range emails {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.syncUser(ctx, email); err != nil {
			slog.ErrorContext(ctx, "Failed to resync user", "user", email, "error", err)
			failed++
			if firstErr == nil {
				firstErr = fmt.Errorf("resync %s: %w", email, err)
			}
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Full resync completed",
		"total", len(emails),
		"synced", synced,
		"errors", failed)
	return firstErr
}

func (w *SyncWorker) syncUser(ctx context.Context, email string) error {
	account, err := w.accounts.Open(ctx, email)
	if err != nil {
		return fmt.Errorf("open account: %w", err)
	}
	defer w.accounts.Release(account)
	snap, err := account.FormatForSummary(ctx)
	if err != nil {
		return err
	}
	if err := w.exporter.ExportUser(ctx, account.Owner(), snap); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}
