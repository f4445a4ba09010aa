// Package worker holds the event consumers that run outside the API process.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// LedgerSink receives a user's complete ledger. The Sheets client
// implements it.
type LedgerSink interface {
	ReplaceLedger(ctx context.Context, userID string, txs []core.Transaction) error
}

// ExportWorker mirrors a user's ledger to the sink whenever an event for
// that user arrives. Events are notifications only: the worker always
// reloads the snapshot, so replays and reordering are harmless.
type ExportWorker struct {
	repo storage.Repository
	sink LedgerSink
}

func NewExportWorker(repo storage.Repository, sink LedgerSink) *ExportWorker {
	return &ExportWorker{repo: repo, sink: sink}
}

// HandleEvent is the AMQP handler. Returning an error requeues the message.
func (w *ExportWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"kind", ev.Kind,
		"user_id", ev.UserID,
		"transactions", len(ev.TransactionIDs))

	return w.mirror(ctx, ev.UserID)
}

func (w *ExportWorker) mirror(ctx context.Context, userID string) error {
	s, err := w.repo.Load(ctx, userID)
	if errors.Is(err, storage.ErrUserNotFound) {
		slog.WarnContext(ctx, "Ledger event for unknown user, skipping", "user_id", userID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	if err := w.sink.ReplaceLedger(ctx, userID, s.Transactions); err != nil {
		return fmt.Errorf("mirror ledger: %w", err)
	}
	return nil
}

// StartupSync mirrors every stored user once, covering events missed while
// the worker was down. Failures are logged and counted.
func (w *ExportWorker) StartupSync(ctx context.Context) (synced, failed int, err error) {
	users, err := w.repo.Users(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list users: %w", err)
	}

	for _, userID := range users {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		if err := w.mirror(ctx, userID); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror ledger during startup", "user_id", userID, "error", err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(users),
		"synced", synced,
		"errors", failed)
	return synced, failed, nil
}
