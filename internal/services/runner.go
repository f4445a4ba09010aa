package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// RunSummary counts the outcome of one pass over all users.
type RunSummary struct {
	Users   int
	Created int
	Failed  int
}

// AutopayRunner processes autopays for every stored user.
type AutopayRunner struct {
	ledger      *Ledger
	concurrency int
}

func NewAutopayRunner(ledger *Ledger, concurrency int) *AutopayRunner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &AutopayRunner{ledger: ledger, concurrency: concurrency}
}

// RunOnce processes all users with bounded concurrency. A failing user is
// logged and counted; it does not stop the others.
func (r *AutopayRunner) RunOnce(ctx context.Context) (RunSummary, error) {
	users, err := r.ledger.Users(ctx)
	if err != nil {
		return RunSummary{}, fmt.Errorf("list users: %w", err)
	}

	var created, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for _, userID := range users {
		userID := userID
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			res, err := r.ledger.ProcessAutopays(gctx, userID)
			if err != nil {
				failed.Add(1)
				slog.ErrorContext(gctx, "Autopay processing failed", "user_id", userID, "error", err)
				return nil
			}
			created.Add(int64(res.Created))
			return nil
		})
	}
	err = g.Wait()

	return RunSummary{Users: len(users), Created: int(created.Load()), Failed: int(failed.Load())}, err
}

// Run calls RunOnce immediately and then on every tick until ctx is done.
func (r *AutopayRunner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.runLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runLogged(ctx)
		}
	}
}

func (r *AutopayRunner) runLogged(ctx context.Context) {
	start := time.Now()
	sum, err := r.RunOnce(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Autopay run failed", "error", err)
		return
	}
	slog.InfoContext(ctx, "Autopay run complete",
		"users", sum.Users,
		"created", sum.Created,
		"failed", sum.Failed,
		"duration_ms", time.Since(start).Milliseconds())
}
