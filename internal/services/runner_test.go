package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

type failingSaves struct {
	storage.Repository
	user string
}

func (r failingSaves) Save(ctx context.Context, userID string, s *core.Snapshot) error {
	if userID == r.user {
		return errors.New("disk full")
	}
	return r.Repository.Save(ctx, userID, s)
}

func seedRule(t *testing.T, repo storage.Repository, userID string, day core.AutopayDay) {
	t.Helper()
	s := core.NewSnapshot()
	require.NoError(t, s.AddAutopay(core.AutopayRule{
		ID:       userID + "-rule",
		Name:     "Streaming",
		Amount:   core.Money{Cents: 1299},
		Category: "Subscriptions",
		Day:      day,
		IsActive: true,
	}))
	require.NoError(t, repo.Save(context.Background(), userID, s))
}

func TestAutopayRunnerRunOnce(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryRepository()
	seedRule(t, mem, "alice", 10)
	seedRule(t, mem, "bob", core.LastDayOfMonth)
	seedRule(t, mem, "carol", 1)
	seedRule(t, mem, "broken", 1)

	ledger := NewLedger(failingSaves{Repository: mem, user: "broken"},
		WithClock(fixedClock(2024, time.February, 12)),
		WithIDGenerator(seqIDs()))
	runner := NewAutopayRunner(ledger, 2)

	sum, err := runner.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, RunSummary{Users: 4, Created: 2, Failed: 1}, sum)

	sum, err = runner.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, sum.Created, "second run in the same month creates nothing")

	bob, err := mem.Load(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, bob.Transactions, "last-day rule waits for the 29th")
}

func TestAutopayRunnerStopsOnCancel(t *testing.T) {
	ledger := NewLedger(storage.NewMemoryRepository())
	runner := NewAutopayRunner(ledger, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.Run(ctx, time.Hour)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after cancel")
	}
}
