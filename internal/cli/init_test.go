package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/config"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

func TestOpenLedger_SeedsNewUsersFromProfile(t *testing.T) {
	profile := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(profile, []byte(`
budgets:
  - category: Groceries
    amount: "250"
goal:
  name: Bike
  target: "800"
`), 0644))

	cfg := &config.Config{
		DataBackend:  "memory",
		CacheSize:    8,
		CacheTTL:     time.Minute,
		ProfilePath:  profile,
		AMQPExchange: "fintrack",
		AMQPQueue:    "ledger_export",
	}
	logger := applog.New(applog.Config{Level: slog.LevelError, Format: "text", Output: io.Discard})

	rt, err := OpenLedger(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, rt.Close()) })

	assert.Nil(t, rt.Backend.Publisher)

	s, err := rt.Ledger.Snapshot(context.Background(), "newcomer")
	require.NoError(t, err)
	assert.Equal(t, core.Money{Cents: 25000}, s.Budgets["Groceries"])
	require.NotNil(t, s.Goal)
	assert.Equal(t, "Bike", s.Goal.Name)

	// The dashboard goes through the wired cache.
	first, err := rt.Ledger.Dashboard(context.Background(), "newcomer")
	require.NoError(t, err)
	second, err := rt.Ledger.Dashboard(context.Background(), "newcomer")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestOpenLedger_BadProfile(t *testing.T) {
	profile := filepath.Join(t.TempDir(), "profile.toml")
	require.NoError(t, os.WriteFile(profile, []byte("[[budgets]]\ncategory = \"Food\"\namount = \"-3\"\n"), 0644))

	cfg := &config.Config{DataBackend: "memory", CacheSize: 8, CacheTTL: time.Minute, ProfilePath: profile}
	_, err := OpenLedger(context.Background(), cfg, applog.New(applog.Config{Output: io.Discard}))
	assert.ErrorContains(t, err, "load profile")
}
