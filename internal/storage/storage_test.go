package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

func sampleSnapshot(t *testing.T) *core.Snapshot {
	t.Helper()
	s := core.NewSnapshot()
	require.NoError(t, s.AddTransaction(core.Transaction{
		ID: "t1", Type: core.Expense, Amount: core.Money{Cents: 1250}, Category: "Groceries",
		PaymentMethod: core.PaymentCard, Description: `eggs, "free range"`, Date: core.NewDate(2025, 3, 2),
	}))
	require.NoError(t, s.AddTransaction(core.Transaction{
		ID: "t2", Type: core.Income, Amount: core.Money{Cents: 300000}, Category: "Salary",
		PaymentMethod: core.PaymentBankTransfer, Date: core.NewDate(2025, 3, 1),
	}))
	require.NoError(t, s.AddTransaction(core.Transaction{
		ID: "t3", Type: core.Expense, Amount: core.Money{Cents: 999}, Category: "Subscriptions",
		PaymentMethod: core.PaymentBankTransfer, Date: core.NewDate(2025, 3, 5), IsAutopay: true, AutopayID: "a1",
	}))
	require.NoError(t, s.SetBudget("Groceries", core.Money{Cents: 40000}))
	require.NoError(t, s.SetBudget("Fun", core.Money{}))
	require.NoError(t, s.SetGoal("Holiday", core.Money{Cents: 200000}))
	require.NoError(t, s.DepositToGoal(core.Money{Cents: 5000}))
	s.ApproveAnomaly("t1")

	ym := core.YearMonth{Year: 2025, Month: 3}
	require.NoError(t, s.AddAutopay(core.AutopayRule{
		ID: "a1", Name: "Music", Amount: core.Money{Cents: 999}, Category: "Subscriptions",
		Day: 5, IsActive: true, LastProcessed: &ym,
	}))
	require.NoError(t, s.AddAutopay(core.AutopayRule{
		ID: "a2", Name: "Rent", Amount: core.Money{Cents: 90000}, Category: "Rent/Mortgage",
		Day: core.LastDayOfMonth, Description: "flat",
	}))
	require.NoError(t, s.AddCategory(core.Expense, "Pets"))
	require.NoError(t, s.AddCategory(core.Expense, "Hobbies"))
	require.NoError(t, s.AddCategory(core.Income, "Lottery"))
	return s
}

func repositories(t *testing.T) map[string]Repository {
	t.Helper()
	sqliteRepo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "fintrack.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteRepo.Close() })

	return map[string]Repository{
		"memory": NewMemoryRepository(),
		"sqlite": sqliteRepo,
	}
}

func TestRepositoryRoundTrip(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := repo.Load(ctx, "alice")
			assert.True(t, errors.Is(err, ErrUserNotFound), "unexpected error %v", err)

			want := sampleSnapshot(t)
			require.NoError(t, repo.Save(ctx, "alice", want))

			got, err := repo.Load(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, want, got)

			users, err := repo.Users(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"alice"}, users)
		})
	}
}

func TestRepositorySaveReplaces(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := sampleSnapshot(t)
			require.NoError(t, repo.Save(ctx, "bob", s))

			require.NoError(t, s.DeleteTransaction("t1"))
			s.RemoveBudget("Fun")
			require.NoError(t, repo.Save(ctx, "bob", s))

			got, err := repo.Load(ctx, "bob")
			require.NoError(t, err)
			assert.Len(t, got.Transactions, 2)
			assert.NotContains(t, got.Budgets, "Fun")
			assert.Empty(t, got.ApprovedAnomalies)
		})
	}
}

func TestMemoryRepositoryIsolation(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	s := sampleSnapshot(t)
	require.NoError(t, repo.Save(ctx, "carol", s))

	s.Transactions[0].Category = "changed"
	got, err := repo.Load(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, "Groceries", got.Transactions[0].Category)
}

func TestSQLiteEmptyUser(t *testing.T) {
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer repo.Close()

	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, "dave", core.NewSnapshot()))
	got, err := repo.Load(ctx, "dave")
	require.NoError(t, err)
	assert.Equal(t, core.NewSnapshot(), got)
	assert.NoError(t, repo.Ping(ctx))
}

func TestMigrateLedgerSchemaIsRepeatable(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "schema.db")

	first, err := migrateLedgerSchema(dbPath)
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	again, err := migrateLedgerSchema(dbPath)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	repo, err := NewSQLiteRepository(dbPath)
	require.NoError(t, err)
	defer repo.Close()

	var tables int
	require.NoError(t, repo.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name IN ('transactions', 'autopays', ?)`,
		schemaTable).Scan(&tables))
	assert.Equal(t, 3, tables)
}
