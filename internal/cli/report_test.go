package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

func TestMoney(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{0, "0.00"},
		{1234, "12.34"},
		{123456789, "1,234,567.89"},
		{-50000, "-500.00"},
	}
	for _, tt := range tests {
		if got := money(core.Money{Cents: tt.cents}); got != tt.want {
			t.Errorf("money(%d) = %q, want %q", tt.cents, got, tt.want)
		}
	}
}

func TestWriteReport(t *testing.T) {
	ctx := context.Background()
	ledger := services.NewLedger(storage.NewMemoryRepository(),
		services.WithClock(func() time.Time { return time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC) }))

	add := func(typ core.TxType, cents int64, category, date string) {
		d, err := core.ParseDate(date)
		require.NoError(t, err)
		_, err = ledger.AddTransaction(ctx, "alice", core.Transaction{
			Type: typ, Amount: core.Money{Cents: cents}, Category: category,
			PaymentMethod: core.PaymentCard, Date: d,
		})
		require.NoError(t, err)
	}
	add(core.Income, 500000, "Salary", "2024-03-01")
	add(core.Expense, 12050, "Groceries", "2024-03-14")
	add(core.Expense, 3000, "Transportation", "2024-03-15")
	require.NoError(t, ledger.SetBudget(ctx, "alice", "Groceries", core.Money{Cents: 20000}))
	_, err := ledger.SetGoal(ctx, "alice", "Trip", core.Money{Cents: 100000})
	require.NoError(t, err)

	dash, err := ledger.Dashboard(ctx, "alice")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, "alice", dash))
	out := buf.String()

	assert.Contains(t, out, "Ledger report for alice on 2024-03-15")
	assert.Contains(t, out, "4,849.50")
	assert.Contains(t, out, "Groceries")
	assert.Contains(t, out, "On Track")
	assert.Contains(t, out, `Goal "Trip": 0.00 of 1,000.00`)
}
