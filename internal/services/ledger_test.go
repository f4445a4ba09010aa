package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, ev *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *fakePublisher) kinds() []amqp.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventKind, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Kind
	}
	return out
}

type saveCounter struct {
	storage.Repository
	mu    sync.Mutex
	saves int
}

func (r *saveCounter) Save(ctx context.Context, userID string, s *core.Snapshot) error {
	r.mu.Lock()
	r.saves++
	r.mu.Unlock()
	return r.Repository.Save(ctx, userID, s)
}

func seqIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func fixedClock(y int, m time.Month, d int) Clock {
	return func() time.Time { return time.Date(y, m, d, 12, 0, 0, 0, time.UTC) }
}

type fixture struct {
	ledger *Ledger
	repo   *storage.MemoryRepository
	pub    *fakePublisher
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	repo := storage.NewMemoryRepository()
	pub := &fakePublisher{}
	base := []Option{
		WithPublisher(pub),
		WithClock(fixedClock(2024, time.March, 15)),
		WithIDGenerator(seqIDs()),
	}
	return fixture{
		ledger: NewLedger(repo, append(base, opts...)...),
		repo:   repo,
		pub:    pub,
	}
}

func expense(date, category string, cents int64) core.Transaction {
	d, err := core.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return core.Transaction{
		Type:          core.Expense,
		Amount:        core.Money{Cents: cents},
		Category:      category,
		PaymentMethod: core.PaymentCard,
		Date:          d,
	}
}

func TestAddAndDeleteTransaction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	created, err := f.ledger.AddTransaction(ctx, "alice", expense("2024-03-10", "  Groceries ", 2500))
	require.NoError(t, err)
	assert.Equal(t, "id-1", created.ID)
	assert.Equal(t, "Groceries", created.Category)

	s, err := f.repo.Load(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, s.Transactions, 1)

	require.NoError(t, f.ledger.DeleteTransaction(ctx, "alice", "id-1"))
	err = f.ledger.DeleteTransaction(ctx, "alice", "id-1")
	require.ErrorIs(t, err, core.ErrTransactionNotFound)

	assert.Equal(t, []amqp.EventKind{amqp.TransactionCreated, amqp.TransactionDeleted}, f.pub.kinds())
}

func TestAddTransactionValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	bad := expense("2024-03-10", "Groceries", 0)
	_, err := f.ledger.AddTransaction(ctx, "alice", bad)
	require.ErrorIs(t, err, core.ErrInvalidAmount)

	users, err := f.repo.Users(ctx)
	require.NoError(t, err)
	assert.Empty(t, users, "failed command must not persist anything")
	assert.Empty(t, f.pub.kinds())
}

func TestPublishFailureDoesNotFailCommand(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")

	_, err := f.ledger.AddTransaction(context.Background(), "alice", expense("2024-03-10", "Travel", 100))
	require.NoError(t, err)
}

func TestNewUserIsSeeded(t *testing.T) {
	ctx := context.Background()
	seeded := core.NewSnapshot()
	require.NoError(t, seeded.SetBudget("Groceries", core.Money{Cents: 30000}))

	f := newFixture(t, WithSeed(func() (*core.Snapshot, error) { return seeded.Clone(), nil }))

	lines, err := f.ledger.Budgets(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "Groceries", lines[0].Category)
}

func TestApproveAndDismissAnomaly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for i, cents := range []int64{10000, 10000, 10000, 10000, 10000, 50000} {
		_, err := f.ledger.AddTransaction(ctx, "alice", expense(fmt.Sprintf("2024-03-0%d", i+1), "Food & Dining", cents))
		require.NoError(t, err)
	}

	report, err := f.ledger.Anomalies(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, report.Alerts, 1)
	flagged := report.Alerts[0].ID
	assert.Equal(t, "id-6", flagged)

	require.NoError(t, f.ledger.ApproveAnomaly(ctx, "alice", flagged))
	require.ErrorIs(t, f.ledger.ApproveAnomaly(ctx, "alice", flagged), ErrAlreadyApproved)

	report, err = f.ledger.Anomalies(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Empty(t, report.Alerts)
	assert.Len(t, report.Anomalies, 1, "approval hides the alert, not the detection")
	assert.Equal(t, 1, report.ApprovedCount)

	require.NoError(t, f.ledger.DismissAnomaly(ctx, "alice", flagged))
	require.ErrorIs(t, f.ledger.DismissAnomaly(ctx, "alice", "missing"), core.ErrTransactionNotFound)

	report, err = f.ledger.Anomalies(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Zero(t, report.ApprovedCount, "dismissal forgets the approval")
}

func TestGoalCommands(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.ledger.Goal(ctx, "alice")
	require.ErrorIs(t, err, core.ErrGoalNotSet)
	_, err = f.ledger.DepositToGoal(ctx, "alice", core.Money{Cents: 100})
	require.ErrorIs(t, err, core.ErrGoalNotSet)

	_, err = f.ledger.SetGoal(ctx, "alice", "Bike", core.Money{Cents: 100000})
	require.NoError(t, err)
	goal, err := f.ledger.DepositToGoal(ctx, "alice", core.Money{Cents: 25000})
	require.NoError(t, err)
	assert.Equal(t, int64(25000), goal.Saved.Cents)

	status, err := f.ledger.Goal(ctx, "alice")
	require.NoError(t, err)
	assert.InDelta(t, 25.0, status.Percentage, 0.001)

	// Retargeting keeps the saved amount.
	goal, err = f.ledger.SetGoal(ctx, "alice", "E-bike", core.Money{Cents: 200000})
	require.NoError(t, err)
	assert.Equal(t, int64(25000), goal.Saved.Cents)
}

func TestBudgetCommands(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.ledger.SetBudget(ctx, "alice", "Travel", core.Money{Cents: 10000}))
	require.ErrorIs(t, f.ledger.SetBudget(ctx, "alice", " ", core.Money{Cents: 1}), core.ErrEmptyCategory)

	removed, err := f.ledger.RemoveBudget(ctx, "alice", "Travel")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = f.ledger.RemoveBudget(ctx, "alice", "Travel")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestAutopayLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	rule, err := f.ledger.AddAutopay(ctx, "alice", core.AutopayRule{
		Name:     "Rent",
		Amount:   core.Money{Cents: 120000},
		Category: "Rent/Mortgage",
		Day:      1,
		IsActive: false,
	})
	require.NoError(t, err)
	assert.True(t, rule.IsActive, "new rules start active")

	_, err = f.ledger.AddAutopay(ctx, "alice", core.AutopayRule{Name: "Gym", Amount: core.Money{Cents: 3000}, Category: "Healthcare", Day: 20})
	require.NoError(t, err)

	upcoming, err := f.ledger.UpcomingAutopays(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, "Gym", upcoming[0].Name)
	assert.Equal(t, 5, upcoming[0].DaysUntil)

	res, err := f.ledger.ProcessAutopays(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)

	res, err = f.ledger.ProcessAutopays(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, res.Created, "a rule fires at most once per month")

	active, err := f.ledger.ToggleAutopay(ctx, "alice", rule.ID)
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, f.ledger.DeleteAutopay(ctx, "alice", rule.ID))
	require.ErrorIs(t, f.ledger.DeleteAutopay(ctx, "alice", rule.ID), core.ErrAutopayNotFound)
	_, err = f.ledger.ToggleAutopay(ctx, "alice", rule.ID)
	require.ErrorIs(t, err, core.ErrAutopayNotFound)

	page, err := f.ledger.Transactions(ctx, "alice", TransactionQuery{})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total, "generated transaction survives rule deletion")
	assert.True(t, page.Transactions[0].IsAutopay)

	assert.Contains(t, f.pub.kinds(), amqp.AutopayProcessed)
}

func TestProcessAutopaysSkipsBrokenRule(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	stored := core.NewSnapshot()
	stored.Autopays = append(stored.Autopays, core.AutopayRule{
		ID: "legacy", Name: strings.Repeat("x", 195), Amount: core.Money{Cents: 500}, Category: " ", Day: 1, IsActive: true,
	})
	require.NoError(t, f.repo.Save(ctx, "alice", stored))
	_, err := f.ledger.AddAutopay(ctx, "alice", core.AutopayRule{Name: "Rent", Amount: core.Money{Cents: 120000}, Category: "Rent/Mortgage", Day: 1})
	require.NoError(t, err)

	res, err := f.ledger.ProcessAutopays(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "legacy", res.Skipped[0].RuleID)

	s, err := f.ledger.Snapshot(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, s.Transactions, 1)
	assert.Equal(t, "Rent", strings.TrimPrefix(s.Transactions[0].Description, "Autopay: "))
}

func TestTransactionsPagination(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for day := 1; day <= 12; day++ {
		_, err := f.ledger.AddTransaction(ctx, "alice", expense(fmt.Sprintf("2024-03-%02d", day), "Groceries", int64(day*100)))
		require.NoError(t, err)
	}
	inc := core.Income
	_, err := f.ledger.AddTransaction(ctx, "alice", core.Transaction{
		Type: inc, Amount: core.Money{Cents: 500000}, Category: "Salary",
		PaymentMethod: core.PaymentBankTransfer, Date: core.NewDate(2024, 3, 1),
	})
	require.NoError(t, err)

	page, err := f.ledger.Transactions(ctx, "alice", TransactionQuery{Page: 2, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 13, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Transactions, 5)
	assert.Equal(t, "2024-03-07", page.Transactions[0].Date.String())

	page, err = f.ledger.Transactions(ctx, "alice", TransactionQuery{Type: &inc})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, DefaultPageLimit, page.Limit)

	page, err = f.ledger.Transactions(ctx, "alice", TransactionQuery{Page: 9})
	require.NoError(t, err)
	assert.Empty(t, page.Transactions)

	from, to := core.NewDate(2024, 3, 10), core.NewDate(2024, 3, 11)
	page, err = f.ledger.Transactions(ctx, "alice", TransactionQuery{From: &from, To: &to, Category: "groceries"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
}

func TestCategoriesAndExport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.ledger.AddCategory(ctx, "alice", core.Expense, "Pets"))
	require.ErrorIs(t, f.ledger.AddCategory(ctx, "alice", core.Expense, "pets"), core.ErrDuplicateCategory)
	require.ErrorIs(t, f.ledger.AddCategory(ctx, "alice", core.Expense, "groceries"), core.ErrDuplicateCategory)

	list, err := f.ledger.Categories(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Pets", list.Expense[len(list.Expense)-1])
	assert.Equal(t, core.DefaultCategories(core.Income), list.Income)

	_, err = f.ledger.AddTransaction(ctx, "alice", expense("2024-03-10", "Pets", 1250))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.ledger.ExportCSV(ctx, "alice", &buf))
	assert.True(t, strings.HasSuffix(buf.String(), "2024-03-10,expense,Pets,\"\",card,12.50\n"))
}

func TestDashboardCaching(t *testing.T) {
	ctx := context.Background()
	dashboards := cache.NewLRUCache[*Dashboard](10, time.Minute)
	f := newFixture(t, WithDashboardCache(dashboards))

	_, err := f.ledger.AddTransaction(ctx, "alice", expense("2024-03-14", "Groceries", 4000))
	require.NoError(t, err)

	first, err := f.ledger.Dashboard(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(4000), first.Periods.Week.Cents)
	assert.Equal(t, int64(-4000), first.Balance.Cents)

	second, err := f.ledger.Dashboard(ctx, "alice")
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = f.ledger.AddTransaction(ctx, "alice", expense("2024-03-15", "Groceries", 1000))
	require.NoError(t, err)
	assert.Zero(t, dashboards.Size(), "writes invalidate the user's dashboard")

	third, err := f.ledger.Dashboard(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), third.Periods.Today.Cents)
	assert.Equal(t, 2, third.Series.Len())
}

// writeDuringLoad runs a write the first time the snapshot is loaded.
type writeDuringLoad struct {
	storage.Repository
	armed atomic.Bool
	write func()
}

func (r *writeDuringLoad) Load(ctx context.Context, userID string) (*core.Snapshot, error) {
	s, err := r.Repository.Load(ctx, userID)
	if r.armed.CompareAndSwap(true, false) {
		r.write()
	}
	return s, err
}

func TestDashboardNotCachedWhenWriteOvertakesBuild(t *testing.T) {
	ctx := context.Background()
	dashboards := cache.NewLRUCache[*Dashboard](10, time.Minute)
	repo := &writeDuringLoad{Repository: storage.NewMemoryRepository()}
	l := NewLedger(repo, WithClock(fixedClock(2024, time.March, 15)), WithIDGenerator(seqIDs()),
		WithDashboardCache(dashboards))

	_, err := l.AddTransaction(ctx, "alice", expense("2024-03-15", "Groceries", 1000))
	require.NoError(t, err)

	repo.write = func() {
		_, err := l.AddTransaction(ctx, "alice", expense("2024-03-15", "Groceries", 1000))
		require.NoError(t, err)
	}
	repo.armed.Store(true)

	first, err := l.Dashboard(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), first.Periods.Today.Cents)
	assert.Zero(t, dashboards.Size())

	second, err := l.Dashboard(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), second.Periods.Today.Cents)
	assert.Equal(t, 1, dashboards.Size())
}

func TestConcurrentWritesAreSerialised(t *testing.T) {
	ctx := context.Background()
	counter := &saveCounter{Repository: storage.NewMemoryRepository()}
	l := NewLedger(counter, WithClock(fixedClock(2024, time.March, 15)))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.AddTransaction(ctx, "alice", expense("2024-03-01", "Groceries", 100))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	page, err := l.Transactions(ctx, "alice", TransactionQuery{Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, 50, page.Total, "no update may be lost")
	assert.Equal(t, 50, counter.saves)
}
