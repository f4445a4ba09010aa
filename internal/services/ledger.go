// Package services orchestrates ledger commands and queries on top of the
// storage repository, the analytics engine and the event publisher.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/amqp"
	"fintrack/internal/autopay"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// Publisher emits ledger change events. *amqp.Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, ev *amqp.LedgerEvent) error
}

// Clock returns the current time. Tests pin it.
type Clock func() time.Time

// ErrAlreadyApproved is returned when an anomaly approval is repeated.
var ErrAlreadyApproved = errors.New("anomaly already approved")

// Ledger serialises every read-modify-write of a user's snapshot inside the
// process. Writes from other processes are last-write-wins.
type Ledger struct {
	repo       storage.Repository
	publisher  Publisher
	dashboards cache.Cache[*Dashboard]
	now        Clock
	newID      func() string
	seed       func() (*core.Snapshot, error)

	locks       sync.Map // user id -> *sync.Mutex
	generations sync.Map // user id -> *atomic.Uint64
}

type Option func(*Ledger)

func WithPublisher(p Publisher) Option { return func(l *Ledger) { l.publisher = p } }

func WithClock(c Clock) Option { return func(l *Ledger) { l.now = c } }

func WithIDGenerator(f func() string) Option { return func(l *Ledger) { l.newID = f } }

// WithDashboardCache enables caching of Dashboard results.
func WithDashboardCache(c cache.Cache[*Dashboard]) Option {
	return func(l *Ledger) { l.dashboards = c }
}

// WithSeed sets how the snapshot of a user with no stored data is built.
func WithSeed(f func() (*core.Snapshot, error)) Option { return func(l *Ledger) { l.seed = f } }

func NewLedger(repo storage.Repository, opts ...Option) *Ledger {
	l := &Ledger{
		repo:  repo,
		now:   time.Now,
		newID: uuid.NewString,
		seed:  func() (*core.Snapshot, error) { return core.NewSnapshot(), nil },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Today is the ledger's current calendar day.
func (l *Ledger) Today() core.Date {
	return core.DateOf(l.now())
}

func (l *Ledger) lock(userID string) func() {
	m, _ := l.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// generation counts saved writes for a user. Readers compare it before and
// after building a derived view to detect a write in between.
func (l *Ledger) generation(userID string) *atomic.Uint64 {
	g, _ := l.generations.LoadOrStore(userID, new(atomic.Uint64))
	return g.(*atomic.Uint64)
}

// Snapshot loads the user's snapshot, seeding an empty one for new users.
func (l *Ledger) Snapshot(ctx context.Context, userID string) (*core.Snapshot, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, storage.ErrUserNotFound
	}
	s, err := l.repo.Load(ctx, userID)
	if errors.Is(err, storage.ErrUserNotFound) {
		s, err = l.seed()
		if err != nil {
			return nil, fmt.Errorf("seed snapshot: %w", err)
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	s.Normalize()
	return s, nil
}

// update runs fn against the user's snapshot under the user lock and saves
// the result when fn succeeds.
func (l *Ledger) update(ctx context.Context, userID string, fn func(s *core.Snapshot) error) error {
	unlock := l.lock(userID)
	defer unlock()

	s, err := l.Snapshot(ctx, userID)
	if err != nil {
		return err
	}
	if err := fn(s); err != nil {
		return err
	}
	if err := l.repo.Save(ctx, userID, s); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	l.generation(userID).Add(1)
	l.invalidate(userID)
	return nil
}

func (l *Ledger) invalidate(userID string) {
	if l.dashboards != nil {
		l.dashboards.DeletePrefix(dashboardPrefix(userID))
	}
}

// publish is best effort: the change is already stored.
func (l *Ledger) publish(ctx context.Context, kind amqp.EventKind, userID string, ids ...string) {
	if l.publisher == nil {
		return
	}
	if err := l.publisher.Publish(ctx, amqp.NewLedgerEvent(kind, userID, ids...)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"kind", kind,
			"user_id", userID,
			"error", err)
	}
}

// AddTransaction validates and stores a transaction. An empty ID is
// replaced with a generated one.
func (l *Ledger) AddTransaction(ctx context.Context, userID string, t core.Transaction) (core.Transaction, error) {
	if t.ID == "" {
		t.ID = l.newID()
	}
	t.Category = strings.TrimSpace(t.Category)
	t.Description = strings.TrimSpace(t.Description)

	err := l.update(ctx, userID, func(s *core.Snapshot) error {
		return s.AddTransaction(t)
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction created",
		"user_id", userID,
		"transaction_id", t.ID,
		"tx_type", t.Type,
		"category", t.Category,
		"amount_cents", t.Amount.Cents)
	l.publish(ctx, amqp.TransactionCreated, userID, t.ID)
	return t, nil
}

func (l *Ledger) DeleteTransaction(ctx context.Context, userID, id string) error {
	if err := l.update(ctx, userID, func(s *core.Snapshot) error {
		return s.DeleteTransaction(id)
	}); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Transaction deleted", "user_id", userID, "transaction_id", id)
	l.publish(ctx, amqp.TransactionDeleted, userID, id)
	return nil
}

// ApproveAnomaly hides the transaction from future alerts. A repeated
// approval returns ErrAlreadyApproved and changes nothing.
func (l *Ledger) ApproveAnomaly(ctx context.Context, userID, id string) error {
	err := l.update(ctx, userID, func(s *core.Snapshot) error {
		if !s.ApproveAnomaly(id) {
			return ErrAlreadyApproved
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Anomaly approved", "user_id", userID, "transaction_id", id)
	return nil
}

// DismissAnomaly deletes the flagged transaction.
func (l *Ledger) DismissAnomaly(ctx context.Context, userID, id string) error {
	if err := l.update(ctx, userID, func(s *core.Snapshot) error {
		return s.DismissAnomaly(id)
	}); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Anomaly dismissed", "user_id", userID, "transaction_id", id)
	l.publish(ctx, amqp.TransactionDeleted, userID, id)
	return nil
}

func (l *Ledger) SetBudget(ctx context.Context, userID, category string, amount core.Money) error {
	return l.update(ctx, userID, func(s *core.Snapshot) error {
		return s.SetBudget(category, amount)
	})
}

// RemoveBudget drops a category cap; it reports whether one existed.
func (l *Ledger) RemoveBudget(ctx context.Context, userID, category string) (bool, error) {
	var removed bool
	err := l.update(ctx, userID, func(s *core.Snapshot) error {
		removed = s.RemoveBudget(category)
		return nil
	})
	return removed, err
}

func (l *Ledger) SetGoal(ctx context.Context, userID, name string, target core.Money) (core.SavingsGoal, error) {
	var goal core.SavingsGoal
	err := l.update(ctx, userID, func(s *core.Snapshot) error {
		if err := s.SetGoal(name, target); err != nil {
			return err
		}
		goal = *s.Goal
		return nil
	})
	return goal, err
}

func (l *Ledger) DepositToGoal(ctx context.Context, userID string, amount core.Money) (core.SavingsGoal, error) {
	var goal core.SavingsGoal
	err := l.update(ctx, userID, func(s *core.Snapshot) error {
		if err := s.DepositToGoal(amount); err != nil {
			return err
		}
		goal = *s.Goal
		return nil
	})
	return goal, err
}

// AddAutopay stores a new, active rule.
func (l *Ledger) AddAutopay(ctx context.Context, userID string, rule core.AutopayRule) (core.AutopayRule, error) {
	if rule.ID == "" {
		rule.ID = l.newID()
	}
	rule.Name = strings.TrimSpace(rule.Name)
	rule.Category = strings.TrimSpace(rule.Category)
	rule.IsActive = true
	rule.LastProcessed = nil

	if err := l.update(ctx, userID, func(s *core.Snapshot) error {
		return s.AddAutopay(rule)
	}); err != nil {
		return core.AutopayRule{}, err
	}
	slog.InfoContext(ctx, "Autopay created", "user_id", userID, "autopay_id", rule.ID, "day", rule.Day.String())
	return rule, nil
}

// ToggleAutopay flips a rule between active and paused and returns the new
// state.
func (l *Ledger) ToggleAutopay(ctx context.Context, userID, id string) (bool, error) {
	var active bool
	err := l.update(ctx, userID, func(s *core.Snapshot) error {
		var err error
		active, err = s.ToggleAutopay(id)
		return err
	})
	return active, err
}

func (l *Ledger) DeleteAutopay(ctx context.Context, userID, id string) error {
	return l.update(ctx, userID, func(s *core.Snapshot) error {
		return s.DeleteAutopay(id)
	})
}

// ProcessAutopays generates this month's due autopay expenses for a user.
func (l *Ledger) ProcessAutopays(ctx context.Context, userID string) (autopay.Result, error) {
	today := l.Today()
	var res autopay.Result
	err := l.update(ctx, userID, func(s *core.Snapshot) error {
		res = autopay.Apply(s, today, l.newID)
		return nil
	})
	if err != nil {
		return autopay.Result{}, err
	}

	for _, skipped := range res.Skipped {
		slog.WarnContext(ctx, "Autopay rule skipped",
			"user_id", userID,
			"autopay_id", skipped.RuleID,
			"error", skipped.Err)
	}

	if res.Created > 0 {
		ids := make([]string, len(res.Transactions))
		for i, t := range res.Transactions {
			ids[i] = t.ID
		}
		slog.InfoContext(ctx, "Autopays processed",
			"user_id", userID,
			"created", res.Created,
			"date", today.String())
		l.publish(ctx, amqp.AutopayProcessed, userID, ids...)
	}
	return res, nil
}

func (l *Ledger) AddCategory(ctx context.Context, userID string, t core.TxType, name string) error {
	return l.update(ctx, userID, func(s *core.Snapshot) error {
		return s.AddCategory(t, name)
	})
}

// Users lists every user with stored data.
func (l *Ledger) Users(ctx context.Context) ([]string, error) {
	return l.repo.Users(ctx)
}
