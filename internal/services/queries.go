package services

import (
	"context"
	"io"
	"slices"
	"strings"

	"fintrack/internal/analytics"
	"fintrack/internal/autopay"
	"fintrack/internal/core"
	"fintrack/internal/export"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 500
)

// TransactionQuery selects a page of the ledger. Zero values match
// everything; Page is 1-based.
type TransactionQuery struct {
	Type     *core.TxType
	Category string
	From     *core.Date
	To       *core.Date
	Page     int
	Limit    int
}

type TransactionPage struct {
	Transactions []core.Transaction `json:"transactions"`
	Total        int                `json:"total"`
	Page         int                `json:"page"`
	Limit        int                `json:"limit"`
	TotalPages   int                `json:"totalPages"`
}

// Transactions returns matching transactions, newest date first. Entries
// on the same date keep reverse insertion order.
func (l *Ledger) Transactions(ctx context.Context, userID string, q TransactionQuery) (TransactionPage, error) {
	s, err := l.Snapshot(ctx, userID)
	if err != nil {
		return TransactionPage{}, err
	}

	f := analytics.Filter{Type: q.Type, From: q.From, To: q.To}
	var matched []core.Transaction
	for i := len(s.Transactions) - 1; i >= 0; i-- {
		t := s.Transactions[i]
		if !f.Match(t) {
			continue
		}
		if q.Category != "" && !strings.EqualFold(t.Category, q.Category) {
			continue
		}
		matched = append(matched, t)
	}
	slices.SortStableFunc(matched, func(a, b core.Transaction) int {
		return b.Date.Compare(a.Date.Time)
	})

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	limit = min(limit, MaxPageLimit)
	page := max(q.Page, 1)

	out := TransactionPage{
		Transactions: []core.Transaction{},
		Total:        len(matched),
		Page:         page,
		Limit:        limit,
		TotalPages:   (len(matched) + limit - 1) / limit,
	}
	if start := (page - 1) * limit; start < len(matched) {
		out.Transactions = matched[start:min(start+limit, len(matched))]
	}
	return out, nil
}

func (l *Ledger) Budgets(ctx context.Context, userID string) ([]analytics.BudgetLine, error) {
	s, err := l.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return analytics.BudgetProgress(s.Transactions, s.Budgets, l.Today()), nil
}

// Goal returns the savings goal with its progress, or core.ErrGoalNotSet.
func (l *Ledger) Goal(ctx context.Context, userID string) (analytics.GoalStatus, error) {
	s, err := l.Snapshot(ctx, userID)
	if err != nil {
		return analytics.GoalStatus{}, err
	}
	if s.Goal == nil {
		return analytics.GoalStatus{}, core.ErrGoalNotSet
	}
	return analytics.GoalProgress(*s.Goal), nil
}

// AnomalyReport is the full detection plus the alerts still awaiting a
// decision.
type AnomalyReport struct {
	analytics.Detection
	Alerts        []analytics.Anomaly `json:"alerts"`
	ApprovedCount int                 `json:"approvedCount"`
}

// Anomalies runs detection with the given z-score threshold; a non-positive
// threshold selects the default.
func (l *Ledger) Anomalies(ctx context.Context, userID string, threshold float64) (AnomalyReport, error) {
	s, err := l.Snapshot(ctx, userID)
	if err != nil {
		return AnomalyReport{}, err
	}
	return anomalyReport(s, threshold), nil
}

func anomalyReport(s *core.Snapshot, threshold float64) AnomalyReport {
	if threshold <= 0 {
		threshold = analytics.DefaultAnomalyThreshold
	}
	d := analytics.DetectAnomalies(s.Transactions, threshold)
	return AnomalyReport{
		Detection:     d,
		Alerts:        analytics.ActiveAlerts(d, s.ApprovedAnomalies),
		ApprovedCount: len(s.ApprovedAnomalies),
	}
}

type SpendingSummary struct {
	From       *core.Date                `json:"from,omitempty"`
	To         *core.Date                `json:"to,omitempty"`
	Categories []analytics.CategoryShare `json:"categories"`
	Total      core.Money                `json:"totalExpenses"`
	Income     core.Money                `json:"totalIncome"`
	Periods    analytics.Periods         `json:"periods"`
}

// SpendingSummary aggregates expenses by category over an optional,
// inclusive date range.
func (l *Ledger) SpendingSummary(ctx context.Context, userID string, from, to *core.Date) (SpendingSummary, error) {
	s, err := l.Snapshot(ctx, userID)
	if err != nil {
		return SpendingSummary{}, err
	}
	expense, income := core.Expense, core.Income
	ef := analytics.Filter{Type: &expense, From: from, To: to}
	return SpendingSummary{
		From:       from,
		To:         to,
		Categories: analytics.CategoryBreakdown(s.Transactions, ef),
		Total:      analytics.Total(s.Transactions, ef),
		Income:     analytics.Total(s.Transactions, analytics.Filter{Type: &income, From: from, To: to}),
		Periods:    analytics.PeriodTotals(s.Transactions, l.Today()),
	}, nil
}

func (l *Ledger) Series(ctx context.Context, userID string) (analytics.DailySeries, error) {
	s, err := l.Snapshot(ctx, userID)
	if err != nil {
		return analytics.DailySeries{}, err
	}
	return analytics.BuildDailySeries(s.Transactions), nil
}

func (l *Ledger) Forecast(ctx context.Context, userID string, window, horizon int) (analytics.ForecastResult, error) {
	series, err := l.Series(ctx, userID)
	if err != nil {
		return analytics.ForecastResult{}, err
	}
	return analytics.Forecast(series, window, horizon), nil
}

// Runway projects the balance using the series' average daily spend.
func (l *Ledger) Runway(ctx context.Context, userID string) (analytics.Runway, error) {
	s, err := l.Snapshot(ctx, userID)
	if err != nil {
		return analytics.Runway{}, err
	}
	series := analytics.BuildDailySeries(s.Transactions)
	return analytics.PredictRunway(s.Transactions, series.DailySpendRate(), l.Today()), nil
}

func (l *Ledger) Weekdays(ctx context.Context, userID string) (analytics.WeekdayReport, error) {
	s, err := l.Snapshot(ctx, userID)
	if err != nil {
		return analytics.WeekdayReport{}, err
	}
	return analytics.AggregateByWeekday(s.Transactions), nil
}

func (l *Ledger) Autopays(ctx context.Context, userID string) ([]core.AutopayRule, error) {
	s, err := l.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.Autopays, nil
}

func (l *Ledger) UpcomingAutopays(ctx context.Context, userID string) ([]autopay.UpcomingPayment, error) {
	s, err := l.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return autopay.Upcoming(s.Autopays, l.Today()), nil
}

// CategoryList is the default plus custom category names per type.
type CategoryList struct {
	Income  []string              `json:"income"`
	Expense []string              `json:"expense"`
	Custom  core.CustomCategories `json:"custom"`
}

func (l *Ledger) Categories(ctx context.Context, userID string) (CategoryList, error) {
	s, err := l.Snapshot(ctx, userID)
	if err != nil {
		return CategoryList{}, err
	}
	return CategoryList{
		Income:  s.Categories.All(core.Income),
		Expense: s.Categories.All(core.Expense),
		Custom:  s.Categories.Clone(),
	}, nil
}

// ExportCSV writes the user's ledger in stored order.
func (l *Ledger) ExportCSV(ctx context.Context, userID string, w io.Writer) error {
	s, err := l.Snapshot(ctx, userID)
	if err != nil {
		return err
	}
	return export.WriteCSV(w, s.Transactions)
}
