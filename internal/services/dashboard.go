package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/analytics"
	"fintrack/internal/autopay"
	"fintrack/internal/core"
)

// Dashboard gathers every analytics view for one user and day.
type Dashboard struct {
	GeneratedAt time.Time                 `json:"generatedAt"`
	Today       core.Date                 `json:"today"`
	Balance     core.Money                `json:"balance"`
	Periods     analytics.Periods         `json:"periods"`
	Month       []analytics.CategoryShare `json:"monthCategories"`
	Budgets     []analytics.BudgetLine    `json:"budgets"`
	Goal        *analytics.GoalStatus     `json:"goal,omitempty"`
	Anomalies   AnomalyReport             `json:"anomalies"`
	Series      analytics.DailySeries     `json:"series"`
	Forecast    analytics.ForecastResult  `json:"forecast"`
	Runway      analytics.Runway          `json:"runway"`
	Weekdays    analytics.WeekdayReport   `json:"weekdays"`
	Upcoming    []autopay.UpcomingPayment `json:"upcomingAutopays"`
}

func dashboardPrefix(userID string) string {
	return "dashboard:" + userID + ":"
}

// Dashboard returns the cached dashboard for today, building it on a miss.
// Every write to the user's ledger drops the cached entries, and a dashboard
// built from a snapshot that a write overtook is returned but not cached.
func (l *Ledger) Dashboard(ctx context.Context, userID string) (*Dashboard, error) {
	today := l.Today()
	key := dashboardPrefix(userID) + today.String()
	if l.dashboards != nil {
		if d, ok := l.dashboards.Get(key); ok {
			return d, nil
		}
	}

	gen := l.generation(userID).Load()
	s, err := l.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	d, err := buildDashboard(ctx, s, today)
	if err != nil {
		return nil, err
	}
	d.GeneratedAt = l.now().UTC()

	if l.dashboards != nil {
		unlock := l.lock(userID)
		if l.generation(userID).Load() == gen {
			l.dashboards.Set(key, d)
		}
		unlock()
	}
	return d, nil
}

// buildDashboard computes the independent views concurrently. The snapshot
// is only read.
func buildDashboard(ctx context.Context, s *core.Snapshot, today core.Date) (*Dashboard, error) {
	d := &Dashboard{Today: today}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d.Balance = analytics.Balance(s.Transactions)
		d.Periods = analytics.PeriodTotals(s.Transactions, today)
		d.Month = analytics.CategoryBreakdown(s.Transactions, analytics.ExpensesBetween(today.StartOfMonth(), today))
		return nil
	})
	g.Go(func() error {
		d.Budgets = analytics.BudgetProgress(s.Transactions, s.Budgets, today)
		if s.Goal != nil {
			gs := analytics.GoalProgress(*s.Goal)
			d.Goal = &gs
		}
		return nil
	})
	g.Go(func() error {
		d.Anomalies = anomalyReport(s, analytics.DefaultAnomalyThreshold)
		return nil
	})
	g.Go(func() error {
		d.Series = analytics.BuildDailySeries(s.Transactions)
		d.Forecast = analytics.Forecast(d.Series, analytics.DefaultForecastWindow, analytics.DefaultForecastHorizon)
		d.Runway = analytics.PredictRunway(s.Transactions, d.Series.DailySpendRate(), today)
		return nil
	})
	g.Go(func() error {
		d.Weekdays = analytics.AggregateByWeekday(s.Transactions)
		d.Upcoming = autopay.Upcoming(s.Autopays, today)
		return ctx.Err()
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}
