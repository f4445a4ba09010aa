package analytics

import (
	"cmp"
	"math"
	"slices"

	"fintrack/internal/core"
)

// BudgetStatus is the traffic-light label of a budget line.
type BudgetStatus string

const (
	StatusOnTrack    BudgetStatus = "on track"
	StatusWatch      BudgetStatus = "watch"
	StatusAlmostOver BudgetStatus = "almost over"
	StatusOverBudget BudgetStatus = "over budget"
)

type BudgetLine struct {
	Category   string       `json:"category"`
	Budget     core.Money   `json:"budget"`
	Spent      core.Money   `json:"spent"`
	Percentage float64      `json:"percentage"`
	Remaining  core.Money   `json:"remaining"`
	Status     BudgetStatus `json:"status"`
}

// BudgetProgress compares month-to-date spending against every configured
// cap. Lines are ordered by category name.
func BudgetProgress(txs []core.Transaction, budgets core.Budgets, today core.Date) []BudgetLine {
	spent := AggregateByCategory(txs, ExpensesBetween(today.StartOfMonth(), today))

	lines := make([]BudgetLine, 0, len(budgets))
	for cat, budget := range budgets {
		lines = append(lines, budgetLine(cat, budget, spent[cat]))
	}
	slices.SortFunc(lines, func(a, b BudgetLine) int {
		return cmp.Compare(a.Category, b.Category)
	})
	return lines
}

func budgetLine(category string, budget, spent core.Money) BudgetLine {
	pct := 0.0
	if budget.Cents > 0 {
		pct = clampPercent(float64(spent.Cents) / float64(budget.Cents) * 100)
	}
	remaining := budget.Sub(spent)
	if remaining.Cents < 0 {
		remaining = core.Money{}
	}
	return BudgetLine{
		Category:   category,
		Budget:     budget,
		Spent:      spent,
		Percentage: core.RoundUnits(pct),
		Remaining:  remaining,
		Status:     statusFor(pct),
	}
}

func statusFor(pct float64) BudgetStatus {
	switch {
	case pct >= 100:
		return StatusOverBudget
	case pct >= 90:
		return StatusAlmostOver
	case pct >= 70:
		return StatusWatch
	default:
		return StatusOnTrack
	}
}

func clampPercent(p float64) float64 {
	return math.Max(0, math.Min(p, 100))
}

type GoalStatus struct {
	core.SavingsGoal
	Percentage float64    `json:"percentage"`
	Remaining  core.Money `json:"remaining"`
}

// GoalProgress reports how far the savings goal is, clamped to 100%.
func GoalProgress(goal core.SavingsGoal) GoalStatus {
	st := GoalStatus{SavingsGoal: goal}
	if goal.Target.Cents > 0 {
		st.Percentage = core.RoundUnits(clampPercent(float64(goal.Saved.Cents) / float64(goal.Target.Cents) * 100))
	}
	if rem := goal.Target.Sub(goal.Saved); rem.Cents > 0 {
		st.Remaining = rem
	}
	return st
}
