// Package analytics derives read-only views from a ledger snapshot: category
// totals, budget progress, anomaly alerts, the daily series and its forecast,
// runway and weekday patterns.
//
// Every function is pure. Time-dependent views take "today" explicitly.
package analytics

import (
	"cmp"
	"slices"

	"fintrack/internal/core"
)

// Filter narrows a transaction set. Nil fields match everything; the date
// range is inclusive on both ends.
type Filter struct {
	Type *core.TxType
	From *core.Date
	To   *core.Date
}

// ExpensesBetween is the filter used by the month and period views.
func ExpensesBetween(from, to core.Date) Filter {
	t := core.Expense
	return Filter{Type: &t, From: &from, To: &to}
}

func (f Filter) Match(t core.Transaction) bool {
	if f.Type != nil && t.Type != *f.Type {
		return false
	}
	if f.From != nil && t.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && t.Date.After(*f.To) {
		return false
	}
	return true
}

// AggregateByCategory sums the matching transactions per category.
func AggregateByCategory(txs []core.Transaction, f Filter) map[string]core.Money {
	out := make(map[string]core.Money)
	for _, t := range txs {
		if !f.Match(t) {
			continue
		}
		out[t.Category] = out[t.Category].Add(t.Amount)
	}
	return out
}

// Total sums the matching transactions.
func Total(txs []core.Transaction, f Filter) core.Money {
	var sum core.Money
	for _, t := range txs {
		if f.Match(t) {
			sum = sum.Add(t.Amount)
		}
	}
	return sum
}

type CategoryShare struct {
	Category string     `json:"category"`
	Amount   core.Money `json:"amount"`
	Percent  float64    `json:"percent"`
}

// CategoryBreakdown returns the category totals largest first with each
// category's share of the overall total.
func CategoryBreakdown(txs []core.Transaction, f Filter) []CategoryShare {
	totals := AggregateByCategory(txs, f)
	var grand core.Money
	for _, m := range totals {
		grand = grand.Add(m)
	}

	out := make([]CategoryShare, 0, len(totals))
	for cat, m := range totals {
		share := CategoryShare{Category: cat, Amount: m}
		if grand.Cents > 0 {
			share.Percent = core.RoundUnits(float64(m.Cents) / float64(grand.Cents) * 100)
		}
		out = append(out, share)
	}
	slices.SortFunc(out, func(a, b CategoryShare) int {
		if c := cmp.Compare(b.Amount.Cents, a.Amount.Cents); c != 0 {
			return c
		}
		return cmp.Compare(a.Category, b.Category)
	})
	return out
}

// Periods holds expense totals for the dashboard header.
type Periods struct {
	Today core.Money `json:"today"`
	Week  core.Money `json:"week"`
	Month core.Money `json:"month"`
}

// PeriodTotals sums expenses for today, the trailing seven days (today
// included) and the current month to date.
func PeriodTotals(txs []core.Transaction, today core.Date) Periods {
	return Periods{
		Today: Total(txs, ExpensesBetween(today, today)),
		Week:  Total(txs, ExpensesBetween(today.AddDays(-6), today)),
		Month: Total(txs, ExpensesBetween(today.StartOfMonth(), today)),
	}
}
