package analytics

import (
	"encoding/json"
	"math"

	"fintrack/internal/core"
)

const (
	depletedLabel    = "already depleted"
	sustainableLabel = "N/A"
)

// BalanceLevel buckets the all-time balance the way the account header does.
type BalanceLevel string

const (
	BalanceLow    BalanceLevel = "low"
	BalanceMedium BalanceLevel = "medium"
	BalanceHigh   BalanceLevel = "high"
)

// Runway estimates how long the current balance lasts. DaysRemaining is
// +Inf when there is no spending to burn it down.
type Runway struct {
	Balance         core.Money
	DaysRemaining   float64
	Depleted        bool
	Sustainable     bool
	DepletionDate   core.Date
	BurnRatePercent float64
	Level           BalanceLevel
}

// Balance is all-time income minus all-time expenses.
func Balance(txs []core.Transaction) core.Money {
	var b core.Money
	for _, t := range txs {
		if t.IsExpense() {
			b = b.Sub(t.Amount)
		} else {
			b = b.Add(t.Amount)
		}
	}
	return b
}

// PredictRunway divides the balance by the average daily spend.
func PredictRunway(txs []core.Transaction, avgDailySpend float64, today core.Date) Runway {
	balance := Balance(txs)
	r := Runway{Balance: balance, Level: levelFor(balance)}

	switch {
	case balance.Cents <= 0:
		r.Depleted = true
		r.BurnRatePercent = 100
	case avgDailySpend <= 0:
		r.Sustainable = true
		r.DaysRemaining = math.Inf(1)
	default:
		days := math.Floor(balance.Units() / avgDailySpend)
		r.DaysRemaining = days
		r.DepletionDate = today.AddDays(int(days))
		r.BurnRatePercent = core.RoundUnits(avgDailySpend / balance.Units() * 100)
	}
	return r
}

func levelFor(balance core.Money) BalanceLevel {
	switch {
	case balance.Cents < 1000_00:
		return BalanceLow
	case balance.Cents < 5000_00:
		return BalanceMedium
	default:
		return BalanceHigh
	}
}

// MarshalJSON renders the infinite runway as "Infinity" and replaces the
// depletion date with a label in the two degenerate cases.
func (r Runway) MarshalJSON() ([]byte, error) {
	var days any = r.DaysRemaining
	if math.IsInf(r.DaysRemaining, 1) {
		days = "Infinity"
	}
	date := r.DepletionDate.String()
	switch {
	case r.Depleted:
		date = depletedLabel
	case r.Sustainable:
		date = sustainableLabel
	}
	return json.Marshal(struct {
		Balance         core.Money   `json:"balance"`
		DaysRemaining   any          `json:"daysRemaining"`
		DepletionDate   string       `json:"depletionDate"`
		BurnRatePercent float64      `json:"burnRatePercent"`
		Level           BalanceLevel `json:"balanceStatus"`
	}{r.Balance, days, date, r.BurnRatePercent, r.Level})
}
