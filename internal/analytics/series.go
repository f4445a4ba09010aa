package analytics

import "fintrack/internal/core"

type SeriesStats struct {
	TotalDays           int        `json:"totalDays"`
	DaysWithSpending    int        `json:"daysWithSpending"`
	DaysWithoutSpending int        `json:"daysWithoutSpending"`
	Total               core.Money `json:"totalSpending"`
	AverageDaily        float64    `json:"averageDailySpending"`
	Max                 core.Money `json:"maxSpending"`
	Min                 core.Money `json:"minSpending"`
}

// DailySeries is the expense total of every calendar day between the first
// and last expense, zero-filled. Dates and Amounts are index aligned.
type DailySeries struct {
	Dates   []core.Date  `json:"dates"`
	Amounts []core.Money `json:"amounts"`
	Stats   SeriesStats  `json:"stats"`
}

func (s DailySeries) Len() int { return len(s.Amounts) }

// DailySpendRate is the unrounded mean spend per day over the series. Use it
// for projections; Stats.AverageDaily is the presented value.
func (s DailySeries) DailySpendRate() float64 {
	if s.Stats.TotalDays == 0 {
		return 0
	}
	return s.Stats.Total.Units() / float64(s.Stats.TotalDays)
}

// Last returns the final date of the series and false when it is empty.
func (s DailySeries) Last() (core.Date, bool) {
	if len(s.Dates) == 0 {
		return core.Date{}, false
	}
	return s.Dates[len(s.Dates)-1], true
}

// BuildDailySeries groups expenses by day and fills the gaps with zero.
func BuildDailySeries(txs []core.Transaction) DailySeries {
	daily := make(map[string]core.Money)
	var first, last core.Date
	for _, t := range txs {
		if !t.IsExpense() {
			continue
		}
		if first.IsZero() || t.Date.Before(first) {
			first = t.Date
		}
		if last.IsZero() || t.Date.After(last) {
			last = t.Date
		}
		key := t.Date.String()
		daily[key] = daily[key].Add(t.Amount)
	}

	s := DailySeries{Dates: []core.Date{}, Amounts: []core.Money{}}
	if len(daily) == 0 {
		return s
	}

	for d := first; !d.After(last); d = d.AddDays(1) {
		amount := daily[d.String()]
		s.Dates = append(s.Dates, d)
		s.Amounts = append(s.Amounts, amount)

		s.Stats.Total = s.Stats.Total.Add(amount)
		if amount.Cents == 0 {
			continue
		}
		s.Stats.DaysWithSpending++
		if amount.Cents > s.Stats.Max.Cents {
			s.Stats.Max = amount
		}
		if s.Stats.Min.IsZero() || amount.Cents < s.Stats.Min.Cents {
			s.Stats.Min = amount
		}
	}

	s.Stats.TotalDays = len(s.Amounts)
	s.Stats.DaysWithoutSpending = s.Stats.TotalDays - s.Stats.DaysWithSpending
	s.Stats.AverageDaily = core.RoundUnits(s.Stats.Total.Units() / float64(s.Stats.TotalDays))
	return s
}
