package analytics

import (
	"time"

	"fintrack/internal/core"
)

// weekOrder is the Monday-first display order.
var weekOrder = [7]time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

type WeekdayBucket struct {
	Day     string     `json:"day"`
	Total   core.Money `json:"total"`
	Count   int        `json:"count"`
	Average float64    `json:"average"`
}

type WeekdayReport struct {
	Days   [7]WeekdayBucket `json:"days"`
	Total  core.Money       `json:"totalExpenses"`
	MaxDay string           `json:"maxDay,omitempty"`
	MinDay string           `json:"minDay,omitempty"`
	Empty  bool             `json:"isEmpty"`
}

// weekIndex maps time.Weekday (Sunday = 0) to the Monday-first slot.
func weekIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// AggregateByWeekday buckets expenses by day of week. The minimum is picked
// only among weekdays that have at least one expense.
func AggregateByWeekday(txs []core.Transaction) WeekdayReport {
	var r WeekdayReport
	for i, d := range weekOrder {
		r.Days[i].Day = d.String()
	}

	for _, t := range txs {
		if !t.IsExpense() {
			continue
		}
		b := &r.Days[weekIndex(t.Date.Weekday())]
		b.Total = b.Total.Add(t.Amount)
		b.Count++
		r.Total = r.Total.Add(t.Amount)
	}

	maxIdx, minIdx := -1, -1
	for i := range r.Days {
		b := &r.Days[i]
		if b.Count == 0 {
			continue
		}
		b.Average = core.RoundUnits(b.Total.Units() / float64(b.Count))
		if maxIdx < 0 || b.Total.Cents > r.Days[maxIdx].Total.Cents {
			maxIdx = i
		}
		if minIdx < 0 || b.Total.Cents < r.Days[minIdx].Total.Cents {
			minIdx = i
		}
	}

	if maxIdx < 0 {
		r.Empty = true
		return r
	}
	r.MaxDay = r.Days[maxIdx].Day
	r.MinDay = r.Days[minIdx].Day
	return r
}
