package analytics

import (
	"cmp"
	"math"
	"slices"

	"fintrack/internal/core"
)

// DefaultAnomalyThreshold is the z-score above which an expense is flagged.
const DefaultAnomalyThreshold = 2.0

// minCategorySamples is the smallest category size that gets scored.
const minCategorySamples = 3

type CategoryStats struct {
	Count            int     `json:"count"`
	Mean             float64 `json:"mean"`
	StdDev           float64 `json:"stdDev"`
	InsufficientData bool    `json:"insufficientData"`
}

// Anomaly is an expense that sits unusually far above its category mean.
type Anomaly struct {
	core.Transaction
	ZScore          float64 `json:"zScore"`
	Mean            float64 `json:"mean"`
	StdDev          float64 `json:"stdDev"`
	DeviationAmount float64 `json:"deviationAmount"`

	z float64
}

type Detection struct {
	Anomalies     []Anomaly                `json:"anomalies"`
	CategoryStats map[string]CategoryStats `json:"categoryStats"`
	Threshold     float64                  `json:"threshold"`
}

// DetectAnomalies scores every expense against the population mean and
// standard deviation of its category. Only scores strictly above threshold
// count, and only on the high side. Categories with fewer than three
// expenses are reported as insufficient and never scored.
func DetectAnomalies(txs []core.Transaction, threshold float64) Detection {
	groups := make(map[string][]core.Transaction)
	var order []string
	for _, t := range txs {
		if !t.IsExpense() {
			continue
		}
		if _, ok := groups[t.Category]; !ok {
			order = append(order, t.Category)
		}
		groups[t.Category] = append(groups[t.Category], t)
	}

	d := Detection{
		Anomalies:     []Anomaly{},
		CategoryStats: make(map[string]CategoryStats, len(groups)),
		Threshold:     threshold,
	}

	for _, cat := range order {
		group := groups[cat]
		if len(group) < minCategorySamples {
			d.CategoryStats[cat] = CategoryStats{Count: len(group), InsufficientData: true}
			continue
		}

		amounts := make([]float64, len(group))
		for i, t := range group {
			amounts[i] = t.Amount.Units()
		}
		mean, std := meanStdDev(amounts)
		d.CategoryStats[cat] = CategoryStats{
			Count:  len(group),
			Mean:   core.RoundUnits(mean),
			StdDev: core.RoundUnits(std),
		}
		if std == 0 {
			continue
		}

		for i, t := range group {
			z := (amounts[i] - mean) / std
			if z <= threshold {
				continue
			}
			d.Anomalies = append(d.Anomalies, Anomaly{
				Transaction:     t,
				ZScore:          core.RoundUnits(z),
				Mean:            core.RoundUnits(mean),
				StdDev:          core.RoundUnits(std),
				DeviationAmount: core.RoundUnits(amounts[i] - mean),
				z:               z,
			})
		}
	}

	slices.SortStableFunc(d.Anomalies, func(a, b Anomaly) int {
		return cmp.Compare(b.z, a.z)
	})
	return d
}

// ActiveAlerts drops the anomalies the user has approved.
func ActiveAlerts(d Detection, approved map[string]bool) []Anomaly {
	out := make([]Anomaly, 0, len(d.Anomalies))
	for _, a := range d.Anomalies {
		if approved[a.ID] {
			continue
		}
		out = append(out, a)
	}
	return out
}

// meanStdDev returns the mean and population standard deviation.
func meanStdDev(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean = sum / float64(len(xs))

	var variance float64
	for _, x := range xs {
		diff := x - mean
		variance += diff * diff
	}
	return mean, math.Sqrt(variance / float64(len(xs)))
}
