package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

func TestDetectAnomaliesThresholdIsStrict(t *testing.T) {
	var txs []core.Transaction
	for _, amt := range []float64{100, 100, 100, 100, 500} {
		txs = append(txs, expense("Dining", amt, "2025-01-10"))
	}

	d := DetectAnomalies(txs, DefaultAnomalyThreshold)
	stats := d.CategoryStats["Dining"]
	assert.Equal(t, 180.0, stats.Mean)
	assert.InDelta(t, 160.0, stats.StdDev, 0.001)
	assert.Empty(t, d.Anomalies, "z == threshold must not be flagged")

	d = DetectAnomalies(txs, 1.99)
	require.Len(t, d.Anomalies, 1)
	a := d.Anomalies[0]
	assert.Equal(t, txs[4].ID, a.ID)
	assert.Equal(t, 2.0, a.ZScore)
	assert.Equal(t, 320.0, a.DeviationAmount)
}

func TestDetectAnomaliesInsufficientAndFlat(t *testing.T) {
	txs := []core.Transaction{
		expense("Rare", 10, "2025-01-01"),
		expense("Rare", 1000, "2025-01-02"),
		expense("Flat", 20, "2025-01-01"),
		expense("Flat", 20, "2025-01-02"),
		expense("Flat", 20, "2025-01-03"),
		income(5000, "2025-01-01"),
	}
	d := DetectAnomalies(txs, 0.1)

	assert.Empty(t, d.Anomalies)
	assert.Equal(t, CategoryStats{Count: 2, InsufficientData: true}, d.CategoryStats["Rare"])
	assert.Equal(t, CategoryStats{Count: 3, Mean: 20}, d.CategoryStats["Flat"])
	assert.NotContains(t, d.CategoryStats, "Salary")
}

func TestDetectAnomaliesOneSidedAndSorted(t *testing.T) {
	var txs []core.Transaction
	for _, amt := range []float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 1} {
		txs = append(txs, expense("Coffee", amt, "2025-02-01"))
	}
	assert.Empty(t, DetectAnomalies(txs, 2).Anomalies, "unusually low spend is not an anomaly")

	txs = nil
	for i := 0; i < 10; i++ {
		txs = append(txs, expense("Fuel", 50, "2025-02-01"), expense("Food", 20, "2025-02-01"))
	}
	fuel := expense("Fuel", 300, "2025-02-02")
	food := expense("Food", 400, "2025-02-03")
	txs = append(txs, fuel, food)

	d := DetectAnomalies(txs, DefaultAnomalyThreshold)
	require.Len(t, d.Anomalies, 2)
	assert.GreaterOrEqual(t, d.Anomalies[0].ZScore, d.Anomalies[1].ZScore)
}

func TestActiveAlerts(t *testing.T) {
	d := Detection{Anomalies: []Anomaly{
		{Transaction: core.Transaction{ID: "a"}},
		{Transaction: core.Transaction{ID: "b"}},
	}}
	got := ActiveAlerts(d, map[string]bool{"a": true})
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
	assert.Len(t, d.Anomalies, 2, "detection itself is unaffected")
}
