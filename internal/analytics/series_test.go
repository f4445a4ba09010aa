package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

func TestBuildDailySeriesGapFill(t *testing.T) {
	txs := []core.Transaction{
		expense("A", 40, "2025-04-05"),
		expense("A", 30, "2025-04-01"),
		expense("B", 20, "2025-04-01"),
		income(999, "2025-04-03"),
	}
	s := BuildDailySeries(txs)

	require.Equal(t, 5, s.Len())
	assert.Equal(t, []core.Money{cents(50), {}, {}, {}, cents(40)}, s.Amounts)
	assert.Equal(t, "2025-04-01", s.Dates[0].String())
	assert.Equal(t, "2025-04-05", s.Dates[4].String())

	assert.Equal(t, SeriesStats{
		TotalDays:           5,
		DaysWithSpending:    2,
		DaysWithoutSpending: 3,
		Total:               cents(90),
		AverageDaily:        18,
		Max:                 cents(50),
		Min:                 cents(40),
	}, s.Stats)
}

func TestBuildDailySeriesEmpty(t *testing.T) {
	s := BuildDailySeries([]core.Transaction{income(10, "2025-01-01")})
	assert.Equal(t, 0, s.Len())
	assert.NotNil(t, s.Dates)
	assert.Equal(t, SeriesStats{}, s.Stats)
	assert.Zero(t, s.DailySpendRate())

	_, ok := s.Last()
	assert.False(t, ok)
}

func TestBuildDailySeriesCrossesMonth(t *testing.T) {
	s := BuildDailySeries([]core.Transaction{
		expense("A", 1, "2024-02-28"),
		expense("A", 1, "2024-03-01"),
	})
	require.Equal(t, 3, s.Len())
	assert.Equal(t, "2024-02-29", s.Dates[1].String())
}
