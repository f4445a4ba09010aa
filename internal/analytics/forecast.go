package analytics

import "fintrack/internal/core"

const (
	DefaultForecastWindow  = 7
	DefaultForecastHorizon = 7
)

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

type ForecastResult struct {
	Dates                  []core.Date `json:"forecastDates"`
	Amounts                []float64   `json:"forecastAmounts"`
	SMAValue               float64     `json:"smaValue"`
	TotalForecast          float64     `json:"totalForecast"`
	Confidence             Confidence  `json:"confidence"`
	CoefficientOfVariation float64     `json:"coefficientOfVariation"`
	Window                 int         `json:"window"`
	Horizon                int         `json:"forecastDays"`
}

// Forecast projects the next horizon days at the simple moving average of
// the last window days. A series shorter than the window yields an empty
// low-confidence result. Non-positive window or horizon fall back to 7.
func Forecast(series DailySeries, window, horizon int) ForecastResult {
	if window <= 0 {
		window = DefaultForecastWindow
	}
	if horizon <= 0 {
		horizon = DefaultForecastHorizon
	}
	res := ForecastResult{
		Dates:      []core.Date{},
		Amounts:    []float64{},
		Confidence: ConfidenceLow,
		Window:     window,
		Horizon:    horizon,
	}
	last, ok := series.Last()
	if !ok || series.Len() < window {
		return res
	}

	recent := make([]float64, window)
	for i, m := range series.Amounts[series.Len()-window:] {
		recent[i] = m.Units()
	}
	sma, std := meanStdDev(recent)

	cv := 0.0
	if sma != 0 {
		cv = std / sma * 100
	}
	res.Confidence = confidenceFor(cv)
	res.SMAValue = core.RoundUnits(sma)
	res.TotalForecast = core.RoundUnits(sma * float64(horizon))
	res.CoefficientOfVariation = core.RoundUnits(cv)

	for i := 1; i <= horizon; i++ {
		res.Dates = append(res.Dates, last.AddDays(i))
		res.Amounts = append(res.Amounts, res.SMAValue)
	}
	return res
}

func confidenceFor(cv float64) Confidence {
	switch {
	case cv > 50:
		return ConfidenceLow
	case cv > 30:
		return ConfidenceMedium
	default:
		return ConfidenceHigh
	}
}
