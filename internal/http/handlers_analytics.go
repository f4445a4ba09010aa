package http

import (
	"net/http"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

const (
	defaultForecastWindow  = 7
	defaultForecastHorizon = 7
	maxForecastDays        = 365
)

// handleAnomalies returns active alerts. With all=true the full detection
// (every flagged transaction and per-category statistics) is included.
func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	threshold, err := queryFloat(r, "threshold")
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	report, err := s.ledger.Anomalies(r.Context(), userFrom(r.Context()), threshold)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	if queryBool(r, "all") {
		writeJSON(w, http.StatusOK, report)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts":        report.Alerts,
		"threshold":     report.Threshold,
		"approvedCount": report.ApprovedCount,
	})
}

func (s *Server) handleApproveAnomaly(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if err := s.ledger.ApproveAnomaly(r.Context(), userFrom(r.Context()), id); err != nil {
		s.fail(w, r, applog.OpApprove, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "approved": true})
}

func (s *Server) handleDismissAnomaly(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DismissAnomaly(r.Context(), userFrom(r.Context()), pathParam(r, "id")); err != nil {
		s.fail(w, r, applog.OpDismiss, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSpendingSummary(w http.ResponseWriter, r *http.Request) {
	from, err := queryDate(r, "from")
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	if from != nil && to != nil && to.Before(*from) {
		s.fail(w, r, applog.OpRead, badRequest("to is before from"))
		return
	}
	summary, err := s.ledger.SpendingSummary(r.Context(), userFrom(r.Context()), from, to)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	series, err := s.ledger.Series(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	window, err := queryInt(r, "window", defaultForecastWindow)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	horizon, err := queryInt(r, "horizon", defaultForecastHorizon)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	if window > maxForecastDays || horizon > maxForecastDays {
		s.fail(w, r, applog.OpRead, badRequest("window and horizon are capped at %d days", maxForecastDays))
		return
	}
	forecast, err := s.ledger.Forecast(r.Context(), userFrom(r.Context()), window, horizon)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, forecast)
}

func (s *Server) handleRunway(w http.ResponseWriter, r *http.Request) {
	runway, err := s.ledger.Runway(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, runway)
}

func (s *Server) handleWeekdays(w http.ResponseWriter, r *http.Request) {
	report, err := s.ledger.Weekdays(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := s.ledger.Dashboard(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

type autopayRequest struct {
	Name        string          `json:"name"`
	Amount      amountInput     `json:"amount"`
	Category    string          `json:"category"`
	Day         core.AutopayDay `json:"day"`
	Description string          `json:"description"`
}

type processResponse struct {
	Created      int                `json:"created"`
	Transactions []core.Transaction `json:"transactions"`
}

func (s *Server) handleListAutopays(w http.ResponseWriter, r *http.Request) {
	rules, err := s.ledger.Autopays(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"autopays": rules})
}

func (s *Server) handleCreateAutopay(w http.ResponseWriter, r *http.Request) {
	var req autopayRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	amount, err := req.Amount.Money()
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	rule, err := s.ledger.AddAutopay(r.Context(), userFrom(r.Context()), core.AutopayRule{
		Name:        req.Name,
		Amount:      amount,
		Category:    req.Category,
		Day:         req.Day,
		Description: req.Description,
	})
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleToggleAutopay(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	active, err := s.ledger.ToggleAutopay(r.Context(), userFrom(r.Context()), id)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "isActive": active})
}

func (s *Server) handleDeleteAutopay(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteAutopay(r.Context(), userFrom(r.Context()), pathParam(r, "id")); err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpcomingAutopays(w http.ResponseWriter, r *http.Request) {
	upcoming, err := s.ledger.UpcomingAutopays(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"upcoming": upcoming})
}

func (s *Server) handleProcessAutopays(w http.ResponseWriter, r *http.Request) {
	res, err := s.ledger.ProcessAutopays(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.fail(w, r, applog.OpProcess, err)
		return
	}
	out := processResponse{Created: res.Created, Transactions: res.Transactions}
	if out.Transactions == nil {
		out.Transactions = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, out)
}
