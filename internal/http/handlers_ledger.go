package http

import (
	"net/http"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/export"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
)

type transactionRequest struct {
	Type          string      `json:"type"`
	Amount        amountInput `json:"amount"`
	Category      string      `json:"category"`
	PaymentMethod string      `json:"paymentMethod"`
	Description   string      `json:"description"`
	Date          string      `json:"date"`
}

func (req transactionRequest) transaction(today core.Date) (core.Transaction, error) {
	t := core.Transaction{
		Category:    strings.TrimSpace(req.Category),
		Description: strings.TrimSpace(req.Description),
		Date:        today,
	}
	var err error
	if t.Type, err = core.ParseTxType(req.Type); err != nil {
		return t, err
	}
	if t.Amount, err = req.Amount.Money(); err != nil {
		return t, err
	}
	if t.PaymentMethod, err = core.ParsePaymentMethod(req.PaymentMethod); err != nil {
		return t, err
	}
	if d := strings.TrimSpace(req.Date); d != "" {
		if t.Date, err = core.ParseDate(d); err != nil {
			return t, err
		}
	}
	return t, nil
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	var (
		q   services.TransactionQuery
		err error
	)
	q.Category = strings.TrimSpace(r.URL.Query().Get("category"))
	if q.Type, err = queryType(r); err == nil {
		if q.From, err = queryDate(r, "from"); err == nil {
			if q.To, err = queryDate(r, "to"); err == nil {
				if q.Page, err = queryInt(r, "page", 1); err == nil {
					q.Limit, err = queryInt(r, "limit", services.DefaultPageLimit)
				}
			}
		}
	}
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}

	page, err := s.ledger.Transactions(r.Context(), userFrom(r.Context()), q)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	t, err := req.transaction(s.ledger.Today())
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	created, err := s.ledger.AddTransaction(r.Context(), userFrom(r.Context()), t)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteTransaction(r.Context(), userFrom(r.Context()), pathParam(r, "id")); err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	lines, err := s.ledger.Budgets(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"budgets": lines})
}

type budgetRequest struct {
	Amount amountInput `json:"amount"`
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	if strings.TrimSpace(string(req.Amount)) == "" {
		s.fail(w, r, applog.OpUpdate, core.ErrInvalidAmount)
		return
	}
	// A zero cap is allowed here, unlike transaction amounts.
	amount := core.Money{}
	if strings.Trim(string(req.Amount), " 0.,") != "" {
		m, err := req.Amount.Money()
		if err != nil {
			s.fail(w, r, applog.OpUpdate, err)
			return
		}
		amount = m
	}
	category := pathParam(r, "category")
	if err := s.ledger.SetBudget(r.Context(), userFrom(r.Context()), category, amount); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"category": strings.TrimSpace(category), "amount": amount})
}

func (s *Server) handleRemoveBudget(w http.ResponseWriter, r *http.Request) {
	removed, err := s.ledger.RemoveBudget(r.Context(), userFrom(r.Context()), pathParam(r, "category"))
	if err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "budget not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGoal(w http.ResponseWriter, r *http.Request) {
	status, err := s.ledger.Goal(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type goalRequest struct {
	Name   string      `json:"name"`
	Target amountInput `json:"target"`
}

func (s *Server) handleSetGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	target, err := req.Target.Money()
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	goal, err := s.ledger.SetGoal(r.Context(), userFrom(r.Context()), req.Name, target)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

type depositRequest struct {
	Amount amountInput `json:"amount"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	amount, err := req.Amount.Money()
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	goal, err := s.ledger.DepositToGoal(r.Context(), userFrom(r.Context()), amount)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

type categoryRequest struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	list, err := s.ledger.Categories(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	t, err := core.ParseTxType(req.Type)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	if err := s.ledger.AddCategory(r.Context(), userFrom(r.Context()), t, req.Name); err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"type": string(t), "name": strings.TrimSpace(req.Name)})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(s.ledger.Today())+`"`)
	if err := s.ledger.ExportCSV(r.Context(), userFrom(r.Context()), w); err != nil {
		s.fail(w, r, applog.OpExport, err)
	}
}
