package firestore

import (
	"fmt"

	"fintrack/internal/core"
)

// Document keys under users/{uid}/data.
const (
	keyTransactions = "transactions"
	keyBudgets      = "budgets"
	keyGoal         = "savingsGoal"
	keyApproved     = "approvedAnomalies"
	keyAutopays     = "autopays"
	keyCategories   = "customCategories"
)

var dataKeys = []string{keyTransactions, keyBudgets, keyGoal, keyApproved, keyAutopays, keyCategories}

type txDoc struct {
	ID            string `firestore:"id"`
	Type          string `firestore:"type"`
	AmountCents   int64  `firestore:"amountCents"`
	Category      string `firestore:"category"`
	PaymentMethod string `firestore:"paymentMethod"`
	Description   string `firestore:"description"`
	Date          string `firestore:"date"`
	IsAutopay     bool   `firestore:"isAutopay"`
	AutopayID     string `firestore:"autopayId"`
}

type goalDoc struct {
	Name        string `firestore:"name"`
	TargetCents int64  `firestore:"targetCents"`
	SavedCents  int64  `firestore:"savedCents"`
}

type autopayDoc struct {
	ID            string `firestore:"id"`
	Name          string `firestore:"name"`
	AmountCents   int64  `firestore:"amountCents"`
	Category      string `firestore:"category"`
	Day           int    `firestore:"day"`
	Description   string `firestore:"description"`
	IsActive      bool   `firestore:"isActive"`
	LastProcessed string `firestore:"lastProcessedMonth"`
}

// Each data document wraps its payload in an items field.
type (
	txItems       struct{ Items []txDoc `firestore:"items"` }
	budgetItems   struct{ Items map[string]int64 `firestore:"items"` }
	goalItems     struct{ Items *goalDoc `firestore:"items"` }
	approvedItems struct{ Items []string `firestore:"items"` }
	autopayItems  struct{ Items []autopayDoc `firestore:"items"` }
	categoryItems struct{ Items map[string][]string `firestore:"items"` }
)

// encode splits a snapshot into its data documents.
func encode(s *core.Snapshot) map[string]any {
	txs := make([]txDoc, len(s.Transactions))
	for i, t := range s.Transactions {
		txs[i] = txDoc{
			ID:            t.ID,
			Type:          string(t.Type),
			AmountCents:   t.Amount.Cents,
			Category:      t.Category,
			PaymentMethod: string(t.PaymentMethod),
			Description:   t.Description,
			Date:          t.Date.String(),
			IsAutopay:     t.IsAutopay,
			AutopayID:     t.AutopayID,
		}
	}

	budgets := make(map[string]int64, len(s.Budgets))
	for cat, m := range s.Budgets {
		budgets[cat] = m.Cents
	}

	var goal *goalDoc
	if s.Goal != nil {
		goal = &goalDoc{Name: s.Goal.Name, TargetCents: s.Goal.Target.Cents, SavedCents: s.Goal.Saved.Cents}
	}

	autopays := make([]autopayDoc, len(s.Autopays))
	for i, a := range s.Autopays {
		d := autopayDoc{
			ID:          a.ID,
			Name:        a.Name,
			AmountCents: a.Amount.Cents,
			Category:    a.Category,
			Day:         int(a.Day),
			Description: a.Description,
			IsActive:    a.IsActive,
		}
		if a.LastProcessed != nil {
			d.LastProcessed = a.LastProcessed.String()
		}
		autopays[i] = d
	}

	cats := make(map[string][]string, len(s.Categories))
	for t, names := range s.Categories {
		cats[string(t)] = names
	}

	return map[string]any{
		keyTransactions: txItems{Items: txs},
		keyBudgets:      budgetItems{Items: budgets},
		keyGoal:         goalItems{Items: goal},
		keyApproved:     approvedItems{Items: s.ApprovedIDs()},
		keyAutopays:     autopayItems{Items: autopays},
		keyCategories:   categoryItems{Items: cats},
	}
}

// decoded collects the data documents read back from the store.
type decoded struct {
	txs      txItems
	budgets  budgetItems
	goal     goalItems
	approved approvedItems
	autopays autopayItems
	cats     categoryItems
}

func (d *decoded) target(key string) any {
	switch key {
	case keyTransactions:
		return &d.txs
	case keyBudgets:
		return &d.budgets
	case keyGoal:
		return &d.goal
	case keyApproved:
		return &d.approved
	case keyAutopays:
		return &d.autopays
	case keyCategories:
		return &d.cats
	}
	return nil
}

func (d *decoded) snapshot() (*core.Snapshot, error) {
	s := core.NewSnapshot()
	for _, doc := range d.txs.Items {
		date, err := core.ParseDate(doc.Date)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", doc.ID, err)
		}
		s.Transactions = append(s.Transactions, core.Transaction{
			ID:            doc.ID,
			Type:          core.TxType(doc.Type),
			Amount:        core.Money{Cents: doc.AmountCents},
			Category:      doc.Category,
			PaymentMethod: core.PaymentMethod(doc.PaymentMethod),
			Description:   doc.Description,
			Date:          date,
			IsAutopay:     doc.IsAutopay,
			AutopayID:     doc.AutopayID,
		})
	}
	for cat, cents := range d.budgets.Items {
		s.Budgets[cat] = core.Money{Cents: cents}
	}
	if g := d.goal.Items; g != nil {
		s.Goal = &core.SavingsGoal{Name: g.Name, Target: core.Money{Cents: g.TargetCents}, Saved: core.Money{Cents: g.SavedCents}}
	}
	for _, id := range d.approved.Items {
		s.ApprovedAnomalies[id] = true
	}
	for _, doc := range d.autopays.Items {
		a := core.AutopayRule{
			ID:          doc.ID,
			Name:        doc.Name,
			Amount:      core.Money{Cents: doc.AmountCents},
			Category:    doc.Category,
			Day:         core.AutopayDay(doc.Day),
			Description: doc.Description,
			IsActive:    doc.IsActive,
		}
		if doc.LastProcessed != "" {
			ym, err := core.ParseYearMonth(doc.LastProcessed)
			if err != nil {
				return nil, fmt.Errorf("autopay %s: %w", doc.ID, err)
			}
			a.LastProcessed = &ym
		}
		s.Autopays = append(s.Autopays, a)
	}
	for t, names := range d.cats.Items {
		s.Categories[core.TxType(t)] = names
	}
	return s, nil
}
