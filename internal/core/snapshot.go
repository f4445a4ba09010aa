package core

import (
	"slices"
	"strings"
)

// Snapshot is one user's complete ledger state. Analytics functions read it;
// the mutating methods below are the only way it changes.
type Snapshot struct {
	Transactions      []Transaction    `json:"transactions"`
	Budgets           Budgets          `json:"budgets"`
	Goal              *SavingsGoal     `json:"savingsGoal,omitempty"`
	ApprovedAnomalies map[string]bool  `json:"approvedAnomalies"`
	Autopays          []AutopayRule    `json:"autopays"`
	Categories        CustomCategories `json:"customCategories"`
}

// NewSnapshot returns an empty snapshot with every collection initialised.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Transactions:      []Transaction{},
		Budgets:           Budgets{},
		ApprovedAnomalies: map[string]bool{},
		Autopays:          []AutopayRule{},
		Categories:        CustomCategories{},
	}
}

// Normalize fills nil collections, which is what decoders and older stored
// snapshots leave behind.
func (s *Snapshot) Normalize() {
	if s.Transactions == nil {
		s.Transactions = []Transaction{}
	}
	if s.Budgets == nil {
		s.Budgets = Budgets{}
	}
	if s.ApprovedAnomalies == nil {
		s.ApprovedAnomalies = map[string]bool{}
	}
	if s.Autopays == nil {
		s.Autopays = []AutopayRule{}
	}
	if s.Categories == nil {
		s.Categories = CustomCategories{}
	}
}

func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Transactions:      slices.Clone(s.Transactions),
		Budgets:           s.Budgets.Clone(),
		ApprovedAnomalies: make(map[string]bool, len(s.ApprovedAnomalies)),
		Autopays:          make([]AutopayRule, len(s.Autopays)),
		Categories:        s.Categories.Clone(),
	}
	if s.Goal != nil {
		g := *s.Goal
		out.Goal = &g
	}
	for id := range s.ApprovedAnomalies {
		out.ApprovedAnomalies[id] = true
	}
	for i, r := range s.Autopays {
		if r.LastProcessed != nil {
			ym := *r.LastProcessed
			r.LastProcessed = &ym
		}
		out.Autopays[i] = r
	}
	out.Normalize()
	return out
}

// ApprovedIDs returns the approved anomaly ids in sorted order.
func (s *Snapshot) ApprovedIDs() []string {
	ids := make([]string, 0, len(s.ApprovedAnomalies))
	for id := range s.ApprovedAnomalies {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *Snapshot) FindTransaction(id string) (Transaction, bool) {
	if i := s.txIndex(id); i >= 0 {
		return s.Transactions[i], true
	}
	return Transaction{}, false
}

func (s *Snapshot) txIndex(id string) int {
	id = strings.TrimSpace(id)
	return slices.IndexFunc(s.Transactions, func(t Transaction) bool { return t.ID == id })
}

// AddTransaction validates and appends a transaction.
func (s *Snapshot) AddTransaction(t Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if s.txIndex(t.ID) >= 0 {
		return ErrDuplicateTransaction
	}
	s.Transactions = append(s.Transactions, t)
	return nil
}

// DeleteTransaction removes a transaction and forgets any approval for it.
func (s *Snapshot) DeleteTransaction(id string) error {
	i := s.txIndex(id)
	if i < 0 {
		return ErrTransactionNotFound
	}
	delete(s.ApprovedAnomalies, s.Transactions[i].ID)
	s.Transactions = slices.Delete(s.Transactions, i, i+1)
	return nil
}

// ApproveAnomaly marks a transaction as legitimate. It returns false when the
// id was already approved.
func (s *Snapshot) ApproveAnomaly(id string) bool {
	id = strings.TrimSpace(id)
	if s.ApprovedAnomalies == nil {
		s.ApprovedAnomalies = map[string]bool{}
	}
	if s.ApprovedAnomalies[id] {
		return false
	}
	s.ApprovedAnomalies[id] = true
	return true
}

// DismissAnomaly deletes the flagged transaction. Unknown ids leave the
// snapshot untouched and return ErrTransactionNotFound.
func (s *Snapshot) DismissAnomaly(id string) error {
	return s.DeleteTransaction(id)
}

// SetBudget overwrites the cap for a category. A zero amount is allowed and
// keeps the category in the progress view.
func (s *Snapshot) SetBudget(category string, amount Money) error {
	category = strings.TrimSpace(category)
	if category == "" {
		return ErrEmptyCategory
	}
	if amount.Cents < 0 {
		return ErrInvalidAmount
	}
	if s.Budgets == nil {
		s.Budgets = Budgets{}
	}
	s.Budgets[category] = amount
	return nil
}

// RemoveBudget drops a category cap. It reports whether one existed.
func (s *Snapshot) RemoveBudget(category string) bool {
	category = strings.TrimSpace(category)
	_, ok := s.Budgets[category]
	delete(s.Budgets, category)
	return ok
}

// SetGoal replaces the savings goal, keeping the saved amount when the goal
// already exists.
func (s *Snapshot) SetGoal(name string, target Money) error {
	g := SavingsGoal{Name: strings.TrimSpace(name), Target: target}
	if s.Goal != nil {
		g.Saved = s.Goal.Saved
	}
	if err := g.Validate(); err != nil {
		return err
	}
	s.Goal = &g
	return nil
}

// DepositToGoal adds to the goal's saved amount.
func (s *Snapshot) DepositToGoal(amount Money) error {
	if s.Goal == nil {
		return ErrGoalNotSet
	}
	return s.Goal.Deposit(amount)
}

func (s *Snapshot) AddAutopay(r AutopayRule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.Autopays = append(s.Autopays, r)
	return nil
}

func (s *Snapshot) autopayIndex(id string) int {
	id = strings.TrimSpace(id)
	return slices.IndexFunc(s.Autopays, func(r AutopayRule) bool { return r.ID == id })
}

// ToggleAutopay flips a rule between active and paused and returns the new
// state.
func (s *Snapshot) ToggleAutopay(id string) (bool, error) {
	i := s.autopayIndex(id)
	if i < 0 {
		return false, ErrAutopayNotFound
	}
	s.Autopays[i].IsActive = !s.Autopays[i].IsActive
	return s.Autopays[i].IsActive, nil
}

// DeleteAutopay removes a rule. Transactions it already generated stay.
func (s *Snapshot) DeleteAutopay(id string) error {
	i := s.autopayIndex(id)
	if i < 0 {
		return ErrAutopayNotFound
	}
	s.Autopays = slices.Delete(s.Autopays, i, i+1)
	return nil
}

func (s *Snapshot) AddCategory(t TxType, name string) error {
	if s.Categories == nil {
		s.Categories = CustomCategories{}
	}
	return s.Categories.Add(t, name)
}
