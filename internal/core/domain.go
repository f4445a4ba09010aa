package core

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	Income  TxType = "income"
	Expense TxType = "expense"
)

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentCard         PaymentMethod = "card"
	PaymentUPI          PaymentMethod = "upi"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentWallet       PaymentMethod = "wallet"
	PaymentOther        PaymentMethod = "other"
)

const (
	maxDescriptionLen = 200
	maxNameLen        = 100
)

type (
	TxType string

	PaymentMethod string

	Transaction struct {
		ID            string        `json:"id"`
		Type          TxType        `json:"type"`
		Amount        Money         `json:"amount"`
		Category      string        `json:"category"`
		PaymentMethod PaymentMethod `json:"paymentMethod"`
		Description   string        `json:"description,omitempty"`
		Date          Date          `json:"date"`
		IsAutopay     bool          `json:"isAutopay,omitempty"`
		AutopayID     string        `json:"autopayId,omitempty"`
	}

	// Budgets maps a category to its monthly cap.
	Budgets map[string]Money

	SavingsGoal struct {
		Name   string `json:"name"`
		Target Money  `json:"target"`
		Saved  Money  `json:"saved"`
	}
)

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidDate          = errors.New("invalid date")
	ErrInvalidType          = errors.New("invalid transaction type")
	ErrInvalidPayment       = errors.New("invalid payment method")
	ErrEmptyCategory        = errors.New("empty category")
	ErrDescriptionTooLong   = errors.New("description too long (max 200 characters)")
	ErrEmptyName            = errors.New("empty name")
	ErrNameTooLong          = errors.New("name too long (max 100 characters)")
	ErrInvalidAutopayDay    = errors.New("invalid autopay day")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrAutopayNotFound      = errors.New("autopay not found")
	ErrDuplicateCategory    = errors.New("category already exists")
	ErrDuplicateTransaction = errors.New("transaction id already exists")
	ErrGoalNotSet           = errors.New("savings goal not set")
)

func (t TxType) Valid() bool {
	return t == Income || t == Expense
}

// ParseTxType accepts the two variants case-insensitively.
func ParseTxType(s string) (TxType, error) {
	t := TxType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	return t, nil
}

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCash, PaymentCard, PaymentUPI, PaymentBankTransfer, PaymentWallet, PaymentOther:
		return true
	}
	return false
}

// ParsePaymentMethod defaults an empty value to cash, which is what the
// entry form preselects.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PaymentCash, nil
	}
	p := PaymentMethod(strings.ReplaceAll(s, " ", "_"))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPayment, s)
	}
	return p, nil
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if !t.PaymentMethod.Valid() {
		return ErrInvalidPayment
	}
	if len(t.Description) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	return nil
}

// TruncateDescription cuts s to the longest prefix of whole runes that
// passes the description length check.
func TruncateDescription(s string) string {
	if len(s) <= maxDescriptionLen {
		return s
	}
	s = s[:maxDescriptionLen]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

func (t Transaction) IsExpense() bool { return t.Type == Expense }

// Clone returns a deep copy of the budget map.
func (b Budgets) Clone() Budgets {
	out := make(Budgets, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

func (g SavingsGoal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if err := g.Target.Validate(); err != nil {
		return err
	}
	if g.Saved.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Deposit adds to the saved accumulator. There is no withdrawal.
func (g *SavingsGoal) Deposit(amount Money) error {
	if err := amount.Validate(); err != nil {
		return err
	}
	g.Saved = g.Saved.Add(amount)
	return nil
}
