package core

import (
	"slices"
	"strings"
)

var defaultCategories = map[TxType][]string{
	Income: {
		"Salary",
		"Freelance Work",
		"Business Income",
		"Investment Returns",
		"Rental Income",
		"Side Hustle",
		"Bonus",
		"Gift/Cash Received",
		"Refund",
		"Other Income",
	},
	Expense: {
		"Food & Dining",
		"Groceries",
		"Transportation",
		"Fuel/Gas",
		"Entertainment",
		"Shopping",
		"Clothing",
		"Utilities",
		"Rent/Mortgage",
		"Healthcare",
		"Insurance",
		"Education",
		"Travel",
		"Subscriptions",
		"Personal Care",
		"Home & Garden",
		"Electronics",
		"Gifts & Donations",
		"Bank Fees",
		"Other Expenses",
	},
}

// DefaultCategories returns a copy of the built-in category list for a type.
func DefaultCategories(t TxType) []string {
	return slices.Clone(defaultCategories[t])
}

// CustomCategories holds user-added categories per transaction type.
type CustomCategories map[TxType][]string

// All returns the default categories followed by the custom ones.
func (c CustomCategories) All(t TxType) []string {
	out := DefaultCategories(t)
	return append(out, c[t]...)
}

// Has reports whether the name is known for the type, ignoring case.
func (c CustomCategories) Has(t TxType, name string) bool {
	name = strings.TrimSpace(name)
	for _, existing := range c.All(t) {
		if strings.EqualFold(existing, name) {
			return true
		}
	}
	return false
}

// Add registers a custom category. Duplicates of default or custom names are
// rejected.
func (c CustomCategories) Add(t TxType, name string) error {
	if !t.Valid() {
		return ErrInvalidType
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyCategory
	}
	if c.Has(t, name) {
		return ErrDuplicateCategory
	}
	c[t] = append(c[t], name)
	return nil
}

func (c CustomCategories) Clone() CustomCategories {
	out := make(CustomCategories, len(c))
	for k, v := range c {
		out[k] = slices.Clone(v)
	}
	return out
}
