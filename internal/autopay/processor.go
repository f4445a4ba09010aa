// Package autopay materialises recurring monthly expenses.
//
// A rule fires at most once per calendar month: on the first run on or after
// its scheduled day. The month marker on the rule is the primary guard; the
// generated transactions themselves are the second one, so a lost marker
// update cannot produce a duplicate.
package autopay

import (
	"cmp"
	"slices"

	"fintrack/internal/core"
)

// PaymentMethod is recorded on every generated transaction.
const PaymentMethod = core.PaymentBankTransfer

// Result is the outcome of one processing run.
type Result struct {
	// Transactions holds only the newly generated expenses.
	Transactions []core.Transaction
	// Rules is the full rule list with updated month markers.
	Rules   []core.AutopayRule
	Created int
	// Skipped lists the rules whose generated expense was rejected. Their
	// month markers are left untouched so a corrected rule fires later.
	Skipped []SkippedRule
}

// SkippedRule is a due rule that produced an invalid transaction.
type SkippedRule struct {
	RuleID string
	Err    error
}

// IsDue reports whether an active rule should fire on today.
func IsDue(rule core.AutopayRule, today core.Date) bool {
	if !rule.IsActive {
		return false
	}
	if rule.ProcessedIn(today.YearMonth()) {
		return false
	}
	return today.Day() >= rule.Day.Resolve(today.Year(), today.Month())
}

// Process runs every rule against today. The inputs are not modified.
func Process(rules []core.AutopayRule, txs []core.Transaction, today core.Date, newID func() string) Result {
	ym := today.YearMonth()
	generated := generatedIn(txs, ym)

	res := Result{
		Transactions: []core.Transaction{},
		Rules:        make([]core.AutopayRule, len(rules)),
	}
	for i, rule := range rules {
		res.Rules[i] = rule
		if !IsDue(rule, today) {
			continue
		}

		marker := ym
		res.Rules[i].LastProcessed = &marker
		if generated[rule.ID] {
			continue
		}

		res.Transactions = append(res.Transactions, materialise(rule, today, newID()))
		generated[rule.ID] = true
	}
	res.Created = len(res.Transactions)
	return res
}

// Apply processes the snapshot's rules and appends the generated
// transactions to it. A rule whose transaction fails validation is skipped
// on its own; the other rules still fire.
func Apply(s *core.Snapshot, today core.Date, newID func() string) Result {
	res := Process(s.Autopays, s.Transactions, today, newID)
	added := make([]core.Transaction, 0, len(res.Transactions))
	for _, t := range res.Transactions {
		if err := s.AddTransaction(t); err != nil {
			res.Skipped = append(res.Skipped, SkippedRule{RuleID: t.AutopayID, Err: err})
			for i := range res.Rules {
				if res.Rules[i].ID == t.AutopayID {
					res.Rules[i].LastProcessed = s.Autopays[i].LastProcessed
				}
			}
			continue
		}
		added = append(added, t)
	}
	res.Transactions = added
	res.Created = len(added)
	s.Autopays = res.Rules
	return res
}

func materialise(rule core.AutopayRule, today core.Date, id string) core.Transaction {
	desc := rule.Description
	if desc == "" {
		desc = core.TruncateDescription("Autopay: " + rule.Name)
	}
	return core.Transaction{
		ID:            id,
		Type:          core.Expense,
		Amount:        rule.Amount,
		Category:      rule.Category,
		PaymentMethod: PaymentMethod,
		Description:   desc,
		Date:          core.NewDate(today.Year(), today.Month(), rule.Day.Resolve(today.Year(), today.Month())),
		IsAutopay:     true,
		AutopayID:     rule.ID,
	}
}

// generatedIn collects the rule ids that already have a transaction in ym.
func generatedIn(txs []core.Transaction, ym core.YearMonth) map[string]bool {
	out := make(map[string]bool)
	for _, t := range txs {
		if t.IsAutopay && t.AutopayID != "" && t.Date.YearMonth() == ym {
			out[t.AutopayID] = true
		}
	}
	return out
}

// UpcomingPayment is a rule that has not fired yet this month.
type UpcomingPayment struct {
	core.AutopayRule
	DueDate   core.Date `json:"dueDate"`
	DaysUntil int       `json:"daysUntil"`
}

// Upcoming returns active rules whose day is still ahead this month,
// nearest first.
func Upcoming(rules []core.AutopayRule, today core.Date) []UpcomingPayment {
	ym := today.YearMonth()
	out := []UpcomingPayment{}
	for _, rule := range rules {
		if !rule.IsActive || rule.ProcessedIn(ym) {
			continue
		}
		day := rule.Day.Resolve(ym.Year, ym.Month)
		if day <= today.Day() {
			continue
		}
		due := core.NewDate(ym.Year, ym.Month, day)
		out = append(out, UpcomingPayment{AutopayRule: rule, DueDate: due, DaysUntil: core.DaysBetween(today, due)})
	}
	slices.SortStableFunc(out, func(a, b UpcomingPayment) int {
		return cmp.Compare(a.DueDate.Day(), b.DueDate.Day())
	})
	return out
}
