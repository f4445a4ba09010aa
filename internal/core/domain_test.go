package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if d.Year() != 2024 || d.Month() != 2 || d.Day() != 29 {
		t.Fatalf("unexpected date %v", d)
	}
	for _, bad := range []string{"2023-02-29", "2024/01/01", "01-02-2024", "", "2024-1-5"} {
		if _, err := ParseDate(bad); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q expected ErrInvalidDate, got %v", bad, err)
		}
	}
}

func TestDateArithmetic(t *testing.T) {
	d := NewDate(2024, 2, 27)
	if got := d.AddDays(3).String(); got != "2024-03-01" {
		t.Fatalf("expected 2024-03-01, got %s", got)
	}
	if d.DaysInMonth() != 29 {
		t.Fatalf("expected 29 days in Feb 2024, got %d", d.DaysInMonth())
	}
	if DaysBetween(NewDate(2024, 12, 30), NewDate(2025, 1, 2)) != 3 {
		t.Fatalf("expected 3 days")
	}
	if got := d.StartOfMonth().String(); got != "2024-02-01" {
		t.Fatalf("unexpected start of month %s", got)
	}
	if got := d.YearMonth().String(); got != "2024-02" {
		t.Fatalf("unexpected year-month %s", got)
	}
}

func TestDateJSON(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"2025-03-04"`), &d); err != nil {
		t.Fatal(err)
	}
	b, _ := json.Marshal(d)
	if string(b) != `"2025-03-04"` {
		t.Fatalf("unexpected json %s", b)
	}
	if err := json.Unmarshal([]byte(`"03/04/2025"`), &d); err == nil {
		t.Fatalf("expected error")
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		ID:            "t1",
		Type:          Expense,
		Amount:        Money{Cents: 100},
		Category:      "Groceries",
		PaymentMethod: PaymentCard,
		Description:   "ok",
		Date:          NewDate(2025, 1, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := map[string]func(tx *Transaction){
		"zero date":       func(tx *Transaction) { tx.Date = Date{} },
		"zero amount":     func(tx *Transaction) { tx.Amount = Money{} },
		"bad type":        func(tx *Transaction) { tx.Type = "transfer" },
		"empty category":  func(tx *Transaction) { tx.Category = "  " },
		"unknown payment": func(tx *Transaction) { tx.PaymentMethod = "cheque" },
		"long text":       func(tx *Transaction) { tx.Description = strings.Repeat("x", 201) },
	}
	for name, mutate := range bads {
		tx := good
		mutate(&tx)
		if err := tx.Validate(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestParsePaymentMethod(t *testing.T) {
	cases := map[string]PaymentMethod{
		"":              PaymentCash,
		"Card":          PaymentCard,
		"bank transfer": PaymentBankTransfer,
		"UPI":           PaymentUPI,
	}
	for in, want := range cases {
		got, err := ParsePaymentMethod(in)
		if err != nil || got != want {
			t.Fatalf("%q expected %s, got %s (err=%v)", in, want, got, err)
		}
	}
	if _, err := ParsePaymentMethod("cheque"); !errors.Is(err, ErrInvalidPayment) {
		t.Fatalf("expected ErrInvalidPayment, got %v", err)
	}
}

func TestSavingsGoalDeposit(t *testing.T) {
	g := SavingsGoal{Name: "Trip", Target: Money{Cents: 10000}}
	if err := g.Deposit(Money{Cents: 2500}); err != nil {
		t.Fatal(err)
	}
	if err := g.Deposit(Money{Cents: 0}); err == nil {
		t.Fatalf("expected error for zero deposit")
	}
	if err := g.Deposit(Money{Cents: -5}); err == nil {
		t.Fatalf("expected error for negative deposit")
	}
	if g.Saved.Cents != 2500 {
		t.Fatalf("expected 2500 saved, got %d", g.Saved.Cents)
	}
}

func TestAutopayDay(t *testing.T) {
	cases := []struct {
		day         AutopayDay
		year, month int
		want        int
	}{
		{15, 2025, 6, 15},
		{31, 2025, 4, 30},
		{31, 2025, 2, 28},
		{30, 2024, 2, 29},
		{LastDayOfMonth, 2024, 2, 29},
		{LastDayOfMonth, 2025, 1, 31},
	}
	for _, tc := range cases {
		if got := tc.day.Resolve(tc.year, tc.month); got != tc.want {
			t.Fatalf("%v in %d-%02d: expected %d, got %d", tc.day, tc.year, tc.month, tc.want, got)
		}
	}

	if d, err := ParseAutopayDay("last"); err != nil || d != LastDayOfMonth {
		t.Fatalf("expected last, got %v (err=%v)", d, err)
	}
	for _, bad := range []string{"0", "32", "x", ""} {
		if _, err := ParseAutopayDay(bad); !errors.Is(err, ErrInvalidAutopayDay) {
			t.Fatalf("%q expected ErrInvalidAutopayDay, got %v", bad, err)
		}
	}

	var rule AutopayRule
	if err := json.Unmarshal([]byte(`{"name":"Rent","amount":900,"category":"Rent/Mortgage","day":"last","isActive":true}`), &rule); err != nil {
		t.Fatal(err)
	}
	if rule.Day != LastDayOfMonth || rule.Amount.Cents != 90000 {
		t.Fatalf("unexpected rule %+v", rule)
	}
	if err := rule.Validate(); err != nil {
		t.Fatalf("expected valid rule, got %v", err)
	}
}

func TestAutopayRuleValidateName(t *testing.T) {
	base := AutopayRule{Name: "Gym", Amount: Money{Cents: 3000}, Category: "Healthcare", Day: 5}
	cases := []struct {
		name string
		want error
	}{
		{"", ErrEmptyName},
		{strings.Repeat("n", 100), nil},
		{strings.Repeat("n", 195), ErrNameTooLong},
	}
	for _, tc := range cases {
		r := base
		r.Name = tc.name
		if err := r.Validate(); !errors.Is(err, tc.want) {
			t.Errorf("name of %d bytes: got %v, want %v", len(tc.name), err, tc.want)
		}
	}
}

func TestTruncateDescription(t *testing.T) {
	if got := TruncateDescription("short"); got != "short" {
		t.Fatalf("got %q", got)
	}
	got := TruncateDescription(strings.Repeat("é", 150))
	if len(got) != 200 || !strings.HasPrefix(strings.Repeat("é", 150), got) {
		t.Fatalf("unexpected truncation to %d bytes", len(got))
	}
	long := TruncateDescription("x" + strings.Repeat("é", 150))
	if len(long) != 199 {
		t.Fatalf("expected cut at rune boundary, got %d bytes", len(long))
	}
}
