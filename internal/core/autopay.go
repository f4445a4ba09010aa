package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// LastDayOfMonth is the AutopayDay sentinel for "the last day of whatever
// month is being processed".
const LastDayOfMonth AutopayDay = -1

// AutopayDay is a scheduled day of month: 1..31 or LastDayOfMonth.
type AutopayDay int

// AutopayRule is a recurring monthly expense.
type AutopayRule struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Amount        Money      `json:"amount"`
	Category      string     `json:"category"`
	Day           AutopayDay `json:"day"`
	Description   string     `json:"description,omitempty"`
	IsActive      bool       `json:"isActive"`
	LastProcessed *YearMonth `json:"lastProcessedMonth,omitempty"`
}

func (d AutopayDay) Valid() bool {
	return d == LastDayOfMonth || (d >= 1 && d <= 31)
}

// Resolve returns the concrete day for a month. Days past the end of a short
// month are clamped to its last day.
func (d AutopayDay) Resolve(year, month int) int {
	last := DaysIn(year, month)
	if d == LastDayOfMonth || int(d) > last {
		return last
	}
	return int(d)
}

func (d AutopayDay) String() string {
	if d == LastDayOfMonth {
		return "last"
	}
	return strconv.Itoa(int(d))
}

// ParseAutopayDay accepts "1".."31" or "last".
func ParseAutopayDay(s string) (AutopayDay, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "last" || s == "-1" {
		return LastDayOfMonth, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || !AutopayDay(n).Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAutopayDay, s)
	}
	return AutopayDay(n), nil
}

func (d AutopayDay) MarshalJSON() ([]byte, error) {
	if d == LastDayOfMonth {
		return []byte(`"last"`), nil
	}
	return []byte(strconv.Itoa(int(d))), nil
}

func (d *AutopayDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		s = string(b)
	}
	parsed, err := ParseAutopayDay(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (r AutopayRule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyName
	}
	if len(r.Name) > maxNameLen {
		return ErrNameTooLong
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.Category) == "" {
		return ErrEmptyCategory
	}
	if !r.Day.Valid() {
		return ErrInvalidAutopayDay
	}
	if len(r.Description) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	return nil
}

// ProcessedIn reports whether the rule already fired in the given month.
func (r AutopayRule) ProcessedIn(ym YearMonth) bool {
	return r.LastProcessed != nil && *r.LastProcessed == ym
}
