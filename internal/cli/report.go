package cli

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

var (
	printer = message.NewPrinter(language.English)
	title   = cases.Title(language.English)
)

// money renders cents with thousands separators, e.g. "12,345.60".
func money(m core.Money) string {
	return printer.Sprintf("%.2f", m.Units())
}

// WriteReport prints a plain-text summary of a dashboard.
func WriteReport(w io.Writer, user string, d *services.Dashboard) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Ledger report for %s on %s\n\n", user, d.Today)
	fmt.Fprintf(&b, "Balance        %14s  (%s)\n", money(d.Balance), title.String(string(d.Runway.Level)))
	fmt.Fprintf(&b, "Spent today    %14s\n", money(d.Periods.Today))
	fmt.Fprintf(&b, "Spent 7 days   %14s\n", money(d.Periods.Week))
	fmt.Fprintf(&b, "Spent month    %14s\n", money(d.Periods.Month))

	switch {
	case d.Runway.Depleted:
		b.WriteString("Runway         balance depleted\n")
	case d.Runway.Sustainable:
		b.WriteString("Runway         no recent spending\n")
	default:
		fmt.Fprintf(&b, "Runway         %s days, until %s\n",
			printer.Sprintf("%.1f", d.Runway.DaysRemaining), d.Runway.DepletionDate)
	}

	if len(d.Month) > 0 {
		b.WriteString("\nThis month by category\n")
		for _, c := range d.Month {
			fmt.Fprintf(&b, "  %-22s %14s %6.1f%%\n", c.Category, money(c.Amount), c.Percent)
		}
	}

	if len(d.Budgets) > 0 {
		b.WriteString("\nBudgets\n")
		for _, l := range d.Budgets {
			fmt.Fprintf(&b, "  %-22s %14s / %-14s %6.1f%%  %s\n",
				l.Category, money(l.Spent), money(l.Budget), l.Percentage, title.String(string(l.Status)))
		}
	}

	if d.Goal != nil {
		fmt.Fprintf(&b, "\nGoal %q: %s of %s (%.1f%%)\n",
			d.Goal.Name, money(d.Goal.Saved), money(d.Goal.Target), d.Goal.Percentage)
	}

	if len(d.Forecast.Dates) > 0 {
		fmt.Fprintf(&b, "\nForecast next %d days: %s (%s confidence)\n",
			d.Forecast.Horizon, printer.Sprintf("%.2f", d.Forecast.TotalForecast), d.Forecast.Confidence)
	}

	if alerts := d.Anomalies.Alerts; len(alerts) > 0 {
		b.WriteString("\nUnusual expenses\n")
		for _, a := range alerts {
			fmt.Fprintf(&b, "  %s  %-22s %14s  z=%.2f  [%s]\n", a.Date, a.Category, money(a.Amount), a.ZScore, a.ID)
		}
	}

	if len(d.Upcoming) > 0 {
		b.WriteString("\nUpcoming autopays\n")
		for _, u := range d.Upcoming {
			fmt.Fprintf(&b, "  %s  %-22s %14s  in %d days\n", u.DueDate, u.Name, money(u.Amount), u.DaysUntil)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
