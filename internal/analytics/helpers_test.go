package analytics

import (
	"fmt"

	"fintrack/internal/core"
)

var seq int

func tx(typ core.TxType, category string, units float64, date string) core.Transaction {
	seq++
	d, err := core.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return core.Transaction{
		ID:            fmt.Sprintf("tx-%d", seq),
		Type:          typ,
		Amount:        core.MoneyFromUnits(units),
		Category:      category,
		PaymentMethod: core.PaymentCard,
		Date:          d,
	}
}

func expense(category string, units float64, date string) core.Transaction {
	return tx(core.Expense, category, units, date)
}

func income(units float64, date string) core.Transaction {
	return tx(core.Income, "Salary", units, date)
}

func cents(units float64) core.Money { return core.MoneyFromUnits(units) }
