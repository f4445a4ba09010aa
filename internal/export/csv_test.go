package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

func tx(date, category, desc string, cents int64) core.Transaction {
	d, err := core.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return core.Transaction{
		ID:            "id-" + date,
		Type:          core.Expense,
		Amount:        core.Money{Cents: cents},
		Category:      category,
		PaymentMethod: core.PaymentCard,
		Description:   desc,
		Date:          d,
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []core.Transaction{
		tx("2024-03-01", "Groceries", "weekly shop", 4250),
		tx("2024-03-02", "Home, Garden", `the "good" rake`, 1999),
		tx("2024-03-03", "Travel", "", 100000),
	})
	require.NoError(t, err)

	want := "Date,Type,Category,Description,Payment Method,Amount\n" +
		"2024-03-01,expense,Groceries,\"weekly shop\",card,42.50\n" +
		"2024-03-02,expense,\"Home, Garden\",\"the \"\"good\"\" rake\",card,19.99\n" +
		"2024-03-03,expense,Travel,\"\",card,1000.00\n"
	assert.Equal(t, want, buf.String())

	// The output stays readable by a standard CSV reader.
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, `the "good" rake`, records[2][3])
	assert.Equal(t, "Home, Garden", records[2][2])
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "Date,Type,Category,Description,Payment Method,Amount\n", buf.String())
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "transactions_2024-06-30.csv", FileName(core.NewDate(2024, 6, 30)))
}
