package vat

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInput(net int64) Input {
	return Input{
		TenantID:        "t1",
		PeriodID:        "2026-Q1",
		SourceType:      "INVOICE",
		SourceID:        "inv-1",
		JournalEntryID:  "je-1",
		JournalLineID:   "jl-1",
		NetMinor:        net,
		TransactionDate: time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC),
		PartyID:         "cust-1",
		PartyName:       "Jansen BV",
	}
}

func mustCode(t *testing.T, table *Table, code string) Code {
	t.Helper()
	c, err := table.ByCode(code)
	require.NoError(t, err)
	return c
}

func TestAttributeHighRateSale(t *testing.T) {
	table := MustDefaultTable()
	rows := Attribute(testInput(100000), mustCode(t, table, "BTW21")) // €1000.00

	require.Len(t, rows, 2)
	assert.Equal(t, Box1a, rows[0].Box)
	assert.Equal(t, int64(100000), rows[0].NetAmount)
	assert.Equal(t, int64(0), rows[0].VatAmount)
	assert.Equal(t, Box1a, rows[1].Box)
	assert.Equal(t, int64(0), rows[1].NetAmount)
	assert.Equal(t, int64(21000), rows[1].VatAmount) // €210.00
	for _, row := range rows {
		assert.Equal(t, "jl-1", row.JournalLineID)
		assert.Equal(t, "inv-1", row.SourceID)
		assert.NotEmpty(t, row.ID)
	}
}

func TestAttributeReverseChargeWritesDeductibleToo(t *testing.T) {
	table := MustDefaultTable()
	rows := Attribute(testInput(50000), mustCode(t, table, "VERL"))

	// Self-assessed VAT appears as both output tax and input tax.
	require.Len(t, rows, 3)
	assert.Equal(t, Box2a, rows[0].Box)
	assert.Equal(t, int64(50000), rows[0].NetAmount)
	assert.Equal(t, Box2a, rows[1].Box)
	assert.Equal(t, int64(10500), rows[1].VatAmount)
	assert.Equal(t, Box5b, rows[2].Box)
	assert.Equal(t, int64(10500), rows[2].VatAmount)
}

func TestAttributeZeroRateStillReported(t *testing.T) {
	table := MustDefaultTable()
	rows := Attribute(testInput(30000), mustCode(t, table, "BTW0"))

	require.Len(t, rows, 1)
	assert.Equal(t, Box1e, rows[0].Box)
	assert.Equal(t, int64(30000), rows[0].NetAmount)
	assert.Equal(t, int64(0), rows[0].VatAmount)
}

func TestAttributePurchaseOnlyDeductible(t *testing.T) {
	table := MustDefaultTable()
	rows := Attribute(testInput(20000), mustCode(t, table, "VB21"))

	require.Len(t, rows, 1)
	assert.Equal(t, Box5b, rows[0].Box)
	assert.Equal(t, int64(0), rows[0].NetAmount)
	assert.Equal(t, int64(4200), rows[0].VatAmount)
}

func TestVatMinorRounding(t *testing.T) {
	rate := decimal.NewFromInt(21)
	// €0.07 * 21% = €0.0147 -> rounds to €0.01
	assert.Equal(t, int64(1), VatMinor(7, rate))
	// €0.12 * 21% = €0.0252 -> €0.03
	assert.Equal(t, int64(3), VatMinor(12, rate))
	// 9% of €33.33 = €2.9997 -> €3.00
	assert.Equal(t, int64(300), VatMinor(3333, decimal.NewFromInt(9)))
}
