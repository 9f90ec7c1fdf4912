package vat

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCodesAllValid(t *testing.T) {
	require.NotPanics(t, func() { MustValidate(DefaultCodes()) })
}

func TestValidateRejectsUnknownBox(t *testing.T) {
	c := Code{
		Code: "BAD", Rate: decimal.NewFromInt(21), Category: CategorySales,
		Mapping: Mapping{TurnoverBox: "9z", VatBox: Box1a},
	}
	err := Validate(c)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownBox)
}

func TestValidateRejectsMissingSlot(t *testing.T) {
	c := Code{
		Code: "BAD", Rate: decimal.NewFromInt(21), Category: CategoryReverseCharge,
		Mapping: Mapping{TurnoverBox: Box2a, VatBox: Box2a}, // deductible missing
	}
	assert.ErrorIs(t, Validate(c), ErrBadMapping)
}

func TestValidateRejectsExtraSlot(t *testing.T) {
	c := Code{
		Code: "BAD", Rate: decimal.NewFromInt(0), Category: CategoryZeroRate,
		Mapping: Mapping{TurnoverBox: Box1e, VatBox: Box1e},
	}
	assert.ErrorIs(t, Validate(c), ErrBadMapping)
}

func TestValidateRejectsUnknownCategory(t *testing.T) {
	c := Code{Code: "BAD", Category: Category("GIFT")}
	assert.ErrorIs(t, Validate(c), ErrUnknownCategory)
}

func TestTableLookups(t *testing.T) {
	table := MustDefaultTable()

	c, err := table.ByID("vat-hoog")
	require.NoError(t, err)
	assert.Equal(t, "BTW21", c.Code)
	assert.True(t, c.Rate.Equal(decimal.NewFromInt(21)))

	_, err = table.ByCode("NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTableRejectsInactiveCode(t *testing.T) {
	codes := DefaultCodes()
	codes[0].Active = false
	table, err := NewTable(codes)
	require.NoError(t, err)

	_, err = table.ByID(codes[0].ID)
	assert.ErrorIs(t, err, ErrInactiveCode)
}
