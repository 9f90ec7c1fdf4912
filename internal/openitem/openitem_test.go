package openitem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newItem() OpenItem {
	return New("t1", "cust-1", "je-1", "jl-1", Receivable, 100000) // €1000.00
}

func TestDeriveStatus(t *testing.T) {
	assert.Equal(t, StatusOpen, DeriveStatus(100, 0))
	assert.Equal(t, StatusPartial, DeriveStatus(100, 60))
	assert.Equal(t, StatusPaid, DeriveStatus(100, 100))
	assert.Equal(t, StatusPaid, DeriveStatus(100, 120))
}

func TestPartialPayment(t *testing.T) {
	item := newItem()
	err := item.Apply(Allocation{PaymentRef: "pay-1", Amount: 60000}) // €600.00
	require.NoError(t, err)

	assert.Equal(t, StatusPartial, item.Status)
	assert.Equal(t, int64(40000), item.OpenAmount)
	assert.Equal(t, int64(60000), item.PaidAmount)
	require.Len(t, item.Allocations, 1)
	assert.Equal(t, item.ID, item.Allocations[0].OpenItemID)
}

func TestFullPayment(t *testing.T) {
	item := newItem()
	require.NoError(t, item.Apply(Allocation{PaymentRef: "pay-1", Amount: 100000}))

	assert.Equal(t, StatusPaid, item.Status)
	assert.Equal(t, int64(0), item.OpenAmount)
}

func TestOverpaymentRequiresFlag(t *testing.T) {
	item := newItem()
	err := item.Apply(Allocation{PaymentRef: "pay-1", Amount: 110000})
	assert.ErrorIs(t, err, ErrOverpayment)
	assert.Equal(t, StatusOpen, item.Status)

	require.NoError(t, item.Apply(Allocation{PaymentRef: "pay-1", Amount: 110000, Overpayment: true}))
	assert.Equal(t, StatusPaid, item.Status)
	assert.Equal(t, int64(0), item.OpenAmount)
	assert.Equal(t, int64(110000), item.PaidAmount)
}

func TestWriteOff(t *testing.T) {
	item := newItem()
	require.NoError(t, item.Apply(Allocation{PaymentRef: "pay-1", Amount: 30000}))
	require.NoError(t, item.WriteOff())

	assert.Equal(t, StatusWrittenOff, item.Status)
	assert.Equal(t, int64(0), item.OpenAmount)

	// Terminal: no further payments, no second write-off.
	assert.ErrorIs(t, item.Apply(Allocation{PaymentRef: "pay-2", Amount: 100}), ErrWrittenOff)
	assert.ErrorIs(t, item.WriteOff(), ErrWrittenOff)
}

func TestWriteOffPaidItemRejected(t *testing.T) {
	item := newItem()
	require.NoError(t, item.Apply(Allocation{PaymentRef: "pay-1", Amount: 100000}))
	assert.ErrorIs(t, item.WriteOff(), ErrAlreadySettled)
}

func TestZeroAllocationRejected(t *testing.T) {
	item := newItem()
	assert.ErrorIs(t, item.Apply(Allocation{PaymentRef: "pay-1", Amount: 0}), ErrInvalidAmount)
	assert.ErrorIs(t, item.Apply(Allocation{PaymentRef: "pay-1", Amount: -5}), ErrInvalidAmount)
}

func TestCheckIntegrity(t *testing.T) {
	item := newItem()
	require.NoError(t, item.Apply(Allocation{PaymentRef: "pay-1", Amount: 40000}))
	require.NoError(t, item.CheckIntegrity())

	// Tampered state: paid no longer matches the allocation trail.
	item.PaidAmount = 90000
	assert.ErrorIs(t, item.CheckIntegrity(), ErrIntegrity)
}
