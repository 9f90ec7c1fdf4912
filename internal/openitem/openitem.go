// Package openitem tracks outstanding receivables and payables derived from
// posted journal entries and their allocation against payments.
package openitem

import (
	"errors"
	"time"

	"grootboek.dev/internal/ids"
)

// ItemType distinguishes the AR and AP subledgers.
type ItemType string

const (
	Receivable ItemType = "RECEIVABLE"
	Payable    ItemType = "PAYABLE"
)

// Status is fully derived from paid vs. original, except the two terminal
// states: WRITTEN_OFF is an explicit accountant action, CANCELLED means the
// originating entry was reversed.
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusPartial    Status = "PARTIAL"
	StatusPaid       Status = "PAID"
	StatusWrittenOff Status = "WRITTEN_OFF"
	StatusCancelled  Status = "CANCELLED"
)

// OpenItem is one outstanding invoice-side amount. Amounts are minor units.
type OpenItem struct {
	ID             string   `json:"id"`
	TenantID       string   `json:"tenant_id"`
	PartyID        string   `json:"party_id"`
	JournalEntryID string   `json:"journal_entry_id"`
	JournalLineID  string   `json:"journal_line_id"`
	ItemType       ItemType `json:"item_type"`
	OriginalAmount int64    `json:"original_amount"`
	PaidAmount     int64    `json:"paid_amount"`
	OpenAmount     int64    `json:"open_amount"`
	Status         Status   `json:"status"`

	Allocations []Allocation `json:"allocations,omitempty"`
}

// Allocation records one payment's contribution to an open item.
// Overpayment must be flagged explicitly; it is never inferred.
type Allocation struct {
	ID          string    `json:"id"`
	OpenItemID  string    `json:"open_item_id"`
	PaymentRef  string    `json:"payment_ref"`
	Amount      int64     `json:"amount"`
	Overpayment bool      `json:"overpayment"`
	AllocatedAt time.Time `json:"allocated_at"`
}

var (
	ErrNotFound       = errors.New("openitem: not found")
	ErrInvalidAmount  = errors.New("openitem: allocation amount must be > 0")
	ErrOverpayment    = errors.New("openitem: allocation exceeds open amount (overpayment not flagged)")
	ErrWrittenOff     = errors.New("openitem: item is written off")
	ErrCancelled      = errors.New("openitem: item was cancelled by a reversal")
	ErrIntegrity      = errors.New("openitem: paid amount exceeds original outside overpayment path")
	ErrAlreadySettled = errors.New("openitem: item is already fully paid")
)

// DeriveStatus is the pure status function of paid vs. original.
func DeriveStatus(original, paid int64) Status {
	switch {
	case paid >= original:
		return StatusPaid
	case paid > 0:
		return StatusPartial
	default:
		return StatusOpen
	}
}

// New creates an open item for a control-account line of a posted entry.
func New(tenantID, partyID, entryID, lineID string, itemType ItemType, amount int64) OpenItem {
	return OpenItem{
		ID:             ids.NewEntity(),
		TenantID:       tenantID,
		PartyID:        partyID,
		JournalEntryID: entryID,
		JournalLineID:  lineID,
		ItemType:       itemType,
		OriginalAmount: amount,
		OpenAmount:     amount,
		Status:         StatusOpen,
	}
}

// Apply records an allocation against the item and re-derives its status.
// Paying past the original amount is rejected unless the allocation is
// flagged as an overpayment; it is a distinct scenario, not something to
// silently clamp.
func (o *OpenItem) Apply(alloc Allocation) error {
	if alloc.Amount <= 0 {
		return ErrInvalidAmount
	}
	if o.Status == StatusWrittenOff {
		return ErrWrittenOff
	}
	if o.Status == StatusCancelled {
		return ErrCancelled
	}
	newPaid := o.PaidAmount + alloc.Amount
	if newPaid > o.OriginalAmount && !alloc.Overpayment {
		return ErrOverpayment
	}

	if alloc.ID == "" {
		alloc.ID = ids.NewEntity()
	}
	alloc.OpenItemID = o.ID
	if alloc.AllocatedAt.IsZero() {
		alloc.AllocatedAt = time.Now().UTC()
	}

	o.PaidAmount = newPaid
	o.OpenAmount = o.OriginalAmount - o.PaidAmount
	if o.OpenAmount < 0 {
		o.OpenAmount = 0
	}
	o.Status = DeriveStatus(o.OriginalAmount, o.PaidAmount)
	o.Allocations = append(o.Allocations, alloc)
	return nil
}

// WriteOff moves the item to its terminal state. Only reachable through an
// explicit accountant action.
func (o *OpenItem) WriteOff() error {
	if o.Status == StatusWrittenOff {
		return ErrWrittenOff
	}
	if o.Status == StatusCancelled {
		return ErrCancelled
	}
	if o.Status == StatusPaid {
		return ErrAlreadySettled
	}
	o.Status = StatusWrittenOff
	o.OpenAmount = 0
	return nil
}

// Cancel closes the item because its originating entry was reversed: the
// reversing lines zero the control account, so the subledger must drop the
// outstanding amount with it. Payments already allocated stay on the item
// for reconciliation against the bank.
func (o *OpenItem) Cancel() {
	o.Status = StatusCancelled
	o.OpenAmount = 0
}

// CheckIntegrity surfaces corrupted state loudly instead of coercing it:
// paid beyond original without a flagged overpayment allocation, or
// allocations that no longer sum to the paid amount.
func (o *OpenItem) CheckIntegrity() error {
	var sum int64
	flagged := false
	for _, a := range o.Allocations {
		sum += a.Amount
		if a.Overpayment {
			flagged = true
		}
	}
	if sum != o.PaidAmount {
		return ErrIntegrity
	}
	if o.PaidAmount > o.OriginalAmount && !flagged {
		return ErrIntegrity
	}
	return nil
}
