package ledger

import (
	"time"
)

// SourceType identifies the business event a journal entry was posted for.
type SourceType string

const (
	SourceInvoice      SourceType = "INVOICE"
	SourceExpense      SourceType = "EXPENSE"
	SourceBankMatch    SourceType = "BANK_MATCH"
	SourceDepreciation SourceType = "DEPRECIATION"
	SourceAdjustment   SourceType = "ADJUSTMENT"
	SourceDecision     SourceType = "DECISION"
	// SourceReversal is assigned to entries created through Reverse; the
	// source id is the reversed entry's id, which keeps reversals idempotent.
	SourceReversal SourceType = "REVERSAL"
)

// ValidSourceType reports whether t may appear on an inbound event.
func ValidSourceType(t SourceType) bool {
	switch t {
	case SourceInvoice, SourceExpense, SourceBankMatch, SourceDepreciation,
		SourceAdjustment, SourceDecision:
		return true
	}
	return false
}

// EntryStatus is the journal entry lifecycle.
type EntryStatus string

const (
	StatusDraft    EntryStatus = "DRAFT"
	StatusPosted   EntryStatus = "POSTED"
	StatusReversed EntryStatus = "REVERSED"
)

// JournalEntry is a balanced, immutable record of one business event.
// Once POSTED the amounts never change; corrections add a reversing entry.
// All amounts are minor units (euro cents).
type JournalEntry struct {
	ID          string        `json:"id"`
	TenantID    string        `json:"tenant_id"`
	EntryNumber string        `json:"entry_number"`
	EntryDate   time.Time     `json:"entry_date"`
	Description string        `json:"description"`
	Reference   string        `json:"reference,omitempty"`
	Status      EntryStatus   `json:"status"`
	SourceType  SourceType    `json:"source_type"`
	SourceID    string        `json:"source_id"`
	TotalDebit  int64         `json:"total_debit"`
	TotalCredit int64         `json:"total_credit"`
	IsBalanced  bool          `json:"is_balanced"`
	PostedAt    *time.Time    `json:"posted_at,omitempty"`
	CreatedBy   string        `json:"created_by"`
	Lines       []JournalLine `json:"lines"`
}

// JournalLine is one side of a double entry. Exactly one of DebitAmount and
// CreditAmount is non-zero; neither is ever negative.
type JournalLine struct {
	ID             string `json:"id"`
	JournalEntryID string `json:"journal_entry_id"`
	LineNumber     int    `json:"line_number"`
	AccountID      string `json:"account_id"`
	DebitAmount    int64  `json:"debit_amount"`
	CreditAmount   int64  `json:"credit_amount"`
	VatCodeID      string `json:"vat_code_id,omitempty"`
	Description    string `json:"description,omitempty"`
	PartyID        string `json:"party_id,omitempty"`
	PartyName      string `json:"party_name,omitempty"`
}

// Amount returns the line's single non-zero side.
func (l JournalLine) Amount() int64 {
	if l.DebitAmount != 0 {
		return l.DebitAmount
	}
	return l.CreditAmount
}

// LineInput is one requested line of a posting.
type LineInput struct {
	AccountID   string `json:"account_id"`
	Debit       int64  `json:"debit"`
	Credit      int64  `json:"credit"`
	VatCodeID   string `json:"vat_code_id,omitempty"`
	Description string `json:"description,omitempty"`
	PartyID     string `json:"party_id,omitempty"`
	PartyName   string `json:"party_name,omitempty"`
}

// PostInput is the inbound event contract: one business event to be turned
// into a balanced journal entry.
type PostInput struct {
	TenantID    string      `json:"tenant_id"`
	SourceType  SourceType  `json:"source_type"`
	SourceID    string      `json:"source_id"`
	EntryDate   time.Time   `json:"entry_date"`
	Description string      `json:"description"`
	Reference   string      `json:"reference,omitempty"`
	Lines       []LineInput `json:"lines"`
}
