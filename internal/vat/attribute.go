package vat

import (
	"time"

	"github.com/shopspring/decimal"

	"grootboek.dev/internal/ids"
)

// Lineage ties one box contribution back to the journal line that caused it.
// Rows are evidence for a filed return: append-only, never updated.
type Lineage struct {
	ID              string    `json:"id"`
	TenantID        string    `json:"tenant_id"`
	PeriodID        string    `json:"period_id"`
	Box             Box       `json:"box_code"`
	NetAmount       int64     `json:"net_amount"` // minor units
	VatAmount       int64     `json:"vat_amount"` // minor units
	SourceType      string    `json:"source_type"`
	SourceID        string    `json:"source_id"`
	JournalEntryID  string    `json:"journal_entry_id"`
	JournalLineID   string    `json:"journal_line_id"`
	VatCodeID       string    `json:"vat_code_id,omitempty"`
	TransactionDate time.Time `json:"transaction_date"`
	PartyID         string    `json:"party_id,omitempty"`
	PartyName       string    `json:"party_name,omitempty"`
}

// Input carries everything the attributor needs about one journal line.
type Input struct {
	TenantID        string
	PeriodID        string
	SourceType      string
	SourceID        string
	JournalEntryID  string
	JournalLineID   string
	NetMinor        int64 // the line's base amount in minor units
	TransactionDate time.Time
	PartyID         string
	PartyName       string
}

// VatMinor computes the VAT due on a net amount in minor units. The
// intermediate product keeps full decimal precision; only the final amount
// is rounded (half away from zero) to the currency's minor unit.
func VatMinor(netMinor int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(netMinor).
		Mul(rate).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}

// Attribute resolves a line's box contributions. One row is produced per box
// the line touches:
//
//   - the net amount lands in the turnover box (when the category has one);
//   - the VAT amount lands in the VAT box;
//   - reverse-charge codes additionally write a deductible-box row, because
//     self-assessed VAT is both output tax and input tax in the same period.
//
// A zero-rate or exempt code still yields a turnover row with vat 0: those
// supplies must be reported. Lines without a VAT code never reach this
// function.
func Attribute(in Input, code Code) []Lineage {
	vatMinor := VatMinor(in.NetMinor, code.Rate)

	base := Lineage{
		TenantID:        in.TenantID,
		PeriodID:        in.PeriodID,
		SourceType:      in.SourceType,
		SourceID:        in.SourceID,
		JournalEntryID:  in.JournalEntryID,
		JournalLineID:   in.JournalLineID,
		VatCodeID:       code.ID,
		TransactionDate: in.TransactionDate,
		PartyID:         in.PartyID,
		PartyName:       in.PartyName,
	}

	var rows []Lineage
	add := func(box Box, net, vatAmt int64) {
		row := base
		row.ID = ids.NewRecord()
		row.Box = box
		row.NetAmount = net
		row.VatAmount = vatAmt
		rows = append(rows, row)
	}

	if b := code.Mapping.TurnoverBox; b != "" {
		add(b, in.NetMinor, 0)
	}
	if b := code.Mapping.VatBox; b != "" {
		add(b, 0, vatMinor)
	}
	if b := code.Mapping.DeductibleBox; b != "" {
		add(b, 0, vatMinor)
	}
	return rows
}
