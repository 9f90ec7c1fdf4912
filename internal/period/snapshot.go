package period

import "time"

// Snapshot is the immutable report bundle written at finalization. It is
// persisted verbatim and never regenerated for a finalized period: the
// numbers underlie a filed return.
type Snapshot struct {
	PeriodID    string    `json:"period_id"`
	TenantID    string    `json:"tenant_id"`
	FinalizedAt time.Time `json:"finalized_at"`

	TrialBalance []TrialBalanceRow `json:"trial_balance"`
	BalanceSheet Totals            `json:"balance_sheet"`
	ProfitLoss   Totals            `json:"profit_loss"`
	VatBoxes     []VatBoxTotal     `json:"vat_boxes"`
	Acknowledged []string          `json:"acknowledged_issues"`
}

// TrialBalanceRow is one account's debit/credit totals. Minor units.
type TrialBalanceRow struct {
	AccountID   string `json:"account_id"`
	AccountCode string `json:"account_code"`
	AccountName string `json:"account_name"`
	Debit       int64  `json:"debit"`
	Credit      int64  `json:"credit"`
}

// Totals carries the two sides of a statement. Minor units.
type Totals struct {
	Debit  int64 `json:"debit"`
	Credit int64 `json:"credit"`
}

// VatBoxTotal aggregates lineage per return box. Minor units.
type VatBoxTotal struct {
	Box       string `json:"box_code"`
	NetAmount int64  `json:"net_amount"`
	VatAmount int64  `json:"vat_amount"`
}
