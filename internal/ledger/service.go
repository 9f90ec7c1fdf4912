// Package ledger is the double-entry posting engine: it turns business
// events into balanced, immutable journal entries, attributes VAT box
// lineage, derives AR/AP open items, and gates everything on the accounting
// period lifecycle.
package ledger

import (
	"context"
	"time"

	"grootboek.dev/internal/audit"
	"grootboek.dev/internal/chart"
	"grootboek.dev/internal/openitem"
	"grootboek.dev/internal/period"
)

// Service defines the ledger core operations. Implementations must make
// Post atomic: entry, lines, lineage, and open items all commit together or
// not at all.
type Service interface {
	// Post creates a balanced journal entry for a source event. Retrying
	// with the same (tenant, source_type, source_id) returns the entry
	// posted first; the duplicate is a no-op success.
	Post(ctx context.Context, actor audit.Actor, in PostInput) (JournalEntry, error)
	// Reverse corrects a posted entry by creating a new entry with all
	// sides swapped. The original is marked REVERSED but never edited.
	Reverse(ctx context.Context, actor audit.Actor, tenantID, entryID string, entryDate time.Time, description string) (JournalEntry, error)
	GetEntry(ctx context.Context, tenantID, entryID string) (JournalEntry, error)
	// ListEntries pages through a tenant's journal in entry-number order.
	// afterNumber is an exclusive cursor: pass the last entry number of the
	// previous page, or "" for the first page.
	ListEntries(ctx context.Context, tenantID, afterNumber string, limit int) ([]JournalEntry, error)

	// Accounts lists the tenant chart, active and deactivated alike.
	Accounts(ctx context.Context, tenantID string) ([]chart.Account, error)

	TrialBalance(ctx context.Context, tenantID string, asOf time.Time) ([]period.TrialBalanceRow, error)
	VatBoxTotals(ctx context.Context, tenantID, periodID string) ([]period.VatBoxTotal, error)

	OpenItems(ctx context.Context, tenantID, partyID string) ([]openitem.OpenItem, error)
	AllocatePayment(ctx context.Context, actor audit.Actor, tenantID, openItemID string, alloc openitem.Allocation) (openitem.OpenItem, error)
	WriteOffItem(ctx context.Context, actor audit.Actor, tenantID, openItemID string) (openitem.OpenItem, error)

	PeriodIssues(ctx context.Context, tenantID, periodID string) ([]period.Issue, error)
	StartReview(ctx context.Context, actor audit.Actor, tenantID, periodID string) (period.Period, error)
	// Finalize re-runs validation at call time; RED issues block, YELLOW
	// issues must be listed in acknowledged. On success the period snapshot
	// is written and postings into the period are refused from then on.
	Finalize(ctx context.Context, actor audit.Actor, tenantID, periodID string, acknowledged []string) (period.Period, error)
	LockPeriod(ctx context.Context, actor audit.Actor, tenantID, periodID string, confirmIrreversible bool) (period.Period, error)
	// UnlockPeriod is the audited emergency path back to REVIEW.
	UnlockPeriod(ctx context.Context, actor audit.Actor, tenantID, periodID, reason string) (period.Period, error)
	GetSnapshot(ctx context.Context, tenantID, periodID string) (period.Snapshot, error)
}
