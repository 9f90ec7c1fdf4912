package ledger

import (
	"context"
	"errors"
	"sort"

	"grootboek.dev/internal/audit"
	"grootboek.dev/internal/obs"
	"grootboek.dev/internal/openitem"
	"grootboek.dev/internal/period"
)

func (s *InMemory) PeriodIssues(ctx context.Context, tenantID, periodID string) ([]period.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, per, err := s.tenantPeriod(tenantID, periodID)
	if err != nil {
		return nil, err
	}
	return issuesLocked(t, *per), nil
}

func (s *InMemory) StartReview(ctx context.Context, actor audit.Actor, tenantID, periodID string) (period.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, per, err := s.tenantPeriod(tenantID, periodID)
	if err != nil {
		return period.Period{}, err
	}
	before := per.Status
	if err := per.StartReview(); err != nil {
		return period.Period{}, MapPeriodError(err)
	}
	obs.CountPeriodTransition(string(period.StatusReview))
	s.auditTransition(ctx, actor, tenantID, periodID, "period.start_review", before, per.Status, "")
	return *per, nil
}

// Finalize re-evaluates the issue list at call time so a period cannot go
// stale-clean between review and finalization, then writes the immutable
// snapshot inside the same critical section that blocks concurrent posts.
func (s *InMemory) Finalize(ctx context.Context, actor audit.Actor, tenantID, periodID string, acknowledged []string) (period.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, per, err := s.tenantPeriod(tenantID, periodID)
	if err != nil {
		return period.Period{}, err
	}

	issues := issuesLocked(t, *per)
	if blocking := period.Gate(issues, acknowledged); len(blocking) > 0 {
		return period.Period{}, BlockingError(blocking)
	}

	before := per.Status
	now := s.now()
	if err := per.Finalize(now); err != nil {
		return period.Period{}, MapPeriodError(err)
	}

	rows := trialBalanceLocked(t, per.EndDate)
	balance, profit := balanceTotals(t, rows)
	t.snapshots[per.ID] = period.Snapshot{
		PeriodID:     per.ID,
		TenantID:     tenantID,
		FinalizedAt:  now,
		TrialBalance: rows,
		BalanceSheet: balance,
		ProfitLoss:   profit,
		VatBoxes:     vatBoxTotalsLocked(t, per.ID),
		Acknowledged: append([]string(nil), acknowledged...),
	}

	obs.CountPeriodTransition(string(period.StatusFinalized))
	s.auditTransition(ctx, actor, tenantID, periodID, "period.finalize", before, per.Status, "")
	return *per, nil
}

func (s *InMemory) LockPeriod(ctx context.Context, actor audit.Actor, tenantID, periodID string, confirmIrreversible bool) (period.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, per, err := s.tenantPeriod(tenantID, periodID)
	if err != nil {
		return period.Period{}, err
	}
	before := per.Status
	if err := per.Lock(confirmIrreversible, s.now()); err != nil {
		return period.Period{}, MapPeriodError(err)
	}
	obs.CountPeriodTransition(string(period.StatusLocked))
	s.auditTransition(ctx, actor, tenantID, periodID, "period.lock", before, per.Status, "")
	return *per, nil
}

func (s *InMemory) UnlockPeriod(ctx context.Context, actor audit.Actor, tenantID, periodID, reason string) (period.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, per, err := s.tenantPeriod(tenantID, periodID)
	if err != nil {
		return period.Period{}, err
	}
	before, err := per.Unlock(reason)
	if err != nil {
		return period.Period{}, MapPeriodError(err)
	}
	obs.CountPeriodTransition(string(period.StatusReview))
	s.auditTransition(ctx, actor, tenantID, periodID, "period.unlock", before, per.Status, reason)
	return *per, nil
}

func (s *InMemory) GetSnapshot(ctx context.Context, tenantID, periodID string) (period.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.tenant(tenantID)
	if err != nil {
		return period.Snapshot{}, err
	}
	snap, ok := t.snapshots[periodID]
	if !ok {
		return period.Snapshot{}, notFoundErr("no_snapshot", "period %s has no finalization snapshot", periodID)
	}
	return snap, nil
}

func (s *InMemory) tenantPeriod(tenantID, periodID string) (*tenantState, *period.Period, error) {
	t, err := s.tenant(tenantID)
	if err != nil {
		return nil, nil, err
	}
	per, ok := t.periods[periodID]
	if !ok {
		return nil, nil, notFoundErr("unknown_period", "period %s not found", periodID)
	}
	return t, per, nil
}

func (s *InMemory) auditTransition(ctx context.Context, actor audit.Actor, tenantID, periodID, action string, before, after period.Status, reason string) {
	newValue := map[string]any{"status": string(after)}
	if reason != "" {
		newValue["reason"] = reason
	}
	audit.Record(ctx, s.sink, audit.Event{
		TenantID:   tenantID,
		EntityType: "accounting_period",
		EntityID:   periodID,
		Action:     action,
		Actor:      actor,
		OldValue:   map[string]any{"status": string(before)},
		NewValue:   newValue,
	})
}

func issuesLocked(t *tenantState, per period.Period) []period.Issue {
	entries := make([]JournalEntry, 0, len(t.order))
	for _, id := range t.order {
		entries = append(entries, *t.entries[id])
	}
	items := make([]openitem.OpenItem, 0, len(t.itemOrder))
	for _, id := range t.itemOrder {
		items = append(items, *t.items[id])
	}
	return ComputeIssues(entries, items, per)
}

// ComputeIssues is the validation run backing both review and the finalize
// gate: structural defects are RED, bookkeeping hygiene is YELLOW. Both
// service implementations feed it the period's entries and the tenant's open
// items.
func ComputeIssues(entries []JournalEntry, items []openitem.OpenItem, per period.Period) []period.Issue {
	var issues []period.Issue
	seen := make(map[string]bool)
	add := func(iss period.Issue) {
		key := iss.Code + "/" + iss.EntryID
		if seen[key] {
			return
		}
		seen[key] = true
		issues = append(issues, iss)
	}

	for i := range entries {
		e := &entries[i]
		if !per.ContainsDate(e.EntryDate) {
			continue
		}
		if e.Status == StatusDraft {
			add(period.Issue{
				Severity:    period.SeverityRed,
				Code:        period.IssueStaleDraft,
				Description: "entry " + e.EntryNumber + " is still a draft",
				EntryID:     e.ID,
			})
			continue
		}
		if e.TotalDebit != e.TotalCredit {
			add(period.Issue{
				Severity:    period.SeverityRed,
				Code:        period.IssueUnbalancedEntry,
				Description: "entry " + e.EntryNumber + " does not balance",
				EntryID:     e.ID,
			})
		}
		if e.Reference == "" {
			add(period.Issue{
				Severity:    period.SeverityYellow,
				Code:        period.IssueMissingRef,
				Description: "entry " + e.EntryNumber + " has no source reference",
				EntryID:     e.ID,
			})
		}
	}

	for i := range items {
		item := &items[i]
		if err := item.CheckIntegrity(); err != nil {
			add(period.Issue{
				Severity:    period.SeverityRed,
				Code:        period.IssueOpenItemStale,
				Description: "open item " + item.ID + ": " + err.Error(),
				EntryID:     item.JournalEntryID,
			})
		}
	}

	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Severity == period.SeverityRed && issues[j].Severity != period.SeverityRed
	})
	return issues
}

// MapPeriodError converts period package sentinels into structured rejections.
func MapPeriodError(err error) error {
	switch {
	case errors.Is(err, period.ErrBadTransition):
		return lifecycleErr("bad_transition", "%s", err.Error())
	case errors.Is(err, period.ErrConfirmRequired):
		return lifecycleErr("confirm_required", "locking a period is irreversible and must be confirmed")
	case errors.Is(err, period.ErrUnlockReasonNeeded):
		return lifecycleErr("unlock_reason_required", "unlocking a period requires a reason")
	case errors.Is(err, period.ErrNotLocked):
		return lifecycleErr("not_unlockable", "%s", err.Error())
	default:
		return err
	}
}
