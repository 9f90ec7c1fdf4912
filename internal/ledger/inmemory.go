package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"grootboek.dev/internal/audit"
	"grootboek.dev/internal/chart"
	"grootboek.dev/internal/ids"
	"grootboek.dev/internal/obs"
	"grootboek.dev/internal/openitem"
	"grootboek.dev/internal/period"
	"grootboek.dev/internal/vat"
)

type sourceKey struct {
	sourceType SourceType
	sourceID   string
}

// tenantState is one administration's books.
type tenantState struct {
	chart     *chart.Chart
	periods   map[string]*period.Period
	entries   map[string]*JournalEntry
	order     []string // entry ids in numbering order
	bySource  map[sourceKey]string
	lineage   []vat.Lineage
	items     map[string]*openitem.OpenItem
	itemOrder []string
	snapshots map[string]period.Snapshot
}

// InMemory implements Service with in-process concurrency safety. The single
// mutex is the transaction boundary: a Post either fully mutates the tenant
// state or not at all, mirroring what the Postgres store does with a real
// transaction.
type InMemory struct {
	mu      sync.Mutex
	codes   *vat.Table
	sink    audit.Sink
	now     func() time.Time
	tenants map[string]*tenantState
}

var _ Service = (*InMemory)(nil)

// NewInMemory creates a fresh ledger over the given VAT code table.
func NewInMemory(codes *vat.Table, sink audit.Sink) *InMemory {
	return &InMemory{
		codes:   codes,
		sink:    sink,
		now:     func() time.Time { return time.Now().UTC() },
		tenants: make(map[string]*tenantState),
	}
}

// WithNow overrides the clock for tests.
func (s *InMemory) WithNow(now func() time.Time) { s.now = now }

// RegisterTenant provisions an administration with its chart and periods.
func (s *InMemory) RegisterTenant(ch *chart.Chart, periods ...period.Period) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &tenantState{
		chart:     ch,
		periods:   make(map[string]*period.Period),
		entries:   make(map[string]*JournalEntry),
		bySource:  make(map[sourceKey]string),
		items:     make(map[string]*openitem.OpenItem),
		snapshots: make(map[string]period.Snapshot),
	}
	for _, p := range periods {
		cp := p
		t.periods[p.ID] = &cp
	}
	s.tenants[ch.TenantID()] = t
}

// AddPeriod registers another period for an existing tenant.
func (s *InMemory) AddPeriod(tenantID string, p period.Period) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return notFoundErr(ReasonUnknownTenant, "tenant %s not registered", tenantID)
	}
	cp := p
	t.periods[p.ID] = &cp
	return nil
}

func (s *InMemory) tenant(id string) (*tenantState, error) {
	t, ok := s.tenants[id]
	if !ok {
		return nil, notFoundErr(ReasonUnknownTenant, "tenant %s not registered", id)
	}
	return t, nil
}

func (t *tenantState) periodSlice() []period.Period {
	out := make([]period.Period, 0, len(t.periods))
	for _, p := range t.periods {
		out = append(out, *p)
	}
	return out
}

func (s *InMemory) Post(ctx context.Context, actor audit.Actor, in PostInput) (JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, replayed, err := s.postLocked(ctx, actor, in)
	result := "posted"
	switch {
	case err != nil:
		result = "rejected"
	case replayed:
		result = "replayed"
	}
	obs.CountPosting(string(in.SourceType), result)
	return entry, err
}

func (s *InMemory) postLocked(ctx context.Context, actor audit.Actor, in PostInput) (JournalEntry, bool, error) {
	t, err := s.tenant(in.TenantID)
	if err != nil {
		return JournalEntry{}, false, err
	}

	// Idempotency: a redelivered source event returns the entry posted first.
	key := sourceKey{in.SourceType, in.SourceID}
	if id, ok := t.bySource[key]; ok {
		return copyEntry(t.entries[id]), true, nil
	}

	per, err := period.ForDate(t.periodSlice(), in.EntryDate)
	if err != nil {
		return JournalEntry{}, false, lifecycleErr(ReasonNoPeriod, "no accounting period covers %s", in.EntryDate.Format("2006-01-02"))
	}
	if !per.AllowsPosting() {
		return JournalEntry{}, false, lifecycleErr(ReasonPeriodClosed, "period %s is %s", per.ID, per.Status)
	}

	if err := ValidatePost(in, t.chart, s.codes); err != nil {
		return JournalEntry{}, false, err
	}

	entry := s.buildEntry(t, actor, in)
	s.commitEntry(t, &entry, per.ID)

	audit.Record(ctx, s.sink, audit.Event{
		TenantID:   in.TenantID,
		EntityType: "journal_entry",
		EntityID:   entry.ID,
		Action:     "ledger.post",
		Actor:      actor,
		NewValue: map[string]any{
			"entry_number": entry.EntryNumber,
			"source_type":  string(entry.SourceType),
			"source_id":    entry.SourceID,
			"total_debit":  entry.TotalDebit,
			"total_credit": entry.TotalCredit,
		},
	})
	return copyEntry(&entry), false, nil
}

// buildEntry assembles the immutable entry and its lines. Numbering is
// serialized by the service mutex; never derive it outside the lock.
func (s *InMemory) buildEntry(t *tenantState, actor audit.Actor, in PostInput) JournalEntry {
	now := s.now()
	entry := JournalEntry{
		ID:          ids.NewEntity(),
		TenantID:    in.TenantID,
		EntryNumber: fmt.Sprintf("JE-%06d", len(t.order)+1),
		EntryDate:   in.EntryDate,
		Description: in.Description,
		Reference:   in.Reference,
		Status:      StatusPosted,
		SourceType:  in.SourceType,
		SourceID:    in.SourceID,
		PostedAt:    &now,
		CreatedBy:   actor.UserID,
	}
	for i, li := range in.Lines {
		line := JournalLine{
			ID:             ids.NewEntity(),
			JournalEntryID: entry.ID,
			LineNumber:     i + 1,
			AccountID:      li.AccountID,
			DebitAmount:    li.Debit,
			CreditAmount:   li.Credit,
			VatCodeID:      li.VatCodeID,
			Description:    li.Description,
			PartyID:        li.PartyID,
			PartyName:      li.PartyName,
		}
		entry.TotalDebit += li.Debit
		entry.TotalCredit += li.Credit
		entry.Lines = append(entry.Lines, line)
	}
	entry.IsBalanced = entry.TotalDebit == entry.TotalCredit
	return entry
}

// commitEntry applies the entry and its side effects: VAT lineage for coded
// lines and open items for control-account lines. Runs under the lock, so
// all of it lands together.
func (s *InMemory) commitEntry(t *tenantState, entry *JournalEntry, periodID string) {
	t.entries[entry.ID] = entry
	t.order = append(t.order, entry.ID)
	t.bySource[sourceKey{entry.SourceType, entry.SourceID}] = entry.ID

	for _, line := range entry.Lines {
		if line.VatCodeID != "" {
			code, err := s.codes.ByID(line.VatCodeID)
			if err == nil {
				rows := vat.Attribute(vat.Input{
					TenantID:        entry.TenantID,
					PeriodID:        periodID,
					SourceType:      string(entry.SourceType),
					SourceID:        entry.SourceID,
					JournalEntryID:  entry.ID,
					JournalLineID:   line.ID,
					NetMinor:        line.Amount(),
					TransactionDate: entry.EntryDate,
					PartyID:         line.PartyID,
					PartyName:       line.PartyName,
				}, code)
				t.lineage = append(t.lineage, rows...)
			}
		}

		acc, err := t.chart.ByID(line.AccountID)
		if err != nil || !acc.IsControlAccount {
			continue
		}
		switch {
		case acc.ControlType == chart.ControlAR && line.DebitAmount > 0:
			item := openitem.New(entry.TenantID, line.PartyID, entry.ID, line.ID, openitem.Receivable, line.DebitAmount)
			t.items[item.ID] = &item
			t.itemOrder = append(t.itemOrder, item.ID)
		case acc.ControlType == chart.ControlAP && line.CreditAmount > 0:
			item := openitem.New(entry.TenantID, line.PartyID, entry.ID, line.ID, openitem.Payable, line.CreditAmount)
			t.items[item.ID] = &item
			t.itemOrder = append(t.itemOrder, item.ID)
		}
	}
}

func (s *InMemory) Reverse(ctx context.Context, actor audit.Actor, tenantID, entryID string, entryDate time.Time, description string) (JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.tenant(tenantID)
	if err != nil {
		return JournalEntry{}, err
	}
	original, ok := t.entries[entryID]
	if !ok {
		return JournalEntry{}, notFoundErr("unknown_entry", "entry %s not found", entryID)
	}

	key := sourceKey{SourceReversal, entryID}
	if id, ok := t.bySource[key]; ok {
		return copyEntry(t.entries[id]), nil
	}

	if original.Status != StatusPosted {
		return JournalEntry{}, lifecycleErr(ReasonNotReversible, "entry %s is %s", original.EntryNumber, original.Status)
	}
	per, err := period.ForDate(t.periodSlice(), entryDate)
	if err != nil {
		return JournalEntry{}, lifecycleErr(ReasonNoPeriod, "no accounting period covers %s", entryDate.Format("2006-01-02"))
	}
	if !per.AllowsPosting() {
		return JournalEntry{}, lifecycleErr(ReasonPeriodClosed, "period %s is %s", per.ID, per.Status)
	}

	now := s.now()
	rev := JournalEntry{
		ID:          ids.NewEntity(),
		TenantID:    tenantID,
		EntryNumber: fmt.Sprintf("JE-%06d", len(t.order)+1),
		EntryDate:   entryDate,
		Description: description,
		Reference:   original.EntryNumber,
		Status:      StatusPosted,
		SourceType:  SourceReversal,
		SourceID:    entryID,
		TotalDebit:  original.TotalCredit,
		TotalCredit: original.TotalDebit,
		IsBalanced:  true,
		PostedAt:    &now,
		CreatedBy:   actor.UserID,
	}
	for i, line := range original.Lines {
		rev.Lines = append(rev.Lines, JournalLine{
			ID:             ids.NewEntity(),
			JournalEntryID: rev.ID,
			LineNumber:     i + 1,
			AccountID:      line.AccountID,
			DebitAmount:    line.CreditAmount,
			CreditAmount:   line.DebitAmount,
			VatCodeID:      line.VatCodeID,
			Description:    line.Description,
			PartyID:        line.PartyID,
			PartyName:      line.PartyName,
		})
	}

	t.entries[rev.ID] = &rev
	t.order = append(t.order, rev.ID)
	t.bySource[key] = rev.ID

	// Box totals must net out: mirror the original lineage with negated
	// amounts instead of re-attributing the swapped lines.
	lineByOriginal := make(map[string]string, len(original.Lines))
	for i := range original.Lines {
		lineByOriginal[original.Lines[i].ID] = rev.Lines[i].ID
	}
	for _, row := range t.lineage {
		if row.JournalEntryID != original.ID {
			continue
		}
		neg := row
		neg.ID = ids.NewRecord()
		neg.JournalEntryID = rev.ID
		neg.JournalLineID = lineByOriginal[row.JournalLineID]
		neg.SourceType = string(SourceReversal)
		neg.SourceID = entryID
		neg.PeriodID = per.ID
		neg.NetAmount = -row.NetAmount
		neg.VatAmount = -row.VatAmount
		neg.TransactionDate = entryDate
		t.lineage = append(t.lineage, neg)
	}

	// The reversing lines zero the control account, so the subledger must
	// drop the outstanding amounts with them or reconciliation breaks.
	for _, id := range t.itemOrder {
		item := t.items[id]
		if item.JournalEntryID != original.ID {
			continue
		}
		if item.Status == openitem.StatusOpen || item.Status == openitem.StatusPartial {
			item.Cancel()
		}
	}

	original.Status = StatusReversed

	audit.Record(ctx, s.sink, audit.Event{
		TenantID:   tenantID,
		EntityType: "journal_entry",
		EntityID:   rev.ID,
		Action:     "ledger.reverse",
		Actor:      actor,
		OldValue:   map[string]any{"entry_number": original.EntryNumber, "status": string(StatusPosted)},
		NewValue:   map[string]any{"entry_number": rev.EntryNumber, "reverses": original.EntryNumber},
	})
	return copyEntry(&rev), nil
}

func (s *InMemory) GetEntry(ctx context.Context, tenantID, entryID string) (JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.tenant(tenantID)
	if err != nil {
		return JournalEntry{}, err
	}
	entry, ok := t.entries[entryID]
	if !ok {
		return JournalEntry{}, notFoundErr("unknown_entry", "entry %s not found", entryID)
	}
	return copyEntry(entry), nil
}

func (s *InMemory) ListEntries(ctx context.Context, tenantID, afterNumber string, limit int) ([]JournalEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.tenant(tenantID)
	if err != nil {
		return nil, err
	}
	// t.order is posting order, which is entry-number order: numbers come
	// from a per-tenant sequence taken under the same lock.
	var out []JournalEntry
	for _, id := range t.order {
		entry := t.entries[id]
		if entry.EntryNumber <= afterNumber {
			continue
		}
		out = append(out, copyEntry(entry))
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *InMemory) Accounts(ctx context.Context, tenantID string) ([]chart.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.tenant(tenantID)
	if err != nil {
		return nil, err
	}
	return t.chart.All(), nil
}

func copyEntry(e *JournalEntry) JournalEntry {
	out := *e
	out.Lines = append([]JournalLine(nil), e.Lines...)
	return out
}
