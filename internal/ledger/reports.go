package ledger

import (
	"context"
	"sort"
	"time"

	"grootboek.dev/internal/audit"
	"grootboek.dev/internal/chart"
	"grootboek.dev/internal/openitem"
	"grootboek.dev/internal/period"
)

func (s *InMemory) TrialBalance(ctx context.Context, tenantID string, asOf time.Time) ([]period.TrialBalanceRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.tenant(tenantID)
	if err != nil {
		return nil, err
	}
	return trialBalanceLocked(t, asOf), nil
}

// trialBalanceLocked aggregates posted lines per account up to asOf.
// Reversed originals stay in: their reversing entry offsets them.
func trialBalanceLocked(t *tenantState, asOf time.Time) []period.TrialBalanceRow {
	type agg struct{ debit, credit int64 }
	byAccount := make(map[string]*agg)
	for _, id := range t.order {
		e := t.entries[id]
		if e.EntryDate.After(asOf) {
			continue
		}
		for _, line := range e.Lines {
			a, ok := byAccount[line.AccountID]
			if !ok {
				a = &agg{}
				byAccount[line.AccountID] = a
			}
			a.debit += line.DebitAmount
			a.credit += line.CreditAmount
		}
	}

	rows := make([]period.TrialBalanceRow, 0, len(byAccount))
	for accountID, a := range byAccount {
		row := period.TrialBalanceRow{AccountID: accountID, Debit: a.debit, Credit: a.credit}
		if acc, err := t.chart.ByID(accountID); err == nil {
			row.AccountCode = acc.Code
			row.AccountName = acc.Name
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].AccountCode < rows[j].AccountCode })
	return rows
}

func (s *InMemory) VatBoxTotals(ctx context.Context, tenantID, periodID string) ([]period.VatBoxTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.tenant(tenantID)
	if err != nil {
		return nil, err
	}
	return vatBoxTotalsLocked(t, periodID), nil
}

func vatBoxTotalsLocked(t *tenantState, periodID string) []period.VatBoxTotal {
	type agg struct{ net, vatAmt int64 }
	byBox := make(map[string]*agg)
	for _, row := range t.lineage {
		if row.PeriodID != periodID {
			continue
		}
		a, ok := byBox[string(row.Box)]
		if !ok {
			a = &agg{}
			byBox[string(row.Box)] = a
		}
		a.net += row.NetAmount
		a.vatAmt += row.VatAmount
	}
	out := make([]period.VatBoxTotal, 0, len(byBox))
	for box, a := range byBox {
		out = append(out, period.VatBoxTotal{Box: box, NetAmount: a.net, VatAmount: a.vatAmt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Box < out[j].Box })
	return out
}

func (s *InMemory) OpenItems(ctx context.Context, tenantID, partyID string) ([]openitem.OpenItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.tenant(tenantID)
	if err != nil {
		return nil, err
	}
	var out []openitem.OpenItem
	for _, id := range t.itemOrder {
		item := t.items[id]
		if partyID != "" && item.PartyID != partyID {
			continue
		}
		cp := *item
		cp.Allocations = append([]openitem.Allocation(nil), item.Allocations...)
		out = append(out, cp)
	}
	return out, nil
}

func (s *InMemory) AllocatePayment(ctx context.Context, actor audit.Actor, tenantID, openItemID string, alloc openitem.Allocation) (openitem.OpenItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.tenant(tenantID)
	if err != nil {
		return openitem.OpenItem{}, err
	}
	item, ok := t.items[openItemID]
	if !ok {
		return openitem.OpenItem{}, notFoundErr("unknown_open_item", "open item %s not found", openItemID)
	}
	before := item.Status
	if err := item.Apply(alloc); err != nil {
		return openitem.OpenItem{}, err
	}

	audit.Record(ctx, s.sink, audit.Event{
		TenantID:   tenantID,
		EntityType: "open_item",
		EntityID:   openItemID,
		Action:     "openitem.allocate",
		Actor:      actor,
		OldValue:   map[string]any{"status": string(before)},
		NewValue: map[string]any{
			"status":      string(item.Status),
			"paid_amount": item.PaidAmount,
			"open_amount": item.OpenAmount,
			"payment_ref": alloc.PaymentRef,
			"overpayment": alloc.Overpayment,
		},
	})

	cp := *item
	cp.Allocations = append([]openitem.Allocation(nil), item.Allocations...)
	return cp, nil
}

func (s *InMemory) WriteOffItem(ctx context.Context, actor audit.Actor, tenantID, openItemID string) (openitem.OpenItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.tenant(tenantID)
	if err != nil {
		return openitem.OpenItem{}, err
	}
	item, ok := t.items[openItemID]
	if !ok {
		return openitem.OpenItem{}, notFoundErr("unknown_open_item", "open item %s not found", openItemID)
	}
	before := item.Status
	if err := item.WriteOff(); err != nil {
		return openitem.OpenItem{}, err
	}

	audit.Record(ctx, s.sink, audit.Event{
		TenantID:   tenantID,
		EntityType: "open_item",
		EntityID:   openItemID,
		Action:     "openitem.write_off",
		Actor:      actor,
		OldValue:   map[string]any{"status": string(before)},
		NewValue:   map[string]any{"status": string(openitem.StatusWrittenOff)},
	})

	cp := *item
	return cp, nil
}

// balanceTotals splits trial-balance rows into balance-sheet and P&L sides.
func balanceTotals(t *tenantState, rows []period.TrialBalanceRow) (balance, profit period.Totals) {
	for _, row := range rows {
		acc, err := t.chart.ByID(row.AccountID)
		if err != nil {
			continue
		}
		switch acc.Type {
		case chart.TypeAsset, chart.TypeLiability, chart.TypeEquity:
			balance.Debit += row.Debit
			balance.Credit += row.Credit
		case chart.TypeRevenue, chart.TypeExpense:
			profit.Debit += row.Debit
			profit.Credit += row.Credit
		}
	}
	return balance, profit
}
