package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"grootboek.dev/internal/audit"
	"grootboek.dev/internal/chart"
	"grootboek.dev/internal/ledger"
	"grootboek.dev/internal/openitem"
	"grootboek.dev/internal/period"
)

func (s *Store) TrialBalance(ctx context.Context, tenantID string, asOf time.Time) ([]period.TrialBalanceRow, error) {
	rows, _, _, err := trialBalance(ctx, s.db, tenantID, asOf)
	return rows, err
}

// trialBalance aggregates posted lines per account up to asOf and splits the
// totals into balance-sheet and P&L sides. Reversed originals stay in: their
// reversing entry offsets them.
func trialBalance(ctx context.Context, q querier, tenantID string, asOf time.Time) ([]period.TrialBalanceRow, period.Totals, period.Totals, error) {
	var balance, profit period.Totals
	rows, err := q.QueryContext(ctx, `
		select l.account_id, coalesce(a.code,''), coalesce(a.name,''), coalesce(a.type,''),
			(sum(l.debit_amount)*100)::bigint, (sum(l.credit_amount)*100)::bigint
		from journal_lines l
		join journal_entries e on e.id = l.journal_entry_id
		left join accounts a on a.id = l.account_id
		where e.tenant_id=$1 and e.entry_date <= $2
		group by l.account_id, a.code, a.name, a.type
		order by a.code
	`, tenantID, asOf)
	if err != nil {
		return nil, balance, profit, err
	}
	defer rows.Close()

	var out []period.TrialBalanceRow
	for rows.Next() {
		var row period.TrialBalanceRow
		var accType string
		if err := rows.Scan(&row.AccountID, &row.AccountCode, &row.AccountName, &accType, &row.Debit, &row.Credit); err != nil {
			return nil, balance, profit, err
		}
		switch chart.Type(accType) {
		case chart.TypeAsset, chart.TypeLiability, chart.TypeEquity:
			balance.Debit += row.Debit
			balance.Credit += row.Credit
		case chart.TypeRevenue, chart.TypeExpense:
			profit.Debit += row.Debit
			profit.Credit += row.Credit
		}
		out = append(out, row)
	}
	return out, balance, profit, rows.Err()
}

func (s *Store) VatBoxTotals(ctx context.Context, tenantID, periodID string) ([]period.VatBoxTotal, error) {
	return vatBoxTotals(ctx, s.db, tenantID, periodID)
}

func vatBoxTotals(ctx context.Context, q querier, tenantID, periodID string) ([]period.VatBoxTotal, error) {
	rows, err := q.QueryContext(ctx, `
		select box_code, (sum(net_amount)*100)::bigint, (sum(vat_amount)*100)::bigint
		from vat_lineage
		where tenant_id=$1 and period_id=$2
		group by box_code
		order by box_code
	`, tenantID, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []period.VatBoxTotal
	for rows.Next() {
		var t period.VatBoxTotal
		if err := rows.Scan(&t.Box, &t.NetAmount, &t.VatAmount); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const itemCols = `id, tenant_id, coalesce(party_id,''), journal_entry_id, journal_line_id, item_type,
	(original_amount*100)::bigint, (paid_amount*100)::bigint, (open_amount*100)::bigint, status`

func scanItem(scan func(...any) error) (openitem.OpenItem, error) {
	var o openitem.OpenItem
	err := scan(&o.ID, &o.TenantID, &o.PartyID, &o.JournalEntryID, &o.JournalLineID, &o.ItemType,
		&o.OriginalAmount, &o.PaidAmount, &o.OpenAmount, &o.Status)
	return o, err
}

func loadAllocations(ctx context.Context, q querier, itemID string) ([]openitem.Allocation, error) {
	rows, err := q.QueryContext(ctx, `
		select id, payment_ref, (amount*100)::bigint, overpayment, allocated_at
		from open_item_allocations
		where open_item_id=$1
		order by allocated_at
	`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []openitem.Allocation
	for rows.Next() {
		a := openitem.Allocation{OpenItemID: itemID}
		if err := rows.Scan(&a.ID, &a.PaymentRef, &a.Amount, &a.Overpayment, &a.AllocatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) OpenItems(ctx context.Context, tenantID, partyID string) ([]openitem.OpenItem, error) {
	return openItems(ctx, s.db, tenantID, partyID)
}

func openItems(ctx context.Context, q querier, tenantID, partyID string) ([]openitem.OpenItem, error) {
	query := `select ` + itemCols + ` from open_items where tenant_id=$1`
	args := []any{tenantID}
	if partyID != "" {
		query += ` and party_id=$2`
		args = append(args, partyID)
	}
	query += ` order by created_at, id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []openitem.OpenItem
	for rows.Next() {
		o, err := scanItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Allocations, err = loadAllocations(ctx, q, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func itemForUpdate(ctx context.Context, q querier, tenantID, itemID string) (openitem.OpenItem, error) {
	o, err := scanItem(q.QueryRowContext(ctx, `
		select `+itemCols+` from open_items where tenant_id=$1 and id=$2 for update
	`, tenantID, itemID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return openitem.OpenItem{}, ledger.NotFoundf("unknown_open_item", "open item %s not found", itemID)
	}
	if err != nil {
		return openitem.OpenItem{}, err
	}
	o.Allocations, err = loadAllocations(ctx, q, o.ID)
	return o, err
}

func saveItem(ctx context.Context, q querier, o openitem.OpenItem) error {
	_, err := q.ExecContext(ctx, `
		update open_items
		set paid_amount=$3::numeric/100, open_amount=$4::numeric/100, status=$5
		where tenant_id=$1 and id=$2
	`, o.TenantID, o.ID, o.PaidAmount, o.OpenAmount, o.Status)
	return err
}

func (s *Store) AllocatePayment(ctx context.Context, actor audit.Actor, tenantID, openItemID string, alloc openitem.Allocation) (openitem.OpenItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return openitem.OpenItem{}, err
	}
	defer func() { _ = tx.Rollback() }()

	item, err := itemForUpdate(ctx, tx, tenantID, openItemID)
	if err != nil {
		return openitem.OpenItem{}, err
	}
	before := item.Status
	if err := item.Apply(alloc); err != nil {
		return openitem.OpenItem{}, err
	}
	applied := item.Allocations[len(item.Allocations)-1]

	if _, err := tx.ExecContext(ctx, `
		insert into open_item_allocations(id, open_item_id, payment_ref, amount, overpayment, allocated_at)
		values ($1,$2,$3,$4::numeric/100,$5,$6)
	`, applied.ID, applied.OpenItemID, applied.PaymentRef, applied.Amount, applied.Overpayment, applied.AllocatedAt); err != nil {
		return openitem.OpenItem{}, err
	}
	if err := saveItem(ctx, tx, item); err != nil {
		return openitem.OpenItem{}, err
	}
	if err := tx.Commit(); err != nil {
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
	return item, nil
}

func (s *Store) WriteOffItem(ctx context.Context, actor audit.Actor, tenantID, openItemID string) (openitem.OpenItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return openitem.OpenItem{}, err
	}
	defer func() { _ = tx.Rollback() }()

	item, err := itemForUpdate(ctx, tx, tenantID, openItemID)
	if err != nil {
		return openitem.OpenItem{}, err
	}
	before := item.Status
	if err := item.WriteOff(); err != nil {
		return openitem.OpenItem{}, err
	}
	if err := saveItem(ctx, tx, item); err != nil {
		return openitem.OpenItem{}, err
	}
	if err := tx.Commit(); err != nil {
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
	return item, nil
}
