package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"grootboek.dev/internal/audit"
	"grootboek.dev/internal/chart"
	"grootboek.dev/internal/ids"
	"grootboek.dev/internal/ledger"
	"grootboek.dev/internal/obs"
	"grootboek.dev/internal/openitem"
	"grootboek.dev/internal/vat"
)

// Monetary columns are numeric(14,2); the Go side only ever sees int64 minor
// units. Reads scale up, writes scale down, both inside SQL so the arithmetic
// stays exact.
const entryCols = `id, tenant_id, entry_number, entry_date, description, coalesce(reference,''),
	status, source_type, source_id,
	(total_debit*100)::bigint, (total_credit*100)::bigint, is_balanced, posted_at, created_by`

func scanEntry(scan func(...any) error) (ledger.JournalEntry, error) {
	var e ledger.JournalEntry
	var posted sql.NullTime
	err := scan(&e.ID, &e.TenantID, &e.EntryNumber, &e.EntryDate, &e.Description, &e.Reference,
		&e.Status, &e.SourceType, &e.SourceID,
		&e.TotalDebit, &e.TotalCredit, &e.IsBalanced, &posted, &e.CreatedBy)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	if posted.Valid {
		t := posted.Time
		e.PostedAt = &t
	}
	return e, nil
}

func loadLines(ctx context.Context, q querier, entryID string) ([]ledger.JournalLine, error) {
	rows, err := q.QueryContext(ctx, `
		select id, line_number, account_id,
			(debit_amount*100)::bigint, (credit_amount*100)::bigint,
			coalesce(vat_code_id,''), coalesce(description,''), coalesce(party_id,''), coalesce(party_name,'')
		from journal_lines
		where journal_entry_id=$1
		order by line_number
	`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []ledger.JournalLine
	for rows.Next() {
		line := ledger.JournalLine{JournalEntryID: entryID}
		if err := rows.Scan(&line.ID, &line.LineNumber, &line.AccountID,
			&line.DebitAmount, &line.CreditAmount,
			&line.VatCodeID, &line.Description, &line.PartyID, &line.PartyName); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func entryBySource(ctx context.Context, q querier, tenantID string, sourceType ledger.SourceType, sourceID string) (ledger.JournalEntry, bool, error) {
	e, err := scanEntry(q.QueryRowContext(ctx, `
		select `+entryCols+` from journal_entries
		where tenant_id=$1 and source_type=$2 and source_id=$3
	`, tenantID, sourceType, sourceID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.JournalEntry{}, false, nil
	}
	if err != nil {
		return ledger.JournalEntry{}, false, err
	}
	e.Lines, err = loadLines(ctx, q, e.ID)
	return e, true, err
}

func (s *Store) Post(ctx context.Context, actor audit.Actor, in ledger.PostInput) (ledger.JournalEntry, error) {
	entry, replayed, err := s.post(ctx, actor, in)
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

func (s *Store) post(ctx context.Context, actor audit.Actor, in ledger.PostInput) (ledger.JournalEntry, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.JournalEntry{}, false, err
	}
	defer func() { _ = tx.Rollback() }()

	// Idempotency: a redelivered source event returns the entry posted first.
	if e, ok, err := entryBySource(ctx, tx, in.TenantID, in.SourceType, in.SourceID); err != nil {
		return ledger.JournalEntry{}, false, err
	} else if ok {
		return e, true, nil
	}

	per, err := periodForDate(ctx, tx, in.TenantID, in.EntryDate)
	if err != nil {
		return ledger.JournalEntry{}, false, err
	}
	if !per.AllowsPosting() {
		return ledger.JournalEntry{}, false, ledger.Lifecyclef(ledger.ReasonPeriodClosed, "period %s is %s", per.ID, per.Status)
	}

	ch, err := loadChart(ctx, tx, in.TenantID)
	if err != nil {
		return ledger.JournalEntry{}, false, err
	}
	if err := ledger.ValidatePost(in, ch, s.codes); err != nil {
		return ledger.JournalEntry{}, false, err
	}

	// The tenant row lock serializes numbering per administration; the
	// counter update rolls back with the rest on failure, so numbers stay
	// gapless.
	var seq int64
	err = tx.QueryRowContext(ctx, `
		update tenants set entry_seq = entry_seq + 1 where id=$1 returning entry_seq
	`, in.TenantID).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.JournalEntry{}, false, ledger.NotFoundf(ledger.ReasonUnknownTenant, "tenant %s not registered", in.TenantID)
	}
	if err != nil {
		return ledger.JournalEntry{}, false, err
	}

	now := s.now()
	entry := ledger.JournalEntry{
		ID:          ids.NewEntity(),
		TenantID:    in.TenantID,
		EntryNumber: fmt.Sprintf("JE-%06d", seq),
		EntryDate:   in.EntryDate,
		Description: in.Description,
		Reference:   in.Reference,
		Status:      ledger.StatusPosted,
		SourceType:  in.SourceType,
		SourceID:    in.SourceID,
		PostedAt:    &now,
		CreatedBy:   actor.UserID,
	}
	for i, li := range in.Lines {
		entry.TotalDebit += li.Debit
		entry.TotalCredit += li.Credit
		entry.Lines = append(entry.Lines, ledger.JournalLine{
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
		})
	}
	entry.IsBalanced = entry.TotalDebit == entry.TotalCredit

	if err := insertEntry(ctx, tx, entry); err != nil {
		if isUniqueViolation(err) {
			// Lost a race against the same source event; hand back the
			// committed winner.
			_ = tx.Rollback()
			e, ok, lookupErr := entryBySource(ctx, s.db, in.TenantID, in.SourceType, in.SourceID)
			if lookupErr == nil && ok {
				return e, true, nil
			}
		}
		return ledger.JournalEntry{}, false, err
	}
	if err := s.insertSideEffects(ctx, tx, ch, &entry, per.ID); err != nil {
		return ledger.JournalEntry{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return ledger.JournalEntry{}, false, err
	}

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
	return entry, false, nil
}

func insertEntry(ctx context.Context, q querier, e ledger.JournalEntry) error {
	_, err := q.ExecContext(ctx, `
		insert into journal_entries(id, tenant_id, entry_number, entry_date, description, reference,
			status, source_type, source_id, total_debit, total_credit, is_balanced, posted_at, created_by)
		values ($1,$2,$3,$4,$5,nullif($6,''),$7,$8,$9,$10::numeric/100,$11::numeric/100,$12,$13,$14)
	`, e.ID, e.TenantID, e.EntryNumber, e.EntryDate, e.Description, e.Reference,
		e.Status, e.SourceType, e.SourceID, e.TotalDebit, e.TotalCredit, e.IsBalanced, e.PostedAt, e.CreatedBy)
	if err != nil {
		return err
	}
	for _, line := range e.Lines {
		if _, err := q.ExecContext(ctx, `
			insert into journal_lines(id, journal_entry_id, line_number, account_id,
				debit_amount, credit_amount, vat_code_id, description, party_id, party_name)
			values ($1,$2,$3,$4,$5::numeric/100,$6::numeric/100,nullif($7,''),nullif($8,''),nullif($9,''),nullif($10,''))
		`, line.ID, line.JournalEntryID, line.LineNumber, line.AccountID,
			line.DebitAmount, line.CreditAmount, line.VatCodeID, line.Description, line.PartyID, line.PartyName); err != nil {
			return err
		}
	}
	return nil
}

// insertSideEffects writes the VAT lineage for coded lines and the open
// items for AR/AP control-account lines, inside the posting transaction.
func (s *Store) insertSideEffects(ctx context.Context, q querier, ch *chart.Chart, e *ledger.JournalEntry, periodID string) error {
	for _, line := range e.Lines {
		if line.VatCodeID != "" {
			code, err := s.codes.ByID(line.VatCodeID)
			if err == nil {
				rows := vat.Attribute(vat.Input{
					TenantID:        e.TenantID,
					PeriodID:        periodID,
					SourceType:      string(e.SourceType),
					SourceID:        e.SourceID,
					JournalEntryID:  e.ID,
					JournalLineID:   line.ID,
					NetMinor:        line.Amount(),
					TransactionDate: e.EntryDate,
					PartyID:         line.PartyID,
					PartyName:       line.PartyName,
				}, code)
				if err := insertLineage(ctx, q, rows); err != nil {
					return err
				}
			}
		}

		acc, err := ch.ByID(line.AccountID)
		if err != nil || !acc.IsControlAccount {
			continue
		}
		var item openitem.OpenItem
		switch {
		case acc.ControlType == chart.ControlAR && line.DebitAmount > 0:
			item = openitem.New(e.TenantID, line.PartyID, e.ID, line.ID, openitem.Receivable, line.DebitAmount)
		case acc.ControlType == chart.ControlAP && line.CreditAmount > 0:
			item = openitem.New(e.TenantID, line.PartyID, e.ID, line.ID, openitem.Payable, line.CreditAmount)
		default:
			continue
		}
		if _, err := q.ExecContext(ctx, `
			insert into open_items(id, tenant_id, party_id, journal_entry_id, journal_line_id,
				item_type, original_amount, paid_amount, open_amount, status)
			values ($1,$2,nullif($3,''),$4,$5,$6,$7::numeric/100,0,$8::numeric/100,$9)
		`, item.ID, item.TenantID, item.PartyID, item.JournalEntryID, item.JournalLineID,
			item.ItemType, item.OriginalAmount, item.OpenAmount, item.Status); err != nil {
			return err
		}
	}
	return nil
}

func insertLineage(ctx context.Context, q querier, rows []vat.Lineage) error {
	for _, r := range rows {
		if _, err := q.ExecContext(ctx, `
			insert into vat_lineage(id, tenant_id, period_id, box_code, net_amount, vat_amount,
				source_type, source_id, journal_entry_id, journal_line_id, vat_code_id,
				transaction_date, party_id, party_name)
			values ($1,$2,$3,$4,$5::numeric/100,$6::numeric/100,$7,$8,$9,$10,nullif($11,''),$12,nullif($13,''),nullif($14,''))
		`, r.ID, r.TenantID, r.PeriodID, r.Box, r.NetAmount, r.VatAmount,
			r.SourceType, r.SourceID, r.JournalEntryID, r.JournalLineID, r.VatCodeID,
			r.TransactionDate, r.PartyID, r.PartyName); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Reverse(ctx context.Context, actor audit.Actor, tenantID, entryID string, entryDate time.Time, description string) (ledger.JournalEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	defer func() { _ = tx.Rollback() }()

	original, err := scanEntry(tx.QueryRowContext(ctx, `
		select `+entryCols+` from journal_entries
		where tenant_id=$1 and id=$2
		for update
	`, tenantID, entryID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.JournalEntry{}, ledger.NotFoundf("unknown_entry", "entry %s not found", entryID)
	}
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	original.Lines, err = loadLines(ctx, tx, original.ID)
	if err != nil {
		return ledger.JournalEntry{}, err
	}

	// Reversals are idempotent: keyed by the original entry's id.
	if e, ok, err := entryBySource(ctx, tx, tenantID, ledger.SourceReversal, entryID); err != nil {
		return ledger.JournalEntry{}, err
	} else if ok {
		return e, nil
	}

	if original.Status != ledger.StatusPosted {
		return ledger.JournalEntry{}, ledger.Lifecyclef(ledger.ReasonNotReversible, "entry %s is %s", original.EntryNumber, original.Status)
	}
	per, err := periodForDate(ctx, tx, tenantID, entryDate)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	if !per.AllowsPosting() {
		return ledger.JournalEntry{}, ledger.Lifecyclef(ledger.ReasonPeriodClosed, "period %s is %s", per.ID, per.Status)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, `
		update tenants set entry_seq = entry_seq + 1 where id=$1 returning entry_seq
	`, tenantID).Scan(&seq); err != nil {
		return ledger.JournalEntry{}, err
	}

	now := s.now()
	rev := ledger.JournalEntry{
		ID:          ids.NewEntity(),
		TenantID:    tenantID,
		EntryNumber: fmt.Sprintf("JE-%06d", seq),
		EntryDate:   entryDate,
		Description: description,
		Reference:   original.EntryNumber,
		Status:      ledger.StatusPosted,
		SourceType:  ledger.SourceReversal,
		SourceID:    entryID,
		TotalDebit:  original.TotalCredit,
		TotalCredit: original.TotalDebit,
		IsBalanced:  true,
		PostedAt:    &now,
		CreatedBy:   actor.UserID,
	}
	lineByOriginal := make(map[string]string, len(original.Lines))
	for i, line := range original.Lines {
		rl := ledger.JournalLine{
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
		}
		lineByOriginal[line.ID] = rl.ID
		rev.Lines = append(rev.Lines, rl)
	}

	if err := insertEntry(ctx, tx, rev); err != nil {
		if isUniqueViolation(err) {
			_ = tx.Rollback()
			e, ok, lookupErr := entryBySource(ctx, s.db, tenantID, ledger.SourceReversal, entryID)
			if lookupErr == nil && ok {
				return e, nil
			}
		}
		return ledger.JournalEntry{}, err
	}

	// Box totals must net out: mirror the original lineage with negated
	// amounts instead of re-attributing the swapped lines.
	orig, err := loadLineage(ctx, tx, tenantID, original.ID)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	for i := range orig {
		neg := orig[i]
		neg.ID = ids.NewRecord()
		neg.JournalEntryID = rev.ID
		neg.JournalLineID = lineByOriginal[orig[i].JournalLineID]
		neg.SourceType = string(ledger.SourceReversal)
		neg.SourceID = entryID
		neg.PeriodID = per.ID
		neg.NetAmount = -orig[i].NetAmount
		neg.VatAmount = -orig[i].VatAmount
		neg.TransactionDate = entryDate
		if err := insertLineage(ctx, tx, []vat.Lineage{neg}); err != nil {
			return ledger.JournalEntry{}, err
		}
	}

	// The reversing lines zero the control account, so the subledger must
	// drop the outstanding amounts with them or reconciliation breaks.
	if _, err := tx.ExecContext(ctx, `
		update open_items set open_amount=0, status=$3
		where tenant_id=$1 and journal_entry_id=$2 and status in ($4,$5)
	`, tenantID, entryID, openitem.StatusCancelled, openitem.StatusOpen, openitem.StatusPartial); err != nil {
		return ledger.JournalEntry{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		update journal_entries set status=$3 where tenant_id=$1 and id=$2
	`, tenantID, entryID, ledger.StatusReversed); err != nil {
		return ledger.JournalEntry{}, err
	}
	if err := tx.Commit(); err != nil {
		return ledger.JournalEntry{}, err
	}

	audit.Record(ctx, s.sink, audit.Event{
		TenantID:   tenantID,
		EntityType: "journal_entry",
		EntityID:   rev.ID,
		Action:     "ledger.reverse",
		Actor:      actor,
		OldValue:   map[string]any{"entry_number": original.EntryNumber, "status": string(ledger.StatusPosted)},
		NewValue:   map[string]any{"entry_number": rev.EntryNumber, "reverses": original.EntryNumber},
	})
	return rev, nil
}

func loadLineage(ctx context.Context, q querier, tenantID, entryID string) ([]vat.Lineage, error) {
	rows, err := q.QueryContext(ctx, `
		select id, period_id, box_code, (net_amount*100)::bigint, (vat_amount*100)::bigint,
			source_type, source_id, journal_line_id, coalesce(vat_code_id,''),
			transaction_date, coalesce(party_id,''), coalesce(party_name,'')
		from vat_lineage
		where tenant_id=$1 and journal_entry_id=$2
	`, tenantID, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []vat.Lineage
	for rows.Next() {
		r := vat.Lineage{TenantID: tenantID, JournalEntryID: entryID}
		if err := rows.Scan(&r.ID, &r.PeriodID, &r.Box, &r.NetAmount, &r.VatAmount,
			&r.SourceType, &r.SourceID, &r.JournalLineID, &r.VatCodeID,
			&r.TransactionDate, &r.PartyID, &r.PartyName); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetEntry(ctx context.Context, tenantID, entryID string) (ledger.JournalEntry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, `
		select `+entryCols+` from journal_entries where tenant_id=$1 and id=$2
	`, tenantID, entryID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.JournalEntry{}, ledger.NotFoundf("unknown_entry", "entry %s not found", entryID)
	}
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	e.Lines, err = loadLines(ctx, s.db, e.ID)
	return e, err
}

func (s *Store) ListEntries(ctx context.Context, tenantID, afterNumber string, limit int) ([]ledger.JournalEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	// afterNumber "" compares below every JE-... number, so the first page
	// needs no special case.
	rows, err := s.db.QueryContext(ctx, `
		select `+entryCols+` from journal_entries
		where tenant_id=$1 and entry_number > $2
		order by entry_number
		limit $3
	`, tenantID, afterNumber, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Lines, err = loadLines(ctx, s.db, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// isUniqueViolation reports a Postgres 23505 (unique_violation).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
