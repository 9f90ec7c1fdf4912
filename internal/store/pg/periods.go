package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"grootboek.dev/internal/audit"
	"grootboek.dev/internal/ledger"
	"grootboek.dev/internal/obs"
	"grootboek.dev/internal/period"
)

func (s *Store) PeriodIssues(ctx context.Context, tenantID, periodID string) ([]period.Issue, error) {
	per, err := periodByID(ctx, s.db, tenantID, periodID, false)
	if err != nil {
		return nil, err
	}
	return issuesFor(ctx, s.db, tenantID, per)
}

// issuesFor loads the period's entries and the tenant's open items and runs
// the shared validation over them.
func issuesFor(ctx context.Context, q querier, tenantID string, per period.Period) ([]period.Issue, error) {
	rows, err := q.QueryContext(ctx, `
		select `+entryCols+` from journal_entries
		where tenant_id=$1 and entry_date between $2 and $3
		order by entry_number
	`, tenantID, per.StartDate, per.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ledger.JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, err := openItems(ctx, q, tenantID, "")
	if err != nil {
		return nil, err
	}
	return ledger.ComputeIssues(entries, items, per), nil
}

func (s *Store) StartReview(ctx context.Context, actor audit.Actor, tenantID, periodID string) (period.Period, error) {
	return s.transition(ctx, actor, tenantID, periodID, "period.start_review", period.StatusReview, "",
		func(tx *sql.Tx, per *period.Period) error { return per.StartReview() })
}

func (s *Store) LockPeriod(ctx context.Context, actor audit.Actor, tenantID, periodID string, confirmIrreversible bool) (period.Period, error) {
	return s.transition(ctx, actor, tenantID, periodID, "period.lock", period.StatusLocked, "",
		func(tx *sql.Tx, per *period.Period) error { return per.Lock(confirmIrreversible, s.now()) })
}

func (s *Store) UnlockPeriod(ctx context.Context, actor audit.Actor, tenantID, periodID, reason string) (period.Period, error) {
	return s.transition(ctx, actor, tenantID, periodID, "period.unlock", period.StatusReview, reason,
		func(tx *sql.Tx, per *period.Period) error {
			_, err := per.Unlock(reason)
			return err
		})
}

// Finalize re-evaluates the issue list at call time, then writes the
// immutable snapshot in the same transaction that flips the status.
func (s *Store) Finalize(ctx context.Context, actor audit.Actor, tenantID, periodID string, acknowledged []string) (period.Period, error) {
	return s.transition(ctx, actor, tenantID, periodID, "period.finalize", period.StatusFinalized, "",
		func(tx *sql.Tx, per *period.Period) error {
			issues, err := issuesFor(ctx, tx, tenantID, *per)
			if err != nil {
				return err
			}
			if blocking := period.Gate(issues, acknowledged); len(blocking) > 0 {
				return ledger.BlockingError(blocking)
			}

			now := s.now()
			if err := per.Finalize(now); err != nil {
				return err
			}

			rows, balance, profit, err := trialBalance(ctx, tx, tenantID, per.EndDate)
			if err != nil {
				return err
			}
			boxes, err := vatBoxTotals(ctx, tx, tenantID, per.ID)
			if err != nil {
				return err
			}
			snap := period.Snapshot{
				PeriodID:     per.ID,
				TenantID:     tenantID,
				FinalizedAt:  now,
				TrialBalance: rows,
				BalanceSheet: balance,
				ProfitLoss:   profit,
				VatBoxes:     boxes,
				Acknowledged: append([]string(nil), acknowledged...),
			}
			payload, err := json.Marshal(snap)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				insert into period_snapshots(tenant_id, period_id, finalized_at, payload)
				values ($1,$2,$3,$4)
			`, tenantID, per.ID, now, payload)
			return err
		})
}

// transition runs one lifecycle change under a period row lock and audits the
// before/after state after commit.
func (s *Store) transition(ctx context.Context, actor audit.Actor, tenantID, periodID, action string, to period.Status, reason string,
	apply func(tx *sql.Tx, per *period.Period) error) (period.Period, error) {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return period.Period{}, err
	}
	defer func() { _ = tx.Rollback() }()

	per, err := periodByID(ctx, tx, tenantID, periodID, true)
	if err != nil {
		return period.Period{}, err
	}
	before := per.Status
	if err := apply(tx, &per); err != nil {
		var lerr *ledger.Error
		if errors.As(err, &lerr) {
			return period.Period{}, err
		}
		return period.Period{}, ledger.MapPeriodError(err)
	}
	if err := savePeriod(ctx, tx, per); err != nil {
		return period.Period{}, err
	}
	if err := tx.Commit(); err != nil {
		return period.Period{}, err
	}

	obs.CountPeriodTransition(string(to))
	newValue := map[string]any{"status": string(per.Status)}
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
	return per, nil
}

func (s *Store) GetSnapshot(ctx context.Context, tenantID, periodID string) (period.Snapshot, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		select payload from period_snapshots where tenant_id=$1 and period_id=$2
	`, tenantID, periodID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return period.Snapshot{}, ledger.NotFoundf("no_snapshot", "period %s has no finalization snapshot", periodID)
	}
	if err != nil {
		return period.Snapshot{}, err
	}
	var snap period.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return period.Snapshot{}, err
	}
	return snap, nil
}
