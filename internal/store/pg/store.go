// Package pg implements the ledger service on Postgres. A database
// transaction is the atomicity boundary that the in-memory mutex only
// simulates: entry, lines, VAT lineage and open items commit together or not
// at all.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"grootboek.dev/internal/audit"
	"grootboek.dev/internal/chart"
	"grootboek.dev/internal/ledger"
	"grootboek.dev/internal/period"
	"grootboek.dev/internal/vat"
)

// querier is the common read/write surface of *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db    *sql.DB
	codes *vat.Table
	sink  audit.Sink
	now   func() time.Time
}

var _ ledger.Service = (*Store)(nil)

func Open(dsn string, codes *vat.Table) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	s := &Store{db: db, codes: codes, now: func() time.Time { return time.Now().UTC() }}
	s.sink = &AuditSink{db: db}
	return s, nil
}

// NewWithDB wires a store over an existing handle; tests inject sqlmock here.
func NewWithDB(db *sql.DB, codes *vat.Table, sink audit.Sink) *Store {
	return &Store{db: db, codes: codes, sink: sink, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// WithNow overrides the clock for tests.
func (s *Store) WithNow(now func() time.Time) { s.now = now }

// CreateTenant provisions an administration row. The chart and periods are
// seeded separately (see migrations/seeds).
func (s *Store) CreateTenant(ctx context.Context, id, name string) error {
	_, err := s.db.ExecContext(ctx, `
		insert into tenants(id, name, entry_seq)
		values ($1, $2, 0)
		on conflict (id) do nothing
	`, id, name)
	return err
}

func (s *Store) Accounts(ctx context.Context, tenantID string) ([]chart.Account, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `select exists(select 1 from tenants where id=$1)`, tenantID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ledger.NotFoundf(ledger.ReasonUnknownTenant, "tenant %s not found", tenantID)
	}
	ch, err := loadChart(ctx, s.db, tenantID)
	if err != nil {
		return nil, err
	}
	return ch.All(), nil
}

// loadChart rebuilds the tenant's account arena from storage. Rows are
// inserted parents-first; the loop makes no assumption about code ordering.
func loadChart(ctx context.Context, q querier, tenantID string) (*chart.Chart, error) {
	rows, err := q.QueryContext(ctx, `
		select id, code, name, type, coalesce(parent_id,''), is_control_account, coalesce(control_type,''), active
		from accounts
		where tenant_id=$1
		order by code
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type row struct {
		acc    chart.Account
		active bool
	}
	var pending []row
	for rows.Next() {
		var r row
		var typ, ctrl string
		if err := rows.Scan(&r.acc.ID, &r.acc.Code, &r.acc.Name, &typ, &r.acc.ParentID, &r.acc.IsControlAccount, &ctrl, &r.active); err != nil {
			return nil, err
		}
		r.acc.Type = chart.Type(typ)
		r.acc.ControlType = chart.ControlType(ctrl)
		pending = append(pending, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ch := chart.New(tenantID)
	var inactive []string
	for len(pending) > 0 {
		progress := false
		rest := pending[:0]
		for _, r := range pending {
			if r.acc.ParentID != "" {
				if _, err := ch.ByID(r.acc.ParentID); err != nil {
					rest = append(rest, r)
					continue
				}
			}
			if _, err := ch.Add(r.acc); err != nil {
				return nil, err
			}
			if !r.active {
				inactive = append(inactive, r.acc.ID)
			}
			progress = true
		}
		if !progress {
			// Orphaned parent references mean corrupted storage.
			return nil, ledger.NotFoundf("unknown_account", "account %s references a missing parent", rest[0].acc.ID)
		}
		pending = append([]row(nil), rest...)
	}
	for _, id := range inactive {
		if err := ch.Deactivate(id); err != nil {
			return nil, err
		}
	}
	return ch, nil
}

const periodCols = `id, tenant_id, start_date, end_date, status, finalized_at, locked_at`

func scanPeriod(scan func(...any) error) (period.Period, error) {
	var p period.Period
	var finalized, locked sql.NullTime
	if err := scan(&p.ID, &p.TenantID, &p.StartDate, &p.EndDate, &p.Status, &finalized, &locked); err != nil {
		return period.Period{}, err
	}
	if finalized.Valid {
		t := finalized.Time
		p.FinalizedAt = &t
	}
	if locked.Valid {
		t := locked.Time
		p.LockedAt = &t
	}
	return p, nil
}

// periodForDate resolves the period covering an entry date. The shared lock
// makes posting and finalization mutually exclusive: an in-flight post holds
// the period row until commit, so Finalize's `for update` waits for it, and
// a post starting after finalization observes the flipped status.
func periodForDate(ctx context.Context, q querier, tenantID string, d time.Time) (period.Period, error) {
	p, err := scanPeriod(q.QueryRowContext(ctx, `
		select `+periodCols+`
		from accounting_periods
		where tenant_id=$1 and $2::date between start_date and end_date
		for share
	`, tenantID, d).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return period.Period{}, ledger.Lifecyclef(ledger.ReasonNoPeriod, "no accounting period covers %s", d.Format("2006-01-02"))
	}
	return p, err
}

// periodByID loads one period row, taking a row lock when forUpdate is set so
// lifecycle transitions serialize per period.
func periodByID(ctx context.Context, q querier, tenantID, periodID string, forUpdate bool) (period.Period, error) {
	query := `select ` + periodCols + ` from accounting_periods where tenant_id=$1 and id=$2`
	if forUpdate {
		query += ` for update`
	}
	p, err := scanPeriod(q.QueryRowContext(ctx, query, tenantID, periodID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return period.Period{}, ledger.NotFoundf("unknown_period", "period %s not found", periodID)
	}
	return p, err
}

func savePeriod(ctx context.Context, q querier, p period.Period) error {
	_, err := q.ExecContext(ctx, `
		update accounting_periods
		set status=$3, finalized_at=$4, locked_at=$5
		where tenant_id=$1 and id=$2
	`, p.TenantID, p.ID, p.Status, p.FinalizedAt, p.LockedAt)
	return err
}
