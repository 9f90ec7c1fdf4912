package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"grootboek.dev/internal/audit"
	"grootboek.dev/internal/ledger"
	"grootboek.dev/internal/vat"
)

var testActor = audit.Actor{UserID: "user-1", TenantID: "t1"}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db, vat.MustDefaultTable(), nil), mock
}

func accountRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "code", "name", "type", "parent_id", "is_control_account", "control_type", "active"}).
		AddRow("acc-ar", "1300", "Debiteuren", "ASSET", "", true, "AR", true).
		AddRow("acc-rev", "8000", "Omzet hoog tarief", "REVENUE", "", false, "", true).
		AddRow("acc-vat", "1520", "Te betalen BTW hoog", "LIABILITY", "", true, "VAT", true)
}

func openPeriodRow(id string, status string) *sqlmock.Rows {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	return sqlmock.NewRows([]string{"id", "tenant_id", "start_date", "end_date", "status", "finalized_at", "locked_at"}).
		AddRow(id, "t1", start, end, status, nil, nil)
}

func invoiceInput() ledger.PostInput {
	return ledger.PostInput{
		TenantID:    "t1",
		SourceType:  ledger.SourceInvoice,
		SourceID:    "inv-1",
		EntryDate:   time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC),
		Description: "Factuur 2026-031",
		Reference:   "2026-031",
		Lines: []ledger.LineInput{
			{AccountID: "acc-ar", Debit: 121000, PartyID: "cust-1"},
			{AccountID: "acc-rev", Credit: 100000, VatCodeID: "vat-hoog"},
			{AccountID: "acc-vat", Credit: 21000},
		},
	}
}

func TestPostHappyPath(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("from journal_entries").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("from accounting_periods").WillReturnRows(openPeriodRow("2026-Q1", "OPEN"))
	mock.ExpectQuery("from accounts").WillReturnRows(accountRows())
	mock.ExpectQuery("update tenants set entry_seq").WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"entry_seq"}).AddRow(int64(7)))
	mock.ExpectExec("insert into journal_entries").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into journal_lines").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into journal_lines").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into journal_lines").WillReturnResult(sqlmock.NewResult(1, 1))
	// AR debit line becomes an open item; the coded revenue line writes two
	// lineage rows (turnover + vat, both box 1a).
	mock.ExpectExec("insert into open_items").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into vat_lineage").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into vat_lineage").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	entry, err := s.Post(context.Background(), testActor, invoiceInput())
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if entry.EntryNumber != "JE-000007" {
		t.Fatalf("entry number = %s, want JE-000007", entry.EntryNumber)
	}
	if entry.TotalDebit != 121000 || entry.TotalCredit != 121000 || !entry.IsBalanced {
		t.Fatalf("unexpected totals: %+v", entry)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostIdempotentReplay(t *testing.T) {
	s, mock := newMockStore(t)

	posted := time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("from journal_entries").
		WithArgs("t1", "INVOICE", "inv-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "tenant_id", "entry_number", "entry_date", "description", "reference",
			"status", "source_type", "source_id", "total_debit", "total_credit", "is_balanced", "posted_at", "created_by",
		}).AddRow("e-1", "t1", "JE-000001", posted, "Factuur 2026-031", "2026-031",
			"POSTED", "INVOICE", "inv-1", int64(121000), int64(121000), true, posted, "user-1"))
	mock.ExpectQuery("from journal_lines").WillReturnRows(sqlmock.NewRows([]string{
		"id", "line_number", "account_id", "debit_amount", "credit_amount",
		"vat_code_id", "description", "party_id", "party_name",
	}).AddRow("l-1", 1, "acc-ar", int64(121000), int64(0), "", "", "cust-1", ""))
	mock.ExpectRollback()

	entry, err := s.Post(context.Background(), testActor, invoiceInput())
	if err != nil {
		t.Fatalf("Post replay: %v", err)
	}
	if entry.ID != "e-1" || entry.EntryNumber != "JE-000001" {
		t.Fatalf("expected the original entry back, got %+v", entry)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostRejectedInFinalizedPeriod(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("from journal_entries").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("from accounting_periods").WillReturnRows(openPeriodRow("2026-Q1", "FINALIZED"))
	mock.ExpectRollback()

	_, err := s.Post(context.Background(), testActor, invoiceInput())
	if !errors.Is(err, ledger.ErrLifecycle) {
		t.Fatalf("expected lifecycle error, got %v", err)
	}
	var lerr *ledger.Error
	if !errors.As(err, &lerr) || lerr.Code != ledger.ReasonPeriodClosed {
		t.Fatalf("expected %s, got %+v", ledger.ReasonPeriodClosed, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// Posting must read the period row with a shared lock so it serializes
// against finalization, which takes the same row `for update`: an in-flight
// post blocks the status flip until it commits, and a post starting after
// the flip observes the closed status. A plain select would let an entry
// slip into a period concurrently being finalized.
func TestPostTakesSharedPeriodLock(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("from journal_entries").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`between start_date and end_date\s+for share`).
		WillReturnRows(openPeriodRow("2026-Q1", "FINALIZED"))
	mock.ExpectRollback()

	_, err := s.Post(context.Background(), testActor, invoiceInput())
	if !errors.Is(err, ledger.ErrLifecycle) {
		t.Fatalf("expected lifecycle error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostValidationRollsBackBeforeNumbering(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("from journal_entries").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("from accounting_periods").WillReturnRows(openPeriodRow("2026-Q1", "OPEN"))
	mock.ExpectQuery("from accounts").WillReturnRows(accountRows())
	// No tenants update, no inserts: the unbalanced input never touches state.
	mock.ExpectRollback()

	in := invoiceInput()
	in.Lines[2].Credit = 20999

	_, err := s.Post(context.Background(), testActor, in)
	var lerr *ledger.Error
	if !errors.As(err, &lerr) || lerr.Code != ledger.ReasonUnbalanced {
		t.Fatalf("expected %s, got %v", ledger.ReasonUnbalanced, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetEntryNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("from journal_entries").WithArgs("t1", "missing").WillReturnError(sql.ErrNoRows)

	_, err := s.GetEntry(context.Background(), "t1", "missing")
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestVatBoxTotals(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("from vat_lineage").WithArgs("t1", "2026-Q1").
		WillReturnRows(sqlmock.NewRows([]string{"box_code", "net", "vat"}).
			AddRow("1a", int64(100000), int64(21000)).
			AddRow("5b", int64(0), int64(-4200)))

	totals, err := s.VatBoxTotals(context.Background(), "t1", "2026-Q1")
	if err != nil {
		t.Fatalf("VatBoxTotals: %v", err)
	}
	if len(totals) != 2 || totals[0].Box != "1a" || totals[0].VatAmount != 21000 {
		t.Fatalf("unexpected totals: %+v", totals)
	}
	if totals[1].VatAmount != -4200 {
		t.Fatalf("negative totals must pass through: %+v", totals[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLockWithoutConfirmationFails(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("from accounting_periods").WithArgs("t1", "2026-Q1").
		WillReturnRows(openPeriodRow("2026-Q1", "FINALIZED"))
	mock.ExpectRollback()

	_, err := s.LockPeriod(context.Background(), testActor, "t1", "2026-Q1", false)
	var lerr *ledger.Error
	if !errors.As(err, &lerr) || lerr.Code != "confirm_required" {
		t.Fatalf("expected confirm_required, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
