// Package period models the accounting-period lifecycle. Transitions run
// strictly forward; the only way back is an explicit, audited unlock.
package period

import (
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of a tenant period.
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusReview    Status = "REVIEW"
	StatusFinalized Status = "FINALIZED"
	StatusLocked    Status = "LOCKED"
)

// Period is one month, quarter or year of a tenant's books.
type Period struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Status    Status    `json:"status"`

	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
	LockedAt    *time.Time `json:"locked_at,omitempty"`
}

var (
	ErrBadTransition      = errors.New("period: illegal status transition")
	ErrConfirmRequired    = errors.New("period: locking requires confirm_irreversible")
	ErrNotLocked          = errors.New("period: only a locked or finalized period can be unlocked")
	ErrNoPeriodForDate    = errors.New("period: no period covers the entry date")
	ErrUnlockReasonNeeded = errors.New("period: unlock requires a reason")
)

// AllowsPosting reports whether new journal entries may target the period.
func (p Period) AllowsPosting() bool {
	return p.Status == StatusOpen || p.Status == StatusReview
}

// ContainsDate reports whether d falls inside the period (inclusive bounds).
func (p Period) ContainsDate(d time.Time) bool {
	day := d.Truncate(24 * time.Hour)
	return !day.Before(p.StartDate) && !day.After(p.EndDate)
}

// transitions is the forward-only edge set of the lifecycle.
var transitions = map[Status][]Status{
	StatusOpen:      {StatusReview},
	StatusReview:    {StatusFinalized},
	StatusFinalized: {StatusLocked},
	StatusLocked:    {},
}

func canTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StartReview moves an open period into review.
func (p *Period) StartReview() error {
	if !canTransition(p.Status, StatusReview) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, p.Status, StatusReview)
	}
	p.Status = StatusReview
	return nil
}

// Finalize moves a reviewed period to FINALIZED. The issue gate is evaluated
// by the caller at finalization time (see Gate); this method only performs
// the transition.
func (p *Period) Finalize(now time.Time) error {
	if !canTransition(p.Status, StatusFinalized) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, p.Status, StatusFinalized)
	}
	p.Status = StatusFinalized
	t := now.UTC()
	p.FinalizedAt = &t
	return nil
}

// Lock is the point of no return; the caller must say so out loud.
func (p *Period) Lock(confirmIrreversible bool, now time.Time) error {
	if !canTransition(p.Status, StatusLocked) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, p.Status, StatusLocked)
	}
	if !confirmIrreversible {
		return ErrConfirmRequired
	}
	p.Status = StatusLocked
	t := now.UTC()
	p.LockedAt = &t
	return nil
}

// Unlock drops a finalized or locked period back to REVIEW for exceptional
// correction. Callers must record the before/after state in the audit trail;
// this is never a silent downgrade.
func (p *Period) Unlock(reason string) (before Status, err error) {
	if reason == "" {
		return p.Status, ErrUnlockReasonNeeded
	}
	if p.Status != StatusFinalized && p.Status != StatusLocked {
		return p.Status, ErrNotLocked
	}
	before = p.Status
	p.Status = StatusReview
	p.FinalizedAt = nil
	p.LockedAt = nil
	return before, nil
}

// ForDate selects the period containing d from a tenant's periods.
func ForDate(periods []Period, d time.Time) (Period, error) {
	for _, p := range periods {
		if p.ContainsDate(d) {
			return p, nil
		}
	}
	return Period{}, ErrNoPeriodForDate
}

// Quarter builds a calendar-quarter period.
func Quarter(tenantID string, year, q int) Period {
	startMonth := time.Month((q-1)*3 + 1)
	start := time.Date(year, startMonth, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 3, -1)
	return Period{
		ID:        fmt.Sprintf("%d-Q%d", year, q),
		TenantID:  tenantID,
		StartDate: start,
		EndDate:   end,
		Status:    StatusOpen,
	}
}

// Month builds a calendar-month period.
func Month(tenantID string, year int, m time.Month) Period {
	start := time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return Period{
		ID:        fmt.Sprintf("%d-%02d", year, int(m)),
		TenantID:  tenantID,
		StartDate: start,
		EndDate:   end,
		Status:    StatusOpen,
	}
}

// Year builds a calendar-year period.
func Year(tenantID string, year int) Period {
	return Period{
		ID:        fmt.Sprintf("%d", year),
		TenantID:  tenantID,
		StartDate: time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC),
		Status:    StatusOpen,
	}
}
