package ledger

import (
	"errors"
	"fmt"

	"grootboek.dev/internal/period"
)

// Error categories. Callers branch on these with errors.Is; the Error type
// below carries the machine-readable reason.
var (
	ErrValidation = errors.New("ledger: validation failed")
	ErrLifecycle  = errors.New("ledger: period lifecycle violation")
	ErrNotFound   = errors.New("ledger: not found")
	ErrIntegrity  = errors.New("ledger: integrity failure")
)

// Reason codes attached to rejections so the accountant-facing surface can
// explain why, not just that, something failed.
const (
	ReasonEmptyLines      = "empty_lines"
	ReasonBothSides       = "line_has_both_sides"
	ReasonNegativeAmount  = "negative_amount"
	ReasonUnbalanced      = "unbalanced"
	ReasonUnknownAccount  = "unknown_account"
	ReasonInactiveAccount = "inactive_account"
	ReasonUnknownVatCode  = "unknown_vat_code"
	ReasonInactiveVatCode = "inactive_vat_code"
	ReasonVatCodeRequired = "vat_code_required"
	ReasonBadSourceType   = "bad_source_type"
	ReasonMissingSource   = "missing_source"
	ReasonUnknownTenant   = "unknown_tenant"
	ReasonNoPeriod        = "no_period_for_date"
	ReasonPeriodClosed    = "period_closed"
	ReasonBlockingIssues  = "blocking_issues"
	ReasonNotReversible   = "not_reversible"
)

// Error is a structured rejection: a stable machine code, a human
// description, and (for lifecycle violations) the blocking issue list.
type Error struct {
	Code        string         `json:"code"`
	Description string         `json:"description"`
	Issues      []period.Issue `json:"issues,omitempty"`

	category error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func (e *Error) Unwrap() error { return e.category }

func validationErr(code, format string, args ...any) *Error {
	return &Error{Code: code, Description: fmt.Sprintf(format, args...), category: ErrValidation}
}

func lifecycleErr(code, format string, args ...any) *Error {
	return &Error{Code: code, Description: fmt.Sprintf(format, args...), category: ErrLifecycle}
}

func notFoundErr(code, format string, args ...any) *Error {
	return &Error{Code: code, Description: fmt.Sprintf(format, args...), category: ErrNotFound}
}

// Validationf, Lifecyclef and NotFoundf build categorized rejections for
// service implementations outside this package.
func Validationf(code, format string, args ...any) *Error { return validationErr(code, format, args...) }

func Lifecyclef(code, format string, args ...any) *Error { return lifecycleErr(code, format, args...) }

func NotFoundf(code, format string, args ...any) *Error { return notFoundErr(code, format, args...) }

// BlockingError attaches the live issue list to a finalization rejection.
func BlockingError(issues []period.Issue) *Error {
	return &Error{
		Code:        ReasonBlockingIssues,
		Description: fmt.Sprintf("%d issue(s) block finalization", len(issues)),
		Issues:      issues,
		category:    ErrLifecycle,
	}
}
