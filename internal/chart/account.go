package chart

import "errors"

// Type classifies an account on the balance sheet or P&L.
type Type string

const (
	TypeAsset     Type = "ASSET"
	TypeLiability Type = "LIABILITY"
	TypeEquity    Type = "EQUITY"
	TypeRevenue   Type = "REVENUE"
	TypeExpense   Type = "EXPENSE"
)

// ControlType marks which subledger a control account reconciles against.
type ControlType string

const (
	ControlAR   ControlType = "AR"
	ControlAP   ControlType = "AP"
	ControlBank ControlType = "BANK"
	ControlVAT  ControlType = "VAT"
)

// Account is a node in a tenant's chart of accounts. Code is immutable once
// added; hierarchy runs through ParentID.
type Account struct {
	ID               string      `json:"id"`
	TenantID         string      `json:"tenant_id"`
	Code             string      `json:"code"`
	Name             string      `json:"name"`
	Type             Type        `json:"type"`
	ParentID         string      `json:"parent_id,omitempty"`
	IsControlAccount bool        `json:"is_control_account"`
	ControlType      ControlType `json:"control_type,omitempty"`
	Active           bool        `json:"active"`
}

// DebitNormal reports whether the account's balance grows on the debit side.
func (a Account) DebitNormal() bool {
	return a.Type == TypeAsset || a.Type == TypeExpense
}

var (
	ErrNotFound       = errors.New("chart: account not found")
	ErrDuplicateCode  = errors.New("chart: account code already in use")
	ErrUnknownParent  = errors.New("chart: parent account not found")
	ErrCycle          = errors.New("chart: parent chain would form a cycle")
	ErrInvalidType    = errors.New("chart: invalid account type")
	ErrMissingControl = errors.New("chart: control account requires a control type")
	ErrInactive       = errors.New("chart: account is inactive")
	ErrTenantMismatch = errors.New("chart: account belongs to a different tenant")
	ErrCodeRequired   = errors.New("chart: account code is required")
)

func validType(t Type) bool {
	switch t {
	case TypeAsset, TypeLiability, TypeEquity, TypeRevenue, TypeExpense:
		return true
	}
	return false
}

func validControlType(t ControlType) bool {
	switch t {
	case ControlAR, ControlAP, ControlBank, ControlVAT:
		return true
	}
	return false
}
