package ledger

import (
	"errors"

	"grootboek.dev/internal/chart"
	"grootboek.dev/internal/vat"
)

// ValidatePost checks everything about a posting that does not need storage
// state: line shape, account resolution, VAT codes, and the exact balance
// equation. A one-cent imbalance is a rejection, never something to round
// away. Both service implementations run it before touching state.
func ValidatePost(in PostInput, ch *chart.Chart, codes *vat.Table) error {
	if in.TenantID == "" {
		return validationErr(ReasonUnknownTenant, "tenant_id is required")
	}
	if !ValidSourceType(in.SourceType) {
		return validationErr(ReasonBadSourceType, "source_type %q is not accepted", in.SourceType)
	}
	if in.SourceID == "" {
		return validationErr(ReasonMissingSource, "source_id is required")
	}
	if len(in.Lines) == 0 {
		return validationErr(ReasonEmptyLines, "a journal entry needs at least one line")
	}

	var totalDebit, totalCredit int64
	for i, line := range in.Lines {
		if line.Debit < 0 || line.Credit < 0 {
			return validationErr(ReasonNegativeAmount, "line %d: amounts must not be negative", i+1)
		}
		hasDebit := line.Debit != 0
		hasCredit := line.Credit != 0
		if hasDebit == hasCredit {
			return validationErr(ReasonBothSides, "line %d: exactly one of debit or credit must be set", i+1)
		}
		totalDebit += line.Debit
		totalCredit += line.Credit

		acc, err := ch.ByID(line.AccountID)
		if errors.Is(err, chart.ErrNotFound) {
			return validationErr(ReasonUnknownAccount, "line %d: account %s not in chart", i+1, line.AccountID)
		}
		if err != nil {
			return err
		}
		if !acc.Active {
			return validationErr(ReasonInactiveAccount, "line %d: account %s is inactive", i+1, acc.Code)
		}

		if line.VatCodeID != "" {
			if _, err := codes.ByID(line.VatCodeID); err != nil {
				switch {
				case errors.Is(err, vat.ErrNotFound):
					return validationErr(ReasonUnknownVatCode, "line %d: vat code %s unknown", i+1, line.VatCodeID)
				case errors.Is(err, vat.ErrInactiveCode):
					return validationErr(ReasonInactiveVatCode, "line %d: vat code %s is inactive", i+1, line.VatCodeID)
				default:
					return err
				}
			}
		} else if acc.Type == chart.TypeRevenue {
			// Revenue must land in a return box; without a code the line
			// would silently fall outside the VAT declaration.
			return validationErr(ReasonVatCodeRequired, "line %d: revenue account %s requires a vat code", i+1, acc.Code)
		}
	}

	if totalDebit != totalCredit {
		return validationErr(ReasonUnbalanced, "debits (%d) != credits (%d) in minor units", totalDebit, totalCredit)
	}
	return nil
}
