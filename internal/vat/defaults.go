package vat

import "github.com/shopspring/decimal"

// DefaultCodes is the standard Dutch BTW code table. Rates and box numbers
// follow the current return layout of the Belastingdienst.
func DefaultCodes() []Code {
	pct := func(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
	return []Code{
		{
			ID: "vat-hoog", Code: "BTW21", Name: "BTW hoog tarief", Rate: pct(21),
			Category: CategorySales,
			Mapping:  Mapping{TurnoverBox: Box1a, VatBox: Box1a},
			Active:   true,
		},
		{
			ID: "vat-laag", Code: "BTW9", Name: "BTW laag tarief", Rate: pct(9),
			Category: CategorySales,
			Mapping:  Mapping{TurnoverBox: Box1b, VatBox: Box1b},
			Active:   true,
		},
		{
			ID: "vat-nul", Code: "BTW0", Name: "BTW nultarief", Rate: pct(0),
			Category: CategoryZeroRate,
			Mapping:  Mapping{TurnoverBox: Box1e},
			Active:   true,
		},
		{
			ID: "vat-vrij", Code: "VRIJ", Name: "Vrijgesteld van BTW", Rate: pct(0),
			Category: CategoryExempt,
			Mapping:  Mapping{TurnoverBox: Box1e},
			Active:   true,
		},
		{
			ID: "vat-voorbelasting", Code: "VB21", Name: "Voorbelasting hoog", Rate: pct(21),
			Category: CategoryPurchases,
			Mapping:  Mapping{DeductibleBox: Box5b},
			Active:   true,
		},
		{
			ID: "vat-voorbelasting-laag", Code: "VB9", Name: "Voorbelasting laag", Rate: pct(9),
			Category: CategoryPurchases,
			Mapping:  Mapping{DeductibleBox: Box5b},
			Active:   true,
		},
		{
			ID: "vat-verlegd", Code: "VERL", Name: "BTW naar mij verlegd", Rate: pct(21),
			Category: CategoryReverseCharge,
			Mapping:  Mapping{TurnoverBox: Box2a, VatBox: Box2a, DeductibleBox: Box5b},
			ReverseCharge: true,
			Active:        true,
		},
		{
			ID: "vat-eu-verwerving", Code: "EUVW", Name: "Verwerving uit de EU", Rate: pct(21),
			Category: CategoryReverseCharge,
			Mapping:  Mapping{TurnoverBox: Box4b, VatBox: Box4b, DeductibleBox: Box5b},
			EUOnly:        true,
			ReverseCharge: true,
			Active:        true,
		},
		{
			ID: "vat-icp", Code: "ICP", Name: "Levering binnen de EU", Rate: pct(0),
			Category: CategoryIntraEU,
			Mapping:  Mapping{TurnoverBox: Box3b},
			EUOnly:   true,
			ICP:      true,
			Active:   true,
		},
	}
}

// MustDefaultTable builds the default code table, panicking on a mis-mapped
// entry. Mapping defects are compliance defects and must fail startup.
func MustDefaultTable() *Table {
	t, err := NewTable(DefaultCodes())
	if err != nil {
		panic(err)
	}
	return t
}
