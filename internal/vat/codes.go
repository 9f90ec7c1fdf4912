// Package vat maps journal lines onto the boxes of the Dutch BTW return and
// records lineage for every contribution. The box set is closed: an unknown
// box or an unmapped category is a startup error, never a runtime surprise.
package vat

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Category groups VAT codes by the reporting treatment they require.
type Category string

const (
	CategorySales         Category = "SALES"
	CategoryPurchases     Category = "PURCHASES"
	CategoryReverseCharge Category = "REVERSE_CHARGE"
	CategoryIntraEU       Category = "INTRA_EU"
	CategoryExempt        Category = "EXEMPT"
	CategoryZeroRate      Category = "ZERO_RATE"
)

// Box is a rubriek on the Dutch VAT return.
type Box string

const (
	Box1a Box = "1a" // leveringen/diensten hoog tarief
	Box1b Box = "1b" // leveringen/diensten laag tarief
	Box1c Box = "1c" // overige tarieven behalve 0%
	Box1d Box = "1d" // privégebruik
	Box1e Box = "1e" // 0% of niet bij u belast
	Box2a Box = "2a" // verlegde leveringen binnenland
	Box3a Box = "3a" // leveringen naar buiten de EU
	Box3b Box = "3b" // leveringen naar/in de EU (ICP)
	Box3c Box = "3c" // installatie/afstandsverkopen in de EU
	Box4a Box = "4a" // verwervingen van buiten de EU
	Box4b Box = "4b" // verwervingen uit de EU
	Box5a Box = "5a" // verschuldigde omzetbelasting
	Box5b Box = "5b" // voorbelasting
)

var knownBoxes = map[Box]bool{
	Box1a: true, Box1b: true, Box1c: true, Box1d: true, Box1e: true,
	Box2a: true, Box3a: true, Box3b: true, Box3c: true,
	Box4a: true, Box4b: true, Box5a: true, Box5b: true,
}

// KnownBox reports whether b is part of the closed return box set.
func KnownBox(b Box) bool { return knownBoxes[b] }

// Mapping names the boxes a code contributes to. Which fields must be set
// depends on the code's category (see requirements).
type Mapping struct {
	TurnoverBox   Box `json:"turnover_box,omitempty"`
	VatBox        Box `json:"vat_box,omitempty"`
	DeductibleBox Box `json:"deductible_box,omitempty"`
}

// Code is VAT reference data. Mapping is authoritative: a mis-mapped code is
// a compliance defect, so codes are validated before the service starts.
type Code struct {
	ID            string          `json:"id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Rate          decimal.Decimal `json:"rate"` // percentage, e.g. 21
	Category      Category        `json:"category"`
	Mapping       Mapping         `json:"box_mapping"`
	EUOnly        bool            `json:"eu_only"`
	ReverseCharge bool            `json:"is_reverse_charge"`
	ICP           bool            `json:"is_icp"`
	Active        bool            `json:"active"`
}

// requirement describes which mapping slots a category must and must not fill.
type requirement struct {
	turnover   bool
	vatBox     bool
	deductible bool
}

// requirements is the closed category table. Every category a code can carry
// has an entry here; MustValidate refuses codes that do not fit.
var requirements = map[Category]requirement{
	CategorySales:         {turnover: true, vatBox: true},
	CategoryPurchases:     {deductible: true},
	CategoryReverseCharge: {turnover: true, vatBox: true, deductible: true},
	CategoryIntraEU:       {turnover: true},
	CategoryExempt:        {turnover: true},
	CategoryZeroRate:      {turnover: true},
}

var (
	ErrUnknownCategory = errors.New("vat: unknown category")
	ErrUnknownBox      = errors.New("vat: box not in return box set")
	ErrBadMapping      = errors.New("vat: mapping does not fit category")
	ErrInactiveCode    = errors.New("vat: code is inactive")
	ErrNotFound        = errors.New("vat: code not found")
)

// Validate checks a single code's mapping against its category requirements.
func Validate(c Code) error {
	req, ok := requirements[c.Category]
	if !ok {
		return fmt.Errorf("%w: %s (code %s)", ErrUnknownCategory, c.Category, c.Code)
	}
	check := func(want bool, b Box, slot string) error {
		if want {
			if b == "" {
				return fmt.Errorf("%w: code %s needs a %s box", ErrBadMapping, c.Code, slot)
			}
			if !KnownBox(b) {
				return fmt.Errorf("%w: %q (code %s, %s)", ErrUnknownBox, b, c.Code, slot)
			}
			return nil
		}
		if b != "" {
			return fmt.Errorf("%w: code %s must not map a %s box", ErrBadMapping, c.Code, slot)
		}
		return nil
	}
	if err := check(req.turnover, c.Mapping.TurnoverBox, "turnover"); err != nil {
		return err
	}
	if err := check(req.vatBox, c.Mapping.VatBox, "vat"); err != nil {
		return err
	}
	return check(req.deductible, c.Mapping.DeductibleBox, "deductible")
}

// MustValidate panics when any code is mis-mapped. Called at startup so a
// bad table never serves a single request.
func MustValidate(codes []Code) {
	for _, c := range codes {
		if err := Validate(c); err != nil {
			panic(err)
		}
	}
}

// Table is an in-memory VAT code lookup.
type Table struct {
	byID   map[string]Code
	byCode map[string]Code
}

// NewTable validates the codes and indexes them by id and code.
func NewTable(codes []Code) (*Table, error) {
	t := &Table{byID: make(map[string]Code), byCode: make(map[string]Code)}
	for _, c := range codes {
		if err := Validate(c); err != nil {
			return nil, err
		}
		t.byID[c.ID] = c
		t.byCode[c.Code] = c
	}
	return t, nil
}

// ByID returns an active code by id.
func (t *Table) ByID(id string) (Code, error) {
	c, ok := t.byID[id]
	if !ok {
		return Code{}, ErrNotFound
	}
	if !c.Active {
		return Code{}, ErrInactiveCode
	}
	return c, nil
}

// ByCode returns an active code by its short code.
func (t *Table) ByCode(code string) (Code, error) {
	c, ok := t.byCode[code]
	if !ok {
		return Code{}, ErrNotFound
	}
	if !c.Active {
		return Code{}, ErrInactiveCode
	}
	return c, nil
}
