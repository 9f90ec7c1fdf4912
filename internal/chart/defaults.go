package chart

// entry is a default chart row before it gets a tenant and an id.
type entry struct {
	Code      string
	Name      string
	Type      Type
	Parent    string // code of the parent entry
	Control   ControlType
	IsControl bool
}

// defaultEntries is the standard chart seeded for a new administration.
// Codes follow the common Dutch decimal layout (1xxx balance, 4xxx costs,
// 8xxx revenue).
var defaultEntries = []entry{
	{Code: "1000", Name: "Kas", Type: TypeAsset},
	{Code: "1100", Name: "Bank", Type: TypeAsset, IsControl: true, Control: ControlBank},
	{Code: "1300", Name: "Debiteuren", Type: TypeAsset, IsControl: true, Control: ControlAR},
	{Code: "1400", Name: "Te vorderen BTW", Type: TypeAsset, IsControl: true, Control: ControlVAT},
	{Code: "1600", Name: "Crediteuren", Type: TypeLiability, IsControl: true, Control: ControlAP},
	{Code: "1520", Name: "Te betalen BTW hoog", Type: TypeLiability, IsControl: true, Control: ControlVAT},
	{Code: "1521", Name: "Te betalen BTW laag", Type: TypeLiability, IsControl: true, Control: ControlVAT},
	{Code: "1522", Name: "Te betalen BTW verlegd", Type: TypeLiability, IsControl: true, Control: ControlVAT},
	{Code: "0100", Name: "Eigen vermogen", Type: TypeEquity},
	{Code: "0200", Name: "Materiële vaste activa", Type: TypeAsset},
	{Code: "0210", Name: "Afschrijving materiële vaste activa", Type: TypeAsset, Parent: "0200"},
	{Code: "8000", Name: "Omzet hoog tarief", Type: TypeRevenue},
	{Code: "8100", Name: "Omzet laag tarief", Type: TypeRevenue},
	{Code: "8200", Name: "Omzet verlegd / EU", Type: TypeRevenue},
	{Code: "8300", Name: "Omzet vrijgesteld", Type: TypeRevenue},
	{Code: "4000", Name: "Algemene kosten", Type: TypeExpense},
	{Code: "4100", Name: "Huisvestingskosten", Type: TypeExpense},
	{Code: "4200", Name: "Afschrijvingskosten", Type: TypeExpense},
	{Code: "4900", Name: "Afgeschreven vorderingen", Type: TypeExpense},
}

// NewDefault builds a tenant chart pre-populated with the standard accounts.
func NewDefault(tenantID string) (*Chart, error) {
	c := New(tenantID)
	for _, e := range defaultEntries {
		acc := Account{
			Code:             e.Code,
			Name:             e.Name,
			Type:             e.Type,
			IsControlAccount: e.IsControl,
			ControlType:      e.Control,
		}
		if e.Parent != "" {
			parent, err := c.ByCode(e.Parent)
			if err != nil {
				return nil, err
			}
			acc.ParentID = parent.ID
		}
		if _, err := c.Add(acc); err != nil {
			return nil, err
		}
	}
	return c, nil
}
