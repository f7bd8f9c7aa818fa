package importer

import "fmt"

// Profile is the schema contract for one spreadsheet family: which canonical
// fields a sheet must and may carry, which target table receives the rows,
// and the profile-specific policies the engine applies.
type Profile struct {
	Name     string
	Table    string
	Required []string
	Optional []string

	// EntityRequired rejects rows whose location label is absent. Whenever a
	// label is present it is resolved regardless of this flag.
	EntityRequired bool

	// SumNaturalKey merges records sharing NaturalKey within one run by
	// summing AmountField, instead of treating them as duplicates. This is
	// a per-profile policy, deliberately not a universal rule.
	SumNaturalKey bool
	NaturalKey    []string
	AmountField   string

	// Positional fallback for providers with a known fixed layout. Applied
	// only when the header has exactly FixedColumns populated cells and
	// fuzzy mapping left required fields open.
	FixedColumns int
	Positions    map[string]int
}

// AllFields returns required then optional fields, in declared order.
func (p Profile) AllFields() []string {
	out := make([]string, 0, len(p.Required)+len(p.Optional))
	out = append(out, p.Required...)
	return append(out, p.Optional...)
}

// IsRequired reports whether name is a required field of the profile.
func (p Profile) IsRequired(name string) bool {
	for _, f := range p.Required {
		if f == name {
			return true
		}
	}
	return false
}

// Built-in import profiles, one per target table.
var profiles = map[string]Profile{
	"pos_sales": {
		Name:     "pos_sales",
		Table:    "pos_sales",
		Required: []string{"date", "revenue"},
		Optional: []string{"product_name", "quantity", "location_name"},
	},
	"labor_hours": {
		Name:           "labor_hours",
		Table:          "labor_hours",
		Required:       []string{"date", "hours"},
		Optional:       []string{"employee_name", "wage_cost", "location_name"},
		EntityRequired: true,
	},
	"labor_productivity": {
		Name:           "labor_productivity",
		Table:          "labor_productivity",
		Required:       []string{"month", "year", "productivity"},
		Optional:       []string{"hours", "revenue", "location_name"},
		EntityRequired: true,
	},
	"gl_pnl": {
		Name:          "gl_pnl",
		Table:         "gl_pnl_lines",
		Required:      []string{"ledger_code", "description", "amount"},
		Optional:      []string{"period", "year"},
		SumNaturalKey: true,
		NaturalKey:    []string{"ledger_code", "period"},
		AmountField:   "amount",
		FixedColumns:  4,
		Positions: map[string]int{
			"ledger_code": 0,
			"description": 1,
			"period":      2,
			"amount":      3,
		},
	},
}

// ProfileByName returns a built-in profile.
func ProfileByName(name string) (Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown import profile %q", name)
	}
	return p, nil
}

// ProfileNames lists the registered profiles.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	return names
}
