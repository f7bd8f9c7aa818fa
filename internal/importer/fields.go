package importer

// FieldKind declares how a canonical field's raw cell values are coerced.
type FieldKind int

const (
	KindText FieldKind = iota
	KindDate
	KindNumber
	KindDuration
	KindMonth
	KindYear
	// KindLocation marks the per-row entity label (site/location name).
	// It is captured for entity resolution instead of being written into
	// the record.
	KindLocation
)

// Field is a canonical attribute name independent of the source
// spreadsheet's wording, with the synonyms providers use for it across
// languages and conventions.
type Field struct {
	Name     string
	Kind     FieldKind
	Synonyms []string
}

// Registry holds the canonical field table. It is built once at startup and
// never mutated afterwards; all runs share the same instance.
type Registry struct {
	fields map[string]Field
}

// NewRegistry builds a registry from a field list.
func NewRegistry(fields []Field) *Registry {
	m := make(map[string]Field, len(fields))
	for _, f := range fields {
		m[f.Name] = f
	}
	return &Registry{fields: m}
}

// Lookup returns the canonical field with the given name.
func (r *Registry) Lookup(name string) (Field, bool) {
	f, ok := r.fields[name]
	return f, ok
}

// defaultFields is the synonym table for the supported provider exports.
// Dutch wording first (the dominant source language), then English.
var defaultFields = []Field{
	{Name: "date", Kind: KindDate, Synonyms: []string{
		"datum", "dag", "boekdatum", "werkdatum", "date", "day", "transaction date",
	}},
	{Name: "revenue", Kind: KindNumber, Synonyms: []string{
		"omzet", "netto omzet", "bruto omzet", "omzet excl btw", "revenue",
		"turnover", "sales", "net sales", "total sales",
	}},
	{Name: "product_name", Kind: KindText, Synonyms: []string{
		"product", "artikel", "artikelnaam", "omschrijving artikel",
		"product name", "item", "item name",
	}},
	{Name: "quantity", Kind: KindNumber, Synonyms: []string{
		"aantal", "stuks", "quantity", "qty", "count",
	}},
	{Name: "location_name", Kind: KindLocation, Synonyms: []string{
		"locatie", "vestiging", "filiaal", "zaak", "location", "site",
		"store", "branch", "unit",
	}},
	{Name: "hours", Kind: KindDuration, Synonyms: []string{
		"uren", "gewerkte uren", "aantal uren", "hours", "worked hours",
		"hours worked", "total hours",
	}},
	{Name: "employee_name", Kind: KindText, Synonyms: []string{
		"medewerker", "werknemer", "naam medewerker", "employee",
		"employee name", "staff",
	}},
	{Name: "wage_cost", Kind: KindNumber, Synonyms: []string{
		"loonkosten", "personeelskosten", "wage cost", "labor cost",
		"labour cost",
	}},
	{Name: "productivity", Kind: KindNumber, Synonyms: []string{
		"productiviteit", "arbeidsproductiviteit", "omzet per uur",
		"productivity", "revenue per hour", "sales per hour",
	}},
	{Name: "month", Kind: KindMonth, Synonyms: []string{
		"maand", "periode maand", "month",
	}},
	{Name: "year", Kind: KindYear, Synonyms: []string{
		"jaar", "boekjaar", "year", "fiscal year",
	}},
	{Name: "ledger_code", Kind: KindText, Synonyms: []string{
		"grootboek", "grootboekrekening", "grootboeknummer", "rekeningnummer",
		"ledger", "ledger code", "account", "account code", "account number",
	}},
	{Name: "description", Kind: KindText, Synonyms: []string{
		"omschrijving", "naam", "description", "account name",
	}},
	{Name: "amount", Kind: KindNumber, Synonyms: []string{
		"bedrag", "saldo", "amount", "balance", "value",
	}},
	{Name: "period", Kind: KindText, Synonyms: []string{
		"periode", "boekperiode", "period", "fiscal period",
	}},
}

var defaultRegistry = NewRegistry(defaultFields)

// DefaultRegistry returns the process-wide canonical field table.
func DefaultRegistry() *Registry {
	return defaultRegistry
}
