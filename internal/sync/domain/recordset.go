package domain

// Record-set names. Each names a logically grouped collection of records
// persisted and synchronized as a unit. Settings is a singleton record, not
// a sequence, and merges remote-wins as a whole.
const (
	SetClients     = "clients"
	SetProjects    = "projects"
	SetTimeEntries = "timeEntries"
	SetQuotes      = "quotes"
	SetInvoices    = "invoices"
	SetRevenue     = "revenue"
	SetSettings    = "settings"
)

// AllSets returns every record-set name in sync order.
func AllSets() []string {
	return []string{
		SetClients,
		SetProjects,
		SetTimeEntries,
		SetQuotes,
		SetInvoices,
		SetRevenue,
		SetSettings,
	}
}

// MatchField returns the identifying secondary field used to match records
// across local and remote copies when ids differ. Record-sets without one
// fall back to whole-record equality.
func MatchField(set string) string {
	switch set {
	case SetClients, SetProjects:
		return "name"
	case SetQuotes, SetInvoices:
		return "number"
	default:
		return ""
	}
}

// Validatable is implemented by record types that can be checked at the
// local-store read boundary. Invalid records are dropped rather than
// propagated with missing fields.
type Validatable interface {
	Valid() bool
}
