package domain

// Settings is the singleton business profile record. It is synchronized as a
// whole value: on conflict the remote copy wins.
type Settings struct {
	BusinessName    string  `json:"businessName"`
	BusinessEmail   string  `json:"businessEmail,omitempty"`
	BusinessPhone   string  `json:"businessPhone,omitempty"`
	BusinessAddress string  `json:"businessAddress,omitempty"`
	TaxNumber       string  `json:"taxNumber,omitempty"`
	Currency        string  `json:"currency,omitempty"`
	DefaultRate     float64 `json:"defaultRate"`
	DefaultTaxRate  float64 `json:"defaultTaxRate"`
	InvoiceNotes    string  `json:"invoiceNotes,omitempty"`
}
