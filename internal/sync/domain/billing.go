package domain

import "time"

// Invoice statuses.
const (
	InvoiceDraft   = "draft"
	InvoicePending = "pending"
	InvoicePaid    = "paid"
	InvoiceOverdue = "overdue"
)

// ValidInvoiceStatus reports whether s is one of the known invoice statuses.
func ValidInvoiceStatus(s string) bool {
	switch s {
	case InvoiceDraft, InvoicePending, InvoicePaid, InvoiceOverdue:
		return true
	}
	return false
}

// LineItem is a single billable line on a quote or invoice. Amount is fixed
// at save time as Quantity * Rate, never recomputed lazily.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Rate        float64 `json:"rate"`
	Amount      float64 `json:"amount"`
}

type Quote struct {
	ID         string     `json:"id"`
	ClientID   string     `json:"clientId"`
	Number     string     `json:"number"` // unique per year+type
	Date       string     `json:"date"`
	ValidUntil string     `json:"validUntil"`
	LineItems  []LineItem `json:"lineItems"`
	Subtotal   float64    `json:"subtotal"`
	TaxRate    float64    `json:"taxRate"`
	Tax        float64    `json:"tax"`
	Total      float64    `json:"total"`
	Notes      string     `json:"notes,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func (q Quote) Valid() bool {
	return q.ID != "" && q.Number != ""
}

type Invoice struct {
	ID        string     `json:"id"`
	ClientID  string     `json:"clientId"`
	Number    string     `json:"number"` // unique per year+type
	Date      string     `json:"date"`
	DueDate   string     `json:"dueDate"`
	LineItems []LineItem `json:"lineItems"`
	Subtotal  float64    `json:"subtotal"`
	TaxRate   float64    `json:"taxRate"`
	Tax       float64    `json:"tax"`
	Total     float64    `json:"total"`
	Notes     string     `json:"notes,omitempty"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (i Invoice) Valid() bool {
	return i.ID != "" && i.Number != "" && ValidInvoiceStatus(i.Status)
}

// Revenue is derived: appended when an invoice transitions to paid.
type Revenue struct {
	ID        string    `json:"id"`
	InvoiceID string    `json:"invoiceId"` // weak reference into invoices
	Amount    float64   `json:"amount"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"createdAt"`
}

func (r Revenue) Valid() bool {
	return r.ID != ""
}
