package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hourflow/hourflow/internal/sync/domain"
	"github.com/hourflow/hourflow/internal/sync/store"
	"github.com/hourflow/hourflow/pkg/idx"
)

// Billing owns quotes, invoices, and the derived revenue ledger. Document
// numbers are sequential per year and document type; totals are computed once
// at creation and stored with the document.
type Billing struct {
	Store  store.Store
	Locks  *store.KeyedLock
	Logger *slog.Logger
}

func (s *Billing) ListQuotes(ctx context.Context, userID string) []domain.Quote {
	return store.ReadCollection[domain.Quote](ctx, s.Store, store.ScopedKey(userID, domain.SetQuotes))
}

func (s *Billing) ListInvoices(ctx context.Context, userID string) []domain.Invoice {
	return store.ReadCollection[domain.Invoice](ctx, s.Store, store.ScopedKey(userID, domain.SetInvoices))
}

func (s *Billing) ListRevenue(ctx context.Context, userID string) []domain.Revenue {
	return store.ReadCollection[domain.Revenue](ctx, s.Store, store.ScopedKey(userID, domain.SetRevenue))
}

// CreateQuote assigns an id and the next QUO number, fixes line amounts and
// totals, and appends the quote to the set.
func (s *Billing) CreateQuote(ctx context.Context, userID string, q domain.Quote) (domain.Quote, error) {
	if len(q.LineItems) == 0 {
		return domain.Quote{}, errors.New("service: quote needs at least one line item")
	}
	key := store.ScopedKey(userID, domain.SetQuotes)
	release := s.Locks.Acquire(key)
	defer release()

	quotes := store.ReadCollection[domain.Quote](ctx, s.Store, key)

	q.ID = idx.New().String()
	q.CreatedAt = time.Now().UTC()
	q.Number = nextNumber("QUO", q.CreatedAt.Year(), quoteNumbers(quotes))
	q.LineItems, q.Subtotal, q.Tax, q.Total = computeTotals(q.LineItems, q.TaxRate)

	if err := store.WriteCollection(ctx, s.Store, key, append(quotes, q)); err != nil {
		return domain.Quote{}, err
	}
	return q, nil
}

// CreateInvoice assigns an id and the next INV number, fixes line amounts and
// totals, and appends the invoice as a draft unless a valid status is given.
func (s *Billing) CreateInvoice(ctx context.Context, userID string, inv domain.Invoice) (domain.Invoice, error) {
	if len(inv.LineItems) == 0 {
		return domain.Invoice{}, errors.New("service: invoice needs at least one line item")
	}
	if inv.Status == "" {
		inv.Status = domain.InvoiceDraft
	}
	if !domain.ValidInvoiceStatus(inv.Status) {
		return domain.Invoice{}, fmt.Errorf("service: invalid invoice status %q", inv.Status)
	}
	key := store.ScopedKey(userID, domain.SetInvoices)
	release := s.Locks.Acquire(key)
	defer release()

	invoices := store.ReadCollection[domain.Invoice](ctx, s.Store, key)

	inv.ID = idx.New().String()
	inv.CreatedAt = time.Now().UTC()
	inv.Number = nextNumber("INV", inv.CreatedAt.Year(), invoiceNumbers(invoices))
	inv.LineItems, inv.Subtotal, inv.Tax, inv.Total = computeTotals(inv.LineItems, inv.TaxRate)

	if err := store.WriteCollection(ctx, s.Store, key, append(invoices, inv)); err != nil {
		return domain.Invoice{}, err
	}
	return inv, nil
}

// SetInvoiceStatus transitions an invoice. The first transition into paid
// appends a revenue record for the invoice total; later transitions never
// add a second one.
func (s *Billing) SetInvoiceStatus(ctx context.Context, userID, invoiceID, status string) error {
	if !domain.ValidInvoiceStatus(status) {
		return fmt.Errorf("service: invalid invoice status %q", status)
	}

	invoicesKey := store.ScopedKey(userID, domain.SetInvoices)
	revenueKey := store.ScopedKey(userID, domain.SetRevenue)

	releaseInvoices := s.Locks.Acquire(invoicesKey)
	defer releaseInvoices()
	releaseRevenue := s.Locks.Acquire(revenueKey)
	defer releaseRevenue()

	invoices := store.ReadCollection[domain.Invoice](ctx, s.Store, invoicesKey)
	var paid *domain.Invoice
	found := false
	for i := range invoices {
		if invoices[i].ID != invoiceID {
			continue
		}
		found = true
		wasPaid := invoices[i].Status == domain.InvoicePaid
		invoices[i].Status = status
		if status == domain.InvoicePaid && !wasPaid {
			paid = &invoices[i]
		}
		break
	}
	if !found {
		return ErrRecordNotFound
	}

	if err := store.WriteCollection(ctx, s.Store, invoicesKey, invoices); err != nil {
		return err
	}

	if paid != nil {
		now := time.Now().UTC()
		rev := store.ReadCollection[domain.Revenue](ctx, s.Store, revenueKey)
		rev = append(rev, domain.Revenue{
			ID:        idx.New().String(),
			InvoiceID: paid.ID,
			Amount:    paid.Total,
			Date:      now.Format("2006-01-02"),
			CreatedAt: now,
		})
		if err := store.WriteCollection(ctx, s.Store, revenueKey, rev); err != nil {
			return fmt.Errorf("record revenue for %s: %w", paid.Number, err)
		}
	}
	return nil
}

func (s *Billing) DeleteQuote(ctx context.Context, userID, quoteID string) error {
	key := store.ScopedKey(userID, domain.SetQuotes)
	release := s.Locks.Acquire(key)
	defer release()

	quotes := store.ReadCollection[domain.Quote](ctx, s.Store, key)
	kept := quotes[:0:0]
	found := false
	for _, q := range quotes {
		if q.ID == quoteID {
			found = true
			continue
		}
		kept = append(kept, q)
	}
	if !found {
		return ErrRecordNotFound
	}
	return store.WriteCollection(ctx, s.Store, key, kept)
}

func (s *Billing) DeleteInvoice(ctx context.Context, userID, invoiceID string) error {
	key := store.ScopedKey(userID, domain.SetInvoices)
	release := s.Locks.Acquire(key)
	defer release()

	invoices := store.ReadCollection[domain.Invoice](ctx, s.Store, key)
	kept := invoices[:0:0]
	found := false
	for _, inv := range invoices {
		if inv.ID == invoiceID {
			found = true
			continue
		}
		kept = append(kept, inv)
	}
	if !found {
		return ErrRecordNotFound
	}
	return store.WriteCollection(ctx, s.Store, key, kept)
}

// computeTotals fixes each line's amount as quantity times rate and returns
// the rewritten lines with the document subtotal, tax, and total.
func computeTotals(lines []domain.LineItem, taxRate float64) ([]domain.LineItem, float64, float64, float64) {
	out := make([]domain.LineItem, len(lines))
	subtotal := 0.0
	for i, l := range lines {
		l.Amount = l.Quantity * l.Rate
		subtotal += l.Amount
		out[i] = l
	}
	tax := subtotal * taxRate / 100
	return out, subtotal, tax, subtotal + tax
}

// nextNumber produces "PREFIX-YYYY-NNNN" where NNNN is one past the highest
// sequence already issued for that prefix and year. Scanning existing
// numbers instead of keeping a counter keeps the scheme correct after a
// merge brings in documents created on another device.
func nextNumber(prefix string, year int, existing []string) string {
	yearPrefix := fmt.Sprintf("%s-%d-", prefix, year)
	max := 0
	for _, n := range existing {
		rest, ok := strings.CutPrefix(n, yearPrefix)
		if !ok {
			continue
		}
		seq, err := strconv.Atoi(rest)
		if err != nil {
			continue
		}
		if seq > max {
			max = seq
		}
	}
	return fmt.Sprintf("%s%04d", yearPrefix, max+1)
}

func quoteNumbers(quotes []domain.Quote) []string {
	out := make([]string, len(quotes))
	for i, q := range quotes {
		out[i] = q.Number
	}
	return out
}

func invoiceNumbers(invoices []domain.Invoice) []string {
	out := make([]string, len(invoices))
	for i, inv := range invoices {
		out[i] = inv.Number
	}
	return out
}
