package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hourflow/hourflow/internal/sync/domain"
	"github.com/hourflow/hourflow/internal/sync/store"
)

func newTestBilling(s store.Store) *Billing {
	return &Billing{Store: s, Locks: store.NewKeyedLock(), Logger: testLogger()}
}

func TestCreateInvoice(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	year := time.Now().UTC().Year()

	t.Run("assigns sequential numbers", func(t *testing.T) {
		t.Parallel()

		svc := newTestBilling(newMemStore())
		for i := 1; i <= 3; i++ {
			inv, err := svc.CreateInvoice(ctx, "u1", domain.Invoice{
				ClientID:  "c1",
				LineItems: []domain.LineItem{{Description: "Work", Quantity: 1, Rate: 100}},
			})
			require.NoError(t, err)
			require.Equal(t, fmt.Sprintf("INV-%d-%04d", year, i), inv.Number)
			require.Equal(t, domain.InvoiceDraft, inv.Status)
		}
	})

	t.Run("numbering continues past merged-in documents", func(t *testing.T) {
		t.Parallel()

		svc := newTestBilling(newMemStore())
		// A merge brought in an invoice numbered ahead of anything created
		// locally; the next number must not collide with it.
		_, err := svc.CreateInvoice(ctx, "u1", domain.Invoice{
			LineItems: []domain.LineItem{{Quantity: 1, Rate: 10}},
		})
		require.NoError(t, err)

		key := store.ScopedKey("u1", domain.SetInvoices)
		invoices := store.ReadCollection[domain.Invoice](ctx, svc.Store, key)
		invoices = append(invoices, domain.Invoice{
			ID:     "imported",
			Number: fmt.Sprintf("INV-%d-0042", year),
			Status: domain.InvoicePending,
		})
		require.NoError(t, store.WriteCollection(ctx, svc.Store, key, invoices))

		inv, err := svc.CreateInvoice(ctx, "u1", domain.Invoice{
			LineItems: []domain.LineItem{{Quantity: 1, Rate: 10}},
		})
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("INV-%d-0043", year), inv.Number)
	})

	t.Run("computes totals and fixes line amounts", func(t *testing.T) {
		t.Parallel()

		svc := newTestBilling(newMemStore())
		inv, err := svc.CreateInvoice(ctx, "u1", domain.Invoice{
			TaxRate: 10,
			LineItems: []domain.LineItem{
				{Description: "Design", Quantity: 4, Rate: 100, Amount: 999},
				{Description: "Dev", Quantity: 10, Rate: 120},
			},
		})
		require.NoError(t, err)
		require.Equal(t, 400.0, inv.LineItems[0].Amount)
		require.Equal(t, 1200.0, inv.LineItems[1].Amount)
		require.Equal(t, 1600.0, inv.Subtotal)
		require.Equal(t, 160.0, inv.Tax)
		require.Equal(t, 1760.0, inv.Total)
	})

	t.Run("rejects empty line items and bad status", func(t *testing.T) {
		t.Parallel()

		svc := newTestBilling(newMemStore())
		_, err := svc.CreateInvoice(ctx, "u1", domain.Invoice{})
		require.Error(t, err)

		_, err = svc.CreateInvoice(ctx, "u1", domain.Invoice{
			Status:    "bogus",
			LineItems: []domain.LineItem{{Quantity: 1, Rate: 10}},
		})
		require.Error(t, err)
	})
}

func TestCreateQuote(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	year := time.Now().UTC().Year()

	svc := newTestBilling(newMemStore())
	q, err := svc.CreateQuote(ctx, "u1", domain.Quote{
		ClientID: "c1",
		TaxRate:  20,
		LineItems: []domain.LineItem{
			{Description: "Scoping", Quantity: 2, Rate: 150},
		},
	})
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("QUO-%d-0001", year), q.Number)
	require.Equal(t, 300.0, q.Subtotal)
	require.Equal(t, 60.0, q.Tax)
	require.Equal(t, 360.0, q.Total)

	// Quote and invoice sequences are independent.
	inv, err := svc.CreateInvoice(ctx, "u1", domain.Invoice{
		LineItems: []domain.LineItem{{Quantity: 1, Rate: 10}},
	})
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("INV-%d-0001", year), inv.Number)
}

func TestSetInvoiceStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	newInvoice := func(t *testing.T, svc *Billing) domain.Invoice {
		t.Helper()
		inv, err := svc.CreateInvoice(ctx, "u1", domain.Invoice{
			TaxRate:   10,
			LineItems: []domain.LineItem{{Quantity: 1, Rate: 500}},
		})
		require.NoError(t, err)
		return inv
	}

	t.Run("paid transition records revenue once", func(t *testing.T) {
		t.Parallel()

		svc := newTestBilling(newMemStore())
		inv := newInvoice(t, svc)

		require.NoError(t, svc.SetInvoiceStatus(ctx, "u1", inv.ID, domain.InvoicePaid))

		rev := svc.ListRevenue(ctx, "u1")
		require.Len(t, rev, 1)
		require.Equal(t, inv.ID, rev[0].InvoiceID)
		require.Equal(t, 550.0, rev[0].Amount)

		// paid -> overdue -> paid must not double-count.
		require.NoError(t, svc.SetInvoiceStatus(ctx, "u1", inv.ID, domain.InvoicePaid))
		require.NoError(t, svc.SetInvoiceStatus(ctx, "u1", inv.ID, domain.InvoiceOverdue))
		require.NoError(t, svc.SetInvoiceStatus(ctx, "u1", inv.ID, domain.InvoicePaid))
		require.Len(t, svc.ListRevenue(ctx, "u1"), 2)
	})

	t.Run("non-paid transition records nothing", func(t *testing.T) {
		t.Parallel()

		svc := newTestBilling(newMemStore())
		inv := newInvoice(t, svc)

		require.NoError(t, svc.SetInvoiceStatus(ctx, "u1", inv.ID, domain.InvoicePending))
		require.Empty(t, svc.ListRevenue(ctx, "u1"))

		invoices := svc.ListInvoices(ctx, "u1")
		require.Len(t, invoices, 1)
		require.Equal(t, domain.InvoicePending, invoices[0].Status)
	})

	t.Run("rejects unknown invoice and bad status", func(t *testing.T) {
		t.Parallel()

		svc := newTestBilling(newMemStore())
		require.ErrorIs(t, svc.SetInvoiceStatus(ctx, "u1", "missing", domain.InvoicePaid), ErrRecordNotFound)
		require.Error(t, svc.SetInvoiceStatus(ctx, "u1", "missing", "bogus"))
	})
}

func TestDeleteBillingDocuments(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newTestBilling(newMemStore())

	q, err := svc.CreateQuote(ctx, "u1", domain.Quote{
		LineItems: []domain.LineItem{{Quantity: 1, Rate: 10}},
	})
	require.NoError(t, err)
	inv, err := svc.CreateInvoice(ctx, "u1", domain.Invoice{
		LineItems: []domain.LineItem{{Quantity: 1, Rate: 10}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteQuote(ctx, "u1", q.ID))
	require.Empty(t, svc.ListQuotes(ctx, "u1"))
	require.ErrorIs(t, svc.DeleteQuote(ctx, "u1", q.ID), ErrRecordNotFound)

	require.NoError(t, svc.DeleteInvoice(ctx, "u1", inv.ID))
	require.Empty(t, svc.ListInvoices(ctx, "u1"))
}

func TestNextNumber(t *testing.T) {
	t.Parallel()

	require.Equal(t, "INV-2026-0001", nextNumber("INV", 2026, nil))
	require.Equal(t, "INV-2026-0004", nextNumber("INV", 2026,
		[]string{"INV-2026-0001", "INV-2026-0003", "INV-2025-0099", "QUO-2026-0050", "garbage"}))
	require.Equal(t, "QUO-2026-0051", nextNumber("QUO", 2026,
		[]string{"QUO-2026-0050"}))
}
