package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hourflow/hourflow/internal/sync/domain"
	"github.com/hourflow/hourflow/internal/sync/identity"
	"github.com/hourflow/hourflow/internal/sync/service"
	"github.com/hourflow/hourflow/pkg/httpx"
	"github.com/hourflow/hourflow/pkg/slogx"
)

// BillingHandler handles quote, invoice, and revenue endpoints.
type BillingHandler struct {
	Billing  *service.Billing
	Identity identity.Provider
}

// HandleListQuotes handles GET /v1/quotes.
func (h *BillingHandler) HandleListQuotes(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r, h.Identity)
	httpx.WriteJSON(w, http.StatusOK, h.Billing.ListQuotes(r.Context(), userID))
}

// HandleCreateQuote handles POST /v1/quotes.
func (h *BillingHandler) HandleCreateQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req domain.Quote
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON in request body")
		return
	}

	quote, err := h.Billing.CreateQuote(ctx, currentUser(r, h.Identity), req)
	if err != nil {
		log.Error("failed to create quote", "error", err)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, quote)
}

// HandleDeleteQuote handles DELETE /v1/quotes/{id}.
func (h *BillingHandler) HandleDeleteQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	err := h.Billing.DeleteQuote(ctx, currentUser(r, h.Identity), r.PathValue("id"))
	if errors.Is(err, service.ErrRecordNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "No such quote")
		return
	}
	if err != nil {
		log.Error("failed to delete quote", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to delete quote")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListInvoices handles GET /v1/invoices.
func (h *BillingHandler) HandleListInvoices(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r, h.Identity)
	httpx.WriteJSON(w, http.StatusOK, h.Billing.ListInvoices(r.Context(), userID))
}

// HandleCreateInvoice handles POST /v1/invoices.
func (h *BillingHandler) HandleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req domain.Invoice
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON in request body")
		return
	}

	invoice, err := h.Billing.CreateInvoice(ctx, currentUser(r, h.Identity), req)
	if err != nil {
		log.Error("failed to create invoice", "error", err)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, invoice)
}

// HandleDeleteInvoice handles DELETE /v1/invoices/{id}.
func (h *BillingHandler) HandleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	err := h.Billing.DeleteInvoice(ctx, currentUser(r, h.Identity), r.PathValue("id"))
	if errors.Is(err, service.ErrRecordNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "No such invoice")
		return
	}
	if err != nil {
		log.Error("failed to delete invoice", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to delete invoice")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetInvoiceStatus handles PUT /v1/invoices/{id}/status. The first
// transition into paid also records revenue.
func (h *BillingHandler) HandleSetInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON in request body")
		return
	}
	if !domain.ValidInvoiceStatus(req.Status) {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Unknown invoice status")
		return
	}

	err := h.Billing.SetInvoiceStatus(ctx, currentUser(r, h.Identity), r.PathValue("id"), req.Status)
	if errors.Is(err, service.ErrRecordNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "No such invoice")
		return
	}
	if err != nil {
		log.Error("failed to update invoice status", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to update invoice status")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListRevenue handles GET /v1/revenue.
func (h *BillingHandler) HandleListRevenue(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r, h.Identity)
	httpx.WriteJSON(w, http.StatusOK, h.Billing.ListRevenue(r.Context(), userID))
}
