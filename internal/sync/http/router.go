package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hourflow/hourflow/internal/sync/identity"
	"github.com/hourflow/hourflow/internal/sync/license"
	"github.com/hourflow/hourflow/internal/sync/service"
	"github.com/hourflow/hourflow/internal/sync/store"
	"github.com/hourflow/hourflow/pkg/httpx"
	"github.com/hourflow/hourflow/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store    store.Store
	Identity identity.Provider

	Records    *service.Records
	Billing    *service.Billing
	Reconciler *service.Reconciler
	License    *license.Client
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerRecords()
	r.registerBilling()
	r.registerSettings()
	r.registerSync()
	r.registerLicense()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerRecords() {
	h := &RecordsHandler{Records: r.Records, Identity: r.Identity}

	r.Mux.Handle("GET /v1/clients", httpx.Chain(http.HandlerFunc(h.HandleListClients),
		httpx.RateLimitByIP(httpx.LenientLimit)))
	r.Mux.Handle("POST /v1/clients", httpx.Chain(http.HandlerFunc(h.HandleCreateClient),
		httpx.RateLimitByIP(httpx.LenientLimit)))
	r.Mux.Handle("PUT /v1/clients/{id}", httpx.Chain(http.HandlerFunc(h.HandleUpdateClient),
		httpx.RateLimitByIP(httpx.LenientLimit)))
	r.Mux.Handle("DELETE /v1/clients/{id}", httpx.Chain(http.HandlerFunc(h.HandleDeleteClient),
		httpx.RateLimitByIP(httpx.LenientLimit)))

	r.Mux.Handle("GET /v1/projects", httpx.Chain(http.HandlerFunc(h.HandleListProjects),
		httpx.RateLimitByIP(httpx.LenientLimit)))
	r.Mux.Handle("POST /v1/projects", httpx.Chain(http.HandlerFunc(h.HandleCreateProject),
		httpx.RateLimitByIP(httpx.LenientLimit)))
	r.Mux.Handle("PUT /v1/projects/{id}", httpx.Chain(http.HandlerFunc(h.HandleUpdateProject),
		httpx.RateLimitByIP(httpx.LenientLimit)))
	r.Mux.Handle("DELETE /v1/projects/{id}", httpx.Chain(http.HandlerFunc(h.HandleDeleteProject),
		httpx.RateLimitByIP(httpx.LenientLimit)))

	r.Mux.Handle("GET /v1/time-entries", httpx.Chain(http.HandlerFunc(h.HandleListTimeEntries),
		httpx.RateLimitByIP(httpx.LenientLimit)))
	r.Mux.Handle("POST /v1/time-entries", httpx.Chain(http.HandlerFunc(h.HandleCreateTimeEntry),
		httpx.RateLimitByIP(httpx.LenientLimit)))
	r.Mux.Handle("DELETE /v1/time-entries/{id}", httpx.Chain(http.HandlerFunc(h.HandleDeleteTimeEntry),
		httpx.RateLimitByIP(httpx.LenientLimit)))

	r.Mux.Handle("DELETE /v1/records/{set}", httpx.Chain(http.HandlerFunc(h.HandleClearAll),
		httpx.RateLimitByIP(httpx.StrictLimit)))
}

func (r *Router) registerBilling() {
	h := &BillingHandler{Billing: r.Billing, Identity: r.Identity}

	r.Mux.Handle("GET /v1/quotes", httpx.Chain(http.HandlerFunc(h.HandleListQuotes),
		httpx.RateLimitByIP(httpx.LenientLimit)))
	r.Mux.Handle("POST /v1/quotes", httpx.Chain(http.HandlerFunc(h.HandleCreateQuote),
		httpx.RateLimitByIP(httpx.LenientLimit)))
	r.Mux.Handle("DELETE /v1/quotes/{id}", httpx.Chain(http.HandlerFunc(h.HandleDeleteQuote),
		httpx.RateLimitByIP(httpx.LenientLimit)))

	r.Mux.Handle("GET /v1/invoices", httpx.Chain(http.HandlerFunc(h.HandleListInvoices),
		httpx.RateLimitByIP(httpx.LenientLimit)))
	r.Mux.Handle("POST /v1/invoices", httpx.Chain(http.HandlerFunc(h.HandleCreateInvoice),
		httpx.RateLimitByIP(httpx.LenientLimit)))
	r.Mux.Handle("DELETE /v1/invoices/{id}", httpx.Chain(http.HandlerFunc(h.HandleDeleteInvoice),
		httpx.RateLimitByIP(httpx.LenientLimit)))
	r.Mux.Handle("PUT /v1/invoices/{id}/status", httpx.Chain(http.HandlerFunc(h.HandleSetInvoiceStatus),
		httpx.RateLimitByIP(httpx.LenientLimit)))

	r.Mux.Handle("GET /v1/revenue", httpx.Chain(http.HandlerFunc(h.HandleListRevenue),
		httpx.RateLimitByIP(httpx.LenientLimit)))
}

func (r *Router) registerSettings() {
	h := &SettingsHandler{Records: r.Records, Identity: r.Identity}

	r.Mux.Handle("GET /v1/settings", httpx.Chain(http.HandlerFunc(h.HandleGet),
		httpx.RateLimitByIP(httpx.LenientLimit)))
	r.Mux.Handle("PUT /v1/settings", httpx.Chain(http.HandlerFunc(h.HandlePut),
		httpx.RateLimitByIP(httpx.LenientLimit)))
}

func (r *Router) registerSync() {
	h := &SyncHandler{Reconciler: r.Reconciler, Identity: r.Identity}

	// Strict limit: a sync pass fans out to the remote backend.
	r.Mux.Handle("POST /v1/sync", httpx.Chain(http.HandlerFunc(h.HandleSync),
		httpx.RateLimitByIP(httpx.StrictLimit)))
}

func (r *Router) registerLicense() {
	if r.License == nil {
		return
	}
	h := &LicenseHandler{License: r.License}

	r.Mux.Handle("POST /v1/license/verify", httpx.Chain(http.HandlerFunc(h.HandleVerify),
		httpx.RateLimitByIP(httpx.StrictLimit)))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /healthz", HealthzHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.store))
}

// currentUser resolves the user id for a request. An anonymous session is
// not an error for local operations: record-sets fall back to bare keys.
func currentUser(r *http.Request, provider identity.Provider) string {
	if provider == nil {
		return ""
	}
	userID, err := provider.CurrentUser(r.Context())
	if err != nil {
		return ""
	}
	return userID
}
