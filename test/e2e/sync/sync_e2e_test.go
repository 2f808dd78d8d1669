package sync_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hourflow/hourflow/internal/sync/domain"
	httpapi "github.com/hourflow/hourflow/internal/sync/http"
	"github.com/hourflow/hourflow/internal/sync/identity"
	"github.com/hourflow/hourflow/internal/sync/remote/docbin"
	"github.com/hourflow/hourflow/internal/sync/service"
	"github.com/hourflow/hourflow/internal/sync/store"
	"github.com/hourflow/hourflow/internal/sync/store/drivers/sqlite"
)

/*
 * End-to-end tests exercising the full stack in process: HTTP API, services,
 * sqlite-backed local store, and a document-bin backend stood up with
 * httptest. Each "device" is an independent stack sharing only the bin
 * backend, which is how two installations of the app actually meet.
 */

// binBackend is a minimal document-bin service compatible with the docbin
// driver's wire format.
type binBackend struct {
	mu   sync.Mutex
	bins map[string]json.RawMessage
}

func newBinBackend() *binBackend {
	return &binBackend{bins: make(map[string]json.RawMessage)}
}

func (b *binBackend) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()

		id := strings.TrimPrefix(r.URL.Path, "/b/")
		id = strings.TrimSuffix(id, "/latest")

		switch r.Method {
		case http.MethodGet:
			doc, ok := b.bins[id]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(doc)

		case http.MethodPut:
			if _, ok := b.bins[id]; !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			var buf bytes.Buffer
			_, _ = buf.ReadFrom(r.Body)
			b.bins[id] = buf.Bytes()
			w.WriteHeader(http.StatusOK)

		case http.MethodPost:
			var buf bytes.Buffer
			_, _ = buf.ReadFrom(r.Body)
			b.bins[id] = buf.Bytes()
			w.WriteHeader(http.StatusCreated)

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

// device is one full application stack: sqlite store, services, HTTP API.
type device struct {
	router  *httpapi.Router
	records *service.Records
	store   store.Store
}

func newDevice(t *testing.T, binURL, userID string) *device {
	t.Helper()

	st, err := sqlite.NewStore("file::memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	logger := slog.New(slog.DiscardHandler)
	rem := docbin.NewClient(binURL, "test-master-key")
	locks := store.NewKeyedLock()

	records := &service.Records{Store: st, Remote: rem, Locks: locks, Logger: logger}

	router := httpapi.NewRouter("e2e", st, logger)
	router.Identity = identity.Static{UserID: userID}
	router.Records = records
	router.Billing = &service.Billing{Store: st, Locks: locks, Logger: logger}
	router.Reconciler = &service.Reconciler{
		Store: st, Remote: rem, Locks: locks,
		Logger: logger, MatchField: domain.MatchField,
	}
	router.ApplyRoutes()

	return &device{router: router, records: records, store: st}
}

func (d *device) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	d.router.ServeHTTP(rec, req)
	return rec
}

func (d *device) listClients(t *testing.T) []domain.Client {
	t.Helper()

	rec := d.do(t, http.MethodGet, "/v1/clients", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var clients []domain.Client
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &clients))
	return clients
}

func (d *device) sync(t *testing.T) int {
	t.Helper()

	rec := d.do(t, http.MethodPost, "/v1/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code, "sync failed: %s", rec.Body.String())

	var resp struct {
		Changed int `json:"changed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Changed
}

func TestTwoDevicesConverge(t *testing.T) {
	backend := httptest.NewServer(newBinBackend().handler())
	defer backend.Close()

	deviceA := newDevice(t, backend.URL, "u1")
	deviceB := newDevice(t, backend.URL, "u1")

	// Device A creates a client and pushes it.
	rec := deviceA.do(t, http.MethodPost, "/v1/clients", domain.Client{Name: "Acme"})
	require.Equal(t, http.StatusCreated, rec.Code)
	deviceA.sync(t)

	// Device B creates a different client offline, then syncs.
	rec = deviceB.do(t, http.MethodPost, "/v1/clients", domain.Client{Name: "Initech"})
	require.Equal(t, http.StatusCreated, rec.Code)
	deviceB.sync(t)

	// Device A syncs again and sees both.
	deviceA.sync(t)

	namesA := clientNames(deviceA.listClients(t))
	namesB := clientNames(deviceB.listClients(t))
	require.ElementsMatch(t, []string{"Acme", "Initech"}, namesA)
	require.ElementsMatch(t, []string{"Acme", "Initech"}, namesB)
}

func TestConflictRemoteWins(t *testing.T) {
	backend := httptest.NewServer(newBinBackend().handler())
	defer backend.Close()

	deviceA := newDevice(t, backend.URL, "u1")
	deviceB := newDevice(t, backend.URL, "u1")

	rec := deviceA.do(t, http.MethodPost, "/v1/clients", domain.Client{Name: "Acme", Email: "v1@acme"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created domain.Client
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	deviceA.sync(t)
	deviceB.sync(t)

	// Both devices edit the same client; device B pushes last.
	edited := created
	edited.Email = "a-edit@acme"
	require.Equal(t, http.StatusOK,
		deviceA.do(t, http.MethodPut, "/v1/clients/"+created.ID, edited).Code)

	edited.Email = "b-edit@acme"
	require.Equal(t, http.StatusOK,
		deviceB.do(t, http.MethodPut, "/v1/clients/"+created.ID, edited).Code)
	deviceB.sync(t)

	// Device A reconciles: the copy already on the backend wins.
	deviceA.sync(t)
	clients := deviceA.listClients(t)
	require.Len(t, clients, 1)
	require.Equal(t, "b-edit@acme", clients[0].Email)
}

func TestCascadeDeleteReachesRemote(t *testing.T) {
	backend := httptest.NewServer(newBinBackend().handler())
	defer backend.Close()

	deviceA := newDevice(t, backend.URL, "u1")
	deviceB := newDevice(t, backend.URL, "u1")

	rec := deviceA.do(t, http.MethodPost, "/v1/clients", domain.Client{Name: "Acme"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var client domain.Client
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &client))

	rec = deviceA.do(t, http.MethodPost, "/v1/projects", domain.Project{
		Name: "Website", ClientID: client.ID, HourlyRate: 100,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	deviceA.sync(t)
	deviceB.sync(t)
	require.Len(t, deviceB.listClients(t), 1)

	// The cascade removes the client, its projects, and their entries from
	// device A's store and from the backend in the same logical operation.
	require.Equal(t, http.StatusNoContent,
		deviceA.do(t, http.MethodDelete, "/v1/clients/"+client.ID, nil).Code)

	require.Empty(t, deviceA.listClients(t))
	rec = deviceA.do(t, http.MethodGet, "/v1/projects", nil)
	require.JSONEq(t, "[]", rec.Body.String())

	// A device that never saw the data pulls nothing.
	fresh := newDevice(t, backend.URL, "u1")
	fresh.sync(t)
	require.Empty(t, fresh.listClients(t))

	// Device B still holds its local copies. Records unknown to the remote
	// survive a merge (remote wins per record, never wholesale), so its
	// copies come back as local-only survivors rather than being dropped.
	deviceB.sync(t)
	require.Len(t, deviceB.listClients(t), 1)
}

func TestBillingFlowEndToEnd(t *testing.T) {
	backend := httptest.NewServer(newBinBackend().handler())
	defer backend.Close()

	dev := newDevice(t, backend.URL, "u1")

	rec := dev.do(t, http.MethodPost, "/v1/invoices", domain.Invoice{
		ClientID: "c1",
		TaxRate:  10,
		LineItems: []domain.LineItem{
			{Description: "Consulting", Quantity: 8, Rate: 125},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var inv domain.Invoice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))
	require.Equal(t, 1100.0, inv.Total)

	require.Equal(t, http.StatusNoContent,
		dev.do(t, http.MethodPut, fmt.Sprintf("/v1/invoices/%s/status", inv.ID),
			map[string]string{"status": "paid"}).Code)

	rec = dev.do(t, http.MethodGet, "/v1/revenue", nil)
	var revenue []domain.Revenue
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &revenue))
	require.Len(t, revenue, 1)
	require.Equal(t, inv.ID, revenue[0].InvoiceID)

	// The revenue set survives a roundtrip through the backend.
	dev.sync(t)
	second := newDevice(t, backend.URL, "u1")
	second.sync(t)

	rec = second.do(t, http.MethodGet, "/v1/revenue", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &revenue))
	require.Len(t, revenue, 1)
}

func clientNames(clients []domain.Client) []string {
	names := make([]string, len(clients))
	for i, c := range clients {
		names[i] = c.Name
	}
	return names
}
