package http

import (
	"errors"
	"net/http"

	"github.com/hourflow/hourflow/internal/sync/domain"
	"github.com/hourflow/hourflow/internal/sync/identity"
	"github.com/hourflow/hourflow/internal/sync/remote"
	"github.com/hourflow/hourflow/internal/sync/service"
	"github.com/hourflow/hourflow/pkg/httpx"
	"github.com/hourflow/hourflow/pkg/slogx"
)

// SyncHandler triggers an on-demand reconcile pass.
type SyncHandler struct {
	Reconciler *service.Reconciler
	Identity   identity.Provider
}

type syncResponse struct {
	Changed int `json:"changed"`
	Sets    int `json:"sets"`
}

// HandleSync handles POST /v1/sync. Without an identity or a configured
// remote backend the pass cannot run and the request fails with 409 or 503.
func (h *SyncHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := currentUser(r, h.Identity)
	sets := domain.AllSets()

	changed, err := h.Reconciler.Sync(ctx, userID, sets)
	if errors.Is(err, identity.ErrNoIdentity) {
		httpx.WriteError(w, http.StatusConflict, "no_identity", "Sign in before syncing")
		return
	}
	if errors.Is(err, remote.ErrUnavailable) {
		httpx.WriteError(w, http.StatusServiceUnavailable, "remote_unavailable", "No remote backend configured")
		return
	}
	if err != nil {
		log.Error("sync pass failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Sync failed")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, syncResponse{Changed: changed, Sets: len(sets)})
}
