package http

import (
	"encoding/json"
	"net/http"

	"github.com/hourflow/hourflow/internal/sync/domain"
	"github.com/hourflow/hourflow/internal/sync/identity"
	"github.com/hourflow/hourflow/internal/sync/service"
	"github.com/hourflow/hourflow/pkg/httpx"
	"github.com/hourflow/hourflow/pkg/slogx"
)

// SettingsHandler handles the business profile singleton.
type SettingsHandler struct {
	Records  *service.Records
	Identity identity.Provider
}

// HandleGet handles GET /v1/settings.
func (h *SettingsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r, h.Identity)
	httpx.WriteJSON(w, http.StatusOK, h.Records.GetSettings(r.Context(), userID))
}

// HandlePut handles PUT /v1/settings: the whole profile is replaced.
func (h *SettingsHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req domain.Settings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON in request body")
		return
	}

	if err := h.Records.PutSettings(ctx, currentUser(r, h.Identity), req); err != nil {
		log.Error("failed to store settings", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to store settings")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, req)
}
