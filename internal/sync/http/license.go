package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hourflow/hourflow/internal/sync/license"
	"github.com/hourflow/hourflow/pkg/httpx"
	"github.com/hourflow/hourflow/pkg/slogx"
)

// LicenseHandler verifies license keys.
type LicenseHandler struct {
	License *license.Client
}

// HandleVerify handles POST /v1/license/verify.
func (h *LicenseHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON in request body")
		return
	}

	result, err := h.License.Verify(ctx, req.Key)
	if errors.Is(err, license.ErrInvalidKey) {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "License key is required")
		return
	}
	if err != nil {
		log.Error("license verification failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "License verification failed")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, result)
}
