package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"

	"github.com/hourflow/hourflow/internal/sync/domain"
	"github.com/hourflow/hourflow/internal/sync/identity"
	"github.com/hourflow/hourflow/internal/sync/service"
	"github.com/hourflow/hourflow/pkg/httpx"
	"github.com/hourflow/hourflow/pkg/slogx"
)

// RecordsHandler handles client, project, and time entry endpoints.
type RecordsHandler struct {
	Records  *service.Records
	Identity identity.Provider
}

// HandleListClients handles GET /v1/clients.
func (h *RecordsHandler) HandleListClients(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r, h.Identity)
	httpx.WriteJSON(w, http.StatusOK, h.Records.ListClients(r.Context(), userID))
}

// HandleCreateClient handles POST /v1/clients.
func (h *RecordsHandler) HandleCreateClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req domain.Client
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON in request body")
		return
	}

	client, err := h.Records.CreateClient(ctx, currentUser(r, h.Identity), req)
	if err != nil {
		log.Error("failed to create client", "error", err)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, client)
}

// HandleUpdateClient handles PUT /v1/clients/{id}.
func (h *RecordsHandler) HandleUpdateClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req domain.Client
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON in request body")
		return
	}
	req.ID = r.PathValue("id")

	err := h.Records.UpdateClient(ctx, currentUser(r, h.Identity), req)
	if errors.Is(err, service.ErrRecordNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "No such client")
		return
	}
	if err != nil {
		log.Error("failed to update client", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to update client")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, req)
}

// HandleDeleteClient handles DELETE /v1/clients/{id}. The delete cascades to
// the client's projects and their time entries.
func (h *RecordsHandler) HandleDeleteClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	err := h.Records.DeleteClient(ctx, currentUser(r, h.Identity), r.PathValue("id"))
	if errors.Is(err, service.ErrRecordNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "No such client")
		return
	}
	if err != nil {
		log.Error("failed to delete client", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to delete client")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListProjects handles GET /v1/projects.
func (h *RecordsHandler) HandleListProjects(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r, h.Identity)
	httpx.WriteJSON(w, http.StatusOK, h.Records.ListProjects(r.Context(), userID))
}

// HandleCreateProject handles POST /v1/projects.
func (h *RecordsHandler) HandleCreateProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req domain.Project
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON in request body")
		return
	}

	project, err := h.Records.CreateProject(ctx, currentUser(r, h.Identity), req)
	if err != nil {
		log.Error("failed to create project", "error", err)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, project)
}

// HandleUpdateProject handles PUT /v1/projects/{id}.
func (h *RecordsHandler) HandleUpdateProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req domain.Project
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON in request body")
		return
	}
	req.ID = r.PathValue("id")

	err := h.Records.UpdateProject(ctx, currentUser(r, h.Identity), req)
	if errors.Is(err, service.ErrRecordNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "No such project")
		return
	}
	if err != nil {
		log.Error("failed to update project", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to update project")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, req)
}

// HandleDeleteProject handles DELETE /v1/projects/{id}. Cascades to the
// project's time entries.
func (h *RecordsHandler) HandleDeleteProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	err := h.Records.DeleteProject(ctx, currentUser(r, h.Identity), r.PathValue("id"))
	if errors.Is(err, service.ErrRecordNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "No such project")
		return
	}
	if err != nil {
		log.Error("failed to delete project", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to delete project")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListTimeEntries handles GET /v1/time-entries.
func (h *RecordsHandler) HandleListTimeEntries(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r, h.Identity)
	httpx.WriteJSON(w, http.StatusOK, h.Records.ListTimeEntries(r.Context(), userID))
}

// HandleCreateTimeEntry handles POST /v1/time-entries.
func (h *RecordsHandler) HandleCreateTimeEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req domain.TimeEntry
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON in request body")
		return
	}

	entry, err := h.Records.CreateTimeEntry(ctx, currentUser(r, h.Identity), req)
	if err != nil {
		log.Error("failed to create time entry", "error", err)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, entry)
}

// HandleDeleteTimeEntry handles DELETE /v1/time-entries/{id}.
func (h *RecordsHandler) HandleDeleteTimeEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	err := h.Records.DeleteTimeEntry(ctx, currentUser(r, h.Identity), r.PathValue("id"))
	if errors.Is(err, service.ErrRecordNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "No such time entry")
		return
	}
	if err != nil {
		log.Error("failed to delete time entry", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to delete time entry")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleClearAll handles DELETE /v1/records/{set}: replaces the record-set
// with an empty sequence on both sides.
func (h *RecordsHandler) HandleClearAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	set := r.PathValue("set")
	if !slices.Contains(domain.AllSets(), set) {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "Unknown record-set")
		return
	}

	if err := h.Records.ClearAll(ctx, currentUser(r, h.Identity), set); err != nil {
		log.Error("failed to clear record-set", "set", set, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to clear records")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
