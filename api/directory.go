package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/capacity-engine/capacity"
	"github.com/warp/capacity-engine/syncer"
)

const defaultSyncLogLimit = 50

// =============================================================================
// PROJECTS AND USERS
// =============================================================================

func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	activeOnly, err := boolQuery(r, "active_only", true)
	if err != nil {
		h.respondError(w, r, "Invalid query", err)
		return
	}
	projects, err := h.planner.ListProjects(r.Context(), activeOnly)
	if err != nil {
		h.respondError(w, r, "Failed to list projects", err)
		return
	}
	out := make([]ProjectDTO, len(projects))
	for i, p := range projects {
		out[i] = toProjectDTO(p)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.planner.GetProject(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.respondError(w, r, "Failed to get project", err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectDTO(p))
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	activeOnly, err := boolQuery(r, "active_only", true)
	if err != nil {
		h.respondError(w, r, "Invalid query", err)
		return
	}
	users, err := h.planner.ListUsers(r.Context(), activeOnly)
	if err != nil {
		h.respondError(w, r, "Failed to list users", err)
		return
	}
	out := make([]UserDTO, len(users))
	for i, u := range users {
		out[i] = toUserDTO(u)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.planner.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, "Failed to get user", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u))
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if err := h.valid.decode(r, &req); err != nil {
		h.respondError(w, r, "Invalid user update", err)
		return
	}
	patch := capacity.UserPatch{Timezone: req.Timezone}
	if req.WorkHoursPerDay != nil {
		hours := decimal.NewFromFloat(*req.WorkHoursPerDay)
		patch.WorkHoursPerDay = &hours
	}
	u, err := h.planner.UpdateUser(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.respondError(w, r, "Failed to update user", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u))
}

// =============================================================================
// SYNCHRONIZATION
// =============================================================================

func (h *Handler) SyncProjects(w http.ResponseWriter, r *http.Request) {
	h.runSync(w, r, func(s Syncer) ([]syncer.Result, error) {
		res, err := s.SyncProjects(r.Context())
		return []syncer.Result{res}, err
	})
}

func (h *Handler) SyncUsers(w http.ResponseWriter, r *http.Request) {
	h.runSync(w, r, func(s Syncer) ([]syncer.Result, error) {
		res, err := s.SyncUsers(r.Context())
		return []syncer.Result{res}, err
	})
}

func (h *Handler) SyncAll(w http.ResponseWriter, r *http.Request) {
	h.runSync(w, r, func(s Syncer) ([]syncer.Result, error) {
		return s.SyncAll(r.Context())
	})
}

// runSync answers 503 when the tracker is not configured. A failed run still
// returns its results so clients can show the error next to the counts.
func (h *Handler) runSync(w http.ResponseWriter, r *http.Request, run func(Syncer) ([]syncer.Result, error)) {
	if h.syncer == nil || !h.syncer.Configured() {
		h.respondError(w, r, "Issue tracker not configured", capacity.NotConfigured("jira"))
		return
	}
	results, err := run(h.syncer)
	if err != nil && capacity.IsUpstreamUnavailable(err) {
		h.respondError(w, r, "Synchronization failed", err)
		return
	}
	status := http.StatusOK
	if err != nil {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]any{"results": results})
}

func (h *Handler) ListSyncLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", defaultSyncLogLimit)
	if err != nil {
		h.respondError(w, r, "Invalid query", err)
		return
	}
	logs, err := h.planner.ListSyncLogs(r.Context(), limit)
	if err != nil {
		h.respondError(w, r, "Failed to list sync logs", err)
		return
	}
	out := make([]SyncLogDTO, len(logs))
	for i, l := range logs {
		out[i] = toSyncLogDTO(l)
	}
	writeJSON(w, http.StatusOK, out)
}
