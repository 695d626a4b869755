package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/capacity-engine/capacity"
)

// =============================================================================
// ALLOCATION HANDLERS
// =============================================================================

func (h *Handler) ListAllocations(w http.ResponseWriter, r *http.Request) {
	f, err := h.windowFilter(r)
	if err != nil {
		h.respondError(w, r, "Invalid query", err)
		return
	}
	allocations, err := h.planner.ListAllocations(r.Context(), f)
	if err != nil {
		h.respondError(w, r, "Failed to list allocations", err)
		return
	}
	writeJSON(w, http.StatusOK, toAllocationDTOs(allocations))
}

func (h *Handler) CreateAllocation(w http.ResponseWriter, r *http.Request) {
	var req CreateAllocationRequest
	if err := h.valid.decode(r, &req); err != nil {
		h.respondError(w, r, "Invalid allocation", err)
		return
	}

	start, err := parseDateField("start_date", req.StartDate)
	if err != nil {
		h.respondError(w, r, "Invalid allocation", err)
		return
	}
	end, err := parseOptionalDate("end_date", &req.EndDate)
	if err != nil {
		h.respondError(w, r, "Invalid allocation", err)
		return
	}

	a, err := h.planner.CreateAllocation(r.Context(), capacity.Allocation{
		SubjectID:   capacity.SubjectID(req.UserID),
		SubjectName: req.UserName,
		ProjectKey:  req.ProjectKey,
		ProjectName: req.ProjectName,
		Role:        req.Role,
		Start:       start,
		End:         end,
		Load:        decimal.NewFromFloat(*req.AllocationPercentage),
		Model:       capacity.ModelPercentage,
		Notes:       req.Notes,
	})
	if err != nil {
		h.respondError(w, r, "Failed to create allocation", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAllocationDTO(a))
}

func (h *Handler) UpdateAllocation(w http.ResponseWriter, r *http.Request) {
	var req UpdateAllocationRequest
	if err := h.valid.decode(r, &req); err != nil {
		h.respondError(w, r, "Invalid allocation", err)
		return
	}

	patch := capacity.AllocationPatch{Role: req.Role, Notes: req.Notes}
	var err error
	if patch.Start, err = parseOptionalDate("start_date", req.StartDate); err != nil {
		h.respondError(w, r, "Invalid allocation", err)
		return
	}
	if req.EndDate != nil && *req.EndDate == "" {
		patch.ClearEnd = true
	} else if patch.End, err = parseOptionalDate("end_date", req.EndDate); err != nil {
		h.respondError(w, r, "Invalid allocation", err)
		return
	}
	if req.AllocationPercentage != nil {
		load := decimal.NewFromFloat(*req.AllocationPercentage)
		patch.Load = &load
	}

	a, err := h.planner.UpdateAllocation(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.respondError(w, r, "Failed to update allocation", err)
		return
	}
	writeJSON(w, http.StatusOK, toAllocationDTO(a))
}

func (h *Handler) DeleteAllocation(w http.ResponseWriter, r *http.Request) {
	if err := h.planner.DeleteAllocation(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, r, "Failed to delete allocation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ABSENCE HANDLERS
// =============================================================================

func (h *Handler) ListAbsences(w http.ResponseWriter, r *http.Request) {
	f, err := h.windowFilter(r)
	if err != nil {
		h.respondError(w, r, "Invalid query", err)
		return
	}
	absences, err := h.planner.ListAbsences(r.Context(), f)
	if err != nil {
		h.respondError(w, r, "Failed to list absences", err)
		return
	}
	writeJSON(w, http.StatusOK, toAbsenceDTOs(absences))
}

func (h *Handler) CreateAbsence(w http.ResponseWriter, r *http.Request) {
	var req CreateAbsenceRequest
	if err := h.valid.decode(r, &req); err != nil {
		h.respondError(w, r, "Invalid absence", err)
		return
	}
	start, err := parseDateField("start_date", req.StartDate)
	if err != nil {
		h.respondError(w, r, "Invalid absence", err)
		return
	}
	end, err := parseDateField("end_date", req.EndDate)
	if err != nil {
		h.respondError(w, r, "Invalid absence", err)
		return
	}

	a, err := h.planner.CreateAbsence(r.Context(), capacity.Absence{
		SubjectID:   capacity.SubjectID(req.UserID),
		SubjectName: req.UserName,
		Type:        capacity.AbsenceType(req.AbsenceType),
		Start:       start,
		End:         end,
		Description: req.Description,
		Approved:    req.IsApproved,
	})
	if err != nil {
		h.respondError(w, r, "Failed to create absence", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAbsenceDTO(a))
}

func (h *Handler) UpdateAbsence(w http.ResponseWriter, r *http.Request) {
	var req UpdateAbsenceRequest
	if err := h.valid.decode(r, &req); err != nil {
		h.respondError(w, r, "Invalid absence", err)
		return
	}

	patch := capacity.AbsencePatch{Description: req.Description, Approved: req.IsApproved}
	if req.AbsenceType != nil {
		t := capacity.AbsenceType(*req.AbsenceType)
		patch.Type = &t
	}
	var err error
	if patch.Start, err = parseOptionalDate("start_date", req.StartDate); err != nil {
		h.respondError(w, r, "Invalid absence", err)
		return
	}
	if patch.End, err = parseOptionalDate("end_date", req.EndDate); err != nil {
		h.respondError(w, r, "Invalid absence", err)
		return
	}

	a, err := h.planner.UpdateAbsence(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.respondError(w, r, "Failed to update absence", err)
		return
	}
	writeJSON(w, http.StatusOK, toAbsenceDTO(a))
}

func (h *Handler) DeleteAbsence(w http.ResponseWriter, r *http.Request) {
	if err := h.planner.DeleteAbsence(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, r, "Failed to delete absence", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
