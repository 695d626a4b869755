package api

import (
	"encoding/csv"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/warp/capacity-engine/capacity"
)

// =============================================================================
// CALENDAR AND ANALYSIS HANDLERS
// =============================================================================

func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	window, err := h.window(r)
	if err != nil {
		h.respondError(w, r, "Invalid date window", err)
		return
	}
	days, err := h.planner.Calendar(r.Context(), window)
	if err != nil {
		h.respondError(w, r, "Failed to build calendar", err)
		return
	}

	resp := CalendarResponse{
		StartDate: window.Start.String(),
		EndDate:   window.End.String(),
		Calendar:  make([]CalendarDayDTO, len(days)),
	}
	for i, d := range days {
		resp.Calendar[i] = CalendarDayDTO{
			Date:        d.Date.String(),
			Allocations: toAllocationDTOs(d.Allocations),
			Absences:    toAbsenceDTOs(d.Absences),
			Loads:       toSubjectLoadDTOs(d.Loads),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Overload(w http.ResponseWriter, r *http.Request) {
	window, err := h.window(r)
	if err != nil {
		h.respondError(w, r, "Invalid date window", err)
		return
	}
	c, err := h.planner.OverloadAnalysis(r.Context(), window)
	if err != nil {
		h.respondError(w, r, "Failed to analyze allocations", err)
		return
	}
	h.recorder.ObserveFindings(string(c.Model), len(c.Overloaded), len(c.Underutilized))
	writeJSON(w, http.StatusOK, toAnalysisResponse(window, c))
}

func (h *Handler) Optimization(w http.ResponseWriter, r *http.Request) {
	window, err := h.window(r)
	if err != nil {
		h.respondError(w, r, "Invalid date window", err)
		return
	}
	c, err := h.planner.OptimizationSuggestions(r.Context(), window)
	if err != nil {
		h.respondError(w, r, "Failed to build suggestions", err)
		return
	}
	h.recorder.ObserveFindings(string(c.Model), len(c.Overloaded), len(c.Underutilized))
	writeJSON(w, http.StatusOK, toAnalysisResponse(window, c))
}

// =============================================================================
// TIME VERIFICATION
// =============================================================================

// VerifyTime answers 503 when the worklog source is missing or every
// endpoint failed; it never reports zero hours in that case.
func (h *Handler) VerifyTime(w http.ResponseWriter, r *http.Request) {
	window, err := h.window(r)
	if err != nil {
		h.respondError(w, r, "Invalid date window", err)
		return
	}
	f := h.filter(r)
	report, err := h.planner.VerifyTime(r.Context(), capacity.TimeQuery{
		Window:     window,
		ProjectKey: f.ProjectKey,
		SubjectID:  f.SubjectID,
	})
	if err != nil {
		h.respondError(w, r, "Failed to verify logged time", err)
		return
	}
	writeJSON(w, http.StatusOK, toVerificationResponse(report))
}

func (h *Handler) ProjectTime(w http.ResponseWriter, r *http.Request) {
	window, err := h.window(r)
	if err != nil {
		h.respondError(w, r, "Invalid date window", err)
		return
	}
	report, err := h.planner.ProjectTime(r.Context(), chi.URLParam(r, "key"), window)
	if err != nil {
		h.respondError(w, r, "Failed to load project time", err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectTimeResponse(report))
}

// =============================================================================
// EXPORT
// =============================================================================

var allocationCSVHeader = []string{
	"id", "user_id", "user_name", "project_key", "project_name", "role",
	"start_date", "end_date", "allocation_percentage", "notes",
}

// ExportAllocations streams the filtered allocations as CSV.
func (h *Handler) ExportAllocations(w http.ResponseWriter, r *http.Request) {
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

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="allocations.csv"`)
	w.Header().Set("X-Total-Count", strconv.Itoa(len(allocations)))
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	cw.Write(allocationCSVHeader)
	for _, a := range allocations {
		end := ""
		if a.End != nil {
			end = a.End.String()
		}
		cw.Write([]string{
			a.ID,
			string(a.SubjectID),
			a.SubjectName,
			a.ProjectKey,
			a.ProjectName,
			a.Role,
			a.Start.String(),
			end,
			a.Load.String(),
			a.Notes,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.requestLog(r).WithError(err).Warn("csv export truncated")
	}
}
