package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/capacity-engine/capacity"
)

// =============================================================================
// FTE HANDLERS
// =============================================================================

func (h *Handler) ListFTE(w http.ResponseWriter, r *http.Request) {
	f, err := h.windowFilter(r)
	if err != nil {
		h.respondError(w, r, "Invalid query", err)
		return
	}
	assignments, err := h.planner.ListFTE(r.Context(), f)
	if err != nil {
		h.respondError(w, r, "Failed to list FTE assignments", err)
		return
	}
	workday := h.planner.WorkdayHours()
	out := make([]FTEDTO, len(assignments))
	for i, a := range assignments {
		out[i] = toFTEDTO(a, workday)
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateFTE upserts a single day. 201 when a new row was created, 200 when an
// existing assignment for the same user, project and date was overwritten.
func (h *Handler) CreateFTE(w http.ResponseWriter, r *http.Request) {
	var req CreateFTERequest
	if err := h.valid.decode(r, &req); err != nil {
		h.respondError(w, r, "Invalid FTE assignment", err)
		return
	}
	a, err := fteFromRequest(req)
	if err != nil {
		h.respondError(w, r, "Invalid FTE assignment", err)
		return
	}

	stored, created, err := h.planner.AssignFTE(r.Context(), a)
	if err != nil {
		h.recorder.ObserveFTEUpserts(0, 0, 1)
		h.respondError(w, r, "Failed to assign FTE", err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		h.recorder.ObserveFTEUpserts(1, 0, 0)
	} else {
		h.recorder.ObserveFTEUpserts(0, 1, 0)
	}
	writeJSON(w, status, toFTEDTO(stored, h.planner.WorkdayHours()))
}

func (h *Handler) FTERange(w http.ResponseWriter, r *http.Request) {
	var req FTERangeRequest
	if err := h.valid.decode(r, &req); err != nil {
		h.respondError(w, r, "Invalid FTE range", err)
		return
	}
	start, err := parseDateField("start_date", req.StartDate)
	if err != nil {
		h.respondError(w, r, "Invalid FTE range", err)
		return
	}
	end, err := parseDateField("end_date", req.EndDate)
	if err != nil {
		h.respondError(w, r, "Invalid FTE range", err)
		return
	}

	result, err := h.planner.AssignFTERange(r.Context(), capacity.FTERangeRequest{
		SubjectID:   capacity.SubjectID(req.UserEmail),
		SubjectName: req.UserDisplayName,
		ProjectKey:  req.ProjectKey,
		ProjectName: req.ProjectName,
		Period:      capacity.Period{Start: start, End: end},
		FTE:         decimal.NewFromFloat(*req.FTEValue),
	})
	if err != nil {
		h.respondError(w, r, "Failed to assign FTE range", err)
		return
	}
	h.recorder.ObserveFTEUpserts(result.Created, result.Updated, len(result.Failed))
	writeJSON(w, http.StatusOK, toRangeResultDTO(result))
}

// FTEBulk upserts an explicit list. Items that fail tag validation or date
// parsing are reported in failed alongside the planner's own rejections.
func (h *Handler) FTEBulk(w http.ResponseWriter, r *http.Request) {
	var req FTEBulkRequest
	if err := h.valid.decode(r, &req); err != nil {
		h.respondError(w, r, "Invalid FTE bulk request", err)
		return
	}

	items := make([]capacity.FTEAssignment, 0, len(req.Assignments))
	var rejected []capacity.RangeFailure
	for _, item := range req.Assignments {
		if err := h.valid.Struct(item); err != nil {
			d, _ := capacity.ParseDate(item.AssignmentDate)
			rejected = append(rejected, capacity.RangeFailure{Date: d, Err: err})
			continue
		}
		a, err := fteFromRequest(item)
		if err != nil {
			rejected = append(rejected, capacity.RangeFailure{Err: err})
			continue
		}
		items = append(items, a)
	}

	result, err := h.planner.AssignFTEBulk(r.Context(), items)
	if err != nil {
		h.respondError(w, r, "Failed to assign FTE", err)
		return
	}
	result.Failed = append(rejected, result.Failed...)
	h.recorder.ObserveFTEUpserts(result.Created, result.Updated, len(result.Failed))
	writeJSON(w, http.StatusOK, toRangeResultDTO(result))
}

func (h *Handler) UpdateFTE(w http.ResponseWriter, r *http.Request) {
	var req UpdateFTERequest
	if err := h.valid.decode(r, &req); err != nil {
		h.respondError(w, r, "Invalid FTE assignment", err)
		return
	}

	patch := capacity.FTEPatch{SubjectName: req.UserDisplayName, ProjectName: req.ProjectName}
	if req.FTEValue != nil {
		v := decimal.NewFromFloat(*req.FTEValue)
		patch.FTE = &v
	}
	var err error
	if patch.Date, err = parseOptionalDate("assignment_date", req.AssignmentDate); err != nil {
		h.respondError(w, r, "Invalid FTE assignment", err)
		return
	}

	a, err := h.planner.UpdateFTE(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.respondError(w, r, "Failed to update FTE assignment", err)
		return
	}
	writeJSON(w, http.StatusOK, toFTEDTO(a, h.planner.WorkdayHours()))
}

func (h *Handler) DeleteFTE(w http.ResponseWriter, r *http.Request) {
	if err := h.planner.DeleteFTE(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, r, "Failed to delete FTE assignment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) FTECalendar(w http.ResponseWriter, r *http.Request) {
	window, err := h.window(r)
	if err != nil {
		h.respondError(w, r, "Invalid date window", err)
		return
	}
	days, err := h.planner.FTECalendar(r.Context(), window, h.filter(r))
	if err != nil {
		h.respondError(w, r, "Failed to build FTE calendar", err)
		return
	}

	workday := h.planner.WorkdayHours()
	resp := FTECalendarResponse{
		StartDate: window.Start.String(),
		EndDate:   window.End.String(),
		Calendar:  make([]FTECalendarDayDTO, len(days)),
	}
	for i, d := range days {
		assignments := make([]FTEDTO, len(d.Allocations))
		for j, a := range d.Allocations {
			assignments[j] = toFTEDTO(fteFromAllocation(a), workday)
		}
		resp.Calendar[i] = FTECalendarDayDTO{
			Date:        d.Date.String(),
			Assignments: assignments,
			Loads:       toSubjectLoadDTOs(d.Loads),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func fteFromRequest(req CreateFTERequest) (capacity.FTEAssignment, error) {
	d, err := parseDateField("assignment_date", req.AssignmentDate)
	if err != nil {
		return capacity.FTEAssignment{}, err
	}
	return capacity.FTEAssignment{
		SubjectID:   capacity.SubjectID(req.UserEmail),
		SubjectName: req.UserDisplayName,
		ProjectKey:  req.ProjectKey,
		ProjectName: req.ProjectName,
		Date:        d,
		FTE:         decimal.NewFromFloat(*req.FTEValue),
	}, nil
}
