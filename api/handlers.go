/*
handlers.go - HTTP API handlers for the capacity planning service

PURPOSE:
  Exposes the capacity planner via REST API. Handles HTTP request/response,
  JSON serialization, and delegates every rule to capacity.Planner.

ENDPOINTS:
  Health:
    GET    /api/health                      Status and integration flags

  Directory (directory.go):
    GET    /api/projects                    List projects (?active_only=true)
    GET    /api/projects/{key}              Get project
    GET    /api/users                       List users (?active_only=true)
    GET    /api/users/{id}                  Get user
    PUT    /api/users/{id}                  Update timezone / work hours
    POST   /api/sync/projects|users|all     Mirror the issue tracker
    GET    /api/sync/logs                   Recent sync runs (?limit=50)

  Records (records.go):
    GET    /api/allocations                 List (?start_date&end_date&user_id&project_key)
    POST   /api/allocations                 Create
    PUT    /api/allocations/{id}            Update
    DELETE /api/allocations/{id}            Delete
    GET    /api/absences                    Same shape as allocations
    POST   /api/absences
    PUT    /api/absences/{id}
    DELETE /api/absences/{id}

  FTE (fte.go):
    GET    /api/fte                         List (?start_date&end_date&user_email&project_key)
    POST   /api/fte                         Upsert one day
    POST   /api/fte/range                   Upsert every weekday of a range
    POST   /api/fte/bulk                    Upsert an explicit list
    PUT    /api/fte/{id}                    Update
    DELETE /api/fte/{id}                    Delete
    GET    /api/fte/calendar                Dense FTE calendar

  Analysis (analysis.go):
    GET    /api/calendar                    Dense allocation/absence calendar
    GET    /api/analytics/overload          Percentage-model findings
    GET    /api/optimization/suggestions    FTE-model findings
    GET    /api/verification/time           Logged time vs FTE capacity
    GET    /api/time/project/{key}          Logged hours per user
    GET    /api/export/allocations.csv      Allocations as CSV

DATE WINDOWS:
  start_date defaults to today, end_date to today + 30 days. An end before
  the start is rejected with 400.

ERROR HANDLING:
  Errors are returned as JSON (errors.go):
  - 400: Validation errors, invalid input
  - 404: Record not found
  - 409: FTE assignment collides with an existing one
  - 503: Worklog source or directory unavailable
  - 500: Internal errors

SECURITY NOTE:
  No authentication. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/capacity-engine/capacity"
	"github.com/warp/capacity-engine/syncer"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Syncer triggers directory synchronization.
type Syncer interface {
	Configured() bool
	SyncProjects(ctx context.Context) (syncer.Result, error)
	SyncUsers(ctx context.Context) (syncer.Result, error)
	SyncAll(ctx context.Context) ([]syncer.Result, error)
}

// Recorder receives domain-level metrics.
type Recorder interface {
	ObserveHTTP(route, method string, status int, d time.Duration)
	ObserveFindings(model string, overloaded, underutilized int)
	ObserveFTEUpserts(created, updated, failed int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveHTTP(string, string, int, time.Duration) {}
func (nopRecorder) ObserveFindings(string, int, int)               {}
func (nopRecorder) ObserveFTEUpserts(int, int, int)                {}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	planner  *capacity.Planner
	syncer   Syncer
	recorder Recorder
	log      logrus.FieldLogger
	valid    *requestValidator
	now      func() time.Time
}

type HandlerOption func(*Handler)

// WithSyncer enables the /api/sync endpoints.
func WithSyncer(s Syncer) HandlerOption {
	return func(h *Handler) { h.syncer = s }
}

func WithRecorder(r Recorder) HandlerOption {
	return func(h *Handler) {
		if r != nil {
			h.recorder = r
		}
	}
}

func WithLogger(l logrus.FieldLogger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

// NewHandler creates a handler over planner.
func NewHandler(planner *capacity.Planner, opts ...HandlerOption) (*Handler, error) {
	valid, err := newRequestValidator()
	if err != nil {
		return nil, err
	}
	h := &Handler{
		planner:  planner,
		recorder: nopRecorder{},
		log:      logrus.StandardLogger(),
		valid:    valid,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.WithField("component", "api")
	return h, nil
}

// =============================================================================
// HEALTH
// =============================================================================

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:          "ok",
		Timestamp:       h.now().UTC().Format(time.RFC3339),
		JiraConfigured:  h.syncer != nil && h.syncer.Configured(),
		TempoConfigured: h.planner.WorklogsConfigured(),
	})
}

// =============================================================================
// QUERY HELPERS
// =============================================================================

// window reads start_date/end_date, defaulting to the planner's default window.
func (h *Handler) window(r *http.Request) (capacity.Period, error) {
	w := h.planner.DefaultWindow()
	q := r.URL.Query()
	if s := q.Get("start_date"); s != "" {
		d, err := parseDateField("start_date", s)
		if err != nil {
			return capacity.Period{}, err
		}
		w.Start = d
	}
	if s := q.Get("end_date"); s != "" {
		d, err := parseDateField("end_date", s)
		if err != nil {
			return capacity.Period{}, err
		}
		w.End = d
	}
	return w, w.Validate()
}

// filter reads the optional subject and project filters. Subjects may be
// given as user_email or user_id.
func (h *Handler) filter(r *http.Request) capacity.Filter {
	q := r.URL.Query()
	subject := q.Get("user_email")
	if subject == "" {
		subject = q.Get("user_id")
	}
	return capacity.Filter{
		SubjectID:  capacity.SubjectID(subject),
		ProjectKey: q.Get("project_key"),
	}
}

// windowFilter is filter plus a window, applied only when a date is given.
func (h *Handler) windowFilter(r *http.Request) (capacity.Filter, error) {
	f := h.filter(r)
	q := r.URL.Query()
	if q.Get("start_date") == "" && q.Get("end_date") == "" {
		return f, nil
	}
	w, err := h.window(r)
	if err != nil {
		return capacity.Filter{}, err
	}
	f.Window = &w
	return f, nil
}

func boolQuery(r *http.Request, name string, def bool) (bool, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, &capacity.ValidationError{Field: name, Reason: "must be true or false"}
	}
	return b, nil
}

func intQuery(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, &capacity.ValidationError{Field: name, Reason: "must be a non-negative integer"}
	}
	return n, nil
}

func parseDateField(field, s string) (capacity.Date, error) {
	d, err := capacity.ParseDate(s)
	if err != nil {
		return capacity.Date{}, &capacity.ValidationError{Field: field, Reason: "must be a YYYY-MM-DD date"}
	}
	return d, nil
}

func parseOptionalDate(field string, s *string) (*capacity.Date, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := parseDateField(field, *s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
