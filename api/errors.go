package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/warp/capacity-engine/capacity"
)

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// statusFor maps domain errors to HTTP status codes:
//
//	validation                 -> 400
//	not found                  -> 404
//	duplicate fte assignment   -> 409
//	upstream / no directory    -> 503
//	anything else              -> 500
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, capacity.ErrDuplicateAssignment):
		return http.StatusConflict, "duplicate_assignment"
	case capacity.IsValidation(err):
		return http.StatusBadRequest, "validation_failed"
	case capacity.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case capacity.IsUpstreamUnavailable(err):
		return http.StatusServiceUnavailable, "upstream_unavailable"
	case errors.Is(err, capacity.ErrNoDirectory):
		return http.StatusServiceUnavailable, "directory_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// respondError writes err with its mapped status. Internal errors are logged
// and their details withheld from the client.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status, code := statusFor(err)
	resp := ErrorResponse{Error: message, Code: code}

	var upstream *capacity.UpstreamError
	switch {
	case status == http.StatusInternalServerError:
		h.requestLog(r).WithError(err).Error(message)
	case errors.As(err, &upstream):
		attempts := make([]string, len(upstream.Attempts))
		for i, a := range upstream.Attempts {
			attempts[i] = a.Error()
		}
		resp.Details = map[string]any{
			"service":  upstream.Service,
			"reason":   upstream.Reason,
			"attempts": attempts,
		}
	default:
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func (h *Handler) requestLog(r *http.Request) logrus.FieldLogger {
	return h.log.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
