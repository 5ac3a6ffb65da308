package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"auditdesk.org/internal/admin"
	"auditdesk.org/internal/audit"
	"auditdesk.org/internal/auth"
	"auditdesk.org/internal/lifecycle"
	"auditdesk.org/internal/obs"
	"auditdesk.org/internal/store"
)

// envelope is the shape of every response body, success or failure.
type envelope struct {
	StatusCode int               `json:"statusCode"`
	Success    bool              `json:"success"`
	Message    string            `json:"message"`
	Data       any               `json:"data"`
	Errors     map[string]string `json:"errors,omitempty"`
	RequestID  string            `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respond(w http.ResponseWriter, r *http.Request, code int, msg string, data any) {
	writeJSON(w, code, envelope{
		StatusCode: code,
		Success:    code < http.StatusBadRequest,
		Message:    msg,
		Data:       data,
		RequestID:  audit.RequestIDFromContext(r.Context()),
	})
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeFieldErrors(w, r, code, msg, nil)
}

func writeFieldErrors(w http.ResponseWriter, r *http.Request, code int, msg string, fields map[string]string) {
	writeJSON(w, code, envelope{
		StatusCode: code,
		Message:    msg,
		Errors:     fields,
		RequestID:  audit.RequestIDFromContext(r.Context()),
	})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func routeNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, "route not found")
}

var errEmptyBody = errors.New("request body is required")

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleError maps the service error taxonomy onto status codes. Nothing
// below the HTTP boundary knows about statuses.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *admin.ValidationError
	switch {
	case errors.As(err, &verr):
		writeFieldErrors(w, r, http.StatusBadRequest, "Validation failed", verr.Fields)
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrConflict), errors.Is(err, lifecycle.ErrInvalidTransition):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, audit.ErrWriteFailure):
		logFailure(r, err)
		writeError(w, r, http.StatusInternalServerError, "An error occurred while logging the action")
	default:
		logFailure(r, err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func logFailure(r *http.Request, err error) {
	obs.Logger().WithError(err).WithFields(logrus.Fields{
		"request_id": audit.RequestIDFromContext(r.Context()),
		"method":     r.Method,
		"path":       r.URL.Path,
	}).Error("request_failed")
}
