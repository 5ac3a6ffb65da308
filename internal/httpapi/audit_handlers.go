package httpapi

import (
	"net/http"
	"strconv"

	"auditdesk.org/internal/auth"
)

const maxAuditPage = 1000

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	a.guard(w, r, a.auditLogs, auth.RoleAdmin)
}

func (a *API) auditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fields := map[string]string{}
	limit, offset := 0, 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxAuditPage {
			fields["limit"] = "must be an integer between 1 and 1000"
		}
		limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			fields["offset"] = "must be a non-negative integer"
		}
		offset = n
	}
	if len(fields) > 0 {
		writeFieldErrors(w, r, http.StatusBadRequest, "Validation failed", fields)
		return
	}
	records, err := a.svc.AuditLogs(r.Context(), limit, offset)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Audit logs retrieved successfully", records)
}
