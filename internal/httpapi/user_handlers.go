package httpapi

import (
	"fmt"
	"net/http"

	"auditdesk.org/internal/admin"
	"auditdesk.org/internal/auth"
)

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, apiPrefix+"/users")
	switch {
	case len(parts) == 0:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.guard(w, r, a.listUsers, auth.RoleAdmin, auth.RoleManager)

	case len(parts) == 1 && parts[0] == "current-user":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.guard(w, r, a.currentUser)

	case len(parts) == 1:
		id := parts[0]
		switch r.Method {
		case http.MethodGet:
			a.guard(w, r, func(w http.ResponseWriter, r *http.Request) { a.getUser(w, r, id) }, auth.RoleAdmin)
		case http.MethodPut:
			a.guard(w, r, func(w http.ResponseWriter, r *http.Request) { a.updateUser(w, r, id) }, auth.RoleAdmin)
		case http.MethodDelete:
			a.guard(w, r, func(w http.ResponseWriter, r *http.Request) { a.softDeleteUser(w, r, id) }, auth.RoleAdmin)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
		}

	case len(parts) == 2 && parts[0] == "permanent":
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, r, http.MethodDelete)
			return
		}
		id := parts[1]
		a.guard(w, r, func(w http.ResponseWriter, r *http.Request) { a.purgeUser(w, r, id) }, auth.RoleAdmin)

	case len(parts) == 2 && parts[0] == "restore":
		if r.Method != http.MethodPatch {
			methodNotAllowed(w, r, http.MethodPatch)
			return
		}
		id := parts[1]
		a.guard(w, r, func(w http.ResponseWriter, r *http.Request) { a.restoreUser(w, r, id) }, auth.RoleAdmin)

	case len(parts) == 2 && parts[1] == "assign-role":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		id := parts[0]
		a.guard(w, r, func(w http.ResponseWriter, r *http.Request) { a.assignRole(w, r, id) }, auth.RoleAdmin)

	case len(parts) == 2 && parts[1] == "revoke-role":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		id := parts[0]
		a.guard(w, r, func(w http.ResponseWriter, r *http.Request) { a.revokeRole(w, r, id) }, auth.RoleAdmin)

	default:
		routeNotFound(w, r)
	}
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.svc.ListUsers(r.Context(), principal(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Users found successfully", users)
}

func (a *API) currentUser(w http.ResponseWriter, r *http.Request) {
	u, err := a.svc.CurrentUser(r.Context(), principal(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Current user found successfully", u)
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request, id string) {
	u, err := a.svc.GetUser(r.Context(), principal(r), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "User found successfully", u)
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request, id string) {
	var in admin.UpdateUserInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	u, err := a.svc.UpdateUser(r.Context(), principal(r), id, in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "User updated successfully", u)
}

func (a *API) softDeleteUser(w http.ResponseWriter, r *http.Request, id string) {
	u, err := a.svc.SoftDeleteUser(r.Context(), principal(r), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "User soft deleted successfully", u)
}

func (a *API) purgeUser(w http.ResponseWriter, r *http.Request, id string) {
	u, err := a.svc.PermanentlyDeleteUser(r.Context(), principal(r), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "User permanently deleted successfully", u)
}

func (a *API) restoreUser(w http.ResponseWriter, r *http.Request, id string) {
	u, err := a.svc.RestoreUser(r.Context(), principal(r), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "User restored successfully", u)
}

func (a *API) assignRole(w http.ResponseWriter, r *http.Request, id string) {
	var in admin.RoleInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	u, err := a.svc.AssignRole(r.Context(), principal(r), id, in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, fmt.Sprintf("Role assigned successfully as %s", u.Role), u)
}

func (a *API) revokeRole(w http.ResponseWriter, r *http.Request, id string) {
	u, err := a.svc.RevokeRole(r.Context(), principal(r), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Role revoked and set to Employee", u)
}
