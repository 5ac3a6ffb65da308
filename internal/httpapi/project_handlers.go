package httpapi

import (
	"net/http"

	"auditdesk.org/internal/admin"
	"auditdesk.org/internal/auth"
)

func (a *API) handleProjects(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, apiPrefix+"/project")
	switch {
	case len(parts) == 0:
		switch r.Method {
		case http.MethodGet:
			a.guard(w, r, a.listProjects)
		case http.MethodPost:
			a.guard(w, r, a.createProject, auth.RoleAdmin)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		}

	case len(parts) == 1:
		id := parts[0]
		switch r.Method {
		case http.MethodGet:
			a.guard(w, r, func(w http.ResponseWriter, r *http.Request) { a.getProject(w, r, id) })
		case http.MethodPut:
			a.guard(w, r, func(w http.ResponseWriter, r *http.Request) { a.updateProject(w, r, id) }, auth.RoleAdmin)
		case http.MethodDelete:
			a.guard(w, r, func(w http.ResponseWriter, r *http.Request) { a.softDeleteProject(w, r, id) }, auth.RoleAdmin)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
		}

	case len(parts) == 2 && parts[0] == "permanent":
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, r, http.MethodDelete)
			return
		}
		id := parts[1]
		a.guard(w, r, func(w http.ResponseWriter, r *http.Request) { a.purgeProject(w, r, id) }, auth.RoleAdmin)

	case len(parts) == 2 && parts[0] == "restore":
		if r.Method != http.MethodPatch {
			methodNotAllowed(w, r, http.MethodPatch)
			return
		}
		id := parts[1]
		a.guard(w, r, func(w http.ResponseWriter, r *http.Request) { a.restoreProject(w, r, id) }, auth.RoleAdmin)

	default:
		routeNotFound(w, r)
	}
}

func (a *API) createProject(w http.ResponseWriter, r *http.Request) {
	var in admin.CreateProjectInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	d, err := a.svc.CreateProject(r.Context(), principal(r), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, "Project created successfully", d)
}

func (a *API) listProjects(w http.ResponseWriter, r *http.Request) {
	list, err := a.svc.ListProjects(r.Context(), principal(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Projects retrieved successfully", list)
}

func (a *API) getProject(w http.ResponseWriter, r *http.Request, id string) {
	d, err := a.svc.GetProject(r.Context(), principal(r), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Project retrieved successfully", d)
}

func (a *API) updateProject(w http.ResponseWriter, r *http.Request, id string) {
	var in admin.UpdateProjectInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	d, err := a.svc.UpdateProject(r.Context(), principal(r), id, in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Project updated successfully", d)
}

func (a *API) softDeleteProject(w http.ResponseWriter, r *http.Request, id string) {
	p, err := a.svc.SoftDeleteProject(r.Context(), principal(r), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Project soft deleted successfully", p)
}

func (a *API) purgeProject(w http.ResponseWriter, r *http.Request, id string) {
	p, err := a.svc.PermanentlyDeleteProject(r.Context(), principal(r), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Project permanently deleted successfully", p)
}

func (a *API) restoreProject(w http.ResponseWriter, r *http.Request, id string) {
	p, err := a.svc.RestoreProject(r.Context(), principal(r), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Project restored successfully", p)
}
