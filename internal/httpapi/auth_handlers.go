package httpapi

import (
	"errors"
	"net/http"

	"auditdesk.org/internal/admin"
	"auditdesk.org/internal/auth"
)

type sessionResponse struct {
	User         auth.PublicUser `json:"user"`
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (a *API) handleAuth(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, apiPrefix+"/auth")
	if len(parts) != 1 {
		routeNotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	switch parts[0] {
	case "signup":
		a.signup(w, r)
	case "signin":
		a.signin(w, r)
	case "refresh-token":
		a.refresh(w, r)
	case "signout":
		a.guard(w, r, a.signout)
	case "register":
		a.guard(w, r, a.register, auth.RoleAdmin)
	default:
		routeNotFound(w, r)
	}
}

func (a *API) signup(w http.ResponseWriter, r *http.Request) {
	var in admin.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	u, err := a.svc.Signup(r.Context(), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, "Admin registered successfully", u)
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var in admin.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	u, err := a.svc.Register(r.Context(), principal(r), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, "User registered successfully", u)
}

func (a *API) signin(w http.ResponseWriter, r *http.Request) {
	var in admin.SigninInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := a.svc.Signin(r.Context(), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	a.setSessionCookies(w, sess.Tokens)
	respond(w, r, http.StatusOK, "User logged in successfully", sessionResponse{
		User:         sess.User,
		AccessToken:  sess.Tokens.AccessToken,
		RefreshToken: sess.Tokens.RefreshToken,
	})
}

// refresh reads the refresh token from its cookie, falling back to the body.
func (a *API) refresh(w http.ResponseWriter, r *http.Request) {
	var raw string
	if c, err := r.Cookie(refreshCookie); err == nil {
		raw = c.Value
	}
	if raw == "" {
		var in refreshRequest
		err := decodeJSON(w, r, &in)
		if err != nil && !errors.Is(err, errEmptyBody) {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		raw = in.RefreshToken
	}
	sess, err := a.svc.Refresh(r.Context(), raw)
	if err != nil {
		handleError(w, r, err)
		return
	}
	a.setSessionCookies(w, sess.Tokens)
	respond(w, r, http.StatusOK, "Access token refreshed", sessionResponse{
		User:         sess.User,
		AccessToken:  sess.Tokens.AccessToken,
		RefreshToken: sess.Tokens.RefreshToken,
	})
}

func (a *API) signout(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Signout(r.Context(), principal(r)); err != nil {
		handleError(w, r, err)
		return
	}
	a.clearSessionCookies(w)
	respond(w, r, http.StatusOK, "User logged out successfully", nil)
}

// principal returns the identity withAuth attached. Handlers only run
// behind withAuth, so a missing principal is the zero value.
func principal(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFromContext(r.Context())
	return p
}
