package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"auditdesk.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "

	accessCookie  = "accessToken"
	refreshCookie = "refreshToken"
)

var publicPaths = []string{
	apiPrefix + "/auth/signup",
	apiPrefix + "/auth/signin",
	apiPrefix + "/auth/refresh-token",
	"/metrics",
	"/healthz",
	"/readyz",
}

// withAuth resolves the session for every non-public path. A request that
// fails resolution never reaches a handler.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token := extractToken(r)
		principal, err := a.resolver.Resolve(r.Context(), token)
		if err != nil {
			var uerr *auth.UnauthorizedError
			if errors.As(err, &uerr) {
				writeError(w, r, http.StatusUnauthorized, uerr.Reason)
				return
			}
			logFailure(r, err)
			writeError(w, r, http.StatusInternalServerError, "authentication error")
			return
		}

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRoles admits principals whose role is in roles; an empty list
// admits any authenticated principal.
func RequireRoles(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="auditdesk"`)
				writeError(w, r, http.StatusUnauthorized, "Unauthorized request: No token provided")
				return
			}
			if err := auth.Authorize(p, roles...); err != nil {
				writeError(w, r, http.StatusForbidden, "Access denied: Unauthorized request")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractToken prefers the session cookie over the Authorization header.
func extractToken(r *http.Request) string {
	if c, err := r.Cookie(accessCookie); err == nil && c.Value != "" {
		return c.Value
	}
	token, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		return ""
	}
	return token
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	path = strings.TrimSuffix(path, "/")
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

func (a *API) sessionCookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (a *API) setSessionCookies(w http.ResponseWriter, pair auth.TokenPair) {
	tokens := a.svc.Tokens()
	http.SetCookie(w, a.sessionCookie(accessCookie, pair.AccessToken, tokens.AccessTTL()))
	http.SetCookie(w, a.sessionCookie(refreshCookie, pair.RefreshToken, tokens.RefreshTTL()))
}

func (a *API) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{accessCookie, refreshCookie} {
		c := a.sessionCookie(name, "", 0)
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}
