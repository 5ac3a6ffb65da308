// Package httpapi is the HTTP boundary: routing, session resolution, role
// guards, the response envelope and the gRPC health server.
package httpapi

import (
	"context"
	"net/http"
	"strings"

	"auditdesk.org/internal/admin"
	"auditdesk.org/internal/auth"
	"auditdesk.org/internal/obs"
)

const apiPrefix = "/api/v1"

// ReadyProbe adapts a ping function into a readiness check.
type ReadyProbe func(ctx context.Context) error

func (p ReadyProbe) Check(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p(ctx)
}

// API is the HTTP layer over the admin service.
type API struct {
	mux      *http.ServeMux
	svc      *admin.Service
	resolver *auth.Resolver
	ready    ReadyProbe
	version  string

	cookieSecure bool
	origins      []string
	rateBurst    int
	ratePerSec   float64
}

// Option configures an API.
type Option func(*API)

func WithVersion(v string) Option { return func(a *API) { a.version = v } }

// WithCookieSecure controls the Secure flag on session cookies.
func WithCookieSecure(secure bool) Option { return func(a *API) { a.cookieSecure = secure } }

// WithCORSOrigins allows browser requests from origins besides localhost.
func WithCORSOrigins(origins []string) Option { return func(a *API) { a.origins = origins } }

// WithRateLimit sets the per-client budget for the /auth routes.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(a *API) {
		if perSecond > 0 && burst > 0 {
			a.ratePerSec = perSecond
			a.rateBurst = burst
		}
	}
}

func New(svc *admin.Service, opts ...Option) *API {
	a := &API{
		mux:          http.NewServeMux(),
		svc:          svc,
		resolver:     auth.NewResolver(svc.Tokens(), svc),
		ready:        ReadyProbe(svc.Ping),
		version:      "dev",
		cookieSecure: true,
		rateBurst:    10,
		ratePerSec:   5,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.Handle(apiPrefix+"/auth/", RateLimit(http.HandlerFunc(a.handleAuth), a.rateBurst, a.ratePerSec))
	a.mux.HandleFunc(apiPrefix+"/users", a.handleUsers)
	a.mux.HandleFunc(apiPrefix+"/users/", a.handleUsers)
	a.mux.HandleFunc(apiPrefix+"/project", a.handleProjects)
	a.mux.HandleFunc(apiPrefix+"/project/", a.handleProjects)
	a.mux.HandleFunc(apiPrefix+"/audit-logs", a.handleAuditLogs)

	a.mux.HandleFunc("/", routeNotFound)
	return a
}

// Handler returns the fully wrapped handler, outermost middleware first.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.withAuth(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h, a.origins...)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.ready.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

// guard runs h when the resolved principal holds one of roles. No roles
// means any authenticated principal.
func (a *API) guard(w http.ResponseWriter, r *http.Request, h http.HandlerFunc, roles ...auth.Role) {
	RequireRoles(roles...)(h).ServeHTTP(w, r)
}

// splitPath returns the path segments below prefix.
func splitPath(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}
