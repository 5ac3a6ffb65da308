package obs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                               "/",
		"/metrics":                       "/metrics",
		"/api/v1/users":                  "/api/v1/users",
		"/api/v1/users/current-user":     "/api/v1/users/current-user",
		"/api/v1/users/8c1f/assign-role": "/api/v1/users/:id/assign-role",
		"/api/v1/users/permanent/8c1f":   "/api/v1/users/permanent/:id",
		"/api/v1/project/restore/abc":    "/api/v1/project/restore/:id",
		"/api/v1/project/abc?x=1":        "/api/v1/project/:id",
		"/api/v1/audit-logs?limit=10":    "/api/v1/audit-logs",
		"/api/v1/auth/signin":            "/api/v1/auth/signin",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestInstrumentCountsRequests(t *testing.T) {
	Init()
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/project/:id", "418"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/project/p-1", nil))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/project/:id", "418"))
	if after-before != 1 {
		t.Fatalf("expected counter to increase by 1, got %v", after-before)
	}
}

func TestAuditRecordedCounter(t *testing.T) {
	Init()
	before := testutil.ToFloat64(auditRecordsTotal.WithLabelValues("SIGNIN_USER", "written"))
	AuditRecorded("SIGNIN_USER", "written")
	if got := testutil.ToFloat64(auditRecordsTotal.WithLabelValues("SIGNIN_USER", "written")); got-before != 1 {
		t.Fatalf("unexpected counter delta %v", got-before)
	}
}

func TestLogRequestWritesJSON(t *testing.T) {
	logger := Logger()
	original := logger.Out
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	LogRequest(logrus.Fields{"method": "GET", "path": "/x", "status": 503})

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry); err != nil {
		t.Fatalf("log is not valid JSON: %v", err)
	}
	if entry["msg"] != "request_complete" || entry["level"] != "error" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatal("expected ts key")
	}
}
