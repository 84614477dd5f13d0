package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"tally/internal/services"
	"tally/internal/storage"
)

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "tally.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func newTestServerWith(t *testing.T, repo *storage.SQLiteRepository, opts Options) *Server {
	t.Helper()

	s := NewServer("127.0.0.1:0", services.NewLedgerService(repo, nil), services.NewReportService(repo), repo, opts)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return newTestServerWith(t, newTestRepo(t), Options{
		DefaultOwner: "tester",
		// High enough that tests never trip it by accident.
		RateLimitPerMinute: 100000,
	})
}

// request runs one request through the full middleware chain.
func request(t *testing.T, s *Server, method, path, owner, body string) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if owner != "" {
		req.Header.Set("X-Owner", owner)
	}
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	rec := request(t, s, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "ok" {
		t.Fatalf("body = %q, want %q", got, "ok")
	}
}

func TestReadyz(t *testing.T) {
	t.Run("storage reachable", func(t *testing.T) {
		s := newTestServer(t)

		rec := request(t, s, http.MethodGet, "/readyz", "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if got := rec.Body.String(); got != "ready" {
			t.Fatalf("body = %q, want %q", got, "ready")
		}
	})

	t.Run("storage down", func(t *testing.T) {
		repo := newTestRepo(t)
		s := newTestServerWith(t, repo, Options{DefaultOwner: "tester", RateLimitPerMinute: 100000})

		if err := repo.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}

		rec := request(t, s, http.MethodGet, "/readyz", "", "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rec.Code)
		}
	})
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t)

	// Generate some traffic first.
	request(t, s, http.MethodGet, "/healthz", "", "")
	request(t, s, http.MethodGet, "/healthz", "", "")

	rec := request(t, s, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var m map[string]any
	decodeInto(t, rec, &m)
	total, ok := m["requests_total"].(float64)
	if !ok {
		t.Fatalf("requests_total missing from %v", m)
	}
	if total < 2 {
		t.Fatalf("requests_total = %v, want >= 2", total)
	}
	if _, ok := m["rate_limit_hits_total"]; !ok {
		t.Fatalf("rate_limit_hits_total missing from %v", m)
	}
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(t)

	rec := request(t, s, http.MethodGet, "/healthz", "", "")
	cases := []struct {
		header string
		want   string
	}{
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "DENY"},
		{"Referrer-Policy", "strict-origin-when-cross-origin"},
	}
	for _, c := range cases {
		if got := rec.Header().Get(c.header); got != c.want {
			t.Errorf("%s = %q, want %q", c.header, got, c.want)
		}
	}
}

func TestRateLimitAppliesToWritesOnly(t *testing.T) {
	s := newTestServerWith(t, newTestRepo(t), Options{
		DefaultOwner:       "tester",
		RateLimitPerMinute: 2,
	})

	// Two writes pass, the third trips the limiter.
	for i := 0; i < 2; i++ {
		rec := request(t, s, http.MethodPost, "/api/v1/categories", "", `{"name":"cat"}`)
		if rec.Code == http.StatusTooManyRequests {
			t.Fatalf("write %d rate limited too early", i+1)
		}
	}
	rec := request(t, s, http.MethodPost, "/api/v1/categories", "", `{"name":"another"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third write status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("Retry-After = %q, want %q", got, "60")
	}

	// Reads stay unthrottled.
	for i := 0; i < 5; i++ {
		rec := request(t, s, http.MethodGet, "/api/v1/categories", "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("read %d status = %d, want 200", i+1, rec.Code)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		method string
		path   string
		allow  string
	}{
		{http.MethodPatch, "/api/v1/categories", "GET, POST"},
		{http.MethodPost, "/api/v1/categories/some-id", "GET, PUT, DELETE"},
		{http.MethodPost, "/api/v1/report", "GET"},
		{http.MethodGet, "/api/v1/payments/some-id", "DELETE"},
		{http.MethodPost, "/metrics", "GET"},
	}
	for i, c := range cases {
		rec := request(t, s, c.method, c.path, "", "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("case %d: status = %d, want 405", i, rec.Code)
		}
		if got := rec.Header().Get("Allow"); got != c.allow {
			t.Fatalf("case %d: Allow = %q, want %q", i, got, c.allow)
		}
	}
}

func TestUnknownResourcePaths(t *testing.T) {
	s := newTestServer(t)

	paths := []string{
		"/api/v1/entries/",
		"/api/v1/entries/id/unknown",
		"/api/v1/entries/id/payments/extra",
		"/api/v1/categories/",
		"/api/v1/payments/",
	}
	for _, p := range paths {
		rec := request(t, s, http.MethodGet, p, "", "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("path %s: status = %d, want 404", p, rec.Code)
		}
	}
}

func TestOwnerIsolation(t *testing.T) {
	s := newTestServer(t)

	rec := request(t, s, http.MethodPost, "/api/v1/categories", "alice", `{"name":"Food"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", rec.Code)
	}
	var created categoryResponse
	decodeInto(t, rec, &created)
	if created.Owner != "alice" {
		t.Fatalf("owner = %q, want %q", created.Owner, "alice")
	}

	var listing struct {
		Count int `json:"count"`
	}

	rec = request(t, s, http.MethodGet, "/api/v1/categories", "bob", "")
	decodeInto(t, rec, &listing)
	if listing.Count != 0 {
		t.Fatalf("bob sees %d categories, want 0", listing.Count)
	}

	rec = request(t, s, http.MethodGet, "/api/v1/categories", "alice", "")
	decodeInto(t, rec, &listing)
	if listing.Count != 1 {
		t.Fatalf("alice sees %d categories, want 1", listing.Count)
	}

	// No header falls back to the configured default owner.
	rec = request(t, s, http.MethodPost, "/api/v1/categories", "", `{"name":"Rent"}`)
	decodeInto(t, rec, &created)
	if created.Owner != "tester" {
		t.Fatalf("default owner = %q, want %q", created.Owner, "tester")
	}
}
