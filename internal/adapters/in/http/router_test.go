package httpin

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewRouter_HealthAndMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# HELP champion_mint_attempts_total"))
	})
	srv := NewRouter(RouterDeps{Metrics: metrics})

	for _, path := range []string{"/healthz", "/metrics"} {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d", path, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/winners", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("winners without handler status = %d", rec.Code)
	}
}

func TestNewRouter_CORSPreflight(t *testing.T) {
	srv := NewRouter(RouterDeps{AllowedOrigins: []string{"https://ops.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/healthz", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://ops.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}
}
