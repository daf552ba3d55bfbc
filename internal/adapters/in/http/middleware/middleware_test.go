package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	fbauth "firebase.google.com/go/v4/auth"
)

type fakeVerifier struct {
	token *fbauth.Token
	err   error
	got   string
}

var _ TokenVerifier = (*fakeVerifier)(nil)

func (f *fakeVerifier) VerifyIDToken(_ context.Context, idToken string) (*fbauth.Token, error) {
	f.got = idToken
	return f.token, f.err
}

func TestOperatorAuth(t *testing.T) {
	var seenUID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUID, _ = CurrentUID(r)
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name     string
		verifier *fakeVerifier
		header   string
		want     int
		wantUID  string
	}{
		{"valid token", &fakeVerifier{token: &fbauth.Token{UID: "op-1", Claims: map[string]any{"email": "ops@example.com"}}}, "Bearer tok", http.StatusNoContent, "op-1"},
		{"missing header", &fakeVerifier{}, "", http.StatusUnauthorized, ""},
		{"empty bearer", &fakeVerifier{}, "Bearer  ", http.StatusUnauthorized, ""},
		{"rejected token", &fakeVerifier{err: errors.New("expired")}, "Bearer tok", http.StatusUnauthorized, ""},
		{"empty uid", &fakeVerifier{token: &fbauth.Token{}}, "Bearer tok", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seenUID = ""
			h := (&OperatorAuth{Verifier: tt.verifier}).Handler(next)
			req := httptest.NewRequest(http.MethodPost, "/winners", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if seenUID != tt.wantUID {
				t.Errorf("uid = %q, want %q", seenUID, tt.wantUID)
			}
		})
	}
}

func TestOperatorAuth_DisabledPassesThrough(t *testing.T) {
	called := false
	h := (&OperatorAuth{}).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/winners", nil))
	if !called {
		t.Error("next handler not called when auth is disabled")
	}
}

type countPanics struct{ n int }

func (c *countPanics) Inc() { c.n++ }

func TestRecover(t *testing.T) {
	panics := &countPanics{}
	h := Recover(panics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "boom") {
		t.Errorf("body leaks panic value: %s", rec.Body.String())
	}
	if panics.n != 1 {
		t.Errorf("panics counted = %d, want 1", panics.n)
	}
}

func TestRecover_AfterPartialWrite(t *testing.T) {
	h := Recover(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("\x89PNG"))
		panic("encoder blew up")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/winners/w1/qr.png", nil))
	if rec.Code != http.StatusOK || strings.Contains(rec.Body.String(), "internal server error") {
		t.Errorf("status = %d body = %q", rec.Code, rec.Body.String())
	}
}
