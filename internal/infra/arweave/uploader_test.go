package arweave

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mintdom "github.com/aaruvan/tokenchamp/internal/domain/mint"
)

func TestHTTPUploader_Put(t *testing.T) {
	var gotPath, gotAuth, gotType, gotHash string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotHash = r.Header.Get("X-Content-Sha256")
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"id":"abc","uri":"https://gateway.irys.xyz/abc"}`))
	}))
	defer srv.Close()

	u := NewHTTPUploader(srv.URL+"/", "secret", time.Second, "")
	uri, err := u.Put(context.Background(), []byte("png"), "image/png", "h1")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if uri != "https://gateway.irys.xyz/abc" {
		t.Errorf("uri = %q", uri)
	}
	if gotPath != "/upload/file" || gotAuth != "Bearer secret" || gotType != "image/png" || gotHash != "h1" || string(gotBody) != "png" {
		t.Errorf("request path=%s auth=%s type=%s hash=%s body=%q", gotPath, gotAuth, gotType, gotHash, gotBody)
	}

	if _, err := u.Put(context.Background(), []byte(`{}`), "application/json", "h2"); err != nil {
		t.Fatalf("Put(json) error = %v", err)
	}
	if gotPath != "/upload/json" {
		t.Errorf("json path = %s", gotPath)
	}
}

func TestHTTPUploader_URIFromID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"xyz"}`))
	}))
	defer srv.Close()

	uri, err := NewHTTPUploader(srv.URL, "", time.Second, "https://arweave.net/").Put(context.Background(), []byte("a"), "image/png", "h")
	if err != nil || uri != "https://arweave.net/xyz" {
		t.Errorf("Put() = %q, %v", uri, err)
	}
}

func TestHTTPUploader_ErrorClassification(t *testing.T) {
	tests := []struct {
		code      int
		retryable bool
	}{
		{http.StatusPaymentRequired, false},
		{http.StatusUnauthorized, false},
		{http.StatusRequestEntityTooLarge, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "err", tt.code)
		}))
		_, err := NewHTTPUploader(srv.URL, "", time.Second, "").Put(context.Background(), []byte("a"), "image/png", "h")
		srv.Close()

		if err == nil {
			t.Fatalf("status %d: expected error", tt.code)
		}
		if mintdom.IsRetryable(err) != tt.retryable {
			t.Errorf("status %d: IsRetryable = %v, want %v (%v)", tt.code, !tt.retryable, tt.retryable, err)
		}
	}
}

func TestHTTPUploader_NotConfigured(t *testing.T) {
	_, err := NewHTTPUploader("", "", time.Second, "").Put(context.Background(), []byte("a"), "image/png", "h")
	var perm *mintdom.PermanentStorageError
	if !errors.As(err, &perm) {
		t.Errorf("Put() error = %v, want PermanentStorageError", err)
	}
}

func TestHTTPUploader_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewHTTPUploader(url, "", time.Second, "").Put(context.Background(), []byte("a"), "image/png", "h")
	var tr *mintdom.TransientStorageError
	if !errors.As(err, &tr) {
		t.Errorf("Put() error = %v, want TransientStorageError", err)
	}
}
