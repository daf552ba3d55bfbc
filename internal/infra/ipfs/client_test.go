package ipfs

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mintdom "github.com/aaruvan/tokenchamp/internal/domain/mint"
)

func TestClient_Put(t *testing.T) {
	var gotQuery, gotFile, gotName, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		b, _ := io.ReadAll(f)
		gotFile, gotName, gotType = string(b), hdr.Filename, hdr.Header.Get("Content-Type")
		_, _ = w.Write([]byte("{\"Name\":\"x\",\"Hash\":\"bafyleaf\"}\n{\"Name\":\"\",\"Hash\":\"bafyroot\"}\n"))
	}))
	defer srv.Close()

	uri, err := NewClient(srv.URL, "", time.Second).Put(context.Background(), []byte("img"), "image/png", "abc123")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if uri != "ipfs://bafyroot" {
		t.Errorf("uri = %q", uri)
	}
	if gotQuery != "pin=true&cid-version=1" || gotFile != "img" || gotName != "abc123" || gotType != "image/png" {
		t.Errorf("query=%s file=%q name=%s type=%s", gotQuery, gotFile, gotName, gotType)
	}
}

func TestClient_PutErrors(t *testing.T) {
	tests := []struct {
		code      int
		retryable bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusServiceUnavailable, true},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", tt.code)
		}))
		_, err := NewClient(srv.URL, "", time.Second).Put(context.Background(), []byte("a"), "image/png", "h")
		srv.Close()
		if err == nil || mintdom.IsRetryable(err) != tt.retryable {
			t.Errorf("status %d: err = %v, retryable want %v", tt.code, err, tt.retryable)
		}
	}
}

func TestClient_EmptyHashIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{}\n"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", time.Second).Put(context.Background(), []byte("a"), "image/png", "h")
	if !mintdom.IsRetryable(err) {
		t.Errorf("err = %v, want retryable", err)
	}
}
