// internal/adapters/in/http/middleware/recover.go
package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5"
)

// PanicCounter は recover した panic の数を数える（prometheus.Counter を想定）。
type PanicCounter interface {
	Inc()
}

// Recover turns a handler panic into a 500 JSON response.
// ログには winner id（/winners/{id}/... のとき）を残す。レスポンスに panic の中身は出さない。
// ※ CORS は外側で付ける（チェーン順が重要）
func Recover(panics PanicCounter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tw := &trackingWriter{ResponseWriter: w}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				if panics != nil {
					panics.Inc()
				}
				log.Printf("[recover] PANIC method=%s path=%s winner=%s: %v\n%s",
					r.Method, r.URL.Path, chi.URLParam(r, "id"), rec, debug.Stack())

				// QR 画像などを書きかけていたら、本文を継ぎ足さない
				if tw.wroteHeader {
					return
				}
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"internal server error"}`))
			}()

			next.ServeHTTP(tw, r)
		})
	}
}

type trackingWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (t *trackingWriter) WriteHeader(code int) {
	t.wroteHeader = true
	t.ResponseWriter.WriteHeader(code)
}

func (t *trackingWriter) Write(b []byte) (int, error) {
	t.wroteHeader = true
	return t.ResponseWriter.Write(b)
}

func (t *trackingWriter) Unwrap() http.ResponseWriter { return t.ResponseWriter }
