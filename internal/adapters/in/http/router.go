// internal/adapters/in/http/router.go
package httpin

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aaruvan/tokenchamp/internal/adapters/in/http/handlers"
	"github.com/aaruvan/tokenchamp/internal/adapters/in/http/middleware"
)

// RouterDeps collects the handlers and middleware injected from the container.
type RouterDeps struct {
	Winners *handlers.WinnerHandler

	// nil なら認証なし
	Auth *middleware.OperatorAuth

	// /metrics（nil なら登録しない）
	Metrics http.Handler
	Panics  middleware.PanicCounter

	AllowedOrigins []string
}

// NewRouter builds the HTTP surface.
// チェーン順: CORS → Recover → routes（panic 時のレスポンスにも CORS ヘッダを付ける）
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.CORS(deps.AllowedOrigins))
	r.Use(middleware.Recover(deps.Panics))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	if deps.Winners != nil {
		var protect func(http.Handler) http.Handler
		if deps.Auth != nil {
			protect = deps.Auth.Handler
		}
		deps.Winners.Register(r, protect)
	}

	return r
}
