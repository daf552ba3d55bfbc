// internal/adapters/in/http/middleware/auth.go
package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	fbauth "firebase.google.com/go/v4/auth"
)

// FirebaseAuthClient は firebase auth クライアントのエイリアス。
type FirebaseAuthClient = fbauth.Client

// TokenVerifier は *fbauth.Client が満たす最小 IF（テストで差し替える）。
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// context key は string を使わず、衝突回避のため独自型を使用（SA1029 対策）
type ctxKey struct{ name string }

var (
	ctxKeyUID   = ctxKey{name: "uid"}
	ctxKeyEmail = ctxKey{name: "email"}
)

// OperatorAuth は Authorization: Bearer <ID_TOKEN> を検証し、uid/email を context に詰める。
// Verifier が nil の場合は認証なしで素通しする（FIREBASE_PROJECT_ID 未設定のローカル運用）。
type OperatorAuth struct {
	Verifier TokenVerifier
}

func (m *OperatorAuth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil || m.Verifier == nil {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			http.Error(w, "unauthorized: missing bearer token", http.StatusUnauthorized)
			return
		}

		idToken := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if idToken == "" {
			http.Error(w, "unauthorized: empty bearer token", http.StatusUnauthorized)
			return
		}

		// Firebase ID トークン検証
		token, err := m.Verifier.VerifyIDToken(r.Context(), idToken)
		if err != nil {
			log.Printf("[auth] verify FAILED path=%s err=%v", r.URL.Path, err)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		uid := strings.TrimSpace(token.UID)
		if uid == "" {
			http.Error(w, "invalid uid in token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUID, uid)

		// email (optional)
		email := ""
		if emailRaw, ok := token.Claims["email"]; ok {
			if e, ok2 := emailRaw.(string); ok2 {
				email = strings.TrimSpace(e)
			}
		}
		if email != "" {
			ctx = context.WithValue(ctx, ctxKeyEmail, email)
		}

		log.Printf("[auth] path=%s uid=%s email=%s", r.URL.Path, uid, email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CurrentUID returns the verified operator uid, if any.
func CurrentUID(r *http.Request) (string, bool) {
	v, ok := r.Context().Value(ctxKeyUID).(string)
	return v, ok && v != ""
}

func CurrentEmail(r *http.Request) (string, bool) {
	v, ok := r.Context().Value(ctxKeyEmail).(string)
	return v, ok && v != ""
}
