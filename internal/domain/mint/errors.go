// internal/domain/mint/errors.go
package mint

import (
	"context"
	"errors"
	"fmt"
)

// ------------------------------------------------------
// Error taxonomy
// ------------------------------------------------------
//
// 各エラー型は Retryable() を持つ。再試行可否の判定は IsRetryable のみを使うこと。

type retryable interface {
	Retryable() bool
}

// FetchError: 元画像の取得に失敗。
// Temporary=true はネットワーク断 / タイムアウト / 408・429・5xx。
type FetchError struct {
	URL        string
	StatusCode int
	Temporary  bool
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}
func (e *FetchError) Unwrap() error   { return e.Err }
func (e *FetchError) Retryable() bool { return e.Temporary }

// TransientStorageError: permanent storage への upload が一時的に失敗。
type TransientStorageError struct {
	Backend string
	Err     error
}

func (e *TransientStorageError) Error() string {
	return fmt.Sprintf("storage %s: transient: %v", e.Backend, e.Err)
}
func (e *TransientStorageError) Unwrap() error   { return e.Err }
func (e *TransientStorageError) Retryable() bool { return true }

// PermanentStorageError: 認証エラー・残高不足・サイズ超過など。
type PermanentStorageError struct {
	Backend string
	Err     error
}

func (e *PermanentStorageError) Error() string {
	return fmt.Sprintf("storage %s: permanent: %v", e.Backend, e.Err)
}
func (e *PermanentStorageError) Unwrap() error   { return e.Err }
func (e *PermanentStorageError) Retryable() bool { return false }

// InvalidRecipientError: 受取アドレスがチェーン上のアドレスとして不正。
type InvalidRecipientError struct {
	Address string
	Reason  string
}

func (e *InvalidRecipientError) Error() string {
	return fmt.Sprintf("invalid recipient address %q: %s", e.Address, e.Reason)
}
func (e *InvalidRecipientError) Retryable() bool { return false }

// TransientChainError: RPC 断・タイムアウト・未確定など。
type TransientChainError struct {
	Op  string
	Err error
}

func (e *TransientChainError) Error() string {
	return fmt.Sprintf("chain %s: transient: %v", e.Op, e.Err)
}
func (e *TransientChainError) Unwrap() error   { return e.Err }
func (e *TransientChainError) Retryable() bool { return true }

// RejectedTransactionError: チェーンが tx を明示的に拒否した。
type RejectedTransactionError struct {
	Signature string
	Err       error
}

func (e *RejectedTransactionError) Error() string {
	if e.Signature != "" {
		return fmt.Sprintf("transaction %s rejected: %v", e.Signature, e.Err)
	}
	return fmt.Sprintf("transaction rejected: %v", e.Err)
}
func (e *RejectedTransactionError) Unwrap() error   { return e.Err }
func (e *RejectedTransactionError) Retryable() bool { return false }

// AlreadyMintedError: 既に Minted のレコードに対する mint 要求。
// エラーではなく「成功済み」を意味するので、呼び出し側は保存済み token を返すこと。
type AlreadyMintedError struct {
	WinnerID  string
	TokenID   string
	Signature string
}

func (e *AlreadyMintedError) Error() string {
	return fmt.Sprintf("winner %s already minted as %s", e.WinnerID, e.TokenID)
}
func (e *AlreadyMintedError) Retryable() bool { return false }

// RetryCeilingExceededError: 同一ステップでの再試行上限に到達。
type RetryCeilingExceededError struct {
	Step     string
	Attempts int
	Last     error
}

func (e *RetryCeilingExceededError) Error() string {
	return fmt.Sprintf("%s: gave up after %d attempts: %v", e.Step, e.Attempts, e.Last)
}
func (e *RetryCeilingExceededError) Unwrap() error   { return e.Last }
func (e *RetryCeilingExceededError) Retryable() bool { return false }

// ------------------------------------------------------
// Classification
// ------------------------------------------------------

// IsRetryable reports whether the same step may be tried again automatically.
// A bare deadline error (per-call timeout) counts as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Disposition is the user-facing classification of a failed mint.
type Disposition string

const (
	DispositionNone           Disposition = ""
	DispositionRetryLater     Disposition = "retry_later"
	DispositionOperatorAction Disposition = "operator_action"
)

// DispositionOf: 「時間をおいて再実行」か「運用者の対応が必要」か。
func DispositionOf(err error) Disposition {
	if err == nil {
		return DispositionNone
	}
	var ceiling *RetryCeilingExceededError
	if errors.As(err, &ceiling) {
		return DispositionRetryLater
	}
	if IsRetryable(err) {
		return DispositionRetryLater
	}
	return DispositionOperatorAction
}

// Describe returns a short human-readable reason for err.
func Describe(err error) string {
	switch DispositionOf(err) {
	case DispositionRetryLater:
		return "temporary failure, try again later: " + err.Error()
	case DispositionOperatorAction:
		return "needs operator action: " + err.Error()
	default:
		return ""
	}
}

// StorageStatusError maps a non-2xx storage API response to the taxonomy.
// 408 / 429 / 5xx は一時的、それ以外（401, 402 残高不足, 413 など）は恒久。
func StorageStatusError(backend string, code int, body string) error {
	if len(body) > 512 {
		body = body[:512]
	}
	err := fmt.Errorf("status=%d body=%s", code, body)
	if code == 408 || code == 429 || code >= 500 {
		return &TransientStorageError{Backend: backend, Err: err}
	}
	return &PermanentStorageError{Backend: backend, Err: err}
}
