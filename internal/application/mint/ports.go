// internal/application/mint/ports.go
package mint

import (
	"context"
	"time"

	mintdom "github.com/aaruvan/tokenchamp/internal/domain/mint"
	windom "github.com/aaruvan/tokenchamp/internal/domain/winner"
)

// Pipeline step names (logs / metrics / RetryCeilingExceededError.Step).
const (
	StepFetch          = "fetch"
	StepUploadImage    = "upload_image"
	StepUploadMetadata = "upload_metadata"
	StepMint           = "mint"
)

// ============================================================
// 外部境界ポート
// ============================================================

// ContentFetcher は source_image_url からバイト列を取得する。
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) (mintdom.Content, error)
}

// BlobStore は permanent storage への物理 upload を行うバックエンド
// （arweave / ipfs / gcs / s3）。
// エラーは TransientStorageError / PermanentStorageError で返すこと。
type BlobStore interface {
	Name() string
	Put(ctx context.Context, data []byte, contentType, contentHash string) (uri string, err error)
	// PublicPrefix is the URI prefix under which this backend serves content.
	PublicPrefix() string
}

// UploadCache は content_hash → uri の永続キャッシュ。
type UploadCache interface {
	Lookup(ctx context.Context, contentHash string) (mintdom.UploadResult, bool, error)
	Remember(ctx context.Context, res mintdom.UploadResult) error
}

// Uploader is the dedup-aware upload surface used by the pipeline.
type Uploader interface {
	Upload(ctx context.Context, data []byte, contentType string) (mintdom.UploadResult, error)
	IsPermanent(url string) bool
}

// ChainClient はチェーン境界。
//   - ValidateRecipient はネットワークに触れない
//   - PrepareMint は署名済み tx を作るだけで送信しない
//   - SubmitMint は同じ署名済みバイト列を何度送っても二重 mint にならない
type ChainClient interface {
	ValidateRecipient(address string) error
	PrepareMint(ctx context.Context, req mintdom.MintRequest) (windom.PendingMint, error)
	SubmitMint(ctx context.Context, p windom.PendingMint) error
	SignatureStatus(ctx context.Context, signature string) (mintdom.SignatureStatus, error)
	BlockhashValid(ctx context.Context, blockhash string) (bool, error)
}

// PendingMintRecorder persists the signed transaction before submission.
type PendingMintRecorder interface {
	RecordPendingMint(ctx context.Context, att *mintdom.MintAttempt, p windom.PendingMint) error
	ClearPendingMint(ctx context.Context, att *mintdom.MintAttempt, signature string) error
}

// FailureNotifier は運用者対応が必要な失敗を通知する。
type FailureNotifier interface {
	NotifyFailure(ctx context.Context, rec windom.WinnerRecord, cause error) error
}

// Metrics receives pipeline observations.
type Metrics interface {
	AttemptStarted()
	StepFinished(step, outcome string, d time.Duration)
	UploadServed(cached bool)
	MintFinished(status mintdom.ResultStatus)
}

type nopMetrics struct{}

func (nopMetrics) AttemptStarted()                            {}
func (nopMetrics) StepFinished(string, string, time.Duration) {}
func (nopMetrics) UploadServed(bool)                          {}
func (nopMetrics) MintFinished(mintdom.ResultStatus)          {}
