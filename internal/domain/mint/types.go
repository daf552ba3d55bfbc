// internal/domain/mint/types.go
package mint

import (
	"time"

	"github.com/aaruvan/tokenchamp/internal/domain/winner"
)

// Content is a fetched payload.
type Content struct {
	Data        []byte
	ContentType string
	SourceURL   string
}

// UploadResult: permanent storage へ保存した結果。
// Cached=true のときは物理 upload を行っていない。
type UploadResult struct {
	URI         string `json:"uri"`
	ContentHash string `json:"content_hash"`
	Size        int    `json:"size"`
	ContentType string `json:"content_type"`
	Cached      bool   `json:"cached"`
}

// ------------------------------------------------------
// NFT metadata document (Metaplex 互換 JSON)
// ------------------------------------------------------
// フィールド順 = JSON のキー順。並べ替えないこと（出力のバイト一致に影響する）。

type MetadataDocument struct {
	Name                 string             `json:"name"`
	Symbol               string             `json:"symbol"`
	Description          string             `json:"description"`
	SellerFeeBasisPoints int                `json:"seller_fee_basis_points"`
	Image                string             `json:"image"`
	Attributes           []winner.Attribute `json:"attributes"`
	Properties           MetadataProperties `json:"properties"`
}

type MetadataProperties struct {
	Category string         `json:"category"`
	Files    []MetadataFile `json:"files"`
}

type MetadataFile struct {
	URI  string `json:"uri"`
	Type string `json:"type"`
}

// ------------------------------------------------------
// Chain boundary
// ------------------------------------------------------

type MintRequest struct {
	WinnerID         string
	MetadataURI      string
	Name             string
	Symbol           string
	RecipientAddress string
}

type MintResult struct {
	TokenID   string `json:"token_id"`
	Signature string `json:"transaction_signature"`
}

// ChainStatus is the result of a signature status lookup.
type ChainStatus string

const (
	StatusConfirmed ChainStatus = "confirmed"
	StatusPending   ChainStatus = "pending"
	StatusNotFound  ChainStatus = "not_found"
	// StatusFailed: landed on chain but the transaction itself errored.
	StatusFailed ChainStatus = "failed"
)

type SignatureStatus struct {
	Status ChainStatus
	Err    string
}

// ------------------------------------------------------
// Attempt / Result
// ------------------------------------------------------

// MintAttempt is the handle returned by BeginAttempt.
// 以降の書き込みはすべて LeaseID を提示して行う。
type MintAttempt struct {
	WinnerID       string
	LeaseID        string
	StartedAt      time.Time
	StepsCompleted winner.Stage
	Record         winner.WinnerRecord
}

type ResultStatus string

const (
	ResultMinted ResultStatus = "minted"
	ResultFailed ResultStatus = "failed"
)

// Result is what the orchestrator reports back to the trigger.
type Result struct {
	WinnerID             string       `json:"winner_id"`
	Status               ResultStatus `json:"status"`
	TokenID              string       `json:"token_id,omitempty"`
	TransactionSignature string       `json:"transaction_signature,omitempty"`
	ImageURI             string       `json:"image_uri,omitempty"`
	MetadataURI          string       `json:"metadata_uri,omitempty"`
	Error                string       `json:"error,omitempty"`
	Disposition          Disposition  `json:"disposition,omitempty"`

	// Err is the typed cause of a failed result (errors.As で分類できる)。
	Err error `json:"-"`
}

// ResultFromRecord builds a minted Result from a stored record.
func ResultFromRecord(r winner.WinnerRecord) Result {
	return Result{
		WinnerID:             r.WinnerID,
		Status:               ResultMinted,
		TokenID:              r.TokenID,
		TransactionSignature: r.TransactionSignature,
		ImageURI:             r.ImageURI,
		MetadataURI:          r.MetadataURI,
	}
}
