// internal/domain/winner/entity.go
package winner

import (
	"strings"
	"time"
)

// ------------------------------------------------------
// Stage
// ------------------------------------------------------

// Stage は WinnerRecord の mint パイプライン上の位置。
// Declared → ImageStored → MetadataStored → Minted の順にのみ進む。
// Failed はどの非終端ステージからも遷移し得る。
type Stage string

const (
	StageDeclared       Stage = "Declared"
	StageImageStored    Stage = "ImageStored"
	StageMetadataStored Stage = "MetadataStored"
	StageMinted         Stage = "Minted"
	StageFailed         Stage = "Failed"
)

// ProgressStages are the non-failed stages in pipeline order.
var ProgressStages = []Stage{StageDeclared, StageImageStored, StageMetadataStored, StageMinted}

// rank returns the pipeline position (Failed = 0).
func (s Stage) rank() int {
	switch s {
	case StageDeclared:
		return 1
	case StageImageStored:
		return 2
	case StageMetadataStored:
		return 3
	case StageMinted:
		return 4
	default:
		return 0
	}
}

func (s Stage) IsValid() bool {
	return s == StageFailed || s.rank() > 0
}

// Terminal reports whether no automatic progress is possible from s.
func (s Stage) Terminal() bool {
	return s == StageMinted || s == StageFailed
}

// Before reports whether s is strictly earlier in the pipeline than o.
// Failed is not ordered and always returns false.
func (s Stage) Before(o Stage) bool {
	if s == StageFailed || o == StageFailed {
		return false
	}
	return s.rank() < o.rank()
}

func ParseStage(v string) (Stage, error) {
	v = strings.TrimSpace(v)
	for _, s := range append(ProgressStages, StageFailed) {
		if strings.EqualFold(v, string(s)) {
			return s, nil
		}
	}
	return "", ErrInvalidStage
}

// ------------------------------------------------------
// Entity: WinnerRecord (winners コレクション / テーブル 1 レコード)
// ------------------------------------------------------

// Attribute は NFT メタデータの trait_type / value ペア。
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// PendingMint は署名済み・未確定の mint トランザクション。
// 送信前に永続化しておき、再試行時はまずこの署名の状態を確認する。
type PendingMint struct {
	TokenID    string    `json:"tokenId"`
	Signature  string    `json:"signature"`
	RawTx      []byte    `json:"rawTx"`
	Blockhash  string    `json:"blockhash"`
	PreparedAt time.Time `json:"preparedAt"`
}

type WinnerRecord struct {
	WinnerID               string      `json:"winner_id"`
	TournamentID           string      `json:"tournament_id"`
	TeamID                 string      `json:"team_id"`
	RecipientWalletAddress string      `json:"recipient_wallet_address"`
	DisplayName            string      `json:"display_name"`
	Description            string      `json:"description"`
	SourceImageURL         string      `json:"source_image_url"`
	Attributes             []Attribute `json:"attributes"`

	Stage                Stage  `json:"stage"`
	ImageURI             string `json:"image_uri,omitempty"`
	ImageContentType     string `json:"image_content_type,omitempty"`
	MetadataURI          string `json:"metadata_uri,omitempty"`
	TokenID              string `json:"token_id,omitempty"`
	TransactionSignature string `json:"transaction_signature,omitempty"`

	// ★ 送信済みかもしれない mint tx（Minted になった時点で消す）
	Pending *PendingMint `json:"pending_mint,omitempty"`

	AttemptCount  int        `json:"attempt_count"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`

	// per-winner lease（同時実行の排他）
	LeaseID        string     `json:"lease_id,omitempty"`
	LeaseExpiresAt *time.Time `json:"lease_expires_at,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	MintedAt  *time.Time `json:"minted_at,omitempty"`
}

// NewWinnerInput carries the immutable inputs supplied by the trigger.
type NewWinnerInput struct {
	WinnerID               string      `json:"winner_id"`
	TournamentID           string      `json:"tournament_id"`
	TeamID                 string      `json:"team_id"`
	RecipientWalletAddress string      `json:"recipient_wallet_address"`
	DisplayName            string      `json:"display_name"`
	Description            string      `json:"description"`
	SourceImageURL         string      `json:"source_image_url"`
	Attributes             []Attribute `json:"attributes"`
}

// ------------------------------------------------------
// Constructor
// ------------------------------------------------------

func New(in NewWinnerInput, now time.Time) (WinnerRecord, error) {
	id := strings.TrimSpace(in.WinnerID)
	if id == "" {
		return WinnerRecord{}, ErrInvalidWinnerID
	}
	if strings.TrimSpace(in.TournamentID) == "" {
		return WinnerRecord{}, ErrInvalidTournamentID
	}
	if strings.TrimSpace(in.TeamID) == "" {
		return WinnerRecord{}, ErrInvalidTeamID
	}
	if strings.TrimSpace(in.RecipientWalletAddress) == "" {
		return WinnerRecord{}, ErrInvalidRecipient
	}
	if strings.TrimSpace(in.DisplayName) == "" {
		return WinnerRecord{}, ErrInvalidDisplayName
	}
	if strings.TrimSpace(in.SourceImageURL) == "" {
		return WinnerRecord{}, ErrInvalidSourceImage
	}

	attrs := make([]Attribute, 0, len(in.Attributes))
	for _, a := range in.Attributes {
		t := strings.TrimSpace(a.TraitType)
		if t == "" {
			return WinnerRecord{}, ErrInvalidAttribute
		}
		attrs = append(attrs, Attribute{TraitType: t, Value: strings.TrimSpace(a.Value)})
	}

	now = now.UTC()
	r := WinnerRecord{
		WinnerID:               id,
		TournamentID:           strings.TrimSpace(in.TournamentID),
		TeamID:                 strings.TrimSpace(in.TeamID),
		RecipientWalletAddress: strings.TrimSpace(in.RecipientWalletAddress),
		DisplayName:            strings.TrimSpace(in.DisplayName),
		Description:            strings.TrimSpace(in.Description),
		SourceImageURL:         strings.TrimSpace(in.SourceImageURL),
		Attributes:             attrs,
		Stage:                  StageDeclared,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := r.Validate(); err != nil {
		return WinnerRecord{}, err
	}
	return r, nil
}

// ------------------------------------------------------
// Queries
// ------------------------------------------------------

// Checkpoint は保存済みフィールドから導かれる「完了済みの最後のステップ」。
// Failed → Declared に戻した後でも、既に保存した URI は再利用できる。
func (r WinnerRecord) Checkpoint() Stage {
	switch {
	case r.TokenID != "":
		return StageMinted
	case r.MetadataURI != "":
		return StageMetadataStored
	case r.ImageURI != "":
		return StageImageStored
	default:
		return StageDeclared
	}
}

// LeaseActive reports whether an unexpired lease is held on the record.
func (r WinnerRecord) LeaseActive(now time.Time) bool {
	return r.LeaseID != "" && r.LeaseExpiresAt != nil && now.Before(*r.LeaseExpiresAt)
}

// Validate checks the record invariants.
func (r WinnerRecord) Validate() error {
	if strings.TrimSpace(r.WinnerID) == "" {
		return ErrInvalidWinnerID
	}
	if !r.Stage.IsValid() {
		return ErrInvalidStage
	}
	if r.Stage != StageFailed {
		if !r.Stage.Before(StageImageStored) && r.ImageURI == "" {
			return ErrInconsistentState
		}
		if !r.Stage.Before(StageMetadataStored) && r.MetadataURI == "" {
			return ErrInconsistentState
		}
	}
	if (r.Stage == StageMinted) != (r.TokenID != "") {
		return ErrInconsistentState
	}
	if r.Stage == StageMinted && r.TransactionSignature == "" {
		return ErrInconsistentState
	}
	if r.AttemptCount < 0 {
		return ErrInconsistentState
	}
	return nil
}
