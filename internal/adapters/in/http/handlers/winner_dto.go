package handlers

import (
	"time"

	windom "github.com/aaruvan/tokenchamp/internal/domain/winner"
)

// declareRequest は POST /winners の body。
// display_name 等が空なら champion 情報から補完される。
type declareRequest struct {
	windom.NewWinnerInput
	windom.ChampionInfo
}

// winnerView は API に返す WinnerRecord。署名済み tx のバイト列と lease は出さない。
type winnerView struct {
	WinnerID               string             `json:"winner_id"`
	TournamentID           string             `json:"tournament_id"`
	TeamID                 string             `json:"team_id"`
	RecipientWalletAddress string             `json:"recipient_wallet_address"`
	DisplayName            string             `json:"display_name"`
	Description            string             `json:"description"`
	SourceImageURL         string             `json:"source_image_url"`
	Attributes             []windom.Attribute `json:"attributes"`

	Stage                windom.Stage `json:"stage"`
	ImageURI             string       `json:"image_uri,omitempty"`
	MetadataURI          string       `json:"metadata_uri,omitempty"`
	TokenID              string       `json:"token_id,omitempty"`
	TransactionSignature string       `json:"transaction_signature,omitempty"`
	PendingSignature     string       `json:"pending_signature,omitempty"`

	AttemptCount  int        `json:"attempt_count"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	InProgress    bool       `json:"in_progress"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	MintedAt  *time.Time `json:"minted_at,omitempty"`
}

func toWinnerView(r windom.WinnerRecord, now time.Time) winnerView {
	v := winnerView{
		WinnerID:               r.WinnerID,
		TournamentID:           r.TournamentID,
		TeamID:                 r.TeamID,
		RecipientWalletAddress: r.RecipientWalletAddress,
		DisplayName:            r.DisplayName,
		Description:            r.Description,
		SourceImageURL:         r.SourceImageURL,
		Attributes:             r.Attributes,
		Stage:                  r.Stage,
		ImageURI:               r.ImageURI,
		MetadataURI:            r.MetadataURI,
		TokenID:                r.TokenID,
		TransactionSignature:   r.TransactionSignature,
		AttemptCount:           r.AttemptCount,
		LastAttemptAt:          r.LastAttemptAt,
		LastError:              r.LastError,
		InProgress:             r.LeaseActive(now),
		CreatedAt:              r.CreatedAt,
		UpdatedAt:              r.UpdatedAt,
		MintedAt:               r.MintedAt,
	}
	if v.Attributes == nil {
		v.Attributes = []windom.Attribute{}
	}
	if r.Pending != nil {
		v.PendingSignature = r.Pending.Signature
	}
	return v
}

func toWinnerViews(rs []windom.WinnerRecord, now time.Time) []winnerView {
	out := make([]winnerView, 0, len(rs))
	for _, r := range rs {
		out = append(out, toWinnerView(r, now))
	}
	return out
}
