// internal/adapters/out/firestore/winner_repository_fs.go
package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	windom "github.com/aaruvan/tokenchamp/internal/domain/winner"
)

// WinnerRepositoryFS is the Firestore implementation of winner.Repository.
// ドキュメント ID = winnerId。
type WinnerRepositoryFS struct {
	Client     *firestore.Client
	Collection string
}

const defaultWinnerCollection = "champion_winners"

func NewWinnerRepositoryFS(client *firestore.Client, collection string) *WinnerRepositoryFS {
	c := strings.TrimSpace(collection)
	if c == "" {
		c = defaultWinnerCollection
	}
	return &WinnerRepositoryFS{Client: client, Collection: c}
}

func (r *WinnerRepositoryFS) col() *firestore.CollectionRef {
	return r.Client.Collection(r.Collection)
}

// Compile-time check
var _ windom.Repository = (*WinnerRepositoryFS)(nil)

// ========== Public API ==========

func (r *WinnerRepositoryFS) Create(ctx context.Context, rec windom.WinnerRecord) error {
	_, err := r.col().Doc(rec.WinnerID).Create(ctx, toWinnerDoc(rec))
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return windom.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *WinnerRepositoryFS) Get(ctx context.Context, winnerID string) (windom.WinnerRecord, error) {
	snap, err := r.col().Doc(strings.TrimSpace(winnerID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return windom.WinnerRecord{}, windom.ErrNotFound
		}
		return windom.WinnerRecord{}, err
	}
	return docToWinner(snap)
}

// Update は RunTransaction で read-modify-write する。
// 競合時は Firestore が fn ごと再実行するので、fn は純粋な変換であること。
func (r *WinnerRepositoryFS) Update(ctx context.Context, winnerID string, fn windom.UpdateFunc) (windom.WinnerRecord, error) {
	ref := r.col().Doc(strings.TrimSpace(winnerID))

	var out windom.WinnerRecord
	err := r.Client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return windom.ErrNotFound
			}
			return err
		}
		rec, err := docToWinner(snap)
		if err != nil {
			return err
		}

		id := rec.WinnerID
		if err := fn(&rec); err != nil {
			return err
		}
		rec.WinnerID = id

		if err := tx.Set(ref, toWinnerDoc(rec)); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return windom.WinnerRecord{}, err
	}
	return out, nil
}

func (r *WinnerRepositoryFS) List(ctx context.Context, f windom.ListFilter) ([]windom.WinnerRecord, error) {
	q := r.col().Query
	if v := strings.TrimSpace(f.Wallet); v != "" {
		q = q.Where("recipientWalletAddress", "==", v)
	}
	if v := strings.TrimSpace(f.TournamentID); v != "" {
		q = q.Where("tournamentId", "==", v)
	}
	if len(f.Stages) > 0 {
		stages := make([]string, 0, len(f.Stages))
		for _, s := range f.Stages {
			stages = append(stages, string(s))
		}
		q = q.Where("stage", "in", stages)
	}
	q = q.OrderBy("createdAt", firestore.Desc)
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	list := []windom.WinnerRecord{}
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		rec, err := docToWinner(snap)
		if err != nil {
			return nil, err
		}
		if f.Matches(rec) {
			list = append(list, rec)
		}
	}
	return list, nil
}

// ========== Helpers ==========

type winnerDoc struct {
	WinnerID               string          `firestore:"winnerId"`
	TournamentID           string          `firestore:"tournamentId"`
	TeamID                 string          `firestore:"teamId"`
	RecipientWalletAddress string          `firestore:"recipientWalletAddress"`
	DisplayName            string          `firestore:"displayName"`
	Description            string          `firestore:"description"`
	SourceImageURL         string          `firestore:"sourceImageUrl"`
	Attributes             []attributeDoc  `firestore:"attributes"`
	Stage                  string          `firestore:"stage"`
	ImageURI               string          `firestore:"imageUri"`
	ImageContentType       string          `firestore:"imageContentType"`
	MetadataURI            string          `firestore:"metadataUri"`
	TokenID                string          `firestore:"tokenId"`
	TransactionSignature   string          `firestore:"transactionSignature"`
	Pending                *pendingMintDoc `firestore:"pendingMint"`
	AttemptCount           int             `firestore:"attemptCount"`
	LastAttemptAt          *time.Time      `firestore:"lastAttemptAt"`
	LastError              string          `firestore:"lastError"`
	LeaseID                string          `firestore:"leaseId"`
	LeaseExpiresAt         *time.Time      `firestore:"leaseExpiresAt"`
	CreatedAt              time.Time       `firestore:"createdAt"`
	UpdatedAt              time.Time       `firestore:"updatedAt"`
	MintedAt               *time.Time      `firestore:"mintedAt"`
}

type attributeDoc struct {
	TraitType string `firestore:"traitType"`
	Value     string `firestore:"value"`
}

type pendingMintDoc struct {
	TokenID    string    `firestore:"tokenId"`
	Signature  string    `firestore:"signature"`
	RawTx      []byte    `firestore:"rawTx"`
	Blockhash  string    `firestore:"blockhash"`
	PreparedAt time.Time `firestore:"preparedAt"`
}

func toWinnerDoc(r windom.WinnerRecord) winnerDoc {
	attrs := make([]attributeDoc, 0, len(r.Attributes))
	for _, a := range r.Attributes {
		attrs = append(attrs, attributeDoc{TraitType: a.TraitType, Value: a.Value})
	}
	var p *pendingMintDoc
	if r.Pending != nil {
		p = &pendingMintDoc{
			TokenID:    r.Pending.TokenID,
			Signature:  r.Pending.Signature,
			RawTx:      r.Pending.RawTx,
			Blockhash:  r.Pending.Blockhash,
			PreparedAt: r.Pending.PreparedAt.UTC(),
		}
	}
	return winnerDoc{
		WinnerID:               r.WinnerID,
		TournamentID:           r.TournamentID,
		TeamID:                 r.TeamID,
		RecipientWalletAddress: r.RecipientWalletAddress,
		DisplayName:            r.DisplayName,
		Description:            r.Description,
		SourceImageURL:         r.SourceImageURL,
		Attributes:             attrs,
		Stage:                  string(r.Stage),
		ImageURI:               r.ImageURI,
		ImageContentType:       r.ImageContentType,
		MetadataURI:            r.MetadataURI,
		TokenID:                r.TokenID,
		TransactionSignature:   r.TransactionSignature,
		Pending:                p,
		AttemptCount:           r.AttemptCount,
		LastAttemptAt:          r.LastAttemptAt,
		LastError:              r.LastError,
		LeaseID:                r.LeaseID,
		LeaseExpiresAt:         r.LeaseExpiresAt,
		CreatedAt:              r.CreatedAt.UTC(),
		UpdatedAt:              r.UpdatedAt.UTC(),
		MintedAt:               r.MintedAt,
	}
}

func fromWinnerDoc(d winnerDoc) (windom.WinnerRecord, error) {
	st, err := windom.ParseStage(d.Stage)
	if err != nil {
		return windom.WinnerRecord{}, fmt.Errorf("winner %s: %w", d.WinnerID, err)
	}
	attrs := make([]windom.Attribute, 0, len(d.Attributes))
	for _, a := range d.Attributes {
		attrs = append(attrs, windom.Attribute{TraitType: a.TraitType, Value: a.Value})
	}
	var p *windom.PendingMint
	if d.Pending != nil {
		p = &windom.PendingMint{
			TokenID:    d.Pending.TokenID,
			Signature:  d.Pending.Signature,
			RawTx:      d.Pending.RawTx,
			Blockhash:  d.Pending.Blockhash,
			PreparedAt: d.Pending.PreparedAt.UTC(),
		}
	}
	return windom.WinnerRecord{
		WinnerID:               d.WinnerID,
		TournamentID:           d.TournamentID,
		TeamID:                 d.TeamID,
		RecipientWalletAddress: d.RecipientWalletAddress,
		DisplayName:            d.DisplayName,
		Description:            d.Description,
		SourceImageURL:         d.SourceImageURL,
		Attributes:             attrs,
		Stage:                  st,
		ImageURI:               d.ImageURI,
		ImageContentType:       d.ImageContentType,
		MetadataURI:            d.MetadataURI,
		TokenID:                d.TokenID,
		TransactionSignature:   d.TransactionSignature,
		Pending:                p,
		AttemptCount:           d.AttemptCount,
		LastAttemptAt:          utcPtr(d.LastAttemptAt),
		LastError:              d.LastError,
		LeaseID:                d.LeaseID,
		LeaseExpiresAt:         utcPtr(d.LeaseExpiresAt),
		CreatedAt:              d.CreatedAt.UTC(),
		UpdatedAt:              d.UpdatedAt.UTC(),
		MintedAt:               utcPtr(d.MintedAt),
	}, nil
}

func docToWinner(snap *firestore.DocumentSnapshot) (windom.WinnerRecord, error) {
	var d winnerDoc
	if err := snap.DataTo(&d); err != nil {
		return windom.WinnerRecord{}, err
	}
	if strings.TrimSpace(d.WinnerID) == "" {
		d.WinnerID = snap.Ref.ID
	}
	return fromWinnerDoc(d)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
