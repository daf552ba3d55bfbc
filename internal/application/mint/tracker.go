// internal/application/mint/tracker.go
package mint

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	mintdom "github.com/aaruvan/tokenchamp/internal/domain/mint"
	windom "github.com/aaruvan/tokenchamp/internal/domain/winner"
)

const DefaultLeaseTTL = 10 * time.Minute

// MintStateTracker は WinnerRecord のステージ遷移を永続化する唯一の窓口。
// すべての書き込みは Repository.Update（原子的 read-modify-write）経由で行う。
type MintStateTracker struct {
	repo     windom.Repository
	leaseTTL time.Duration

	now   func() time.Time
	newID func() string
}

func NewMintStateTracker(repo windom.Repository, leaseTTL time.Duration) *MintStateTracker {
	if leaseTTL <= 0 {
		leaseTTL = DefaultLeaseTTL
	}
	return &MintStateTracker{
		repo:     repo,
		leaseTTL: leaseTTL,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
}

// ============================================================
// Declare / manual retry
// ============================================================

// Declare creates a record in stage Declared. An empty WinnerID gets a fresh uuid.
func (t *MintStateTracker) Declare(ctx context.Context, in windom.NewWinnerInput, info windom.ChampionInfo) (windom.WinnerRecord, error) {
	if strings.TrimSpace(in.WinnerID) == "" {
		in.WinnerID = t.newID()
	}
	in = windom.ApplyChampionDefaults(in, info)

	rec, err := windom.New(in, t.now())
	if err != nil {
		return windom.WinnerRecord{}, err
	}
	if err := t.repo.Create(ctx, rec); err != nil {
		return windom.WinnerRecord{}, err
	}
	log.Printf("[tracker] declared winner=%s tournament=%s team=%s", rec.WinnerID, rec.TournamentID, rec.TeamID)
	return rec, nil
}

// Retry is the manual Failed → Declared transition.
func (t *MintStateTracker) Retry(ctx context.Context, winnerID string) (windom.WinnerRecord, error) {
	rec, err := t.repo.Update(ctx, strings.TrimSpace(winnerID), func(r *windom.WinnerRecord) error {
		return r.ResetForRetry(t.now())
	})
	if err != nil {
		return windom.WinnerRecord{}, err
	}
	log.Printf("[tracker] manual retry winner=%s checkpoint=%s", rec.WinnerID, rec.Checkpoint())
	return rec, nil
}

// ============================================================
// Attempt lifecycle
// ============================================================

// BeginAttempt acquires the per-winner lease.
// Minted のレコードには *mintdom.AlreadyMintedError を返す。
func (t *MintStateTracker) BeginAttempt(ctx context.Context, winnerID string) (*mintdom.MintAttempt, error) {
	id := strings.TrimSpace(winnerID)
	leaseID := t.newID()
	var minted windom.WinnerRecord

	rec, err := t.repo.Update(ctx, id, func(r *windom.WinnerRecord) error {
		if err := r.Acquire(leaseID, t.now(), t.leaseTTL); err != nil {
			if errors.Is(err, windom.ErrAlreadyMinted) {
				minted = *r
			}
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, windom.ErrAlreadyMinted) {
			return nil, &mintdom.AlreadyMintedError{
				WinnerID:  minted.WinnerID,
				TokenID:   minted.TokenID,
				Signature: minted.TransactionSignature,
			}
		}
		return nil, err
	}

	return &mintdom.MintAttempt{
		WinnerID:       rec.WinnerID,
		LeaseID:        leaseID,
		StartedAt:      t.now().UTC(),
		StepsCompleted: rec.Checkpoint(),
		Record:         rec,
	}, nil
}

// RecordStageAdvance writes the stage and its durable result in one atomic update.
func (t *MintStateTracker) RecordStageAdvance(ctx context.Context, att *mintdom.MintAttempt, stage windom.Stage, f windom.StageFields) error {
	return t.update(ctx, att, func(r *windom.WinnerRecord) error {
		return r.Advance(att.LeaseID, stage, f, t.now(), t.leaseTTL)
	})
}

func (t *MintStateTracker) RecordPendingMint(ctx context.Context, att *mintdom.MintAttempt, p windom.PendingMint) error {
	return t.update(ctx, att, func(r *windom.WinnerRecord) error {
		return r.SetPending(att.LeaseID, p, t.now())
	})
}

func (t *MintStateTracker) ClearPendingMint(ctx context.Context, att *mintdom.MintAttempt, signature string) error {
	return t.update(ctx, att, func(r *windom.WinnerRecord) error {
		return r.ClearPending(att.LeaseID, signature, t.now())
	})
}

// RecordFailure marks the record Failed with a human-readable reason.
func (t *MintStateTracker) RecordFailure(ctx context.Context, att *mintdom.MintAttempt, cause error) error {
	reason := mintdom.Describe(cause)
	if reason == "" {
		reason = fmt.Sprint(cause)
	}
	return t.update(ctx, att, func(r *windom.WinnerRecord) error {
		return r.Fail(att.LeaseID, reason, t.now())
	})
}

// ReleaseAttempt gives up the lease without changing the stage.
func (t *MintStateTracker) ReleaseAttempt(ctx context.Context, att *mintdom.MintAttempt) error {
	return t.update(ctx, att, func(r *windom.WinnerRecord) error {
		r.Release(att.LeaseID, t.now())
		return nil
	})
}

func (t *MintStateTracker) update(ctx context.Context, att *mintdom.MintAttempt, fn windom.UpdateFunc) error {
	if att == nil {
		return errors.New("tracker: nil attempt")
	}
	rec, err := t.repo.Update(ctx, att.WinnerID, fn)
	if err != nil {
		return err
	}
	att.Record = rec
	att.StepsCompleted = rec.Checkpoint()
	return nil
}

// ============================================================
// Queries
// ============================================================

func (t *MintStateTracker) Get(ctx context.Context, winnerID string) (windom.WinnerRecord, error) {
	return t.repo.Get(ctx, strings.TrimSpace(winnerID))
}

func (t *MintStateTracker) List(ctx context.Context, f windom.ListFilter) ([]windom.WinnerRecord, error) {
	return t.repo.List(ctx, f)
}

func (t *MintStateTracker) ListByWallet(ctx context.Context, wallet string) ([]windom.WinnerRecord, error) {
	return t.repo.List(ctx, windom.ListFilter{Wallet: strings.TrimSpace(wallet)})
}

func (t *MintStateTracker) ListByTournament(ctx context.Context, tournamentID string) ([]windom.WinnerRecord, error) {
	return t.repo.List(ctx, windom.ListFilter{TournamentID: strings.TrimSpace(tournamentID)})
}

// ListStalled returns non-terminal records nobody is working on:
// no live lease, and no activity for at least stallAfter.
func (t *MintStateTracker) ListStalled(ctx context.Context, stallAfter time.Duration) ([]windom.WinnerRecord, error) {
	recs, err := t.repo.List(ctx, windom.ListFilter{
		Stages: []windom.Stage{windom.StageDeclared, windom.StageImageStored, windom.StageMetadataStored},
	})
	if err != nil {
		return nil, err
	}
	now := t.now()
	out := make([]windom.WinnerRecord, 0, len(recs))
	for _, r := range recs {
		if r.LeaseActive(now) {
			continue
		}
		last := r.CreatedAt
		if r.LastAttemptAt != nil {
			last = *r.LastAttemptAt
		}
		if now.Sub(last) < stallAfter {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
