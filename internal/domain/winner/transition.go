// internal/domain/winner/transition.go
package winner

import (
	"strings"
	"time"
)

// StageFields are the durable results written together with a stage advance.
type StageFields struct {
	ImageURI             string
	ImageContentType     string
	MetadataURI          string
	TokenID              string
	TransactionSignature string
}

// ============================================================
// 状態遷移（tracker が Repository.Update の中で呼ぶ）
//   - すべて in-place で *WinnerRecord を書き換える
//   - エラー時は何も書き換えない
// ============================================================

// Acquire starts a new attempt under leaseID.
// ステージは保存済みフィールドから導かれる checkpoint まで引き上げる（後退はしない）。
func (r *WinnerRecord) Acquire(leaseID string, now time.Time, ttl time.Duration) error {
	switch {
	case r.Stage == StageMinted:
		return ErrAlreadyMinted
	case r.Stage == StageFailed:
		return ErrRequiresManualRetry
	case r.LeaseActive(now) && r.LeaseID != leaseID:
		return ErrAttemptInProgress
	}

	now = now.UTC()
	exp := now.Add(ttl)

	if cp := r.Checkpoint(); r.Stage.Before(cp) && cp != StageMinted {
		r.Stage = cp
	}
	r.AttemptCount++
	r.LastAttemptAt = &now
	r.LeaseID = leaseID
	r.LeaseExpiresAt = &exp
	r.UpdatedAt = now
	return nil
}

// Advance records the durable result of a completed step and moves the stage forward.
// 同じ値での再記録は許容する（冪等）。
func (r *WinnerRecord) Advance(leaseID string, to Stage, f StageFields, now time.Time, ttl time.Duration) error {
	if err := r.checkLease(leaseID); err != nil {
		return err
	}
	if r.Stage == StageFailed {
		return ErrStageRegression
	}
	if to.Before(r.Stage) {
		return ErrStageRegression
	}

	next := *r
	switch to {
	case StageImageStored:
		if err := setOnce(&next.ImageURI, f.ImageURI); err != nil {
			return err
		}
		if ct := strings.TrimSpace(f.ImageContentType); ct != "" {
			next.ImageContentType = ct
		}
	case StageMetadataStored:
		if next.ImageURI == "" {
			return ErrStageSkipped
		}
		if err := setOnce(&next.MetadataURI, f.MetadataURI); err != nil {
			return err
		}
	case StageMinted:
		if next.MetadataURI == "" {
			return ErrStageSkipped
		}
		if err := setOnce(&next.TokenID, f.TokenID); err != nil {
			return err
		}
		if err := setOnce(&next.TransactionSignature, f.TransactionSignature); err != nil {
			return err
		}
	default:
		return ErrInvalidStage
	}

	now = now.UTC()
	next.Stage = to
	next.UpdatedAt = now
	if to == StageMinted {
		next.Pending = nil
		next.LastError = ""
		next.MintedAt = &now
		next.LeaseID = ""
		next.LeaseExpiresAt = nil
	} else {
		exp := now.Add(ttl)
		next.LeaseExpiresAt = &exp
	}

	if err := next.Validate(); err != nil {
		return err
	}
	*r = next
	return nil
}

// SetPending stores a signed mint transaction before it is submitted.
func (r *WinnerRecord) SetPending(leaseID string, p PendingMint, now time.Time) error {
	if err := r.checkLease(leaseID); err != nil {
		return err
	}
	if r.Stage != StageMetadataStored {
		return ErrStageSkipped
	}
	if strings.TrimSpace(p.TokenID) == "" || strings.TrimSpace(p.Signature) == "" || len(p.RawTx) == 0 {
		return ErrInconsistentState
	}
	if r.Pending != nil && r.Pending.Signature != p.Signature {
		return ErrFieldConflict
	}
	cp := p
	r.Pending = &cp
	r.UpdatedAt = now.UTC()
	return nil
}

// ClearPending drops a pending transaction that can no longer land.
func (r *WinnerRecord) ClearPending(leaseID, signature string, now time.Time) error {
	if err := r.checkLease(leaseID); err != nil {
		return err
	}
	if r.Pending == nil || r.Pending.Signature != signature {
		return nil
	}
	r.Pending = nil
	r.UpdatedAt = now.UTC()
	return nil
}

// Fail marks the record Failed and releases the lease.
// 既に保存した URI / pending tx は残す（手動リトライで再利用する）。
func (r *WinnerRecord) Fail(leaseID, reason string, now time.Time) error {
	if r.Stage == StageMinted {
		return ErrAlreadyMinted
	}
	if err := r.checkLease(leaseID); err != nil {
		return err
	}
	r.Stage = StageFailed
	r.LastError = strings.TrimSpace(reason)
	r.LeaseID = ""
	r.LeaseExpiresAt = nil
	r.UpdatedAt = now.UTC()
	return nil
}

// Release drops the lease without touching the stage.
func (r *WinnerRecord) Release(leaseID string, now time.Time) {
	if r.LeaseID != leaseID {
		return
	}
	r.LeaseID = ""
	r.LeaseExpiresAt = nil
	r.UpdatedAt = now.UTC()
}

// ResetForRetry is the manual Failed → Declared transition.
func (r *WinnerRecord) ResetForRetry(now time.Time) error {
	if r.Stage != StageFailed {
		return ErrNotFailed
	}
	r.Stage = StageDeclared
	r.LastError = ""
	r.UpdatedAt = now.UTC()
	return nil
}

func (r *WinnerRecord) checkLease(leaseID string) error {
	if leaseID == "" || r.LeaseID != leaseID {
		return ErrLeaseLost
	}
	return nil
}

func setOnce(dst *string, v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return ErrInconsistentState
	}
	if *dst != "" && *dst != v {
		return ErrFieldConflict
	}
	*dst = v
	return nil
}
