// internal/application/mint/minter.go
package mint

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	mintdom "github.com/aaruvan/tokenchamp/internal/domain/mint"
	windom "github.com/aaruvan/tokenchamp/internal/domain/winner"
)

const (
	DefaultConfirmTimeout      = 60 * time.Second
	DefaultConfirmPollInterval = 2 * time.Second
)

// OnChainMinter は 1 winner につき 1 トークンだけを mint する。
//
// 二重 mint を防ぐ手順:
//  1. 署名済み tx（mint アドレス = token_id, 署名）を作る
//  2. 送信前に pending として永続化する
//  3. 再試行時はまず pending の署名をチェーンに問い合わせる
//     - confirmed : そのまま成功
//     - pending   : 確定を待つ
//     - not_found : blockhash が有効なら同じバイト列を再送（同じ署名なので二重にならない）
//     blockhash 失効後も見つからなければ、その tx は二度と着地しないので破棄して作り直す
type OnChainMinter struct {
	chain          ChainClient
	confirmTimeout time.Duration
	pollInterval   time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewOnChainMinter(chain ChainClient, confirmTimeout, pollInterval time.Duration) *OnChainMinter {
	if confirmTimeout <= 0 {
		confirmTimeout = DefaultConfirmTimeout
	}
	if pollInterval <= 0 {
		pollInterval = DefaultConfirmPollInterval
	}
	return &OnChainMinter{
		chain:          chain,
		confirmTimeout: confirmTimeout,
		pollInterval:   pollInterval,
		now:            time.Now,
		sleep:          sleepCtx,
	}
}

// ValidateRecipient checks the address without touching the network.
func (m *OnChainMinter) ValidateRecipient(address string) error {
	return m.chain.ValidateRecipient(address)
}

// Mint returns {token_id, signature} once the mint transaction is confirmed.
func (m *OnChainMinter) Mint(
	ctx context.Context,
	att *mintdom.MintAttempt,
	req mintdom.MintRequest,
	rec PendingMintRecorder,
) (mintdom.MintResult, error) {
	if err := m.chain.ValidateRecipient(req.RecipientAddress); err != nil {
		return mintdom.MintResult{}, err
	}

	if p := att.Record.Pending; p != nil {
		res, done, err := m.resume(ctx, att, *p, rec)
		if done || err != nil {
			return res, err
		}
	}

	p, err := m.chain.PrepareMint(ctx, req)
	if err != nil {
		return mintdom.MintResult{}, err
	}
	if err := rec.RecordPendingMint(ctx, att, p); err != nil {
		return mintdom.MintResult{}, fmt.Errorf("record pending mint: %w", err)
	}
	log.Printf("[minter] prepared winner=%s token=%s sig=%s", att.WinnerID, p.TokenID, maskShort(p.Signature))

	if err := m.chain.SubmitMint(ctx, p); err != nil {
		return mintdom.MintResult{}, err
	}
	return m.awaitConfirmation(ctx, att, p, rec)
}

// resume resolves a previously recorded transaction.
// done=false means the pending tx was discarded and a new one must be prepared.
func (m *OnChainMinter) resume(
	ctx context.Context,
	att *mintdom.MintAttempt,
	p windom.PendingMint,
	rec PendingMintRecorder,
) (mintdom.MintResult, bool, error) {
	st, err := m.chain.SignatureStatus(ctx, p.Signature)
	if err != nil {
		return mintdom.MintResult{}, true, err
	}

	switch st.Status {
	case mintdom.StatusConfirmed:
		log.Printf("[minter] pending tx already confirmed winner=%s sig=%s", att.WinnerID, maskShort(p.Signature))
		return mintdom.MintResult{TokenID: p.TokenID, Signature: p.Signature}, true, nil

	case mintdom.StatusFailed:
		res, err := m.rejected(ctx, att, p, st, rec)
		return res, true, err

	case mintdom.StatusPending:
		res, err := m.awaitConfirmation(ctx, att, p, rec)
		return res, true, err
	}

	// not_found
	valid, err := m.chain.BlockhashValid(ctx, p.Blockhash)
	if err != nil {
		return mintdom.MintResult{}, true, err
	}
	if valid {
		log.Printf("[minter] resending pending tx winner=%s sig=%s", att.WinnerID, maskShort(p.Signature))
		if err := m.chain.SubmitMint(ctx, p); err != nil {
			return mintdom.MintResult{}, true, err
		}
		res, err := m.awaitConfirmation(ctx, att, p, rec)
		return res, true, err
	}

	// blockhash 失効後にもう一度だけ確認（失効前に着地していた可能性を潰す）
	st, err = m.chain.SignatureStatus(ctx, p.Signature)
	if err != nil {
		return mintdom.MintResult{}, true, err
	}
	switch st.Status {
	case mintdom.StatusConfirmed:
		return mintdom.MintResult{TokenID: p.TokenID, Signature: p.Signature}, true, nil
	case mintdom.StatusPending:
		res, err := m.awaitConfirmation(ctx, att, p, rec)
		return res, true, err
	case mintdom.StatusFailed:
		res, err := m.rejected(ctx, att, p, st, rec)
		return res, true, err
	}

	log.Printf("[minter] pending tx expired, discarding winner=%s sig=%s", att.WinnerID, maskShort(p.Signature))
	if err := rec.ClearPendingMint(ctx, att, p.Signature); err != nil {
		return mintdom.MintResult{}, true, fmt.Errorf("clear pending mint: %w", err)
	}
	return mintdom.MintResult{}, false, nil
}

func (m *OnChainMinter) awaitConfirmation(
	ctx context.Context,
	att *mintdom.MintAttempt,
	p windom.PendingMint,
	rec PendingMintRecorder,
) (mintdom.MintResult, error) {
	deadline := m.now().Add(m.confirmTimeout)
	var lastErr error

	for {
		st, err := m.chain.SignatureStatus(ctx, p.Signature)
		switch {
		case err != nil:
			if !mintdom.IsRetryable(err) {
				return mintdom.MintResult{}, err
			}
			lastErr = err
		case st.Status == mintdom.StatusConfirmed:
			log.Printf("[minter] confirmed winner=%s token=%s sig=%s", att.WinnerID, p.TokenID, maskShort(p.Signature))
			return mintdom.MintResult{TokenID: p.TokenID, Signature: p.Signature}, nil
		case st.Status == mintdom.StatusFailed:
			return m.rejected(ctx, att, p, st, rec)
		}

		if !m.now().Before(deadline) {
			if lastErr == nil {
				lastErr = fmt.Errorf("signature %s not confirmed within %s", p.Signature, m.confirmTimeout)
			}
			return mintdom.MintResult{}, &mintdom.TransientChainError{Op: "confirm", Err: lastErr}
		}
		if err := m.sleep(ctx, m.pollInterval); err != nil {
			return mintdom.MintResult{}, err
		}
	}
}

// rejected: tx はチェーン上で失敗済み（何も mint されていない）。
// pending を消しておけば、手動リトライで新しい tx を作れる。
func (m *OnChainMinter) rejected(
	ctx context.Context,
	att *mintdom.MintAttempt,
	p windom.PendingMint,
	st mintdom.SignatureStatus,
	rec PendingMintRecorder,
) (mintdom.MintResult, error) {
	if err := rec.ClearPendingMint(ctx, att, p.Signature); err != nil {
		log.Printf("[minter] WARN clear rejected pending failed winner=%s err=%v", att.WinnerID, err)
	}
	reason := st.Err
	if reason == "" {
		reason = "transaction failed on chain"
	}
	return mintdom.MintResult{}, &mintdom.RejectedTransactionError{Signature: p.Signature, Err: errors.New(reason)}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
