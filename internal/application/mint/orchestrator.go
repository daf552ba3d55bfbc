// internal/application/mint/orchestrator.go
package mint

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime"
	"path"
	"strings"
	"time"

	mintdom "github.com/aaruvan/tokenchamp/internal/domain/mint"
	windom "github.com/aaruvan/tokenchamp/internal/domain/winner"
)

const DefaultStepTimeout = 2 * time.Minute

// Orchestrator drives one winner through
// Declared → ImageStored → MetadataStored → Minted.
// 各ステップの結果は次のステップに進む前に永続化されるため、
// どこで落ちても BeginAttempt からやり直せば完了済みステップは再実行されない。
type Orchestrator struct {
	tracker  *MintStateTracker
	fetcher  ContentFetcher
	uploader Uploader
	metadata *MetadataBuilder
	minter   *OnChainMinter

	notifier FailureNotifier
	metrics  Metrics

	retry       RetryPolicy
	stepTimeout time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

type OrchestratorDeps struct {
	Tracker  *MintStateTracker
	Fetcher  ContentFetcher
	Uploader Uploader
	Metadata *MetadataBuilder
	Minter   *OnChainMinter
	Notifier FailureNotifier // optional
	Metrics  Metrics         // optional
}

func NewOrchestrator(d OrchestratorDeps, retry RetryPolicy, stepTimeout time.Duration) (*Orchestrator, error) {
	if d.Tracker == nil || d.Fetcher == nil || d.Uploader == nil || d.Metadata == nil || d.Minter == nil {
		return nil, errors.New("orchestrator: missing dependency")
	}
	if stepTimeout <= 0 {
		stepTimeout = DefaultStepTimeout
	}
	o := &Orchestrator{
		tracker:     d.Tracker,
		fetcher:     d.Fetcher,
		uploader:    d.Uploader,
		metadata:    d.Metadata,
		minter:      d.Minter,
		notifier:    d.Notifier,
		metrics:     d.Metrics,
		retry:       retry.normalized(),
		stepTimeout: stepTimeout,
		now:         time.Now,
		sleep:       sleepCtx,
	}
	if o.metrics == nil {
		o.metrics = nopMetrics{}
	}
	return o, nil
}

func (o *Orchestrator) Tracker() *MintStateTracker { return o.tracker }

// ============================================================
// Entry points
// ============================================================

// Run declares the winner (if not yet declared) and mints.
func (o *Orchestrator) Run(ctx context.Context, in windom.NewWinnerInput, info windom.ChampionInfo) (mintdom.Result, error) {
	rec, err := o.tracker.Declare(ctx, in, info)
	switch {
	case errors.Is(err, windom.ErrAlreadyExists):
		return o.MintForWinner(ctx, in.WinnerID)
	case err != nil:
		return mintdom.Result{}, err
	}
	return o.MintForWinner(ctx, rec.WinnerID)
}

// Retry performs the manual Failed → Declared reset and runs the pipeline again.
func (o *Orchestrator) Retry(ctx context.Context, winnerID string) (mintdom.Result, error) {
	if _, err := o.tracker.Retry(ctx, winnerID); err != nil {
		return mintdom.Result{}, err
	}
	return o.MintForWinner(ctx, winnerID)
}

// MintForWinner runs (or resumes) the pipeline for one winner.
//
// 戻り値の error は「パイプラインを実行できなかった」場合のみ
// （not found / 実行中 / 手動リトライ待ち / キャンセル / 永続化失敗）。
// パイプライン自体の失敗は Result.Status = failed で返す。
func (o *Orchestrator) MintForWinner(ctx context.Context, winnerID string) (mintdom.Result, error) {
	att, err := o.tracker.BeginAttempt(ctx, winnerID)
	if err != nil {
		var am *mintdom.AlreadyMintedError
		if errors.As(err, &am) {
			rec, gerr := o.tracker.Get(ctx, winnerID)
			if gerr != nil {
				return mintdom.Result{WinnerID: am.WinnerID, Status: mintdom.ResultMinted, TokenID: am.TokenID, TransactionSignature: am.Signature}, nil
			}
			return mintdom.ResultFromRecord(rec), nil
		}
		return mintdom.Result{}, err
	}

	o.metrics.AttemptStarted()
	log.Printf("[orchestrator] attempt start winner=%s attempt=%d checkpoint=%s",
		att.WinnerID, att.Record.AttemptCount, att.StepsCompleted)

	res, err := o.run(ctx, att)
	if err != nil {
		return o.finishWithError(ctx, att, err)
	}
	o.metrics.MintFinished(mintdom.ResultMinted)
	log.Printf("[orchestrator] minted winner=%s token=%s sig=%s elapsed=%s",
		att.WinnerID, res.TokenID, maskShort(res.TransactionSignature), o.now().Sub(att.StartedAt).Round(time.Millisecond))
	return res, nil
}

// ============================================================
// Pipeline
// ============================================================

func (o *Orchestrator) run(ctx context.Context, att *mintdom.MintAttempt) (mintdom.Result, error) {
	// 1. recipient はネットワークに触れる前に検証する
	if err := o.minter.ValidateRecipient(att.Record.RecipientWalletAddress); err != nil {
		return mintdom.Result{}, err
	}

	// 2. image
	if att.Record.ImageURI == "" {
		if err := ctx.Err(); err != nil {
			return mintdom.Result{}, err
		}
		up, err := o.storeImage(ctx, att.Record.SourceImageURL)
		if err != nil {
			return mintdom.Result{}, err
		}
		if err := o.tracker.RecordStageAdvance(ctx, att, windom.StageImageStored, windom.StageFields{
			ImageURI:         up.URI,
			ImageContentType: up.ContentType,
		}); err != nil {
			return mintdom.Result{}, persistError{err}
		}
	}

	// 3. metadata
	if att.Record.MetadataURI == "" {
		if err := ctx.Err(); err != nil {
			return mintdom.Result{}, err
		}
		var up mintdom.UploadResult
		err := o.withRetry(ctx, StepUploadMetadata, func(sctx context.Context) error {
			var err error
			up, err = o.metadata.BuildAndUpload(sctx, att.Record, att.Record.ImageURI, att.Record.ImageContentType)
			return err
		})
		if err != nil {
			return mintdom.Result{}, err
		}
		if err := o.tracker.RecordStageAdvance(ctx, att, windom.StageMetadataStored, windom.StageFields{
			MetadataURI: up.URI,
		}); err != nil {
			return mintdom.Result{}, persistError{err}
		}
	}

	// 4. mint
	if err := ctx.Err(); err != nil {
		return mintdom.Result{}, err
	}
	req := mintdom.MintRequest{
		WinnerID:         att.WinnerID,
		MetadataURI:      att.Record.MetadataURI,
		Name:             att.Record.DisplayName,
		Symbol:           o.metadata.Symbol(),
		RecipientAddress: att.Record.RecipientWalletAddress,
	}
	var minted mintdom.MintResult
	err := o.withRetry(ctx, StepMint, func(sctx context.Context) error {
		var err error
		minted, err = o.minter.Mint(sctx, att, req, o.tracker)
		return err
	})
	if err != nil {
		return mintdom.Result{}, err
	}
	if err := o.tracker.RecordStageAdvance(ctx, att, windom.StageMinted, windom.StageFields{
		TokenID:              minted.TokenID,
		TransactionSignature: minted.Signature,
	}); err != nil {
		return mintdom.Result{}, persistError{err}
	}

	return mintdom.ResultFromRecord(att.Record), nil
}

// storeImage: fetch → upload。
// 既に permanent storage 上にある URL は fetch も upload もせずそのまま使う。
func (o *Orchestrator) storeImage(ctx context.Context, sourceURL string) (mintdom.UploadResult, error) {
	if o.uploader.IsPermanent(sourceURL) {
		log.Printf("[orchestrator] source already permanent, reusing url=%s", sourceURL)
		return mintdom.UploadResult{URI: strings.TrimSpace(sourceURL), ContentType: contentTypeFromURL(sourceURL), Cached: true}, nil
	}

	var content mintdom.Content
	err := o.withRetry(ctx, StepFetch, func(sctx context.Context) error {
		var err error
		content, err = o.fetcher.Fetch(sctx, sourceURL)
		return err
	})
	if err != nil {
		return mintdom.UploadResult{}, err
	}

	var up mintdom.UploadResult
	err = o.withRetry(ctx, StepUploadImage, func(sctx context.Context) error {
		var err error
		up, err = o.uploader.Upload(sctx, content.Data, content.ContentType)
		return err
	})
	return up, err
}

// withRetry runs fn under the per-call timeout and retries transient failures
// with backoff until the ceiling is reached.
func (o *Orchestrator) withRetry(ctx context.Context, step string, fn func(ctx context.Context) error) error {
	for try := 1; ; try++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		sctx, cancel := context.WithTimeout(ctx, o.stepTimeout)
		start := o.now()
		err := fn(sctx)
		timedOut := errors.Is(sctx.Err(), context.DeadlineExceeded)
		cancel()

		if err == nil {
			o.metrics.StepFinished(step, "ok", o.now().Sub(start))
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		retryable := mintdom.IsRetryable(err) || timedOut
		if !retryable {
			o.metrics.StepFinished(step, "error", o.now().Sub(start))
			return err
		}
		o.metrics.StepFinished(step, "retry", o.now().Sub(start))

		if try >= o.retry.Ceiling {
			return &mintdom.RetryCeilingExceededError{Step: step, Attempts: try, Last: err}
		}
		delay := o.retry.Backoff(try)
		log.Printf("[orchestrator] step=%s try=%d/%d transient error, retrying in %s: %v",
			step, try, o.retry.Ceiling, delay.Round(time.Millisecond), err)
		if err := o.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// ============================================================
// Failure handling
// ============================================================

// persistError marks a tracker write failure; the record is left as is.
type persistError struct{ err error }

func (e persistError) Error() string { return "persist stage: " + e.err.Error() }
func (e persistError) Unwrap() error { return e.err }

func (o *Orchestrator) finishWithError(ctx context.Context, att *mintdom.MintAttempt, err error) (mintdom.Result, error) {
	// 書き込みは呼び出し元のキャンセルに巻き込まれないようにする
	wctx := context.WithoutCancel(ctx)

	var pe persistError
	if errors.As(err, &pe) {
		log.Printf("[orchestrator] ERROR persist failed winner=%s err=%v", att.WinnerID, pe.err)
		if !errors.Is(pe.err, windom.ErrLeaseLost) {
			_ = o.tracker.ReleaseAttempt(wctx, att)
		}
		return mintdom.Result{}, pe.err
	}

	if ctx.Err() != nil {
		log.Printf("[orchestrator] cancelled winner=%s checkpoint=%s", att.WinnerID, att.StepsCompleted)
		if rerr := o.tracker.ReleaseAttempt(wctx, att); rerr != nil {
			log.Printf("[orchestrator] WARN release lease failed winner=%s err=%v", att.WinnerID, rerr)
		}
		return mintdom.Result{}, ctx.Err()
	}

	if ferr := o.tracker.RecordFailure(wctx, att, err); ferr != nil {
		log.Printf("[orchestrator] ERROR record failure winner=%s err=%v (cause=%v)", att.WinnerID, ferr, err)
		return mintdom.Result{}, fmt.Errorf("record failure: %w", ferr)
	}
	o.metrics.MintFinished(mintdom.ResultFailed)

	disp := mintdom.DispositionOf(err)
	log.Printf("[orchestrator] failed winner=%s disposition=%s err=%v", att.WinnerID, disp, err)

	if o.notifier != nil {
		if nerr := o.notifier.NotifyFailure(wctx, att.Record, err); nerr != nil {
			log.Printf("[orchestrator] WARN notify failed winner=%s err=%v", att.WinnerID, nerr)
		}
	}

	return mintdom.Result{
		WinnerID:    att.WinnerID,
		Status:      mintdom.ResultFailed,
		ImageURI:    att.Record.ImageURI,
		MetadataURI: att.Record.MetadataURI,
		Error:       mintdom.Describe(err),
		Disposition: disp,
		Err:         err,
	}, nil
}

func contentTypeFromURL(u string) string {
	p := u
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if ct := mime.TypeByExtension(strings.ToLower(path.Ext(p))); ct != "" {
		return ct
	}
	return defaultImageContentType
}
