// internal/application/mint/dispatcher.go
package mint

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	windom "github.com/aaruvan/tokenchamp/internal/domain/winner"
)

// Dispatcher runs MintForWinner in the background with bounded concurrency.
// Shutdown で新規受付を止め、実行中の attempt を待つ（期限切れならキャンセル）。
type Dispatcher struct {
	orch *Orchestrator
	sem  *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

var ErrDispatcherClosed = errors.New("dispatcher: closed")

func NewDispatcher(orch *Orchestrator, maxConcurrent int) *Dispatcher {
	if maxConcurrent < 1 {
		maxConcurrent = 4
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		orch:   orch,
		sem:    semaphore.NewWeighted(int64(maxConcurrent)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Dispatch queues a mint for winnerID.
func (d *Dispatcher) Dispatch(winnerID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.sem.Acquire(d.ctx, 1); err != nil {
			return
		}
		defer d.sem.Release(1)

		res, err := d.orch.MintForWinner(d.ctx, winnerID)
		switch {
		case errors.Is(err, windom.ErrAttemptInProgress):
			log.Printf("[dispatcher] skip winner=%s: attempt in progress", winnerID)
		case err != nil:
			log.Printf("[dispatcher] winner=%s err=%v", winnerID, err)
		default:
			log.Printf("[dispatcher] winner=%s status=%s token=%s", winnerID, res.Status, res.TokenID)
		}
	}()
	return nil
}

// ResumeStalled dispatches every stalled record and returns how many were queued.
func (d *Dispatcher) ResumeStalled(ctx context.Context, stallAfter time.Duration) (int, error) {
	recs, err := d.orch.Tracker().ListStalled(ctx, stallAfter)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range recs {
		if err := d.Dispatch(r.WinnerID); err != nil {
			return n, err
		}
		n++
	}
	if n > 0 {
		log.Printf("[dispatcher] resumed %d stalled winner(s)", n)
	}
	return n, nil
}

// Shutdown stops accepting work and waits for in-flight mints.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
