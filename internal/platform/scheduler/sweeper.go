// internal/platform/scheduler/sweeper.go
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Resumer は停滞した winner を再投入する（mint.Dispatcher が実装）。
type Resumer interface {
	ResumeStalled(ctx context.Context, stallAfter time.Duration) (int, error)
}

// StallSweeper は interval ごとに Resumer.ResumeStalled を呼ぶ。
// Failed は対象外（手動リトライ待ち）。
type StallSweeper struct {
	sched      gocron.Scheduler
	resumer    Resumer
	stallAfter time.Duration
	timeout    time.Duration
}

// NewStallSweeper creates and starts the sweeper. 起動直後に 1 回走る。
func NewStallSweeper(resumer Resumer, interval, stallAfter time.Duration) (*StallSweeper, error) {
	if resumer == nil {
		return nil, fmt.Errorf("scheduler: resumer is nil")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("scheduler: interval must be positive")
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	s := &StallSweeper{
		sched:      sched,
		resumer:    resumer,
		stallAfter: stallAfter,
		timeout:    interval,
	}

	// 前回の sweep が終わっていなければ次回に回す
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.sweep),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("scheduler: new job: %w", err)
	}

	sched.Start()
	log.Printf("[scheduler] stall sweeper started interval=%s stallAfter=%s", interval, stallAfter)
	return s, nil
}

func (s *StallSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.resumer.ResumeStalled(ctx, s.stallAfter)
	if err != nil {
		log.Printf("[scheduler] sweep FAILED queued=%d err=%v", n, err)
		return
	}
	if n > 0 {
		log.Printf("[scheduler] sweep queued=%d", n)
	}
}

// Shutdown stops the scheduler and waits for a running sweep.
func (s *StallSweeper) Shutdown() error {
	if s == nil {
		return nil
	}
	return s.sched.Shutdown()
}
