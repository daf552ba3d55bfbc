package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeResumer struct {
	calls atomic.Int32
	stall atomic.Int64
	err   error
}

var _ Resumer = (*fakeResumer)(nil)

func (f *fakeResumer) ResumeStalled(_ context.Context, stallAfter time.Duration) (int, error) {
	f.calls.Add(1)
	f.stall.Store(int64(stallAfter))
	return 1, f.err
}

func waitCalls(t *testing.T, f *fakeResumer, n int32) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if f.calls.Load() >= n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("ResumeStalled called %d times, want >= %d", f.calls.Load(), n)
}

func TestStallSweeper_RunsRepeatedly(t *testing.T) {
	f := &fakeResumer{}
	s, err := NewStallSweeper(f, 50*time.Millisecond, 15*time.Minute)
	if err != nil {
		t.Fatalf("NewStallSweeper() error = %v", err)
	}
	defer s.Shutdown()

	waitCalls(t, f, 2)
	if got := time.Duration(f.stall.Load()); got != 15*time.Minute {
		t.Errorf("stallAfter = %v", got)
	}
}

func TestStallSweeper_KeepsGoingAfterError(t *testing.T) {
	f := &fakeResumer{err: errors.New("db down")}
	s, err := NewStallSweeper(f, 50*time.Millisecond, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Shutdown()

	waitCalls(t, f, 2)
}

func TestNewStallSweeper_Rejects(t *testing.T) {
	if _, err := NewStallSweeper(nil, time.Second, time.Minute); err == nil {
		t.Error("expected error for nil resumer")
	}
	if _, err := NewStallSweeper(&fakeResumer{}, 0, time.Minute); err == nil {
		t.Error("expected error for zero interval")
	}
}
