package mint

import (
	"context"
	"errors"
	"testing"
	"time"

	mintdom "github.com/aaruvan/tokenchamp/internal/domain/mint"
	windom "github.com/aaruvan/tokenchamp/internal/domain/winner"
)

func TestBackoff_CappedWithJitter(t *testing.T) {
	p := RetryPolicy{Ceiling: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}
	bounds := []struct {
		n        int
		min, max time.Duration
	}{
		{1, 50 * time.Millisecond, 100 * time.Millisecond},
		{2, 100 * time.Millisecond, 200 * time.Millisecond},
		{3, 200 * time.Millisecond, 400 * time.Millisecond},
		{5, 500 * time.Millisecond, time.Second},
		{30, 500 * time.Millisecond, time.Second},
	}
	for _, b := range bounds {
		for i := 0; i < 50; i++ {
			d := p.Backoff(b.n)
			if d < b.min || d > b.max {
				t.Fatalf("Backoff(%d) = %s, want within [%s, %s]", b.n, d, b.min, b.max)
			}
		}
	}
}

func TestRetryPolicy_Defaults(t *testing.T) {
	p := RetryPolicy{}.normalized()
	if p.Ceiling != DefaultRetryCeiling || p.BaseDelay != DefaultBaseDelay || p.MaxDelay < p.BaseDelay {
		t.Errorf("normalized() = %+v", p)
	}
}

func TestDeclare_GeneratesIDAndRejectsDuplicates(t *testing.T) {
	h := newHarness(t, 5)
	rec, err := h.tracker.Declare(context.Background(), windom.NewWinnerInput{
		TournamentID:           "t",
		TeamID:                 "team",
		RecipientWalletAddress: testWallet,
		DisplayName:            "Champion",
		SourceImageURL:         "https://img.example.com/a.png",
	}, windom.ChampionInfo{})
	if err != nil {
		t.Fatalf("Declare() error = %v", err)
	}
	if rec.WinnerID == "" || rec.Stage != windom.StageDeclared {
		t.Errorf("record = %+v", rec)
	}

	_, err = h.tracker.Declare(context.Background(), windom.NewWinnerInput{
		WinnerID:               rec.WinnerID,
		TournamentID:           "t",
		TeamID:                 "team",
		RecipientWalletAddress: testWallet,
		DisplayName:            "Champion",
		SourceImageURL:         "https://img.example.com/a.png",
	}, windom.ChampionInfo{})
	if !errors.Is(err, windom.ErrAlreadyExists) {
		t.Errorf("duplicate Declare() error = %v, want ErrAlreadyExists", err)
	}
}

func TestBeginAttempt_MutualExclusion(t *testing.T) {
	h := newHarness(t, 5)
	h.declare(t, "w1", "https://img.example.com/a.png", pngBytes)

	att, err := h.tracker.BeginAttempt(context.Background(), "w1")
	if err != nil {
		t.Fatalf("BeginAttempt() error = %v", err)
	}
	if _, err := h.tracker.BeginAttempt(context.Background(), "w1"); !errors.Is(err, windom.ErrAttemptInProgress) {
		t.Fatalf("second BeginAttempt() error = %v, want ErrAttemptInProgress", err)
	}
	if err := h.tracker.ReleaseAttempt(context.Background(), att); err != nil {
		t.Fatalf("ReleaseAttempt() error = %v", err)
	}
	if _, err := h.tracker.BeginAttempt(context.Background(), "w1"); err != nil {
		t.Errorf("BeginAttempt after release error = %v", err)
	}
}

func TestBeginAttempt_Minted(t *testing.T) {
	h := newHarness(t, 5)
	h.declare(t, "w1", "https://img.example.com/a.png", pngBytes)
	if _, err := h.orch.MintForWinner(context.Background(), "w1"); err != nil {
		t.Fatalf("MintForWinner() error = %v", err)
	}

	_, err := h.tracker.BeginAttempt(context.Background(), "w1")
	var am *mintdom.AlreadyMintedError
	if !errors.As(err, &am) || am.TokenID != "tok-1" || am.Signature != "sig-1" {
		t.Errorf("BeginAttempt() error = %v, want AlreadyMintedError for tok-1", err)
	}
}

func TestRecordStageAdvance_StaleAttemptIsFenced(t *testing.T) {
	h := newHarness(t, 5)
	h.declare(t, "w1", "https://img.example.com/a.png", pngBytes)

	stale, _ := h.tracker.BeginAttempt(context.Background(), "w1")
	h.repo.set(t, "w1", func(r *windom.WinnerRecord) {
		past := time.Now().Add(-time.Hour)
		r.LeaseExpiresAt = &past
	})
	if _, err := h.tracker.BeginAttempt(context.Background(), "w1"); err != nil {
		t.Fatalf("takeover BeginAttempt() error = %v", err)
	}

	err := h.tracker.RecordStageAdvance(context.Background(), stale, windom.StageImageStored, windom.StageFields{ImageURI: "ar://x"})
	if !errors.Is(err, windom.ErrLeaseLost) {
		t.Errorf("stale RecordStageAdvance() error = %v, want ErrLeaseLost", err)
	}
	if rec := h.mustGet(t, "w1"); rec.ImageURI != "" {
		t.Errorf("stale attempt wrote ImageURI = %q", rec.ImageURI)
	}
}

func TestListStalled(t *testing.T) {
	h := newHarness(t, 5)
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	h.tracker.now = func() time.Time { return now.Add(-2 * time.Hour) }

	h.declare(t, "old", "https://img.example.com/a.png", pngBytes)
	h.declare(t, "busy", "https://img.example.com/b.png", pngBytes)
	h.declare(t, "failed", "https://img.example.com/c.png", pngBytes)

	h.tracker.now = func() time.Time { return now }
	h.declare(t, "fresh", "https://img.example.com/d.png", pngBytes)

	if _, err := h.tracker.BeginAttempt(context.Background(), "busy"); err != nil {
		t.Fatalf("BeginAttempt(busy) error = %v", err)
	}
	h.repo.set(t, "failed", func(r *windom.WinnerRecord) { r.Stage = windom.StageFailed })

	got, err := h.tracker.ListStalled(context.Background(), 30*time.Minute)
	if err != nil {
		t.Fatalf("ListStalled() error = %v", err)
	}
	if len(got) != 1 || got[0].WinnerID != "old" {
		ids := []string{}
		for _, r := range got {
			ids = append(ids, r.WinnerID)
		}
		t.Errorf("ListStalled() = %v, want [old]", ids)
	}
}

func TestListByTournament(t *testing.T) {
	h := newHarness(t, 5)
	h.declare(t, "w1", "https://img.example.com/a.png", pngBytes)
	if _, err := h.tracker.Declare(context.Background(), windom.NewWinnerInput{
		WinnerID:               "other",
		TournamentID:           "autumn-cup",
		TeamID:                 "owls",
		RecipientWalletAddress: testWallet,
		DisplayName:            "Autumn Cup Champion",
		SourceImageURL:         "https://img.example.com/o.png",
	}, windom.ChampionInfo{}); err != nil {
		t.Fatalf("Declare(other) error = %v", err)
	}

	got, err := h.tracker.ListByTournament(context.Background(), " autumn-cup ")
	if err != nil {
		t.Fatalf("ListByTournament() error = %v", err)
	}
	if len(got) != 1 || got[0].WinnerID != "other" {
		t.Errorf("ListByTournament() = %+v", got)
	}
}

func TestDispatcher_MintsInBackgroundAndDrains(t *testing.T) {
	h := newHarness(t, 5)
	h.declare(t, "w1", "https://img.example.com/a.png", pngBytes)
	h.declare(t, "w2", "https://img.example.com/b.png", []byte("other-image"))

	d := NewDispatcher(h.orch, 2)
	for _, id := range []string{"w1", "w2"} {
		if err := d.Dispatch(id); err != nil {
			t.Fatalf("Dispatch(%s) error = %v", id, err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	for _, id := range []string{"w1", "w2"} {
		if rec := h.mustGet(t, id); rec.Stage != windom.StageMinted {
			t.Errorf("%s stage = %s, want Minted", id, rec.Stage)
		}
	}
	if err := d.Dispatch("w3"); !errors.Is(err, ErrDispatcherClosed) {
		t.Errorf("Dispatch after Shutdown error = %v, want ErrDispatcherClosed", err)
	}
}
