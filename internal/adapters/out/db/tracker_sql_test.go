package db

import (
	"errors"
	"sync"
	"testing"
	"time"

	appmint "github.com/aaruvan/tokenchamp/internal/application/mint"
	mintdom "github.com/aaruvan/tokenchamp/internal/domain/mint"
	windom "github.com/aaruvan/tokenchamp/internal/domain/winner"
)

func newSQLTracker(t *testing.T) (*appmint.MintStateTracker, *WinnerRepositorySQL) {
	t.Helper()
	repo := NewWinnerRepositorySQL(setupTestDB(t), DialectSQLite)
	tracker := appmint.NewMintStateTracker(repo, time.Minute)

	if _, err := tracker.Declare(t.Context(), windom.NewWinnerInput{
		WinnerID:               "w1",
		TournamentID:           "spring-cup",
		TeamID:                 "falcons",
		RecipientWalletAddress: "wallet-a",
		DisplayName:            "Spring Cup Champion",
		SourceImageURL:         "https://example.com/w1.png",
	}, windom.ChampionInfo{}); err != nil {
		t.Fatalf("Declare() error = %v", err)
	}
	return tracker, repo
}

func TestMintStateTracker_SQLite_FullLifecycle(t *testing.T) {
	tracker, repo := newSQLTracker(t)
	ctx := t.Context()

	att, err := tracker.BeginAttempt(ctx, "w1")
	if err != nil {
		t.Fatalf("BeginAttempt() error = %v", err)
	}
	stored, err := repo.Get(ctx, "w1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.LeaseID != att.LeaseID || stored.AttemptCount != 1 || stored.LastAttemptAt == nil {
		t.Fatalf("after BeginAttempt: lease=%q attempts=%d", stored.LeaseID, stored.AttemptCount)
	}

	steps := []struct {
		stage  windom.Stage
		fields windom.StageFields
	}{
		{windom.StageImageStored, windom.StageFields{ImageURI: "ar://img", ImageContentType: "image/png"}},
		{windom.StageMetadataStored, windom.StageFields{MetadataURI: "ar://meta"}},
		{windom.StageMinted, windom.StageFields{TokenID: "Mint111", TransactionSignature: "Sig111"}},
	}
	for _, s := range steps {
		if err := tracker.RecordStageAdvance(ctx, att, s.stage, s.fields); err != nil {
			t.Fatalf("RecordStageAdvance(%s) error = %v", s.stage, err)
		}
		got, err := repo.Get(ctx, "w1")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Stage != s.stage {
			t.Fatalf("stored stage = %s, want %s", got.Stage, s.stage)
		}
	}

	final, _ := repo.Get(ctx, "w1")
	if final.ImageURI != "ar://img" || final.MetadataURI != "ar://meta" || final.TokenID != "Mint111" ||
		final.LeaseID != "" || final.MintedAt == nil {
		t.Errorf("final record = %+v", final)
	}

	_, err = tracker.BeginAttempt(ctx, "w1")
	var am *mintdom.AlreadyMintedError
	if !errors.As(err, &am) {
		t.Fatalf("second BeginAttempt() error = %v, want AlreadyMintedError", err)
	}
	if am.TokenID != "Mint111" || am.Signature != "Sig111" {
		t.Errorf("AlreadyMintedError = %+v", am)
	}
}

func TestMintStateTracker_SQLite_ConcurrentBeginAttempt(t *testing.T) {
	tracker, _ := newSQLTracker(t)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		won      int
		inFlight int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tracker.BeginAttempt(t.Context(), "w1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				won++
			case errors.Is(err, windom.ErrAttemptInProgress):
				inFlight++
			default:
				t.Errorf("BeginAttempt() unexpected error = %v", err)
			}
		}()
	}
	wg.Wait()

	if won != 1 || inFlight != 1 {
		t.Errorf("won=%d inProgress=%d, want 1 and 1", won, inFlight)
	}
}

func TestMintStateTracker_SQLite_StaleLeaseIsFenced(t *testing.T) {
	tracker, repo := newSQLTracker(t)
	ctx := t.Context()

	stale, err := tracker.BeginAttempt(ctx, "w1")
	if err != nil {
		t.Fatalf("BeginAttempt() error = %v", err)
	}
	if _, err := repo.Update(ctx, "w1", func(r *windom.WinnerRecord) error {
		past := time.Now().Add(-time.Hour)
		r.LeaseExpiresAt = &past
		return nil
	}); err != nil {
		t.Fatalf("expire lease: %v", err)
	}
	if _, err := tracker.BeginAttempt(ctx, "w1"); err != nil {
		t.Fatalf("takeover BeginAttempt() error = %v", err)
	}

	err = tracker.RecordStageAdvance(ctx, stale, windom.StageImageStored, windom.StageFields{ImageURI: "ar://x"})
	if !errors.Is(err, windom.ErrLeaseLost) {
		t.Errorf("stale RecordStageAdvance() error = %v, want ErrLeaseLost", err)
	}
	if got, _ := repo.Get(ctx, "w1"); got.ImageURI != "" || got.AttemptCount != 2 {
		t.Errorf("record = stage %s image %q attempts %d", got.Stage, got.ImageURI, got.AttemptCount)
	}
}

func TestDialect_Rebind(t *testing.T) {
	q := `UPDATE t SET a = $2, b = $10 WHERE id = $1`
	if got := DialectPostgres.Rebind(q); got != q {
		t.Errorf("postgres Rebind() = %q", got)
	}
	want := `UPDATE t SET a = ?2, b = ?10 WHERE id = ?1`
	if got := DialectSQLite.Rebind(q); got != want {
		t.Errorf("sqlite Rebind() = %q, want %q", got, want)
	}
}
