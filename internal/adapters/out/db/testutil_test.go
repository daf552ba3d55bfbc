package db

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	windom "github.com/aaruvan/tokenchamp/internal/domain/winner"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	// :memory: はコネクションごとに別 DB になる
	testDB.SetMaxOpenConns(1)

	if _, err := testDB.Exec(GetSchemaSQL()); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})
	return testDB
}

func seedWinner(t *testing.T, repo *WinnerRepositorySQL, id, wallet, tournament string, createdAt time.Time) windom.WinnerRecord {
	t.Helper()
	rec, err := windom.New(windom.NewWinnerInput{
		WinnerID:               id,
		TournamentID:           tournament,
		TeamID:                 "team-" + id,
		RecipientWalletAddress: wallet,
		DisplayName:            "Champion " + id,
		SourceImageURL:         "https://example.com/" + id + ".png",
		Attributes:             []windom.Attribute{{TraitType: "Team", Value: "Blue"}},
	}, createdAt)
	if err != nil {
		t.Fatalf("windom.New: %v", err)
	}
	if err := repo.Create(t.Context(), rec); err != nil {
		t.Fatalf("Create(%s): %v", id, err)
	}
	return rec
}
