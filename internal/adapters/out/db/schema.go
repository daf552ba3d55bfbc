// internal/adapters/out/db/schema.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
)

// Dialect は SQL 方言。クエリは $n で書き、Rebind で方言ごとの形に直す。
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

var dollarPlaceholder = regexp.MustCompile(`\$([0-9]+)`)

// Rebind converts $n placeholders for the dialect.
// SQLite は $n を名前付きパラメータとして出現順に番号付けするので、番号付きの ?n に置き換える。
func (d Dialect) Rebind(q string) string {
	if d != DialectSQLite {
		return q
	}
	return dollarPlaceholder.ReplaceAllString(q, "?$1")
}

// schemaSQL は PostgreSQL / SQLite 共通の DDL。
const schemaSQL = `
CREATE TABLE IF NOT EXISTS champion_winners (
  winner_id              TEXT PRIMARY KEY,
  tournament_id          TEXT NOT NULL,
  team_id                TEXT NOT NULL,
  recipient_wallet       TEXT NOT NULL,
  display_name           TEXT NOT NULL,
  description            TEXT NOT NULL DEFAULT '',
  source_image_url       TEXT NOT NULL,
  attributes             TEXT NOT NULL DEFAULT '[]',
  stage                  TEXT NOT NULL,
  image_uri              TEXT NOT NULL DEFAULT '',
  image_content_type     TEXT NOT NULL DEFAULT '',
  metadata_uri           TEXT NOT NULL DEFAULT '',
  token_id               TEXT NOT NULL DEFAULT '',
  transaction_signature  TEXT NOT NULL DEFAULT '',
  pending_mint           TEXT,
  attempt_count          INTEGER NOT NULL DEFAULT 0,
  last_attempt_at        TIMESTAMP NULL,
  last_error             TEXT NOT NULL DEFAULT '',
  lease_id               TEXT NOT NULL DEFAULT '',
  lease_expires_at       TIMESTAMP NULL,
  created_at             TIMESTAMP NOT NULL,
  updated_at             TIMESTAMP NOT NULL,
  minted_at              TIMESTAMP NULL
);

CREATE INDEX IF NOT EXISTS idx_champion_winners_wallet ON champion_winners (recipient_wallet, created_at);
CREATE INDEX IF NOT EXISTS idx_champion_winners_tournament ON champion_winners (tournament_id, created_at);
CREATE INDEX IF NOT EXISTS idx_champion_winners_stage ON champion_winners (stage);

CREATE TABLE IF NOT EXISTS champion_uploads (
  content_hash  TEXT PRIMARY KEY,
  uri           TEXT NOT NULL,
  size          INTEGER NOT NULL,
  content_type  TEXT NOT NULL,
  created_at    TIMESTAMP NOT NULL
);
`

// GetSchemaSQL returns the authoritative DDL.
func GetSchemaSQL() string {
	return schemaSQL
}

// Migrate applies the schema. 何度実行しても同じ結果になる。
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
