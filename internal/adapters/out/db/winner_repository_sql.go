// internal/adapters/out/db/winner_repository_sql.go
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	dbcommon "github.com/aaruvan/tokenchamp/internal/adapters/out/db/common"
	windom "github.com/aaruvan/tokenchamp/internal/domain/winner"
)

// WinnerRepositorySQL implements winner.Repository with PostgreSQL or SQLite.
type WinnerRepositorySQL struct {
	DB      *sql.DB
	Dialect Dialect
}

var _ windom.Repository = (*WinnerRepositorySQL)(nil)

func NewWinnerRepositorySQL(db *sql.DB, dialect Dialect) *WinnerRepositorySQL {
	if dialect == "" {
		dialect = DialectPostgres
	}
	return &WinnerRepositorySQL{DB: db, Dialect: dialect}
}

const winnerColumns = `
  winner_id, tournament_id, team_id, recipient_wallet, display_name,
  description, source_image_url, attributes, stage,
  image_uri, image_content_type, metadata_uri, token_id, transaction_signature,
  pending_mint, attempt_count, last_attempt_at, last_error,
  lease_id, lease_expires_at, created_at, updated_at, minted_at`

// ===============================
// Repository impl
// ===============================

func (r *WinnerRepositorySQL) Create(ctx context.Context, rec windom.WinnerRecord) error {
	run := dbcommon.GetRunner(ctx, r.DB)
	args, err := winnerArgs(rec)
	if err != nil {
		return err
	}
	q := `INSERT INTO champion_winners (` + winnerColumns + `
) VALUES (
  $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
  $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23
)`
	if _, err := run.ExecContext(ctx, r.Dialect.Rebind(q), args...); err != nil {
		if dbcommon.IsUniqueViolation(err) {
			return windom.ErrAlreadyExists
		}
		return fmt.Errorf("insert winner: %w", err)
	}
	return nil
}

func (r *WinnerRepositorySQL) Get(ctx context.Context, winnerID string) (windom.WinnerRecord, error) {
	run := dbcommon.GetRunner(ctx, r.DB)
	q := `SELECT` + winnerColumns + `
FROM champion_winners
WHERE winner_id = $1`
	rec, err := scanWinner(run.QueryRowContext(ctx, r.Dialect.Rebind(q), strings.TrimSpace(winnerID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return windom.WinnerRecord{}, windom.ErrNotFound
		}
		return windom.WinnerRecord{}, err
	}
	return rec, nil
}

// Update は 1 トランザクション内で読み出し → fn → 書き戻しを行う。
// PostgreSQL は SELECT ... FOR UPDATE、SQLite は単一コネクションで直列化される。
func (r *WinnerRepositorySQL) Update(ctx context.Context, winnerID string, fn windom.UpdateFunc) (windom.WinnerRecord, error) {
	var out windom.WinnerRecord
	err := dbcommon.WithTx(ctx, r.DB, func(ctx context.Context, tx *sql.Tx) error {
		q := `SELECT` + winnerColumns + `
FROM champion_winners
WHERE winner_id = $1`
		if r.Dialect == DialectPostgres {
			q += ` FOR UPDATE`
		}

		rec, err := scanWinner(tx.QueryRowContext(ctx, r.Dialect.Rebind(q), strings.TrimSpace(winnerID)))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return windom.ErrNotFound
			}
			return err
		}

		id := rec.WinnerID
		if err := fn(&rec); err != nil {
			return err
		}
		rec.WinnerID = id

		args, err := winnerArgs(rec)
		if err != nil {
			return err
		}
		const upd = `
UPDATE champion_winners SET
  tournament_id = $2, team_id = $3, recipient_wallet = $4, display_name = $5,
  description = $6, source_image_url = $7, attributes = $8, stage = $9,
  image_uri = $10, image_content_type = $11, metadata_uri = $12, token_id = $13,
  transaction_signature = $14, pending_mint = $15, attempt_count = $16,
  last_attempt_at = $17, last_error = $18, lease_id = $19, lease_expires_at = $20,
  created_at = $21, updated_at = $22, minted_at = $23
WHERE winner_id = $1`
		res, err := tx.ExecContext(ctx, r.Dialect.Rebind(upd), args...)
		if err != nil {
			return fmt.Errorf("update winner: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update winner: rows affected: %w", err)
		}
		if n != 1 {
			return windom.ErrNotFound
		}
		out = rec
		return nil
	})
	if err != nil {
		return windom.WinnerRecord{}, err
	}
	return out, nil
}

func (r *WinnerRepositorySQL) List(ctx context.Context, f windom.ListFilter) ([]windom.WinnerRecord, error) {
	run := dbcommon.GetRunner(ctx, r.DB)

	where, args := buildWinnerWhere(f)
	whereSQL := ""
	if len(where) > 0 {
		whereSQL = "WHERE " + strings.Join(where, " AND ")
	}

	q := fmt.Sprintf(`SELECT%s
FROM champion_winners
%s
ORDER BY created_at DESC, winner_id DESC`, winnerColumns, whereSQL)
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, f.Limit)
	}

	rows, err := run.QueryContext(ctx, r.Dialect.Rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []windom.WinnerRecord{}
	for rows.Next() {
		rec, err := scanWinner(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// ===============================
// helpers
// ===============================

func buildWinnerWhere(f windom.ListFilter) ([]string, []any) {
	where := []string{}
	args := []any{}

	if v := strings.TrimSpace(f.Wallet); v != "" {
		dbcommon.AppendCond(&where, &args, "recipient_wallet = $%d", v)
	}
	if v := strings.TrimSpace(f.TournamentID); v != "" {
		dbcommon.AppendCond(&where, &args, "tournament_id = $%d", v)
	}
	if len(f.Stages) > 0 {
		ph := make([]string, 0, len(f.Stages))
		for _, s := range f.Stages {
			args = append(args, string(s))
			ph = append(ph, fmt.Sprintf("$%d", len(args)))
		}
		where = append(where, "stage IN ("+strings.Join(ph, ", ")+")")
	}
	return where, args
}

func winnerArgs(rec windom.WinnerRecord) ([]any, error) {
	attrs := rec.Attributes
	if attrs == nil {
		attrs = []windom.Attribute{}
	}
	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("marshal attributes: %w", err)
	}

	var pending sql.NullString
	if rec.Pending != nil {
		b, err := json.Marshal(rec.Pending)
		if err != nil {
			return nil, fmt.Errorf("marshal pending mint: %w", err)
		}
		pending = sql.NullString{String: string(b), Valid: true}
	}

	return []any{
		rec.WinnerID,
		rec.TournamentID,
		rec.TeamID,
		rec.RecipientWalletAddress,
		rec.DisplayName,
		rec.Description,
		rec.SourceImageURL,
		string(attrsJSON),
		string(rec.Stage),
		rec.ImageURI,
		rec.ImageContentType,
		rec.MetadataURI,
		rec.TokenID,
		rec.TransactionSignature,
		pending,
		rec.AttemptCount,
		dbcommon.ToNullTime(rec.LastAttemptAt),
		rec.LastError,
		rec.LeaseID,
		dbcommon.ToNullTime(rec.LeaseExpiresAt),
		rec.CreatedAt.UTC(),
		rec.UpdatedAt.UTC(),
		dbcommon.ToNullTime(rec.MintedAt),
	}, nil
}

func scanWinner(s dbcommon.RowScanner) (windom.WinnerRecord, error) {
	var (
		rec                              windom.WinnerRecord
		attrsJSON, stage                 string
		pending                          sql.NullString
		lastAttempt, leaseExpiry, minted sql.NullTime
		createdAt, updatedAt             time.Time
	)
	if err := s.Scan(
		&rec.WinnerID, &rec.TournamentID, &rec.TeamID, &rec.RecipientWalletAddress, &rec.DisplayName,
		&rec.Description, &rec.SourceImageURL, &attrsJSON, &stage,
		&rec.ImageURI, &rec.ImageContentType, &rec.MetadataURI, &rec.TokenID, &rec.TransactionSignature,
		&pending, &rec.AttemptCount, &lastAttempt, &rec.LastError,
		&rec.LeaseID, &leaseExpiry, &createdAt, &updatedAt, &minted,
	); err != nil {
		return windom.WinnerRecord{}, err
	}

	if strings.TrimSpace(attrsJSON) != "" {
		if err := json.Unmarshal([]byte(attrsJSON), &rec.Attributes); err != nil {
			return windom.WinnerRecord{}, fmt.Errorf("unmarshal attributes: %w", err)
		}
	}
	if pending.Valid && strings.TrimSpace(pending.String) != "" {
		var p windom.PendingMint
		if err := json.Unmarshal([]byte(pending.String), &p); err != nil {
			return windom.WinnerRecord{}, fmt.Errorf("unmarshal pending mint: %w", err)
		}
		rec.Pending = &p
	}

	st, err := windom.ParseStage(stage)
	if err != nil {
		return windom.WinnerRecord{}, err
	}
	rec.Stage = st
	rec.LastAttemptAt = dbcommon.FromNullTime(lastAttempt)
	rec.LeaseExpiresAt = dbcommon.FromNullTime(leaseExpiry)
	rec.MintedAt = dbcommon.FromNullTime(minted)
	rec.CreatedAt = createdAt.UTC()
	rec.UpdatedAt = updatedAt.UTC()
	return rec, nil
}
