// internal/adapters/out/db/upload_cache_sql.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	dbcommon "github.com/aaruvan/tokenchamp/internal/adapters/out/db/common"
	mintdom "github.com/aaruvan/tokenchamp/internal/domain/mint"
)

// UploadCacheSQL は content_hash → uri を champion_uploads に保存する。
type UploadCacheSQL struct {
	DB  *sql.DB
	now func() time.Time
}

func NewUploadCacheSQL(db *sql.DB) *UploadCacheSQL {
	return &UploadCacheSQL{DB: db, now: time.Now}
}

func (c *UploadCacheSQL) Lookup(ctx context.Context, contentHash string) (mintdom.UploadResult, bool, error) {
	run := dbcommon.GetRunner(ctx, c.DB)
	const q = `
SELECT content_hash, uri, size, content_type
FROM champion_uploads
WHERE content_hash = $1`

	var res mintdom.UploadResult
	err := run.QueryRowContext(ctx, q, strings.TrimSpace(contentHash)).
		Scan(&res.ContentHash, &res.URI, &res.Size, &res.ContentType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mintdom.UploadResult{}, false, nil
		}
		return mintdom.UploadResult{}, false, fmt.Errorf("lookup upload: %w", err)
	}
	return res, true, nil
}

// Remember は先勝ち。既存の hash は上書きしない。
func (c *UploadCacheSQL) Remember(ctx context.Context, res mintdom.UploadResult) error {
	if strings.TrimSpace(res.ContentHash) == "" || strings.TrimSpace(res.URI) == "" {
		return fmt.Errorf("remember upload: hash and uri are required")
	}
	run := dbcommon.GetRunner(ctx, c.DB)
	const q = `
INSERT INTO champion_uploads (content_hash, uri, size, content_type, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (content_hash) DO NOTHING`
	if _, err := run.ExecContext(ctx, q, res.ContentHash, res.URI, res.Size, res.ContentType, c.now().UTC()); err != nil {
		return fmt.Errorf("remember upload: %w", err)
	}
	return nil
}
