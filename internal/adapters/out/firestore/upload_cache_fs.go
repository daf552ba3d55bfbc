// internal/adapters/out/firestore/upload_cache_fs.go
package firestore

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	mintdom "github.com/aaruvan/tokenchamp/internal/domain/mint"
)

// UploadCacheFS は content hash をドキュメント ID にした upload キャッシュ。
type UploadCacheFS struct {
	Client     *firestore.Client
	Collection string
}

func NewUploadCacheFS(client *firestore.Client, collection string) *UploadCacheFS {
	c := strings.TrimSpace(collection)
	if c == "" {
		c = "champion_uploads"
	}
	return &UploadCacheFS{Client: client, Collection: c}
}

type uploadDoc struct {
	URI         string    `firestore:"uri"`
	Size        int       `firestore:"size"`
	ContentType string    `firestore:"contentType"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

func (c *UploadCacheFS) Lookup(ctx context.Context, contentHash string) (mintdom.UploadResult, bool, error) {
	snap, err := c.Client.Collection(c.Collection).Doc(contentHash).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return mintdom.UploadResult{}, false, nil
		}
		return mintdom.UploadResult{}, false, err
	}
	var d uploadDoc
	if err := snap.DataTo(&d); err != nil {
		return mintdom.UploadResult{}, false, err
	}
	return mintdom.UploadResult{
		URI:         d.URI,
		ContentHash: contentHash,
		Size:        d.Size,
		ContentType: d.ContentType,
	}, true, nil
}

// Remember は先勝ち（Create が AlreadyExists なら何もしない）。
func (c *UploadCacheFS) Remember(ctx context.Context, res mintdom.UploadResult) error {
	_, err := c.Client.Collection(c.Collection).Doc(res.ContentHash).Create(ctx, uploadDoc{
		URI:         res.URI,
		Size:        res.Size,
		ContentType: res.ContentType,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return err
	}
	return nil
}
