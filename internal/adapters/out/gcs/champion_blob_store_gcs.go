// internal/adapters/out/gcs/champion_blob_store_gcs.go
package gcs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	gcscommon "github.com/aaruvan/tokenchamp/internal/adapters/out/gcs/common"
	mintdom "github.com/aaruvan/tokenchamp/internal/domain/mint"
)

const backendName = "gcs"

// ChampionBlobStoreGCS
//   - Champion 画像 / metadata.json を公開バケットに content-addressed で保存する。
//   - object は一度書いたら上書きしない（DoesNotExist precondition）。
type ChampionBlobStoreGCS struct {
	Client *storage.Client
	Bucket string
	Prefix string // 例: "champions"
}

const defaultChampionPrefix = "champions"

func NewChampionBlobStoreGCS(client *storage.Client, bucket, prefix string) *ChampionBlobStoreGCS {
	p := strings.TrimSpace(prefix)
	if p == "" {
		p = defaultChampionPrefix
	}
	return &ChampionBlobStoreGCS{
		Client: client,
		Bucket: strings.TrimSpace(bucket),
		Prefix: p,
	}
}

func (r *ChampionBlobStoreGCS) Name() string { return backendName }

func (r *ChampionBlobStoreGCS) PublicPrefix() string {
	return gcscommon.GCSPublicPrefix(r.Bucket)
}

func (r *ChampionBlobStoreGCS) Put(ctx context.Context, data []byte, contentType, contentHash string) (string, error) {
	if r == nil || r.Client == nil {
		return "", &mintdom.PermanentStorageError{Backend: backendName, Err: errors.New("nil storage client")}
	}
	if r.Bucket == "" {
		return "", &mintdom.PermanentStorageError{Backend: backendName, Err: errors.New("bucket is empty")}
	}
	if strings.TrimSpace(contentHash) == "" {
		return "", &mintdom.PermanentStorageError{Backend: backendName, Err: errors.New("content hash is empty")}
	}

	objectPath := objectPathFor(r.Prefix, contentHash, contentType)
	oh := r.Client.Bucket(r.Bucket).Object(objectPath).If(storage.Conditions{DoesNotExist: true})

	w := oh.NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=31536000, immutable"
	w.Metadata = map[string]string{"contentSha256": contentHash}

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", classifyGCSError(err)
	}
	if err := w.Close(); err != nil {
		// 同じ hash の object が既にある = 同一内容なので成功扱い
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == 412 {
			log.Printf("[gcs] object exists bucket=%s path=%s", r.Bucket, objectPath)
			return gcscommon.GCSPublicURL(r.Bucket, objectPath), nil
		}
		log.Printf("[gcs] upload FAILED bucket=%s path=%s err=%v", r.Bucket, objectPath, err)
		return "", classifyGCSError(err)
	}

	url := gcscommon.GCSPublicURL(r.Bucket, objectPath)
	log.Printf("[gcs] upload OK type=%s size=%d url=%s", contentType, len(data), url)
	return url, nil
}

func classifyGCSError(err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return mintdom.StorageStatusError(backendName, gerr.Code, gerr.Message)
	}
	if errors.Is(err, storage.ErrBucketNotExist) {
		return &mintdom.PermanentStorageError{Backend: backendName, Err: err}
	}
	return &mintdom.TransientStorageError{Backend: backendName, Err: fmt.Errorf("gcs write: %w", err)}
}
