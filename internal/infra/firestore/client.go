// internal/infra/firestore/client.go
package firestoreinfra

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const (
	WinnersCollection = "champion_winners"
	UploadsCollection = "champion_uploads"
)

// Collections は WinnerRecord と upload キャッシュのコレクション名。
type Collections struct {
	Winners string
	Uploads string
}

// CollectionsWithPrefix は環境ごとの prefix（"dev_" など）を付けたコレクション名を返す。
func CollectionsWithPrefix(prefix string) Collections {
	prefix = strings.TrimSpace(prefix)
	return Collections{
		Winners: prefix + WinnersCollection,
		Uploads: prefix + UploadsCollection,
	}
}

// ClientWrapper は mint 状態を置く Firestore クライアント。
type ClientWrapper struct {
	Client      *firestore.Client
	ProjectID   string
	Collections Collections
}

// NewClient は Firestore クライアントを初期化します。
// credentialsFile が空文字の場合は ADC を使用します。
func NewClient(ctx context.Context, projectID, credentialsFile, collectionPrefix string) (*ClientWrapper, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, errors.New("firestore: project id is empty")
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: create client: %w", err)
	}

	cols := CollectionsWithPrefix(collectionPrefix)
	log.Printf("[firestore] connected project=%s winners=%s uploads=%s", projectID, cols.Winners, cols.Uploads)
	return &ClientWrapper{Client: client, ProjectID: projectID, Collections: cols}, nil
}

// CheckCollections は両コレクションから 1 件ずつ読んで権限と疎通を確認する。
// 空のコレクションは正常。
func (cw *ClientWrapper) CheckCollections(ctx context.Context) error {
	if cw == nil || cw.Client == nil {
		return errors.New("firestore: client is nil")
	}
	var errs []error
	for _, name := range []string{cw.Collections.Winners, cw.Collections.Uploads} {
		it := cw.Client.Collection(name).Limit(1).Documents(ctx)
		_, err := it.Next()
		it.Stop()
		if err != nil && !errors.Is(err, iterator.Done) {
			errs = append(errs, fmt.Errorf("firestore: read %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (cw *ClientWrapper) Close() error {
	if cw == nil || cw.Client == nil {
		return nil
	}
	return cw.Client.Close()
}
