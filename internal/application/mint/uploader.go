// internal/application/mint/uploader.go
package mint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	mintdom "github.com/aaruvan/tokenchamp/internal/domain/mint"
)

// DefaultFlightTimeout bounds one physical upload shared by coalesced callers.
const DefaultFlightTimeout = 2 * time.Minute

// DefaultPermanentPrefixes are URL prefixes treated as already permanently stored.
var DefaultPermanentPrefixes = []string{
	"ar://",
	"https://arweave.net/",
	"https://gateway.irys.xyz/",
	"ipfs://",
	"https://ipfs.io/ipfs/",
}

// DedupUploader は content hash をキーに upload を重複排除する。
//   - 永続キャッシュ（UploadCache）にヒットすれば物理 upload しない
//   - 同一プロセス内で同じバイト列が同時に来た場合は singleflight で 1 回にまとめる
//   - flight は呼び出し元の cancel を引き継がず、flightTimeout で独自に打ち切る
type DedupUploader struct {
	store         BlobStore
	cache         UploadCache
	maxPayload    int64
	prefixes      []string
	metrics       Metrics
	flightTimeout time.Duration

	group singleflight.Group
}

func NewDedupUploader(store BlobStore, cache UploadCache, maxPayload int64, permanentPrefixes []string) *DedupUploader {
	prefixes := make([]string, 0, len(permanentPrefixes)+1)
	for _, p := range permanentPrefixes {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	if store != nil {
		if p := strings.ToLower(strings.TrimSpace(store.PublicPrefix())); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	return &DedupUploader{
		store:         store,
		cache:         cache,
		maxPayload:    maxPayload,
		prefixes:      prefixes,
		metrics:       nopMetrics{},
		flightTimeout: DefaultFlightTimeout,
	}
}

// WithFlightTimeout sets the timeout of one shared physical upload.
func (u *DedupUploader) WithFlightTimeout(d time.Duration) *DedupUploader {
	if d > 0 {
		u.flightTimeout = d
	}
	return u
}

// WithMetrics sets the metrics sink.
func (u *DedupUploader) WithMetrics(m Metrics) *DedupUploader {
	if m != nil {
		u.metrics = m
	}
	return u
}

// ContentHash is the hex sha256 of data.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// IsPermanent reports whether url already points at permanent storage.
func (u *DedupUploader) IsPermanent(url string) bool {
	v := strings.ToLower(strings.TrimSpace(url))
	for _, p := range u.prefixes {
		if strings.HasPrefix(v, p) {
			return true
		}
	}
	return false
}

func (u *DedupUploader) Upload(ctx context.Context, data []byte, contentType string) (mintdom.UploadResult, error) {
	if u == nil || u.store == nil || u.cache == nil {
		return mintdom.UploadResult{}, errors.New("uploader: not configured")
	}
	backend := u.store.Name()

	if len(data) == 0 {
		return mintdom.UploadResult{}, &mintdom.PermanentStorageError{Backend: backend, Err: errors.New("empty payload")}
	}
	if u.maxPayload > 0 && int64(len(data)) > u.maxPayload {
		return mintdom.UploadResult{}, &mintdom.PermanentStorageError{
			Backend: backend,
			Err:     fmt.Errorf("payload %d bytes exceeds limit %d", len(data), u.maxPayload),
		}
	}
	ct := strings.TrimSpace(contentType)
	if ct == "" {
		ct = "application/octet-stream"
	}

	hash := ContentHash(data)

	if res, ok, err := u.lookup(ctx, backend, hash); err != nil {
		return mintdom.UploadResult{}, err
	} else if ok {
		return res, nil
	}

	ch := u.group.DoChan(hash, func() (any, error) {
		// 合流した他の呼び出し元もいるので、最初の呼び出し元の cancel / deadline では止めない
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.flightTimeout)
		defer cancel()

		// 先行した flight が書き込んでいるかもしれないので再確認
		if res, ok, err := u.lookup(fctx, backend, hash); err != nil || ok {
			return res, err
		}

		uri, err := u.store.Put(fctx, data, ct, hash)
		if err != nil {
			return nil, err
		}
		u.metrics.UploadServed(false)

		res := mintdom.UploadResult{URI: uri, ContentHash: hash, Size: len(data), ContentType: ct}
		if err := u.cache.Remember(fctx, res); err != nil {
			// upload 自体は成功している。次回は重複 upload になるだけ。
			log.Printf("[uploader] WARN remember failed backend=%s hash=%s err=%v", backend, maskShort(hash), err)
		}
		log.Printf("[uploader] stored backend=%s hash=%s size=%d uri=%s", backend, maskShort(hash), len(data), uri)
		return res, nil
	})

	select {
	case <-ctx.Done():
		return mintdom.UploadResult{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return mintdom.UploadResult{}, r.Err
		}
		return r.Val.(mintdom.UploadResult), nil
	}
}

func (u *DedupUploader) lookup(ctx context.Context, backend, hash string) (mintdom.UploadResult, bool, error) {
	res, ok, err := u.cache.Lookup(ctx, hash)
	if err != nil {
		return mintdom.UploadResult{}, false, &mintdom.TransientStorageError{Backend: backend, Err: fmt.Errorf("upload cache lookup: %w", err)}
	}
	if !ok {
		return mintdom.UploadResult{}, false, nil
	}
	res.Cached = true
	u.metrics.UploadServed(true)
	return res, true, nil
}

func maskShort(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 8 {
		return s
	}
	return s[:4] + "***" + s[len(s)-4:]
}
