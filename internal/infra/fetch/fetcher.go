// internal/infra/fetch/fetcher.go
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	mintdom "github.com/aaruvan/tokenchamp/internal/domain/mint"
)

const (
	DefaultTimeout  = 30 * time.Second
	DefaultMaxBytes = 20 << 20 // 20MiB
)

var ErrTooLarge = errors.New("fetch: payload exceeds size ceiling")

// HTTPFetcher は source_image_url を HTTP(S) で取得する。
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
}

func NewHTTPFetcher(timeout time.Duration, maxBytes int64) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &HTTPFetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

// Fetch returns the body and its content type.
// 408 / 429 / 5xx とネットワークエラーは Temporary、それ以外の 4xx とサイズ超過は恒久エラー。
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (mintdom.Content, error) {
	src := strings.TrimSpace(rawURL)
	u, err := url.Parse(src)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return mintdom.Content{}, &mintdom.FetchError{URL: src, Err: fmt.Errorf("unsupported url")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return mintdom.Content{}, &mintdom.FetchError{URL: src, Err: err}
	}
	req.Header.Set("Accept", "image/*,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return mintdom.Content{}, &mintdom.FetchError{URL: src, Temporary: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return mintdom.Content{}, &mintdom.FetchError{
			URL:        src,
			StatusCode: resp.StatusCode,
			Temporary:  temporaryStatus(resp.StatusCode),
		}
	}

	if resp.ContentLength > f.maxBytes {
		return mintdom.Content{}, &mintdom.FetchError{URL: src, Err: ErrTooLarge}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return mintdom.Content{}, &mintdom.FetchError{URL: src, Temporary: true, Err: err}
	}
	if int64(len(data)) > f.maxBytes {
		return mintdom.Content{}, &mintdom.FetchError{URL: src, Err: ErrTooLarge}
	}
	if len(data) == 0 {
		return mintdom.Content{}, &mintdom.FetchError{URL: src, Err: errors.New("empty body")}
	}

	ct := mediaType(resp.Header.Get("Content-Type"))
	if ct == "" || ct == "application/octet-stream" {
		ct = mediaType(http.DetectContentType(data))
	}

	log.Printf("[fetch] ok url=%s size=%d type=%s", src, len(data), ct)
	return mintdom.Content{Data: data, ContentType: ct, SourceURL: src}, nil
}

func temporaryStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500
}

func mediaType(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return ""
	}
	return mt
}
