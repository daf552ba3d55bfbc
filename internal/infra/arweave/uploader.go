// internal/infra/arweave/uploader.go
package arweave

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	mintdom "github.com/aaruvan/tokenchamp/internal/domain/mint"
)

const (
	backendName    = "arweave"
	DefaultGateway = "https://gateway.irys.xyz/"
)

// HTTPUploader は Irys Uploader（Cloud Run 等の HTTP API）経由で Arweave に保存する。
//
//	POST {baseURL}/upload/json  (application/json)
//	POST {baseURL}/upload/file  (その他の content type, raw body)
//
// レスポンスは {"id": "...", "uri": "https://gateway.irys.xyz/<id>"}。
type HTTPUploader struct {
	client  *http.Client
	baseURL string // 例: "https://champion-irys-uploader-xxxx.a.run.app"
	apiKey  string // 認証が必要な場合に使用（IRYS_SERVICE_API_KEY など）
	gateway string
}

// NewHTTPUploader は Arweave/Irys 用の HTTP uploader を生成します。
func NewHTTPUploader(baseURL, apiKey string, timeout time.Duration, gateway string) *HTTPUploader {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	gateway = strings.TrimSpace(gateway)
	if gateway == "" {
		gateway = DefaultGateway
	}
	return &HTTPUploader{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(apiKey),
		gateway: gateway,
	}
}

func (u *HTTPUploader) Name() string         { return backendName }
func (u *HTTPUploader) PublicPrefix() string { return u.gateway }

// Put uploads data and returns its gateway URI.
func (u *HTTPUploader) Put(ctx context.Context, data []byte, contentType, contentHash string) (string, error) {
	if len(data) == 0 {
		return "", &mintdom.PermanentStorageError{Backend: backendName, Err: fmt.Errorf("payload is empty")}
	}
	if u.baseURL == "" {
		return "", &mintdom.PermanentStorageError{Backend: backendName, Err: fmt.Errorf("baseURL is empty; arweave endpoint not configured")}
	}

	endpoint := u.baseURL + "/upload/file"
	if contentType == "application/json" {
		endpoint = u.baseURL + "/upload/json"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", &mintdom.PermanentStorageError{Backend: backendName, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", contentType)
	// uploader 側で Arweave tag として付与される
	req.Header.Set("X-Content-Sha256", contentHash)
	if u.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+u.apiKey)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		log.Printf("[arweave] http request FAILED err=%v", err)
		return "", &mintdom.TransientStorageError{Backend: backendName, Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &mintdom.TransientStorageError{Backend: backendName, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("[arweave] upload FAILED status=%d body=%s", resp.StatusCode, string(bodyBytes))
		return "", mintdom.StorageStatusError(backendName, resp.StatusCode, string(bodyBytes))
	}

	var res struct {
		ID  string `json:"id"`
		URI string `json:"uri"` // 例: "https://gateway.irys.xyz/xxxx"
	}
	if err := json.Unmarshal(bodyBytes, &res); err != nil {
		log.Printf("[arweave] decode upload response FAILED err=%v body=%s", err, string(bodyBytes))
		return "", &mintdom.TransientStorageError{Backend: backendName, Err: fmt.Errorf("decode upload response: %w", err)}
	}
	uri := strings.TrimSpace(res.URI)
	if uri == "" && strings.TrimSpace(res.ID) != "" {
		uri = strings.TrimRight(u.gateway, "/") + "/" + strings.TrimSpace(res.ID)
	}
	if uri == "" {
		return "", &mintdom.TransientStorageError{Backend: backendName, Err: fmt.Errorf("upload response has empty uri")}
	}

	log.Printf("[arweave] upload OK type=%s size=%d uri=%s", contentType, len(data), uri)
	return uri, nil
}
