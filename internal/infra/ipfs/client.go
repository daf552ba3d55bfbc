// internal/infra/ipfs/client.go
package ipfs

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	mintdom "github.com/aaruvan/tokenchamp/internal/domain/mint"
)

const backendName = "ipfs"

// Client は Kubo 互換の HTTP API（/api/v0/add）で pin 付き upload を行う。
// 戻り値の URI は ipfs://<cid>。
type Client struct {
	apiURL string
	token  string // pinning サービス経由の場合のみ
	client *http.Client
}

func NewClient(apiURL, token string, timeout time.Duration) *Client {
	apiURL = strings.TrimSpace(apiURL)
	if apiURL == "" {
		apiURL = "http://127.0.0.1:5001"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiURL: strings.TrimRight(apiURL, "/"),
		token:  strings.TrimSpace(token),
		client: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string         { return backendName }
func (c *Client) PublicPrefix() string { return "ipfs://" }

func (c *Client) Put(ctx context.Context, data []byte, contentType, contentHash string) (string, error) {
	if len(data) == 0 {
		return "", &mintdom.PermanentStorageError{Backend: backendName, Err: fmt.Errorf("payload is empty")}
	}

	body, formType, err := multipartFile(contentHash, contentType, data)
	if err != nil {
		return "", &mintdom.PermanentStorageError{Backend: backendName, Err: err}
	}

	reqURL := fmt.Sprintf("%s/api/v0/add?pin=true&cid-version=1", c.apiURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, body)
	if err != nil {
		return "", &mintdom.PermanentStorageError{Backend: backendName, Err: err}
	}
	req.Header.Set("Content-Type", formType)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		log.Printf("[ipfs] add FAILED err=%v", err)
		return "", &mintdom.TransientStorageError{Backend: backendName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		log.Printf("[ipfs] add FAILED status=%s body=%s", resp.Status, strings.TrimSpace(string(b)))
		return "", mintdom.StorageStatusError(backendName, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	// add は 1 行 1 JSON の NDJSON。最後の Hash がルート
	var lastHash string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		var entry struct {
			Hash string `json:"Hash"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &entry); err == nil && entry.Hash != "" {
			lastHash = entry.Hash
		}
	}
	if err := scanner.Err(); err != nil {
		return "", &mintdom.TransientStorageError{Backend: backendName, Err: err}
	}
	if lastHash == "" {
		return "", &mintdom.TransientStorageError{Backend: backendName, Err: fmt.Errorf("ipfs add returned empty hash")}
	}

	uri := "ipfs://" + lastHash
	log.Printf("[ipfs] add OK type=%s size=%d uri=%s", contentType, len(data), uri)
	return uri, nil
}

func multipartFile(name, contentType string, data []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
