// Package convertguru is the HTTP transport for the Convert.Guru API.
package convertguru

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"convertmcp/internal/model"
)

const (
	DefaultBaseURL = "https://convert.guru"
	DefaultTimeout = 5 * time.Minute

	PathDetectFileType = "/api/v1/detect_file_type"
	PathUpload         = "/api/v1/upload"
	PathConvert        = "/api/v1/convert"

	// UploadField is the multipart field that carries the file.
	UploadField = "file"

	// DownloadChunkSize is the unit in which download bodies are copied.
	DownloadChunkSize = 8 * 1024

	// maxErrorBodyBytes caps how much of a failed download body is kept for
	// the error message.
	maxErrorBodyBytes = 1 << 20

	requestFailedMessage = "Error making API request"
)

// Client issues the outbound calls of the detection and conversion flows.
// It is safe for concurrent use; the zero HTTPClient falls back to a client
// with DefaultTimeout.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: timeout},
		Logger:     zerolog.Nop(),
	}
}

// PostBinary posts body as application/octet-stream to path.
func (c *Client) PostBinary(ctx context.Context, path string, body []byte) (int, string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(body), true)
	if err != nil {
		return 0, "", model.TransportError(requestFailedMessage, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	return c.doText(req)
}

// PostMultipart posts data as a single multipart form file under field.
func (c *Client) PostMultipart(ctx context.Context, path, field string, data []byte, filename string) (int, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return 0, "", model.ProcessingError(fmt.Errorf("build multipart body: %w", err))
	}
	if _, err := part.Write(data); err != nil {
		return 0, "", model.ProcessingError(fmt.Errorf("write multipart body: %w", err))
	}
	if err := writer.Close(); err != nil {
		return 0, "", model.ProcessingError(fmt.Errorf("finalize multipart body: %w", err))
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(body.Bytes()), true)
	if err != nil {
		return 0, "", model.TransportError(requestFailedMessage, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.doText(req)
}

// PostJSON posts v as JSON. The status is returned unmapped; see
// NormalizeConvertBody for the convert step's status policy.
func (c *Client) PostJSON(ctx context.Context, path string, v any) (int, string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return 0, "", model.ProcessingError(fmt.Errorf("marshal request: %w", err))
	}
	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(payload), true)
	if err != nil {
		return 0, "", model.TransportError(requestFailedMessage, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doText(req)
}

// GetStream downloads rawURL. On 200 the body is copied to sink in
// DownloadChunkSize chunks and the returned text is empty; on any other
// status nothing is written and the body text is returned.
func (c *Client) GetStream(ctx context.Context, rawURL string, sink io.Writer) (int, string, error) {
	failure := fmt.Sprintf("An error occurred during file download from %s", rawURL)

	req, err := c.newRequest(ctx, http.MethodGet, rawURL, nil, c.sameOrigin(rawURL))
	if err != nil {
		return 0, "", model.TransportError(failure, err)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return 0, "", model.TransportError(failure, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	c.Logger.Debug().Str("method", req.Method).Str("url", rawURL).Int("status", resp.StatusCode).Msg("remote response")

	if resp.StatusCode != http.StatusOK {
		text, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		if err != nil {
			return resp.StatusCode, "", model.TransportError(failure, err)
		}
		return resp.StatusCode, string(text), nil
	}

	buf := make([]byte, DownloadChunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := sink.Write(buf[:n]); err != nil {
				return resp.StatusCode, "", model.ProcessingError(err)
			}
		}
		if errors.Is(readErr, io.EOF) {
			return resp.StatusCode, "", nil
		}
		if readErr != nil {
			return resp.StatusCode, "", model.TransportError(failure, readErr)
		}
	}
}

// ResolveURL turns a root-relative location into an absolute URL on BaseURL.
// Anything else is returned unchanged.
func (c *Client) ResolveURL(location string) string {
	if strings.HasPrefix(location, "/") {
		return c.baseURL() + location
	}
	return location
}

func (c *Client) doText(req *http.Request) (int, string, error) {
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return 0, "", model.TransportError(requestFailedMessage, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", model.TransportError(requestFailedMessage, err)
	}

	c.Logger.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Msg("remote response")
	return resp.StatusCode, string(body), nil
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string, body io.Reader, withKey bool) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("cache-control", "no-cache")
	if withKey {
		req.Header.Set("api-key", c.APIKey)
	}
	return req, nil
}

// sameOrigin reports whether rawURL points at the configured service. The
// API key is not sent to other hosts.
func (c *Client) sameOrigin(rawURL string) bool {
	target, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	base, err := url.Parse(c.baseURL())
	if err != nil {
		return false
	}
	return strings.EqualFold(target.Scheme, base.Scheme) && strings.EqualFold(target.Host, base.Host)
}

func (c *Client) endpoint(path string) string {
	return c.baseURL() + path
}

func (c *Client) baseURL() string {
	baseURL := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if baseURL == "" {
		return DefaultBaseURL
	}
	return baseURL
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: DefaultTimeout}
}
