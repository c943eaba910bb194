package genservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/kalambet/wrench/internal/composer"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 8 << 20

// HTTPClient invokes a generative service that accepts the payload as JSON
// at POST {baseURL}/invoke.
type HTTPClient struct {
	apiKey     string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewHTTPClient creates a client for the service at baseURL. apiKey may be
// empty when the service needs no authentication.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

// Invoke posts p and returns the JSON answer. A {"response": ...} envelope
// is unwrapped; a response field holding a JSON string is decoded as text.
func (c *HTTPClient) Invoke(ctx context.Context, p composer.Payload) (RawResponse, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, malformed(fmt.Errorf("marshaling payload: %w", err))
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/invoke", bytes.NewReader(body))
	if err != nil {
		return nil, malformed(fmt.Errorf("creating request: %w", err))
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(fmt.Errorf("executing request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError(fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, rejected(&RejectedError{
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(truncate(respBody, 512))),
		})
	}

	return unwrap(respBody)
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func unwrap(body []byte) (RawResponse, error) {
	if !gjson.ValidBytes(body) {
		return nil, malformed(fmt.Errorf("response body is not JSON: %.80q", body))
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return RawResponse(bytes.TrimSpace(body)), nil
	}

	inner := root.Get("response")
	switch {
	case !inner.Exists():
		return RawResponse(bytes.TrimSpace(body)), nil
	case inner.Type == gjson.String:
		return decodeText(inner.Str)
	default:
		return RawResponse(inner.Raw), nil
	}
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
