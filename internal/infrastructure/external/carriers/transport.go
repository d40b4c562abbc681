// Package carriers contains the insurance carrier adapters: the shared HTTP
// transport, the offline mock adapter, the Harborline adapter and the
// registry that resolves carrier codes to configured adapters.
package carriers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/garyjia/carrier-integration/internal/domain/carrier"
)

// maxResponseBytes bounds how much of a carrier response body is read.
const maxResponseBytes = 10 << 20

// Transport is the outbound request skeleton concrete adapters hold. It owns
// the adapter's copy of the carrier config, builds auth headers, classifies
// failures and reports every call to a RequestSink.
type Transport struct {
	code       string
	httpClient *http.Client
	sink       RequestSink

	mu      sync.RWMutex
	config  *carrier.Config
	baseURL string
}

// NewTransport creates a transport for a carrier code
func NewTransport(code string, httpClient *http.Client, sink RequestSink) *Transport {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Transport{
		code:       code,
		httpClient: httpClient,
		sink:       sink,
		config:     &carrier.Config{Code: code},
	}
}

// Configure stores a copy of cfg and resolves the base endpoint: the config
// override when present, the carrier default otherwise.
func (t *Transport) Configure(cfg *carrier.Config, defaultEndpoint string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.config = cfg.Clone()
	endpoint := strings.TrimSpace(cfg.APIEndpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	t.baseURL = strings.TrimRight(endpoint, "/")
}

// Config returns a snapshot of the current config.
func (t *Transport) Config() *carrier.Config {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.config.Clone()
}

// BaseURL returns the resolved endpoint.
func (t *Transport) BaseURL() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.baseURL
}

// SetTokens replaces the OAuth tokens after a refresh.
func (t *Transport) SetTokens(accessToken, refreshToken string, expiry *time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.config.AccessToken = accessToken
	if refreshToken != "" {
		t.config.RefreshToken = refreshToken
	}
	if expiry != nil {
		e := *expiry
		t.config.TokenExpiry = &e
	} else {
		t.config.TokenExpiry = nil
	}
}

// AuthHeaders builds auth headers by priority: bearer token, API key,
// HTTP basic from client credentials, then nothing.
func (t *Transport) AuthHeaders() http.Header {
	t.mu.RLock()
	defer t.mu.RUnlock()

	headers := http.Header{}
	switch {
	case t.config.AccessToken != "":
		headers.Set("Authorization", "Bearer "+t.config.AccessToken)
	case t.config.APIKey != "":
		headers.Set("X-API-Key", t.config.APIKey)
	case t.config.ClientID != "" && t.config.ClientSecret != "":
		creds := base64.StdEncoding.EncodeToString([]byte(t.config.ClientID + ":" + t.config.ClientSecret))
		headers.Set("Authorization", "Basic "+creds)
	}
	return headers
}

// Do sends a JSON request to path (relative to the base URL, or absolute) and
// decodes a JSON response into out when out is non-nil.
func (t *Transport) Do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.resolve(path), reader)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range t.AuthHeaders() {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	return t.execute(req, path, out)
}

// PostForm sends a form-encoded POST without auth headers. Token endpoints
// take their credentials in the form body.
func (t *Transport) PostForm(ctx context.Context, rawURL string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.resolve(rawURL), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build form request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	return t.execute(req, req.URL.Path, out)
}

// Ping issues a lightweight GET and reports whether it succeeded.
func (t *Transport) Ping(ctx context.Context, path string) bool {
	return t.Do(ctx, http.MethodGet, path, nil, nil) == nil
}

// execute runs the request, measures it, classifies failures and records the call.
func (t *Transport) execute(req *http.Request, path string, out interface{}) error {
	start := time.Now()
	entry := RequestLog{
		Carrier: t.code,
		Method:  req.Method,
		Path:    path,
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		entry.Duration = time.Since(start)
		cerr := &carrier.Error{
			Code:      carrier.CodeNetwork,
			Message:   err.Error(),
			Retryable: true,
		}
		entry.Error = cerr.Message
		t.sink.Record(entry)
		return cerr
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	entry.Duration = time.Since(start)
	entry.StatusCode = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		cerr := classifyResponse(resp.StatusCode, respBody)
		entry.Error = cerr.Message
		t.sink.Record(entry)
		return cerr
	}

	if readErr != nil {
		cerr := &carrier.Error{
			Code:       carrier.CodeNetwork,
			Message:    fmt.Sprintf("failed to read response: %v", readErr),
			StatusCode: resp.StatusCode,
			Retryable:  true,
		}
		entry.Error = cerr.Message
		t.sink.Record(entry)
		return cerr
	}

	if out != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			entry.Error = fmt.Sprintf("malformed response: %v", err)
			t.sink.Record(entry)
			return fmt.Errorf("failed to decode %s response: %w", path, err)
		}
	}

	entry.Success = true
	t.sink.Record(entry)
	return nil
}

func (t *Transport) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	base := t.BaseURL()
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// classifyResponse turns a non-2xx response into a tagged failure using the
// body's code/message when the carrier sends them.
func classifyResponse(status int, body []byte) *carrier.Error {
	cerr := &carrier.Error{
		Code:       carrier.HTTPErrorCode(status),
		StatusCode: status,
		Retryable:  carrier.IsRetryableStatus(status),
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(body, &parsed); err == nil {
		for _, key := range []string{"message", "error_description", "detail", "error"} {
			if msg, ok := parsed[key].(string); ok && msg != "" {
				cerr.Message = msg
				break
			}
		}
		for _, key := range []string{"code", "errorCode", "error_code"} {
			if code, ok := parsed[key].(string); ok && strings.EqualFold(code, carrier.CodeValidation) {
				cerr.Code = carrier.CodeValidation
			}
		}
	}

	if status == http.StatusUnprocessableEntity {
		cerr.Code = carrier.CodeValidation
	}

	if cerr.Message == "" {
		text := strings.TrimSpace(string(body))
		if len(text) > 200 {
			text = text[:200]
		}
		if text == "" {
			text = http.StatusText(status)
		}
		cerr.Message = text
	}

	return cerr
}
