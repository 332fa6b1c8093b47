package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Backend fetches one source's raw records. Implementations return each
// record as undecoded JSON; per-source parse functions decide what is
// usable. HTTP and local-store implementations exist; tests inject fakes.
type Backend interface {
	Fetch(ctx context.Context) ([]json.RawMessage, error)
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(ctx context.Context) ([]json.RawMessage, error)

func (f BackendFunc) Fetch(ctx context.Context) ([]json.RawMessage, error) {
	return f(ctx)
}

const defaultFetchTimeout = 10 * time.Second

// HTTPBackend fetches records from a JSON endpoint. The payload may be a
// bare array or an object wrapping the array under "tools" or "items".
// Non-2xx responses degrade to an empty result rather than an error; only
// transport failures and unparseable payloads are reported.
type HTTPBackend struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration
	Logger  *zap.Logger
}

func NewHTTPBackend(url string, client *http.Client, logger *zap.Logger) *HTTPBackend {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPBackend{URL: url, Client: client, Logger: logger.Named("http_backend")}
}

func (b *HTTPBackend) Fetch(ctx context.Context) ([]json.RawMessage, error) {
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, b.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", b.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b.Logger.Warn("backend returned non-success status, treating as empty",
			zap.String("url", b.URL), zap.Int("status", resp.StatusCode))
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	records, err := decodeRecordList(body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", b.URL, err)
	}
	return records, nil
}

// decodeRecordList accepts either a top-level JSON array or an object with
// a "tools" or "items" array.
func decodeRecordList(body []byte) ([]json.RawMessage, error) {
	var direct []json.RawMessage
	if err := json.Unmarshal(body, &direct); err == nil {
		return direct, nil
	}
	var wrapped struct {
		Tools []json.RawMessage `json:"tools"`
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("payload is neither an array nor a wrapper object: %w", err)
	}
	if wrapped.Tools != nil {
		return wrapped.Tools, nil
	}
	return wrapped.Items, nil
}
