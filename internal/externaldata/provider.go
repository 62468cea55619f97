package externaldata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Provider performs the actual network call for one external-data source.
type Provider interface {
	Fetch(ctx context.Context, path string, params map[string]string) (json.RawMessage, error)
}

// HTTPProvider is a generic GET-and-decode-JSON provider, following the
// same http.Client-with-Timeout/NewRequestWithContext/status-branching
// conventions as ajitpratap0-cryptofunk/internal/llm/client.go.
type HTTPProvider struct {
	BaseURL    string
	httpClient *http.Client
	headers    map[string]string
}

// NewHTTPProvider returns an HTTPProvider with the given timeout.
func NewHTTPProvider(baseURL string, timeout time.Duration, headers map[string]string) *HTTPProvider {
	return &HTTPProvider{
		BaseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		headers:    headers,
	}
}

func (p *HTTPProvider) Fetch(ctx context.Context, path string, params map[string]string) (json.RawMessage, error) {
	u, err := url.Parse(p.BaseURL + path)
	if err != nil {
		return nil, &FetchError{Err: fmt.Errorf("externaldata: invalid provider url: %w", err)}
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{StatusCode: resp.StatusCode, Err: fmt.Errorf("externaldata: provider returned %d: %s", resp.StatusCode, string(body))}
	}

	return json.RawMessage(body), nil
}

var _ Provider = (*HTTPProvider)(nil)
