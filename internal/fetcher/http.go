package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// upstream bundles the request plumbing shared by the provider adapters.
type upstream struct {
	provider  string
	baseURL   string
	userAgent string
	timeout   time.Duration
	client    *http.Client
}

func newUpstream(provider, baseURL, fallbackURL, userAgent string, timeout time.Duration) upstream {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = fallbackURL
	}
	return upstream{
		provider:  provider,
		baseURL:   baseURL,
		userAgent: userAgent,
		timeout:   timeout,
		client:    &http.Client{Timeout: timeout},
	}
}

// get issues a timeout-bounded GET and returns the body of a 200 response.
func (u upstream) get(ctx context.Context, symbol, endpoint string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &FetchError{Provider: u.provider, Symbol: symbol, Cause: CauseNetwork, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(u.userAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, transportError(u.provider, symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(u.provider, symbol, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{
			Provider: u.provider,
			Symbol:   symbol,
			Cause:    CauseHTTPStatus,
			Err:      fmt.Errorf("%s api error (%d): %s", u.provider, resp.StatusCode, strings.TrimSpace(string(body))),
			Payload:  rawPayload(body),
		}
	}
	return body, nil
}

func (u upstream) decode(symbol string, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return &FetchError{Provider: u.provider, Symbol: symbol, Cause: CauseDecode, Err: err, Payload: rawPayload(body)}
	}
	return nil
}

// rawPayload keeps body only when it is valid JSON so FetchError stays marshalable.
func rawPayload(body []byte) json.RawMessage {
	if len(body) == 0 || !json.Valid(body) {
		return nil
	}
	return json.RawMessage(body)
}
