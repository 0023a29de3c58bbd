package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ProxyClient relays requests through an HTTP proxy that forwards the
// envelope to the shop admin API. The relay passes the shop's 429 and
// THROTTLED responses through, so they are retried like direct calls.
type ProxyClient struct {
	proxyURL   string
	throttle   throttle
	httpClient *http.Client
}

// NewProxyClient creates a relay client posting to proxyURL, throttled by
// opts like a direct Client.
func NewProxyClient(proxyURL string, opts ClientOptions) *ProxyClient {
	if opts.Timeout == 0 {
		opts.Timeout = 120 * time.Second
	}
	return &ProxyClient{
		proxyURL:   proxyURL,
		throttle:   newThrottle(opts.RequestsPerSecond, opts.Burst),
		httpClient: &http.Client{Timeout: opts.Timeout},
	}
}

// Do posts the envelope to the relay, retrying throttled responses a
// bounded number of times.
func (p *ProxyClient) Do(ctx context.Context, req Request) (json.RawMessage, error) {
	return p.throttle.do(ctx, req, p.attempt)
}

func (p *ProxyClient) attempt(ctx context.Context, req Request) (json.RawMessage, time.Duration, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, -1, fmt.Errorf("marshaling relay request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.proxyURL, bytes.NewReader(data))
	if err != nil {
		return nil, -1, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, -1, fmt.Errorf("relay: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, -1, fmt.Errorf("reading response: %w", err)
	}

	method, endpoint := req.Method, req.Endpoint
	if req.GraphQL != nil {
		method, endpoint = http.MethodPost, "graphql"
	}
	if method == "" {
		method = http.MethodGet
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{Method: method, Endpoint: endpoint, StatusCode: resp.StatusCode, Body: relayErrorBody(body)}
		return nil, retryHint(resp.StatusCode, resp.Header.Get("Retry-After"), nil), httpErr
	}
	if req.GraphQL != nil {
		if gqlErr := checkGraphQL(body); gqlErr != nil {
			return nil, retryHint(resp.StatusCode, "", gqlErr), gqlErr
		}
	}
	return body, -1, nil
}

// relayErrorBody prefers the relay's {"error", "details"} fields over the raw body.
func relayErrorBody(body []byte) string {
	var e struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		if e.Details != "" {
			return truncate(e.Error+": "+e.Details, 200)
		}
		return e.Error
	}
	return truncate(string(body), 200)
}
