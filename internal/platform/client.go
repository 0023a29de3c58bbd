package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultAPIVersion is the admin API version used for REST and GraphQL calls.
const DefaultAPIVersion = "2026-01"

// Request is the envelope relayed to the shop admin API. Exactly one of
// Endpoint (REST) or GraphQL is set.
type Request struct {
	ShopURL     string        `json:"shopUrl"`
	AccessToken string        `json:"accessToken"`
	Endpoint    string        `json:"endpoint,omitempty"`
	Method      string        `json:"method,omitempty"`
	Body        any           `json:"body,omitempty"`
	GraphQL     *GraphQLQuery `json:"graphql,omitempty"`
}

// GraphQLQuery is a GraphQL document with its variables.
type GraphQLQuery struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// Requester relays a single request to the shop and returns the JSON body.
// Implementations must report non-2xx responses as *HTTPError and populated
// GraphQL errors as *GraphQLError.
type Requester interface {
	Do(ctx context.Context, req Request) (json.RawMessage, error)
}

// ClientOptions tunes the HTTP client.
type ClientOptions struct {
	APIVersion        string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// Client talks to the shop admin API directly.
type Client struct {
	apiVersion string
	throttle   throttle
	httpClient *http.Client
}

// NewClient creates a Client. A non-positive RequestsPerSecond disables throttling.
func NewClient(opts ClientOptions) *Client {
	if opts.APIVersion == "" {
		opts.APIVersion = DefaultAPIVersion
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Client{
		apiVersion: opts.APIVersion,
		throttle:   newThrottle(opts.RequestsPerSecond, opts.Burst),
		httpClient: &http.Client{Timeout: opts.Timeout},
	}
}

// APIVersion returns the admin API version this client targets.
func (c *Client) APIVersion() string {
	return c.apiVersion
}

// Do performs the request, retrying throttled responses a bounded number of times.
func (c *Client) Do(ctx context.Context, req Request) (json.RawMessage, error) {
	return c.throttle.do(ctx, req, c.attempt)
}

// attempt performs one request. retryAfter is negative when the error is final.
func (c *Client) attempt(ctx context.Context, req Request) (json.RawMessage, time.Duration, error) {
	method, path, payload := req.Method, req.Endpoint, req.Body
	if req.GraphQL != nil {
		method, path, payload = http.MethodPost, "/admin/api/"+c.apiVersion+"/graphql.json", req.GraphQL
	}
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if payload != nil && method != http.MethodGet {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, -1, fmt.Errorf("marshaling body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, ShopBaseURL(req.ShopURL)+path, bodyReader)
	if err != nil {
		return nil, -1, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("X-Shopify-Access-Token", req.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, -1, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, -1, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{Method: method, Endpoint: path, StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
		return nil, retryHint(resp.StatusCode, resp.Header.Get("Retry-After"), nil), httpErr
	}

	if req.GraphQL != nil {
		if gqlErr := checkGraphQL(body); gqlErr != nil {
			return nil, retryHint(resp.StatusCode, "", gqlErr), gqlErr
		}
	}
	return body, -1, nil
}

// ShopBaseURL turns a shop URL into a base URL. A bare host gets https://,
// an explicit scheme is kept.
func ShopBaseURL(shopURL string) string {
	u := strings.TrimSuffix(strings.TrimSpace(shopURL), "/")
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return "https://" + u
}

func retryAfterHeader(v string) time.Duration {
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
		return time.Duration(secs * float64(time.Second))
	}
	return 2 * time.Second
}

// truncate cuts s to at most maxLen bytes on a rune boundary.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
