package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rflorenc/shop-migration-workbench/internal/models"
)

// Options selects and tunes the Requester used for every shop.
type Options struct {
	ClientOptions
	// ProxyURL routes all calls through a relay instead of the shop directly.
	ProxyURL string
}

// NewRequester creates the Requester described by opts.
func NewRequester(opts Options) Requester {
	if opts.ProxyURL != "" {
		return NewProxyClient(opts.ProxyURL, opts.ClientOptions)
	}
	return NewClient(opts.ClientOptions)
}

// Session issues REST and GraphQL calls against one shop.
type Session struct {
	requester  Requester
	shop       models.Shop
	apiVersion string
}

// NewSession binds a Requester to a shop's credentials.
func NewSession(r Requester, shop models.Shop, apiVersion string) *Session {
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	return &Session{requester: r, shop: shop, apiVersion: apiVersion}
}

// ShopURL returns the shop this session talks to.
func (s *Session) ShopURL() string {
	return s.shop.URL
}

// REST calls an admin REST resource such as "products/123.json" and
// unmarshals the response into dest when dest is non-nil.
func (s *Session) REST(ctx context.Context, method, resource string, body, dest any) error {
	raw, err := s.requester.Do(ctx, Request{
		ShopURL:     s.shop.URL,
		AccessToken: s.shop.Token,
		Endpoint:    "/admin/api/" + s.apiVersion + "/" + strings.TrimPrefix(resource, "/"),
		Method:      method,
		Body:        body,
	})
	if err != nil {
		return err
	}
	if dest == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decoding %s: %w", resource, err)
	}
	return nil
}

// GraphQL runs a query and unmarshals its data object into dest.
func (s *Session) GraphQL(ctx context.Context, query string, vars map[string]any, dest any) error {
	raw, err := s.requester.Do(ctx, Request{
		ShopURL:     s.shop.URL,
		AccessToken: s.shop.Token,
		GraphQL:     &GraphQLQuery{Query: query, Variables: vars},
	})
	if err != nil {
		return err
	}
	var env graphQLEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decoding graphql response: %w", err)
	}
	if dest == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return fmt.Errorf("decoding graphql data: %w", err)
	}
	return nil
}
