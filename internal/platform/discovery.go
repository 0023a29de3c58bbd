package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/rflorenc/shop-migration-workbench/internal/models"
)

// ShopInfo holds the parsed shop.json response.
type ShopInfo struct {
	Name     string `json:"name"`
	Domain   string `json:"domain"`
	MyDomain string `json:"myshopify_domain"`
	Currency string `json:"currency"`
}

// ParseShopResponse extracts the shop object from a shop.json response body.
func ParseShopResponse(body []byte) (*ShopInfo, error) {
	var resp struct {
		Shop *ShopInfo `json:"shop"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing shop response: %w", err)
	}
	if resp.Shop == nil || resp.Shop.Name == "" {
		return nil, fmt.Errorf("shop response missing name")
	}
	return resp.Shop, nil
}

// FetchShopInfo reads shop.json, which also verifies the access token.
func (s *Session) FetchShopInfo(ctx context.Context) (*ShopInfo, error) {
	var raw json.RawMessage
	if err := s.REST(ctx, http.MethodGet, "shop.json", nil, &raw); err != nil {
		return nil, err
	}
	return ParseShopResponse(raw)
}

// CheckAndStore tests a connection and records the result on the store.
func CheckAndStore(ctx context.Context, s *Session, conn *models.Connection, store *models.ConnectionStore) error {
	info, err := s.FetchShopInfo(ctx)
	if err != nil {
		log.Printf("  CHECK: %s: %v", conn.Name, err)
		store.SetHealth(conn.ID, "error", err.Error(), "")
		return err
	}
	store.SetHealth(conn.ID, "ok", "", info.Name)
	fmt.Printf("  CHECK: %s: connected to %s\n", conn.Name, info.Name)
	return nil
}
