package entity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rflorenc/shop-migration-workbench/internal/platform"
)

// restWrite sends {key: body} and returns the id of the written resource.
func restWrite(ctx context.Context, dst *platform.Session, method, resource, key string, body any) (string, error) {
	var resp map[string]struct {
		ID json.Number `json:"id"`
	}
	if err := dst.REST(ctx, method, resource, map[string]any{key: body}, &resp); err != nil {
		return "", err
	}
	return resp[key].ID.String(), nil
}

// mutate runs a GraphQL mutation whose payload is data.<field> and returns
// the id of data.<field>.<object>. Reported userErrors are returned as
// platform.UserErrors.
func mutate(ctx context.Context, dst *platform.Session, query string, vars map[string]any, field, object string) (string, error) {
	var data map[string]map[string]json.RawMessage
	if err := dst.GraphQL(ctx, query, vars, &data); err != nil {
		return "", err
	}
	payload := data[field]

	var userErrs platform.UserErrors
	if raw, ok := payload["userErrors"]; ok {
		if err := json.Unmarshal(raw, &userErrs); err != nil {
			return "", fmt.Errorf("decoding %s userErrors: %w", field, err)
		}
	}
	if err := userErrs.Err(); err != nil {
		return "", err
	}

	var obj struct {
		ID string `json:"id"`
	}
	if raw, ok := payload[object]; ok {
		if err := json.Unmarshal(raw, &obj); err != nil {
			return "", fmt.Errorf("decoding %s: %w", field, err)
		}
	}
	return obj.ID, nil
}
