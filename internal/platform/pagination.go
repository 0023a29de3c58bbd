package platform

import "context"

// PageInfo is the cursor block of a GraphQL connection.
type PageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

// PageFunc fetches one page starting after cursor ("" for the first page).
type PageFunc[T any] func(ctx context.Context, cursor string) ([]T, PageInfo, error)

// Paginate follows hasNextPage/endCursor until the connection is exhausted.
func Paginate[T any](ctx context.Context, fetch PageFunc[T]) ([]T, error) {
	var all []T
	cursor := ""
	for {
		items, info, err := fetch(ctx, cursor)
		if err != nil {
			return all, err
		}
		all = append(all, items...)
		if !info.HasNextPage || info.EndCursor == "" || info.EndCursor == cursor {
			return all, nil
		}
		cursor = info.EndCursor
	}
}

// CursorVar returns the GraphQL variable value for cursor (nil for the first page).
func CursorVar(cursor string) any {
	if cursor == "" {
		return nil
	}
	return cursor
}
