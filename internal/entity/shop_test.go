package entity

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rflorenc/shop-migration-workbench/internal/models"
	"github.com/rflorenc/shop-migration-workbench/internal/platform"
)

// fakeShop serves canned GraphQL and REST responses and records calls.
type fakeShop struct {
	graphql func(query string, vars map[string]any) (int, any)
	rest    func(method, path string, body map[string]any) (int, any)

	mu    sync.Mutex
	calls []string
}

func (f *fakeShop) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeShop) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func newFakeShop(t *testing.T, f *fakeShop) *platform.Session {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		var status int
		var resp any
		if strings.HasSuffix(r.URL.Path, "/graphql.json") {
			query, _ := body["query"].(string)
			vars, _ := body["variables"].(map[string]any)
			f.record("gql " + firstWord(query))
			status, resp = f.graphql(query, vars)
		} else {
			f.record(r.Method + " " + r.URL.Path)
			status, resp = f.rest(r.Method, r.URL.Path, body)
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(ts.Close)
	return platform.NewSession(platform.NewClient(platform.ClientOptions{}), models.Shop{URL: ts.URL, Token: "tok"}, "2026-01")
}

// firstWord returns the first selection of a GraphQL document, e.g. "nodes".
func firstWord(query string) string {
	q := query
	if i := strings.Index(q, "{"); i >= 0 {
		q = q[i+1:]
	}
	q = strings.TrimSpace(q)
	for i, r := range q {
		if r == '(' || r == ' ' || r == '{' || r == '\n' || r == ':' {
			return q[:i]
		}
	}
	return q
}

func data(v any) any {
	return map[string]any{"data": v}
}

func ptr[T any](v T) *T {
	return &v
}
