package entity

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rflorenc/shop-migration-workbench/internal/models"
	"github.com/rflorenc/shop-migration-workbench/internal/platform"
)

// Page is an online store page in REST write shape.
type Page struct {
	ID                string  `json:"id,omitempty"`
	AdminGraphQLAPIID string  `json:"admin_graphql_api_id,omitempty"`
	CreatedAt         string  `json:"created_at,omitempty"`
	UpdatedAt         string  `json:"updated_at,omitempty"`
	Title             string  `json:"title"`
	Handle            string  `json:"handle"`
	BodyHTML          string  `json:"body_html"`
	TemplateSuffix    *string `json:"template_suffix"`
	Published         bool    `json:"published"`
}

// PagePayload strips server-assigned fields. p is not modified.
func PagePayload(p *Page) *Page {
	out := *p
	out.ID, out.AdminGraphQLAPIID, out.CreatedAt, out.UpdatedAt = "", "", "", ""
	return &out
}

type pageNode struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Handle         string  `json:"handle"`
	Body           string  `json:"body"`
	TemplateSuffix *string `json:"templateSuffix"`
	IsPublished    bool    `json:"isPublished"`
	CreatedAt      string  `json:"createdAt"`
	UpdatedAt      string  `json:"updatedAt"`
}

const pageFragment = `... on Page { id title handle body templateSuffix isPublished createdAt updatedAt }`

func pageFromNode(n *pageNode) *Page {
	return &Page{
		ID:                platform.NumericID(n.ID),
		AdminGraphQLAPIID: n.ID,
		CreatedAt:         n.CreatedAt,
		UpdatedAt:         n.UpdatedAt,
		Title:             n.Title,
		Handle:            n.Handle,
		BodyHTML:          n.Body,
		TemplateSuffix:    n.TemplateSuffix,
		Published:         n.IsPublished,
	}
}

// Pages migrates pages by handle.
type Pages struct{}

func (Pages) Kind() models.EntityKind { return models.KindPages }

func (Pages) FetchByIDs(ctx context.Context, src *platform.Session, ids []string, logger func(string)) ([]*Record, error) {
	nodes := fetchNodes(ctx, src, toGIDs("Page", ids), pageFragment,
		func(n *pageNode) bool { return n.ID != "" }, logger)
	out := make([]*Record, len(nodes))
	for i, n := range nodes {
		if n == nil {
			continue
		}
		p := pageFromNode(n)
		out[i] = &Record{SourceID: p.ID, NaturalKey: p.Handle, Title: firstNonEmpty(p.Title, p.ID), Data: p}
	}
	return out, nil
}

const pageByHandleQuery = `query($q: String!) {
  pages(first: 5, query: $q) { nodes { id title handle body } }
}`

func (Pages) ResolveExisting(ctx context.Context, dst *platform.Session, keys []string, logger func(string)) []*Match {
	return resolveEach(ctx, keys, logger, func(ctx context.Context, handle string) (*Match, error) {
		var data struct {
			Pages struct {
				Nodes []pageNode `json:"nodes"`
			} `json:"pages"`
		}
		if err := dst.GraphQL(ctx, pageByHandleQuery, map[string]any{"q": platform.HandleQuery(handle)}, &data); err != nil {
			return nil, err
		}
		for i := range data.Pages.Nodes {
			if n := data.Pages.Nodes[i]; n.Handle == handle {
				return &Match{TargetID: platform.NumericID(n.ID), NaturalKey: n.Handle, Data: pageFromNode(&n)}, nil
			}
		}
		return nil, nil
	})
}

func (Pages) Create(ctx context.Context, dst *platform.Session, rec *Record) (string, error) {
	return restWrite(ctx, dst, http.MethodPost, "pages.json", "page", PagePayload(rec.Data.(*Page)))
}

func (Pages) Update(ctx context.Context, dst *platform.Session, match *Match, rec *Record) (string, error) {
	return restWrite(ctx, dst, http.MethodPut, fmt.Sprintf("pages/%s.json", match.TargetID), "page", PagePayload(rec.Data.(*Page)))
}

func (Pages) Compare(rec *Record, match *Match) (map[string]any, map[string]any) {
	view := func(p *Page) map[string]any {
		return map[string]any{"title": p.Title, "handle": p.Handle, "body_html": truncateRunes(p.BodyHTML, 200)}
	}
	if t, ok := match.Data.(*Page); ok {
		return view(rec.Data.(*Page)), view(t)
	}
	return view(rec.Data.(*Page)), map[string]any{"handle": match.NaturalKey}
}
