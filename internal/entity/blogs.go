package entity

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rflorenc/shop-migration-workbench/internal/models"
	"github.com/rflorenc/shop-migration-workbench/internal/platform"
)

// Blog is a blog in REST shape together with its articles.
type Blog struct {
	ID                string     `json:"id,omitempty"`
	AdminGraphQLAPIID string     `json:"admin_graphql_api_id,omitempty"`
	Title             string     `json:"title"`
	Handle            string     `json:"handle"`
	Commentable       string     `json:"commentable"`
	TemplateSuffix    *string    `json:"template_suffix,omitempty"`
	Articles          []*Article `json:"-"`
}

// BlogPayload is the body used to create a blog.
func BlogPayload(b *Blog) map[string]any {
	return map[string]any{
		"title":       b.Title,
		"handle":      b.Handle,
		"commentable": b.Commentable,
	}
}

// Article is a blog article in REST write shape.
type Article struct {
	ID                string `json:"id,omitempty"`
	AdminGraphQLAPIID string `json:"admin_graphql_api_id,omitempty"`
	BlogID            string `json:"blog_id,omitempty"`
	UserID            string `json:"user_id,omitempty"`
	CreatedAt         string `json:"created_at,omitempty"`
	UpdatedAt         string `json:"updated_at,omitempty"`
	Title             string `json:"title"`
	Handle            string `json:"handle"`
	BodyHTML          string `json:"body_html"`
	Summary           string `json:"summary_html"`
	Tags              string `json:"tags"`
	Author            string `json:"author"`
	Image             *Image `json:"image,omitempty"`
	Published         bool   `json:"published"`
}

// ArticlePayload strips server-assigned fields and reduces the image to
// src and alt. a is not modified.
func ArticlePayload(a *Article) *Article {
	out := *a
	out.ID, out.AdminGraphQLAPIID, out.BlogID, out.UserID = "", "", "", ""
	out.CreatedAt, out.UpdatedAt = "", ""
	if a.Image != nil {
		out.Image = &Image{Src: a.Image.Src, Alt: a.Image.Alt}
	}
	return &out
}

type blogNode struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Handle         string  `json:"handle"`
	CommentPolicy  string  `json:"commentPolicy"`
	TemplateSuffix *string `json:"templateSuffix"`
}

type articleNode struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Handle      string   `json:"handle"`
	ContentHTML string   `json:"contentHtml"`
	Summary     *string  `json:"summary"`
	Tags        []string `json:"tags"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
	Author      *struct {
		Name string `json:"name"`
	} `json:"author"`
	Image       *imageNode `json:"image"`
	IsPublished bool       `json:"isPublished"`
}

const blogFragment = `... on Blog { id title handle commentPolicy templateSuffix }`

const blogArticlesQuery = `query($id: ID!, $after: String) {
  blog(id: $id) {
    articles(first: 250, after: $after) {
      nodes {
        id title handle contentHtml summary tags createdAt updatedAt
        author { name }
        image { url altText }
        isPublished
      }
      pageInfo { hasNextPage endCursor }
    }
  }
}`

func blogFromNode(n *blogNode) *Blog {
	return &Blog{
		ID:                platform.NumericID(n.ID),
		AdminGraphQLAPIID: n.ID,
		Title:             n.Title,
		Handle:            n.Handle,
		Commentable:       commentable(n.CommentPolicy),
		TemplateSuffix:    n.TemplateSuffix,
	}
}

func articleFromNode(n *articleNode, blogID string) *Article {
	a := &Article{
		ID:                platform.NumericID(n.ID),
		AdminGraphQLAPIID: n.ID,
		BlogID:            blogID,
		CreatedAt:         n.CreatedAt,
		UpdatedAt:         n.UpdatedAt,
		Title:             n.Title,
		Handle:            n.Handle,
		BodyHTML:          n.ContentHTML,
		Summary:           stringOr(n.Summary, ""),
		Tags:              joinTags(n.Tags),
		Published:         n.IsPublished,
	}
	if n.Author != nil {
		a.Author = n.Author.Name
	}
	if n.Image != nil {
		a.Image = &Image{Src: n.Image.URL, Alt: stringOr(n.Image.AltText, "")}
	}
	return a
}

// listArticles pages through all articles of the blog with global id blogGID.
func listArticles(ctx context.Context, s *platform.Session, blogGID string) ([]*articleNode, error) {
	return platform.Paginate(ctx, func(ctx context.Context, cursor string) ([]*articleNode, platform.PageInfo, error) {
		var data struct {
			Blog *struct {
				Articles struct {
					Nodes    []*articleNode    `json:"nodes"`
					PageInfo platform.PageInfo `json:"pageInfo"`
				} `json:"articles"`
			} `json:"blog"`
		}
		vars := map[string]any{"id": blogGID, "after": platform.CursorVar(cursor)}
		if err := s.GraphQL(ctx, blogArticlesQuery, vars, &data); err != nil {
			return nil, platform.PageInfo{}, err
		}
		if data.Blog == nil {
			return nil, platform.PageInfo{}, fmt.Errorf("blog %s: %w", blogGID, platform.ErrNotFound)
		}
		return data.Blog.Articles.Nodes, data.Blog.Articles.PageInfo, nil
	})
}

// Blogs migrates blogs by handle, with their articles as children.
type Blogs struct{}

func (Blogs) Kind() models.EntityKind { return models.KindBlogs }

func (Blogs) ChildLabel() string { return "Artikel" }

// FetchByIDs fetches the blogs and all of their articles. A blog whose
// articles cannot be listed is reported as not found.
func (Blogs) FetchByIDs(ctx context.Context, src *platform.Session, ids []string, logger func(string)) ([]*Record, error) {
	nodes := fetchNodes(ctx, src, toGIDs("Blog", ids), blogFragment,
		func(n *blogNode) bool { return n.ID != "" }, logger)
	out := make([]*Record, len(nodes))
	for i, n := range nodes {
		if n == nil {
			continue
		}
		b := blogFromNode(n)
		articles, err := listArticles(ctx, src, n.ID)
		if err != nil {
			logf(logger, "  FAIL: listing articles of %s: %v", b.Title, err)
			continue
		}
		for _, a := range articles {
			if a != nil {
				b.Articles = append(b.Articles, articleFromNode(a, b.ID))
			}
		}
		out[i] = &Record{SourceID: b.ID, NaturalKey: b.Handle, Title: firstNonEmpty(b.Title, b.ID), Data: b}
	}
	return out, nil
}

const blogByHandleQuery = `query($q: String!) {
  blogs(first: 5, query: $q) { nodes { id title handle } }
}`

func (Blogs) ResolveExisting(ctx context.Context, dst *platform.Session, keys []string, logger func(string)) []*Match {
	return resolveEach(ctx, keys, logger, func(ctx context.Context, handle string) (*Match, error) {
		var data struct {
			Blogs struct {
				Nodes []handleNode `json:"nodes"`
			} `json:"blogs"`
		}
		if err := dst.GraphQL(ctx, blogByHandleQuery, map[string]any{"q": platform.HandleQuery(handle)}, &data); err != nil {
			return nil, err
		}
		return firstHandleMatch(data.Blogs.Nodes, handle), nil
	})
}

func (Blogs) Create(ctx context.Context, dst *platform.Session, rec *Record) (string, error) {
	return restWrite(ctx, dst, http.MethodPost, "blogs.json", "blog", BlogPayload(rec.Data.(*Blog)))
}

// Update keeps the existing blog as is and hands back its id so that the
// articles are written into it.
func (Blogs) Update(_ context.Context, _ *platform.Session, match *Match, _ *Record) (string, error) {
	return match.TargetID, nil
}

// ChildrenAwaitParent holds back the articles of a blog in conflict.
func (Blogs) ChildrenAwaitParent() bool { return true }

func (Blogs) Compare(rec *Record, match *Match) (map[string]any, map[string]any) {
	b := rec.Data.(*Blog)
	return map[string]any{"title": b.Title, "handle": b.Handle}, handleView(match)
}

func (Blogs) ListChildren(_ context.Context, _ *platform.Session, parent *Record) ([]*Record, error) {
	b := parent.Data.(*Blog)
	out := make([]*Record, len(b.Articles))
	for i, a := range b.Articles {
		out[i] = &Record{SourceID: a.ID, NaturalKey: a.Handle, Title: "Artikel: " + a.Title, Data: a}
	}
	return out, nil
}

func (Blogs) ResolveChildren(ctx context.Context, dst *platform.Session, parentTargetID string, _ *Record, keys []string, logger func(string)) []*Match {
	out := make([]*Match, len(keys))
	existing, err := listArticles(ctx, dst, platform.ToGID("Blog", parentTargetID))
	if err != nil {
		logf(logger, "  WARN: listing articles in target blog %s failed: %v", parentTargetID, err)
		return out
	}
	byHandle := make(map[string]*articleNode, len(existing))
	for _, a := range existing {
		if a != nil {
			byHandle[a.Handle] = a
		}
	}
	for i, key := range keys {
		if a, ok := byHandle[key]; ok {
			out[i] = &Match{TargetID: platform.NumericID(a.ID), NaturalKey: a.Handle, Data: articleFromNode(a, parentTargetID)}
		}
	}
	return out
}

func (Blogs) CreateChild(ctx context.Context, dst *platform.Session, parentTargetID string, _, child *Record) (string, error) {
	resource := fmt.Sprintf("blogs/%s/articles.json", parentTargetID)
	return restWrite(ctx, dst, http.MethodPost, resource, "article", ArticlePayload(child.Data.(*Article)))
}

func (Blogs) UpdateChild(ctx context.Context, dst *platform.Session, parentTargetID string, match *Match, child *Record) (string, error) {
	resource := fmt.Sprintf("blogs/%s/articles/%s.json", parentTargetID, match.TargetID)
	return restWrite(ctx, dst, http.MethodPut, resource, "article", ArticlePayload(child.Data.(*Article)))
}

func (Blogs) CompareChild(child *Record, match *Match) (map[string]any, map[string]any) {
	view := func(a *Article) map[string]any {
		return map[string]any{"title": a.Title, "handle": a.Handle, "author": a.Author}
	}
	if t, ok := match.Data.(*Article); ok {
		return view(child.Data.(*Article)), view(t)
	}
	return view(child.Data.(*Article)), map[string]any{"handle": match.NaturalKey}
}
