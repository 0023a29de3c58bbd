package entity

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rflorenc/shop-migration-workbench/internal/models"
	"github.com/rflorenc/shop-migration-workbench/internal/platform"
)

// Collection is a custom or smart collection in REST write shape.
type Collection struct {
	ID                string           `json:"id,omitempty"`
	AdminGraphQLAPIID string           `json:"admin_graphql_api_id,omitempty"`
	UpdatedAt         string           `json:"updated_at,omitempty"`
	Title             string           `json:"title"`
	Handle            string           `json:"handle"`
	BodyHTML          string           `json:"body_html"`
	SortOrder         string           `json:"sort_order"`
	TemplateSuffix    *string          `json:"template_suffix"`
	Image             *Image           `json:"image,omitempty"`
	Rules             []CollectionRule `json:"rules,omitempty"`
	Disjunctive       *bool            `json:"disjunctive,omitempty"`
}

// CollectionRule is one condition of a smart collection.
type CollectionRule struct {
	Column    string `json:"column"`
	Relation  string `json:"relation"`
	Condition string `json:"condition"`
}

// Smart reports whether the collection is rule based.
func (c *Collection) Smart() bool {
	return len(c.Rules) > 0
}

// resource returns the REST collection name and the body wrapper key.
func (c *Collection) resource() (string, string) {
	if c.Smart() {
		return "smart_collections", "smart_collection"
	}
	return "custom_collections", "custom_collection"
}

// CollectionPayload strips server-assigned fields. c is not modified.
func CollectionPayload(c *Collection) *Collection {
	out := *c
	out.ID, out.AdminGraphQLAPIID, out.UpdatedAt = "", "", ""
	out.Rules = append([]CollectionRule(nil), c.Rules...)
	if c.Image != nil {
		out.Image = &Image{Src: c.Image.Src, Alt: c.Image.Alt}
	}
	return &out
}

type collectionNode struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Handle          string     `json:"handle"`
	DescriptionHTML string     `json:"descriptionHtml"`
	SortOrder       string     `json:"sortOrder"`
	TemplateSuffix  *string    `json:"templateSuffix"`
	UpdatedAt       string     `json:"updatedAt"`
	Image           *imageNode `json:"image"`
	RuleSet         *struct {
		AppliedDisjunctively bool             `json:"appliedDisjunctively"`
		Rules                []CollectionRule `json:"rules"`
	} `json:"ruleSet"`
}

const collectionFragment = `... on Collection {
  id title handle descriptionHtml sortOrder templateSuffix updatedAt
  ruleSet { appliedDisjunctively rules { column relation condition } }
  image { url altText }
}`

func collectionFromNode(n *collectionNode) *Collection {
	c := &Collection{
		ID:                platform.NumericID(n.ID),
		AdminGraphQLAPIID: n.ID,
		UpdatedAt:         n.UpdatedAt,
		Title:             n.Title,
		Handle:            n.Handle,
		BodyHTML:          n.DescriptionHTML,
		SortOrder:         sortOrder(n.SortOrder),
		TemplateSuffix:    n.TemplateSuffix,
	}
	if n.Image != nil {
		c.Image = &Image{Src: n.Image.URL, Alt: stringOr(n.Image.AltText, "")}
	}
	if n.RuleSet != nil && len(n.RuleSet.Rules) > 0 {
		c.Rules = n.RuleSet.Rules
		disjunctive := n.RuleSet.AppliedDisjunctively
		c.Disjunctive = &disjunctive
	}
	return c
}

type handleNode struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Handle string `json:"handle"`
}

// Collections migrates custom and smart collections by handle.
type Collections struct{}

func (Collections) Kind() models.EntityKind { return models.KindCollections }

func (Collections) FetchByIDs(ctx context.Context, src *platform.Session, ids []string, logger func(string)) ([]*Record, error) {
	nodes := fetchNodes(ctx, src, toGIDs("Collection", ids), collectionFragment,
		func(n *collectionNode) bool { return n.ID != "" }, logger)
	out := make([]*Record, len(nodes))
	for i, n := range nodes {
		if n == nil {
			continue
		}
		c := collectionFromNode(n)
		out[i] = &Record{SourceID: c.ID, NaturalKey: c.Handle, Title: firstNonEmpty(c.Title, c.ID), Data: c}
	}
	return out, nil
}

const collectionByHandleQuery = `query($q: String!) {
  collections(first: 5, query: $q) { nodes { id title handle } }
}`

func (Collections) ResolveExisting(ctx context.Context, dst *platform.Session, keys []string, logger func(string)) []*Match {
	return resolveEach(ctx, keys, logger, func(ctx context.Context, handle string) (*Match, error) {
		var data struct {
			Collections struct {
				Nodes []handleNode `json:"nodes"`
			} `json:"collections"`
		}
		if err := dst.GraphQL(ctx, collectionByHandleQuery, map[string]any{"q": platform.HandleQuery(handle)}, &data); err != nil {
			return nil, err
		}
		return firstHandleMatch(data.Collections.Nodes, handle), nil
	})
}

func (Collections) Create(ctx context.Context, dst *platform.Session, rec *Record) (string, error) {
	c := rec.Data.(*Collection)
	resource, key := c.resource()
	return restWrite(ctx, dst, http.MethodPost, resource+".json", key, CollectionPayload(c))
}

func (Collections) Update(ctx context.Context, dst *platform.Session, match *Match, rec *Record) (string, error) {
	c := rec.Data.(*Collection)
	resource, key := c.resource()
	return restWrite(ctx, dst, http.MethodPut, fmt.Sprintf("%s/%s.json", resource, match.TargetID), key, CollectionPayload(c))
}

func (Collections) Compare(rec *Record, match *Match) (map[string]any, map[string]any) {
	c := rec.Data.(*Collection)
	return map[string]any{"title": c.Title, "handle": c.Handle}, handleView(match)
}

// firstHandleMatch picks the node whose handle equals handle exactly.
func firstHandleMatch(nodes []handleNode, handle string) *Match {
	for i := range nodes {
		if nodes[i].Handle == handle {
			n := nodes[i]
			return &Match{TargetID: platform.NumericID(n.ID), NaturalKey: n.Handle, Data: &n}
		}
	}
	return nil
}

// handleView is the target comparison view of kinds matched by handle.
func handleView(match *Match) map[string]any {
	if n, ok := match.Data.(*handleNode); ok {
		return map[string]any{"title": n.Title, "handle": n.Handle}
	}
	return map[string]any{"handle": match.NaturalKey}
}
