package entity

import (
	"context"
	"fmt"
	"strings"

	"github.com/rflorenc/shop-migration-workbench/internal/models"
	"github.com/rflorenc/shop-migration-workbench/internal/platform"
)

// OwnerTypes lists the owner types metafield definitions can be scoped to.
var OwnerTypes = []string{
	"PRODUCT", "PRODUCTVARIANT", "COLLECTION", "CUSTOMER", "ORDER", "DRAFTORDER",
	"LOCATION", "PAGE", "BLOG", "ARTICLE", "MARKET", "SHOP",
}

// MetafieldDefinition is a metafield definition for one owner type.
type MetafieldDefinition struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Namespace      string       `json:"namespace"`
	Key            string       `json:"key"`
	Type           TypeRef      `json:"type"`
	Description    *string      `json:"description"`
	OwnerType      string       `json:"ownerType"`
	PinnedPosition *int         `json:"pinnedPosition"`
	Validations    []Validation `json:"validations"`
}

// FullKey returns the natural key namespace.key.
func (d *MetafieldDefinition) FullKey() string {
	return d.Namespace + "." + d.Key
}

// MetafieldDefinitionPayload builds the create input.
func MetafieldDefinitionPayload(d *MetafieldDefinition) map[string]any {
	in := map[string]any{
		"name":      d.Name,
		"namespace": d.Namespace,
		"key":       d.Key,
		"type":      d.Type.Name,
		"ownerType": d.OwnerType,
		"pin":       d.PinnedPosition != nil,
	}
	if desc := stringOr(d.Description, ""); desc != "" {
		in["description"] = desc
	}
	if len(d.Validations) > 0 {
		in["validations"] = d.Validations
	}
	return in
}

// MetafieldDefinitionUpdatePayload builds the update input. The type of an
// existing definition cannot change, so it is not sent.
func MetafieldDefinitionUpdatePayload(d *MetafieldDefinition) map[string]any {
	in := map[string]any{
		"namespace": d.Namespace,
		"key":       d.Key,
		"ownerType": d.OwnerType,
		"name":      d.Name,
	}
	if desc := stringOr(d.Description, ""); desc != "" {
		in["description"] = desc
	}
	if d.PinnedPosition != nil {
		in["pin"] = true
	}
	return in
}

const metafieldDefinitionFields = `id name namespace key type { name } description ownerType pinnedPosition validations { name value }`

const metafieldDefinitionsQuery = `query($ownerType: MetafieldOwnerType!, $after: String) {
  metafieldDefinitions(ownerType: $ownerType, first: 100, after: $after) {
    nodes { ` + metafieldDefinitionFields + ` }
    pageInfo { hasNextPage endCursor }
  }
}`

const metafieldDefinitionByKeyQuery = `query($ownerType: MetafieldOwnerType!, $namespace: String!, $key: String!) {
  metafieldDefinitions(ownerType: $ownerType, namespace: $namespace, key: $key, first: 1) {
    nodes { ` + metafieldDefinitionFields + ` }
  }
}`

const metafieldDefinitionCreateMutation = `mutation($definition: MetafieldDefinitionInput!) {
  metafieldDefinitionCreate(definition: $definition) {
    createdDefinition { id }
    userErrors { field message }
  }
}`

const metafieldDefinitionUpdateMutation = `mutation($definition: MetafieldDefinitionUpdateInput!) {
  metafieldDefinitionUpdate(definition: $definition) {
    updatedDefinition { id }
    userErrors { field message }
  }
}`

// MetafieldDefinitions migrates metafield definitions of one owner type,
// matched by namespace.key. Requested ids are namespace.key pairs or
// definition ids.
type MetafieldDefinitions struct {
	OwnerType string
}

func (MetafieldDefinitions) Kind() models.EntityKind { return models.KindMetafieldDefinitions }

func (a MetafieldDefinitions) list(ctx context.Context, s *platform.Session) ([]*MetafieldDefinition, error) {
	return platform.Paginate(ctx, func(ctx context.Context, cursor string) ([]*MetafieldDefinition, platform.PageInfo, error) {
		var data struct {
			Defs struct {
				Nodes    []*MetafieldDefinition `json:"nodes"`
				PageInfo platform.PageInfo      `json:"pageInfo"`
			} `json:"metafieldDefinitions"`
		}
		vars := map[string]any{"ownerType": a.OwnerType, "after": platform.CursorVar(cursor)}
		if err := s.GraphQL(ctx, metafieldDefinitionsQuery, vars, &data); err != nil {
			return nil, platform.PageInfo{}, err
		}
		return data.Defs.Nodes, data.Defs.PageInfo, nil
	})
}

// FetchByIDs selects the requested definitions from the owner type's listing.
func (a MetafieldDefinitions) FetchByIDs(ctx context.Context, src *platform.Session, ids []string, logger func(string)) ([]*Record, error) {
	defs, err := a.list(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("listing %s metafield definitions: %w", a.OwnerType, err)
	}
	index := make(map[string]*MetafieldDefinition, 2*len(defs))
	for _, d := range defs {
		if d == nil {
			continue
		}
		index[d.FullKey()] = d
		index[d.ID] = d
	}

	out := make([]*Record, len(ids))
	found := 0
	for i, id := range ids {
		id = strings.TrimSpace(id)
		d, ok := index[id]
		if !ok {
			d, ok = index[platform.ToGID("MetafieldDefinition", id)]
		}
		if !ok {
			continue
		}
		found++
		out[i] = &Record{
			SourceID:   d.ID,
			NaturalKey: d.FullKey(),
			Title:      fmt.Sprintf("%s (%s)", d.FullKey(), d.Name),
			Data:       d,
		}
	}
	if found == 0 && len(ids) > 0 {
		logf(logger, "  Keine passenden Definitionen gefunden (%s)", a.OwnerType)
	}
	return out, nil
}

func (a MetafieldDefinitions) ResolveExisting(ctx context.Context, dst *platform.Session, keys []string, logger func(string)) []*Match {
	return resolveEach(ctx, keys, logger, func(ctx context.Context, fullKey string) (*Match, error) {
		namespace, key, ok := strings.Cut(fullKey, ".")
		if !ok {
			return nil, fmt.Errorf("malformed key %q", fullKey)
		}
		var data struct {
			Defs struct {
				Nodes []*MetafieldDefinition `json:"nodes"`
			} `json:"metafieldDefinitions"`
		}
		vars := map[string]any{"ownerType": a.OwnerType, "namespace": namespace, "key": key}
		if err := dst.GraphQL(ctx, metafieldDefinitionByKeyQuery, vars, &data); err != nil {
			return nil, err
		}
		for _, d := range data.Defs.Nodes {
			if d != nil && d.Namespace == namespace && d.Key == key {
				return &Match{TargetID: d.ID, NaturalKey: d.FullKey(), Data: d}, nil
			}
		}
		return nil, nil
	})
}

func (a MetafieldDefinitions) Create(ctx context.Context, dst *platform.Session, rec *Record) (string, error) {
	d := a.scoped(rec.Data.(*MetafieldDefinition))
	vars := map[string]any{"definition": MetafieldDefinitionPayload(d)}
	return mutate(ctx, dst, metafieldDefinitionCreateMutation, vars, "metafieldDefinitionCreate", "createdDefinition")
}

func (a MetafieldDefinitions) Update(ctx context.Context, dst *platform.Session, match *Match, rec *Record) (string, error) {
	d := a.scoped(rec.Data.(*MetafieldDefinition))
	vars := map[string]any{"definition": MetafieldDefinitionUpdatePayload(d)}
	id, err := mutate(ctx, dst, metafieldDefinitionUpdateMutation, vars, "metafieldDefinitionUpdate", "updatedDefinition")
	if err == nil && id == "" {
		id = match.TargetID
	}
	return id, err
}

// scoped fills in the adapter's owner type when the source left it empty.
func (a MetafieldDefinitions) scoped(d *MetafieldDefinition) *MetafieldDefinition {
	if d.OwnerType != "" {
		return d
	}
	cp := *d
	cp.OwnerType = a.OwnerType
	return &cp
}

func (MetafieldDefinitions) Compare(rec *Record, match *Match) (map[string]any, map[string]any) {
	view := func(d *MetafieldDefinition) map[string]any {
		return map[string]any{
			"name":        d.Name,
			"namespace":   d.Namespace,
			"key":         d.Key,
			"type":        d.Type.Name,
			"description": stringOr(d.Description, ""),
		}
	}
	if t, ok := match.Data.(*MetafieldDefinition); ok {
		return view(rec.Data.(*MetafieldDefinition)), view(t)
	}
	return view(rec.Data.(*MetafieldDefinition)), map[string]any{"key": match.NaturalKey}
}
