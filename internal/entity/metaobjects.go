package entity

import (
	"context"
	"fmt"
	"strings"

	"github.com/rflorenc/shop-migration-workbench/internal/models"
	"github.com/rflorenc/shop-migration-workbench/internal/platform"
)

// MetaobjectDefinition is a metaobject type with its field definitions.
type MetaobjectDefinition struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Type             string            `json:"type"`
	FieldDefinitions []FieldDefinition `json:"fieldDefinitions"`
}

// FieldDefinition is one field of a metaobject definition.
type FieldDefinition struct {
	Key         string       `json:"key"`
	Name        string       `json:"name"`
	Type        TypeRef      `json:"type"`
	Required    bool         `json:"required"`
	Description *string      `json:"description"`
	Validations []Validation `json:"validations"`
}

// TypeRef names a field or metafield type.
type TypeRef struct {
	Name string `json:"name"`
}

// Validation is a name/value constraint on a field or metafield definition.
type Validation struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// MetaobjectDefinitionPayload builds the create input. Storefront access is
// always PUBLIC_READ.
func MetaobjectDefinitionPayload(d *MetaobjectDefinition) map[string]any {
	fields := make([]map[string]any, len(d.FieldDefinitions))
	for i, f := range d.FieldDefinitions {
		fd := map[string]any{
			"key":      f.Key,
			"name":     f.Name,
			"type":     f.Type.Name,
			"required": f.Required,
		}
		if desc := stringOr(f.Description, ""); desc != "" {
			fd["description"] = desc
		}
		if len(f.Validations) > 0 {
			fd["validations"] = f.Validations
		}
		fields[i] = fd
	}
	return map[string]any{
		"type":             d.Type,
		"name":             d.Name,
		"fieldDefinitions": fields,
		"access":           map[string]any{"storefront": "PUBLIC_READ"},
	}
}

// Metaobject is a metaobject entry.
type Metaobject struct {
	ID     string            `json:"id"`
	Handle string            `json:"handle"`
	Fields []MetaobjectField `json:"fields"`
}

// MetaobjectField is a key/value pair of an entry. Value is nil when unset.
type MetaobjectField struct {
	Key   string  `json:"key"`
	Value *string `json:"value"`
}

// MetaobjectFields returns the fields worth writing: those with a non-empty value.
func MetaobjectFields(m *Metaobject) []map[string]string {
	out := make([]map[string]string, 0, len(m.Fields))
	for _, f := range m.Fields {
		if f.Value == nil || *f.Value == "" {
			continue
		}
		out = append(out, map[string]string{"key": f.Key, "value": *f.Value})
	}
	return out
}

const definitionFields = `id name type
  fieldDefinitions { key name type { name } required description validations { name value } }`

const metaobjectDefinitionsQuery = `query($after: String) {
  metaobjectDefinitions(first: 50, after: $after) {
    nodes { ` + definitionFields + ` }
    pageInfo { hasNextPage endCursor }
  }
}`

const metaobjectDefinitionByTypeQuery = `query($type: String!) {
  metaobjectDefinitionByType(type: $type) { ` + definitionFields + ` }
}`

const metaobjectsQuery = `query($type: String!, $after: String) {
  metaobjects(type: $type, first: 50, after: $after) {
    nodes { id handle fields { key value } }
    pageInfo { hasNextPage endCursor }
  }
}`

const metaobjectDefinitionCreateMutation = `mutation($d: MetaobjectDefinitionCreateInput!) {
  metaobjectDefinitionCreate(definition: $d) {
    metaobjectDefinition { id }
    userErrors { field message }
  }
}`

const metaobjectCreateMutation = `mutation($m: MetaobjectCreateInput!) {
  metaobjectCreate(metaobject: $m) {
    metaobject { id }
    userErrors { field message }
  }
}`

const metaobjectUpdateMutation = `mutation($id: ID!, $m: MetaobjectUpdateInput!) {
  metaobjectUpdate(id: $id, metaobject: $m) {
    metaobject { id }
    userErrors { field message }
  }
}`

func listMetaobjectDefinitions(ctx context.Context, s *platform.Session) ([]*MetaobjectDefinition, error) {
	return platform.Paginate(ctx, func(ctx context.Context, cursor string) ([]*MetaobjectDefinition, platform.PageInfo, error) {
		var data struct {
			Defs struct {
				Nodes    []*MetaobjectDefinition `json:"nodes"`
				PageInfo platform.PageInfo       `json:"pageInfo"`
			} `json:"metaobjectDefinitions"`
		}
		if err := s.GraphQL(ctx, metaobjectDefinitionsQuery, map[string]any{"after": platform.CursorVar(cursor)}, &data); err != nil {
			return nil, platform.PageInfo{}, err
		}
		return data.Defs.Nodes, data.Defs.PageInfo, nil
	})
}

func listMetaobjects(ctx context.Context, s *platform.Session, typ string) ([]*Metaobject, error) {
	return platform.Paginate(ctx, func(ctx context.Context, cursor string) ([]*Metaobject, platform.PageInfo, error) {
		var data struct {
			Metaobjects struct {
				Nodes    []*Metaobject     `json:"nodes"`
				PageInfo platform.PageInfo `json:"pageInfo"`
			} `json:"metaobjects"`
		}
		vars := map[string]any{"type": typ, "after": platform.CursorVar(cursor)}
		if err := s.GraphQL(ctx, metaobjectsQuery, vars, &data); err != nil {
			return nil, platform.PageInfo{}, err
		}
		return data.Metaobjects.Nodes, data.Metaobjects.PageInfo, nil
	})
}

// Metaobjects migrates metaobject definitions by type, with their entries
// as children matched by handle.
type Metaobjects struct{}

func (Metaobjects) Kind() models.EntityKind { return models.KindMetaobjects }

func (Metaobjects) ChildLabel() string { return "Einträge" }

// FetchByIDs selects the requested definitions from the full source listing.
func (Metaobjects) FetchByIDs(ctx context.Context, src *platform.Session, ids []string, logger func(string)) ([]*Record, error) {
	defs, err := listMetaobjectDefinitions(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("listing metaobject definitions: %w", err)
	}
	byID := make(map[string]*MetaobjectDefinition, len(defs))
	for _, d := range defs {
		if d != nil {
			byID[d.ID] = d
		}
	}
	out := make([]*Record, len(ids))
	for i, id := range ids {
		d, ok := byID[platform.ToGID("MetaobjectDefinition", strings.TrimSpace(id))]
		if !ok {
			logf(logger, "  WARN: metaobject definition %s not in source", id)
			continue
		}
		out[i] = &Record{SourceID: d.ID, NaturalKey: d.Type, Title: "Def: " + d.Name, Data: d}
	}
	return out, nil
}

func (Metaobjects) ResolveExisting(ctx context.Context, dst *platform.Session, keys []string, logger func(string)) []*Match {
	return resolveEach(ctx, keys, logger, func(ctx context.Context, typ string) (*Match, error) {
		var data struct {
			Def *MetaobjectDefinition `json:"metaobjectDefinitionByType"`
		}
		if err := dst.GraphQL(ctx, metaobjectDefinitionByTypeQuery, map[string]any{"type": typ}, &data); err != nil {
			return nil, err
		}
		if data.Def == nil {
			return nil, nil
		}
		return &Match{TargetID: data.Def.ID, NaturalKey: data.Def.Type, Data: data.Def}, nil
	})
}

func (Metaobjects) Create(ctx context.Context, dst *platform.Session, rec *Record) (string, error) {
	vars := map[string]any{"d": MetaobjectDefinitionPayload(rec.Data.(*MetaobjectDefinition))}
	return mutate(ctx, dst, metaobjectDefinitionCreateMutation, vars, "metaobjectDefinitionCreate", "metaobjectDefinition")
}

// Update leaves existing definitions alone; only their entries are migrated.
func (Metaobjects) Update(context.Context, *platform.Session, *Match, *Record) (string, error) {
	return "", ErrUpdateUnsupported
}

func (Metaobjects) Compare(rec *Record, match *Match) (map[string]any, map[string]any) {
	view := func(d *MetaobjectDefinition) map[string]any {
		keys := make([]string, len(d.FieldDefinitions))
		for i, f := range d.FieldDefinitions {
			keys[i] = f.Key + ":" + f.Type.Name
		}
		return map[string]any{"name": d.Name, "type": d.Type, "fields": keys}
	}
	if t, ok := match.Data.(*MetaobjectDefinition); ok {
		return view(rec.Data.(*MetaobjectDefinition)), view(t)
	}
	return view(rec.Data.(*MetaobjectDefinition)), map[string]any{"type": match.NaturalKey}
}

func (Metaobjects) ListChildren(ctx context.Context, src *platform.Session, parent *Record) ([]*Record, error) {
	d := parent.Data.(*MetaobjectDefinition)
	entries, err := listMetaobjects(ctx, src, d.Type)
	if err != nil {
		return nil, err
	}
	out := make([]*Record, 0, len(entries))
	for _, e := range entries {
		if e == nil {
			continue
		}
		out = append(out, &Record{
			SourceID:   e.ID,
			NaturalKey: e.Handle,
			Title:      d.Name + ": " + firstNonEmpty(e.Handle, e.ID),
			Data:       e,
		})
	}
	return out, nil
}

func (Metaobjects) ResolveChildren(ctx context.Context, dst *platform.Session, _ string, parent *Record, keys []string, logger func(string)) []*Match {
	out := make([]*Match, len(keys))
	d := parent.Data.(*MetaobjectDefinition)
	existing, err := listMetaobjects(ctx, dst, d.Type)
	if err != nil {
		logf(logger, "  WARN: listing %s entries in target failed: %v", d.Type, err)
		return out
	}
	byHandle := make(map[string]*Metaobject, len(existing))
	for _, e := range existing {
		if e != nil {
			byHandle[e.Handle] = e
		}
	}
	for i, key := range keys {
		if e, ok := byHandle[key]; ok {
			out[i] = &Match{TargetID: e.ID, NaturalKey: e.Handle, Data: e}
		}
	}
	return out
}

func (Metaobjects) CreateChild(ctx context.Context, dst *platform.Session, _ string, parent, child *Record) (string, error) {
	e := child.Data.(*Metaobject)
	vars := map[string]any{"m": map[string]any{
		"type":   parent.NaturalKey,
		"handle": e.Handle,
		"fields": MetaobjectFields(e),
	}}
	return mutate(ctx, dst, metaobjectCreateMutation, vars, "metaobjectCreate", "metaobject")
}

func (Metaobjects) UpdateChild(ctx context.Context, dst *platform.Session, _ string, match *Match, child *Record) (string, error) {
	vars := map[string]any{
		"id": match.TargetID,
		"m":  map[string]any{"fields": MetaobjectFields(child.Data.(*Metaobject))},
	}
	return mutate(ctx, dst, metaobjectUpdateMutation, vars, "metaobjectUpdate", "metaobject")
}

func (Metaobjects) CompareChild(child *Record, match *Match) (map[string]any, map[string]any) {
	view := func(m *Metaobject) map[string]any {
		fields := make(map[string]any, len(m.Fields))
		for _, f := range m.Fields {
			fields[f.Key] = stringOr(f.Value, "")
		}
		return map[string]any{"handle": m.Handle, "fields": fields}
	}
	if t, ok := match.Data.(*Metaobject); ok {
		return view(child.Data.(*Metaobject)), view(t)
	}
	return view(child.Data.(*Metaobject)), map[string]any{"handle": match.NaturalKey}
}
