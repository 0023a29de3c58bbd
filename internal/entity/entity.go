// Package entity holds the per-kind fetchers and transformers that move
// catalog data between two shops. Each kind is an Adapter; kinds with
// independently writable children (blogs, metaobject definitions) also
// implement Composite.
package entity

import (
	"context"
	"errors"
	"fmt"

	"github.com/rflorenc/shop-migration-workbench/internal/models"
	"github.com/rflorenc/shop-migration-workbench/internal/pacing"
	"github.com/rflorenc/shop-migration-workbench/internal/platform"
)

// ErrUpdateUnsupported is returned by Update when the kind cannot be
// overwritten in place. The existing target record is left untouched.
var ErrUpdateUnsupported = errors.New("update not supported")

// Record is a source record fetched for migration. Data holds the typed
// per-kind payload and is never modified after the fetch.
type Record struct {
	SourceID   string
	NaturalKey string
	Title      string
	Data       any
}

// Match is a record already present in the target under the same natural key.
type Match struct {
	TargetID   string
	NaturalKey string
	Data       any
}

// Adapter fetches, matches and writes one entity kind.
type Adapter interface {
	Kind() models.EntityKind

	// FetchByIDs returns one slot per id in input order, nil where the
	// record could not be fetched. The error is reserved for failures that
	// leave no way to answer at all, such as a failed source listing.
	FetchByIDs(ctx context.Context, src *platform.Session, ids []string, logger func(string)) ([]*Record, error)

	// ResolveExisting returns one slot per key, nil when the key does not
	// exist in the target or its lookup failed.
	ResolveExisting(ctx context.Context, dst *platform.Session, keys []string, logger func(string)) []*Match

	// Create writes rec to the target and returns the new target id.
	Create(ctx context.Context, dst *platform.Session, rec *Record) (string, error)

	// Update overwrites match with rec and returns the target id.
	Update(ctx context.Context, dst *platform.Session, match *Match, rec *Record) (string, error)

	// Compare returns the comparison views shown for a conflict.
	Compare(rec *Record, match *Match) (source, target map[string]any)
}

// ParentGate is implemented by composites whose children wait for a
// conflicted parent to be decided. Children of other composites are written
// whatever the parent's decision.
type ParentGate interface {
	ChildrenAwaitParent() bool
}

// ChildrenAwaitParent reports whether c holds back the children of a
// conflicted parent until the parent is overwritten.
func ChildrenAwaitParent(c Composite) bool {
	g, ok := c.(ParentGate)
	return ok && g.ChildrenAwaitParent()
}

// Composite is an Adapter whose records own child records that are written
// after the parent, under the parent's target id.
type Composite interface {
	Adapter

	// ChildLabel names the children in log lines.
	ChildLabel() string

	ListChildren(ctx context.Context, src *platform.Session, parent *Record) ([]*Record, error)

	// ResolveChildren is like ResolveExisting, scoped to the parent in the target.
	ResolveChildren(ctx context.Context, dst *platform.Session, parentTargetID string, parent *Record, keys []string, logger func(string)) []*Match

	CreateChild(ctx context.Context, dst *platform.Session, parentTargetID string, parent, child *Record) (string, error)
	UpdateChild(ctx context.Context, dst *platform.Session, parentTargetID string, match *Match, child *Record) (string, error)
	CompareChild(child *Record, match *Match) (source, target map[string]any)
}

// Lookup returns the adapter for kind. ownerType scopes metafield definitions.
func Lookup(kind models.EntityKind, ownerType string) (Adapter, bool) {
	switch kind {
	case models.KindProducts:
		return Products{}, true
	case models.KindCollections:
		return Collections{}, true
	case models.KindPages:
		return Pages{}, true
	case models.KindBlogs:
		return Blogs{}, true
	case models.KindMetaobjects:
		return Metaobjects{}, true
	case models.KindMetafieldDefinitions:
		if ownerType == "" {
			ownerType = models.DefaultOwnerType
		}
		return MetafieldDefinitions{OwnerType: ownerType}, true
	}
	return nil, false
}

func logf(logger func(string), format string, args ...any) {
	if logger != nil {
		logger(fmt.Sprintf(format, args...))
	}
}

// fetchNodes looks up global ids with nodes(ids:) in paced batches. Each
// non-null node is passed to decode; a node that does not carry the expected
// type decodes as a zero value and is rejected by valid. A failed batch
// leaves its slots nil.
func fetchNodes[T any](ctx context.Context, src *platform.Session, gids []string, fragment string, valid func(*T) bool, logger func(string)) []*T {
	out := make([]*T, len(gids))
	query := "query($ids: [ID!]!) { nodes(ids: $ids) { " + fragment + " } }"
	_ = pacing.Nodes().Run(ctx, len(gids), func(start, end int) {
		batch := gids[start:end]
		var data struct {
			Nodes []*T `json:"nodes"`
		}
		if err := src.GraphQL(ctx, query, map[string]any{"ids": batch}, &data); err != nil {
			logf(logger, "  FAIL: fetching %d records: %v", len(batch), err)
			return
		}
		if len(data.Nodes) != len(batch) {
			logf(logger, "  WARN: requested %d records, got %d", len(batch), len(data.Nodes))
		}
		for j, n := range data.Nodes {
			if j >= len(batch) {
				break
			}
			if n != nil && valid(n) {
				out[start+j] = n
			}
		}
	})
	return out
}

// resolveEach runs one lookup per key. Failed lookups count as not found.
func resolveEach(ctx context.Context, keys []string, logger func(string), lookup func(ctx context.Context, key string) (*Match, error)) []*Match {
	out := make([]*Match, len(keys))
	for i, key := range keys {
		if ctx.Err() != nil {
			break
		}
		m, err := lookup(ctx, key)
		if err != nil {
			logf(logger, "  WARN: lookup of %s in target failed: %v", key, err)
			continue
		}
		out[i] = m
	}
	return out
}

func toGIDs(resource string, ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = platform.ToGID(resource, id)
	}
	return out
}
