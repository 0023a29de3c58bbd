package migration

import (
	"context"

	"github.com/rflorenc/shop-migration-workbench/internal/entity"
	"github.com/rflorenc/shop-migration-workbench/internal/models"
)

// preflight looks up every fetched record in the target by natural key and
// classifies it under the pass policy.
func (p *pass) preflight(ctx context.Context, items []*workItem) {
	var keys []string
	var idx []int
	for i, it := range items {
		if it.rec != nil {
			keys = append(keys, it.rec.NaturalKey)
			idx = append(idx, i)
		}
	}
	if len(keys) == 0 {
		return
	}

	p.logf("Checking %d %s on %s...", len(keys), p.kind.Label(), p.dst.ShopURL())
	matches := p.adapter.ResolveExisting(ctx, p.dst, keys, p.logger())
	for j, i := range idx {
		items[i].match = matchAt(matches, j)
		items[i].action = Classify(items[i].match, p.policy)
		if items[i].match != nil {
			p.logf("  %s: exists (target ID %s)", items[i].title(), items[i].match.TargetID)
		}
	}
}

// classifyChildren resolves and classifies the children of a parent whose
// target id is known. Without a target parent every child is new.
func (p *pass) classifyChildren(ctx context.Context, parent *workItem, parentTargetID string, kids []*entity.Record, policy models.ConflictPolicy) []*workItem {
	var matches []*entity.Match
	if parentTargetID != "" {
		keys := make([]string, len(kids))
		for i, k := range kids {
			keys[i] = k.NaturalKey
		}
		matches = p.composite.ResolveChildren(ctx, p.dst, parentTargetID, parent.rec, keys, p.logger())
	}

	items := make([]*workItem, len(kids))
	for i, k := range kids {
		m := matchAt(matches, i)
		items[i] = &workItem{
			id:             k.SourceID,
			rec:            k,
			match:          m,
			action:         Classify(m, policy),
			parent:         parent,
			parentTargetID: parentTargetID,
		}
	}
	return items
}

func matchAt(matches []*entity.Match, i int) *entity.Match {
	if i < len(matches) {
		return matches[i]
	}
	return nil
}
