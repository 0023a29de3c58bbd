package migration

import (
	"context"
	"fmt"
)

// fetch loads the requested source records, one work item per id in
// request order. Ids that could not be fetched keep a nil record.
func (p *pass) fetch(ctx context.Context, ids []string) ([]*workItem, error) {
	p.logf("Fetching %d %s from %s...", len(ids), p.kind.Label(), p.src.ShopURL())
	recs, err := p.adapter.FetchByIDs(ctx, p.src, ids, p.logger())
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", p.kind, err)
	}

	items := make([]*workItem, len(ids))
	found := 0
	for i, id := range ids {
		items[i] = &workItem{id: id}
		if i < len(recs) && recs[i] != nil {
			items[i].rec = recs[i]
			found++
		}
	}
	if found < len(ids) {
		p.logf("  %d of %d requested %s not found in source", len(ids)-found, len(ids), p.kind.Label())
	}
	return items, nil
}
