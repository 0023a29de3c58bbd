package migration

import (
	"context"
	"errors"

	"github.com/rflorenc/shop-migration-workbench/internal/entity"
	"github.com/rflorenc/shop-migration-workbench/internal/models"
)

// writeAll dispatches the items in request order, one paced batch at a
// time. A done context stops dispatching; items already started finish.
func (p *pass) writeAll(ctx context.Context, items []*workItem) {
	_ = p.pacing.Run(ctx, len(items), func(start, end int) {
		for _, it := range items[start:end] {
			p.process(ctx, it)
		}
	})
}

// process records the outcome of a top-level item, followed directly by the
// outcomes of its children.
func (p *pass) process(ctx context.Context, it *workItem) {
	if it.rec == nil {
		p.logf("  FAIL: %s: %s", it.id, MsgNotFound)
		p.outcomes = append(p.outcomes, models.Outcome{
			ID:      it.id,
			Title:   it.id,
			Status:  models.StatusError,
			Message: MsgNotFound,
		})
		return
	}

	out, targetID := p.execute(ctx, it)
	p.record(it, out)

	if p.descend(out, targetID) {
		p.children(ctx, it, targetID, p.policy)
	}
}

// descend reports whether the children of a parent with outcome out are
// written now.
func (p *pass) descend(out models.Outcome, targetID string) bool {
	switch {
	case p.composite == nil || out.Status == models.StatusError:
		return false
	case out.Status == models.StatusConflict && p.gated:
		return false
	}
	return targetID != "" || p.dryRun
}

func (p *pass) record(it *workItem, out models.Outcome) {
	if out.Status == models.StatusConflict {
		p.pending = append(p.pending, pendingConflict{index: len(p.outcomes), item: it})
	}
	p.outcomes = append(p.outcomes, out)
}

// children writes the children of a parent under its target id, classified
// under policy. A failing child does not stop its siblings.
func (p *pass) children(ctx context.Context, parent *workItem, parentTargetID string, policy models.ConflictPolicy) {
	kids, err := p.composite.ListChildren(ctx, p.src, parent.rec)
	if err != nil {
		p.logf("  FAIL: %s (%s): %v", parent.title(), p.composite.ChildLabel(), err)
		p.outcomes = append(p.outcomes, models.Outcome{
			ID:      parent.rec.SourceID,
			Title:   parent.title() + " (" + p.composite.ChildLabel() + ")",
			Status:  models.StatusError,
			Message: err.Error(),
		})
		return
	}
	if len(kids) == 0 {
		return
	}

	p.logf("  %s: %d %s", parent.title(), len(kids), p.composite.ChildLabel())
	items := p.classifyChildren(ctx, parent, parentTargetID, kids, policy)
	_ = p.pacing.Run(ctx, len(items), func(start, end int) {
		for _, it := range items[start:end] {
			out, _ := p.execute(ctx, it)
			p.record(it, out)
		}
	})
}

// execute carries out the item's action and returns its outcome and the
// target id it ended up at, if any.
func (p *pass) execute(ctx context.Context, it *workItem) (models.Outcome, string) {
	out := models.Outcome{ID: it.rec.SourceID, Title: it.title()}

	switch it.action {
	case ActionSkip:
		p.logf("  SKIP (exists): %s", out.Title)
		out.Status, out.Message = models.StatusSkipped, MsgExists
		return out, it.match.TargetID
	case ActionAsk:
		p.logf("  CONFLICT: %s", out.Title)
		out.Status, out.Message = models.StatusConflict, MsgExists
		out.SourceData, out.TargetData = p.compare(it)
		return out, it.match.TargetID
	}

	if p.dryRun {
		if it.action == ActionUpdate {
			p.logf("  DRY-RUN: would update %s", out.Title)
			out.Status, out.Message = models.StatusUpdated, MsgDryRun
			return out, it.match.TargetID
		}
		p.logf("  DRY-RUN: would create %s", out.Title)
		out.Status, out.Message = models.StatusCreated, MsgDryRun
		return out, ""
	}

	// Writes are never interrupted half way.
	wctx := context.WithoutCancel(ctx)

	if it.action == ActionUpdate {
		id, err := p.update(wctx, it)
		switch {
		case errors.Is(err, entity.ErrUpdateUnsupported):
			p.logf("  SKIP (exists): %s", out.Title)
			out.Status, out.Message = models.StatusSkipped, MsgExists
			return out, it.match.TargetID
		case err != nil:
			return p.fail(out, err), ""
		}
		if id == "" {
			id = it.match.TargetID
		}
		p.logf("  UPDATED: %s", out.Title)
		out.Status = models.StatusUpdated
		return out, id
	}

	id, err := p.create(wctx, it)
	if err != nil {
		return p.fail(out, err), ""
	}
	p.logf("  CREATED: %s", out.Title)
	out.Status = models.StatusCreated
	return out, id
}

func (p *pass) fail(out models.Outcome, err error) models.Outcome {
	p.logf("  FAIL: %s: %v", out.Title, err)
	out.Status, out.Message = models.StatusError, err.Error()
	return out
}

func (p *pass) create(ctx context.Context, it *workItem) (string, error) {
	if it.parent != nil {
		return p.composite.CreateChild(ctx, p.dst, it.parentTargetID, it.parent.rec, it.rec)
	}
	return p.adapter.Create(ctx, p.dst, it.rec)
}

func (p *pass) update(ctx context.Context, it *workItem) (string, error) {
	if it.parent != nil {
		return p.composite.UpdateChild(ctx, p.dst, it.parentTargetID, it.match, it.rec)
	}
	return p.adapter.Update(ctx, p.dst, it.match, it.rec)
}

func (p *pass) compare(it *workItem) (map[string]any, map[string]any) {
	if it.parent != nil {
		return p.composite.CompareChild(it.rec, it.match)
	}
	return p.adapter.Compare(it.rec, it.match)
}

// settleConflicts publishes the pending conflicts, waits for the answer and
// runs the overwrite-decided subset as a second pass. That pass cannot raise
// new conflicts. Outcomes are replaced in place; children held back behind a
// gated parent are inserted directly after it.
func (p *pass) settleConflicts(ctx context.Context) {
	conflicts := make([]models.Outcome, len(p.pending))
	for i, pc := range p.pending {
		conflicts[i] = p.outcomes[pc.index]
	}
	batch := newConflictBatch(p.kind, conflicts)

	p.setState(StateAwaitingConflicts)
	p.logf("Waiting for decisions on %d conflicts...", len(conflicts))
	if p.opts.Conflicts != nil {
		p.opts.Conflicts.HandleConflicts(batch)
	} else {
		_ = batch.Cancel()
	}
	reply := batch.wait(ctx)
	p.setState(StateWriting)

	if reply.cancelled {
		p.logf("Conflict resolution cancelled, skipping %d items", len(p.pending))
		for _, pc := range p.pending {
			p.settle(pc, MsgCancelled)
		}
		return
	}

	var overwrite []pendingConflict
	for _, pc := range p.pending {
		if reply.decisions[pc.item.rec.SourceID] == models.DecisionOverwrite {
			overwrite = append(overwrite, pc)
			continue
		}
		p.settle(pc, MsgManualSkip)
	}
	if len(overwrite) == 0 {
		return
	}

	p.logf("=== Overwriting %d %s ===", len(overwrite), p.kind.Label())
	done := 0
	held := map[int][]models.Outcome{}
	_ = p.pacing.Run(ctx, len(overwrite), func(start, end int) {
		for _, pc := range overwrite[start:end] {
			pc.item.action = Classify(pc.item.match, models.PolicyOverwrite)
			out, targetID := p.execute(ctx, pc.item)
			p.outcomes[pc.index] = out
			done++
			if p.gated && pc.item.parent == nil && p.descend(out, targetID) {
				mark := len(p.outcomes)
				p.children(ctx, pc.item, targetID, models.PolicyOverwrite)
				held[pc.index] = append([]models.Outcome(nil), p.outcomes[mark:]...)
				p.outcomes = p.outcomes[:mark]
			}
		}
	})
	for _, pc := range overwrite[done:] {
		p.settle(pc, MsgCancelled)
	}
	if len(held) == 0 {
		return
	}

	merged := make([]models.Outcome, 0, len(p.outcomes))
	for i, out := range p.outcomes {
		merged = append(merged, out)
		merged = append(merged, held[i]...)
	}
	p.outcomes = merged
}

func (p *pass) settle(pc pendingConflict, msg string) {
	out := p.outcomes[pc.index]
	p.logf("  SKIP: %s (%s)", out.Title, msg)
	p.outcomes[pc.index] = models.Outcome{
		ID:      out.ID,
		Title:   out.Title,
		Status:  models.StatusSkipped,
		Message: msg,
	}
}
