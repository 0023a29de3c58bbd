// Package migration runs one entity-kind pass from a source shop into a
// target shop: fetch, classify against the target, write, and settle
// conflicts with the caller.
package migration

import (
	"context"
	"errors"
	"fmt"

	"github.com/rflorenc/shop-migration-workbench/internal/entity"
	"github.com/rflorenc/shop-migration-workbench/internal/models"
	"github.com/rflorenc/shop-migration-workbench/internal/pacing"
	"github.com/rflorenc/shop-migration-workbench/internal/platform"
)

// ErrUnknownKind is returned when no adapter handles the requested kind.
var ErrUnknownKind = errors.New("unknown entity kind")

// State is the phase a migration pass is in.
type State string

const (
	StateIdle              State = "idle"
	StateFetching          State = "fetching"
	StateClassifying       State = "classifying"
	StateWriting           State = "writing"
	StateAwaitingConflicts State = "awaiting_conflicts"
	StateDone              State = "done"
)

// Runner executes migration passes. It keeps no state between passes.
type Runner struct {
	// Sessions opens a session for a shop.
	Sessions func(shop models.Shop) *platform.Session
	// Adapters resolves the adapter of a kind.
	Adapters func(kind models.EntityKind, ownerType string) (entity.Adapter, bool)
	// Pacing sequences writes.
	Pacing pacing.Sequencer
}

// NewRunner creates a Runner that sends every call through r.
func NewRunner(r platform.Requester, apiVersion string) *Runner {
	return &Runner{
		Sessions: func(shop models.Shop) *platform.Session {
			return platform.NewSession(r, shop, apiVersion)
		},
		Adapters: entity.Lookup,
		Pacing:   pacing.Default(),
	}
}

// RunOptions carries the caller's hooks for one pass.
type RunOptions struct {
	Logger func(string)
	// Conflicts receives pending conflicts under the ask policy. Nil cancels them.
	Conflicts ConflictHandler
	// OnState is called on every state change.
	OnState func(State)
}

// Migrate runs one pass. Per-item failures become outcomes; only requests
// that cannot be run at all return an error.
func (r *Runner) Migrate(ctx context.Context, req models.MigrationRequest, opts RunOptions) (*models.MigrationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	lookup := r.Adapters
	if lookup == nil {
		lookup = entity.Lookup
	}
	adapter, ok := lookup(req.Kind, req.OwnerType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, req.Kind)
	}
	policy, _ := models.ParsePolicy(string(req.Policy))

	p := &pass{
		kind:    req.Kind,
		adapter: adapter,
		src:     r.Sessions(req.Source),
		dst:     r.Sessions(req.Target),
		policy:  policy,
		dryRun:  req.DryRun,
		pacing:  r.Pacing,
		opts:    opts,
	}
	if c, ok := adapter.(entity.Composite); ok {
		p.composite, p.gated = c, entity.ChildrenAwaitParent(c)
	}
	p.setState(StateIdle)
	defer p.setState(StateDone)

	p.logf("=== Migrating %s ===", req.Kind.Label())
	if req.DryRun {
		p.logf("  DRY-RUN: nothing is written to %s", req.Target.URL)
	}

	p.setState(StateFetching)
	items, err := p.fetch(ctx, req.ItemIDs)
	if err != nil {
		return nil, err
	}

	p.setState(StateClassifying)
	p.preflight(ctx, items)

	p.setState(StateWriting)
	p.writeAll(ctx, items)
	if len(p.pending) > 0 {
		p.settleConflicts(ctx)
	}

	outcomes := Reconcile(req.Kind, req.ItemIDs, p.outcomes)
	summary := Summarize(outcomes)
	p.logf("%s: %d created, %d updated, %d skipped, %d errors",
		req.Kind.Label(), summary.Created, summary.Updated, summary.Skipped, summary.Errors)
	return &models.MigrationResult{Results: outcomes, Summary: summary}, nil
}

// pass is the state of one Migrate call.
type pass struct {
	kind      models.EntityKind
	adapter   entity.Adapter
	composite entity.Composite
	gated     bool // children of a conflicted parent wait for its decision
	src, dst  *platform.Session
	policy    models.ConflictPolicy
	dryRun    bool
	pacing    pacing.Sequencer
	opts      RunOptions

	outcomes []models.Outcome
	pending  []pendingConflict
}

// workItem is one source record (or child record) on its way to the target.
type workItem struct {
	id     string
	rec    *entity.Record
	match  *entity.Match
	action Action

	parent         *workItem
	parentTargetID string
}

func (it *workItem) title() string {
	if it.rec != nil && it.rec.Title != "" {
		return it.rec.Title
	}
	return it.id
}

// pendingConflict points at the conflict outcome it will replace.
type pendingConflict struct {
	index int
	item  *workItem
}

func (p *pass) setState(s State) {
	if p.opts.OnState != nil {
		p.opts.OnState(s)
	}
}

func (p *pass) logf(format string, args ...any) {
	if p.opts.Logger != nil {
		p.opts.Logger(fmt.Sprintf(format, args...))
	}
}

func (p *pass) logger() func(string) {
	if p.opts.Logger != nil {
		return p.opts.Logger
	}
	return func(string) {}
}
