package migration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rflorenc/shop-migration-workbench/internal/entity"
	"github.com/rflorenc/shop-migration-workbench/internal/models"
	"github.com/rflorenc/shop-migration-workbench/internal/pacing"
	"github.com/rflorenc/shop-migration-workbench/internal/platform"
)

// fakeAdapter serves records from memory and records every write. Target
// records are keyed by natural key.
type fakeAdapter struct {
	kind models.EntityKind

	mu       sync.Mutex
	source   map[string]*entity.Record
	target   map[string]string
	fetchErr error
	failOn   map[string]error
	noUpdate bool
	onWrite  func(key string)
	nextID   int
	creates  []string
	updates  []string
}

func newFakeAdapter(kind models.EntityKind) *fakeAdapter {
	return &fakeAdapter{
		kind:   kind,
		source: map[string]*entity.Record{},
		target: map[string]string{},
		failOn: map[string]error{},
		nextID: 1000,
	}
}

// addSource registers a source record with id and handle.
func (f *fakeAdapter) addSource(id, handle string) *entity.Record {
	rec := &entity.Record{SourceID: id, NaturalKey: handle, Title: "Item " + handle, Data: handle}
	f.source[id] = rec
	return rec
}

func (f *fakeAdapter) writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.creates) + len(f.updates)
}

func (f *fakeAdapter) Kind() models.EntityKind { return f.kind }

func (f *fakeAdapter) FetchByIDs(_ context.Context, _ *platform.Session, ids []string, _ func(string)) ([]*entity.Record, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]*entity.Record, len(ids))
	for i, id := range ids {
		out[i] = f.source[id]
	}
	return out, nil
}

func (f *fakeAdapter) ResolveExisting(_ context.Context, _ *platform.Session, keys []string, _ func(string)) []*entity.Match {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*entity.Match, len(keys))
	for i, k := range keys {
		if id, ok := f.target[k]; ok {
			out[i] = &entity.Match{TargetID: id, NaturalKey: k, Data: k}
		}
	}
	return out
}

func (f *fakeAdapter) Create(_ context.Context, _ *platform.Session, rec *entity.Record) (string, error) {
	return f.write(&f.creates, rec.NaturalKey, "")
}

func (f *fakeAdapter) Update(_ context.Context, _ *platform.Session, match *entity.Match, rec *entity.Record) (string, error) {
	if f.noUpdate {
		return "", entity.ErrUpdateUnsupported
	}
	return f.write(&f.updates, rec.NaturalKey, match.TargetID)
}

func (f *fakeAdapter) write(log *[]string, key, id string) (string, error) {
	if f.onWrite != nil {
		f.onWrite(key)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn[key]; err != nil {
		return "", err
	}
	*log = append(*log, key)
	if id == "" {
		f.nextID++
		id = fmt.Sprint(f.nextID)
	}
	f.target[key] = id
	return id, nil
}

func (f *fakeAdapter) Compare(rec *entity.Record, match *entity.Match) (map[string]any, map[string]any) {
	return map[string]any{"handle": rec.NaturalKey}, map[string]any{"handle": match.NaturalKey, "id": match.TargetID}
}

// fakeComposite adds children keyed by parent source id. Child target
// records are keyed by "<parent target id>/<handle>".
type fakeComposite struct {
	*fakeAdapter
	kids         map[string][]*entity.Record
	listErr      error
	gated        bool
	childCreates []string
	childUpdates []string
}

func newFakeComposite(kind models.EntityKind) *fakeComposite {
	return &fakeComposite{fakeAdapter: newFakeAdapter(kind), kids: map[string][]*entity.Record{}}
}

func (f *fakeComposite) addChild(parentID, id, handle string) {
	f.kids[parentID] = append(f.kids[parentID], &entity.Record{SourceID: id, NaturalKey: handle, Title: "Child " + handle})
}

func (f *fakeComposite) ChildLabel() string { return "children" }

func (f *fakeComposite) ChildrenAwaitParent() bool { return f.gated }

func (f *fakeComposite) ListChildren(_ context.Context, _ *platform.Session, parent *entity.Record) ([]*entity.Record, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.kids[parent.SourceID], nil
}

func (f *fakeComposite) ResolveChildren(_ context.Context, _ *platform.Session, parentTargetID string, _ *entity.Record, keys []string, _ func(string)) []*entity.Match {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*entity.Match, len(keys))
	for i, k := range keys {
		if id, ok := f.target[parentTargetID+"/"+k]; ok {
			out[i] = &entity.Match{TargetID: id, NaturalKey: k}
		}
	}
	return out
}

func (f *fakeComposite) CreateChild(_ context.Context, _ *platform.Session, parentTargetID string, _, child *entity.Record) (string, error) {
	return f.write(&f.childCreates, parentTargetID+"/"+child.NaturalKey, "")
}

func (f *fakeComposite) UpdateChild(_ context.Context, _ *platform.Session, parentTargetID string, match *entity.Match, child *entity.Record) (string, error) {
	return f.write(&f.childUpdates, parentTargetID+"/"+child.NaturalKey, match.TargetID)
}

func (f *fakeComposite) CompareChild(child *entity.Record, match *entity.Match) (map[string]any, map[string]any) {
	return map[string]any{"handle": child.NaturalKey}, map[string]any{"handle": match.NaturalKey}
}

// sleepCounter counts pacing sleeps without waiting.
type sleepCounter struct {
	mu sync.Mutex
	n  int
}

func (s *sleepCounter) sleep(ctx context.Context, _ time.Duration) error {
	s.mu.Lock()
	s.n++
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepCounter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

func newTestRunner(a entity.Adapter, sleeps *sleepCounter) *Runner {
	seq := pacing.Default()
	seq.Sleep = sleeps.sleep
	return &Runner{
		Sessions: func(shop models.Shop) *platform.Session {
			return platform.NewSession(nil, shop, "")
		},
		Adapters: func(models.EntityKind, string) (entity.Adapter, bool) { return a, true },
		Pacing:   seq,
	}
}

func newRequest(kind models.EntityKind, policy models.ConflictPolicy, ids ...string) models.MigrationRequest {
	return models.MigrationRequest{
		Source:  models.Shop{URL: "source.myshopify.com", Token: "s"},
		Target:  models.Shop{URL: "target.myshopify.com", Token: "t"},
		Kind:    kind,
		ItemIDs: ids,
		Policy:  policy,
	}
}

func statuses(outcomes []models.Outcome) []models.Status {
	out := make([]models.Status, len(outcomes))
	for i, o := range outcomes {
		out[i] = o.Status
	}
	return out
}

var errBoom = errors.New("boom")
