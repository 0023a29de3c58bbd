package migration

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rflorenc/shop-migration-workbench/internal/entity"
	"github.com/rflorenc/shop-migration-workbench/internal/models"
	"github.com/rflorenc/shop-migration-workbench/internal/platform"
)

// seedProducts creates source products 1..3 (a, b, c) and puts b in the target.
func seedProducts() *fakeAdapter {
	f := newFakeAdapter(models.KindProducts)
	f.addSource("1", "a")
	f.addSource("2", "b")
	f.addSource("3", "c")
	f.target["b"] = "900"
	return f
}

func TestMigrate_SkipPolicy(t *testing.T) {
	f := seedProducts()
	sleeps := &sleepCounter{}
	var lines []string
	res, err := newTestRunner(f, sleeps).Migrate(context.Background(),
		newRequest(models.KindProducts, models.PolicySkip, "1", "2", "3"),
		RunOptions{Logger: func(s string) { lines = append(lines, s) }})
	require.NoError(t, err)

	assert.Equal(t, []models.Status{models.StatusCreated, models.StatusSkipped, models.StatusCreated}, statuses(res.Results))
	assert.Equal(t, MsgExists, res.Results[1].Message)
	assert.Equal(t, []string{"a", "c"}, f.creates)
	assert.Empty(t, f.updates)
	assert.Equal(t, models.Summary{Total: 3, Created: 2, Skipped: 1}, res.Summary)
	assert.Equal(t, 2, sleeps.count(), "one sleep between each pair of batches")

	assert.Equal(t, "=== Migrating Produkte ===", lines[0])
	assert.Contains(t, lines, "  CREATED: Item a")
	assert.Contains(t, lines, "  SKIP (exists): Item b")
}

func TestMigrate_SkipIsIdempotent(t *testing.T) {
	f := seedProducts()
	r := newTestRunner(f, &sleepCounter{})
	req := newRequest(models.KindProducts, models.PolicySkip, "1", "2", "3")

	_, err := r.Migrate(context.Background(), req, RunOptions{})
	require.NoError(t, err)
	written := f.writes()

	res, err := r.Migrate(context.Background(), req, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, written, f.writes(), "second run must not write")
	assert.Equal(t, 3, res.Summary.Skipped)
}

func TestMigrate_OverwritePolicy(t *testing.T) {
	f := seedProducts()
	res, err := newTestRunner(f, &sleepCounter{}).Migrate(context.Background(),
		newRequest(models.KindProducts, models.PolicyOverwrite, "1", "2", "3"), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, []models.Status{models.StatusCreated, models.StatusUpdated, models.StatusCreated}, statuses(res.Results))
	assert.Equal(t, []string{"b"}, f.updates)
	assert.Equal(t, "900", f.target["b"])
	assert.Equal(t, models.Summary{Total: 3, Created: 2, Updated: 1}, res.Summary)
}

func TestMigrate_DryRunNeverWrites(t *testing.T) {
	for _, policy := range []models.ConflictPolicy{models.PolicySkip, models.PolicyOverwrite, models.PolicyAsk} {
		t.Run(string(policy), func(t *testing.T) {
			f := seedProducts()
			req := newRequest(models.KindProducts, policy, "1", "2", "3")
			req.DryRun = true
			res, err := newTestRunner(f, &sleepCounter{}).Migrate(context.Background(), req, RunOptions{
				Conflicts: ConflictHandlerFunc(func(b *ConflictBatch) {
					_ = b.Resolve(models.ConflictDecision{"2": models.DecisionOverwrite})
				}),
			})
			require.NoError(t, err)
			assert.Zero(t, f.writes())

			assert.Equal(t, models.StatusCreated, res.Results[0].Status)
			assert.Equal(t, MsgDryRun, res.Results[0].Message)
			switch policy {
			case models.PolicySkip:
				assert.Equal(t, models.StatusSkipped, res.Results[1].Status)
			default:
				assert.Equal(t, models.StatusUpdated, res.Results[1].Status)
				assert.Equal(t, MsgDryRun, res.Results[1].Message)
			}
		})
	}
}

func TestMigrate_NotFound(t *testing.T) {
	f := seedProducts()
	res, err := newTestRunner(f, &sleepCounter{}).Migrate(context.Background(),
		newRequest(models.KindProducts, models.PolicySkip, "1", "404"), RunOptions{})
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Equal(t, models.Outcome{ID: "404", Title: "404", Status: models.StatusError, Message: MsgNotFound}, res.Results[1])
	assert.Equal(t, 1, res.Summary.Errors)
}

func TestMigrate_WriteErrorsDoNotStopTheBatch(t *testing.T) {
	f := seedProducts()
	f.failOn["a"] = platform.UserErrors{{Field: []string{"handle"}, Message: "Handle taken"}, {Message: "Title blank"}}
	f.failOn["b"] = errBoom
	res, err := newTestRunner(f, &sleepCounter{}).Migrate(context.Background(),
		newRequest(models.KindProducts, models.PolicyOverwrite, "1", "2", "3"), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, []models.Status{models.StatusError, models.StatusError, models.StatusCreated}, statuses(res.Results))
	assert.Equal(t, "Handle taken, Title blank", res.Results[0].Message)
	assert.Equal(t, "boom", res.Results[1].Message)
	assert.Equal(t, 2, res.Summary.Errors)
}

func TestMigrate_UpdateUnsupportedIsSkipped(t *testing.T) {
	f := seedProducts()
	f.noUpdate = true
	res, err := newTestRunner(f, &sleepCounter{}).Migrate(context.Background(),
		newRequest(models.KindProducts, models.PolicyOverwrite, "2"), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusSkipped, res.Results[0].Status)
	assert.Equal(t, MsgExists, res.Results[0].Message)
}

func TestMigrate_AskRoundTrip(t *testing.T) {
	f := newFakeAdapter(models.KindPages)
	for _, h := range []string{"a", "b", "c", "d"} {
		f.addSource(h, h)
	}
	f.target["b"] = "20"
	f.target["c"] = "30"
	f.target["d"] = "40"

	var states []State
	var seen *ConflictBatch
	res, err := newTestRunner(f, &sleepCounter{}).Migrate(context.Background(),
		newRequest(models.KindPages, models.PolicyAsk, "a", "b", "c", "d"),
		RunOptions{
			OnState: func(s State) { states = append(states, s) },
			Conflicts: ConflictHandlerFunc(func(b *ConflictBatch) {
				seen = b
				// d has no decision and is skipped.
				go func() {
					_ = b.Resolve(models.ConflictDecision{"b": models.DecisionOverwrite, "c": models.DecisionSkip})
				}()
			}),
		})
	require.NoError(t, err)

	require.NotNil(t, seen)
	assert.Equal(t, "Pages", seen.Label)
	require.Len(t, seen.Conflicts, 3)
	assert.Equal(t, models.StatusConflict, seen.Conflicts[0].Status)
	assert.Equal(t, MsgExists, seen.Conflicts[0].Message)
	assert.Equal(t, map[string]any{"handle": "b"}, seen.Conflicts[0].SourceData)
	assert.Equal(t, map[string]any{"handle": "b", "id": "20"}, seen.Conflicts[0].TargetData)

	assert.Equal(t, []models.Status{models.StatusCreated, models.StatusUpdated, models.StatusSkipped, models.StatusSkipped}, statuses(res.Results))
	assert.Equal(t, MsgManualSkip, res.Results[2].Message)
	assert.Equal(t, MsgManualSkip, res.Results[3].Message)
	assert.Nil(t, res.Results[1].SourceData)
	assert.Equal(t, []string{"b"}, f.updates)

	s := res.Summary
	assert.Zero(t, s.Conflicts)
	assert.Equal(t, s.Total, s.Created+s.Updated+s.Skipped+s.Errors)

	assert.Equal(t, []State{
		StateIdle, StateFetching, StateClassifying, StateWriting,
		StateAwaitingConflicts, StateWriting, StateDone,
	}, states)
}

func TestMigrate_AskCancel(t *testing.T) {
	f := seedProducts()
	f.target["a"] = "800"
	res, err := newTestRunner(f, &sleepCounter{}).Migrate(context.Background(),
		newRequest(models.KindProducts, models.PolicyAsk, "1", "2", "3"),
		RunOptions{Conflicts: ConflictHandlerFunc(func(b *ConflictBatch) { _ = b.Cancel() })})
	require.NoError(t, err)

	cancelled := 0
	for _, o := range res.Results {
		if o.Message == MsgCancelled {
			assert.Equal(t, models.StatusSkipped, o.Status)
			cancelled++
		}
	}
	assert.Equal(t, 2, cancelled)
	assert.Equal(t, []string{"c"}, f.creates)
	assert.Empty(t, f.updates)
	assert.Zero(t, res.Summary.Conflicts)
}

func TestMigrate_AskWithoutHandlerCancels(t *testing.T) {
	f := seedProducts()
	res, err := newTestRunner(f, &sleepCounter{}).Migrate(context.Background(),
		newRequest(models.KindProducts, models.PolicyAsk, "2"), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, MsgCancelled, res.Results[0].Message)
}

func TestMigrate_ContextDoneWhileAwaitingConflicts(t *testing.T) {
	f := seedProducts()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var batch *ConflictBatch
	res, err := newTestRunner(f, &sleepCounter{}).Migrate(ctx,
		newRequest(models.KindProducts, models.PolicyAsk, "2"),
		RunOptions{Conflicts: ConflictHandlerFunc(func(b *ConflictBatch) {
			batch = b
			cancel()
		})})
	require.NoError(t, err)
	assert.Equal(t, MsgCancelled, res.Results[0].Message)
	assert.ErrorIs(t, batch.Resolve(models.ConflictDecision{}), ErrConflictBatchClosed)
}

func TestMigrate_CancelStopsDispatchAndPads(t *testing.T) {
	f := newFakeAdapter(models.KindCollections)
	for _, h := range []string{"a", "b", "c", "d"} {
		f.addSource(h, h)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.onWrite = func(key string) {
		if key == "b" {
			cancel()
		}
	}

	res, err := newTestRunner(f, &sleepCounter{}).Migrate(ctx,
		newRequest(models.KindCollections, models.PolicySkip, "a", "b", "c", "d"), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, f.creates, "the in-flight write completes")
	require.Len(t, res.Results, 4)
	assert.Equal(t, models.StatusCreated, res.Results[1].Status)
	for _, o := range res.Results[2:] {
		assert.Equal(t, models.StatusError, o.Status)
		assert.Equal(t, MsgIncomplete, o.Message)
	}
}

func TestMigrate_CatastrophicErrors(t *testing.T) {
	t.Run("invalid request", func(t *testing.T) {
		req := newRequest(models.KindProducts, models.PolicySkip, "1")
		req.Target.URL = ""
		_, err := newTestRunner(seedProducts(), &sleepCounter{}).Migrate(context.Background(), req, RunOptions{})
		assert.ErrorIs(t, err, models.ErrInvalidRequest)
	})

	t.Run("unknown kind", func(t *testing.T) {
		r := newTestRunner(seedProducts(), &sleepCounter{})
		r.Adapters = func(models.EntityKind, string) (entity.Adapter, bool) { return nil, false }
		_, err := r.Migrate(context.Background(), newRequest(models.KindProducts, models.PolicySkip, "1"), RunOptions{})
		assert.ErrorIs(t, err, ErrUnknownKind)
	})

	t.Run("source listing fails", func(t *testing.T) {
		f := seedProducts()
		f.fetchErr = errBoom
		var states []State
		_, err := newTestRunner(f, &sleepCounter{}).Migrate(context.Background(),
			newRequest(models.KindProducts, models.PolicySkip, "1"),
			RunOptions{OnState: func(s State) { states = append(states, s) }})
		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, StateDone, states[len(states)-1])
	})
}

func TestMigrate_EmptySelection(t *testing.T) {
	res, err := newTestRunner(seedProducts(), &sleepCounter{}).Migrate(context.Background(),
		newRequest(models.KindProducts, models.PolicySkip), RunOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Results)
	assert.Equal(t, models.Summary{}, res.Summary)
}

func TestMigrate_BatchCountInvariant(t *testing.T) {
	f := newFakeAdapter(models.KindPages)
	var ids []string
	for i := 0; i < 7; i++ {
		h := string(rune('a' + i))
		f.addSource(h, h)
		ids = append(ids, h)
	}
	sleeps := &sleepCounter{}
	res, err := newTestRunner(f, sleeps).Migrate(context.Background(),
		newRequest(models.KindPages, models.PolicySkip, ids...), RunOptions{})
	require.NoError(t, err)
	assert.Len(t, res.Results, len(ids))
	assert.Equal(t, len(ids)-1, sleeps.count())
}

func seedBlogs() *fakeComposite {
	f := newFakeComposite(models.KindBlogs)
	f.addSource("b1", "news")
	f.addChild("b1", "a1", "hello")
	f.addChild("b1", "a2", "broken")
	f.addChild("b1", "a3", "bye")
	f.addSource("b2", "tips")
	f.addChild("b2", "a4", "one")
	return f
}

func TestMigrate_CompositeChildrenFollowParent(t *testing.T) {
	f := seedBlogs()
	f.failOn["1001/broken"] = errBoom

	res, err := newTestRunner(f, &sleepCounter{}).Migrate(context.Background(),
		newRequest(models.KindBlogs, models.PolicySkip, "b1", "b2"), RunOptions{})
	require.NoError(t, err)

	ids := make([]string, len(res.Results))
	for i, o := range res.Results {
		ids[i] = o.ID
	}
	assert.Equal(t, []string{"b1", "a1", "a2", "a3", "b2", "a4"}, ids)
	assert.Equal(t, []models.Status{
		models.StatusCreated, models.StatusCreated, models.StatusError, models.StatusCreated,
		models.StatusCreated, models.StatusCreated,
	}, statuses(res.Results))
	assert.Equal(t, []string{"1001/hello", "1001/bye", "1004/one"}, f.childCreates)
}

func TestMigrate_CompositeChildrenOfExistingParent(t *testing.T) {
	f := seedBlogs()
	f.target["news"] = "77"
	f.target["77/hello"] = "5"

	res, err := newTestRunner(f, &sleepCounter{}).Migrate(context.Background(),
		newRequest(models.KindBlogs, models.PolicySkip, "b1"), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, []models.Status{
		models.StatusSkipped, models.StatusSkipped, models.StatusCreated, models.StatusCreated,
	}, statuses(res.Results))
	assert.Equal(t, []string{"77/broken", "77/bye"}, f.childCreates)
}

func TestMigrate_CompositeDryRunNewParent(t *testing.T) {
	f := seedBlogs()
	req := newRequest(models.KindBlogs, models.PolicySkip, "b1")
	req.DryRun = true
	res, err := newTestRunner(f, &sleepCounter{}).Migrate(context.Background(), req, RunOptions{})
	require.NoError(t, err)

	require.Len(t, res.Results, 4)
	for _, o := range res.Results {
		assert.Equal(t, models.StatusCreated, o.Status)
		assert.Equal(t, MsgDryRun, o.Message)
	}
	assert.Zero(t, f.writes())
	assert.Empty(t, f.childCreates)
}

func TestMigrate_CompositeChildListingFails(t *testing.T) {
	f := seedBlogs()
	f.listErr = errBoom
	res, err := newTestRunner(f, &sleepCounter{}).Migrate(context.Background(),
		newRequest(models.KindBlogs, models.PolicySkip, "b1"), RunOptions{})
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Equal(t, models.StatusCreated, res.Results[0].Status)
	assert.Equal(t, models.StatusError, res.Results[1].Status)
	assert.True(t, strings.HasSuffix(res.Results[1].Title, "(children)"))
}

// Children of an ungated composite are classified while the parent still
// waits for its decision.
func TestMigrate_CompositeChildConflicts(t *testing.T) {
	f := seedBlogs()
	f.target["news"] = "77"
	f.target["77/hello"] = "5"

	var mu sync.Mutex
	var labels []string
	res, err := newTestRunner(f, &sleepCounter{}).Migrate(context.Background(),
		newRequest(models.KindBlogs, models.PolicyAsk, "b1"),
		RunOptions{Conflicts: ConflictHandlerFunc(func(b *ConflictBatch) {
			mu.Lock()
			for _, c := range b.Conflicts {
				labels = append(labels, c.ID)
			}
			mu.Unlock()
			_ = b.Resolve(models.ConflictDecision{"b1": models.DecisionOverwrite, "a1": models.DecisionOverwrite})
		})})
	require.NoError(t, err)

	assert.Equal(t, []string{"b1", "a1"}, labels)
	assert.Equal(t, models.StatusUpdated, res.Results[0].Status)
	assert.Equal(t, models.StatusUpdated, res.Results[1].Status)
	assert.Equal(t, []string{"77/hello"}, f.childUpdates)
	assert.Zero(t, res.Summary.Conflicts)
}

func seedGatedBlogs() *fakeComposite {
	f := seedBlogs()
	f.gated = true
	f.target["news"] = "77"
	f.target["77/hello"] = "5"
	return f
}

func TestMigrate_GatedChildrenWaitForParentDecision(t *testing.T) {
	tests := []struct {
		name    string
		answer  func(b *ConflictBatch)
		message string
	}{
		{"cancelled", func(b *ConflictBatch) { _ = b.Cancel() }, MsgCancelled},
		{"skip decided", func(b *ConflictBatch) {
			_ = b.Resolve(models.ConflictDecision{"b1": models.DecisionSkip})
		}, MsgManualSkip},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := seedGatedBlogs()
			var conflicts []string
			res, err := newTestRunner(f, &sleepCounter{}).Migrate(context.Background(),
				newRequest(models.KindBlogs, models.PolicyAsk, "b1"),
				RunOptions{Conflicts: ConflictHandlerFunc(func(b *ConflictBatch) {
					for _, c := range b.Conflicts {
						conflicts = append(conflicts, c.ID)
					}
					tc.answer(b)
				})})
			require.NoError(t, err)

			assert.Equal(t, []string{"b1"}, conflicts)
			require.Len(t, res.Results, 1)
			assert.Equal(t, models.StatusSkipped, res.Results[0].Status)
			assert.Equal(t, tc.message, res.Results[0].Message)
			assert.Empty(t, f.childCreates)
			assert.Empty(t, f.childUpdates)
			assert.Zero(t, f.writes())
		})
	}
}

func TestMigrate_GatedChildrenFollowOverwrittenParent(t *testing.T) {
	f := seedGatedBlogs()
	res, err := newTestRunner(f, &sleepCounter{}).Migrate(context.Background(),
		newRequest(models.KindBlogs, models.PolicyAsk, "b1", "b2"),
		RunOptions{Conflicts: ConflictHandlerFunc(func(b *ConflictBatch) {
			_ = b.Resolve(models.ConflictDecision{"b1": models.DecisionOverwrite})
		})})
	require.NoError(t, err)

	ids := make([]string, len(res.Results))
	for i, o := range res.Results {
		ids[i] = o.ID
	}
	assert.Equal(t, []string{"b1", "a1", "a2", "a3", "b2", "a4"}, ids)
	assert.Equal(t, []models.Status{
		models.StatusUpdated, models.StatusUpdated, models.StatusCreated, models.StatusCreated,
		models.StatusCreated, models.StatusCreated,
	}, statuses(res.Results))
	assert.Equal(t, []string{"77/hello"}, f.childUpdates)
	assert.Equal(t, []string{"1001/one", "77/broken", "77/bye"}, f.childCreates)
	assert.Equal(t, models.Summary{Total: 6, Created: 4, Updated: 2}, res.Summary)
}

func TestNewRunner(t *testing.T) {
	r := NewRunner(nil, "2026-01")
	assert.NotNil(t, r.Sessions(models.Shop{URL: "x.myshopify.com"}))
	a, ok := r.Adapters(models.KindMetafieldDefinitions, "")
	require.True(t, ok)
	assert.Equal(t, models.KindMetafieldDefinitions, a.Kind())
	assert.Equal(t, 200*time.Millisecond, r.Pacing.Delay)
}
