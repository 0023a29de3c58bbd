package migration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rflorenc/shop-migration-workbench/internal/models"
)

func TestConflictBatch_ResolveIsOneShot(t *testing.T) {
	b := newConflictBatch(models.KindProducts, []models.Outcome{{ID: "1"}})
	assert.Equal(t, "Produkte", b.Label)

	require.NoError(t, b.Resolve(models.ConflictDecision{"1": models.DecisionOverwrite}))
	assert.True(t, b.Closed())
	assert.ErrorIs(t, b.Resolve(models.ConflictDecision{}), ErrConflictBatchClosed)
	assert.ErrorIs(t, b.Cancel(), ErrConflictBatchClosed)

	r := b.wait(context.Background())
	assert.False(t, r.cancelled)
	assert.Equal(t, models.DecisionOverwrite, r.decisions["1"])
}

func TestConflictBatch_CancelIsOneShot(t *testing.T) {
	b := newConflictBatch(models.KindPages, nil)
	require.NoError(t, b.Cancel())
	assert.ErrorIs(t, b.Cancel(), ErrConflictBatchClosed)
	assert.True(t, b.wait(context.Background()).cancelled)
}

func TestConflictBatch_InvalidDecisionKeepsBatchOpen(t *testing.T) {
	b := newConflictBatch(models.KindPages, nil)
	err := b.Resolve(models.ConflictDecision{"1": "maybe"})
	assert.ErrorIs(t, err, models.ErrInvalidRequest)
	assert.False(t, b.Closed())
	assert.NoError(t, b.Cancel())
}

func TestConflictBatch_WaitBlocksUntilAnswered(t *testing.T) {
	b := newConflictBatch(models.KindPages, nil)
	got := make(chan conflictReply, 1)
	go func() { got <- b.wait(context.Background()) }()

	select {
	case <-got:
		t.Fatal("wait returned before the batch was answered")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, b.Resolve(models.ConflictDecision{"7": models.DecisionSkip}))
	select {
	case r := <-got:
		assert.Equal(t, models.DecisionSkip, r.decisions["7"])
	case <-time.After(time.Second):
		t.Fatal("wait did not return after Resolve")
	}
}

func TestConflictBatch_DoneContextCancels(t *testing.T) {
	b := newConflictBatch(models.KindPages, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, b.wait(ctx).cancelled)
	assert.ErrorIs(t, b.Resolve(models.ConflictDecision{}), ErrConflictBatchClosed)
}
