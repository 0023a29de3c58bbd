package migration

import (
	"context"
	"errors"
	"sync"

	"github.com/rflorenc/shop-migration-workbench/internal/models"
)

// ErrConflictBatchClosed is returned when a batch was already resolved or cancelled.
var ErrConflictBatchClosed = errors.New("conflict batch already closed")

// ConflictBatch is a set of pending conflicts published by a running
// migration. The migration waits until exactly one of Resolve or Cancel
// is called.
type ConflictBatch struct {
	Kind      models.EntityKind
	Label     string
	Conflicts []models.Outcome

	mu     sync.Mutex
	closed bool
	reply  chan conflictReply
}

type conflictReply struct {
	decisions models.ConflictDecision
	cancelled bool
}

func newConflictBatch(kind models.EntityKind, conflicts []models.Outcome) *ConflictBatch {
	return &ConflictBatch{
		Kind:      kind,
		Label:     kind.Label(),
		Conflicts: conflicts,
		reply:     make(chan conflictReply, 1),
	}
}

// Resolve hands the decisions back to the migration. Conflicts without a
// decision are skipped.
func (b *ConflictBatch) Resolve(decisions models.ConflictDecision) error {
	if err := decisions.Validate(); err != nil {
		return err
	}
	return b.send(conflictReply{decisions: decisions})
}

// Cancel skips every pending conflict.
func (b *ConflictBatch) Cancel() error {
	return b.send(conflictReply{cancelled: true})
}

// Closed reports whether Resolve or Cancel has been called.
func (b *ConflictBatch) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *ConflictBatch) send(r conflictReply) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrConflictBatchClosed
	}
	b.closed = true
	b.reply <- r
	return nil
}

// wait blocks until the batch is answered. A done context cancels the batch
// unless an answer is already there.
func (b *ConflictBatch) wait(ctx context.Context) conflictReply {
	select {
	case r := <-b.reply:
		return r
	case <-ctx.Done():
		_ = b.Cancel()
		return <-b.reply
	}
}

// ConflictHandler receives pending conflicts. It may answer the batch
// before returning or hold on to it and answer later from elsewhere.
type ConflictHandler interface {
	HandleConflicts(batch *ConflictBatch)
}

// ConflictHandlerFunc adapts a function to ConflictHandler.
type ConflictHandlerFunc func(batch *ConflictBatch)

func (f ConflictHandlerFunc) HandleConflicts(batch *ConflictBatch) { f(batch) }
