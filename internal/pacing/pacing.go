// Package pacing sequences work in fixed-size batches with a delay between
// batches, so upstream APIs see a bounded request rate.
package pacing

import (
	"context"
	"time"
)

const (
	// BatchSize is the number of items written per batch.
	BatchSize = 1
	// BatchDelay is the pause between two write batches.
	BatchDelay = 200 * time.Millisecond
	// NodesBatchSize is the number of ids fetched per node lookup.
	NodesBatchSize = 5
)

// Sequencer runs batches strictly one after another.
type Sequencer struct {
	BatchSize int
	Delay     time.Duration
	// Sleep waits between batches; nil means a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Default returns the write sequencer.
func Default() Sequencer {
	return Sequencer{BatchSize: BatchSize, Delay: BatchDelay}
}

// Nodes returns the sequencer used for batched node lookups.
func Nodes() Sequencer {
	return Sequencer{BatchSize: NodesBatchSize, Delay: BatchDelay}
}

// Batches splits n items into [start, end) ranges of the configured size.
func (s Sequencer) Batches(n int) [][2]int {
	size := s.BatchSize
	if size <= 0 {
		size = 1
	}
	var out [][2]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

// Run calls fn for every batch of n items and sleeps between batches, never
// after the last one. It stops before the next batch when ctx is done and
// returns ctx.Err(); items of batches already started are always finished.
func (s Sequencer) Run(ctx context.Context, n int, fn func(start, end int)) error {
	batches := s.Batches(n)
	for i, b := range batches {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(b[0], b[1])
		if i < len(batches)-1 && s.Delay > 0 {
			if err := s.sleep(ctx, s.Delay); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s Sequencer) sleep(ctx context.Context, d time.Duration) error {
	if s.Sleep != nil {
		return s.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
