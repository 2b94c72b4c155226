package scanner

import (
	"context"
	"errors"
	"fmt"

	"sandwichScope/internal/model"
	"sandwichScope/internal/storage"
)

// Ledger records which block intervals of each pair have been handed to a
// scan job. It holds no lock across calls: two requests allocating for
// overlapping windows at the same moment can both succeed.
type Ledger struct {
	store storage.RangeStore
}

func NewLedger(store storage.RangeStore) *Ledger {
	return &Ledger{store: store}
}

// FindCovering returns the range containing block, if any.
func (l *Ledger) FindCovering(ctx context.Context, pairID int64, block uint64) (model.ScanRange, bool, error) {
	r, err := l.store.FindCoveringRange(ctx, pairID, block)
	if errors.Is(err, storage.ErrNotFound) {
		return model.ScanRange{}, false, nil
	}
	if err != nil {
		return model.ScanRange{}, false, err
	}
	return r, true, nil
}

// PrecedingUpperBound returns the greatest upper bound strictly below block.
func (l *Ledger) PrecedingUpperBound(ctx context.Context, pairID int64, block uint64) (uint64, bool, error) {
	return l.store.PrecedingUpperBound(ctx, pairID, block)
}

// Allocate records a new in-progress range [lower, upper].
func (l *Ledger) Allocate(ctx context.Context, pairID int64, lower, upper uint64) (model.ScanRange, error) {
	if lower > upper {
		return model.ScanRange{}, fmt.Errorf("allocate range: lower %d above upper %d", lower, upper)
	}
	return l.store.InsertRange(ctx, model.ScanRange{PairID: pairID, LowerBound: lower, UpperBound: upper})
}

// AllocateBelow allocates the uncovered window ending at before. The window
// reaches back at most maxWindow blocks and stops short of the nearest
// earlier range, so ranges never overlap.
func (l *Ledger) AllocateBelow(ctx context.Context, pairID int64, before, maxWindow uint64) (model.ScanRange, error) {
	preceding, ok, err := l.PrecedingUpperBound(ctx, pairID, before)
	if err != nil {
		return model.ScanRange{}, err
	}
	return l.Allocate(ctx, pairID, AllocationLowerBound(before, maxWindow, preceding, ok), before)
}

func (l *Ledger) MarkComplete(ctx context.Context, rangeID int64) error {
	return l.store.CompleteRange(ctx, rangeID)
}

func (l *Ledger) MarkFailed(ctx context.Context, rangeID int64) error {
	return l.store.FailRange(ctx, rangeID)
}

// AllocationLowerBound is max(preceding+1, before-maxWindow+1), saturating at 0.
func AllocationLowerBound(before, maxWindow, preceding uint64, hasPreceding bool) uint64 {
	lower := WindowStart(before, maxWindow)
	if hasPreceding && preceding+1 > lower {
		lower = preceding + 1
	}
	return lower
}

// WindowStart is the first block of the maxWindow-block window ending at
// before, saturating at 0.
func WindowStart(before, maxWindow uint64) uint64 {
	if maxWindow == 0 {
		return before
	}
	if back := maxWindow - 1; back <= before {
		return before - back
	}
	return 0
}
