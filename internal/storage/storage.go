package storage

import (
	"context"
	"errors"

	"sandwichScope/internal/model"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("record not found")

// ErrRangeFinalized is returned when a range that is already complete or
// failed is finalized again.
var ErrRangeFinalized = errors.New("scan range already finalized")

// TokenStore persists ERC20 tokens keyed by (chain, lowercase address).
type TokenStore interface {
	TokenByAddress(ctx context.Context, chainID, address string) (model.Token, error)
	TokenByID(ctx context.Context, id int64) (model.Token, error)
	// InsertToken inserts the token, or returns the existing row for the
	// same (chain, address).
	InsertToken(ctx context.Context, token model.Token) (model.Token, error)
}

// PairStore persists pairs keyed by (chain, lowercase address).
type PairStore interface {
	PairByAddress(ctx context.Context, chainID, address string) (model.Pair, error)
	// InsertPair inserts the pair, or returns the existing row for the same
	// (chain, address).
	InsertPair(ctx context.Context, pair model.Pair) (model.Pair, error)
}

// RangeStore persists the scan range ledger.
type RangeStore interface {
	// FindCoveringRange returns the range of pairID containing block, or ErrNotFound.
	FindCoveringRange(ctx context.Context, pairID int64, block uint64) (model.ScanRange, error)
	// PrecedingUpperBound returns the greatest upper bound strictly below block.
	PrecedingUpperBound(ctx context.Context, pairID int64, block uint64) (uint64, bool, error)
	InsertRange(ctx context.Context, r model.ScanRange) (model.ScanRange, error)
	// CompleteRange and FailRange flip an in-progress range exactly once.
	CompleteRange(ctx context.Context, rangeID int64) error
	FailRange(ctx context.Context, rangeID int64) error
}

// SandwichStore persists detected sandwiches and their legs.
type SandwichStore interface {
	// InsertSandwich writes the parent row only and returns its id.
	InsertSandwich(ctx context.Context, pairID int64, blockNumber uint64) (int64, error)
	InsertLeg(ctx context.Context, leg model.TransactionLeg) (int64, error)
	// SandwichesInRange returns the sandwiches of pairID with from <= block <= to,
	// newest block first, legs in position order.
	SandwichesInRange(ctx context.Context, pairID int64, from, to uint64) ([]model.Sandwich, error)
}

// Store is the full persistence surface.
type Store interface {
	TokenStore
	PairStore
	RangeStore
	SandwichStore
	Close()
}

// Exporter receives persisted sandwiches of one pair.
type Exporter interface {
	ExportSandwiches(ctx context.Context, pair model.Pair, sandwiches []model.Sandwich) error
	Close() error
}
