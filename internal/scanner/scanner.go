// Package scanner walks a pair's history backward in adaptively sized chunks,
// detects sandwiches, and records its progress in the range ledger.
package scanner

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"sandwichScope/internal/dex"
	"sandwichScope/internal/model"
	"sandwichScope/internal/sandwich"
	"sandwichScope/internal/storage"
	"sandwichScope/internal/swap"
)

// Params tunes chunk sizing and the per-query window.
type Params struct {
	InitialChunkSize     uint64
	MaxChunkSize         uint64
	TargetEventsPerChunk uint64
	MaxWindow            uint64
}

// LogSource fetches event logs for an inclusive block range.
type LogSource interface {
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// Store is what a scan job writes to.
type Store interface {
	storage.RangeStore
	storage.SandwichStore
}

// Target is the pair a job scans, with everything needed to decode its swaps.
type Target struct {
	Pair    model.Pair
	Address common.Address
	Base    swap.TokenRef
	Quote   swap.TokenRef
	Decoder dex.SwapDecoder
}

// Stats summarizes a finished job.
type Stats struct {
	Chunks     int
	Events     int
	Sandwiches int
}

// Scanner runs scan jobs for one chain.
type Scanner struct {
	logs     LogSource
	enricher *sandwich.Enricher
	store    Store
	ledger   *Ledger
	params   Params
	logger   *zap.Logger
}

func NewScanner(logs LogSource, enricher *sandwich.Enricher, store Store, params Params, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		logs:     logs,
		enricher: enricher,
		store:    store,
		ledger:   NewLedger(store),
		params:   params,
		logger:   logger,
	}
}

// Params returns the scanner's tuning.
func (s *Scanner) Params() Params {
	return s.params
}

// Run scans r from its upper bound down to its lower bound and then marks it
// complete, or failed on the first error. The range is finalized even when
// ctx is canceled.
func (s *Scanner) Run(ctx context.Context, target Target, r model.ScanRange) (Stats, error) {
	logger := s.logger.With(
		zap.String("chain", target.Pair.ChainID),
		zap.String("pair", target.Pair.Address),
		zap.Int64("range_id", r.ID),
	)
	logger.Info("scan started", zap.Uint64("lower", r.LowerBound), zap.Uint64("upper", r.UpperBound))

	stats, err := s.scan(ctx, target, r, logger)
	finalizeCtx := context.WithoutCancel(ctx)
	if err != nil {
		logger.Error("scan failed", zap.Error(err), zap.Int("sandwiches", stats.Sandwiches))
		if markErr := s.ledger.MarkFailed(finalizeCtx, r.ID); markErr != nil {
			logger.Error("mark range failed", zap.Error(markErr))
			err = errors.Join(err, markErr)
		}
		return stats, err
	}

	if err := s.ledger.MarkComplete(finalizeCtx, r.ID); err != nil {
		logger.Error("mark range complete", zap.Error(err))
		return stats, err
	}
	logger.Info("scan complete",
		zap.Int("chunks", stats.Chunks),
		zap.Int("events", stats.Events),
		zap.Int("sandwiches", stats.Sandwiches),
	)
	return stats, nil
}

func (s *Scanner) scan(ctx context.Context, target Target, r model.ScanRange, logger *zap.Logger) (Stats, error) {
	var stats Stats
	if target.Decoder == nil {
		return stats, fmt.Errorf("target has no swap decoder")
	}
	if r.LowerBound > r.UpperBound {
		return stats, fmt.Errorf("range lower %d above upper %d", r.LowerBound, r.UpperBound)
	}

	size := s.params.InitialChunkSize
	upper := r.UpperBound
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		chunk := ChunkBelow(upper, r.LowerBound, size)
		res, err := s.scanChunk(ctx, target, chunk)
		stats.Sandwiches += res.sandwiches
		if err != nil {
			return stats, fmt.Errorf("chunk %d-%d: %w", chunk.From, chunk.To, err)
		}
		stats.Chunks++
		stats.Events += res.swaps

		// Density counts every log the provider returned, removed ones included.
		size = NextChunkSize(uint64(res.fetched), chunk.Span(), s.params.TargetEventsPerChunk, s.params.MaxChunkSize)
		logger.Info("chunk scanned",
			zap.Uint64("from", chunk.From),
			zap.Uint64("to", chunk.To),
			zap.Int("events", res.fetched),
			zap.Int("swaps", res.swaps),
			zap.Int("sandwiches", res.sandwiches),
			zap.Uint64("next_chunk_size", size),
		)

		if chunk.From <= r.LowerBound {
			return stats, nil
		}
		upper = chunk.From - 1
	}
}

type chunkResult struct {
	fetched    int
	swaps      int
	sandwiches int
}

func (s *Scanner) scanChunk(ctx context.Context, target Target, chunk BlockRange) (chunkResult, error) {
	var res chunkResult
	logs, err := s.logs.FilterLogs(ctx, chunk.From, chunk.To, []common.Address{target.Address}, []common.Hash{target.Decoder.Topic0()})
	if err != nil {
		return res, fmt.Errorf("fetch logs: %w", err)
	}
	res.fetched = len(logs)

	swaps := make([]swap.Swap, 0, len(logs))
	for _, log := range logs {
		if log.Removed {
			continue
		}
		ev, err := target.Decoder.Decode(log)
		if err != nil {
			return res, fmt.Errorf("decode log %s/%d: %w", log.TxHash.Hex(), log.Index, err)
		}
		swaps = append(swaps, swap.Bind(ev, target.Base, target.Quote))
	}
	res.swaps = len(swaps)

	for _, block := range sandwich.GroupByBlock(swaps) {
		for _, m := range sandwich.Detect(block.Swaps) {
			sw, err := s.enricher.Enrich(ctx, target.Pair.ID, m)
			if err != nil {
				return res, fmt.Errorf("enrich block %d: %w", block.Number, err)
			}
			if err := s.persist(ctx, sw); err != nil {
				return res, err
			}
			res.sandwiches++
		}
	}
	return res, nil
}

// persist writes the parent row, then each leg. The writes are not atomic: a
// failure part way leaves a partial sandwich and fails the range.
func (s *Scanner) persist(ctx context.Context, sw model.Sandwich) error {
	id, err := s.store.InsertSandwich(ctx, sw.PairID, sw.BlockNumber)
	if err != nil {
		return fmt.Errorf("insert sandwich at block %d: %w", sw.BlockNumber, err)
	}
	for _, leg := range sw.Legs() {
		leg.SandwichID = id
		if _, err := s.store.InsertLeg(ctx, leg); err != nil {
			return fmt.Errorf("insert %s leg %s: %w", leg.Role, leg.TxHash, err)
		}
	}
	return nil
}
