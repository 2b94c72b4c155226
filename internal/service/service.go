// Package service answers pair and sandwich queries, allocating and launching
// scan jobs for history that has not been scanned yet.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"sandwichScope/internal/chain"
	"sandwichScope/internal/config"
	"sandwichScope/internal/dex"
	"sandwichScope/internal/model"
	"sandwichScope/internal/sandwich"
	"sandwichScope/internal/scanner"
	"sandwichScope/internal/storage"
	"sandwichScope/internal/swap"
)

// ChainClient is the chain access one configured chain needs.
type ChainClient interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Status describes the scan state behind a sandwiches response.
type Status string

const (
	StatusComplete Status = "complete"
	StatusScanning Status = "scanning"
	StatusFailed   Status = "failed"
	StatusStarted  Status = "started"
)

// PairInfo is a resolved pair with its tokens and exchange.
type PairInfo struct {
	ChainID   string         `json:"blockchain"`
	ChainName string         `json:"blockchain_name"`
	Pair      model.Pair     `json:"pair"`
	Base      model.Token    `json:"base_token"`
	Quote     model.Token    `json:"quote_token"`
	Exchange  model.Exchange `json:"exchange"`
}

// SandwichesResult answers one sandwiches query. Range is nil only when the
// query could not be tied to a range.
type SandwichesResult struct {
	Pair       PairInfo         `json:"pair"`
	Sandwiches []model.Sandwich `json:"sandwiches"`
	Range      *model.ScanRange `json:"range,omitempty"`
	From       uint64           `json:"from_block"`
	To         uint64           `json:"to_block"`
	Status     Status           `json:"status"`
	JobID      string           `json:"job_id,omitempty"`
}

type backend struct {
	chain   config.Chain
	client  ChainClient
	scanner *scanner.Scanner
}

// Service is safe for concurrent use.
type Service struct {
	store    storage.Store
	ledger   *scanner.Ledger
	backends map[string]*backend
	jobs     *scanner.Jobs
	tokens   *tokenCache
	logger   *zap.Logger
}

// New wires one scanner per registry chain that has a client.
func New(registry *config.Registry, clients map[string]ChainClient, store storage.Store, base config.ScanParams, jobs *scanner.Jobs, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if jobs == nil {
		jobs = scanner.NewJobs(logger)
	}
	s := &Service{
		store:    store,
		ledger:   scanner.NewLedger(store),
		backends: make(map[string]*backend),
		jobs:     jobs,
		tokens:   newTokenCache(),
		logger:   logger,
	}
	for _, c := range registry.Chains() {
		client, ok := clients[c.ID]
		if !ok {
			continue
		}
		params := c.ScanParams(base)
		if err := params.Validate(); err != nil {
			return nil, fmt.Errorf("chain %s: %w", c.ID, err)
		}
		chainLogger := logger.With(zap.String("chain", c.ID))
		enricher := sandwich.NewEnricher(client, c.NativeDecimals, chainLogger)
		s.backends[c.ID] = &backend{
			chain:  c,
			client: client,
			scanner: scanner.NewScanner(client, enricher, store, scanner.Params{
				InitialChunkSize:     params.InitialChunkSize,
				MaxChunkSize:         params.MaxChunkSize,
				TargetEventsPerChunk: params.TargetEventsPerChunk,
				MaxWindow:            params.MaxWindow,
			}, chainLogger),
		}
	}
	if len(s.backends) == 0 {
		return nil, fmt.Errorf("no chain has a client")
	}
	return s, nil
}

// Jobs exposes the background job launcher.
func (s *Service) Jobs() *scanner.Jobs {
	return s.jobs
}

func (s *Service) backend(chainID string) (*backend, error) {
	b, ok := s.backends[normalizeChainID(chainID)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnsupportedChain, chainID)
	}
	return b, nil
}

// Pair resolves a pair from the store, or on a miss from chain metadata, and
// stores it together with any new tokens.
func (s *Service) Pair(ctx context.Context, chainID, address string) (PairInfo, error) {
	b, err := s.backend(chainID)
	if err != nil {
		return PairInfo{}, err
	}
	pairAddress, lower, err := chain.ParseAddress(address)
	if err != nil {
		return PairInfo{}, err
	}

	pair, err := s.store.PairByAddress(ctx, b.chain.ID, lower)
	switch {
	case err == nil:
		return s.describe(ctx, b, pair)
	case !errors.Is(err, storage.ErrNotFound):
		return PairInfo{}, persistenceErr("load pair", err)
	}

	meta, err := dex.FetchPairMetadata(ctx, b.client, pairAddress, b.chain.AggregatorAddress(), s.logger)
	if err != nil {
		return PairInfo{}, err
	}
	exchange, ok := b.chain.ExchangeByFactory(meta.Factory)
	if !ok {
		return PairInfo{}, fmt.Errorf("%w: factory %s on %s", model.ErrUnsupportedExchange, meta.Factory, b.chain.ID)
	}

	base, err := s.ensureToken(ctx, tokenFromMeta(b.chain.ID, meta.Base))
	if err != nil {
		return PairInfo{}, persistenceErr("store base token", err)
	}
	quote, err := s.ensureToken(ctx, tokenFromMeta(b.chain.ID, meta.Quote))
	if err != nil {
		return PairInfo{}, persistenceErr("store quote token", err)
	}
	pair, err = s.store.InsertPair(ctx, model.Pair{
		ChainID:        b.chain.ID,
		FactoryAddress: meta.Factory,
		Address:        lower,
		BaseTokenID:    base.ID,
		QuoteTokenID:   quote.ID,
	})
	if err != nil {
		return PairInfo{}, persistenceErr("insert pair", err)
	}
	s.tokens.set(base)
	s.tokens.set(quote)
	s.logger.Info("pair registered",
		zap.String("chain", b.chain.ID),
		zap.String("pair", pair.Address),
		zap.String("exchange", exchange.Name),
		zap.String("base", base.Symbol),
		zap.String("quote", quote.Symbol),
	)
	return PairInfo{
		ChainID:   b.chain.ID,
		ChainName: b.chain.Name,
		Pair:      pair,
		Base:      base,
		Quote:     quote,
		Exchange:  exchange,
	}, nil
}

// ensureToken reuses the stored row for (chain, address) when there is one,
// so a token shared by many pairs is written once.
func (s *Service) ensureToken(ctx context.Context, token model.Token) (model.Token, error) {
	existing, err := s.store.TokenByAddress(ctx, token.ChainID, token.Address)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, storage.ErrNotFound):
		return model.Token{}, err
	}
	return s.store.InsertToken(ctx, token)
}

func (s *Service) describe(ctx context.Context, b *backend, pair model.Pair) (PairInfo, error) {
	base, err := s.tokens.load(ctx, s.store, pair.BaseTokenID)
	if err != nil {
		return PairInfo{}, persistenceErr("load base token", err)
	}
	quote, err := s.tokens.load(ctx, s.store, pair.QuoteTokenID)
	if err != nil {
		return PairInfo{}, persistenceErr("load quote token", err)
	}
	exchange, ok := b.chain.ExchangeByFactory(pair.FactoryAddress)
	if !ok {
		return PairInfo{}, fmt.Errorf("%w: factory %s on %s", model.ErrUnsupportedExchange, pair.FactoryAddress, b.chain.ID)
	}
	return PairInfo{
		ChainID:   b.chain.ID,
		ChainName: b.chain.Name,
		Pair:      pair,
		Base:      base,
		Quote:     quote,
		Exchange:  exchange,
	}, nil
}

// Sandwiches returns persisted sandwiches in the window ending at before
// (latest block when nil). If before is not covered by any range, a new range
// is allocated and a background scan job started; the result is then empty
// with StatusStarted.
func (s *Service) Sandwiches(ctx context.Context, chainID, address string, before *uint64) (SandwichesResult, error) {
	return s.query(ctx, chainID, address, before, false)
}

// Scan is Sandwiches with the scan job run in the foreground. It returns once
// the new range is finalized.
func (s *Service) Scan(ctx context.Context, chainID, address string, before *uint64) (SandwichesResult, error) {
	return s.query(ctx, chainID, address, before, true)
}

func (s *Service) query(ctx context.Context, chainID, address string, before *uint64, foreground bool) (SandwichesResult, error) {
	info, err := s.Pair(ctx, chainID, address)
	if err != nil {
		return SandwichesResult{}, err
	}
	b, err := s.backend(info.ChainID)
	if err != nil {
		return SandwichesResult{}, err
	}

	upper, err := s.resolveBefore(ctx, b, before)
	if err != nil {
		return SandwichesResult{}, err
	}
	maxWindow := b.scanner.Params().MaxWindow
	after := scanner.WindowStart(upper, maxWindow)
	result := SandwichesResult{Pair: info, To: upper}

	r, ok, err := s.ledger.FindCovering(ctx, info.Pair.ID, upper)
	if err != nil {
		return SandwichesResult{}, persistenceErr("find covering range", err)
	}
	if !ok {
		r, err = s.ledger.AllocateBelow(ctx, info.Pair.ID, upper, maxWindow)
		if err != nil {
			return SandwichesResult{}, persistenceErr("allocate range", err)
		}
		target, err := newTarget(info)
		if err != nil {
			return SandwichesResult{}, err
		}
		if !foreground {
			result.JobID = s.jobs.Start(b.scanner, target, r)
			result.Range = &r
			result.From = r.LowerBound
			result.Status = StatusStarted
			result.Sandwiches = []model.Sandwich{}
			return result, nil
		}
		// A failed foreground scan still finalized the range; report it below.
		if _, err := b.scanner.Run(ctx, target, r); err != nil {
			s.logger.Warn("foreground scan failed", zap.Int64("range_id", r.ID), zap.Error(err))
		}
		if r, _, err = s.ledger.FindCovering(ctx, info.Pair.ID, upper); err != nil {
			return SandwichesResult{}, persistenceErr("reload range", err)
		}
	}

	result.From = max(after, r.LowerBound)
	result.Range = &r
	result.Status = statusOf(r)
	sandwiches, err := s.store.SandwichesInRange(ctx, info.Pair.ID, result.From, upper)
	if err != nil {
		return SandwichesResult{}, persistenceErr("load sandwiches", err)
	}
	if sandwiches == nil {
		sandwiches = []model.Sandwich{}
	}
	result.Sandwiches = sandwiches
	return result, nil
}

// Export sends the persisted sandwiches of a pair within [from, to] to exp.
func (s *Service) Export(ctx context.Context, chainID, address string, from, to uint64, exp storage.Exporter) (int, error) {
	if from > to {
		return 0, fmt.Errorf("%w: from %d above to %d", model.ErrParse, from, to)
	}
	if to > math.MaxInt64 {
		return 0, fmt.Errorf("%w: block %d", model.ErrNumericOverflow, to)
	}
	info, err := s.Pair(ctx, chainID, address)
	if err != nil {
		return 0, err
	}
	sandwiches, err := s.store.SandwichesInRange(ctx, info.Pair.ID, from, to)
	if err != nil {
		return 0, persistenceErr("load sandwiches", err)
	}
	if err := exp.ExportSandwiches(ctx, info.Pair, sandwiches); err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	return len(sandwiches), nil
}

func (s *Service) resolveBefore(ctx context.Context, b *backend, before *uint64) (uint64, error) {
	var upper uint64
	if before != nil {
		upper = *before
	} else {
		latest, err := b.client.LatestBlockNumber(ctx)
		if err != nil {
			return 0, err
		}
		upper = latest
	}
	if upper > math.MaxInt64 {
		return 0, fmt.Errorf("%w: block %d", model.ErrNumericOverflow, upper)
	}
	return upper, nil
}

func newTarget(info PairInfo) (scanner.Target, error) {
	decoder, err := dex.NewSwapDecoder(info.Exchange.Kind)
	if err != nil {
		return scanner.Target{}, err
	}
	return scanner.Target{
		Pair:    info.Pair,
		Address: common.HexToAddress(info.Pair.Address),
		Base:    swap.TokenRef{ID: info.Base.ID, Decimals: info.Base.Decimals},
		Quote:   swap.TokenRef{ID: info.Quote.ID, Decimals: info.Quote.Decimals},
		Decoder: decoder,
	}, nil
}

func statusOf(r model.ScanRange) Status {
	switch {
	case r.Complete:
		return StatusComplete
	case r.Failed:
		return StatusFailed
	default:
		return StatusScanning
	}
}

func tokenFromMeta(chainID string, meta model.TokenMeta) model.Token {
	return model.Token{
		Name:     meta.Name,
		Symbol:   meta.Symbol,
		Decimals: meta.Decimals,
		ChainID:  chainID,
		Address:  meta.Address,
	}
}

func persistenceErr(op string, err error) error {
	if errors.Is(err, model.ErrPersistence) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %v", model.ErrPersistence, op, err)
}
