// Package memory is an in-process Store used by the memory backend and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"sandwichScope/internal/model"
	"sandwichScope/internal/storage"
)

type Store struct {
	mu sync.RWMutex

	nextID     int64
	tokens     map[int64]model.Token
	pairs      map[int64]model.Pair
	ranges     map[int64]model.ScanRange
	sandwiches map[int64]model.Sandwich
	legs       map[int64]model.TransactionLeg
}

func NewStore() *Store {
	return &Store{
		tokens:     make(map[int64]model.Token),
		pairs:      make(map[int64]model.Pair),
		ranges:     make(map[int64]model.ScanRange),
		sandwiches: make(map[int64]model.Sandwich),
		legs:       make(map[int64]model.TransactionLeg),
	}
}

func (s *Store) Close() {}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) TokenByAddress(_ context.Context, chainID, address string) (model.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokenByAddress(chainID, address)
}

func (s *Store) tokenByAddress(chainID, address string) (model.Token, error) {
	chainID, address = strings.ToLower(chainID), strings.ToLower(address)
	for _, token := range s.tokens {
		if token.ChainID == chainID && token.Address == address {
			return token, nil
		}
	}
	return model.Token{}, storage.ErrNotFound
}

func (s *Store) TokenByID(_ context.Context, id int64) (model.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[id]
	if !ok {
		return model.Token{}, storage.ErrNotFound
	}
	return token, nil
}

func (s *Store) InsertToken(_ context.Context, token model.Token) (model.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, err := s.tokenByAddress(token.ChainID, token.Address); err == nil {
		return existing, nil
	}
	token.ID = s.id()
	token.ChainID = strings.ToLower(token.ChainID)
	token.Address = strings.ToLower(token.Address)
	s.tokens[token.ID] = token
	return token, nil
}

func (s *Store) PairByAddress(_ context.Context, chainID, address string) (model.Pair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pairByAddress(chainID, address)
}

func (s *Store) pairByAddress(chainID, address string) (model.Pair, error) {
	chainID, address = strings.ToLower(chainID), strings.ToLower(address)
	for _, pair := range s.pairs {
		if pair.ChainID == chainID && pair.Address == address {
			return pair, nil
		}
	}
	return model.Pair{}, storage.ErrNotFound
}

func (s *Store) InsertPair(_ context.Context, pair model.Pair) (model.Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, err := s.pairByAddress(pair.ChainID, pair.Address); err == nil {
		return existing, nil
	}
	pair.ID = s.id()
	pair.ChainID = strings.ToLower(pair.ChainID)
	pair.Address = strings.ToLower(pair.Address)
	pair.FactoryAddress = strings.ToLower(pair.FactoryAddress)
	s.pairs[pair.ID] = pair
	return pair, nil
}

func (s *Store) FindCoveringRange(_ context.Context, pairID int64, block uint64) (model.ScanRange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *model.ScanRange
	for _, r := range s.ranges {
		if r.PairID != pairID || !r.Contains(block) {
			continue
		}
		if found == nil || r.ID < found.ID {
			r := r
			found = &r
		}
	}
	if found == nil {
		return model.ScanRange{}, storage.ErrNotFound
	}
	return *found, nil
}

func (s *Store) PrecedingUpperBound(_ context.Context, pairID int64, block uint64) (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best uint64
	var ok bool
	for _, r := range s.ranges {
		if r.PairID != pairID || r.UpperBound >= block {
			continue
		}
		if !ok || r.UpperBound > best {
			best, ok = r.UpperBound, true
		}
	}
	return best, ok, nil
}

func (s *Store) InsertRange(_ context.Context, r model.ScanRange) (model.ScanRange, error) {
	if r.LowerBound > r.UpperBound {
		return model.ScanRange{}, fmt.Errorf("%w: range lower %d above upper %d", model.ErrPersistence, r.LowerBound, r.UpperBound)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.id()
	s.ranges[r.ID] = r
	return r, nil
}

func (s *Store) CompleteRange(_ context.Context, rangeID int64) error {
	return s.finalize(rangeID, func(r *model.ScanRange) { r.Complete = true })
}

func (s *Store) FailRange(_ context.Context, rangeID int64) error {
	return s.finalize(rangeID, func(r *model.ScanRange) { r.Failed = true })
}

func (s *Store) finalize(rangeID int64, mark func(*model.ScanRange)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.ranges[rangeID]
	if !ok {
		return storage.ErrNotFound
	}
	if !r.InProgress() {
		return fmt.Errorf("range %d: %w", rangeID, storage.ErrRangeFinalized)
	}
	mark(&r)
	s.ranges[rangeID] = r
	return nil
}

// Ranges returns every range of pairID ordered by lower bound.
func (s *Store) Ranges(pairID int64) []model.ScanRange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ScanRange
	for _, r := range s.ranges {
		if r.PairID == pairID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LowerBound < out[j].LowerBound })
	return out
}

func (s *Store) InsertSandwich(_ context.Context, pairID int64, blockNumber uint64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.sandwiches[id] = model.Sandwich{ID: id, PairID: pairID, BlockNumber: blockNumber}
	return id, nil
}

func (s *Store) InsertLeg(_ context.Context, leg model.TransactionLeg) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sandwiches[leg.SandwichID]; !ok {
		return 0, fmt.Errorf("%w: sandwich %d does not exist", model.ErrPersistence, leg.SandwichID)
	}
	for _, existing := range s.legs {
		if existing.SandwichID == leg.SandwichID && existing.Position == leg.Position {
			return 0, fmt.Errorf("%w: duplicate leg position %d", model.ErrPersistence, leg.Position)
		}
	}
	leg.ID = s.id()
	leg.TxHash = strings.ToLower(leg.TxHash)
	s.legs[leg.ID] = leg
	return leg.ID, nil
}

func (s *Store) SandwichesInRange(_ context.Context, pairID int64, from, to uint64) ([]model.Sandwich, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var parents []model.Sandwich
	ids := make(map[int64]struct{})
	for _, sw := range s.sandwiches {
		if sw.PairID == pairID && from <= sw.BlockNumber && sw.BlockNumber <= to {
			parents = append(parents, sw)
			ids[sw.ID] = struct{}{}
		}
	}
	if len(parents) == 0 {
		return nil, nil
	}
	sort.Slice(parents, func(i, j int) bool {
		if parents[i].BlockNumber != parents[j].BlockNumber {
			return parents[i].BlockNumber > parents[j].BlockNumber
		}
		return parents[i].ID < parents[j].ID
	})

	var legs []model.TransactionLeg
	for _, leg := range s.legs {
		if _, ok := ids[leg.SandwichID]; ok {
			legs = append(legs, leg)
		}
	}
	return storage.Assemble(parents, legs), nil
}
