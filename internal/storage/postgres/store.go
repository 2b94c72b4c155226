package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sandwichScope/internal/model"
	"sandwichScope/internal/storage"
)

//go:embed schema.sql
var schema string

// Store provides Postgres persistence for pairs, scan ranges, and sandwiches.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("%w: migrate: %v", model.ErrPersistence, err)
	}
	return nil
}

func (s *Store) TokenByAddress(ctx context.Context, chainID, address string) (model.Token, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, symbol, decimals, chain_id, address
		FROM tokens WHERE chain_id = $1 AND address = $2
	`, strings.ToLower(chainID), strings.ToLower(address))
	return scanToken(row)
}

func (s *Store) TokenByID(ctx context.Context, id int64) (model.Token, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, symbol, decimals, chain_id, address
		FROM tokens WHERE id = $1
	`, id)
	return scanToken(row)
}

func (s *Store) InsertToken(ctx context.Context, token model.Token) (model.Token, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO tokens (chain_id, address, name, symbol, decimals)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chain_id, address) DO UPDATE SET address = EXCLUDED.address
		RETURNING id, name, symbol, decimals, chain_id, address
	`,
		strings.ToLower(token.ChainID),
		strings.ToLower(token.Address),
		token.Name,
		token.Symbol,
		int16(token.Decimals),
	)
	return scanToken(row)
}

func scanToken(row pgx.Row) (model.Token, error) {
	var token model.Token
	var decimals int16
	if err := row.Scan(&token.ID, &token.Name, &token.Symbol, &decimals, &token.ChainID, &token.Address); err != nil {
		return model.Token{}, wrapErr(err)
	}
	token.Decimals = uint8(decimals)
	return token, nil
}

func (s *Store) PairByAddress(ctx context.Context, chainID, address string) (model.Pair, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, chain_id, factory_address, address, base_token_id, quote_token_id
		FROM pairs WHERE chain_id = $1 AND address = $2
	`, strings.ToLower(chainID), strings.ToLower(address))
	return scanPair(row)
}

func (s *Store) InsertPair(ctx context.Context, pair model.Pair) (model.Pair, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO pairs (chain_id, factory_address, address, base_token_id, quote_token_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chain_id, address) DO UPDATE SET address = EXCLUDED.address
		RETURNING id, chain_id, factory_address, address, base_token_id, quote_token_id
	`,
		strings.ToLower(pair.ChainID),
		strings.ToLower(pair.FactoryAddress),
		strings.ToLower(pair.Address),
		pair.BaseTokenID,
		pair.QuoteTokenID,
	)
	return scanPair(row)
}

func scanPair(row pgx.Row) (model.Pair, error) {
	var pair model.Pair
	if err := row.Scan(&pair.ID, &pair.ChainID, &pair.FactoryAddress, &pair.Address, &pair.BaseTokenID, &pair.QuoteTokenID); err != nil {
		return model.Pair{}, wrapErr(err)
	}
	return pair, nil
}

func (s *Store) FindCoveringRange(ctx context.Context, pairID int64, block uint64) (model.ScanRange, error) {
	b, err := toInt64(block)
	if err != nil {
		return model.ScanRange{}, err
	}
	row := s.pool.QueryRow(ctx, `
		SELECT id, pair_id, lower_bound, upper_bound, scan_complete, scan_failed
		FROM scan_ranges
		WHERE pair_id = $1 AND lower_bound <= $2 AND upper_bound >= $2
		ORDER BY id
		LIMIT 1
	`, pairID, b)
	return scanRange(row)
}

func (s *Store) PrecedingUpperBound(ctx context.Context, pairID int64, block uint64) (uint64, bool, error) {
	b, err := toInt64(block)
	if err != nil {
		return 0, false, err
	}
	var upper *int64
	row := s.pool.QueryRow(ctx, `
		SELECT MAX(upper_bound) FROM scan_ranges WHERE pair_id = $1 AND upper_bound < $2
	`, pairID, b)
	if err := row.Scan(&upper); err != nil {
		return 0, false, wrapErr(err)
	}
	if upper == nil {
		return 0, false, nil
	}
	return uint64(*upper), true, nil
}

func (s *Store) InsertRange(ctx context.Context, r model.ScanRange) (model.ScanRange, error) {
	lower, err := toInt64(r.LowerBound)
	if err != nil {
		return model.ScanRange{}, err
	}
	upper, err := toInt64(r.UpperBound)
	if err != nil {
		return model.ScanRange{}, err
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO scan_ranges (pair_id, lower_bound, upper_bound, scan_complete, scan_failed)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, pair_id, lower_bound, upper_bound, scan_complete, scan_failed
	`, r.PairID, lower, upper, r.Complete, r.Failed)
	return scanRange(row)
}

func (s *Store) CompleteRange(ctx context.Context, rangeID int64) error {
	return s.finalizeRange(ctx, rangeID, `UPDATE scan_ranges SET scan_complete = TRUE
		WHERE id = $1 AND NOT scan_complete AND NOT scan_failed`)
}

func (s *Store) FailRange(ctx context.Context, rangeID int64) error {
	return s.finalizeRange(ctx, rangeID, `UPDATE scan_ranges SET scan_failed = TRUE
		WHERE id = $1 AND NOT scan_complete AND NOT scan_failed`)
}

func (s *Store) finalizeRange(ctx context.Context, rangeID int64, query string) error {
	tag, err := s.pool.Exec(ctx, query, rangeID)
	if err != nil {
		return wrapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("range %d: %w", rangeID, storage.ErrRangeFinalized)
	}
	return nil
}

func scanRange(row pgx.Row) (model.ScanRange, error) {
	var r model.ScanRange
	var lower, upper int64
	if err := row.Scan(&r.ID, &r.PairID, &lower, &upper, &r.Complete, &r.Failed); err != nil {
		return model.ScanRange{}, wrapErr(err)
	}
	r.LowerBound = uint64(lower)
	r.UpperBound = uint64(upper)
	return r, nil
}

func (s *Store) InsertSandwich(ctx context.Context, pairID int64, blockNumber uint64) (int64, error) {
	block, err := toInt64(blockNumber)
	if err != nil {
		return 0, err
	}
	var id int64
	row := s.pool.QueryRow(ctx, `
		INSERT INTO sandwiches (pair_id, block_number) VALUES ($1, $2) RETURNING id
	`, pairID, block)
	if err := row.Scan(&id); err != nil {
		return 0, wrapErr(err)
	}
	return id, nil
}

func (s *Store) InsertLeg(ctx context.Context, leg model.TransactionLeg) (int64, error) {
	txIndex, err := toInt64(leg.TxIndex)
	if err != nil {
		return 0, err
	}
	var id int64
	row := s.pool.QueryRow(ctx, `
		INSERT INTO transaction_legs (
			sandwich_id, role, position, tx_hash, tx_index,
			base_in, quote_in, base_out, quote_out, gas
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`,
		leg.SandwichID,
		string(leg.Role),
		leg.Position,
		strings.ToLower(leg.TxHash),
		txIndex,
		leg.BaseIn,
		leg.QuoteIn,
		leg.BaseOut,
		leg.QuoteOut,
		leg.Gas,
	)
	if err := row.Scan(&id); err != nil {
		return 0, wrapErr(err)
	}
	return id, nil
}

func (s *Store) SandwichesInRange(ctx context.Context, pairID int64, from, to uint64) ([]model.Sandwich, error) {
	lower, err := toInt64(from)
	if err != nil {
		return nil, err
	}
	upper, err := toInt64(to)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, pair_id, block_number FROM sandwiches
		WHERE pair_id = $1 AND block_number >= $2 AND block_number <= $3
		ORDER BY block_number DESC, id
	`, pairID, lower, upper)
	if err != nil {
		return nil, wrapErr(err)
	}
	parents, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Sandwich, error) {
		var sw model.Sandwich
		var block int64
		err := row.Scan(&sw.ID, &sw.PairID, &block)
		sw.BlockNumber = uint64(block)
		return sw, err
	})
	if err != nil {
		return nil, wrapErr(err)
	}
	if len(parents) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(parents))
	for i, parent := range parents {
		ids[i] = parent.ID
	}
	rows, err = s.pool.Query(ctx, `
		SELECT id, sandwich_id, role, position, tx_hash, tx_index,
			base_in, quote_in, base_out, quote_out, gas
		FROM transaction_legs
		WHERE sandwich_id = ANY($1)
		ORDER BY sandwich_id, position
	`, ids)
	if err != nil {
		return nil, wrapErr(err)
	}
	legs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.TransactionLeg, error) {
		var leg model.TransactionLeg
		var role string
		var txIndex int64
		err := row.Scan(&leg.ID, &leg.SandwichID, &role, &leg.Position, &leg.TxHash, &txIndex,
			&leg.BaseIn, &leg.QuoteIn, &leg.BaseOut, &leg.QuoteOut, &leg.Gas)
		leg.Role = model.LegRole(role)
		leg.TxIndex = uint64(txIndex)
		return leg, err
	})
	if err != nil {
		return nil, wrapErr(err)
	}
	return storage.Assemble(parents, legs), nil
}

func toInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %d does not fit BIGINT", model.ErrNumericOverflow, v)
	}
	return int64(v), nil
}

func wrapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	return fmt.Errorf("%w: %v", model.ErrPersistence, err)
}
