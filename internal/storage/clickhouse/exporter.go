// Package clickhouse exports persisted sandwiches to ClickHouse for analytics.
package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"sandwichScope/internal/model"
)

// Options locates the ClickHouse server.
type Options struct {
	Addr     string
	Database string
	Username string
	Password string
}

// Exporter writes sandwiches and legs into ReplacingMergeTree tables, so
// re-exporting the same rows collapses on merge.
type Exporter struct {
	conn driver.Conn
}

func Open(ctx context.Context, opts Options) (*Exporter, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("clickhouse addr is required")
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		DialTimeout:  5 * time.Second,
		Compression:  &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
		MaxOpenConns: 4,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}
	return &Exporter{conn: conn}, nil
}

func (e *Exporter) Close() error {
	return e.conn.Close()
}

// CreateTables creates the export tables if they are missing.
func (e *Exporter) CreateTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS sandwiches
		(
			chain_id String,
			pair_address String,
			sandwich_id Int64,
			block_number UInt64,
			lunchmeat_count UInt16,
			frontrun_hash String,
			backrun_hash String,
			total_gas Float64
		)
		ENGINE = ReplacingMergeTree
		ORDER BY (chain_id, pair_address, block_number, sandwich_id)`,

		`CREATE TABLE IF NOT EXISTS sandwich_legs
		(
			chain_id String,
			pair_address String,
			sandwich_id Int64,
			block_number UInt64,
			role LowCardinality(String),
			position Int32,
			tx_hash String,
			tx_index UInt64,
			base_in Float64,
			quote_in Float64,
			base_out Float64,
			quote_out Float64,
			gas Float64
		)
		ENGINE = ReplacingMergeTree
		ORDER BY (chain_id, pair_address, block_number, sandwich_id, position)`,
	}
	for _, q := range queries {
		if err := e.conn.Exec(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

type sandwichRow struct {
	ChainID        string  `ch:"chain_id"`
	PairAddress    string  `ch:"pair_address"`
	SandwichID     int64   `ch:"sandwich_id"`
	BlockNumber    uint64  `ch:"block_number"`
	LunchmeatCount uint16  `ch:"lunchmeat_count"`
	FrontrunHash   string  `ch:"frontrun_hash"`
	BackrunHash    string  `ch:"backrun_hash"`
	TotalGas       float64 `ch:"total_gas"`
}

type legRow struct {
	ChainID     string  `ch:"chain_id"`
	PairAddress string  `ch:"pair_address"`
	SandwichID  int64   `ch:"sandwich_id"`
	BlockNumber uint64  `ch:"block_number"`
	Role        string  `ch:"role"`
	Position    int32   `ch:"position"`
	TxHash      string  `ch:"tx_hash"`
	TxIndex     uint64  `ch:"tx_index"`
	BaseIn      float64 `ch:"base_in"`
	QuoteIn     float64 `ch:"quote_in"`
	BaseOut     float64 `ch:"base_out"`
	QuoteOut    float64 `ch:"quote_out"`
	Gas         float64 `ch:"gas"`
}

// ExportSandwiches sends one batch for parents and one for legs.
func (e *Exporter) ExportSandwiches(ctx context.Context, pair model.Pair, sandwiches []model.Sandwich) error {
	if len(sandwiches) == 0 {
		return nil
	}
	parents, legs := buildRows(pair, sandwiches)

	batch, err := e.conn.PrepareBatch(ctx, "INSERT INTO sandwiches")
	if err != nil {
		return fmt.Errorf("prepare sandwiches batch: %w", err)
	}
	for i := range parents {
		if err := batch.AppendStruct(&parents[i]); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append sandwich: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send sandwiches batch: %w", err)
	}

	batch, err = e.conn.PrepareBatch(ctx, "INSERT INTO sandwich_legs")
	if err != nil {
		return fmt.Errorf("prepare legs batch: %w", err)
	}
	for i := range legs {
		if err := batch.AppendStruct(&legs[i]); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append leg: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send legs batch: %w", err)
	}
	return nil
}

func buildRows(pair model.Pair, sandwiches []model.Sandwich) ([]sandwichRow, []legRow) {
	parents := make([]sandwichRow, 0, len(sandwiches))
	var legs []legRow
	for _, sw := range sandwiches {
		parent := sandwichRow{
			ChainID:        pair.ChainID,
			PairAddress:    pair.Address,
			SandwichID:     sw.ID,
			BlockNumber:    sw.BlockNumber,
			LunchmeatCount: uint16(len(sw.Lunchmeat)),
			FrontrunHash:   sw.Frontrun.TxHash,
			BackrunHash:    sw.Backrun.TxHash,
		}
		for _, leg := range sw.Legs() {
			parent.TotalGas += leg.Gas
			legs = append(legs, legRow{
				ChainID:     pair.ChainID,
				PairAddress: pair.Address,
				SandwichID:  sw.ID,
				BlockNumber: sw.BlockNumber,
				Role:        string(leg.Role),
				Position:    int32(leg.Position),
				TxHash:      leg.TxHash,
				TxIndex:     leg.TxIndex,
				BaseIn:      leg.BaseIn,
				QuoteIn:     leg.QuoteIn,
				BaseOut:     leg.BaseOut,
				QuoteOut:    leg.QuoteOut,
				Gas:         leg.Gas,
			})
		}
		parents = append(parents, parent)
	}
	return parents, legs
}
