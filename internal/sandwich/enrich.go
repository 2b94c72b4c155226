package sandwich

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sandwichScope/internal/model"
	"sandwichScope/internal/swap"
)

// TxFetcher loads transactions and receipts by hash.
type TxFetcher interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Enricher turns a Match into a storable Sandwich by fetching every leg's
// transaction and receipt concurrently.
type Enricher struct {
	fetcher        TxFetcher
	nativeDecimals uint8
	logger         *zap.Logger
}

func NewEnricher(fetcher TxFetcher, nativeDecimals uint8, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{fetcher: fetcher, nativeDecimals: nativeDecimals, logger: logger}
}

// Enrich fetches 2k chain objects for a k-leg match. Any missing object or
// provider failure fails the whole sandwich.
func (e *Enricher) Enrich(ctx context.Context, pairID int64, m Match) (model.Sandwich, error) {
	legs := m.Swaps()
	txs := make([]*types.Transaction, len(legs))
	receipts := make([]*types.Receipt, len(legs))

	g, gctx := errgroup.WithContext(ctx)
	for i, leg := range legs {
		hash := leg.TxHash
		g.Go(func() error {
			tx, err := e.fetcher.TransactionByHash(gctx, hash)
			if err != nil {
				return fetchError("transaction", hash, err)
			}
			if tx == nil {
				return fmt.Errorf("%w: transaction %s", model.ErrNotFound, hash.Hex())
			}
			txs[i] = tx
			return nil
		})
		g.Go(func() error {
			receipt, err := e.fetcher.TransactionReceipt(gctx, hash)
			if err != nil {
				return fetchError("receipt", hash, err)
			}
			if receipt == nil {
				return fmt.Errorf("%w: receipt %s", model.ErrNotFound, hash.Hex())
			}
			receipts[i] = receipt
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.Sandwich{}, err
	}

	out := model.Sandwich{
		PairID:      pairID,
		BlockNumber: m.BlockNumber,
		Lunchmeat:   make([]model.TransactionLeg, 0, len(m.Lunchmeat)),
	}
	for i, leg := range legs {
		role := model.RoleLunchmeat
		switch i {
		case 0:
			role = model.RoleFrontrun
		case len(legs) - 1:
			role = model.RoleBackrun
		}
		built := buildLeg(leg, role, i, GasCost(txs[i], receipts[i], e.nativeDecimals))
		switch role {
		case model.RoleFrontrun:
			out.Frontrun = built
		case model.RoleBackrun:
			out.Backrun = built
		default:
			out.Lunchmeat = append(out.Lunchmeat, built)
		}
	}

	e.logger.Debug("sandwich enriched",
		zap.Uint64("block", m.BlockNumber),
		zap.String("frontrun", out.Frontrun.TxHash),
		zap.Int("lunchmeat", len(out.Lunchmeat)),
	)
	return out, nil
}

func buildLeg(s swap.Swap, role model.LegRole, position int, gas float64) model.TransactionLeg {
	return model.TransactionLeg{
		Role:     role,
		Position: position,
		TxHash:   s.TxHash.Hex(),
		TxIndex:  uint64(s.TxIndex),
		BaseIn:   s.BaseIn(),
		QuoteIn:  s.QuoteIn(),
		BaseOut:  s.BaseOut(),
		QuoteOut: s.QuoteOut(),
		Gas:      gas,
	}
}

// GasCost is effective gas price times gas used, in native-token units. The
// receipt's effective price wins over the transaction's gas price; a missing
// price or zero gas used yields 0.
func GasCost(tx *types.Transaction, receipt *types.Receipt, nativeDecimals uint8) float64 {
	if receipt == nil || receipt.GasUsed == 0 {
		return 0
	}
	price := receipt.EffectiveGasPrice
	if (price == nil || price.Sign() == 0) && tx != nil {
		price = tx.GasPrice()
	}
	if price == nil || price.Sign() == 0 {
		return 0
	}
	wei := new(big.Int).Mul(price, new(big.Int).SetUint64(receipt.GasUsed))
	cost, _ := decimal.NewFromBigInt(wei, -int32(nativeDecimals)).Float64()
	return cost
}

func fetchError(kind string, hash common.Hash, err error) error {
	switch {
	case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrProvider):
		return fmt.Errorf("%s %s: %w", kind, hash.Hex(), err)
	case errors.Is(err, ethereum.NotFound):
		return fmt.Errorf("%w: %s %s", model.ErrNotFound, kind, hash.Hex())
	default:
		return fmt.Errorf("%w: %s %s: %v", model.ErrProvider, kind, hash.Hex(), err)
	}
}
