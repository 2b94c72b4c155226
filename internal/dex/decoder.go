package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"sandwichScope/internal/model"
	"sandwichScope/internal/swap"
)

// SwapDecoder turns one exchange family's Swap log into a canonical event.
type SwapDecoder interface {
	// Topic0 is the Swap event signature hash used to filter logs.
	Topic0() common.Hash
	Decode(log types.Log) (swap.Event, error)
}

// NewSwapDecoder returns the decoder for an exchange kind.
func NewSwapDecoder(kind model.ExchangeKind) (SwapDecoder, error) {
	switch kind {
	case model.ExchangeV2:
		parsed, err := V2PairABI()
		if err != nil {
			return nil, fmt.Errorf("parse v2 pair abi: %w", err)
		}
		return &V2SwapDecoder{event: parsed.Events["Swap"]}, nil
	case model.ExchangeV3:
		parsed, err := V3PoolABI()
		if err != nil {
			return nil, fmt.Errorf("parse v3 pool abi: %w", err)
		}
		return &V3SwapDecoder{event: parsed.Events["Swap"]}, nil
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnsupportedExchange, kind)
	}
}

// V2SwapDecoder decodes Uniswap V2 style pair Swap events.
type V2SwapDecoder struct {
	event abi.Event
}

func (d *V2SwapDecoder) Topic0() common.Hash { return d.event.ID }

func (d *V2SwapDecoder) Decode(log types.Log) (swap.Event, error) {
	values, err := unpackSwap(d.event, log)
	if err != nil {
		return swap.Event{}, err
	}
	if len(values) != 4 {
		return swap.Event{}, fmt.Errorf("%w: unexpected v2 swap values: %d", model.ErrParse, len(values))
	}

	amounts := make([]*big.Int, len(values))
	for i, value := range values {
		amounts[i], err = asBigInt(value)
		if err != nil {
			return swap.Event{}, fmt.Errorf("%w: %v", model.ErrParse, err)
		}
	}
	return swap.FromV2(metaFromLog(log), swap.V2Amounts{
		In0:  amounts[0],
		In1:  amounts[1],
		Out0: amounts[2],
		Out1: amounts[3],
	})
}

// V3SwapDecoder decodes Uniswap V3 style pool Swap events.
type V3SwapDecoder struct {
	event abi.Event
}

func (d *V3SwapDecoder) Topic0() common.Hash { return d.event.ID }

func (d *V3SwapDecoder) Decode(log types.Log) (swap.Event, error) {
	values, err := unpackSwap(d.event, log)
	if err != nil {
		return swap.Event{}, err
	}
	if len(values) != 5 {
		return swap.Event{}, fmt.Errorf("%w: unexpected v3 swap values: %d", model.ErrParse, len(values))
	}

	amount0, err := asBigInt(values[0])
	if err != nil {
		return swap.Event{}, fmt.Errorf("%w: amount0: %v", model.ErrParse, err)
	}
	amount1, err := asBigInt(values[1])
	if err != nil {
		return swap.Event{}, fmt.Errorf("%w: amount1: %v", model.ErrParse, err)
	}
	return swap.FromV3(metaFromLog(log), swap.V3Amounts{Amount0: amount0, Amount1: amount1})
}

func unpackSwap(event abi.Event, log types.Log) ([]interface{}, error) {
	if len(log.Topics) == 0 || log.Topics[0] != event.ID {
		return nil, fmt.Errorf("%w: log is not a %s event", model.ErrParse, event.Sig)
	}
	if want := len(indexedArguments(event.Inputs)) + 1; len(log.Topics) != want {
		return nil, fmt.Errorf("%w: expected %d topics, got %d", model.ErrParse, want, len(log.Topics))
	}
	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack %s: %v", model.ErrParse, event.Name, err)
	}
	return values, nil
}

func metaFromLog(log types.Log) swap.Meta {
	return swap.Meta{
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		TxIndex:     log.TxIndex,
	}
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}
