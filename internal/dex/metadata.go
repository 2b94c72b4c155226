package dex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"sandwichScope/internal/model"
)

// ContractCaller executes read-only contract calls.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// errEmptyResult is returned when a call lands on an address without code.
var errEmptyResult = errors.New("empty call result")

// FetchPairMetadata resolves a pair's factory and both tokens. When aggregator
// is set the DataAggregator contract answers in a single call; otherwise the
// pair and token contracts are queried directly.
func FetchPairMetadata(ctx context.Context, caller ContractCaller, pair common.Address, aggregator *common.Address, logger *zap.Logger) (model.PairMeta, error) {
	if caller == nil {
		return model.PairMeta{}, fmt.Errorf("contract caller is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if aggregator != nil {
		return fetchFromAggregator(ctx, caller, pair, *aggregator)
	}
	return fetchFromPair(ctx, caller, pair, logger)
}

func fetchFromAggregator(ctx context.Context, caller ContractCaller, pair, aggregator common.Address) (model.PairMeta, error) {
	parsed, err := DataAggregatorABI()
	if err != nil {
		return model.PairMeta{}, fmt.Errorf("parse data aggregator abi: %w", err)
	}
	values, err := callMethod(ctx, caller, aggregator, parsed, "getMetadata", pair)
	if err != nil {
		return model.PairMeta{}, classifyCallError(pair, err)
	}
	if len(values) != 9 {
		return model.PairMeta{}, fmt.Errorf("%w: unexpected metadata values: %d", model.ErrParse, len(values))
	}

	factory, err := asAddress(values[0])
	if err != nil {
		return model.PairMeta{}, fmt.Errorf("%w: factory: %v", model.ErrParse, err)
	}
	base, err := tokenFromValues(values[1:5])
	if err != nil {
		return model.PairMeta{}, fmt.Errorf("%w: base: %v", model.ErrParse, err)
	}
	quote, err := tokenFromValues(values[5:9])
	if err != nil {
		return model.PairMeta{}, fmt.Errorf("%w: quote: %v", model.ErrParse, err)
	}
	return model.PairMeta{Factory: hexAddress(factory), Base: base, Quote: quote}, nil
}

// tokenFromValues reads (address, name, symbol, decimals).
func tokenFromValues(values []interface{}) (model.TokenMeta, error) {
	address, err := asAddress(values[0])
	if err != nil {
		return model.TokenMeta{}, err
	}
	name, _ := values[1].(string)
	symbol, _ := values[2].(string)
	decimals, err := asUint8(values[3])
	if err != nil {
		return model.TokenMeta{}, err
	}
	return model.TokenMeta{
		Address:  hexAddress(address),
		Name:     name,
		Symbol:   symbol,
		Decimals: decimals,
	}, nil
}

func fetchFromPair(ctx context.Context, caller ContractCaller, pair common.Address, logger *zap.Logger) (model.PairMeta, error) {
	parsed, err := PairViewABI()
	if err != nil {
		return model.PairMeta{}, fmt.Errorf("parse pair abi: %w", err)
	}

	addresses := make(map[string]common.Address, 3)
	for _, method := range []string{"factory", "token0", "token1"} {
		values, err := callMethod(ctx, caller, pair, parsed, method)
		if err != nil {
			return model.PairMeta{}, classifyCallError(pair, err)
		}
		address, err := asAddress(values[0])
		if err != nil {
			return model.PairMeta{}, fmt.Errorf("%w: %s: %v", model.ErrParse, method, err)
		}
		addresses[method] = address
	}

	base, err := FetchTokenMeta(ctx, caller, addresses["token0"], logger)
	if err != nil {
		return model.PairMeta{}, fmt.Errorf("token0 metadata: %w", err)
	}
	quote, err := FetchTokenMeta(ctx, caller, addresses["token1"], logger)
	if err != nil {
		return model.PairMeta{}, fmt.Errorf("token1 metadata: %w", err)
	}
	return model.PairMeta{Factory: hexAddress(addresses["factory"]), Base: base, Quote: quote}, nil
}

// FetchTokenMeta loads token metadata via ERC20 calls. Decimals are required;
// name and symbol fall back to bytes32 encodings and are left empty otherwise.
func FetchTokenMeta(ctx context.Context, caller ContractCaller, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: hexAddress(token)}

	stringABI, err := erc20StringABI.get()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := erc20Bytes32ABI.get()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	values, err := callMethod(ctx, caller, token, stringABI, "decimals")
	if err != nil {
		return meta, classifyCallError(token, err)
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return meta, fmt.Errorf("%w: decimals: %v", model.ErrParse, err)
	}
	meta.Decimals = decimals

	meta.Symbol = readText(ctx, caller, token, "symbol", stringABI, bytes32ABI, logger)
	meta.Name = readText(ctx, caller, token, "name", stringABI, bytes32ABI, logger)
	return meta, nil
}

func readText(ctx context.Context, caller ContractCaller, token common.Address, method string, stringABI, bytes32ABI abi.ABI, logger *zap.Logger) string {
	if values, err := callMethod(ctx, caller, token, stringABI, method); err == nil {
		if text, ok := values[0].(string); ok {
			return text
		}
	}
	values, err := callMethod(ctx, caller, token, bytes32ABI, method)
	if err == nil {
		if text, ok := bytes32ToString(values[0]); ok {
			return text
		}
	}
	logger.Debug("token text call failed", zap.String("token", token.Hex()), zap.String("method", method), zap.Error(err))
	return ""
}

func callMethod(ctx context.Context, caller ContractCaller, to common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	resp, err := caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	if len(resp) == 0 {
		return nil, fmt.Errorf("call %s: %w", method, errEmptyResult)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: %w", method, errEmptyResult)
	}
	return values, nil
}

// classifyCallError keeps provider failures as they are and treats anything
// else (empty or undecodable results) as a missing pair.
func classifyCallError(address common.Address, err error) error {
	if errors.Is(err, model.ErrProvider) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", model.ErrPairNotFound, hexAddress(address), err)
}

func hexAddress(address common.Address) string {
	return strings.ToLower(address.Hex())
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, fmt.Errorf("uint8 overflow: %s", v.String())
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
