package dex

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const v2PairABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "sender", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount0In", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amount1In", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amount0Out", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amount1Out", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "to", "type": "address"}
    ],
    "name": "Swap",
    "type": "event"
  }
]`

const v3PoolABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "sender", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "recipient", "type": "address"},
      {"indexed": false, "internalType": "int256", "name": "amount0", "type": "int256"},
      {"indexed": false, "internalType": "int256", "name": "amount1", "type": "int256"},
      {"indexed": false, "internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
      {"indexed": false, "internalType": "uint128", "name": "liquidity", "type": "uint128"},
      {"indexed": false, "internalType": "int24", "name": "tick", "type": "int24"}
    ],
    "name": "Swap",
    "type": "event"
  }
]`

// Shared by V2 pairs and V3 pools.
const pairViewABIJSON = `[
  {"inputs": [], "name": "factory", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "token0", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "token1", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"}
]`

const erc20StringABIJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"}
]`

// Some early tokens (MKR, SAI) return bytes32 for name and symbol.
const erc20Bytes32ABIJSON = `[
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`

// The DataAggregator helper contract resolves a pair and both tokens in one call.
const dataAggregatorABIJSON = `[
  {
    "inputs": [{"internalType": "address", "name": "pair", "type": "address"}],
    "name": "getMetadata",
    "outputs": [
      {"internalType": "address", "name": "factory", "type": "address"},
      {"internalType": "address", "name": "baseAddress", "type": "address"},
      {"internalType": "string", "name": "baseName", "type": "string"},
      {"internalType": "string", "name": "baseSymbol", "type": "string"},
      {"internalType": "uint8", "name": "baseDecimals", "type": "uint8"},
      {"internalType": "address", "name": "quoteAddress", "type": "address"},
      {"internalType": "string", "name": "quoteName", "type": "string"},
      {"internalType": "string", "name": "quoteSymbol", "type": "string"},
      {"internalType": "uint8", "name": "quoteDecimals", "type": "uint8"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

type lazyABI struct {
	source string
	once   sync.Once
	parsed abi.ABI
	err    error
}

func (l *lazyABI) get() (abi.ABI, error) {
	l.once.Do(func() {
		l.parsed, l.err = abi.JSON(strings.NewReader(l.source))
	})
	return l.parsed, l.err
}

var (
	v2PairABI         = &lazyABI{source: v2PairABIJSON}
	v3PoolABI         = &lazyABI{source: v3PoolABIJSON}
	pairViewABI       = &lazyABI{source: pairViewABIJSON}
	erc20StringABI    = &lazyABI{source: erc20StringABIJSON}
	erc20Bytes32ABI   = &lazyABI{source: erc20Bytes32ABIJSON}
	dataAggregatorABI = &lazyABI{source: dataAggregatorABIJSON}
)

// V2PairABI returns the parsed V2 pair Swap ABI.
func V2PairABI() (abi.ABI, error) { return v2PairABI.get() }

// V3PoolABI returns the parsed V3 pool Swap ABI.
func V3PoolABI() (abi.ABI, error) { return v3PoolABI.get() }

// DataAggregatorABI returns the parsed DataAggregator ABI.
func DataAggregatorABI() (abi.ABI, error) { return dataAggregatorABI.get() }

// PairViewABI returns the factory/token0/token1 view ABI.
func PairViewABI() (abi.ABI, error) { return pairViewABI.get() }

// ERC20ABI returns the string-returning ERC20 metadata ABI.
func ERC20ABI() (abi.ABI, error) { return erc20StringABI.get() }
