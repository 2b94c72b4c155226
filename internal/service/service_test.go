package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"sandwichScope/internal/config"
	"sandwichScope/internal/dex"
	"sandwichScope/internal/model"
	"sandwichScope/internal/scanner"
	"sandwichScope/internal/storage"
	"sandwichScope/internal/storage/memory"
)

const registryYAML = `
chains:
  - id: ethereum
    name: Ethereum
    rpc: http://localhost:8545
    data_aggregator: "0x9999999999999999999999999999999999999999"
    exchanges:
      - id: uniswap-v2
        name: Uniswap V2
        kind: v2
        factory: "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"
`

var (
	testPair       = common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc")
	testFactory    = common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	otherFactory   = common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	testToken0     = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	testToken1     = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	testAggregator = common.HexToAddress("0x9999999999999999999999999999999999999999")
)

// fakeClient is a single in-memory chain: aggregator metadata, V2 swap logs,
// and a transaction plus receipt for every log.
type fakeClient struct {
	mu       sync.Mutex
	latest   uint64
	metadata []byte
	logs     []types.Log
	calls    int
	callErr  error
}

func (f *fakeClient) LatestBlockNumber(context.Context) (uint64, error) {
	return f.latest, nil
}

func (f *fakeClient) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.callErr != nil {
		return nil, f.callErr
	}
	if *msg.To != testAggregator {
		return nil, nil
	}
	return f.metadata, nil
}

func (f *fakeClient) FilterLogs(_ context.Context, from, to uint64, addresses []common.Address, _ []common.Hash) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Log
	for _, log := range f.logs {
		if log.BlockNumber >= from && log.BlockNumber <= to && log.Address == addresses[0] {
			out = append(out, log)
		}
	}
	return out, nil
}

func (f *fakeClient) TransactionByHash(context.Context, common.Hash) (*types.Transaction, error) {
	return types.NewTx(&types.LegacyTx{GasPrice: big.NewInt(1_000_000_000)}), nil
}

func (f *fakeClient) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	return &types.Receipt{TxHash: hash, GasUsed: 21000}, nil
}

func (f *fakeClient) setMetadata(t *testing.T, factory common.Address) {
	t.Helper()
	parsed, err := dex.DataAggregatorABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	packed, err := parsed.Methods["getMetadata"].Outputs.Pack(
		factory, testToken0, "USD Coin", "USDC", uint8(6),
		testToken1, "Wrapped Ether", "WETH", uint8(18),
	)
	if err != nil {
		t.Fatalf("pack metadata: %v", err)
	}
	f.metadata = packed
}

func (f *fakeClient) addSwap(t *testing.T, block uint64, txIndex uint, in0, in1, out0, out1 int64) {
	t.Helper()
	parsed, err := dex.V2PairABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	event := parsed.Events["Swap"]
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(in0), big.NewInt(in1), big.NewInt(out0), big.NewInt(out1))
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}
	f.logs = append(f.logs, types.Log{
		Address:     testPair,
		Topics:      []common.Hash{event.ID, {}, {}},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.BigToHash(new(big.Int).SetUint64(block*1000 + uint64(txIndex))),
		TxIndex:     txIndex,
	})
}

func (f *fakeClient) addSandwich(t *testing.T, block uint64) {
	f.addSwap(t, block, 0, 1000, 0, 0, 3000)
	f.addSwap(t, block, 1, 500, 0, 0, 1400)
	f.addSwap(t, block, 2, 0, 3000, 999, 0)
}

func newTestService(t *testing.T, client *fakeClient) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return newTestServiceWithStore(t, client, store), store
}

func newTestServiceWithStore(t *testing.T, client *fakeClient, store storage.Store) *Service {
	t.Helper()
	registry, err := config.ParseRegistry([]byte(registryYAML))
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	params := config.ScanParams{InitialChunkSize: 100, MaxChunkSize: 400, TargetEventsPerChunk: 3, MaxWindow: 300}
	svc, err := New(registry, map[string]ChainClient{"ethereum": client}, store, params, scanner.NewJobs(zap.NewNop()), zap.NewNop())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func uint64Ptr(v uint64) *uint64 { return &v }

func TestPairRegistersFromChainOnce(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{}
	client.setMetadata(t, testFactory)
	svc, _ := newTestService(t, client)

	info, err := svc.Pair(ctx, "Ethereum", testPair.Hex())
	if err != nil {
		t.Fatalf("pair: %v", err)
	}
	if info.Pair.Address != "0xb4e16d0168e52d35cacd2c6185b44281ec28c9dc" {
		t.Fatalf("address not normalized: %s", info.Pair.Address)
	}
	if info.Base.Symbol != "USDC" || info.Quote.Symbol != "WETH" || info.Exchange.Name != "Uniswap V2" {
		t.Fatalf("unexpected pair info: %+v", info)
	}

	again, err := svc.Pair(ctx, "ethereum", "0xb4e16d0168e52d35cacd2c6185b44281ec28c9dc")
	if err != nil {
		t.Fatalf("pair again: %v", err)
	}
	if again.Pair.ID != info.Pair.ID || again.Base.ID != info.Base.ID {
		t.Fatalf("second lookup returned different rows: %+v vs %+v", again, info)
	}
	if client.calls != 1 {
		t.Fatalf("expected one metadata call, got %d", client.calls)
	}
}

// countingInserts records token inserts on top of the memory store.
type countingInserts struct {
	*memory.Store
	inserted []string
}

func (c *countingInserts) InsertToken(ctx context.Context, token model.Token) (model.Token, error) {
	c.inserted = append(c.inserted, token.Address)
	return c.Store.InsertToken(ctx, token)
}

func TestPairReusesStoredTokens(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{}
	client.setMetadata(t, testFactory)

	store := &countingInserts{Store: memory.NewStore()}
	usdc, err := store.Store.InsertToken(ctx, model.Token{
		Name:     "USD Coin",
		Symbol:   "USDC",
		Decimals: 6,
		ChainID:  "ethereum",
		Address:  "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
	})
	if err != nil {
		t.Fatalf("seed token: %v", err)
	}
	svc := newTestServiceWithStore(t, client, store)

	info, err := svc.Pair(ctx, "ethereum", testPair.Hex())
	if err != nil {
		t.Fatalf("pair: %v", err)
	}
	if info.Base.ID != usdc.ID || info.Pair.BaseTokenID != usdc.ID {
		t.Fatalf("stored base token not reused: %+v", info)
	}
	want := []string{"0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"}
	if !reflect.DeepEqual(store.inserted, want) {
		t.Fatalf("unexpected token inserts: %v", store.inserted)
	}
}

func TestPairErrors(t *testing.T) {
	ctx := context.Background()

	client := &fakeClient{}
	client.setMetadata(t, testFactory)
	svc, _ := newTestService(t, client)
	if _, err := svc.Pair(ctx, "solana", testPair.Hex()); !errors.Is(err, model.ErrUnsupportedChain) {
		t.Fatalf("expected unsupported chain, got %v", err)
	}
	if _, err := svc.Pair(ctx, "ethereum", "not-an-address"); !errors.Is(err, model.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}

	unknown := &fakeClient{}
	unknown.setMetadata(t, otherFactory)
	svc, store := newTestService(t, unknown)
	if _, err := svc.Pair(ctx, "ethereum", testPair.Hex()); !errors.Is(err, model.ErrUnsupportedExchange) {
		t.Fatalf("expected unsupported exchange, got %v", err)
	}
	if _, err := store.TokenByAddress(ctx, "ethereum", "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"); err == nil {
		t.Fatalf("tokens of an unsupported pair must not be stored")
	}

	missing := &fakeClient{}
	svc, _ = newTestService(t, missing)
	if _, err := svc.Pair(ctx, "ethereum", testPair.Hex()); !errors.Is(err, model.ErrPairNotFound) {
		t.Fatalf("expected pair not found, got %v", err)
	}

	down := &fakeClient{callErr: fmt.Errorf("%w: eth_call: timeout", model.ErrProvider)}
	svc, _ = newTestService(t, down)
	if _, err := svc.Pair(ctx, "ethereum", testPair.Hex()); !errors.Is(err, model.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestSandwichesStartsJobThenServesRange(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{}
	client.setMetadata(t, testFactory)
	client.addSandwich(t, 950)
	client.addSandwich(t, 750)
	client.addSandwich(t, 650) // below the window
	svc, _ := newTestService(t, client)

	first, err := svc.Sandwiches(ctx, "ethereum", testPair.Hex(), uint64Ptr(999))
	if err != nil {
		t.Fatalf("first query: %v", err)
	}
	if first.Status != StatusStarted || first.JobID == "" || len(first.Sandwiches) != 0 {
		t.Fatalf("expected a started job, got %+v", first)
	}
	if first.Range.LowerBound != 700 || first.Range.UpperBound != 999 {
		t.Fatalf("unexpected range: %+v", first.Range)
	}
	svc.Jobs().Wait()

	second, err := svc.Sandwiches(ctx, "ethereum", testPair.Hex(), uint64Ptr(999))
	if err != nil {
		t.Fatalf("second query: %v", err)
	}
	if second.Status != StatusComplete || second.JobID != "" {
		t.Fatalf("expected a complete range, got %+v", second)
	}
	if second.From != 700 || second.To != 999 {
		t.Fatalf("unexpected bounds: %d..%d", second.From, second.To)
	}
	if len(second.Sandwiches) != 2 || second.Sandwiches[0].BlockNumber != 950 || second.Sandwiches[1].BlockNumber != 750 {
		t.Fatalf("unexpected sandwiches: %+v", second.Sandwiches)
	}

	third, err := svc.Sandwiches(ctx, "ethereum", testPair.Hex(), uint64Ptr(999))
	if err != nil {
		t.Fatalf("third query: %v", err)
	}
	if len(third.Sandwiches) != 2 {
		t.Fatalf("repeated query duplicated sandwiches: %d", len(third.Sandwiches))
	}

	inner, err := svc.Sandwiches(ctx, "ethereum", testPair.Hex(), uint64Ptr(800))
	if err != nil {
		t.Fatalf("inner query: %v", err)
	}
	if inner.From != 700 || inner.To != 800 || inner.Status != StatusComplete {
		t.Fatalf("unexpected inner window: %+v", inner)
	}
	if len(inner.Sandwiches) != 1 || inner.Sandwiches[0].BlockNumber != 750 {
		t.Fatalf("unexpected inner sandwiches: %+v", inner.Sandwiches)
	}
	sw := inner.Sandwiches[0]
	if len(sw.Lunchmeat) != 1 || sw.Frontrun.TxIndex != 0 || sw.Backrun.TxIndex != 2 {
		t.Fatalf("unexpected legs: %+v", sw)
	}
}

func TestScanRunsInForegroundFromLatestBlock(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{latest: 2000}
	client.setMetadata(t, testFactory)
	client.addSandwich(t, 1990)
	svc, store := newTestService(t, client)

	result, err := svc.Scan(ctx, "ethereum", testPair.Hex(), nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if result.Status != StatusComplete || result.To != 2000 || result.From != 1701 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.Sandwiches) != 1 {
		t.Fatalf("expected one sandwich, got %d", len(result.Sandwiches))
	}
	ranges := store.Ranges(result.Pair.Pair.ID)
	if len(ranges) != 1 || !ranges[0].Complete {
		t.Fatalf("unexpected ranges: %+v", ranges)
	}
}

func TestSandwichesRejectsOverflow(t *testing.T) {
	client := &fakeClient{}
	client.setMetadata(t, testFactory)
	svc, _ := newTestService(t, client)

	_, err := svc.Sandwiches(context.Background(), "ethereum", testPair.Hex(), uint64Ptr(math.MaxUint64))
	if !errors.Is(err, model.ErrNumericOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

type recordingExporter struct {
	pair       model.Pair
	sandwiches []model.Sandwich
}

func (r *recordingExporter) ExportSandwiches(_ context.Context, pair model.Pair, sandwiches []model.Sandwich) error {
	r.pair = pair
	r.sandwiches = append(r.sandwiches, sandwiches...)
	return nil
}

func (r *recordingExporter) Close() error { return nil }

func TestExport(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{}
	client.setMetadata(t, testFactory)
	client.addSandwich(t, 950)
	client.addSandwich(t, 750)
	svc, _ := newTestService(t, client)

	if _, err := svc.Scan(ctx, "ethereum", testPair.Hex(), uint64Ptr(999)); err != nil {
		t.Fatalf("scan: %v", err)
	}
	exp := &recordingExporter{}
	n, err := svc.Export(ctx, "ethereum", testPair.Hex(), 900, 999, exp)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if n != 1 || len(exp.sandwiches) != 1 || exp.sandwiches[0].BlockNumber != 950 {
		t.Fatalf("unexpected export: n=%d %+v", n, exp.sandwiches)
	}
	if _, err := svc.Export(ctx, "ethereum", testPair.Hex(), 10, 5, exp); !errors.Is(err, model.ErrParse) {
		t.Fatalf("expected parse error for inverted bounds, got %v", err)
	}
}

func TestUserMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("x: %w", model.ErrUnsupportedChain), "blockchain not supported"},
		{fmt.Errorf("x: %w", model.ErrUnsupportedExchange), "exchange not supported"},
		{fmt.Errorf("x: %w", model.ErrPairNotFound), "pair does not exist"},
		{fmt.Errorf("x: %w", model.ErrParse), "invalid request"},
		{fmt.Errorf("x: %w", model.ErrNumericOverflow), "numeric overflow"},
		{fmt.Errorf("x: %w", model.ErrPersistence), "database error"},
		{fmt.Errorf("x: %w", model.ErrProvider), "provider error"},
		{errors.New("dial tcp 10.0.0.1:5432: secret detail"), "provider error"},
		{nil, ""},
	}
	for _, tc := range cases {
		if got := UserMessage(tc.err); got != tc.want {
			t.Fatalf("UserMessage(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
