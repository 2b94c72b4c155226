package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sandwichScope/internal/model"
)

const sampleRegistry = `
chains:
  - id: Ethereum
    name: Ethereum
    rpc: ${TEST_ETHEREUM_URL}
    data_aggregator: "0x9999999999999999999999999999999999999999"
    scan:
      max_window: 5000
    exchanges:
      - id: uniswapv2
        name: Uniswap V2
        kind: v2
        factory: "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"
      - id: uniswapv3
        name: Uniswap V3
        kind: V3
        factory: "0x1F98431c8aD98523631AE4a59f267346ea31F984"
  - id: moonriver
    name: Moonriver
    rpc: https://rpc.api.moonriver.moonbeam.network
    native_decimals: 18
    exchanges:
      - id: solarbeam
        kind: v2
        factory: "0x049581aEB6Fe262727f290165C29BDAB065a1B68"
`

func TestParseRegistry(t *testing.T) {
	t.Setenv("TEST_ETHEREUM_URL", "https://eth.example.org")

	reg, err := ParseRegistry([]byte(sampleRegistry))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	eth, ok := reg.Chain("ETHEREUM")
	if !ok {
		t.Fatalf("ethereum not found")
	}
	if eth.RPC != "https://eth.example.org" {
		t.Fatalf("rpc not expanded: %q", eth.RPC)
	}
	if eth.NativeDecimals != 18 {
		t.Fatalf("native decimals default: %d", eth.NativeDecimals)
	}
	if eth.AggregatorAddress() == nil {
		t.Fatalf("aggregator missing")
	}

	ex, ok := eth.ExchangeByFactory("0x1f98431c8ad98523631ae4a59f267346ea31f984")
	if !ok || ex.Kind != model.ExchangeV3 || ex.Name != "Uniswap V3" {
		t.Fatalf("exchange lookup mismatch: %+v ok=%v", ex, ok)
	}

	params := eth.ScanParams(ScanParams{InitialChunkSize: 100, MaxChunkSize: 2000, TargetEventsPerChunk: 300, MaxWindow: 10000})
	if params.MaxWindow != 5000 || params.MaxChunkSize != 2000 {
		t.Fatalf("override mismatch: %+v", params)
	}

	moon, ok := reg.Chain("moonriver")
	if !ok {
		t.Fatalf("moonriver not found")
	}
	if moon.AggregatorAddress() != nil {
		t.Fatalf("expected no aggregator")
	}
	if moon.Exchanges[0].Name != "solarbeam" {
		t.Fatalf("exchange name fallback: %q", moon.Exchanges[0].Name)
	}
	if len(reg.Chains()) != 2 {
		t.Fatalf("expected 2 chains")
	}
	if _, ok := reg.Chain("polygon"); ok {
		t.Fatalf("unexpected chain")
	}
}

func TestParseRegistryRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty", "chains: []"},
		{"missing rpc", "chains:\n  - id: eth\n"},
		{"duplicate", "chains:\n  - id: eth\n    rpc: http://a\n  - id: ETH\n    rpc: http://b\n"},
		{"bad kind", "chains:\n  - id: eth\n    rpc: http://a\n    exchanges:\n      - id: x\n        kind: v4\n        factory: \"0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f\"\n"},
		{"bad factory", "chains:\n  - id: eth\n    rpc: http://a\n    exchanges:\n      - id: x\n        kind: v2\n        factory: nope\n"},
		{"bad aggregator", "chains:\n  - id: eth\n    rpc: http://a\n    data_aggregator: 0x12\n"},
	}
	for _, tc := range cases {
		if _, err := ParseRegistry([]byte(tc.raw)); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestLoadRegistryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chains.yaml")
	raw := strings.ReplaceAll(sampleRegistry, "${TEST_ETHEREUM_URL}", "http://localhost:8545")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if eth, _ := reg.Chain("ethereum"); eth.RPC != "http://localhost:8545" {
		t.Fatalf("rpc mismatch: %q", eth.RPC)
	}
}
