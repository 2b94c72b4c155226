package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"sandwichScope/internal/model"
)

// Registry is the set of supported chains and their exchanges. It is loaded
// once at startup and read-only afterwards.
type Registry struct {
	chains []Chain
	byID   map[string]int
}

// Chain is one supported blockchain.
type Chain struct {
	ID             string
	Name           string
	RPC            string
	NativeDecimals uint8
	// DataAggregator is empty when pair metadata is read directly.
	DataAggregator string
	Exchanges      []model.Exchange
	// Scan overrides the global scanner params field by field.
	Scan ScanParams
}

type registryFile struct {
	Chains []chainEntry `yaml:"chains"`
}

type chainEntry struct {
	ID             string          `yaml:"id"`
	Name           string          `yaml:"name"`
	RPC            string          `yaml:"rpc"`
	NativeDecimals *uint8          `yaml:"native_decimals"`
	DataAggregator string          `yaml:"data_aggregator"`
	Scan           ScanParams      `yaml:"scan"`
	Exchanges      []exchangeEntry `yaml:"exchanges"`
}

type exchangeEntry struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind"`
	Factory string `yaml:"factory"`
}

// LoadRegistry reads a YAML chain registry. ${VAR} references are expanded
// from the environment before parsing.
func LoadRegistry(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chain registry: %w", err)
	}
	return ParseRegistry(raw)
}

// ParseRegistry parses and validates registry YAML.
func ParseRegistry(raw []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &file); err != nil {
		return nil, fmt.Errorf("parse chain registry: %w", err)
	}
	if len(file.Chains) == 0 {
		return nil, fmt.Errorf("chain registry has no chains")
	}

	reg := &Registry{byID: make(map[string]int, len(file.Chains))}
	for _, entry := range file.Chains {
		chain, err := entry.toChain()
		if err != nil {
			return nil, err
		}
		if _, dup := reg.byID[chain.ID]; dup {
			return nil, fmt.Errorf("duplicate chain id %q", chain.ID)
		}
		reg.byID[chain.ID] = len(reg.chains)
		reg.chains = append(reg.chains, chain)
	}
	return reg, nil
}

func (e chainEntry) toChain() (Chain, error) {
	id := strings.ToLower(strings.TrimSpace(e.ID))
	if id == "" {
		return Chain{}, fmt.Errorf("chain without id")
	}
	if strings.TrimSpace(e.RPC) == "" {
		return Chain{}, fmt.Errorf("chain %s: rpc is required", id)
	}

	chain := Chain{
		ID:             id,
		Name:           e.Name,
		RPC:            strings.TrimSpace(e.RPC),
		NativeDecimals: 18,
		Scan:           e.Scan,
	}
	if chain.Name == "" {
		chain.Name = id
	}
	if e.NativeDecimals != nil {
		chain.NativeDecimals = *e.NativeDecimals
	}
	if aggregator := strings.TrimSpace(e.DataAggregator); aggregator != "" {
		if !common.IsHexAddress(aggregator) {
			return Chain{}, fmt.Errorf("chain %s: invalid data_aggregator %q", id, aggregator)
		}
		chain.DataAggregator = strings.ToLower(aggregator)
	}

	factories := make(map[string]struct{}, len(e.Exchanges))
	for _, ex := range e.Exchanges {
		kind, err := model.ParseExchangeKind(ex.Kind)
		if err != nil {
			return Chain{}, fmt.Errorf("chain %s exchange %s: %w", id, ex.ID, err)
		}
		if !common.IsHexAddress(ex.Factory) {
			return Chain{}, fmt.Errorf("chain %s exchange %s: invalid factory %q", id, ex.ID, ex.Factory)
		}
		factory := strings.ToLower(strings.TrimSpace(ex.Factory))
		if _, dup := factories[factory]; dup {
			return Chain{}, fmt.Errorf("chain %s: duplicate factory %s", id, factory)
		}
		factories[factory] = struct{}{}

		name := ex.Name
		if name == "" {
			name = ex.ID
		}
		chain.Exchanges = append(chain.Exchanges, model.Exchange{
			ID:      strings.ToLower(ex.ID),
			Name:    name,
			Kind:    kind,
			Factory: factory,
		})
	}
	return chain, nil
}

// Chain looks a chain up by id, case-insensitively.
func (r *Registry) Chain(id string) (Chain, bool) {
	idx, ok := r.byID[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return Chain{}, false
	}
	return r.chains[idx], true
}

// Chains returns the chains in file order.
func (r *Registry) Chains() []Chain {
	return append([]Chain(nil), r.chains...)
}

// ExchangeByFactory finds the exchange deployed by a factory address.
func (c Chain) ExchangeByFactory(factory string) (model.Exchange, bool) {
	factory = strings.ToLower(factory)
	for _, ex := range c.Exchanges {
		if ex.Factory == factory {
			return ex, true
		}
	}
	return model.Exchange{}, false
}

// AggregatorAddress returns the DataAggregator contract, or nil when unset.
func (c Chain) AggregatorAddress() *common.Address {
	if c.DataAggregator == "" {
		return nil
	}
	address := common.HexToAddress(c.DataAggregator)
	return &address
}

// ScanParams merges the chain's overrides onto base.
func (c Chain) ScanParams(base ScanParams) ScanParams {
	if c.Scan.InitialChunkSize > 0 {
		base.InitialChunkSize = c.Scan.InitialChunkSize
	}
	if c.Scan.MaxChunkSize > 0 {
		base.MaxChunkSize = c.Scan.MaxChunkSize
	}
	if c.Scan.TargetEventsPerChunk > 0 {
		base.TargetEventsPerChunk = c.Scan.TargetEventsPerChunk
	}
	if c.Scan.MaxWindow > 0 {
		base.MaxWindow = c.Scan.MaxWindow
	}
	return base
}
