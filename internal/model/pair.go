package model

// Pair is an AMM pair (V2) or pool (V3) contract tracked for sandwiches.
type Pair struct {
	ID             int64  `json:"id"`
	ChainID        string `json:"chain_id"`
	FactoryAddress string `json:"factory_address"`
	Address        string `json:"address"`
	BaseTokenID    int64  `json:"base_token_id"`
	QuoteTokenID   int64  `json:"quote_token_id"`
}

// PairMeta is the on-chain view of a pair: its factory plus both tokens.
// Base is token0 and quote is token1.
type PairMeta struct {
	Factory string    `json:"factory"`
	Base    TokenMeta `json:"base"`
	Quote   TokenMeta `json:"quote"`
}
