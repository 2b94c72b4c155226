package model

import (
	"fmt"
	"strings"
)

// ExchangeKind selects the swap event encoding an exchange emits.
type ExchangeKind string

const (
	// ExchangeV2 emits Swap(sender, amount0In, amount1In, amount0Out, amount1Out, to).
	ExchangeV2 ExchangeKind = "v2"
	// ExchangeV3 emits Swap(sender, recipient, amount0, amount1, sqrtPriceX96, liquidity, tick).
	ExchangeV3 ExchangeKind = "v3"
)

// ParseExchangeKind accepts "v2"/"v3" in any case.
func ParseExchangeKind(input string) (ExchangeKind, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "v2":
		return ExchangeV2, nil
	case "v3":
		return ExchangeV3, nil
	default:
		return "", fmt.Errorf("unsupported exchange kind: %q", input)
	}
}

// Exchange is a supported exchange deployment on one chain.
type Exchange struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Kind    ExchangeKind `json:"kind"`
	Factory string       `json:"factory"`
}
