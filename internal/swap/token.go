package swap

import (
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// TokenRef is the slice of token data a swap needs for matching and storage.
type TokenRef struct {
	ID       int64
	Decimals uint8
}

// Swap is a canonical event bound to the pair's base and quote tokens.
type Swap struct {
	Event
	Base  TokenRef
	Quote TokenRef
}

// Bind attaches the pair's tokens to an event.
func Bind(ev Event, base, quote TokenRef) Swap {
	return Swap{Event: ev, Base: base, Quote: quote}
}

func (s Swap) BaseIn() float64   { return ToFloat(&s.In0, s.Base.Decimals) }
func (s Swap) QuoteIn() float64  { return ToFloat(&s.In1, s.Quote.Decimals) }
func (s Swap) BaseOut() float64  { return ToFloat(&s.Out0, s.Base.Decimals) }
func (s Swap) QuoteOut() float64 { return ToFloat(&s.Out1, s.Quote.Decimals) }

// ToDecimal shifts a base-unit amount by the token's decimals.
func ToDecimal(amount *uint256.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount.ToBig(), -int32(decimals))
}

// ToFloat is ToDecimal narrowed to float64; precision loss is accepted.
func ToFloat(amount *uint256.Int, decimals uint8) float64 {
	f, _ := ToDecimal(amount, decimals).Float64()
	return f
}
