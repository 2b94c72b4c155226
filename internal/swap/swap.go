package swap

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"sandwichScope/internal/model"
)

// Meta locates a swap log on chain.
type Meta struct {
	BlockNumber uint64
	TxHash      common.Hash
	TxIndex     uint
}

// Event is the canonical swap: four non-negative base-unit amounts for
// token0 (base) and token1 (quote).
type Event struct {
	Meta
	In0  uint256.Int
	In1  uint256.Int
	Out0 uint256.Int
	Out1 uint256.Int
}

// V2Amounts are the four unsigned amounts of a V2 Swap event.
type V2Amounts struct {
	In0  *big.Int
	In1  *big.Int
	Out0 *big.Int
	Out1 *big.Int
}

// V3Amounts are the signed net amounts of a V3 Swap event, seen from the pool:
// positive flows into the pool, negative flows out.
type V3Amounts struct {
	Amount0 *big.Int
	Amount1 *big.Int
}

var maxInt256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(1))

// FromV2 copies the V2 amounts into a canonical event.
func FromV2(meta Meta, raw V2Amounts) (Event, error) {
	ev := Event{Meta: meta}
	for _, item := range []struct {
		name string
		src  *big.Int
		dst  *uint256.Int
	}{
		{"amount0In", raw.In0, &ev.In0},
		{"amount1In", raw.In1, &ev.In1},
		{"amount0Out", raw.Out0, &ev.Out0},
		{"amount1Out", raw.Out1, &ev.Out1},
	} {
		if err := setUnsigned(item.dst, item.src); err != nil {
			return Event{}, fmt.Errorf("%s: %w", item.name, err)
		}
	}
	return ev, nil
}

// FromV3 splits each signed net amount into an in or out amount by sign.
func FromV3(meta Meta, raw V3Amounts) (Event, error) {
	ev := Event{Meta: meta}
	in0, out0 := splitSigned(raw.Amount0)
	in1, out1 := splitSigned(raw.Amount1)
	for _, item := range []struct {
		name string
		src  *big.Int
		dst  *uint256.Int
	}{
		{"amount0", in0, &ev.In0},
		{"amount0", out0, &ev.Out0},
		{"amount1", in1, &ev.In1},
		{"amount1", out1, &ev.Out1},
	} {
		if err := setUnsigned(item.dst, item.src); err != nil {
			return Event{}, fmt.Errorf("%s: %w", item.name, err)
		}
	}
	return ev, nil
}

// splitSigned returns (in, out) for a signed amount. A negative amount's
// magnitude comes from SaturatingNeg.
func splitSigned(amount *big.Int) (*big.Int, *big.Int) {
	zero := new(big.Int)
	if amount == nil {
		return zero, new(big.Int)
	}
	switch amount.Sign() {
	case 1:
		return new(big.Int).Set(amount), zero
	case -1:
		return zero, SaturatingNeg(amount)
	default:
		return zero, new(big.Int)
	}
}

// SaturatingNeg negates an int256 value, clamping to the int256 maximum
// instead of wrapping when the input is the int256 minimum.
func SaturatingNeg(value *big.Int) *big.Int {
	neg := new(big.Int).Neg(value)
	if neg.Cmp(maxInt256) > 0 {
		return new(big.Int).Set(maxInt256)
	}
	return neg
}

func setUnsigned(dst *uint256.Int, src *big.Int) error {
	if src == nil {
		dst.Clear()
		return nil
	}
	if src.Sign() < 0 {
		return fmt.Errorf("%w: negative amount %s", model.ErrParse, src.String())
	}
	if overflow := dst.SetFromBig(src); overflow {
		return fmt.Errorf("%w: amount %s exceeds 256 bits", model.ErrNumericOverflow, src.String())
	}
	return nil
}
