package sandwich

import (
	"math"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"sandwichScope/internal/swap"
)

var (
	baseToken  = swap.TokenRef{ID: 1, Decimals: 0}
	quoteToken = swap.TokenRef{ID: 2, Decimals: 0}
)

func mkSwap(block uint64, txIndex uint, in0, in1, out0, out1 uint64) swap.Swap {
	ev := swap.Event{
		Meta: swap.Meta{
			BlockNumber: block,
			TxHash:      common.BigToHash(new(uint256.Int).SetUint64(block*1000 + uint64(txIndex)).ToBig()),
			TxIndex:     txIndex,
		},
	}
	ev.In0.SetUint64(in0)
	ev.In1.SetUint64(in1)
	ev.Out0.SetUint64(out0)
	ev.Out1.SetUint64(out1)
	return swap.Bind(ev, baseToken, quoteToken)
}

func txIndexes(swaps []swap.Swap) []uint {
	out := make([]uint, 0, len(swaps))
	for _, s := range swaps {
		out = append(out, s.TxIndex)
	}
	return out
}

func TestDetectFrontrunWithTwoVictims(t *testing.T) {
	swaps := []swap.Swap{
		mkSwap(100, 0, 1000, 0, 0, 3000), // A buys quote with base
		mkSwap(100, 1, 500, 0, 0, 1400),  // B
		mkSwap(100, 2, 0, 700, 240, 0),   // C
		mkSwap(100, 3, 0, 3000, 1003, 0), // D sells quote back for base
	}

	matches := Detect(swaps)
	if len(matches) != 1 {
		t.Fatalf("expected 1 sandwich, got %d", len(matches))
	}
	m := matches[0]
	if m.Frontrun.TxIndex != 0 || m.Backrun.TxIndex != 3 || m.BlockNumber != 100 {
		t.Fatalf("bracket mismatch: front=%d back=%d", m.Frontrun.TxIndex, m.Backrun.TxIndex)
	}
	if got := txIndexes(m.Lunchmeat); !reflect.DeepEqual(got, []uint{1, 2}) {
		t.Fatalf("lunchmeat mismatch: %v", got)
	}
}

func TestDetectIgnoresTrailingSwap(t *testing.T) {
	swaps := []swap.Swap{
		mkSwap(100, 0, 1000, 0, 0, 3000), // A
		mkSwap(100, 1, 500, 0, 0, 1400),  // B
		mkSwap(100, 2, 0, 3000, 999, 0),  // C reverses A
		mkSwap(100, 3, 77, 0, 0, 1),      // D matches nothing
	}

	matches := Detect(swaps)
	if len(matches) != 1 {
		t.Fatalf("expected 1 sandwich, got %d", len(matches))
	}
	m := matches[0]
	if m.Frontrun.TxIndex != 0 || m.Backrun.TxIndex != 2 {
		t.Fatalf("bracket mismatch: front=%d back=%d", m.Frontrun.TxIndex, m.Backrun.TxIndex)
	}
	if got := txIndexes(m.Lunchmeat); !reflect.DeepEqual(got, []uint{1}) {
		t.Fatalf("lunchmeat mismatch: %v", got)
	}
}

func TestDetectConsumesSwapsDisjointly(t *testing.T) {
	swaps := []swap.Swap{
		mkSwap(7, 0, 1000, 0, 0, 1),
		mkSwap(7, 1, 5, 0, 0, 1),
		mkSwap(7, 2, 0, 1, 1000, 0),
		mkSwap(7, 3, 1000, 0, 0, 1), // would pair with 2 or 5 if reused
		mkSwap(7, 4, 9, 0, 0, 1),
		mkSwap(7, 5, 0, 1, 1000, 0),
	}

	matches := Detect(swaps)
	if len(matches) != 2 {
		t.Fatalf("expected 2 sandwiches, got %d", len(matches))
	}
	seen := make(map[uint]bool)
	for _, m := range matches {
		legs := m.Swaps()
		if len(legs) < 3 {
			t.Fatalf("sandwich with %d legs", len(legs))
		}
		for _, leg := range legs {
			if seen[leg.TxIndex] {
				t.Fatalf("swap %d used twice", leg.TxIndex)
			}
			seen[leg.TxIndex] = true
		}
	}
}

func TestDetectTooFewSwaps(t *testing.T) {
	if got := Detect(nil); len(got) != 0 {
		t.Fatalf("expected none, got %d", len(got))
	}
	swaps := []swap.Swap{
		mkSwap(1, 0, 1000, 0, 0, 1),
		mkSwap(1, 1, 0, 1, 1000, 0),
	}
	if got := Detect(swaps); len(got) != 0 {
		t.Fatalf("expected none for adjacent pair, got %d", len(got))
	}
}

func TestDetectCopiesSwaps(t *testing.T) {
	swaps := []swap.Swap{
		mkSwap(1, 0, 1000, 0, 0, 1),
		mkSwap(1, 1, 5, 0, 0, 1),
		mkSwap(1, 2, 0, 1, 1000, 0),
	}
	matches := Detect(swaps)
	if len(matches) != 1 {
		t.Fatalf("expected 1 sandwich, got %d", len(matches))
	}
	swaps[1] = mkSwap(1, 9, 0, 0, 0, 0)
	if matches[0].Lunchmeat[0].TxIndex != 1 {
		t.Fatalf("lunchmeat aliases input slice")
	}
}

func TestIsMatchTolerance(t *testing.T) {
	cases := []struct {
		name      string
		frontIn0  uint64
		backOut0  uint64
		wantMatch bool
	}{
		{"exact", 10000, 10000, true},
		{"inside above", 10049, 10000, true},
		{"outside above", 10051, 10000, false},
		{"inside below", 10000, 10049, true},
		{"outside below", 10000, 10051, false},
		{"zero ratio", 0, 10000, false},
		{"infinite ratio", 10000, 0, false},
		{"undefined ratio", 0, 0, false},
	}
	for _, tc := range cases {
		front := mkSwap(1, 0, tc.frontIn0, 0, 0, 0)
		back := mkSwap(1, 2, 0, 0, tc.backOut0, 0)
		if got := IsMatch(front, back); got != tc.wantMatch {
			t.Fatalf("%s: IsMatch = %v, want %v", tc.name, got, tc.wantMatch)
		}
	}
}

func TestIsMatchQuoteRatio(t *testing.T) {
	front := mkSwap(1, 0, 0, 5000, 0, 0)
	back := mkSwap(1, 2, 0, 0, 0, 4990)
	if !IsMatch(front, back) {
		t.Fatalf("expected quote-side match")
	}
}

func TestIsMatchRequiresSameTokens(t *testing.T) {
	front := mkSwap(1, 0, 1000, 0, 0, 0)
	back := mkSwap(1, 2, 0, 0, 1000, 0)
	back.Quote = swap.TokenRef{ID: 99}
	if IsMatch(front, back) {
		t.Fatalf("expected token mismatch to reject")
	}
}

func TestWithinTolerance(t *testing.T) {
	for _, ratio := range []float64{0, math.Inf(1), math.Inf(-1), math.NaN(), 1.0051, 1 / 1.0051} {
		if withinTolerance(ratio) {
			t.Fatalf("ratio %v should not match", ratio)
		}
	}
	for _, ratio := range []float64{1, 1.0049, 1 / 1.0049} {
		if !withinTolerance(ratio) {
			t.Fatalf("ratio %v should match", ratio)
		}
	}
}

func TestGroupByBlock(t *testing.T) {
	swaps := []swap.Swap{
		mkSwap(10, 5, 1, 0, 0, 1),
		mkSwap(12, 1, 1, 0, 0, 1),
		mkSwap(10, 1, 1, 0, 0, 1),
		mkSwap(11, 0, 1, 0, 0, 1),
		mkSwap(12, 0, 1, 0, 0, 1),
		mkSwap(10, 3, 1, 0, 0, 1),
		mkSwap(12, 2, 1, 0, 0, 1),
		mkSwap(11, 1, 1, 0, 0, 1),
	}

	blocks := GroupByBlock(swaps)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	if blocks[0].Number != 12 || blocks[1].Number != 10 {
		t.Fatalf("block order mismatch: %d, %d", blocks[0].Number, blocks[1].Number)
	}
	if got := txIndexes(blocks[1].Swaps); !reflect.DeepEqual(got, []uint{1, 3, 5}) {
		t.Fatalf("tx order mismatch: %v", got)
	}
}
