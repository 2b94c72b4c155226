// Package sandwich finds frontrun/lunchmeat/backrun brackets in a block's
// swaps and enriches them with transaction data.
package sandwich

import (
	"math"

	"sandwichScope/internal/swap"
)

// Tolerance bounds how far a backrun may deviate from exactly reversing the
// frontrun: the amount ratio must lie strictly inside (1/Tolerance, Tolerance).
const Tolerance = 1.005

// Match is one detected bracket. It owns its swaps.
type Match struct {
	BlockNumber uint64
	Frontrun    swap.Swap
	Lunchmeat   []swap.Swap
	Backrun     swap.Swap
}

// Swaps returns the legs in block order.
func (m Match) Swaps() []swap.Swap {
	out := make([]swap.Swap, 0, len(m.Lunchmeat)+2)
	out = append(out, m.Frontrun)
	out = append(out, m.Lunchmeat...)
	return append(out, m.Backrun)
}

// Detect scans one block's swaps, ordered by transaction index, for
// non-overlapping sandwiches. For each frontrun candidate i the nearest
// matching backrun j >= i+2 wins; scanning then resumes after j, so no swap
// belongs to two sandwiches.
func Detect(swaps []swap.Swap) []Match {
	n := len(swaps)
	var matches []Match

	i := 0
	for i+2 < n {
		matched := false
		for j := i + 2; j < n; j++ {
			if !IsMatch(swaps[i], swaps[j]) {
				continue
			}
			lunchmeat := make([]swap.Swap, j-i-1)
			copy(lunchmeat, swaps[i+1:j])
			matches = append(matches, Match{
				BlockNumber: swaps[i].BlockNumber,
				Frontrun:    swaps[i],
				Lunchmeat:   lunchmeat,
				Backrun:     swaps[j],
			})
			i = j + 1
			matched = true
			break
		}
		if !matched {
			i++
		}
	}
	return matches
}

// IsMatch reports whether back approximately reverses front on the same pair:
// front's base input against back's base output, or the same for quote.
func IsMatch(front, back swap.Swap) bool {
	if front.Base.ID != back.Base.ID || front.Quote.ID != back.Quote.ID {
		return false
	}
	return withinTolerance(front.BaseIn()/back.BaseOut()) ||
		withinTolerance(front.QuoteIn()/back.QuoteOut())
}

// withinTolerance is false for 0, NaN, and ±Inf.
func withinTolerance(ratio float64) bool {
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return false
	}
	return 1/Tolerance < ratio && ratio < Tolerance
}
