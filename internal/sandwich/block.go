package sandwich

import (
	"sort"

	"sandwichScope/internal/swap"
)

// MinSwapsPerBlock is the fewest swaps a block needs to hold a sandwich.
const MinSwapsPerBlock = 3

// Block is one block's swaps in transaction-index order.
type Block struct {
	Number uint64
	Swaps  []swap.Swap
}

// GroupByBlock buckets swaps by block, drops blocks with fewer than
// MinSwapsPerBlock swaps, and returns the rest newest block first.
func GroupByBlock(swaps []swap.Swap) []Block {
	buckets := make(map[uint64][]swap.Swap)
	for _, s := range swaps {
		buckets[s.BlockNumber] = append(buckets[s.BlockNumber], s)
	}

	blocks := make([]Block, 0, len(buckets))
	for number, items := range buckets {
		if len(items) < MinSwapsPerBlock {
			continue
		}
		sort.SliceStable(items, func(i, j int) bool { return items[i].TxIndex < items[j].TxIndex })
		blocks = append(blocks, Block{Number: number, Swaps: items})
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Number > blocks[j].Number })
	return blocks
}
