package scanner

import "math/bits"

// BlockRange represents an inclusive block range.
type BlockRange struct {
	From uint64
	To   uint64
}

// Span is the number of blocks in the range.
func (r BlockRange) Span() uint64 {
	return r.To - r.From + 1
}

// ChunkBelow returns the chunk of at most size blocks ending at upper,
// never reaching below floor.
func ChunkBelow(upper, floor, size uint64) BlockRange {
	if size == 0 {
		size = 1
	}
	if upper-floor < size {
		return BlockRange{From: floor, To: upper}
	}
	return BlockRange{From: upper - size + 1, To: upper}
}

// NextChunkSize sizes the next chunk so it should hold about target events,
// given that the last chunk of span blocks held events of them:
// floor(target / (events/span)), clamped to [1, max]. A chunk without events
// jumps straight to max.
func NextChunkSize(events, span, target, max uint64) uint64 {
	if max == 0 {
		max = 1
	}
	if events == 0 {
		return max
	}
	hi, lo := bits.Mul64(target, span)
	if hi >= events {
		return max
	}
	size, _ := bits.Div64(hi, lo, events)
	switch {
	case size < 1:
		return 1
	case size > max:
		return max
	default:
		return size
	}
}
