package model

// ScanRange is an inclusive block interval of one pair's history that has been
// handed to a scan job. Ranges of one pair never overlap.
type ScanRange struct {
	ID         int64  `json:"id"`
	PairID     int64  `json:"pair_id"`
	LowerBound uint64 `json:"lower_bound"`
	UpperBound uint64 `json:"upper_bound"`
	Complete   bool   `json:"scan_complete"`
	Failed     bool   `json:"scan_failed"`
}

// Contains reports whether block lies inside the range.
func (r ScanRange) Contains(block uint64) bool {
	return r.LowerBound <= block && block <= r.UpperBound
}

// InProgress reports whether the owning job has not finished yet.
func (r ScanRange) InProgress() bool {
	return !r.Complete && !r.Failed
}
