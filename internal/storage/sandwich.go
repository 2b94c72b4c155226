package storage

import (
	"sort"

	"sandwichScope/internal/model"
)

// Assemble groups legs under their parents by role and position. Parents with
// a missing frontrun or backrun are kept with zero-valued legs so partially
// written sandwiches stay visible.
func Assemble(parents []model.Sandwich, legs []model.TransactionLeg) []model.Sandwich {
	byID := make(map[int64]int, len(parents))
	out := make([]model.Sandwich, len(parents))
	for i, parent := range parents {
		parent.Lunchmeat = nil
		out[i] = parent
		byID[parent.ID] = i
	}

	sorted := append([]model.TransactionLeg(nil), legs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].SandwichID != sorted[j].SandwichID {
			return sorted[i].SandwichID < sorted[j].SandwichID
		}
		return sorted[i].Position < sorted[j].Position
	})

	for _, leg := range sorted {
		idx, ok := byID[leg.SandwichID]
		if !ok {
			continue
		}
		switch leg.Role {
		case model.RoleFrontrun:
			out[idx].Frontrun = leg
		case model.RoleBackrun:
			out[idx].Backrun = leg
		default:
			out[idx].Lunchmeat = append(out[idx].Lunchmeat, leg)
		}
	}
	return out
}
