package model

// LegRole is the structural role of a transaction inside a sandwich.
type LegRole string

const (
	RoleFrontrun  LegRole = "frontrun"
	RoleLunchmeat LegRole = "lunchmeat"
	RoleBackrun   LegRole = "backrun"
)

// TransactionLeg is one swap transaction of a sandwich. Amounts are
// decimal-normalized token units and Gas is in native-token units.
type TransactionLeg struct {
	ID         int64   `json:"id"`
	SandwichID int64   `json:"sandwich_id"`
	Role       LegRole `json:"role"`
	Position   int     `json:"position"`
	TxHash     string  `json:"hash"`
	TxIndex    uint64  `json:"index"`
	BaseIn     float64 `json:"base_in"`
	QuoteIn    float64 `json:"quote_in"`
	BaseOut    float64 `json:"base_out"`
	QuoteOut   float64 `json:"quote_out"`
	Gas        float64 `json:"gas"`
}

// Sandwich is a detected frontrun/lunchmeat/backrun bracket within one block.
type Sandwich struct {
	ID          int64            `json:"id"`
	PairID      int64            `json:"pair_id"`
	BlockNumber uint64           `json:"block_number"`
	Frontrun    TransactionLeg   `json:"frontrun"`
	Lunchmeat   []TransactionLeg `json:"lunchmeat"`
	Backrun     TransactionLeg   `json:"backrun"`
}

// Legs returns all legs in block order: frontrun, lunchmeat..., backrun.
func (s Sandwich) Legs() []TransactionLeg {
	legs := make([]TransactionLeg, 0, len(s.Lunchmeat)+2)
	legs = append(legs, s.Frontrun)
	legs = append(legs, s.Lunchmeat...)
	legs = append(legs, s.Backrun)
	return legs
}
