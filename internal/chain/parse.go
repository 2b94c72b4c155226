package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"sandwichScope/internal/model"
)

// ParseAddress validates a 0x-prefixed hex address and returns it together
// with its lowercase form, which is how addresses are stored and compared.
func ParseAddress(input string) (common.Address, string, error) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "0x") && !strings.HasPrefix(input, "0X") {
		return common.Address{}, "", fmt.Errorf("%w: invalid address: %q", model.ErrParse, input)
	}
	if !common.IsHexAddress(input) {
		return common.Address{}, "", fmt.Errorf("%w: invalid address: %q", model.ErrParse, input)
	}
	address := common.HexToAddress(input)
	return address, strings.ToLower(address.Hex()), nil
}
