package service

import (
	"errors"
	"strings"

	"sandwichScope/internal/model"
)

// UserMessage maps an error to the fixed message shown to API and CLI users.
// Internal detail never leaks through it.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, model.ErrUnsupportedChain):
		return "blockchain not supported"
	case errors.Is(err, model.ErrUnsupportedExchange):
		return "exchange not supported"
	case errors.Is(err, model.ErrPairNotFound):
		return "pair does not exist"
	case errors.Is(err, model.ErrParse):
		return "invalid request"
	case errors.Is(err, model.ErrNumericOverflow):
		return "numeric overflow"
	case errors.Is(err, model.ErrPersistence):
		return "database error"
	default:
		return "provider error"
	}
}

func normalizeChainID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
