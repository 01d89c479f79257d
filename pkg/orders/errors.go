package orders

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Every rejection is terminal for the attempted operation and wraps exactly
// one of these sentinels, so callers branch with errors.Is while the message
// carries the order identifier where one exists.
var (
	ErrModuleInactive    = errors.New("module inactive")
	ErrDecode            = errors.New("cannot decode payload")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrOrderCanceled     = errors.New("order canceled")
	ErrStaleTradeArgs    = errors.New("stale trade args")
	ErrPriceOutOfBounds  = errors.New("price out of bounds")
	ErrFeeOutOfBounds    = errors.New("fee out of bounds")
	ErrNotTriggered      = errors.New("trigger price not reached")
	ErrExpired           = errors.New("order expired")
	ErrAccountMismatch   = errors.New("account mismatch")
	ErrTakerMismatch     = errors.New("taker mismatch")
	ErrMarketMismatch    = errors.New("market mismatch")
	ErrDirectionMismatch = errors.New("direction mismatch")
	ErrZeroInput         = errors.New("zero input amount")
	ErrOverfill          = errors.New("fill would exceed order amount")
	ErrDecreaseViolation = errors.New("decrease-only constraint violated")
	ErrUnauthorized      = errors.New("unauthorized")
)

// rejectOrder wraps a sentinel with the offending order identifier.
func rejectOrder(sentinel error, hash common.Hash) error {
	return fmt.Errorf("%w: order %s", sentinel, hash.Hex())
}

// rejectOrderf wraps a sentinel with the order identifier and extra detail.
func rejectOrderf(sentinel error, hash common.Hash, format string, args ...any) error {
	return fmt.Errorf("%w: order %s: %s", sentinel, hash.Hex(), fmt.Sprintf(format, args...))
}
