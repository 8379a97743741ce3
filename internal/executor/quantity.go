package executor

import (
	"math"

	"github.com/signalrouter/kisrouter/internal/broker"
)

// ResolveQuantity implements Stage 6: signal quantity > 0 is used verbatim;
// 0 or -1 ("full trade") is computed from the current position.
//
// currentQty is signed: positive long, negative short, zero flat.
// defaultSize is called lazily (only when a default-size decision is
// actually needed) since it may require a broker round-trip (current price
// lookup).
func ResolveQuantity(action string, currentQty, signalQty int, isFutures bool, defaultSize func() (int, error)) (int, *ExecutionError) {
	if signalQty > 0 {
		return signalQty, nil
	}

	switch action {
	case "SELL":
		switch {
		case currentQty > 0:
			return currentQty, nil
		case currentQty < 0:
			return 0, &ExecutionError{Type: ErrValidation, Reason: "already short, cannot add via full-trade semantics"}
		default: // flat
			if !isFutures {
				return 0, &ExecutionError{Type: ErrValidation, Reason: "cannot open a short via full-trade semantics on a non-futures account"}
			}
			qty, err := defaultSize()
			if err != nil {
				return 0, &ExecutionError{Type: ErrSystem, Reason: "default size computation failed", Err: err}
			}
			return qty, nil
		}

	case "BUY":
		if currentQty < 0 {
			return -currentQty, nil
		}
		qty, err := defaultSize()
		if err != nil {
			return 0, &ExecutionError{Type: ErrSystem, Reason: "default size computation failed", Err: err}
		}
		return qty, nil
	}

	return 0, &ExecutionError{Type: ErrValidation, Reason: "unreachable: action must be BUY or SELL"}
}

// DefaultFuturesSize computes the default order size for a FUTURES entry:
// (balance * leverage * maxPositionRatio) / (price * multiplier), floored
// to an integer >= 1.
func DefaultFuturesSize(balance, leverage, maxPositionRatio, price float64, multiplier int) (int, error) {
	if price <= 0 || multiplier <= 0 {
		return 0, errInvalidSizingInput
	}
	notionalCapacity := balance * leverage * maxPositionRatio
	qty := int(math.Floor(notionalCapacity / (price * float64(multiplier))))
	if qty < 1 {
		qty = 1
	}
	return qty, nil
}

// DefaultNonFuturesSize computes the default order size for a non-FUTURES
// entry: max(1, floor(orderable_quantity * 0.1)).
func DefaultNonFuturesSize(orderableQuantity int) int {
	qty := int(math.Floor(float64(orderableQuantity) * 0.1))
	if qty < 1 {
		qty = 1
	}
	return qty
}

var errInvalidSizingInput = &ExecutionError{Type: ErrSystem, Reason: "invalid sizing input: price and multiplier must be positive"}

// InferTransition implements Stage 7's table, a pure function of
// (current quantity sign, |current|, action, signal quantity).
func InferTransition(currentQty, signalQty int, action string) broker.Transition {
	switch {
	case currentQty == 0:
		return broker.TransitionEntry
	case currentQty > 0 && action == "BUY":
		return broker.TransitionEntry
	case currentQty > 0 && action == "SELL":
		abs := currentQty
		switch {
		case signalQty < abs:
			return broker.TransitionExit
		case signalQty == abs:
			return broker.TransitionExit
		default:
			return broker.TransitionReverse
		}
	case currentQty < 0 && action == "SELL":
		return broker.TransitionEntry
	case currentQty < 0 && action == "BUY":
		abs := -currentQty
		switch {
		case signalQty < abs:
			return broker.TransitionExit
		case signalQty == abs:
			return broker.TransitionExit
		default:
			return broker.TransitionReverse
		}
	}
	return broker.TransitionEntry
}
