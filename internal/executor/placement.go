package executor

import (
	"context"
	"errors"
	"time"

	"github.com/signalrouter/kisrouter/internal/broker"
)

// place implements order placement and the bounded fill-wait. For
// ENTRY/EXIT it places a single order. For REVERSE it first closes the
// existing position at market, waits up to the close-leg timeout, and
// only places the entry leg if the close reaches FILLED.
func (ex *Executor) place(ctx context.Context, session broker.Session, order broker.NormalizedOrder, currentQty int) ExecutionResult {
	if order.Transition != broker.TransitionReverse {
		return ex.placeAndWait(ctx, session, order, fillWaitDefault)
	}

	closeSide := broker.SideSell
	if currentQty < 0 {
		closeSide = broker.SideBuy
	}
	closeOrder := order
	closeOrder.Side = closeSide
	closeOrder.Quantity = abs(currentQty)
	closeOrder.Price = 0 // market close
	closeOrder.Transition = broker.TransitionExit

	closeResult := ex.placeAndWait(ctx, session, closeOrder, fillWaitCloseLeg)
	if !closeResult.Filled {
		return ExecutionResult{
			Success:      false,
			CloseOrderID: closeResult.OrderID,
			Status:       closeResult.Status,
			Error:        &ExecutionError{Type: ErrBroker, Reason: "reverse close leg did not fill; entry leg not placed"},
		}
	}

	entryResult := ex.placeAndWait(ctx, session, order, fillWaitDefault)
	entryResult.CloseOrderID = closeResult.OrderID
	return entryResult
}

func (ex *Executor) placeAndWait(ctx context.Context, session broker.Session, order broker.NormalizedOrder, timeout time.Duration) ExecutionResult {
	resp, err := ex.Broker.PlaceOrder(ctx, session, order)
	if err != nil {
		return ExecutionResult{Success: false, Error: asBrokerError(err)}
	}

	status, filled := ex.waitForFill(ctx, session, order.Account, resp.OrderID, timeout)
	return ExecutionResult{
		Success: filled,
		OrderID: resp.OrderID,
		Filled:  filled,
		Status:  string(status),
	}
}

// waitForFill polls order status, sleeping fillPollSleep then
// fillPollInterval between rounds, until a terminal status is reached,
// the context is cancelled, or timeout elapses.
func (ex *Executor) waitForFill(ctx context.Context, session broker.Session, acct broker.AccountRef, orderID string, timeout time.Duration) (broker.OrderStatus, bool) {
	deadline := ex.Clock().Add(timeout)
	lastStatus := broker.StatusPending

	for {
		rec, err := ex.Broker.GetOrderStatus(ctx, session, acct, orderID)
		if err == nil {
			lastStatus = rec.Status
			switch rec.Status {
			case broker.StatusFilled:
				return rec.Status, true
			case broker.StatusRejected, broker.StatusCancelled:
				return rec.Status, false
			}
		}

		select {
		case <-ctx.Done():
			return lastStatus, false
		default:
		}

		if ex.Clock().After(deadline) {
			return lastStatus, false
		}

		if !sleepCtx(ctx, fillPollSleep) {
			return lastStatus, false
		}
		if !sleepCtx(ctx, fillPollInterval) {
			return lastStatus, false
		}
	}
}

// sleepCtx sleeps for d or returns false early if ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func asBrokerError(err error) *ExecutionError {
	var be *broker.BrokerError
	if errors.As(err, &be) {
		return &ExecutionError{Type: ErrBroker, Reason: be.Error(), Err: err}
	}
	var noTR *broker.ErrNoTRID
	if errors.As(err, &noTR) {
		return &ExecutionError{Type: ErrSystem, Reason: noTR.Error(), Err: err}
	}
	return &ExecutionError{Type: ErrBroker, Reason: "broker call failed", Err: err}
}
