package broker

import "fmt"

// trKey is the lookup key for the static TR-ID table.
type trKey struct {
	class     AccountClass
	session   Session
	isVirtual bool
	action    Action
}

// futuresTRTable is the public FUTURES table. Virtual
// night-session rows are absent from the published table; lookups for them
// fall through to the DAY fallback in TRID below.
var futuresTRTable = map[trKey]string{
	{ClassFutures, SessionDay, false, ActionOrder}:   "TTTO1101U",
	{ClassFutures, SessionNight, false, ActionOrder}: "TTTN1101U",
	{ClassFutures, SessionDay, true, ActionOrder}:    "VTTO1101U",

	{ClassFutures, SessionDay, false, ActionCancel}:   "TTTO1103U",
	{ClassFutures, SessionNight, false, ActionCancel}: "TTTN1103U",
	{ClassFutures, SessionDay, true, ActionCancel}:    "VTTO1103U",

	{ClassFutures, SessionDay, false, ActionBalance}:   "CTFO6118R",
	{ClassFutures, SessionNight, false, ActionBalance}: "CTFN6118R",
	{ClassFutures, SessionDay, true, ActionBalance}:    "VTFO6118R",

	{ClassFutures, SessionDay, false, ActionInquiry}:   "TTTO5201R",
	{ClassFutures, SessionNight, false, ActionInquiry}: "STTN5201R",
	{ClassFutures, SessionDay, true, ActionInquiry}:    "VTTO5201R",

	{ClassFutures, SessionDay, false, ActionOrderable}:   "TTTO5105R",
	{ClassFutures, SessionNight, false, ActionOrderable}: "STTN5105R",
	{ClassFutures, SessionDay, true, ActionOrderable}:    "VTTO5105R",
}

// stockTRTable holds fixed TR IDs for domestic cash orders, independent of
// session. Order-side TR IDs differ for BUY vs SELL; the
// other actions are side-independent.
var stockTRTable = map[trKey]string{
	{ClassStock, SessionDay, false, ActionBalance}:   "TTTC8434R",
	{ClassStock, SessionDay, true, ActionBalance}:    "VTTC8434R",
	{ClassStock, SessionDay, false, ActionInquiry}:   "TTTC0081R",
	{ClassStock, SessionDay, true, ActionInquiry}:    "VTTC0081R",
	{ClassStock, SessionDay, false, ActionOrderable}: "TTTC8908R",
	{ClassStock, SessionDay, true, ActionOrderable}:  "VTTC8908R",
}

var stockOrderTR = map[bool]map[OrderSide]string{
	false: {SideBuy: "TTTC0012U", SideSell: "TTTC0011U"},
	true:  {SideBuy: "VTTC0012U", SideSell: "VTTC0011U"},
}

// overseasOrderTR holds fixed buy/sell TR IDs for overseas cash orders
// The published sell pair (buy TTTT1002U/VTTT1002U, sell
// TTTT1006U/VTTT1001U) is asymmetric between real
// and virtual mode; it is reproduced here verbatim rather than normalized,
// since the adapter must match what the broker actually expects.
var overseasOrderTR = map[bool]map[OrderSide]string{
	false: {SideBuy: "TTTT1002U", SideSell: "TTTT1006U"},
	true:  {SideBuy: "VTTT1002U", SideSell: "VTTT1001U"},
}

// overseasTRTable holds fixed TR IDs for overseas balance/inquiry actions.
// Overseas orderable-amount has no published TR ID; endpointPath refuses
// that action outright rather than guessing one.
var overseasTRTable = map[trKey]string{
	{ClassOverseas, SessionDay, false, ActionBalance}: "TTTS3012R",
	{ClassOverseas, SessionDay, true, ActionBalance}:  "VTTS3012R",
	{ClassOverseas, SessionDay, false, ActionInquiry}: "TTTS3035R",
	{ClassOverseas, SessionDay, true, ActionInquiry}:  "VTTS3035R",
}

// ErrNoTRID is returned when no TR ID can be resolved for a tuple, even
// after the DAY fallback.
type ErrNoTRID struct {
	Class     AccountClass
	Session   Session
	IsVirtual bool
	Action    Action
}

func (e *ErrNoTRID) Error() string {
	return fmt.Sprintf("broker: no TR ID for class=%s session=%s virtual=%t action=%s",
		e.Class, e.Session, e.IsVirtual, e.Action)
}

// TRID resolves the transaction identifier for an order/cancel/balance/
// inquiry/orderable action. side is only consulted for STOCK and OVERSEAS
// ORDER actions; it is ignored otherwise.
//
// If session is CLOSED, the DAY tuple is tried directly: a closed market
// falls back to the DAY TR ID rather than failing outright. If the resolved
// tuple is still missing, the same tuple with session = DAY is tried once
// more before failing.
func TRID(class AccountClass, session Session, isVirtual bool, action Action, side OrderSide) (string, error) {
	effectiveSession := session
	if effectiveSession == SessionClosed {
		effectiveSession = SessionDay
	}

	if tr, ok := lookupTR(class, effectiveSession, isVirtual, action, side); ok {
		return tr, nil
	}
	if effectiveSession != SessionDay {
		if tr, ok := lookupTR(class, SessionDay, isVirtual, action, side); ok {
			return tr, nil
		}
	}
	return "", &ErrNoTRID{Class: class, Session: effectiveSession, IsVirtual: isVirtual, Action: action}
}

func lookupTR(class AccountClass, session Session, isVirtual bool, action Action, side OrderSide) (string, bool) {
	switch class {
	case ClassFutures:
		tr, ok := futuresTRTable[trKey{class, session, isVirtual, action}]
		return tr, ok
	case ClassStock:
		if action == ActionOrder {
			tr, ok := stockOrderTR[isVirtual][side]
			return tr, ok
		}
		tr, ok := stockTRTable[trKey{class, session, isVirtual, action}]
		return tr, ok
	case ClassOverseas:
		if action == ActionOrder {
			tr, ok := overseasOrderTR[isVirtual][side]
			return tr, ok
		}
		tr, ok := overseasTRTable[trKey{class, session, isVirtual, action}]
		return tr, ok
	default:
		return "", false
	}
}
