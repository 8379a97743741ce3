// Package broker implements the broker protocol adapter: session detection,
// TR-ID selection, per-asset-class request/response shaping, and a response
// cache with last-known-good fallback.
//
// Design rules:
//   - The adapter is stateful (token cache lives in internal/tokenmgr,
//     response cache lives here) but exposes a flat operation set.
//   - Order placement and cancellation are never cached and never fall back.
package broker

import (
	"time"
)

// AccountClass mirrors credstore.AccountClass without importing it, so the
// broker package stays the lower layer (credstore depends on nothing;
// broker depends only on tokenmgr; executor wires both together).
type AccountClass string

const (
	ClassStock    AccountClass = "STOCK"
	ClassFutures  AccountClass = "FUTURES"
	ClassOverseas AccountClass = "OVERSEAS"
)

// Session is one of DAY / NIGHT / CLOSED.
type Session string

const (
	SessionDay    Session = "DAY"
	SessionNight  Session = "NIGHT"
	SessionClosed Session = "CLOSED"
)

// Action identifies the operation a TR ID is being selected for.
type Action string

const (
	ActionOrder     Action = "ORDER"
	ActionCancel    Action = "CANCEL"
	ActionBalance   Action = "BALANCE"
	ActionInquiry   Action = "INQUIRY"
	ActionOrderable Action = "ORDERABLE"
)

// OrderSide is BUY or SELL.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderStatus is the canonical status enum the adapter projects every
// broker-specific status vocabulary onto.
type OrderStatus string

const (
	StatusPending        OrderStatus = "PENDING"
	StatusPartialFilled  OrderStatus = "PARTIAL_FILLED"
	StatusFilled         OrderStatus = "FILLED"
	StatusRejected       OrderStatus = "REJECTED"
	StatusCancelled      OrderStatus = "CANCELLED"
	StatusNotFound       OrderStatus = "NOT_FOUND"
	StatusInvalid        OrderStatus = "INVALID"
	StatusError          OrderStatus = "ERROR"
	StatusUnknown        OrderStatus = "UNKNOWN"
)

// Transition describes the change a NormalizedOrder induces in net position.
type Transition string

const (
	TransitionEntry   Transition = "ENTRY"
	TransitionExit    Transition = "EXIT"
	TransitionReverse Transition = "REVERSE"
)

// AccountRef carries just what the broker adapter needs to know about an
// account to build requests and pick credentials — it does not import
// credstore.Account directly so that broker stays independent of it.
type AccountRef struct {
	ID             string
	AppKey         string
	AppSecret      string
	AccountNumber  string
	AccountProduct string
	Class          AccountClass
	IsVirtual      bool
}

// NormalizedOrder is the broker-agnostic order the executor builds from a
// Signal plus a resolved Account.
type NormalizedOrder struct {
	Account        AccountRef
	Symbol         string // after futures-code translation
	OriginalSymbol string
	Side           OrderSide
	Quantity       int
	Price          float64 // 0 => market order
	Transition     Transition
	CorrelationID  string
}

// OrderResponse is returned by PlaceOrder.
type OrderResponse struct {
	OrderID string
	RawCode string // bare broker ODNO; for STOCK, OrderID is the composed "<org>-<odno>"
}

// OrderStatusRecord is the canonicalized result of a status lookup.
type OrderStatusRecord struct {
	OrderID      string
	Status       OrderStatus
	FilledQty    int
	OrderQty     int
	RejectedQty  int
	CancelFlag   bool
}

// Position is a read-through position snapshot.
type Position struct {
	Symbol         string
	Quantity       int // signed: positive long, negative short
	AvgPrice       float64
	CurrentValue   float64
	UnrealizedPnL  float64
}

// Balance is a read-through account balance snapshot.
type Balance struct {
	TotalBalance    float64
	AvailableCash   float64
	PortfolioValue  float64
	DailyRealizedPnL float64
}

// OrderableAmount is the broker-computed tradeable ceiling.
type OrderableAmount struct {
	OrderableQuantity int
	OrderableCash     float64
}

// ReadStatus tags the provenance of a cached read result.
type ReadStatus string

const (
	ReadSuccess     ReadStatus = "success"
	ReadCached      ReadStatus = "cached"
	ReadErrorFallback ReadStatus = "error_fallback"
	ReadErrorSafe   ReadStatus = "error_safe"
)

// CacheAge is how stale a "cached" read is; it is zero for every other status.
type CacheAge = time.Duration
