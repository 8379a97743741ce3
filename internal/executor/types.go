// Package executor implements the signal execution pipeline: webhook
// validation, account routing, quantity resolution, transition inference,
// risk gating, order placement, and bounded fill-wait.
//
// Design rules:
//   - execute(signal) is the single entry point; the first failed stage
//     short-circuits with a typed error result.
//   - The emergency-stop flag is checked before any other stage runs.
package executor

import "time"

// Signal is one inbound trading instruction (one per webhook request).
type Signal struct {
	Symbol       string
	Action       string // normalized upper: BUY or SELL
	Quantity     int    // 0 or -1 mean "full trade"
	Price        float64
	WebhookToken string
	ReceivedAt   time.Time
}

// StrategyConfig is per-account risk metadata, loaded alongside the account
// record. Multiple strategies may reference one account.
type StrategyConfig struct {
	Name            string  `json:"name"`
	MaxPositionRatio float64 `json:"max_position_ratio"` // default 1.0 if zero
	MaxDailyLoss    float64 `json:"max_daily_loss"`     // default 5_000_000 if zero
	Active          bool    `json:"active"`
}

const (
	defaultMaxPositionRatio = 1.0
	defaultMaxDailyLoss     = 5_000_000
)

func (s StrategyConfig) positionRatioLimit() float64 {
	if s.MaxPositionRatio <= 0 {
		return defaultMaxPositionRatio
	}
	return s.MaxPositionRatio
}

func (s StrategyConfig) dailyLossLimit() float64 {
	if s.MaxDailyLoss <= 0 {
		return defaultMaxDailyLoss
	}
	return s.MaxDailyLoss
}

// ErrorType is the executor's error taxonomy.
type ErrorType string

const (
	ErrValidation    ErrorType = "validation"
	ErrEmergencyStop ErrorType = "emergency_stop"
	ErrRisk          ErrorType = "risk"
	ErrBroker        ErrorType = "broker"
	ErrSystem        ErrorType = "system"
)

// Reason strings the HTTP surface matches on to pick a status code that's
// more specific than the error type alone gives it (token-unknown is a
// validation-shaped error that must still answer 401, not 400;
// inactive-account/-strategy are risk-shaped errors that must answer 403).
const (
	ReasonUnknownToken      = "unknown webhook token"
	ReasonAccountInactive   = "account_inactive"
	ReasonStrategyInactive  = "strategy_inactive"
)

// ExecutionError is the typed error every pipeline stage returns on failure.
type ExecutionError struct {
	Type   ErrorType
	Reason string
	Err    error
}

func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return e.Type.String() + ": " + e.Reason + ": " + e.Err.Error()
	}
	return e.Type.String() + ": " + e.Reason
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func (t ErrorType) String() string { return string(t) }

// ExecutionResult is what execute(signal) returns.
type ExecutionResult struct {
	Success      bool
	AccountID    string
	OrderID      string
	CloseOrderID string // populated for a REVERSE's close leg
	Filled       bool
	Status       string
	Error        *ExecutionError
	CorrelationID string
}
