package executor

import (
	"fmt"

	"github.com/signalrouter/kisrouter/internal/broker"
)

// RiskInput bundles what the four-check gate needs to evaluate a signal
// against an account's resolved strategies.
type RiskInput struct {
	AccountActive    bool
	Strategies       []StrategyConfig
	EstimatedNotional float64
	Balance          broker.Balance
	BalanceStatus    broker.ReadStatus
	PortfolioValue   float64
}

// CheckRisk runs the four checks in order, short-circuiting on the first
// failure.
func CheckRisk(in RiskInput) *ExecutionError {
	if !in.AccountActive {
		return &ExecutionError{Type: ErrRisk, Reason: ReasonAccountInactive}
	}

	if in.EstimatedNotional > 0 && in.BalanceStatus == broker.ReadErrorFallback {
		return &ExecutionError{Type: ErrRisk, Reason: "balance_unreliable"}
	}

	if ratioLimit, ok := minPositionRatio(in.Strategies); ok {
		if in.PortfolioValue > 0 {
			ratio := in.EstimatedNotional / in.PortfolioValue
			if ratio > ratioLimit {
				return &ExecutionError{Type: ErrRisk, Reason: fmt.Sprintf("position_limit_exceeded: %.4f > %.4f", ratio, ratioLimit)}
			}
		}
	}

	if lossLimit, ok := minDailyLossLimit(in.Strategies); ok {
		if in.Balance.DailyRealizedPnL <= -lossLimit {
			return &ExecutionError{Type: ErrRisk, Reason: "daily_loss_limit_exceeded"}
		}
	}

	return nil
}

// minPositionRatio resolves the effective max_position_ratio as the minimum
// across every active strategy attached to the account. This mirrors the
// original source's check_position_limit loop, which takes the minimum
// across strategies rather than the maximum or the signal's own strategy —
// almost certainly unintended, but preserved rather than "fixed" since
// changing it would silently loosen risk limits for accounts with multiple
// strategies.
func minPositionRatio(strategies []StrategyConfig) (float64, bool) {
	active := activeStrategies(strategies)
	if len(active) == 0 {
		return defaultMaxPositionRatio, true
	}
	min := active[0].positionRatioLimit()
	for _, s := range active[1:] {
		if v := s.positionRatioLimit(); v < min {
			min = v
		}
	}
	return min, true
}

func minDailyLossLimit(strategies []StrategyConfig) (float64, bool) {
	active := activeStrategies(strategies)
	if len(active) == 0 {
		return defaultMaxDailyLoss, true
	}
	min := active[0].dailyLossLimit()
	for _, s := range active[1:] {
		if v := s.dailyLossLimit(); v < min {
			min = v
		}
	}
	return min, true
}

func activeStrategies(strategies []StrategyConfig) []StrategyConfig {
	active := make([]StrategyConfig, 0, len(strategies))
	for _, s := range strategies {
		if s.Active {
			active = append(active, s)
		}
	}
	return active
}
