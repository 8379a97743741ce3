package executor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/signalrouter/kisrouter/internal/broker"
	"github.com/signalrouter/kisrouter/internal/credstore"
)

// Fill-wait timeouts and poll cadence.
const (
	fillWaitDefault  = 30 * time.Second
	fillWaitCloseLeg = 120 * time.Second
	fillPollSleep    = 1 * time.Second
	fillPollInterval = 4 * time.Second
)

// MaxExecutionTime bounds the slowest possible Execute call: a REVERSE
// signal's close leg (fillWaitCloseLeg) followed by its entry leg
// (fillWaitDefault), plus headroom for the surrounding broker calls. HTTP
// surfaces calling Execute should size any request deadline against this,
// not against a shorter, connection-wide write timeout — a REVERSE taking
// the full ~150s is a legitimate outcome, not a hang.
const MaxExecutionTime = fillWaitCloseLeg + fillWaitDefault + 20*time.Second

// StrategyLookup resolves the strategies attached to an account. Kept as a
// function type so the executor doesn't need to know how strategy metadata
// is stored (flat file, embedded in the accounts blob, etc).
type StrategyLookup func(accountID string) []StrategyConfig

// AuditSink receives a fire-and-forget record of each execution outcome.
// Nil is a valid value — the executor treats a nil sink as "no audit log".
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditEntry is what gets handed to AuditSink.Record after execute()
// finishes.
type AuditEntry struct {
	CorrelationID string
	AccountID     string
	Signal        Signal
	Result        ExecutionResult
	At            time.Time
}

// Executor is the signal execution pipeline's orchestrator.
type Executor struct {
	Store      *credstore.Store
	Broker     *broker.Adapter
	Emergency  *EmergencyStop
	Strategies StrategyLookup
	Audit      AuditSink
	Logger     *log.Logger
	Clock      func() time.Time
}

// New creates an Executor. strategies/audit may be nil.
func New(store *credstore.Store, brokerAdapter *broker.Adapter, strategies StrategyLookup, audit AuditSink, logger *log.Logger) *Executor {
	if logger == nil {
		logger = log.New(log.Writer(), "[executor] ", log.LstdFlags)
	}
	if strategies == nil {
		strategies = func(string) []StrategyConfig { return nil }
	}
	return &Executor{
		Store:      store,
		Broker:     brokerAdapter,
		Emergency:  &EmergencyStop{},
		Strategies: strategies,
		Audit:      audit,
		Logger:     logger,
		Clock:      time.Now,
	}
}

// Execute runs the full pipeline for one signal (Stages 1-10).
func (ex *Executor) Execute(ctx context.Context, signal Signal) ExecutionResult {
	correlationID := uuid.NewString()
	result := ex.execute(ctx, signal, correlationID)
	result.CorrelationID = correlationID

	if ex.Audit != nil {
		ex.Audit.Record(ctx, AuditEntry{
			CorrelationID: correlationID,
			AccountID:     result.AccountID,
			Signal:        signal,
			Result:        result,
			At:            ex.Clock(),
		})
	}
	return result
}

func (ex *Executor) execute(ctx context.Context, signal Signal, correlationID string) (result ExecutionResult) {
	// Stage 1 — emergency gate.
	if ex.Emergency.IsStopped() {
		return failResult(&ExecutionError{Type: ErrEmergencyStop, Reason: ex.Emergency.Reason()})
	}

	// Stage 2 — validation.
	if err := ValidateSignal(&signal); err != nil {
		return failResult(err)
	}

	// Stage 3 — routing.
	account, err := ex.Store.LoadByToken(signal.WebhookToken)
	if err != nil {
		return failResult(&ExecutionError{Type: ErrValidation, Reason: ReasonUnknownToken, Err: err})
	}
	defer func() { result.AccountID = account.ID }()
	if !account.IsActive {
		return failResult(&ExecutionError{Type: ErrRisk, Reason: ReasonAccountInactive})
	}
	strategies := ex.Strategies(account.ID)
	if hasInactiveOnlyStrategy(strategies) {
		return failResult(&ExecutionError{Type: ErrRisk, Reason: ReasonStrategyInactive})
	}

	acctRef := toAccountRef(account)
	isFutures := acctRef.Class == broker.ClassFutures
	session := broker.DetectSession(ex.Clock())

	// Stage 4 — symbol translation.
	symbol := signal.Symbol
	if isFutures {
		symbol = broker.TranslateFuturesSymbol(signal.Symbol, ex.Clock())
	}

	// Stage 5 — current position.
	posResult := ex.Broker.GetPositions(ctx, session, acctRef)
	currentQty := positionQuantity(posResult, symbol)

	// Stage 6 — quantity resolution.
	resolvedQty, qtyErr := ex.ResolveQuantityForSignal(ctx, session, acctRef, symbol, signal, currentQty, isFutures)
	if qtyErr != nil {
		return failResult(qtyErr)
	}

	// Stage 7 — transition inference.
	transition := InferTransition(currentQty, resolvedQty, signal.Action)

	// Stage 8 — risk gate.
	balanceResult := ex.Broker.GetBalance(ctx, session, acctRef)
	balance, _ := balanceResult.Value.(broker.Balance)
	estimatedNotional := estimateNotional(signal, resolvedQty, isFutures)
	if err := CheckRisk(RiskInput{
		AccountActive:     account.IsActive,
		Strategies:        strategies,
		EstimatedNotional: estimatedNotional,
		Balance:           balance,
		BalanceStatus:     balanceResult.Status,
		PortfolioValue:    balance.PortfolioValue,
	}); err != nil {
		return failResult(err)
	}

	order := broker.NormalizedOrder{
		Account:        acctRef,
		Symbol:         symbol,
		OriginalSymbol: signal.Symbol,
		Side:           broker.OrderSide(signal.Action),
		Quantity:       resolvedQty,
		Price:          signal.Price,
		Transition:     transition,
		CorrelationID:  correlationID,
	}

	// Stage 9 & 10 — placement and fill wait.
	return ex.place(ctx, session, order, currentQty)
}

func failResult(err *ExecutionError) ExecutionResult {
	return ExecutionResult{Success: false, Error: err}
}

func hasInactiveOnlyStrategy(strategies []StrategyConfig) bool {
	if len(strategies) == 0 {
		return false
	}
	for _, s := range strategies {
		if s.Active {
			return false
		}
	}
	return true
}

func toAccountRef(a credstore.Account) broker.AccountRef {
	return broker.AccountRef{
		ID:             a.ID,
		AppKey:         a.AppKey,
		AppSecret:      a.AppSecret,
		AccountNumber:  a.AccountNumber,
		AccountProduct: a.AccountProduct,
		Class:          broker.AccountClass(a.Class),
		IsVirtual:      a.IsVirtual,
	}
}

func positionQuantity(r broker.Result, symbol string) int {
	positions, _ := r.Value.([]broker.Position)
	for _, p := range positions {
		if p.Symbol == symbol {
			return p.Quantity
		}
	}
	return 0
}

// ResolveQuantityForSignal wires ResolveQuantity's default-size callback to
// the broker's current-price/orderable-amount reads.
func (ex *Executor) ResolveQuantityForSignal(ctx context.Context, session broker.Session, acct broker.AccountRef, symbol string, signal Signal, currentQty int, isFutures bool) (int, *ExecutionError) {
	defaultSize := func() (int, error) {
		if isFutures {
			price, err := ex.Broker.GetCurrentPrice(ctx, session, acct, symbol)
			if err != nil {
				return 0, fmt.Errorf("fetch current price: %w", err)
			}
			balanceResult := ex.Broker.GetBalance(ctx, session, acct)
			balance, _ := balanceResult.Value.(broker.Balance)
			return DefaultFuturesSize(balance.TotalBalance, 1.0, defaultMaxPositionRatio, price, broker.Multiplier(signal.Symbol))
		}
		orderableResult := ex.Broker.GetOrderableAmount(ctx, session, acct, symbol)
		orderable, _ := orderableResult.Value.(broker.OrderableAmount)
		if orderableResult.Status == broker.ReadErrorSafe {
			return 0, fmt.Errorf("orderable amount unavailable")
		}
		return DefaultNonFuturesSize(orderable.OrderableQuantity), nil
	}
	return ResolveQuantity(signal.Action, currentQty, signal.Quantity, isFutures, defaultSize)
}

func estimateNotional(signal Signal, qty int, isFutures bool) float64 {
	price := signal.Price
	if price <= 0 {
		return 0
	}
	multiplier := 1
	if isFutures {
		multiplier = broker.Multiplier(signal.Symbol)
	}
	return price * float64(qty) * float64(multiplier)
}
