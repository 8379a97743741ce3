package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/signalrouter/kisrouter/internal/tokenmgr"
)

// brokerEnvelope is the common response wrapper every KIS endpoint returns.
type brokerEnvelope struct {
	RtCd  string `json:"rt_cd"`
	MsgCd string `json:"msg_cd"`
	Msg1  string `json:"msg1"`
}

// BrokerError is surfaced for any non-success rt_cd, or HTTP-level failure.
type BrokerError struct {
	RtCd    string
	MsgCd   string
	Msg1    string
	HTTPErr error
}

func (e *BrokerError) Error() string {
	if e.HTTPErr != nil {
		return fmt.Sprintf("broker: transport error: %v", e.HTTPErr)
	}
	return fmt.Sprintf("broker: rt_cd=%s msg_cd=%s msg1=%s", e.RtCd, e.MsgCd, e.Msg1)
}

func (e *BrokerError) Unwrap() error { return e.HTTPErr }

// Adapter ties session detection, TR-ID selection, request shaping, status
// canonicalization, and response caching into the flat operation set the
// executor calls. Modeled on the teacher's internal/broker/dhan.go client
// struct shape (http.Client + base URL + auth), generalized to the
// multi-account, multi-class KIS surface.
type Adapter struct {
	tokens *tokenmgr.Manager
	client *http.Client
	logger *log.Logger
	cache  *readCache
	clock  func() time.Time
	baseURL func(isVirtual bool) string
}

// New creates an Adapter. tokens must be shared across the process so that
// token caching/refresh serialization in internal/tokenmgr applies.
func New(tokens *tokenmgr.Manager, logger *log.Logger) *Adapter {
	if logger == nil {
		logger = log.New(log.Writer(), "[broker] ", log.LstdFlags)
	}
	return &Adapter{
		tokens:  tokens,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
		cache:   newReadCache(),
		clock:   time.Now,
		baseURL: tokenmgr.BaseURL,
	}
}

// SetBaseURLForTesting overrides the base URL resolver used for broker API
// calls (as opposed to token issuance, which tokenmgr.Manager resolves
// separately). Production callers never need this; it exists so tests can
// point the adapter at an httptest server.
func (a *Adapter) SetBaseURLForTesting(fn func(isVirtual bool) string) {
	a.baseURL = fn
}

func (a *Adapter) now() time.Time { return a.clock() }

func (a *Adapter) credentials(acct AccountRef) tokenmgr.Credentials {
	return tokenmgr.Credentials{
		AccountID: acct.ID,
		AppKey:    acct.AppKey,
		AppSecret: acct.AppSecret,
		IsVirtual: acct.IsVirtual,
	}
}

// endpointPath resolves the broker path for a (class, session, action) tuple.
// Session only affects FUTURES balance/inquiry paths, which
// have distinct day/night endpoints.
func endpointPath(class AccountClass, session Session, action Action) (string, string, error) {
	switch class {
	case ClassStock:
		switch action {
		case ActionOrder:
			return http.MethodPost, "/uapi/domestic-stock/v1/trading/order-cash", nil
		case ActionCancel:
			return http.MethodPost, "/uapi/domestic-stock/v1/trading/order-rvsecncl", nil
		case ActionBalance:
			return http.MethodGet, "/uapi/domestic-stock/v1/trading/inquire-balance", nil
		case ActionInquiry:
			return http.MethodGet, "/uapi/domestic-stock/v1/trading/inquire-daily-ccld", nil
		case ActionOrderable:
			return http.MethodGet, "/uapi/domestic-stock/v1/trading/inquire-psbl-order", nil
		}
	case ClassFutures:
		switch action {
		case ActionOrder:
			return http.MethodPost, "/uapi/domestic-futureoption/v1/trading/order", nil
		case ActionCancel:
			return http.MethodPost, "/uapi/domestic-futureoption/v1/trading/order-rvsecncl", nil
		case ActionBalance:
			if session == SessionNight {
				return http.MethodGet, "/uapi/domestic-futureoption/v1/trading/inquire-ngt-balance", nil
			}
			return http.MethodGet, "/uapi/domestic-futureoption/v1/trading/inquire-balance", nil
		case ActionInquiry:
			if session == SessionNight {
				return http.MethodGet, "/uapi/domestic-futureoption/v1/trading/inquire-ngt-ccnl", nil
			}
			return http.MethodGet, "/uapi/domestic-futureoption/v1/trading/inquire-ccnl", nil
		case ActionOrderable:
			return http.MethodGet, "/uapi/domestic-futureoption/v1/trading/inquire-psbl-order", nil
		}
	case ClassOverseas:
		switch action {
		case ActionOrder:
			return http.MethodPost, "/uapi/overseas-stock/v1/trading/order", nil
		case ActionCancel:
			return http.MethodPost, "/uapi/overseas-stock/v1/trading/order-rvsecncl", nil
		case ActionBalance:
			return http.MethodGet, "/uapi/overseas-stock/v1/trading/inquire-balance", nil
		case ActionInquiry:
			return http.MethodGet, "/uapi/overseas-stock/v1/trading/inquire-nccs", nil
		case ActionOrderable:
			return "", "", fmt.Errorf("broker: overseas orderable-amount not supported")
		}
	}
	return "", "", fmt.Errorf("broker: no endpoint for class=%s action=%s", class, action)
}

// currentPricePath is the futures quotation endpoint; used only
// by GetCurrentPrice, which is FUTURES-specific sizing support.
const currentPricePath = "/uapi/domestic-futureoption/v1/quotations/inquire-price"

// do issues an authenticated call to the broker, returning the decoded JSON
// body and the envelope. The TR ID is selected from the account's class and
// virtual flag plus session/action/side; body (if non-nil) is marshaled as
// the request payload; query (if non-nil) is URL-encoded into the request URL.
func (a *Adapter) do(ctx context.Context, acct AccountRef, session Session, action Action, side OrderSide, method, path string, body any, query url.Values, out any) error {
	tok, err := a.tokens.GetToken(ctx, a.credentials(acct))
	if err != nil {
		return fmt.Errorf("broker: authenticate: %w", err)
	}

	trID, err := TRID(acct.Class, session, acct.IsVirtual, action, side)
	if err != nil {
		return err
	}

	endpoint := a.baseURL(acct.IsVirtual) + path
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("broker: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("broker: build request: %w", err)
	}
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}
	req.Header = tokenmgr.Headers(tok, acct.AppKey, acct.AppSecret, trID, "")

	resp, err := a.client.Do(req)
	if err != nil {
		return &BrokerError{HTTPErr: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &BrokerError{HTTPErr: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode >= 400 {
		return &BrokerError{HTTPErr: fmt.Errorf("http status %d: %s", resp.StatusCode, string(raw))}
	}

	var envelope brokerEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return &BrokerError{HTTPErr: fmt.Errorf("parse envelope: %w", err)}
	}
	if envelope.RtCd != "0" {
		return &BrokerError{RtCd: envelope.RtCd, MsgCd: envelope.MsgCd, Msg1: envelope.Msg1}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return &BrokerError{HTTPErr: fmt.Errorf("parse body: %w", err)}
		}
	}
	return nil
}

// PlaceOrder submits a NormalizedOrder and returns the broker-assigned order
// id. Never cached, never falls back.
func (a *Adapter) PlaceOrder(ctx context.Context, session Session, order NormalizedOrder) (OrderResponse, error) {
	method, path, err := endpointPath(order.Account.Class, session, ActionOrder)
	if err != nil {
		return OrderResponse{}, err
	}

	reqBody := BuildOrderRequest(order)

	var out struct {
		Output struct {
			ODNO   string `json:"ODNO"`
			KRXFwdg string `json:"KRX_FWDG_ORD_ORGNO"`
		} `json:"output"`
	}
	if err := a.do(ctx, order.Account, session, ActionOrder, order.Side, method, path, reqBody, nil, &out); err != nil {
		return OrderResponse{}, err
	}

	orderID := out.Output.ODNO
	if order.Account.Class == ClassStock && out.Output.KRXFwdg != "" {
		orderID = ComposeStockOrderID(out.Output.KRXFwdg, out.Output.ODNO)
	}
	return OrderResponse{OrderID: orderID, RawCode: out.Output.ODNO}, nil
}

// CancelOrder cancels a previously placed order. Never cached.
func (a *Adapter) CancelOrder(ctx context.Context, session Session, acct AccountRef, orderID string) error {
	method, path, err := endpointPath(acct.Class, session, ActionCancel)
	if err != nil {
		return err
	}
	body := map[string]string{"ORGN_ODNO": orderID, "RVSE_CNCL_DVSN_CD": "02"}
	return a.do(ctx, acct, session, ActionCancel, "", method, path, body, nil, nil)
}

// GetOrderStatus fetches and canonicalizes the status of a single order,
// trying both observed response shapes.
func (a *Adapter) GetOrderStatus(ctx context.Context, session Session, acct AccountRef, orderID string) (OrderStatusRecord, error) {
	method, path, err := endpointPath(acct.Class, session, ActionInquiry)
	if err != nil {
		return OrderStatusRecord{}, err
	}

	var raw json.RawMessage
	if err := a.do(ctx, acct, session, ActionInquiry, "", method, path, nil, nil, &raw); err != nil {
		return OrderStatusRecord{}, err
	}

	var shapeA statusShapeA
	if err := json.Unmarshal(raw, &shapeA); err == nil {
		if f, ok := ExtractStatusFieldsFromShapeA(shapeA, orderID); ok {
			return Canonicalize(f), nil
		}
	}

	var shapeB statusShapeB
	if err := json.Unmarshal(raw, &shapeB); err == nil {
		if f, ok := ExtractStatusFieldsFromShapeB(shapeB, orderID); ok {
			return Canonicalize(f), nil
		}
	}

	return OrderStatusRecord{OrderID: orderID, Status: StatusNotFound}, nil
}

// balanceResponse is the common shape of balance/positions responses across
// asset classes, enough fields to build Balance and []Position.
type balanceResponse struct {
	Output1 []struct {
		Pdno        string `json:"pdno"`
		HldgQty     string `json:"hldg_qty"`
		PchsAvgPric string `json:"pchs_avg_pric"`
		EvluAmt     string `json:"evlu_amt"`
		EvluPflsAmt string `json:"evlu_pfls_amt"`
	} `json:"output1"`
	Output2 []struct {
		DnclAmt string `json:"dnca_tot_amt"`
		TotEvlu string `json:"tot_evlu_amt"`
		RlztPl  string `json:"rlzt_pfls"`
		NowAmt  string `json:"nass_amt"`
	} `json:"output2"`
}

// GetBalance reads the account balance, using the 30s read cache with
// last-known-good fallback.
func (a *Adapter) GetBalance(ctx context.Context, session Session, acct AccountRef) Result {
	key := cacheKey(acct.ID, "balance", "")
	return a.cache.get(key, BalancePositionsTTL, Balance{}, ReadErrorFallback, func() (any, error) {
		return a.fetchBalance(ctx, session, acct)
	})
}

func (a *Adapter) fetchBalance(ctx context.Context, session Session, acct AccountRef) (Balance, error) {
	method, path, err := endpointPath(acct.Class, session, ActionBalance)
	if err != nil {
		return Balance{}, err
	}
	var resp balanceResponse
	if err := a.do(ctx, acct, session, ActionBalance, "", method, path, nil, url.Values{"CANO": {acct.AccountNumber}}, &resp); err != nil {
		return Balance{}, err
	}
	if len(resp.Output2) == 0 {
		return Balance{}, nil
	}
	row := resp.Output2[0]
	return Balance{
		TotalBalance:     parseFloatOrZero(row.NowAmt),
		AvailableCash:    parseFloatOrZero(row.DnclAmt),
		PortfolioValue:   parseFloatOrZero(row.TotEvlu),
		DailyRealizedPnL: parseFloatOrZero(row.RlztPl),
	}, nil
}

// GetPositions reads open positions, using the 30s read cache.
func (a *Adapter) GetPositions(ctx context.Context, session Session, acct AccountRef) Result {
	key := cacheKey(acct.ID, "positions", "")
	return a.cache.get(key, BalancePositionsTTL, []Position{}, ReadErrorFallback, func() (any, error) {
		return a.fetchPositions(ctx, session, acct)
	})
}

func (a *Adapter) fetchPositions(ctx context.Context, session Session, acct AccountRef) ([]Position, error) {
	method, path, err := endpointPath(acct.Class, session, ActionBalance)
	if err != nil {
		return nil, err
	}
	var resp balanceResponse
	if err := a.do(ctx, acct, session, ActionBalance, "", method, path, nil, url.Values{"CANO": {acct.AccountNumber}}, &resp); err != nil {
		return nil, err
	}
	positions := make([]Position, 0, len(resp.Output1))
	for _, row := range resp.Output1 {
		qty := parseIntOrZero(row.HldgQty)
		if qty == 0 {
			continue
		}
		positions = append(positions, Position{
			Symbol:        row.Pdno,
			Quantity:      qty,
			AvgPrice:      parseFloatOrZero(row.PchsAvgPric),
			CurrentValue:  parseFloatOrZero(row.EvluAmt),
			UnrealizedPnL: parseFloatOrZero(row.EvluPflsAmt),
		})
	}
	return positions, nil
}

// GetOrderableAmount reads the broker-computed tradeable ceiling, using the
// 10s read cache. On fetch failure it returns status "error_safe" with
// zeroed quantities — the executor treats this as "cannot trade".
func (a *Adapter) GetOrderableAmount(ctx context.Context, session Session, acct AccountRef, symbol string) Result {
	key := cacheKey(acct.ID, "orderable", symbol)
	return a.cache.get(key, OrderableTTL, OrderableAmount{}, ReadErrorSafe, func() (any, error) {
		return a.fetchOrderableAmount(ctx, session, acct, symbol)
	})
}

func (a *Adapter) fetchOrderableAmount(ctx context.Context, session Session, acct AccountRef, symbol string) (OrderableAmount, error) {
	method, path, err := endpointPath(acct.Class, session, ActionOrderable)
	if err != nil {
		return OrderableAmount{}, err
	}
	var out struct {
		Output struct {
			MaxOrdQty string `json:"max_ord_psbl_qty"`
			OrdPsblCash string `json:"ord_psbl_cash"`
		} `json:"output"`
	}
	q := url.Values{"CANO": {acct.AccountNumber}, "PDNO": {symbol}}
	if err := a.do(ctx, acct, session, ActionOrderable, "", method, path, nil, q, &out); err != nil {
		return OrderableAmount{}, err
	}
	return OrderableAmount{
		OrderableQuantity: parseIntOrZero(out.Output.MaxOrdQty),
		OrderableCash:     parseFloatOrZero(out.Output.OrdPsblCash),
	}, nil
}

// GetCurrentPrice fetches the current quoted price for a FUTURES symbol,
// used by quantity resolution's default-size sizing.
func (a *Adapter) GetCurrentPrice(ctx context.Context, session Session, acct AccountRef, symbol string) (float64, error) {
	var out struct {
		Output struct {
			Price string `json:"futs_prpr"`
		} `json:"output"`
	}
	q := url.Values{"FID_COND_MRKT_DIV_CODE": {"F"}, "FID_INPUT_ISCD": {symbol}}
	if err := a.do(ctx, acct, session, ActionInquiry, "", http.MethodGet, currentPricePath, nil, q, &out); err != nil {
		return 0, err
	}
	return parseFloatOrZero(out.Output.Price), nil
}

func parseFloatOrZero(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func parseIntOrZero(s string) int {
	n, ok := parseNumeric(s)
	if !ok {
		return 0
	}
	return n
}
