package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/signalrouter/kisrouter/internal/broker"
	"github.com/signalrouter/kisrouter/internal/credstore"
	"github.com/signalrouter/kisrouter/internal/tokenmgr"
)

// testWebhookToken belongs to the single account newTestStore builds for every
// pipeline test: a real (non-virtual) FUTURES account, so PlaceOrder's returned order id is
// the bare broker-assigned ODNO (no STOCK compose-with-org prefix), letting
// the status-lookup mock match it directly by id.
const testWebhookToken = "tok-abc"

func newTestStore(t *testing.T) *credstore.Store {
	t.Helper()
	accounts := []credstore.Account{{
		ID:             "acc1",
		WebhookToken:   testWebhookToken,
		AppKey:         "key",
		AppSecret:      "secret",
		AccountNumber:  "12345678",
		AccountProduct: "03",
		AccountType:    "FUTURES",
		IsVirtual:      false,
		IsActive:       true,
	}}
	raw, err := json.Marshal(accounts)
	if err != nil {
		t.Fatalf("marshal accounts: %v", err)
	}
	store, err := credstore.New(raw, nil)
	if err != nil {
		t.Fatalf("credstore.New: %v", err)
	}
	return store
}

// newTestExecutor wires a real broker.Adapter at an httptest server (same
// pattern as internal/broker/adapter_test.go's newTestAdapter) behind an
// Executor, so Execute drives the full Stage 1-10 pipeline over HTTP instead
// of a mocked broker interface.
func newTestExecutor(t *testing.T, mux http.Handler, clock func() time.Time) (*Executor, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(mux)

	tokens := tokenmgr.New(nil)
	tokens.SetBaseURLForTesting(func(bool) string { return srv.URL })

	adapter := broker.New(tokens, nil)
	adapter.SetBaseURLForTesting(func(bool) string { return srv.URL })

	store := newTestStore(t)
	ex := New(store, adapter, nil, nil, nil)
	if clock != nil {
		ex.Clock = clock
	}
	return ex, srv
}

func tokenHandler(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(map[string]string{
		"access_token":               "tok-1",
		"access_token_token_expired": time.Now().Add(time.Hour).Format("2006-01-02 15:04:05"),
	})
}

// constantClock returns a fixed weekday, daytime-session wallclock every
// call, for tests where fill-wait never needs to hit its deadline.
func constantClock() func() time.Time {
	t := time.Date(2024, time.January, 10, 10, 0, 0, 0, broker.KST) // Wednesday, DAY session
	return func() time.Time { return t }
}

func TestExecutePipeline_HappyPathEntryBuy(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/tokenP", tokenHandler)
	mux.HandleFunc("/uapi/domestic-futureoption/v1/trading/inquire-balance", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"rt_cd": "0", "msg_cd": "0", "msg1": "ok",
			"output1": []map[string]string{},
			"output2": []map[string]string{
				{"dnca_tot_amt": "1000", "tot_evlu_amt": "100000", "rlzt_pfls": "0", "nass_amt": "100000"},
			},
		})
	})
	mux.HandleFunc("/uapi/domestic-futureoption/v1/trading/order", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"rt_cd": "0", "msg_cd": "0", "msg1": "ok",
			"output": map[string]string{"ODNO": "5001"},
		})
	})
	mux.HandleFunc("/uapi/domestic-futureoption/v1/trading/inquire-ccnl", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"rt_cd": "0", "msg_cd": "0", "msg1": "ok",
			"output1": []map[string]string{
				{"odno": "5001", "cncl_yn": "N", "cncl_cfm_qty": "0", "rjct_qty": "0", "tot_ccld_qty": "5", "ord_qty": "5"},
			},
		})
	})

	ex, srv := newTestExecutor(t, mux, constantClock())
	defer srv.Close()

	result := ex.Execute(context.Background(), Signal{
		Symbol:       "TESTFUT",
		Action:       "BUY",
		Quantity:     5,
		Price:        0,
		WebhookToken: testWebhookToken,
		ReceivedAt:   time.Now(),
	})

	if !result.Success || !result.Filled {
		t.Fatalf("expected a filled successful entry, got %+v (err=%v)", result, result.Error)
	}
	if result.OrderID != "5001" {
		t.Fatalf("expected order id 5001, got %q", result.OrderID)
	}
	if result.Status != string(broker.StatusFilled) {
		t.Fatalf("expected FILLED status, got %q", result.Status)
	}
	if result.AccountID != "acc1" {
		t.Fatalf("expected account id acc1, got %q", result.AccountID)
	}
}

func TestExecutePipeline_UnknownWebhookToken(t *testing.T) {
	mux := http.NewServeMux()
	ex, srv := newTestExecutor(t, mux, constantClock())
	defer srv.Close()

	result := ex.Execute(context.Background(), Signal{
		Symbol:       "TESTFUT",
		Action:       "BUY",
		Quantity:     5,
		WebhookToken: "not-a-real-token",
	})

	if result.Success {
		t.Fatalf("expected failure for unknown token, got %+v", result)
	}
	if result.Error == nil || result.Error.Reason != ReasonUnknownToken {
		t.Fatalf("expected unknown-token error, got %+v", result.Error)
	}
}

// reverseMux builds the broker mock shared by the REVERSE scenarios: an
// existing long position of 10 contracts, and an order endpoint returning
// 6001 for the first placement and 6002 after. statusHandler serves the
// order-status endpoint, so each test chooses whether the legs fill (the
// close-leg-timeout test passes one that never reports a terminal state).
func reverseMux(t *testing.T, statusHandler http.HandlerFunc) (http.Handler, *int) {
	t.Helper()
	orderCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/tokenP", tokenHandler)
	mux.HandleFunc("/uapi/domestic-futureoption/v1/trading/inquire-balance", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"rt_cd": "0", "msg_cd": "0", "msg1": "ok",
			"output1": []map[string]string{
				{"pdno": "TESTFUT", "hldg_qty": "10", "pchs_avg_pric": "100", "evlu_amt": "1000", "evlu_pfls_amt": "0"},
			},
			"output2": []map[string]string{
				{"dnca_tot_amt": "1000", "tot_evlu_amt": "100000", "rlzt_pfls": "0", "nass_amt": "100000"},
			},
		})
	})
	mux.HandleFunc("/uapi/domestic-futureoption/v1/trading/order", func(w http.ResponseWriter, r *http.Request) {
		orderCalls++
		odno := "6001"
		if orderCalls > 1 {
			odno = "6002"
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"rt_cd": "0", "msg_cd": "0", "msg1": "ok",
			"output": map[string]string{"ODNO": odno},
		})
	})
	mux.HandleFunc("/uapi/domestic-futureoption/v1/trading/inquire-ccnl", statusHandler)
	return mux, &orderCalls
}

func TestExecutePipeline_ReverseSuccess(t *testing.T) {
	statusHandler := func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"rt_cd": "0", "msg_cd": "0", "msg1": "ok",
			"output1": []map[string]string{
				{"odno": "6001", "cncl_yn": "N", "cncl_cfm_qty": "0", "rjct_qty": "0", "tot_ccld_qty": "10", "ord_qty": "10"},
				{"odno": "6002", "cncl_yn": "N", "cncl_cfm_qty": "0", "rjct_qty": "0", "tot_ccld_qty": "15", "ord_qty": "15"},
			},
		})
	}
	mux, orderCalls := reverseMux(t, statusHandler)

	ex, srv := newTestExecutor(t, mux, constantClock())
	defer srv.Close()

	result := ex.Execute(context.Background(), Signal{
		Symbol:       "TESTFUT",
		Action:       "SELL",
		Quantity:     15,
		Price:        0,
		WebhookToken: testWebhookToken,
	})

	if !result.Success || !result.Filled {
		t.Fatalf("expected successful filled reverse, got %+v (err=%v)", result, result.Error)
	}
	if result.CloseOrderID != "6001" {
		t.Fatalf("expected close leg order id 6001, got %q", result.CloseOrderID)
	}
	if result.OrderID != "6002" {
		t.Fatalf("expected entry leg order id 6002, got %q", result.OrderID)
	}
	if *orderCalls != 2 {
		t.Fatalf("expected exactly two order placements (close + entry), got %d", *orderCalls)
	}
}

func TestExecutePipeline_ReverseCloseLegTimeoutSkipsEntry(t *testing.T) {
	statusHandler := func(w http.ResponseWriter, r *http.Request) {
		// The close leg (6001) never reaches a terminal state.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"rt_cd": "0", "msg_cd": "0", "msg1": "ok",
			"output1": []map[string]string{
				{"odno": "6001", "cncl_yn": "N", "cncl_cfm_qty": "0", "rjct_qty": "0", "tot_ccld_qty": "0", "ord_qty": "10"},
			},
		})
	}
	mux, orderCalls := reverseMux(t, statusHandler)

	baseTime := time.Date(2024, time.January, 10, 10, 0, 0, 0, broker.KST)
	calls := 0
	// The first three Clock() calls (session detect, futures symbol
	// translation, the close leg's fill-wait deadline calculation) see
	// baseTime; every call after that — the fill-wait loop's repeated
	// "has the deadline passed" check — sees a time safely past
	// fillWaitCloseLeg, so the loop gives up on its very first iteration
	// instead of actually sleeping out the full 120s timeout.
	clock := func() time.Time {
		calls++
		if calls <= 3 {
			return baseTime
		}
		return baseTime.Add(200 * time.Second)
	}

	ex, srv := newTestExecutor(t, mux, clock)
	defer srv.Close()

	result := ex.Execute(context.Background(), Signal{
		Symbol:       "TESTFUT",
		Action:       "SELL",
		Quantity:     15,
		Price:        0,
		WebhookToken: testWebhookToken,
	})

	if result.Success {
		t.Fatalf("expected failure when the close leg doesn't fill, got %+v", result)
	}
	if result.Filled {
		t.Fatalf("expected Filled=false when the close leg doesn't fill")
	}
	if result.CloseOrderID != "6001" {
		t.Fatalf("expected close leg order id recorded even on failure, got %q", result.CloseOrderID)
	}
	if result.OrderID != "" {
		t.Fatalf("expected no entry leg order id, got %q", result.OrderID)
	}
	if result.Error == nil || result.Error.Type != ErrBroker {
		t.Fatalf("expected a broker-typed error, got %+v", result.Error)
	}
	if *orderCalls != 1 {
		t.Fatalf("expected the entry leg to never be placed (P7), got %d order placements", *orderCalls)
	}
}
