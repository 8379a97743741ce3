package broker

import "testing"

func TestBuildOrderRequestFuturesMarket(t *testing.T) {
	o := NormalizedOrder{
		Account: AccountRef{AccountNumber: "12345678", AccountProduct: "03", Class: ClassFutures},
		Symbol:  "175W08",
		Side:    SideBuy,
		Quantity: 1,
	}
	req := BuildOrderRequest(o)
	if req.ShtnPdno != "175W08" {
		t.Fatalf("got %s", req.ShtnPdno)
	}
	if req.OrdDvsnCd != "02" {
		t.Fatalf("expected market division 02, got %s", req.OrdDvsnCd)
	}
	if req.SllBuyDvsnCd != "02" {
		t.Fatalf("expected buy division 02, got %s", req.SllBuyDvsnCd)
	}
	if req.OrdQty != "1" {
		t.Fatalf("got %s", req.OrdQty)
	}
}

func TestBuildOrderRequestFuturesLimitSell(t *testing.T) {
	o := NormalizedOrder{
		Account:  AccountRef{Class: ClassFutures},
		Symbol:   "175W08",
		Side:     SideSell,
		Quantity: 2,
		Price:    1350.5,
	}
	req := BuildOrderRequest(o)
	if req.OrdDvsnCd != "01" {
		t.Fatalf("expected limit division 01, got %s", req.OrdDvsnCd)
	}
	if req.SllBuyDvsnCd != "01" {
		t.Fatalf("expected sell division 01, got %s", req.SllBuyDvsnCd)
	}
	if req.OrdUnpr != "1350.5" {
		t.Fatalf("got %s", req.OrdUnpr)
	}
}

func TestBuildOrderRequestStockMarketVsLimit(t *testing.T) {
	market := BuildOrderRequest(NormalizedOrder{Account: AccountRef{Class: ClassStock}, Symbol: "005930", Quantity: 10})
	if market.OrdDvsn != "01" {
		t.Fatalf("expected market division 01, got %s", market.OrdDvsn)
	}

	limit := BuildOrderRequest(NormalizedOrder{Account: AccountRef{Class: ClassStock}, Symbol: "005930", Quantity: 10, Price: 71000})
	if limit.OrdDvsn != "00" {
		t.Fatalf("expected limit division 00, got %s", limit.OrdDvsn)
	}
	if limit.OrdUnpr != "71000" {
		t.Fatalf("got %s", limit.OrdUnpr)
	}
}

func TestComposeStockOrderID(t *testing.T) {
	if got := ComposeStockOrderID("91252", "0000123"); got != "91252-0000123" {
		t.Fatalf("got %s", got)
	}
}

func TestResolveOverseasExchangeWellKnown(t *testing.T) {
	if got := ResolveOverseasExchange("AAPL"); got != "NASD" {
		t.Fatalf("got %s", got)
	}
	if got := ResolveOverseasExchange("JPM"); got != "NYSE" {
		t.Fatalf("got %s", got)
	}
}

func TestResolveOverseasExchangeDottedHyphenated(t *testing.T) {
	if got := ResolveOverseasExchange("RDS.A"); got != "NYSE" {
		t.Fatalf("got %s", got)
	}
	if got := ResolveOverseasExchange("BF-B"); got != "NYSE" {
		t.Fatalf("got %s", got)
	}
}

func TestResolveOverseasExchangeBareLetterRules(t *testing.T) {
	if got := ResolveOverseasExchange("ABCD"); got != "NASD" {
		t.Fatalf("expected 4-letter NASD, got %s", got)
	}
	if got := ResolveOverseasExchange("ABCDE"); got != "NASD" {
		t.Fatalf("expected 5-letter NASD, got %s", got)
	}
	if got := ResolveOverseasExchange("XOM"); got != "NYSE" {
		t.Fatalf("expected 3-letter NYSE, got %s", got)
	}
}

func TestResolveOverseasExchangeDefault(t *testing.T) {
	if got := ResolveOverseasExchange("ABCDEF"); got != "NASD" {
		t.Fatalf("expected default NASD for 6-letter unknown symbol, got %s", got)
	}
}
