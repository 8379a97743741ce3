package broker

import (
	"fmt"
	"regexp"
	"strconv"
)

// OrderRequest is the broker-specific POST body for an order placement,
// shaped per asset class. Fields are tagged for direct
// JSON marshaling by the caller.
type OrderRequest struct {
	CANO         string `json:"CANO"`
	AcntPrdtCd   string `json:"ACNT_PRDT_CD"`
	PDNO         string `json:"PDNO,omitempty"`
	ShtnPdno     string `json:"SHTN_PDNO,omitempty"`
	OrdDvsnCd    string `json:"ORD_DVSN_CD,omitempty"`
	OrdDvsn      string `json:"ORD_DVSN,omitempty"`
	SllBuyDvsnCd string `json:"SLL_BUY_DVSN_CD,omitempty"`
	OrdQty       string `json:"ORD_QTY"`
	OrdUnpr      string `json:"ORD_UNPR,omitempty"`
	OvrsExcgCd   string `json:"OVRS_EXCG_CD,omitempty"`
	OvrsOrdUnpr  string `json:"OVRS_ORD_UNPR,omitempty"`
}

// BuildOrderRequest shapes a NormalizedOrder into the broker's per-class
// POST body.
func BuildOrderRequest(o NormalizedOrder) OrderRequest {
	req := OrderRequest{
		CANO:       o.Account.AccountNumber,
		AcntPrdtCd: o.Account.AccountProduct,
		OrdQty:     strconv.Itoa(o.Quantity),
	}

	switch o.Account.Class {
	case ClassFutures:
		req.ShtnPdno = o.Symbol
		if o.Price > 0 {
			req.OrdDvsnCd = "01"
		} else {
			req.OrdDvsnCd = "02"
		}
		if o.Side == SideBuy {
			req.SllBuyDvsnCd = "02"
		} else {
			req.SllBuyDvsnCd = "01"
		}
		if o.Price > 0 {
			req.OrdUnpr = formatPrice(o.Price)
		}

	case ClassStock:
		req.PDNO = o.Symbol
		if o.Price > 0 {
			req.OrdDvsn = "00"
			req.OrdUnpr = formatPrice(o.Price)
		} else {
			req.OrdDvsn = "01"
		}

	case ClassOverseas:
		req.PDNO = o.Symbol
		req.OvrsExcgCd = ResolveOverseasExchange(o.Symbol)
		if o.Price > 0 {
			req.OvrsOrdUnpr = formatPrice(o.Price)
		}
	}

	return req
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// ComposeStockOrderID joins the broker organization code and order number
// into the canonical STOCK order id: "<org>-<odno>".
func ComposeStockOrderID(org, odno string) string {
	return fmt.Sprintf("%s-%s", org, odno)
}

// wellKnownExchange is a hand-curated table of tickers whose exchange is
// not reliably inferable from ticker shape alone.
var wellKnownExchange = map[string]string{
	"AAPL": "NASD",
	"MSFT": "NASD",
	"GOOGL": "NASD",
	"AMZN": "NASD",
	"TSLA": "NASD",
	"NVDA": "NASD",
	"META": "NASD",
	"JPM":  "NYSE",
	"BAC":  "NYSE",
	"KO":   "NYSE",
	"DIS":  "NYSE",
	"V":    "NYSE",
	"JNJ":  "NYSE",
	"BRK.A": "NYSE",
	"BRK.B": "NYSE",
}

var (
	dottedOrHyphenated = regexp.MustCompile(`[.\-]`)
	bareLetters4to5    = regexp.MustCompile(`^[A-Z]{4,5}$`)
	bareLetters1to3    = regexp.MustCompile(`^[A-Z]{1,3}$`)
)

// ResolveOverseasExchange picks OVRS_EXCG_CD for a symbol: a curated table
// of well-known tickers is checked first, then shape-based regex rules:
// dotted/hyphenated tickers go to NYSE; 4-5 bare letters go to NASD; 1-3
// bare letters go to NYSE; anything else defaults to NASD.
func ResolveOverseasExchange(symbol string) string {
	if excg, ok := wellKnownExchange[symbol]; ok {
		return excg
	}
	switch {
	case dottedOrHyphenated.MatchString(symbol):
		return "NYSE"
	case bareLetters4to5.MatchString(symbol):
		return "NASD"
	case bareLetters1to3.MatchString(symbol):
		return "NYSE"
	default:
		return "NASD"
	}
}
