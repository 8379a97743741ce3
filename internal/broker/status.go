package broker

import "strconv"

// rawStatusFields is the set of numeric/flag fields the adapter reads off a
// broker order-status response, already extracted from whichever response
// shape the endpoint returned: order-status lookups have been observed in
// two shapes — one keyed under "output1" using "tot_ccld_qty", the other
// under "output" using "ccld_qty" — callers populate whichever fields their
// shape has and leave the rest as the raw strings from the response, which
// may be empty.
type rawStatusFields struct {
	OrderID       string
	CancelFlag    string // "Y"/"N"
	CancelQty     string // cancel_confirmed_qty
	RejectedQty   string
	TotalFilledQty string
	OrderQty      string
}

// Canonicalize derives OrderStatus purely from quantity fields rather than
// broker status text, which is locale-sensitive and has been observed empty.
// Fields are compared numerically after stripping leading zeros; an
// unparsable required field yields UNKNOWN.
func Canonicalize(f rawStatusFields) OrderStatusRecord {
	rec := OrderStatusRecord{OrderID: f.OrderID}

	cancelQty, cancelQtyOK := parseNumeric(f.CancelQty)
	rejectedQty, rejectedOK := parseNumeric(f.RejectedQty)
	filledQty, filledOK := parseNumeric(f.TotalFilledQty)
	orderQty, orderOK := parseNumeric(f.OrderQty)

	rec.CancelFlag = f.CancelFlag == "Y"
	if rejectedOK {
		rec.RejectedQty = rejectedQty
	}
	if orderOK {
		rec.OrderQty = orderQty
	}
	if filledOK {
		rec.FilledQty = filledQty
	}

	switch {
	case rec.CancelFlag || (cancelQtyOK && cancelQty > 0):
		rec.Status = StatusCancelled
	case rejectedOK && rejectedQty > 0:
		rec.Status = StatusRejected
	case !filledOK || !orderOK:
		rec.Status = StatusUnknown
	case filledQty == 0:
		rec.Status = StatusPending
	case filledQty < orderQty:
		rec.Status = StatusPartialFilled
	case filledQty >= orderQty:
		rec.Status = StatusFilled
	default:
		rec.Status = StatusUnknown
	}

	return rec
}

// parseNumeric parses a broker numeric field after stripping leading zeros,
// the search key compares numerically, not lexically. An empty string is
// treated as absent, not zero.
func parseNumeric(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// statusShapeA and statusShapeB are the two observed broker response shapes
// for order-status lookups. The adapter tries A first, falling back to B if
// A's identifying field (output1) doesn't contain a matching row — whichever
// shape actually parses to a numeric match for the requested order id wins.
type statusShapeA struct {
	Output1 []struct {
		Odno         string `json:"odno"`
		CnclYn       string `json:"cncl_yn"`
		CnclCfmQty   string `json:"cncl_cfm_qty"`
		RjctQty      string `json:"rjct_qty"`
		TotCcldQty   string `json:"tot_ccld_qty"`
		OrdQty       string `json:"ord_qty"`
	} `json:"output1"`
}

type statusShapeB struct {
	Output []struct {
		Odno       string `json:"odno"`
		CnclYn     string `json:"cncl_yn"`
		CnclCfmQty string `json:"cncl_cfm_qty"`
		RjctQty    string `json:"rjct_qty"`
		CcldQty    string `json:"ccld_qty"`
		OrdQty     string `json:"ord_qty"`
	} `json:"output"`
}

// ExtractStatusFieldsFromShapeA builds rawStatusFields from the "output1"
// response shape for the given order id. Returns false if no matching row
// is found.
func ExtractStatusFieldsFromShapeA(shape statusShapeA, orderID string) (rawStatusFields, bool) {
	for _, row := range shape.Output1 {
		if numericEqual(row.Odno, orderID) {
			return rawStatusFields{
				OrderID:        row.Odno,
				CancelFlag:     row.CnclYn,
				CancelQty:      row.CnclCfmQty,
				RejectedQty:    row.RjctQty,
				TotalFilledQty: row.TotCcldQty,
				OrderQty:       row.OrdQty,
			}, true
		}
	}
	return rawStatusFields{}, false
}

// ExtractStatusFieldsFromShapeB is ExtractStatusFieldsFromShapeA's
// counterpart for the "output"/"ccld_qty" response shape.
func ExtractStatusFieldsFromShapeB(shape statusShapeB, orderID string) (rawStatusFields, bool) {
	for _, row := range shape.Output {
		if numericEqual(row.Odno, orderID) {
			return rawStatusFields{
				OrderID:        row.Odno,
				CancelFlag:     row.CnclYn,
				CancelQty:      row.CnclCfmQty,
				RejectedQty:    row.RjctQty,
				TotalFilledQty: row.CcldQty,
				OrderQty:       row.OrdQty,
			}, true
		}
	}
	return rawStatusFields{}, false
}

// numericEqual compares two order-id-like strings numerically after
// stripping leading zeros, falling back to exact string comparison if
// either side isn't numeric (order ids are sometimes alphanumeric, e.g.
// composed STOCK ids).
func numericEqual(a, b string) bool {
	an, aok := parseNumeric(a)
	bn, bok := parseNumeric(b)
	if aok && bok {
		return an == bn
	}
	return a == b
}
