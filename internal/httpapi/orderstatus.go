package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/signalrouter/kisrouter/internal/broker"
	"github.com/signalrouter/kisrouter/internal/credstore"
)

type orderStatusResponse struct {
	OrderID     string `json:"order_id"`
	Status      string `json:"status"`
	FilledQty   int    `json:"filled_qty"`
	OrderQty    int    `json:"order_qty"`
	RejectedQty int    `json:"rejected_qty"`
	Cancelled   bool   `json:"cancelled"`
}

// handleOrderStatus serves GET /order/{order_id}?account_id=....
func (s *Server) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	orderID := strings.TrimPrefix(r.URL.Path, "/order/")
	accountID := r.URL.Query().Get("account_id")
	if orderID == "" || accountID == "" {
		writeError(w, http.StatusBadRequest, "validation", "order_id and account_id are required")
		return
	}

	account, err := s.store.LoadByID(accountID)
	if err != nil {
		writeError(w, http.StatusNotFound, "validation", "unknown account_id")
		return
	}

	acctRef := toAccountRef(account)
	session := broker.DetectSession(time.Now())

	rec, err := s.brokerAd.GetOrderStatus(r.Context(), session, acctRef, orderID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "broker", err.Error())
		return
	}
	if rec.Status == broker.StatusNotFound {
		writeError(w, http.StatusNotFound, "validation", "order not found")
		return
	}

	writeJSON(w, http.StatusOK, orderStatusResponse{
		OrderID:     rec.OrderID,
		Status:      string(rec.Status),
		FilledQty:   rec.FilledQty,
		OrderQty:    rec.OrderQty,
		RejectedQty: rec.RejectedQty,
		Cancelled:   rec.CancelFlag,
	})
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
