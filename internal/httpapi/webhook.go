package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/signalrouter/kisrouter/internal/executor"
)

// signalPayload is the inbound JSON body for POST /webhook.
type signalPayload struct {
	Symbol       string  `json:"symbol"`
	Action       string  `json:"action"`
	Quantity     int     `json:"quantity"`
	WebhookToken string  `json:"webhook_token"`
	Price        float64 `json:"price,omitempty"`
}

type webhookResponse struct {
	OrderID   string `json:"order_id,omitempty"`
	Filled    bool   `json:"filled"`
	Timestamp string `json:"timestamp"`
}

type errorResponse struct {
	ErrorType string `json:"error_type"`
	Reason    string `json:"reason"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload signalPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, string(executor.ErrValidation), "malformed signal body")
		return
	}

	signal := executor.Signal{
		Symbol:       payload.Symbol,
		Action:       payload.Action,
		Quantity:     payload.Quantity,
		Price:        payload.Price,
		WebhookToken: payload.WebhookToken,
		ReceivedAt:   time.Now(),
	}

	// Bound the request by the pipeline's own worst case (a REVERSE signal's
	// close-then-entry sequence), not by the server's connection-wide
	// timeouts, so a legitimately slow REVERSE still gets a written response
	// instead of a reset connection.
	ctx, cancel := context.WithTimeout(r.Context(), executor.MaxExecutionTime)
	defer cancel()

	result := s.exec.Execute(ctx, signal)
	s.events.publish(statusEvent{
		Type:          "execution",
		CorrelationID: result.CorrelationID,
		OrderID:       result.OrderID,
		Status:        result.Status,
		Success:       result.Success,
		At:            time.Now(),
	})

	if result.Error != nil {
		code, reason := classifyError(result.Error)
		writeError(w, code, string(result.Error.Type), reason)
		return
	}

	writeJSON(w, http.StatusOK, webhookResponse{
		OrderID:   result.OrderID,
		Filled:    result.Filled,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// classifyError maps an executor error to the HTTP status/reason pair per
// the propagation rules: token-unknown is 401 and inactive-account/
// -strategy is 403 even though both are validation/risk-shaped errors;
// everything else follows the error type.
func classifyError(err *executor.ExecutionError) (int, string) {
	switch err.Reason {
	case executor.ReasonUnknownToken:
		return http.StatusUnauthorized, err.Reason
	case executor.ReasonAccountInactive, executor.ReasonStrategyInactive:
		return http.StatusForbidden, err.Reason
	}

	switch err.Type {
	case executor.ErrValidation:
		return http.StatusBadRequest, err.Reason
	case executor.ErrRisk:
		return http.StatusBadRequest, err.Reason
	case executor.ErrEmergencyStop:
		return http.StatusForbidden, err.Reason
	case executor.ErrBroker, executor.ErrSystem:
		return http.StatusInternalServerError, err.Reason
	default:
		return http.StatusInternalServerError, err.Reason
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, errType, reason string) {
	writeJSON(w, status, errorResponse{ErrorType: errType, Reason: reason})
}
