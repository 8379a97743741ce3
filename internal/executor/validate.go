package executor

import "strings"

// ValidateSignal checks the fields required before routing. It normalizes
// symbol/action/token in place and returns a validation error if any
// constraint is violated.
func ValidateSignal(s *Signal) *ExecutionError {
	s.Symbol = strings.ToUpper(strings.TrimSpace(s.Symbol))
	s.Action = strings.ToUpper(strings.TrimSpace(s.Action))
	s.WebhookToken = strings.TrimSpace(s.WebhookToken)

	if s.Symbol == "" {
		return &ExecutionError{Type: ErrValidation, Reason: "symbol is required"}
	}
	if s.WebhookToken == "" {
		return &ExecutionError{Type: ErrValidation, Reason: "webhook_token is required"}
	}
	if s.Action != "BUY" && s.Action != "SELL" {
		return &ExecutionError{Type: ErrValidation, Reason: "action must be BUY or SELL"}
	}
	if s.Quantity < -1 {
		return &ExecutionError{Type: ErrValidation, Reason: "quantity must be an integer >= -1"}
	}
	return nil
}
