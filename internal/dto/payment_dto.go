package dto

import "encoding/json"

// CreateCheckoutRequest stages an evaluation result and opens a payment
// session for it. The staged payloads are promoted to a saved evaluation
// once the gateway reports settlement.
type CreateCheckoutRequest struct {
	PRDTitle    string          `json:"prd_title" validate:"required,max=255"`
	PRDText     string          `json:"prd_text" validate:"required,min=100"`
	BinaryScore json.RawMessage `json:"binary_score" validate:"required"`
	FixPlan     json.RawMessage `json:"fix_plan,omitempty"`
	AgentTasks  json.RawMessage `json:"agent_tasks,omitempty"`
}

// CheckoutResponse carries the gateway redirect for the client.
type CheckoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id"`
}

// PaymentNotification is the gateway webhook body. Only the fields that
// participate in signature verification and settlement are bound.
type PaymentNotification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
}
