package dto

import (
	"encoding/json"
	"time"
)

// SaveEvaluationRequest persists a completed evaluation run. The PRD text is
// fingerprinted server side and never stored verbatim.
type SaveEvaluationRequest struct {
	PRDTitle    string          `json:"prd_title" validate:"required,max=255"`
	PRDText     string          `json:"prd_text" validate:"required,min=100"`
	BinaryScore json.RawMessage `json:"binary_score" validate:"required"`
	FixPlan     json.RawMessage `json:"fix_plan,omitempty"`
	AgentTasks  json.RawMessage `json:"agent_tasks,omitempty"`
	IsPaid      bool            `json:"is_paid"`
}

// EvaluationResponse is the full saved-evaluation payload returned on get.
type EvaluationResponse struct {
	ID          uint            `json:"id"`
	PRDTitle    string          `json:"prd_title"`
	Fingerprint string          `json:"fingerprint"`
	BinaryScore json.RawMessage `json:"binary_score"`
	FixPlan     json.RawMessage `json:"fix_plan,omitempty"`
	AgentTasks  json.RawMessage `json:"agent_tasks,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// EvaluationSummary omits the result payloads for listing.
type EvaluationSummary struct {
	ID          uint      `json:"id"`
	PRDTitle    string    `json:"prd_title"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
}
