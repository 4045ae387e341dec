package models

import (
	"time"

	"gorm.io/datatypes"
)

// Evaluation is a saved PRD evaluation. Only the SHA-256 fingerprint of the
// document text is stored; the raw text never reaches the database.
type Evaluation struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	OwnerID        string         `gorm:"size:128;not null;uniqueIndex:idx_evaluations_owner_fingerprint" json:"owner_id"`
	PRDTitle       string         `gorm:"size:255" json:"prd_title"`
	PRDFingerprint string         `gorm:"size:64;not null;uniqueIndex:idx_evaluations_owner_fingerprint" json:"prd_fingerprint"`
	BinaryScore    datatypes.JSON `json:"binary_score"`
	FixPlan        datatypes.JSON `json:"fix_plan"`
	AgentTasks     datatypes.JSON `json:"agent_tasks"`
	Paid           bool           `gorm:"not null" json:"is_paid"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// StagedEvaluation holds evaluation results between checkout and the payment
// webhook. Rows are promoted into Evaluation on settlement and deleted.
type StagedEvaluation struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	OwnerID        string         `gorm:"size:128;not null;index" json:"owner_id"`
	PRDTitle       string         `gorm:"size:255" json:"prd_title"`
	PRDFingerprint string         `gorm:"size:64;not null" json:"prd_fingerprint"`
	BinaryScore    datatypes.JSON `json:"binary_score"`
	FixPlan        datatypes.JSON `json:"fix_plan"`
	AgentTasks     datatypes.JSON `json:"agent_tasks"`
	CreatedAt      time.Time      `json:"created_at"`
}
