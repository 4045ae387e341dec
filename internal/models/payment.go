package models

import "time"

// Payment states. A record leaves pending only through a verified webhook.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
)

// Payment tracks one checkout session from creation to settlement.
type Payment struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	OwnerID            string     `gorm:"size:128;not null;index" json:"owner_id"`
	OrderID            string     `gorm:"size:64;not null;uniqueIndex" json:"order_id"`
	AmountCents        int64      `gorm:"not null" json:"amount_cents"`
	Currency           string     `gorm:"size:8;not null" json:"currency"`
	Status             string     `gorm:"size:16;not null" json:"status"`
	StagedEvaluationID uint       `gorm:"not null" json:"staged_evaluation_id"`
	EvaluationID       *uint      `json:"evaluation_id"`
	CreatedAt          time.Time  `json:"created_at"`
	CompletedAt        *time.Time `json:"completed_at"`
}

// IsCompleted reports whether the payment has settled.
func (p Payment) IsCompleted() bool {
	return p.Status == PaymentStatusCompleted
}
