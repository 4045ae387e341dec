package models

import "time"

// User is the profile stored for an authenticated identity. The primary key is
// the subject issued by the identity provider, not a local sequence.
type User struct {
	ID        string    `gorm:"primaryKey;size:128" json:"id"`
	FirstName string    `gorm:"size:100;not null" json:"first_name"`
	LastName  string    `gorm:"size:100;not null" json:"last_name"`
	Email     string    `gorm:"size:255;not null;index" json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
