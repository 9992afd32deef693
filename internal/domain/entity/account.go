package entity

import "time"

// ChartOfAccountsEntry is one line of a client's chart of accounts.
// The pipeline only ever counts these: a user with zero entries is not
// allowed to upload bookkeeping documents.
type ChartOfAccountsEntry struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"not null;type:uuid;index" json:"user_id"`
	Code      string    `gorm:"not null" json:"code"`
	Name      string    `gorm:"not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
