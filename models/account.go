package models

import "time"

// Account is a canonical chart-of-accounts entry.
type Account struct {
	ID         int       `gorm:"primary_key" json:"id"`
	UserId     int       `gorm:"uniqueIndex:idx_accounts_user_provider_ext,priority:1;not null" json:"user_id"`
	Provider   Provider  `gorm:"uniqueIndex:idx_accounts_user_provider_ext,priority:2;size:20;not null" json:"provider"`
	ExternalId string    `gorm:"uniqueIndex:idx_accounts_user_provider_ext,priority:3;size:128;not null" json:"external_id"`
	Name       string    `gorm:"size:255" json:"name"`
	Type       string    `gorm:"size:100" json:"type"`
	Code       string    `gorm:"size:50" json:"code"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}
