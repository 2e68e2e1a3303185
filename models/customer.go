package models

import "time"

// Customer is a canonical contact/customer record.
type Customer struct {
	ID         int       `gorm:"primary_key" json:"id"`
	UserId     int       `gorm:"uniqueIndex:idx_customers_user_provider_ext,priority:1;not null" json:"user_id"`
	Provider   Provider  `gorm:"uniqueIndex:idx_customers_user_provider_ext,priority:2;size:20;not null" json:"provider"`
	ExternalId string    `gorm:"uniqueIndex:idx_customers_user_provider_ext,priority:3;size:128;not null" json:"external_id"`
	Name       string    `gorm:"size:255" json:"name"`
	Email      string    `gorm:"size:255" json:"email"`
	Phone      string    `gorm:"size:50" json:"phone"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}
