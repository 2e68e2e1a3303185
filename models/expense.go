package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is a canonical money-out record. It is the union of two provider
// concepts: Xero SPEND bank transactions + ACCPAY invoices, QBO Purchases + Bills.
type Expense struct {
	ID          int             `gorm:"primary_key" json:"id"`
	UserId      int             `gorm:"uniqueIndex:idx_expenses_user_provider_ext,priority:1;not null" json:"user_id"`
	Provider    Provider        `gorm:"uniqueIndex:idx_expenses_user_provider_ext,priority:2;size:20;not null" json:"provider"`
	ExternalId  string          `gorm:"uniqueIndex:idx_expenses_user_provider_ext,priority:3;size:128;not null" json:"external_id"`
	Date        *time.Time      `json:"date"`
	Description string          `gorm:"size:500" json:"description"`
	VendorName  string          `gorm:"size:255" json:"vendor_name"`
	Category    string          `gorm:"size:255" json:"category"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Status      string          `gorm:"size:50" json:"status"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}
