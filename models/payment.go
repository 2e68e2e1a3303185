package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is a canonical received-payment record. Optional provider fields
// fall back to "-" / "Unknown" at mapping time, never here.
type Payment struct {
	ID            int             `gorm:"primary_key" json:"id"`
	UserId        int             `gorm:"uniqueIndex:idx_payments_user_provider_ext,priority:1;not null" json:"user_id"`
	Provider      Provider        `gorm:"uniqueIndex:idx_payments_user_provider_ext,priority:2;size:20;not null" json:"provider"`
	ExternalId    string          `gorm:"uniqueIndex:idx_payments_user_provider_ext,priority:3;size:128;not null" json:"external_id"`
	Date          *time.Time      `json:"date"`
	CustomerName  string          `gorm:"size:255" json:"customer_name"`
	InvoiceNumber string          `gorm:"size:100" json:"invoice_number"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Method        string          `gorm:"size:100" json:"method"`
	Reference     string          `gorm:"size:255" json:"reference"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}
