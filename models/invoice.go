package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is a canonical sales invoice pulled from a provider. The
// (user_id, provider, external_id) triple is the idempotency key; a sync run
// fully replaces all rows for its (user, provider) pair.
type Invoice struct {
	ID            int             `gorm:"primary_key" json:"id"`
	UserId        int             `gorm:"uniqueIndex:idx_invoices_user_provider_ext,priority:1;not null" json:"user_id"`
	Provider      Provider        `gorm:"uniqueIndex:idx_invoices_user_provider_ext,priority:2;size:20;not null" json:"provider"`
	ExternalId    string          `gorm:"uniqueIndex:idx_invoices_user_provider_ext,priority:3;size:128;not null" json:"external_id"`
	InvoiceNumber string          `gorm:"size:100" json:"invoice_number"`
	CustomerName  string          `gorm:"size:255" json:"customer_name"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Status        string          `gorm:"size:50" json:"status"`
	DueDate       *time.Time      `json:"due_date"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}
