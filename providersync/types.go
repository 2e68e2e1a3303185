package providersync

import (
	"time"

	"bitbucket.org/mmdatafocus/finsync_backend/models"
)

// TokenResult is the shared shape of both providers' token responses.
// TenantId is only populated by Xero (resolved via the connections-list
// call); QBO's realm id arrives on the callback query string instead.
type TokenResult struct {
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresAt  *time.Time
	RefreshTokenExpiresAt *time.Time
	TenantId              string
}

// Dataset is one full fetch of a provider's five collections, already mapped
// to canonical records (provider stamped, user id stamped at persist time).
type Dataset struct {
	Invoices  []models.Invoice
	Customers []models.Customer
	Accounts  []models.Account
	Payments  []models.Payment
	Expenses  []models.Expense
}

// dedupe drops items with an empty external id and keeps the first
// occurrence of every remaining id.
func (d *Dataset) dedupe() {
	d.Invoices = dedupeByExternalId(d.Invoices, func(r models.Invoice) string { return r.ExternalId })
	d.Customers = dedupeByExternalId(d.Customers, func(r models.Customer) string { return r.ExternalId })
	d.Accounts = dedupeByExternalId(d.Accounts, func(r models.Account) string { return r.ExternalId })
	d.Payments = dedupeByExternalId(d.Payments, func(r models.Payment) string { return r.ExternalId })
	d.Expenses = dedupeByExternalId(d.Expenses, func(r models.Expense) string { return r.ExternalId })
}

func dedupeByExternalId[T any](items []T, externalId func(T) string) []T {
	if len(items) == 0 {
		return items
	}
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, item := range items {
		id := externalId(item)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, item)
	}
	return out
}

// SyncPubSubPayload is the push-message body for system-triggered syncs.
type SyncPubSubPayload struct {
	UserId   int             `json:"user_id"`
	Provider models.Provider `json:"provider"`
}

type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type ConnectionResponse struct {
	Provider    models.Provider `json:"provider"`
	IsConnected bool            `json:"isConnected"`
	ConnectedAt *string         `json:"connectedAt"`
	LastSyncAt  *string         `json:"lastSyncAt"`
}

type SyncNowResponse struct {
	Synced  []models.Provider `json:"synced"`
	Failed  []models.Provider `json:"failed"`
	Message string            `json:"message"`
}

type SyncErrorResponse struct {
	ID        int             `json:"id"`
	Provider  models.Provider `json:"provider"`
	Context   string          `json:"context"`
	Message   string          `json:"message"`
	CreatedAt string          `json:"createdAt"`
}
