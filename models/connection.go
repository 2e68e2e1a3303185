package models

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Connection is one user's link to one provider. Tokens and expiries are
// mutated by the OAuth callback, the refresh flow and MarkSynced; the row
// itself is never deleted by the sync engine.
type Connection struct {
	ID                    int        `gorm:"primary_key" json:"id"`
	UserId                int        `gorm:"uniqueIndex:idx_connections_user_provider,priority:1;not null" json:"user_id"`
	Provider              Provider   `gorm:"uniqueIndex:idx_connections_user_provider,priority:2;size:20;not null" json:"provider"`
	IsConnected           bool       `gorm:"not null;default:false" json:"is_connected"`
	ConnectedAt           *time.Time `json:"connected_at"`
	LastSyncAt            *time.Time `json:"last_sync_at"`
	AccessToken           string     `gorm:"type:text" json:"-"`
	RefreshToken          string     `gorm:"type:text" json:"-"`
	AccessTokenExpiresAt  *time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt *time.Time `json:"refresh_token_expires_at"`
	// TenantId is Xero's organisation id; RealmId is QBO's company id.
	// Exactly one is set depending on Provider.
	TenantId  string    `gorm:"size:100" json:"tenant_id"`
	RealmId   string    `gorm:"size:100" json:"realm_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetConnection returns the row for (userId, provider), or nil when the user
// has never connected that provider.
func GetConnection(ctx context.Context, db *gorm.DB, userId int, provider Provider) (*Connection, error) {
	var conn Connection
	err := db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userId, provider).
		Take(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

// ListConnectedConnections returns the user's rows with is_connected set,
// in provider order.
func ListConnectedConnections(ctx context.Context, db *gorm.DB, userId int) ([]Connection, error) {
	var conns []Connection
	err := db.WithContext(ctx).
		Where("user_id = ? AND is_connected = ?", userId, true).
		Order("provider").
		Find(&conns).Error
	return conns, err
}
