package models

import "time"

// Sync failure context tags. Each names the phase that failed.
const (
	SyncContextTokenCheck   = "TokenCheck"
	SyncContextTokenRefresh = "TokenRefresh"
	SyncContextXero         = "SyncXero"
	SyncContextQbo          = "SyncQbo"
)

// SyncErrorLog is an append-only audit row written on every handled sync
// failure. Never mutated or deleted by the engine.
type SyncErrorLog struct {
	ID        int       `gorm:"primary_key" json:"id"`
	UserId    int       `gorm:"index;not null" json:"user_id"`
	Provider  Provider  `gorm:"index;size:20;not null" json:"provider"`
	Context   string    `gorm:"size:50;not null" json:"context"`
	Message   string    `gorm:"type:text" json:"message"`
	Details   string    `gorm:"type:text" json:"details"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
