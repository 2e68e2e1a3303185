package providersync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/finsync_backend/config"
	"bitbucket.org/mmdatafocus/finsync_backend/models"

	"github.com/sirupsen/logrus"
)

const moduleName = "providersync"

// Expiry guards. A refresh token inside its guard window is treated as dead
// without calling the provider; an access token inside its guard window is
// refreshed before any fetch so a long pagination run cannot outlive it.
const (
	accessTokenExpiryGuard  = 2 * time.Minute
	refreshTokenExpiryGuard = 1 * time.Minute
)

// Syncer runs full synchronizations for connected providers.
type Syncer struct {
	db      *gorm.DB
	logger  *logrus.Logger
	drivers map[models.Provider]Driver
}

// NewSyncer wires a driver set against a database handle. A nil db defers to
// the global connection, which comes up after the HTTP server starts.
func NewSyncer(db *gorm.DB, logger *logrus.Logger, drivers ...Driver) *Syncer {
	byProvider := make(map[models.Provider]Driver, len(drivers))
	for _, d := range drivers {
		byProvider[d.Provider()] = d
	}
	return &Syncer{db: db, logger: logger, drivers: byProvider}
}

func (s *Syncer) database() *gorm.DB {
	if s.db != nil {
		return s.db
	}
	return config.GetDB()
}

// DefaultDrivers builds the production driver set from environment config.
func DefaultDrivers() []Driver {
	return []Driver{
		NewXeroDriver(config.GetXeroOAuthOptions()),
		NewQboDriver(config.GetQboOAuthOptions()),
	}
}

func (s *Syncer) DriverFor(provider models.Provider) (Driver, bool) {
	d, ok := s.drivers[provider]
	return d, ok
}

// SyncProvider runs one full sync for the connection: token check, refresh
// if needed, full fetch, then atomic replacement of the stored records.
// Failures are logged to sync_error_logs and reported as false; the previous
// dataset stays untouched.
func (s *Syncer) SyncProvider(ctx context.Context, conn *models.Connection, userId int) bool {
	driver, ok := s.drivers[conn.Provider]
	if !ok {
		s.logFailure(ctx, userId, conn.Provider, models.SyncContextTokenCheck,
			fmt.Errorf("no driver registered for provider %s", conn.Provider), "")
		return false
	}

	if err := s.ensureValidToken(ctx, driver, conn); err != nil {
		errContext := models.SyncContextTokenRefresh
		var invalidErr *TokenInvalidError
		if errors.As(err, &invalidErr) {
			errContext = models.SyncContextTokenCheck
		}
		s.logFailure(ctx, userId, conn.Provider, errContext, err, "")
		return false
	}

	ds, err := driver.FetchDataset(ctx, conn)
	if err != nil {
		details := ""
		var fetchErr *ProviderFetchError
		if errors.As(err, &fetchErr) {
			details = fetchErr.Endpoint
		}
		s.logFailure(ctx, userId, conn.Provider, syncContext(conn.Provider), err, details)
		return false
	}
	ds.dedupe()

	if err := s.replaceProviderData(ctx, userId, conn.Provider, ds); err != nil {
		s.logFailure(ctx, userId, conn.Provider, syncContext(conn.Provider), err, "")
		return false
	}
	return true
}

// ensureValidToken refuses dead refresh tokens without touching the network,
// then refreshes the access token when it is missing, expired or inside the
// guard window. New tokens are persisted before returning, so a crash after
// refresh never strands a rotated refresh token in memory only.
func (s *Syncer) ensureValidToken(ctx context.Context, driver Driver, conn *models.Connection) error {
	if conn.AccessToken == "" || conn.RefreshToken == "" {
		return &TokenInvalidError{Reason: "stored tokens incomplete, reconnect required"}
	}
	if conn.RefreshTokenExpiresAt != nil &&
		!conn.RefreshTokenExpiresAt.After(time.Now().UTC().Add(refreshTokenExpiryGuard)) {
		return &TokenInvalidError{Reason: "refresh token expired, reconnect required"}
	}

	if conn.AccessTokenExpiresAt != nil &&
		conn.AccessTokenExpiresAt.After(time.Now().UTC().Add(accessTokenExpiryGuard)) {
		return nil
	}

	result, err := driver.RefreshAccessToken(ctx, conn.RefreshToken)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{
		"access_token":            result.AccessToken,
		"refresh_token":           result.RefreshToken,
		"access_token_expires_at": result.AccessTokenExpiresAt,
	}
	// Providers do not always restate the refresh-token lifetime; keep the
	// stored expiry when they stay silent.
	if result.RefreshTokenExpiresAt != nil {
		updates["refresh_token_expires_at"] = result.RefreshTokenExpiresAt
	}
	err = s.database().WithContext(ctx).
		Model(&models.Connection{}).
		Where("id = ?", conn.ID).
		Updates(updates).Error
	if err != nil {
		return err
	}

	conn.AccessToken = result.AccessToken
	conn.RefreshToken = result.RefreshToken
	conn.AccessTokenExpiresAt = result.AccessTokenExpiresAt
	if result.RefreshTokenExpiresAt != nil {
		conn.RefreshTokenExpiresAt = result.RefreshTokenExpiresAt
	}
	return nil
}

// replaceProviderData swaps the user's stored records for the provider in a
// single transaction. Readers see either the old dataset or the new one.
func (s *Syncer) replaceProviderData(ctx context.Context, userId int, provider models.Provider, ds *Dataset) error {
	for i := range ds.Invoices {
		ds.Invoices[i].UserId = userId
	}
	for i := range ds.Customers {
		ds.Customers[i].UserId = userId
	}
	for i := range ds.Accounts {
		ds.Accounts[i].UserId = userId
	}
	for i := range ds.Payments {
		ds.Payments[i].UserId = userId
	}
	for i := range ds.Expenses {
		ds.Expenses[i].UserId = userId
	}

	return s.database().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scope := "user_id = ? AND provider = ?"
		for _, model := range []interface{}{
			&models.Invoice{}, &models.Customer{}, &models.Account{},
			&models.Payment{}, &models.Expense{},
		} {
			if err := tx.Where(scope, userId, provider).Delete(model).Error; err != nil {
				return err
			}
		}
		if len(ds.Invoices) > 0 {
			if err := tx.CreateInBatches(ds.Invoices, insertBatchSize).Error; err != nil {
				return err
			}
		}
		if len(ds.Customers) > 0 {
			if err := tx.CreateInBatches(ds.Customers, insertBatchSize).Error; err != nil {
				return err
			}
		}
		if len(ds.Accounts) > 0 {
			if err := tx.CreateInBatches(ds.Accounts, insertBatchSize).Error; err != nil {
				return err
			}
		}
		if len(ds.Payments) > 0 {
			if err := tx.CreateInBatches(ds.Payments, insertBatchSize).Error; err != nil {
				return err
			}
		}
		if len(ds.Expenses) > 0 {
			if err := tx.CreateInBatches(ds.Expenses, insertBatchSize).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// MarkSynced stamps a successful sync time on the connection.
func (s *Syncer) MarkSynced(ctx context.Context, conn *models.Connection) error {
	now := time.Now().UTC()
	err := s.database().WithContext(ctx).
		Model(&models.Connection{}).
		Where("id = ?", conn.ID).
		Update("last_sync_at", now).Error
	if err != nil {
		return err
	}
	conn.LastSyncAt = &now
	return nil
}

// logFailure writes the audit row and the structured log. A failed audit
// insert is itself logged but never escalates.
func (s *Syncer) logFailure(ctx context.Context, userId int, provider models.Provider, errContext string, cause error, details string) {
	row := models.SyncErrorLog{
		UserId:   userId,
		Provider: provider,
		Context:  errContext,
		Message:  cause.Error(),
		Details:  details,
	}
	if err := s.database().WithContext(ctx).Create(&row).Error; err != nil {
		config.LogError(s.logger, moduleName, "logFailure", errContext, row, err)
	}
	config.LogError(s.logger, moduleName, "SyncProvider", errContext,
		map[string]interface{}{"user_id": userId, "provider": provider}, cause)
}

func syncContext(provider models.Provider) string {
	if provider == models.ProviderXero {
		return models.SyncContextXero
	}
	return models.SyncContextQbo
}
