package providersync

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/finsync_backend/config"
	"bitbucket.org/mmdatafocus/finsync_backend/models"
	"bitbucket.org/mmdatafocus/finsync_backend/utils"
)

const (
	oauthStatePrefix = "OAuthState:"
	oauthStateTTL    = 10 * time.Minute
	userCachePrefix  = "User:"
	userCacheTTL     = 30 * time.Minute

	syncErrorListLimit = 50
)

// Handlers serves the provider-connection HTTP surface.
type Handlers struct {
	db     *gorm.DB
	syncer *Syncer
}

// NewHandlers accepts a nil db in production; lookups then go through the
// global connection once it is up.
func NewHandlers(db *gorm.DB, syncer *Syncer) *Handlers {
	return &Handlers{db: db, syncer: syncer}
}

func (h *Handlers) database() *gorm.DB {
	if h.db != nil {
		return h.db
	}
	return config.GetDB()
}

// resolveUserId maps the session username to the user row id, caching the
// lookup in redis.
func (h *Handlers) resolveUserId(c *gin.Context) (int, bool) {
	username, ok := utils.GetUsernameFromContext(c.Request.Context())
	if !ok || username == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return 0, false
	}

	var cached models.User
	if found, err := config.GetRedisObject(userCachePrefix+username, &cached); err == nil && found {
		return cached.ID, true
	}

	var user models.User
	err := h.database().WithContext(c.Request.Context()).
		Where("username = ?", username).
		Take(&user).Error
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return 0, false
	}
	_ = config.SetRedisObject(userCachePrefix+username, user, userCacheTTL)
	return user.ID, true
}

func (h *Handlers) parseProvider(c *gin.Context) (models.Provider, bool) {
	provider, err := models.ParseProvider(c.Param("provider"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return provider, true
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

// ConnectionsHandler lists the user's connection state for every supported
// provider, including ones never connected.
func (h *Handlers) ConnectionsHandler(c *gin.Context) {
	userId, ok := h.resolveUserId(c)
	if !ok {
		return
	}

	providers := models.AllProviders()
	out := make([]ConnectionResponse, 0, len(providers))
	for _, provider := range providers {
		resp := ConnectionResponse{Provider: provider}
		conn, err := models.GetConnection(c.Request.Context(), h.database(), userId, provider)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load connections"})
			return
		}
		if conn != nil {
			resp.IsConnected = conn.IsConnected
			resp.ConnectedAt = formatTimePtr(conn.ConnectedAt)
			resp.LastSyncAt = formatTimePtr(conn.LastSyncAt)
		}
		out = append(out, resp)
	}
	c.JSON(http.StatusOK, gin.H{"connections": out})
}

// ConnectHandler starts the authorization flow: mints a one-time state bound
// to the user and redirects to the provider's consent page.
func (h *Handlers) ConnectHandler(c *gin.Context) {
	userId, ok := h.resolveUserId(c)
	if !ok {
		return
	}
	provider, ok := h.parseProvider(c)
	if !ok {
		return
	}
	driver, ok := h.syncer.DriverFor(provider)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provider not supported"})
		return
	}

	state := uuid.NewString()
	stateValue := fmt.Sprintf("%d:%s", userId, provider)
	if err := config.SetRedisValue(oauthStatePrefix+state, stateValue, oauthStateTTL); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start authorization"})
		return
	}

	c.Redirect(http.StatusFound, driver.BuildAuthorizeURL(state))
}

// CallbackHandler completes the authorization flow. The state round-trips
// the user id because the provider redirect carries no session token.
func (h *Handlers) CallbackHandler(c *gin.Context) {
	provider, ok := h.parseProvider(c)
	if !ok {
		return
	}
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code or state"})
		return
	}

	stateValue, found, err := config.GetRedisValue(oauthStatePrefix + state)
	if err != nil || !found {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired state"})
		return
	}
	_ = config.RemoveRedisKey(oauthStatePrefix + state)

	userId, stateProvider, ok := splitStateValue(stateValue)
	if !ok || stateProvider != provider {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired state"})
		return
	}

	driver, ok := h.syncer.DriverFor(provider)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provider not supported"})
		return
	}

	result, err := driver.ExchangeCode(c.Request.Context(), code)
	if err != nil {
		config.LogError(config.GetLogger(), moduleName, "CallbackHandler", string(provider), nil, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "authorization exchange failed"})
		return
	}

	now := time.Now().UTC()
	conn, err := models.GetConnection(c.Request.Context(), h.database(), userId, provider)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store connection"})
		return
	}
	if conn == nil {
		conn = &models.Connection{UserId: userId, Provider: provider}
	}
	conn.IsConnected = true
	conn.ConnectedAt = &now
	conn.AccessToken = result.AccessToken
	conn.RefreshToken = result.RefreshToken
	conn.AccessTokenExpiresAt = result.AccessTokenExpiresAt
	conn.RefreshTokenExpiresAt = result.RefreshTokenExpiresAt
	if provider == models.ProviderXero {
		conn.TenantId = result.TenantId
	} else {
		// Intuit sends the company id on the redirect, not in the token body.
		conn.RealmId = c.Query("realmId")
	}

	if err := h.database().WithContext(c.Request.Context()).Save(conn).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store connection"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"provider": provider, "isConnected": true})
}

// DisconnectHandler drops the stored credentials but keeps the synced
// records and the audit trail.
func (h *Handlers) DisconnectHandler(c *gin.Context) {
	userId, ok := h.resolveUserId(c)
	if !ok {
		return
	}
	provider, ok := h.parseProvider(c)
	if !ok {
		return
	}

	err := h.database().WithContext(c.Request.Context()).
		Model(&models.Connection{}).
		Where("user_id = ? AND provider = ?", userId, provider).
		Updates(map[string]interface{}{
			"is_connected":             false,
			"access_token":             "",
			"refresh_token":            "",
			"access_token_expires_at":  nil,
			"refresh_token_expires_at": nil,
		}).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to disconnect"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"provider": provider, "isConnected": false})
}

// SyncNowHandler runs a full sync for every connected provider and reports
// which succeeded. One provider failing does not stop the others.
func (h *Handlers) SyncNowHandler(c *gin.Context) {
	userId, ok := h.resolveUserId(c)
	if !ok {
		return
	}

	conns, err := models.ListConnectedConnections(c.Request.Context(), h.database(), userId)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load connections"})
		return
	}
	if len(conns) == 0 {
		c.JSON(http.StatusOK, SyncNowResponse{
			Synced:  []models.Provider{},
			Failed:  []models.Provider{},
			Message: "no connected providers",
		})
		return
	}

	resp := SyncNowResponse{Synced: []models.Provider{}, Failed: []models.Provider{}}
	for i := range conns {
		conn := &conns[i]
		if !h.syncer.SyncProvider(c.Request.Context(), conn, userId) {
			resp.Failed = append(resp.Failed, conn.Provider)
			continue
		}
		if err := h.syncer.MarkSynced(c.Request.Context(), conn); err != nil {
			config.LogError(config.GetLogger(), moduleName, "SyncNowHandler", string(conn.Provider), nil, err)
		}
		resp.Synced = append(resp.Synced, conn.Provider)
	}

	if len(resp.Failed) > 0 {
		names := make([]string, 0, len(resp.Failed))
		for _, p := range resp.Failed {
			names = append(names, string(p))
		}
		resp.Message = "Sync failed for: " + strings.Join(names, ", ")
		c.JSON(http.StatusOK, resp)
		return
	}
	resp.Message = "Sync completed"
	c.JSON(http.StatusOK, resp)
}

// SyncErrorsHandler lists the user's most recent sync failures.
func (h *Handlers) SyncErrorsHandler(c *gin.Context) {
	userId, ok := h.resolveUserId(c)
	if !ok {
		return
	}

	var rows []models.SyncErrorLog
	err := h.database().WithContext(c.Request.Context()).
		Where("user_id = ?", userId).
		Order("created_at DESC").
		Limit(syncErrorListLimit).
		Find(&rows).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load sync errors"})
		return
	}

	out := make([]SyncErrorResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, SyncErrorResponse{
			ID:        row.ID,
			Provider:  row.Provider,
			Context:   row.Context,
			Message:   row.Message,
			CreatedAt: row.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"errors": out})
}

func splitStateValue(value string) (int, models.Provider, bool) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, "", false
	}
	userId, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, "", false
	}
	provider, err := models.ParseProvider(parts[1])
	if err != nil {
		return 0, "", false
	}
	return userId, provider, true
}
