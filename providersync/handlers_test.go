package providersync

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/finsync_backend/models"
	"bitbucket.org/mmdatafocus/finsync_backend/utils"
)

func testRouter(db *gorm.DB, syncer *Syncer, username string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if username != "" {
			c.Request = c.Request.WithContext(utils.SetUsernameInContext(c.Request.Context(), username))
		}
		c.Next()
	})

	h := NewHandlers(db, syncer)
	r.GET("/api/integrations/connections", h.ConnectionsHandler)
	r.POST("/api/integrations/:provider/connect", h.ConnectHandler)
	r.GET("/api/integrations/:provider/callback", h.CallbackHandler)
	r.POST("/api/integrations/:provider/disconnect", h.DisconnectHandler)
	r.POST("/api/integrations/sync", h.SyncNowHandler)
	r.GET("/api/integrations/sync-errors", h.SyncErrorsHandler)
	return r
}

func seedUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username, Name: "Test User", Email: username + "@local"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func doRequest(t *testing.T, r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestConnectionsHandlerUnauthorizedWithoutSession(t *testing.T) {
	db := openTestDB(t)
	r := testRouter(db, NewSyncer(db, testLogger()), "")

	w := doRequest(t, r, http.MethodGet, "/api/integrations/connections")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestConnectionsHandlerListsAllProviders(t *testing.T) {
	db := openTestDB(t)
	user := seedUser(t, db, "owner")
	conn := validConnection(models.ProviderXero)
	conn.UserId = user.ID
	seedConnection(t, db, conn)

	r := testRouter(db, NewSyncer(db, testLogger()), "owner")
	w := doRequest(t, r, http.MethodGet, "/api/integrations/connections")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Connections []ConnectionResponse `json:"connections"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Connections) != 2 {
		t.Fatalf("got %d connections, want every supported provider", len(resp.Connections))
	}
	byProvider := map[models.Provider]ConnectionResponse{}
	for _, c := range resp.Connections {
		byProvider[c.Provider] = c
	}
	if !byProvider[models.ProviderXero].IsConnected {
		t.Fatal("Xero should be connected")
	}
	if byProvider[models.ProviderQBO].IsConnected {
		t.Fatal("QBO was never connected")
	}
}

func TestConnectHandlerRedirectsToProvider(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "owner")

	driver := &fakeDriver{provider: models.ProviderXero}
	r := testRouter(db, NewSyncer(db, testLogger(), driver), "owner")

	w := doRequest(t, r, http.MethodPost, "/api/integrations/xero/connect")
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302: %s", w.Code, w.Body.String())
	}
	location := w.Header().Get("Location")
	if !strings.HasPrefix(location, "https://fake.test?state=") {
		t.Fatalf("location = %q", location)
	}
	if strings.TrimPrefix(location, "https://fake.test?state=") == "" {
		t.Fatal("redirect carries no state")
	}
}

func TestConnectHandlerRejectsUnknownProvider(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "owner")
	r := testRouter(db, NewSyncer(db, testLogger()), "owner")

	w := doRequest(t, r, http.MethodPost, "/api/integrations/freshbooks/connect")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestCallbackHandlerRequiresCodeAndState(t *testing.T) {
	db := openTestDB(t)
	r := testRouter(db, NewSyncer(db, testLogger()), "")

	w := doRequest(t, r, http.MethodGet, "/api/integrations/xero/callback?code=abc")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestDisconnectHandlerClearsCredentials(t *testing.T) {
	db := openTestDB(t)
	user := seedUser(t, db, "owner")
	conn := validConnection(models.ProviderXero)
	conn.UserId = user.ID
	seedConnection(t, db, conn)

	r := testRouter(db, NewSyncer(db, testLogger()), "owner")
	w := doRequest(t, r, http.MethodPost, "/api/integrations/xero/disconnect")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var stored models.Connection
	if err := db.First(&stored, conn.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.IsConnected || stored.AccessToken != "" || stored.RefreshToken != "" {
		t.Fatalf("credentials not cleared: %+v", stored)
	}
}

func TestSyncNowHandlerAggregatesResults(t *testing.T) {
	db := openTestDB(t)
	user := seedUser(t, db, "owner")

	xero := &fakeDriver{
		provider: models.ProviderXero,
		dataset:  &Dataset{Invoices: []models.Invoice{{Provider: models.ProviderXero, ExternalId: "x1"}}},
	}
	qbo := &fakeDriver{
		provider: models.ProviderQBO,
		fetchErr: &ProviderFetchError{Endpoint: "https://qbo.test/query", StatusCode: 500},
	}
	syncer := NewSyncer(db, testLogger(), xero, qbo)

	for _, provider := range []models.Provider{models.ProviderXero, models.ProviderQBO} {
		conn := validConnection(provider)
		conn.UserId = user.ID
		seedConnection(t, db, conn)
	}

	r := testRouter(db, syncer, "owner")
	w := doRequest(t, r, http.MethodPost, "/api/integrations/sync")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp SyncNowResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Synced) != 1 || resp.Synced[0] != models.ProviderXero {
		t.Fatalf("synced = %v", resp.Synced)
	}
	if len(resp.Failed) != 1 || resp.Failed[0] != models.ProviderQBO {
		t.Fatalf("failed = %v", resp.Failed)
	}
	if !strings.Contains(resp.Message, "QBO") {
		t.Fatalf("message = %q, should name the failed provider", resp.Message)
	}

	// The successful provider got its last-sync stamp, the failed one did not.
	var xeroConn, qboConn models.Connection
	db.Where("user_id = ? AND provider = ?", user.ID, models.ProviderXero).Take(&xeroConn)
	db.Where("user_id = ? AND provider = ?", user.ID, models.ProviderQBO).Take(&qboConn)
	if xeroConn.LastSyncAt == nil {
		t.Fatal("xero last_sync_at not stamped")
	}
	if qboConn.LastSyncAt != nil {
		t.Fatal("qbo last_sync_at should stay empty after a failed sync")
	}
}

func TestSyncNowHandlerNoConnections(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "owner")
	r := testRouter(db, NewSyncer(db, testLogger()), "owner")

	w := doRequest(t, r, http.MethodPost, "/api/integrations/sync")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp SyncNowResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Message != "no connected providers" {
		t.Fatalf("message = %q", resp.Message)
	}
}

func TestSyncErrorsHandlerReturnsRecentFailures(t *testing.T) {
	db := openTestDB(t)
	user := seedUser(t, db, "owner")
	rows := []models.SyncErrorLog{
		{UserId: user.ID, Provider: models.ProviderXero, Context: models.SyncContextTokenCheck, Message: "refresh token expired"},
		{UserId: user.ID + 99, Provider: models.ProviderQBO, Context: models.SyncContextQbo, Message: "other user"},
	}
	if err := db.Create(&rows).Error; err != nil {
		t.Fatalf("seed errors: %v", err)
	}

	r := testRouter(db, NewSyncer(db, testLogger()), "owner")
	w := doRequest(t, r, http.MethodGet, "/api/integrations/sync-errors")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Errors []SyncErrorResponse `json:"errors"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Errors) != 1 {
		t.Fatalf("got %d errors, want only the session user's", len(resp.Errors))
	}
	if resp.Errors[0].Context != models.SyncContextTokenCheck {
		t.Fatalf("context = %q", resp.Errors[0].Context)
	}
}

func TestSplitStateValue(t *testing.T) {
	userId, provider, ok := splitStateValue("42:Xero")
	if !ok || userId != 42 || provider != models.ProviderXero {
		t.Fatalf("got %d/%s/%v", userId, provider, ok)
	}
	if _, _, ok := splitStateValue("nonsense"); ok {
		t.Fatal("malformed state accepted")
	}
	if _, _, ok := splitStateValue("x:Xero"); ok {
		t.Fatal("non-numeric user id accepted")
	}
	if _, _, ok := splitStateValue("1:NotAProvider"); ok {
		t.Fatal("unknown provider accepted")
	}
}
