package providersync

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/gin-gonic/gin"

	"bitbucket.org/mmdatafocus/finsync_backend/config"
	"bitbucket.org/mmdatafocus/finsync_backend/models"
)

// PublishSync enqueues a background sync for one (user, provider) pair.
func PublishSync(ctx context.Context, userId int, provider models.Provider) error {
	topicName := strings.TrimSpace(os.Getenv("PROVIDER_SYNC_TOPIC"))
	if topicName == "" {
		topicName = "provider-sync"
	}

	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}

	topic := client.Topic(topicName)
	if envBoolDefault("PROVIDER_SYNC_CREATE_TOPIC", false) {
		topic, err = config.CreateTopicIfNotExists(client, topicName)
		if err != nil {
			return err
		}
	}

	payload := SyncPubSubPayload{UserId: userId, Provider: provider}
	data, _ := json.Marshal(payload)
	res := topic.Publish(ctx, &pubsub.Message{Data: data})
	_, err = res.Get(ctx)
	return err
}

// PubSubPushHandler consumes push-delivery sync messages. Malformed or stale
// messages are dropped with 204 so the subscription never redelivers them;
// sync failures are already audited by the syncer itself.
func (h *Handlers) PubSubPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !envBoolDefault("ENABLE_SYNC_PUBSUB_PUSH_ENDPOINT", true) {
			c.Status(204)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(204)
			return
		}

		var envelope PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(204)
			return
		}

		var payload SyncPubSubPayload
		if err := json.Unmarshal(envelope.Message.Data, &payload); err != nil {
			c.Status(204)
			return
		}
		if payload.UserId == 0 || !payload.Provider.Valid() {
			c.Status(204)
			return
		}

		conn, err := models.GetConnection(c.Request.Context(), h.database(), payload.UserId, payload.Provider)
		if err != nil || conn == nil || !conn.IsConnected {
			c.Status(204)
			return
		}

		if h.syncer.SyncProvider(c.Request.Context(), conn, payload.UserId) {
			_ = h.syncer.MarkSynced(c.Request.Context(), conn)
		}
		c.Status(204)
	}
}

// QueueSyncHandler enqueues background syncs for the user's connected
// providers instead of running them inline.
func (h *Handlers) QueueSyncHandler(c *gin.Context) {
	userId, ok := h.resolveUserId(c)
	if !ok {
		return
	}

	conns, err := models.ListConnectedConnections(c.Request.Context(), h.database(), userId)
	if err != nil {
		c.JSON(500, gin.H{"error": "failed to load connections"})
		return
	}

	queued := []models.Provider{}
	for _, conn := range conns {
		if err := PublishSync(c.Request.Context(), userId, conn.Provider); err != nil {
			config.LogError(config.GetLogger(), moduleName, "QueueSyncHandler", string(conn.Provider), nil, err)
			continue
		}
		queued = append(queued, conn.Provider)
	}
	c.JSON(200, gin.H{"queued": queued})
}

func envBoolDefault(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}
