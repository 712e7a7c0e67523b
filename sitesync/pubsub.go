package sitesync

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/gin-gonic/gin"

	"github.com/cascadebuilt/sitebooks_backend/config"
	"github.com/cascadebuilt/sitebooks_backend/models"
	"github.com/cascadebuilt/sitebooks_backend/utils"
)

// PublishSyncRequest queues an async sync for one source.
func PublishSyncRequest(ctx context.Context, source string) error {
	topicName := strings.TrimSpace(os.Getenv("SYNC_TOPIC"))
	if topicName == "" {
		topicName = "sitebooks-sync"
	}

	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}

	topic := client.Topic(topicName)
	if envBoolDefault("SYNC_CREATE_TOPIC", false) {
		topic, err = config.CreateTopicIfNotExists(client, topicName)
		if err != nil {
			return err
		}
	}

	data, _ := json.Marshal(SyncPubSubPayload{Source: source})
	res := topic.Publish(ctx, &pubsub.Message{Data: data})
	_, err = res.Get(ctx)
	return err
}

// AsyncSyncHandler accepts a sync request and returns immediately; the work
// happens when the push subscription delivers the message back.
func AsyncSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireUser(c) {
			return
		}

		var req AsyncSyncRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
			return
		}

		if err := PublishSyncRequest(c.Request.Context(), req.Source); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"queued": req.Source})
	}
}

// PubSubPushHandler receives the push envelope and runs the requested sync.
// Malformed envelopes are acked with 204 so the subscription does not retry
// them forever; run failures are already recorded on the run row.
func PubSubPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !envBoolDefault("ENABLE_SYNC_PUBSUB_PUSH_ENDPOINT", true) {
			c.Status(http.StatusNoContent)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusNoContent)
			return
		}

		var envelope PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(http.StatusNoContent)
			return
		}

		var payload SyncPubSubPayload
		if err := json.Unmarshal(envelope.Message.Data, &payload); err != nil {
			c.Status(http.StatusNoContent)
			return
		}

		ctx := c.Request.Context()
		db := config.GetDB()
		switch payload.Source {
		case models.SyncSourceQuickBooks:
			_, _ = RunQuickBooksSync(ctx, db)
		case models.SyncSourceProjects:
			_, _ = RunProjectsSync(ctx, db)
		case models.SyncSourceBids:
			_, _ = RunBidsSync(ctx, db)
		}
		c.Status(http.StatusNoContent)
	}
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
