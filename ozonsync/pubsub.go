package ozonsync

import (
	"context"
	"encoding/json"
	"io"

	"bitbucket.org/mmdatafocus/marketsync_backend/config"
	"bitbucket.org/mmdatafocus/marketsync_backend/utils"
	"cloud.google.com/go/pubsub"
	"github.com/gin-gonic/gin"
)

// PublishSyncRun dispatches a queued run to the sync topic. The push
// subscription delivers it back to PubSubPushHandler, which executes it.
func PublishSyncRun(ctx context.Context, runId uint, marketplace string, clientId string) error {
	topicName := utils.StringFromEnv("MARKET_SYNC_TOPIC", "market-sync")

	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}

	topic := client.Topic(topicName)
	if utils.BoolFromEnv("MARKET_SYNC_CREATE_TOPIC", false) {
		topic, err = config.CreateTopicIfNotExists(client, topicName)
		if err != nil {
			return err
		}
	}

	payload := SyncPubSubPayload{
		RunId:       runId,
		Marketplace: marketplace,
		ClientId:    clientId,
	}
	data, _ := json.Marshal(payload)
	res := topic.Publish(ctx, &pubsub.Message{Data: data})
	_, err = res.Get(ctx)
	return err
}

// PubSubPushHandler accepts push deliveries from the sync subscription.
// Always acks with 204: a malformed envelope is dropped, and run execution
// errors are recorded on the run row rather than bounced for redelivery.
func PubSubPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !utils.BoolFromEnv("ENABLE_MARKET_SYNC_PUSH_ENDPOINT", true) {
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
		if payload.RunId == 0 {
			c.Status(204)
			return
		}

		_ = ProcessSyncRun(c.Request.Context(), payload)
		c.Status(204)
	}
}
