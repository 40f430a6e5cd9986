package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aura-lms/registration/internal/models"
)

const channelPrefix = "notifications:"

// RedisPubSub fans in-app notifications out to connected clients on any instance.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for user notifications.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{client: client, logger: logger}
}

func channel(userID uuid.UUID) string {
	return channelPrefix + userID.String()
}

// Publish sends n on the recipient's channel.
func (r *RedisPubSub) Publish(ctx context.Context, n *models.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, channel(n.UserID), body).Err()
}

// Subscribe delivers the user's notifications to handler until ctx is done.
// It returns once the subscription is confirmed.
func (r *RedisPubSub) Subscribe(ctx context.Context, userID uuid.UUID, handler func(*models.Notification)) error {
	pubsub := r.client.Subscribe(ctx, channel(userID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var n models.Notification
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					r.logger.Warn("invalid notification payload", zap.Error(err))
					continue
				}
				handler(&n)
			}
		}
	}()
	return nil
}
