package livehub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"trustline/backend/internal/config"
	"trustline/backend/internal/logger"
	"trustline/backend/internal/models"
)

// RedisRelay broadcasts through a Redis channel so that every instance's hub
// sees every envelope. Use it in place of the Hub as the dashboard sink's
// broadcaster when more than one instance is running.
type RedisRelay struct {
	rdb     *redis.Client
	channel string
	hub     *Hub
}

func NewRedisRelay(rdb *redis.Client, channel string, hub *Hub) *RedisRelay {
	if channel == "" {
		channel = config.DefaultRelayChannel
	}
	return &RedisRelay{rdb: rdb, channel: channel, hub: hub}
}

// Broadcast publishes env on the relay channel.
func (r *RedisRelay) Broadcast(ctx context.Context, env models.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.channel, payload).Err()
}

// Run forwards every envelope received on the relay channel to the local hub
// until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) {
	pubsub := r.rdb.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		logger.Error("Dashboard relay subscription failed",
			zap.String("channel", r.channel),
			zap.Error(err),
		)
		return
	}
	logger.Info("Dashboard relay subscribed", zap.String("channel", r.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env models.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				logger.Warn("Malformed relay payload", zap.Error(err))
				continue
			}
			r.hub.Broadcast(ctx, env)
		}
	}
}
