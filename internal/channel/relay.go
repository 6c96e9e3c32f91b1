package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const relayChannelPrefix = "shopdrop:tenant:"

// RedisRelay publishes events through Redis so that every API instance fans them out to
// its own local subscribers. Run must be active for this instance to receive anything.
type RedisRelay struct {
	client redis.UniversalClient
	local  *Registry
	log    *zap.Logger
}

// NewRedisRelay wraps a local registry with Redis pub/sub.
func NewRedisRelay(client redis.UniversalClient, local *Registry, log *zap.Logger) *RedisRelay {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisRelay{client: client, local: local, log: log}
}

// Publish sends the event to Redis; on failure it still reaches this instance's subscribers.
func (r *RedisRelay) Publish(ctx context.Context, tenantID string, event Event) {
	// the upload already succeeded; an uploader hanging up must not cancel the fan-out
	ctx = context.WithoutCancel(ctx)
	payload, err := json.Marshal(event)
	if err == nil {
		err = r.client.Publish(ctx, relayChannelPrefix+tenantID, payload).Err()
	}
	if err != nil {
		r.log.Warn("redis publish failed, delivering locally",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
		r.local.Publish(ctx, tenantID, event)
	}
}

// Run relays messages from Redis into the local registry until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.PSubscribe(ctx, relayChannelPrefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to tenant events: %w", err)
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.log.Warn("discarding malformed tenant event", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			r.local.Publish(ctx, strings.TrimPrefix(msg.Channel, relayChannelPrefix), event)
		}
	}
}
