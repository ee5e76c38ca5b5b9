package pub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"reconciliation-service/internal/domain"
)

const ReconciliationEventsChannel = "reconciliation_events"

type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	logger  *zap.Logger
}

func NewRedisPublisher(rdb *redis.Client, channel string, logger *zap.Logger) *RedisPublisher {
	if channel == "" {
		channel = ReconciliationEventsChannel
	}
	return &RedisPublisher{rdb: rdb, channel: channel, logger: logger}
}

// Publish sends the event on the configured pub/sub channel.
func (p *RedisPublisher) Publish(ctx context.Context, evt *domain.ReconciliationEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("published reconciliation event",
		zap.String("channel", p.channel),
		zap.String("event_type", evt.EventType),
		zap.String("transaction_id", evt.TransactionID),
	)
	return nil
}
