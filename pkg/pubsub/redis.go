package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/pdb-slot-api/internal/models"
)

const channelPrefix = "pdb:events:"

// RedisBroker relays events through Redis Pub/Sub so every API instance sees
// mutations made by the others.
type RedisBroker struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisBroker wraps an existing client.
func NewRedisBroker(client *redis.Client, logger *zap.Logger) *RedisBroker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBroker{client: client, logger: logger}
}

// Channel returns the Redis channel name for period.
func Channel(period string) string {
	return channelPrefix + period
}

// Publish serializes the event onto the period channel.
func (b *RedisBroker) Publish(ctx context.Context, event models.SlotEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return b.client.Publish(ctx, Channel(event.Period), payload).Err()
}

// Subscribe opens a Redis subscription. The subscription is confirmed before returning.
func (b *RedisBroker) Subscribe(ctx context.Context, period string) (<-chan models.SlotEvent, func(), error) {
	ps := b.client.Subscribe(ctx, Channel(period))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, err
	}

	out := make(chan models.SlotEvent, subscriberBuffer)
	subCtx, cancelSub := context.WithCancel(ctx)
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			cancelSub()
			_ = ps.Close()
		})
	}

	go func() {
		defer close(out)
		msgs := ps.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event models.SlotEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					b.logger.Warn("discarding malformed event", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				select {
				case out <- event:
				default:
					b.logger.Warn("dropping event for slow subscriber", zap.String("period", period))
				}
			}
		}
	}()

	go func() {
		<-subCtx.Done()
		cancel()
	}()

	return out, cancel, nil
}

// Close is a no-op; the client is owned by the caller.
func (b *RedisBroker) Close() error {
	return nil
}
