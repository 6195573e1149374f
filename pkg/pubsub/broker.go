// Package pubsub fans slot registry events out to subscribers of an academic period.
package pubsub

import (
	"context"

	"github.com/noah-isme/pdb-slot-api/internal/models"
)

// Broker publishes events to per-period channels.
type Broker interface {
	Publish(ctx context.Context, event models.SlotEvent) error
	// Subscribe returns a channel of events for period and a cancel func that
	// must be called to release the subscription. The channel is closed after
	// cancel or when ctx ends.
	Subscribe(ctx context.Context, period string) (<-chan models.SlotEvent, func(), error)
	Close() error
}

const subscriberBuffer = 32
