package pubsub

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/pdb-slot-api/internal/models"
)

// MemoryBroker is an in-process broker. Slow subscribers drop events rather
// than blocking publishers.
type MemoryBroker struct {
	mu     sync.RWMutex
	subs   map[string]map[*memorySub]struct{}
	closed bool
	logger *zap.Logger
}

type memorySub struct {
	ch   chan models.SlotEvent
	once sync.Once
}

// NewMemoryBroker creates an empty in-process broker.
func NewMemoryBroker(logger *zap.Logger) *MemoryBroker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryBroker{subs: make(map[string]map[*memorySub]struct{}), logger: logger}
}

// Publish delivers the event to every current subscriber of its period.
func (b *MemoryBroker) Publish(_ context.Context, event models.SlotEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[event.Period] {
		select {
		case sub.ch <- event:
		default:
			b.logger.Warn("dropping event for slow subscriber", zap.String("period", event.Period), zap.String("type", string(event.Type)))
		}
	}
	return nil
}

// Subscribe registers a subscriber for period.
func (b *MemoryBroker) Subscribe(ctx context.Context, period string) (<-chan models.SlotEvent, func(), error) {
	sub := &memorySub{ch: make(chan models.SlotEvent, subscriberBuffer)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}, nil
	}
	if b.subs[period] == nil {
		b.subs[period] = make(map[*memorySub]struct{})
	}
	b.subs[period][sub] = struct{}{}
	b.mu.Unlock()

	stop := make(chan struct{})
	var stopOnce sync.Once
	cancel := func() { stopOnce.Do(func() { close(stop) }) }

	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		b.remove(period, sub)
	}()

	return sub.ch, cancel, nil
}

func (b *MemoryBroker) remove(period string, sub *memorySub) {
	b.mu.Lock()
	if set, ok := b.subs[period]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.subs, period)
		}
	}
	b.mu.Unlock()
	sub.once.Do(func() { close(sub.ch) })
}

// Close closes every subscriber channel.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for period, set := range b.subs {
		for sub := range set {
			sub.once.Do(func() { close(sub.ch) })
		}
		delete(b.subs, period)
	}
	return nil
}
