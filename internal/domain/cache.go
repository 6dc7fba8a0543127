package domain

import (
	"context"
	"time"
)

// PriceCache provides fast access to the latest prices.
type PriceCache interface {
	SetPrice(ctx context.Context, symbol string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, symbol string) (float64, time.Time, error)
}

// LockManager provides keyed mutual exclusion.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// EventBus publishes ledger events to interested subscribers.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// EventMessage is one entry read back from the durable event log.
type EventMessage struct {
	ID      string
	Payload []byte
}

// EventLog replays recently published events.
type EventLog interface {
	Recent(ctx context.Context, channel string, count int) ([]EventMessage, error)
}

// RateLimiter throttles outbound requests sharing a key.
type RateLimiter interface {
	Wait(ctx context.Context, key string) error
}
