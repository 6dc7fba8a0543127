package local

import (
	"context"
	"strconv"
	"sync"

	"github.com/alanyoungcy/straddlebot/internal/domain"
)

const historyLen = 1000

// EventBus fans published payloads out to in-process subscribers and keeps
// a bounded history per channel. Slow subscribers drop messages rather than
// block publishers.
type EventBus struct {
	mu      sync.Mutex
	subs    map[string][]chan []byte
	history map[string][]domain.EventMessage
	seq     uint64
}

// NewEventBus creates an empty EventBus.
func NewEventBus() *EventBus {
	return &EventBus{
		subs:    make(map[string][]chan []byte),
		history: make(map[string][]domain.EventMessage),
	}
}

// Publish delivers payload to current subscribers of channel.
func (b *EventBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	msg := append([]byte(nil), payload...)
	h := append(b.history[channel], domain.EventMessage{ID: strconv.FormatUint(b.seq, 10), Payload: msg})
	if len(h) > historyLen {
		h = h[len(h)-historyLen:]
	}
	b.history[channel] = h

	for _, ch := range b.subs[channel] {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber until ctx is done.
func (b *EventBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 128)
	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[channel]
		for i, c := range subs {
			if c == ch {
				b.subs[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}

// Recent returns up to count of the newest events on channel, oldest first.
func (b *EventBus) Recent(_ context.Context, channel string, count int) ([]domain.EventMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := b.history[channel]
	if count > 0 && len(h) > count {
		h = h[len(h)-count:]
	}
	return append([]domain.EventMessage(nil), h...), nil
}

var (
	_ domain.EventBus = (*EventBus)(nil)
	_ domain.EventLog = (*EventBus)(nil)
)
