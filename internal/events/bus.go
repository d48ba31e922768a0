package events

import (
	"sync"
	"sync/atomic"
)

// Bus is a channel-based pub-sub event bus keyed by project ID.
// Supports per-project subscriptions and SubscribeAll for cross-project consumption.
type Bus struct {
	mu      sync.RWMutex
	subs    map[string][]chan Envelope // projectID -> subscriber channels
	allSubs []chan Envelope            // channels subscribed to all projects
	dropped atomic.Uint64
	closed  bool
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subs:    make(map[string][]chan Envelope),
		allSubs: make([]chan Envelope, 0),
	}
}

// Subscribe creates a subscription to one project's events.
// bufSize determines the channel buffer size (defaults to 256 if <= 0).
func (b *Bus) Subscribe(projectID string, bufSize int) <-chan Envelope {
	if bufSize <= 0 {
		bufSize = 256
	}

	ch := make(chan Envelope, bufSize)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return ch
	}

	b.subs[projectID] = append(b.subs[projectID], ch)

	return ch
}

// SubscribeAll creates a subscription to events of every project.
// bufSize determines the channel buffer size (defaults to 256 if <= 0).
func (b *Bus) SubscribeAll(bufSize int) <-chan Envelope {
	if bufSize <= 0 {
		bufSize = 256
	}

	ch := make(chan Envelope, bufSize)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return ch
	}

	b.allSubs = append(b.allSubs, ch)

	return ch
}

// Publish delivers an envelope to the project's subscribers and to all SubscribeAll channels.
// Fire-and-forget: a full subscriber channel drops the event for that subscriber.
func (b *Bus) Publish(projectID string, env Envelope) {
	if env.ProjectID == "" {
		env.ProjectID = projectID
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, ch := range b.subs[projectID] {
		b.send(ch, env)
	}
	for _, ch := range b.allSubs {
		b.send(ch, env)
	}
}

func (b *Bus) send(ch chan Envelope, env Envelope) {
	select {
	case ch <- env:
	default:
		// Channel full, drop event (non-blocking)
		b.dropped.Add(1)
	}
}

// Dropped returns the number of deliveries skipped because a subscriber was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes the event bus and all subscriber channels.
// Safe to call multiple times (idempotent).
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true

	for _, channels := range b.subs {
		for _, ch := range channels {
			close(ch)
		}
	}

	for _, ch := range b.allSubs {
		close(ch)
	}
}
