// Package events fans configuration changes out to the parts of the daemon
// that mirror the live configuration (discovery records, the settings stream).
package events

import (
	"sync"

	"github.com/google/uuid"

	"github.com/micro-nova/apportal/internal/models"
)

const subBufferSize = 4

// Change is one committed configuration. Seq increases by one per commit, so
// a subscriber can tell when it missed some.
type Change struct {
	Seq    uint64
	Config models.Configuration
}

// Bus is a non-blocking publish-subscribe bus. A subscriber whose buffer is
// full misses the change rather than stalling the publisher.
type Bus struct {
	mu   sync.Mutex
	seq  uint64
	subs map[string]chan Change
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]chan Change)}
}

// Subscribe registers a new subscriber and returns its id and channel.
// Call Unsubscribe with the id when done.
func (b *Bus) Subscribe() (string, <-chan Change) {
	id := uuid.NewString()
	ch := make(chan Change, subBufferSize)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish delivers cfg to every subscriber and returns the change sequence.
func (b *Bus) Publish(cfg models.Configuration) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	c := Change{Seq: b.seq, Config: cfg}
	for _, ch := range b.subs {
		select {
		case ch <- c:
		default:
		}
	}
	return c.Seq
}

// SubscriberCount returns the current number of subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
