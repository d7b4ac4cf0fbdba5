package pubsub

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var plog zerolog.Logger

func init() {
	plog = log.With().Str("component", "pubsub").Logger()
}

type SubscriptionID int64

// Pubsub fans messages out to subscribers. Publish never blocks on a slow
// subscriber; the message is dropped for that subscriber instead.
type Pubsub[T any] struct {
	nextID      SubscriptionID
	subscribers map[SubscriptionID]chan T
	buffer      int
	mu          sync.RWMutex
}

// New creates a Pubsub whose subscriber channels hold buffer messages.
func New[T any](buffer int) *Pubsub[T] {
	return &Pubsub[T]{
		subscribers: make(map[SubscriptionID]chan T),
		buffer:      buffer,
	}
}

func (ps *Pubsub[T]) Subscribe() (SubscriptionID, <-chan T) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ch := make(chan T, ps.buffer)
	id := ps.nextID
	ps.subscribers[id] = ch
	ps.nextID++

	return id, ch
}

func (ps *Pubsub[T]) Unsubscribe(id SubscriptionID) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ch, ok := ps.subscribers[id]
	if !ok {
		return
	}

	delete(ps.subscribers, id)
	close(ch)
}

func (ps *Pubsub[T]) Len() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.subscribers)
}

func (ps *Pubsub[T]) Publish(msg T) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	for id, ch := range ps.subscribers {
		select {
		case ch <- msg:
		default:
			plog.Warn().
				Int64("subscription_id", int64(id)).
				Msg("Message dropped, channel full")
		}
	}
}
