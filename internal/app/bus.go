package app

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Bus is a typed publish/subscribe hub owned by the engine. It is injected
// where needed instead of living as a package-level singleton, so listener
// lifetime is explicit and tests can observe emissions directly.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[Topic]map[int]func(payload any)
}

func NewBus() *Bus {
	return &Bus{subs: make(map[Topic]map[int]func(payload any))}
}

// Subscribe registers fn for a topic and returns an unsubscribe func.
func (b *Bus) Subscribe(topic Topic, fn func(payload any)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]func(payload any))
	}
	id := b.nextID
	b.nextID++
	b.subs[topic][id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[topic], id)
	}
}

// Publish delivers payload to every subscriber of topic, synchronously.
// Handlers run outside the bus lock so they may re-subscribe.
func (b *Bus) Publish(topic Topic, payload any) {
	b.mu.RLock()
	handlers := make([]func(any), 0, len(b.subs[topic]))
	for _, fn := range b.subs[topic] {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	log.Debug().Str("module", "app.bus").Str("topic", string(topic)).Int("subscribers", len(handlers)).Msg("publish")
	for _, fn := range handlers {
		fn(payload)
	}
}
