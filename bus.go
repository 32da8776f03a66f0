package canalyst

import (
	"sync"
)

// Topic names a driver notification stream. The values are the event names
// the driver daemon puts on the wire.
type Topic string

const (
	// TopicFrame carries one rendered inbound frame per notification.
	TopicFrame Topic = "can-data"
	// TopicDriverError carries driver detected error strings that arrive
	// outside any request/response exchange.
	TopicDriverError Topic = "error-message"
)

// Handler consumes one notification payload.
type Handler func(payload string)

// Bus fans inbound driver notifications out to subscribed handlers. There is
// no unsubscribe, subscriptions live for the process.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Topic][]Handler
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Topic][]Handler),
	}
}

// Subscribe registers a handler invoked once per notification published on
// topic, in subscription order, on the publisher's goroutine.
func (b *Bus) Subscribe(topic Topic, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], fn)
}

// Publish delivers payload to every handler subscribed to topic.
func (b *Bus) Publish(topic Topic, payload string) {
	b.mu.RLock()
	subs := make([]Handler, len(b.handlers[topic]))
	copy(subs, b.handlers[topic])
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(payload)
	}
}
