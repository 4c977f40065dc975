// Package notify is the real-time side of notifications: an in-process
// pub/sub hub keyed by target, and a Sink that pairs it with the durable
// notification store.
package notify

import (
	"sync"
)

const defaultBuffer = 16

// Message is one pushed payload. Event names the SSE event type.
type Message struct {
	Event string
	Data  any
}

// Hub fans messages out to subscribers of a key. Sends never block: a
// subscriber whose buffer is full misses the message.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[int]chan Message
	nextID int
	buffer int
}

// NewHub creates an empty hub. buffer is the per-subscriber channel size.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		subs:   make(map[string]map[int]chan Message),
		buffer: buffer,
	}
}

// Subscribe registers a listener on key. The returned cancel func removes it
// and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(key string) (<-chan Message, func()) {
	ch := make(chan Message, h.buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	if h.subs[key] == nil {
		h.subs[key] = make(map[int]chan Message)
	}
	h.subs[key][id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[key], id)
			if len(h.subs[key]) == 0 {
				delete(h.subs, key)
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Publish sends msg to every subscriber of key and returns how many
// subscribers were skipped because their buffer was full.
func (h *Hub) Publish(key string, msg Message) (dropped int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs[key] {
		select {
		case ch <- msg:
		default:
			dropped++
		}
	}
	return dropped
}

// Subscribers returns the number of listeners on key.
func (h *Hub) Subscribers(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[key])
}
