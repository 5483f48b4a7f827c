// Package hub fans feature-stream messages out to websocket subscribers.
// One hub per stream; slow subscribers are dropped rather than allowed to
// stall the performance cadence.
package hub

import (
	"encoding/json"
	"sync"

	"github.com/DigiScore/kc-plus/internal/log"
)

// Hub maintains the set of subscribers for one feature stream and
// broadcasts each tick's payload to all of them.
type Hub struct {
	name string

	subscribers map[*Subscriber]bool

	broadcast   chan []byte
	register    chan *Subscriber
	unregister  chan *Subscriber
	stop        chan struct{}
	stopOnce    sync.Once

	mu sync.RWMutex // guards subscribers; the loop writes, SubscriberCount reads
}

// New creates a Hub for the named stream.
func New(name string) *Hub {
	return &Hub{
		name:        name,
		subscribers: make(map[*Subscriber]bool),
		broadcast:   make(chan []byte, 256),
		register:    make(chan *Subscriber),
		unregister:  make(chan *Subscriber),
		stop:        make(chan struct{}),
	}
}

// Run drives the hub's fan-out loop. Call it in a goroutine; it returns
// after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			for sub := range h.subscribers {
				close(sub.send)
				delete(h.subscribers, sub)
			}
			h.mu.Unlock()
			return

		case sub := <-h.register:
			h.mu.Lock()
			h.subscribers[sub] = true
			count := len(h.subscribers)
			h.mu.Unlock()
			log.Info("hub: subscriber joined", "stream", h.name, "subscribers", count)

		case sub := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.subscribers[sub]; ok {
				delete(h.subscribers, sub)
				close(sub.send)
			}
			count := len(h.subscribers)
			h.mu.Unlock()
			log.Info("hub: subscriber left", "stream", h.name, "subscribers", count)

		case payload := <-h.broadcast:
			h.mu.Lock()
			for sub := range h.subscribers {
				select {
				case sub.send <- payload:
				default:
					// Subscriber can't keep up with the cadence.
					close(sub.send)
					delete(h.subscribers, sub)
					log.Warn("hub: dropped slow subscriber", "stream", h.name)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop shuts the hub down and disconnects all subscribers. Idempotent.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Broadcast queues a payload for every subscriber. Never blocks: if the
// hub itself is backed up the payload is dropped, next tick supersedes it
// anyway.
func (h *Hub) Broadcast(payload []byte) {
	select {
	case h.broadcast <- payload:
	case <-h.stop:
	default:
		log.Warn("hub: broadcast queue full, dropping payload", "stream", h.name)
	}
}

// BroadcastJSON encodes v and broadcasts it.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// SubscriberCount returns the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
