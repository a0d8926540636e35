package live

import (
	"sync"

	"chatvault/chatvault/sources/store"

	"github.com/google/uuid"
)

const subscriberBuffer = 16

// Event is one appended record as seen by viewer clients.
type Event struct {
	Filename string              `json:"filename"`
	Record   store.MessageRecord `json:"record"`
}

type subscriber struct {
	ch chan Event
	// conversation filter; empty means every conversation.
	chat string
}

// canonical reduces an active or rotated backup filename to its conversation
// identity, so a subscription keeps delivering across rotation boundaries.
func canonical(filename string) string {
	if id, kind, _, ok := store.ParseLogName(filename); ok {
		return id + "_" + kind
	}
	return filename
}

// Hub fans appended records out to websocket subscribers. Publish never
// blocks the write path: a subscriber that cannot keep up loses events.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]*subscriber
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]*subscriber)}
}

// Subscribe registers a listener, optionally limited to one conversation.
// The filter accepts an active or rotated backup filename.
func (h *Hub) Subscribe(filename string) (string, <-chan Event) {
	id := uuid.New().String()
	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}
	if filename != "" {
		sub.chat = canonical(filename)
	}
	h.mu.Lock()
	h.subs[id] = sub
	h.mu.Unlock()
	return id, sub.ch
}

func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.ch)
	}
	h.mu.Unlock()
}

// Publish implements store.Publisher.
func (h *Hub) Publish(filename string, rec store.MessageRecord) {
	ev := Event{Filename: filename, Record: rec}
	chat := canonical(filename)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if sub.chat != "" && sub.chat != chat {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// Slow subscriber, drop.
		}
	}
}
