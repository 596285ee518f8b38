package events

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
)

const defaultBacklog = 64

// EventHub fans messages out to SSE subscribers and keeps a bounded backlog
// for Last-Event-ID resume.
type EventHub struct {
	mu     sync.RWMutex
	subs   map[string]chan Message
	lastID int64

	backlog *lru.Cache
}

// NewEventHub returns a hub that remembers the last backlog messages.
// A non-positive backlog uses the default size.
func NewEventHub(backlog int) *EventHub {
	if backlog <= 0 {
		backlog = defaultBacklog
	}
	// lru.New only fails on a non-positive size.
	cache, _ := lru.New(backlog)
	return &EventHub{
		subs:    make(map[string]chan Message),
		backlog: cache,
	}
}

func (h *EventHub) Subscribe() (string, chan Message) {
	id := uuid.NewString()
	ch := make(chan Message, 16)
	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()
	return id, ch
}

func (h *EventHub) Unsubscribe(id string) {
	h.mu.Lock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
	h.mu.Unlock()
}

// Subscribers returns the number of live subscribers.
func (h *EventHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *EventHub) Publish(name string, payload any) {
	if h == nil {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).WithField("name", name).Warn("failed to marshal hub message")
		return
	}

	h.mu.Lock()
	h.lastID++
	msg := Message{ID: h.lastID, Name: name, Data: b}
	h.backlog.Add(msg.ID, msg)
	for _, ch := range h.subs {
		// Non-blocking send; drop if subscriber is slow
		select {
		case ch <- msg:
		default:
		}
	}
	h.mu.Unlock()
}

// Since returns the remembered messages with an ID greater than lastID,
// oldest first.
func (h *EventHub) Since(lastID int64) []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var msgs []Message
	// Keys are ordered oldest to newest, which matches ID order.
	for _, k := range h.backlog.Keys() {
		if k.(int64) <= lastID {
			continue
		}
		if v, ok := h.backlog.Peek(k); ok {
			msgs = append(msgs, v.(Message))
		}
	}
	return msgs
}

// LastID returns the ID of the newest published message, or 0.
func (h *EventHub) LastID() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastID
}
