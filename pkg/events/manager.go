package events

import (
	"sync"

	"github.com/sirupsen/logrus"
)

type subscription struct {
	name     string
	listener Listener
}

// Manager dispatches typed events to the listeners subscribed to their kind.
//
// Raise calls are serialized: listeners never run concurrently with each
// other, so a listener that owns state only needs to make its reads safe
// against readers outside the manager. Listeners must not call Raise.
type Manager struct {
	subsMu sync.RWMutex
	subs   map[Kind][]subscription

	dispatchMu sync.Mutex
}

func NewManager() *Manager { return &Manager{subs: make(map[Kind][]subscription)} }

// Subscribe registers l under name for the given kinds. Listeners are
// offered events in registration order.
func (m *Manager) Subscribe(name string, l Listener, kinds ...Kind) {
	if l == nil {
		panic("listener cannot be nil")
	}

	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	for _, k := range kinds {
		m.subs[k] = append(m.subs[k], subscription{name: name, listener: l})
	}
}

// Listeners returns the names of the listeners subscribed to k.
func (m *Manager) Listeners(k Kind) []string {
	m.subsMu.RLock()
	defer m.subsMu.RUnlock()

	names := make([]string, 0, len(m.subs[k]))
	for _, s := range m.subs[k] {
		names = append(names, s.name)
	}
	return names
}

// Raise delivers ev and returns the strongest result any listener gave.
// A Captured result stops propagation.
func (m *Manager) Raise(ev Event) Result {
	if m == nil || ev == nil {
		return Bubble
	}

	m.subsMu.RLock()
	subs := m.subs[ev.Kind()]
	m.subsMu.RUnlock()

	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()

	ret := Bubble
	for _, s := range subs {
		r := s.listener.OnEvent(ev)
		logrus.WithFields(logrus.Fields{
			"kind":     ev.Kind(),
			"listener": s.name,
			"result":   r,
		}).Trace("event delivered")

		if r > ret {
			ret = r
		}
		if r == Captured {
			break
		}
	}

	return ret
}
