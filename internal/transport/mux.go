// Package transport holds the pieces shared by presence transports.
package transport

import (
	"encoding/json"
	"sync"

	"github.com/DoyleJ11/live-cursor/pkg/types"
)

// Mux routes server messages to per-event handlers. Delivery is held back
// until the first SubscribePeers call (see presence.Channel).
type Mux struct {
	mu       sync.Mutex
	subs     map[string]map[uint64]func(json.RawMessage)
	peerSubs map[uint64]func([]json.RawMessage)
	next     uint64

	open     chan struct{}
	openOnce sync.Once
}

func NewMux() *Mux {
	return &Mux{
		subs:     make(map[string]map[uint64]func(json.RawMessage)),
		peerSubs: make(map[uint64]func([]json.RawMessage)),
		open:     make(chan struct{}),
	}
}

// Opened is closed once delivery may start.
func (m *Mux) Opened() <-chan struct{} { return m.open }

func (m *Mux) Subscribe(event string, h func(json.RawMessage)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	id := m.next
	if m.subs[event] == nil {
		m.subs[event] = make(map[uint64]func(json.RawMessage))
	}
	m.subs[event][id] = h
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs[event], id)
	}
}

func (m *Mux) SubscribePeers(h func([]json.RawMessage)) func() {
	m.mu.Lock()
	m.next++
	id := m.next
	m.peerSubs[id] = h
	m.mu.Unlock()
	m.openOnce.Do(func() { close(m.open) })
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.peerSubs, id)
	}
}

// Deliver hands msg to the matching handlers. It must only be called from
// one goroutine at a time so handlers observe transport order.
func (m *Mux) Deliver(msg types.ServerMessage) {
	switch msg.Type {
	case types.ServerPeers:
		m.mu.Lock()
		hs := make([]func([]json.RawMessage), 0, len(m.peerSubs))
		for _, h := range m.peerSubs {
			hs = append(hs, h)
		}
		m.mu.Unlock()
		for _, h := range hs {
			h(msg.Peers)
		}

	case types.ServerEvent:
		m.mu.Lock()
		hs := make([]func(json.RawMessage), 0, len(m.subs[msg.Event]))
		for _, h := range m.subs[msg.Event] {
			hs = append(hs, h)
		}
		m.mu.Unlock()
		for _, h := range hs {
			h(msg.Payload)
		}
	}
}

// Listeners reports how many handlers are attached.
func (m *Mux) Listeners() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.peerSubs)
	for _, hs := range m.subs {
		n += len(hs)
	}
	return n
}
