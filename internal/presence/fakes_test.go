package presence

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

type sent struct {
	event string
	state State
}

// fakeChannel records broadcasts and lets tests play inbound events.
type fakeChannel struct {
	mu       sync.Mutex
	subs     map[string]map[int]func(json.RawMessage)
	peerSubs map[int]func([]json.RawMessage)
	next     int
	sent     []sent
	leaves   int
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		subs:     make(map[string]map[int]func(json.RawMessage)),
		peerSubs: make(map[int]func([]json.RawMessage)),
	}
}

func (c *fakeChannel) Broadcast(event string, s State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sent{event: event, state: s})
	return nil
}

func (c *fakeChannel) Subscribe(event string, h func(json.RawMessage)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	id := c.next
	if c.subs[event] == nil {
		c.subs[event] = make(map[int]func(json.RawMessage))
	}
	c.subs[event][id] = h
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs[event], id)
	}
}

func (c *fakeChannel) SubscribePeers(h func([]json.RawMessage)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	id := c.next
	c.peerSubs[id] = h
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.peerSubs, id)
	}
}

func (c *fakeChannel) Leave(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leaves++
	return nil
}

func (c *fakeChannel) emit(event, raw string) {
	c.mu.Lock()
	var hs []func(json.RawMessage)
	for _, h := range c.subs[event] {
		hs = append(hs, h)
	}
	c.mu.Unlock()
	for _, h := range hs {
		h(json.RawMessage(raw))
	}
}

func (c *fakeChannel) emitPeers(raws ...string) {
	list := make([]json.RawMessage, len(raws))
	for i, r := range raws {
		list[i] = json.RawMessage(r)
	}
	c.mu.Lock()
	var hs []func([]json.RawMessage)
	for _, h := range c.peerSubs {
		hs = append(hs, h)
	}
	c.mu.Unlock()
	for _, h := range hs {
		h(list)
	}
}

func (c *fakeChannel) listeners() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.peerSubs)
	for _, m := range c.subs {
		n += len(m)
	}
	return n
}

func (c *fakeChannel) broadcasts() []sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sent(nil), c.sent...)
}

func (c *fakeChannel) leaveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.leaves
}

// fakeTransport hands out ch, optionally after gate is closed.
type fakeTransport struct {
	ch   *fakeChannel
	gate chan struct{}
	err  error

	mu    sync.Mutex
	joins int
}

func (t *fakeTransport) Join(ctx context.Context, channel string, initial State) (Channel, error) {
	t.mu.Lock()
	t.joins++
	t.mu.Unlock()
	if t.gate != nil {
		<-t.gate
	}
	if t.err != nil {
		return nil, t.err
	}
	return t.ch, nil
}

var errUnreachable = errors.New("unreachable")

// manualFrames only fires when the test says so.
type manualFrames struct {
	mu        sync.Mutex
	pending   map[int]func()
	next      int
	scheduled int
}

func newManualFrames() *manualFrames {
	return &manualFrames{pending: make(map[int]func())}
}

func (f *manualFrames) Next(fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := f.next
	f.pending[id] = fn
	f.scheduled++
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.pending, id)
	}
}

func (f *manualFrames) fire() {
	f.mu.Lock()
	fns := make([]func(), 0, len(f.pending))
	for id, fn := range f.pending {
		fns = append(fns, fn)
		delete(f.pending, id)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (f *manualFrames) scheduledCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scheduled
}

type fakeHost struct {
	mu        sync.Mutex
	hidden    bool
	restored  int
	listeners map[int]func(InputEvent)
	next      int
}

func newFakeHost() *fakeHost {
	return &fakeHost{listeners: make(map[int]func(InputEvent))}
}

func (h *fakeHost) Listen(fn func(InputEvent)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	h.listeners[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.listeners, id)
	}
}

func (h *fakeHost) HideCursor() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hidden = true
}

func (h *fakeHost) RestoreCursor() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hidden = false
	h.restored++
}

func (h *fakeHost) dispatch(ev InputEvent) {
	h.mu.Lock()
	var fns []func(InputEvent)
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (h *fakeHost) state() (listeners int, hidden bool, restored int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners), h.hidden, h.restored
}
