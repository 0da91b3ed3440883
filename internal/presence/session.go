// Package presence keeps a local participant's cursor in sync with the
// other members of a pub/sub channel.
//
// A Session owns one goroutine. Local mutations, inbound channel events and
// frame ticks are all posted to it, so the local state, the peer registry
// and the broadcaster are never touched concurrently.
package presence

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrNilTransport = errors.New("presence: nil transport")
var ErrEmptyChannel = errors.New("presence: empty channel name")

const DefaultLeaveTimeout = 2 * time.Second

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseJoining
	PhaseJoined
	PhaseLeaving
	PhaseLeft
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseJoining:
		return "joining"
	case PhaseJoined:
		return "joined"
	case PhaseLeaving:
		return "leaving"
	case PhaseLeft:
		return "left"
	default:
		return "unknown"
	}
}

type Options struct {
	Channel string
	ID      string
	Name    string
	Avatar  string
	Color   string
	Latency float64
	Region  string

	Host   Host
	Frames Frames
	Style  Style

	LeaveTimeout time.Duration
	Tombstones   int
	Logger       *zap.Logger

	// Callbacks run on the session goroutine. They must not block on the
	// session's own query methods.
	OnChange     func(peers []Peer)
	OnOtherEntry func(Peer)
	OnOtherLeave func(Peer)
}

type Session struct {
	transport Transport
	opts      Options
	log       *zap.Logger

	inbox  chan sessionMsg
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	// closed is set under mu once the loop stops reading inbox; exiting
	// wakes posters blocked on a full inbox.
	mu      sync.RWMutex
	closed  bool
	exiting chan struct{}

	// loop owned
	phase Phase
	me    localState
	peers *registry
	bc    *broadcaster
	ch    Channel
	res   releaser

	// written once by the loop before done is closed
	final State
}

type sessionMsg interface{ isSessionMsg() }

type start struct{}

type joined struct{ ch Channel }

type inbound struct {
	event string
	raw   json.RawMessage
}

type peerList struct{ raws []json.RawMessage }

type input struct{ ev InputEvent }

type frame struct{}

type closeReq struct{ done chan struct{} }

// op runs fn on the loop; used by Me and the query helpers.
type op func(s *Session)

func (start) isSessionMsg()    {}
func (joined) isSessionMsg()   {}
func (inbound) isSessionMsg()  {}
func (peerList) isSessionMsg() {}
func (input) isSessionMsg()    {}
func (frame) isSessionMsg()    {}
func (closeReq) isSessionMsg() {}
func (op) isSessionMsg()       {}

// New builds an idle session and starts its loop. Identity and color are
// fixed here for the session's lifetime.
func New(parent context.Context, t Transport, opts Options) (*Session, error) {
	if t == nil {
		return nil, ErrNilTransport
	}
	if opts.Channel == "" {
		return nil, ErrEmptyChannel
	}
	if opts.ID == "" {
		opts.ID = NewID()
	}
	if opts.Color == "" {
		opts.Color = RandomColor()
	}
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.Frames == nil {
		opts.Frames = TimerFrames{Interval: DefaultFrameInterval}
	}
	if opts.LeaveTimeout <= 0 {
		opts.LeaveTimeout = DefaultLeaveTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	opts.Style = opts.Style.WithDefaults()

	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		transport: t,
		opts:      opts,
		log:       opts.Logger.With(zap.String("channel", opts.Channel), zap.String("self", opts.ID)),
		inbox:     make(chan sessionMsg, 256),
		done:      make(chan struct{}),
		exiting:   make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		me: localState{state: State{
			ID:       opts.ID,
			Activity: ActivityOnline,
			Color:    opts.Color,
			Name:     opts.Name,
			Avatar:   opts.Avatar,
			Latency:  opts.Latency,
			Region:   opts.Region,
		}},
		peers: newRegistry(opts.ID, opts.Tombstones),
	}
	s.final = s.me.state
	s.bc = newBroadcaster(opts.Frames, func() { s.post(frame{}) }, s.log)

	go s.loop()
	return s, nil
}

// Start opens the channel connection in the background. Only the first
// call has an effect.
func (s *Session) Start() { s.post(start{}) }

// Close leaves the channel and releases every listener. It is safe to call
// more than once and from any state.
func (s *Session) Close() {
	req := closeReq{done: make(chan struct{})}
	if !s.post(req) {
		return
	}
	select {
	case <-req.done:
	case <-s.done:
	}
	<-s.done
}

// Done is closed once the session has left.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) ID() string      { return s.opts.ID }
func (s *Session) Style() Style    { return s.opts.Style }
func (s *Session) Me() *Me         { return &Me{s: s} }
func (s *Session) Channel() string { return s.opts.Channel }

// Self returns the local snapshot.
func (s *Session) Self() State {
	return query(s, func() State { return s.final }, func(s *Session) State { return s.me.state })
}

// Others returns the known peers in the order they were first seen.
func (s *Session) Others() []Peer {
	return query(s, func() []Peer { return nil }, func(s *Session) []Peer { return s.peers.list() })
}

func (s *Session) Phase() Phase {
	return query(s, func() Phase { return PhaseLeft }, func(s *Session) Phase { return s.phase })
}

// Input feeds a host event into the session. Hosts normally deliver events
// through the handler given to Host.Listen; this is the same path.
func (s *Session) Input(ev InputEvent) { s.post(input{ev: ev}) }

func (s *Session) do(fn func(s *Session)) { s.post(op(fn)) }

// post enqueues m unless the loop is exiting. A true result means the
// loop, or its final drain, will see m.
func (s *Session) post(m sessionMsg) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.inbox <- m:
		return true
	case <-s.exiting:
		return false
	}
}

// query runs fn on the loop and waits for its result; fallback is used
// once the loop has exited.
func query[T any](s *Session, fallback func() T, fn func(s *Session) T) T {
	reply := make(chan T, 1)
	if !s.post(op(func(s *Session) { reply <- fn(s) })) {
		return fallback()
	}
	select {
	case v := <-reply:
		return v
	case <-s.done:
		select {
		case v := <-reply:
			return v
		default:
			return fallback()
		}
	}
}

func (s *Session) loop() {
	defer s.exit()
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch v := m.(type) {
			case start:
				if s.phase != PhaseIdle {
					break
				}
				s.phase = PhaseJoining
				go s.join(s.me.state)

			case joined:
				s.enter(v.ch)

			case inbound:
				if s.phase == PhaseJoined {
					s.ingest(v)
				}

			case peerList:
				if s.phase == PhaseJoined {
					s.ingestPeers(v.raws)
				}

			case input:
				if s.phase == PhaseJoined {
					s.handleInput(v.ev)
				}

			case frame:
				s.bc.flush()

			case op:
				v(s)

			case closeReq:
				s.shutdown()
				close(v.done)
			}

			if s.phase == PhaseLeft {
				return
			}
		}
	}
}

// exit stops intake, then settles whatever was already queued: a channel
// that finished joining is left, pending Close calls are released.
func (s *Session) exit() {
	close(s.exiting)
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	for {
		select {
		case m := <-s.inbox:
			switch v := m.(type) {
			case joined:
				s.leave(v.ch)
			case closeReq:
				close(v.done)
			}
		default:
			s.cancel()
			close(s.done)
			return
		}
	}
}

// join runs off the loop. A channel that arrives after the session has
// already left is released right here.
func (s *Session) join(initial State) {
	ch, err := s.transport.Join(s.ctx, s.opts.Channel, initial)
	if err != nil {
		// no retry: the session stays joining and renders nobody
		s.log.Warn("join failed", zap.Error(err))
		return
	}
	if !s.post(joined{ch: ch}) {
		s.leave(ch)
	}
}

// enter moves joining -> joined, acquiring every listener through res.
func (s *Session) enter(ch Channel) {
	if s.phase != PhaseJoining {
		s.leave(ch)
		return
	}
	s.ch = ch
	s.subscribe(ch)
	if h := s.opts.Host; h != nil {
		s.res.add(h.Listen(func(ev InputEvent) { s.post(input{ev: ev}) }))
		h.HideCursor()
		s.res.add(h.RestoreCursor)
	}
	s.bc.attach(ch)
	s.res.add(s.bc.detach)
	s.phase = PhaseJoined
	s.log.Info("joined channel")
}

// shutdown releases everything acquired since enter and leaves the channel
// exactly once.
func (s *Session) shutdown() {
	switch s.phase {
	case PhaseLeft:
		return
	case PhaseJoined:
		s.phase = PhaseLeaving
		s.res.release()
		ch := s.ch
		s.ch = nil
		s.leave(ch)
		s.log.Info("left channel")
	default:
		s.res.release()
	}
	if s.peers.len() > 0 {
		s.peers.clear()
		s.changed()
	}
	s.phase = PhaseLeft
	s.final = s.me.state
}

func (s *Session) leave(ch Channel) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.LeaveTimeout)
	defer cancel()
	if err := ch.Leave(ctx); err != nil {
		s.log.Warn("leave failed", zap.Error(err))
	}
}

// releaser is a stack of release funcs drained in reverse order.
type releaser struct {
	fns []func()
}

func (r *releaser) add(fn func()) {
	if fn != nil {
		r.fns = append(r.fns, fn)
	}
}

func (r *releaser) release() {
	for i := len(r.fns) - 1; i >= 0; i-- {
		r.fns[i]()
	}
	r.fns = nil
}
