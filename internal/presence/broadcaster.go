package presence

import "go.uber.org/zap"

// broadcaster turns local mutations into channel events. Position updates
// go through a single pending-frame slot; everything else is sent at once.
// Owned by the session loop.
type broadcaster struct {
	ch      Channel
	frames  Frames
	onFrame func()
	log     *zap.Logger

	pending     *State
	cancelFrame func()
}

func newBroadcaster(frames Frames, onFrame func(), log *zap.Logger) *broadcaster {
	return &broadcaster{frames: frames, onFrame: onFrame, log: log}
}

func (b *broadcaster) attach(ch Channel) { b.ch = ch }

// detach stops broadcasting and forgets any pending frame.
func (b *broadcaster) detach() {
	if b.cancelFrame != nil {
		b.cancelFrame()
	}
	b.cancelFrame = nil
	b.pending = nil
	b.ch = nil
}

func (b *broadcaster) ready() bool { return b.ch != nil }

// position coalesces s into the pending frame, scheduling one if needed.
func (b *broadcaster) position(s State) {
	if b.ch == nil {
		return
	}
	if b.pending != nil {
		*b.pending = s
		return
	}
	p := s
	b.pending = &p
	b.cancelFrame = b.frames.Next(b.onFrame)
}

// now sends s immediately. A pending frame is refreshed as well so it can't
// later publish an older message or activity.
func (b *broadcaster) now(event string, s State) {
	if b.ch == nil {
		return
	}
	if b.pending != nil {
		*b.pending = s
	}
	b.send(event, s)
}

// flush publishes the pending frame, if any.
func (b *broadcaster) flush() {
	if b.pending == nil {
		return
	}
	s := *b.pending
	b.pending = nil
	b.cancelFrame = nil
	if b.ch == nil {
		return
	}
	b.send(EventUpdateState, s)
}

func (b *broadcaster) send(event string, s State) {
	if err := b.ch.Broadcast(event, s); err != nil {
		b.log.Debug("broadcast dropped", zap.String("event", event), zap.Error(err))
	}
}
