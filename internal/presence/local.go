package presence

// localState is the authoritative record of this session's cursor. Only the
// session loop touches it.
type localState struct {
	state  State
	typing bool
}

// Me is the mutable handle over the local participant. Mutations are queued
// on the session loop and applied in call order.
type Me struct {
	s *Session
}

// UpdatePosition moves the cursor. Broadcasts are coalesced per frame.
func (m *Me) UpdatePosition(x, y float64) {
	m.s.do(func(s *Session) { s.movePointer(x, y) })
}

// UpdateMessage replaces the chat text and broadcasts immediately.
func (m *Me) UpdateMessage(text string) {
	m.s.do(func(s *Session) { s.setMessage(text) })
}

// SetActivity switches between online and away and broadcasts immediately.
func (m *Me) SetActivity(a Activity) {
	m.s.do(func(s *Session) { s.setActivity(a) })
}

// ToggleTyping opens or closes the compose affordance. It is never
// broadcast; peers only see the resulting message changes.
func (m *Me) ToggleTyping(on bool) {
	m.s.do(func(s *Session) { s.me.typing = on })
}

// SetLatency refreshes the latency metadata and broadcasts immediately.
func (m *Me) SetLatency(ms float64) {
	m.s.do(func(s *Session) { s.setLatency(ms) })
}

func (m *Me) Snapshot() State { return m.s.Self() }

func (m *Me) Typing() bool {
	return query(m.s, func() bool { return false }, func(s *Session) bool { return s.me.typing })
}

func (s *Session) movePointer(x, y float64) {
	s.me.state.X, s.me.state.Y = x, y
	s.bc.position(s.me.state)
}

func (s *Session) setMessage(text string) {
	if s.me.state.Message == text {
		return
	}
	s.me.state.Message = text
	s.bc.now(EventUpdateState, s.me.state)
}

func (s *Session) setActivity(a Activity) {
	if a != ActivityAway {
		a = ActivityOnline
	}
	if s.me.state.Activity == a {
		return
	}
	s.me.state.Activity = a
	s.bc.now(EventUpdateState, s.me.state)
}

func (s *Session) setLatency(ms float64) {
	if s.me.state.Latency == ms {
		return
	}
	s.me.state.Latency = ms
	s.bc.now(EventUpdateState, s.me.state)
}

// handleInput maps host input onto local mutations.
func (s *Session) handleInput(ev InputEvent) {
	switch e := ev.(type) {
	case PointerMove:
		s.movePointer(e.X, e.Y)
	case KeyDown:
		if e.Key == KeyCompose || e.Key == KeySlash {
			s.me.typing = true
		}
	case KeyUp:
		switch e.Key {
		case KeyEscape:
			s.me.typing = false
			s.setMessage("")
		case KeyEnter:
			s.me.typing = false
		}
	case VisibilityChange:
		if e.Hidden {
			s.setActivity(ActivityAway)
		} else {
			s.setActivity(ActivityOnline)
		}
	}
}
