package presence

import "github.com/DoyleJ11/live-cursor/pkg/types"

type Activity string

const (
	ActivityOnline Activity = "online"
	ActivityAway   Activity = "away"
)

// State is one participant's full presence snapshot. The local session and
// every peer share this shape; only the handle differs.
type State struct {
	ID       string
	X        float64
	Y        float64
	Activity Activity
	Message  string
	Color    string
	Name     string
	Avatar   string
	Latency  float64
	Region   string
}

// Snapshot converts the state to its wire form.
func (s State) Snapshot() types.Snapshot {
	x, y := s.X, s.Y
	return types.Snapshot{
		ID:      s.ID,
		X:       &x,
		Y:       &y,
		State:   string(s.Activity),
		Message: s.Message,
		Color:   s.Color,
		Name:    s.Name,
		Avatar:  s.Avatar,
		Latency: s.Latency,
		Region:  s.Region,
	}
}

// FromSnapshot is the inverse of State.Snapshot. A snapshot without an
// activity is treated as online.
func FromSnapshot(snap types.Snapshot) State {
	s := State{
		ID:       snap.ID,
		Activity: Activity(snap.State),
		Message:  snap.Message,
		Color:    snap.Color,
		Name:     snap.Name,
		Avatar:   snap.Avatar,
		Latency:  snap.Latency,
		Region:   snap.Region,
	}
	if snap.X != nil {
		s.X = *snap.X
	}
	if snap.Y != nil {
		s.Y = *snap.Y
	}
	if s.Activity != ActivityAway {
		s.Activity = ActivityOnline
	}
	return s
}

// Peer is a read-only view of a remote participant.
type Peer struct {
	state State
}

func (p Peer) ID() string               { return p.state.ID }
func (p Peer) Position() (x, y float64) { return p.state.X, p.state.Y }
func (p Peer) Activity() Activity       { return p.state.Activity }
func (p Peer) Message() string          { return p.state.Message }
func (p Peer) Color() string            { return p.state.Color }
func (p Peer) Name() string             { return p.state.Name }
func (p Peer) Avatar() string           { return p.state.Avatar }
func (p Peer) Latency() float64         { return p.state.Latency }
func (p Peer) Region() string           { return p.state.Region }

// State returns a copy of the peer's last known snapshot.
func (p Peer) State() State { return p.state }
