package room

import (
	"context"
	"encoding/json"
	"sort"

	"go.uber.org/zap"

	"github.com/DoyleJ11/live-cursor/internal/metrics"
	"github.com/DoyleJ11/live-cursor/pkg/types"
)

type Msg interface{ isRoomMsg() }

type Join struct {
	PeerID string
	State  json.RawMessage
	Outbox chan types.ServerMessage // where this peer wants to receive events
}

func (Join) isRoomMsg() {}

// Leave removes PeerID if it is still bound to Outbox. A nil Outbox matches
// any binding.
type Leave struct {
	PeerID string
	Outbox chan types.ServerMessage
}

func (Leave) isRoomMsg() {}

type Publish struct {
	PeerID  string
	Event   string
	Payload json.RawMessage
}

func (Publish) isRoomMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

// ShutdownIfEmpty stops the room only when nobody is joined and replies
// whether it did.
type ShutdownIfEmpty struct {
	Reply chan bool
}

func (ShutdownIfEmpty) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

type View struct {
	Name     string
	NumPeers int
	Peers    []json.RawMessage
}

type Options struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	// OnEmpty runs on the room goroutine whenever the last peer leaves.
	// It must not block.
	OnEmpty func(*Room)
}

type member struct {
	out   chan types.ServerMessage
	state json.RawMessage
	seq   uint64
}

type Room struct {
	name    string
	inbox   chan Msg
	members map[string]*member
	seq     uint64
	opts    Options
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewRoom(parent context.Context, name string, opts Options) *Room {
	ctx, cancel := context.WithCancel(parent)
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	r := &Room{
		name:    name,
		inbox:   make(chan Msg, 64), // Small buffer
		members: make(map[string]*member),
		opts:    opts,
		log:     opts.Logger.With(zap.String("channel", name)),
		ctx:     ctx,
		cancel:  cancel,
	}
	opts.Metrics.RoomOpened()

	go r.loop()
	return r
}

func (r *Room) Name() string { return r.name }

// Expose the inbox so tests or the WS layer can send messages.
func (r *Room) Inbox() chan<- Msg { return r.inbox }

// Send delivers m unless the room has shut down.
func (r *Room) Send(m Msg) bool {
	select {
	case <-r.ctx.Done():
		return false
	default:
	}
	select {
	case r.inbox <- m:
		return true
	case <-r.ctx.Done():
		return false
	}
}

// Done is closed once the room has shut down.
func (r *Room) Done() <-chan struct{} { return r.ctx.Done() }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.join(msg)

			case Leave:
				mb, ok := r.members[msg.PeerID]
				if !ok || (msg.Outbox != nil && mb.out != msg.Outbox) {
					break
				}
				r.remove(msg.PeerID)

			case Publish:
				r.publish(msg)

			case GetState:
				msg.Reply <- r.view()

			case ShutdownIfEmpty:
				if len(r.members) > 0 {
					msg.Reply <- false
					break
				}
				msg.Reply <- true
				r.shutdown()
				return

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) join(msg Join) {
	if old, ok := r.members[msg.PeerID]; ok {
		// Same peer reconnecting: the newest socket wins.
		if old.out != msg.Outbox {
			close(old.out)
		}
		old.out = msg.Outbox
		old.state = msg.State
	} else {
		r.seq++
		r.members[msg.PeerID] = &member{out: msg.Outbox, state: msg.State, seq: r.seq}
		r.opts.Metrics.PeerJoined()
	}

	// Register peer + send the current member list immediately
	peers := r.snapshots(msg.PeerID)
	if !r.deliver(msg.PeerID, types.ServerMessage{Type: types.ServerPeers, Peers: peers}) {
		return
	}
	r.log.Debug("peer joined", zap.String("peer", msg.PeerID), zap.Int("peers", len(r.members)))
	r.fanout(types.ServerMessage{
		Type:    types.ServerEvent,
		Event:   types.EventOnline,
		From:    msg.PeerID,
		Payload: msg.State,
	}, msg.PeerID)
}

func (r *Room) publish(msg Publish) {
	mb, ok := r.members[msg.PeerID]
	if !ok {
		return
	}
	if msg.Event != types.EventUpdateState && msg.Event != types.EventSync {
		r.log.Debug("ignoring event", zap.String("peer", msg.PeerID), zap.String("event", msg.Event))
		return
	}
	snap, err := types.DecodeSnapshot(msg.Payload)
	if err != nil || snap.ID != msg.PeerID {
		r.log.Debug("ignoring malformed snapshot", zap.String("peer", msg.PeerID), zap.Error(err))
		return
	}
	mb.state = msg.Payload
	r.fanout(types.ServerMessage{
		Type:    types.ServerEvent,
		Event:   msg.Event,
		From:    msg.PeerID,
		Payload: msg.Payload,
	}, msg.PeerID)
}

// remove drops a member, tells everyone else and reports an empty room.
func (r *Room) remove(id string) {
	mb, ok := r.members[id]
	if !ok {
		return
	}
	close(mb.out)
	delete(r.members, id)
	r.opts.Metrics.PeerLeft()
	r.log.Debug("peer left", zap.String("peer", id), zap.Int("peers", len(r.members)))

	payload, _ := json.Marshal(types.Offline{ID: id})
	r.fanout(types.ServerMessage{
		Type:    types.ServerEvent,
		Event:   types.EventOffline,
		From:    id,
		Payload: payload,
	}, "")

	if len(r.members) == 0 && r.opts.OnEmpty != nil {
		r.opts.OnEmpty(r)
	}
}

func (r *Room) fanout(msg types.ServerMessage, except string) {
	r.opts.Metrics.RecordEvent(msg.Event)
	for id := range r.members {
		if id == except {
			continue
		}
		r.deliver(id, msg)
	}
}

// deliver never blocks the room: a peer whose outbox is full is dropped.
func (r *Room) deliver(id string, msg types.ServerMessage) bool {
	mb, ok := r.members[id]
	if !ok {
		return false
	}
	select {
	case mb.out <- msg:
		return true
	default:
		// Peer is slow/full - drop them.
		r.log.Warn("dropping slow peer", zap.String("peer", id))
		r.opts.Metrics.RecordDrop()
		r.remove(id)
		return false
	}
}

// snapshots returns every member's last state except skip, in join order.
func (r *Room) snapshots(skip string) []json.RawMessage {
	ms := make([]*member, 0, len(r.members))
	for id, mb := range r.members {
		if id != skip {
			ms = append(ms, mb)
		}
	}
	sort.Slice(ms, func(i, j int) bool { return ms[i].seq < ms[j].seq })
	out := make([]json.RawMessage, len(ms))
	for i, mb := range ms {
		out[i] = mb.state
	}
	return out
}

func (r *Room) view() View {
	return View{
		Name:     r.name,
		NumPeers: len(r.members),
		Peers:    r.snapshots(""),
	}
}

func (r *Room) shutdown() {
	for id, mb := range r.members {
		close(mb.out) // Tell peer no more events
		delete(r.members, id)
		r.opts.Metrics.PeerLeft()
	}
	r.opts.Metrics.RoomClosed()
	r.cancel()
}
