package hub

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/DoyleJ11/live-cursor/internal/metrics"
	"github.com/DoyleJ11/live-cursor/internal/room"
)

type HubMsg interface{ isHubMsg() }

// Join finds or opens the channel's room and hands it the join in the same
// step, so a room can never be retired between lookup and join.
type Join struct {
	Channel string
	Join    room.Join
	Reply   chan *room.Room
}

type GetRoom struct {
	Channel string
	Reply   chan *room.Room
}

type EnsureRoom struct {
	Channel string
	Reply   chan *room.Room
}

type ListRooms struct {
	Reply chan []*room.Room
}

// RemoveRoom retires Room if it is still the one registered for Channel and
// still empty.
type RemoveRoom struct {
	Channel string
	Room    *room.Room
}

type ShutdownHub struct{}

func (Join) isHubMsg()        {}
func (GetRoom) isHubMsg()     {}
func (EnsureRoom) isHubMsg()  {}
func (ListRooms) isHubMsg()   {}
func (RemoveRoom) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

type Options struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

type Hub struct {
	inbox  chan HubMsg
	rooms  map[string]*room.Room
	opts   Options
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, opts Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*room.Room),
		opts:   opts,
		log:    opts.Logger,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Send delivers m unless the hub has shut down.
func (h *Hub) Send(m HubMsg) bool {
	select {
	case <-h.ctx.Done():
		return false
	default:
	}
	select {
	case h.inbox <- m:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Join:
				rm := h.ensure(msg.Channel)
				if !rm.Send(msg.Join) {
					delete(h.rooms, msg.Channel)
					rm = h.ensure(msg.Channel)
					rm.Send(msg.Join)
				}
				msg.Reply <- rm

			case GetRoom:
				msg.Reply <- h.rooms[msg.Channel] // May be nil

			case EnsureRoom:
				msg.Reply <- h.ensure(msg.Channel)

			case ListRooms:
				rooms := make([]*room.Room, 0, len(h.rooms))
				for _, rm := range h.rooms {
					rooms = append(rooms, rm)
				}
				sort.Slice(rooms, func(i, j int) bool { return rooms[i].Name() < rooms[j].Name() })
				msg.Reply <- rooms

			case RemoveRoom:
				h.remove(msg)

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) ensure(name string) *room.Room {
	if rm := h.rooms[name]; rm != nil {
		return rm
	}
	rm := room.NewRoom(h.ctx, name, room.Options{
		Logger:  h.log,
		Metrics: h.opts.Metrics,
		OnEmpty: func(rm *room.Room) {
			// The room goroutine must not wait on the hub.
			go h.Send(RemoveRoom{Channel: rm.Name(), Room: rm})
		},
	})
	h.rooms[name] = rm
	h.log.Debug("room opened", zap.String("channel", name))
	return rm
}

func (h *Hub) remove(msg RemoveRoom) {
	rm := h.rooms[msg.Channel]
	if rm == nil || rm != msg.Room {
		return
	}
	reply := make(chan bool, 1)
	if rm.Send(room.ShutdownIfEmpty{Reply: reply}) {
		select {
		case ok := <-reply:
			if !ok {
				// Someone joined after the room reported empty.
				return
			}
		case <-rm.Done():
		}
	}
	delete(h.rooms, msg.Channel)
	h.log.Debug("room closed", zap.String("channel", msg.Channel))
}

func (h *Hub) shutdown() {
	for _, rm := range h.rooms {
		rm.Send(room.Shutdown{})
	}
	clear(h.rooms)
	h.cancel()
}
