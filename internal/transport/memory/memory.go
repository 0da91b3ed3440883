// Package memory is an in-process presence transport backed by a hub.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/DoyleJ11/live-cursor/internal/hub"
	"github.com/DoyleJ11/live-cursor/internal/presence"
	"github.com/DoyleJ11/live-cursor/internal/room"
	"github.com/DoyleJ11/live-cursor/internal/transport"
	"github.com/DoyleJ11/live-cursor/pkg/types"
)

var (
	ErrHubClosed = errors.New("memory transport: hub closed")
	ErrLeft      = errors.New("memory transport: channel left")
)

const DefaultOutboxSize = 256

type Options struct {
	OutboxSize int
	Logger     *zap.Logger
}

type Transport struct {
	hub  *hub.Hub
	opts Options
}

func New(h *hub.Hub, opts Options) *Transport {
	if opts.OutboxSize <= 0 {
		opts.OutboxSize = DefaultOutboxSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Transport{hub: h, opts: opts}
}

func (t *Transport) Join(ctx context.Context, name string, initial presence.State) (presence.Channel, error) {
	state, err := json.Marshal(initial.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("encode initial state: %w", err)
	}

	out := make(chan types.ServerMessage, t.opts.OutboxSize)
	reply := make(chan *room.Room, 1)
	join := hub.Join{
		Channel: name,
		Join:    room.Join{PeerID: initial.ID, State: state, Outbox: out},
		Reply:   reply,
	}
	select {
	case <-t.hub.Done():
		return nil, ErrHubClosed
	default:
	}
	select {
	case t.hub.Inbox() <- join:
	case <-t.hub.Done():
		return nil, ErrHubClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var rm *room.Room
	select {
	case rm = <-reply:
	case <-t.hub.Done():
		return nil, ErrHubClosed
	case <-ctx.Done():
		// The join is already on its way; undo it once it lands.
		go func() {
			select {
			case rm := <-reply:
				rm.Send(room.Leave{PeerID: initial.ID, Outbox: out})
			case <-t.hub.Done():
			}
		}()
		return nil, ctx.Err()
	}

	c := &channel{
		id:   initial.ID,
		room: rm,
		out:  out,
		mux:  transport.NewMux(),
		left: make(chan struct{}),
		log:  t.opts.Logger.With(zap.String("channel", name), zap.String("peer", initial.ID)),
	}
	go c.dispatch()
	return c, nil
}

type channel struct {
	id   string
	room *room.Room
	out  chan types.ServerMessage
	mux  *transport.Mux

	left      chan struct{}
	leaveOnce sync.Once
	log       *zap.Logger
}

func (c *channel) Broadcast(event string, s presence.State) error {
	select {
	case <-c.left:
		return ErrLeft
	default:
	}
	payload, err := json.Marshal(s.Snapshot())
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if !c.room.Send(room.Publish{PeerID: c.id, Event: event, Payload: payload}) {
		return ErrLeft
	}
	return nil
}

func (c *channel) Subscribe(event string, h func(json.RawMessage)) func() {
	return c.mux.Subscribe(event, h)
}

func (c *channel) SubscribePeers(h func([]json.RawMessage)) func() {
	return c.mux.SubscribePeers(h)
}

// Leave is idempotent. It does not wait for in-flight deliveries.
func (c *channel) Leave(ctx context.Context) error {
	var err error
	c.leaveOnce.Do(func() {
		close(c.left)
		select {
		case c.room.Inbox() <- room.Leave{PeerID: c.id, Outbox: c.out}:
		case <-c.room.Done():
		case <-ctx.Done():
			err = ctx.Err()
		}
	})
	return err
}

func (c *channel) dispatch() {
	select {
	case <-c.mux.Opened():
	case <-c.left:
		return
	case <-c.room.Done():
		return
	}
	for msg := range c.out {
		select {
		case <-c.left:
			return
		default:
		}
		c.mux.Deliver(msg)
	}
	c.log.Debug("outbox closed")
}
