package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/DoyleJ11/live-cursor/internal/hub"
	"github.com/DoyleJ11/live-cursor/internal/room"
	"github.com/DoyleJ11/live-cursor/pkg/types"
)

var (
	ErrJoinExpected  = errors.New("first message must be a join")
	ErrChannelSwitch = errors.New("join names a different channel")
)

type Options struct {
	Logger *zap.Logger
	// OriginPatterns is passed to websocket.Accept. Empty means same-origin only.
	OriginPatterns []string
	JoinTimeout    time.Duration
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	OutboxSize     int
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.JoinTimeout <= 0 {
		o.JoinTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 3 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 20 * time.Second
	}
	if o.OutboxSize <= 0 {
		o.OutboxSize = 64
	}
	return o
}

// Handler upgrades GET /ws?channel=<name>. The Authorization header is
// accepted but not checked.
func Handler(h *hub.Hub, opts Options) http.HandlerFunc {
	opts = opts.withDefaults()
	return func(w http.ResponseWriter, r *http.Request) {
		channel := r.URL.Query().Get("channel")
		if channel == "" {
			http.Error(w, "missing channel", http.StatusBadRequest)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		log := opts.Logger.With(zap.String("channel", channel))

		peerID, state, err := readJoin(r.Context(), conn, channel, opts.JoinTimeout)
		if err != nil {
			log.Debug("rejecting connection", zap.Error(err))
			writeError(r.Context(), conn, err.Error(), opts.WriteTimeout)
			conn.Close(websocket.StatusPolicyViolation, "join required")
			return
		}
		log = log.With(zap.String("peer", peerID))

		out := make(chan types.ServerMessage, opts.OutboxSize)
		reply := make(chan *room.Room, 1)
		if !h.Send(hub.Join{
			Channel: channel,
			Join:    room.Join{PeerID: peerID, State: state, Outbox: out},
			Reply:   reply,
		}) {
			conn.Close(websocket.StatusGoingAway, "shutting down")
			return
		}
		var rm *room.Room
		select {
		case rm = <-reply:
		case <-h.Done():
			// The hub stopped before it got to our join.
			conn.Close(websocket.StatusGoingAway, "shutting down")
			return
		}
		defer rm.Send(room.Leave{PeerID: peerID, Outbox: out})
		log.Debug("peer connected")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine
		go func() {
			defer cancel()
			ticker := time.NewTicker(opts.PingInterval)
			defer ticker.Stop()
			for {
				select {
				case msg, ok := <-out:
					if !ok {
						// The room let go of us: dropped, replaced or shut down.
						conn.Close(websocket.StatusGoingAway, "removed from channel")
						return
					}
					payload, _ := json.Marshal(msg)
					wctx, wcancel := context.WithTimeout(ctx, opts.WriteTimeout)
					err := conn.Write(wctx, websocket.MessageText, payload)
					wcancel()
					if err != nil {
						return
					}

				case <-ticker.C:
					pctx, pcancel := context.WithTimeout(ctx, opts.WriteTimeout)
					err := conn.Ping(pctx)
					pcancel()
					if err != nil {
						log.Debug("ping failed", zap.Error(err))
						return
					}

				case <-ctx.Done():
					return
				}
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("read failed", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeError(ctx, conn, "bad json", opts.WriteTimeout)
				continue
			}

			switch cm.Type {
			case types.ClientBroadcast:
				if !rm.Send(room.Publish{PeerID: peerID, Event: cm.Event, Payload: cm.Payload}) {
					return
				}
			case types.ClientLeave:
				return
			default:
				writeError(ctx, conn, "unknown type", opts.WriteTimeout)
			}
		}
	}
}

func readJoin(ctx context.Context, conn *websocket.Conn, channel string, timeout time.Duration) (string, json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("read join: %w", err)
	}
	var cm types.ClientMessage
	if err := json.Unmarshal(data, &cm); err != nil {
		return "", nil, fmt.Errorf("decode join: %w", err)
	}
	if cm.Type != types.ClientJoin {
		return "", nil, ErrJoinExpected
	}
	if cm.Channel != "" && cm.Channel != channel {
		return "", nil, ErrChannelSwitch
	}
	snap, err := types.DecodeSnapshot(cm.Payload)
	if err != nil {
		return "", nil, fmt.Errorf("join snapshot: %w", err)
	}
	return snap.ID, cm.Payload, nil
}

func writeError(ctx context.Context, conn *websocket.Conn, reason string, timeout time.Duration) {
	payload, _ := json.Marshal(types.ServerMessage{Type: types.ServerError, Error: reason})
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_ = conn.Write(ctx, websocket.MessageText, payload)
}
