// Package wsclient is a presence transport that talks to the relay server
// over a websocket.
package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/live-cursor/internal/presence"
	"github.com/DoyleJ11/live-cursor/internal/transport"
	"github.com/DoyleJ11/live-cursor/pkg/types"
)

var (
	ErrNoURL       = errors.New("wsclient: missing server url")
	ErrLeft        = errors.New("wsclient: channel left")
	ErrOutboxFull  = errors.New("wsclient: outbox full, update dropped")
	ErrAuthRefused = errors.New("wsclient: auth endpoint refused")
)

type Config struct {
	// URL is the server's websocket endpoint, e.g. ws://localhost:8080/ws.
	URL string
	// AuthEndpoint, when set, is fetched before dialing. It must answer
	// {"token": "..."}; the token is sent as a bearer header.
	AuthEndpoint string
	HTTPClient   *http.Client
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	OutboxSize   int
	Logger       *zap.Logger
}

type Transport struct {
	cfg Config
}

func New(cfg Config) (*Transport, error) {
	if cfg.URL == "" {
		return nil, ErrNoURL
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("wsclient: parse url: %w", err)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 5 * time.Second}
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 3 * time.Second
	}
	if cfg.OutboxSize <= 0 {
		cfg.OutboxSize = 64
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Transport{cfg: cfg}, nil
}

func (t *Transport) Join(ctx context.Context, name string, initial presence.State) (presence.Channel, error) {
	header := http.Header{}
	tok, err := t.token(ctx)
	if err != nil {
		return nil, err
	}
	if tok != "" {
		header.Set("Authorization", "Bearer "+tok)
	}

	u, _ := url.Parse(t.cfg.URL)
	q := u.Query()
	q.Set("channel", name)
	u.RawQuery = q.Encode()

	dctx, cancel := context.WithTimeout(ctx, t.cfg.DialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(dctx, u.String(), &websocket.DialOptions{
		HTTPClient: t.cfg.HTTPClient,
		HTTPHeader: header,
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", t.cfg.URL, err)
	}

	payload, err := json.Marshal(initial.Snapshot())
	if err != nil {
		conn.Close(websocket.StatusInternalError, "encode")
		return nil, fmt.Errorf("encode initial state: %w", err)
	}
	join, _ := json.Marshal(types.ClientMessage{Type: types.ClientJoin, Channel: name, Payload: payload})
	if err := conn.Write(dctx, websocket.MessageText, join); err != nil {
		conn.Close(websocket.StatusInternalError, "join")
		return nil, fmt.Errorf("send join: %w", err)
	}

	life, stop := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(life)
	c := &channel{
		conn:  conn,
		mux:   transport.NewMux(),
		out:   make(chan []byte, t.cfg.OutboxSize),
		left:  make(chan struct{}),
		stop:  stop,
		write: t.cfg.WriteTimeout,
		log:   t.cfg.Logger.With(zap.String("channel", name), zap.String("peer", initial.ID)),
	}
	g.Go(func() error { return c.readLoop(gctx) })
	g.Go(func() error { return c.writeLoop(gctx) })
	go func() {
		if err := g.Wait(); err != nil {
			c.log.Debug("connection closed", zap.Error(err))
		}
		stop()
	}()
	return c, nil
}

func (t *Transport) token(ctx context.Context) (string, error) {
	if t.cfg.AuthEndpoint == "" {
		return "", nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.cfg.AuthEndpoint, nil)
	if err != nil {
		return "", fmt.Errorf("auth request: %w", err)
	}
	resp, err := t.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrAuthRefused, resp.StatusCode)
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode auth response: %w", err)
	}
	return body.Token, nil
}

type channel struct {
	conn  *websocket.Conn
	mux   *transport.Mux
	out   chan []byte
	write time.Duration
	log   *zap.Logger

	left      chan struct{}
	leaveOnce sync.Once
	stop      context.CancelFunc
}

// Broadcast queues the frame and returns at once. A full outbox drops it.
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
	frame, _ := json.Marshal(types.ClientMessage{Type: types.ClientBroadcast, Event: event, Payload: payload})
	select {
	case c.out <- frame:
		return nil
	default:
		return ErrOutboxFull
	}
}

func (c *channel) Subscribe(event string, h func(json.RawMessage)) func() {
	return c.mux.Subscribe(event, h)
}

func (c *channel) SubscribePeers(h func([]json.RawMessage)) func() {
	return c.mux.SubscribePeers(h)
}

// Leave sends a leave frame and closes the socket. Only the first call does
// anything.
func (c *channel) Leave(ctx context.Context) error {
	var err error
	c.leaveOnce.Do(func() {
		close(c.left)
		frame, _ := json.Marshal(types.ClientMessage{Type: types.ClientLeave})
		writeErr := c.conn.Write(ctx, websocket.MessageText, frame)
		closeErr := c.conn.Close(websocket.StatusNormalClosure, "leave")
		if websocket.CloseStatus(closeErr) == websocket.StatusNormalClosure {
			closeErr = nil
		}
		c.stop()
		err = multierr.Combine(writeErr, closeErr)
	})
	return err
}

func (c *channel) readLoop(ctx context.Context) error {
	select {
	case <-c.mux.Opened():
	case <-ctx.Done():
		return nil
	}
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			select {
			case <-c.left:
				return nil
			default:
				return fmt.Errorf("read: %w", err)
			}
		}
		var msg types.ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Debug("dropping undecodable frame", zap.Error(err))
			continue
		}
		if msg.Type == types.ServerError {
			c.log.Warn("server error", zap.String("error", msg.Error))
			continue
		}
		c.mux.Deliver(msg)
	}
}

func (c *channel) writeLoop(ctx context.Context) error {
	for {
		select {
		case frame := <-c.out:
			wctx, cancel := context.WithTimeout(ctx, c.write)
			err := c.conn.Write(wctx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				return fmt.Errorf("write: %w", err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}
