package types

import "encoding/json"

// Client -> Server
// join (first frame on the socket):
//   channel: string
//   payload: Snapshot
//
// broadcast:
//   event: "update-state" | "sync"
//   payload: Snapshot
//
// leave: {}

// Server -> Client
// peers (sent once, right after join):
//   peers: Snapshot[] // every other member's last known snapshot
//
// event:
//   event: "online" | "sync" | "update-state" | "offline"
//   from: string // sender id, stamped by the server
//   payload: Snapshot | { id: string } for offline
//
// error:
//   error: string

const (
	EventOnline      = "online"
	EventOffline     = "offline"
	EventSync        = "sync"
	EventUpdateState = "update-state"
)

const (
	ClientJoin      = "join"
	ClientBroadcast = "broadcast"
	ClientLeave     = "leave"

	ServerPeers = "peers"
	ServerEvent = "event"
	ServerError = "error"
)

type ClientMessage struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Event   string          `json:"event,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ServerMessage struct {
	Type    string            `json:"type"`
	Event   string            `json:"event,omitempty"`
	From    string            `json:"from,omitempty"`
	Payload json.RawMessage   `json:"payload,omitempty"`
	Peers   []json.RawMessage `json:"peers,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// Offline is the payload of an offline event.
type Offline struct {
	ID string `json:"id"`
}
