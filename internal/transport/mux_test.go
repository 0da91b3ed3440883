package transport

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/live-cursor/pkg/types"
)

func TestMux_OpensOnPeerSubscription(t *testing.T) {
	m := NewMux()
	select {
	case <-m.Opened():
		t.Fatalf("mux opened before SubscribePeers")
	default:
	}

	unsub := m.Subscribe(types.EventOnline, func(json.RawMessage) {})
	select {
	case <-m.Opened():
		t.Fatalf("Subscribe must not open delivery")
	default:
	}

	unsubPeers := m.SubscribePeers(func([]json.RawMessage) {})
	select {
	case <-m.Opened():
	default:
		t.Fatalf("mux still closed after SubscribePeers")
	}
	assert.Equal(t, 2, m.Listeners())

	unsub()
	unsubPeers()
	assert.Zero(t, m.Listeners())
}

func TestMux_RoutesByEvent(t *testing.T) {
	m := NewMux()
	var online, updates []string
	var peers [][]json.RawMessage
	m.Subscribe(types.EventOnline, func(raw json.RawMessage) { online = append(online, string(raw)) })
	unsub := m.Subscribe(types.EventUpdateState, func(raw json.RawMessage) { updates = append(updates, string(raw)) })
	m.SubscribePeers(func(list []json.RawMessage) { peers = append(peers, list) })

	m.Deliver(types.ServerMessage{Type: types.ServerEvent, Event: types.EventOnline, Payload: json.RawMessage(`1`)})
	m.Deliver(types.ServerMessage{Type: types.ServerEvent, Event: types.EventUpdateState, Payload: json.RawMessage(`2`)})
	m.Deliver(types.ServerMessage{Type: types.ServerPeers, Peers: []json.RawMessage{json.RawMessage(`3`)}})
	m.Deliver(types.ServerMessage{Type: types.ServerEvent, Event: types.EventOffline, Payload: json.RawMessage(`4`)})
	unsub()
	m.Deliver(types.ServerMessage{Type: types.ServerEvent, Event: types.EventUpdateState, Payload: json.RawMessage(`5`)})

	assert.Equal(t, []string{"1"}, online)
	assert.Equal(t, []string{"2"}, updates)
	require.Len(t, peers, 1)
	assert.Equal(t, `3`, string(peers[0][0]))
}
