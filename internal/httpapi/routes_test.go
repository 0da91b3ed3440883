package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/live-cursor/internal/catalog"
	"github.com/DoyleJ11/live-cursor/internal/hub"
	"github.com/DoyleJ11/live-cursor/internal/room"
	"github.com/DoyleJ11/live-cursor/pkg/types"
)

func newServer(t *testing.T) (*httptest.Server, *hub.Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := hub.NewHub(ctx, hub.Options{})
	srv := httptest.NewServer(SetupRoutes(h, Options{Catalog: catalog.NewMemoryStore()}))
	t.Cleanup(srv.Close)
	return srv, h
}

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode()
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[A-Z0-9]{6}$`), code)
}

func TestCreateAndListChannels(t *testing.T) {
	srv, _ := newServer(t)

	resp, err := http.Post(srv.URL+"/channels", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		Channel string `json:"channel"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Len(t, created.Channel, 6)

	resp, err = http.Get(srv.URL + "/channels")
	require.NoError(t, err)
	defer resp.Body.Close()
	var list []channelInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, created.Channel, list[0].Name)
	assert.NotNil(t, list[0].CreatedAt)
	assert.Zero(t, list[0].Peers)
}

func TestPeersAndLiveRooms(t *testing.T) {
	srv, h := newServer(t)

	out := make(chan types.ServerMessage, 4)
	reply := make(chan *room.Room, 1)
	h.Inbox() <- hub.Join{
		Channel: "live-cursor",
		Join:    room.Join{PeerID: "a", State: json.RawMessage(`{"id":"a","x":1,"y":2,"message":""}`), Outbox: out},
		Reply:   reply,
	}
	<-reply

	resp, err := http.Get(srv.URL + "/channels/live-cursor/peers")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body struct {
		Channel string           `json:"channel"`
		Peers   []types.Snapshot `json:"peers"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "live-cursor", body.Channel)
	require.Len(t, body.Peers, 1)
	assert.Equal(t, "a", body.Peers[0].ID)

	resp, err = http.Get(srv.URL + "/channels")
	require.NoError(t, err)
	defer resp.Body.Close()
	var list []channelInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, channelInfo{Name: "live-cursor", Peers: 1}, list[0])

	resp, err = http.Get(srv.URL + "/channels/nobody/peers")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Empty(t, body.Peers)
}

func TestHealthzMetricsAndWS(t *testing.T) {
	srv, _ := newServer(t)

	for _, path := range []string{"/healthz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRoutesAnswerUnavailableWhenHubStops(t *testing.T) {
	h := hub.NewHub(context.Background(), hub.Options{})
	srv := httptest.NewServer(SetupRoutes(h, Options{Catalog: catalog.NewMemoryStore()}))
	t.Cleanup(srv.Close)

	// hold the hub loop on an unread reply, then queue its shutdown
	parked := make(chan *room.Room)
	h.Inbox() <- hub.GetRoom{Channel: "live-cursor", Reply: parked}
	h.Inbox() <- hub.ShutdownHub{}

	type result struct {
		path   string
		status int
		err    error
	}
	paths := []string{"/channels/live-cursor/peers", "/channels"}
	results := make(chan result, len(paths))
	client := &http.Client{Timeout: 2 * time.Second}
	for _, path := range paths {
		go func(path string) {
			resp, err := client.Get(srv.URL + path)
			if err != nil {
				results <- result{path: path, err: err}
				return
			}
			resp.Body.Close()
			results <- result{path: path, status: resp.StatusCode}
		}(path)
	}
	time.Sleep(50 * time.Millisecond)
	<-parked

	for range paths {
		res := <-results
		require.NoError(t, res.err, res.path)
		assert.Equal(t, http.StatusServiceUnavailable, res.status, res.path)
	}
}
