package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"math/big"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/live-cursor/internal/catalog"
	"github.com/DoyleJ11/live-cursor/internal/hub"
	"github.com/DoyleJ11/live-cursor/internal/room"
)

const maxCodeAttempts = 8

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

type channelInfo struct {
	Name      string     `json:"name"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	Peers     int        `json:"peers"`
}

// CreateChannel reserves a fresh random channel name. The room itself opens
// on the first join.
func CreateChannel(h *hub.Hub, store catalog.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var code string
		for attempt := 0; attempt < maxCodeAttempts && code == ""; attempt++ {
			c, err := GenerateCode()
			if err != nil {
				http.Error(w, "failed to generate code", http.StatusInternalServerError)
				return
			}
			rm, ok := getRoom(h, c)
			if !ok {
				http.Error(w, "shutting down", http.StatusServiceUnavailable)
				return
			}
			if rm == nil {
				code = c
				break
			}
			log.Debug("collision on code, regenerating", zap.String("code", c))
		}
		if code == "" {
			http.Error(w, "failed to generate code", http.StatusInternalServerError)
			return
		}

		if err := store.Record(r.Context(), code); err != nil {
			log.Error("record channel", zap.String("channel", code), zap.Error(err))
			http.Error(w, "failed to create channel", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, struct {
			Channel string `json:"channel"`
		}{Channel: code})
	}
}

// ListChannels merges the catalog with the rooms that are live right now.
func ListChannels(h *hub.Hub, store catalog.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		known, err := store.List(r.Context())
		if err != nil {
			log.Error("list channels", zap.Error(err))
			http.Error(w, "failed to list channels", http.StatusInternalServerError)
			return
		}

		reply := make(chan []*room.Room, 1)
		if !h.Send(hub.ListRooms{Reply: reply}) {
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}
		var rooms []*room.Room
		select {
		case rooms = <-reply:
		case <-h.Done():
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}
		live := make(map[string]int)
		var order []string
		for _, rm := range rooms {
			if v, ok := roomView(rm); ok {
				live[v.Name] = v.NumPeers
				order = append(order, v.Name)
			}
		}

		out := make([]channelInfo, 0, len(known)+len(order))
		seen := make(map[string]bool, len(known))
		for _, c := range known {
			created := c.CreatedAt
			out = append(out, channelInfo{Name: c.Name, CreatedAt: &created, Peers: live[c.Name]})
			seen[c.Name] = true
		}
		for _, name := range order {
			if !seen[name] {
				out = append(out, channelInfo{Name: name, Peers: live[name]})
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// Peers returns the last snapshot of everyone joined to a channel.
func Peers(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		rm, ok := getRoom(h, name)
		if !ok {
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}
		peers := []json.RawMessage{}
		if rm != nil {
			if v, ok := roomView(rm); ok {
				peers = append(peers, v.Peers...)
			}
		}
		writeJSON(w, http.StatusOK, struct {
			Channel string            `json:"channel"`
			Peers   []json.RawMessage `json:"peers"`
		}{Channel: name, Peers: peers})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// getRoom reports ok=false when the hub stops before answering.
func getRoom(h *hub.Hub, name string) (*room.Room, bool) {
	reply := make(chan *room.Room, 1)
	if !h.Send(hub.GetRoom{Channel: name, Reply: reply}) {
		return nil, false
	}
	select {
	case rm := <-reply:
		return rm, true
	case <-h.Done():
		return nil, false
	}
}

// roomView asks rm for its state; ok is false if the room already closed.
func roomView(rm *room.Room) (room.View, bool) {
	reply := make(chan room.View, 1)
	if !rm.Send(room.GetState{Reply: reply}) {
		return room.View{}, false
	}
	select {
	case v := <-reply:
		return v, true
	case <-rm.Done():
		return room.View{}, false
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
