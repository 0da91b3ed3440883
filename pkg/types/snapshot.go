package types

import (
	"encoding/json"
	"errors"
)

var ErrMissingID = errors.New("snapshot missing id")
var ErrMissingPosition = errors.New("snapshot missing position")

// Snapshot is the full participant state as it travels on the wire:
//   id: string
//   x, y: number
//   state: "online" | "away"
//   message, color, name, avatar, region: string
//   latency: number
//
// X and Y are pointers so a frame without coordinates can be told apart
// from a cursor sitting at the origin.
type Snapshot struct {
	ID      string   `json:"id"`
	X       *float64 `json:"x"`
	Y       *float64 `json:"y"`
	State   string   `json:"state,omitempty"`
	Message string   `json:"message"`
	Color   string   `json:"color,omitempty"`
	Name    string   `json:"name,omitempty"`
	Avatar  string   `json:"avatar,omitempty"`
	Latency float64  `json:"latency,omitempty"`
	Region  string   `json:"region,omitempty"`
}

func (s Snapshot) Validate() error {
	if s.ID == "" {
		return ErrMissingID
	}
	if s.X == nil || s.Y == nil {
		return ErrMissingPosition
	}
	return nil
}

// DecodeSnapshot parses and validates a raw snapshot payload.
func DecodeSnapshot(raw json.RawMessage) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return Snapshot{}, err
	}
	if err := s.Validate(); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}
