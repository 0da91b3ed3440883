// Package catalog remembers which channels have been created. It holds
// names and creation times only, never presence state.
package catalog

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var ErrEmptyName = errors.New("catalog: empty channel name")

type Channel struct {
	Name      string    `gorm:"primaryKey" json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Channel) TableName() string { return "channels" }

type Store interface {
	// Record adds name if it is not known yet.
	Record(ctx context.Context, name string) error
	// List returns every channel, oldest first.
	List(ctx context.Context) ([]Channel, error)
}

type MemoryStore struct {
	mu       sync.Mutex
	channels map[string]Channel
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{channels: make(map[string]Channel), now: time.Now}
}

func (m *MemoryStore) Record(_ context.Context, name string) error {
	if name == "" {
		return ErrEmptyName
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.channels[name]; !ok {
		m.channels[name] = Channel{Name: name, CreatedAt: m.now()}
	}
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Channel, 0, len(m.channels))
	for _, c := range m.channels {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
