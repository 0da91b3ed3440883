// Package metrics exposes relay counters to Prometheus.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ActivePeers  prometheus.Gauge
	ActiveRooms  prometheus.Gauge
	EventsTotal  *prometheus.CounterVec
	DroppedPeers prometheus.Counter
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

func New() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			ActivePeers: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "livecursor_active_peers",
				Help: "Current number of peers joined to any channel",
			}),
			ActiveRooms: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "livecursor_active_rooms",
				Help: "Current number of open channels",
			}),
			EventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "livecursor_events_total",
				Help: "Total number of presence events relayed, by event name",
			}, []string{"event"}),
			DroppedPeers: promauto.NewCounter(prometheus.CounterOpts{
				Name: "livecursor_dropped_peers_total",
				Help: "Total number of peers dropped for falling behind",
			}),
		}
	})
	return metricsInstance
}

func (m *Metrics) PeerJoined() {
	if m == nil || m.ActivePeers == nil {
		return
	}
	m.ActivePeers.Inc()
}

func (m *Metrics) PeerLeft() {
	if m == nil || m.ActivePeers == nil {
		return
	}
	m.ActivePeers.Dec()
}

func (m *Metrics) RoomOpened() {
	if m == nil || m.ActiveRooms == nil {
		return
	}
	m.ActiveRooms.Inc()
}

func (m *Metrics) RoomClosed() {
	if m == nil || m.ActiveRooms == nil {
		return
	}
	m.ActiveRooms.Dec()
}

func (m *Metrics) RecordEvent(event string) {
	if m == nil || m.EventsTotal == nil {
		return
	}
	m.EventsTotal.WithLabelValues(event).Inc()
}

func (m *Metrics) RecordDrop() {
	if m == nil || m.DroppedPeers == nil {
		return
	}
	m.DroppedPeers.Inc()
}
