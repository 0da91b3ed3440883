package presence

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/DoyleJ11/live-cursor/pkg/types"
)

// subscribe wires the ingestion handlers onto ch. Every handler only posts
// into the loop; the registry is mutated there. SubscribePeers goes last
// because it opens delivery.
func (s *Session) subscribe(ch Channel) {
	for _, event := range []string{EventOnline, EventSync, EventUpdateState, EventOffline} {
		s.res.add(ch.Subscribe(event, func(raw json.RawMessage) {
			s.post(inbound{event: event, raw: raw})
		}))
	}
	s.res.add(ch.SubscribePeers(func(list []json.RawMessage) {
		s.post(peerList{raws: list})
	}))
}

func (s *Session) ingest(m inbound) {
	switch m.event {
	case EventOnline, EventSync:
		st, ok := s.decode(m.event, m.raw)
		if !ok {
			return
		}
		if s.arrive(st) && m.event == EventOnline {
			// a newcomer only knows what the transport told it; answer with ours
			s.bc.now(EventSync, s.me.state)
		}

	case EventUpdateState:
		st, ok := s.decode(m.event, m.raw)
		if !ok {
			return
		}
		added, changed := s.peers.upsert(st)
		if added {
			s.entered(st.ID)
		}
		if changed {
			s.changed()
		}

	case EventOffline:
		var off types.Offline
		if err := json.Unmarshal(m.raw, &off); err != nil || off.ID == "" {
			s.log.Debug("dropping malformed offline event", zap.Error(err))
			return
		}
		p, ok := s.peers.remove(off.ID)
		if !ok {
			return
		}
		s.log.Debug("peer left", zap.String("peer", off.ID))
		if s.opts.OnOtherLeave != nil {
			s.opts.OnOtherLeave(p)
		}
		s.changed()
	}
}

// ingestPeers folds a bulk snapshot of joined peers into the registry.
func (s *Session) ingestPeers(raws []json.RawMessage) {
	added := false
	for _, raw := range raws {
		st, ok := s.decode("peers", raw)
		if !ok {
			continue
		}
		if s.arrive(st) {
			added = true
		}
	}
	if added {
		s.bc.now(EventUpdateState, s.me.state)
	}
}

// arrive inserts st if unknown and reports whether it did.
func (s *Session) arrive(st State) bool {
	if !s.peers.insert(st) {
		return false
	}
	s.entered(st.ID)
	s.changed()
	return true
}

func (s *Session) entered(id string) {
	s.log.Debug("peer joined", zap.String("peer", id))
	if s.opts.OnOtherEntry == nil {
		return
	}
	if p, ok := s.peers.get(id); ok {
		s.opts.OnOtherEntry(p)
	}
}

func (s *Session) changed() {
	if s.opts.OnChange != nil {
		s.opts.OnChange(s.peers.list())
	}
}

func (s *Session) decode(event string, raw json.RawMessage) (State, bool) {
	snap, err := types.DecodeSnapshot(raw)
	if err != nil {
		s.log.Debug("dropping malformed event", zap.String("event", event), zap.Error(err))
		return State{}, false
	}
	return FromSnapshot(snap), true
}
