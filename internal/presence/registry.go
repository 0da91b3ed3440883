package presence

import "sort"

// DefaultTombstones bounds how many departed peer ids are remembered.
const DefaultTombstones = 1024

type entry struct {
	state State
	seq   uint64
}

// registry maps peer id to last known snapshot. It is owned by the session
// loop and never holds the local id.
type registry struct {
	self  string
	peers map[string]*entry
	seq   uint64

	// ids that went offline; update-state alone cannot bring them back.
	gone    map[string]uint64
	maxGone int
}

func newRegistry(self string, maxGone int) *registry {
	if maxGone <= 0 {
		maxGone = DefaultTombstones
	}
	return &registry{
		self:    self,
		peers:   make(map[string]*entry),
		gone:    make(map[string]uint64),
		maxGone: maxGone,
	}
}

// insert adds s if its id is unknown. It reports whether an entry was added.
func (r *registry) insert(s State) bool {
	if s.ID == "" || s.ID == r.self {
		return false
	}
	delete(r.gone, s.ID)
	if _, ok := r.peers[s.ID]; ok {
		return false
	}
	r.seq++
	r.peers[s.ID] = &entry{state: s, seq: r.seq}
	return true
}

// upsert replaces the whole snapshot for s.ID, adding it if unknown. Ids
// that went offline are ignored until they are observed online again.
func (r *registry) upsert(s State) (added, changed bool) {
	if s.ID == "" || s.ID == r.self {
		return false, false
	}
	if _, ok := r.gone[s.ID]; ok {
		return false, false
	}
	e, ok := r.peers[s.ID]
	if !ok {
		r.seq++
		r.peers[s.ID] = &entry{state: s, seq: r.seq}
		return true, true
	}
	if e.state == s {
		return false, false
	}
	e.state = s
	return false, true
}

// remove drops id and tombstones it.
func (r *registry) remove(id string) (Peer, bool) {
	if id == "" || id == r.self {
		return Peer{}, false
	}
	r.seq++
	r.gone[id] = r.seq
	r.pruneGone()
	e, ok := r.peers[id]
	if !ok {
		return Peer{}, false
	}
	delete(r.peers, id)
	return Peer{state: e.state}, true
}

func (r *registry) get(id string) (Peer, bool) {
	e, ok := r.peers[id]
	if !ok {
		return Peer{}, false
	}
	return Peer{state: e.state}, true
}

func (r *registry) len() int { return len(r.peers) }

// list returns peers in the order they were first seen.
func (r *registry) list() []Peer {
	entries := make([]*entry, 0, len(r.peers))
	for _, e := range r.peers {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]Peer, len(entries))
	for i, e := range entries {
		out[i] = Peer{state: e.state}
	}
	return out
}

func (r *registry) clear() {
	clear(r.peers)
}

// pruneGone evicts the oldest tombstones beyond maxGone.
func (r *registry) pruneGone() {
	for len(r.gone) > r.maxGone {
		var oldest string
		var oldestSeq uint64 = ^uint64(0)
		for id, seq := range r.gone {
			if seq < oldestSeq {
				oldest, oldestSeq = id, seq
			}
		}
		delete(r.gone, oldest)
	}
}
