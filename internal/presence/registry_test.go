package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_NeverHoldsSelfOrDuplicates(t *testing.T) {
	r := newRegistry("me", 0)

	assert.False(t, r.insert(State{ID: "me"}))
	assert.False(t, r.insert(State{}))
	assert.True(t, r.insert(State{ID: "a", X: 1}))
	assert.False(t, r.insert(State{ID: "a", X: 2}))
	added, changed := r.upsert(State{ID: "me", X: 3})
	assert.False(t, added)
	assert.False(t, changed)

	require.Equal(t, 1, r.len())
	p, ok := r.get("a")
	require.True(t, ok)
	x, _ := p.Position()
	assert.Equal(t, 1.0, x)
}

func TestRegistry_UpsertReportsChanges(t *testing.T) {
	r := newRegistry("me", 0)

	added, changed := r.upsert(State{ID: "a", X: 1})
	assert.True(t, added)
	assert.True(t, changed)

	added, changed = r.upsert(State{ID: "a", X: 1})
	assert.False(t, added)
	assert.False(t, changed)

	added, changed = r.upsert(State{ID: "a", X: 2})
	assert.False(t, added)
	assert.True(t, changed)
}

func TestRegistry_ListKeepsFirstSeenOrder(t *testing.T) {
	r := newRegistry("me", 0)
	r.insert(State{ID: "c"})
	r.upsert(State{ID: "a"})
	r.insert(State{ID: "b"})
	r.upsert(State{ID: "c", X: 5})

	assert.Equal(t, []string{"c", "a", "b"}, peerIDs(r.list()))
}

func TestRegistry_TombstonesBlockUpsertUntilOnline(t *testing.T) {
	r := newRegistry("me", 0)
	r.insert(State{ID: "a"})

	p, ok := r.remove("a")
	require.True(t, ok)
	assert.Equal(t, "a", p.ID())

	added, _ := r.upsert(State{ID: "a"})
	assert.False(t, added)
	assert.Zero(t, r.len())

	assert.True(t, r.insert(State{ID: "a"}))
	added, changed := r.upsert(State{ID: "a", Y: 1})
	assert.False(t, added)
	assert.True(t, changed)
}

func TestRegistry_TombstonesAreBounded(t *testing.T) {
	r := newRegistry("me", 2)
	r.remove("a")
	r.remove("b")
	r.remove("c")

	require.Len(t, r.gone, 2)
	_, oldest := r.gone["a"]
	assert.False(t, oldest)

	added, _ := r.upsert(State{ID: "a"})
	assert.True(t, added)
}
