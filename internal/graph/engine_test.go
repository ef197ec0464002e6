package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_AddTransfer(t *testing.T) {
	g := New()
	g.AddTransfer("walletA", "walletB")

	require.NotNil(t, g.Node("walletA"))
	require.NotNil(t, g.Node("walletB"))
	assert.Equal(t, []string{"walletB"}, g.Successors("walletA"))
	assert.Equal(t, []string{"walletA"}, g.Predecessors("walletB"))
	assert.Equal(t, 1, g.OutDegree("walletA"))
	assert.Equal(t, 0, g.InDegree("walletA"))
	assert.Equal(t, 1, g.Stats().EdgeCount)
}

func TestGraph_RepeatedTransfersCollapse(t *testing.T) {
	g := New()
	for i := 0; i < 5; i++ {
		g.AddTransfer("a", "b")
	}

	assert.Equal(t, 1, g.OutDegree("a"))
	assert.Equal(t, 1, g.InDegree("b"))
	assert.Equal(t, 1, g.Stats().EdgeCount)
}

func TestGraph_FirstSeenOrder(t *testing.T) {
	g := New()
	g.AddTransfer("c", "a")
	g.AddTransfer("b", "c")
	g.AddTransfer("a", "d")

	assert.Equal(t, []string{"c", "a", "b", "d"}, g.Nodes())
	assert.Equal(t, 4, g.Len())
}

func TestGraph_SelfLoop(t *testing.T) {
	g := New()
	g.AddTransfer("loop", "loop")

	assert.Equal(t, 1, g.OutDegree("loop"))
	assert.Equal(t, 1, g.InDegree("loop"))

	stats := g.Stats()
	assert.Equal(t, 1, stats.SelfLoops)
	assert.Equal(t, 1, stats.Isolated)
}

func TestGraph_UnknownNode(t *testing.T) {
	g := New()

	assert.Nil(t, g.Node("ghost"))
	assert.False(t, g.Has("ghost"))
	assert.Equal(t, 0, g.OutDegree("ghost"))
	assert.Equal(t, 0, g.InDegree("ghost"))
	assert.Nil(t, g.Successors("ghost"))
}

func TestSet_ItemsIsCopy(t *testing.T) {
	s := newSet()
	s.Add("x")
	s.Add("y")
	assert.False(t, s.Add("x"))

	items := s.Items()
	items[0] = "mutated"
	assert.Equal(t, []string{"x", "y"}, s.Items())

	first, ok := s.First()
	assert.True(t, ok)
	assert.Equal(t, "x", first)

	var empty *Set
	assert.Equal(t, 0, empty.Len())
	assert.False(t, empty.Has("x"))
}

func TestMixerSet(t *testing.T) {
	m := DefaultMixerSet()
	assert.Equal(t, 3, m.Len())

	name, ok := m.IsMixer("0xdeaddeaddeaddeaddeaddeaddeaddeaddead0001")
	assert.True(t, ok)
	assert.Equal(t, "mixer_pool_1", name)

	_, ok = m.IsMixer("0xrandom")
	assert.False(t, ok)

	extended := m.With(map[string]string{"0xtornado": "tornado"})
	assert.Equal(t, 4, extended.Len())
	assert.Equal(t, 3, m.Len(), "With must not mutate the receiver")
}

func TestGraph_TouchesMixer(t *testing.T) {
	mixer := "0x0000000000000000000000000000000000000000"
	g := New()
	g.AddTransfer(mixer, "receiver")
	g.AddTransfer("sender", mixer)
	g.AddTransfer("a", "b")

	m := DefaultMixerSet()

	peer, ok := g.TouchesMixer("receiver", m)
	assert.True(t, ok)
	assert.Equal(t, mixer, peer)

	_, ok = g.TouchesMixer("sender", m)
	assert.True(t, ok)

	_, ok = g.TouchesMixer("a", m)
	assert.False(t, ok)

	_, ok = g.TouchesMixer("missing", m)
	assert.False(t, ok)
}
