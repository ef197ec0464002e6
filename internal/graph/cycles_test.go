package graph

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(edges ...[2]string) *Graph {
	g := New()
	for _, e := range edges {
		g.AddTransfer(e[0], e[1])
	}
	return g
}

func TestDetectCycles_Triangle(t *testing.T) {
	g := build([2]string{"A", "B"}, [2]string{"B", "C"}, [2]string{"C", "A"})

	report := g.DetectCycles()

	assert.ElementsMatch(t, []string{"A", "B", "C"}, report.Wallets)
	require.Len(t, report.Cycles, 1)
	assert.Equal(t, []string{"A", "B", "C", "A"}, report.Cycles[0])
	assert.True(t, report.Contains("B"))
}

func TestDetectCycles_Acyclic(t *testing.T) {
	g := build([2]string{"A", "B"}, [2]string{"B", "C"}, [2]string{"A", "C"})

	report := g.DetectCycles()

	assert.Empty(t, report.Wallets)
	assert.Empty(t, report.Cycles)
}

func TestDetectCycles_CrossEdgeIsNotACycle(t *testing.T) {
	// D reaches B, which was fully explored from A and is off the stack.
	g := build(
		[2]string{"A", "B"},
		[2]string{"B", "C"},
		[2]string{"D", "B"},
	)

	report := g.DetectCycles()
	assert.Empty(t, report.Wallets)
}

func TestDetectCycles_SelfLoop(t *testing.T) {
	g := build([2]string{"S", "S"})

	report := g.DetectCycles()

	assert.Equal(t, []string{"S"}, report.Wallets)
	require.Len(t, report.Cycles, 1)
	assert.Equal(t, []string{"S", "S"}, report.Cycles[0])
}

func TestDetectCycles_TailIsNotFlagged(t *testing.T) {
	// X -> A -> B -> A: X leads into the cycle but is not on it.
	g := build([2]string{"X", "A"}, [2]string{"A", "B"}, [2]string{"B", "A"})

	report := g.DetectCycles()

	assert.ElementsMatch(t, []string{"A", "B"}, report.Wallets)
	assert.False(t, report.Contains("X"))
}

func TestDetectCycles_FirstCyclePerRoot(t *testing.T) {
	// Two cycles reachable from A: A->B->A and A->C->D->A. The root stops at
	// the first one, and C, D are already visited when later roots run.
	g := build(
		[2]string{"A", "B"},
		[2]string{"B", "A"},
		[2]string{"A", "C"},
		[2]string{"C", "D"},
		[2]string{"D", "A"},
	)

	report := g.DetectCycles()

	assert.True(t, report.Contains("A"))
	assert.True(t, report.Contains("B"))
	assert.Len(t, report.Cycles, 1)
}

func TestDetectCycles_DisconnectedComponents(t *testing.T) {
	g := build(
		[2]string{"A", "B"}, [2]string{"B", "A"},
		[2]string{"P", "Q"}, [2]string{"Q", "R"}, [2]string{"R", "P"},
		[2]string{"lonely", "sink"},
	)

	report := g.DetectCycles()

	assert.ElementsMatch(t, []string{"A", "B", "P", "Q", "R"}, report.Wallets)
	assert.Len(t, report.Cycles, 2)
}

func TestDetectCycles_LongChainDoesNotOverflow(t *testing.T) {
	g := New()
	const n = 200_000
	for i := 0; i < n; i++ {
		g.AddTransfer(fmt.Sprintf("w%d", i), fmt.Sprintf("w%d", i+1))
	}
	g.AddTransfer(fmt.Sprintf("w%d", n), "w0")

	report := g.DetectCycles()
	assert.Len(t, report.Wallets, n+1)
}

func TestDetectCycles_Deterministic(t *testing.T) {
	edges := [][2]string{
		{"A", "B"}, {"B", "C"}, {"C", "A"},
		{"C", "D"}, {"D", "E"}, {"E", "C"},
	}
	first := build(edges...).DetectCycles()
	for i := 0; i < 10; i++ {
		again := build(edges...).DetectCycles()
		assert.Equal(t, first.Wallets, again.Wallets)
		assert.Equal(t, first.Cycles, again.Cycles)
	}
}
