package reducer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/git-stunts/warp/pkg/crdt"
	"github.com/git-stunts/warp/pkg/types"
)

func patch(writer string, lamport uint64, context map[string]uint64, ops ...types.Op) SourcedPatch {
	p := &types.Patch{
		Schema:  types.SchemaEdgeProps,
		Writer:  writer,
		Lamport: lamport,
		Context: context,
		Ops:     ops,
	}
	// a synthetic but unique, deterministic sha
	sha := writer + "-" + string(rune('0'+lamport))
	return SourcedPatch{Patch: p, SHA: sha}
}

func TestDiamondMerge(t *testing.T) {
	// writer A adds x; writer B concurrently adds y; A then adds the edge
	// after having observed B
	pA1 := patch("A", 1, map[string]uint64{}, types.NewNodeAdd("x", crdt.NewDot("A", 1)))
	pB1 := patch("B", 1, map[string]uint64{}, types.NewNodeAdd("y", crdt.NewDot("B", 1)))
	pA2 := patch("A", 3, map[string]uint64{"A": 1, "B": 1},
		types.NewEdgeAdd(types.EdgeKey{From: "x", To: "y", Label: "e"}, crdt.NewDot("A", 2)))

	s, err := Reduce([]SourcedPatch{pA1, pB1, pA2}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"x", "y"}, s.VisibleNodes())
	assert.True(t, s.EdgeVisible(types.EdgeKey{From: "x", To: "y", Label: "e"}))

	// the other replica received the same patches in a different order
	s2, err := Reduce([]SourcedPatch{pB1, pA2, pA1}, nil)
	require.NoError(t, err)

	h1, err := Hash(s)
	require.NoError(t, err)
	h2, err := Hash(s2)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestConvergenceUnderPermutation(t *testing.T) {
	edge := types.EdgeKey{From: "x", To: "y", Label: "knows"}
	patches := []SourcedPatch{
		patch("A", 1, map[string]uint64{}, types.NewNodeAdd("x", crdt.NewDot("A", 1))),
		patch("B", 1, map[string]uint64{}, types.NewNodeAdd("y", crdt.NewDot("B", 1))),
		patch("A", 2, map[string]uint64{"A": 1},
			types.NewEdgeAdd(edge, crdt.NewDot("A", 2)),
			types.NewPropSet("x", "name", types.Inline("ex"))),
		patch("B", 2, map[string]uint64{"B": 1},
			types.NewPropSet("x", "name", types.Inline("why")),
			types.NewEdgePropSet(edge, "since", types.Inline(int64(2020)))),
		patch("C", 1, map[string]uint64{}, types.NewNodeAdd("z", crdt.NewDot("C", 1))),
		patch("C", 3, map[string]uint64{"A": 1, "C": 1}, types.NewNodeRemove([]crdt.Dot{crdt.NewDot("A", 1)})),
	}

	want, err := Reduce(patches, nil)
	require.NoError(t, err)
	wantHash, err := Hash(want)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := make([]SourcedPatch, len(patches))
		copy(shuffled, patches)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got, err := Reduce(shuffled, nil)
		require.NoError(t, err)
		h, err := Hash(got)
		require.NoError(t, err)
		assert.Equal(t, wantHash, h, "permutation %d diverged", i)
	}
}

func TestRemoveAfterObserve(t *testing.T) {
	// remove that observed the add wins over it
	add := patch("A", 1, map[string]uint64{}, types.NewNodeAdd("n", crdt.NewDot("A", 1)))
	rm := patch("B", 2, map[string]uint64{"A": 1}, types.NewNodeRemove([]crdt.Dot{crdt.NewDot("A", 1)}))

	s, err := Reduce([]SourcedPatch{add, rm}, nil)
	require.NoError(t, err)
	assert.False(t, s.NodeVisible("n"))
}

func TestAddWinsOverConcurrentRemove(t *testing.T) {
	// B removes without ever observing A:1 — its observed set is empty
	add := patch("A", 1, map[string]uint64{}, types.NewNodeAdd("n", crdt.NewDot("A", 1)))
	rm := patch("B", 1, map[string]uint64{}, types.NewNodeRemove(nil))

	s, err := Reduce([]SourcedPatch{add, rm}, nil)
	require.NoError(t, err)
	assert.True(t, s.NodeVisible("n"))
}

func TestAddWinsWithConcurrentReAdd(t *testing.T) {
	// remove observed A:1, but a concurrent third writer re-added n with an
	// unobserved dot
	add := patch("A", 1, map[string]uint64{}, types.NewNodeAdd("n", crdt.NewDot("A", 1)))
	rm := patch("B", 2, map[string]uint64{"A": 1}, types.NewNodeRemove([]crdt.Dot{crdt.NewDot("A", 1)}))
	readd := patch("C", 1, map[string]uint64{}, types.NewNodeAdd("n", crdt.NewDot("C", 1)))

	s, err := Reduce([]SourcedPatch{add, rm, readd}, nil)
	require.NoError(t, err)
	assert.True(t, s.NodeVisible("n"))
}

func TestConcurrentLWW(t *testing.T) {
	// same lamport, writer ids "A" < "B": B's event id is greater
	pA := patch("A", 5, map[string]uint64{}, types.NewPropSet("user:alice", "name", types.Inline("A")))
	pB := patch("B", 5, map[string]uint64{}, types.NewPropSet("user:alice", "name", types.Inline("B")))
	// the target must exist for the property to be visible
	base := patch("A", 1, map[string]uint64{}, types.NewNodeAdd("user:alice", crdt.NewDot("A", 1)))

	for _, order := range [][]SourcedPatch{
		{base, pA, pB},
		{base, pB, pA},
		{pB, pA, base},
	} {
		s, err := Reduce(order, nil)
		require.NoError(t, err)
		v, ok := s.Prop("user:alice", "name")
		require.True(t, ok)
		assert.Equal(t, types.Inline("B"), v)
	}
}

func TestEdgeVisibilityNeedsEndpoints(t *testing.T) {
	edge := types.EdgeKey{From: "x", To: "y", Label: "e"}
	px := patch("A", 1, map[string]uint64{}, types.NewNodeAdd("x", crdt.NewDot("A", 1)))
	py := patch("A", 2, map[string]uint64{"A": 1}, types.NewNodeAdd("y", crdt.NewDot("A", 2)))
	pe := patch("A", 3, map[string]uint64{"A": 2}, types.NewEdgeAdd(edge, crdt.NewDot("A", 3)))

	s, err := Reduce([]SourcedPatch{px, py, pe}, nil)
	require.NoError(t, err)
	require.True(t, s.EdgeVisible(edge))

	// tombstone an endpoint: the edge entry stays alive but the edge is no
	// longer visible
	rm := patch("A", 4, map[string]uint64{"A": 3}, types.NewNodeRemove([]crdt.Dot{crdt.NewDot("A", 2)}))
	require.NoError(t, ApplyPatch(s, rm))
	assert.True(t, s.Edges.Contains(edge.Encode()))
	assert.False(t, s.EdgeVisible(edge))
	assert.Empty(t, s.VisibleEdges())

	// edge properties follow edge visibility
	pp := patch("A", 5, map[string]uint64{"A": 4}, types.NewEdgePropSet(edge, "w", types.Inline(int64(1))))
	require.NoError(t, ApplyPatch(s, pp))
	assert.False(t, s.PropVisible(types.PackEdgeTarget(edge), "w"))
}

func TestIdempotentReapply(t *testing.T) {
	p1 := patch("A", 1, map[string]uint64{}, types.NewNodeAdd("n", crdt.NewDot("A", 1)))
	p2 := patch("A", 2, map[string]uint64{"A": 1}, types.NewNodeRemove([]crdt.Dot{crdt.NewDot("A", 1)}))

	s, err := Reduce([]SourcedPatch{p1, p2}, nil)
	require.NoError(t, err)
	h1, err := Hash(s)
	require.NoError(t, err)

	// re-applying both patches changes nothing
	require.NoError(t, ApplyPatch(s, p1))
	require.NoError(t, ApplyPatch(s, p2))
	h2, err := Hash(s)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestReapplyAfterCompactDoesNotResurrect(t *testing.T) {
	p1 := patch("A", 1, map[string]uint64{}, types.NewNodeAdd("n", crdt.NewDot("A", 1)))
	p2 := patch("A", 2, map[string]uint64{"A": 1}, types.NewNodeRemove([]crdt.Dot{crdt.NewDot("A", 1)}))

	s, err := Reduce([]SourcedPatch{p1, p2}, nil)
	require.NoError(t, err)
	s.Nodes.Compact(s.Frontier)
	require.False(t, s.NodeVisible("n"))

	require.NoError(t, ApplyPatch(s, p1))
	assert.False(t, s.NodeVisible("n"))
}

func TestJoinCommutativeAssociative(t *testing.T) {
	edge := types.EdgeKey{From: "x", To: "y", Label: "e"}
	pa := patch("A", 1, map[string]uint64{}, types.NewNodeAdd("x", crdt.NewDot("A", 1)))
	pb := patch("B", 1, map[string]uint64{}, types.NewNodeAdd("y", crdt.NewDot("B", 1)))
	pc := patch("C", 2, map[string]uint64{},
		types.NewEdgeAdd(edge, crdt.NewDot("C", 1)),
		types.NewPropSet("x", "k", types.Inline("v")))

	mk := func(sp SourcedPatch) *State {
		s, err := Reduce([]SourcedPatch{sp}, nil)
		require.NoError(t, err)
		return s
	}

	// (A ⊔ B) ⊔ C
	left := mk(pa)
	Join(left, mk(pb))
	Join(left, mk(pc))
	// A ⊔ (B ⊔ C)
	right := mk(pb)
	Join(right, mk(pc))
	rightOuter := mk(pa)
	Join(rightOuter, right)
	// B ⊔ A ⊔ C
	swapped := mk(pb)
	Join(swapped, mk(pa))
	Join(swapped, mk(pc))

	hl, err := Hash(left)
	require.NoError(t, err)
	hr, err := Hash(rightOuter)
	require.NoError(t, err)
	hs, err := Hash(swapped)
	require.NoError(t, err)
	assert.Equal(t, hl, hr)
	assert.Equal(t, hl, hs)
}

func TestFrontierMonotonic(t *testing.T) {
	s := NewState()
	seqs := []SourcedPatch{
		patch("A", 1, map[string]uint64{}, types.NewNodeAdd("a", crdt.NewDot("A", 1))),
		patch("B", 1, map[string]uint64{}, types.NewNodeAdd("b", crdt.NewDot("B", 1))),
		patch("A", 2, map[string]uint64{"A": 1, "B": 1}, types.NewNodeAdd("c", crdt.NewDot("A", 2))),
	}
	prev := s.Frontier.Clone()
	for _, sp := range seqs {
		require.NoError(t, ApplyPatch(s, sp))
		assert.True(t, prev.Leq(s.Frontier), "frontier regressed")
		prev = s.Frontier.Clone()
	}
	assert.Equal(t, crdt.VersionVector{"A": 2, "B": 1}, s.Frontier)
}

func TestSerializeRoundTrip(t *testing.T) {
	edge := types.EdgeKey{From: "x", To: "y", Label: "e"}
	patches := []SourcedPatch{
		patch("A", 1, map[string]uint64{}, types.NewNodeAdd("x", crdt.NewDot("A", 1))),
		patch("A", 2, map[string]uint64{"A": 1},
			types.NewNodeAdd("y", crdt.NewDot("A", 2)),
			types.NewEdgeAdd(edge, crdt.NewDot("A", 3)),
			types.NewPropSet("x", "name", types.Inline("ex")),
			types.NewEdgePropSet(edge, "w", types.Inline(int64(7)))),
		patch("B", 3, map[string]uint64{"A": 2}, types.NewNodeRemove([]crdt.Dot{crdt.NewDot("A", 1)})),
	}
	s, err := Reduce(patches, nil)
	require.NoError(t, err)

	data, err := Serialize(s)
	require.NoError(t, err)
	got, err := Deserialize(data)
	require.NoError(t, err)

	h1, err := Hash(s)
	require.NoError(t, err)
	h2, err := Hash(got)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Equal(t, s.VisibleNodes(), got.VisibleNodes())
	assert.Equal(t, s.Frontier, got.Frontier)
}

func TestStats(t *testing.T) {
	s, err := Reduce([]SourcedPatch{
		patch("A", 1, map[string]uint64{}, types.NewNodeAdd("x", crdt.NewDot("A", 1))),
		patch("A", 2, map[string]uint64{"A": 1},
			types.NewNodeAdd("y", crdt.NewDot("A", 2)),
			types.NewPropSet("x", "k", types.Inline("v"))),
		patch("A", 3, map[string]uint64{"A": 2}, types.NewNodeRemove([]crdt.Dot{crdt.NewDot("A", 2)})),
	}, nil)
	require.NoError(t, err)

	st := s.Stats()
	assert.Equal(t, 1, st.VisibleNodes)
	assert.Equal(t, 2, st.NodeDots)
	assert.Equal(t, 1, st.Tombstones)
	assert.Equal(t, 1, st.Props)
}
