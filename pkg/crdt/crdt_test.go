package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDotRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Dot
		wantErr bool
	}{
		{name: "simple", in: "alice:1", want: Dot{Writer: "alice", Seq: 1}},
		{name: "large seq", in: "w:18446744073709551615", want: Dot{Writer: "w", Seq: 18446744073709551615}},
		{name: "missing seq", in: "alice:", wantErr: true},
		{name: "missing writer", in: ":5", wantErr: true},
		{name: "no separator", in: "alice", wantErr: true},
		{name: "non-numeric seq", in: "alice:x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDot(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestVersionVectorMerge(t *testing.T) {
	a := VersionVector{"a": 3, "b": 1}
	b := VersionVector{"b": 5, "c": 2}

	a.Merge(b)

	assert.Equal(t, VersionVector{"a": 3, "b": 5, "c": 2}, a)
	// merging again is idempotent
	a.Merge(b)
	assert.Equal(t, VersionVector{"a": 3, "b": 5, "c": 2}, a)
}

func TestVersionVectorSetNeverLowers(t *testing.T) {
	vv := NewVersionVector()
	vv.Set("a", 5)
	vv.Set("a", 3)
	assert.Equal(t, uint64(5), vv.Get("a"))
}

func TestVersionVectorContains(t *testing.T) {
	vv := VersionVector{"a": 3}
	assert.True(t, vv.Contains(NewDot("a", 1)))
	assert.True(t, vv.Contains(NewDot("a", 3)))
	assert.False(t, vv.Contains(NewDot("a", 4)))
	assert.False(t, vv.Contains(NewDot("b", 1)))
}

func TestVersionVectorLeq(t *testing.T) {
	small := VersionVector{"a": 1}
	big := VersionVector{"a": 2, "b": 1}
	assert.True(t, small.Leq(big))
	assert.False(t, big.Leq(small))
	assert.True(t, small.Leq(small))

	// incomparable vectors
	x := VersionVector{"a": 2}
	y := VersionVector{"b": 2}
	assert.False(t, x.Leq(y))
	assert.False(t, y.Leq(x))
}

func TestORSetAddRemove(t *testing.T) {
	s := NewORSet()
	s.Add("n", NewDot("a", 1))
	assert.True(t, s.Contains("n"))

	s.Remove([]Dot{NewDot("a", 1)})
	assert.False(t, s.Contains("n"))
	// the dot stays in entries for concurrency comparison
	assert.Len(t, s.Entries["n"], 1)
}

func TestORSetAddWins(t *testing.T) {
	// remove observed only a:1; the concurrent add c:1 survives
	s := NewORSet()
	s.Add("n", NewDot("a", 1))
	s.Remove([]Dot{NewDot("a", 1)})
	s.Add("n", NewDot("c", 1))
	assert.True(t, s.Contains("n"))
}

func TestORSetElementsSorted(t *testing.T) {
	s := NewORSet()
	s.Add("zebra", NewDot("a", 1))
	s.Add("ant", NewDot("a", 2))
	s.Add("mole", NewDot("a", 3))
	s.Remove([]Dot{NewDot("a", 3)})

	assert.Equal(t, []string{"ant", "zebra"}, s.Elements())
}

func TestORSetUnionCommutes(t *testing.T) {
	build := func() (*ORSet, *ORSet) {
		x := NewORSet()
		x.Add("n", NewDot("a", 1))
		x.Remove([]Dot{NewDot("a", 1)})
		y := NewORSet()
		y.Add("n", NewDot("b", 1))
		y.Add("m", NewDot("b", 2))
		return x, y
	}

	x1, y1 := build()
	x1.Union(y1)
	x2, y2 := build()
	y2.Union(x2)

	assert.Equal(t, x1.Elements(), y2.Elements())
	assert.Equal(t, x1.TombstoneCount(), y2.TombstoneCount())
}

func TestORSetCompactPreservesVisibility(t *testing.T) {
	s := NewORSet()
	s.Add("gone", NewDot("a", 1))
	s.Remove([]Dot{NewDot("a", 1)})
	s.Add("alive", NewDot("a", 2))
	s.Add("mixed", NewDot("a", 3))
	s.Add("mixed", NewDot("b", 1))
	s.Remove([]Dot{NewDot("a", 3)})

	before := map[string]bool{}
	for _, e := range []string{"gone", "alive", "mixed"} {
		before[e] = s.Contains(e)
	}

	removed := s.Compact(VersionVector{"a": 3, "b": 1})
	assert.Equal(t, 2, removed)

	for e, visible := range before {
		assert.Equal(t, visible, s.Contains(e), "visibility of %q changed by compact", e)
	}
	assert.Zero(t, s.TombstoneCount())
	// fully-dead element is gone from entries
	_, ok := s.Entries["gone"]
	assert.False(t, ok)
}

func TestORSetCompactSkipsUncoveredDots(t *testing.T) {
	s := NewORSet()
	s.Add("n", NewDot("a", 5))
	s.Remove([]Dot{NewDot("a", 5)})

	// frontier has only seen a:3 — a concurrent add could still cite a:5
	removed := s.Compact(VersionVector{"a": 3})
	assert.Zero(t, removed)
	assert.Equal(t, 1, s.TombstoneCount())
}

func TestEventIDOrdering(t *testing.T) {
	tests := []struct {
		name string
		a, b EventID
		want int
	}{
		{
			name: "lamport dominates",
			a:    EventID{Lamport: 1, Writer: "z"},
			b:    EventID{Lamport: 2, Writer: "a"},
			want: -1,
		},
		{
			name: "writer breaks lamport tie",
			a:    EventID{Lamport: 5, Writer: "A"},
			b:    EventID{Lamport: 5, Writer: "B"},
			want: -1,
		},
		{
			name: "sha breaks writer tie",
			a:    EventID{Lamport: 5, Writer: "A", PatchSHA: "aa"},
			b:    EventID{Lamport: 5, Writer: "A", PatchSHA: "ab"},
			want: -1,
		},
		{
			name: "op index last",
			a:    EventID{Lamport: 5, Writer: "A", PatchSHA: "aa", OpIndex: 1},
			b:    EventID{Lamport: 5, Writer: "A", PatchSHA: "aa", OpIndex: 0},
			want: 1,
		},
		{
			name: "equal",
			a:    EventID{Lamport: 5, Writer: "A", PatchSHA: "aa", OpIndex: 2},
			b:    EventID{Lamport: 5, Writer: "A", PatchSHA: "aa", OpIndex: 2},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Compare(tt.b))
			assert.Equal(t, -tt.want, tt.b.Compare(tt.a))
		})
	}
}

func TestRegisterLWW(t *testing.T) {
	var r Register

	won := r.Set(EventID{Lamport: 5, Writer: "A"}, "first")
	assert.True(t, won)

	// lower event loses
	won = r.Set(EventID{Lamport: 4, Writer: "Z"}, "stale")
	assert.False(t, won)
	assert.Equal(t, "first", r.Value)

	// higher writer at same lamport wins
	won = r.Set(EventID{Lamport: 5, Writer: "B"}, "second")
	assert.True(t, won)
	assert.Equal(t, "second", r.Value)

	// re-applying the same event is a no-op
	won = r.Set(EventID{Lamport: 5, Writer: "B"}, "second")
	assert.False(t, won)
}

func TestRegisterMergeCommutes(t *testing.T) {
	a := Register{Value: "a", Event: EventID{Lamport: 3, Writer: "A"}}
	b := Register{Value: "b", Event: EventID{Lamport: 3, Writer: "B"}}

	x := a
	x.Merge(b)
	y := b
	y.Merge(a)

	assert.Equal(t, x, y)
	assert.Equal(t, "b", x.Value)
}
