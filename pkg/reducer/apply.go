package reducer

import (
	"fmt"
	"sort"

	"github.com/git-stunts/warp/pkg/crdt"
	"github.com/git-stunts/warp/pkg/types"
)

// SourcedPatch pairs a decoded patch with the sha of the commit that
// carries it. The sha participates in EventID construction, so every op in
// the system has a globally unique, totally ordered identity.
type SourcedPatch struct {
	Patch *types.Patch
	SHA   string
}

// EventAt returns the EventID of the i-th op of the patch.
func (sp SourcedPatch) EventAt(i int) crdt.EventID {
	return crdt.EventID{
		Lamport:  sp.Patch.Lamport,
		Writer:   sp.Patch.Writer,
		PatchSHA: sp.SHA,
		OpIndex:  i,
	}
}

// ApplyOp folds a single operation into the state under the given event
// id. Adds whose dot is already covered by the frontier are skipped: the
// write was absorbed before (and its dot may since have been compacted), so
// re-introducing it would resurrect a removed entity.
func ApplyOp(s *State, op *types.Op, ev crdt.EventID) error {
	switch op.Kind {
	case types.OpNodeAdd:
		if s.Frontier.Contains(op.Dot) {
			return nil
		}
		s.Nodes.Add(op.Node, op.Dot)
	case types.OpNodeRemove:
		s.Nodes.Remove(op.Observed)
	case types.OpEdgeAdd:
		if s.Frontier.Contains(op.Dot) {
			return nil
		}
		enc := op.Edge.Encode()
		s.Edges.Add(enc, op.Dot)
		if birth, ok := s.EdgeBirth[enc]; !ok || birth.Less(ev) {
			s.EdgeBirth[enc] = ev
		}
	case types.OpEdgeRemove:
		s.Edges.Remove(op.Observed)
	case types.OpPropSet, types.OpEdgePropSet:
		pk := types.PropKey(op.Target, op.Key)
		r := s.Props[pk]
		r.Set(ev, op.Value)
		s.Props[pk] = r
	default:
		return fmt.Errorf("unknown op kind %q", op.Kind)
	}
	return nil
}

// ApplyPatch folds every op of a patch into the state, then advances the
// observed frontier by the patch's causal context and the dots it minted.
// Applying a patch the frontier already covers leaves the state unchanged.
func ApplyPatch(s *State, sp SourcedPatch) error {
	for i := range sp.Patch.Ops {
		if err := ApplyOp(s, &sp.Patch.Ops[i], sp.EventAt(i)); err != nil {
			return fmt.Errorf("patch %s: %w", sp.SHA, err)
		}
	}
	s.Frontier.Merge(sp.Patch.ContextVector())
	for i := range sp.Patch.Ops {
		op := &sp.Patch.Ops[i]
		if op.Kind == types.OpNodeAdd || op.Kind == types.OpEdgeAdd {
			s.Frontier.Set(op.Dot.Writer, op.Dot.Seq)
		}
	}
	return nil
}

// Join merges two independently materialized states. Union of OR-Set
// entries and tombstones, LWW reduction of every property, max of edge
// birth events, pointwise-max frontier. Commutative and associative, so
// replicas converge regardless of merge order. The receiver is mutated;
// other is not.
func Join(s, other *State) {
	s.Nodes.Union(other.Nodes)
	s.Edges.Union(other.Edges)
	for pk, r := range other.Props {
		cur := s.Props[pk]
		cur.Merge(r)
		s.Props[pk] = cur
	}
	for enc, ev := range other.EdgeBirth {
		if birth, ok := s.EdgeBirth[enc]; !ok || birth.Less(ev) {
			s.EdgeBirth[enc] = ev
		}
	}
	s.Frontier.Merge(other.Frontier)
}

// SortPatches orders patches by the EventID of their first op: (lamport,
// writer, sha). This is the deterministic interleave the materializer uses
// when folding multiple writers' chains.
func SortPatches(patches []SourcedPatch) {
	sort.SliceStable(patches, func(i, j int) bool {
		return patches[i].EventAt(0).Less(patches[j].EventAt(0))
	})
}

// Reduce folds a patch sequence into base (or an empty state when base is
// nil) in deterministic EventID order and returns the result. The input
// slice is not modified; base is not modified.
func Reduce(patches []SourcedPatch, base *State) (*State, error) {
	var s *State
	if base != nil {
		s = base.Clone()
	} else {
		s = NewState()
	}
	ordered := make([]SourcedPatch, len(patches))
	copy(ordered, patches)
	SortPatches(ordered)
	for _, sp := range ordered {
		if err := ApplyPatch(s, sp); err != nil {
			return nil, err
		}
	}
	return s, nil
}
