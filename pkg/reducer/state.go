package reducer

import (
	"sort"

	"github.com/git-stunts/warp/pkg/crdt"
	"github.com/git-stunts/warp/pkg/types"
)

// State is the materialized graph: OR-Sets for node and edge liveness, LWW
// registers for properties, the frontier of everything ever absorbed, and
// the birth event of each edge for provenance queries.
//
// State is a value derived from patches. It is cached between
// materializations and rebuilt from checkpoints plus trailing patches; it
// is never the source of truth.
type State struct {
	Nodes     *crdt.ORSet
	Edges     *crdt.ORSet
	Props     map[string]crdt.Register
	Frontier  crdt.VersionVector
	EdgeBirth map[string]crdt.EventID
}

// NewState returns an empty state.
func NewState() *State {
	return &State{
		Nodes:     crdt.NewORSet(),
		Edges:     crdt.NewORSet(),
		Props:     make(map[string]crdt.Register),
		Frontier:  crdt.NewVersionVector(),
		EdgeBirth: make(map[string]crdt.EventID),
	}
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	out := &State{
		Nodes:     s.Nodes.Clone(),
		Edges:     s.Edges.Clone(),
		Props:     make(map[string]crdt.Register, len(s.Props)),
		Frontier:  s.Frontier.Clone(),
		EdgeBirth: make(map[string]crdt.EventID, len(s.EdgeBirth)),
	}
	for k, r := range s.Props {
		out.Props[k] = r
	}
	for k, e := range s.EdgeBirth {
		out.EdgeBirth[k] = e
	}
	return out
}

// NodeVisible reports whether the node has at least one live dot.
func (s *State) NodeVisible(nodeID string) bool {
	return s.Nodes.Contains(nodeID)
}

// EdgeVisible reports whether the edge is alive and both endpoints are
// visible.
func (s *State) EdgeVisible(k types.EdgeKey) bool {
	return s.Edges.Contains(k.Encode()) && s.NodeVisible(k.From) && s.NodeVisible(k.To)
}

// PropVisible reports whether a property register exists and its target is
// visible.
func (s *State) PropVisible(target, key string) bool {
	if _, ok := s.Props[types.PropKey(target, key)]; !ok {
		return false
	}
	return s.targetVisible(target)
}

func (s *State) targetVisible(target string) bool {
	if types.IsEdgeTarget(target) {
		k, err := types.UnpackEdgeTarget(target)
		if err != nil {
			return false
		}
		return s.EdgeVisible(k)
	}
	return s.NodeVisible(target)
}

// Prop returns the current value for a visible property. The boolean is
// false when the register is absent or the target is not visible.
func (s *State) Prop(target, key string) (types.ValueRef, bool) {
	r, ok := s.Props[types.PropKey(target, key)]
	if !ok || !s.targetVisible(target) {
		return types.ValueRef{}, false
	}
	v, _ := r.Value.(types.ValueRef)
	return v, true
}

// VisibleNodes returns the alive node ids in lexicographic order.
func (s *State) VisibleNodes() []string {
	return s.Nodes.Elements()
}

// VisibleEdges returns the visible edges sorted by (from, to, label).
// Edges whose endpoints are tombstoned are excluded even when the edge
// entry itself is alive.
func (s *State) VisibleEdges() []types.EdgeKey {
	var out []types.EdgeKey
	for _, enc := range s.Edges.Elements() {
		k, err := types.DecodeEdgeKey(enc)
		if err != nil {
			continue
		}
		if s.NodeVisible(k.From) && s.NodeVisible(k.To) {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		if out[i].To != out[j].To {
			return out[i].To < out[j].To
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// Stats summarizes the state for GC policy decisions and diagnostics.
type Stats struct {
	VisibleNodes int
	VisibleEdges int
	NodeDots     int
	EdgeDots     int
	Tombstones   int
	Props        int
}

// Stats computes summary counts.
func (s *State) Stats() Stats {
	return Stats{
		VisibleNodes: len(s.VisibleNodes()),
		VisibleEdges: len(s.VisibleEdges()),
		NodeDots:     s.Nodes.DotCount(),
		EdgeDots:     s.Edges.DotCount(),
		Tombstones:   s.Nodes.TombstoneCount() + s.Edges.TombstoneCount(),
		Props:        len(s.Props),
	}
}
