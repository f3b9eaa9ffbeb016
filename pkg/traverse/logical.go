package traverse

import (
	"context"
	"sort"

	"github.com/git-stunts/warp/pkg/reducer"
)

// LogicalDirection selects edge direction on the data graph.
type LogicalDirection int

const (
	Out LogicalDirection = iota
	In
	Both
)

type halfEdge struct {
	other string
	label string
}

// LogicalGraph is an adjacency view over one materialized state snapshot.
// Build it once per snapshot; it sees only visible nodes and edges.
type LogicalGraph struct {
	out map[string][]halfEdge
	in  map[string][]halfEdge
}

// NewLogicalGraph indexes the visible edges of a state for traversal.
func NewLogicalGraph(st *reducer.State) *LogicalGraph {
	g := &LogicalGraph{
		out: make(map[string][]halfEdge),
		in:  make(map[string][]halfEdge),
	}
	for _, k := range st.VisibleEdges() {
		g.out[k.From] = append(g.out[k.From], halfEdge{other: k.To, label: k.Label})
		g.in[k.To] = append(g.in[k.To], halfEdge{other: k.From, label: k.Label})
	}
	return g
}

// Neighbors returns the distinct nodes adjacent to node in the given
// direction, optionally restricted to one edge label ("" matches any).
// The result is sorted.
func (g *LogicalGraph) Neighbors(node string, dir LogicalDirection, label string) []string {
	seen := make(map[string]struct{})
	add := func(edges []halfEdge) {
		for _, e := range edges {
			if label == "" || e.label == label {
				seen[e.other] = struct{}{}
			}
		}
	}
	if dir == Out || dir == Both {
		add(g.out[node])
	}
	if dir == In || dir == Both {
		add(g.in[node])
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// BFS walks the data graph breadth-first from start.
func (g *LogicalGraph) BFS(ctx context.Context, start string, dir LogicalDirection, label string, opts Options, visit Visit) error {
	opts = opts.withDefaults()
	chk := checker{op: "logical-bfs"}

	type item struct {
		node  string
		depth int
	}
	queue := []item{{start, 0}}
	seen := map[string]struct{}{start: {}}
	visited := 0

	for len(queue) > 0 {
		if err := chk.tick(ctx); err != nil {
			return err
		}
		cur := queue[0]
		queue = queue[1:]
		if !visit(cur.node, cur.depth) {
			return nil
		}
		visited++
		if visited >= opts.MaxNodes || cur.depth >= opts.MaxDepth {
			continue
		}
		for _, n := range g.Neighbors(cur.node, dir, label) {
			if _, ok := seen[n]; !ok {
				seen[n] = struct{}{}
				queue = append(queue, item{n, cur.depth + 1})
			}
		}
	}
	return nil
}

// DFS walks the data graph depth-first from start.
func (g *LogicalGraph) DFS(ctx context.Context, start string, dir LogicalDirection, label string, opts Options, visit Visit) error {
	opts = opts.withDefaults()
	chk := checker{op: "logical-dfs"}

	type item struct {
		node  string
		depth int
	}
	stack := []item{{start, 0}}
	seen := map[string]struct{}{start: {}}
	visited := 0

	for len(stack) > 0 {
		if err := chk.tick(ctx); err != nil {
			return err
		}
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !visit(cur.node, cur.depth) {
			return nil
		}
		visited++
		if visited >= opts.MaxNodes || cur.depth >= opts.MaxDepth {
			continue
		}
		ns := g.Neighbors(cur.node, dir, label)
		for i := len(ns) - 1; i >= 0; i-- {
			n := ns[i]
			if _, ok := seen[n]; !ok {
				seen[n] = struct{}{}
				stack = append(stack, item{n, cur.depth + 1})
			}
		}
	}
	return nil
}

// ShortestPath finds a minimum-hop path between two nodes of the data
// graph.
func (g *LogicalGraph) ShortestPath(ctx context.Context, from, to string, dir LogicalDirection, label string, opts Options) (PathResult, error) {
	opts = opts.withDefaults()
	chk := checker{op: "logical-shortest-path"}

	if from == to {
		return PathResult{Found: true, Path: []string{from}, Length: 0}, nil
	}
	parent := map[string]string{from: ""}
	queue := []string{from}
	depth := map[string]int{from: 0}
	visited := 0

	for len(queue) > 0 {
		if err := chk.tick(ctx); err != nil {
			return notFound(), err
		}
		cur := queue[0]
		queue = queue[1:]
		visited++
		if visited >= opts.MaxNodes || depth[cur] >= opts.MaxDepth {
			continue
		}
		for _, n := range g.Neighbors(cur, dir, label) {
			if _, ok := parent[n]; ok {
				continue
			}
			parent[n] = cur
			depth[n] = depth[cur] + 1
			if n == to {
				return assemble(parent, from, to), nil
			}
			queue = append(queue, n)
		}
	}
	return notFound(), nil
}

// Component returns the connected component containing start, ignoring
// edge direction and labels, sorted.
func (g *LogicalGraph) Component(ctx context.Context, start string, opts Options) ([]string, error) {
	var out []string
	err := g.BFS(ctx, start, Both, "", opts, func(node string, depth int) bool {
		out = append(out, node)
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}
