package traverse

import (
	"context"
	"sort"

	"github.com/git-stunts/warp/pkg/errdefs"
)

// DAG is the navigation surface traversals run on; bitmap.Reader satisfies
// it.
type DAG interface {
	Parents(ctx context.Context, sha string) ([]string, error)
	Children(ctx context.Context, sha string) ([]string, error)
}

// Direction selects which way a traversal walks the commit DAG.
type Direction int

const (
	// TowardParents walks from a commit to its ancestors.
	TowardParents Direction = iota
	// TowardChildren walks from a commit to its descendants.
	TowardChildren
)

// Options bound traversals; the package doc lists which bounds each one
// applies.
type Options struct {
	// MaxNodes caps total expansions. Default 100,000.
	MaxNodes int
	// MaxDepth caps distance from the start. Default 1,000.
	MaxDepth int
}

func (o Options) withDefaults() Options {
	if o.MaxNodes <= 0 {
		o.MaxNodes = 100_000
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = 1000
	}
	return o
}

// abortCheckStep is how often traversals poll the context.
const abortCheckStep = 1000

// Visit receives each reached commit with its depth. Returning false stops
// the traversal early.
type Visit func(sha string, depth int) bool

// PathResult is the structured outcome of a path query. Routine not-found
// is not an error: Found is false and Length is -1.
type PathResult struct {
	Found  bool
	Path   []string
	Length int
	Cost   float64
}

func notFound() PathResult {
	return PathResult{Found: false, Length: -1}
}

func neighbors(ctx context.Context, d DAG, sha string, dir Direction) ([]string, error) {
	if dir == TowardParents {
		return d.Parents(ctx, sha)
	}
	return d.Children(ctx, sha)
}

type checker struct {
	count int
	op    string
}

func (c *checker) tick(ctx context.Context) error {
	c.count++
	if c.count%abortCheckStep == 0 {
		if err := ctx.Err(); err != nil {
			return errdefs.Aborted(c.op, err)
		}
	}
	return nil
}

// BFS walks breadth-first from start in the given direction, calling visit
// for every reached commit (including start at depth 0) until the visit
// callback stops it or the bounds are hit.
func BFS(ctx context.Context, d DAG, start string, dir Direction, opts Options, visit Visit) error {
	opts = opts.withDefaults()
	chk := checker{op: "bfs"}

	type item struct {
		sha   string
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
		if !visit(cur.sha, cur.depth) {
			return nil
		}
		visited++
		if visited >= opts.MaxNodes || cur.depth >= opts.MaxDepth {
			continue
		}
		next, err := neighbors(ctx, d, cur.sha, dir)
		if err != nil {
			return err
		}
		for _, n := range next {
			if _, ok := seen[n]; !ok {
				seen[n] = struct{}{}
				queue = append(queue, item{n, cur.depth + 1})
			}
		}
	}
	return nil
}

// DFS walks depth-first from start in the given direction.
func DFS(ctx context.Context, d DAG, start string, dir Direction, opts Options, visit Visit) error {
	opts = opts.withDefaults()
	chk := checker{op: "dfs"}

	type item struct {
		sha   string
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
		if !visit(cur.sha, cur.depth) {
			return nil
		}
		visited++
		if visited >= opts.MaxNodes || cur.depth >= opts.MaxDepth {
			continue
		}
		next, err := neighbors(ctx, d, cur.sha, dir)
		if err != nil {
			return err
		}
		// push in reverse so the first neighbor is expanded first
		for i := len(next) - 1; i >= 0; i-- {
			n := next[i]
			if _, ok := seen[n]; !ok {
				seen[n] = struct{}{}
				stack = append(stack, item{n, cur.depth + 1})
			}
		}
	}
	return nil
}

func collect(ctx context.Context, d DAG, start string, dir Direction, opts Options) ([]string, error) {
	var out []string
	err := BFS(ctx, d, start, dir, opts, func(sha string, depth int) bool {
		if sha != start {
			out = append(out, sha)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Ancestors returns every commit reachable through parent edges, excluding
// the start itself.
func Ancestors(ctx context.Context, d DAG, sha string, opts Options) ([]string, error) {
	return collect(ctx, d, sha, TowardParents, opts)
}

// Descendants returns every commit reachable through child edges,
// excluding the start itself.
func Descendants(ctx context.Context, d DAG, sha string, opts Options) ([]string, error) {
	return collect(ctx, d, sha, TowardChildren, opts)
}

// IsReachable reports whether descendant can be reached from ancestor by
// following child edges.
func IsReachable(ctx context.Context, d DAG, ancestor, descendant string, opts Options) (bool, error) {
	if ancestor == descendant {
		return true, nil
	}
	found := false
	err := BFS(ctx, d, ancestor, TowardChildren, opts, func(sha string, depth int) bool {
		if sha == descendant {
			found = true
			return false
		}
		return true
	})
	return found, err
}

// FindPath returns some path from → to over child edges via breadth-first
// search; being BFS over unweighted edges it is also a shortest path by
// hop count.
func FindPath(ctx context.Context, d DAG, from, to string, opts Options) (PathResult, error) {
	opts = opts.withDefaults()
	chk := checker{op: "find-path"}

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
		next, err := d.Children(ctx, cur)
		if err != nil {
			return notFound(), err
		}
		for _, n := range next {
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

func assemble(parent map[string]string, from, to string) PathResult {
	var path []string
	for cur := to; cur != ""; cur = parent[cur] {
		path = append(path, cur)
		if cur == from {
			break
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return PathResult{Found: true, Path: path, Length: len(path) - 1, Cost: float64(len(path) - 1)}
}

// ShortestPath runs a bidirectional BFS between from and to over child
// edges, expanding the smaller frontier each round.
func ShortestPath(ctx context.Context, d DAG, from, to string, opts Options) (PathResult, error) {
	opts = opts.withDefaults()
	chk := checker{op: "shortest-path"}

	if from == to {
		return PathResult{Found: true, Path: []string{from}, Length: 0}, nil
	}

	fwdParent := map[string]string{from: ""}
	bwdParent := map[string]string{to: ""}
	fwdFrontier := []string{from}
	bwdFrontier := []string{to}
	visited := 0

	for len(fwdFrontier) > 0 && len(bwdFrontier) > 0 {
		if visited >= opts.MaxNodes {
			break
		}
		forward := len(fwdFrontier) <= len(bwdFrontier)
		frontier := fwdFrontier
		if !forward {
			frontier = bwdFrontier
		}

		var next []string
		for _, cur := range frontier {
			if err := chk.tick(ctx); err != nil {
				return notFound(), err
			}
			visited++
			var ns []string
			var err error
			if forward {
				ns, err = d.Children(ctx, cur)
			} else {
				ns, err = d.Parents(ctx, cur)
			}
			if err != nil {
				return notFound(), err
			}
			for _, n := range ns {
				if forward {
					if _, ok := fwdParent[n]; ok {
						continue
					}
					fwdParent[n] = cur
					if _, met := bwdParent[n]; met {
						return meet(fwdParent, bwdParent, from, to, n), nil
					}
				} else {
					if _, ok := bwdParent[n]; ok {
						continue
					}
					bwdParent[n] = cur
					if _, met := fwdParent[n]; met {
						return meet(fwdParent, bwdParent, from, to, n), nil
					}
				}
				next = append(next, n)
			}
		}
		if forward {
			fwdFrontier = next
		} else {
			bwdFrontier = next
		}
	}
	return notFound(), nil
}

func meet(fwdParent, bwdParent map[string]string, from, to, meeting string) PathResult {
	var front []string
	for cur := meeting; cur != ""; cur = fwdParent[cur] {
		front = append(front, cur)
		if cur == from {
			break
		}
	}
	for i, j := 0, len(front)-1; i < j; i, j = i+1, j-1 {
		front[i], front[j] = front[j], front[i]
	}
	for cur := bwdParent[meeting]; cur != ""; cur = bwdParent[cur] {
		front = append(front, cur)
		if cur == to {
			break
		}
	}
	return PathResult{Found: true, Path: front, Length: len(front) - 1, Cost: float64(len(front) - 1)}
}

// CommonAncestors returns the commits reachable through parent edges from
// both a and b, sorted.
func CommonAncestors(ctx context.Context, d DAG, a, b string, opts Options) ([]string, error) {
	seenA := make(map[string]struct{})
	err := BFS(ctx, d, a, TowardParents, opts, func(sha string, depth int) bool {
		seenA[sha] = struct{}{}
		return true
	})
	if err != nil {
		return nil, err
	}
	var common []string
	err = BFS(ctx, d, b, TowardParents, opts, func(sha string, depth int) bool {
		if _, ok := seenA[sha]; ok {
			common = append(common, sha)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(common)
	return common, nil
}

// TopoOptions configure TopologicalSort.
type TopoOptions struct {
	Options
	// ThrowOnCycle raises CYCLE_DETECTED instead of silently omitting the
	// cyclic remainder from the output.
	ThrowOnCycle bool
}

// TopologicalSort orders the given commits so that every parent precedes
// its children, using Kahn's algorithm restricted to the provided set.
// Ready commits are emitted in lexicographic order, making the result
// deterministic. When the set contains a cycle the cyclic nodes are left
// out, or CYCLE_DETECTED is raised with the cycle size if ThrowOnCycle is
// set.
func TopologicalSort(ctx context.Context, d DAG, nodes []string, opts TopoOptions) ([]string, error) {
	chk := checker{op: "topological-sort"}
	inSet := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		inSet[n] = struct{}{}
	}

	indeg := make(map[string]int, len(nodes))
	children := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		if err := chk.tick(ctx); err != nil {
			return nil, err
		}
		ps, err := d.Parents(ctx, n)
		if err != nil {
			return nil, err
		}
		for _, p := range ps {
			if _, ok := inSet[p]; ok {
				indeg[n]++
				children[p] = append(children[p], n)
			}
		}
	}

	var ready []string
	for _, n := range nodes {
		if indeg[n] == 0 {
			ready = append(ready, n)
		}
	}
	sort.Strings(ready)

	out := make([]string, 0, len(nodes))
	for len(ready) > 0 {
		if err := chk.tick(ctx); err != nil {
			return nil, err
		}
		n := ready[0]
		ready = ready[1:]
		out = append(out, n)
		var unlocked []string
		for _, c := range children[n] {
			indeg[c]--
			if indeg[c] == 0 {
				unlocked = append(unlocked, c)
			}
		}
		sort.Strings(unlocked)
		ready = append(ready, unlocked...)
	}

	if len(out) != len(nodes) {
		if opts.ThrowOnCycle {
			return nil, errdefs.Newf(errdefs.CodeCycleDetected,
				"topological sort found a cycle of %d nodes", len(nodes)-len(out)).
				With("cycleSize", len(nodes)-len(out))
		}
	}
	return out, nil
}
