package traverse

import (
	"container/heap"
	"context"
	"math"
)

// WeightFunc returns the non-negative cost of one edge.
type WeightFunc func(from, to string) float64

// HeuristicFunc estimates the remaining cost from a commit to the goal. It
// must never overestimate (be admissible) for A* to stay optimal.
type HeuristicFunc func(sha string) float64

// tieEpsilon biases the priority toward entries with more committed
// progress: among equal f-values, greater g is explored first.
const tieEpsilon = 1e-6

type pqItem struct {
	sha      string
	priority float64
	g        float64
	index    int
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].priority < pq[j].priority }
func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}
func (pq *priorityQueue) Push(x interface{}) {
	item := x.(*pqItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return item
}

// Dijkstra finds the minimum-cost path from → to over child edges.
func Dijkstra(ctx context.Context, d DAG, from, to string, weight WeightFunc, opts Options) (PathResult, error) {
	return AStar(ctx, d, from, to, weight, func(string) float64 { return 0 }, opts)
}

// AStar finds the minimum-cost path from → to over child edges guided by an
// admissible heuristic. With a zero heuristic it degenerates to Dijkstra.
func AStar(ctx context.Context, d DAG, from, to string, weight WeightFunc, h HeuristicFunc, opts Options) (PathResult, error) {
	opts = opts.withDefaults()
	chk := checker{op: "astar"}

	dist := map[string]float64{from: 0}
	parent := map[string]string{from: ""}
	done := make(map[string]struct{})

	pq := &priorityQueue{}
	heap.Init(pq)
	heap.Push(pq, &pqItem{sha: from, priority: h(from)})
	expanded := 0

	for pq.Len() > 0 {
		if err := chk.tick(ctx); err != nil {
			return notFound(), err
		}
		cur := heap.Pop(pq).(*pqItem)
		if _, ok := done[cur.sha]; ok {
			continue
		}
		done[cur.sha] = struct{}{}

		if cur.sha == to {
			res := assemble(parent, from, to)
			res.Cost = dist[to]
			return res, nil
		}
		expanded++
		if expanded >= opts.MaxNodes {
			break
		}

		next, err := d.Children(ctx, cur.sha)
		if err != nil {
			return notFound(), err
		}
		for _, n := range next {
			g := dist[cur.sha] + weight(cur.sha, n)
			if old, ok := dist[n]; ok && old <= g {
				continue
			}
			dist[n] = g
			parent[n] = cur.sha
			f := g + h(n)
			heap.Push(pq, &pqItem{sha: n, priority: f - tieEpsilon*g, g: g})
		}
	}
	return notFound(), nil
}

// BidirectionalAStar searches simultaneously from both endpoints, the
// forward pass over child edges guided by hForward (remaining cost to
// `to`), the backward pass over parent edges guided by hBackward
// (remaining cost to `from`). It maintains the best meeting cost μ and
// terminates once both frontiers' minimum f-values reach μ.
func BidirectionalAStar(ctx context.Context, d DAG, from, to string, weight WeightFunc, hForward, hBackward HeuristicFunc, opts Options) (PathResult, error) {
	opts = opts.withDefaults()
	chk := checker{op: "bidirectional-astar"}

	if from == to {
		return PathResult{Found: true, Path: []string{from}, Length: 0}, nil
	}

	type side struct {
		dist   map[string]float64
		parent map[string]string
		done   map[string]struct{}
		pq     *priorityQueue
		h      HeuristicFunc
	}
	newSide := func(start string, h HeuristicFunc) *side {
		s := &side{
			dist:   map[string]float64{start: 0},
			parent: map[string]string{start: ""},
			done:   make(map[string]struct{}),
			pq:     &priorityQueue{},
			h:      h,
		}
		heap.Init(s.pq)
		heap.Push(s.pq, &pqItem{sha: start, priority: h(start)})
		return s
	}
	fwd := newSide(from, hForward)
	bwd := newSide(to, hBackward)

	mu := math.Inf(1)
	var meeting string
	expanded := 0

	minF := func(s *side) float64 {
		if s.pq.Len() == 0 {
			return math.Inf(1)
		}
		return (*s.pq)[0].priority
	}

	for fwd.pq.Len() > 0 && bwd.pq.Len() > 0 {
		if err := chk.tick(ctx); err != nil {
			return notFound(), err
		}
		// μ-pruning: nothing on either frontier can improve the best
		// meeting point
		if minF(fwd) >= mu && minF(bwd) >= mu {
			break
		}
		if expanded >= opts.MaxNodes {
			break
		}
		expanded++

		forward := minF(fwd) <= minF(bwd)
		s, other := fwd, bwd
		if !forward {
			s, other = bwd, fwd
		}

		cur := heap.Pop(s.pq).(*pqItem)
		if _, ok := s.done[cur.sha]; ok {
			continue
		}
		s.done[cur.sha] = struct{}{}

		var next []string
		var err error
		if forward {
			next, err = d.Children(ctx, cur.sha)
		} else {
			next, err = d.Parents(ctx, cur.sha)
		}
		if err != nil {
			return notFound(), err
		}
		for _, n := range next {
			var w float64
			if forward {
				w = weight(cur.sha, n)
			} else {
				w = weight(n, cur.sha)
			}
			g := s.dist[cur.sha] + w
			if old, ok := s.dist[n]; ok && old <= g {
				continue
			}
			s.dist[n] = g
			s.parent[n] = cur.sha
			heap.Push(s.pq, &pqItem{sha: n, priority: g + s.h(n) - tieEpsilon*g, g: g})

			// meeting-point detection
			if og, ok := other.dist[n]; ok {
				if total := g + og; total < mu {
					mu = total
					meeting = n
				}
			}
		}
	}

	if meeting == "" {
		return notFound(), nil
	}
	res := meet(fwd.parent, bwd.parent, from, to, meeting)
	res.Cost = mu
	return res, nil
}
