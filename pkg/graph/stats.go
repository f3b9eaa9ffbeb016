package graph

import (
	"context"

	"github.com/git-stunts/warp/pkg/reducer"
)

// Stats describes a graph handle's current view.
type Stats struct {
	State    reducer.Stats
	Writers  int
	Frontier map[string]string
}

// Stats materializes and summarizes the graph.
func (g *Graph) Stats(ctx context.Context) (*Stats, error) {
	st, err := g.Materialize(ctx)
	if err != nil {
		return nil, err
	}
	g.mu.RLock()
	frontier := make(map[string]string, len(g.lastFrontier))
	for w, sha := range g.lastFrontier {
		frontier[w] = sha
	}
	g.mu.RUnlock()
	return &Stats{
		State:    st.Stats(),
		Writers:  len(frontier),
		Frontier: frontier,
	}, nil
}
