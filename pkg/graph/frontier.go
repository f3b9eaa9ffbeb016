package graph

import (
	"context"
	"strings"

	"github.com/git-stunts/warp/pkg/types"
)

// Frontier returns writerId → chain tip sha for every writer of the graph.
func (g *Graph) Frontier(ctx context.Context) (map[string]string, error) {
	prefix := types.WritersPrefix(g.name)
	refs, err := g.store.ListRefs(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(refs))
	for ref, sha := range refs {
		writerID := strings.TrimPrefix(ref, prefix)
		if types.ValidateName(writerID) != nil {
			continue
		}
		out[writerID] = sha
	}
	return out, nil
}

// FrontiersEqual is a cheap size+entry comparison between two frontiers.
func FrontiersEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for w, sha := range a {
		if b[w] != sha {
			return false
		}
	}
	return true
}

// HasFrontierChanged reports whether any writer tip moved since the last
// materialization. It reads refs only and never triggers materialization,
// so watchers can poll it cheaply.
func (g *Graph) HasFrontierChanged(ctx context.Context) (bool, error) {
	current, err := g.Frontier(ctx)
	if err != nil {
		return false, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.state == nil {
		return len(current) > 0, nil
	}
	return !FrontiersEqual(current, g.lastFrontier), nil
}
