package graph

import (
	"context"
	"strconv"
	"time"

	"github.com/git-stunts/warp/pkg/events"
	"github.com/git-stunts/warp/pkg/gc"
	"github.com/git-stunts/warp/pkg/metrics"
)

// GCOutcome reports one RunGC call.
type GCOutcome struct {
	Decision gc.Decision
	Result   gc.Result
	Ran      bool
}

// RunGC evaluates the compaction policy against the current state and, when
// the policy fires (or force is set), compacts safely-superseded
// tombstones. The cached state is replaced wholesale, so states returned by
// earlier Materialize calls are unaffected.
func (g *Graph) RunGC(ctx context.Context, force bool) (*GCOutcome, error) {
	if _, err := g.Materialize(ctx); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	stats := gc.Stats{
		Tombstones:   g.state.Nodes.TombstoneCount() + g.state.Edges.TombstoneCount(),
		TotalDots:    g.state.Nodes.DotCount() + g.state.Edges.DotCount(),
		PatchesSince: g.patchesSinceGC,
		LastRun:      g.lastGC,
		Now:          time.Now(),
	}
	out := &GCOutcome{Decision: g.opts.GCPolicy.ShouldRun(stats)}
	if !out.Decision.ShouldRun && !force {
		return out, nil
	}

	next := g.state.Clone()
	out.Result = gc.Compact(next)
	out.Ran = true
	g.state = next
	g.lastGC = time.Now()
	g.patchesSinceGC = 0

	metrics.GCRuns.WithLabelValues(g.name).Inc()
	metrics.TombstonesCompacted.Add(float64(out.Result.Removed()))
	g.publish(events.EventGCCompacted, map[string]string{
		"removed": strconv.Itoa(out.Result.Removed()),
	})
	g.logger.Info().
		Int("removed", out.Result.Removed()).
		Strs("reasons", out.Decision.Reasons).
		Bool("forced", force && !out.Decision.ShouldRun).
		Msg("tombstones compacted")
	return out, nil
}
