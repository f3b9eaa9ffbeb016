package graph

import (
	"context"

	"github.com/git-stunts/warp/pkg/codec"
	"github.com/git-stunts/warp/pkg/errdefs"
	"github.com/git-stunts/warp/pkg/events"
	"github.com/git-stunts/warp/pkg/metrics"
	"github.com/git-stunts/warp/pkg/reducer"
)

// Materialize returns the merged state of every writer chain. The result
// is cached: while no writer tip moves, repeated calls return the same
// state without touching patch storage. On change, the previous cached
// state (or, on a handle with no cached state, the most recent checkpoint)
// serves as base and only the trailing patches are replayed.
//
// The returned state is shared and must be treated as read-only; it is
// replaced, never mutated, by later materializations.
func (g *Graph) Materialize(ctx context.Context) (*reducer.State, error) {
	frontier, err := g.Frontier(ctx)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != nil && FrontiersEqual(frontier, g.lastFrontier) {
		return g.state, nil
	}

	timer := metrics.NewTimer()

	base := g.state
	baseFrontier := g.lastFrontier
	prov := g.prov
	if base == nil {
		cp, err := g.loadCheckpoint(ctx)
		if err != nil {
			return nil, err
		}
		if cp != nil {
			base = cp.state
			baseFrontier = cp.frontier
			prov = cp.prov
			g.checkpointSeq = cp.seq
		} else {
			base = reducer.NewState()
			baseFrontier = nil
		}
	}

	var pending []reducer.SourcedPatch
	for writerID, tip := range frontier {
		if err := ctx.Err(); err != nil {
			return nil, errdefs.Aborted("materialize", err)
		}
		from := baseFrontier[writerID]
		if from == tip {
			continue
		}
		chain, err := g.PatchRange(ctx, writerID, from, tip)
		if err != nil {
			return nil, err
		}
		pending = append(pending, chain...)
	}

	next := base.Clone()
	reducer.SortPatches(pending)
	nextProv := prov.Clone()
	for _, sp := range pending {
		if err := reducer.ApplyPatch(next, sp); err != nil {
			return nil, err
		}
		nextProv.Observe(sp.Patch, sp.SHA)
	}

	g.state = next
	g.lastFrontier = frontier
	g.prov = nextProv
	g.patchesSince += len(pending)
	g.patchesSinceGC += len(pending)

	st := next.Stats()
	metrics.PatchesApplied.WithLabelValues(g.name).Add(float64(len(pending)))
	metrics.StateNodes.WithLabelValues(g.name).Set(float64(st.VisibleNodes))
	metrics.StateEdges.WithLabelValues(g.name).Set(float64(st.VisibleEdges))
	metrics.StateTombstones.WithLabelValues(g.name).Set(float64(st.Tombstones))
	timer.ObserveDuration(metrics.MaterializeDuration)

	if len(pending) > 0 {
		g.logger.Debug().
			Int("patches", len(pending)).
			Int("nodes", st.VisibleNodes).
			Int("edges", st.VisibleEdges).
			Msg("state materialized")
		g.publish(events.EventFrontierChanged, nil)
	}

	if g.opts.CheckpointEvery > 0 && g.patchesSince >= g.opts.CheckpointEvery {
		if _, err := g.createCheckpointLocked(ctx); err != nil {
			// auto-checkpointing is opportunistic; the materialized state
			// is already correct
			g.logger.Error().Err(err).Msg("auto-checkpoint failed")
		}
	}

	return g.state, nil
}

// PatchRange loads a writer's patches from the commit after `from` up to
// and including `to`, oldest first. An empty `from` loads the whole chain.
// A chain that never reaches `from` fails with E_SYNC_DIVERGENCE.
func (g *Graph) PatchRange(ctx context.Context, writerID, from, to string) ([]reducer.SourcedPatch, error) {
	var out []reducer.SourcedPatch
	sha := to
	for sha != "" && sha != from {
		if err := ctx.Err(); err != nil {
			return nil, errdefs.Aborted("patch-range", err)
		}
		info, err := g.store.GetNodeInfo(ctx, sha)
		if err != nil {
			return nil, err
		}
		env, err := codec.ParseEnvelope(info.Message)
		if err != nil {
			return nil, err
		}
		if env.Kind != codec.KindPatch {
			return nil, errdefs.Newf(errdefs.CodeSyncDivergence,
				"commit %s in chain of writer %s is not a patch", sha, writerID).
				With("writer", writerID).With("sha", sha)
		}
		blob, err := g.store.ReadBlob(ctx, env.PatchOID)
		if err != nil {
			return nil, err
		}
		p, err := codec.DecodePatch(blob)
		if err != nil {
			return nil, err
		}
		out = append(out, reducer.SourcedPatch{Patch: p, SHA: sha})
		sha = info.FirstParent()
	}
	if from != "" && sha != from {
		return nil, errdefs.Newf(errdefs.CodeSyncDivergence,
			"chain of writer %s does not reach %s", writerID, from).
			With("writer", writerID).With("from", from).With("to", to)
	}
	// reverse to oldest-first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// MaterializeSlice replays only the patches that ever touched the entity,
// using the provenance index, and returns the resulting partial state.
func (g *Graph) MaterializeSlice(ctx context.Context, entityID string) (*reducer.State, error) {
	if _, err := g.Materialize(ctx); err != nil {
		return nil, err
	}
	g.mu.RLock()
	shas := g.prov.PatchesFor(entityID)
	g.mu.RUnlock()

	patches := make([]reducer.SourcedPatch, 0, len(shas))
	for _, sha := range shas {
		if err := ctx.Err(); err != nil {
			return nil, errdefs.Aborted("materialize-slice", err)
		}
		info, err := g.store.GetNodeInfo(ctx, sha)
		if err != nil {
			return nil, err
		}
		env, err := codec.ParseEnvelope(info.Message)
		if err != nil {
			return nil, err
		}
		blob, err := g.store.ReadBlob(ctx, env.PatchOID)
		if err != nil {
			return nil, err
		}
		p, err := codec.DecodePatch(blob)
		if err != nil {
			return nil, err
		}
		patches = append(patches, reducer.SourcedPatch{Patch: p, SHA: sha})
	}
	return reducer.Reduce(patches, nil)
}
