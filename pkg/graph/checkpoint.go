package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/git-stunts/warp/pkg/codec"
	"github.com/git-stunts/warp/pkg/events"
	"github.com/git-stunts/warp/pkg/metrics"
	"github.com/git-stunts/warp/pkg/object"
	"github.com/git-stunts/warp/pkg/provenance"
	"github.com/git-stunts/warp/pkg/reducer"
	"github.com/git-stunts/warp/pkg/types"
)

const (
	pathState      = "state.cbor"
	pathProvenance = "provenance.cbor"
	pathManifest   = "manifest.json"
)

type checkpointManifest struct {
	Version   int               `json:"version"`
	CreatedAt time.Time         `json:"createdAt"`
	Frontier  map[string]string `json:"frontier"`
	Stats     reducer.Stats     `json:"stats"`
}

type checkpoint struct {
	state    *reducer.State
	frontier map[string]string
	prov     *provenance.Index
	seq      uint64
}

// CreateCheckpoint snapshots the current materialized state (and the
// provenance index) into a checkpoint commit and advances the checkpoint
// head ref. Returns the checkpoint commit sha.
func (g *Graph) CreateCheckpoint(ctx context.Context) (string, error) {
	if _, err := g.Materialize(ctx); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.createCheckpointLocked(ctx)
}

func (g *Graph) createCheckpointLocked(ctx context.Context) (string, error) {
	timer := metrics.NewTimer()

	stateBytes, err := reducer.Serialize(g.state)
	if err != nil {
		return "", err
	}
	provBytes, err := g.prov.Serialize()
	if err != nil {
		return "", err
	}
	manifest := checkpointManifest{
		Version:   1,
		CreatedAt: time.Now().UTC(),
		Frontier:  g.lastFrontier,
		Stats:     g.state.Stats(),
	}
	manifestBytes, err := json.Marshal(&manifest)
	if err != nil {
		return "", fmt.Errorf("encode checkpoint manifest: %w", err)
	}

	stateOID, err := g.store.WriteBlob(ctx, stateBytes)
	if err != nil {
		return "", err
	}
	provOID, err := g.store.WriteBlob(ctx, provBytes)
	if err != nil {
		return "", err
	}
	manifestOID, err := g.store.WriteBlob(ctx, manifestBytes)
	if err != nil {
		return "", err
	}
	tree, err := g.store.WriteTree(ctx, []object.TreeEntry{
		{Mode: "100644", OID: manifestOID, Path: pathManifest},
		{Mode: "100644", OID: provOID, Path: pathProvenance},
		{Mode: "100644", OID: stateOID, Path: pathState},
	})
	if err != nil {
		return "", err
	}

	ref := types.CheckpointRef(g.name)
	prev, err := g.store.ReadRef(ctx, ref)
	if err != nil {
		return "", err
	}
	var parents []string
	if prev != "" {
		parents = []string{prev}
	}

	env := codec.Envelope{Kind: codec.KindCheckpoint, Graph: g.name, Seq: g.checkpointSeq + 1}
	message, err := env.Format()
	if err != nil {
		return "", err
	}
	sha, err := g.store.Commit(ctx, message, parents, tree)
	if err != nil {
		return "", err
	}
	if err := g.store.UpdateRef(ctx, ref, sha); err != nil {
		return "", err
	}

	g.checkpointSeq++
	g.patchesSince = 0

	metrics.CheckpointsCreated.WithLabelValues(g.name).Inc()
	timer.ObserveDuration(metrics.CheckpointDuration)
	g.publish(events.EventCheckpointCreated, map[string]string{"sha": sha})
	g.logger.Info().Str("sha", sha).Uint64("seq", g.checkpointSeq).Msg("checkpoint created")
	return sha, nil
}

// loadCheckpoint reads the latest checkpoint, or nil when none exists.
func (g *Graph) loadCheckpoint(ctx context.Context) (*checkpoint, error) {
	ref := types.CheckpointRef(g.name)
	sha, err := g.store.ReadRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if sha == "" {
		return nil, nil
	}

	info, err := g.store.GetNodeInfo(ctx, sha)
	if err != nil {
		return nil, err
	}
	env, err := codec.ParseEnvelope(info.Message)
	if err != nil {
		return nil, err
	}
	if env.Kind != codec.KindCheckpoint {
		return nil, fmt.Errorf("checkpoint ref points at a %s commit", env.Kind)
	}

	paths, err := g.store.ReadTree(ctx, info.Tree)
	if err != nil {
		return nil, err
	}
	stateBytes, err := g.store.ReadBlob(ctx, paths[pathState])
	if err != nil {
		return nil, fmt.Errorf("checkpoint state: %w", err)
	}
	state, err := reducer.Deserialize(stateBytes)
	if err != nil {
		return nil, err
	}
	provBytes, err := g.store.ReadBlob(ctx, paths[pathProvenance])
	if err != nil {
		return nil, fmt.Errorf("checkpoint provenance: %w", err)
	}
	prov, err := provenance.Deserialize(provBytes)
	if err != nil {
		return nil, err
	}
	manifestBytes, err := g.store.ReadBlob(ctx, paths[pathManifest])
	if err != nil {
		return nil, fmt.Errorf("checkpoint manifest: %w", err)
	}
	var manifest checkpointManifest
	if err := json.Unmarshal(manifestBytes, &manifest); err != nil {
		return nil, fmt.Errorf("decode checkpoint manifest: %w", err)
	}

	return &checkpoint{
		state:    state,
		frontier: manifest.Frontier,
		prov:     prov,
		seq:      env.Seq,
	}, nil
}
