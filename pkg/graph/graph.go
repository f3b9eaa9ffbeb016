package graph

import (
	"context"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/git-stunts/warp/pkg/codec"
	"github.com/git-stunts/warp/pkg/errdefs"
	"github.com/git-stunts/warp/pkg/events"
	"github.com/git-stunts/warp/pkg/gc"
	"github.com/git-stunts/warp/pkg/log"
	"github.com/git-stunts/warp/pkg/metrics"
	"github.com/git-stunts/warp/pkg/object"
	"github.com/git-stunts/warp/pkg/provenance"
	"github.com/git-stunts/warp/pkg/reducer"
	"github.com/git-stunts/warp/pkg/types"
	"github.com/git-stunts/warp/pkg/writer"
)

const writerIDConfigKey = "warp.writer-id"

// Options configures a graph handle.
type Options struct {
	// Graph is the graph name. Required.
	Graph string
	// WriterID identifies the local writer. When empty, the store config
	// is consulted and, failing that, a fresh id is minted and persisted.
	WriterID string
	// CheckpointEvery auto-checkpoints after that many patches have been
	// folded since the last checkpoint. 0 disables auto-checkpointing.
	CheckpointEvery int
	// GCPolicy governs RunGC decisions. Zero value means DefaultPolicy.
	GCPolicy gc.Policy
	// Audit enables per-patch audit commits on local writer sessions.
	Audit bool
	// Broker receives lifecycle events. Optional.
	Broker *events.Broker
}

// Graph is a handle on one named graph in an object store. It owns the
// cached materialized state, the last-seen frontier, and the provenance
// index; all shared mutable pieces live behind refs in the store itself.
type Graph struct {
	store  object.Store
	name   string
	opts   Options
	logger zerolog.Logger
	broker *events.Broker

	mu             gosync.RWMutex
	state          *reducer.State
	lastFrontier   map[string]string
	patchesSince   int // since last checkpoint
	patchesSinceGC int
	lastGC         time.Time
	checkpointSeq  uint64
	prov           *provenance.Index
	writerID       string
}

// Open creates a handle on a graph. Construction is idempotent: it touches
// only the writer-id config entry and performs no materialization.
func Open(ctx context.Context, store object.Store, opts Options) (*Graph, error) {
	if err := types.ValidateName(opts.Graph); err != nil {
		return nil, errdefs.Wrap(err, errdefs.CodeValidation, "graph name")
	}
	if opts.GCPolicy == (gc.Policy{}) {
		opts.GCPolicy = gc.DefaultPolicy()
	}

	writerID := opts.WriterID
	if writerID == "" {
		stored, err := store.ConfigGet(ctx, writerIDConfigKey)
		if err != nil {
			return nil, err
		}
		writerID = stored
	}
	if writerID == "" {
		writerID = "w-" + uuid.NewString()
		if err := store.ConfigSet(ctx, writerIDConfigKey, writerID); err != nil {
			return nil, err
		}
	}
	if err := types.ValidateName(writerID); err != nil {
		return nil, errdefs.Wrap(err, errdefs.CodeValidation, "writer id")
	}

	return &Graph{
		store:    store,
		name:     opts.Graph,
		opts:     opts,
		logger:   log.WithComponent("graph").With().Str("graph", opts.Graph).Logger(),
		broker:   opts.Broker,
		prov:     provenance.NewIndex(),
		writerID: writerID,
	}, nil
}

// Name returns the graph name.
func (g *Graph) Name() string { return g.name }

// WriterID returns the local writer id.
func (g *Graph) WriterID() string { return g.writerID }

// Store exposes the persistence port for collaborators (sync server,
// bitmap index builder).
func (g *Graph) Store() object.Store { return g.store }

// Provenance returns a snapshot of the provenance index.
func (g *Graph) Provenance() *provenance.Index {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.prov.Clone()
}

// NewSession opens a patch session for the local writer against the
// current materialized state and chain tip.
func (g *Graph) NewSession(ctx context.Context) (*writer.Session, error) {
	st, err := g.Materialize(ctx)
	if err != nil {
		return nil, err
	}
	frontier, err := g.Frontier(ctx)
	if err != nil {
		return nil, err
	}
	tip := frontier[g.writerID]

	var lamport uint64
	if tip != "" {
		msg, err := g.store.ShowCommit(ctx, tip)
		if err != nil {
			return nil, err
		}
		env, err := codec.ParseEnvelope(msg)
		if err != nil {
			return nil, err
		}
		lamport = env.Lamport
	}

	return writer.NewSession(writer.Options{
		Store:    g.store,
		Graph:    g.name,
		WriterID: g.writerID,
		Parent:   tip,
		State:    st,
		Lamport:  lamport,
		Audit:    g.opts.Audit,
		OnCommit: func(res *writer.Result) {
			metrics.PatchesCommitted.WithLabelValues(g.name).Inc()
			g.publish(events.EventPatchCommitted, map[string]string{
				"sha":    res.SHA,
				"writer": g.writerID,
			})
		},
		OnConflict: func() {
			metrics.CASConflicts.WithLabelValues(g.name).Inc()
		},
	})
}

func (g *Graph) publish(typ events.EventType, meta map[string]string) {
	if g.broker == nil {
		return
	}
	g.broker.Publish(&events.Event{Type: typ, Graph: g.name, Metadata: meta})
}
