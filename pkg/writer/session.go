package writer

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/git-stunts/warp/pkg/codec"
	"github.com/git-stunts/warp/pkg/crdt"
	"github.com/git-stunts/warp/pkg/errdefs"
	"github.com/git-stunts/warp/pkg/log"
	"github.com/git-stunts/warp/pkg/object"
	"github.com/git-stunts/warp/pkg/reducer"
	"github.com/git-stunts/warp/pkg/types"
)

// Options configures a patch session.
type Options struct {
	Store    object.Store
	Graph    string
	WriterID string
	// Parent is the writer's chain tip observed when the session opened,
	// "" for a writer with no chain yet.
	Parent string
	// State is the materialized state the session's removes snapshot
	// observed dots from. May be nil for a blind writer.
	State *reducer.State
	// Lamport is the writer's last emitted lamport (0 when the chain is
	// empty).
	Lamport uint64
	// Audit enables a bound warp:audit commit per patch.
	Audit bool
	// OnCommit and OnConflict are optional hooks the graph handle uses to
	// feed metrics and the event broker.
	OnCommit   func(*Result)
	OnConflict func()
}

// Session accumulates graph operations and commits them as one atomic
// patch. Sessions are single-use: after a successful Commit the session is
// spent and a new one must be opened against the fresh state.
//
// Sessions are not safe for concurrent use.
type Session struct {
	store    object.Store
	graph    string
	writerID string
	parent   string
	state    *reducer.State
	context  crdt.VersionVector
	lamport  uint64
	seq      uint64
	ops      []types.Op
	reads    map[string]struct{}
	writes   map[string]struct{}
	audit      bool
	done       bool
	onCommit   func(*Result)
	onConflict func()
	logger     zerolog.Logger
}

// NewSession opens a patch session.
func NewSession(opts Options) (*Session, error) {
	if err := types.ValidateName(opts.Graph); err != nil {
		return nil, errdefs.Wrap(err, errdefs.CodeValidation, "graph name")
	}
	if err := types.ValidateName(opts.WriterID); err != nil {
		return nil, errdefs.Wrap(err, errdefs.CodeValidation, "writer id")
	}
	ctxVV := crdt.NewVersionVector()
	if opts.State != nil {
		ctxVV = opts.State.Frontier.Clone()
	}
	return &Session{
		store:    opts.Store,
		graph:    opts.Graph,
		writerID: opts.WriterID,
		parent:   opts.Parent,
		state:    opts.State,
		context:  ctxVV,
		lamport:  opts.Lamport,
		// the first dot after an empty chain is seq 1
		seq:    ctxVV.Get(opts.WriterID),
		ops:    nil,
		reads:  make(map[string]struct{}),
		writes: make(map[string]struct{}),
		audit:      opts.Audit,
		onCommit:   opts.OnCommit,
		onConflict: opts.OnConflict,
		logger:     log.WithComponent("writer").With().Str("graph", opts.Graph).Str("writer_id", opts.WriterID).Logger(),
	}, nil
}

func (s *Session) mint() crdt.Dot {
	s.seq++
	return crdt.NewDot(s.writerID, s.seq)
}

// AddNode records a node add with a fresh dot.
func (s *Session) AddNode(nodeID string) *Session {
	s.ops = append(s.ops, types.NewNodeAdd(nodeID, s.mint()))
	s.writes[nodeID] = struct{}{}
	return s
}

// RemoveNode records a node remove tombstoning the dots currently observed
// for the node. Removing an unseen node records an empty observed set,
// which is a no-op on merge — that asymmetry is what lets a concurrent add
// win.
func (s *Session) RemoveNode(nodeID string) *Session {
	var observed []crdt.Dot
	if s.state != nil {
		observed = s.state.Nodes.ObservedDots(nodeID)
	}
	s.ops = append(s.ops, types.NewNodeRemove(observed))
	s.writes[nodeID] = struct{}{}
	return s
}

// AddEdge records a directed labeled edge add with a fresh dot.
func (s *Session) AddEdge(from, to, label string) *Session {
	s.ops = append(s.ops, types.NewEdgeAdd(types.EdgeKey{From: from, To: to, Label: label}, s.mint()))
	s.writes[types.EdgeKey{From: from, To: to, Label: label}.Encode()] = struct{}{}
	s.reads[from] = struct{}{}
	s.reads[to] = struct{}{}
	return s
}

// RemoveEdge records an edge remove tombstoning the observed dots.
func (s *Session) RemoveEdge(from, to, label string) *Session {
	k := types.EdgeKey{From: from, To: to, Label: label}
	var observed []crdt.Dot
	if s.state != nil {
		observed = s.state.Edges.ObservedDots(k.Encode())
	}
	s.ops = append(s.ops, types.NewEdgeRemove(observed))
	s.writes[k.Encode()] = struct{}{}
	return s
}

// SetProperty records a last-writer-wins property write on a node.
func (s *Session) SetProperty(nodeID, key string, value types.ValueRef) *Session {
	s.ops = append(s.ops, types.NewPropSet(nodeID, key, value))
	s.writes[nodeID] = struct{}{}
	return s
}

// SetEdgeProperty records a property write on an edge. Using it raises the
// patch schema to 3.
func (s *Session) SetEdgeProperty(from, to, label, key string, value types.ValueRef) *Session {
	k := types.EdgeKey{From: from, To: to, Label: label}
	s.ops = append(s.ops, types.NewEdgePropSet(k, key, value))
	s.writes[k.Encode()] = struct{}{}
	return s
}

// OpCount returns the number of recorded operations.
func (s *Session) OpCount() int {
	return len(s.ops)
}

// Result describes a committed patch.
type Result struct {
	SHA      string
	PatchOID string
	AuditSHA string
	Patch    *types.Patch
}

// Commit builds the patch, writes blob → tree → commit, and advances the
// writer ref with an atomic compare-and-swap against the tip the session
// opened on. A moved ref fails with WRITER_CAS_CONFLICT carrying the
// expected and actual shas; the caller re-materializes and retries on a
// fresh session.
func (s *Session) Commit(ctx context.Context) (*Result, error) {
	if s.done {
		return nil, errdefs.New(errdefs.CodeValidation, "session already committed")
	}
	if len(s.ops) == 0 {
		return nil, errdefs.New(errdefs.CodeEmptyPatch, "patch has no operations")
	}

	lamport := s.lamport
	if m := s.context.Max(); m > lamport {
		lamport = m
	}
	lamport++

	p := &types.Patch{
		Writer:  s.writerID,
		Lamport: lamport,
		Context: map[string]uint64(s.context),
		Ops:     s.ops,
		Reads:   sortedKeys(s.reads),
		Writes:  sortedKeys(s.writes),
	}
	p.Schema = p.MinimumSchema()

	data, err := codec.EncodePatch(p)
	if err != nil {
		return nil, err
	}
	patchOID, err := s.store.WriteBlob(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("write patch blob: %w", err)
	}
	tree, err := s.store.WriteTree(ctx, []object.TreeEntry{
		{Mode: "100644", OID: patchOID, Path: "patch.cbor"},
	})
	if err != nil {
		return nil, fmt.Errorf("write patch tree: %w", err)
	}

	env := codec.Envelope{
		Kind:     codec.KindPatch,
		Graph:    s.graph,
		Writer:   s.writerID,
		Lamport:  lamport,
		PatchOID: patchOID,
		Schema:   p.Schema,
	}
	message, err := env.Format()
	if err != nil {
		return nil, err
	}

	var parents []string
	if s.parent != "" {
		parents = []string{s.parent}
	}
	sha, err := s.store.Commit(ctx, message, parents, tree)
	if err != nil {
		return nil, fmt.Errorf("write patch commit: %w", err)
	}

	ref := types.WriterRef(s.graph, s.writerID)
	if err := s.store.CompareAndSwapRef(ctx, ref, s.parent, sha); err != nil {
		if errors.Is(err, object.ErrRefCASMismatch) {
			actual, readErr := s.store.ReadRef(ctx, ref)
			if readErr != nil {
				actual = ""
			}
			if s.onConflict != nil {
				s.onConflict()
			}
			return nil, errdefs.Wrap(err, errdefs.CodeWriterCASConflict, "writer ref moved during session").
				With("expectedSha", s.parent).
				With("actualSha", actual).
				With("writer", s.writerID)
		}
		return nil, fmt.Errorf("update writer ref: %w", err)
	}
	s.done = true

	res := &Result{SHA: sha, PatchOID: patchOID, Patch: p}

	if s.audit {
		auditSHA, err := s.commitAudit(ctx, p, sha)
		if err != nil {
			// the data commit already landed; an audit failure must not
			// unwind it
			s.logger.Error().Err(err).Str("sha", sha).Msg("audit commit failed")
		} else {
			res.AuditSHA = auditSHA
		}
	}

	if s.onCommit != nil {
		s.onCommit(res)
	}
	s.logger.Debug().
		Str("sha", sha).
		Uint64("lamport", lamport).
		Int("ops", len(p.Ops)).
		Msg("patch committed")
	return res, nil
}

// commitAudit writes the warp:audit commit binding an ops digest to the
// data commit, chained on the writer's audit ref.
func (s *Session) commitAudit(ctx context.Context, p *types.Patch, dataSHA string) (string, error) {
	digest, err := codec.OpsDigest(p.Ops)
	if err != nil {
		return "", err
	}
	env := codec.Envelope{
		Kind:       codec.KindAudit,
		Graph:      s.graph,
		Writer:     s.writerID,
		DataCommit: dataSHA,
		OpsDigest:  digest,
		Schema:     p.Schema,
	}
	message, err := env.Format()
	if err != nil {
		return "", err
	}
	ref := types.AuditRef(s.graph, s.writerID)
	prev, err := s.store.ReadRef(ctx, ref)
	if err != nil {
		return "", err
	}
	var parents []string
	if prev != "" {
		parents = []string{prev}
	}
	sha, err := s.store.Commit(ctx, message, parents, "")
	if err != nil {
		return "", err
	}
	if err := s.store.UpdateRef(ctx, ref, sha); err != nil {
		return "", err
	}
	return sha, nil
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
