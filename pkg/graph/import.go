package graph

import (
	"context"

	"github.com/git-stunts/warp/pkg/codec"
	"github.com/git-stunts/warp/pkg/errdefs"
	"github.com/git-stunts/warp/pkg/object"
	"github.com/git-stunts/warp/pkg/types"
)

// ImportEntry is one remote patch to persist locally.
type ImportEntry struct {
	WriterID string
	SHA      string
	Patch    *types.Patch
}

// Import persists patches received from a remote replica onto the local
// writer chains. Entries must arrive per writer oldest first, with the
// first entry's chain parented on the local tip. Commits are recomputed
// locally; because commit shas cover only (message, parents, tree), the
// local sha must equal what the remote declared — a mismatch means the two
// sides disagree about patch content and fails with E_SYNC_PROTOCOL.
func (g *Graph) Import(ctx context.Context, entries []ImportEntry) (int, error) {
	byWriter := make(map[string][]ImportEntry)
	var order []string
	for _, e := range entries {
		if _, ok := byWriter[e.WriterID]; !ok {
			order = append(order, e.WriterID)
		}
		byWriter[e.WriterID] = append(byWriter[e.WriterID], e)
	}

	applied := 0
	for _, writerID := range order {
		n, err := g.importWriter(ctx, writerID, byWriter[writerID])
		if err != nil {
			return applied, err
		}
		applied += n
	}
	return applied, nil
}

func (g *Graph) importWriter(ctx context.Context, writerID string, entries []ImportEntry) (int, error) {
	ref := types.WriterRef(g.name, writerID)
	tip, err := g.store.ReadRef(ctx, ref)
	if err != nil {
		return 0, err
	}

	parent := tip
	applied := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return applied, errdefs.Aborted("import", err)
		}
		if err := codec.CheckSchema(e.Patch, types.MaxSchema); err != nil {
			return applied, err
		}

		data, err := codec.EncodePatch(e.Patch)
		if err != nil {
			return applied, err
		}
		patchOID, err := g.store.WriteBlob(ctx, data)
		if err != nil {
			return applied, err
		}
		tree, err := g.store.WriteTree(ctx, []object.TreeEntry{
			{Mode: "100644", OID: patchOID, Path: "patch.cbor"},
		})
		if err != nil {
			return applied, err
		}
		env := codec.Envelope{
			Kind:     codec.KindPatch,
			Graph:    g.name,
			Writer:   e.Patch.Writer,
			Lamport:  e.Patch.Lamport,
			PatchOID: patchOID,
			Schema:   e.Patch.Schema,
		}
		message, err := env.Format()
		if err != nil {
			return applied, err
		}
		var parents []string
		if parent != "" {
			parents = []string{parent}
		}
		sha, err := g.store.Commit(ctx, message, parents, tree)
		if err != nil {
			return applied, err
		}
		if e.SHA != "" && sha != e.SHA {
			return applied, errdefs.Newf(errdefs.CodeSyncProtocol,
				"imported patch hashed to %s, remote declared %s", sha, e.SHA).
				With("writer", writerID)
		}
		parent = sha
		applied++
	}

	if parent != tip {
		if err := g.store.CompareAndSwapRef(ctx, ref, tip, parent); err != nil {
			return applied, err
		}
	}
	return applied, nil
}
