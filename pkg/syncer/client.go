package syncer

import (
	"github.com/git-stunts/warp/pkg/codec"
	"github.com/git-stunts/warp/pkg/reducer"
	"github.com/git-stunts/warp/pkg/types"
)

// ApplyResult is the outcome of folding a sync response into local state.
type ApplyResult struct {
	State    *reducer.State
	Frontier map[string]string
	Applied  int
}

// ApplyResponse folds the patches of a sync response into a copy of the
// given state and frontier. Inputs are never mutated. Every patch is
// schema-checked before anything is applied; patches are folded in EventID
// order across writers so causal context never outruns its dependencies.
//
// Re-applying the same response is safe: every op's dots are already
// covered by the state's observed frontier, so the second application is a
// no-op on state and counts as zero applied.
func ApplyResponse(state *reducer.State, frontier map[string]string, resp *SyncResponse) (*ApplyResult, error) {
	for i := range resp.Patches {
		if err := codec.CheckSchema(resp.Patches[i].Patch, types.MaxSchema); err != nil {
			return nil, err
		}
	}

	next := state.Clone()
	nextFrontier := make(map[string]string, len(frontier))
	for w, sha := range frontier {
		nextFrontier[w] = sha
	}

	sorted := make([]reducer.SourcedPatch, 0, len(resp.Patches))
	for _, e := range resp.Patches {
		sorted = append(sorted, reducer.SourcedPatch{Patch: e.Patch, SHA: e.SHA})
	}
	reducer.SortPatches(sorted)

	for _, sp := range sorted {
		if err := reducer.ApplyPatch(next, sp); err != nil {
			return nil, err
		}
	}

	// entries arrive per writer oldest first; the last sha per writer is
	// the new tip. A patch counts as applied when it lies past the
	// frontier the caller started from: everything after the entry that
	// matches the caller's tip for that writer (or the whole chain when
	// the tip does not appear in it).
	applied := 0
	perWriter := make(map[string][]string)
	for _, e := range resp.Patches {
		perWriter[e.WriterID] = append(perWriter[e.WriterID], e.SHA)
		nextFrontier[e.WriterID] = e.SHA
	}
	for writerID, shas := range perWriter {
		known := -1
		for i, sha := range shas {
			if sha == frontier[writerID] {
				known = i
			}
		}
		applied += len(shas) - (known + 1)
	}

	return &ApplyResult{State: next, Frontier: nextFrontier, Applied: applied}, nil
}
