package syncer

import (
	"context"
	"sort"

	"github.com/git-stunts/warp/pkg/errdefs"
	"github.com/git-stunts/warp/pkg/graph"
	"github.com/git-stunts/warp/pkg/log"
)

// ProcessRequest answers a sync request: it compares the requester's
// frontier against the local graph, loads every patch range the requester
// is missing, and returns them with the full local frontier.
//
// A writer whose chain diverges from the requester's view is skipped
// silently — the requester may reconcile out-of-band — so one bad writer
// never blocks the rest of the exchange.
func ProcessRequest(ctx context.Context, g *graph.Graph, req *SyncRequest) (*SyncResponse, error) {
	logger := log.WithComponent("sync-server").With().Str("graph", g.Name()).Logger()

	local, err := g.Frontier(ctx)
	if err != nil {
		return nil, err
	}
	delta := ComputeDelta(req.Frontier, local)

	writers := make([]string, 0, len(delta.NeedFromRemote))
	for w := range delta.NeedFromRemote {
		writers = append(writers, w)
	}
	sort.Strings(writers)

	resp := &SyncResponse{Type: TypeSyncResponse, Frontier: local}
	for _, w := range writers {
		r := delta.NeedFromRemote[w]
		chain, err := g.PatchRange(ctx, w, r.From, r.To)
		if err != nil {
			if errdefs.IsCode(err, errdefs.CodeSyncDivergence) {
				logger.Warn().Str("writer_id", w).Msg("divergent writer skipped in sync response")
				continue
			}
			return nil, err
		}
		for _, sp := range chain {
			resp.Patches = append(resp.Patches, PatchEntry{
				WriterID: w,
				SHA:      sp.SHA,
				Patch:    sp.Patch,
			})
		}
	}
	return resp, nil
}
