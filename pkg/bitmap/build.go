package bitmap

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/git-stunts/warp/pkg/codec"
	"github.com/git-stunts/warp/pkg/errdefs"
	"github.com/git-stunts/warp/pkg/log"
	"github.com/git-stunts/warp/pkg/metrics"
	"github.com/git-stunts/warp/pkg/object"
	"github.com/git-stunts/warp/pkg/types"
)

const (
	manifestPath   = "manifest.json"
	idsPath        = "ids.json"
	abortCheckStep = 1000
)

type manifest struct {
	Version int               `json:"version"`
	Count   int               `json:"count"`
	Files   map[string]string `json:"files"` // path → sha256 of content
}

func shardKey(sha string) string {
	if len(sha) < 2 {
		return "00"
	}
	return sha[:2]
}

func metaPath(shard string) string { return "meta_" + shard + ".json" }
func fwdPath(shard string) string  { return "shards_fwd_" + shard + ".json" }
func revPath(shard string) string  { return "shards_rev_" + shard + ".json" }

// BuildResult describes one index rebuild.
type BuildResult struct {
	CommitSHA string
	TreeOID   string
	Nodes     int
	Edges     int
}

// Build walks every commit reachable from ref, assigns dense numeric ids in
// topological (parents-first) order, and persists sharded forward/reverse
// adjacency bitmaps under the graph's index ref. Rebuilding replaces the
// previous index atomically via the ref update.
func Build(ctx context.Context, store object.Store, graphName, ref string) (*BuildResult, error) {
	logger := log.WithComponent("bitmap").With().Str("graph", graphName).Logger()
	timer := metrics.NewTimer()

	tip, err := store.ReadRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if tip == "" {
		return nil, errdefs.Newf(errdefs.CodeNotFound, "ref %q is empty", ref)
	}

	// collect the reachable sub-DAG
	parents := make(map[string][]string)
	queue := []string{tip}
	seen := map[string]struct{}{tip: {}}
	expansions := 0
	for len(queue) > 0 {
		expansions++
		if expansions%abortCheckStep == 0 {
			if err := ctx.Err(); err != nil {
				return nil, errdefs.Aborted("index-build", err)
			}
		}
		sha := queue[0]
		queue = queue[1:]
		info, err := store.GetNodeInfo(ctx, sha)
		if err != nil {
			return nil, err
		}
		parents[sha] = info.Parents
		for _, p := range info.Parents {
			if _, ok := seen[p]; !ok {
				seen[p] = struct{}{}
				queue = append(queue, p)
			}
		}
	}

	// children lists + indegrees for Kahn's algorithm
	children := make(map[string][]string, len(parents))
	indeg := make(map[string]int, len(parents))
	for sha, ps := range parents {
		indeg[sha] = len(ps)
		for _, p := range ps {
			children[p] = append(children[p], sha)
		}
	}

	// dense ids in topological order, lexicographic among ready commits so
	// the assignment is deterministic
	var ready []string
	for sha, d := range indeg {
		if d == 0 {
			ready = append(ready, sha)
		}
	}
	sort.Strings(ready)
	ids := make(map[string]uint32, len(parents))
	order := make([]string, 0, len(parents))
	for len(ready) > 0 {
		sha := ready[0]
		ready = ready[1:]
		ids[sha] = uint32(len(order))
		order = append(order, sha)
		var unlocked []string
		for _, c := range children[sha] {
			indeg[c]--
			if indeg[c] == 0 {
				unlocked = append(unlocked, c)
			}
		}
		sort.Strings(unlocked)
		ready = append(ready, unlocked...)
	}
	if len(order) != len(parents) {
		return nil, errdefs.New(errdefs.CodeCorrupt, "commit graph contains a cycle")
	}

	// per-shard bitmaps
	fwd := make(map[string]map[string]*roaring.Bitmap) // shard → sha → child ids
	rev := make(map[string]map[string]*roaring.Bitmap) // shard → sha → parent ids
	ensure := func(m map[string]map[string]*roaring.Bitmap, sha string) *roaring.Bitmap {
		sk := shardKey(sha)
		if m[sk] == nil {
			m[sk] = make(map[string]*roaring.Bitmap)
		}
		if m[sk][sha] == nil {
			m[sk][sha] = roaring.New()
		}
		return m[sk][sha]
	}
	edges := 0
	for child, ps := range parents {
		for _, parent := range ps {
			ensure(fwd, parent).Add(ids[child])
			ensure(rev, child).Add(ids[parent])
			edges++
		}
	}

	// serialize files
	files := make(map[string][]byte)
	idsBytes, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("encode ids: %w", err)
	}
	files[idsPath] = idsBytes

	shards := make(map[string]struct{})
	for sha := range parents {
		shards[shardKey(sha)] = struct{}{}
	}
	for shard := range shards {
		meta := make(map[string]uint32)
		for sha, id := range ids {
			if shardKey(sha) == shard {
				meta[sha] = id
			}
		}
		data, err := json.Marshal(meta)
		if err != nil {
			return nil, err
		}
		files[metaPath(shard)] = data

		for _, dir := range []struct {
			m    map[string]map[string]*roaring.Bitmap
			path string
		}{{fwd, fwdPath(shard)}, {rev, revPath(shard)}} {
			enc := make(map[string]string)
			for sha, bm := range dir.m[shard] {
				raw, err := bm.MarshalBinary()
				if err != nil {
					return nil, fmt.Errorf("marshal bitmap: %w", err)
				}
				enc[sha] = base64.StdEncoding.EncodeToString(raw)
			}
			data, err := json.Marshal(enc)
			if err != nil {
				return nil, err
			}
			files[dir.path] = data
		}
	}

	man := manifest{Version: 1, Count: len(order), Files: make(map[string]string, len(files))}
	for path, data := range files {
		man.Files[path] = object.BlobOID(data)
	}
	manBytes, err := json.Marshal(&man)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	files[manifestPath] = manBytes

	// persist blobs + tree + commit, then swing the index ref
	entries := make([]object.TreeEntry, 0, len(files))
	for path, data := range files {
		oid, err := store.WriteBlob(ctx, data)
		if err != nil {
			return nil, err
		}
		entries = append(entries, object.TreeEntry{Mode: "100644", OID: oid, Path: path})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	tree, err := store.WriteTree(ctx, entries)
	if err != nil {
		return nil, err
	}
	env := codec.Envelope{Kind: codec.KindIndex, Graph: graphName}
	message, err := env.Format()
	if err != nil {
		return nil, err
	}
	sha, err := store.Commit(ctx, message, nil, tree)
	if err != nil {
		return nil, err
	}
	if err := store.UpdateRef(ctx, types.IndexRef(graphName), sha); err != nil {
		return nil, err
	}

	timer.ObserveDuration(metrics.IndexRebuildDuration)
	logger.Info().Int("nodes", len(order)).Int("edges", edges).Msg("bitmap index rebuilt")
	return &BuildResult{CommitSHA: sha, TreeOID: tree, Nodes: len(order), Edges: edges}, nil
}
