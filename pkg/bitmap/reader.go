package bitmap

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	gosync "sync"

	"github.com/RoaringBitmap/roaring/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/git-stunts/warp/pkg/codec"
	"github.com/git-stunts/warp/pkg/errdefs"
	"github.com/git-stunts/warp/pkg/metrics"
	"github.com/git-stunts/warp/pkg/object"
	"github.com/git-stunts/warp/pkg/types"
)

// ReaderOptions tune index loading.
type ReaderOptions struct {
	// Strict verifies every loaded file against the manifest hashes and
	// fails closed on mismatch.
	Strict bool
	// CacheSize bounds the in-memory shard cache. Default 64 shards.
	CacheSize int
}

type shardData struct {
	meta map[string]uint32
	fwd  map[string]*roaring.Bitmap
	rev  map[string]*roaring.Bitmap
}

// Reader answers parent/child queries against a persisted bitmap index.
// Only the manifest and the id table are loaded eagerly; shards are read on
// first use and cached in an LRU, so lookups are O(1) amortized.
type Reader struct {
	store  object.Store
	paths  map[string]string
	strict bool
	ids    []string
	man    manifest
	cache  *lru.Cache[string, *shardData]
	mu     gosync.Mutex
}

// NewReader opens the graph's current index.
func NewReader(ctx context.Context, store object.Store, graphName string, opts ReaderOptions) (*Reader, error) {
	sha, err := store.ReadRef(ctx, types.IndexRef(graphName))
	if err != nil {
		return nil, err
	}
	if sha == "" {
		return nil, errdefs.Newf(errdefs.CodeNotFound, "graph %q has no bitmap index", graphName)
	}
	info, err := store.GetNodeInfo(ctx, sha)
	if err != nil {
		return nil, err
	}
	env, err := codec.ParseEnvelope(info.Message)
	if err != nil {
		return nil, err
	}
	if env.Kind != codec.KindIndex {
		return nil, errdefs.Newf(errdefs.CodeCorrupt, "index ref points at a %s commit", env.Kind)
	}
	paths, err := store.ReadTree(ctx, info.Tree)
	if err != nil {
		return nil, err
	}

	size := opts.CacheSize
	if size <= 0 {
		size = 64
	}
	cache, err := lru.New[string, *shardData](size)
	if err != nil {
		return nil, err
	}

	r := &Reader{store: store, paths: paths, strict: opts.Strict, cache: cache}

	manBytes, err := r.readFile(ctx, manifestPath, "")
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(manBytes, &r.man); err != nil {
		return nil, fmt.Errorf("decode index manifest: %w", err)
	}
	if r.man.Version != 1 {
		return nil, errdefs.Newf(errdefs.CodeCorrupt, "unsupported index version %d", r.man.Version)
	}
	idsBytes, err := r.readFile(ctx, idsPath, r.man.Files[idsPath])
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(idsBytes, &r.ids); err != nil {
		return nil, fmt.Errorf("decode index ids: %w", err)
	}
	if len(r.ids) != r.man.Count {
		return nil, errdefs.Newf(errdefs.CodeCorrupt,
			"index id table has %d entries, manifest declares %d", len(r.ids), r.man.Count)
	}
	return r, nil
}

func (r *Reader) readFile(ctx context.Context, path, wantHash string) ([]byte, error) {
	oid, ok := r.paths[path]
	if !ok {
		return nil, errdefs.Newf(errdefs.CodeCorrupt, "index tree missing %q", path)
	}
	data, err := r.store.ReadBlob(ctx, oid)
	if err != nil {
		return nil, err
	}
	if r.strict && wantHash != "" && object.BlobOID(data) != wantHash {
		return nil, errdefs.Newf(errdefs.CodeCorrupt, "index file %q fails integrity check", path)
	}
	return data, nil
}

func (r *Reader) shard(ctx context.Context, key string) (*shardData, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sd, ok := r.cache.Get(key); ok {
		return sd, nil
	}

	sd := &shardData{
		meta: make(map[string]uint32),
		fwd:  make(map[string]*roaring.Bitmap),
		rev:  make(map[string]*roaring.Bitmap),
	}
	// a shard with no file simply holds no commits
	if _, ok := r.paths[metaPath(key)]; ok {
		data, err := r.readFile(ctx, metaPath(key), r.man.Files[metaPath(key)])
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &sd.meta); err != nil {
			return nil, fmt.Errorf("decode shard meta %s: %w", key, err)
		}
		for _, dir := range []struct {
			path string
			into map[string]*roaring.Bitmap
		}{{fwdPath(key), sd.fwd}, {revPath(key), sd.rev}} {
			data, err := r.readFile(ctx, dir.path, r.man.Files[dir.path])
			if err != nil {
				return nil, err
			}
			var enc map[string]string
			if err := json.Unmarshal(data, &enc); err != nil {
				return nil, fmt.Errorf("decode shard %s: %w", dir.path, err)
			}
			for sha, b64 := range enc {
				raw, err := base64.StdEncoding.DecodeString(b64)
				if err != nil {
					return nil, errdefs.Newf(errdefs.CodeCorrupt, "shard %s entry %s is not base64", dir.path, sha)
				}
				bm := roaring.New()
				if err := bm.UnmarshalBinary(raw); err != nil {
					return nil, errdefs.Newf(errdefs.CodeCorrupt, "shard %s entry %s holds a corrupt bitmap", dir.path, sha)
				}
				dir.into[sha] = bm
			}
		}
		metrics.IndexShardLoads.Inc()
	}
	r.cache.Add(key, sd)
	return sd, nil
}

// Count returns the number of indexed commits.
func (r *Reader) Count() int {
	return r.man.Count
}

// AllSHAs returns every indexed commit sha in id order.
func (r *Reader) AllSHAs() []string {
	return append([]string(nil), r.ids...)
}

// LookupID resolves a commit sha to its dense id.
func (r *Reader) LookupID(ctx context.Context, sha string) (uint32, bool, error) {
	sd, err := r.shard(ctx, shardKey(sha))
	if err != nil {
		return 0, false, err
	}
	id, ok := sd.meta[sha]
	return id, ok, nil
}

func (r *Reader) resolve(bm *roaring.Bitmap) ([]string, error) {
	if bm == nil {
		return nil, nil
	}
	out := make([]string, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		id := it.Next()
		if int(id) >= len(r.ids) {
			return nil, errdefs.Newf(errdefs.CodeCorrupt, "bitmap references unknown id %d", id)
		}
		out = append(out, r.ids[id])
	}
	return out, nil
}

// Parents returns the parent shas of a commit, in id order.
func (r *Reader) Parents(ctx context.Context, sha string) ([]string, error) {
	sd, err := r.shard(ctx, shardKey(sha))
	if err != nil {
		return nil, err
	}
	return r.resolve(sd.rev[sha])
}

// Children returns the child shas of a commit, in id order.
func (r *Reader) Children(ctx context.Context, sha string) ([]string, error) {
	sd, err := r.shard(ctx, shardKey(sha))
	if err != nil {
		return nil, err
	}
	return r.resolve(sd.fwd[sha])
}
