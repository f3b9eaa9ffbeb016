package bitmap

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/git-stunts/warp/pkg/errdefs"
	"github.com/git-stunts/warp/pkg/object"
	"github.com/git-stunts/warp/pkg/types"
)

// buildChain commits a linear chain of n commits and points ref at the tip,
// returning the shas oldest first.
func buildChain(t *testing.T, store object.Store, ref string, n int) []string {
	t.Helper()
	ctx := context.Background()
	shas := make([]string, 0, n)
	parent := ""
	for i := 0; i < n; i++ {
		var parents []string
		if parent != "" {
			parents = []string{parent}
		}
		sha, err := store.Commit(ctx, fmt.Sprintf("warp:index\n\neg-graph: g\neg-kind: index\nx-n: %d\n", i), parents, "")
		require.NoError(t, err)
		shas = append(shas, sha)
		parent = sha
	}
	require.NoError(t, store.UpdateRef(ctx, ref, parent))
	return shas
}

func TestChainRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := object.NewMemStore()
	ref := types.WriterRef("g", "w")
	shas := buildChain(t, store, ref, 100)

	res, err := Build(ctx, store, "g", ref)
	require.NoError(t, err)
	assert.Equal(t, 100, res.Nodes)
	assert.Equal(t, 99, res.Edges)

	r, err := NewReader(ctx, store, "g", ReaderOptions{Strict: true})
	require.NoError(t, err)
	assert.Equal(t, 100, r.Count())

	// the root of a linear chain gets id 0
	id, ok, err := r.LookupID(ctx, shas[0])
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(0), id)

	id, ok, err = r.LookupID(ctx, shas[99])
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(99), id)

	parents, err := r.Parents(ctx, shas[50])
	require.NoError(t, err)
	assert.Equal(t, []string{shas[49]}, parents)

	children, err := r.Children(ctx, shas[50])
	require.NoError(t, err)
	assert.Equal(t, []string{shas[51]}, children)

	// endpoints
	parents, err = r.Parents(ctx, shas[0])
	require.NoError(t, err)
	assert.Empty(t, parents)
	children, err = r.Children(ctx, shas[99])
	require.NoError(t, err)
	assert.Empty(t, children)

	// unknown sha
	_, ok, err = r.LookupID(ctx, object.BlobOID([]byte("nope")))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMergeCommitIndexed(t *testing.T) {
	ctx := context.Background()
	store := object.NewMemStore()

	root, err := store.Commit(ctx, "warp:index\n\neg-graph: g\neg-kind: index\nx-n: root\n", nil, "")
	require.NoError(t, err)
	left, err := store.Commit(ctx, "warp:index\n\neg-graph: g\neg-kind: index\nx-n: left\n", []string{root}, "")
	require.NoError(t, err)
	right, err := store.Commit(ctx, "warp:index\n\neg-graph: g\neg-kind: index\nx-n: right\n", []string{root}, "")
	require.NoError(t, err)
	merge, err := store.Commit(ctx, "warp:index\n\neg-graph: g\neg-kind: index\nx-n: merge\n", []string{left, right}, "")
	require.NoError(t, err)
	ref := types.WriterRef("g", "w")
	require.NoError(t, store.UpdateRef(ctx, ref, merge))

	_, err = Build(ctx, store, "g", ref)
	require.NoError(t, err)
	r, err := NewReader(ctx, store, "g", ReaderOptions{})
	require.NoError(t, err)

	parents, err := r.Parents(ctx, merge)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{left, right}, parents)

	children, err := r.Children(ctx, root)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{left, right}, children)

	// ids respect topology: root before branches before merge
	rootID, _, err := r.LookupID(ctx, root)
	require.NoError(t, err)
	mergeID, _, err := r.LookupID(ctx, merge)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), rootID)
	assert.Equal(t, uint32(3), mergeID)
}

func TestStrictVerifyFailsClosed(t *testing.T) {
	ctx := context.Background()
	store := object.NewMemStore()
	ref := types.WriterRef("g", "w")
	buildChain(t, store, ref, 5)

	res, err := Build(ctx, store, "g", ref)
	require.NoError(t, err)

	// corrupt the ids file behind the manifest's back by rewriting the
	// tree to point at a different blob
	badOID, err := store.WriteBlob(ctx, []byte(`["bogus"]`))
	require.NoError(t, err)
	paths, err := store.ReadTree(ctx, res.TreeOID)
	require.NoError(t, err)
	entries := make([]object.TreeEntry, 0, len(paths))
	for path, oid := range paths {
		if path == idsPath {
			oid = badOID
		}
		entries = append(entries, object.TreeEntry{Mode: "100644", OID: oid, Path: path})
	}
	tree, err := store.WriteTree(ctx, entries)
	require.NoError(t, err)
	sha, err := store.Commit(ctx, "warp:index\n\neg-graph: g\neg-kind: index\n", nil, tree)
	require.NoError(t, err)
	require.NoError(t, store.UpdateRef(ctx, types.IndexRef("g"), sha))

	_, err = NewReader(ctx, store, "g", ReaderOptions{Strict: true})
	require.Error(t, err)
	assert.Equal(t, errdefs.CodeCorrupt, errdefs.Code(err))
}

func TestReaderWithoutIndex(t *testing.T) {
	_, err := NewReader(context.Background(), object.NewMemStore(), "g", ReaderOptions{})
	assert.Equal(t, errdefs.CodeNotFound, errdefs.Code(err))
}

func TestBuildEmptyRef(t *testing.T) {
	_, err := Build(context.Background(), object.NewMemStore(), "g", types.WriterRef("g", "w"))
	assert.Equal(t, errdefs.CodeNotFound, errdefs.Code(err))
}
