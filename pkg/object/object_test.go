package object

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// both implementations must satisfy the same contract
func stores(t *testing.T) map[string]Store {
	t.Helper()
	bs, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { bs.Close() })
	return map[string]Store{
		"bolt": bs,
		"mem":  NewMemStore(),
	}
}

func TestBlobRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			oid, err := s.WriteBlob(ctx, []byte("payload"))
			require.NoError(t, err)
			require.NoError(t, ValidateOID(oid))

			// content-addressed: same bytes, same oid
			oid2, err := s.WriteBlob(ctx, []byte("payload"))
			require.NoError(t, err)
			assert.Equal(t, oid, oid2)

			data, err := s.ReadBlob(ctx, oid)
			require.NoError(t, err)
			assert.Equal(t, []byte("payload"), data)

			_, err = s.ReadBlob(ctx, BlobOID([]byte("missing")))
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestTreeRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			blob, err := s.WriteBlob(ctx, []byte("x"))
			require.NoError(t, err)

			oid, err := s.WriteTree(ctx, []TreeEntry{
				{Mode: "100644", OID: blob, Path: "state.cbor"},
				{Mode: "100644", OID: blob, Path: "manifest.json"},
			})
			require.NoError(t, err)

			paths, err := s.ReadTree(ctx, oid)
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"state.cbor": blob, "manifest.json": blob}, paths)
		})
	}
}

func TestCommitDeterminism(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			a, err := s.Commit(ctx, "warp:patch\n\neg-kind: patch\n", nil, "")
			require.NoError(t, err)
			b, err := s.Commit(ctx, "warp:patch\n\neg-kind: patch\n", nil, "")
			require.NoError(t, err)
			// identical content, identical sha — replicas agree
			assert.Equal(t, a, b)

			c, err := s.Commit(ctx, "warp:patch\n\neg-kind: patch\n", []string{a}, "")
			require.NoError(t, err)
			assert.NotEqual(t, a, c)

			info, err := s.GetNodeInfo(ctx, c)
			require.NoError(t, err)
			assert.Equal(t, []string{a}, info.Parents)
			assert.Equal(t, a, info.FirstParent())

			msg, err := s.ShowCommit(ctx, a)
			require.NoError(t, err)
			assert.Equal(t, "warp:patch\n\neg-kind: patch\n", msg)
		})
	}
}

func TestRefCAS(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ref := "refs/warp/g/writers/a"

			// create from empty
			require.NoError(t, s.CompareAndSwapRef(ctx, ref, "", "aaa"))

			// stale expected fails
			err := s.CompareAndSwapRef(ctx, ref, "", "bbb")
			assert.ErrorIs(t, err, ErrRefCASMismatch)

			// correct expected succeeds
			require.NoError(t, s.CompareAndSwapRef(ctx, ref, "aaa", "bbb"))

			oid, err := s.ReadRef(ctx, ref)
			require.NoError(t, err)
			assert.Equal(t, "bbb", oid)

			// missing ref reads as ""
			oid, err = s.ReadRef(ctx, "refs/warp/g/writers/none")
			require.NoError(t, err)
			assert.Equal(t, "", oid)
		})
	}
}

func TestListRefs(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.UpdateRef(ctx, "refs/warp/g/writers/a", "1"))
			require.NoError(t, s.UpdateRef(ctx, "refs/warp/g/writers/b", "2"))
			require.NoError(t, s.UpdateRef(ctx, "refs/warp/g/checkpoints/head", "3"))

			got, err := s.ListRefs(ctx, "refs/warp/g/writers/")
			require.NoError(t, err)
			assert.Equal(t, map[string]string{
				"refs/warp/g/writers/a": "1",
				"refs/warp/g/writers/b": "2",
			}, got)

			require.NoError(t, s.DeleteRef(ctx, "refs/warp/g/writers/a"))
			got, err = s.ListRefs(ctx, "refs/warp/g/writers/")
			require.NoError(t, err)
			assert.Len(t, got, 1)
		})
	}
}

func TestConfig(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			v, err := s.ConfigGet(ctx, "warp.writer-id")
			require.NoError(t, err)
			assert.Equal(t, "", v)

			require.NoError(t, s.ConfigSet(ctx, "warp.writer-id", "alice"))
			v, err = s.ConfigGet(ctx, "warp.writer-id")
			require.NoError(t, err)
			assert.Equal(t, "alice", v)
		})
	}
}

func TestLogStreamAndCount(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			// build a 5-commit chain
			parent := ""
			var shas []string
			for i := 0; i < 5; i++ {
				var parents []string
				if parent != "" {
					parents = []string{parent}
				}
				sha, err := s.Commit(ctx, "warp:index\n\neg-graph: g\neg-kind: index\n", parents, BlobOID([]byte{byte(i)}))
				require.NoError(t, err)
				shas = append(shas, sha)
				parent = sha
			}
			require.NoError(t, s.UpdateRef(ctx, "refs/warp/g/writers/a", parent))

			out, errs := s.LogStream(ctx, "refs/warp/g/writers/a", 0)
			var walked []string
			for ci := range out {
				walked = append(walked, ci.SHA)
			}
			require.NoError(t, <-errs)

			// newest first
			require.Len(t, walked, 5)
			assert.Equal(t, shas[4], walked[0])
			assert.Equal(t, shas[0], walked[4])

			// limited stream
			out, errs = s.LogStream(ctx, "refs/warp/g/writers/a", 2)
			n := 0
			for range out {
				n++
			}
			require.NoError(t, <-errs)
			assert.Equal(t, 2, n)

			count, err := s.CountNodes(ctx, "refs/warp/g/writers/a")
			require.NoError(t, err)
			assert.Equal(t, 5, count)

			require.NoError(t, s.Ping(ctx))
		})
	}
}

func TestValidateOID(t *testing.T) {
	assert.NoError(t, ValidateOID(BlobOID([]byte("x"))))
	assert.Error(t, ValidateOID("short"))
	assert.Error(t, ValidateOID("ZZ12aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
}
