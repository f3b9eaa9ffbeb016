package wormhole

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/git-stunts/warp/pkg/errdefs"
	"github.com/git-stunts/warp/pkg/graph"
	"github.com/git-stunts/warp/pkg/object"
	"github.com/git-stunts/warp/pkg/reducer"
	"github.com/git-stunts/warp/pkg/writer"
)

// chain commits n single-node patches by one writer and returns the shas
// oldest first, along with the store.
func chain(t *testing.T, writerID string, names []string) (object.Store, []string) {
	t.Helper()
	ctx := context.Background()
	store := object.NewMemStore()
	g, err := graph.Open(ctx, store, graph.Options{Graph: "g", WriterID: writerID})
	require.NoError(t, err)

	var shas []string
	for _, n := range names {
		sess, err := g.NewSession(ctx)
		require.NoError(t, err)
		res, err := sess.AddNode(n).Commit(ctx)
		require.NoError(t, err)
		shas = append(shas, res.SHA)
	}
	return store, shas
}

func TestNewLoadsRange(t *testing.T) {
	ctx := context.Background()
	store, shas := chain(t, "alice", []string{"a", "b", "c", "d"})

	w, err := New(ctx, store, shas[1], shas[3])
	require.NoError(t, err)
	assert.Equal(t, "alice", w.WriterID)
	assert.Equal(t, 3, w.PatchCount)
	assert.Equal(t, shas[1], w.Payload[0].SHA)
	assert.Equal(t, shas[3], w.Payload[2].SHA)
	assert.Equal(t, shas[0], w.Payload[0].Parent)
}

func TestNewRejectsMissingSHA(t *testing.T) {
	ctx := context.Background()
	store, shas := chain(t, "alice", []string{"a"})

	_, err := New(ctx, store, object.BlobOID([]byte("ghost")), shas[0])
	assert.Equal(t, errdefs.CodeWormholeSHANotFound, errdefs.Code(err))
}

func TestNewRejectsNonAncestor(t *testing.T) {
	ctx := context.Background()
	store, shas := chain(t, "alice", []string{"a", "b"})

	// to precedes from: from is not an ancestor of to
	_, err := New(ctx, store, shas[1], shas[0])
	assert.Equal(t, errdefs.CodeWormholeInvalidRange, errdefs.Code(err))
}

func TestNewRejectsNonPatchCommit(t *testing.T) {
	ctx := context.Background()
	store, shas := chain(t, "alice", []string{"a"})

	plain, err := store.Commit(ctx, "not a warp commit", []string{shas[0]}, "")
	require.NoError(t, err)

	_, err = New(ctx, store, shas[0], plain)
	assert.Equal(t, errdefs.CodeWormholeNotPatch, errdefs.Code(err))
}

func TestReplayMatchesReduce(t *testing.T) {
	ctx := context.Background()
	store, shas := chain(t, "alice", []string{"a", "b", "c"})

	w, err := New(ctx, store, shas[0], shas[2])
	require.NoError(t, err)

	st, err := w.Replay(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, st.VisibleNodes())
}

func TestComposeReplaysWholeRange(t *testing.T) {
	ctx := context.Background()
	store, shas := chain(t, "W", []string{"p1", "p2", "p3", "p4", "p5", "p6"})

	w1, err := New(ctx, store, shas[0], shas[2])
	require.NoError(t, err)
	w2, err := New(ctx, store, shas[3], shas[5])
	require.NoError(t, err)

	combined, err := Compose(w1, w2)
	require.NoError(t, err)
	assert.Equal(t, shas[0], combined.FromSHA)
	assert.Equal(t, shas[5], combined.ToSHA)
	assert.Equal(t, 6, combined.PatchCount)

	whole, err := New(ctx, store, shas[0], shas[5])
	require.NoError(t, err)

	composed, err := combined.Replay(nil)
	require.NoError(t, err)
	direct, err := whole.Replay(nil)
	require.NoError(t, err)

	h1, err := reducer.Hash(composed)
	require.NoError(t, err)
	h2, err := reducer.Hash(direct)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestComposeRejectsGaps(t *testing.T) {
	ctx := context.Background()
	store, shas := chain(t, "W", []string{"p1", "p2", "p3", "p4"})

	w1, err := New(ctx, store, shas[0], shas[0])
	require.NoError(t, err)
	// skips shas[1]
	w2, err := New(ctx, store, shas[2], shas[3])
	require.NoError(t, err)

	_, err = Compose(w1, w2)
	assert.Equal(t, errdefs.CodeWormholeInvalidRange, errdefs.Code(err))
}

func TestComposeRejectsDifferentWriters(t *testing.T) {
	ctx := context.Background()
	storeA, shasA := chain(t, "A", []string{"x"})
	storeB, shasB := chain(t, "B", []string{"y"})

	wA, err := New(ctx, storeA, shasA[0], shasA[0])
	require.NoError(t, err)
	wB, err := New(ctx, storeB, shasB[0], shasB[0])
	require.NoError(t, err)

	_, err = Compose(wA, wB)
	assert.Equal(t, errdefs.CodeWormholeMultiWriter, errdefs.Code(err))
}

func TestMultiWriterRangeRejected(t *testing.T) {
	ctx := context.Background()
	store := object.NewMemStore()

	// hand-build a chain whose second patch claims another writer
	s1, err := writer.NewSession(writer.Options{Store: store, Graph: "g", WriterID: "A"})
	require.NoError(t, err)
	res1, err := s1.AddNode("x").Commit(ctx)
	require.NoError(t, err)

	s2, err := writer.NewSession(writer.Options{Store: store, Graph: "g", WriterID: "B", Parent: ""})
	require.NoError(t, err)
	res2, err := s2.AddNode("y").Commit(ctx)
	require.NoError(t, err)
	// graft B's commit onto A's chain manually
	msg, err := store.ShowCommit(ctx, res2.SHA)
	require.NoError(t, err)
	grafted, err := store.Commit(ctx, msg, []string{res1.SHA}, "")
	require.NoError(t, err)

	_, err = New(ctx, store, res1.SHA, grafted)
	assert.Equal(t, errdefs.CodeWormholeMultiWriter, errdefs.Code(err))
}

func TestBTRSealAndVerify(t *testing.T) {
	ctx := context.Background()
	store, shas := chain(t, "alice", []string{"a", "b"})
	w, err := New(ctx, store, shas[0], shas[1])
	require.NoError(t, err)

	key := []byte("shared-secret")
	btr, err := Seal(key, w, nil, time.Unix(1_700_000_000, 0))
	require.NoError(t, err)

	require.NoError(t, btr.Verify(key, false))
	require.NoError(t, btr.Verify(key, true))

	// wrong key
	assert.Error(t, btr.Verify([]byte("other"), false))
}

func TestBTRTamperDetection(t *testing.T) {
	ctx := context.Background()
	store, shas := chain(t, "alice", []string{"a", "b"})
	w, err := New(ctx, store, shas[0], shas[1])
	require.NoError(t, err)

	key := []byte("shared-secret")

	flip := func(s string) string {
		if s[0] == '0' {
			return "1" + s[1:]
		}
		return "0" + s[1:]
	}
	mutations := map[string]func(*BTR){
		"hIn":       func(b *BTR) { b.HIn = flip(b.HIn) },
		"hOut":      func(b *BTR) { b.HOut = flip(b.HOut) },
		"state":     func(b *BTR) { b.State[0] ^= 0xff },
		"payload":   func(b *BTR) { b.Payload[0] ^= 0xff },
		"timestamp": func(b *BTR) { b.Timestamp++ },
		"tag":       func(b *BTR) { b.Tag[0] ^= 0x01 },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			btr, err := Seal(key, w, nil, time.Unix(1_700_000_000, 0))
			require.NoError(t, err)
			mutate(btr)
			assert.Error(t, btr.Verify(key, true), "tampered %s must fail verification", name)
		})
	}
}
