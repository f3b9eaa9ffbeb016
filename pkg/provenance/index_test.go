package provenance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/git-stunts/warp/pkg/types"
)

func TestObserveAndLookup(t *testing.T) {
	ix := NewIndex()
	ix.Observe(&types.Patch{Reads: []string{"x"}, Writes: []string{"y"}}, "sha-b")
	ix.Observe(&types.Patch{Writes: []string{"x"}}, "sha-a")
	ix.Observe(&types.Patch{Writes: []string{"x"}}, "sha-a") // duplicate

	assert.Equal(t, []string{"sha-a", "sha-b"}, ix.PatchesFor("x"))
	assert.Equal(t, []string{"sha-b"}, ix.PatchesFor("y"))
	assert.Nil(t, ix.PatchesFor("z"))

	assert.True(t, ix.Has("x"))
	assert.False(t, ix.Has("z"))
	assert.Equal(t, 2, ix.Size())
	assert.Equal(t, []string{"x", "y"}, ix.Entities())
}

func TestMergeAndClone(t *testing.T) {
	a := NewIndex()
	a.Add("x", "s1")
	b := NewIndex()
	b.Add("x", "s2")
	b.Add("y", "s3")

	c := a.Clone()
	c.Merge(b)

	assert.Equal(t, []string{"s1", "s2"}, c.PatchesFor("x"))
	assert.Equal(t, []string{"s3"}, c.PatchesFor("y"))
	// the clone is independent
	assert.Equal(t, []string{"s1"}, a.PatchesFor("x"))
}

func TestSerializeRoundTrip(t *testing.T) {
	ix := NewIndex()
	ix.Add("x", "s1")
	ix.Add("x", "s2")
	ix.Add("y", "s3")

	data, err := ix.Serialize()
	require.NoError(t, err)

	got, err := Deserialize(data)
	require.NoError(t, err)
	assert.Equal(t, ix.Entities(), got.Entities())
	assert.Equal(t, ix.PatchesFor("x"), got.PatchesFor("x"))

	// canonical bytes are stable
	again, err := got.Serialize()
	require.NoError(t, err)
	assert.Equal(t, data, again)

	_, err = Deserialize([]byte("junk"))
	assert.Error(t, err)
}
