/*
Package bitmap maintains a sharded roaring-bitmap index over the commit
DAG, giving O(1) parent/child navigation independent of the graph-data
layer.

# Layout

The index is a tree of JSON files committed under refs/warp/<g>/index:

	manifest.json        version, commit count, per-file content hashes
	ids.json             dense id → sha (topological, parents first)
	meta_XX.json         sha → dense id, sharded by the sha's first 2 hex chars
	shards_fwd_XX.json   sha → base64 roaring bitmap of child ids
	shards_rev_XX.json   sha → base64 roaring bitmap of parent ids

A rebuild writes a fresh tree and swings the ref, so readers on the old
index keep a consistent view.

# Reading

Reader loads the manifest and id table eagerly; shards load on first touch
and live in an LRU cache. Strict mode re-hashes every file against the
manifest and fails closed on mismatch.
*/
package bitmap
