package provenance

import (
	"fmt"
	"sort"

	"github.com/git-stunts/warp/pkg/types"
)

// Index maps entity ids to the set of patch shas that ever declared a read
// or write on them. It is populated incrementally from each patch's
// explicit provenance arrays and serialized alongside checkpoints so a
// restored replica keeps its slice-materialization ability.
type Index struct {
	m map[string]map[string]struct{}
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{m: make(map[string]map[string]struct{})}
}

// Add records that a patch touched an entity.
func (ix *Index) Add(entity, patchSHA string) {
	set, ok := ix.m[entity]
	if !ok {
		set = make(map[string]struct{})
		ix.m[entity] = set
	}
	set[patchSHA] = struct{}{}
}

// Observe records every entity the patch declares in its reads and writes.
func (ix *Index) Observe(p *types.Patch, patchSHA string) {
	for _, e := range p.Reads {
		ix.Add(e, patchSHA)
	}
	for _, e := range p.Writes {
		ix.Add(e, patchSHA)
	}
}

// PatchesFor returns the sorted shas of every patch that touched the
// entity.
func (ix *Index) PatchesFor(entity string) []string {
	set, ok := ix.m[entity]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for sha := range set {
		out = append(out, sha)
	}
	sort.Strings(out)
	return out
}

// Has reports whether any patch touched the entity.
func (ix *Index) Has(entity string) bool {
	return len(ix.m[entity]) > 0
}

// Size returns the number of indexed entities.
func (ix *Index) Size() int {
	return len(ix.m)
}

// Entities returns the indexed entity ids, sorted.
func (ix *Index) Entities() []string {
	out := make([]string, 0, len(ix.m))
	for e := range ix.m {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// Merge folds another index into this one.
func (ix *Index) Merge(other *Index) {
	for e, shas := range other.m {
		for sha := range shas {
			ix.Add(e, sha)
		}
	}
}

// Clone returns a deep copy.
func (ix *Index) Clone() *Index {
	out := NewIndex()
	out.Merge(ix)
	return out
}

// Serialize renders the index to canonical CBOR.
func (ix *Index) Serialize() ([]byte, error) {
	wire := make(map[string][]string, len(ix.m))
	for e := range ix.m {
		wire[e] = ix.PatchesFor(e)
	}
	data, err := types.EncMode().Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("serialize provenance: %w", err)
	}
	return data, nil
}

// Deserialize reverses Serialize.
func Deserialize(data []byte) (*Index, error) {
	var wire map[string][]string
	if err := types.DecMode().Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("deserialize provenance: %w", err)
	}
	ix := NewIndex()
	for e, shas := range wire {
		for _, sha := range shas {
			ix.Add(e, sha)
		}
	}
	return ix, nil
}
