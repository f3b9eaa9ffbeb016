package types

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/git-stunts/warp/pkg/crdt"
)

// Schema versions understood by this reader. Schema 2 carries node/edge
// add/remove and node property sets; schema 3 adds edge property sets.
const (
	SchemaORSet     = 2
	SchemaEdgeProps = 3
	MinSchema       = 2
	MaxSchema       = 3
)

// EdgeKey identifies a directed, labeled edge.
type EdgeKey struct {
	From  string `cbor:"from" json:"from"`
	To    string `cbor:"to" json:"to"`
	Label string `cbor:"label" json:"label"`
}

// Encode returns the canonical flat encoding used as OR-Set element and map
// key. NUL separators keep the lexicographic element order identical to
// ordering by (from, to, label).
func (k EdgeKey) Encode() string {
	return k.From + fieldSep + k.To + fieldSep + k.Label
}

// DecodeEdgeKey reverses Encode.
func DecodeEdgeKey(s string) (EdgeKey, error) {
	parts := strings.SplitN(s, fieldSep, 3)
	if len(parts) != 3 {
		return EdgeKey{}, fmt.Errorf("malformed edge key %q", s)
	}
	return EdgeKey{From: parts[0], To: parts[1], Label: parts[2]}, nil
}

func (k EdgeKey) String() string {
	return k.From + "-[" + k.Label + "]->" + k.To
}

const (
	// fieldSep separates packed identity fields. Entity ids must not
	// contain NUL; ids come from the same charset as names in practice.
	fieldSep = "\x00"
	// edgeTargetMark is the reserved leading byte that distinguishes a
	// packed edge target from a node id in the flat property map.
	edgeTargetMark = "\x01"
)

// PackNodeTarget returns the property-map target encoding of a node id.
func PackNodeTarget(nodeID string) string {
	return nodeID
}

// PackEdgeTarget returns the property-map target encoding of an edge.
func PackEdgeTarget(k EdgeKey) string {
	return edgeTargetMark + k.Encode()
}

// IsEdgeTarget reports whether a packed target names an edge.
func IsEdgeTarget(target string) bool {
	return strings.HasPrefix(target, edgeTargetMark)
}

// UnpackEdgeTarget decodes a packed edge target.
func UnpackEdgeTarget(target string) (EdgeKey, error) {
	if !IsEdgeTarget(target) {
		return EdgeKey{}, fmt.Errorf("not an edge target")
	}
	return DecodeEdgeKey(target[len(edgeTargetMark):])
}

// PropKey builds the flat property-map key for a packed target and a
// property name.
func PropKey(target, key string) string {
	return target + fieldSep + key
}

// SplitPropKey reverses PropKey.
func SplitPropKey(pk string) (target, key string, err error) {
	i := strings.LastIndex(pk, fieldSep)
	if i < 0 {
		return "", "", fmt.Errorf("malformed prop key")
	}
	return pk[:i], pk[i+1:], nil
}

var nameRE = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// ValidateName checks the shared charset and length rule for graph names and
// writer ids, rejecting forms that would alias ref path components.
func ValidateName(name string) error {
	if !nameRE.MatchString(name) {
		return fmt.Errorf("invalid name %q: must match [A-Za-z0-9_.-]{1,128}", name)
	}
	if name == "." || name == ".." {
		return fmt.Errorf("invalid name %q: reserved", name)
	}
	if strings.HasSuffix(name, ".lock") {
		return fmt.Errorf("invalid name %q: reserved suffix", name)
	}
	return nil
}

// Patch is an atomic batch of operations by a single writer, together with
// the causal context the writer had observed when it was produced. Patches
// are immutable once committed; their canonical CBOR bytes are
// content-addressed.
type Patch struct {
	Schema  int               `cbor:"schema" json:"schema"`
	Writer  string            `cbor:"writer" json:"writer"`
	Lamport uint64            `cbor:"lamport" json:"lamport"`
	Context map[string]uint64 `cbor:"context" json:"context"`
	Ops     []Op              `cbor:"ops" json:"ops"`
	Reads   []string          `cbor:"reads,omitempty" json:"reads,omitempty"`
	Writes  []string          `cbor:"writes,omitempty" json:"writes,omitempty"`
}

// ContextVector converts the wire context into a version vector.
func (p *Patch) ContextVector() crdt.VersionVector {
	vv := crdt.NewVersionVector()
	for w, seq := range p.Context {
		vv.Set(w, seq)
	}
	return vv
}

// Validate checks the structural rules that hold for every patch regardless
// of reader schema: name charset, positive lamport, schema range of the
// patch itself, and per-op shape.
func (p *Patch) Validate() error {
	if err := ValidateName(p.Writer); err != nil {
		return fmt.Errorf("patch writer: %w", err)
	}
	if p.Lamport == 0 {
		return fmt.Errorf("patch lamport must be > 0")
	}
	if p.Schema < MinSchema {
		return fmt.Errorf("patch schema %d below minimum %d", p.Schema, MinSchema)
	}
	if len(p.Ops) == 0 {
		return fmt.Errorf("patch has no operations")
	}
	for i := range p.Ops {
		if err := p.Ops[i].Validate(); err != nil {
			return fmt.Errorf("op %d: %w", i, err)
		}
		if SchemaForOp(p.Ops[i].Kind) > p.Schema {
			return fmt.Errorf("op %d: kind %s requires schema %d, patch declares %d",
				i, p.Ops[i].Kind, SchemaForOp(p.Ops[i].Kind), p.Schema)
		}
	}
	return nil
}

// MinimumSchema returns the lowest schema able to carry every op in the
// patch.
func (p *Patch) MinimumSchema() int {
	min := MinSchema
	for i := range p.Ops {
		if s := SchemaForOp(p.Ops[i].Kind); s > min {
			min = s
		}
	}
	return min
}
