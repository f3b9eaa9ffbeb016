package types

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/git-stunts/warp/pkg/crdt"
)

// OpKind tags the operation variants. The strings are part of the on-disk
// serialization and must never change.
type OpKind string

const (
	OpNodeAdd     OpKind = "node-add"
	OpNodeRemove  OpKind = "node-remove"
	OpEdgeAdd     OpKind = "edge-add"
	OpEdgeRemove  OpKind = "edge-remove"
	OpPropSet     OpKind = "prop-set"
	OpEdgePropSet OpKind = "edge-prop-set"
)

// SchemaForOp returns the minimum patch schema that may carry the op kind.
func SchemaForOp(kind OpKind) int {
	if kind == OpEdgePropSet {
		return SchemaEdgeProps
	}
	return SchemaORSet
}

// Op is one graph operation inside a patch. Which fields are meaningful
// depends on Kind:
//
//	node-add:      Node, Dot
//	node-remove:   Observed
//	edge-add:      Edge, Dot
//	edge-remove:   Observed
//	prop-set:      Target (packed node or edge), Key, Value
//	edge-prop-set: same wire shape as prop-set with an edge target
type Op struct {
	Kind     OpKind
	Node     string
	Edge     EdgeKey
	Dot      crdt.Dot
	Observed []crdt.Dot
	Target   string
	Key      string
	Value    ValueRef
}

// NewNodeAdd creates a node-add op carrying a fresh dot.
func NewNodeAdd(nodeID string, dot crdt.Dot) Op {
	return Op{Kind: OpNodeAdd, Node: nodeID, Dot: dot}
}

// NewNodeRemove creates a node-remove op tombstoning the observed dots.
func NewNodeRemove(observed []crdt.Dot) Op {
	return Op{Kind: OpNodeRemove, Observed: observed}
}

// NewEdgeAdd creates an edge-add op carrying a fresh dot.
func NewEdgeAdd(edge EdgeKey, dot crdt.Dot) Op {
	return Op{Kind: OpEdgeAdd, Edge: edge, Dot: dot}
}

// NewEdgeRemove creates an edge-remove op tombstoning the observed dots.
func NewEdgeRemove(observed []crdt.Dot) Op {
	return Op{Kind: OpEdgeRemove, Observed: observed}
}

// NewPropSet creates a property write on a node.
func NewPropSet(nodeID, key string, value ValueRef) Op {
	return Op{Kind: OpPropSet, Target: PackNodeTarget(nodeID), Key: key, Value: value}
}

// NewEdgePropSet creates a property write on an edge (schema 3).
func NewEdgePropSet(edge EdgeKey, key string, value ValueRef) Op {
	return Op{Kind: OpEdgePropSet, Target: PackEdgeTarget(edge), Key: key, Value: value}
}

// Validate checks the per-kind field shape.
func (o *Op) Validate() error {
	switch o.Kind {
	case OpNodeAdd:
		if o.Node == "" {
			return fmt.Errorf("node-add requires a node id")
		}
		if o.Dot.Writer == "" || o.Dot.Seq == 0 {
			return fmt.Errorf("node-add requires a dot")
		}
	case OpEdgeAdd:
		if o.Edge.From == "" || o.Edge.To == "" || o.Edge.Label == "" {
			return fmt.Errorf("edge-add requires from, to, and label")
		}
		if o.Dot.Writer == "" || o.Dot.Seq == 0 {
			return fmt.Errorf("edge-add requires a dot")
		}
	case OpNodeRemove, OpEdgeRemove:
		// an empty observed set is legal: removing an unseen entity is a no-op
	case OpPropSet, OpEdgePropSet:
		if o.Target == "" || o.Key == "" {
			return fmt.Errorf("%s requires target and key", o.Kind)
		}
		if o.Kind == OpEdgePropSet && !IsEdgeTarget(o.Target) {
			return fmt.Errorf("edge-prop-set requires an edge target")
		}
	default:
		return fmt.Errorf("unknown op kind %q", o.Kind)
	}
	return nil
}

// opWire is the stable serialized form shared by the CBOR codec and the
// JSON sync wire format. Field order is alphabetical by key.
type opWire struct {
	Dot      string    `cbor:"dot,omitempty" json:"dot,omitempty"`
	From     string    `cbor:"from,omitempty" json:"from,omitempty"`
	Key      string    `cbor:"key,omitempty" json:"key,omitempty"`
	Label    string    `cbor:"label,omitempty" json:"label,omitempty"`
	Node     string    `cbor:"node,omitempty" json:"node,omitempty"`
	Observed []string  `cbor:"observed,omitempty" json:"observed,omitempty"`
	Target   string    `cbor:"target,omitempty" json:"target,omitempty"`
	To       string    `cbor:"to,omitempty" json:"to,omitempty"`
	Type     string    `cbor:"type" json:"type"`
	Value    *ValueRef `cbor:"value,omitempty" json:"value,omitempty"`
}

func (o Op) wire() (*opWire, error) {
	w := &opWire{Type: string(o.Kind)}
	switch o.Kind {
	case OpNodeAdd:
		w.Node = o.Node
		w.Dot = o.Dot.String()
	case OpEdgeAdd:
		w.From = o.Edge.From
		w.To = o.Edge.To
		w.Label = o.Edge.Label
		w.Dot = o.Dot.String()
	case OpNodeRemove, OpEdgeRemove:
		w.Observed = make([]string, len(o.Observed))
		for i, d := range o.Observed {
			w.Observed[i] = d.String()
		}
	case OpPropSet, OpEdgePropSet:
		w.Target = o.Target
		w.Key = o.Key
		v := o.Value
		w.Value = &v
	default:
		return nil, fmt.Errorf("unknown op kind %q", o.Kind)
	}
	return w, nil
}

func (o *Op) fromWire(w *opWire) error {
	o.Kind = OpKind(w.Type)
	switch o.Kind {
	case OpNodeAdd:
		o.Node = w.Node
		d, err := crdt.ParseDot(w.Dot)
		if err != nil {
			return err
		}
		o.Dot = d
	case OpEdgeAdd:
		o.Edge = EdgeKey{From: w.From, To: w.To, Label: w.Label}
		d, err := crdt.ParseDot(w.Dot)
		if err != nil {
			return err
		}
		o.Dot = d
	case OpNodeRemove, OpEdgeRemove:
		o.Observed = make([]crdt.Dot, len(w.Observed))
		for i, s := range w.Observed {
			d, err := crdt.ParseDot(s)
			if err != nil {
				return err
			}
			o.Observed[i] = d
		}
	case OpPropSet, OpEdgePropSet:
		o.Target = w.Target
		o.Key = w.Key
		if w.Value != nil {
			o.Value = *w.Value
		}
	default:
		return fmt.Errorf("unknown op kind %q", w.Type)
	}
	return nil
}

// MarshalCBOR implements cbor.Marshaler using the canonical wire form.
func (o Op) MarshalCBOR() ([]byte, error) {
	w, err := o.wire()
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(w)
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (o *Op) UnmarshalCBOR(data []byte) error {
	var w opWire
	if err := decMode.Unmarshal(data, &w); err != nil {
		return err
	}
	return o.fromWire(&w)
}

// MarshalJSON implements json.Marshaler for the sync wire format.
func (o Op) MarshalJSON() ([]byte, error) {
	w, err := o.wire()
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Op) UnmarshalJSON(data []byte) error {
	var w opWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	return o.fromWire(&w)
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	dec := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
		// string-keyed maps so inline values survive a JSON re-encode on
		// the sync wire; signed ints so round-trips are type-stable
		DefaultMapType: reflect.TypeOf(map[string]interface{}(nil)),
		IntDec:         cbor.IntDecConvertSignedOrFail,
	}
	decMode, err = dec.DecMode()
	if err != nil {
		panic(err)
	}
}

// EncMode exposes the canonical CBOR encoder shared by every serialized
// artifact (patches, state snapshots, provenance, wormhole payloads).
func EncMode() cbor.EncMode { return encMode }

// DecMode exposes the strict CBOR decoder paired with EncMode.
func DecMode() cbor.DecMode { return decMode }
