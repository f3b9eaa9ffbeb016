package types

import (
	"encoding/json"
	"fmt"
)

// ValueKind tags a property value as inline or blob-externalized.
type ValueKind string

const (
	ValueInline ValueKind = "inline"
	ValueBlob   ValueKind = "blob"
)

// ValueRef is a property value: either an inline CBOR-representable value
// or a reference to a blob in the object store for large payloads.
type ValueRef struct {
	Kind   ValueKind
	Inline interface{}
	OID    string
}

// Inline wraps any CBOR-representable value.
func Inline(v interface{}) ValueRef {
	return ValueRef{Kind: ValueInline, Inline: v}
}

// Blob references an externalized value by object id.
func Blob(oid string) ValueRef {
	return ValueRef{Kind: ValueBlob, OID: oid}
}

// IsZero reports whether the ref carries no value at all.
func (v ValueRef) IsZero() bool {
	return v.Kind == ""
}

type valueWire struct {
	Kind  string      `cbor:"kind" json:"kind"`
	OID   string      `cbor:"oid,omitempty" json:"oid,omitempty"`
	Value interface{} `cbor:"value,omitempty" json:"value,omitempty"`
}

func (v ValueRef) wire() (*valueWire, error) {
	switch v.Kind {
	case ValueInline:
		return &valueWire{Kind: string(ValueInline), Value: v.Inline}, nil
	case ValueBlob:
		if v.OID == "" {
			return nil, fmt.Errorf("blob value ref without oid")
		}
		return &valueWire{Kind: string(ValueBlob), OID: v.OID}, nil
	default:
		return nil, fmt.Errorf("unknown value kind %q", v.Kind)
	}
}

func (v *ValueRef) fromWire(w *valueWire) error {
	switch ValueKind(w.Kind) {
	case ValueInline:
		*v = ValueRef{Kind: ValueInline, Inline: w.Value}
	case ValueBlob:
		if w.OID == "" {
			return fmt.Errorf("blob value ref without oid")
		}
		*v = ValueRef{Kind: ValueBlob, OID: w.OID}
	default:
		return fmt.Errorf("unknown value kind %q", w.Kind)
	}
	return nil
}

// MarshalCBOR implements cbor.Marshaler.
func (v ValueRef) MarshalCBOR() ([]byte, error) {
	w, err := v.wire()
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(w)
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (v *ValueRef) UnmarshalCBOR(data []byte) error {
	var w valueWire
	if err := decMode.Unmarshal(data, &w); err != nil {
		return err
	}
	return v.fromWire(&w)
}

// MarshalJSON implements json.Marshaler.
func (v ValueRef) MarshalJSON() ([]byte, error) {
	w, err := v.wire()
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *ValueRef) UnmarshalJSON(data []byte) error {
	var w valueWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	return v.fromWire(&w)
}
