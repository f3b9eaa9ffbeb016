package reducer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/git-stunts/warp/pkg/crdt"
	"github.com/git-stunts/warp/pkg/types"
)

// Wire structs for the canonical state snapshot. Map keys are sorted by the
// canonical CBOR encoder; dot lists are pre-sorted; so two materializations
// of the same patch set serialize to identical bytes.

type orsetWire struct {
	Entries    map[string][]string `cbor:"entries"`
	Tombstones []string            `cbor:"tombstones"`
}

type eventWire struct {
	Lamport uint64 `cbor:"lamport"`
	Op      int    `cbor:"op"`
	SHA     string `cbor:"sha"`
	Writer  string `cbor:"writer"`
}

type propWire struct {
	Event eventWire      `cbor:"event"`
	Value types.ValueRef `cbor:"value"`
}

type stateWire struct {
	EdgeBirth map[string]eventWire `cbor:"edgeBirth"`
	Edges     orsetWire            `cbor:"edges"`
	Frontier  map[string]uint64    `cbor:"frontier"`
	Nodes     orsetWire            `cbor:"nodes"`
	Props     map[string]propWire  `cbor:"props"`
}

func eventToWire(e crdt.EventID) eventWire {
	return eventWire{Lamport: e.Lamport, Op: e.OpIndex, SHA: e.PatchSHA, Writer: e.Writer}
}

func eventFromWire(w eventWire) crdt.EventID {
	return crdt.EventID{Lamport: w.Lamport, OpIndex: w.Op, PatchSHA: w.SHA, Writer: w.Writer}
}

func orsetToWire(s *crdt.ORSet) orsetWire {
	w := orsetWire{
		Entries:    make(map[string][]string, len(s.Entries)),
		Tombstones: make([]string, 0, len(s.Tombstones)),
	}
	for e, dots := range s.Entries {
		sorted := dots.Sorted()
		enc := make([]string, len(sorted))
		for i, d := range sorted {
			enc[i] = d.String()
		}
		w.Entries[e] = enc
	}
	for _, d := range s.Tombstones.Sorted() {
		w.Tombstones = append(w.Tombstones, d.String())
	}
	return w
}

func orsetFromWire(w orsetWire) (*crdt.ORSet, error) {
	s := crdt.NewORSet()
	for e, dots := range w.Entries {
		for _, enc := range dots {
			d, err := crdt.ParseDot(enc)
			if err != nil {
				return nil, err
			}
			s.Add(e, d)
		}
	}
	for _, enc := range w.Tombstones {
		d, err := crdt.ParseDot(enc)
		if err != nil {
			return nil, err
		}
		s.Tombstones[d] = struct{}{}
	}
	return s, nil
}

// Serialize renders the state to canonical CBOR bytes.
func Serialize(s *State) ([]byte, error) {
	w := stateWire{
		EdgeBirth: make(map[string]eventWire, len(s.EdgeBirth)),
		Edges:     orsetToWire(s.Edges),
		Frontier:  map[string]uint64(s.Frontier),
		Nodes:     orsetToWire(s.Nodes),
		Props:     make(map[string]propWire, len(s.Props)),
	}
	for enc, ev := range s.EdgeBirth {
		w.EdgeBirth[enc] = eventToWire(ev)
	}
	for pk, r := range s.Props {
		v, ok := r.Value.(types.ValueRef)
		if !ok {
			return nil, fmt.Errorf("prop %q holds a non-ValueRef register", pk)
		}
		w.Props[pk] = propWire{Event: eventToWire(r.Event), Value: v}
	}
	data, err := types.EncMode().Marshal(&w)
	if err != nil {
		return nil, fmt.Errorf("serialize state: %w", err)
	}
	return data, nil
}

// Deserialize reverses Serialize.
func Deserialize(data []byte) (*State, error) {
	var w stateWire
	if err := types.DecMode().Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("deserialize state: %w", err)
	}
	s := NewState()
	var err error
	if s.Nodes, err = orsetFromWire(w.Nodes); err != nil {
		return nil, err
	}
	if s.Edges, err = orsetFromWire(w.Edges); err != nil {
		return nil, err
	}
	for writer, seq := range w.Frontier {
		s.Frontier.Set(writer, seq)
	}
	for enc, ev := range w.EdgeBirth {
		s.EdgeBirth[enc] = eventFromWire(ev)
	}
	for pk, pw := range w.Props {
		s.Props[pk] = crdt.Register{Value: pw.Value, Event: eventFromWire(pw.Event)}
	}
	return s, nil
}

// Hash returns the SHA-256 of the canonical serialization. Equal hashes
// mean identical observable state; the determinism invariant says any
// permutation of the same patch set produces the same hash.
func Hash(s *State) (string, error) {
	data, err := Serialize(s)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
