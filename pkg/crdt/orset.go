package crdt

import "sort"

// DotSet is a set of dots.
type DotSet map[Dot]struct{}

// NewDotSet builds a set from the given dots.
func NewDotSet(dots ...Dot) DotSet {
	s := make(DotSet, len(dots))
	for _, d := range dots {
		s[d] = struct{}{}
	}
	return s
}

// Sorted returns the dots in (writer, seq) order.
func (s DotSet) Sorted() []Dot {
	out := make([]Dot, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// ORSet is an observed-remove set. Every add is tagged with a fresh dot;
// removes tombstone only the dots the remover has observed, so a concurrent
// add (carrying an unobserved dot) survives the remove.
//
// Tombstoned dots stay in Entries until Compact proves no concurrent add can
// still reference them.
type ORSet struct {
	Entries    map[string]DotSet
	Tombstones DotSet
}

// NewORSet returns an empty OR-Set.
func NewORSet() *ORSet {
	return &ORSet{
		Entries:    make(map[string]DotSet),
		Tombstones: make(DotSet),
	}
}

// Add records a new write event for element e.
func (s *ORSet) Add(e string, d Dot) {
	set, ok := s.Entries[e]
	if !ok {
		set = make(DotSet)
		s.Entries[e] = set
	}
	set[d] = struct{}{}
}

// Remove tombstones the given observed dots. The dots remain in Entries so
// later joins can compare them against concurrent adds.
func (s *ORSet) Remove(observed []Dot) {
	for _, d := range observed {
		s.Tombstones[d] = struct{}{}
	}
}

// Contains reports whether e has at least one live (non-tombstoned) dot.
func (s *ORSet) Contains(e string) bool {
	for d := range s.Entries[e] {
		if _, dead := s.Tombstones[d]; !dead {
			return true
		}
	}
	return false
}

// ObservedDots returns every dot currently recorded for e, tombstoned or
// not. This is the snapshot a remove operation carries.
func (s *ORSet) ObservedDots(e string) []Dot {
	return s.Entries[e].Sorted()
}

// Elements returns the alive elements in lexicographic order.
func (s *ORSet) Elements() []string {
	out := make([]string, 0, len(s.Entries))
	for e := range s.Entries {
		if s.Contains(e) {
			out = append(out, e)
		}
	}
	sort.Strings(out)
	return out
}

// Union merges other into s: elementwise union of entries, union of
// tombstones. Join semantics — commutative, associative, idempotent.
func (s *ORSet) Union(other *ORSet) {
	for e, dots := range other.Entries {
		set, ok := s.Entries[e]
		if !ok {
			set = make(DotSet, len(dots))
			s.Entries[e] = set
		}
		for d := range dots {
			set[d] = struct{}{}
		}
	}
	for d := range other.Tombstones {
		s.Tombstones[d] = struct{}{}
	}
}

// Compact drops every tombstoned dot whose seq is covered by vv. Such a dot
// cannot be referenced by a yet-unseen concurrent add: all future patches
// from its writer carry higher sequence numbers. Visibility of every element
// is unchanged.
func (s *ORSet) Compact(vv VersionVector) int {
	victims := make(DotSet)
	for d := range s.Tombstones {
		if vv.Contains(d) {
			victims[d] = struct{}{}
		}
	}
	if len(victims) == 0 {
		return 0
	}
	for e, dots := range s.Entries {
		for d := range dots {
			if _, hit := victims[d]; hit {
				delete(dots, d)
			}
		}
		if len(dots) == 0 {
			delete(s.Entries, e)
		}
	}
	for d := range victims {
		delete(s.Tombstones, d)
	}
	return len(victims)
}

// TombstoneCount returns the number of tombstoned dots.
func (s *ORSet) TombstoneCount() int {
	return len(s.Tombstones)
}

// DotCount returns the total number of dots across all entries.
func (s *ORSet) DotCount() int {
	n := 0
	for _, dots := range s.Entries {
		n += len(dots)
	}
	return n
}

// Clone returns a deep copy.
func (s *ORSet) Clone() *ORSet {
	out := &ORSet{
		Entries:    make(map[string]DotSet, len(s.Entries)),
		Tombstones: make(DotSet, len(s.Tombstones)),
	}
	for e, dots := range s.Entries {
		set := make(DotSet, len(dots))
		for d := range dots {
			set[d] = struct{}{}
		}
		out.Entries[e] = set
	}
	for d := range s.Tombstones {
		out.Tombstones[d] = struct{}{}
	}
	return out
}
