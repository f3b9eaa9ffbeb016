package crdt

import (
	"fmt"
	"strings"
)

// EventID totally orders every operation ever applied to a graph. Lamport
// timestamps order causally-related events; the writer id, patch sha, and
// op index break the remaining ties deterministically. Two distinct ops can
// never share an EventID because their patch shas differ.
type EventID struct {
	Lamport  uint64
	Writer   string
	PatchSHA string
	OpIndex  int
}

// Compare returns -1, 0, or +1 for the lexicographic order over
// (lamport, writer, patchSha, opIndex).
func (e EventID) Compare(other EventID) int {
	switch {
	case e.Lamport < other.Lamport:
		return -1
	case e.Lamport > other.Lamport:
		return 1
	}
	if c := strings.Compare(e.Writer, other.Writer); c != 0 {
		return c
	}
	if c := strings.Compare(e.PatchSHA, other.PatchSHA); c != 0 {
		return c
	}
	switch {
	case e.OpIndex < other.OpIndex:
		return -1
	case e.OpIndex > other.OpIndex:
		return 1
	}
	return 0
}

// Less reports whether e orders strictly before other.
func (e EventID) Less(other EventID) bool {
	return e.Compare(other) < 0
}

// IsZero reports whether e is the zero EventID, which orders before every
// real event.
func (e EventID) IsZero() bool {
	return e.Lamport == 0 && e.Writer == "" && e.PatchSHA == "" && e.OpIndex == 0
}

// String renders the event id for logs and diagnostics.
func (e EventID) String() string {
	return fmt.Sprintf("%d/%s/%s/%d", e.Lamport, e.Writer, e.PatchSHA, e.OpIndex)
}
