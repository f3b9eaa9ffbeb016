package codec

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/git-stunts/warp/pkg/errdefs"
	"github.com/git-stunts/warp/pkg/types"
)

// Kind identifies the commit-message families the engine writes.
type Kind string

const (
	KindPatch      Kind = "patch"
	KindAudit      Kind = "audit"
	KindCheckpoint Kind = "checkpoint"
	KindIndex      Kind = "index"
)

// Trailer keys. The eg- prefix keeps them clear of standard git trailers.
const (
	trailerKind       = "eg-kind"
	trailerGraph      = "eg-graph"
	trailerWriter     = "eg-writer"
	trailerLamport    = "eg-lamport"
	trailerPatchOID   = "eg-patch-oid"
	trailerSchema     = "eg-schema"
	trailerDataCommit = "eg-data-commit"
	trailerOpsDigest  = "eg-ops-digest"
	trailerSeq        = "eg-seq"
)

var titles = map[Kind]string{
	KindPatch:      "warp:patch",
	KindAudit:      "warp:audit",
	KindCheckpoint: "warp:checkpoint",
	KindIndex:      "warp:index",
}

// Envelope is the decoded form of a warp commit message: a short title plus
// typed metadata trailers. Which fields are set depends on Kind.
type Envelope struct {
	Kind       Kind
	Graph      string
	Writer     string
	Lamport    uint64 // patch
	PatchOID   string // patch
	Schema     int    // patch, audit
	DataCommit string // audit
	OpsDigest  string // audit
	Seq        uint64 // checkpoint
}

func (e *Envelope) trailers() (map[string]string, error) {
	t := map[string]string{
		trailerKind:  string(e.Kind),
		trailerGraph: e.Graph,
	}
	switch e.Kind {
	case KindPatch:
		t[trailerWriter] = e.Writer
		t[trailerLamport] = strconv.FormatUint(e.Lamport, 10)
		t[trailerPatchOID] = e.PatchOID
		t[trailerSchema] = strconv.Itoa(e.Schema)
	case KindAudit:
		t[trailerWriter] = e.Writer
		t[trailerDataCommit] = e.DataCommit
		t[trailerOpsDigest] = e.OpsDigest
		t[trailerSchema] = strconv.Itoa(e.Schema)
	case KindCheckpoint:
		t[trailerSeq] = strconv.FormatUint(e.Seq, 10)
	case KindIndex:
	default:
		return nil, fmt.Errorf("unknown envelope kind %q", e.Kind)
	}
	return t, nil
}

// Format renders the commit message: title, blank line, trailers in
// canonical (alphabetical) order.
func (e *Envelope) Format() (string, error) {
	title, ok := titles[e.Kind]
	if !ok {
		return "", errdefs.Newf(errdefs.CodeValidation, "unknown envelope kind %q", e.Kind)
	}
	if err := types.ValidateName(e.Graph); err != nil {
		return "", errdefs.Wrap(err, errdefs.CodeValidation, "envelope graph")
	}
	t, err := e.trailers()
	if err != nil {
		return "", errdefs.Wrap(err, errdefs.CodeValidation, "envelope")
	}
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(t[k])
		b.WriteString("\n")
	}
	return b.String(), nil
}

// ParseEnvelope decodes a commit message. Decoding is strict: duplicate
// trailers and missing required trailers are rejected, unknown trailers are
// tolerated, and trailer order is not significant.
func ParseEnvelope(message string) (*Envelope, error) {
	lines := strings.Split(strings.TrimRight(message, "\n"), "\n")
	if len(lines) == 0 {
		return nil, errdefs.New(errdefs.CodeValidation, "empty commit message")
	}

	title := lines[0]
	var kindFromTitle Kind
	found := false
	for k, t := range titles {
		if t == title {
			kindFromTitle = k
			found = true
			break
		}
	}
	if !found {
		return nil, errdefs.Newf(errdefs.CodeValidation, "unrecognized commit title %q", title)
	}

	seen := make(map[string]string)
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		k, v, ok := strings.Cut(line, ": ")
		if !ok {
			return nil, errdefs.Newf(errdefs.CodeValidation, "malformed trailer line %q", line)
		}
		if _, dup := seen[k]; dup {
			return nil, errdefs.Newf(errdefs.CodeValidation, "duplicate trailer %q", k)
		}
		seen[k] = v
	}

	req := func(key string) (string, error) {
		v, ok := seen[key]
		if !ok || v == "" {
			return "", errdefs.Newf(errdefs.CodeValidation, "missing required trailer %q", key)
		}
		return v, nil
	}

	kindStr, err := req(trailerKind)
	if err != nil {
		return nil, err
	}
	if Kind(kindStr) != kindFromTitle {
		return nil, errdefs.Newf(errdefs.CodeValidation,
			"trailer kind %q does not match title %q", kindStr, title)
	}

	e := &Envelope{Kind: kindFromTitle}
	if e.Graph, err = req(trailerGraph); err != nil {
		return nil, err
	}
	if err := types.ValidateName(e.Graph); err != nil {
		return nil, errdefs.Wrap(err, errdefs.CodeValidation, "envelope graph")
	}

	parseSchema := func() error {
		s, err := req(trailerSchema)
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return errdefs.Newf(errdefs.CodeValidation, "invalid eg-schema %q", s)
		}
		if n > types.MaxSchema {
			return errdefs.Newf(errdefs.CodeSchemaUnsupported,
				"schema %d exceeds supported maximum %d", n, types.MaxSchema)
		}
		e.Schema = n
		return nil
	}

	switch e.Kind {
	case KindPatch:
		if e.Writer, err = req(trailerWriter); err != nil {
			return nil, err
		}
		if err := types.ValidateName(e.Writer); err != nil {
			return nil, errdefs.Wrap(err, errdefs.CodeValidation, "envelope writer")
		}
		lam, err := req(trailerLamport)
		if err != nil {
			return nil, err
		}
		if e.Lamport, err = strconv.ParseUint(lam, 10, 64); err != nil || e.Lamport == 0 {
			return nil, errdefs.Newf(errdefs.CodeValidation, "invalid eg-lamport %q", lam)
		}
		if e.PatchOID, err = req(trailerPatchOID); err != nil {
			return nil, err
		}
		if err := parseSchema(); err != nil {
			return nil, err
		}
	case KindAudit:
		if e.Writer, err = req(trailerWriter); err != nil {
			return nil, err
		}
		if e.DataCommit, err = req(trailerDataCommit); err != nil {
			return nil, err
		}
		if e.OpsDigest, err = req(trailerOpsDigest); err != nil {
			return nil, err
		}
		if err := parseSchema(); err != nil {
			return nil, err
		}
	case KindCheckpoint:
		s, err := req(trailerSeq)
		if err != nil {
			return nil, err
		}
		if e.Seq, err = strconv.ParseUint(s, 10, 64); err != nil {
			return nil, errdefs.Newf(errdefs.CodeValidation, "invalid eg-seq %q", s)
		}
	case KindIndex:
	}

	return e, nil
}

// KindOf peeks at a commit message and returns its kind without full
// validation. Returns "" for non-warp commits.
func KindOf(message string) Kind {
	title, _, _ := strings.Cut(message, "\n")
	for k, t := range titles {
		if t == title {
			return k
		}
	}
	return ""
}
