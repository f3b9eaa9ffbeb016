package wormhole

import (
	"context"
	"errors"

	"github.com/git-stunts/warp/pkg/codec"
	"github.com/git-stunts/warp/pkg/errdefs"
	"github.com/git-stunts/warp/pkg/object"
	"github.com/git-stunts/warp/pkg/reducer"
	"github.com/git-stunts/warp/pkg/types"
)

// Entry is one patch of a wormhole payload, with the chain linkage needed
// to compose adjacent wormholes.
type Entry struct {
	SHA    string       `cbor:"sha" json:"sha"`
	Parent string       `cbor:"parent" json:"parent"`
	Patch  *types.Patch `cbor:"patch" json:"patch"`
}

// Edge is a compressed patch range: a single writer's chain segment
// carried as a replayable payload. Replaying it reproduces exactly the
// state delta of the underlying range without touching the repository.
type Edge struct {
	FromSHA    string
	ToSHA      string
	WriterID   string
	Payload    []Entry
	PatchCount int
}

// New loads the inclusive patch range [fromSHA..toSHA] from one writer's
// chain. Both endpoints must exist, every commit in between must be a
// patch, and the whole range must belong to a single writer.
func New(ctx context.Context, store object.Store, fromSHA, toSHA string) (*Edge, error) {
	for _, sha := range []string{fromSHA, toSHA} {
		if _, err := store.GetNodeInfo(ctx, sha); err != nil {
			if errors.Is(err, object.ErrNotFound) {
				return nil, errdefs.Newf(errdefs.CodeWormholeSHANotFound, "commit %s not found", sha).
					With("sha", sha)
			}
			return nil, err
		}
	}

	var payload []Entry
	writerID := ""
	sha := toSHA
	for {
		info, err := store.GetNodeInfo(ctx, sha)
		if err != nil {
			return nil, err
		}
		env, err := codec.ParseEnvelope(info.Message)
		if err != nil || env.Kind != codec.KindPatch {
			return nil, errdefs.Newf(errdefs.CodeWormholeNotPatch, "commit %s is not a patch", sha).
				With("sha", sha)
		}
		blob, err := store.ReadBlob(ctx, env.PatchOID)
		if err != nil {
			return nil, err
		}
		p, err := codec.DecodePatch(blob)
		if err != nil {
			return nil, err
		}
		if writerID == "" {
			writerID = p.Writer
		} else if p.Writer != writerID {
			return nil, errdefs.Newf(errdefs.CodeWormholeMultiWriter,
				"range spans writers %s and %s", writerID, p.Writer)
		}
		payload = append(payload, Entry{SHA: sha, Parent: info.FirstParent(), Patch: p})

		if sha == fromSHA {
			break
		}
		sha = info.FirstParent()
		if sha == "" {
			return nil, errdefs.Newf(errdefs.CodeWormholeInvalidRange,
				"%s is not an ancestor of %s", fromSHA, toSHA).
				With("from", fromSHA).With("to", toSHA)
		}
	}

	// walked newest-first; payload is oldest-first
	for i, j := 0, len(payload)-1; i < j; i, j = i+1, j-1 {
		payload[i], payload[j] = payload[j], payload[i]
	}
	return &Edge{
		FromSHA:    fromSHA,
		ToSHA:      toSHA,
		WriterID:   writerID,
		Payload:    payload,
		PatchCount: len(payload),
	}, nil
}

// Compose concatenates two consecutive wormholes from the same writer: b's
// oldest patch must be parented directly on a's newest.
func Compose(a, b *Edge) (*Edge, error) {
	if a.WriterID != b.WriterID {
		return nil, errdefs.Newf(errdefs.CodeWormholeMultiWriter,
			"cannot compose wormholes of writers %s and %s", a.WriterID, b.WriterID)
	}
	if len(b.Payload) == 0 || b.Payload[0].Parent != a.ToSHA {
		return nil, errdefs.Newf(errdefs.CodeWormholeInvalidRange,
			"wormholes are not consecutive: %s does not extend %s", b.FromSHA, a.ToSHA)
	}
	payload := make([]Entry, 0, len(a.Payload)+len(b.Payload))
	payload = append(payload, a.Payload...)
	payload = append(payload, b.Payload...)
	return &Edge{
		FromSHA:    a.FromSHA,
		ToSHA:      b.ToSHA,
		WriterID:   a.WriterID,
		Payload:    payload,
		PatchCount: len(payload),
	}, nil
}

// Replay folds the payload onto initial (or an empty state when nil) and
// returns the result, without touching any repository.
func (e *Edge) Replay(initial *reducer.State) (*reducer.State, error) {
	patches := make([]reducer.SourcedPatch, len(e.Payload))
	for i, entry := range e.Payload {
		patches[i] = reducer.SourcedPatch{Patch: entry.Patch, SHA: entry.SHA}
	}
	return reducer.Reduce(patches, initial)
}
