package codec

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/git-stunts/warp/pkg/errdefs"
	"github.com/git-stunts/warp/pkg/types"
)

// EncodePatch serializes a patch to its canonical CBOR bytes. The same
// patch always yields the same bytes, which is what makes patches
// content-addressable.
func EncodePatch(p *types.Patch) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, errdefs.Wrap(err, errdefs.CodeValidation, "invalid patch")
	}
	data, err := types.EncMode().Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode patch: %w", err)
	}
	return data, nil
}

// DecodePatch parses canonical patch bytes. Decoding is strict: structural
// violations fail with E_VALIDATION and schemas above the reader's maximum
// fail with E_SCHEMA_UNSUPPORTED.
func DecodePatch(data []byte) (*types.Patch, error) {
	var p types.Patch
	if err := types.DecMode().Unmarshal(data, &p); err != nil {
		return nil, errdefs.Wrap(err, errdefs.CodeValidation, "undecodable patch")
	}
	if err := p.Validate(); err != nil {
		return nil, errdefs.Wrap(err, errdefs.CodeValidation, "invalid patch")
	}
	if err := CheckSchema(&p, types.MaxSchema); err != nil {
		return nil, err
	}
	return &p, nil
}

// CheckSchema refuses patches whose declared schema, or any contained op,
// exceeds what the reader supports.
func CheckSchema(p *types.Patch, maxSchema int) error {
	if p.Schema > maxSchema {
		return errdefs.Newf(errdefs.CodeSchemaUnsupported,
			"patch schema %d exceeds supported maximum %d", p.Schema, maxSchema).
			With("schema", p.Schema).With("max", maxSchema)
	}
	for i := range p.Ops {
		if s := types.SchemaForOp(p.Ops[i].Kind); s > maxSchema {
			return errdefs.Newf(errdefs.CodeSchemaUnsupported,
				"op kind %s requires schema %d, reader supports %d", p.Ops[i].Kind, s, maxSchema).
				With("op", i)
		}
	}
	return nil
}

// OpsDigest computes the SHA-256 over the canonical JSON encoding of an op
// list. Audit commits bind this digest to a data commit.
func OpsDigest(ops []types.Op) (string, error) {
	data, err := json.Marshal(ops)
	if err != nil {
		return "", fmt.Errorf("digest ops: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
