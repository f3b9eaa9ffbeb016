package wormhole

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/git-stunts/warp/pkg/errdefs"
	"github.com/git-stunts/warp/pkg/reducer"
	"github.com/git-stunts/warp/pkg/types"
)

// BTR is a Boundary Transition Record: an HMAC-authenticated envelope
// binding an input state hash, an output state hash, the serialized input
// state, a wormhole payload, and a timestamp. Any party holding the shared
// key can verify that replaying the payload over the input state yields
// the claimed output.
type BTR struct {
	HIn       string `cbor:"hIn" json:"hIn"`
	HOut      string `cbor:"hOut" json:"hOut"`
	State     []byte `cbor:"state" json:"state"`
	Payload   []byte `cbor:"payload" json:"payload"`
	Timestamp int64  `cbor:"t" json:"t"`
	Tag       []byte `cbor:"tag" json:"tag"`
}

type btrBody struct {
	HIn       string `cbor:"hIn"`
	HOut      string `cbor:"hOut"`
	Payload   []byte `cbor:"payload"`
	State     []byte `cbor:"state"`
	Timestamp int64  `cbor:"t"`
}

func (b *BTR) mac(key []byte) ([]byte, error) {
	body, err := types.EncMode().Marshal(&btrBody{
		HIn:       b.HIn,
		HOut:      b.HOut,
		Payload:   b.Payload,
		State:     b.State,
		Timestamp: b.Timestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("encode btr body: %w", err)
	}
	m := hmac.New(sha256.New, key)
	m.Write(body)
	return m.Sum(nil), nil
}

// Seal replays the wormhole over the initial state (empty when nil) and
// produces the authenticated record.
func Seal(key []byte, e *Edge, initial *reducer.State, now time.Time) (*BTR, error) {
	if initial == nil {
		initial = reducer.NewState()
	}
	hIn, err := reducer.Hash(initial)
	if err != nil {
		return nil, err
	}
	stateBytes, err := reducer.Serialize(initial)
	if err != nil {
		return nil, err
	}
	out, err := e.Replay(initial)
	if err != nil {
		return nil, err
	}
	hOut, err := reducer.Hash(out)
	if err != nil {
		return nil, err
	}
	payload, err := types.EncMode().Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode wormhole payload: %w", err)
	}

	b := &BTR{
		HIn:       hIn,
		HOut:      hOut,
		State:     stateBytes,
		Payload:   payload,
		Timestamp: now.Unix(),
	}
	if b.Tag, err = b.mac(key); err != nil {
		return nil, err
	}
	return b, nil
}

// Verify checks the HMAC tag and, when replay is set, re-executes the
// payload over the embedded state to confirm both hashes. Any tampering —
// hashes, state, payload, timestamp, or tag — fails verification.
func (b *BTR) Verify(key []byte, replay bool) error {
	want, err := b.mac(key)
	if err != nil {
		return err
	}
	if !hmac.Equal(want, b.Tag) {
		return errdefs.New(errdefs.CodeValidation, "btr tag mismatch")
	}
	if !replay {
		return nil
	}

	initial, err := reducer.Deserialize(b.State)
	if err != nil {
		return errdefs.Wrap(err, errdefs.CodeValidation, "btr state undecodable")
	}
	hIn, err := reducer.Hash(initial)
	if err != nil {
		return err
	}
	if hIn != b.HIn {
		return errdefs.New(errdefs.CodeValidation, "btr input hash mismatch")
	}

	var payload []Entry
	if err := types.DecMode().Unmarshal(b.Payload, &payload); err != nil {
		return errdefs.Wrap(err, errdefs.CodeValidation, "btr payload undecodable")
	}
	e := &Edge{Payload: payload, PatchCount: len(payload)}
	out, err := e.Replay(initial)
	if err != nil {
		return errdefs.Wrap(err, errdefs.CodeValidation, "btr payload replay failed")
	}
	hOut, err := reducer.Hash(out)
	if err != nil {
		return err
	}
	if hOut != b.HOut {
		return errdefs.New(errdefs.CodeValidation, "btr output hash mismatch")
	}
	return nil
}
