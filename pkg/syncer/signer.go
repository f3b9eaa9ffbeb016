package syncer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Header names for signed sync requests. The core treats transport headers
// as opaque; this signer is the default content-hash + HMAC scheme, and any
// other scheme may be substituted at the transport layer.
const (
	HeaderContentSHA256 = "x-warp-content-sha256"
	HeaderSignature     = "x-warp-signature"
)

// Signer signs sync message bodies with a shared key.
type Signer struct {
	key []byte
}

// NewSigner creates a signer over the shared key.
func NewSigner(key []byte) *Signer {
	return &Signer{key: append([]byte(nil), key...)}
}

// Headers computes the signed headers for a message body: the body's
// SHA-256 and an HMAC-SHA256 over that hash.
func (s *Signer) Headers(body []byte) map[string]string {
	sum := sha256.Sum256(body)
	bodyHash := hex.EncodeToString(sum[:])

	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(bodyHash))
	return map[string]string{
		HeaderContentSHA256: bodyHash,
		HeaderSignature:     hex.EncodeToString(mac.Sum(nil)),
	}
}

// Verify checks a body against its signed headers.
func (s *Signer) Verify(body []byte, headers map[string]string) bool {
	sum := sha256.Sum256(body)
	bodyHash := hex.EncodeToString(sum[:])
	if headers[HeaderContentSHA256] != bodyHash {
		return false
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(bodyHash))
	want := mac.Sum(nil)
	got, err := hex.DecodeString(headers[HeaderSignature])
	if err != nil {
		return false
	}
	return hmac.Equal(want, got)
}
