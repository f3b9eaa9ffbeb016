package syncer

import (
	"encoding/json"
	"fmt"

	"github.com/git-stunts/warp/pkg/errdefs"
	"github.com/git-stunts/warp/pkg/types"
)

// Message type tags on the JSON sync wire.
const (
	TypeSyncRequest  = "sync-request"
	TypeSyncResponse = "sync-response"
)

// SyncRequest announces the requester's frontier.
type SyncRequest struct {
	Type     string            `json:"type"`
	Frontier map[string]string `json:"frontier"`
}

// NewSyncRequest builds a request for the given frontier.
func NewSyncRequest(frontier map[string]string) *SyncRequest {
	return &SyncRequest{Type: TypeSyncRequest, Frontier: frontier}
}

// PatchEntry is one patch on the wire, tagged with its writer and commit
// sha.
type PatchEntry struct {
	WriterID string       `json:"writerId"`
	SHA      string       `json:"sha"`
	Patch    *types.Patch `json:"patch"`
}

// SyncResponse carries the responder's frontier and the patches the
// requester was missing, per writer oldest first.
type SyncResponse struct {
	Type     string            `json:"type"`
	Frontier map[string]string `json:"frontier"`
	Patches  []PatchEntry      `json:"patches"`
}

// EncodeMessage renders a wire message as JSON.
func EncodeMessage(msg interface{}) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode sync message: %w", err)
	}
	return data, nil
}

// DecodeRequest parses and validates a sync request.
func DecodeRequest(data []byte) (*SyncRequest, error) {
	var req SyncRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, errdefs.Wrap(err, errdefs.CodeSyncProtocol, "malformed sync request")
	}
	if req.Type != TypeSyncRequest {
		return nil, errdefs.Newf(errdefs.CodeSyncProtocol, "unexpected message type %q", req.Type)
	}
	return &req, nil
}

// DecodeResponse parses and validates a sync response.
func DecodeResponse(data []byte) (*SyncResponse, error) {
	var resp SyncResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errdefs.Wrap(err, errdefs.CodeSyncProtocol, "malformed sync response")
	}
	if resp.Type != TypeSyncResponse {
		return nil, errdefs.Newf(errdefs.CodeSyncProtocol, "unexpected message type %q", resp.Type)
	}
	return &resp, nil
}
