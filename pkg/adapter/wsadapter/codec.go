package wsadapter

import (
	"fmt"

	"github.com/latticedb/store/pkg/adapter"
	"github.com/latticedb/store/pkg/kernel"
	"github.com/latticedb/store/pkg/patch"
	"github.com/latticedb/store/pkg/schema"
)

// encodeWirePatch renders a *patch.Patch as the wire.go WirePatch shape:
// the patch's own OpID string doubles as its wire id for this transport.
func encodeWirePatch(p *patch.Patch) (adapter.WirePatch, error) {
	data, err := patch.Encode(p)
	if err != nil {
		return adapter.WirePatch{}, fmt.Errorf("wsadapter: encode patch: %w", err)
	}
	return adapter.WirePatch{
		PatchID: p.PatchID.String(),
		StoreID: p.StoreID,
		Content: data,
	}, nil
}

// decodeWirePatch is the inverse of encodeWirePatch, resolving fragment
// kinds against schemas the same way patch.Decode does for any other
// remote patch.
func decodeWirePatch(wp adapter.WirePatch, schemas *schema.Registry) (*patch.Patch, error) {
	p, err := patch.Decode(wp.Content, schemas, kernel.NewRegistry())
	if err != nil {
		return nil, fmt.Errorf("wsadapter: decode patch: %w", err)
	}
	return p, nil
}
