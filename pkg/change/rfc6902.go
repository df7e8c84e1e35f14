package change

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// ToRFC6902 renders one field's (previous, current) change as a standard
// JSON Patch (RFC 6902) document, for observers that want the widely
// supported diff format instead of the native (previous, current) pair —
// an adapter at the edge of the change-notification API (see SPEC_FULL.md
// DOMAIN STACK), not a replacement for the native fragment/change shape
// used internally.
func ToRFC6902(previous, current interface{}) ([]byte, error) {
	prevJSON, err := json.Marshal(previous)
	if err != nil {
		return nil, fmt.Errorf("change: marshal previous: %w", err)
	}
	curJSON, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("change: marshal current: %w", err)
	}
	ops, err := jsonpatch.CreatePatch(prevJSON, curJSON)
	if err != nil {
		return nil, fmt.Errorf("change: create RFC 6902 patch: %w", err)
	}
	out, err := json.Marshal(ops)
	if err != nil {
		return nil, fmt.Errorf("change: marshal RFC 6902 patch: %w", err)
	}
	return out, nil
}
