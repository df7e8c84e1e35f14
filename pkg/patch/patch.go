// Package patch implements spec §3/§4.3's Patch: the immutable broadcast
// unit produced by one transaction, a schemaId→recordId→fieldName→fragment
// map stamped with the issuing store's patch id.
package patch

import (
	"encoding/json"
	"fmt"

	"github.com/latticedb/store/pkg/kernel"
	"github.com/latticedb/store/pkg/opid"
	"github.com/latticedb/store/pkg/schema"
	"github.com/latticedb/store/pkg/storeerr"
)

// Content is the schemaId -> recordId -> fieldName -> fragment map carried
// by a Patch.
type Content map[string]map[string]map[string]kernel.Fragment

// Patch is the immutable unit broadcast to peers (spec §3 "Patch").
// Content marshals via the default struct encoding since every concrete
// Fragment type already carries its own json tags; decoding back into
// Fragment interfaces needs schema/kernel context, so it goes through
// Decode rather than json.Unmarshal.
type Patch struct {
	PatchID opid.OpID `json:"patchId"`
	StoreID uint32    `json:"storeId"`
	Content Content   `json:"content"`

	// Created and Removed carry record lifecycle events (schemaId ->
	// recordIds) alongside field content. Record creation/removal is not
	// itself a field mutation — a PrimaryKey field is read-only — so it
	// travels as a sibling list rather than a fieldPatch.
	Created map[string][]string `json:"created,omitempty"`
	Removed map[string][]string `json:"removed,omitempty"`
}

type rawPatch struct {
	PatchID opid.OpID                                        `json:"patchId"`
	StoreID uint32                                           `json:"storeId"`
	Content map[string]map[string]map[string]json.RawMessage `json:"content"`
	Created map[string][]string                              `json:"created,omitempty"`
	Removed map[string][]string                              `json:"removed,omitempty"`
}

// Decode parses wire JSON into a Patch, resolving each field's fragment
// type via schemas (to learn the field's kind) and kernels (to decode the
// fragment for that kind). Unknown schemas/fields or malformed fragments
// are reported as storeerr sentinels so the Store can discard-and-log per
// spec §7 without crashing the replica.
func Decode(data []byte, schemas *schema.Registry, kernels *kernel.Registry) (*Patch, error) {
	var raw rawPatch
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", storeerr.ErrMalformedPatch, err)
	}
	content := make(Content, len(raw.Content))
	for schemaID, records := range raw.Content {
		sch, ok := schemas.Get(schemaID)
		if !ok {
			return nil, fmt.Errorf("%w: schema %q", storeerr.ErrSchemaUnknown, schemaID)
		}
		recordsOut := make(map[string]map[string]kernel.Fragment, len(records))
		for recordID, fields := range records {
			fieldsOut := make(map[string]kernel.Fragment, len(fields))
			for fieldName, rawFrag := range fields {
				f, ok := sch.Field(fieldName)
				if !ok {
					return nil, fmt.Errorf("%w: field %q on schema %q", storeerr.ErrFieldUnknown, fieldName, schemaID)
				}
				k, err := kernels.For(f.Kind)
				if err != nil {
					return nil, fmt.Errorf("%w: %v", storeerr.ErrMalformedPatch, err)
				}
				frag, err := k.DecodeFragment(rawFrag)
				if err != nil {
					return nil, fmt.Errorf("%w: %v", storeerr.ErrMalformedPatch, err)
				}
				fieldsOut[fieldName] = frag
			}
			recordsOut[recordID] = fieldsOut
		}
		content[schemaID] = recordsOut
	}
	return &Patch{
		PatchID: raw.PatchID,
		StoreID: raw.StoreID,
		Content: content,
		Created: raw.Created,
		Removed: raw.Removed,
	}, nil
}

// Encode renders p as wire JSON.
func Encode(p *Patch) ([]byte, error) {
	return json.Marshal(p)
}

// IsEmpty reports whether the patch carries no field fragments at all.
// Builder.Empty combines it with the created/removed record lists, and
// Store.EndTransaction broadcasts only when that combined check finds
// something.
func (c Content) IsEmpty() bool {
	for _, records := range c {
		for _, fields := range records {
			if len(fields) > 0 {
				return false
			}
		}
	}
	return true
}
