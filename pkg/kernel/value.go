package kernel

import (
	"encoding/json"
	"fmt"

	"github.com/latticedb/store/pkg/opid"
	"github.com/latticedb/store/pkg/schema"
)

// ValueMeta is a Value field's metadata: the OpId of the last accepted
// update, paired with the value it accepted (spec §4.3 "Value (register)").
type ValueMeta struct {
	OpID  opid.OpID
	Value interface{}
}

// ValueFragment is the wire/merge fragment for a Value field.
type ValueFragment struct {
	OpID  opid.OpID   `json:"opId"`
	Value interface{} `json:"value"`
}

func (ValueFragment) FieldKind() schema.FieldKind { return schema.KindValue }

// ValueKernel implements the last-writer-wins register.
type ValueKernel struct{}

func (ValueKernel) Kind() schema.FieldKind { return schema.KindValue }

func (ValueKernel) InitialValue() interface{} { return nil }

func (ValueKernel) InitialMetadata() interface{} { return ValueMeta{} }

func (ValueKernel) ApplyUpdate(value, meta interface{}, update interface{}, primary opid.OpID, mint Minter) (interface{}, interface{}, Fragment, Change, error) {
	newMeta := ValueMeta{OpID: primary, Value: update}
	frag := ValueFragment{OpID: primary, Value: update}
	change := Change{Previous: value, Current: update}
	return update, newMeta, frag, change, nil
}

func (ValueKernel) ApplyPatch(value, meta interface{}, frag Fragment) (interface{}, interface{}, Change, error) {
	vf, ok := frag.(ValueFragment)
	if !ok {
		return nil, nil, Change{}, fmt.Errorf("kernel/value: unexpected fragment type %T", frag)
	}
	m, _ := meta.(ValueMeta)
	if !vf.OpID.Greater(m.OpID) {
		// Stale or duplicate: no-op, idempotent against replays.
		return value, meta, Change{Previous: value, Current: value}, nil
	}
	newMeta := ValueMeta{OpID: vf.OpID, Value: vf.Value}
	return vf.Value, newMeta, Change{Previous: value, Current: vf.Value}, nil
}

func (ValueKernel) Merge(a, b Fragment) (Fragment, error) {
	bf, ok := b.(ValueFragment)
	if !ok {
		return nil, fmt.Errorf("kernel/value: unexpected fragment type %T", b)
	}
	// Second wins (spec §4.3 "Common patch-merge rule: Value: second wins").
	return bf, nil
}

// Inverse restores preValue under a fresh OpId (spec §4.6 "Value: restore
// the previous (opId, value) carried in the original patch fragment's
// pre-image").
func (ValueKernel) Inverse(preValue interface{}, frag Fragment, primary opid.OpID, mint Minter) (Fragment, error) {
	if _, ok := frag.(ValueFragment); !ok {
		return nil, fmt.Errorf("kernel/value: unexpected fragment type %T", frag)
	}
	return ValueFragment{OpID: primary, Value: preValue}, nil
}

func (ValueKernel) DecodeFragment(data json.RawMessage) (Fragment, error) {
	var vf ValueFragment
	if err := json.Unmarshal(data, &vf); err != nil {
		return nil, fmt.Errorf("kernel/value: decode fragment: %w", err)
	}
	return vf, nil
}
