package kernel

import (
	"encoding/json"
	"fmt"

	"github.com/latticedb/store/pkg/opid"
	"github.com/latticedb/store/pkg/schema"
)

// PrimaryKeyFragment exists only so the kernel's DecodeFragment signature
// is uniform; a PrimaryKey field is never the target of an update or a
// patch fragment (spec §4.3 "Metadata: none. Value: the record id. Not
// directly mutable; exposed read-only").
type PrimaryKeyFragment struct{}

func (PrimaryKeyFragment) FieldKind() schema.FieldKind { return schema.KindPrimaryKey }

// PrimaryKeyKernel is the read-only record-id field.
type PrimaryKeyKernel struct{}

func (PrimaryKeyKernel) Kind() schema.FieldKind { return schema.KindPrimaryKey }

func (PrimaryKeyKernel) InitialValue() interface{} { return "" }

func (PrimaryKeyKernel) InitialMetadata() interface{} { return nil }

func (PrimaryKeyKernel) ApplyUpdate(value, meta interface{}, update interface{}, primary opid.OpID, mint Minter) (interface{}, interface{}, Fragment, Change, error) {
	return nil, nil, nil, Change{}, fmt.Errorf("kernel/primarykey: field is not a mutation target")
}

func (PrimaryKeyKernel) ApplyPatch(value, meta interface{}, frag Fragment) (interface{}, interface{}, Change, error) {
	return nil, nil, Change{}, fmt.Errorf("kernel/primarykey: field is not a patch target")
}

func (PrimaryKeyKernel) Merge(a, b Fragment) (Fragment, error) {
	return nil, fmt.Errorf("kernel/primarykey: field is not mergeable")
}

func (PrimaryKeyKernel) DecodeFragment(data json.RawMessage) (Fragment, error) {
	return nil, fmt.Errorf("kernel/primarykey: field carries no patch fragment")
}

func (PrimaryKeyKernel) Inverse(preValue interface{}, frag Fragment, primary opid.OpID, mint Minter) (Fragment, error) {
	return nil, fmt.Errorf("kernel/primarykey: field is not invertible")
}
