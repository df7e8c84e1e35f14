// Package record implements spec §4.4's Record and Table: a schema-typed,
// indexed collection of records with field operations routed through the
// kernel registry.
package record

import (
	"fmt"

	"github.com/latticedb/store/pkg/kernel"
	"github.com/latticedb/store/pkg/opid"
	"github.com/latticedb/store/pkg/schema"
	"github.com/latticedb/store/pkg/storeerr"
)

// Record holds one schema-typed row: its id plus, per declared field, the
// field's current value and kernel metadata (spec §4.4 "Holds per-field
// current value and per-field metadata").
type Record struct {
	id     string
	schema *schema.Schema
	values map[string]interface{}
	metas  map[string]interface{}
}

func newRecord(sch *schema.Schema, id string, kernels *kernel.Registry) (*Record, error) {
	values := make(map[string]interface{}, len(sch.Fields))
	metas := make(map[string]interface{}, len(sch.Fields))
	for _, f := range sch.Fields {
		if f.Kind == schema.KindPrimaryKey {
			values[f.Name] = id
			metas[f.Name] = nil
			continue
		}
		k, err := kernels.For(f.Kind)
		if err != nil {
			return nil, err
		}
		values[f.Name] = k.InitialValue()
		metas[f.Name] = k.InitialMetadata()
	}
	return &Record{id: id, schema: sch, values: values, metas: metas}, nil
}

// ID returns the record's primary key value.
func (r *Record) ID() string { return r.id }

// Get is a constant-time read of the current per-field value (spec §4.4
// "Record.get(fieldName) → value: constant-time read").
func (r *Record) Get(fieldName string) (interface{}, error) {
	v, ok := r.values[fieldName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", storeerr.ErrFieldUnknown, fieldName)
	}
	return v, nil
}

// Meta exposes a field's kernel metadata, used by Store.CreateSnapshot to
// capture each field's (value, metadata) pair.
func (r *Record) Meta(fieldName string) (interface{}, error) {
	m, ok := r.metas[fieldName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", storeerr.ErrFieldUnknown, fieldName)
	}
	return m, nil
}

// ApplyLocalUpdate routes a locally originated update through fieldName's
// kernel, records the resulting value/metadata, and returns the patch
// fragment and change fragment for the caller to fold into the open
// transaction's builders (spec §4.4 "Record.update(...): permitted only
// inside a transaction").
func (r *Record) ApplyLocalUpdate(kernels *kernel.Registry, fieldName string, update interface{}, primary opid.OpID, mint kernel.Minter) (kernel.Fragment, kernel.Change, error) {
	f, ok := r.schema.Field(fieldName)
	if !ok {
		return nil, kernel.Change{}, fmt.Errorf("%w: %q", storeerr.ErrFieldUnknown, fieldName)
	}
	if f.Kind == schema.KindPrimaryKey {
		return nil, kernel.Change{}, fmt.Errorf("%w: primary key field %q is read-only", storeerr.ErrReadOnlyField, fieldName)
	}
	k, err := kernels.For(f.Kind)
	if err != nil {
		return nil, kernel.Change{}, err
	}
	newValue, newMeta, frag, change, err := k.ApplyUpdate(r.values[fieldName], r.metas[fieldName], update, primary, mint)
	if err != nil {
		return nil, kernel.Change{}, fmt.Errorf("record: apply update to %q: %w", fieldName, err)
	}
	r.values[fieldName] = newValue
	r.metas[fieldName] = newMeta
	return frag, change, nil
}

// ApplyPatchFragment routes a remote (or replayed local) fragment through
// fieldName's kernel and records the result.
func (r *Record) ApplyPatchFragment(kernels *kernel.Registry, fieldName string, frag kernel.Fragment) (kernel.Change, error) {
	f, ok := r.schema.Field(fieldName)
	if !ok {
		return kernel.Change{}, fmt.Errorf("%w: %q", storeerr.ErrFieldUnknown, fieldName)
	}
	if f.Kind == schema.KindPrimaryKey {
		return kernel.Change{}, fmt.Errorf("%w: primary key field %q is read-only", storeerr.ErrReadOnlyField, fieldName)
	}
	k, err := kernels.For(f.Kind)
	if err != nil {
		return kernel.Change{}, err
	}
	newValue, newMeta, change, err := k.ApplyPatch(r.values[fieldName], r.metas[fieldName], frag)
	if err != nil {
		return kernel.Change{}, fmt.Errorf("%w: field %q: %v", storeerr.ErrMalformedPatch, fieldName, err)
	}
	r.values[fieldName] = newValue
	r.metas[fieldName] = newMeta
	return change, nil
}

// SetField installs value/meta for fieldName directly, bypassing kernel
// apply logic entirely. Used only to restore a record from an opaque
// checkpoint snapshot, where (value, metadata) are already each kernel's
// own resting representation rather than an update or patch fragment to
// apply. The primary key field is immutable identity and silently
// ignored.
func (r *Record) SetField(fieldName string, value, meta interface{}) error {
	f, ok := r.schema.Field(fieldName)
	if !ok {
		return fmt.Errorf("%w: %q", storeerr.ErrFieldUnknown, fieldName)
	}
	if f.Kind == schema.KindPrimaryKey {
		return nil
	}
	r.values[fieldName] = value
	r.metas[fieldName] = meta
	return nil
}

// snapshot captures value/metadata for every field, used through
// Table.Snapshot by Store's cancelTransaction rollback and History's undo
// pre-images.
func (r *Record) snapshot() *Record {
	values := make(map[string]interface{}, len(r.values))
	for k, v := range r.values {
		values[k] = v
	}
	metas := make(map[string]interface{}, len(r.metas))
	for k, v := range r.metas {
		metas[k] = v
	}
	return &Record{id: r.id, schema: r.schema, values: values, metas: metas}
}
