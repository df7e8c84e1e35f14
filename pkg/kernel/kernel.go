// Package kernel implements spec §4.3's field kernels: for each of the five
// field kinds (PrimaryKey, Value, List, Map, Text), the in-memory value, the
// per-field metadata, the update contract, and the merge rule. Dispatch is
// by tagged variant (schema.FieldKind) rather than an inheritance hierarchy,
// per the "tagged-variant field kind" redesign note — each kernel is a
// stateless value implementing the Kernel interface, with value/metadata
// passed explicitly rather than held on the kernel itself.
package kernel

import (
	"encoding/json"
	"fmt"

	"github.com/latticedb/store/pkg/opid"
	"github.com/latticedb/store/pkg/schema"
)

// Fragment is the per-field portion of a Patch (spec's patchFragment).
type Fragment interface {
	FieldKind() schema.FieldKind
}

// Change carries the (previous, current) snapshot a kernel reports to
// observers, mirroring Patch structure at field granularity (spec §4.8).
type Change struct {
	Previous interface{}
	Current  interface{}
}

// Minter mints fresh OpIds on demand. List and Text kernels call it once per
// inserted element so every element gets a genuinely unique valueId; Value
// and Map kernels instead reuse the transaction's Primary id directly, since
// a single register or per-key slot never needs more than one identity per
// local update call.
type Minter func() (opid.OpID, error)

// Kernel is the four-operation contract every field kind implements.
// value/metadata/update/fragment are passed as interface{} and type-asserted
// internally by each kernel to its own concrete types; Record owns the
// boxing and routes by schema.FieldKind.
type Kernel interface {
	Kind() schema.FieldKind
	InitialValue() interface{}
	InitialMetadata() interface{}

	// ApplyUpdate applies a locally originated mutation inside a
	// transaction. primary is the transaction's patch id; mint issues
	// additional fresh ids for kernels (List, Text) whose update may
	// introduce more than one new identity.
	ApplyUpdate(value, meta interface{}, update interface{}, primary opid.OpID, mint Minter) (newValue, newMeta interface{}, frag Fragment, change Change, err error)

	// ApplyPatch applies a remote (or replayed local) fragment. Must be
	// commutative and idempotent with respect to any other fragment
	// produced with a different OpId, per spec §4.3.
	ApplyPatch(value, meta interface{}, frag Fragment) (newValue, newMeta interface{}, change Change, err error)

	// Merge coalesces two fragments produced against the same field
	// within one transaction into the single fragment that would have
	// produced an equivalent end state.
	Merge(a, b Fragment) (Fragment, error)

	// DecodeFragment parses a fragment received over the wire. The
	// caller already knows the field's kind from the schema, so the
	// JSON payload itself carries no kind tag.
	DecodeFragment(data json.RawMessage) (Fragment, error)

	// Inverse builds the fragment that cancels frag's effect (spec §4.6).
	// preValue is the field's value immediately before frag was first
	// applied; Value and Map use it to recover what frag overwrote. List
	// and Text fragments already carry enough identity (OpId, position)
	// to invert themselves by flipping insert/remove, so they ignore
	// preValue. The inverse is applied later the same way any other
	// fragment is: through ApplyPatch against whatever the field's
	// current state is at undo time.
	Inverse(preValue interface{}, frag Fragment, primary opid.OpID, mint Minter) (Fragment, error)
}

// MergeChange coalesces two successive change fragments on the same field
// within a transaction: the earliest Previous paired with the latest
// Current. This rule is identical across every field kind (spec §4.3's
// merge section only varies patch-fragment merging, not change merging), so
// it lives once here instead of being repeated per kernel.
func MergeChange(a, b Change) Change {
	return Change{Previous: a.Previous, Current: b.Current}
}

// Registry maps each schema.FieldKind to its Kernel implementation. Record
// and Table use it to route field operations without a type switch at every
// call site.
type Registry struct {
	kernels map[schema.FieldKind]Kernel
}

// NewRegistry builds the fixed registry of the five built-in kernels.
func NewRegistry() *Registry {
	return &Registry{
		kernels: map[schema.FieldKind]Kernel{
			schema.KindPrimaryKey: PrimaryKeyKernel{},
			schema.KindValue:      ValueKernel{},
			schema.KindMap:        MapKernel{},
			schema.KindList:       ListKernel{},
			schema.KindText:       TextKernel{},
		},
	}
}

// For looks up the kernel for kind.
func (r *Registry) For(kind schema.FieldKind) (Kernel, error) {
	k, ok := r.kernels[kind]
	if !ok {
		return nil, fmt.Errorf("kernel: no kernel registered for field kind %q", kind)
	}
	return k, nil
}
