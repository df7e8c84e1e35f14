package kernel

import (
	"encoding/json"
	"fmt"

	"github.com/latticedb/store/pkg/opid"
	"github.com/latticedb/store/pkg/schema"
)

// mapEntryMeta is the per-key bookkeeping a Map field keeps: the OpId of
// the last accepted mutation to this key and whether that mutation left the
// key present (spec §4.3 "Map: per-key (opId of last accepted mutation,
// last-accepted value-or-absent)").
type mapEntryMeta struct {
	OpID    opid.OpID
	Value   interface{}
	Present bool
}

// MapMeta is a Map field's metadata: one mapEntryMeta per key ever touched,
// including keys that are currently absent (deleted) — needed so a
// late-arriving stale patch cannot resurrect a key a later patch deleted.
type MapMeta struct {
	Entries map[string]mapEntryMeta
}

// MapFragment is the wire/merge fragment for a Map field. Set and Del are
// kept as separate maps (rather than a single map[string]interface{} with
// nil meaning delete, as the update-input shape in spec §4.3 literally
// describes) to avoid JSON's null-vs-absent-vs-delete ambiguity on the wire;
// MapUpdate still accepts the spec's {key: value-or-nil} shape at the API
// boundary and is translated into Set/Del here.
type MapFragment struct {
	OpID opid.OpID              `json:"opId"`
	Set  map[string]interface{} `json:"set,omitempty"`
	Del  []string               `json:"del,omitempty"`
}

func (MapFragment) FieldKind() schema.FieldKind { return schema.KindMap }

// MapUpdate is the local update input: nil maps to delete.
type MapUpdate map[string]interface{}

// MapKernel implements the per-key last-writer-wins map.
type MapKernel struct{}

func (MapKernel) Kind() schema.FieldKind { return schema.KindMap }

func (MapKernel) InitialValue() interface{} {
	return map[string]interface{}{}
}

func (MapKernel) InitialMetadata() interface{} {
	return MapMeta{Entries: map[string]mapEntryMeta{}}
}

func (MapKernel) ApplyUpdate(value, meta interface{}, update interface{}, primary opid.OpID, mint Minter) (interface{}, interface{}, Fragment, Change, error) {
	mu, ok := update.(MapUpdate)
	if !ok {
		return nil, nil, nil, Change{}, fmt.Errorf("kernel/map: unexpected update type %T", update)
	}
	oldVal, _ := value.(map[string]interface{})
	oldMeta, _ := meta.(MapMeta)

	newVal := cloneMap(oldVal)
	newEntries := cloneEntries(oldMeta.Entries)
	frag := MapFragment{OpID: primary, Set: map[string]interface{}{}}

	for k, v := range mu {
		if v == nil {
			delete(newVal, k)
			newEntries[k] = mapEntryMeta{OpID: primary, Present: false}
			frag.Del = append(frag.Del, k)
			continue
		}
		newVal[k] = v
		newEntries[k] = mapEntryMeta{OpID: primary, Value: v, Present: true}
		frag.Set[k] = v
	}
	if len(frag.Set) == 0 {
		frag.Set = nil
	}

	newMeta := MapMeta{Entries: newEntries}
	change := Change{Previous: oldVal, Current: newVal}
	return newVal, newMeta, frag, change, nil
}

func (MapKernel) ApplyPatch(value, meta interface{}, frag Fragment) (interface{}, interface{}, Change, error) {
	mf, ok := frag.(MapFragment)
	if !ok {
		return nil, nil, Change{}, fmt.Errorf("kernel/map: unexpected fragment type %T", frag)
	}
	oldVal, _ := value.(map[string]interface{})
	oldMeta, _ := meta.(MapMeta)

	newVal := cloneMap(oldVal)
	newEntries := cloneEntries(oldMeta.Entries)

	accept := func(key string) bool {
		return mf.OpID.Greater(newEntries[key].OpID)
	}

	for k, v := range mf.Set {
		if !accept(k) {
			continue
		}
		newEntries[k] = mapEntryMeta{OpID: mf.OpID, Value: v, Present: true}
		newVal[k] = v
	}
	for _, k := range mf.Del {
		if !accept(k) {
			continue
		}
		newEntries[k] = mapEntryMeta{OpID: mf.OpID, Present: false}
		delete(newVal, k)
	}

	newMeta := MapMeta{Entries: newEntries}
	return newVal, newMeta, Change{Previous: oldVal, Current: newVal}, nil
}

func (MapKernel) Merge(a, b Fragment) (Fragment, error) {
	af, ok := a.(MapFragment)
	if !ok {
		return nil, fmt.Errorf("kernel/map: unexpected fragment type %T", a)
	}
	bf, ok := b.(MapFragment)
	if !ok {
		return nil, fmt.Errorf("kernel/map: unexpected fragment type %T", b)
	}

	set := make(map[string]interface{}, len(af.Set)+len(bf.Set))
	for k, v := range af.Set {
		set[k] = v
	}
	delSet := make(map[string]struct{}, len(af.Del))
	for _, k := range af.Del {
		delSet[k] = struct{}{}
	}
	// b wins on collision (spec §4.3: "shallow union, second overrides").
	for k, v := range bf.Set {
		set[k] = v
		delete(delSet, k)
	}
	for _, k := range bf.Del {
		delSet[k] = struct{}{}
		delete(set, k)
	}

	del := make([]string, 0, len(delSet))
	for k := range delSet {
		del = append(del, k)
	}
	if len(set) == 0 {
		set = nil
	}
	return MapFragment{OpID: bf.OpID, Set: set, Del: del}, nil
}

// Inverse re-applies preValue's content for every key frag touched (spec
// §4.6 "Map: for each touched key, re-apply the previous (opId_prev,
// value_prev) if present, or a delete if the key was absent").
func (MapKernel) Inverse(preValue interface{}, frag Fragment, primary opid.OpID, mint Minter) (Fragment, error) {
	mf, ok := frag.(MapFragment)
	if !ok {
		return nil, fmt.Errorf("kernel/map: unexpected fragment type %T", frag)
	}
	preMap, _ := preValue.(map[string]interface{})

	set := map[string]interface{}{}
	var del []string
	touched := make(map[string]struct{}, len(mf.Set)+len(mf.Del))
	for k := range mf.Set {
		touched[k] = struct{}{}
	}
	for _, k := range mf.Del {
		touched[k] = struct{}{}
	}
	for k := range touched {
		if v, present := preMap[k]; present {
			set[k] = v
		} else {
			del = append(del, k)
		}
	}
	if len(set) == 0 {
		set = nil
	}
	return MapFragment{OpID: primary, Set: set, Del: del}, nil
}

func (MapKernel) DecodeFragment(data json.RawMessage) (Fragment, error) {
	var mf MapFragment
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("kernel/map: decode fragment: %w", err)
	}
	return mf, nil
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneEntries(m map[string]mapEntryMeta) map[string]mapEntryMeta {
	out := make(map[string]mapEntryMeta, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
