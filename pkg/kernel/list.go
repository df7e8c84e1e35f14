package kernel

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/latticedb/store/pkg/opid"
	"github.com/latticedb/store/pkg/position"
	"github.com/latticedb/store/pkg/schema"
)

// ListOp tags a ListEntry as an insertion or a removal.
type ListOp string

const (
	ListOpInsert ListOp = "insert"
	ListOpRemove ListOp = "remove"
)

// listElem is one live element of a List field's metadata: its generated
// position, the OpId that introduced it (its valueId, per spec §4.3), and
// its current value.
type listElem struct {
	ValueID opid.OpID
	Pos     position.Position
	Value   interface{}
}

// ListMeta is a List field's metadata: the live elements in position order.
// Removal is tombstone-free — a removed element's valueId simply no longer
// appears (spec §4.3 "the position is simply absent").
type ListMeta struct {
	Elems []listElem
}

// ListEntry is one operation within a ListFragment: an insertion (carrying
// the freshly generated position and value) or a removal (carrying only the
// valueId of the element being removed).
type ListEntry struct {
	OpID  opid.OpID          `json:"opId"`
	Op    ListOp             `json:"op"`
	Pos   *position.Position `json:"pos,omitempty"`
	Value interface{}        `json:"value,omitempty"`
}

// ListFragment is the wire/merge fragment for a List field: an ordered list
// of insert/remove entries, applied in order.
type ListFragment struct {
	Entries []ListEntry `json:"entries"`
}

func (ListFragment) FieldKind() schema.FieldKind { return schema.KindList }

// ListUpdate is the local update input, modelling spec §4.3's
// splice/push/insert/set/remove/clear family as a single splice primitive;
// the constructor helpers below build the common shapes.
type ListUpdate struct {
	Index       int
	RemoveCount int
	Values      []interface{}
}

func ListSplice(index, removeCount int, values ...interface{}) ListUpdate {
	return ListUpdate{Index: index, RemoveCount: removeCount, Values: values}
}

func ListPush(value interface{}) ListUpdate {
	return ListUpdate{Index: -1, Values: []interface{}{value}}
}

func ListInsert(index int, value interface{}) ListUpdate {
	return ListUpdate{Index: index, Values: []interface{}{value}}
}

func ListSet(index int, value interface{}) ListUpdate {
	return ListUpdate{Index: index, RemoveCount: 1, Values: []interface{}{value}}
}

func ListRemove(index int) ListUpdate {
	return ListUpdate{Index: index, RemoveCount: 1}
}

func ListClear(length int) ListUpdate {
	return ListUpdate{Index: 0, RemoveCount: length}
}

// ListKernel implements the insertion-ordered list using fractional
// position keys (spec §4.3 "List").
type ListKernel struct{}

func (ListKernel) Kind() schema.FieldKind { return schema.KindList }

func (ListKernel) InitialValue() interface{} { return []interface{}{} }

func (ListKernel) InitialMetadata() interface{} { return ListMeta{} }

func (ListKernel) ApplyUpdate(value, meta interface{}, update interface{}, primary opid.OpID, mint Minter) (interface{}, interface{}, Fragment, Change, error) {
	lu, ok := update.(ListUpdate)
	if !ok {
		return nil, nil, nil, Change{}, fmt.Errorf("kernel/list: unexpected update type %T", update)
	}
	oldVal, _ := value.([]interface{})
	oldMeta, _ := meta.(ListMeta)

	elems := append([]listElem(nil), oldMeta.Elems...)
	index := lu.Index
	if index < 0 {
		index = len(elems)
	}
	if index > len(elems) {
		index = len(elems)
	}
	removeCount := lu.RemoveCount
	if index+removeCount > len(elems) {
		removeCount = len(elems) - index
	}

	var entries []ListEntry
	removed := elems[index : index+removeCount]
	for _, e := range removed {
		// Pos and Value are redundant for ApplyPatch's remove case (it
		// only needs OpID to locate the element) but are carried along
		// anyway so Inverse can reinsert exactly what was removed.
		posCopy := e.Pos
		entries = append(entries, ListEntry{OpID: e.ValueID, Op: ListOpRemove, Pos: &posCopy, Value: e.Value})
	}

	before := elems[:index]
	after := elems[index+removeCount:]

	low := position.Min
	if len(before) > 0 {
		low = before[len(before)-1].Pos
	}
	high := position.Max
	if len(after) > 0 {
		high = after[0].Pos
	}

	inserted := make([]listElem, 0, len(lu.Values))
	cur := low
	for _, v := range lu.Values {
		id, err := mint()
		if err != nil {
			return nil, nil, nil, Change{}, fmt.Errorf("kernel/list: mint insert id: %w", err)
		}
		pos, err := position.Between(id.StoreID, id.Clock, cur, high)
		if err != nil {
			return nil, nil, nil, Change{}, fmt.Errorf("kernel/list: generate position: %w", err)
		}
		cur = pos
		inserted = append(inserted, listElem{ValueID: id, Pos: pos, Value: v})
		posCopy := pos
		entries = append(entries, ListEntry{OpID: id, Op: ListOpInsert, Pos: &posCopy, Value: v})
	}

	newElems := make([]listElem, 0, len(before)+len(inserted)+len(after))
	newElems = append(newElems, before...)
	newElems = append(newElems, inserted...)
	newElems = append(newElems, after...)

	newVal := materializeList(newElems)
	newMeta := ListMeta{Elems: newElems}
	frag := ListFragment{Entries: entries}
	change := Change{Previous: append([]interface{}(nil), oldVal...), Current: newVal}
	return newVal, newMeta, frag, change, nil
}

func (ListKernel) ApplyPatch(value, meta interface{}, frag Fragment) (interface{}, interface{}, Change, error) {
	lf, ok := frag.(ListFragment)
	if !ok {
		return nil, nil, Change{}, fmt.Errorf("kernel/list: unexpected fragment type %T", frag)
	}
	oldVal, _ := value.([]interface{})
	oldMeta, _ := meta.(ListMeta)
	elems := append([]listElem(nil), oldMeta.Elems...)

	for _, e := range lf.Entries {
		switch e.Op {
		case ListOpInsert:
			if e.Pos == nil {
				return nil, nil, Change{}, fmt.Errorf("kernel/list: insert entry missing position")
			}
			if indexOfValueID(elems, e.OpID) >= 0 {
				continue // idempotent replay of an already-applied insert
			}
			idx := sort.Search(len(elems), func(i int) bool {
				return !lessElem(elems[i].Pos, elems[i].ValueID, *e.Pos, e.OpID)
			})
			elems = append(elems, listElem{})
			copy(elems[idx+1:], elems[idx:])
			elems[idx] = listElem{ValueID: e.OpID, Pos: *e.Pos, Value: e.Value}
		case ListOpRemove:
			if i := indexOfValueID(elems, e.OpID); i >= 0 {
				elems = append(elems[:i], elems[i+1:]...)
			}
		default:
			return nil, nil, Change{}, fmt.Errorf("kernel/list: unknown entry op %q", e.Op)
		}
	}

	newVal := materializeList(elems)
	newMeta := ListMeta{Elems: elems}
	change := Change{Previous: append([]interface{}(nil), oldVal...), Current: newVal}
	return newVal, newMeta, change, nil
}

func (ListKernel) Merge(a, b Fragment) (Fragment, error) {
	af, ok := a.(ListFragment)
	if !ok {
		return nil, fmt.Errorf("kernel/list: unexpected fragment type %T", a)
	}
	bf, ok := b.(ListFragment)
	if !ok {
		return nil, fmt.Errorf("kernel/list: unexpected fragment type %T", b)
	}
	entries := make([]ListEntry, 0, len(af.Entries)+len(bf.Entries))
	entries = append(entries, af.Entries...)
	entries = append(entries, bf.Entries...)
	return ListFragment{Entries: entries}, nil
}

// Inverse flips each entry's op in place, keeping its OpId, position, and
// value identical: "for each insert in the original, emit a remove of that
// valueId; for each remove, emit an insert of the original value at the
// original position" (spec §4.6). Positions never change once generated, so
// reinserting at the same position lands between the same neighbors it
// originally did.
func (ListKernel) Inverse(preValue interface{}, frag Fragment, primary opid.OpID, mint Minter) (Fragment, error) {
	lf, ok := frag.(ListFragment)
	if !ok {
		return nil, fmt.Errorf("kernel/list: unexpected fragment type %T", frag)
	}
	inverted := make([]ListEntry, len(lf.Entries))
	for i, e := range lf.Entries {
		op := ListOpRemove
		if e.Op == ListOpRemove {
			op = ListOpInsert
		}
		inverted[i] = ListEntry{OpID: e.OpID, Op: op, Pos: e.Pos, Value: e.Value}
	}
	return ListFragment{Entries: inverted}, nil
}

func (ListKernel) DecodeFragment(data json.RawMessage) (Fragment, error) {
	var lf ListFragment
	if err := json.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("kernel/list: decode fragment: %w", err)
	}
	return lf, nil
}

func materializeList(elems []listElem) []interface{} {
	out := make([]interface{}, len(elems))
	for i, e := range elems {
		out[i] = e.Value
	}
	return out
}

func indexOfValueID(elems []listElem, id opid.OpID) int {
	for i, e := range elems {
		if e.ValueID == id {
			return i
		}
	}
	return -1
}

// lessElem compares (pos, id) to (otherPos, otherID): ties in position are
// broken by inserting-valueId order (spec §4.3 "applyPatch: Insert: ... ties
// in position are broken by inserting-valueId order").
func lessElem(pos position.Position, id opid.OpID, otherPos position.Position, otherID opid.OpID) bool {
	switch {
	case pos.Less(otherPos):
		return true
	case otherPos.Less(pos):
		return false
	default:
		return id.Less(otherID)
	}
}
