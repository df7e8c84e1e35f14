package kernel

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/latticedb/store/pkg/opid"
	"github.com/latticedb/store/pkg/position"
	"github.com/latticedb/store/pkg/schema"
)

// TextOp tags a TextEntry as an insertion run or a removal.
type TextOp string

const (
	TextOpInsert TextOp = "insert"
	TextOpRemove TextOp = "remove"
)

// textElem is one live rune of a Text field, structurally identical to
// listElem but over Unicode scalar values rather than arbitrary JSON values
// (spec §4.3 "Text: the same structure as List over Unicode scalar values").
type textElem struct {
	ValueID opid.OpID
	Pos     position.Position
	Char    rune
}

// TextMeta is a Text field's metadata: the live runes in position order.
type TextMeta struct {
	Elems []textElem
}

// TextEntry is one operation within a TextFragment. Insert entries
// coalesce a whole contiguous run into one entry: OpID/Pos describe only
// the run's first rune, and a receiver reconstructs the remaining runes'
// ids and positions deterministically (id.Clock+i, position.Extend
// chained), per spec §4.3's "contiguous insertions at monotonically
// advancing positions coalesce into single patch run entries to keep patch
// size proportional to net edits". Remove entries instead list every
// removed valueId explicitly, since removed runes need not have been
// inserted as a contiguous run in the first place.
type TextEntry struct {
	OpID opid.OpID          `json:"opId"`
	Op   TextOp             `json:"op"`
	Pos  *position.Position `json:"pos,omitempty"`
	Text string             `json:"text,omitempty"`
	IDs  []opid.OpID        `json:"ids,omitempty"`

	// Removed carries the position and character each removed valueId
	// held, one per entry in IDs. ApplyPatch's remove case never reads
	// it (IDs alone is enough to locate and delete), but Inverse needs
	// it to reinsert exactly what a remove entry took out.
	Removed []removedRune `json:"removed,omitempty"`
}

// removedRune is one element of TextEntry.Removed.
type removedRune struct {
	ID   opid.OpID         `json:"id"`
	Pos  position.Position `json:"pos"`
	Char string            `json:"char"`
}

// TextFragment is the wire/merge fragment for a Text field.
type TextFragment struct {
	Entries []TextEntry `json:"entries"`
}

func (TextFragment) FieldKind() schema.FieldKind { return schema.KindText }

// TextUpdate is the local update input, covering spec §4.3's
// splice/insert/append/set/clear family via a single splice primitive.
type TextUpdate struct {
	Index       int
	RemoveCount int
	Text        string
}

func TextSplice(index, removeCount int, text string) TextUpdate {
	return TextUpdate{Index: index, RemoveCount: removeCount, Text: text}
}

func TextInsert(index int, text string) TextUpdate {
	return TextUpdate{Index: index, Text: text}
}

func TextAppend(text string) TextUpdate {
	return TextUpdate{Index: -1, Text: text}
}

func TextSet(length int, text string) TextUpdate {
	return TextUpdate{Index: 0, RemoveCount: length, Text: text}
}

func TextClear(length int) TextUpdate {
	return TextUpdate{Index: 0, RemoveCount: length}
}

// TextKernel implements collaborative text: spec §4.3's Text kernel.
type TextKernel struct{}

func (TextKernel) Kind() schema.FieldKind { return schema.KindText }

func (TextKernel) InitialValue() interface{} { return "" }

func (TextKernel) InitialMetadata() interface{} { return TextMeta{} }

func (TextKernel) ApplyUpdate(value, meta interface{}, update interface{}, primary opid.OpID, mint Minter) (interface{}, interface{}, Fragment, Change, error) {
	tu, ok := update.(TextUpdate)
	if !ok {
		return nil, nil, nil, Change{}, fmt.Errorf("kernel/text: unexpected update type %T", update)
	}
	oldVal, _ := value.(string)
	oldMeta, _ := meta.(TextMeta)

	elems := append([]textElem(nil), oldMeta.Elems...)
	index := tu.Index
	if index < 0 {
		index = len(elems)
	}
	if index > len(elems) {
		index = len(elems)
	}
	removeCount := tu.RemoveCount
	if index+removeCount > len(elems) {
		removeCount = len(elems) - index
	}

	var entries []TextEntry
	removed := elems[index : index+removeCount]
	if len(removed) > 0 {
		ids := make([]opid.OpID, len(removed))
		removedRunes := make([]removedRune, len(removed))
		for i, e := range removed {
			ids[i] = e.ValueID
			removedRunes[i] = removedRune{ID: e.ValueID, Pos: e.Pos, Char: string(e.Char)}
		}
		entries = append(entries, TextEntry{OpID: ids[0], Op: TextOpRemove, IDs: ids, Removed: removedRunes})
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

	runes := []rune(tu.Text)
	inserted := make([]textElem, 0, len(runes))
	if len(runes) > 0 {
		firstID, err := mint()
		if err != nil {
			return nil, nil, nil, Change{}, fmt.Errorf("kernel/text: mint insert id: %w", err)
		}
		firstPos, err := position.Between(firstID.StoreID, firstID.Clock, low, high)
		if err != nil {
			return nil, nil, nil, Change{}, fmt.Errorf("kernel/text: generate position: %w", err)
		}
		inserted = append(inserted, textElem{ValueID: firstID, Pos: firstPos, Char: runes[0]})

		curPos := firstPos
		for _, r := range runes[1:] {
			id, err := mint()
			if err != nil {
				return nil, nil, nil, Change{}, fmt.Errorf("kernel/text: mint insert id: %w", err)
			}
			pos := position.Extend(curPos, id.StoreID, id.Clock)
			inserted = append(inserted, textElem{ValueID: id, Pos: pos, Char: r})
			curPos = pos
		}
		entries = append(entries, TextEntry{OpID: firstID, Op: TextOpInsert, Pos: &firstPos, Text: tu.Text})
	}

	newElems := make([]textElem, 0, len(before)+len(inserted)+len(after))
	newElems = append(newElems, before...)
	newElems = append(newElems, inserted...)
	newElems = append(newElems, after...)

	newVal := materializeText(newElems)
	newMeta := TextMeta{Elems: newElems}
	frag := TextFragment{Entries: entries}
	change := Change{Previous: oldVal, Current: newVal}
	return newVal, newMeta, frag, change, nil
}

func (TextKernel) ApplyPatch(value, meta interface{}, frag Fragment) (interface{}, interface{}, Change, error) {
	tf, ok := frag.(TextFragment)
	if !ok {
		return nil, nil, Change{}, fmt.Errorf("kernel/text: unexpected fragment type %T", frag)
	}
	oldVal, _ := value.(string)
	oldMeta, _ := meta.(TextMeta)
	elems := append([]textElem(nil), oldMeta.Elems...)

	for _, e := range tf.Entries {
		switch e.Op {
		case TextOpInsert:
			if e.Pos == nil {
				return nil, nil, Change{}, fmt.Errorf("kernel/text: insert entry missing position")
			}
			runes := []rune(e.Text)
			ids := reconstructInsertIDs(e)
			curPos := *e.Pos
			for i, r := range runes {
				id, pos := ids[i], curPos
				if i > 0 {
					pos = position.Extend(curPos, id.StoreID, id.Clock)
				}
				if indexOfTextID(elems, id) < 0 {
					idx := sort.Search(len(elems), func(j int) bool {
						return !lessElem(elems[j].Pos, elems[j].ValueID, pos, id)
					})
					elems = append(elems, textElem{})
					copy(elems[idx+1:], elems[idx:])
					elems[idx] = textElem{ValueID: id, Pos: pos, Char: r}
				}
				curPos = pos
			}
		case TextOpRemove:
			for _, id := range e.IDs {
				if i := indexOfTextID(elems, id); i >= 0 {
					elems = append(elems[:i], elems[i+1:]...)
				}
			}
		default:
			return nil, nil, Change{}, fmt.Errorf("kernel/text: unknown entry op %q", e.Op)
		}
	}

	newVal := materializeText(elems)
	newMeta := TextMeta{Elems: elems}
	change := Change{Previous: oldVal, Current: newVal}
	return newVal, newMeta, change, nil
}

func (TextKernel) Merge(a, b Fragment) (Fragment, error) {
	af, ok := a.(TextFragment)
	if !ok {
		return nil, fmt.Errorf("kernel/text: unexpected fragment type %T", a)
	}
	bf, ok := b.(TextFragment)
	if !ok {
		return nil, fmt.Errorf("kernel/text: unexpected fragment type %T", b)
	}
	entries := make([]TextEntry, 0, len(af.Entries)+len(bf.Entries))
	entries = append(entries, af.Entries...)
	entries = append(entries, bf.Entries...)
	return TextFragment{Entries: entries}, nil
}

// Inverse flips each entry: an insert run becomes a remove of the ids that
// run would have produced, carrying each rune's position and character in
// Removed; a remove becomes one insert per removed rune, at its original
// position (spec §4.6 "Text", symmetric with List's inverse).
func (TextKernel) Inverse(preValue interface{}, frag Fragment, primary opid.OpID, mint Minter) (Fragment, error) {
	tf, ok := frag.(TextFragment)
	if !ok {
		return nil, fmt.Errorf("kernel/text: unexpected fragment type %T", frag)
	}
	var inverted []TextEntry
	for _, e := range tf.Entries {
		switch e.Op {
		case TextOpInsert:
			if e.Pos == nil {
				return nil, fmt.Errorf("kernel/text: insert entry missing position")
			}
			ids := reconstructInsertIDs(e)
			removed := make([]removedRune, len(ids))
			pos := *e.Pos
			for i, r := range []rune(e.Text) {
				if i > 0 {
					pos = position.Extend(pos, ids[i].StoreID, ids[i].Clock)
				}
				removed[i] = removedRune{ID: ids[i], Pos: pos, Char: string(r)}
			}
			inverted = append(inverted, TextEntry{OpID: ids[0], Op: TextOpRemove, IDs: ids, Removed: removed})
		case TextOpRemove:
			for _, r := range e.Removed {
				posCopy := r.Pos
				inverted = append(inverted, TextEntry{OpID: r.ID, Op: TextOpInsert, Pos: &posCopy, Text: r.Char})
			}
		default:
			return nil, fmt.Errorf("kernel/text: unknown entry op %q", e.Op)
		}
	}
	return TextFragment{Entries: inverted}, nil
}

// reconstructInsertIDs derives the per-rune valueIds a coalesced insert run
// produced, following the same id.Clock+i / position.Extend scheme used
// when the run was first generated (spec §4.3's run-coalescing rule).
func reconstructInsertIDs(e TextEntry) []opid.OpID {
	n := len([]rune(e.Text))
	ids := make([]opid.OpID, n)
	for i := 0; i < n; i++ {
		if i == 0 {
			ids[i] = e.OpID
			continue
		}
		ids[i] = opid.OpID{Clock: e.OpID.Clock + uint64(i), StoreID: e.OpID.StoreID}
	}
	return ids
}

func (TextKernel) DecodeFragment(data json.RawMessage) (Fragment, error) {
	var tf TextFragment
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("kernel/text: decode fragment: %w", err)
	}
	return tf, nil
}

func materializeText(elems []textElem) string {
	var b strings.Builder
	b.Grow(len(elems))
	for _, e := range elems {
		b.WriteRune(e.Char)
	}
	return b.String()
}

func indexOfTextID(elems []textElem, id opid.OpID) int {
	for i, e := range elems {
		if e.ValueID == id {
			return i
		}
	}
	return -1
}
