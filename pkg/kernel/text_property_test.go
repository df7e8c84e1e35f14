//go:build property

package kernel

import (
	"math/rand"
	"testing"

	"pgregory.net/rapid"

	"github.com/latticedb/store/pkg/opid"
	"github.com/latticedb/store/pkg/position"
)

// Property-based tests for TextKernel's merge contract (spec §4.3 "Text:
// the same structure as List over Unicode scalar values").
// Use build tag 'property' to run these tests separately:
// go test -tags=property ./pkg/kernel
//
// Each fragment here inserts a single rune, so every entry's id is its own
// run's first (and only) id and reconstructInsertIDs is a no-op — the same
// reasoning as ListKernel's property tests applies: insert ordering is
// purely a function of (Pos, ValueID), so a batch of distinct-OpId,
// single-rune inserts converges regardless of delivery order.

func randomTextInsert(t *rapid.T, clock uint64) TextFragment {
	storeID := uint32(rapid.IntRange(1, 1000).Draw(t, "storeID"))
	id, err := opid.New(storeID, clock)
	if err != nil {
		id = opid.OpID{Clock: clock, StoreID: 1}
	}
	pos, err := position.Between(id.StoreID, id.Clock, position.Min, position.Max)
	if err != nil {
		pos = position.Max
	}
	posCopy := pos
	r := rune('a' + rapid.IntRange(0, 25).Draw(t, "rune"))
	return TextFragment{Entries: []TextEntry{{
		OpID: id,
		Op:   TextOpInsert,
		Pos:  &posCopy,
		Text: string(r),
	}}}
}

func applyTextFragments(frags []TextFragment) string {
	k := TextKernel{}
	value := k.InitialValue()
	meta := k.InitialMetadata()
	for _, f := range frags {
		var err error
		value, meta, _, err = k.ApplyPatch(value, meta, f)
		if err != nil {
			panic(err)
		}
	}
	return value.(string)
}

func TestPropertyTextInsertApplyPatchIsCommutative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 20).Draw(t, "n")
		frags := make([]TextFragment, n)
		for i := range frags {
			frags[i] = randomTextInsert(t, uint64(i+1))
		}

		inOrder := applyTextFragments(frags)

		shuffled := append([]TextFragment(nil), frags...)
		rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		outOfOrder := applyTextFragments(shuffled)

		if inOrder != outOfOrder {
			t.Fatalf("text diverged by delivery order: in-order=%q shuffled=%q", inOrder, outOfOrder)
		}
	})
}

func TestPropertyTextApplyPatchIsIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		clock := uint64(rapid.IntRange(1, 1000).Draw(t, "clock"))
		frag := randomTextInsert(t, clock)

		once := applyTextFragments([]TextFragment{frag})
		twice := applyTextFragments([]TextFragment{frag, frag})

		if once != twice {
			t.Fatalf("replaying the same fragment changed the text: once=%q twice=%q", once, twice)
		}
	})
}
