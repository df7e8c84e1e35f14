package kernel

import (
	"testing"

	"github.com/latticedb/store/pkg/opid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustID(storeID uint32, clock uint64) opid.OpID {
	id, err := opid.New(storeID, clock)
	if err != nil {
		panic(err)
	}
	return id
}

// TestListConcurrentInsertConverges is spec §8's concrete scenario 2: two
// replicas independently insert at index 0; after exchanging patches both
// converge on the same order, whichever the position comparison picks.
func TestListConcurrentInsertConverges(t *testing.T) {
	k := ListKernel{}

	_, _, fragA, _, err := k.ApplyUpdate(k.InitialValue(), k.InitialMetadata(), ListInsert(0, "x"), mustID(1, 1), sequentialMint(1, 1))
	require.NoError(t, err)
	_, _, fragB, _, err := k.ApplyUpdate(k.InitialValue(), k.InitialMetadata(), ListInsert(0, "y"), mustID(2, 1), sequentialMint(2, 1))
	require.NoError(t, err)

	// Replica 1 observes its own insert then the remote one.
	v1, m1, _, err := k.ApplyPatch(k.InitialValue(), k.InitialMetadata(), fragA)
	require.NoError(t, err)
	v1, _, _, err = k.ApplyPatch(v1, m1, fragB)
	require.NoError(t, err)

	// Replica 2 observes them in the opposite order.
	v2, m2, _, err := k.ApplyPatch(k.InitialValue(), k.InitialMetadata(), fragB)
	require.NoError(t, err)
	v2, _, _, err = k.ApplyPatch(v2, m2, fragA)
	require.NoError(t, err)

	assert.Equal(t, v1, v2, "replicas must converge regardless of arrival order")
	assert.ElementsMatch(t, []interface{}{"x", "y"}, v1)
}

func TestListApplyPatchIdempotent(t *testing.T) {
	k := ListKernel{}
	_, _, frag, _, err := k.ApplyUpdate(k.InitialValue(), k.InitialMetadata(), ListPush("a"), mustID(1, 1), sequentialMint(1, 1))
	require.NoError(t, err)

	v1, m1, _, err := k.ApplyPatch(k.InitialValue(), k.InitialMetadata(), frag)
	require.NoError(t, err)
	v2, m2, _, err := k.ApplyPatch(v1, m1, frag)
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Equal(t, m1, m2)
}

func TestListSetIsInsertPlusRemove(t *testing.T) {
	k := ListKernel{}
	value, meta, _, _, err := k.ApplyUpdate(k.InitialValue(), k.InitialMetadata(), ListPush("a"), mustID(1, 1), sequentialMint(1, 1))
	require.NoError(t, err)
	value, meta, _, _, err = k.ApplyUpdate(value, meta, ListPush("b"), mustID(1, 2), sequentialMint(1, 2))
	require.NoError(t, err)

	value, _, frag, _, err := k.ApplyUpdate(value, meta, ListSet(0, "a2"), mustID(1, 3), sequentialMint(1, 3))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a2", "b"}, value)

	lf := frag.(ListFragment)
	require.Len(t, lf.Entries, 2)
	assert.Equal(t, ListOpRemove, lf.Entries[0].Op)
	assert.Equal(t, ListOpInsert, lf.Entries[1].Op)
	assert.NotEqual(t, lf.Entries[0].OpID, lf.Entries[1].OpID, "insert and remove must carry distinct OpIds")
}

func TestListRemoveOfAbsentIDIsIgnored(t *testing.T) {
	k := ListKernel{}
	_, _, frag, _, err := k.ApplyUpdate(k.InitialValue(), k.InitialMetadata(), ListPush("a"), mustID(1, 1), sequentialMint(1, 1))
	require.NoError(t, err)
	v1, m1, _, err := k.ApplyPatch(k.InitialValue(), k.InitialMetadata(), frag)
	require.NoError(t, err)

	// Apply the same remove fragment twice: second time the valueId is
	// already gone and must be silently ignored (tombstone-free).
	removeFrag := ListFragment{Entries: []ListEntry{{OpID: frag.(ListFragment).Entries[0].OpID, Op: ListOpRemove}}}
	v2, m2, _, err := k.ApplyPatch(v1, m1, removeFrag)
	require.NoError(t, err)
	v3, m3, _, err := k.ApplyPatch(v2, m2, removeFrag)
	require.NoError(t, err)
	assert.Equal(t, v2, v3)
	assert.Equal(t, m2, m3)
}

func TestListInverseRoundTripsInsertAndRemove(t *testing.T) {
	k := ListKernel{}
	value, meta, frag, _, err := k.ApplyUpdate(k.InitialValue(), k.InitialMetadata(), ListSplice(0, 0, "a", "b"), mustID(1, 1), sequentialMint(1, 1))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a", "b"}, value)

	inverse, err := k.Inverse(nil, frag, mustID(1, 3), sequentialMint(1, 3))
	require.NoError(t, err)
	undone, undoneMeta, _, err := k.ApplyPatch(value, meta, inverse)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{}, undone)

	// Undoing the undo (redo) must restore the original list.
	redo, err := k.Inverse(nil, inverse, mustID(1, 4), sequentialMint(1, 4))
	require.NoError(t, err)
	restored, _, _, err := k.ApplyPatch(undone, undoneMeta, redo)
	require.NoError(t, err)
	assert.Equal(t, value, restored)
}
