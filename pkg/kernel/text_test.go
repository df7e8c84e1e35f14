package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTextConcurrentInsertPreservesBoth is spec §8's concrete scenario 3:
// two replicas both holding "hello" each insert a single character at
// index 2; after exchange both converge on the same 7-character string
// containing both insertions.
func TestTextConcurrentInsertPreservesBoth(t *testing.T) {
	k := TextKernel{}
	baseVal, baseMeta, _, _, err := k.ApplyUpdate(k.InitialValue(), k.InitialMetadata(), TextAppend("hello"), mustID(9, 1), sequentialMint(9, 1))
	require.NoError(t, err)

	_, _, fragA, _, err := k.ApplyUpdate(baseVal, baseMeta, TextInsert(2, "A"), mustID(1, 1), sequentialMint(1, 1))
	require.NoError(t, err)
	_, _, fragB, _, err := k.ApplyUpdate(baseVal, baseMeta, TextInsert(2, "B"), mustID(2, 1), sequentialMint(2, 1))
	require.NoError(t, err)

	r1, m1, _, err := k.ApplyPatch(baseVal, baseMeta, fragA)
	require.NoError(t, err)
	r1, _, _, err = k.ApplyPatch(r1, m1, fragB)
	require.NoError(t, err)

	r2, m2, _, err := k.ApplyPatch(baseVal, baseMeta, fragB)
	require.NoError(t, err)
	r2, _, _, err = k.ApplyPatch(r2, m2, fragA)
	require.NoError(t, err)

	assert.Equal(t, r1, r2, "replicas must converge regardless of arrival order")
	assert.Len(t, r1.(string), 7)
	assert.Contains(t, r1.(string), "A")
	assert.Contains(t, r1.(string), "B")
}

func TestTextRunInsertReconstructsPositions(t *testing.T) {
	k := TextKernel{}
	value, meta, frag, _, err := k.ApplyUpdate(k.InitialValue(), k.InitialMetadata(), TextAppend("abc"), mustID(1, 1), sequentialMint(1, 1))
	require.NoError(t, err)
	assert.Equal(t, "abc", value)
	assert.Len(t, meta.(TextMeta).Elems, 3)

	tf := frag.(TextFragment)
	require.Len(t, tf.Entries, 1, "a contiguous run must coalesce into a single entry")
	assert.Equal(t, "abc", tf.Entries[0].Text)

	v2, m2, _, err := k.ApplyPatch(k.InitialValue(), k.InitialMetadata(), frag)
	require.NoError(t, err)
	assert.Equal(t, "abc", v2)
	assert.Equal(t, meta.(TextMeta).Elems, m2.(TextMeta).Elems, "receiver must reconstruct identical per-rune ids and positions")
}

func TestTextApplyPatchIdempotent(t *testing.T) {
	k := TextKernel{}
	_, _, frag, _, err := k.ApplyUpdate(k.InitialValue(), k.InitialMetadata(), TextAppend("xyz"), mustID(1, 1), sequentialMint(1, 1))
	require.NoError(t, err)

	v1, m1, _, err := k.ApplyPatch(k.InitialValue(), k.InitialMetadata(), frag)
	require.NoError(t, err)
	v2, m2, _, err := k.ApplyPatch(v1, m1, frag)
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Equal(t, m1, m2)
}

func TestTextInverseRoundTripsInsertAndRemove(t *testing.T) {
	k := TextKernel{}
	value, meta, frag, _, err := k.ApplyUpdate(k.InitialValue(), k.InitialMetadata(), TextAppend("abc"), mustID(1, 1), sequentialMint(1, 1))
	require.NoError(t, err)

	inverse, err := k.Inverse(nil, frag, mustID(1, 5), sequentialMint(1, 5))
	require.NoError(t, err)
	undone, undoneMeta, _, err := k.ApplyPatch(value, meta, inverse)
	require.NoError(t, err)
	assert.Equal(t, "", undone)

	redo, err := k.Inverse(nil, inverse, mustID(1, 6), sequentialMint(1, 6))
	require.NoError(t, err)
	restored, _, _, err := k.ApplyPatch(undone, undoneMeta, redo)
	require.NoError(t, err)
	assert.Equal(t, "abc", restored)
}
