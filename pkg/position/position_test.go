package position

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBetweenOrdering(t *testing.T) {
	p1, err := Between(1, 1, Min, Max)
	require.NoError(t, err)
	assert.True(t, Min.Less(p1))
	assert.True(t, p1.Less(Max))

	p2, err := Between(2, 1, Min, p1)
	require.NoError(t, err)
	assert.True(t, Min.Less(p2))
	assert.True(t, p2.Less(p1))

	p3, err := Between(1, 2, p1, Max)
	require.NoError(t, err)
	assert.True(t, p1.Less(p3))
	assert.True(t, p3.Less(Max))
}

func TestBetweenRejectsBadOrder(t *testing.T) {
	p1, err := Between(1, 1, Min, Max)
	require.NoError(t, err)

	_, err = Between(1, 2, p1, p1)
	assert.Error(t, err)
	assert.True(t, IsOrderError(err))

	_, err = Between(1, 2, Max, Min)
	assert.Error(t, err)
}

func TestBetweenNeverReturnsSentinels(t *testing.T) {
	p, err := Between(1, 1, Min, Max)
	require.NoError(t, err)
	assert.False(t, p.IsMin())
	assert.False(t, p.IsMax())
}

func TestRepeatedAppendBoundsLength(t *testing.T) {
	// Simulate N sequential pushes: always inserting between the
	// previous position and Max. Lengths should stay small in
	// amortized expectation, not grow linearly with N.
	cur := Min
	var totalLen int
	const n = 500
	for i := 0; i < n; i++ {
		next, err := Between(1, uint64(i+1), cur, Max)
		require.NoError(t, err)
		assert.True(t, cur.Less(next))
		totalLen += len(next.Path)
		cur = next
	}
	avg := float64(totalLen) / float64(n)
	assert.Lessf(t, avg, 6.0, "average generated path length should stay small across %d sequential appends, got avg=%f", n, avg)
}

func TestBetweenDensifiesArbitrarily(t *testing.T) {
	low, high := Min, Max
	for i := 0; i < 64; i++ {
		mid, err := Between(1, uint64(i+1), low, high)
		require.NoError(t, err)
		assert.True(t, low.Less(mid))
		assert.True(t, mid.Less(high))
		high = mid
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p, err := Between(7, 3, Min, Max)
	require.NoError(t, err)

	decoded, err := Decode(Encode(p))
	require.NoError(t, err)
	assert.Equal(t, p, decoded)

	decodedMax, err := Decode(Encode(Max))
	require.NoError(t, err)
	assert.Equal(t, Max, decodedMax)
}

