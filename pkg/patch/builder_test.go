package patch

import (
	"testing"

	"github.com/latticedb/store/pkg/kernel"
	"github.com/latticedb/store/pkg/opid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderMergesRepeatedFieldWrites(t *testing.T) {
	b := NewBuilder()
	k := kernel.ValueKernel{}
	id1, _ := opid.New(1, 1)
	id2, _ := opid.New(1, 1)

	require.NoError(t, b.Record("note", "r1", "title", kernel.ValueFragment{OpID: id1, Value: "a"}, k))
	require.NoError(t, b.Record("note", "r1", "title", kernel.ValueFragment{OpID: id2, Value: "b"}, k))

	assert.Equal(t, kernel.ValueFragment{OpID: id2, Value: "b"}, b.Content()["note"]["r1"]["title"])
}

func TestBuilderEmptyAndReset(t *testing.T) {
	b := NewBuilder()
	assert.True(t, b.Empty())

	id, _ := opid.New(1, 1)
	require.NoError(t, b.Record("note", "r1", "title", kernel.ValueFragment{OpID: id, Value: "a"}, kernel.ValueKernel{}))
	assert.False(t, b.Empty())

	b.Reset()
	assert.True(t, b.Empty())
}
