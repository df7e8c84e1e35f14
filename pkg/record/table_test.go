package record

import (
	"testing"

	"github.com/latticedb/store/pkg/kernel"
	"github.com/latticedb/store/pkg/storeerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableCreateRejectsDuplicate(t *testing.T) {
	tbl := NewTable(noteSchema(t), kernel.NewRegistry())
	_, err := tbl.Create("r1")
	require.NoError(t, err)

	_, err = tbl.Create("r1")
	assert.ErrorIs(t, err, storeerr.ErrDuplicateRecord)
}

func TestTableIterIsSortedByRecordID(t *testing.T) {
	tbl := NewTable(noteSchema(t), kernel.NewRegistry())
	for _, id := range []string{"c", "a", "b"} {
		_, err := tbl.Create(id)
		require.NoError(t, err)
	}
	var ids []string
	for _, r := range tbl.Iter() {
		ids = append(ids, r.ID())
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestTableDeleteIsIdempotent(t *testing.T) {
	tbl := NewTable(noteSchema(t), kernel.NewRegistry())
	_, err := tbl.Create("r1")
	require.NoError(t, err)

	tbl.Delete("r1")
	assert.Equal(t, 0, tbl.Len())
	tbl.Delete("r1") // no-op, must not panic
	assert.Equal(t, 0, tbl.Len())
}

func TestTableCreateIfAbsentIsIdempotent(t *testing.T) {
	tbl := NewTable(noteSchema(t), kernel.NewRegistry())
	r1, err := tbl.CreateIfAbsent("r1")
	require.NoError(t, err)
	r2, err := tbl.CreateIfAbsent("r1")
	require.NoError(t, err)
	assert.Same(t, r1, r2)
}
