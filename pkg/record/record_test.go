package record

import (
	"testing"

	"github.com/latticedb/store/pkg/kernel"
	"github.com/latticedb/store/pkg/opid"
	"github.com/latticedb/store/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noteSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sch, err := schema.New("note", []schema.Field{
		{Name: "id", Kind: schema.KindPrimaryKey},
		{Name: "title", Kind: schema.KindValue},
		{Name: "tags", Kind: schema.KindList},
	})
	require.NoError(t, err)
	return sch
}

func TestNewRecordSeedsDefaults(t *testing.T) {
	kernels := kernel.NewRegistry()
	r, err := newRecord(noteSchema(t), "r1", kernels)
	require.NoError(t, err)

	id, err := r.Get("id")
	require.NoError(t, err)
	assert.Equal(t, "r1", id)

	title, err := r.Get("title")
	require.NoError(t, err)
	assert.Nil(t, title)
}

func TestApplyLocalUpdateRejectsPrimaryKey(t *testing.T) {
	kernels := kernel.NewRegistry()
	r, err := newRecord(noteSchema(t), "r1", kernels)
	require.NoError(t, err)

	primary, _ := opid.New(1, 1)
	_, _, err = r.ApplyLocalUpdate(kernels, "id", "r2", primary, func() (opid.OpID, error) { return primary, nil })
	assert.Error(t, err)
}

func TestApplyLocalUpdateThenPatchFragmentRoundTrips(t *testing.T) {
	kernels := kernel.NewRegistry()
	local, err := newRecord(noteSchema(t), "r1", kernels)
	require.NoError(t, err)
	remote, err := newRecord(noteSchema(t), "r1", kernels)
	require.NoError(t, err)

	primary, _ := opid.New(1, 1)
	frag, change, err := local.ApplyLocalUpdate(kernels, "title", "hello", primary, func() (opid.OpID, error) { return primary, nil })
	require.NoError(t, err)
	assert.Equal(t, kernel.Change{Previous: nil, Current: "hello"}, change)

	_, err = remote.ApplyPatchFragment(kernels, "title", frag)
	require.NoError(t, err)

	remoteTitle, err := remote.Get("title")
	require.NoError(t, err)
	assert.Equal(t, "hello", remoteTitle)
}
