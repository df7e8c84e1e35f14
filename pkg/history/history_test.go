package history_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticedb/store/pkg/adapter/memadapter"
	"github.com/latticedb/store/pkg/history"
	"github.com/latticedb/store/pkg/schema"
	"github.com/latticedb/store/pkg/store"
	"github.com/latticedb/store/pkg/storeconfig"
	"github.com/latticedb/store/pkg/storeerr"
)

const (
	testEventualTimeout = time.Second
	testEventualTick    = time.Millisecond
)

func noteSchema(t *testing.T) *schema.Registry {
	t.Helper()
	sch, err := schema.New("note", []schema.Field{
		{Name: "id", Kind: schema.KindPrimaryKey},
		{Name: "title", Kind: schema.KindValue},
		{Name: "tags", Kind: schema.KindList},
		{Name: "meta", Kind: schema.KindMap},
		{Name: "body", Kind: schema.KindText},
	})
	require.NoError(t, err)
	reg, err := schema.NewRegistry(sch)
	require.NoError(t, err)
	return reg
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.NewStore(noteSchema(t))
	hub := memadapter.NewHub()
	_, err := s.Open(context.Background(), hub.NewAdapter(storeconfig.NewAdapterOptions()))
	require.NoError(t, err)
	return s
}

func TestUndoWithNothingToUndoFails(t *testing.T) {
	s := newStore(t)
	h := history.New(s)
	assert.ErrorIs(t, h.Undo(), storeerr.ErrNothingToUndo)
}

func TestRedoWithNothingToRedoFails(t *testing.T) {
	s := newStore(t)
	h := history.New(s)
	assert.ErrorIs(t, h.Redo(), storeerr.ErrNothingToRedo)
}

func TestUndoRedoValueField(t *testing.T) {
	s := newStore(t)
	h := history.New(s)

	require.NoError(t, s.Transact(func(txn *store.Txn) error {
		return txn.Create("note", "n1")
	}))
	require.NoError(t, s.Transact(func(txn *store.Txn) error {
		return txn.Update("note", "n1", "title", "hello")
	}))

	require.NoError(t, h.Undo())
	v, err := s.FieldValue("note", "n1", "title")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, h.Redo())
	v, err = s.FieldValue("note", "n1", "title")
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

func TestUndoCreationDeletesRecord(t *testing.T) {
	s := newStore(t)
	h := history.New(s)

	require.NoError(t, s.Transact(func(txn *store.Txn) error {
		if err := txn.Create("note", "n1"); err != nil {
			return err
		}
		return txn.Update("note", "n1", "title", "hello")
	}))

	require.NoError(t, h.Undo())
	_, err := s.FieldValue("note", "n1", "title")
	assert.ErrorIs(t, err, storeerr.ErrRecordNotFound)

	require.NoError(t, h.Redo())
	v, err := s.FieldValue("note", "n1", "title")
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

func TestUndoRemovalRecreatesRecordWithPreImage(t *testing.T) {
	s := newStore(t)
	h := history.New(s)

	require.NoError(t, s.Transact(func(txn *store.Txn) error {
		if err := txn.Create("note", "n1"); err != nil {
			return err
		}
		return txn.Update("note", "n1", "title", "hello")
	}))
	require.NoError(t, s.Transact(func(txn *store.Txn) error {
		return txn.Delete("note", "n1")
	}))

	require.NoError(t, h.Undo())
	v, err := s.FieldValue("note", "n1", "title")
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

func TestUndoOfCreationGarbageCollectsRecordEvenAfterRemoteEdit(t *testing.T) {
	// spec §8 scenario 4: create record R on A with title="v0", broadcast.
	// B then sets title="v1" and broadcasts. Undoing the original creation
	// on A removes R entirely — the v1 register is garbage collected with
	// the record, not preserved — and the removal propagates to B too.
	hub := memadapter.NewHub()
	a := store.NewStore(noteSchema(t))
	_, err := a.Open(context.Background(), hub.NewAdapter(storeconfig.NewAdapterOptions()))
	require.NoError(t, err)
	ha := history.New(a)

	b := store.NewStore(noteSchema(t))
	_, err = b.Open(context.Background(), hub.NewAdapter(storeconfig.NewAdapterOptions()))
	require.NoError(t, err)

	require.NoError(t, a.Transact(func(txn *store.Txn) error {
		if err := txn.Create("note", "shared"); err != nil {
			return err
		}
		return txn.Update("note", "shared", "title", "v0")
	}))
	require.Eventually(t, func() bool {
		_, err := b.FieldValue("note", "shared", "title")
		return err == nil
	}, testEventualTimeout, testEventualTick)

	require.NoError(t, b.Transact(func(txn *store.Txn) error {
		return txn.Update("note", "shared", "title", "v1")
	}))
	require.Eventually(t, func() bool {
		v, err := a.FieldValue("note", "shared", "title")
		return err == nil && v == "v1"
	}, testEventualTimeout, testEventualTick)

	require.NoError(t, ha.Undo())

	_, err = a.FieldValue("note", "shared", "title")
	assert.ErrorIs(t, err, storeerr.ErrRecordNotFound, "undoing the creation must remove the record even though a remote edit landed on it")

	require.Eventually(t, func() bool {
		_, err := b.FieldValue("note", "shared", "title")
		return err != nil
	}, testEventualTimeout, testEventualTick, "the removal must propagate to other replicas")
}

func TestMaxUndoDepthBoundsStack(t *testing.T) {
	s := newStore(t)
	h := history.New(s, storeconfig.WithMaxUndoDepth(2))

	require.NoError(t, s.Transact(func(txn *store.Txn) error { return txn.Create("note", "n1") }))
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Transact(func(txn *store.Txn) error {
			return txn.Update("note", "n1", "title", "v")
		}))
	}

	assert.True(t, h.CanUndo())
	require.NoError(t, h.Undo())
	require.NoError(t, h.Undo())
	assert.ErrorIs(t, h.Undo(), storeerr.ErrNothingToUndo)
}
