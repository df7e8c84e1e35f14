package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAcceptsValidSchema(t *testing.T) {
	s, err := New("todo", []Field{
		{Name: "id", Kind: KindPrimaryKey},
		{Name: "title", Kind: KindValue},
		{Name: "tags", Kind: KindList},
		{Name: "meta", Kind: KindMap},
		{Name: "body", Kind: KindText},
	})
	require.NoError(t, err)
	assert.Equal(t, "id", s.PrimaryKeyField())
	assert.True(t, s.HasField("title"))
	assert.False(t, s.HasField("missing"))

	f, ok := s.Field("tags")
	require.True(t, ok)
	assert.Equal(t, KindList, f.Kind)
}

func TestNewRejectsEmptyID(t *testing.T) {
	_, err := New("", []Field{{Name: "id", Kind: KindPrimaryKey}})
	assert.Error(t, err)
}

func TestNewRejectsEmptyFieldName(t *testing.T) {
	_, err := New("todo", []Field{
		{Name: "id", Kind: KindPrimaryKey},
		{Name: "", Kind: KindValue},
	})
	assert.Error(t, err)
}

func TestNewRejectsDuplicateFieldName(t *testing.T) {
	_, err := New("todo", []Field{
		{Name: "id", Kind: KindPrimaryKey},
		{Name: "title", Kind: KindValue},
		{Name: "title", Kind: KindText},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate field")
}

func TestNewRejectsMissingPrimaryKey(t *testing.T) {
	_, err := New("todo", []Field{
		{Name: "title", Kind: KindValue},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing a PrimaryKey")
}

func TestNewRejectsMoreThanOnePrimaryKey(t *testing.T) {
	_, err := New("todo", []Field{
		{Name: "id", Kind: KindPrimaryKey},
		{Name: "altID", Kind: KindPrimaryKey},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "more than one primary key")
}

func TestNewRejectsUnknownFieldKind(t *testing.T) {
	_, err := New("todo", []Field{
		{Name: "id", Kind: KindPrimaryKey},
		{Name: "title", Kind: FieldKind("bogus")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestNewRejectsEmptyFieldSetAsMissingPrimaryKey(t *testing.T) {
	_, err := New("todo", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing a PrimaryKey")
}

func TestFieldLookupMissReturnsFalse(t *testing.T) {
	s, err := New("todo", []Field{{Name: "id", Kind: KindPrimaryKey}})
	require.NoError(t, err)

	_, ok := s.Field("nope")
	assert.False(t, ok)
}

func TestNewRegistryAcceptsDistinctSchemaIDs(t *testing.T) {
	todos, err := New("todo", []Field{{Name: "id", Kind: KindPrimaryKey}})
	require.NoError(t, err)
	notes, err := New("note", []Field{{Name: "id", Kind: KindPrimaryKey}})
	require.NoError(t, err)

	r, err := NewRegistry(todos, notes)
	require.NoError(t, err)

	got, ok := r.Get("todo")
	require.True(t, ok)
	assert.Same(t, todos, got)

	assert.ElementsMatch(t, []string{"todo", "note"}, r.IDs())

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestNewRegistryRejectsDuplicateSchemaID(t *testing.T) {
	a, err := New("todo", []Field{{Name: "id", Kind: KindPrimaryKey}})
	require.NoError(t, err)
	b, err := New("todo", []Field{{Name: "id", Kind: KindPrimaryKey}, {Name: "title", Kind: KindValue}})
	require.NoError(t, err)

	_, err = NewRegistry(a, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate schema id")
}

func TestNewRegistryWithNoSchemasIsEmpty(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)
	assert.Empty(t, r.IDs())
}
