// Package schema describes the immutable shape of a replicated table: its
// id and the ordered set of fields each record carries.
package schema

import "fmt"

// FieldKind is the closed set of field kinds a schema field may declare.
type FieldKind string

const (
	KindPrimaryKey FieldKind = "primarykey"
	KindValue      FieldKind = "value"
	KindList       FieldKind = "list"
	KindMap        FieldKind = "map"
	KindText       FieldKind = "text"
)

// Field describes one named field of a schema.
type Field struct {
	Name string
	Kind FieldKind
}

// Schema is an immutable description of a table: an id plus an ordered
// mapping from field name to field kind. Exactly one field must be a
// PrimaryKey field.
type Schema struct {
	ID     string
	Fields []Field

	byName map[string]Field
	pkName string
}

// New validates and constructs a Schema. fields must contain exactly one
// PrimaryKey field and no duplicate names.
func New(id string, fields []Field) (*Schema, error) {
	if id == "" {
		return nil, fmt.Errorf("schema: id must not be empty")
	}
	byName := make(map[string]Field, len(fields))
	pkName := ""
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("schema %s: field name must not be empty", id)
		}
		if _, dup := byName[f.Name]; dup {
			return nil, fmt.Errorf("schema %s: duplicate field %q", id, f.Name)
		}
		switch f.Kind {
		case KindPrimaryKey, KindValue, KindList, KindMap, KindText:
		default:
			return nil, fmt.Errorf("schema %s: field %q has unknown kind %q", id, f.Name, f.Kind)
		}
		if f.Kind == KindPrimaryKey {
			if pkName != "" {
				return nil, fmt.Errorf("schema %s: more than one primary key field (%q, %q)", id, pkName, f.Name)
			}
			pkName = f.Name
		}
		byName[f.Name] = f
	}
	if pkName == "" {
		return nil, fmt.Errorf("schema %s: missing a PrimaryKey field", id)
	}
	return &Schema{ID: id, Fields: fields, byName: byName, pkName: pkName}, nil
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (Field, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// PrimaryKeyField returns the name of the schema's PrimaryKey field.
func (s *Schema) PrimaryKeyField() string { return s.pkName }

// HasField reports whether name is a declared field of s.
func (s *Schema) HasField(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// Registry is an immutable lookup of schemas by id, used by the store to
// validate incoming patches and by kernels to decode patch fragments.
type Registry struct {
	schemas map[string]*Schema
}

// NewRegistry builds a Registry from the given schemas. Duplicate schema
// ids are rejected.
func NewRegistry(schemas ...*Schema) (*Registry, error) {
	r := &Registry{schemas: make(map[string]*Schema, len(schemas))}
	for _, s := range schemas {
		if _, dup := r.schemas[s.ID]; dup {
			return nil, fmt.Errorf("schema registry: duplicate schema id %q", s.ID)
		}
		r.schemas[s.ID] = s
	}
	return r, nil
}

// Get returns the schema with the given id.
func (r *Registry) Get(id string) (*Schema, bool) {
	s, ok := r.schemas[id]
	return s, ok
}

// IDs returns every registered schema id.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.schemas))
	for id := range r.schemas {
		ids = append(ids, id)
	}
	return ids
}
