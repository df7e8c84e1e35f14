package store

import (
	"github.com/latticedb/store/pkg/adapter"
	"github.com/latticedb/store/pkg/schema"
	"github.com/latticedb/store/pkg/storeerr"
)

// CreateSnapshot renders every table's current (value, metadata) content
// as an opaque Checkpoint, the same shape a ServerAdapter hands back as
// part of a PatchHistory bootstrap (spec §4.7).
func (s *Store) CreateSnapshot() adapter.Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(adapter.Checkpoint, len(s.tables))
	for schemaID, t := range s.tables {
		records := make(map[string]map[string]adapter.FieldSnapshot, t.Len())
		for _, r := range t.Iter() {
			fields := make(map[string]adapter.FieldSnapshot, len(t.Schema().Fields))
			for _, f := range t.Schema().Fields {
				if f.Kind == schema.KindPrimaryKey {
					continue
				}
				v, _ := r.Get(f.Name)
				m, _ := r.Meta(f.Name)
				fields[f.Name] = adapter.FieldSnapshot{Value: v, Metadata: m}
			}
			records[r.ID()] = fields
		}
		cp[schemaID] = records
	}
	return cp
}

// RestoreSnapshot installs cp as the store's entire state, overwriting
// whatever the tables currently hold. Must be called while Idle.
func (s *Store) RestoreSnapshot(cp adapter.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateInTransaction {
		return storeerr.ErrNestedTransaction
	}
	for _, t := range s.tables {
		for _, r := range t.Iter() {
			t.Delete(r.ID())
		}
	}
	s.restoreCheckpointLocked(cp)
	return nil
}
