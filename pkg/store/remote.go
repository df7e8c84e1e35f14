package store

import (
	"github.com/latticedb/store/pkg/adapter"
	"github.com/latticedb/store/pkg/change"
	"github.com/latticedb/store/pkg/logging"
	"github.com/latticedb/store/pkg/patch"
)

// apply dispatches on whichever of pendingRemote's payload fields (history
// or remote) is set, since Go has no tagged-union field access.
func (p pendingRemote) apply(s *Store) {
	if p.history != nil {
		s.applyPatchHistory(*p.history)
		return
	}
	if p.remote != nil {
		s.applyPatch(p.remote.Patch)
	}
}

func (s *Store) applyPending(pr pendingRemote) {
	pr.apply(s)
}

// HandlePatchHistory implements adapter.PatchHandler: on registration, the
// adapter delivers every patch buffered since the store's creation, plus a
// checkpoint to seed state from rather than replaying the whole history
// (spec §4.5 "patch-history bootstrap"). If the store is mid-transaction,
// the bootstrap is queued and applied once the transaction ends, same as
// any other remote delivery.
func (s *Store) HandlePatchHistory(history adapter.PatchHistory) {
	s.mu.Lock()
	if s.state == stateInTransaction {
		s.pendingQueue = append(s.pendingQueue, pendingRemote{history: &history})
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.applyPatchHistory(history)
}

// HandleRemotePatch implements adapter.PatchHandler for a single pushed
// patch.
func (s *Store) HandleRemotePatch(rp adapter.RemotePatch) {
	s.mu.Lock()
	if s.state == stateInTransaction {
		s.pendingQueue = append(s.pendingQueue, pendingRemote{remote: &rp})
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.applyPatch(rp.Patch)
}

func (s *Store) applyPatchHistory(history adapter.PatchHistory) {
	s.mu.Lock()
	s.restoreCheckpointLocked(history.Checkpoint)
	s.mu.Unlock()
	for _, p := range history.Patches {
		s.applyPatch(p)
	}
}

// applyPatch validates and applies one remote patch's content in patch
// order, discarding (and logging) any field fragment that references an
// unknown schema or field or fails to merge, rather than failing the
// whole patch — a replica that can apply 9 of 10 fields should not lose
// the other 9 because one is malformed (spec §7 "Malformed patch: ...
// store ignores the patch fragment and logs it").
func (s *Store) applyPatch(p *patch.Patch) {
	if p == nil {
		return
	}

	wireKey := p.PatchID.String()
	s.mu.Lock()
	if _, seen := s.seenPatches.Get(wireKey); seen {
		s.mu.Unlock()
		return
	}
	s.seenPatches.Add(wireKey, struct{}{})

	notif := change.NewBuilder()
	for schemaID, recordIDs := range p.Created {
		t, ok := s.tables[schemaID]
		if !ok {
			s.logWarnUnknownSchema(schemaID)
			continue
		}
		for _, rid := range recordIDs {
			if _, err := t.CreateIfAbsent(rid); err == nil {
				notif.RecordTableEvent(schemaID, rid, change.RecordAdded)
			}
		}
	}

	for schemaID, records := range p.Content {
		t, ok := s.tables[schemaID]
		if !ok {
			s.logWarnUnknownSchema(schemaID)
			if s.metrics != nil {
				s.metrics.malformedPatchesDropped.Inc()
			}
			continue
		}
		for recordID, fields := range records {
			r, ok := t.Get(recordID)
			if !ok {
				// A field update for a record this replica has not seen
				// created yet (its creation patch may not have arrived,
				// or arrived out of order). Synthesize it rather than
				// drop the content; tables are tombstone-free so a
				// synthesized record is indistinguishable from one
				// created by an as-yet-unseen Created entry.
				var err error
				r, err = t.CreateIfAbsent(recordID)
				if err != nil {
					continue
				}
			}
			for fieldName, frag := range fields {
				chg, err := r.ApplyPatchFragment(s.kernels, fieldName, frag)
				if err != nil {
					s.logger.Warn("store: discarding malformed patch fragment",
						logging.String("schemaId", schemaID),
						logging.String("recordId", recordID),
						logging.String("fieldName", fieldName),
						logging.Err(err))
					if s.metrics != nil {
						s.metrics.malformedPatchesDropped.Inc()
					}
					continue
				}
				notif.Record(schemaID, recordID, fieldName, chg)
			}
		}
	}

	for schemaID, recordIDs := range p.Removed {
		t, ok := s.tables[schemaID]
		if !ok {
			s.logWarnUnknownSchema(schemaID)
			continue
		}
		for _, rid := range recordIDs {
			if _, ok := t.Get(rid); ok {
				t.Delete(rid)
				notif.RecordTableEvent(schemaID, rid, change.RecordRemoved)
			}
		}
	}

	if s.metrics != nil {
		s.metrics.remotePatchesApplied.Inc()
	}
	n := notif.Notification()
	s.mu.Unlock()

	if !n.IsEmpty() {
		s.notifyObservers(n)
	}
}

func (s *Store) logWarnUnknownSchema(schemaID string) {
	s.logger.Warn("store: remote patch references unknown schema", logging.String("schemaId", schemaID))
}

// restoreCheckpointLocked installs every (value, metadata) pair a
// checkpoint carries directly, bypassing kernel apply logic: a checkpoint
// is already each field's own resting representation, not an update or
// patch fragment to apply (spec §4.7's bootstrap checkpoint).
func (s *Store) restoreCheckpointLocked(cp adapter.Checkpoint) {
	for schemaID, records := range cp {
		t, ok := s.tables[schemaID]
		if !ok {
			s.logWarnUnknownSchema(schemaID)
			continue
		}
		for recordID, fields := range records {
			r, err := t.CreateIfAbsent(recordID)
			if err != nil {
				continue
			}
			for fieldName, snap := range fields {
				_ = r.SetField(fieldName, snap.Value, snap.Metadata)
			}
		}
	}
}
