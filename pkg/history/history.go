// Package history implements spec §4.6's History: the undo/redo stacks
// built on top of a Store, recomputing each inverse fragment at undo time
// against current field state rather than replaying a stored one, so an
// intervening remote edit is never silently clobbered.
package history

import (
	"errors"
	"fmt"
	"sync"

	"github.com/latticedb/store/pkg/kernel"
	"github.com/latticedb/store/pkg/logging"
	"github.com/latticedb/store/pkg/opid"
	"github.com/latticedb/store/pkg/record"
	"github.com/latticedb/store/pkg/schema"
	"github.com/latticedb/store/pkg/store"
	"github.com/latticedb/store/pkg/storeconfig"
	"github.com/latticedb/store/pkg/storeerr"
)

// History maintains bounded undo/redo stacks of store.UndoEntry and drives
// its Store through a new transaction to broadcast each undo or redo as a
// normal patch (spec §4.6 "Undo ... broadcasts the inverse the same way any
// local edit broadcasts").
type History struct {
	mu     sync.Mutex
	store  *store.Store
	opts   storeconfig.HistoryOptions
	logger logging.Logger

	undoStack []store.UndoEntry
	redoStack []store.UndoEntry

	// internalCommit/lastInternal let RecordLocalPatch distinguish a
	// commit History itself drove (an undo or redo) from an ordinary
	// user transaction, without Store needing to know which is which.
	internalCommit bool
	lastInternal   *store.UndoEntry
}

// New wires a History to s, registering itself as s's UndoRecorder.
func New(s *store.Store, opts ...storeconfig.HistoryOption) *History {
	o := storeconfig.NewHistoryOptions(opts...)
	h := &History{store: s, opts: o, logger: o.Logger}
	s.SetUndoRecorder(h)
	return h
}

// RecordLocalPatch implements store.UndoRecorder. An ordinary user
// transaction pushes onto the undo stack and clears the redo stack (spec
// §4.5 "endTransaction ... pushes its id on the undo stack, clears the
// redo stack"); a commit driven by Undo/Redo itself is captured instead of
// pushed, so invert's caller can thread it onto the opposite stack.
func (h *History) RecordLocalPatch(entry store.UndoEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.internalCommit {
		cp := entry
		h.lastInternal = &cp
		return
	}
	h.undoStack = append(h.undoStack, entry)
	h.redoStack = nil
	h.trimLocked()
}

// CanUndo reports whether Undo has anything to act on.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undoStack) > 0
}

// CanRedo reports whether Redo has anything to act on.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redoStack) > 0
}

// Undo pops the most recent local patch, computes and broadcasts its
// inverse, and pushes the inverse onto the redo stack.
func (h *History) Undo() error {
	h.mu.Lock()
	if len(h.undoStack) == 0 {
		h.mu.Unlock()
		return storeerr.ErrNothingToUndo
	}
	entry := h.undoStack[len(h.undoStack)-1]
	h.undoStack = h.undoStack[:len(h.undoStack)-1]
	h.mu.Unlock()

	inverted, err := h.invert(entry)
	if err != nil {
		h.mu.Lock()
		h.undoStack = append(h.undoStack, entry)
		h.mu.Unlock()
		return fmt.Errorf("history: undo: %w", err)
	}

	h.mu.Lock()
	h.redoStack = append(h.redoStack, inverted)
	h.trimLocked()
	h.mu.Unlock()
	return nil
}

// Redo is symmetric with Undo: it pops the most recently undone entry,
// recomputes the forward inverse of that inverse, broadcasts it, and
// pushes the result back onto the undo stack (spec §4.6 "Redo ...
// symmetric").
func (h *History) Redo() error {
	h.mu.Lock()
	if len(h.redoStack) == 0 {
		h.mu.Unlock()
		return storeerr.ErrNothingToRedo
	}
	entry := h.redoStack[len(h.redoStack)-1]
	h.redoStack = h.redoStack[:len(h.redoStack)-1]
	h.mu.Unlock()

	inverted, err := h.invert(entry)
	if err != nil {
		h.mu.Lock()
		h.redoStack = append(h.redoStack, entry)
		h.mu.Unlock()
		return fmt.Errorf("history: redo: %w", err)
	}

	h.mu.Lock()
	h.undoStack = append(h.undoStack, inverted)
	h.trimLocked()
	h.mu.Unlock()
	return nil
}

func (h *History) trimLocked() {
	if max := h.opts.MaxUndoDepth; max > 0 {
		if len(h.undoStack) > max {
			h.undoStack = h.undoStack[len(h.undoStack)-max:]
		}
		if len(h.redoStack) > max {
			h.redoStack = h.redoStack[len(h.redoStack)-max:]
		}
	}
}

// invert opens a new transaction that undoes entry's effect and returns
// the UndoEntry describing that new transaction, for the caller to push
// onto whichever stack is the mirror image of the one it popped from.
func (h *History) invert(entry store.UndoEntry) (store.UndoEntry, error) {
	if entry.Patch == nil {
		return store.UndoEntry{}, errors.New("undo entry carries no patch")
	}

	primary, err := h.store.BeginTransaction()
	if err != nil {
		return store.UndoEntry{}, err
	}

	if err := h.invertRecordLifecycle(entry); err != nil {
		_ = h.store.CancelTransaction()
		return store.UndoEntry{}, err
	}
	if err := h.invertFieldContent(entry, primary); err != nil {
		_ = h.store.CancelTransaction()
		return store.UndoEntry{}, err
	}

	h.mu.Lock()
	h.internalCommit = true
	h.lastInternal = nil
	h.mu.Unlock()

	commitErr := h.store.EndTransaction()

	h.mu.Lock()
	h.internalCommit = false
	result := h.lastInternal
	h.lastInternal = nil
	h.mu.Unlock()

	if commitErr != nil {
		return store.UndoEntry{}, commitErr
	}
	if result == nil {
		// The transaction committed (record lifecycle events still count
		// as a non-empty patch) but produced no field content to report.
		return store.UndoEntry{PatchID: primary}, nil
	}
	return *result, nil
}

// invertRecordLifecycle undoes a creation by deleting the created records,
// and undoes a removal by recreating the record and restoring every
// non-key field to its pre-transaction value (spec §8 scenario 4: "Undo
// after remote edit ... record R is removed on A").
func (h *History) invertRecordLifecycle(entry store.UndoEntry) error {
	for schemaID, recordIDs := range entry.Patch.Created {
		for _, rid := range recordIDs {
			if err := h.store.DeleteRecord(schemaID, rid); err != nil && !errors.Is(err, storeerr.ErrRecordNotFound) {
				return err
			}
		}
	}

	for schemaID, recordIDs := range entry.Patch.Removed {
		sch, ok := h.store.Schema(schemaID)
		if !ok {
			continue
		}
		preTable := entry.PreImage[schemaID]
		for _, rid := range recordIDs {
			if err := h.store.CreateRecord(schemaID, rid); err != nil && !errors.Is(err, storeerr.ErrDuplicateRecord) {
				return err
			}
			if preTable == nil {
				continue
			}
			preRecord, ok := preTable.Get(rid)
			if !ok {
				continue
			}
			for _, f := range sch.Fields {
				if f.Kind == schema.KindPrimaryKey {
					continue
				}
				v, err := preRecord.Get(f.Name)
				if err != nil {
					continue
				}
				update, err := restoreUpdate(f.Kind, v)
				if err != nil {
					h.logger.Warn("history: field kind not restorable on undo of a removal",
						logging.String("schemaId", schemaID), logging.String("fieldName", f.Name))
					continue
				}
				if err := h.store.UpdateField(schemaID, rid, f.Name, update); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// invertFieldContent applies, for every field fragment in entry.Patch that
// was not already handled by invertRecordLifecycle, the field's kernel's
// Inverse against the field's current metadata — "current", not the
// pre-transaction snapshot, so the inverse lands correctly even if a
// remote edit touched the same field in between (spec §4.6). primary is
// the new undo/redo transaction's own patch id, which every inverse
// fragment is stamped with so it always wins LWW comparison regardless of
// what has happened to the field since.
func (h *History) invertFieldContent(entry store.UndoEntry, primary opid.OpID) error {
	created := recordSet(entry.Patch.Created)
	removed := recordSet(entry.Patch.Removed)

	for schemaID, records := range entry.Patch.Content {
		for recordID, fields := range records {
			if created[schemaID+"/"+recordID] || removed[schemaID+"/"+recordID] {
				continue
			}
			for fieldName, frag := range fields {
				k, err := h.store.KernelFor(schemaID, fieldName)
				if err != nil {
					return err
				}
				preValue := fieldPreValue(entry.PreImage, schemaID, recordID, fieldName)
				inv, err := k.Inverse(preValue, frag, primary, h.store.Minter())
				if err != nil {
					return fmt.Errorf("history: inverse for %s/%s/%s: %w", schemaID, recordID, fieldName, err)
				}
				if err := h.store.ApplyLocalFragment(schemaID, recordID, fieldName, inv); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func recordSet(m map[string][]string) map[string]bool {
	out := make(map[string]bool, len(m))
	for schemaID, ids := range m {
		for _, id := range ids {
			out[schemaID+"/"+id] = true
		}
	}
	return out
}

func fieldPreValue(preImage map[string]*record.Table, schemaID, recordID, fieldName string) interface{} {
	t, ok := preImage[schemaID]
	if !ok {
		return nil
	}
	r, ok := t.Get(recordID)
	if !ok {
		return nil
	}
	v, err := r.Get(fieldName)
	if err != nil {
		return nil
	}
	return v
}

// restoreUpdate converts a plain field value (as captured in a pre-image
// snapshot) into the update payload its kernel's ApplyUpdate expects,
// scoped specifically to restoring a just-recreated record — one whose
// current value is still the kernel's zero value, so List/Text can be
// reconstructed with a single splice/append from nothing.
func restoreUpdate(kind schema.FieldKind, v interface{}) (interface{}, error) {
	switch kind {
	case schema.KindValue:
		return v, nil
	case schema.KindMap:
		m, _ := v.(map[string]interface{})
		return kernel.MapUpdate(m), nil
	case schema.KindList:
		l, _ := v.([]interface{})
		return kernel.ListSplice(0, 0, l...), nil
	case schema.KindText:
		s, _ := v.(string)
		return kernel.TextAppend(s), nil
	default:
		return nil, fmt.Errorf("field kind %q is not restorable", kind)
	}
}
