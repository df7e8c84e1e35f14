package store

import (
	"github.com/latticedb/store/pkg/opid"
	"github.com/latticedb/store/pkg/patch"
	"github.com/latticedb/store/pkg/record"
)

// UndoEntry is what Store hands to a registered UndoRecorder after
// committing a local transaction whose patch was non-empty (spec §4.6).
type UndoEntry struct {
	PatchID opid.OpID
	Patch   *patch.Patch
	// PreImage holds, per schema touched by the transaction, a deep copy of
	// that table as it stood immediately before the transaction began. It
	// is the "pre-image" the Value and Map kernels' Inverse need; List and
	// Text fragments carry enough identity to invert without it.
	PreImage map[string]*record.Table
}

// UndoRecorder receives one UndoEntry per locally committed transaction
// whose patch was non-empty. Store depends only on this interface, not on
// the history package directly, so the undo/redo stacks stay a separate
// concern from transaction commit.
type UndoRecorder interface {
	RecordLocalPatch(entry UndoEntry)
}
