// Package store implements spec §4.5's Store: the Idle/InTransaction state
// machine that owns a set of schema-typed tables, routes local mutations
// through the field kernels inside an open transaction, and applies remote
// patches delivered by a ServerAdapter.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/latticedb/store/pkg/adapter"
	"github.com/latticedb/store/pkg/change"
	"github.com/latticedb/store/pkg/kernel"
	"github.com/latticedb/store/pkg/logging"
	"github.com/latticedb/store/pkg/opid"
	"github.com/latticedb/store/pkg/patch"
	"github.com/latticedb/store/pkg/record"
	"github.com/latticedb/store/pkg/schema"
	"github.com/latticedb/store/pkg/storeconfig"
	"github.com/latticedb/store/pkg/storeerr"
)

type txnState int

const (
	stateIdle txnState = iota
	stateInTransaction
)

// dedupCacheSize bounds the recently-seen-patch-id cache used to short
// circuit redundant remote patch application (spec §8 "Adapter
// at-least-once"); kernels are idempotent regardless, so this is purely an
// optimization, not a correctness requirement.
const dedupCacheSize = 4096

// pendingRemote is either a PatchHistory bootstrap or a single RemotePatch
// received while the store was InTransaction (spec §4.5 "the remote patch
// is queued and applied on endTransaction/cancelTransaction").
type pendingRemote struct {
	history *adapter.PatchHistory
	remote  *adapter.RemotePatch
}

// Store is the central coordinator: schema-typed tables, the local
// transaction state machine, and the wiring to a ServerAdapter. Not safe
// for concurrent mutation from multiple goroutines beyond what its own
// mutex serializes (spec §5 "a Store is not safe for concurrent mutation
// from multiple threads").
type Store struct {
	mu sync.Mutex

	schemas *schema.Registry
	kernels *kernel.Registry
	tables  map[string]*record.Table

	adapterImpl adapter.ServerAdapter
	storeID     uint32
	clock       uint64

	state        txnState
	txnPatchID   opid.OpID
	txnStartedAt time.Time
	patchBuilder *patch.Builder
	changeBuild  *change.Builder
	txnSnapshots map[string]*record.Table
	pendingQueue []pendingRemote

	observers      []*observerEntry
	nextObserverID uint64

	undoRecorder UndoRecorder
	seenPatches  *lru.Cache[string, struct{}]

	opts    storeconfig.StoreOptions
	logger  logging.Logger
	metrics *storeMetrics
}

// NewStore builds an idle Store over schemas. Call Open to obtain a store
// id from an adapter and start receiving remote patches.
func NewStore(schemas *schema.Registry, opts ...storeconfig.StoreOption) *Store {
	o := storeconfig.NewStoreOptions(opts...)
	kernels := kernel.NewRegistry()
	tables := make(map[string]*record.Table, len(schemas.IDs()))
	for _, id := range schemas.IDs() {
		sch, _ := schemas.Get(id)
		tables[id] = record.NewTable(sch, kernels)
	}
	seen, _ := lru.New[string, struct{}](dedupCacheSize)
	s := &Store{
		schemas:     schemas,
		kernels:     kernels,
		tables:      tables,
		opts:        o,
		logger:      o.Logger,
		seenPatches: seen,
	}
	if o.MetricsEnabled {
		s.metrics = newStoreMetrics()
	}
	return s
}

// Open obtains a store id from adapterImpl and registers this Store as its
// patch handler, returning the registration's Disposable.
func (s *Store) Open(ctx context.Context, adapterImpl adapter.ServerAdapter) (adapter.Disposable, error) {
	id, err := adapterImpl.CreateStoreID(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.adapterImpl = adapterImpl
	s.storeID = id
	s.mu.Unlock()
	return adapterImpl.RegisterPatchHandler(id, s)
}

// StoreID returns the store id assigned by Open, or 0 if not yet opened.
func (s *Store) StoreID() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeID
}

// Schema looks up a registered schema by id.
func (s *Store) Schema(schemaID string) (*schema.Schema, bool) {
	return s.schemas.Get(schemaID)
}

// Table returns the table for schemaID. Reads (Get/Iter/Len) are safe at
// any time; only Store's own mutation entry points may write to it.
func (s *Store) Table(schemaID string) (*record.Table, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[schemaID]
	return t, ok
}

// KernelFor resolves the kernel backing fieldName on schemaID.
func (s *Store) KernelFor(schemaID, fieldName string) (kernel.Kernel, error) {
	sch, ok := s.schemas.Get(schemaID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", storeerr.ErrSchemaUnknown, schemaID)
	}
	f, ok := sch.Field(fieldName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", storeerr.ErrFieldUnknown, fieldName)
	}
	return s.kernels.For(f.Kind)
}

// SetUndoRecorder wires a History (or any other UndoRecorder) to receive
// one notification per committed local transaction whose patch was
// non-empty.
func (s *Store) SetUndoRecorder(r UndoRecorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.undoRecorder = r
}

// BeginTransaction transitions Idle -> InTransaction, ticks the clock, and
// returns the fresh OpId that will stamp this transaction's patch (spec
// §4.5 "beginTransaction").
func (s *Store) BeginTransaction() (opid.OpID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateInTransaction {
		return opid.OpID{}, storeerr.ErrNestedTransaction
	}
	s.clock++
	id, err := opid.New(s.storeID, s.clock)
	if err != nil {
		return opid.OpID{}, err
	}
	s.txnPatchID = id
	s.txnStartedAt = time.Now()
	s.patchBuilder = patch.NewBuilder()
	s.changeBuild = change.NewBuilder()
	s.txnSnapshots = map[string]*record.Table{}
	s.state = stateInTransaction
	return id, nil
}

func (s *Store) mintLocked() (opid.OpID, error) {
	s.clock++
	return opid.New(s.storeID, s.clock)
}

// Minter exposes the store's clock to callers outside the package (History)
// that need to mint fresh OpIds during an open transaction. History passes
// it to each kernel's Inverse; no kernel's Inverse calls it.
func (s *Store) Minter() kernel.Minter {
	return func() (opid.OpID, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state != stateInTransaction {
			return opid.OpID{}, storeerr.ErrMutationOutsideTransaction
		}
		return s.mintLocked()
	}
}

// snapshotForRollbackLocked captures schemaID's table exactly once per
// transaction, on the first mutation that touches it, so cancelTransaction
// can restore every table to its pre-transaction contents in one swap, and
// so a committed transaction's pre-image is available to History's undo
// (spec §4.5 "pre-transaction snapshots held for that purpose").
func (s *Store) snapshotForRollbackLocked(schemaID string, t *record.Table) {
	if _, ok := s.txnSnapshots[schemaID]; ok {
		return
	}
	s.txnSnapshots[schemaID] = t.Snapshot()
}

// UpdateField routes a locally originated update through fieldName's
// kernel (spec §4.4 "Record.update", gated by §4.5's mutation guard).
func (s *Store) UpdateField(schemaID, recordID, fieldName string, update interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateInTransaction {
		return storeerr.ErrMutationOutsideTransaction
	}
	t, ok := s.tables[schemaID]
	if !ok {
		return fmt.Errorf("%w: %q", storeerr.ErrSchemaUnknown, schemaID)
	}
	s.snapshotForRollbackLocked(schemaID, t)
	r, ok := t.Get(recordID)
	if !ok {
		return fmt.Errorf("%w: %q", storeerr.ErrRecordNotFound, recordID)
	}
	field, ok := t.Schema().Field(fieldName)
	if !ok {
		return fmt.Errorf("%w: %q", storeerr.ErrFieldUnknown, fieldName)
	}
	k, err := s.kernels.For(field.Kind)
	if err != nil {
		return err
	}
	frag, chg, err := r.ApplyLocalUpdate(s.kernels, fieldName, update, s.txnPatchID, func() (opid.OpID, error) { return s.mintLocked() })
	if err != nil {
		return err
	}
	if err := s.patchBuilder.Record(schemaID, recordID, fieldName, frag, k); err != nil {
		return err
	}
	s.changeBuild.Record(schemaID, recordID, fieldName, chg)
	return nil
}

// ApplyLocalFragment installs an already-built kernel.Fragment against a
// field within the open transaction, used by History to broadcast a
// precomputed inverse fragment rather than deriving a fresh one through
// ApplyUpdate.
func (s *Store) ApplyLocalFragment(schemaID, recordID, fieldName string, frag kernel.Fragment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateInTransaction {
		return storeerr.ErrMutationOutsideTransaction
	}
	t, ok := s.tables[schemaID]
	if !ok {
		return fmt.Errorf("%w: %q", storeerr.ErrSchemaUnknown, schemaID)
	}
	s.snapshotForRollbackLocked(schemaID, t)
	r, ok := t.Get(recordID)
	if !ok {
		return fmt.Errorf("%w: %q", storeerr.ErrRecordNotFound, recordID)
	}
	field, ok := t.Schema().Field(fieldName)
	if !ok {
		return fmt.Errorf("%w: %q", storeerr.ErrFieldUnknown, fieldName)
	}
	k, err := s.kernels.For(field.Kind)
	if err != nil {
		return err
	}
	chg, err := r.ApplyPatchFragment(s.kernels, fieldName, frag)
	if err != nil {
		return err
	}
	if err := s.patchBuilder.Record(schemaID, recordID, fieldName, frag, k); err != nil {
		return err
	}
	s.changeBuild.Record(schemaID, recordID, fieldName, chg)
	return nil
}

// CreateRecord inserts a new record with the given id (spec §4.4
// "Table.create").
func (s *Store) CreateRecord(schemaID, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateInTransaction {
		return storeerr.ErrMutationOutsideTransaction
	}
	t, ok := s.tables[schemaID]
	if !ok {
		return fmt.Errorf("%w: %q", storeerr.ErrSchemaUnknown, schemaID)
	}
	s.snapshotForRollbackLocked(schemaID, t)
	if _, err := t.Create(recordID); err != nil {
		return err
	}
	s.patchBuilder.MarkCreated(schemaID, recordID)
	s.changeBuild.RecordTableEvent(schemaID, recordID, change.RecordAdded)
	return nil
}

// DeleteRecord removes a record, garbage collecting its fields with it
// (spec §8 scenario 4).
func (s *Store) DeleteRecord(schemaID, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateInTransaction {
		return storeerr.ErrMutationOutsideTransaction
	}
	t, ok := s.tables[schemaID]
	if !ok {
		return fmt.Errorf("%w: %q", storeerr.ErrSchemaUnknown, schemaID)
	}
	if _, ok := t.Get(recordID); !ok {
		return fmt.Errorf("%w: %q", storeerr.ErrRecordNotFound, recordID)
	}
	s.snapshotForRollbackLocked(schemaID, t)
	t.Delete(recordID)
	s.patchBuilder.MarkRemoved(schemaID, recordID)
	s.changeBuild.RecordTableEvent(schemaID, recordID, change.RecordRemoved)
	return nil
}

// FieldValue reads a field's current value outside any transaction
// requirement (spec §4.4 "Record.get: constant-time read").
func (s *Store) FieldValue(schemaID, recordID, fieldName string) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[schemaID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", storeerr.ErrSchemaUnknown, schemaID)
	}
	r, ok := t.Get(recordID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", storeerr.ErrRecordNotFound, recordID)
	}
	return r.Get(fieldName)
}

// EndTransaction assembles and broadcasts the transaction's patch (if any
// field fragments, record creations or record removals were recorded), emits the coalesced change notification,
// hands the committed patch to the undo recorder, and transitions back to
// Idle (spec §4.5 "endTransaction").
func (s *Store) EndTransaction() error {
	s.mu.Lock()
	if s.state != stateInTransaction {
		s.mu.Unlock()
		return storeerr.ErrNoTransaction
	}

	var p *patch.Patch
	if !s.patchBuilder.Empty() {
		p = &patch.Patch{
			PatchID: s.txnPatchID,
			StoreID: s.storeID,
			Content: s.patchBuilder.Content(),
			Created: s.patchBuilder.Created(),
			Removed: s.patchBuilder.Removed(),
		}
	}
	notif := s.changeBuild.Notification()
	preImage := s.txnSnapshots
	pending := s.pendingQueue
	started := s.txnStartedAt

	s.patchBuilder = nil
	s.changeBuild = nil
	s.txnSnapshots = nil
	s.pendingQueue = nil
	s.state = stateIdle
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.transactionsCommitted.Inc()
		s.metrics.transactionDuration.Observe(time.Since(started).Seconds())
	}

	if p != nil {
		if s.adapterImpl != nil {
			if _, err := s.adapterImpl.BroadcastPatch(s.storeID, p); err != nil {
				s.logger.Warn("store: broadcast patch failed", logging.Err(err))
			} else if s.metrics != nil {
				s.metrics.patchesBroadcast.Inc()
			}
		}
		if s.undoRecorder != nil {
			s.undoRecorder.RecordLocalPatch(UndoEntry{PatchID: p.PatchID, Patch: p, PreImage: preImage})
		}
	}

	if !notif.IsEmpty() {
		s.notifyObservers(notif)
	}

	for _, pr := range pending {
		s.applyPending(pr)
	}
	return nil
}

// CancelTransaction rolls back every table touched during the open
// transaction to its pre-transaction snapshot, emits no change, and
// broadcasts nothing (spec §4.5 "cancelTransaction").
func (s *Store) CancelTransaction() error {
	s.mu.Lock()
	if s.state != stateInTransaction {
		s.mu.Unlock()
		return storeerr.ErrNoTransaction
	}
	for schemaID, snap := range s.txnSnapshots {
		s.tables[schemaID] = snap
	}
	pending := s.pendingQueue
	s.patchBuilder = nil
	s.changeBuild = nil
	s.txnSnapshots = nil
	s.pendingQueue = nil
	s.state = stateIdle
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.transactionsCancelled.Inc()
	}

	for _, pr := range pending {
		s.applyPending(pr)
	}
	return nil
}
