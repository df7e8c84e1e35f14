package record

import (
	"fmt"
	"sort"

	"github.com/latticedb/store/pkg/kernel"
	"github.com/latticedb/store/pkg/schema"
	"github.com/latticedb/store/pkg/storeerr"
)

// Table is a recordId → Record mapping ordered by recordId for
// deterministic iteration, owned by exactly one Store (spec §4.4 "Table").
type Table struct {
	schema  *schema.Schema
	kernels *kernel.Registry
	records map[string]*Record
	order   []string
}

// NewTable creates an empty table bound to sch.
func NewTable(sch *schema.Schema, kernels *kernel.Registry) *Table {
	return &Table{schema: sch, kernels: kernels, records: map[string]*Record{}}
}

// Schema returns the table's schema.
func (t *Table) Schema() *schema.Schema { return t.schema }

// Create inserts a new record with the given id, failing with
// ErrDuplicateRecord if it already exists (spec §4.4 "Table.create(...):
// fails with DuplicateRecord if recordId exists").
func (t *Table) Create(recordID string) (*Record, error) {
	if _, exists := t.records[recordID]; exists {
		return nil, fmt.Errorf("%w: %q", storeerr.ErrDuplicateRecord, recordID)
	}
	r, err := newRecord(t.schema, recordID, t.kernels)
	if err != nil {
		return nil, err
	}
	t.records[recordID] = r
	idx := sort.SearchStrings(t.order, recordID)
	t.order = append(t.order, "")
	copy(t.order[idx+1:], t.order[idx:])
	t.order[idx] = recordID
	return r, nil
}

// CreateIfAbsent is Create without the duplicate error, used when applying
// a remote patch's Created list idempotently (a replayed or duplicated
// creation must not fail the whole patch).
func (t *Table) CreateIfAbsent(recordID string) (*Record, error) {
	if r, ok := t.records[recordID]; ok {
		return r, nil
	}
	return t.Create(recordID)
}

// Get returns the record with the given id, if present.
func (t *Table) Get(recordID string) (*Record, bool) {
	r, ok := t.records[recordID]
	return r, ok
}

// Delete removes a record, used by record-removal patches and by undo of a
// local record creation (spec §8 scenario 4). Deleting an absent id is a
// no-op, matching the tombstone-free idempotence the rest of the kernels
// already guarantee.
func (t *Table) Delete(recordID string) {
	if _, ok := t.records[recordID]; !ok {
		return
	}
	delete(t.records, recordID)
	idx := sort.SearchStrings(t.order, recordID)
	if idx < len(t.order) && t.order[idx] == recordID {
		t.order = append(t.order[:idx], t.order[idx+1:]...)
	}
}

// Iter returns records in recordId order for deterministic iteration
// (spec §4.4 "Table.iter() → ordered iterator").
func (t *Table) Iter() []*Record {
	out := make([]*Record, len(t.order))
	for i, id := range t.order {
		out[i] = t.records[id]
	}
	return out
}

// Len returns the number of live records.
func (t *Table) Len() int { return len(t.records) }

// snapshot deep-copies every record, used by Store's transaction rollback
// and History's undo pre-images.
func (t *Table) snapshot() *Table {
	cp := &Table{
		schema:  t.schema,
		kernels: t.kernels,
		records: make(map[string]*Record, len(t.records)),
		order:   append([]string(nil), t.order...),
	}
	for id, r := range t.records {
		cp.records[id] = r.snapshot()
	}
	return cp
}

// Snapshot is the exported form of snapshot, used by the store package to
// capture a table's pre-transaction state for cancelTransaction rollback
// and for History's undo pre-images (spec §4.5, §4.6).
func (t *Table) Snapshot() *Table { return t.snapshot() }
