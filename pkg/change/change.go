// Package change implements spec §4.8's Change notification: the
// per-transaction, per-field (previous, current) snapshot delivered to
// observers, plus the table-level record lifecycle events spec §4.4
// describes (record-added / record-removed).
package change

import "github.com/latticedb/store/pkg/kernel"

// Content mirrors patch.Content's shape but carries a kernel.Change per
// field instead of a fragment.
type Content map[string]map[string]map[string]kernel.Change

// RecordAction tags a table-level lifecycle event.
type RecordAction string

const (
	RecordAdded   RecordAction = "record-added"
	RecordRemoved RecordAction = "record-removed"
)

// TableEvent is a table-level notification: a record was created or
// removed, independent of any single field's value change.
type TableEvent struct {
	SchemaID string
	RecordID string
	Action   RecordAction
}

// Notification is the single per-transaction delivery to observers (spec
// §4.8 "emits a single notification per transaction to registered
// observers").
type Notification struct {
	Fields      Content
	TableEvents []TableEvent
}

// IsEmpty reports whether the notification carries nothing to deliver.
func (n Notification) IsEmpty() bool {
	if len(n.TableEvents) > 0 {
		return false
	}
	for _, records := range n.Fields {
		for _, fields := range records {
			if len(fields) > 0 {
				return false
			}
		}
	}
	return true
}
