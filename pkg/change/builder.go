package change

import "github.com/latticedb/store/pkg/kernel"

// Builder accumulates field changes and table events over the lifetime of
// one open transaction, coalescing repeated changes on the same field with
// kernel.MergeChange (the earliest Previous paired with the latest
// Current — identical across every field kind, so no per-kind dispatch is
// needed here).
type Builder struct {
	content     Content
	tableEvents []TableEvent
}

func NewBuilder() *Builder {
	return &Builder{content: Content{}}
}

// Record folds ch into the builder's content for (schemaID, recordID,
// fieldName).
func (b *Builder) Record(schemaID, recordID, fieldName string, ch kernel.Change) {
	records, ok := b.content[schemaID]
	if !ok {
		records = map[string]map[string]kernel.Change{}
		b.content[schemaID] = records
	}
	fields, ok := records[recordID]
	if !ok {
		fields = map[string]kernel.Change{}
		records[recordID] = fields
	}
	if existing, ok := fields[fieldName]; ok {
		ch = kernel.MergeChange(existing, ch)
	}
	fields[fieldName] = ch
}

// RecordTableEvent appends a record lifecycle event.
func (b *Builder) RecordTableEvent(schemaID, recordID string, action RecordAction) {
	b.tableEvents = append(b.tableEvents, TableEvent{SchemaID: schemaID, RecordID: recordID, Action: action})
}

// Notification returns the accumulated notification.
func (b *Builder) Notification() Notification {
	return Notification{Fields: b.content, TableEvents: b.tableEvents}
}

// Empty reports whether nothing has been recorded yet.
func (b *Builder) Empty() bool {
	return b.Notification().IsEmpty()
}

// Reset clears the builder for reuse by the next transaction.
func (b *Builder) Reset() {
	b.content = Content{}
	b.tableEvents = nil
}
