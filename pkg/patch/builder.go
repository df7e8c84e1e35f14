package patch

import (
	"fmt"

	"github.com/latticedb/store/pkg/kernel"
)

// Builder accumulates field fragments and record lifecycle events over the
// lifetime of one open transaction, merging repeated fragments on the same
// field via the owning kernel's Merge (spec §4.3 "merge(patchA, patchB):
// for coalescing two successive fragments on the same field within a
// transaction").
type Builder struct {
	content Content
	created map[string][]string
	removed map[string][]string
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{content: Content{}}
}

// Record folds frag into the builder's content for (schemaID, recordID,
// fieldName), merging with any fragment already recorded for that field
// within this transaction.
func (b *Builder) Record(schemaID, recordID, fieldName string, frag kernel.Fragment, k kernel.Kernel) error {
	records, ok := b.content[schemaID]
	if !ok {
		records = map[string]map[string]kernel.Fragment{}
		b.content[schemaID] = records
	}
	fields, ok := records[recordID]
	if !ok {
		fields = map[string]kernel.Fragment{}
		records[recordID] = fields
	}
	existing, ok := fields[fieldName]
	if !ok {
		fields[fieldName] = frag
		return nil
	}
	merged, err := k.Merge(existing, frag)
	if err != nil {
		return fmt.Errorf("patch: merge fragment for %s/%s/%s: %w", schemaID, recordID, fieldName, err)
	}
	fields[fieldName] = merged
	return nil
}

// MarkCreated records that recordID was created by this transaction.
func (b *Builder) MarkCreated(schemaID, recordID string) {
	if b.created == nil {
		b.created = map[string][]string{}
	}
	b.created[schemaID] = append(b.created[schemaID], recordID)
}

// MarkRemoved records that recordID was removed by this transaction.
func (b *Builder) MarkRemoved(schemaID, recordID string) {
	if b.removed == nil {
		b.removed = map[string][]string{}
	}
	b.removed[schemaID] = append(b.removed[schemaID], recordID)
}

// Content returns the accumulated content. The Builder retains ownership
// of the returned maps; callers that need to keep it past Reset should
// treat it as immutable, matching "Patches are immutable once committed".
func (b *Builder) Content() Content {
	return b.content
}

// Created returns the accumulated creation events.
func (b *Builder) Created() map[string][]string { return b.created }

// Removed returns the accumulated removal events.
func (b *Builder) Removed() map[string][]string { return b.removed }

// Empty reports whether no field fragments or lifecycle events have been
// recorded yet.
func (b *Builder) Empty() bool {
	return b.content.IsEmpty() && len(b.created) == 0 && len(b.removed) == 0
}

// Reset clears the builder for reuse by the next transaction.
func (b *Builder) Reset() {
	b.content = Content{}
	b.created = nil
	b.removed = nil
}
