// Package storeconfig holds the functional-options configuration surface
// shared by Store, History, and the ServerAdapter implementations.
package storeconfig

import "time"

// Defaults mirrored by the zero-value Options structs below.
const (
	// DefaultMaxUndoDepth bounds the undo/redo stacks (spec.md §9: "the
	// undo stack bound and eviction policy is unspecified; implementers
	// should choose a configurable bound, document it").
	DefaultMaxUndoDepth = 256

	// DefaultSubscriptionTTL prunes observers that have never been
	// notified this long after subscribing.
	DefaultSubscriptionTTL = 30 * time.Minute

	// DefaultFetchTimeout bounds each fetchPatches request the wsadapter
	// sends; an earlier deadline on the caller's context still applies.
	DefaultFetchTimeout = 10 * time.Second

	// DefaultCreateStoreIDTimeout bounds createStoreId calls the same way.
	DefaultCreateStoreIDTimeout = 10 * time.Second

	// DefaultRetryInitialInterval / DefaultRetryMaxElapsedTime configure
	// the exponential backoff used by adapter retries before failing with
	// AdapterUnavailable.
	DefaultRetryInitialInterval = 100 * time.Millisecond
	DefaultRetryMaxElapsedTime  = 5 * time.Second
)
