// Package adapter defines spec §4.7's ServerAdapter contract: the
// interface a Store uses to obtain a store id, broadcast local patches,
// receive remote ones, and fetch historical patches by id. Concrete wire
// framing lives in the memadapter (in-process, for tests and local
// multi-store simulation) and wsadapter (gorilla/websocket transport)
// subpackages; this package only fixes the contract and the message
// shapes both share.
package adapter

import (
	"context"

	"github.com/latticedb/store/pkg/patch"
)

// FieldSnapshot is one field's (value, metadata) pair inside a checkpoint.
// Metadata is kernel-specific (opid.OpID for Value, per-key entries for
// Map, ordered elements for List/Text) and round-trips through the same
// kernel that produced it, so it travels as a raw kernel.Fragment-shaped
// payload the Store decodes with schema context, exactly like Patch
// content.
type FieldSnapshot struct {
	Value    interface{} `json:"value"`
	Metadata interface{} `json:"metadata"`
}

// Checkpoint is an opaque structured snapshot of every table: schemaId ->
// recordId -> fieldName -> (value, metadata) (spec §4.5 "Patch-history
// bootstrap").
type Checkpoint map[string]map[string]map[string]FieldSnapshot

// RemotePatch is a patch delivered to a registered handler after the
// store's initial PatchHistory.
type RemotePatch struct {
	// WireID is the adapter-assigned patch id (opaque string); authoritative
	// on the wire per spec §9's Open Question resolution.
	WireID string
	Patch  *patch.Patch
}

// PatchHistory is delivered exactly once per registration, before any
// RemotePatch (spec §4.7 "registerPatchHandler").
type PatchHistory struct {
	Checkpoint Checkpoint
	Patches    []*patch.Patch
}

// PatchHandler receives the ordered PatchHistory-then-RemotePatch stream
// for one registered store. The Store implements this interface itself
// rather than exposing two free-floating callbacks, so adapters have a
// single handle to register and dispose.
type PatchHandler interface {
	HandlePatchHistory(history PatchHistory)
	HandleRemotePatch(rp RemotePatch)
}

// Disposable cancels a registration (spec §4.7 "registerPatchHandler(...)
// → disposable").
type Disposable interface {
	Dispose()
}

// ServerAdapter is the interface a Store depends on; it does not specify
// framing, authentication, or reconnection strategy (spec §1 Non-goals),
// only the request/response contract.
type ServerAdapter interface {
	// CreateStoreID returns a unique non-zero store id, retrying with
	// exponential backoff on transport failure. It fails with
	// storeerr.ErrAdapterTimeout once ctx is done, and with
	// storeerr.ErrAdapterUnavailable once the retry budget is exhausted.
	CreateStoreID(ctx context.Context) (uint32, error)

	// RegisterPatchHandler arranges delivery of exactly one PatchHistory
	// followed by any subsequent RemotePatch messages for storeID. Patches
	// that arrive on the wire between registration and the PatchHistory
	// being assembled are buffered and flushed as part of, or immediately
	// after, the history.
	RegisterPatchHandler(storeID uint32, handler PatchHandler) (Disposable, error)

	// BroadcastPatch sends p on the wire and returns the adapter-assigned
	// wire id. Fire-and-forget from the Store's perspective: reliable
	// delivery and deduplication are the adapter's responsibility.
	BroadcastPatch(storeID uint32, p *patch.Patch) (wireID string, err error)

	// FetchPatches returns exactly the requested patches, keyed by the
	// adapter-assigned wire id used in RemotePatch.WireID. A missing id
	// produces storeerr.ErrFetchPatchNotFound for that request.
	FetchPatches(ctx context.Context, wireIDs []string) ([]*patch.Patch, error)
}
