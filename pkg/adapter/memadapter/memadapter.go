// Package memadapter implements adapter.ServerAdapter entirely in process,
// for tests and local multi-store simulation: a Hub plays the role the
// real server plays on the wire, and each Store gets its own *Adapter
// handle bound to that Hub.
package memadapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/google/uuid"

	"github.com/latticedb/store/pkg/adapter"
	"github.com/latticedb/store/pkg/patch"
	"github.com/latticedb/store/pkg/storeconfig"
	"github.com/latticedb/store/pkg/storeerr"
)

// Hub is the shared broadcast point for every Adapter minted from it. It
// assigns store ids, fans out broadcast patches to registered handlers,
// and keeps broadcast patches addressable by wire id for FetchPatches.
type Hub struct {
	mu sync.Mutex

	nextStoreID uint32
	handlers    map[uint32]adapter.PatchHandler
	log         []*patch.Patch
	byWireID    map[string]*patch.Patch
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{
		handlers: map[uint32]adapter.PatchHandler{},
		byWireID: map[string]*patch.Patch{},
	}
}

// NewAdapter mints an adapter.ServerAdapter bound to h, scoped by opts'
// retry envelope (exercised only on the ctx-cancellation path, since an
// in-memory hub otherwise never fails a request).
func (h *Hub) NewAdapter(opts storeconfig.AdapterOptions) adapter.ServerAdapter {
	return &Adapter{hub: h, opts: opts}
}

func (h *Hub) createStoreID() uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextStoreID++
	return h.nextStoreID
}

// register performs the snapshot-then-insert atomically under h.mu so a
// BroadcastPatch racing a RegisterPatchHandler call cannot be delivered to
// the new handler before its PatchHistory: whichever call takes the lock
// first fully completes its critical section before the other proceeds.
func (h *Hub) register(storeID uint32, handler adapter.PatchHandler) adapter.Disposable {
	h.mu.Lock()
	history := adapter.PatchHistory{
		Checkpoint: adapter.Checkpoint{},
		Patches:    append([]*patch.Patch(nil), h.log...),
	}
	h.handlers[storeID] = handler
	h.mu.Unlock()

	handler.HandlePatchHistory(history)
	return &disposable{hub: h, storeID: storeID}
}

func (h *Hub) unregister(storeID uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.handlers, storeID)
}

// broadcast assigns p a wire id, appends it to the replay log used to seed
// future registrants, then fans it out concurrently to every handler other
// than the originating store (a store already knows the patch it just
// committed; redelivering it to itself would be a wasted, if harmless,
// round trip through HandleRemotePatch's duplicate tolerance).
func (h *Hub) broadcast(storeID uint32, p *patch.Patch) (string, error) {
	wireID := uuid.NewString()

	h.mu.Lock()
	h.byWireID[wireID] = p
	h.log = append(h.log, p)
	peers := make(map[uint32]adapter.PatchHandler, len(h.handlers))
	for id, hd := range h.handlers {
		if id != storeID {
			peers[id] = hd
		}
	}
	h.mu.Unlock()

	g := new(errgroup.Group)
	for _, hd := range peers {
		hd := hd
		g.Go(func() error {
			hd.HandleRemotePatch(adapter.RemotePatch{WireID: wireID, Patch: p})
			return nil
		})
	}
	// Peer handlers never return an error from HandleRemotePatch; Wait
	// only blocks broadcast until delivery has fanned out to everyone.
	_ = g.Wait()
	return wireID, nil
}

func (h *Hub) fetch(wireIDs []string) ([]*patch.Patch, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*patch.Patch, 0, len(wireIDs))
	for _, id := range wireIDs {
		p, ok := h.byWireID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", storeerr.ErrFetchPatchNotFound, id)
		}
		out = append(out, p)
	}
	return out, nil
}

// Adapter is one store's handle onto a Hub.
type Adapter struct {
	hub  *Hub
	opts storeconfig.AdapterOptions
}

// CreateStoreID never actually fails against an in-memory Hub; the retry
// envelope only matters if ctx is already canceled when called.
func (a *Adapter) CreateStoreID(ctx context.Context) (uint32, error) {
	var id uint32
	err := adapter.Retry(ctx, a.opts, func() error {
		id = a.hub.createStoreID()
		return nil
	})
	return id, err
}

func (a *Adapter) RegisterPatchHandler(storeID uint32, handler adapter.PatchHandler) (adapter.Disposable, error) {
	return a.hub.register(storeID, handler), nil
}

func (a *Adapter) BroadcastPatch(storeID uint32, p *patch.Patch) (string, error) {
	return a.hub.broadcast(storeID, p)
}

func (a *Adapter) FetchPatches(ctx context.Context, wireIDs []string) ([]*patch.Patch, error) {
	var out []*patch.Patch
	err := adapter.Retry(ctx, a.opts, func() error {
		patches, err := a.hub.fetch(wireIDs)
		if err != nil {
			// Missing ids are a permanent condition, not a transient
			// transport failure; don't burn the retry budget on them.
			return backoff.Permanent(err)
		}
		out = patches
		return nil
	})
	return out, err
}

type disposable struct {
	hub     *Hub
	storeID uint32
}

func (d *disposable) Dispose() { d.hub.unregister(d.storeID) }
