// Package wsadapter implements adapter.ServerAdapter over a single
// gorilla/websocket connection, framing every request/response as the
// {header, content} Message defined in pkg/adapter/wire.go.
package wsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/latticedb/store/pkg/adapter"
	"github.com/latticedb/store/pkg/logging"
	"github.com/latticedb/store/pkg/patch"
	"github.com/latticedb/store/pkg/schema"
	"github.com/latticedb/store/pkg/storeconfig"
	"github.com/latticedb/store/pkg/storeerr"
)

// pendingReply is how a blocked request call waits for its reply to show
// up on the single reader goroutine.
type pendingReply struct {
	msgType adapter.MsgType
	done    chan adapter.Message
}

// Adapter is a ServerAdapter backed by one websocket connection. A single
// goroutine owns the read side of conn; callers of CreateStoreID and
// FetchPatches block on a channel keyed by the msgId they sent until the
// reader goroutine matches a reply's parentId back to them.
type Adapter struct {
	conn   *websocket.Conn
	opts   storeconfig.AdapterOptions
	logger logging.Logger
	schema *schema.Registry

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]*pendingReply

	handlerMu sync.Mutex
	handlers  map[uint32]adapter.PatchHandler

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial wraps an already-established *websocket.Conn (dialing it is the
// caller's concern — auth headers, TLS config, and reconnection strategy
// are explicitly out of scope per spec §1's Non-goals) and starts the
// reader goroutine that demultiplexes replies and remote patch pushes.
func Dial(conn *websocket.Conn, schemas *schema.Registry, opts storeconfig.AdapterOptions) *Adapter {
	a := &Adapter{
		conn:     conn,
		opts:     opts,
		logger:   opts.Logger,
		schema:   schemas,
		pending:  map[string]*pendingReply{},
		handlers: map[uint32]adapter.PatchHandler{},
		closed:   make(chan struct{}),
	}
	go a.readLoop()
	return a
}

// Close tears down the underlying connection and unblocks the reader
// goroutine.
func (a *Adapter) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.closed)
		err = a.conn.Close()
	})
	return err
}

func (a *Adapter) readLoop() {
	for {
		_, data, err := a.conn.ReadMessage()
		if err != nil {
			a.logger.Warn("wsadapter: read loop exiting", logging.Err(err))
			a.failPending(err)
			return
		}
		var msg adapter.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			a.logger.Warn("wsadapter: discarding malformed frame", logging.Err(err))
			continue
		}
		a.dispatch(msg)
	}
}

func (a *Adapter) dispatch(msg adapter.Message) {
	switch msg.Header.MsgType {
	case adapter.MsgStoreIDReply, adapter.MsgFetchPatchReply:
		a.resolvePending(msg)
	case adapter.MsgPatchBroadcast:
		a.deliverBroadcast(msg)
	default:
		a.logger.Warn("wsadapter: unknown message type, discarding", logging.String("msgType", string(msg.Header.MsgType)))
	}
}

func (a *Adapter) resolvePending(msg adapter.Message) {
	a.mu.Lock()
	p, ok := a.pending[msg.Header.ParentID]
	if ok {
		delete(a.pending, msg.Header.ParentID)
	}
	a.mu.Unlock()
	if !ok {
		a.logger.Warn("wsadapter: reply with no matching request, discarding", logging.String("parentId", msg.Header.ParentID))
		return
	}
	p.done <- msg
}

func (a *Adapter) failPending(err error) {
	a.mu.Lock()
	pending := a.pending
	a.pending = map[string]*pendingReply{}
	a.mu.Unlock()
	for _, p := range pending {
		close(p.done)
	}
	_ = err
}

func (a *Adapter) deliverBroadcast(msg adapter.Message) {
	var content adapter.PatchBroadcastContent
	if err := adapter.DecodeContent(msg, &content); err != nil {
		a.logger.Warn("wsadapter: discarding malformed patch broadcast", logging.Err(err))
		return
	}
	p, err := decodeWirePatch(content.Patch, a.schema)
	if err != nil {
		a.logger.Warn("wsadapter: discarding malformed patch broadcast", logging.Err(err))
		return
	}

	a.handlerMu.Lock()
	hd, ok := a.handlers[content.Patch.StoreID]
	a.handlerMu.Unlock()
	if !ok {
		return
	}
	hd.HandleRemotePatch(adapter.RemotePatch{WireID: content.Patch.PatchID, Patch: p})
}

func (a *Adapter) send(msg adapter.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("wsadapter: encode frame: %w", err)
	}
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return a.conn.WriteMessage(websocket.TextMessage, data)
}

func (a *Adapter) request(ctx context.Context, msg adapter.Message) (adapter.Message, error) {
	p := &pendingReply{msgType: msg.Header.MsgType, done: make(chan adapter.Message, 1)}
	a.mu.Lock()
	a.pending[msg.Header.MsgID] = p
	a.mu.Unlock()

	if err := a.send(msg); err != nil {
		a.mu.Lock()
		delete(a.pending, msg.Header.MsgID)
		a.mu.Unlock()
		return adapter.Message{}, err
	}

	select {
	case reply, ok := <-p.done:
		if !ok {
			return adapter.Message{}, fmt.Errorf("wsadapter: connection closed while awaiting reply")
		}
		return reply, nil
	case <-ctx.Done():
		a.mu.Lock()
		delete(a.pending, msg.Header.MsgID)
		a.mu.Unlock()
		return adapter.Message{}, ctx.Err()
	case <-a.closed:
		return adapter.Message{}, fmt.Errorf("wsadapter: connection closed while awaiting reply")
	}
}

// CreateStoreID sends a storeid-request and blocks for its reply, retrying
// per Retry's exponential backoff on transport failure.
func (a *Adapter) CreateStoreID(ctx context.Context) (uint32, error) {
	var id uint32
	err := adapter.Retry(ctx, a.opts, func() error {
		reqCtx, cancel := context.WithTimeout(ctx, a.opts.CreateStoreIDTimeout)
		defer cancel()

		reply, err := a.request(reqCtx, adapter.Message{Header: adapter.NewHeader(adapter.MsgStoreIDRequest), Content: json.RawMessage("{}")})
		if err != nil {
			return err
		}
		var content adapter.StoreIDReplyContent
		if err := adapter.DecodeContent(reply, &content); err != nil {
			return err
		}
		id = content.StoreID
		return nil
	})
	return id, err
}

// RegisterPatchHandler registers handler locally; the wire protocol has no
// explicit "register" message (the server is expected to push a
// patch-broadcast for storeID as soon as it has one), so this simply
// arranges local delivery for frames the server already addresses to
// storeID, and a follow-up fetchPatches over whatever wire ids the caller
// already knows about plays the role of bootstrapping PatchHistory.
func (a *Adapter) RegisterPatchHandler(storeID uint32, handler adapter.PatchHandler) (adapter.Disposable, error) {
	a.handlerMu.Lock()
	a.handlers[storeID] = handler
	a.handlerMu.Unlock()
	handler.HandlePatchHistory(adapter.PatchHistory{Checkpoint: adapter.Checkpoint{}})
	return &disposable{adapter: a, storeID: storeID}, nil
}

// BroadcastPatch sends a patch-broadcast frame and returns the patch's own
// id as the wire id; the server is the authority on redistributing it, so
// there is no reply to wait for (spec §9's Open Question: the patch's own
// OpID doubles as the wire id for this transport).
func (a *Adapter) BroadcastPatch(storeID uint32, p *patch.Patch) (string, error) {
	wire, err := encodeWirePatch(p)
	if err != nil {
		return "", err
	}
	msg := adapter.Message{Header: adapter.NewHeader(adapter.MsgPatchBroadcast)}
	content, err := json.Marshal(adapter.PatchBroadcastContent{Patch: wire})
	if err != nil {
		return "", fmt.Errorf("wsadapter: encode patch broadcast: %w", err)
	}
	msg.Content = content
	if err := a.send(msg); err != nil {
		return "", fmt.Errorf("%w: %v", storeerr.ErrAdapterUnavailable, err)
	}
	return wire.PatchID, nil
}

// FetchPatches sends a fetch-patch-request and blocks for its reply.
func (a *Adapter) FetchPatches(ctx context.Context, wireIDs []string) ([]*patch.Patch, error) {
	var out []*patch.Patch
	err := adapter.Retry(ctx, a.opts, func() error {
		reqCtx, cancel := context.WithTimeout(ctx, a.opts.FetchTimeout)
		defer cancel()

		content, err := json.Marshal(adapter.FetchPatchRequestContent{PatchIDs: wireIDs})
		if err != nil {
			return fmt.Errorf("wsadapter: encode fetch request: %w", err)
		}
		reply, err := a.request(reqCtx, adapter.Message{Header: adapter.NewHeader(adapter.MsgFetchPatchReq), Content: content})
		if err != nil {
			return err
		}
		var replyContent adapter.FetchPatchReplyContent
		if err := adapter.DecodeContent(reply, &replyContent); err != nil {
			return err
		}
		patches := make([]*patch.Patch, 0, len(replyContent.Patches))
		for _, wp := range replyContent.Patches {
			p, err := decodeWirePatch(wp, a.schema)
			if err != nil {
				return err
			}
			patches = append(patches, p)
		}
		out = patches
		return nil
	})
	return out, err
}

type disposable struct {
	adapter *Adapter
	storeID uint32
}

func (d *disposable) Dispose() {
	d.adapter.handlerMu.Lock()
	delete(d.adapter.handlers, d.storeID)
	d.adapter.handlerMu.Unlock()
}
