package adapter

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// MsgType enumerates spec §6's wire message types.
type MsgType string

const (
	MsgStoreIDRequest  MsgType = "storeid-request"
	MsgStoreIDReply    MsgType = "storeid-reply"
	MsgPatchBroadcast  MsgType = "patch-broadcast"
	MsgFetchPatchReq   MsgType = "fetch-patch-request"
	MsgFetchPatchReply MsgType = "fetch-patch-reply"
)

// Header is the envelope every wire message carries (spec §6).
type Header struct {
	MsgID    string  `json:"msgId"`
	MsgType  MsgType `json:"msgType"`
	ParentID string  `json:"parentId,omitempty"`
}

// Message is the full wire frame: {header, content}. Content is kept raw
// so a transport can dispatch on Header.MsgType before decoding the
// type-specific payload.
type Message struct {
	Header  Header          `json:"header"`
	Content json.RawMessage `json:"content"`
}

// NewHeader builds a fresh request header with a random UUIDv4 msgId.
func NewHeader(msgType MsgType) Header {
	return Header{MsgID: uuid.NewString(), MsgType: msgType}
}

// ReplyHeader builds a reply header carrying the request's msgId as
// parentId (spec §6 "replies carry the request's msgId as parentId").
func ReplyHeader(msgType MsgType, requestMsgID string) Header {
	return Header{MsgID: uuid.NewString(), MsgType: msgType, ParentID: requestMsgID}
}

// StoreIDReplyContent is storeid-reply's content.
type StoreIDReplyContent struct {
	StoreID uint32 `json:"storeId"`
}

// PatchBroadcastContent is patch-broadcast's content.
type PatchBroadcastContent struct {
	Patch WirePatch `json:"patch"`
}

// WirePatch is the JSON shape of a broadcast patch: the adapter-assigned
// id alongside the store's own patch content.
type WirePatch struct {
	PatchID string          `json:"patchId"`
	StoreID uint32          `json:"storeId"`
	Content json.RawMessage `json:"content"`
}

// FetchPatchRequestContent is fetch-patch-request's content.
type FetchPatchRequestContent struct {
	PatchIDs []string `json:"patchIds"`
}

// FetchPatchReplyContent is fetch-patch-reply's content.
type FetchPatchReplyContent struct {
	Patches []WirePatch `json:"patches"`
}

// DecodeContent unmarshals m.Content into v, wrapping errors with the
// message's msgType for easier diagnosis of "unknown or malformed
// messages are logged and discarded" per spec §4.7.
func DecodeContent(m Message, v interface{}) error {
	if err := json.Unmarshal(m.Content, v); err != nil {
		return fmt.Errorf("adapter: decode %s content: %w", m.Header.MsgType, err)
	}
	return nil
}
