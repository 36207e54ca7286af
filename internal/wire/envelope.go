// Package wire defines the JSON-tagged-union messages exchanged on the
// websocket transport between the embedded node, provider sessions, and
// client sessions, per spec.md §6's wire protocol section.
package wire

import "encoding/json"

// Direction tags a WideEnvelope's fan-out scope, mirroring spec.md's
// Direct/Broadcast/Multicast discriminant.
type Direction string

const (
	DirectionDirect    Direction = "direct"
	DirectionBroadcast Direction = "broadcast"
	DirectionMulticast Direction = "multicast"
)

// Envelope addresses a single payload at one direct id, the slab-allocated
// identifier a provider session assigns per active subscription.
type Envelope struct {
	DirectID uint64          `json:"direct_id"`
	Data     json.RawMessage `json:"data"`
}

// WideEnvelope addresses a payload at a set of recipients selected by
// Direction: Direct uses DirectIDs as a singleton, Multicast as a list, and
// Broadcast ignores DirectIDs entirely.
type WideEnvelope struct {
	Direction Direction       `json:"direction"`
	DirectIDs []uint64        `json:"direct_ids,omitempty"`
	Data      json.RawMessage `json:"data"`
}

// MessageType discriminates the tagged union carried inside an envelope's
// Data field.
type MessageType string

const (
	// Server -> provider.
	MessageDescribe      MessageType = "describe"
	MessageControlStream MessageType = "control_stream"

	// Provider -> server.
	MessageDeclare     MessageType = "declare"
	MessageDescription MessageType = "description"
	MessageBeginStream MessageType = "begin_stream"
	MessageData        MessageType = "data"
	MessageEndStream    MessageType = "end_stream"

	// Client <-> server.
	MessageSubscribe     MessageType = "subscribe"
	MessageUnsubscribe   MessageType = "unsubscribe"
	MessageAction        MessageType = "action"
	MessageCatalogUpdate MessageType = "catalog_update"
)

// Message is the tagged-union envelope payload. Exactly one of the typed
// fields is populated according to Type; this mirrors the closed set of
// variants spec.md §6 enumerates for the provider/client wire protocol
// without reaching for a generated protobuf oneof.
type Message struct {
	Type MessageType `json:"type"`

	Describe      *DescribeMsg      `json:"describe,omitempty"`
	ControlStream *ControlStreamMsg `json:"control_stream,omitempty"`

	Declare     *DeclareMsg     `json:"declare,omitempty"`
	Description *DescriptionMsg `json:"description,omitempty"`
	BeginStream *BeginStreamMsg `json:"begin_stream,omitempty"`
	Data        *DataMsg        `json:"data,omitempty"`
	EndStream   *EndStreamMsg   `json:"end_stream,omitempty"`

	Subscribe     *SubscribeMsg     `json:"subscribe,omitempty"`
	Unsubscribe   *UnsubscribeMsg   `json:"unsubscribe,omitempty"`
	Action        *ActionMsg        `json:"action,omitempty"`
	CatalogUpdate *CatalogUpdateMsg `json:"catalog_update,omitempty"`
}

// DescribeMsg asks a provider session to (re-)publish its catalog.
type DescribeMsg struct{}

// ControlStreamMsg starts or stops delta delivery for one entry id (the
// provider's ProviderReqId, spec.md §4.6).
type ControlStreamMsg struct {
	RequestID uint64 `json:"request_id"`
	Path      string `json:"path"`
	Subscribe bool   `json:"subscribe"`
}

// DeclareMsg announces a provider's identity (its first path segment, the
// entry id routed traffic is keyed on).
type DeclareMsg struct {
	Entry string `json:"entry"`
}

// DescriptionMsg publishes one catalog entry.
type DescriptionMsg struct {
	Path       string `json:"path"`
	Info       string `json:"info"`
	StreamType string `json:"stream_type"`
}

// BeginStreamMsg carries the initial snapshot for a newly opened
// subscription, sent exactly once before any Data message for the same
// request id (spec.md §5 ordering guarantee).
type BeginStreamMsg struct {
	RequestID uint64          `json:"request_id"`
	Snapshot  json.RawMessage `json:"snapshot"`
}

// DataMsg carries a coalesced batch of timed events for a subscription.
type DataMsg struct {
	RequestID uint64            `json:"request_id"`
	Events    []json.RawMessage `json:"events"`
}

// EndStreamMsg closes a subscription, either by provider choice or because
// the underlying recorder terminated.
type EndStreamMsg struct {
	RequestID uint64 `json:"request_id"`
	Reason    string `json:"reason,omitempty"`
}

// SubscribeMsg is a client session's request to attach to a path.
type SubscribeMsg struct {
	Path string `json:"path"`
}

// UnsubscribeMsg detaches a client session's existing subscription.
type UnsubscribeMsg struct {
	Path string `json:"path"`
}

// ActionMsg carries an inbound widget action from a client session.
type ActionMsg struct {
	Path    string          `json:"path"`
	Payload json.RawMessage `json:"payload"`
}

// CatalogUpdateMsg notifies a client session of a newly registered path.
type CatalogUpdateMsg struct {
	Description DescriptionMsg `json:"description"`
}
