// Package bus defines the publish/subscribe boundary the drawing room
// rides on. Everything that crosses between participants is an Envelope on
// a room topic; anything not in the event type vocabulary below stays local
// to its session (undo, redo, deletes, previews).
package bus

import (
	"context"
	"encoding/json"
)

// Event types that cross the room boundary.
const (
	EventDrawingPath  = "drawing-path"
	EventDrawingShape = "drawing-shape"
	EventTextUpdate   = "text-update"
	EventCursorMove   = "cursor-move"
	EventClearCanvas  = "clear-canvas"
)

// SenderMeta keys.
const (
	MetaDisplayName = "displayName"
	MetaColor       = "color"
)

// KnownEventType reports whether t belongs to the room event vocabulary.
// Unknown types are dropped by receivers rather than treated as errors.
func KnownEventType(t string) bool {
	switch t {
	case EventDrawingPath, EventDrawingShape, EventTextUpdate, EventCursorMove, EventClearCanvas:
		return true
	}
	return false
}

// Envelope is the wire unit of the room stream. SenderId and SenderMeta are
// stamped by the gateway from the authenticated session, never taken from
// client payloads. Origin identifies the publishing bus handle; it exists
// so an instance does not re-apply events it already applied locally.
type Envelope struct {
	Type       string            `json:"type"`
	Payload    json.RawMessage   `json:"payload,omitempty"`
	SenderId   string            `json:"senderId"`
	SenderMeta map[string]string `json:"senderMeta,omitempty"`
	Origin     string            `json:"origin,omitempty"`
}

// Handler receives envelopes published by other origins, in publish order
// per origin.
type Handler func(env Envelope)

// RoomBus relays envelopes between room participants. Publish is
// fire-and-forget from the caller's view: a failed publish is reported to
// the caller but local state is never rolled back or retried.
// Implementations stamp Origin on publish and suppress delivery of an
// origin's own envelopes back to it.
type RoomBus interface {
	Publish(ctx context.Context, topic string, env Envelope) error
	Subscribe(ctx context.Context, topic string, handler Handler) error
}
