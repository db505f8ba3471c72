package engine

import (
	"github.com/inkroom/inkroom/bus"
	"github.com/inkroom/inkroom/canvas"
	"github.com/inkroom/inkroom/geom"
	"github.com/inkroom/inkroom/presence"
)

type eventKind uint8

const (
	evStrokeBegin eventKind = iota
	evStrokeMove
	evStrokeEnd
	evShapeBegin
	evShapeMove
	evShapeEnd
	evTextBegin
	evTextEdit
	evTextCommit
	evTextCancel
	evClear
	evDelete
	evUndo
	evRedo
	evCursorMove
	evRemote
	evPresence
)

// event is one unit of the inbound stream. Local gestures, local commands,
// remote envelopes and presence syncs all ride the same queue so that the
// session applies everything in arrival order, exactly one at a time.
type event struct {
	kind   eventKind
	at     geom.Point
	tool   canvas.Tool
	shape  canvas.ShapeKind
	color  string
	size   float64
	font   float64
	filled bool
	text   string
	id     string
	ids    []string
	env    bus.Envelope
	parts  []presence.Participant
}

// op wraps an event or a snapshot request. Snapshot requests ride the same
// queue, so a snapshot observes every event enqueued before it.
type op struct {
	ev    event
	reply chan Frame
}
