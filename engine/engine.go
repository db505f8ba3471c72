// Package engine is the reconciliation core of the drawing room. A Session
// owns one participant's view of the shared document plus its history,
// presence and in-flight gestures, and applies every change through a
// single inbound queue: local input and remote events are interleaved in
// arrival order and applied one at a time by one goroutine, so no locks
// guard the document and no event is ever half-applied.
package engine

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/inkroom/inkroom/bus"
	"github.com/inkroom/inkroom/canvas"
	"github.com/inkroom/inkroom/geom"
	"github.com/inkroom/inkroom/history"
	"github.com/inkroom/inkroom/presence"
	"github.com/inkroom/inkroom/session"
)

const defaultQueueSize = 1024

// Frame is what a renderer needs for one paint: the committed document,
// the in-flight previews, and the remote cursors. Everything in it is a
// snapshot the caller may keep.
type Frame struct {
	Document     canvas.Document        `json:"document"`
	Stroke       *canvas.Path           `json:"stroke,omitempty"`
	Drag         *canvas.Shape          `json:"drag,omitempty"`
	Cursors      []presence.Cursor      `json:"cursors"`
	Participants []presence.Participant `json:"participants"`
}

type Config struct {
	// Self is the identity stamped onto everything this session commits.
	Self session.Identity
	// Initial seeds the document for late joiners. The seed sits one undo
	// step above the empty root, so a late joiner can still undo to empty.
	Initial *canvas.Document
	// Publish sends committed local events to the room. Nil disables
	// broadcasting, which is how the gateway replica runs (it only ever
	// receives).
	Publish PublishFunc
	// OnFrame is invoked after every applied event, from the session
	// goroutine. Keep it fast; it is the render boundary.
	OnFrame func(Frame)
	// OnPublishError is invoked from the publisher goroutine when a
	// publish fails. The failed event stays applied locally.
	OnPublishError func(env bus.Envelope, err error)
	// QueueSize bounds the inbound queue. Zero means the default.
	QueueSize int
}

// Session is the explicit context object of one participant in the room.
// All exported methods may be called from any goroutine; they enqueue onto
// the inbound queue and return. Run consumes the queue until the context
// is cancelled or Close is called.
type Session struct {
	self       session.Identity
	senderMeta map[string]string

	doc     canvas.Document
	hist    *history.History
	tracker *presence.Tracker
	gesture gestureState
	lastTs  int64

	ops  chan op
	quit chan struct{}
	done chan struct{}
	once sync.Once

	pub     *publisher
	onFrame func(Frame)
}

func New(cfg Config) *Session {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	hist := history.New()
	if cfg.Initial != nil && !cfg.Initial.Empty() {
		hist.Push(*cfg.Initial)
	}

	s := &Session{
		self: cfg.Self,
		senderMeta: map[string]string{
			bus.MetaDisplayName: cfg.Self.DisplayName,
			bus.MetaColor:       cfg.Self.Color,
		},
		doc:     hist.Current(),
		hist:    hist,
		tracker: presence.NewTracker(),
		ops:     make(chan op, queueSize),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		onFrame: cfg.OnFrame,
	}
	if cfg.Publish != nil {
		s.pub = newPublisher(cfg.Publish, cfg.OnPublishError, queueSize)
	}
	return s
}

// Run applies queued events until ctx is cancelled or the session is
// closed. It must be called exactly once.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)

	if s.pub != nil {
		pubCtx, cancel := context.WithCancel(context.Background())
		go s.pub.run(pubCtx)
		defer func() {
			// Let the publisher drain buffered events before Run returns.
			cancel()
			<-s.pub.done
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.quit:
			return
		case o := <-s.ops:
			if o.reply != nil {
				o.reply <- s.frame()
				continue
			}
			s.apply(o.ev)
		}
	}
}

// Close stops the session. Events enqueued after Close are dropped.
func (s *Session) Close() {
	s.once.Do(func() { close(s.quit) })
}

func (s *Session) enqueue(ev event) {
	select {
	case s.ops <- op{ev: ev}:
	case <-s.quit:
	}
}

// BeginStroke starts a freehand stroke at a document-space point. An
// already active stroke is committed first rather than lost.
func (s *Session) BeginStroke(tool canvas.Tool, color string, size float64, at geom.Point) {
	s.enqueue(event{kind: evStrokeBegin, tool: tool, color: color, size: size, at: at})
}

// ExtendStroke appends a point to the active stroke. Without an active
// stroke it is dropped; pointer moves while not drawing are cursor
// traffic, not strokes.
func (s *Session) ExtendStroke(to geom.Point) {
	s.enqueue(event{kind: evStrokeMove, at: to})
}

// EndStroke commits the active stroke: one history entry, one broadcast.
func (s *Session) EndStroke() {
	s.enqueue(event{kind: evStrokeEnd})
}

// BeginShape starts a shape drag anchored at a document-space point.
func (s *Session) BeginShape(kind canvas.ShapeKind, color string, size float64, filled bool, at geom.Point) {
	s.enqueue(event{kind: evShapeBegin, shape: kind, color: color, size: size, filled: filled, at: at})
}

// DragShape moves the free corner of the active shape drag.
func (s *Session) DragShape(to geom.Point) {
	s.enqueue(event{kind: evShapeMove, at: to})
}

// EndShape commits the active shape drag. If the pointer never moved the
// shape degenerates to its anchor point.
func (s *Session) EndShape() {
	s.enqueue(event{kind: evShapeEnd})
}

// BeginText opens a new provisional text element at an anchor point. The
// element is visible immediately but joins history only on commit.
func (s *Session) BeginText(anchor geom.Point, color string, size, fontSize float64) {
	s.enqueue(event{kind: evTextBegin, at: anchor, color: color, size: size, font: fontSize})
}

// EditText reopens an existing text element for editing. Unknown ids are
// dropped.
func (s *Session) EditText(id string) {
	s.enqueue(event{kind: evTextEdit, id: id})
}

// CommitText finishes the open editor with its final value. A value that
// trims to empty cancels instead of committing.
func (s *Session) CommitText(value string) {
	s.enqueue(event{kind: evTextCommit, text: value})
}

// CancelText abandons the open editor, rolling the provisional element
// back: removed if it was new, restored if it was a committed text.
func (s *Session) CancelText() {
	s.enqueue(event{kind: evTextCancel})
}

// Clear empties the document. Clearing an already empty document still
// records a history entry and still broadcasts.
func (s *Session) Clear() {
	s.enqueue(event{kind: evClear})
}

// Delete removes elements by id as a single history step. Deletes stay
// local: they are not part of the room event vocabulary.
func (s *Session) Delete(ids ...string) {
	s.enqueue(event{kind: evDelete, ids: ids})
}

// Undo steps back one history state. At the oldest state it does nothing.
func (s *Session) Undo() {
	s.enqueue(event{kind: evUndo})
}

// Redo steps forward one history state. At the newest state it does
// nothing.
func (s *Session) Redo() {
	s.enqueue(event{kind: evRedo})
}

// MoveCursor broadcasts this participant's pointer position. Cursor moves
// are always published, even when the position is unchanged, and never
// touch the document or history.
func (s *Session) MoveCursor(at geom.Point) {
	s.enqueue(event{kind: evCursorMove, at: at})
}

// HandleRemote feeds an envelope received from the room into the queue.
// Remote events mutate state exactly like local commits but are never
// re-published.
func (s *Session) HandleRemote(env bus.Envelope) {
	s.enqueue(event{kind: evRemote, env: env})
}

// SyncPresence replaces the known roster. This session's own identity is
// filtered out; the tracker holds remote participants only.
func (s *Session) SyncPresence(parts []presence.Participant) {
	s.enqueue(event{kind: evPresence, parts: parts})
}

// Snapshot returns the current frame via a queue round trip, so it
// reflects every event enqueued before it. It returns a zero frame once
// the session has stopped.
func (s *Session) Snapshot() Frame {
	reply := make(chan Frame, 1)
	select {
	case s.ops <- op{reply: reply}:
	case <-s.quit:
		return Frame{}
	case <-s.done:
		return Frame{}
	}

	select {
	case f := <-reply:
		return f
	case <-s.done:
		return Frame{}
	}
}

func (s *Session) apply(ev event) {
	switch ev.kind {
	case evStrokeBegin:
		s.applyStrokeBegin(ev)
	case evStrokeMove:
		if s.gesture.stroke.active {
			s.gesture.stroke.points = append(s.gesture.stroke.points, ev.at)
		}
	case evStrokeEnd:
		s.applyStrokeEnd()
	case evShapeBegin:
		s.applyShapeBegin(ev)
	case evShapeMove:
		if s.gesture.shape.active {
			s.gesture.shape.last = ev.at
		}
	case evShapeEnd:
		s.applyShapeEnd()
	case evTextBegin:
		s.applyTextBegin(ev)
	case evTextEdit:
		s.applyTextEdit(ev)
	case evTextCommit:
		s.applyTextCommit(ev)
	case evTextCancel:
		s.applyTextCancel()
	case evClear:
		s.doc = s.doc.Clear()
		s.pushHistory()
		s.publishEvent(bus.EventClearCanvas, struct{}{})
	case evDelete:
		s.applyDelete(ev)
	case evUndo:
		s.doc, _ = s.hist.Undo()
	case evRedo:
		s.doc, _ = s.hist.Redo()
	case evCursorMove:
		s.publishEvent(bus.EventCursorMove, ev.at)
	case evRemote:
		s.applyRemote(ev.env)
	case evPresence:
		s.applyPresence(ev.parts)
	}

	s.emitFrame()
}

func (s *Session) applyStrokeBegin(ev event) {
	// A begin while a stroke is in flight means the end event was lost;
	// commit what we have instead of dropping it.
	if s.gesture.stroke.active {
		s.applyStrokeEnd()
	}
	tool := ev.tool
	if tool < 0 || tool >= canvas.ToolCount {
		tool = canvas.ToolPen
	}
	s.gesture.stroke = strokeGesture{
		active: true,
		tool:   tool,
		color:  canvas.NormalizeColor(ev.color),
		size:   canvas.NormalizeSize(ev.size),
		points: []geom.Point{ev.at},
	}
}

func (s *Session) applyStrokeEnd() {
	g := &s.gesture.stroke
	if !g.active {
		return
	}
	path := canvas.Path{
		Id:        canvas.NewElementId("path"),
		Tool:      g.tool,
		Color:     g.color,
		Size:      g.size,
		Points:    g.points,
		UserId:    canvas.NormalizeUserId(s.self.UserId),
		Timestamp: s.nextTimestamp(),
	}
	s.gesture.stroke = strokeGesture{}

	s.doc = s.doc.AddPath(path)
	s.pushHistory()
	s.publishEvent(bus.EventDrawingPath, path)
}

func (s *Session) applyShapeBegin(ev event) {
	if s.gesture.shape.active {
		s.applyShapeEnd()
	}
	kind := ev.shape
	if kind < 0 || kind >= canvas.ShapeKindCount {
		kind = canvas.ShapeRectangle
	}
	s.gesture.shape = shapeGesture{
		active: true,
		kind:   kind,
		color:  canvas.NormalizeColor(ev.color),
		size:   canvas.NormalizeSize(ev.size),
		filled: ev.filled,
		start:  ev.at,
		last:   ev.at,
	}
}

func (s *Session) applyShapeEnd() {
	g := &s.gesture.shape
	if !g.active {
		return
	}
	shape := canvas.Shape{
		Id:        canvas.NewElementId("shape"),
		Kind:      g.kind,
		Color:     g.color,
		Size:      g.size,
		Start:     g.start,
		End:       g.last,
		Filled:    g.filled,
		UserId:    canvas.NormalizeUserId(s.self.UserId),
		Timestamp: s.nextTimestamp(),
	}
	s.gesture.shape = shapeGesture{}

	s.doc = s.doc.AddShape(shape)
	s.pushHistory()
	s.publishEvent(bus.EventDrawingShape, shape)
}

func (s *Session) applyTextBegin(ev event) {
	if s.gesture.text.active {
		s.applyTextCancel()
	}
	draft := canvas.Text{
		Id:        canvas.NewElementId("text"),
		Color:     canvas.NormalizeColor(ev.color),
		Size:      canvas.NormalizeSize(ev.size),
		FontSize:  canvas.NormalizeFontSize(ev.font),
		Anchor:    ev.at,
		UserId:    canvas.NormalizeUserId(s.self.UserId),
		IsEditing: true,
	}
	s.gesture.text = textGesture{active: true, draft: draft}
	s.doc = s.doc.UpsertText(draft)
}

func (s *Session) applyTextEdit(ev event) {
	if s.gesture.text.active {
		s.applyTextCancel()
	}
	existing, ok := s.doc.TextById(ev.id)
	if !ok {
		return
	}
	prior := existing
	draft := existing
	draft.IsEditing = true
	s.gesture.text = textGesture{active: true, draft: draft, prior: &prior}
	s.doc = s.doc.UpsertText(draft)
}

func (s *Session) applyTextCommit(ev event) {
	g := &s.gesture.text
	if !g.active {
		return
	}
	if strings.TrimSpace(ev.text) == "" {
		s.applyTextCancel()
		return
	}

	final := g.draft
	final.Content = ev.text
	final.IsEditing = false
	final.UserId = canvas.NormalizeUserId(s.self.UserId)
	final.Timestamp = s.nextTimestamp()
	s.gesture.text = textGesture{}

	s.doc = s.doc.UpsertText(final)
	s.pushHistory()
	s.publishEvent(bus.EventTextUpdate, final)
}

func (s *Session) applyTextCancel() {
	g := &s.gesture.text
	if !g.active {
		return
	}
	if g.prior != nil {
		// Restore the committed value, but only if the element still
		// exists; cancel must never create anything.
		if _, ok := s.doc.TextById(g.prior.Id); ok {
			s.doc = s.doc.UpsertText(*g.prior)
		}
	} else {
		s.doc = s.doc.RemoveElements(g.draft.Id)
	}
	s.gesture.text = textGesture{}
}

func (s *Session) applyDelete(ev event) {
	next := s.doc.RemoveElements(ev.ids...)
	if next.Count() == s.doc.Count() {
		return
	}
	s.doc = next
	s.pushHistory()
}

func (s *Session) applyPresence(parts []presence.Participant) {
	remote := make([]presence.Participant, 0, len(parts))
	for _, p := range parts {
		if p.Id != s.self.UserId {
			remote = append(remote, p)
		}
	}
	s.tracker.SyncRoster(remote)
}

func (s *Session) applyRemote(env bus.Envelope) {
	switch env.Type {
	case bus.EventDrawingPath:
		var p canvas.Path
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			log.Printf("Dropping malformed %s payload: %v", env.Type, err)
			return
		}
		if err := canvas.ValidatePath(p); err != nil {
			log.Printf("Dropping invalid %s payload: %v", env.Type, err)
			return
		}
		if env.SenderId != "" {
			p.UserId = env.SenderId
		}
		s.doc = s.doc.AddPath(p)
		s.pushHistory()

	case bus.EventDrawingShape:
		var sh canvas.Shape
		if err := json.Unmarshal(env.Payload, &sh); err != nil {
			log.Printf("Dropping malformed %s payload: %v", env.Type, err)
			return
		}
		if err := canvas.ValidateShape(sh); err != nil {
			log.Printf("Dropping invalid %s payload: %v", env.Type, err)
			return
		}
		if env.SenderId != "" {
			sh.UserId = env.SenderId
		}
		s.doc = s.doc.AddShape(sh)
		s.pushHistory()

	case bus.EventTextUpdate:
		var t canvas.Text
		if err := json.Unmarshal(env.Payload, &t); err != nil {
			log.Printf("Dropping malformed %s payload: %v", env.Type, err)
			return
		}
		if err := canvas.ValidateText(t); err != nil {
			log.Printf("Dropping invalid %s payload: %v", env.Type, err)
			return
		}
		if env.SenderId != "" {
			t.UserId = env.SenderId
		}
		// Unknown ids insert; known ids replace. Last writer wins.
		s.doc = s.doc.UpsertText(t)
		s.pushHistory()

	case bus.EventClearCanvas:
		s.doc = s.doc.Clear()
		s.pushHistory()

	case bus.EventCursorMove:
		if env.SenderId == "" || env.SenderId == s.self.UserId {
			return
		}
		var at geom.Point
		if err := json.Unmarshal(env.Payload, &at); err != nil {
			log.Printf("Dropping malformed %s payload: %v", env.Type, err)
			return
		}
		s.tracker.UpdateCursor(presence.Cursor{
			UserId:      env.SenderId,
			X:           at.X,
			Y:           at.Y,
			DisplayName: env.SenderMeta[bus.MetaDisplayName],
			Color:       env.SenderMeta[bus.MetaColor],
		})

	default:
		log.Printf("Unknown room event type: %s", env.Type)
	}
}

func (s *Session) publishEvent(eventType string, payload any) {
	if s.pub == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to encode %s payload: %v", eventType, err)
		return
	}
	s.pub.enqueue(bus.Envelope{
		Type:       eventType,
		Payload:    raw,
		SenderId:   canvas.NormalizeUserId(s.self.UserId),
		SenderMeta: s.senderMeta,
	})
}

// pushHistory records the current document as a history state. A
// provisional text element still being edited is excluded from the
// snapshot; in-progress edits never join history.
func (s *Session) pushHistory() {
	snap := s.doc
	if g := s.gesture.text; g.active {
		if g.prior != nil {
			snap = snap.UpsertText(*g.prior)
		} else {
			snap = snap.RemoveElements(g.draft.Id)
		}
	}
	s.hist.Push(snap)
}

func (s *Session) frame() Frame {
	return Frame{
		Document:     s.doc,
		Stroke:       s.gesture.stroke.preview(),
		Drag:         s.gesture.shape.preview(),
		Cursors:      s.tracker.Cursors(),
		Participants: s.tracker.Participants(),
	}
}

func (s *Session) emitFrame() {
	if s.onFrame != nil {
		s.onFrame(s.frame())
	}
}

// nextTimestamp returns milliseconds since epoch, forced strictly
// increasing so two commits in the same millisecond stay ordered.
func (s *Session) nextTimestamp() int64 {
	now := time.Now().UnixMilli()
	if now <= s.lastTs {
		now = s.lastTs + 1
	}
	s.lastTs = now
	return now
}
