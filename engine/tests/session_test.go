package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/inkroom/inkroom/bus"
	"github.com/inkroom/inkroom/canvas"
	"github.com/inkroom/inkroom/engine"
	"github.com/inkroom/inkroom/geom"
	"github.com/inkroom/inkroom/presence"
	"github.com/inkroom/inkroom/session"
)

var self = session.Identity{UserId: "u1", DisplayName: "Ana", Color: "#ef4444"}

// Helper to run a session whose publishes land on a channel
func setupSession(t *testing.T) (*engine.Session, chan bus.Envelope, context.CancelFunc) {
	t.Helper()
	pubCh := make(chan bus.Envelope, 64)

	sess := engine.New(engine.Config{
		Self: self,
		Publish: func(ctx context.Context, env bus.Envelope) error {
			pubCh <- env
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go sess.Run(ctx)
	return sess, pubCh, cancel
}

func nextPublish(t *testing.T, pubCh chan bus.Envelope) bus.Envelope {
	t.Helper()
	select {
	case env := <-pubCh:
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for publish")
		return bus.Envelope{}
	}
}

func assertNoPublish(t *testing.T, pubCh chan bus.Envelope) {
	t.Helper()
	select {
	case env := <-pubCh:
		t.Fatalf("unexpected publish: %s", env.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func pathEnvelope(t *testing.T, id, sender string, pts ...geom.Point) bus.Envelope {
	t.Helper()
	payload, err := json.Marshal(canvas.Path{
		Id:     id,
		Tool:   canvas.ToolPen,
		Color:  "#112233",
		Size:   2,
		Points: pts,
		UserId: sender,
	})
	assert.NoError(t, err)
	return bus.Envelope{Type: bus.EventDrawingPath, Payload: payload, SenderId: sender}
}

func textEnvelope(t *testing.T, id, sender, content string) bus.Envelope {
	t.Helper()
	payload, err := json.Marshal(canvas.Text{
		Id:       id,
		Content:  content,
		Color:    "#112233",
		Size:     2,
		FontSize: 18,
		Anchor:   geom.Pt(5, 5),
		UserId:   sender,
	})
	assert.NoError(t, err)
	return bus.Envelope{Type: bus.EventTextUpdate, Payload: payload, SenderId: sender}
}

func cursorEnvelope(t *testing.T, sender string, x, y float64, name, color string) bus.Envelope {
	t.Helper()
	payload, err := json.Marshal(geom.Pt(x, y))
	assert.NoError(t, err)
	return bus.Envelope{
		Type:     bus.EventCursorMove,
		Payload:  payload,
		SenderId: sender,
		SenderMeta: map[string]string{
			bus.MetaDisplayName: name,
			bus.MetaColor:       color,
		},
	}
}

func commitStroke(sess *engine.Session, pts ...geom.Point) {
	sess.BeginStroke(canvas.ToolPen, "#000", 3, pts[0])
	for _, p := range pts[1:] {
		sess.ExtendStroke(p)
	}
	sess.EndStroke()
}

func TestSnapshotObservesEnqueuedEvents(t *testing.T) {
	sess, _, cancel := setupSession(t)
	defer cancel()

	commitStroke(sess, geom.Pt(0, 0), geom.Pt(1, 1))
	snap := sess.Snapshot()

	assert.Equal(t, 1, len(snap.Document.Paths))
}

func TestInitialDocumentSeedsOneUndoStep(t *testing.T) {
	seed := canvas.Document{}.AddPath(canvas.Path{Id: "path_seed", Color: "#000", Size: 1})

	sess := engine.New(engine.Config{Self: self, Initial: &seed})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)

	snap := sess.Snapshot()
	assert.Equal(t, 1, len(snap.Document.Paths))

	// The seed is one undoable step above the empty root.
	sess.Undo()
	assert.True(t, sess.Snapshot().Document.Empty())

	sess.Redo()
	assert.Equal(t, 1, len(sess.Snapshot().Document.Paths))
}

func TestPresenceSyncFiltersSelfAndEvictsCursors(t *testing.T) {
	sess, _, cancel := setupSession(t)
	defer cancel()

	sess.SyncPresence([]presence.Participant{
		{Id: "u1", DisplayName: "Ana"},
		{Id: "u2", DisplayName: "Ben"},
		{Id: "u3", DisplayName: "Cal"},
	})
	sess.HandleRemote(cursorEnvelope(t, "u2", 4, 4, "Ben", "#3b82f6"))
	sess.HandleRemote(cursorEnvelope(t, "u3", 7, 7, "Cal", "#22c55e"))

	snap := sess.Snapshot()
	assert.Equal(t, 2, len(snap.Participants))
	assert.Equal(t, "u2", snap.Participants[0].Id)
	assert.Equal(t, 2, len(snap.Cursors))

	// u3 leaves; their cursor must vanish with them.
	sess.SyncPresence([]presence.Participant{
		{Id: "u1", DisplayName: "Ana"},
		{Id: "u2", DisplayName: "Ben"},
	})

	snap = sess.Snapshot()
	assert.Equal(t, 1, len(snap.Participants))
	assert.Equal(t, 1, len(snap.Cursors))
	assert.Equal(t, "u2", snap.Cursors[0].UserId)
}

func TestPublishFailureKeepsLocalState(t *testing.T) {
	errCh := make(chan error, 1)

	sess := engine.New(engine.Config{
		Self: self,
		Publish: func(ctx context.Context, env bus.Envelope) error {
			return errors.New("bus down")
		},
		OnPublishError: func(env bus.Envelope, err error) {
			errCh <- err
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)

	commitStroke(sess, geom.Pt(0, 0))

	select {
	case err := <-errCh:
		assert.Contains(t, err.Error(), "bus down")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for publish error")
	}

	// The commit stays applied; publishing is local-first.
	assert.Equal(t, 1, len(sess.Snapshot().Document.Paths))
}

func TestOnFrameSeesStrokePreview(t *testing.T) {
	frames := make(chan engine.Frame, 64)

	sess := engine.New(engine.Config{
		Self:    self,
		OnFrame: func(f engine.Frame) { frames <- f },
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)

	sess.BeginStroke(canvas.ToolPen, "#000", 3, geom.Pt(0, 0))
	sess.ExtendStroke(geom.Pt(5, 5))

	var got engine.Frame
	for i := 0; i < 2; i++ {
		select {
		case got = <-frames:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for frame")
		}
	}

	// Mid-gesture: the preview carries the points, the document none.
	assert.NotNil(t, got.Stroke)
	assert.Equal(t, 2, len(got.Stroke.Points))
	assert.True(t, got.Document.Empty())

	sess.EndStroke()

	select {
	case got = <-frames:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for commit frame")
	}
	assert.Nil(t, got.Stroke)
	assert.Equal(t, 1, len(got.Document.Paths))
}

func TestHistoryBoundedUnderRemoteFlood(t *testing.T) {
	sess, _, cancel := setupSession(t)
	defer cancel()

	for i := 0; i < 60; i++ {
		sess.HandleRemote(pathEnvelope(t, fmt.Sprintf("path_%d", i), "u2", geom.Pt(0, 0)))
	}
	assert.Equal(t, 60, len(sess.Snapshot().Document.Paths))

	// The timeline holds 50 states; old states were evicted, so undo
	// bottoms out at the oldest retained state instead of empty.
	for i := 0; i < 80; i++ {
		sess.Undo()
	}
	assert.Equal(t, 11, len(sess.Snapshot().Document.Paths))
}

func TestCloseStopsSession(t *testing.T) {
	sess, _, cancel := setupSession(t)
	defer cancel()

	commitStroke(sess, geom.Pt(0, 0))
	assert.Equal(t, 1, len(sess.Snapshot().Document.Paths))

	sess.Close()

	// Events after close are dropped and snapshots return zero frames.
	commitStroke(sess, geom.Pt(1, 1))
	assert.True(t, sess.Snapshot().Document.Empty())
}
