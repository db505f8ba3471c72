package history_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inkroom/inkroom/canvas"
	"github.com/inkroom/inkroom/history"
)

func docWith(ids ...string) canvas.Document {
	doc := canvas.Document{}
	for _, id := range ids {
		doc = doc.AddPath(canvas.Path{Id: id})
	}
	return doc
}

func TestNewStartsAtEmptySentinel(t *testing.T) {
	h := history.New()
	assert.Equal(t, 1, h.Len())
	assert.Equal(t, 0, h.Index())
	assert.True(t, h.Current().Empty())
	assert.False(t, h.CanUndo())
	assert.False(t, h.CanRedo())
}

func TestUndoRedoRoundTrip(t *testing.T) {
	h := history.New()
	a := docWith("a")
	b := docWith("a", "b")
	h.Push(a)
	h.Push(b)

	got, moved := h.Undo()
	assert.True(t, moved)
	assert.Equal(t, a, got)

	got, moved = h.Redo()
	assert.True(t, moved)
	assert.Equal(t, b, got)
}

func TestUndoAtRootIsNoOp(t *testing.T) {
	h := history.New()
	got, moved := h.Undo()
	assert.False(t, moved)
	assert.True(t, got.Empty())
	assert.Equal(t, 0, h.Index())
}

func TestRedoAtTipIsNoOp(t *testing.T) {
	h := history.New()
	h.Push(docWith("a"))
	got, moved := h.Redo()
	assert.False(t, moved)
	assert.Equal(t, docWith("a"), got)
}

func TestPushTruncatesRedoBranch(t *testing.T) {
	h := history.New()
	h.Push(docWith("a"))
	h.Push(docWith("a", "b"))
	h.Undo()

	h.Push(docWith("a", "c"))
	assert.False(t, h.CanRedo())
	assert.Equal(t, docWith("a", "c"), h.Current())

	// The overwritten branch is gone; redo after undo lands on the new tip.
	h.Undo()
	got, _ := h.Redo()
	assert.Equal(t, docWith("a", "c"), got)
}

func TestEvictionAtCapacity(t *testing.T) {
	h := history.New()
	for i := 0; i < 60; i++ {
		h.Push(docWith(fmt.Sprintf("p%d", i)))
	}

	assert.Equal(t, history.MaxStates, h.Len())
	assert.Equal(t, docWith("p59"), h.Current())

	// Undo all the way down: the floor is now p10, not the empty sentinel.
	for h.CanUndo() {
		h.Undo()
	}
	assert.Equal(t, docWith("p10"), h.Current())
}

func TestSnapshotsStayIndependent(t *testing.T) {
	h := history.New()
	doc := docWith("a")
	h.Push(doc)
	h.Push(doc.AddPath(canvas.Path{Id: "b"}))

	got, _ := h.Undo()
	assert.Equal(t, 1, got.Count())
	assert.Equal(t, "a", got.Paths[0].Id)
}
