// Package history keeps the bounded undo/redo timeline of the drawing
// session: full document snapshots in a linear sequence with a cursor.
package history

import "github.com/inkroom/inkroom/canvas"

// MaxStates bounds memory use. When the timeline is full the oldest state
// is evicted, so very old edits become permanent.
const MaxStates = 50

// History is a linear sequence of document snapshots. Index 0 starts as the
// empty document so the first undo always has somewhere to land. History is
// not safe for concurrent use; the owning session goroutine serializes
// access.
type History struct {
	states []canvas.Document
	index  int
}

// New returns a history seeded with a single empty document.
func New() *History {
	return &History{states: []canvas.Document{{}}}
}

// Push records a new current state. Any states above the cursor (the redo
// branch) are discarded first, so redo is only available until the next
// edit. When the timeline exceeds MaxStates the oldest state is evicted and
// the cursor keeps naming the state just pushed.
func (h *History) Push(d canvas.Document) {
	h.states = append(h.states[:h.index+1], d)
	h.index++
	if len(h.states) > MaxStates {
		copy(h.states, h.states[1:])
		h.states = h.states[:len(h.states)-1]
		h.index--
	}
}

// Undo steps the cursor back one state. It returns the document now current
// and whether the cursor moved; at the oldest state it is a no-op.
func (h *History) Undo() (canvas.Document, bool) {
	if h.index == 0 {
		return h.states[h.index], false
	}
	h.index--
	return h.states[h.index], true
}

// Redo steps the cursor forward one state. It returns the document now
// current and whether the cursor moved; at the newest state it is a no-op.
func (h *History) Redo() (canvas.Document, bool) {
	if h.index >= len(h.states)-1 {
		return h.states[h.index], false
	}
	h.index++
	return h.states[h.index], true
}

// Current returns the document the cursor points at.
func (h *History) Current() canvas.Document {
	return h.states[h.index]
}

// Len returns the number of retained states.
func (h *History) Len() int {
	return len(h.states)
}

// Index returns the cursor position.
func (h *History) Index() int {
	return h.index
}

// CanUndo reports whether Undo would move the cursor.
func (h *History) CanUndo() bool {
	return h.index > 0
}

// CanRedo reports whether Redo would move the cursor.
func (h *History) CanRedo() bool {
	return h.index < len(h.states)-1
}
