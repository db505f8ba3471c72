package engine

import (
	"github.com/inkroom/inkroom/canvas"
	"github.com/inkroom/inkroom/geom"
)

// gestureState is the explicit in-flight input state of this session,
// threaded through begin/move/end events. Nothing here touches the document
// or history until the gesture commits; a gesture that never commits leaves
// no trace.
type gestureState struct {
	stroke strokeGesture
	shape  shapeGesture
	text   textGesture
}

// strokeGesture accumulates freehand points between pointer down and up.
type strokeGesture struct {
	active bool
	tool   canvas.Tool
	color  string
	size   float64
	points []geom.Point
}

// shapeGesture tracks a drag from its anchor. last always holds a usable
// end point: it starts at the anchor, so a commit that arrives without any
// move still produces a degenerate but well-formed shape.
type shapeGesture struct {
	active bool
	kind   canvas.ShapeKind
	color  string
	size   float64
	filled bool
	start  geom.Point
	last   geom.Point
}

// textGesture tracks the open inline editor. The provisional element lives
// in the document (marked IsEditing) so it renders while being typed;
// prior remembers the committed value when an existing text is being
// edited, so cancel can restore it.
type textGesture struct {
	active bool
	draft  canvas.Text
	prior  *canvas.Text
}

// preview returns the in-flight stroke as a path for rendering. The points
// are copied so the renderer's view cannot alias the growing slice.
func (g *strokeGesture) preview() *canvas.Path {
	if !g.active {
		return nil
	}
	pts := make([]geom.Point, len(g.points))
	copy(pts, g.points)
	return &canvas.Path{
		Tool:   g.tool,
		Color:  g.color,
		Size:   g.size,
		Points: pts,
	}
}

// preview returns the active drag as a shape for rendering.
func (g *shapeGesture) preview() *canvas.Shape {
	if !g.active {
		return nil
	}
	return &canvas.Shape{
		Kind:   g.kind,
		Color:  g.color,
		Size:   g.size,
		Start:  g.start,
		End:    g.last,
		Filled: g.filled,
	}
}
