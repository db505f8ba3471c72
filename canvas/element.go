// Package canvas holds the document model of the shared drawing surface:
// the three element kinds and the pure operations that produce new document
// values from old ones.
package canvas

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/inkroom/inkroom/geom"
)

type Tool int

const (
	ToolPen Tool = iota
	// ToolEraser paints the background color over earlier content rather
	// than deleting it, so erased pixels reappear if the background changes.
	ToolEraser
	ToolCount
)

type ShapeKind int

const (
	ShapeRectangle ShapeKind = iota
	ShapeCircle
	ShapeLine
	ShapeKindCount
)

// Path is a committed freehand stroke: an ordered polyline in document space.
type Path struct {
	Id        string       `json:"id"`
	Tool      Tool         `json:"tool"`
	Color     string       `json:"color"`
	Size      float64      `json:"size"`
	Points    []geom.Point `json:"points"`
	UserId    string       `json:"userId"`
	Timestamp int64        `json:"timestamp"`
}

// Shape is a committed geometric primitive defined by two corner points.
type Shape struct {
	Id        string     `json:"id"`
	Kind      ShapeKind  `json:"kind"`
	Color     string     `json:"color"`
	Size      float64    `json:"size"`
	Start     geom.Point `json:"start"`
	End       geom.Point `json:"end"`
	Filled    bool       `json:"filled,omitempty"`
	UserId    string     `json:"userId"`
	Timestamp int64      `json:"timestamp"`
}

// Text is a text label anchored at a document-space point. IsEditing is
// transient local state: it marks the element whose inline editor is open on
// this client and never crosses the wire.
type Text struct {
	Id        string     `json:"id"`
	Content   string     `json:"text"`
	Color     string     `json:"color"`
	Size      float64    `json:"size"`
	FontSize  float64    `json:"fontSize"`
	Anchor    geom.Point `json:"anchor"`
	UserId    string     `json:"userId"`
	Timestamp int64      `json:"timestamp"`
	IsEditing bool       `json:"-"`
}

// NewElementId returns an id of the form <prefix>_<unix-ms>_<8 hex chars>.
// Ids are unique across all element kinds and are never reused, so
// remote updates can match elements by id alone.
func NewElementId(prefix string) string {
	random := hex.EncodeToString(uuid.Must(uuid.NewV4()).Bytes()[:4])
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), random)
}
