package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToDocument(t *testing.T) {
	tests := []struct {
		name   string
		v      Viewport
		screen Point
		want   Point
	}{
		{
			name:   "identity viewport",
			v:      NewViewport(Pt(0, 0), Pt(0, 0), 1),
			screen: Pt(10, 20),
			want:   Pt(10, 20),
		},
		{
			name:   "origin offset",
			v:      NewViewport(Pt(100, 50), Pt(0, 0), 1),
			screen: Pt(110, 70),
			want:   Pt(10, 20),
		},
		{
			name:   "pan offset",
			v:      NewViewport(Pt(0, 0), Pt(-30, 40), 1),
			screen: Pt(0, 0),
			want:   Pt(30, -40),
		},
		{
			name:   "zoomed in",
			v:      NewViewport(Pt(0, 0), Pt(0, 0), 2),
			screen: Pt(10, 20),
			want:   Pt(5, 10),
		},
		{
			name:   "zoomed out with origin and pan",
			v:      NewViewport(Pt(20, 20), Pt(5, -5), 0.5),
			screen: Pt(35, 25),
			want:   Pt(20, 20),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.v.ToDocument(tt.screen)
			assert.InDelta(t, tt.want.X, got.X, 1e-9)
			assert.InDelta(t, tt.want.Y, got.Y, 1e-9)
		})
	}
}

func TestToScreenInvertsToDocument(t *testing.T) {
	viewports := []Viewport{
		NewViewport(Pt(0, 0), Pt(0, 0), 1),
		NewViewport(Pt(120, 35), Pt(-64, 18), 0.25),
		NewViewport(Pt(-8, 300), Pt(9.5, -2.25), 3.75),
		NewViewport(Pt(0, 0), Pt(1000, -1000), 0.01),
	}
	points := []Point{
		Pt(0, 0),
		Pt(14.5, -3.25),
		Pt(-800, 600),
		Pt(0.001, 99999),
	}

	for _, v := range viewports {
		for _, p := range points {
			doc := v.ToDocument(p)
			back := v.ToScreen(doc)
			assert.InDelta(t, p.X, back.X, 1e-6)
			assert.InDelta(t, p.Y, back.Y, 1e-6)

			screen := v.ToScreen(p)
			assert.InDelta(t, p.X, v.ToDocument(screen).X, 1e-6)
			assert.InDelta(t, p.Y, v.ToDocument(screen).Y, 1e-6)
		}
	}
}

func TestViewportZoomClamped(t *testing.T) {
	v := NewViewport(Pt(0, 0), Pt(0, 0), 0)
	assert.Greater(t, v.Zoom, 0.0)

	// A zero-value viewport behaves as zoom 1 rather than dividing by zero.
	var zero Viewport
	got := zero.ToDocument(Pt(7, -7))
	assert.Equal(t, Pt(7, -7), got)
}

func TestPointOps(t *testing.T) {
	assert.Equal(t, Pt(3, 5), Pt(1, 2).Add(Pt(2, 3)))
	assert.Equal(t, Pt(-1, -1), Pt(1, 2).Sub(Pt(2, 3)))
	assert.Equal(t, Pt(2, 4), Pt(1, 2).Mul(2))
	assert.InDelta(t, 5.0, Pt(0, 0).Distance(Pt(3, 4)), 1e-9)
}
