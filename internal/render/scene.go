package render

import (
	"image/color"
	"math"

	"ogpimage/internal/font"
)

// Default canvas size for OGP images.
const (
	DefaultWidth  = 1200
	DefaultHeight = 630
	maxDimension  = 8192
)

type Rect struct {
	X, Y, W, H float64
}

func (r Rect) inset(e Edges) Rect {
	return Rect{
		X: r.X + e.Left,
		Y: r.Y + e.Top,
		W: math.Max(0, r.W-e.Left-e.Right),
		H: math.Max(0, r.H-e.Top-e.Bottom),
	}
}

func (r Rect) finite() bool {
	for _, v := range []float64{r.X, r.Y, r.W, r.H} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return r.W >= 0 && r.H >= 0
}

// Op is one drawing operation of a Scene.
type Op interface {
	bounds() Rect
}

// FillRect paints a rectangle with optionally rounded corners.
type FillRect struct {
	Rect   Rect
	Radius float64
	Paint  Paint
}

func (f FillRect) bounds() Rect { return f.Rect }

// DrawText draws a single line of text with its baseline at (X, Y).
type DrawText struct {
	X, Y   float64
	Text   string
	Family string
	Weight font.Weight
	Size   float64
	Color  color.NRGBA
}

func (d DrawText) bounds() Rect { return Rect{X: d.X, Y: d.Y, W: d.Size, H: d.Size} }

// Scene is the vector form of an image: ordered operations in canvas
// coordinates, painted back to front.
type Scene struct {
	Width  int
	Height int
	Ops    []Op
}
