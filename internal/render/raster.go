package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	xfont "golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// circle approximation constant for cubic Béziers
const kappa = 0.5522847498

// Rasterize paints scene onto a transparent canvas and encodes it as PNG.
func Rasterize(scene Scene, faces FaceSource) ([]byte, error) {
	if scene.Width <= 0 || scene.Height <= 0 || scene.Width > maxDimension || scene.Height > maxDimension {
		return nil, &RasterError{Message: fmt.Sprintf("invalid canvas %dx%d", scene.Width, scene.Height)}
	}
	img := image.NewRGBA(image.Rect(0, 0, scene.Width, scene.Height))

	for i, op := range scene.Ops {
		if !op.bounds().finite() {
			return nil, &RasterError{Message: fmt.Sprintf("op %d has non-finite geometry", i)}
		}
		switch op := op.(type) {
		case FillRect:
			if err := fillRect(img, op); err != nil {
				return nil, &RasterError{Message: fmt.Sprintf("op %d", i), Err: err}
			}
		case DrawText:
			if err := drawText(img, op, faces); err != nil {
				return nil, &RasterError{Message: fmt.Sprintf("op %d", i), Err: err}
			}
		default:
			return nil, &RasterError{Message: fmt.Sprintf("op %d has unknown type %T", i, op)}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, &RasterError{Message: "png encode", Err: err}
	}
	return buf.Bytes(), nil
}

func fillRect(dst *image.RGBA, op FillRect) error {
	b := dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	roundedRect(z, op.Rect, op.Radius, float32(b.Dx()), float32(b.Dy()))

	var src image.Image
	if g := op.Paint.Gradient; g != nil {
		if len(g.Stops) == 0 {
			return fmt.Errorf("gradient without stops")
		}
		src = newGradientImage(g, op.Rect, b)
	} else {
		src = image.NewUniform(op.Paint.Solid)
	}
	z.Draw(dst, b, src, image.Point{})
	return nil
}

func roundedRect(z *vector.Rasterizer, r Rect, radius float64, maxX, maxY float32) {
	clamp := func(x, y float64) (float32, float32) {
		return float32(math.Max(0, math.Min(float64(maxX), x))), float32(math.Max(0, math.Min(float64(maxY), y)))
	}
	moveTo := func(x, y float64) { z.MoveTo(clamp(x, y)) }
	lineTo := func(x, y float64) { z.LineTo(clamp(x, y)) }
	cubeTo := func(ax, ay, bx, by, x, y float64) {
		x0, y0 := clamp(ax, ay)
		x1, y1 := clamp(bx, by)
		x2, y2 := clamp(x, y)
		z.CubeTo(x0, y0, x1, y1, x2, y2)
	}

	x0, y0, x1, y1 := r.X, r.Y, r.X+r.W, r.Y+r.H
	rad := math.Max(0, math.Min(radius, math.Min(r.W, r.H)/2))
	if rad == 0 {
		moveTo(x0, y0)
		lineTo(x1, y0)
		lineTo(x1, y1)
		lineTo(x0, y1)
		z.ClosePath()
		return
	}
	k := rad * (1 - kappa)
	moveTo(x0+rad, y0)
	lineTo(x1-rad, y0)
	cubeTo(x1-k, y0, x1, y0+k, x1, y0+rad)
	lineTo(x1, y1-rad)
	cubeTo(x1, y1-k, x1-k, y1, x1-rad, y1)
	lineTo(x0+rad, y1)
	cubeTo(x0+k, y1, x0, y1-k, x0, y1-rad)
	lineTo(x0, y0+rad)
	cubeTo(x0, y0+k, x0+k, y0, x0+rad, y0)
	z.ClosePath()
}

// gradientImage evaluates a CSS linear gradient over box.
type gradientImage struct {
	g      *LinearGradient
	bounds image.Rectangle
	cx, cy float64
	dx, dy float64
	length float64
}

func newGradientImage(g *LinearGradient, box Rect, bounds image.Rectangle) *gradientImage {
	rad := g.angleFor(box.W, box.H) * math.Pi / 180
	dx, dy := math.Sin(rad), -math.Cos(rad)
	return &gradientImage{
		g:      g,
		bounds: bounds,
		cx:     box.X + box.W/2,
		cy:     box.Y + box.H/2,
		dx:     dx,
		dy:     dy,
		length: math.Abs(box.W*dx) + math.Abs(box.H*dy),
	}
}

func (gi *gradientImage) ColorModel() color.Model { return color.NRGBAModel }

func (gi *gradientImage) Bounds() image.Rectangle { return gi.bounds }

func (gi *gradientImage) At(x, y int) color.Color {
	if gi.length == 0 {
		return gi.g.Stops[0].Color
	}
	px, py := float64(x)+0.5-gi.cx, float64(y)+0.5-gi.cy
	t := (px*gi.dx+py*gi.dy)/gi.length + 0.5
	return gi.g.at(t)
}

func drawText(dst *image.RGBA, op DrawText, faces FaceSource) error {
	if faces == nil {
		return fmt.Errorf("no fonts for text %q", op.Text)
	}
	face, err := faces.Face(op.Family, op.Weight, op.Size)
	if err != nil {
		return err
	}
	d := &xfont.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(op.Color),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.Int26_6(math.Round(op.X * 64)), Y: fixed.Int26_6(math.Round(op.Y * 64))},
	}
	d.DrawString(op.Text)
	return nil
}
