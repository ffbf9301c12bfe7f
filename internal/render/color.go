package render

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

var namedColors = map[string]color.NRGBA{
	"transparent": {},
	"black":       {A: 0xff},
	"white":       {R: 0xff, G: 0xff, B: 0xff, A: 0xff},
}

// ParseColor accepts #rgb, #rgba, #rrggbb, #rrggbbaa, rgb(), rgba() and a
// few named colors.
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c, nil
	}
	switch {
	case strings.HasPrefix(s, "#"):
		return parseHex(s[1:])
	case strings.HasPrefix(s, "rgba(") && strings.HasSuffix(s, ")"):
		return parseRGB(s[5 : len(s)-1])
	case strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")"):
		return parseRGB(s[4 : len(s)-1])
	}
	return color.NRGBA{}, fmt.Errorf("unsupported color %q", s)
}

func parseHex(h string) (color.NRGBA, error) {
	if len(h) == 3 || len(h) == 4 {
		var b strings.Builder
		for _, r := range h {
			b.WriteRune(r)
			b.WriteRune(r)
		}
		h = b.String()
	}
	if len(h) == 6 {
		h += "ff"
	}
	if len(h) != 8 {
		return color.NRGBA{}, fmt.Errorf("bad hex color #%s", h)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("bad hex color #%s", h)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

func parseRGB(args string) (color.NRGBA, error) {
	parts := strings.Split(args, ",")
	if len(parts) != 3 && len(parts) != 4 {
		return color.NRGBA{}, fmt.Errorf("bad rgb() arguments %q", args)
	}
	var ch [4]uint8
	ch[3] = 0xff
	for i, p := range parts {
		p = strings.TrimSpace(p)
		pct := strings.HasSuffix(p, "%")
		f, err := strconv.ParseFloat(strings.TrimSuffix(p, "%"), 64)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("bad rgb() component %q", p)
		}
		switch {
		case pct:
			f = f / 100 * 255
		case i == 3:
			f *= 255
		}
		ch[i] = uint8(math.Round(math.Max(0, math.Min(255, f))))
	}
	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}, nil
}

// GradientStop is a color at Offset (0..1) along the gradient line.
type GradientStop struct {
	Offset float64
	Color  color.NRGBA
}

// LinearGradient follows CSS semantics: 0deg points up, 90deg right. When
// Corner is set ("bottom right" and so on) the angle depends on the box.
type LinearGradient struct {
	Angle  float64
	Corner string
	Stops  []GradientStop
}

// Paint is a solid color or a linear gradient.
type Paint struct {
	Solid    color.NRGBA
	Gradient *LinearGradient
}

var sideAngles = map[string]float64{
	"top":    0,
	"right":  90,
	"bottom": 180,
	"left":   270,
}

// ParsePaint parses a CSS background: a color or linear-gradient().
func ParsePaint(s string) (Paint, error) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "linear-gradient(") {
		c, err := ParseColor(s)
		return Paint{Solid: c}, err
	}
	if !strings.HasSuffix(lower, ")") {
		return Paint{}, fmt.Errorf("unterminated gradient %q", s)
	}
	args := splitTopLevel(lower[len("linear-gradient(") : len(lower)-1])
	g := &LinearGradient{Angle: 180}

	if len(args) > 0 {
		first := strings.TrimSpace(args[0])
		switch {
		case strings.HasSuffix(first, "deg"):
			a, err := strconv.ParseFloat(strings.TrimSuffix(first, "deg"), 64)
			if err != nil {
				return Paint{}, fmt.Errorf("bad gradient angle %q", first)
			}
			g.Angle = a
			args = args[1:]
		case strings.HasPrefix(first, "to "):
			dir := strings.Fields(strings.TrimPrefix(first, "to "))
			if len(dir) == 1 {
				a, ok := sideAngles[dir[0]]
				if !ok {
					return Paint{}, fmt.Errorf("bad gradient direction %q", first)
				}
				g.Angle = a
			} else if len(dir) == 2 {
				g.Corner = dir[0] + " " + dir[1]
			} else {
				return Paint{}, fmt.Errorf("bad gradient direction %q", first)
			}
			args = args[1:]
		}
	}
	if len(args) < 2 {
		return Paint{}, fmt.Errorf("gradient needs at least two stops: %q", s)
	}

	for i, arg := range args {
		arg = strings.TrimSpace(arg)
		stop := GradientStop{Offset: float64(i) / float64(len(args)-1)}
		colorPart := arg
		if sp := strings.LastIndexByte(arg, ' '); sp > 0 && strings.HasSuffix(arg, "%") && !strings.HasSuffix(arg, ")") {
			off, err := strconv.ParseFloat(strings.TrimSuffix(arg[sp+1:], "%"), 64)
			if err != nil {
				return Paint{}, fmt.Errorf("bad stop offset %q", arg)
			}
			stop.Offset = off / 100
			colorPart = arg[:sp]
		}
		c, err := ParseColor(colorPart)
		if err != nil {
			return Paint{}, err
		}
		stop.Color = c
		g.Stops = append(g.Stops, stop)
	}
	return Paint{Gradient: g}, nil
}

// splitTopLevel splits on commas that are not inside parentheses.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// angleFor resolves the CSS gradient angle in degrees for a w by h box.
func (g *LinearGradient) angleFor(w, h float64) float64 {
	if g.Corner == "" {
		return g.Angle
	}
	vertical, horizontal := 1.0, 1.0
	for _, side := range strings.Fields(g.Corner) {
		switch side {
		case "top":
			vertical = -1
		case "left":
			horizontal = -1
		}
	}
	// The gradient line is perpendicular to the diagonal joining the two
	// corners adjacent to the target corner.
	dx, dy := horizontal*h, vertical*w
	return math.Atan2(dx, -dy) * 180 / math.Pi
}

// at returns the gradient color at t in [0, 1].
func (g *LinearGradient) at(t float64) color.NRGBA {
	stops := g.Stops
	if t <= stops[0].Offset {
		return stops[0].Color
	}
	last := stops[len(stops)-1]
	if t >= last.Offset {
		return last.Color
	}
	for i := 1; i < len(stops); i++ {
		a, b := stops[i-1], stops[i]
		if t > b.Offset {
			continue
		}
		span := b.Offset - a.Offset
		if span <= 0 {
			return b.Color
		}
		f := (t - a.Offset) / span
		return color.NRGBA{
			R: lerp8(a.Color.R, b.Color.R, f),
			G: lerp8(a.Color.G, b.Color.G, f),
			B: lerp8(a.Color.B, b.Color.B, f),
			A: lerp8(a.Color.A, b.Color.A, f),
		}
	}
	return last.Color
}

func lerp8(a, b uint8, f float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*f))
}
