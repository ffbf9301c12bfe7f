package render

import (
	"image/color"
	"math"
	"strings"
	"unicode"

	xfont "golang.org/x/image/font"

	"ogpimage/internal/font"
)

const (
	defaultFontSize  = 16
	lineHeightFactor = 1.2
)

// inherited carries the CSS properties that flow from parent to child.
type inherited struct {
	color      color.NRGBA
	familyList string
	size       float64
	weight     font.Weight
	align      TextAlign
}

type layouter struct {
	fonts *FontSet
	ops   []Op
}

// Layout positions tree on a width by height canvas and returns the scene.
// Text is measured with fonts; a family or weight that is not loaded is a
// LayoutError.
func Layout(tree *Node, fonts *FontSet, width, height int) (Scene, error) {
	if tree == nil {
		return Scene{}, layoutErrorf("empty render tree")
	}
	if width <= 0 || height <= 0 || width > maxDimension || height > maxDimension {
		return Scene{}, layoutErrorf("invalid canvas %dx%d", width, height)
	}
	if fonts == nil {
		fonts = NewFontSet()
	}
	l := &layouter{fonts: fonts}
	root := inherited{
		color:  color.NRGBA{A: 0xff},
		size:   defaultFontSize,
		weight: font.Regular,
		align:  TextLeft,
	}
	if err := l.place(tree, root, Rect{W: float64(width), H: float64(height)}); err != nil {
		return Scene{}, err
	}
	return Scene{Width: width, Height: height, Ops: l.ops}, nil
}

func (l *layouter) inherit(n *Node, parent inherited) (inherited, error) {
	in := parent
	st := n.Style
	if st.Color != "" {
		c, err := ParseColor(st.Color)
		if err != nil {
			return in, layoutErrorf("%v", err)
		}
		in.color = c
	}
	if st.FontFamily != "" {
		in.familyList = st.FontFamily
	}
	if st.FontSize > 0 {
		in.size = st.FontSize
	}
	if st.FontWeight != 0 {
		if !st.FontWeight.Valid() {
			return in, layoutErrorf("invalid font weight %d", st.FontWeight)
		}
		in.weight = st.FontWeight
	}
	if st.TextAlign != TextInherit {
		in.align = st.TextAlign
	}
	return in, nil
}

func (l *layouter) face(in inherited) (xfont.Face, string, error) {
	family, ok := l.fonts.match(in.familyList)
	if !ok {
		return nil, "", layoutErrorf("no loaded font matches font-family %q", in.familyList)
	}
	face, err := l.fonts.Face(family, in.weight, in.size)
	if err != nil {
		return nil, "", layoutErrorf("%v", err)
	}
	return face, family, nil
}

func (l *layouter) place(n *Node, parent inherited, r Rect) error {
	in, err := l.inherit(n, parent)
	if err != nil {
		return err
	}
	st := n.Style

	if st.Background != "" {
		paint, err := ParsePaint(st.Background)
		if err != nil {
			return layoutErrorf("background: %v", err)
		}
		l.ops = append(l.ops, FillRect{Rect: r, Radius: st.Radius, Paint: paint})
	}

	content := r.inset(st.Padding)
	if n.Text != "" {
		return l.placeText(n.Text, in, content)
	}

	var flow, abs []*Node
	for _, c := range n.Children {
		if c == nil {
			continue
		}
		if c.Style.Absolute {
			abs = append(abs, c)
		} else {
			flow = append(flow, c)
		}
	}

	if err := l.placeFlow(st, flow, in, content); err != nil {
		return err
	}
	for _, c := range abs {
		if err := l.place(c, in, absoluteRect(c.Style, r)); err != nil {
			return err
		}
	}
	return nil
}

func absoluteRect(st Style, container Rect) Rect {
	r := container.inset(st.Inset)
	if st.Width > 0 {
		r.W = st.Width
	}
	if st.Height > 0 {
		r.H = st.Height
	}
	return r
}

func (l *layouter) placeFlow(st Style, flow []*Node, in inherited, content Rect) error {
	if len(flow) == 0 {
		return nil
	}
	row := st.Direction == Row
	mainAvail, crossAvail := content.H, content.W
	if row {
		mainAvail, crossAvail = content.W, content.H
	}

	mains := make([]float64, len(flow))
	crosses := make([]float64, len(flow))
	var used, totalGrow float64
	for i, c := range flow {
		w, h, err := l.measure(c, in, content.W)
		if err != nil {
			return err
		}
		if row {
			mains[i], crosses[i] = w, h
		} else {
			mains[i], crosses[i] = h, w
		}
		used += mains[i]
		totalGrow += math.Max(0, c.Style.Grow)
	}

	gaps := st.Gap * float64(len(flow)-1)
	free := mainAvail - used - gaps
	if free > 0 && totalGrow > 0 {
		for i, c := range flow {
			mains[i] += free * math.Max(0, c.Style.Grow) / totalGrow
		}
		free = 0
	}

	var pos, between float64
	switch st.Justify {
	case JustifyCenter:
		pos = free / 2
	case JustifyEnd:
		pos = free
	case JustifySpaceBetween:
		if len(flow) > 1 && free > 0 {
			between = free / float64(len(flow)-1)
		}
	}

	for i, c := range flow {
		cross, crossPos := crosses[i], 0.0
		explicit := c.Style.Width > 0
		if row {
			explicit = c.Style.Height > 0
		}
		switch st.Align {
		case AlignStretch:
			if !explicit {
				cross = crossAvail
			}
		case AlignCenter:
			crossPos = (crossAvail - cross) / 2
		case AlignEnd:
			crossPos = crossAvail - cross
		}

		cr := Rect{X: content.X + crossPos, Y: content.Y + pos, W: cross, H: mains[i]}
		if row {
			cr = Rect{X: content.X + pos, Y: content.Y + crossPos, W: mains[i], H: cross}
		}
		if err := l.place(c, in, cr); err != nil {
			return err
		}
		pos += mains[i] + st.Gap + between
	}
	return nil
}

// measure returns the intrinsic border-box size of n when at most availW
// wide.
func (l *layouter) measure(n *Node, parent inherited, availW float64) (float64, float64, error) {
	in, err := l.inherit(n, parent)
	if err != nil {
		return 0, 0, err
	}
	st := n.Style
	padX := st.Padding.Left + st.Padding.Right
	padY := st.Padding.Top + st.Padding.Bottom
	if st.Width > 0 {
		availW = st.Width
	}
	inner := math.Max(0, availW-padX)

	var w, h float64
	if n.Text != "" {
		face, _, err := l.face(in)
		if err != nil {
			return 0, 0, err
		}
		lines := wrap(n.Text, face, inner)
		for _, line := range lines {
			w = math.Max(w, advance(face, line))
		}
		h = float64(len(lines)) * in.size * lineHeightFactor
	} else {
		var count int
		for _, c := range n.Children {
			if c == nil || c.Style.Absolute {
				continue
			}
			cw, ch, err := l.measure(c, in, inner)
			if err != nil {
				return 0, 0, err
			}
			if st.Direction == Row {
				w += cw
				h = math.Max(h, ch)
			} else {
				w = math.Max(w, cw)
				h += ch
			}
			count++
		}
		if count > 1 {
			if st.Direction == Row {
				w += st.Gap * float64(count-1)
			} else {
				h += st.Gap * float64(count-1)
			}
		}
	}

	w += padX
	h += padY
	if st.Width > 0 {
		w = st.Width
	}
	if st.Height > 0 {
		h = st.Height
	}
	return w, h, nil
}

func (l *layouter) placeText(text string, in inherited, box Rect) error {
	face, family, err := l.face(in)
	if err != nil {
		return err
	}
	m := face.Metrics()
	ascent := float64(m.Ascent) / 64
	descent := float64(m.Descent) / 64
	lineHeight := in.size * lineHeightFactor

	y := box.Y
	for _, line := range wrap(text, face, box.W) {
		x := box.X
		switch in.align {
		case TextCenter:
			x += (box.W - advance(face, line)) / 2
		case TextRight:
			x += box.W - advance(face, line)
		}
		l.ops = append(l.ops, DrawText{
			X:      x,
			Y:      y + (lineHeight-(ascent+descent))/2 + ascent,
			Text:   line,
			Family: family,
			Weight: in.weight,
			Size:   in.size,
			Color:  in.color,
		})
		y += lineHeight
	}
	return nil
}

func advance(face xfont.Face, s string) float64 {
	return float64(xfont.MeasureString(face, s)) / 64
}

// wrap breaks text into lines no wider than maxW. Words break at spaces;
// CJK text may break between any two characters, and a single word wider
// than the line is split by character.
func wrap(text string, face xfont.Face, maxW float64) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		var line string
		for _, tok := range tokenize(para) {
			if tok == " " {
				if line != "" {
					line += " "
				}
				continue
			}
			candidate := line + tok
			if advance(face, candidate) <= maxW {
				line = candidate
				continue
			}
			if trimmed := strings.TrimRight(line, " "); trimmed != "" {
				lines = append(lines, trimmed)
			}
			line = ""
			for _, r := range tok {
				next := line + string(r)
				if line != "" && advance(face, next) > maxW {
					lines = append(lines, line)
					next = string(r)
				}
				line = next
			}
		}
		lines = append(lines, strings.TrimRight(line, " "))
	}
	return lines
}

func tokenize(s string) []string {
	var toks []string
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			toks = append(toks, word.String())
			word.Reset()
		}
	}
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			flush()
			toks = append(toks, " ")
		case isBreakAnywhere(r):
			flush()
			toks = append(toks, string(r))
		default:
			word.WriteRune(r)
		}
	}
	flush()
	return toks
}

func isBreakAnywhere(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) ||
		(r >= 0x3000 && r <= 0x303f) || (r >= 0xff00 && r <= 0xffef)
}
