package render

import "ogpimage/internal/font"

type Direction int

const (
	Row Direction = iota
	Column
)

// Align positions children on the cross axis. The zero value stretches.
type Align int

const (
	AlignStretch Align = iota
	AlignStart
	AlignCenter
	AlignEnd
)

type Justify int

const (
	JustifyStart Justify = iota
	JustifyCenter
	JustifyEnd
	JustifySpaceBetween
)

// TextAlign aligns wrapped lines. The zero value inherits from the parent.
type TextAlign int

const (
	TextInherit TextAlign = iota
	TextLeft
	TextCenter
	TextRight
)

type Edges struct {
	Top, Right, Bottom, Left float64
}

// Uniform returns Edges with all four sides set to v.
func Uniform(v float64) Edges {
	return Edges{Top: v, Right: v, Bottom: v, Left: v}
}

// Style is the subset of CSS flexbox the templates use. Zero lengths mean
// auto. Color, FontFamily, FontSize, FontWeight and TextAlign inherit.
type Style struct {
	Direction Direction
	Width     float64
	Height    float64
	Padding   Edges
	Gap       float64
	Grow      float64
	Align     Align
	Justify   Justify

	Absolute bool
	Inset    Edges

	// Background is a CSS color or linear-gradient().
	Background string
	Radius     float64

	Color      string
	FontFamily string
	FontSize   float64
	FontWeight font.Weight
	TextAlign  TextAlign
}

// Node is a box in the render tree. A node with Text is a text leaf and its
// Children are ignored.
type Node struct {
	Style    Style
	Text     string
	Children []*Node
}

func Box(style Style, children ...*Node) *Node {
	return &Node{Style: style, Children: children}
}

func Text(style Style, text string) *Node {
	return &Node{Style: style, Text: text}
}
