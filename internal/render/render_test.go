package render

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"image/png"
	"io"
	"log"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"ogpimage/internal/font"
)

var testLogger = log.New(io.Discard, "", 0)

func goAssets() []font.Asset {
	return []font.Asset{
		{Family: "Go", Weight: font.Regular, Data: goregular.TTF},
		{Family: "Go", Weight: font.Bold, Data: gobold.TTF},
	}
}

func goFonts(t *testing.T) *FontSet {
	t.Helper()
	fs, err := ParseFonts(goAssets())
	require.NoError(t, err)
	t.Cleanup(fs.Close)
	return fs
}

func sampleTree(title string) *Node {
	return Box(Style{
		Direction:  Column,
		Align:      AlignCenter,
		Justify:    JustifyCenter,
		Background: "linear-gradient(to bottom right, #13161b, #131217)",
		Color:      "#eee",
		FontFamily: `"Go", sans-serif`,
	},
		Box(Style{
			Absolute:   true,
			Inset:      Uniform(60),
			Radius:     30,
			Background: "rgba(33,36,56,.8)",
			Direction:  Column,
			Padding:    Uniform(40),
			Gap:        20,
		},
			Text(Style{FontSize: 36, Color: "#aaa"}, "/hello-world"),
			Text(Style{FontSize: 70, FontWeight: font.Bold, Grow: 1}, title),
			Box(Style{FontSize: 45, FontWeight: font.Bold, Justify: JustifySpaceBetween},
				Text(Style{}, "2024-05-01"),
				Text(Style{}, "kq5.jp"),
			),
		),
	)
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
	}{
		{"#eee", color.NRGBA{0xee, 0xee, 0xee, 0xff}},
		{"#13161b", color.NRGBA{0x13, 0x16, 0x1b, 0xff}},
		{"#5a596b45", color.NRGBA{0x5a, 0x59, 0x6b, 0x45}},
		{"rgba(33,36,56,.8)", color.NRGBA{33, 36, 56, 204}},
		{"rgb(255, 0, 0)", color.NRGBA{255, 0, 0, 255}},
		{"transparent", color.NRGBA{}},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "#12", "#ggg", "rgb(1,2)", "hsl(0,0%,0%)"} {
		_, err := ParseColor(bad)
		assert.Error(t, err, bad)
	}
}

func TestParsePaint(t *testing.T) {
	p, err := ParsePaint("linear-gradient(0deg, #0f0c38, #030221)")
	require.NoError(t, err)
	require.NotNil(t, p.Gradient)
	assert.Equal(t, 0.0, p.Gradient.Angle)
	require.Len(t, p.Gradient.Stops, 2)
	assert.Equal(t, 1.0, p.Gradient.Stops[1].Offset)

	p, err = ParsePaint("linear-gradient(to bottom right, rgba(0,0,0,.5) 10%, #fff)")
	require.NoError(t, err)
	assert.Equal(t, "bottom right", p.Gradient.Corner)
	assert.InDelta(t, 0.1, p.Gradient.Stops[0].Offset, 1e-9)
	assert.InDelta(t, 135, p.Gradient.angleFor(100, 100), 1e-9)

	p, err = ParsePaint("#fff")
	require.NoError(t, err)
	assert.Nil(t, p.Gradient)

	_, err = ParsePaint("linear-gradient(#fff)")
	assert.Error(t, err)
}

func TestLayoutAbsoluteInset(t *testing.T) {
	scene, err := Layout(sampleTree("Hello"), goFonts(t), DefaultWidth, DefaultHeight)
	require.NoError(t, err)

	var rects []FillRect
	var texts []DrawText
	for _, op := range scene.Ops {
		switch op := op.(type) {
		case FillRect:
			rects = append(rects, op)
		case DrawText:
			texts = append(texts, op)
		}
	}
	require.Len(t, rects, 2)
	assert.Equal(t, Rect{W: 1200, H: 630}, rects[0].Rect)
	assert.Equal(t, Rect{X: 60, Y: 60, W: 1080, H: 510}, rects[1].Rect)
	assert.Equal(t, 30.0, rects[1].Radius)

	require.Len(t, texts, 4)
	assert.Equal(t, "/hello-world", texts[0].Text)
	assert.Equal(t, 100.0, texts[0].X, "text starts at card padding")
	assert.Equal(t, font.Bold, texts[1].Weight)
	assert.Equal(t, color.NRGBA{0xee, 0xee, 0xee, 0xff}, texts[1].Color, "color is inherited")

	date, site := texts[2], texts[3]
	assert.Equal(t, 100.0, date.X)
	assert.Greater(t, site.X, 900.0, "space-between pushes the last item to the right edge")
	assert.Equal(t, date.Y, site.Y)
	assert.Less(t, date.Y, 530.0)
}

func TestLayoutWrapsLongText(t *testing.T) {
	title := strings.Repeat("wrapping words ", 20)
	scene, err := Layout(sampleTree(title), goFonts(t), DefaultWidth, DefaultHeight)
	require.NoError(t, err)

	var lines int
	for _, op := range scene.Ops {
		if d, ok := op.(DrawText); ok && d.Size == 70 {
			lines++
			assert.Equal(t, 100.0, d.X)
		}
	}
	assert.Greater(t, lines, 1)
}

func TestWrapBreaksCJKAndLongWords(t *testing.T) {
	fs := goFonts(t)
	face, err := fs.Face("go", font.Regular, 20)
	require.NoError(t, err)

	for _, text := range []string{"日本語のタイトルがとても長い場合の折り返し", strings.Repeat("x", 200)} {
		lines := wrap(text, face, 150)
		assert.Greater(t, len(lines), 1, text)
		for _, line := range lines {
			assert.LessOrEqual(t, advance(face, line), 150.0, line)
		}
		assert.Equal(t, text, strings.Join(lines, ""))
	}
}

func TestLayoutMissingFont(t *testing.T) {
	tree := Text(Style{FontFamily: "Inconsolata"}, "hi")
	_, err := Layout(tree, goFonts(t), 100, 100)
	var le *LayoutError
	require.ErrorAs(t, err, &le)

	tree = Text(Style{FontFamily: "Go", FontWeight: font.Thin}, "hi")
	_, err = Layout(tree, goFonts(t), 100, 100)
	require.ErrorAs(t, err, &le, "weight must be loaded")

	_, err = Layout(nil, goFonts(t), 100, 100)
	require.ErrorAs(t, err, &le)
}

func TestRasterizeGradient(t *testing.T) {
	scene := Scene{Width: 10, Height: 100, Ops: []Op{
		FillRect{Rect: Rect{W: 10, H: 100}, Paint: Paint{Gradient: &LinearGradient{Angle: 180, Stops: []GradientStop{
			{Offset: 0, Color: color.NRGBA{R: 255, A: 255}},
			{Offset: 1, Color: color.NRGBA{B: 255, A: 255}},
		}}}},
	}}
	out, err := Rasterize(scene, nil)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	r, _, b, _ := img.At(5, 0).RGBA()
	assert.Greater(t, r, b, "top is red")
	r, _, b, _ = img.At(5, 99).RGBA()
	assert.Greater(t, b, r, "bottom is blue")
}

func TestRasterizeRejectsBadScenes(t *testing.T) {
	var re *RasterError
	_, err := Rasterize(Scene{}, nil)
	assert.ErrorAs(t, err, &re)

	_, err = Rasterize(Scene{Width: 10, Height: 10, Ops: []Op{FillRect{Rect: Rect{W: math.NaN(), H: 1}}}}, nil)
	assert.ErrorAs(t, err, &re)

	_, err = Rasterize(Scene{Width: 10, Height: 10, Ops: []Op{DrawText{Text: "x", Family: "missing", Weight: font.Regular, Size: 10}}}, NewFontSet())
	assert.ErrorAs(t, err, &re)
}

func TestEngineRenderDeterministic(t *testing.T) {
	e := NewEngine(testLogger)
	req := Request{Tree: sampleTree("Deterministic"), Fonts: goAssets()}

	first, err := e.Render(context.Background(), req)
	require.NoError(t, err)
	second, err := e.Render(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(first, second))

	img, err := png.Decode(bytes.NewReader(first))
	require.NoError(t, err)
	assert.Equal(t, DefaultWidth, img.Bounds().Dx())
	assert.Equal(t, DefaultHeight, img.Bounds().Dy())
}

func TestEngineInitOnce(t *testing.T) {
	e := NewEngine(testLogger)
	req := Request{Tree: sampleTree("Concurrent"), Fonts: goAssets(), Width: 300, Height: 200}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Render(context.Background(), req)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, e.Inits())
}

func TestEngineLayoutErrorPropagates(t *testing.T) {
	e := NewEngine(testLogger)
	_, err := e.Render(context.Background(), Request{Tree: sampleTree("x")})
	var le *LayoutError
	assert.True(t, errors.As(err, &le))
}
