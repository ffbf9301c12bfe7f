// Package render turns a render tree and font assets into PNG bytes: layout
// produces a vector Scene which is then rasterized.
package render

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"golang.org/x/image/font/opentype"

	"ogpimage/internal/font"
	"ogpimage/internal/hashutil"
)

// Request is consumed by a single Render call and never stored.
type Request struct {
	Tree   *Node
	Fonts  []font.Asset
	Width  int
	Height int
}

type Renderer interface {
	Render(ctx context.Context, req Request) ([]byte, error)
}

// Engine is the process-wide Renderer. Its font parse cache is built on first
// use, exactly once, and lives for the rest of the process.
type Engine struct {
	logger *log.Logger

	once  sync.Once
	inits atomic.Int32

	mu     sync.Mutex
	parsed map[string]*opentype.Font
}

func NewEngine(logger *log.Logger) *Engine {
	return &Engine{logger: logger}
}

func (e *Engine) init() {
	e.once.Do(func() {
		e.inits.Add(1)
		e.parsed = make(map[string]*opentype.Font)
		e.logger.Printf("Render engine initialized")
	})
}

// Inits reports how many times initialization ran.
func (e *Engine) Inits() int {
	return int(e.inits.Load())
}

func (e *Engine) Render(ctx context.Context, req Request) ([]byte, error) {
	e.init()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	width, height := req.Width, req.Height
	if width == 0 && height == 0 {
		width, height = DefaultWidth, DefaultHeight
	}

	fonts, err := e.fontSet(req.Fonts)
	if err != nil {
		return nil, err
	}
	defer fonts.Close()

	scene, err := Layout(req.Tree, fonts, width, height)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Rasterize(scene, fonts)
}

// fontSet parses assets, reusing fonts already parsed by earlier renders.
// Parsed fonts are keyed by content so the same bytes parse once.
func (e *Engine) fontSet(assets []font.Asset) (*FontSet, error) {
	fs := NewFontSet()
	for _, a := range assets {
		key := hashutil.Blake3(a.Data)

		e.mu.Lock()
		f, ok := e.parsed[key]
		e.mu.Unlock()
		if !ok {
			var err error
			f, err = opentype.Parse(a.Data)
			if err != nil {
				return nil, layoutErrorf("parse font %q weight %d: %v", a.Family, a.Weight, err)
			}
			e.mu.Lock()
			e.parsed[key] = f
			e.mu.Unlock()
		}
		fs.Add(a.Family, a.Weight, f)
	}
	return fs, nil
}
