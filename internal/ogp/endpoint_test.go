package ogp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"ogpimage/internal/cache"
	"ogpimage/internal/feed"
	"ogpimage/internal/fetcher"
	"ogpimage/internal/font"
	"ogpimage/internal/render"
	"ogpimage/internal/template"
)

var testLogger = log.New(io.Discard, "", 0)

type fakeMetadata struct {
	calls   atomic.Int32
	records map[string]feed.PostRecord
}

func (f *fakeMetadata) ResolveRecord(ctx context.Context, slug, date string) (feed.PostRecord, error) {
	f.calls.Add(1)
	rec, ok := f.records[slug]
	if !ok || !rec.Matches(slug, date) {
		return feed.PostRecord{}, feed.ErrNotFound
	}
	return rec, nil
}

// countingRenderer counts calls into the real engine.
type countingRenderer struct {
	inner render.Renderer
	calls atomic.Int32
}

func (c *countingRenderer) Render(ctx context.Context, req render.Request) ([]byte, error) {
	c.calls.Add(1)
	return c.inner.Render(ctx, req)
}

// sequenceRenderer returns a different payload on every call.
type sequenceRenderer struct {
	calls atomic.Int32
}

func (s *sequenceRenderer) Render(ctx context.Context, req render.Request) ([]byte, error) {
	n := s.calls.Add(1)
	return []byte(fmt.Sprintf("render-%d", n)), nil
}

type fontGetter struct {
	mu    sync.Mutex
	calls int
}

func (g *fontGetter) Get(ctx context.Context, rawURL, accept string) (fetcher.Result, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	switch {
	case strings.HasSuffix(rawURL, "Bold.ttf"):
		return fetcher.Result{URL: rawURL, Body: gobold.TTF}, nil
	case strings.HasSuffix(rawURL, "Regular.ttf"):
		return fetcher.Result{URL: rawURL, Body: goregular.TTF}, nil
	}
	return fetcher.Result{}, &fetcher.FetchError{URL: rawURL, Message: "unexpected", Cause: fetcher.ErrCauseRequest4xx, StatusCode: 404}
}

var staticFonts = font.Spec{
	Family: "Go",
	Origin: font.OriginStatic,
	Weights: []font.WeightSource{
		{Source: "https://fonts.test/Go-Bold.ttf", Weight: font.Bold},
		{Source: "https://fonts.test/Go-Regular.ttf", Weight: font.Regular},
	},
}

type fixture struct {
	store    *cache.MemoryStore
	meta     *fakeMetadata
	getter   *fontGetter
	renderer *countingRenderer
	blog     *Endpoint
	tools    *Endpoint
}

func newFixture(t *testing.T, renderer render.Renderer, apiKey string, blogFonts font.Spec) *fixture {
	t.Helper()
	f := &fixture{
		store: cache.NewMemoryStore(),
		meta: &fakeMetadata{records: map[string]feed.PostRecord{
			"hello": {Title: "Hello", Slug: "hello", Date: "2024-05-01", Link: "https://kq5.jp/hello"},
		}},
		getter: &fontGetter{},
	}
	if renderer == nil {
		f.renderer = &countingRenderer{inner: render.NewEngine(testLogger)}
		renderer = f.renderer
	}
	fontNS := cache.NewNamespace(f.store, cache.NamespaceFonts, testLogger)
	deps := Deps{
		Images:   cache.NewNamespace(f.store, cache.NamespaceImages, testLogger),
		Fonts:    font.NewResolver(fontNS, f.getter, testLogger, font.Options{APIKey: apiKey, DirectoryURL: "https://dir.test/webfonts"}),
		Renderer: renderer,
		Logger:   testLogger,
	}
	f.blog = New(Definition{
		Name:     "blog",
		Path:     "/blog/image.png",
		Params:   []string{"slug", "date"},
		KeyBase:  "https://ogp.kq5.jp/blog/image.png",
		Resolver: f.meta,
		Fonts:    blogFonts,
		Template: template.Blog,
	}, deps)
	f.tools = New(Definition{
		Name:     "tools",
		Path:     "/tools/image.png",
		Params:   []string{"cat", "slug", "title"},
		KeyBase:  "https://ogp.t3x.jp/tools/image.png",
		Fonts:    staticFonts,
		Template: template.Tools,
	}, deps)
	return f
}

func get(h http.Handler, target string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestKeyDeterministic(t *testing.T) {
	f := newFixture(t, &sequenceRenderer{}, "", staticFonts)

	a := f.tools.Key(map[string]string{"cat": "text", "slug": "count", "title": "Counter"})
	b := f.tools.Key(map[string]string{"title": "Counter", "slug": "count", "cat": "text"})
	assert.Equal(t, a, b)
	assert.Equal(t, "https://ogp.t3x.jp/tools/image.png?cat=text&slug=count&title=Counter", a)

	variants := []map[string]string{
		{"cat": "text2", "slug": "count", "title": "Counter"},
		{"cat": "text", "slug": "count2", "title": "Counter"},
		{"cat": "text", "slug": "count", "title": "Counter2"},
		{"cat": "text&slug=count", "slug": "", "title": "Counter"},
	}
	for _, v := range variants {
		assert.NotEqual(t, a, f.tools.Key(v), "%v", v)
	}
}

func TestKeyIgnoresBypassAndExtraParams(t *testing.T) {
	f := newFixture(t, &sequenceRenderer{}, "", staticFonts)
	q, _ := url.ParseQuery("slug=hello&date=2024-05-01&noCache=1&utm_source=x")
	params, err := f.blog.Params(q)
	require.NoError(t, err)
	assert.Equal(t, "https://ogp.kq5.jp/blog/image.png?date=2024-05-01&slug=hello", f.blog.Key(params))
}

func TestRepeatRequestServedFromCache(t *testing.T) {
	f := newFixture(t, nil, "", staticFonts)

	first := get(f.blog, "/blog/image.png?slug=hello&date=2024-05-01")
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.Equal(t, "image/png", first.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=31536000, immutable", first.Header().Get("Cache-Control"))
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := get(f.blog, "/blog/image.png?slug=hello&date=2024-05-01")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.True(t, bytes.Equal(first.Body.Bytes(), second.Body.Bytes()))
	assert.Equal(t, first.Header().Get("ETag"), second.Header().Get("ETag"))

	assert.EqualValues(t, 1, f.renderer.calls.Load(), "second request never re-renders")
	assert.EqualValues(t, 1, f.meta.calls.Load())
}

func TestBypassStillWrites(t *testing.T) {
	seq := &sequenceRenderer{}
	f := newFixture(t, seq, "", staticFonts)
	target := "/tools/image.png?cat=text&slug=count&title=Counter"

	assert.Equal(t, "render-1", get(f.tools, target).Body.String())
	assert.Equal(t, "render-1", get(f.tools, target).Body.String())
	assert.Equal(t, "render-2", get(f.tools, target+"&noCache=1").Body.String())
	assert.Equal(t, "render-2", get(f.tools, target).Body.String(), "bypass render replaced the cached entry")
	assert.EqualValues(t, 2, seq.calls.Load())
}

func TestMissingParamsIsBadRequest(t *testing.T) {
	f := newFixture(t, &sequenceRenderer{}, "", staticFonts)

	for _, target := range []string{
		"/blog/image.png",
		"/blog/image.png?slug=hello",
		"/blog/image.png?date=2024-05-01",
		"/blog/image.png?slug=&date=2024-05-01",
	} {
		rr := get(f.blog, target)
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
		assert.Equal(t, "image/png", rr.Header().Get("Content-Type"), target)
		assert.Equal(t, "Invalid Parameters", rr.Body.String())
	}
	assert.Zero(t, f.meta.calls.Load(), "no upstream lookup for bad requests")
	assert.Zero(t, f.getter.calls)

	rr := get(f.tools, "/tools/image.png?cat=text&slug=count")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUnknownPostIsNotFound(t *testing.T) {
	f := newFixture(t, &sequenceRenderer{}, "", staticFonts)

	rr := get(f.blog, "/blog/image.png?slug=nope&date=2024-05-01")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.Equal(t, "Post not found", rr.Body.String())
	assert.Empty(t, rr.Header().Get("Cache-Control"))
	assert.Zero(t, f.store.Len(cache.NamespaceImages))
}

func TestMissingCredentialOnlyBreaksDirectoryFonts(t *testing.T) {
	directory := font.Spec{
		Family:  "M PLUS Rounded 1c",
		Origin:  font.OriginDirectory,
		Weights: []font.WeightSource{{Source: "regular"}, {Source: "700"}},
	}
	f := newFixture(t, &sequenceRenderer{}, "", directory)

	rr := get(f.blog, "/blog/image.png?slug=hello&date=2024-05-01")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rr.Body.String(), "Server Error: "))

	rr = get(f.tools, "/tools/image.png?cat=text&slug=count&title=Counter")
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestCachedImageServedWithoutCredential(t *testing.T) {
	directory := font.Spec{Family: "M PLUS Rounded 1c", Origin: font.OriginDirectory, Weights: []font.WeightSource{{Source: "regular"}}}
	f := newFixture(t, &sequenceRenderer{}, "", directory)
	params := map[string]string{"slug": "hello", "date": "2024-05-01"}
	require.NoError(t, cache.NewNamespace(f.store, cache.NamespaceImages, testLogger).
		Put(context.Background(), f.blog.Key(params), []byte("png"), "image/png", cache.ImageTTL))

	rr := get(f.blog, "/blog/image.png?slug=hello&date=2024-05-01")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "png", rr.Body.String())
}

func TestIfNoneMatch(t *testing.T) {
	f := newFixture(t, &sequenceRenderer{}, "", staticFonts)
	target := "/tools/image.png?cat=text&slug=count&title=Counter"

	etag := get(f.tools, target).Header().Get("ETag")
	require.NotEmpty(t, etag)

	rr := get(f.tools, target, "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, rr.Code)
	assert.Zero(t, rr.Body.Len())

	rr = get(f.tools, target, "If-None-Match", `"other"`)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRenderForCLI(t *testing.T) {
	seq := &sequenceRenderer{}
	f := newFixture(t, seq, "", staticFonts)
	q := url.Values{"cat": {"text"}, "slug": {"count"}, "title": {"Counter"}}

	res, err := f.tools.Render(context.Background(), q, false)
	require.NoError(t, err)
	assert.False(t, res.Cached)

	res, err = f.tools.Render(context.Background(), q, false)
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, "render-1", string(res.Body))

	_, err = f.tools.Render(context.Background(), url.Values{}, false)
	var bad *BadRequestError
	assert.True(t, errors.As(err, &bad))
}

func TestRenderAndServeShareCache(t *testing.T) {
	seq := &sequenceRenderer{}
	f := newFixture(t, seq, "", staticFonts)
	target := "/tools/image.png?cat=text&slug=count&title=Counter"
	q := url.Values{"cat": {"text"}, "slug": {"count"}, "title": {"Counter"}}

	served := get(f.tools, target)
	require.Equal(t, http.StatusOK, served.Code)

	res, err := f.tools.Render(context.Background(), q, false)
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, served.Body.String(), string(res.Body))
	assert.Equal(t, served.Header().Get("ETag"), res.ETag)

	res, err = f.tools.Render(context.Background(), q, true)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, "render-2", string(res.Body))

	again := get(f.tools, target)
	assert.Equal(t, "HIT", again.Header().Get("X-Cache"))
	assert.Equal(t, "render-2", again.Body.String())
	assert.EqualValues(t, 2, seq.calls.Load())
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&BadRequestError{Missing: []string{"slug"}}, 400},
		{feed.ErrNotFound, 404},
		{fmt.Errorf("wrapped: %w", feed.ErrNotFound), 404},
		{&font.ConfigurationError{Message: "x"}, 500},
		{&font.UnknownWeightError{Token: "heavy"}, 500},
		{&fetcher.FetchError{Cause: fetcher.ErrCauseRequest5xx}, 500},
		{&render.LayoutError{Message: "x"}, 500},
		{&render.RasterError{Message: "x"}, 500},
		{errors.New("boom"), 500},
	}
	for _, tt := range tests {
		got, _ := Status(tt.err)
		assert.Equal(t, tt.want, got, "%v", tt.err)
	}
}

func TestNonGetIsNotFound(t *testing.T) {
	f := newFixture(t, &sequenceRenderer{}, "", staticFonts)
	req := httptest.NewRequest(http.MethodPost, "/tools/image.png?cat=a&slug=b&title=c", nil)
	rr := httptest.NewRecorder()
	f.tools.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
