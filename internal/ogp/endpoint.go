// Package ogp serves rendered preview images through a cache keyed by the
// request parameters.
package ogp

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ogpimage/internal/cache"
	"ogpimage/internal/feed"
	"ogpimage/internal/font"
	"ogpimage/internal/hashutil"
	"ogpimage/internal/render"
	"ogpimage/internal/template"
)

const (
	contentTypePNG = "image/png"
	immutableCache = "public, max-age=31536000, immutable"

	// BypassParam set to "1" skips the image cache read. The fresh render
	// is still stored.
	BypassParam = "noCache"
)

// MetadataResolver finds the post addressed by a slug and date.
type MetadataResolver interface {
	ResolveRecord(ctx context.Context, slug, date string) (feed.PostRecord, error)
}

type FontResolver interface {
	Resolve(ctx context.Context, spec font.Spec) ([]font.Asset, error)
}

// Definition describes one image source.
type Definition struct {
	Name string
	Path string
	// Params are required, non-empty query parameters. They alone form the
	// cache key.
	Params  []string
	KeyBase string
	// Resolver, when set, looks the post up by the "slug" and "date" params.
	Resolver MetadataResolver
	Fonts    font.Spec
	Template template.Func
}

type Deps struct {
	Images   *cache.Namespace
	Fonts    FontResolver
	Renderer render.Renderer
	Logger   *log.Logger
}

// Endpoint drives one request through: validate, cache check, resolve,
// render, store.
type Endpoint struct {
	def  Definition
	deps Deps
}

func New(def Definition, deps Deps) *Endpoint {
	return &Endpoint{def: def, deps: deps}
}

func (e *Endpoint) Name() string { return e.def.Name }
func (e *Endpoint) Path() string { return e.def.Path }

// Result is a rendered or cached image.
type Result struct {
	Key    string
	Body   []byte
	ETag   string
	Cached bool
}

// Params extracts the required parameters from q.
func (e *Endpoint) Params(q url.Values) (map[string]string, error) {
	params := make(map[string]string, len(e.def.Params))
	var missing []string
	for _, name := range e.def.Params {
		v := q.Get(name)
		if v == "" {
			missing = append(missing, name)
			continue
		}
		params[name] = v
	}
	if len(missing) > 0 {
		return nil, &BadRequestError{Missing: missing}
	}
	return params, nil
}

// Key is the canonical cache key: the key base plus the sorted, escaped
// required parameters. Nothing else contributes.
func (e *Endpoint) Key(params map[string]string) string {
	q := url.Values{}
	for _, name := range e.def.Params {
		q.Set(name, params[name])
	}
	return e.def.KeyBase + "?" + q.Encode()
}

// Render runs the full state machine and stores the image before
// returning. The CLI uses it; HTTP requests go through ServeHTTP.
func (e *Endpoint) Render(ctx context.Context, q url.Values, bypass bool) (Result, error) {
	return e.run(ctx, q, bypass, nil)
}

// run validates q, checks the cache unless bypass is set, and otherwise
// resolves, renders and stores. deliver, when set, receives the result
// before the store write.
func (e *Endpoint) run(ctx context.Context, q url.Values, bypass bool, deliver func(Result)) (Result, error) {
	params, err := e.Params(q)
	if err != nil {
		return Result{}, err
	}
	key := e.Key(params)
	if !bypass {
		if res, ok := e.lookup(ctx, key); ok {
			if deliver != nil {
				deliver(res)
			}
			return res, nil
		}
	}

	res, err := e.produce(ctx, key, params)
	if err != nil {
		return Result{}, err
	}
	if deliver != nil {
		deliver(res)
	}
	// The caller may already have its bytes; finish the write even if it hung up.
	e.store(context.WithoutCancel(ctx), res)
	return res, nil
}

func (e *Endpoint) lookup(ctx context.Context, key string) (Result, bool) {
	body, ok := e.deps.Images.Get(ctx, key)
	if !ok {
		return Result{}, false
	}
	return Result{Key: key, Body: body, ETag: hashutil.ETag(body), Cached: true}, true
}

func (e *Endpoint) produce(ctx context.Context, key string, params map[string]string) (Result, error) {
	data := template.Data{Params: params, FontFamily: fmt.Sprintf("%q, sans-serif", e.def.Fonts.Family)}

	if e.def.Resolver != nil {
		post, err := e.def.Resolver.ResolveRecord(ctx, params["slug"], params["date"])
		if err != nil {
			return Result{}, err
		}
		data.Post = &post
	}

	fonts, err := e.deps.Fonts.Resolve(ctx, e.def.Fonts)
	if err != nil {
		return Result{}, err
	}

	tree, err := e.def.Template(data)
	if err != nil {
		return Result{}, &render.LayoutError{Message: err.Error()}
	}

	body, err := e.deps.Renderer.Render(ctx, render.Request{
		Tree:   tree,
		Fonts:  fonts,
		Width:  render.DefaultWidth,
		Height: render.DefaultHeight,
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Key: key, Body: body, ETag: hashutil.ETag(body)}, nil
}

func (e *Endpoint) store(ctx context.Context, res Result) {
	if err := e.deps.Images.Put(ctx, res.Key, res.Body, contentTypePNG, cache.ImageTTL); err != nil {
		e.deps.Logger.Printf("%s: error caching image %s: %v", e.def.Name, res.Key, err)
	}
}

func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	q := r.URL.Query()
	_, err := e.run(r.Context(), q, q.Get(BypassParam) == "1", func(res Result) {
		e.respond(w, r, res)
	})
	if err != nil {
		e.fail(w, r, err)
	}
}

func (e *Endpoint) respond(w http.ResponseWriter, r *http.Request, res Result) {
	h := w.Header()
	h.Set("Content-Type", contentTypePNG)
	h.Set("Cache-Control", immutableCache)
	h.Set("ETag", res.ETag)
	if res.Cached {
		h.Set("X-Cache", "HIT")
	} else {
		h.Set("X-Cache", "MISS")
	}

	if etagMatches(r.Header.Get("If-None-Match"), res.ETag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	h.Set("Content-Length", strconv.Itoa(len(res.Body)))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write(res.Body)
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (e *Endpoint) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := Status(err)
	if status >= http.StatusInternalServerError {
		e.deps.Logger.Printf("%s: %s %s: %v", e.def.Name, r.Method, r.URL.RequestURI(), err)
	}
	w.Header().Set("Content-Type", contentTypePNG)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	fmt.Fprint(w, msg)
}

func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}
