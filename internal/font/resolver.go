// Package font resolves a font family and weight set to SFNT payloads,
// fetching each weight at most once per cache TTL.
package font

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ogpimage/internal/cache"
	"ogpimage/internal/fetcher"
)

// DefaultDirectoryURL is the Google Fonts developer API.
const DefaultDirectoryURL = "https://www.googleapis.com/webfonts/v1/webfonts"

const acceptFonts = "font/ttf, font/otf, font/woff, application/octet-stream;q=0.9, */*;q=0.5"

// Origin selects where a Spec's payloads come from.
type Origin string

const (
	// OriginStatic treats each WeightSource.Source as a font file URL.
	OriginStatic Origin = "static"
	// OriginDirectory treats each WeightSource.Source as a weight token
	// looked up in the font directory API by family name.
	OriginDirectory Origin = "directory"
)

type WeightSource struct {
	Source string `json:"source" yaml:"source" toml:"source"`
	Weight Weight `json:"weight,omitempty" yaml:"weight,omitempty" toml:"weight,omitempty"`
}

type Spec struct {
	Family  string         `json:"family" yaml:"family" toml:"family"`
	Origin  Origin         `json:"origin" yaml:"origin" toml:"origin"`
	Weights []WeightSource `json:"weights" yaml:"weights" toml:"weights"`
}

// Asset is a decoded SFNT font for one family and weight.
type Asset struct {
	Family string
	Weight Weight
	Data   []byte
}

type Options struct {
	APIKey       string
	DirectoryURL string
	TTL          time.Duration
}

type Resolver struct {
	cache        *cache.Namespace
	getter       fetcher.Getter
	logger       *log.Logger
	apiKey       string
	directoryURL string
	ttl          time.Duration
}

func NewResolver(ns *cache.Namespace, getter fetcher.Getter, logger *log.Logger, opts Options) *Resolver {
	if opts.DirectoryURL == "" {
		opts.DirectoryURL = DefaultDirectoryURL
	}
	if opts.TTL <= 0 {
		opts.TTL = cache.FontTTL
	}
	return &Resolver{
		cache:        ns,
		getter:       getter,
		logger:       logger,
		apiKey:       opts.APIKey,
		directoryURL: opts.DirectoryURL,
		ttl:          opts.TTL,
	}
}

type request struct {
	source string
	weight Weight
}

// Resolve fetches every weight of spec concurrently. The first failure
// cancels the remaining fetches and is returned.
func (r *Resolver) Resolve(ctx context.Context, spec Spec) ([]Asset, error) {
	reqs, err := r.plan(spec)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	// Queried at most once, and only if some weight misses the cache.
	lookup := sync.OnceValues(func() (map[string]string, error) {
		return r.directoryFiles(gctx, spec.Family)
	})

	assets := make([]Asset, len(reqs))
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			a, err := r.resolveOne(gctx, spec, req, lookup)
			if err != nil {
				return err
			}
			assets[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return assets, nil
}

func (r *Resolver) plan(spec Spec) ([]request, error) {
	reqs := make([]request, 0, len(spec.Weights))
	switch spec.Origin {
	case OriginDirectory:
		for _, ws := range spec.Weights {
			w, err := ParseWeight(ws.Source)
			if err != nil {
				return nil, err
			}
			reqs = append(reqs, request{source: ws.Source, weight: w})
		}
		if r.apiKey == "" {
			return nil, &ConfigurationError{Message: "font directory API key is not set"}
		}
	case OriginStatic, "":
		for _, ws := range spec.Weights {
			if !ws.Weight.Valid() {
				return nil, &UnknownWeightError{Token: strconv.Itoa(int(ws.Weight))}
			}
			reqs = append(reqs, request{source: ws.Source, weight: ws.Weight})
		}
	default:
		return nil, &ConfigurationError{Message: fmt.Sprintf("unknown font origin %q", spec.Origin)}
	}
	return reqs, nil
}

// CacheKey is the font's source identity: the file URL, or family and
// weight for directory fonts.
func CacheKey(spec Spec, source string, w Weight) string {
	if spec.Origin == OriginDirectory {
		return fmt.Sprintf("gfonts:%s:%d", spec.Family, w)
	}
	return source
}

func (r *Resolver) resolveOne(ctx context.Context, spec Spec, req request, lookup func() (map[string]string, error)) (Asset, error) {
	key := CacheKey(spec, req.source, req.weight)

	if payload, ok := r.cache.Get(ctx, key); ok {
		data, err := Decode(key, payload)
		if err == nil {
			return Asset{Family: spec.Family, Weight: req.weight, Data: data}, nil
		}
		r.logger.Printf("Discarding cached font %s: %v", key, err)
	}

	res, err := r.fetch(ctx, spec, req, lookup)
	if err != nil {
		if payload, ok := r.cache.GetStale(ctx, key); ok {
			if data, derr := Decode(key, payload); derr == nil {
				r.logger.Printf("Using stale font %s after fetch failure: %v", key, err)
				return Asset{Family: spec.Family, Weight: req.weight, Data: data}, nil
			}
		}
		return Asset{}, err
	}

	data, err := Decode(res.URL, res.Body)
	if err != nil {
		return Asset{}, err
	}
	if err := r.cache.Put(ctx, key, res.Body, contentType(res), r.ttl); err != nil {
		r.logger.Printf("Error caching font %s: %v", key, err)
	}
	return Asset{Family: spec.Family, Weight: req.weight, Data: data}, nil
}

func (r *Resolver) fetch(ctx context.Context, spec Spec, req request, lookup func() (map[string]string, error)) (fetcher.Result, error) {
	src := req.source
	if spec.Origin == OriginDirectory {
		files, err := lookup()
		if err != nil {
			return fetcher.Result{}, err
		}
		u, ok := files[req.weight.Token()]
		if !ok {
			u, ok = files[strings.ToLower(req.source)]
		}
		if !ok {
			return fetcher.Result{}, fetcher.Malformed(r.directoryURL,
				fmt.Sprintf("family %q has no variant %q", spec.Family, req.weight.Token()))
		}
		src = u
	}
	return r.getter.Get(ctx, src, acceptFonts)
}

type directoryResponse struct {
	Items []struct {
		Family   string            `json:"family"`
		Variants []string          `json:"variants"`
		Files    map[string]string `json:"files"`
	} `json:"items"`
}

func (r *Resolver) directoryFiles(ctx context.Context, family string) (map[string]string, error) {
	q := url.Values{}
	q.Set("key", r.apiKey)
	q.Set("family", family)
	res, err := r.getter.Get(ctx, r.directoryURL+"?"+q.Encode(), "application/json")
	if err != nil {
		return nil, err
	}

	var dir directoryResponse
	if err := json.Unmarshal(res.Body, &dir); err != nil {
		return nil, fetcher.Malformed(r.directoryURL, "invalid directory JSON: "+err.Error())
	}
	for _, item := range dir.Items {
		if strings.EqualFold(item.Family, family) {
			return item.Files, nil
		}
	}
	return nil, fetcher.Malformed(r.directoryURL, fmt.Sprintf("family %q not listed", family))
}

func contentType(res fetcher.Result) string {
	if res.ContentType != "" {
		return res.ContentType
	}
	if strings.HasSuffix(res.URL, ".woff") {
		return "font/woff"
	}
	return "font/ttf"
}
