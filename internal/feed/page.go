package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"ogpimage/internal/fetcher"
)

const acceptPages = "text/html, application/xhtml+xml;q=0.9, */*;q=0.5"

// Extractor turns a content page into a record. Implementations return
// ErrNotFound when the page does not have the expected structure.
type Extractor interface {
	Extract(body []byte) (PostRecord, error)
}

// PageSource looks a single record up by slug on its own page.
type PageSource struct {
	template  string
	getter    fetcher.Getter
	extractor Extractor
}

// NewPageSource builds a source from a URL template containing "{slug}".
func NewPageSource(template string, getter fetcher.Getter, extractor Extractor) *PageSource {
	if extractor == nil {
		extractor = DefaultSelectorExtractor()
	}
	return &PageSource{template: template, getter: getter, extractor: extractor}
}

func (s *PageSource) URL(slug string) string {
	return strings.ReplaceAll(s.template, "{slug}", url.PathEscape(slug))
}

// FetchPage fetches and extracts the page for slug. The record is marked
// hidden since pages absent from the index are unlisted.
func (s *PageSource) FetchPage(ctx context.Context, slug string) (PostRecord, error) {
	pageURL := s.URL(slug)
	res, err := s.getter.Get(ctx, pageURL, acceptPages)
	if err != nil {
		var fetchErr *fetcher.FetchError
		if errors.As(err, &fetchErr) && fetchErr.StatusCode == 404 {
			return PostRecord{}, ErrNotFound
		}
		return PostRecord{}, err
	}
	rec, err := s.extractor.Extract(res.Body)
	if err != nil {
		return PostRecord{}, err
	}
	rec.Slug = slug
	rec.Link = pageURL
	rec.Hidden = true
	return rec, nil
}

// SelectorExtractor reads a record out of HTML with CSS selectors.
type SelectorExtractor struct {
	Title string `json:"title" yaml:"title" toml:"title"`
	// Date matches an element whose datetime attribute, or text, holds the
	// publish timestamp.
	Date string `json:"date" yaml:"date" toml:"date"`
	Tags string `json:"tags" yaml:"tags" toml:"tags"`
}

func DefaultSelectorExtractor() SelectorExtractor {
	return SelectorExtractor{
		Title: "article h1, main h1, h1",
		Date:  "article time, time",
		Tags:  `a[rel~="tag"], .tags a`,
	}
}

func (e SelectorExtractor) Extract(body []byte) (PostRecord, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return PostRecord{}, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	doc := goquery.NewDocumentFromNode(root)

	title := strings.TrimSpace(doc.Find(e.Title).First().Text())
	if title == "" {
		return PostRecord{}, fmt.Errorf("%w: no element matches %q", ErrNotFound, e.Title)
	}

	dateSel := doc.Find(e.Date).First()
	raw, ok := dateSel.Attr("datetime")
	if !ok || strings.TrimSpace(raw) == "" {
		raw = dateSel.Text()
	}
	t, ok := ParseDate(raw)
	if !ok {
		return PostRecord{}, fmt.Errorf("%w: no parseable date in %q", ErrNotFound, e.Date)
	}

	tags := []string{}
	if e.Tags != "" {
		doc.Find(e.Tags).Each(func(_ int, s *goquery.Selection) {
			if tag := strings.TrimPrefix(strings.TrimSpace(s.Text()), "#"); tag != "" {
				tags = append(tags, tag)
			}
		})
	}

	return PostRecord{Title: title, Date: FormatDate(t), Tags: tags}, nil
}
