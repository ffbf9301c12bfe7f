package feed

import (
	"bytes"
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/gosimple/slug"
	"github.com/mmcdole/gofeed"

	"ogpimage/internal/fetcher"
)

const acceptFeeds = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"

// IndexSource fetches the full list of upstream records.
type IndexSource interface {
	URL() string
	FetchIndex(ctx context.Context) ([]PostRecord, error)
}

// FeedSource reads an RSS or Atom feed. Items may carry custom slug, hidden
// and tags (comma joined) elements.
type FeedSource struct {
	url    string
	getter fetcher.Getter
	parser *gofeed.Parser
}

func NewFeedSource(feedURL string, getter fetcher.Getter) *FeedSource {
	return &FeedSource{url: feedURL, getter: getter, parser: gofeed.NewParser()}
}

func (s *FeedSource) URL() string { return s.url }

func (s *FeedSource) FetchIndex(ctx context.Context) ([]PostRecord, error) {
	res, err := s.getter.Get(ctx, s.url, acceptFeeds)
	if err != nil {
		return nil, err
	}
	parsed, err := s.parser.Parse(bytes.NewReader(res.Body))
	if err != nil {
		return nil, fetcher.Malformed(s.url, "error parsing feed: "+err.Error())
	}

	records := make([]PostRecord, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		records = append(records, recordFromItem(item))
	}
	return records, nil
}

func recordFromItem(item *gofeed.Item) PostRecord {
	rec := PostRecord{
		Title: strings.TrimSpace(item.Title),
		Link:  strings.TrimSpace(item.Link),
		Slug:  strings.TrimSpace(item.Custom["slug"]),
	}

	switch {
	case item.PublishedParsed != nil:
		rec.Date = FormatDate(*item.PublishedParsed)
	case item.UpdatedParsed != nil:
		rec.Date = FormatDate(*item.UpdatedParsed)
	default:
		rec.Date = NormalizeDate(item.Published)
	}

	if rec.Slug == "" {
		rec.Slug = slugFromLink(rec.Link)
	}

	hidden := strings.ToLower(strings.TrimSpace(item.Custom["hidden"]))
	rec.Hidden = hidden == "true" || hidden == "1"

	if tags, ok := item.Custom["tags"]; ok {
		rec.Tags = splitTags(tags)
	} else {
		rec.Tags = append([]string{}, item.Categories...)
	}
	return rec
}

// slugFromLink uses the last path segment of link, normalized.
func slugFromLink(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	last := path.Base(strings.TrimSuffix(u.Path, "/"))
	if last == "." || last == "/" {
		return ""
	}
	return slug.Make(last)
}

func splitTags(s string) []string {
	tags := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
