package feed

import "errors"

// ErrNotFound is returned when no record matches after every fallback stage.
var ErrNotFound = errors.New("post not found")

// PostRecord is one upstream content item. Records are snapshots: a refresh
// replaces the cached list wholesale.
type PostRecord struct {
	Title  string   `json:"title"`
	Link   string   `json:"link"`
	Date   string   `json:"date"`
	Slug   string   `json:"slug"`
	Hidden bool     `json:"hidden"`
	Tags   []string `json:"tags"`
}

// Matches reports whether the record is the one addressed by slug and date.
// The date is normalized before comparison.
func (p PostRecord) Matches(slug, date string) bool {
	return p.Slug == slug && p.Date == NormalizeDate(date)
}

func find(records []PostRecord, slug, date string) (PostRecord, bool) {
	for _, r := range records {
		if r.Matches(slug, date) {
			return r, true
		}
	}
	return PostRecord{}, false
}
