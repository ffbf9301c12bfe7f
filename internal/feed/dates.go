package feed

import (
	"strings"
	"time"
)

// DateLayout is the canonical record date.
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	DateLayout,
	"2006/01/02",
	"2006.01.02",
}

// ParseDate parses the timestamp formats seen in feeds and pages.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeDate converts s to its UTC calendar date. Unparseable input is
// returned trimmed so it can never match a parsed record date.
func NormalizeDate(s string) string {
	t, ok := ParseDate(s)
	if !ok {
		return strings.TrimSpace(s)
	}
	return FormatDate(t)
}

func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
