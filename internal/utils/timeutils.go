package utils

import (
	"strings"
	"time"
)

var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseISODate parses common ISO-like date strings ("2024-01-31",
// "2024-01-31T12:34:56", trailing Z allowed). Returns false instead of an
// error so callers scanning loose evidence stay robust.
func ParseISODate(value string) (time.Time, bool) {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if strings.HasSuffix(s, "Z") {
		return ParseISODate(strings.TrimSuffix(s, "Z"))
	}
	return time.Time{}, false
}
