// Package timestamp normalizes the timestamp shapes found in stored history:
// native times, ISO-8601 strings and the legacy space-separated format older
// SQLite rows were written with.
package timestamp

import (
	"strings"
	"time"
)

// Layouts tried in order after the ISO-8601 forms.
var legacyLayouts = []string{
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Normalize converts v to a UTC time. It never fails: nil, unsupported types
// and unparseable strings all yield nil.
func Normalize(v any) *time.Time {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return nil
		}
		u := t.UTC()
		return &u
	case *time.Time:
		if t == nil {
			return nil
		}
		return Normalize(*t)
	case string:
		return Parse(t)
	case *string:
		if t == nil {
			return nil
		}
		return Parse(*t)
	case []byte:
		return Parse(string(t))
	}
	return nil
}

// Parse parses an ISO-8601 string, falling back to the legacy
// "YYYY-MM-DD HH:MM:SS[.ffffff]" form.
func Parse(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			u := t.UTC()
			return &u
		}
	}
	for _, layout := range legacyLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			u := t.UTC()
			return &u
		}
	}
	return nil
}

// Before orders optional timestamps, treating nil as the earliest value.
func Before(a, b *time.Time) bool {
	switch {
	case a == nil:
		return b != nil
	case b == nil:
		return false
	}
	return a.Before(*b)
}

// Format renders t the way the SQLite store writes it.
func Format(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
