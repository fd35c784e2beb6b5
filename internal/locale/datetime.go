package locale

import (
	"strings"
	"time"
)

const (
	DateTimeLayout = "02/01/2006 15:04:05"
	DateLayout     = "02/01/2006"
	TimeLayout     = "15:04:05"
)

// brazilianLayouts are tried in order. Single-digit days and months are accepted.
var brazilianLayouts = []string{
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006",
}

// fallbackLayouts cover generic timestamp text. Layouts without a zone are
// interpreted in the caller's location.
var fallbackLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseDateTime parses "DD/MM/YYYY HH:mm:ss", "DD/MM/YYYY HH:mm", "DD/MM/YYYY"
// and, failing those, ISO-like timestamps. Runs of whitespace are collapsed
// before matching. The boolean is false when nothing matched.
func ParseDateTime(text string, loc *time.Location) (time.Time, bool) {
	cleaned := strings.Join(strings.Fields(text), " ")
	if cleaned == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}

	for _, layout := range brazilianLayouts {
		if t, err := time.ParseInLocation(layout, cleaned, loc); err == nil {
			return t, true
		}
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.ParseInLocation(layout, cleaned, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DecodeDateTime is ParseDateTime with a default for unparsable text. The
// boolean reports whether the default was used.
func DecodeDateTime(text string, loc *time.Location, def time.Time) (time.Time, bool) {
	if t, ok := ParseDateTime(text, loc); ok {
		return t, false
	}
	return def, true
}

// FormatDateTime renders t in loc as "DD/MM/YYYY HH:mm:ss".
func FormatDateTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(orLocal(loc)).Format(DateTimeLayout)
}

// FormatDate renders the calendar date of t in loc.
func FormatDate(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(orLocal(loc)).Format(DateLayout)
}

// FormatTime renders the wall-clock time of t in loc.
func FormatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(orLocal(loc)).Format(TimeLayout)
}

func orLocal(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}
