// Package query turns transaction filters into store queries, refining
// time-of-day windows locally when the store cannot express them.
package query

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/liquida-dev/liquida/internal/model"
	"github.com/liquida-dev/liquida/internal/store"
)

// Filter selects transactions. Nil and empty fields do not constrain.
// Time-of-day bounds only take effect when at least one date bound is set.
type Filter struct {
	StartDate  *civil.Date
	EndDate    *civil.Date
	StartTime  *civil.Time
	EndTime    *civil.Time
	Acquirers  []string
	Modalities []model.Modality
}

// HasDate reports whether a calendar bound is present.
func (f Filter) HasDate() bool { return f.StartDate != nil || f.EndDate != nil }

// HasTime reports whether a time-of-day bound is present.
func (f Filter) HasTime() bool { return f.StartTime != nil || f.EndTime != nil }

// ParseDate accepts "YYYY-MM-DD" and "DD/MM/YYYY".
func ParseDate(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	if d, err := civil.ParseDate(s); err == nil {
		return d, nil
	}
	t, err := time.Parse("2/1/2006", s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD or DD/MM/YYYY", s)
	}
	return civil.DateOf(t), nil
}

// ParseTimeOfDay accepts "HH:MM" and "HH:MM:SS".
func ParseTimeOfDay(s string) (civil.Time, error) {
	text := strings.TrimSpace(s)
	if strings.Count(text, ":") == 1 {
		text += ":00"
	}
	t, err := civil.ParseTime(text)
	if err != nil || !t.IsValid() {
		return civil.Time{}, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	return t, nil
}

// Plan is the store query for a filter plus the local refinement to apply.
type Plan struct {
	Query store.Query
	// Refine is set when a time-of-day window must be applied locally.
	Refine bool
	// StartMinute and EndMinute bound the window as minutes since local
	// midnight, inclusive. StartMinute > EndMinute wraps past midnight.
	StartMinute int
	EndMinute   int
	Diagnostics []string
}

const lastMinute = 23*60 + 59

// Build plans f. Date bounds are local calendar days in loc, converted to
// UTC instants: the start date lowers to local midnight and the end date
// raises to the last instant of that day.
func Build(f Filter, loc *time.Location) Plan {
	if loc == nil {
		loc = time.Local
	}
	p := Plan{
		Query: store.Query{
			Acquirers:  f.Acquirers,
			Modalities: f.Modalities,
		},
		EndMinute: lastMinute,
	}

	if f.StartDate != nil {
		from := f.StartDate.In(loc).UTC()
		p.Query.From = &from
	}
	if f.EndDate != nil {
		to := f.EndDate.AddDays(1).In(loc).Add(-time.Nanosecond).UTC()
		p.Query.To = &to
	}

	if !f.HasTime() {
		return p
	}
	if !f.HasDate() {
		p.Diagnostics = append(p.Diagnostics, "time-of-day filter ignored: set a start or end date to use it")
		return p
	}

	p.Refine = true
	if f.StartTime != nil {
		p.StartMinute = minuteOfDay(*f.StartTime)
	}
	if f.EndTime != nil {
		p.EndMinute = minuteOfDay(*f.EndTime)
	}
	if p.StartMinute > p.EndMinute {
		p.Diagnostics = append(p.Diagnostics, fmt.Sprintf(
			"start time is after end time: matching %s-23:59 and 00:00-%s on each day",
			clock(p.StartMinute), clock(p.EndMinute)))
	}
	return p
}

func clock(minute int) string { return fmt.Sprintf("%02d:%02d", minute/60, minute%60) }

// Matches reports whether t, viewed in loc, falls in the plan's time-of-day
// window. Plans without refinement match everything.
func (p Plan) Matches(t time.Time, loc *time.Location) bool {
	if !p.Refine {
		return true
	}
	m := minuteOfDay(civil.TimeOf(t.In(loc)))
	if p.StartMinute <= p.EndMinute {
		return m >= p.StartMinute && m <= p.EndMinute
	}
	return m >= p.StartMinute || m <= p.EndMinute
}

func minuteOfDay(t civil.Time) int { return t.Hour*60 + t.Minute }

// Params is the textual form of a Filter as it arrives from flags or a URL.
// Acquirer and modality entries may themselves be comma-separated lists.
type Params struct {
	StartDate  string
	EndDate    string
	StartTime  string
	EndTime    string
	Acquirers  []string
	Modalities []string
}

// Filter parses p. Blank fields do not constrain.
func (p Params) Filter() (Filter, error) {
	var f Filter
	for _, d := range []struct {
		text string
		dst  **civil.Date
	}{{p.StartDate, &f.StartDate}, {p.EndDate, &f.EndDate}} {
		if strings.TrimSpace(d.text) == "" {
			continue
		}
		v, err := ParseDate(d.text)
		if err != nil {
			return Filter{}, err
		}
		*d.dst = &v
	}
	for _, t := range []struct {
		text string
		dst  **civil.Time
	}{{p.StartTime, &f.StartTime}, {p.EndTime, &f.EndTime}} {
		if strings.TrimSpace(t.text) == "" {
			continue
		}
		v, err := ParseTimeOfDay(t.text)
		if err != nil {
			return Filter{}, err
		}
		*t.dst = &v
	}
	f.Acquirers = splitList(p.Acquirers)
	for _, m := range splitList(p.Modalities) {
		f.Modalities = append(f.Modalities, model.ParseModality(m))
	}
	return f, nil
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
