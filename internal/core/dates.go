package core

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// DateLayout is the calendar date form accepted in queries and bodies.
const DateLayout = "2006-01-02"

// Date is a point in time that also accepts a bare calendar date on input.
type Date struct {
	time.Time
}

// NewDate creates a new Date from year, month, day at UTC midnight.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts YYYY-MM-DD (UTC midnight) or RFC 3339. dateOnly reports
// which form matched.
func ParseDate(s string) (t time.Time, dateOnly bool, err error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, true, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), false, nil
	}
	return time.Time{}, false, ErrInvalidDate
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Time)
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ErrInvalidDate
	}
	t, _, err := ParseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// CeilMilli rounds t up to a whole millisecond, the precision both stores
// keep. Comparing stored values against rounded bounds keeps a window
// half-open.
func CeilMilli(t time.Time) time.Time {
	r := t.Truncate(time.Millisecond)
	if r.Before(t) {
		r = r.Add(time.Millisecond)
	}
	return r
}

// Window is a half-open instant range [From, To). A zero bound is open.
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && !t.Before(w.To) {
		return false
	}
	return true
}

// upperBound turns an inclusive end into the exclusive bound of a Window: a
// calendar date covers its whole day, an instant covers only itself.
func upperBound(t time.Time, dateOnly bool) time.Time {
	if dateOnly {
		return t.AddDate(0, 0, 1)
	}
	return t.Add(time.Nanosecond)
}

// ReportWindow validates the inclusive [startDate, endDate] pair of a report.
// Both are required.
func ReportWindow(startDate, endDate string) (Window, error) {
	startDate, endDate = strings.TrimSpace(startDate), strings.TrimSpace(endDate)
	if startDate == "" || endDate == "" {
		ve := &ValidationError{Message: "Please provide both startDate and endDate"}
		if startDate == "" {
			ve.Fields = append(ve.Fields, FieldError{Field: "startDate", Message: "startDate is required"})
		}
		if endDate == "" {
			ve.Fields = append(ve.Fields, FieldError{Field: "endDate", Message: "endDate is required"})
		}
		return Window{}, ve
	}
	return parseWindow(startDate, endDate)
}

// Filter restricts an expense listing. Empty fields do not filter.
type Filter struct {
	Window
	Category string
}

// NewFilter builds a Filter from optional query values. Each date bound is
// applied independently when present.
func NewFilter(startDate, endDate, category string) (Filter, error) {
	w, err := parseWindow(strings.TrimSpace(startDate), strings.TrimSpace(endDate))
	if err != nil {
		return Filter{}, err
	}
	return Filter{Window: w, Category: strings.TrimSpace(category)}, nil
}

// Matches reports whether e passes the filter.
func (f Filter) Matches(e Expense) bool {
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	return f.Contains(e.Date)
}

func parseWindow(startDate, endDate string) (Window, error) {
	var (
		w      Window
		fields []FieldError
	)
	var start time.Time
	if startDate != "" {
		t, _, err := ParseDate(startDate)
		if err != nil {
			fields = append(fields, FieldError{Field: "startDate", Message: "startDate must be a valid ISO 8601 date"})
		} else {
			start = t
			w.From = t
		}
	}
	if endDate != "" {
		t, dateOnly, err := ParseDate(endDate)
		if err != nil {
			fields = append(fields, FieldError{Field: "endDate", Message: "endDate must be a valid ISO 8601 date"})
		} else {
			if !start.IsZero() && t.Before(start) {
				fields = append(fields, FieldError{Field: "endDate", Message: "endDate must not be before startDate"})
			}
			w.To = upperBound(t, dateOnly)
		}
	}
	if len(fields) > 0 {
		return Window{}, &ValidationError{Message: "Invalid date range", Fields: fields}
	}
	return w, nil
}
