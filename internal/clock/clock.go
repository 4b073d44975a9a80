package clock

import (
	"fmt"
	"time"
)

// DefaultOffsetHours is the fixed offset of the operation's local calendar (UTC+7).
const DefaultOffsetHours = 7

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// Provider converts instants to local calendar dates in a fixed zone.
type Provider struct {
	loc *time.Location
	now func() time.Time
}

// NewProvider creates a Provider for a fixed UTC offset in whole hours.
func NewProvider(offsetHours int) *Provider {
	name := fmt.Sprintf("UTC%+d", offsetHours)
	return &Provider{
		loc: time.FixedZone(name, offsetHours*3600),
		now: time.Now,
	}
}

// NewFixed creates a Provider whose Now always returns t.
// Intended for tests and replays.
func NewFixed(offsetHours int, t time.Time) *Provider {
	p := NewProvider(offsetHours)
	p.now = func() time.Time { return t }
	return p
}

// Now returns the current instant expressed in the local zone.
func (p *Provider) Now() time.Time {
	return p.now().In(p.loc)
}

// Location returns the fixed local zone.
func (p *Provider) Location() *time.Location {
	return p.loc
}

// Today returns the local calendar date of the current instant.
func (p *Provider) Today() Date {
	return p.DateOf(p.now())
}

// DateOf returns the local calendar date of t.
func (p *Provider) DateOf(t time.Time) Date {
	y, m, d := t.In(p.loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

// StartOf returns local midnight at the beginning of d.
func (p *Provider) StartOf(d Date) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, p.loc)
}

// Window returns the instant range covering the inclusive date range [start, end].
func (p *Provider) Window(start, end Date) Window {
	return Window{
		Start: start,
		End:   end,
		From:  p.StartOf(start),
		To:    p.StartOf(end.AddDays(1)),
		loc:   p.loc,
	}
}

// Window is an inclusive range of local calendar dates together with
// the half-open instant range [From, To) it covers.
type Window struct {
	Start Date
	End   Date
	From  time.Time
	To    time.Time

	loc *time.Location
}

// Days returns the number of calendar dates in the window.
func (w Window) Days() int {
	return w.End.Sub(w.Start) + 1
}

// Dates returns every calendar date in the window, in order.
func (w Window) Dates() []Date {
	dates := make([]Date, 0, w.Days())
	for d := w.Start; !d.After(w.End); d = d.AddDays(1) {
		dates = append(dates, d)
	}
	return dates
}

// Contains reports whether instant t falls on a date inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// Overlaps reports whether a span starting at start and ending at end
// (zero end means still open) touches any date of the window.
func (w Window) Overlaps(start, end time.Time) bool {
	if !start.Before(w.To) {
		return false
	}
	return end.IsZero() || !end.Before(w.From)
}

// DateOf returns the local calendar date of t in the window's zone.
func (w Window) DateOf(t time.Time) Date {
	loc := w.loc
	if loc == nil {
		loc = w.From.Location()
	}
	y, m, d := t.In(loc).Date()
	return Date{Year: y, Month: m, Day: d}
}
