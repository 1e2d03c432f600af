package service

import "time"

// Clock supplies the current time normalized to the household's time zone.
// All day-boundary math runs against this clock, not the host's local time.
type Clock interface {
	Now() time.Time
}

// ZoneClock is the production clock pinned to a fixed target zone.
type ZoneClock struct {
	loc *time.Location
}

func NewZoneClock(loc *time.Location) ZoneClock {
	if loc == nil {
		loc = time.Local
	}
	return ZoneClock{loc: loc}
}

func (c ZoneClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// startOfDay truncates t to midnight in its own location.
func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// daysBetween returns whole calendar days from a to b. The dates are diffed
// in UTC so that a DST transition inside the span (a 23- or 25-hour day)
// cannot shift the count.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	from := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	to := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}
