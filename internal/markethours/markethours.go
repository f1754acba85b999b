// Package markethours decides whether a simulated market is open and how
// intraday volatility is shaped by time of day.
//
// All wall-clock reads go through a Clock so tests can pin "now".
package markethours

import (
	"fmt"
	"time"

	"tradesim-engine/internal/model"
)

// Session hours in the reference zone.
const (
	OpenHour    = 9
	OpenMinute  = 30
	CloseHour   = 16
	CloseMinute = 0
)

// DefaultZone is the reference exchange time zone.
const DefaultZone = "America/New_York"

// fallbackZone is used when tzdata for the reference zone is unavailable.
var fallbackZone = time.FixedZone("EST", -5*3600)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns T.
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T }

// Phase is the intraday session phase used by coaching advisories.
type Phase int

const (
	PhaseRegular Phase = iota
	PhaseOpening
	PhaseClosing
)

func (p Phase) String() string {
	switch p {
	case PhaseOpening:
		return "opening"
	case PhaseClosing:
		return "closing"
	default:
		return "regular"
	}
}

// Session evaluates market hours in a reference location.
type Session struct {
	loc   *time.Location
	clock Clock
}

// LoadLocation resolves name, falling back to a fixed UTC-5 zone.
func LoadLocation(name string) *time.Location {
	if name == "" {
		name = DefaultZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fallbackZone
	}
	return loc
}

// New creates a Session. A nil clock uses the system clock; a nil
// location uses the default reference zone.
func New(loc *time.Location, clock Clock) *Session {
	if loc == nil {
		loc = LoadLocation(DefaultZone)
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Session{loc: loc, clock: clock}
}

// Location returns the reference zone.
func (s *Session) Location() *time.Location { return s.loc }

// Now returns the current time in the reference zone.
func (s *Session) Now() time.Time { return s.clock.Now().In(s.loc) }

// IsOpen reports whether class is tradeable right now.
func (s *Session) IsOpen(class model.AssetClass) (bool, string) {
	return s.IsOpenAt(class, s.clock.Now())
}

// IsOpenAt reports whether class is tradeable at t, with a human message.
func (s *Session) IsOpenAt(class model.AssetClass, t time.Time) (bool, string) {
	now := t.In(s.loc)

	switch class {
	case model.ClassCrypto:
		return true, "Crypto markets are open 24/7"

	case model.ClassForex:
		if isWeekend(now) {
			return false, "Forex market closed on weekends"
		}
		return true, "Forex market open"

	case model.ClassStock, model.ClassIndex:
		if isWeekend(now) {
			return false, "Stock market closed on weekends"
		}
		open := TodayOpen(now)
		cl := TodayClose(now)
		switch {
		case now.Before(open):
			return false, fmt.Sprintf("Market opens in %d minutes", int(open.Sub(now).Minutes()))
		case now.After(cl):
			next := open.AddDate(0, 0, 1)
			return false, fmt.Sprintf("Market closed. Opens in %d hours", int(next.Sub(now).Hours()))
		default:
			return true, fmt.Sprintf("Market open (%d minutes remaining)", int(cl.Sub(now).Minutes()))
		}
	}

	return true, "Market status unknown"
}

// Status builds a MarketStatus for class at the current time.
func (s *Session) Status(class model.AssetClass) model.MarketStatus {
	open, msg := s.IsOpen(class)
	return model.MarketStatus{AssetClass: string(class), IsOpen: open, Message: msg}
}

// PhaseAt returns the session phase for t: opening during the 09:00 hour,
// closing from 15:00 through the 16:00 hour, otherwise regular.
func (s *Session) PhaseAt(t time.Time) Phase {
	h := t.In(s.loc).Hour()
	switch {
	case h == 9:
		return PhaseOpening
	case h >= 15 && h <= 16:
		return PhaseClosing
	}
	return PhaseRegular
}

// TimeOfDayMultiplier scales intraday volatility by hour band:
// 1.5 for [09,11), 0.7 for [11,13), 1.4 for [15,17), else 1.0.
func (s *Session) TimeOfDayMultiplier(ts time.Time) float64 {
	h := ts.In(s.loc).Hour()
	switch {
	case h >= 9 && h < 11:
		return 1.5
	case h >= 11 && h < 13:
		return 0.7
	case h >= 15 && h < 17:
		return 1.4
	}
	return 1.0
}

// TodayOpen returns the session open on t's calendar day in t's location.
func TodayOpen(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), OpenHour, OpenMinute, 0, 0, t.Location())
}

// TodayClose returns the session close on t's calendar day in t's location.
func TodayClose(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), CloseHour, CloseMinute, 0, 0, t.Location())
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
