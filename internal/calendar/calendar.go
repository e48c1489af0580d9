// Package calendar classifies instants against a single exchange's trading
// week: fixed session clocks in one timezone and an explicit holiday table.
package calendar

import (
	"fmt"
	"time"
	_ "time/tzdata" // exchange zone must resolve identically on every host

	"event-feature-lab/internal/domain"
)

// DefaultTimezone is the exchange timezone used when none is configured.
const DefaultTimezone = "America/New_York"

const dateLayout = "2006-01-02"

// Session clock bounds in minutes after local midnight.
const (
	extendedOpenMinute  = 4 * 60    // 04:00
	marketOpenMinute    = 9*60 + 30 // 09:30
	marketCloseMinute   = 16 * 60   // 16:00
	extendedCloseMinute = 20 * 60   // 20:00
)

// Classification describes an instant relative to the trading calendar.
type Classification struct {
	IsWeekend       bool
	IsHoliday       bool
	IsMarketOpen    bool
	IsExtendedHours bool
	Session         domain.Session
}

// Calendar is a pure function of its location and holiday table.
type Calendar struct {
	loc      *time.Location
	holidays map[string]struct{}
}

// New creates a calendar for the given timezone and holiday dates (YYYY-MM-DD).
func New(timezone string, holidays []string) (*Calendar, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}

	set := make(map[string]struct{}, len(holidays))
	for _, h := range holidays {
		if _, err := time.Parse(dateLayout, h); err != nil {
			return nil, fmt.Errorf("parse holiday %q: %w", h, err)
		}
		set[h] = struct{}{}
	}

	return &Calendar{loc: loc, holidays: set}, nil
}

// NYSE returns the New York Stock Exchange calendar.
func NYSE() *Calendar {
	c, err := New(DefaultTimezone, nyseHolidays)
	if err != nil {
		panic(err)
	}
	return c
}

// Location returns the exchange timezone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Classify places ts in exactly one session. Weekend and holiday take
// precedence over clock time.
func (c *Calendar) Classify(ts time.Time) Classification {
	local := ts.In(c.loc)
	var cl Classification

	switch {
	case isWeekend(local):
		cl.IsWeekend = true
		cl.Session = domain.SessionWeekend
	case c.isHolidayLocal(local):
		cl.IsHoliday = true
		cl.Session = domain.SessionHoliday
	default:
		m := minuteOfDay(local)
		switch {
		case m >= marketOpenMinute && m < marketCloseMinute:
			cl.IsMarketOpen = true
			cl.Session = domain.SessionMarketOpen
		case m >= extendedOpenMinute && m < extendedCloseMinute:
			cl.IsExtendedHours = true
			cl.Session = domain.SessionExtendedHours
		default:
			cl.Session = domain.SessionAfterHours
		}
	}

	return cl
}

// IsTradingDay reports whether the exchange-local date of ts is neither a
// weekend nor a listed holiday.
func (c *Calendar) IsTradingDay(ts time.Time) bool {
	local := ts.In(c.loc)
	return !isWeekend(local) && !c.isHolidayLocal(local)
}

// IsHoliday reports whether the exchange-local date of ts is a listed holiday.
func (c *Calendar) IsHoliday(ts time.Time) bool {
	return c.isHolidayLocal(ts.In(c.loc))
}

// IsMarketHours reports whether ts falls on Monday–Friday within 09:30–16:00
// exchange time. Holidays are not consulted.
func (c *Calendar) IsMarketHours(ts time.Time) bool {
	local := ts.In(c.loc)
	if isWeekend(local) {
		return false
	}
	m := minuteOfDay(local)
	return m >= marketOpenMinute && m < marketCloseMinute
}

// DayBounds returns the exchange-local calendar day containing ts as [start, end).
func (c *Calendar) DayBounds(ts time.Time) (time.Time, time.Time) {
	local := ts.In(c.loc)
	y, mo, d := local.Date()
	start := time.Date(y, mo, d, 0, 0, 0, 0, c.loc)
	end := time.Date(y, mo, d+1, 0, 0, 0, 0, c.loc)
	return start, end
}

// MarketOpenOn returns 09:30 exchange time on the local date of ts.
func (c *Calendar) MarketOpenOn(ts time.Time) time.Time {
	return c.clockOn(ts, marketOpenMinute)
}

// MarketCloseOn returns 16:00 exchange time on the local date of ts.
func (c *Calendar) MarketCloseOn(ts time.Time) time.Time {
	return c.clockOn(ts, marketCloseMinute)
}

// NextTradingDay returns local midnight of the first trading day strictly
// after the local date of ts.
func (c *Calendar) NextTradingDay(ts time.Time) time.Time {
	start, _ := c.DayBounds(ts)
	for i := 1; ; i++ {
		next := start.AddDate(0, 0, i)
		if c.IsTradingDay(next) {
			return next
		}
	}
}

// AddDays moves ts by n calendar days keeping the exchange wall clock.
func (c *Calendar) AddDays(ts time.Time, n int) time.Time {
	return ts.In(c.loc).AddDate(0, 0, n)
}

func (c *Calendar) clockOn(ts time.Time, minute int) time.Time {
	local := ts.In(c.loc)
	y, mo, d := local.Date()
	return time.Date(y, mo, d, minute/60, minute%60, 0, 0, c.loc)
}

func (c *Calendar) isHolidayLocal(local time.Time) bool {
	_, ok := c.holidays[local.Format(dateLayout)]
	return ok
}

func isWeekend(local time.Time) bool {
	wd := local.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func minuteOfDay(local time.Time) int {
	return local.Hour()*60 + local.Minute()
}
