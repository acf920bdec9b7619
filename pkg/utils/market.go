package utils

import (
	"time"
	_ "time/tzdata" // exchange zone must resolve even on hosts without a zoneinfo database
)

// EasternZone is the IANA name of the US equity exchange time zone.
const EasternZone = "America/New_York"

var easternLocation *time.Location

func init() {
	var err error
	easternLocation, err = time.LoadLocation(EasternZone)
	if err != nil {
		easternLocation = time.FixedZone("EST", -5*60*60)
	}
}

// EasternLocation returns the time zone US equity markets run in.
func EasternLocation() *time.Location {
	return easternLocation
}

// IsWeekend reports whether t falls on Saturday or Sunday in its own location.
func IsWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}

// AtClock returns t's calendar day at the given wall-clock time, in t's location.
func AtClock(t time.Time, hour, minute int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, t.Location())
}

// NextWeekdayAt returns the first weekday wall-clock hour:minute strictly after t.
func NextWeekdayAt(t time.Time, hour, minute int) time.Time {
	next := AtClock(t, hour, minute)
	if !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}
	for IsWeekend(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// DateKey formats t's calendar date as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
