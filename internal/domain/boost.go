package domain

import "time"

// BoostWindow names one of the fixed daily double-earnings intervals.
type BoostWindow string

const (
	BoostWindowNone    BoostWindow = ""
	BoostWindowSunrise BoostWindow = "sunrise"
	BoostWindowSunset  BoostWindow = "sunset"
)

// Boost window bounds in minutes since local midnight, endpoints inclusive.
const (
	sunriseStart = 5*60 + 30  // 05:30
	sunriseEnd   = 7 * 60     // 07:00
	sunsetStart  = 17*60 + 30 // 17:30
	sunsetEnd    = 19 * 60    // 19:00
)

// ActiveBoostWindow reports whether a boost window is active at t (local time)
// and which one. Pure function of wall-clock time; purely advisory to the
// sensor adapter's tagging logic.
func ActiveBoostWindow(t time.Time) (BoostWindow, bool) {
	minutes := t.Hour()*60 + t.Minute()
	switch {
	case minutes >= sunriseStart && minutes <= sunriseEnd:
		return BoostWindowSunrise, true
	case minutes >= sunsetStart && minutes <= sunsetEnd:
		return BoostWindowSunset, true
	default:
		return BoostWindowNone, false
	}
}
