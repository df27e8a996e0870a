// Package hours evaluates weekly business-hours schedules.
package hours

import (
	"strconv"
	"strings"
	"time"
)

// Day is one day-of-week entry in a weekly schedule. Start and End are
// "HH:MM" strings in the schedule's timezone; End is exclusive.
type Day struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

// Week is a full weekly schedule.
type Week struct {
	Monday    Day `json:"monday"`
	Tuesday   Day `json:"tuesday"`
	Wednesday Day `json:"wednesday"`
	Thursday  Day `json:"thursday"`
	Friday    Day `json:"friday"`
	Saturday  Day `json:"saturday"`
	Sunday    Day `json:"sunday"`
}

// DayFor returns the entry for the given weekday.
func (w Week) DayFor(d time.Weekday) Day {
	switch d {
	case time.Monday:
		return w.Monday
	case time.Tuesday:
		return w.Tuesday
	case time.Wednesday:
		return w.Wednesday
	case time.Thursday:
		return w.Thursday
	case time.Friday:
		return w.Friday
	case time.Saturday:
		return w.Saturday
	default:
		return w.Sunday
	}
}

// IsOnline reports whether now falls inside the schedule. The decision is
// made in the schedule's timezone; an unknown timezone falls back to UTC.
// A nil schedule means no business hours are configured and the widget is
// always online.
func IsOnline(schedule *Week, timezone string, now time.Time) bool {
	if schedule == nil {
		return true
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil || timezone == "" {
		loc = time.UTC
	}
	local := now.In(loc)

	day := schedule.DayFor(local.Weekday())
	if !day.Enabled {
		return false
	}

	start, ok := parseMinutes(day.Start)
	if !ok {
		return false
	}
	end, ok := parseMinutes(day.End)
	if !ok {
		return false
	}

	minute := local.Hour()*60 + local.Minute()
	return minute >= start && minute < end
}

// parseMinutes converts "HH:MM" to minutes past midnight.
func parseMinutes(s string) (int, bool) {
	h, m, found := strings.Cut(s, ":")
	if !found {
		return 0, false
	}
	hours, err := strconv.Atoi(h)
	if err != nil || hours < 0 || hours > 23 {
		return 0, false
	}
	mins, err := strconv.Atoi(m)
	if err != nil || mins < 0 || mins > 59 {
		return 0, false
	}
	return hours*60 + mins, true
}
