package calendar

import "time"

const (
	openSeconds  = (9*60 + 30) * 60
	closeSeconds = 16 * 60 * 60
	lastMinute   = closeSeconds - 60

	// MinutesInTradingDay is the length of the regular session.
	MinutesInTradingDay = (closeSeconds - openSeconds) / 60
)

// StartOfTradingDay returns 09:30 Eastern of the Eastern date containing t, in UTC.
func StartOfTradingDay(t time.Time) time.Time {
	y, m, d := t.In(eastern).Date()
	return time.Date(y, m, d, 9, 30, 0, 0, eastern).UTC()
}

// EndOfTradingDay returns 16:00 Eastern of the Eastern date containing t, in UTC.
func EndOfTradingDay(t time.Time) time.Time {
	y, m, d := t.In(eastern).Date()
	return time.Date(y, m, d, 16, 0, 0, 0, eastern).UTC()
}

func easternSeconds(t time.Time) int {
	et := t.In(eastern)
	return (et.Hour()*60+et.Minute())*60 + et.Second()
}

// IsRegularHours reports whether t falls in [09:30, 16:00) Eastern. The
// minute index counts from the open and is only meaningful when ok is true.
func IsRegularHours(t time.Time) (ok bool, minuteIndex int) {
	secs := easternSeconds(t)
	if secs < openSeconds || secs >= closeSeconds {
		return false, 0
	}
	return true, (secs - openSeconds) / 60
}

// IsOpeningMinute reports whether t is exactly 09:30:00 Eastern.
func IsOpeningMinute(t time.Time) bool {
	return easternSeconds(t) == openSeconds
}

// IsLastMinute reports whether t is exactly 15:59:00 Eastern.
func IsLastMinute(t time.Time) bool {
	return easternSeconds(t) == lastMinute
}

// StartOfWeek returns Monday 00:00 local of the week containing t. A Sunday
// belongs to the week that starts the next day.
func (c *Calendar) StartOfWeek(t time.Time) time.Time {
	lt := t.In(c.local)
	y, m, d := lt.Date()

	shift := 1 - int(lt.Weekday())
	if lt.Weekday() == time.Sunday {
		shift = 1
	}
	return time.Date(y, m, d+shift, 0, 0, 0, 0, c.local).UTC()
}

// EndOfWeek returns Friday 24:00 local of the week containing t. A Saturday
// belongs to the week that ended the day before.
func (c *Calendar) EndOfWeek(t time.Time) time.Time {
	lt := t.In(c.local)
	y, m, d := lt.Date()

	shift := int(time.Friday) - int(lt.Weekday())
	if lt.Weekday() == time.Saturday {
		shift = -1
	}
	return time.Date(y, m, d+shift+1, 0, 0, 0, 0, c.local).UTC()
}

// StartOfUTCWeek returns Sunday 00:00 UTC of the UTC week containing t.
func StartOfUTCWeek(t time.Time) time.Time {
	u := t.UTC()
	y, m, d := u.Date()
	return time.Date(y, m, d-int(u.Weekday()), 0, 0, 0, 0, time.UTC)
}
