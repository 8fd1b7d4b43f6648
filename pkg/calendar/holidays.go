package calendar

import "time"

type civilDate struct {
	year  int
	month time.Month
	day   int
}

// Unscheduled NYSE closures.
var closures = map[civilDate]string{
	{1994, time.April, 27}:     "National Day of Mourning (Nixon)",
	{2001, time.September, 11}: "September 11",
	{2001, time.September, 12}: "September 11",
	{2001, time.September, 13}: "September 11",
	{2001, time.September, 14}: "September 11",
	{2004, time.June, 11}:      "National Day of Mourning (Reagan)",
	{2007, time.January, 2}:    "National Day of Mourning (Ford)",
	{2012, time.October, 29}:   "Hurricane Sandy",
	{2012, time.October, 30}:   "Hurricane Sandy",
	{2018, time.December, 5}:   "National Day of Mourning (G.H.W. Bush)",
	{2025, time.January, 9}:    "National Day of Mourning (Carter)",
}

// IsExchangeClosed reports whether the NYSE is closed for the whole Eastern
// date containing t.
func IsExchangeClosed(t time.Time) bool {
	switch t.In(eastern).Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}
	_, ok := Holiday(t)
	return ok
}

// Holiday returns the name of the exchange holiday observed on the Eastern
// date containing t. Weekends are not reported as holidays.
func Holiday(t time.Time) (string, bool) {
	et := t.In(eastern)
	y, m, d := et.Date()
	wd := et.Weekday()

	if name, ok := closures[civilDate{y, m, d}]; ok {
		return name, true
	}

	nth := (d-1)/7 + 1

	switch m {
	case time.January:
		// NYSE Rule 7.2: a Saturday holiday is observed on the preceding
		// Friday unless that Friday ends a monthly or yearly accounting
		// period, so a Saturday Jan 1 is not made up on Dec 31.
		if d == 1 || (d == 2 && wd == time.Monday) {
			return "New Year's Day", true
		}
		if y >= 1998 && wd == time.Monday && nth == 3 {
			return "Martin Luther King Jr. Day", true
		}
	case time.February:
		if y >= 1971 && wd == time.Monday && nth == 3 {
			return "Presidents' Day", true
		}
	case time.March, time.April:
		gf := GoodFriday(y)
		if m == gf.Month() && d == gf.Day() {
			return "Good Friday", true
		}
	case time.May:
		if wd == time.Monday && d+7 > 31 {
			return "Memorial Day", true
		}
	case time.June:
		// Juneteenth joined the NYSE schedule in 2022.
		if y >= 2022 && observed(19, d, wd) {
			return "Juneteenth", true
		}
	case time.July:
		if observed(4, d, wd) {
			return "Independence Day", true
		}
	case time.September:
		if wd == time.Monday && nth == 1 {
			return "Labor Day", true
		}
	case time.November:
		if wd == time.Thursday && nth == 4 {
			return "Thanksgiving Day", true
		}
	case time.December:
		if observed(25, d, wd) {
			return "Christmas Day", true
		}
	}
	return "", false
}

// observed applies the weekend shift for a fixed-date holiday: Saturday
// holidays close the Friday before, Sunday holidays the Monday after.
func observed(fixed, day int, wd time.Weekday) bool {
	switch {
	case day == fixed:
		return true
	case day == fixed-1 && wd == time.Friday:
		return true
	case day == fixed+1 && wd == time.Monday:
		return true
	}
	return false
}

// GoodFriday returns Good Friday of the Gregorian year as midnight UTC. The
// congruence derives Easter Sunday from the golden number, the century
// corrections and the epact, then steps back two days.
func GoodFriday(year int) time.Time {
	golden := year % 19
	century := year / 100
	yearOfCentury := year % 100
	leapCenturies, centuryRem := century/4, century%4
	leapYears, yearRem := yearOfCentury/4, yearOfCentury%4

	lunarCorrection := (8*century + 13) / 25
	epact := (19*golden + century - leapCenturies - lunarCorrection + 15) % 30
	weekdayOffset := (2*centuryRem + 2*leapYears - yearRem + 32 - epact) % 7
	fudge := (golden + 11*epact + 19*weekdayOffset) / 433

	// Days after March 22 for Easter, minus two for the Friday.
	days := epact + weekdayOffset - 7*fudge - 2
	month := (days + 90) / 25
	day := (days + 33*month + 19) % 32

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
