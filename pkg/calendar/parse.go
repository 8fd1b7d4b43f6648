package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	stdLayout  = "01/02/2006"
	longLayout = "Mon, Jan 02, 06"

	// webDateHorizonDays bounds how far ahead a year-less date may land
	// before the current year is assumed instead of the next.
	webDateHorizonDays = 100
)

var shortMonths = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// ParseStdDate parses "MM/DD/YYYY" as midnight Eastern and returns it in UTC.
func ParseStdDate(s string) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparsable, s)
	}

	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrUnparsable, s)
		}
		nums[i] = n
	}

	month, day, year := time.Month(nums[0]), nums[1], nums[2]
	if year < 1900 {
		return time.Time{}, fmt.Errorf("%w: year %d", ErrInvalidDate, year)
	}
	if err := checkDate(year, month, day); err != nil {
		return time.Time{}, err
	}
	return time.Date(year, month, day, 0, 0, 0, 0, eastern).UTC(), nil
}

// ParseWebDate parses a year-less "Mon DD" date relative to now. Next year is
// tried first; if that lands more than 100 days ahead the current year is used.
func ParseWebDate(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) < 4 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparsable, s)
	}

	month, ok := shortMonths[strings.ToLower(s[:3])]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: month in %q", ErrUnparsable, s)
	}

	rest := strings.TrimSpace(s[3:])
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return time.Time{}, fmt.Errorf("%w: day in %q", ErrUnparsable, s)
	}
	day, err := strconv.Atoi(rest[:end])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("%w: day in %q", ErrInvalidDate, s)
	}

	year := now.In(eastern).Year()
	candidate := time.Date(year+1, month, day, 0, 0, 0, 0, eastern)
	if DaysBetween(now, candidate) <= webDateHorizonDays {
		year++
	}
	if err := checkDate(year, month, day); err != nil {
		return time.Time{}, err
	}
	return time.Date(year, month, day, 0, 0, 0, 0, eastern).UTC(), nil
}

// FormatStdDate renders t as "MM/DD/YYYY" in Eastern time.
func FormatStdDate(t time.Time) string {
	return t.In(eastern).Format(stdLayout)
}

// FormatLongDate renders t as "Mon, Jan 02, 06" in Eastern time.
func FormatLongDate(t time.Time) string {
	return t.In(eastern).Format(longLayout)
}

// FormatFxDate renders t as "Jan 02" in the Local zone.
func (c *Calendar) FormatFxDate(t time.Time) string {
	return t.In(c.local).Format("Jan 02")
}

// FormatFxTime renders t as "15:04" in the Local zone.
func (c *Calendar) FormatFxTime(t time.Time) string {
	return t.In(c.local).Format("15:04")
}

// DaysBetween returns whole days from one instant to another, truncated
// toward zero.
func DaysBetween(from, to time.Time) int {
	return int(to.Sub(from) / (24 * time.Hour))
}

// DaysUntil returns whole days from today's Eastern midnight to t.
func DaysUntil(t, now time.Time) int {
	y, m, d := now.In(eastern).Date()
	return DaysBetween(time.Date(y, m, d, 0, 0, 0, 0, eastern), t)
}

// FormatDays renders a day count the way the release view shows it.
func FormatDays(days int) string {
	return fmt.Sprintf("%02d Days", days)
}
